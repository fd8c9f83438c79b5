// Package scanner implements the boot-time mount and log walk (spec.md
// §4.3): deciding whether a region is fresh, already initialized, or
// unrecoverable, and then replaying every record from just past the
// superblock to rebuild the in-memory index.
//
// Reference: the teacher's internal/wal reader's sequential
// decode-and-classify loop, narrowed from block-fragmented WAL records to
// single-record-at-a-time replay since this format has no fragmentation.
package scanner

import (
	"errors"

	"github.com/aalhour/flashfs/internal/device"
	"github.com/aalhour/flashfs/internal/index"
	"github.com/aalhour/flashfs/internal/logging"
	"github.com/aalhour/flashfs/internal/record"
	"github.com/aalhour/flashfs/internal/superblock"
)

// Outcome reports which of spec.md §4.3's mount outcomes occurred.
type Outcome int

const (
	// Failed indicates the superblock is unreadable/corrupt and the
	// region is not recognizably erased.
	Failed Outcome = iota
	// Initialized indicates a fresh region was formatted, or an existing
	// one was reformatted on a version mismatch.
	Initialized
	// AlreadyInitialized indicates an existing, version-matched region
	// was found.
	AlreadyInitialized
)

// ErrMountFailed is returned when neither a valid superblock nor a fully
// erased region can be found (spec.md §4.3 step 4, §7).
var ErrMountFailed = errors.New("scanner: superblock unreadable and region not erased")

// Result reports the outcome of Mount.
type Result struct {
	Outcome Outcome

	// Frontier is the first unwritten offset, valid when scanning
	// completed (Outcome == AlreadyInitialized and !CompactionInProgress,
	// or Outcome == Initialized).
	Frontier int

	// CompactionInProgress is set when the superblock's in-progress
	// marker survived a crash during compaction (spec.md §4.6). The
	// caller must run compaction recovery and mount again before the log
	// can be trusted.
	CompactionInProgress bool
	CompactionLiveBytes  int
}

// Mount implements spec.md §4.3. dev is the region-relative Device: offset
// 0 is the first byte of the filesystem region. idx is reset and, when
// scanning runs, repopulated with every live path found.
func Mount(dev device.Device, cs device.CriticalSection, idx *index.Index, log logging.Logger) (Result, error) {
	idx.Reset()

	sbBuf := make([]byte, superblock.Size)
	if err := dev.ReadAt(sbBuf, 0); err != nil {
		return Result{}, err
	}

	if superblock.IsErased(sbBuf) {
		log.Infof("%sfresh region, writing superblock", logging.NSMount)
		if err := writeSuperblock(dev, cs, superblock.Fresh()); err != nil {
			return Result{}, err
		}
		return Result{Outcome: Initialized, Frontier: superblock.Size}, nil
	}

	sb, err := superblock.Decode(sbBuf)
	if err != nil {
		return Result{}, err
	}

	if sb.Magic != superblock.Magic {
		log.Errorf("%sno valid superblock and region is not erased", logging.NSMount)
		return Result{Outcome: Failed}, ErrMountFailed
	}

	if sb.Version != superblock.Version {
		log.Warnf("%sversion mismatch (have %d, want %d), reformatting",
			logging.NSMount, sb.Version, superblock.Version)
		if err := device.GuardedErase(dev, cs); err != nil {
			return Result{}, err
		}
		if err := writeSuperblock(dev, cs, superblock.Fresh()); err != nil {
			return Result{}, err
		}
		return Result{Outcome: Initialized, Frontier: superblock.Size}, nil
	}

	if sb.CompactionInProgress {
		log.Warnf("%scompaction-in-progress marker found, recovery required", logging.NSMount)
		return Result{
			Outcome:              AlreadyInitialized,
			CompactionInProgress: true,
			CompactionLiveBytes:  int(sb.CompactionLiveBytes),
		}, nil
	}

	frontier, err := Scan(dev, cs, idx, superblock.Size, dev.Capacity(), log)
	if err != nil {
		return Result{}, err
	}
	return Result{Outcome: AlreadyInitialized, Frontier: frontier}, nil
}

func writeSuperblock(dev device.Device, cs device.CriticalSection, sb superblock.Superblock) error {
	return device.GuardedWrite(dev, cs, superblock.Encode(sb), 0)
}

// Scan walks records from start to regionEnd, inserting every live record
// into idx and healing any stale duplicate it encounters for the same path
// (spec.md §4.3's recovery rule, I1). It returns the frontier: the first
// offset holding the end-of-log sentinel.
func Scan(dev device.Device, cs device.CriticalSection, idx *index.Index, start, regionEnd int, log logging.Logger) (int, error) {
	offset := start
	for {
		dec, err := record.ReadAt(dev, offset, regionEnd)
		if err != nil {
			return 0, err
		}

		switch dec.State {
		case record.StateEndOfLog:
			return offset, nil

		case record.StateTorn, record.StateDead:
			offset += dec.Size

		case record.StateLive:
			if prior, ok := idx.Lookup(dec.Path); ok {
				log.Warnf("%shealing duplicate live record for %q: offset %d wins over %d",
					logging.NSScan, dec.Path, dec.Offset, prior.Offset)
				if err := healDuplicate(dev, cs, prior.Offset); err != nil {
					return 0, err
				}
			}
			if err := idx.Insert(dec.Path, dec.Offset, len(dec.Payload)); err != nil {
				return 0, err
			}
			offset += dec.Size
		}
	}
}

// Counts tallies records by state from a read-only walk (used by
// Filesystem.Statistics/Check; SPEC_FULL.md's supplemented diagnostics).
// It never mutates the device or an index.
type Counts struct {
	Live int
	Dead int
	Torn int
}

// Count walks records from start to regionEnd purely for diagnostics,
// without touching any index. Grounded on Scan's decode-and-advance loop,
// narrowed to counting instead of index population.
func Count(dev device.Device, start, regionEnd int) (Counts, error) {
	var c Counts
	offset := start
	for {
		dec, err := record.ReadAt(dev, offset, regionEnd)
		if err != nil {
			return Counts{}, err
		}
		switch dec.State {
		case record.StateEndOfLog:
			return c, nil
		case record.StateTorn:
			c.Torn++
			offset += dec.Size
		case record.StateDead:
			c.Dead++
			offset += dec.Size
		case record.StateLive:
			c.Live++
			offset += dec.Size
		}
	}
}

// healDuplicate clears the invalidated bit of the lower-offset record so
// exactly one live record remains for its path (spec.md §4.3, I1).
func healDuplicate(dev device.Device, cs device.CriticalSection, frameOffset int) error {
	flagsBuf := make([]byte, 1)
	if err := dev.ReadAt(flagsBuf, frameOffset+record.FlagsOffset); err != nil {
		return err
	}
	newFlags := record.InvalidateFlags(flagsBuf[0])
	return device.GuardedWrite(dev, cs, []byte{newFlags}, frameOffset+record.FlagsOffset)
}
