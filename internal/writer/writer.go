// Package writer implements spec.md §4.5: appending a new file version and
// invalidating prior versions, growing the log forward and triggering
// compaction when the frontier would run past the region's capacity.
//
// Reference: the teacher's internal/wal writer's append-then-commit split
// (write the record body, then flip a single status byte as the durability
// point) narrowed to a single in-place invalidation step instead of a
// separate tombstone record, per spec.md §4.5's deletion encoding.
package writer

import (
	"errors"

	"github.com/aalhour/flashfs/internal/compaction"
	"github.com/aalhour/flashfs/internal/device"
	"github.com/aalhour/flashfs/internal/index"
	"github.com/aalhour/flashfs/internal/logging"
	"github.com/aalhour/flashfs/internal/record"
	"github.com/aalhour/flashfs/internal/testutil"
)

// ErrNoSpace is returned when a record would not fit in the region even
// after compaction.
var ErrNoSpace = errors.New("writer: no space available after compaction")

// Store implements spec.md §4.5's store_file_data. primary is the
// region-relative Device; scratch is the compaction staging Device. idx
// must already reflect the current log state (as left by scanner.Mount or
// a prior Store/Unlink). frontier is the current frontier; Store returns
// the new one.
//
// If the record does not fit before frontier reaches primary.Capacity(),
// compaction.Compact runs first to reclaim dead space. If it still does
// not fit, ErrNoSpace is returned and neither primary nor idx is modified
// for this record (compaction itself may already have rewritten the log,
// which is always semantics-preserving per spec.md P6).
func Store(primary, scratch device.Device, cs device.CriticalSection, idx *index.Index, frontier int, path string, payload []byte, log logging.Logger) (int, error) {
	if len(path) > record.MaxPath {
		return frontier, record.ErrPathTooLong
	}

	size := record.Size(len(path), len(payload))
	regionEnd := primary.Capacity()

	if frontier+size > regionEnd {
		log.Infof("%sframe (%d bytes) does not fit before capacity, compacting", logging.NSWrite, size)
		newFrontier, err := compaction.Compact(primary, scratch, cs, idx, log)
		if err != nil {
			return frontier, err
		}
		frontier = newFrontier
		if frontier+size > regionEnd {
			log.Errorf("%sno space for %d bytes even after compaction", logging.NSWrite, size)
			return frontier, ErrNoSpace
		}
	}

	body, err := record.Encode(path, payload)
	if err != nil {
		return frontier, err
	}

	testutil.MaybeKill(testutil.KPWriterAppendBody0)
	if err := device.GuardedWrite(primary, cs, body, frontier); err != nil {
		return frontier, err
	}

	testutil.MaybeKill(testutil.KPWriterCommit0)
	if err := device.GuardedWrite(primary, cs, []byte{record.CommitFlags()}, frontier+record.FlagsOffset); err != nil {
		return frontier, err
	}

	if prior, ok := idx.Lookup(path); ok {
		testutil.MaybeKill(testutil.KPWriterInvalidatePrior0)
		if err := invalidate(primary, cs, prior.Offset); err != nil {
			return frontier, err
		}
	}

	if err := idx.Insert(path, frontier, len(payload)); err != nil {
		return frontier, err
	}

	log.Debugf("%swrote %q (%d bytes) at offset %d", logging.NSWrite, path, len(payload), frontier)
	return frontier + size, nil
}

// Unlink implements spec.md §4.5's unlink_file: invalidate the live
// record's on-disk flags byte and remove it from idx. Reports whether
// path was present.
func Unlink(primary device.Device, cs device.CriticalSection, idx *index.Index, path string, log logging.Logger) (bool, error) {
	loc, ok := idx.Lookup(path)
	if !ok {
		return false, nil
	}

	testutil.MaybeKill(testutil.KPUnlinkInvalidate0)
	if err := invalidate(primary, cs, loc.Offset); err != nil {
		return false, err
	}
	idx.Remove(path)
	log.Debugf("%sunlinked %q", logging.NSWrite, path)
	return true, nil
}

// invalidate clears the invalidated bit of the record framed at
// frameOffset, the single-byte write that marks a record dead (spec.md
// §4.2, §4.5).
func invalidate(dev device.Device, cs device.CriticalSection, frameOffset int) error {
	flagsBuf := make([]byte, 1)
	if err := dev.ReadAt(flagsBuf, frameOffset+record.FlagsOffset); err != nil {
		return err
	}
	newFlags := record.InvalidateFlags(flagsBuf[0])
	return device.GuardedWrite(dev, cs, []byte{newFlags}, frameOffset+record.FlagsOffset)
}
