// Package flashfs implements a log-structured filesystem over a tiny
// byte-addressable, sector-erase-only non-volatile medium (spec.md §1-§2):
// an append-only record log with crash-safe commit/invalidate semantics,
// an in-memory path index, and scratch-area compaction to reclaim dead
// space.
//
// Reference: the teacher's db_readonly.go facade — resolve a nil Config to
// DefaultConfig(), resolve the logger via logging.OrDefault, and wire a
// FatalHandler that flips an internal stopped flag — scaled from a
// read-only wrapper around a full LSM engine down to the one Filesystem
// type this package exposes.
package flashfs

import (
	"errors"

	"github.com/aalhour/flashfs/internal/compaction"
	"github.com/aalhour/flashfs/internal/device"
	"github.com/aalhour/flashfs/internal/index"
	"github.com/aalhour/flashfs/internal/logging"
	"github.com/aalhour/flashfs/internal/record"
	"github.com/aalhour/flashfs/internal/scanner"
	"github.com/aalhour/flashfs/internal/superblock"
	"github.com/aalhour/flashfs/internal/writer"
)

// Sentinel errors for every caller-visible failure (spec.md §4.7, §7),
// matching the teacher's db.Err* convention.
var (
	// ErrPathTooLong is returned when a path exceeds Config.MaxPath bytes.
	ErrPathTooLong = errors.New("flashfs: path exceeds maximum length")
	// ErrNoSpace is returned when a write does not fit even after
	// compaction reclaims all dead space, or when the live data does not
	// fit in the scratch device so compaction cannot run.
	ErrNoSpace = errors.New("flashfs: no space available after compaction")
	// ErrNotMounted is returned by any operation other than Initialize
	// called before a successful mount.
	ErrNotMounted = errors.New("flashfs: filesystem not mounted")
	// ErrCorrupt is returned by Initialize when the region is neither a
	// valid flashfs image nor recognizably erased (spec.md §4.3 step 4).
	ErrCorrupt = errors.New("flashfs: mount failed, medium is unrecoverable")
	// ErrClosed is returned by mutating calls after Fatalf has been
	// invoked on the Filesystem's *logging.DefaultLogger. After Destroy,
	// mutating calls return ErrNotMounted instead.
	ErrClosed = errors.New("flashfs: filesystem is closed")
	// ErrNotFound is returned by UnlinkFile when the path has no live
	// record.
	ErrNotFound = errors.New("flashfs: path not found")
)

// Statistics reports the spec-required usage counters plus the
// supplemented diagnostics the teacher's GetProperty-style introspection
// always exposes beyond the strict minimum (SPEC_FULL.md).
type Statistics struct {
	// BytesUsed is the total on-disk footprint of all live records.
	BytesUsed int
	// BytesAvailable is the remaining unwritten capacity before the
	// frontier reaches the region's end (before any compaction runs).
	BytesAvailable int
	// LiveRecords is the number of paths with a live record.
	LiveRecords int
	// DeadRecords is the number of superseded/invalidated records still
	// occupying space in the log.
	DeadRecords int
	// Frontier is the first unwritten byte offset, relative to the
	// filesystem region.
	Frontier int
}

// CheckReport is the result of a read-only consistency walk (Check).
type CheckReport struct {
	Live int
	Dead int
	Torn int
}

// Filesystem is the public entry point: one mounted filesystem region
// over a host-supplied Device, plus a scratch Device used only during
// compaction.
//
// Not safe for concurrent use (spec.md §5, a Non-goal); the host serializes
// calls itself, the same way the core never spawns goroutines.
type Filesystem struct {
	raw     device.Device
	primary device.Device
	scratch device.Device
	cs      device.CriticalSection
	cfg     Config
	logger  logging.Logger

	mounted  bool
	stopped  bool
	frontier int
	idx      *index.Index
}

// New constructs a Filesystem bound to dev (the raw, possibly
// larger-than-the-filesystem device) and scratch (the compaction staging
// device). cfg may be nil, in which case DefaultConfig() is used.
// Initialize must be called before any other method.
func New(dev, scratch device.Device, cfg *Config) *Filesystem {
	if cfg == nil {
		c := DefaultConfig()
		cfg = &c
	}
	logger := logging.OrDefault(cfg.Logger)

	fs := &Filesystem{
		raw:     dev,
		scratch: scratch,
		cs:      cfg.CriticalSection,
		cfg:     *cfg,
		logger:  logger,
		idx:     index.NewWithBloom(cfg.MaxEntries, cfg.BloomBits, cfg.BloomProbes),
	}

	if dl, ok := logger.(*logging.DefaultLogger); ok {
		dl.SetFatalHandler(func(msg string) {
			fs.stopped = true
		})
	}
	return fs
}

// Initialize mounts the filesystem at byte offset off within the Device
// passed to New (spec.md §3's "D[start..C)"), running spec.md §4.3's
// decision tree: a fresh region is formatted, a version mismatch triggers
// a reformat, a recognized region is scanned to rebuild the index, and a
// compaction-in-progress marker triggers recovery (§4.6) before the
// second, authoritative mount.
func (fs *Filesystem) Initialize(off int) error {
	fs.primary = device.Window(fs.raw, off)
	fs.stopped = false

	res, err := scanner.Mount(fs.primary, fs.cs, fs.idx, fs.logger)
	if err != nil {
		fs.logger.Errorf("%smount failed: %v", logging.NSMount, err)
		return ErrCorrupt
	}

	if res.Outcome == scanner.Failed {
		return ErrCorrupt
	}

	if res.CompactionInProgress {
		if fs.scratch == nil {
			fs.logger.Errorf("%scompaction-in-progress marker found but no scratch device configured", logging.NSMount)
			return ErrCorrupt
		}
		fs.logger.Warnf("%sresuming interrupted compaction", logging.NSMount)
		if _, err := compaction.Recover(fs.primary, fs.scratch, fs.cs, fs.idx, fs.logger); err != nil {
			fs.logger.Errorf("%scompaction recovery failed: %v", logging.NSMount, err)
			return ErrCorrupt
		}
		res, err = scanner.Mount(fs.primary, fs.cs, fs.idx, fs.logger)
		if err != nil || res.Outcome == scanner.Failed {
			return ErrCorrupt
		}
	}

	fs.frontier = res.Frontier
	fs.mounted = true
	return nil
}

// StoreFileData implements spec.md §4.5/§4.7: writes a new version of the
// file at path, invalidating any prior version, triggering compaction
// when the region would otherwise run out of room.
func (fs *Filesystem) StoreFileData(path string, data []byte) error {
	if err := fs.writable(); err != nil {
		return err
	}
	if len(path) > fs.cfg.MaxPath {
		return ErrPathTooLong
	}

	frontier, err := writer.Store(fs.primary, fs.scratch, fs.cs, fs.idx, fs.frontier, path, data, fs.logger)
	fs.frontier = frontier
	if err != nil {
		if errors.Is(err, record.ErrPathTooLong) {
			return ErrPathTooLong
		}
		if errors.Is(err, writer.ErrNoSpace) || errors.Is(err, compaction.ErrNoSpace) {
			return ErrNoSpace
		}
		fs.logger.Fatalf("%sstore failed: %v", logging.NSWrite, err)
		return err
	}
	return nil
}

// ReadFileData looks up path and appends its current bytes to *out,
// returning the number of bytes appended. If path has no live record, 0
// is returned with no error (spec.md §4.7: absence is not an error).
func (fs *Filesystem) ReadFileData(path string, out *[]byte) (int, error) {
	if !fs.mounted {
		return 0, ErrNotMounted
	}
	loc, ok := fs.idx.Lookup(path)
	if !ok {
		return 0, nil
	}
	dec, err := record.ReadAt(fs.primary, loc.Offset, fs.primary.Capacity())
	if err != nil {
		fs.logger.Errorf("%sread of %q failed: %v", logging.NSWrite, path, err)
		return 0, err
	}
	if dec.State != record.StateLive {
		// The index says live but the disk disagrees: treat as absent
		// rather than returning torn bytes.
		return 0, nil
	}
	*out = append(*out, dec.Payload...)
	return len(dec.Payload), nil
}

// FileExists reports whether path currently has a live record.
func (fs *Filesystem) FileExists(path string) bool {
	if !fs.mounted {
		return false
	}
	_, ok := fs.idx.Lookup(path)
	return ok
}

// FileSize returns the current payload length of path, or 0 if absent.
func (fs *Filesystem) FileSize(path string) int {
	if !fs.mounted {
		return 0
	}
	loc, ok := fs.idx.Lookup(path)
	if !ok {
		return 0
	}
	return loc.Length
}

// UnlinkFile implements spec.md §4.5/§4.7: invalidates path's live record
// and removes it from the index. Returns ErrNotFound if path is absent.
func (fs *Filesystem) UnlinkFile(path string) error {
	if err := fs.writable(); err != nil {
		return err
	}
	ok, err := writer.Unlink(fs.primary, fs.cs, fs.idx, path, fs.logger)
	if err != nil {
		fs.logger.Fatalf("%sunlink failed: %v", logging.NSWrite, err)
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Walk invokes fn once per live path, in unspecified order (spec.md §4.7).
func (fs *Filesystem) Walk(fn func(path string)) error {
	if !fs.mounted {
		return ErrNotMounted
	}
	fs.idx.Walk(func(path string, _ index.Location) {
		fn(path)
	})
	return nil
}

// Statistics reports usage counters (spec.md §4.7, plus the supplemented
// live_records/dead_records/frontier diagnostics).
func (fs *Filesystem) Statistics() (Statistics, error) {
	if !fs.mounted {
		return Statistics{}, ErrNotMounted
	}
	counts, err := scanner.Count(fs.primary, superblock.Size, fs.primary.Capacity())
	if err != nil {
		return Statistics{}, err
	}

	var bytesUsed int
	fs.idx.Walk(func(path string, loc index.Location) {
		bytesUsed += record.Size(len(path), loc.Length)
	})

	return Statistics{
		BytesUsed:      bytesUsed,
		BytesAvailable: fs.primary.Capacity() - fs.frontier,
		LiveRecords:    fs.idx.Len(),
		DeadRecords:    counts.Dead,
		Frontier:       fs.frontier,
	}, nil
}

// Check performs a read-only consistency walk of the whole log, reporting
// torn/dead/live record counts without repairing anything (SPEC_FULL.md's
// supplemented feature, grounded on the teacher's db_readonly.go pattern).
func (fs *Filesystem) Check() (CheckReport, error) {
	if !fs.mounted {
		return CheckReport{}, ErrNotMounted
	}
	counts, err := scanner.Count(fs.primary, superblock.Size, fs.primary.Capacity())
	if err != nil {
		return CheckReport{}, err
	}
	return CheckReport{Live: counts.Live, Dead: counts.Dead, Torn: counts.Torn}, nil
}

// Destroy unmounts the filesystem, releasing its in-memory index. The
// underlying Device's contents are left untouched; callers that want a
// fresh region must erase it themselves before the next Initialize.
func (fs *Filesystem) Destroy() error {
	if !fs.mounted {
		return ErrNotMounted
	}
	fs.idx.Reset()
	fs.mounted = false
	return nil
}

func (fs *Filesystem) writable() error {
	if !fs.mounted {
		return ErrNotMounted
	}
	if fs.stopped {
		return ErrClosed
	}
	return nil
}
