package flashfs

import (
	"github.com/aalhour/flashfs/internal/device"
	"github.com/aalhour/flashfs/internal/filter"
	"github.com/aalhour/flashfs/internal/logging"
	"github.com/aalhour/flashfs/internal/record"
)

// Logger is an alias for the logging.Logger interface, so callers never
// need to import internal/logging directly.
type Logger = logging.Logger

// CriticalSection is an alias for device.CriticalSection.
type CriticalSection = device.CriticalSection

// Config contains all configuration options for mounting a Filesystem,
// in the manner of the teacher's Options/DefaultOptions pair: an exported
// struct of independently-documented fields rather than chained
// functional options.
type Config struct {
	// MaxPath is the maximum path length in bytes, excluding the trailing
	// NUL (spec.md §3's FS_MAX_PATH). Default: 86.
	MaxPath int

	// MaxEntries bounds the in-memory path index's capacity (spec.md §9's
	// "no heap in the critical path" design note). Default: 64.
	MaxEntries int

	// BloomBits is the Bloom filter's bit-array width. Default: 2048.
	BloomBits uint32

	// BloomProbes is the number of hash probes per key. Default: 4.
	BloomProbes int

	// Logger receives diagnostic output. If nil, a default WARN-level
	// logger is used.
	Logger Logger

	// CriticalSection is invoked around every write/erase (spec.md §5),
	// for hosts that must disable interrupts during flash bus activity.
	// Defaults to no-ops.
	CriticalSection CriticalSection
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		MaxPath:         record.MaxPath,
		MaxEntries:      64,
		BloomBits:       filter.DefaultBits,
		BloomProbes:     filter.DefaultProbes,
		Logger:          nil,
		CriticalSection: device.NoCriticalSection,
	}
}
