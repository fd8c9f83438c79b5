// Package index implements the in-memory path -> record-location table
// (spec.md §4.4): a fixed-capacity table (per the embedded "no heap in the
// critical path" design note, spec.md §9) with a Bloom filter accelerator
// for negative file_exists lookups.
//
// Bucket hashing uses xxh3 (github.com/zeebo/xxh3), an accelerator exactly
// like the Bloom filter's FNV-1a/Murmur3 pair: it is never part of the
// on-disk format and a hash collision only costs a probe, never
// correctness.
package index

import (
	"errors"

	"github.com/zeebo/xxh3"

	"github.com/aalhour/flashfs/internal/filter"
)

// ErrFull is returned by Insert when the table is at capacity and the path
// being inserted is not already present (an update of an existing path
// always succeeds).
var ErrFull = errors.New("index: table is full")

type slotState uint8

const (
	slotEmpty slotState = iota
	slotOccupied
	slotTombstone
)

type slot struct {
	state  slotState
	path   string
	offset int
	length int
}

// Location is a record's position and payload length.
type Location struct {
	Offset int
	Length int
}

// Index is a fixed-capacity open-addressed path table plus a Bloom filter
// accelerator.
type Index struct {
	slots   []slot
	count   int
	bloom   *filter.Filter
}

// New creates an Index with room for up to capacity entries, with a Bloom
// filter sized from the table's capacity and filter.DefaultProbes.
func New(capacity int) *Index {
	return NewWithBloom(capacity, 0, filter.DefaultProbes)
}

// NewWithBloom creates an Index like New, but with an explicitly sized
// Bloom filter (spec.md §4.4, configurable via Config.BloomBits/
// BloomProbes). A zero bits value falls back to the table-capacity-derived
// sizing New uses.
func NewWithBloom(capacity int, bits uint32, probes int) *Index {
	if capacity < 1 {
		capacity = 1
	}
	// Oversize the backing table to keep load factor well under 1 so
	// linear probing stays cheap even near the configured capacity.
	tableSize := capacity*2 + 1
	if bits == 0 {
		bits = uint32(tableSize * 32)
	}
	return &Index{
		slots: make([]slot, tableSize),
		bloom: filter.New(bits, probes),
	}
}

// Capacity returns the maximum number of distinct paths this Index holds.
func (ix *Index) Capacity() int {
	return (len(ix.slots) - 1) / 2
}

// Len returns the number of paths currently present.
func (ix *Index) Len() int {
	return ix.count
}

func bucketHash(path string) uint64 {
	return xxh3.HashString(path)
}

// find returns the slot index holding path, or -1 if absent.
func (ix *Index) find(path string) int {
	n := len(ix.slots)
	start := int(bucketHash(path) % uint64(n))
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		s := &ix.slots[idx]
		switch s.state {
		case slotEmpty:
			return -1
		case slotOccupied:
			if s.path == path {
				return idx
			}
		}
	}
	return -1
}

// Lookup returns the location of path, if live.
func (ix *Index) Lookup(path string) (Location, bool) {
	if !ix.bloom.MayContain([]byte(path)) {
		return Location{}, false
	}
	idx := ix.find(path)
	if idx < 0 {
		return Location{}, false
	}
	s := ix.slots[idx]
	return Location{Offset: s.offset, Length: s.length}, true
}

// MayExist is a cheap pre-check usable without the full Lookup; exposed
// for callers that want to short-circuit before touching the table.
func (ix *Index) MayExist(path string) bool {
	return ix.bloom.MayContain([]byte(path))
}

// Insert replaces any prior mapping for path. The caller is responsible
// for invalidating the prior on-disk record (spec.md §4.4).
func (ix *Index) Insert(path string, offset, length int) error {
	if idx := ix.find(path); idx >= 0 {
		ix.slots[idx].offset = offset
		ix.slots[idx].length = length
		return nil
	}

	if ix.count >= ix.Capacity() {
		return ErrFull
	}

	n := len(ix.slots)
	start := int(bucketHash(path) % uint64(n))
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		s := &ix.slots[idx]
		if s.state != slotOccupied {
			s.state = slotOccupied
			s.path = path
			s.offset = offset
			s.length = length
			ix.count++
			ix.bloom.Add([]byte(path))
			return nil
		}
	}
	return ErrFull
}

// Remove erases the mapping for path, if present. The caller is
// responsible for invalidating the on-disk record. The Bloom filter is
// NOT cleared per-removal (that would risk a false negative before the
// next rebuild); it is rebuilt wholesale by Reset, matching spec.md
// §4.5's "Bloom filter is not cleared per-delete... rebuilt
// opportunistically during compaction."
func (ix *Index) Remove(path string) {
	idx := ix.find(path)
	if idx < 0 {
		return
	}
	ix.slots[idx].state = slotTombstone
	ix.slots[idx].path = ""
	ix.count--
}

// Walk invokes fn once per live path, in unspecified order.
func (ix *Index) Walk(fn func(path string, loc Location)) {
	for _, s := range ix.slots {
		if s.state == slotOccupied {
			fn(s.path, Location{Offset: s.offset, Length: s.length})
		}
	}
}

// Reset clears every entry and rebuilds an empty Bloom filter, as done at
// mount (§4.3) and after compaction (§4.6).
func (ix *Index) Reset() {
	for i := range ix.slots {
		ix.slots[i] = slot{}
	}
	ix.count = 0
	ix.bloom.Reset()
}
