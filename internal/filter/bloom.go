// Package filter implements the Bloom filter accelerator over the path
// index (spec.md §4.4). It is built on FNV-1a 32 and MurmurHash3 32
// (internal/hash), combined via Kirsch-Mitzenmacher double hashing to
// derive k probe positions from two base hashes.
//
// The filter is a pure accelerator: it never produces a false negative
// (P7), so file_exists consults it first and only falls through to the
// index map on "maybe". It is not part of the on-disk format (§9).
package filter

import "github.com/aalhour/flashfs/internal/hash"

// DefaultBits is the default bit-array width for a filter sized for a
// small embedded path table (a few dozen entries at most).
const DefaultBits = 2048

// DefaultProbes is the number of hash probes per key, chosen for a low
// false-positive rate at DefaultBits / a few dozen keys.
const DefaultProbes = 4

// Filter is a fixed-size Bloom filter over path strings.
type Filter struct {
	bits   []byte // bits, 8 per byte
	nbits  uint32
	probes int
}

// New creates a Filter with the given bit-array width (rounded up to a
// multiple of 8) and number of probes per key.
func New(nbits uint32, probes int) *Filter {
	if nbits == 0 {
		nbits = DefaultBits
	}
	if probes <= 0 {
		probes = DefaultProbes
	}
	nbytes := (nbits + 7) / 8
	return &Filter{
		bits:   make([]byte, nbytes),
		nbits:  nbytes * 8,
		probes: probes,
	}
}

// Reset clears every bit, as done at mount (§4.4).
func (f *Filter) Reset() {
	for i := range f.bits {
		f.bits[i] = 0
	}
}

// Add inserts key into the filter.
func (f *Filter) Add(key []byte) {
	h1, h2 := f.seeds(key)
	for i := 0; i < f.probes; i++ {
		pos := f.probeIndex(h1, h2, i)
		f.bits[pos/8] |= 1 << (pos % 8)
	}
}

// MayContain returns true if key may be present. A false return is a
// guaranteed absence (P7); a true return may be a false positive.
func (f *Filter) MayContain(key []byte) bool {
	h1, h2 := f.seeds(key)
	for i := 0; i < f.probes; i++ {
		pos := f.probeIndex(h1, h2, i)
		if f.bits[pos/8]&(1<<(pos%8)) == 0 {
			return false
		}
	}
	return true
}

func (f *Filter) seeds(key []byte) (uint32, uint32) {
	return hash.FNV1a32(key), hash.Murmur3_32(key, 0)
}

// probeIndex derives the i-th probe position from two independent base
// hashes (Kirsch-Mitzenmacher: g_i(x) = h1(x) + i*h2(x) mod m).
func (f *Filter) probeIndex(h1, h2 uint32, i int) uint32 {
	return (h1 + uint32(i)*h2) % f.nbits
}
