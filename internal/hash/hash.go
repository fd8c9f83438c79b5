// Package hash implements the two accelerator hash functions named in
// spec.md §1/§9: FNV-1a 32 and MurmurHash3 32 (x86 variant). Both back the
// Bloom filter in internal/filter only; neither is part of the frozen
// on-disk contract, so correctness never depends on them (§9).
package hash

// FNV1a32 computes the 32-bit FNV-1a hash of data.
//
// Reference: http://www.isthe.com/chongo/tech/comp/fnv/ (offset basis
// 2166136261, prime 16777619).
func FNV1a32(data []byte) uint32 {
	const offsetBasis uint32 = 2166136261
	const prime uint32 = 16777619

	h := offsetBasis
	for _, b := range data {
		h ^= uint32(b)
		h *= prime
	}
	return h
}

// Murmur3_32 computes the 32-bit x86 MurmurHash3 of data with the given
// seed.
//
// Reference: Austin Appleby's public-domain reference implementation,
// MurmurHash3_x86_32.
func Murmur3_32(data []byte, seed uint32) uint32 {
	const c1 uint32 = 0xcc9e2d51
	const c2 uint32 = 0x1b873593

	h := seed
	n := len(data)
	nblocks := n / 4

	for i := 0; i < nblocks; i++ {
		k := uint32(data[i*4]) | uint32(data[i*4+1])<<8 |
			uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24

		k *= c1
		k = rotl32(k, 15)
		k *= c2

		h ^= k
		h = rotl32(h, 13)
		h = h*5 + 0xe6546b64
	}

	tail := data[nblocks*4:]
	var k uint32
	switch len(tail) {
	case 3:
		k ^= uint32(tail[2]) << 16
		fallthrough
	case 2:
		k ^= uint32(tail[1]) << 8
		fallthrough
	case 1:
		k ^= uint32(tail[0])
		k *= c1
		k = rotl32(k, 15)
		k *= c2
		h ^= k
	}

	h ^= uint32(n)
	h = fmix32(h)
	return h
}

func rotl32(x uint32, r uint8) uint32 {
	return (x << r) | (x >> (32 - r))
}

func fmix32(h uint32) uint32 {
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}
