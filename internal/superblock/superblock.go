// Package superblock implements the fixed header at the start of the
// filesystem region (spec.md §3, §6): a magic/version tag used to decide
// "already initialized" vs "fresh", and a compaction-in-progress marker
// used to survive a crash during compaction (§4.6).
package superblock

import (
	"encoding/binary"
	"errors"
)

// Size is the total on-disk footprint of the superblock, 4-byte aligned.
const Size = 12

// Magic is the fixed 32-bit tag identifying a flashfs region.
const Magic = 0x53464C46 // "FLFS" as little-endian bytes F L F S... chosen arbitrarily but frozen.

// Version is the current on-disk format version. Bumping it invalidates
// existing images (§4.3 step 2: erase and rewrite on version mismatch).
const Version = 1

// compactionIdle is the erased-state value of the compaction-in-progress
// byte: 1 means no compaction is underway. Clearing it to 0 asserts
// "compaction in progress", mirroring the record flag convention.
const compactionIdle = 0xFF
const compactionInProgressMask = 1 << 0

var ErrShortBuffer = errors.New("superblock: buffer shorter than Size")

// Superblock is the decoded fixed header.
type Superblock struct {
	Magic                uint32
	Version              uint8
	CompactionInProgress bool
	CompactionLiveBytes  uint32
}

// Fresh returns a Superblock for a newly initialized, idle region.
func Fresh() Superblock {
	return Superblock{Magic: Magic, Version: Version}
}

// Encode serializes sb into exactly Size bytes.
func Encode(sb Superblock) []byte {
	buf := make([]byte, Size)
	binary.LittleEndian.PutUint32(buf[0:4], sb.Magic)
	buf[4] = sb.Version
	if sb.CompactionInProgress {
		buf[5] = compactionIdle &^ compactionInProgressMask
	} else {
		buf[5] = compactionIdle
	}
	// buf[6:8] reserved, left zero.
	binary.LittleEndian.PutUint32(buf[8:12], sb.CompactionLiveBytes)
	return buf
}

// Decode parses Size bytes into a Superblock.
func Decode(buf []byte) (Superblock, error) {
	if len(buf) < Size {
		return Superblock{}, ErrShortBuffer
	}
	sb := Superblock{
		Magic:   binary.LittleEndian.Uint32(buf[0:4]),
		Version: buf[4],
	}
	sb.CompactionInProgress = buf[5]&compactionInProgressMask == 0
	sb.CompactionLiveBytes = binary.LittleEndian.Uint32(buf[8:12])
	return sb, nil
}

// IsErased reports whether buf looks like an untouched, fully-erased
// region (every byte 0xFF) — the signal used at mount to decide whether to
// silently initialize rather than fail (§4.3 step 1).
func IsErased(buf []byte) bool {
	for _, b := range buf {
		if b != 0xFF {
			return false
		}
	}
	return true
}
