// Package record implements the on-disk record format (spec.md §3, §4.2):
// little-endian framing of one file version, a CRC-16 over the payload,
// and the status-flag protocol used to distinguish live, dead, and torn
// records without trusting anything but the bytes on the medium.
//
// The layout is frozen and must not change without a format version bump
// in internal/superblock:
//
//	name_len(2) data_len(2) crc(2) flags(1) reserved(1) name[name_len+1] payload[data_len] pad[0-3]
package record

import (
	"encoding/binary"
	"errors"

	"github.com/aalhour/flashfs/internal/checksum"
)

// HeaderSize is the fixed 8-byte record header: name_len, data_len, crc,
// flags, reserved.
const HeaderSize = 8

// FlagsOffset is the byte offset of the flags field within the header,
// used by the writer to perform the single-byte commit/invalidate writes
// spec.md §4.2/§4.5 require.
const FlagsOffset = 6

// EndOfLog is the name_len sentinel marking the first unwritten record
// (the frontier), spec.md §3 I2.
const EndOfLog = 0xFFFF

// MaxPath is the default maximum path length (excluding the trailing NUL),
// spec.md §3.
const MaxPath = 86

// Flag bits. Each starts at 1 in erased memory; the writer clears bits to
// 0 to assert state (spec.md §3).
const (
	FlagAlive           = 1 << 0
	FlagInvalidated     = 1 << 1
	FlagWrittenComplete = 1 << 2
)

// flagsErased is the all-1s flags byte written when a record is first
// appended, before any commit or invalidation.
const flagsErased byte = 0xFF

var (
	// ErrPathTooLong is returned when a path exceeds MaxPath bytes.
	ErrPathTooLong = errors.New("record: path exceeds maximum length")
	// ErrCorrupt is returned by Decode when given fewer than HeaderSize
	// bytes (a CRC failure is reported via State, not an error, per
	// spec.md §7: CRC mismatch is never caller-visible).
	ErrCorrupt = errors.New("record: corrupt header")
)

// State classifies a decoded record (spec.md §4.2, §4.3).
type State int

const (
	// StateEndOfLog marks the frontier: no record has been written here.
	StateEndOfLog State = iota
	// StateTorn marks a record whose append was interrupted before commit.
	StateTorn
	// StateDead marks a record that is not live: invalidated, failed CRC,
	// or (from ReadAt) a name_len/data_len that runs out of bounds.
	StateDead
	// StateLive marks a valid, current record.
	StateLive
)

// Header is the decoded fixed-width portion of a record.
type Header struct {
	NameLen  uint16
	DataLen  uint16
	CRC      uint16
	Flags    uint8
	Reserved uint8
}

// Size returns the total on-disk footprint (header + name + NUL + payload +
// alignment padding) for a record with the given path length and payload
// length.
func Size(nameLen, dataLen int) int {
	raw := HeaderSize + nameLen + 1 + dataLen
	return align4(raw)
}

func align4(n int) int {
	return (n + 3) &^ 3
}

// Encode builds the full on-disk bytes for a new record, with flags set to
// the erased (uncommitted) state. The caller writes this body to the
// device at the frontier, then performs the separate single-byte commit
// write (CommitFlags) that is the actual commit point (spec.md §4.2).
func Encode(path string, payload []byte) ([]byte, error) {
	if len(path) > MaxPath {
		return nil, ErrPathTooLong
	}

	nameLen := len(path)
	dataLen := len(payload)
	total := Size(nameLen, dataLen)
	buf := make([]byte, total)

	binary.LittleEndian.PutUint16(buf[0:2], uint16(nameLen))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(dataLen))
	crc := checksum.Value(payload)
	binary.LittleEndian.PutUint16(buf[4:6], crc)
	buf[6] = flagsErased
	buf[7] = 0 // reserved

	nameOff := HeaderSize
	copy(buf[nameOff:nameOff+nameLen], path)
	buf[nameOff+nameLen] = 0 // NUL terminator

	payloadOff := nameOff + nameLen + 1
	copy(buf[payloadOff:payloadOff+dataLen], payload)

	// Padding bytes (if any) are left at their zero value; they are never
	// interpreted by the decoder, which only reads HeaderSize+nameLen+1+dataLen.
	return buf, nil
}

// CommitFlags returns the flags byte asserting "write complete, live, not
// invalidated": FlagWrittenComplete and FlagAlive cleared, FlagInvalidated
// left set (unset state = not invalidated).
func CommitFlags() byte {
	return flagsErased &^ (FlagWrittenComplete | FlagAlive)
}

// InvalidateFlags clears FlagInvalidated on top of the given current flags
// byte, asserting that this record has been superseded or deleted.
func InvalidateFlags(current byte) byte {
	return current &^ FlagInvalidated
}

// Decode interprets a header already read from the device (exactly
// HeaderSize bytes). It does not validate CRC or read the payload;
// callers needing the live/dead distinction should read the payload and
// call Classify, as ReadAt does.
func Decode(header []byte) (Header, error) {
	if len(header) < HeaderSize {
		return Header{}, ErrCorrupt
	}
	h := Header{
		NameLen:  binary.LittleEndian.Uint16(header[0:2]),
		DataLen:  binary.LittleEndian.Uint16(header[2:4]),
		CRC:      binary.LittleEndian.Uint16(header[4:6]),
		Flags:    header[6],
		Reserved: header[7],
	}
	return h, nil
}

// Classify determines the State of a fully-read record (header + payload),
// applying the decode rules of spec.md §4.2:
//   - written_complete==1 (bit set) -> torn
//   - invalidated==0 (bit cleared)  -> dead
//   - CRC mismatch                  -> dead (I3)
//   - otherwise                     -> live
func Classify(h Header, payload []byte) State {
	if h.Flags&FlagWrittenComplete != 0 {
		return StateTorn
	}
	if h.Flags&FlagInvalidated == 0 {
		return StateDead
	}
	if checksum.Value(payload) != h.CRC {
		return StateDead
	}
	return StateLive
}
