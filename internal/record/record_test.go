package record

import (
	"strings"
	"testing"

	"github.com/aalhour/flashfs/internal/device"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	body, err := Encode("/a.txt", []byte("hello"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	h, err := Decode(body[:HeaderSize])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if h.NameLen != 6 || h.DataLen != 5 {
		t.Fatalf("header = %+v, want NameLen=6 DataLen=5", h)
	}
	if h.Flags != flagsErased {
		t.Fatalf("Flags = %#x, want erased %#x before commit", h.Flags, flagsErased)
	}
}

func TestPathTooLongRejected(t *testing.T) {
	path := "/" + strings.Repeat("x", MaxPath)
	if _, err := Encode(path, nil); err != ErrPathTooLong {
		t.Fatalf("Encode with %d-byte path = %v, want ErrPathTooLong", len(path), err)
	}
}

func TestSizeIs4ByteAligned(t *testing.T) {
	for nameLen := 0; nameLen < 8; nameLen++ {
		for dataLen := 0; dataLen < 8; dataLen++ {
			size := Size(nameLen, dataLen)
			if size%4 != 0 {
				t.Fatalf("Size(%d,%d) = %d, not 4-byte aligned", nameLen, dataLen, size)
			}
			if size < HeaderSize+nameLen+1+dataLen {
				t.Fatalf("Size(%d,%d) = %d, smaller than unpadded content", nameLen, dataLen, size)
			}
		}
	}
}

func TestClassifyTornDeadLive(t *testing.T) {
	payload := []byte("data")
	h := Header{NameLen: 1, DataLen: uint16(len(payload)), CRC: 0, Flags: flagsErased}

	// Erased flags (never committed) -> torn, because written_complete bit
	// is still set.
	if got := Classify(h, payload); got != StateTorn {
		t.Fatalf("Classify(erased) = %v, want StateTorn", got)
	}

	// Committed: written_complete+alive cleared, invalidated still set, CRC
	// correct -> live.
	h.Flags = CommitFlags()
	h.CRC = 0 // wrong CRC on purpose first
	if got := Classify(h, payload); got != StateDead {
		t.Fatalf("Classify(wrong CRC) = %v, want StateDead (I3)", got)
	}

	h.CRC = crcOf(payload)
	if got := Classify(h, payload); got != StateLive {
		t.Fatalf("Classify(committed, correct CRC) = %v, want StateLive", got)
	}

	// Invalidate: clear the invalidated bit -> dead.
	h.Flags = InvalidateFlags(h.Flags)
	if got := Classify(h, payload); got != StateDead {
		t.Fatalf("Classify(invalidated) = %v, want StateDead", got)
	}
}

func TestReadAtEndOfLog(t *testing.T) {
	dev := device.NewMemDevice(64)
	d, err := ReadAt(dev, 0, dev.Capacity())
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if d.State != StateEndOfLog {
		t.Fatalf("State = %v, want StateEndOfLog on all-0xFF device", d.State)
	}
}

func TestReadAtRoundTripAfterCommit(t *testing.T) {
	dev := device.NewMemDevice(256)
	body, err := Encode("/a.txt", []byte("hello"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := dev.WriteAt(body, 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := dev.WriteAt([]byte{CommitFlags()}, FlagsOffset); err != nil {
		t.Fatalf("commit WriteAt: %v", err)
	}

	d, err := ReadAt(dev, 0, dev.Capacity())
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if d.State != StateLive {
		t.Fatalf("State = %v, want StateLive", d.State)
	}
	if d.Path != "/a.txt" || string(d.Payload) != "hello" {
		t.Fatalf("Path=%q Payload=%q, want /a.txt hello", d.Path, d.Payload)
	}
	if d.Size != len(body) {
		t.Fatalf("Size = %d, want %d", d.Size, len(body))
	}
}

func crcOf(payload []byte) uint16 {
	body, _ := Encode("/x", payload)
	h, _ := Decode(body[:HeaderSize])
	return h.CRC
}
