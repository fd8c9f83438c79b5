package scanner

import (
	"testing"

	"github.com/aalhour/flashfs/internal/device"
	"github.com/aalhour/flashfs/internal/index"
	"github.com/aalhour/flashfs/internal/logging"
	"github.com/aalhour/flashfs/internal/record"
	"github.com/aalhour/flashfs/internal/superblock"
)

func appendCommitted(t *testing.T, dev device.Device, offset int, path string, payload []byte) int {
	t.Helper()
	body, err := record.Encode(path, payload)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := dev.WriteAt(body, offset); err != nil {
		t.Fatalf("WriteAt body: %v", err)
	}
	if err := dev.WriteAt([]byte{record.CommitFlags()}, offset+record.FlagsOffset); err != nil {
		t.Fatalf("WriteAt commit: %v", err)
	}
	return offset + len(body)
}

func TestMountFreshRegion(t *testing.T) {
	dev := device.NewMemDevice(256)
	idx := index.New(8)
	res, err := Mount(dev, device.NoCriticalSection, idx, logging.Discard)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if res.Outcome != Initialized {
		t.Fatalf("Outcome = %v, want Initialized", res.Outcome)
	}
	if res.Frontier != superblock.Size {
		t.Fatalf("Frontier = %d, want %d", res.Frontier, superblock.Size)
	}
	if idx.Len() != 0 {
		t.Fatalf("Len = %d, want 0 on fresh mount", idx.Len())
	}
}

func TestMountAlreadyInitializedScansLiveRecords(t *testing.T) {
	dev := device.NewMemDevice(256)
	idx := index.New(8)
	if _, err := Mount(dev, device.NoCriticalSection, idx, logging.Discard); err != nil {
		t.Fatalf("first Mount: %v", err)
	}

	offset := appendCommitted(t, dev, superblock.Size, "/a.txt", []byte("hello"))
	appendCommitted(t, dev, offset, "/b.txt", []byte("world!"))

	idx2 := index.New(8)
	res, err := Mount(dev, device.NoCriticalSection, idx2, logging.Discard)
	if err != nil {
		t.Fatalf("second Mount: %v", err)
	}
	if res.Outcome != AlreadyInitialized {
		t.Fatalf("Outcome = %v, want AlreadyInitialized", res.Outcome)
	}
	if idx2.Len() != 2 {
		t.Fatalf("Len = %d, want 2", idx2.Len())
	}
	loc, ok := idx2.Lookup("/a.txt")
	if !ok || loc.Length != 5 {
		t.Fatalf("Lookup(/a.txt) = %+v, %v", loc, ok)
	}
	loc, ok = idx2.Lookup("/b.txt")
	if !ok || loc.Length != 6 {
		t.Fatalf("Lookup(/b.txt) = %+v, %v", loc, ok)
	}
}

func TestMountVersionMismatchReformats(t *testing.T) {
	dev := device.NewMemDevice(256)
	sb := superblock.Superblock{Magic: superblock.Magic, Version: superblock.Version + 1}
	if err := dev.WriteAt(superblock.Encode(sb), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	// Pollute the rest of the region so a reformat is observable.
	if err := dev.WriteAt([]byte{0x00, 0x00}, superblock.Size); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	idx := index.New(8)
	res, err := Mount(dev, device.NoCriticalSection, idx, logging.Discard)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if res.Outcome != Initialized {
		t.Fatalf("Outcome = %v, want Initialized on version mismatch", res.Outcome)
	}

	buf := make([]byte, 4)
	if err := dev.ReadAt(buf, superblock.Size); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	for _, b := range buf {
		if b != 0xFF {
			t.Fatalf("region past superblock not erased: %x", buf)
		}
	}
}

func TestMountFailsOnGarbageSuperblock(t *testing.T) {
	dev := device.NewMemDevice(256)
	if err := dev.WriteAt([]byte{0x01, 0x02, 0x03, 0x04}, 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	idx := index.New(8)
	_, err := Mount(dev, device.NoCriticalSection, idx, logging.Discard)
	if err != ErrMountFailed {
		t.Fatalf("Mount = %v, want ErrMountFailed", err)
	}
}

func TestMountReportsCompactionInProgress(t *testing.T) {
	dev := device.NewMemDevice(256)
	sb := superblock.Superblock{
		Magic:                superblock.Magic,
		Version:              superblock.Version,
		CompactionInProgress: true,
		CompactionLiveBytes:  40,
	}
	if err := dev.WriteAt(superblock.Encode(sb), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	idx := index.New(8)
	res, err := Mount(dev, device.NoCriticalSection, idx, logging.Discard)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if !res.CompactionInProgress {
		t.Fatalf("CompactionInProgress = false, want true")
	}
	if res.CompactionLiveBytes != 40 {
		t.Fatalf("CompactionLiveBytes = %d, want 40", res.CompactionLiveBytes)
	}
}

func TestScanHealsDuplicateLiveRecord(t *testing.T) {
	dev := device.NewMemDevice(256)
	idx := index.New(8)
	if _, err := Mount(dev, device.NoCriticalSection, idx, logging.Discard); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	// Simulate a crash between committing the new record and invalidating
	// the old one: two live records for /a.txt.
	offset1 := appendCommitted(t, dev, superblock.Size, "/a.txt", []byte("v1"))
	appendCommitted(t, dev, offset1, "/a.txt", []byte("v2"))

	idx2 := index.New(8)
	res, err := Mount(dev, device.NoCriticalSection, idx2, logging.Discard)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if res.Outcome != AlreadyInitialized {
		t.Fatalf("Outcome = %v, want AlreadyInitialized", res.Outcome)
	}
	if idx2.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (duplicate healed, not two entries)", idx2.Len())
	}
	loc, ok := idx2.Lookup("/a.txt")
	if !ok || loc.Offset != offset1 {
		t.Fatalf("Lookup(/a.txt) = %+v, %v, want offset of the higher (second) record %d", loc, ok, offset1)
	}

	// Verify the lower-offset record was actually invalidated on disk, so
	// a third mount does not see two live records again.
	lower, err := record.ReadAt(dev, superblock.Size, dev.Capacity())
	if err != nil {
		t.Fatalf("ReadAt lower record: %v", err)
	}
	if lower.State != record.StateDead {
		t.Fatalf("lower record state = %v, want StateDead (healed on disk)", lower.State)
	}
	idx3 := index.New(8)
	if _, err := Mount(dev, device.NoCriticalSection, idx3, logging.Discard); err != nil {
		t.Fatalf("third Mount: %v", err)
	}
	if idx3.Len() != 1 {
		t.Fatalf("Len after re-mount = %d, want 1", idx3.Len())
	}
}

func TestScanSkipsTornRecord(t *testing.T) {
	dev := device.NewMemDevice(256)
	idx := index.New(8)
	if _, err := Mount(dev, device.NoCriticalSection, idx, logging.Discard); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	body, err := record.Encode("/torn.txt", []byte("xx"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Write the body but never clear written_complete: torn.
	if err := dev.WriteAt(body, superblock.Size); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	idx2 := index.New(8)
	res, err := Mount(dev, device.NoCriticalSection, idx2, logging.Discard)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if idx2.Len() != 0 {
		t.Fatalf("Len = %d, want 0 (torn record must not be visible)", idx2.Len())
	}
	if res.Frontier != superblock.Size+len(body) {
		t.Fatalf("Frontier = %d, want %d", res.Frontier, superblock.Size+len(body))
	}
}
