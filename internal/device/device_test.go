package device

import "testing"

func TestMemDeviceErasedState(t *testing.T) {
	d := NewMemDevice(16)
	buf := make([]byte, 16)
	if err := d.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	for i, b := range buf {
		if b != 0xFF {
			t.Fatalf("byte %d = %#x, want 0xFF", i, b)
		}
	}
}

func TestMemDeviceWriteReadRoundTrip(t *testing.T) {
	d := NewMemDevice(16)
	want := []byte{1, 2, 3, 4}
	if err := d.WriteAt(want, 4); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	got := make([]byte, 4)
	if err := d.ReadAt(got, 4); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMemDeviceOutOfRange(t *testing.T) {
	d := NewMemDevice(8)
	if err := d.WriteAt([]byte{1, 2}, 7); err != ErrOutOfRange {
		t.Fatalf("WriteAt past end = %v, want ErrOutOfRange", err)
	}
	if err := d.ReadAt(make([]byte, 2), 7); err != ErrOutOfRange {
		t.Fatalf("ReadAt past end = %v, want ErrOutOfRange", err)
	}
}

func TestMemDeviceErase(t *testing.T) {
	d := NewMemDevice(8)
	_ = d.WriteAt([]byte{0, 0, 0}, 0)
	if err := d.Erase(); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	buf := make([]byte, 8)
	_ = d.ReadAt(buf, 0)
	for i, b := range buf {
		if b != 0xFF {
			t.Fatalf("byte %d = %#x after erase, want 0xFF", i, b)
		}
	}
}

func TestFaultDeviceTornWrite(t *testing.T) {
	base := NewMemDevice(16)
	fd := NewFaultDevice(base)
	fd.TearNextWriteAfter(2)

	payload := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	err := fd.WriteAt(payload, 0)
	if err != ErrInjectedTorn {
		t.Fatalf("WriteAt = %v, want ErrInjectedTorn", err)
	}

	got := make([]byte, 4)
	_ = base.ReadAt(got, 0)
	want := []byte{0xAA, 0xBB, 0xFF, 0xFF}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestFaultDeviceFailNextWrite(t *testing.T) {
	base := NewMemDevice(16)
	fd := NewFaultDevice(base)
	fd.FailNextWrite(1)

	if err := fd.WriteAt([]byte{1}, 0); err != ErrInjectedWriteFailure {
		t.Fatalf("WriteAt = %v, want ErrInjectedWriteFailure", err)
	}
	// Second write should succeed again.
	if err := fd.WriteAt([]byte{1}, 0); err != nil {
		t.Fatalf("WriteAt (2nd) = %v, want nil", err)
	}
}

func TestFaultDeviceInterruptedErase(t *testing.T) {
	base := NewMemDevice(16)
	_ = base.WriteAt([]byte{0, 0, 0, 0, 0, 0, 0, 0}, 0)
	fd := NewFaultDevice(base)
	fd.FailNextErase(4)

	if err := fd.Erase(); err != ErrInjectedEraseFailure {
		t.Fatalf("Erase = %v, want ErrInjectedEraseFailure", err)
	}
	got := base.Snapshot()
	for i := 0; i < 4; i++ {
		if got[i] != 0xFF {
			t.Fatalf("byte %d = %#x, want erased 0xFF", i, got[i])
		}
	}
	for i := 4; i < 8; i++ {
		if got[i] != 0 {
			t.Fatalf("byte %d = %#x, want stale 0", i, got[i])
		}
	}
}
