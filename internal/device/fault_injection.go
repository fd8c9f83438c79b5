package device

import "errors"

// FaultDevice wraps a Device and injects failures for crash-safety testing
// (spec.md P5: a subsequent mount must see either the prior state or the
// new state, never a mixture).
//
// Reference: grounded on internal/vfs's FaultInjectionFS wrapper pattern —
// per-call error injection flags plus a "torn write" mode that commits only
// a prefix of a write before returning an error, simulating a power loss
// mid-append.
type FaultDevice struct {
	base Device

	// failNextWrite, if > 0, causes the next N writes to fail outright
	// after committing zero bytes.
	failNextWrite int

	// tornAfterBytes, if >= 0, truncates the next write to commit only the
	// first tornAfterBytes bytes before returning ErrInjectedTorn. A value
	// of -1 disables torn-write injection.
	tornAfterBytes int
	tornArmed      bool

	// failNextErase, if true, causes the next Erase to fail after erasing
	// only eraseStopAt bytes (simulating an interrupted sector erase).
	failNextErase bool
	eraseStopAt   int
}

// ErrInjectedTorn is returned when a torn write is simulated.
var ErrInjectedTorn = errors.New("device: injected torn write")

// ErrInjectedWriteFailure is returned when a write failure is simulated.
var ErrInjectedWriteFailure = errors.New("device: injected write failure")

// ErrInjectedEraseFailure is returned when an erase failure is simulated.
var ErrInjectedEraseFailure = errors.New("device: injected erase failure")

// NewFaultDevice wraps base for fault injection.
func NewFaultDevice(base Device) *FaultDevice {
	return &FaultDevice{base: base, tornAfterBytes: -1}
}

// FailNextWrite arms n upcoming WriteAt calls to fail immediately.
func (f *FaultDevice) FailNextWrite(n int) {
	f.failNextWrite = n
}

// TearNextWriteAfter arms the next WriteAt call to commit only the first n
// bytes of its payload, then return ErrInjectedTorn. Used to simulate a
// crash mid-append at any byte offset of a single store call (P5).
func (f *FaultDevice) TearNextWriteAfter(n int) {
	f.tornAfterBytes = n
	f.tornArmed = true
}

// FailNextErase arms the next Erase call to stop after erasing stopAt
// bytes and return ErrInjectedEraseFailure, simulating an interrupted
// sector erase.
func (f *FaultDevice) FailNextErase(stopAt int) {
	f.failNextErase = true
	f.eraseStopAt = stopAt
}

// ReadAt implements Device.
func (f *FaultDevice) ReadAt(dst []byte, offset int) error {
	return f.base.ReadAt(dst, offset)
}

// WriteAt implements Device, applying any armed fault.
func (f *FaultDevice) WriteAt(src []byte, offset int) error {
	if f.failNextWrite > 0 {
		f.failNextWrite--
		return ErrInjectedWriteFailure
	}
	if f.tornArmed {
		f.tornArmed = false
		n := f.tornAfterBytes
		if n < 0 {
			n = 0
		}
		if n > len(src) {
			n = len(src)
		}
		if n > 0 {
			if err := f.base.WriteAt(src[:n], offset); err != nil {
				return err
			}
		}
		return ErrInjectedTorn
	}
	return f.base.WriteAt(src, offset)
}

// Erase implements Device, applying any armed fault.
func (f *FaultDevice) Erase() error {
	if f.failNextErase {
		f.failNextErase = false
		capacity := f.base.Capacity()
		stop := f.eraseStopAt
		if stop < 0 {
			stop = 0
		}
		if stop > capacity {
			stop = capacity
		}
		if stop > 0 {
			prefix := make([]byte, stop)
			for i := range prefix {
				prefix[i] = 0xFF
			}
			if err := f.base.WriteAt(prefix, 0); err != nil {
				return err
			}
		}
		return ErrInjectedEraseFailure
	}
	return f.base.Erase()
}

// Capacity implements Device.
func (f *FaultDevice) Capacity() int {
	return f.base.Capacity()
}
