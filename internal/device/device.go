// Package device provides the four-primitive raw byte-addressable storage
// abstraction the core filesystem consumes.
//
// The core never assumes anything about the medium beyond these four
// operations: read bytes, write bytes (with 1->0-only transitions on
// flash-like media), erase the entire region to 0xFF, and report capacity.
// Writes are assumed durable on return (§4.1); the core detects torn
// writes itself via the record protocol, not via the device.
//
// Reference: spec.md §4.1, §6.
package device

import "errors"

// ErrOutOfRange is returned when an operation addresses bytes beyond the
// device's capacity.
var ErrOutOfRange = errors.New("device: offset/length out of range")

// Device is the capability set the core requires from the host.
//
// Implementations need not be safe for concurrent use; the core calls them
// only from the caller's thread (§5).
type Device interface {
	// ReadAt copies len(dst) bytes from the device starting at offset.
	ReadAt(dst []byte, offset int) error

	// WriteAt commits src to the device starting at offset. On flash-like
	// media only 1->0 bit transitions are guaranteed; callers must erase
	// before writing 0->1.
	WriteAt(src []byte, offset int) error

	// Erase sets every byte of the device to 0xFF.
	Erase() error

	// Capacity returns the number of bytes available on the device.
	Capacity() int
}

// CriticalSection is the pair of hooks the core invokes around every write
// and erase, so a host that must disable interrupts during flash bus
// activity (§5) can do so even when the call is nested indirectly via
// compaction. Both default to no-ops.
type CriticalSection struct {
	Enter func()
	Exit  func()
}

// NoCriticalSection is a CriticalSection whose Enter/Exit do nothing, for
// hosts with no interrupt-disable requirement (e.g. tests, desktop builds).
var NoCriticalSection = CriticalSection{Enter: func() {}, Exit: func() {}}

// enter/exit tolerate a zero-value CriticalSection (nil fields).
func (c CriticalSection) enter() {
	if c.Enter != nil {
		c.Enter()
	}
}

func (c CriticalSection) exit() {
	if c.Exit != nil {
		c.Exit()
	}
}

// GuardedWrite runs WriteAt inside the critical section.
func GuardedWrite(d Device, cs CriticalSection, src []byte, offset int) error {
	cs.enter()
	defer cs.exit()
	return d.WriteAt(src, offset)
}

// GuardedErase runs Erase inside the critical section.
func GuardedErase(d Device, cs CriticalSection) error {
	cs.enter()
	defer cs.exit()
	return d.Erase()
}
