package device

import "errors"

// HostABI adapts the four free-function device driver primitives named in
// spec.md §6 into a Device. This is the seam a real save-data driver (e.g.
// a GBA/handheld flash or battery-backed SRAM driver) plugs into; the core
// never depends on a concrete host, only on this interface.
type HostABI struct {
	WriteSaveData  func(src []byte, length, offset int) bool
	ReadSaveData   func(dst []byte, length, offset int) bool
	EraseSaveSector func() bool
	SaveCapacity    func() int
}

var (
	errWriteFailed = errors.New("device: write_save_data failed")
	errReadFailed  = errors.New("device: read_save_data failed")
	errEraseFailed = errors.New("device: erase_save_sector failed")
)

// ReadAt implements Device.
func (h *HostABI) ReadAt(dst []byte, offset int) error {
	if !h.ReadSaveData(dst, len(dst), offset) {
		return errReadFailed
	}
	return nil
}

// WriteAt implements Device.
func (h *HostABI) WriteAt(src []byte, offset int) error {
	if !h.WriteSaveData(src, len(src), offset) {
		return errWriteFailed
	}
	return nil
}

// Erase implements Device.
func (h *HostABI) Erase() error {
	if !h.EraseSaveSector() {
		return errEraseFailed
	}
	return nil
}

// Capacity implements Device.
func (h *HostABI) Capacity() int {
	return h.SaveCapacity()
}
