package device

// windowed re-bases a Device so offset 0 in the returned Device corresponds
// to offset start in the underlying one, letting the filesystem region
// begin partway into a larger device shared with other save data
// (spec.md §3: "D[start..C)").
type windowed struct {
	dev   Device
	start int
}

// Window returns a Device exposing only dev's bytes from start onward. A
// start of 0 returns dev unchanged.
func Window(dev Device, start int) Device {
	if start == 0 {
		return dev
	}
	return &windowed{dev: dev, start: start}
}

func (w *windowed) ReadAt(dst []byte, offset int) error {
	return w.dev.ReadAt(dst, offset+w.start)
}

func (w *windowed) WriteAt(src []byte, offset int) error {
	return w.dev.WriteAt(src, offset+w.start)
}

// Erase fills only the windowed range with 0xFF. The underlying Device's
// own Erase() is never called, since on a shared device it would destroy
// bytes before start that belong to other save data; a host ABI whose
// erase_save_sector() already targets a dedicated region should be wired
// in with start 0 instead, where Window is a no-op and the real primitive
// is used directly.
func (w *windowed) Erase() error {
	buf := make([]byte, w.Capacity())
	for i := range buf {
		buf[i] = 0xFF
	}
	return w.dev.WriteAt(buf, w.start)
}

func (w *windowed) Capacity() int {
	return w.dev.Capacity() - w.start
}
