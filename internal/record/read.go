package record

import "github.com/aalhour/flashfs/internal/device"

// Decoded is a fully read record: its header, path, payload, classified
// state, on-disk offset, and total footprint size.
type Decoded struct {
	Header  Header
	Path    string
	Payload []byte
	State   State
	Offset  int
	Size    int
}

// ReadAt reads and classifies the record at offset, bounded by regionEnd
// (the first byte past the filesystem region). It implements spec.md
// §4.2's Decode procedure including the "end of log" sentinel and the
// bounds validation that guards against a corrupt name_len/data_len
// pointing past the region.
func ReadAt(dev device.Device, offset, regionEnd int) (Decoded, error) {
	hdrBuf := make([]byte, HeaderSize)
	if offset+HeaderSize > regionEnd {
		return Decoded{Offset: offset, State: StateEndOfLog}, nil
	}
	if err := dev.ReadAt(hdrBuf, offset); err != nil {
		return Decoded{}, err
	}
	h, err := Decode(hdrBuf)
	if err != nil {
		return Decoded{}, err
	}

	if h.NameLen == EndOfLog {
		return Decoded{Offset: offset, State: StateEndOfLog}, nil
	}

	if int(h.NameLen) > MaxPath {
		// Corrupt length field: treat as dead and let the caller advance
		// past only the header (no reliable size to skip further).
		return Decoded{Header: h, Offset: offset, Size: HeaderSize, State: StateDead}, nil
	}

	total := Size(int(h.NameLen), int(h.DataLen))
	if offset+total > regionEnd {
		return Decoded{Header: h, Offset: offset, Size: HeaderSize, State: StateDead}, nil
	}

	nameOff := offset + HeaderSize
	nameBuf := make([]byte, int(h.NameLen)+1)
	if err := dev.ReadAt(nameBuf, nameOff); err != nil {
		return Decoded{}, err
	}
	path := string(nameBuf[:h.NameLen])

	payloadOff := nameOff + int(h.NameLen) + 1
	payload := make([]byte, h.DataLen)
	if h.DataLen > 0 {
		if err := dev.ReadAt(payload, payloadOff); err != nil {
			return Decoded{}, err
		}
	}

	state := Classify(h, payload)
	return Decoded{
		Header:  h,
		Path:    path,
		Payload: payload,
		State:   state,
		Offset:  offset,
		Size:    total,
	}, nil
}
