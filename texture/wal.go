package texture

import (
	"encoding/binary"
	"errors"
)

// WAL is a palettized wall texture with four pre-built mip offsets.
type walHeader struct {
	Name     [32]byte
	Width    uint32
	Height   uint32
	Offsets  [4]uint32
	AnimName [32]byte
	Flags    uint32
	Contents uint32
	Value    uint32
}

const walHeaderSize = 32 + 4 + 4 + 16 + 32 + 4 + 4 + 4

// DecodeWAL returns the mip-0 palette indices, dimensions, and the name of
// the next animation frame if the texture is animated.
func DecodeWAL(data []byte) (indices []byte, w, h int, animName string, err error) {
	if len(data) < walHeaderSize {
		return nil, 0, 0, "", errors.New("wal: short header")
	}
	var hdr walHeader
	hdr.Width = binary.LittleEndian.Uint32(data[32:])
	hdr.Height = binary.LittleEndian.Uint32(data[36:])
	for i := 0; i < 4; i++ {
		hdr.Offsets[i] = binary.LittleEndian.Uint32(data[40+i*4:])
	}
	copy(hdr.AnimName[:], data[56:88])

	w, h = int(hdr.Width), int(hdr.Height)
	if w <= 0 || h <= 0 || w > 4096 || h > 4096 {
		return nil, 0, 0, "", errors.New("wal: bad dimensions")
	}
	ofs := int(hdr.Offsets[0])
	if ofs <= 0 || ofs+w*h > len(data) {
		return nil, 0, 0, "", errors.New("wal: mip 0 out of bounds")
	}
	return data[ofs : ofs+w*h], w, h, cStr(hdr.AnimName[:]), nil
}

func cStr(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
