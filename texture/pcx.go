package texture

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DecodePCX decodes an 8-bit RLE PCX into palette indices plus the trailing
// 768-byte palette if present. Returns (indices, width, height, palette).
func DecodePCX(data []byte) ([]byte, int, int, []byte, error) {
	const headerSize = 128
	if len(data) < headerSize {
		return nil, 0, 0, nil, errors.New("pcx: short header")
	}
	if data[0] != 0x0a {
		return nil, 0, 0, nil, errors.New("pcx: bad manufacturer byte")
	}
	if data[2] != 1 {
		return nil, 0, 0, nil, errors.New("pcx: not RLE encoded")
	}
	if data[3] != 8 {
		return nil, 0, 0, nil, fmt.Errorf("pcx: %d bpp, want 8", data[3])
	}

	xmin := int(binary.LittleEndian.Uint16(data[4:]))
	ymin := int(binary.LittleEndian.Uint16(data[6:]))
	xmax := int(binary.LittleEndian.Uint16(data[8:]))
	ymax := int(binary.LittleEndian.Uint16(data[10:]))
	w := xmax - xmin + 1
	h := ymax - ymin + 1
	if w <= 0 || h <= 0 || w > 4096 || h > 4096 {
		return nil, 0, 0, nil, fmt.Errorf("pcx: bad dimensions %dx%d", w, h)
	}
	bytesPerLine := int(binary.LittleEndian.Uint16(data[66:]))
	if bytesPerLine < w {
		bytesPerLine = w
	}

	out := make([]byte, w*h)
	src := headerSize
	for y := 0; y < h; y++ {
		x := 0
		for x < bytesPerLine {
			if src >= len(data) {
				return nil, 0, 0, nil, errors.New("pcx: truncated image data")
			}
			b := data[src]
			src++
			run := 1
			if b&0xc0 == 0xc0 {
				run = int(b & 0x3f)
				if src >= len(data) {
					return nil, 0, 0, nil, errors.New("pcx: truncated run")
				}
				b = data[src]
				src++
			}
			for i := 0; i < run; i++ {
				if x < w {
					out[y*w+x] = b
				}
				x++
			}
		}
	}

	// A 256-color palette trails the image, marked by 0x0c.
	var pal []byte
	if len(data) >= src+769 || len(data) >= 769 {
		tail := len(data) - 769
		if data[tail] == 0x0c {
			pal = data[tail+1:]
		}
	}
	return out, w, h, pal, nil
}

// PCXToRGBA expands palette indices through pal. When transparent255 is set,
// index 255 maps to alpha 0 (UI pics and skies).
func PCXToRGBA(indices []byte, w, h int, pal *Palette, transparent255 bool) []byte {
	out := make([]byte, w*h*4)
	for i, idx := range indices {
		c := pal[idx]
		out[i*4+0] = c[0]
		out[i*4+1] = c[1]
		out[i*4+2] = c[2]
		if transparent255 && idx == TransparentIndex {
			out[i*4+3] = 0
		} else {
			out[i*4+3] = 255
		}
	}
	return out
}
