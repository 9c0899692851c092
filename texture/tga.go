package texture

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DecodeTGA handles the subset of Targa files Quake-lineage assets use:
// types 1 (colormapped), 2 (truecolor), 3 (grayscale) and their RLE
// variants 9/10/11, at 8/15/16/24/32 bits, either vertical origin.
// Output is RGBA, top-left origin.
func DecodeTGA(data []byte) ([]byte, int, int, error) {
	const headerSize = 18
	if len(data) < headerSize {
		return nil, 0, 0, errors.New("tga: short header")
	}
	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	cmapFirst := int(binary.LittleEndian.Uint16(data[3:]))
	cmapLen := int(binary.LittleEndian.Uint16(data[5:]))
	cmapBits := int(data[7])
	w := int(binary.LittleEndian.Uint16(data[12:]))
	h := int(binary.LittleEndian.Uint16(data[14:]))
	depth := int(data[16])
	descriptor := data[17]
	topOrigin := descriptor&0x20 != 0

	if w <= 0 || h <= 0 || w > 8192 || h > 8192 {
		return nil, 0, 0, fmt.Errorf("tga: bad dimensions %dx%d", w, h)
	}

	rle := false
	baseType := imageType
	if imageType >= 9 && imageType <= 11 {
		rle = true
		baseType = imageType - 8
	}
	switch baseType {
	case 1, 2, 3:
	default:
		return nil, 0, 0, fmt.Errorf("tga: unsupported image type %d", imageType)
	}
	switch depth {
	case 8, 15, 16, 24, 32:
	default:
		return nil, 0, 0, fmt.Errorf("tga: unsupported depth %d", depth)
	}

	src := headerSize + idLength
	var cmap [][4]uint8
	if colorMapType == 1 {
		entryBytes := (cmapBits + 7) / 8
		need := cmapLen * entryBytes
		if src+need > len(data) {
			return nil, 0, 0, errors.New("tga: truncated color map")
		}
		cmap = make([][4]uint8, cmapFirst+cmapLen)
		for i := 0; i < cmapLen; i++ {
			cmap[cmapFirst+i] = decodePixel(data[src+i*entryBytes:], cmapBits)
		}
		src += need
	}

	bytesPerPixel := (depth + 7) / 8
	out := make([]byte, w*h*4)

	putRow := func(y int) int {
		if topOrigin {
			return y
		}
		return h - 1 - y
	}

	readPixel := func() ([4]uint8, error) {
		if src+bytesPerPixel > len(data) {
			return [4]uint8{}, errors.New("tga: truncated pixel data")
		}
		var px [4]uint8
		switch baseType {
		case 1:
			idx := int(data[src])
			if idx >= len(cmap) {
				return [4]uint8{}, errors.New("tga: color map index out of range")
			}
			px = cmap[idx]
		case 3:
			g := data[src]
			px = [4]uint8{g, g, g, 255}
		default:
			px = decodePixel(data[src:], depth)
		}
		src += bytesPerPixel
		return px, nil
	}

	for y := 0; y < h; y++ {
		row := putRow(y) * w * 4
		x := 0
		for x < w {
			run := 1
			raw := true
			if rle {
				if src >= len(data) {
					return nil, 0, 0, errors.New("tga: truncated RLE packet")
				}
				packet := data[src]
				src++
				run = int(packet&0x7f) + 1
				raw = packet&0x80 == 0
			}
			if raw {
				for i := 0; i < run && x < w; i++ {
					px, err := readPixel()
					if err != nil {
						return nil, 0, 0, err
					}
					copy(out[row+x*4:], px[:])
					x++
				}
			} else {
				px, err := readPixel()
				if err != nil {
					return nil, 0, 0, err
				}
				for i := 0; i < run && x < w; i++ {
					copy(out[row+x*4:], px[:])
					x++
				}
			}
		}
	}
	return out, w, h, nil
}

func decodePixel(b []byte, depth int) [4]uint8 {
	switch depth {
	case 15, 16:
		v := binary.LittleEndian.Uint16(b)
		r := uint8((v >> 10) & 0x1f)
		g := uint8((v >> 5) & 0x1f)
		bl := uint8(v & 0x1f)
		return [4]uint8{r<<3 | r>>2, g<<3 | g>>2, bl<<3 | bl>>2, 255}
	case 24:
		return [4]uint8{b[2], b[1], b[0], 255}
	case 32:
		return [4]uint8{b[2], b[1], b[0], b[3]}
	default: // 8-bit truecolor entry
		return [4]uint8{b[0], b[0], b[0], 255}
	}
}
