package capture

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
)

// Format selects the screenshot encoder, from vk_screenshot_format.
type Format string

const (
	FormatTGA  Format = "tga"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpg"
)

func ParseFormat(s string) Format {
	switch s {
	case "png":
		return FormatPNG
	case "jpg", "jpeg":
		return FormatJPEG
	default:
		return FormatTGA
	}
}

func (f Format) Ext() string { return string(f) }

// ApplyInverseGamma runs the read-back pixels through the inverse hardware
// gamma ramp so the file matches what was on screen.
func ApplyInverseGamma(rgba []byte, table *[256]uint8) {
	if table == nil {
		return
	}
	for i := 0; i < len(rgba); i += 4 {
		rgba[i+0] = table[rgba[i+0]]
		rgba[i+1] = table[rgba[i+1]]
		rgba[i+2] = table[rgba[i+2]]
	}
}

// BuildInverseGammaTable inverts a gamma ramp by searching the forward
// table for the nearest entry.
func BuildInverseGammaTable(forward *[256]uint8) [256]uint8 {
	var inv [256]uint8
	for v := 0; v < 256; v++ {
		best, bestDiff := 0, 256
		for i := 0; i < 256; i++ {
			d := int(forward[i]) - v
			if d < 0 {
				d = -d
			}
			if d < bestDiff {
				best, bestDiff = i, d
			}
		}
		inv[v] = uint8(best)
	}
	return inv
}

// WriteTGA encodes uncompressed type-2 Targa: 24-bit BGR, bottom-left
// origin, from top-down RGBA input.
func WriteTGA(w io.Writer, rgba []byte, width, height int) error {
	hdr := make([]byte, 18)
	hdr[2] = 2
	binary.LittleEndian.PutUint16(hdr[12:], uint16(width))
	binary.LittleEndian.PutUint16(hdr[14:], uint16(height))
	hdr[16] = 24
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	row := make([]byte, width*3)
	for y := height - 1; y >= 0; y-- {
		src := y * width * 4
		for x := 0; x < width; x++ {
			row[x*3+0] = rgba[src+x*4+2]
			row[x*3+1] = rgba[src+x*4+1]
			row[x*3+2] = rgba[src+x*4+0]
		}
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WritePNG encodes with the default filter heuristics at zlib level 6
// (the encoder's DefaultCompression).
func WritePNG(w io.Writer, rgba []byte, width, height int) error {
	img := &image.NRGBA{
		Pix:    rgba,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
	enc := &png.Encoder{CompressionLevel: png.DefaultCompression}
	return enc.Encode(w, img)
}

// WriteJPEG encodes RGB at the cvar-driven quality (1..100).
func WriteJPEG(w io.Writer, rgba []byte, width, height int, quality int) error {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	img := &image.NRGBA{
		Pix:    rgba,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

// NextFreePath scans scrnshot/quakeNN.ext for the first free NN in 0..99.
func NextFreePath(dir string, format Format) (string, error) {
	for i := 0; i < 100; i++ {
		path := filepath.Join(dir, fmt.Sprintf("quake%02d.%s", i, format.Ext()))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
	}
	return "", fmt.Errorf("couldn't create a file: all %s slots taken", format.Ext())
}

// Save picks the next free slot and encodes the pixels. No file is written
// when the slots are exhausted.
func Save(gamedir string, format Format, quality int, rgba []byte, width, height int, invGamma *[256]uint8) (string, error) {
	dir := filepath.Join(gamedir, "scrnshot")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path, err := NextFreePath(dir, format)
	if err != nil {
		return "", err
	}

	pix := rgba
	if invGamma != nil {
		pix = append([]byte(nil), rgba...)
		ApplyInverseGamma(pix, invGamma)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	switch format {
	case FormatPNG:
		err = WritePNG(f, pix, width, height)
	case FormatJPEG:
		err = WriteJPEG(f, pix, width, height, quality)
	default:
		err = WriteTGA(f, pix, width, height)
	}
	if err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	return path, f.Close()
}
