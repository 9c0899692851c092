package console

import (
	"fmt"
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// GlyphInfo locates one glyph in the atlas and carries its metrics.
type GlyphInfo struct {
	UVMin [2]float32
	UVMax [2]float32
	Size  [2]float32
	Off   [2]float32
	Adv   float32
}

// Font rasterizes the printable ASCII range into a single alpha atlas at
// load; the overlay pass samples it as a texture.
type Font struct {
	AtlasImage *image.Alpha
	AtlasSize  int
	Glyphs     map[rune]GlyphInfo
	LineHeight float32
}

// NewFont parses an OpenType font and packs glyphs 32..126 into a 512x512
// alpha atlas, rows advancing by the tallest glyph seen.
func NewFont(fontBytes []byte, size float64) (*Font, error) {
	f, err := opentype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create face: %w", err)
	}

	const atlasSize = 512
	atlas := image.NewAlpha(image.Rect(0, 0, atlasSize, atlasSize))
	glyphs := make(map[rune]GlyphInfo)

	x, y := 2, 2
	rowHeight := 0
	for r := rune(32); r < 127; r++ {
		bounds, mask, _, adv, ok := face.Glyph(fixed.Point26_6{}, r)
		if !ok {
			continue
		}
		w := mask.Bounds().Dx()
		h := mask.Bounds().Dy()

		if x+w >= atlasSize {
			x = 2
			y += rowHeight + 4
			rowHeight = 0
		}
		if y+h >= atlasSize {
			break
		}
		draw.Draw(atlas, image.Rect(x, y, x+w, y+h), mask, mask.Bounds().Min, draw.Src)

		glyphs[r] = GlyphInfo{
			UVMin: [2]float32{float32(x) / atlasSize, float32(y) / atlasSize},
			UVMax: [2]float32{float32(x+w) / atlasSize, float32(y+h) / atlasSize},
			Size:  [2]float32{float32(w), float32(h)},
			Off:   [2]float32{float32(bounds.Min.X), float32(bounds.Min.Y)},
			Adv:   float32(adv) / 64.0,
		}
		x += w + 4
		if h > rowHeight {
			rowHeight = h
		}
	}

	metrics := face.Metrics()
	return &Font{
		AtlasImage: atlas,
		AtlasSize:  atlasSize,
		Glyphs:     glyphs,
		LineHeight: float32(metrics.Height) / 64.0,
	}, nil
}

// AtlasRGBA expands the alpha atlas into white-on-transparent RGBA for the
// overlay texture upload.
func (f *Font) AtlasRGBA() []byte {
	n := f.AtlasSize * f.AtlasSize
	out := make([]byte, n*4)
	for i := 0; i < n; i++ {
		a := f.AtlasImage.Pix[i]
		out[i*4+0] = 255
		out[i*4+1] = 255
		out[i*4+2] = 255
		out[i*4+3] = a
	}
	return out
}

// Measure returns the advance width of a string in pixels at scale 1.
func (f *Font) Measure(s string) float32 {
	var w float32
	for _, r := range s {
		if g, ok := f.Glyphs[r]; ok {
			w += g.Adv
		}
	}
	return w
}

// CharsPerLine derives the console reflow width from the viewport width and
// a representative glyph advance.
func (f *Font) CharsPerLine(viewportWidth int) int {
	g, ok := f.Glyphs['M']
	if !ok || g.Adv <= 0 {
		return minLineWidth
	}
	n := int(float32(viewportWidth) / g.Adv)
	if n < minLineWidth {
		n = minLineWidth
	}
	return n
}
