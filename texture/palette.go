package texture

import (
	"math"

	"github.com/gekko3d/refresh"
)

// Palette is the 256-entry RGB table driving all 8-bit-input uploads.
// Index 255 is reserved as transparent.
type Palette [256][3]uint8

const TransparentIndex = 255

// LoadPalette reads pics/colormap.pcx and desaturates each entry so heavily
// saturated colors (lava, bright banners) keep most of their punch while the
// midtones calm down.
func LoadPalette(loader refresh.FileLoader) (*Palette, error) {
	const path = "pics/colormap.pcx"
	data, err := loader(path)
	if err != nil {
		return nil, &refresh.AssetError{Path: path, Err: err}
	}
	_, _, _, pal, err := DecodePCX(data)
	if err != nil {
		return nil, &refresh.AssetError{Path: path, Err: err}
	}
	if pal == nil {
		return nil, refresh.MalformedAsset(path, "colormap has no palette")
	}

	var p Palette
	for i := 0; i < 256; i++ {
		r, g, b := pal[i*3], pal[i*3+1], pal[i*3+2]
		p[i] = desaturate(r, g, b)
	}
	return &p, nil
}

// desaturate pulls a color toward its gray axis by a factor scaled off the
// largest gun delta: sat = 1 - (delta/255) * 0.25.
func desaturate(r, g, b uint8) [3]uint8 {
	maxc := max(r, max(g, b))
	minc := min(r, min(g, b))
	delta := float32(maxc - minc)
	sat := 1 - (delta/255)*0.25
	gray := (float32(r) + float32(g) + float32(b)) / 3

	mix := func(c uint8) uint8 {
		v := gray + (float32(c)-gray)*sat
		if v > 255 {
			v = 255
		}
		if v < 0 {
			v = 0
		}
		return uint8(v)
	}
	return [3]uint8{mix(r), mix(g), mix(b)}
}

// BuildIntensityTable scales the 0..255 ramp by intensity, saturating.
func BuildIntensityTable(intensity float32) [256]uint8 {
	if intensity < 1 {
		intensity = 1
	}
	var t [256]uint8
	for i := range t {
		v := float32(i) * intensity
		if v > 255 {
			v = 255
		}
		t[i] = uint8(v)
	}
	return t
}

// BuildGammaTable maps the ramp through pow(x, 1/gamma).
func BuildGammaTable(gamma float32) [256]uint8 {
	if gamma <= 0 {
		gamma = 1
	}
	var t [256]uint8
	for i := range t {
		v := 255 * math.Pow(float64(i)/255, float64(1/gamma))
		if v > 255 {
			v = 255
		}
		t[i] = uint8(v)
	}
	return t
}
