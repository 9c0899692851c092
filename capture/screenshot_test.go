package capture

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/refresh/texture"
)

// gradient builds a deterministic RGBA test card.
func gradient(w, h int) []byte {
	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			pix[i+0] = uint8(x * 255 / max(w-1, 1))
			pix[i+1] = uint8(y * 255 / max(h-1, 1))
			pix[i+2] = uint8((x + y) % 256)
			pix[i+3] = 255
		}
	}
	return pix
}

func TestTGARoundTrip(t *testing.T) {
	const w, h = 17, 9
	src := gradient(w, h)

	var buf bytes.Buffer
	require.NoError(t, WriteTGA(&buf, src, w, h))

	// Decode through the engine's own TGA reader; uncompressed must be
	// bit-exact.
	got, gw, gh, err := texture.DecodeTGA(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, w, gw)
	assert.Equal(t, h, gh)
	assert.Equal(t, src, got)
}

func TestPNGRoundTrip(t *testing.T) {
	const w, h = 8, 8
	src := gradient(w, h)

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, src, w, h))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	r, g, b, _ := img.At(7, 0).RGBA()
	assert.Equal(t, uint32(255), r>>8)
	assert.Equal(t, uint32(0), g>>8)
	assert.Equal(t, uint32(7), b>>8)
}

func TestJPEGNearLossless(t *testing.T) {
	const w, h = 16, 16
	// Flat color: JPEG at quality >= 85 stays within 1 LSB... flat blocks
	// land much closer, keep the bound loose for chroma subsampling.
	src := make([]byte, w*h*4)
	for i := 0; i < len(src); i += 4 {
		src[i], src[i+1], src[i+2], src[i+3] = 120, 130, 140, 255
	}
	var buf bytes.Buffer
	require.NoError(t, WriteJPEG(&buf, src, w, h, 90))
	img, err := jpeg.Decode(&buf)
	require.NoError(t, err)
	r, g, b, _ := img.At(8, 8).RGBA()
	assert.InDelta(t, 120, float64(r>>8), 2)
	assert.InDelta(t, 130, float64(g>>8), 2)
	assert.InDelta(t, 140, float64(b>>8), 2)
}

func TestNextFreePathNaming(t *testing.T) {
	dir := t.TempDir()
	// quake00..quake04 exist: the next is quake05.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(
			filepath.Join(dir, fmt.Sprintf("quake%02d.tga", i)), []byte{0}, 0o644))
	}
	path, err := NextFreePath(dir, FormatTGA)
	require.NoError(t, err)
	assert.Equal(t, "quake05.tga", filepath.Base(path))
}

func TestNextFreePathExhausted(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 100; i++ {
		require.NoError(t, os.WriteFile(
			filepath.Join(dir, fmt.Sprintf("quake%02d.tga", i)), []byte{0}, 0o644))
	}
	_, err := NextFreePath(dir, FormatTGA)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "couldn't create a file")

	// The failed lookup must not leave a file behind.
	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 100)
}

func TestSaveWritesFirstFreeSlot(t *testing.T) {
	gamedir := t.TempDir()
	path, err := Save(gamedir, FormatTGA, 0, gradient(4, 4), 4, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, "quake00.tga", filepath.Base(path))

	path, err = Save(gamedir, FormatTGA, 0, gradient(4, 4), 4, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, "quake01.tga", filepath.Base(path))
}

func TestInverseGamma(t *testing.T) {
	// Identity forward table inverts to identity.
	var forward [256]uint8
	for i := range forward {
		forward[i] = uint8(i)
	}
	inv := BuildInverseGammaTable(&forward)
	for i := range inv {
		assert.Equal(t, uint8(i), inv[i])
	}

	pix := []byte{10, 20, 30, 255}
	ApplyInverseGamma(pix, &inv)
	assert.Equal(t, []byte{10, 20, 30, 255}, pix)

	ApplyInverseGamma(pix, nil) // nil table is a no-op
	assert.Equal(t, []byte{10, 20, 30, 255}, pix)
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatPNG, ParseFormat("png"))
	assert.Equal(t, FormatJPEG, ParseFormat("jpeg"))
	assert.Equal(t, FormatJPEG, ParseFormat("jpg"))
	assert.Equal(t, FormatTGA, ParseFormat("tga"))
	assert.Equal(t, FormatTGA, ParseFormat("bmp"), "unknown formats fall back to tga")
}
