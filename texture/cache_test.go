package texture

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/refresh"
)

// fakeUploader records uploads in memory.
type fakeUploader struct {
	uploads  int
	releases int
	live     map[int]bool
	next     int
	maxSize  int
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{live: make(map[int]bool), maxSize: 4096}
}

func (f *fakeUploader) UploadRGBA(label string, pix []byte, w, h int, mipmap bool) (TextureHandle, error) {
	if len(pix) != w*h*4 {
		return nil, fmt.Errorf("pixel buffer %d does not match %dx%d", len(pix), w, h)
	}
	f.uploads++
	f.next++
	f.live[f.next] = true
	return f.next, nil
}

func (f *fakeUploader) UpdateRGBA(handle TextureHandle, x, y, w, h int, pix []byte) error {
	if !f.live[handle.(int)] {
		return fmt.Errorf("update of dead handle %v", handle)
	}
	return nil
}

func (f *fakeUploader) Release(handle TextureHandle) {
	f.releases++
	delete(f.live, handle.(int))
}

func (f *fakeUploader) MaxTextureSize() int { return f.maxSize }

func grayPalette() *Palette {
	var p Palette
	for i := range p {
		p[i] = [3]uint8{uint8(i), uint8(i), uint8(i)}
	}
	return &p
}

func solid(w, h int, r, g, b, a uint8) []byte {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, b, a
	}
	return pix
}

func noFiles(string) ([]byte, error) { return nil, os.ErrNotExist }

func newTestCache(t *testing.T) (*Cache, *fakeUploader) {
	t.Helper()
	up := newFakeUploader()
	c, err := NewCache(refresh.NewNopLogger(), noFiles, up, grayPalette(), Config{})
	require.NoError(t, err)
	return c, up
}

func TestAlphaClassification(t *testing.T) {
	c, _ := newTestCache(t)

	opaque := solid(8, 8, 200, 100, 50, 255)
	img, err := c.UploadPic(opaque, 8, 8, ImageWall, "walls/opaque")
	require.NoError(t, err)
	assert.False(t, img.HasAlpha)

	translucent := solid(8, 8, 200, 100, 50, 255)
	translucent[3] = 128 // one pixel
	img, err = c.UploadPic(translucent, 8, 8, ImageWall, "walls/seethrough")
	require.NoError(t, err)
	assert.True(t, img.HasAlpha)
}

func TestSmallPicsUseScrap(t *testing.T) {
	c, _ := newTestCache(t)

	small, err := c.UploadPic(solid(24, 24, 1, 2, 3, 255), 24, 24, ImagePic, "pics/num_1")
	require.NoError(t, err)
	assert.True(t, small.Scrapped)
	assert.Less(t, small.SL, small.SH)
	assert.Less(t, small.TL, small.TH)

	// Either dimension at 64 disqualifies the atlas.
	wide, err := c.UploadPic(solid(64, 8, 1, 2, 3, 255), 64, 8, ImagePic, "pics/bar")
	require.NoError(t, err)
	assert.False(t, wide.Scrapped)

	// Non-pic types never go to the atlas.
	skin, err := c.UploadPic(solid(24, 24, 1, 2, 3, 255), 24, 24, ImageSkin, "players/grunt")
	require.NoError(t, err)
	assert.False(t, skin.Scrapped)
}

func TestScrapFullFallsBack(t *testing.T) {
	c, _ := newTestCache(t)

	// Fill both scrap pages with 63x63 blocks. The cyan placeholder pic
	// already sits in page 0's first skyline row, so 4x4 blocks fit on the
	// empty page and one fewer on page 0.
	for i := 0; i < 31; i++ {
		img, err := c.UploadPic(solid(63, 63, 9, 9, 9, 255), 63, 63, ImagePic, fmt.Sprintf("pics/fill%02d", i))
		require.NoError(t, err)
		assert.True(t, img.Scrapped, "pic %d should fit", i)
	}
	over, err := c.UploadPic(solid(63, 63, 9, 9, 9, 255), 63, 63, ImagePic, "pics/overflow")
	require.NoError(t, err)
	assert.False(t, over.Scrapped, "overflow pic must fall back to a dedicated image")
}

func TestSweepIsIdempotent(t *testing.T) {
	c, up := newTestCache(t)

	_, err := c.UploadPic(solid(16, 16, 1, 1, 1, 255), 16, 16, ImageWall, "walls/old")
	require.NoError(t, err)

	c.BeginRegistration()
	_, err = c.UploadPic(solid(16, 16, 2, 2, 2, 255), 16, 16, ImageWall, "walls/new")
	require.NoError(t, err)

	c.Sweep()
	countAfterFirst := c.Count()
	assert.Equal(t, 1, up.releases)

	c.Sweep()
	assert.Equal(t, countAfterFirst, c.Count(), "repeated sweep must be a no-op")
	assert.Equal(t, 1, up.releases)
}

func TestSweepKeepsPics(t *testing.T) {
	c, up := newTestCache(t)
	_, err := c.UploadPic(solid(32, 32, 1, 1, 1, 255), 32, 32, ImagePic, "pics/hud")
	require.NoError(t, err)
	c.BeginRegistration()
	c.Sweep()
	assert.Equal(t, 0, up.releases)
	_, ok := c.images["pics/hud"]
	assert.True(t, ok)
}

func TestFindMissingUsesPlaceholder(t *testing.T) {
	c, _ := newTestCache(t)

	img, err := c.Find("textures/missing.wal", ImageWall)
	assert.Error(t, err)
	assert.Same(t, c.NoTexture, img)

	pic, err := c.Find("pics/missing.pcx", ImagePic)
	assert.Error(t, err)
	assert.Same(t, c.NoPic, pic)
}

func TestFindRegistersSequence(t *testing.T) {
	c, _ := newTestCache(t)
	img, err := c.UploadPic(solid(16, 16, 1, 1, 1, 255), 16, 16, ImageWall, "walls/rock")
	require.NoError(t, err)

	c.BeginRegistration()
	found, err := c.Find("walls/rock", ImageWall)
	require.NoError(t, err)
	assert.Same(t, img, found)
	assert.Equal(t, c.RegistrationSequence(), found.RegSeq)
}

func TestNearestPOT(t *testing.T) {
	tests := []struct {
		in        int
		roundDown bool
		want      int
	}{
		{16, false, 16},
		{17, false, 16},   // nearer to 16 than 32
		{100, false, 128}, // nearer to 128 than 64
		{100, true, 64},
		{1, false, 1},
		{0, false, 1},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, nearestPOT(tc.in, tc.roundDown), "nearestPOT(%d, %v)", tc.in, tc.roundDown)
	}
}

func TestPicMipShrinksWalls(t *testing.T) {
	up := newFakeUploader()
	c, err := NewCache(refresh.NewNopLogger(), noFiles, up, grayPalette(), Config{PicMip: 1})
	require.NoError(t, err)

	img, err := c.UploadPic(solid(64, 64, 5, 5, 5, 255), 64, 64, ImageWall, "walls/big")
	require.NoError(t, err)
	assert.Equal(t, 32, img.UploadWidth)
	assert.Equal(t, 32, img.UploadHeight)
}
