package model

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/refresh"
	"github.com/gekko3d/refresh/texture"
)

type nullUploader struct{ n int }

func (u *nullUploader) UploadRGBA(string, []byte, int, int, bool) (texture.TextureHandle, error) {
	u.n++
	return u.n, nil
}
func (u *nullUploader) UpdateRGBA(texture.TextureHandle, int, int, int, int, []byte) error {
	return nil
}
func (u *nullUploader) Release(texture.TextureHandle) {}
func (u *nullUploader) MaxTextureSize() int           { return 4096 }

func newTestCaches(t *testing.T, files map[string][]byte) *Cache {
	t.Helper()
	loader := func(path string) ([]byte, error) {
		if data, ok := files[path]; ok {
			return data, nil
		}
		return nil, os.ErrNotExist
	}
	var pal texture.Palette
	images, err := texture.NewCache(refresh.NewNopLogger(), loader, &nullUploader{}, &pal, texture.Config{})
	require.NoError(t, err)
	return NewCache(refresh.NewNopLogger(), loader, images)
}

func TestRegisterAndSweep(t *testing.T) {
	files := map[string][]byte{
		"models/test/tris.md2": buildMD2(t, md2Version),
	}
	c := newTestCaches(t, files)

	m, err := c.Register("models/test/tris.md2")
	require.NoError(t, err)
	assert.Equal(t, KindAlias, m.Kind)
	assert.Equal(t, 1, c.Count())

	// Next map does not touch the model; the sweep evicts it.
	c.BeginRegistration()
	c.Sweep()
	assert.Equal(t, 0, c.Count())

	// Sweep with no changes is a no-op.
	c.Sweep()
	assert.Equal(t, 0, c.Count())
}

func TestRegisterMissingReturnsPlaceholder(t *testing.T) {
	c := newTestCaches(t, nil)
	m, err := c.Register("models/gone.md2")
	assert.Error(t, err)
	assert.Same(t, c.NoModel, m)
	assert.Equal(t, KindPlaceholder, m.Kind)
	assert.Equal(t, 0, c.Count(), "placeholder must not enter the cache")
}

func TestRegisterTwiceReuses(t *testing.T) {
	files := map[string][]byte{
		"models/test/tris.md2": buildMD2(t, md2Version),
	}
	c := newTestCaches(t, files)
	a, err := c.Register("models/test/tris.md2")
	require.NoError(t, err)
	b, err := c.Register("models/test/tris.md2")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestRegisterKeepsTouchedAcrossMaps(t *testing.T) {
	files := map[string][]byte{
		"models/test/tris.md2": buildMD2(t, md2Version),
	}
	c := newTestCaches(t, files)
	_, err := c.Register("models/test/tris.md2")
	require.NoError(t, err)

	c.BeginRegistration()
	_, err = c.Register("models/test/tris.md2")
	require.NoError(t, err)
	c.Sweep()
	assert.Equal(t, 1, c.Count())
}
