package refresh

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCvarGetAndSet(t *testing.T) {
	r := NewCvarRegistry(NewNopLogger())

	v := r.Get("r_bloom", "1", CvarArchive)
	assert.Equal(t, float32(1), v.Value)
	assert.True(t, v.Modified)

	r.Set("r_bloom", "0")
	assert.Equal(t, float32(0), v.Value)
	assert.Equal(t, "0", v.String)

	// Re-registration keeps the live value and merges flags.
	again := r.Get("r_bloom", "1", CvarLatch)
	assert.Same(t, v, again)
	assert.Equal(t, "0", again.String)
	assert.NotZero(t, again.Flags&CvarArchive)
	assert.NotZero(t, again.Flags&CvarLatch)
}

func TestCvarNoSet(t *testing.T) {
	r := NewCvarRegistry(NewNopLogger())
	v := r.Get("vk_strings", "ok", CvarNoSet)
	r.Set("vk_strings", "nope")
	assert.Equal(t, "ok", v.String)
}

func TestCvarLatch(t *testing.T) {
	r := NewCvarRegistry(NewNopLogger())
	v := r.Get("vk_mode", "3", CvarLatch)

	r.Set("vk_mode", "5")
	assert.Equal(t, "3", v.String, "latched write must not apply immediately")
	assert.Equal(t, float32(3), v.Value)

	r.ApplyLatched()
	assert.Equal(t, "5", v.String)
	assert.Equal(t, float32(5), v.Value)
	assert.True(t, v.Modified)
}

func TestCvarDefaultsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "refresh.toml")
	require.NoError(t, os.WriteFile(path, []byte("r_fsr_scale = 0.75\nvk_screenshot_format = \"png\"\nr_fxaa = 1\n"), 0o644))

	r := NewCvarRegistry(NewNopLogger())
	require.NoError(t, r.LoadDefaults(path))

	assert.Equal(t, float32(0.75), r.Value("r_fsr_scale"))
	assert.Equal(t, "png", r.Lookup("vk_screenshot_format").String)
	assert.Equal(t, float32(1), r.Value("r_fxaa"))

	// Missing file is fine.
	require.NoError(t, r.LoadDefaults(filepath.Join(dir, "absent.toml")))
}
