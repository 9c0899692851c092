package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaltonJitterBounded(t *testing.T) {
	seen := make(map[[2]float32]bool)
	for frame := 0; frame < 64; frame++ {
		j := HaltonJitter(frame)
		assert.GreaterOrEqual(t, j[0], float32(-0.5))
		assert.LessOrEqual(t, j[0], float32(0.5))
		assert.GreaterOrEqual(t, j[1], float32(-0.5))
		assert.LessOrEqual(t, j[1], float32(0.5))
		seen[j] = true
	}
	// The 16-frame sequence actually moves.
	assert.Greater(t, len(seen), 8)

	// Deterministic per frame index.
	assert.Equal(t, HaltonJitter(3), HaltonJitter(3))
	assert.Equal(t, HaltonJitter(5), HaltonJitter(5+16), "sequence wraps at 16")
}

func TestClampFrame(t *testing.T) {
	assert.Equal(t, 0, clampFrame(5, 0))
	assert.Equal(t, 0, clampFrame(-3, 10))
	assert.Equal(t, 7, clampFrame(7, 10))
	assert.Equal(t, 2, clampFrame(12, 10))
}
