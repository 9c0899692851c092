package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSwapStateMachine(t *testing.T) {
	s := SwapUninitialized
	s = NextSwapState(s, EvConfigured)
	assert.Equal(t, SwapReady, s)

	// Normal frame.
	s = NextSwapState(s, EvAcquired)
	assert.Equal(t, SwapPresenting, s)
	s = NextSwapState(s, EvPresented)
	assert.Equal(t, SwapReady, s)

	// Stale surface on acquire.
	s = NextSwapState(s, EvAcquireFailed)
	assert.Equal(t, SwapRecreate, s)
	s = NextSwapState(s, EvRecreated)
	assert.Equal(t, SwapReady, s)

	// Resize mid-present.
	s = NextSwapState(s, EvAcquired)
	s = NextSwapState(s, EvResized)
	assert.Equal(t, SwapRecreate, s)
	s = NextSwapState(s, EvRecreated)
	assert.Equal(t, SwapReady, s)

	// Irrelevant events do not move the machine.
	assert.Equal(t, SwapReady, NextSwapState(SwapReady, EvConfigured))
	assert.Equal(t, SwapUninitialized, NextSwapState(SwapUninitialized, EvAcquired))
}

func TestMipLevels(t *testing.T) {
	assert.Equal(t, 1, mipLevels(1, 1))
	assert.Equal(t, 5, mipLevels(16, 16))
	assert.Equal(t, 9, mipLevels(256, 128))
}

func TestHalveMip(t *testing.T) {
	// 2x2 solid blocks average exactly.
	src := []byte{
		0, 0, 0, 255, 100, 100, 100, 255,
		200, 200, 200, 255, 100, 100, 100, 255,
	}
	dst, w, h := halveMip(src, 2, 2)
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)
	assert.Equal(t, uint8(100), dst[0])
	assert.Equal(t, uint8(255), dst[3])

	// Odd dimensions clamp the sample window.
	dst, w, h = halveMip(make([]byte, 3*1*4), 3, 1)
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)
	assert.Len(t, dst, 4)
}
