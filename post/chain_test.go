package post

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanOrderFixed(t *testing.T) {
	s := Settings{
		SSAO: true, Bloom: true,
		FSR: true, FSRScale: 0.67, FSRSharpness: 0.3,
		Temporal: true, FXAA: true,
	}
	want := []PassID{
		PassSSAO,
		PassBloomExtract, PassBloomBlur, PassBloomComposite,
		PassEASU, PassRCAS,
		PassTemporal,
		PassFXAA,
		PassFinal,
	}
	assert.Equal(t, want, Plan(s))
}

func TestPlanMinimal(t *testing.T) {
	// Everything off still runs the final pass for polyblend and gamma.
	assert.Equal(t, []PassID{PassFinal}, Plan(Settings{}))
}

func TestPlanFSRNeedsSubNativeScale(t *testing.T) {
	s := Settings{FSR: true, FSRScale: 1.0, FSRSharpness: 0.5}
	assert.Equal(t, []PassID{PassFinal}, Plan(s), "scale 1 disables the spatial path")

	s.FSRScale = 0.5
	assert.Equal(t, []PassID{PassEASU, PassRCAS, PassFinal}, Plan(s))

	s.FSRSharpness = 0
	assert.Equal(t, []PassID{PassEASU, PassFinal}, Plan(s), "zero sharpness skips RCAS")
}

func TestSSAOKernelDeterministicHemisphere(t *testing.T) {
	a := SSAOKernel()
	b := SSAOKernel()
	assert.Equal(t, a, b, "kernel must be identical across runs")

	for i, v := range a {
		assert.GreaterOrEqual(t, v[2], float32(0), "sample %d below the hemisphere", i)
		l := v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
		assert.LessOrEqual(t, l, float32(1.0001), "sample %d outside the unit ball", i)
	}
}

func TestSSAONoiseUnitVectors(t *testing.T) {
	for i, n := range SSAONoise() {
		l := n[0]*n[0] + n[1]*n[1]
		assert.InDelta(t, 1, l, 1e-4, "noise %d not unit", i)
	}
}

func TestMipSize(t *testing.T) {
	w, h := MipSize(1280, 720, 1)
	assert.Equal(t, 640, w)
	assert.Equal(t, 360, h)
	w, h = MipSize(1280, 720, 4)
	assert.Equal(t, 80, w)
	assert.Equal(t, 45, h)
	w, h = MipSize(2, 2, 4)
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)
}

func TestRenderSize(t *testing.T) {
	w, h := RenderSize(1920, 1080, Settings{FSR: true, FSRScale: 0.5})
	assert.Equal(t, 960, w)
	assert.Equal(t, 540, h)

	w, h = RenderSize(1920, 1080, Settings{FSR: false, FSRScale: 0.5})
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)
}
