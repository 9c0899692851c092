package post

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Settings is the post chain's cvar snapshot, taken once per frame.
type Settings struct {
	SSAO          bool
	SSAOIntensity float32
	SSAORadius    float32

	Bloom          bool
	BloomIntensity float32
	BloomThreshold float32

	FSR          bool
	FSRScale     float32 // render scale in (0, 1]
	FSRSharpness float32 // RCAS in [0, 1]

	Temporal    bool
	TemporalBox float32 // neighborhood clamp scale, default 1.25

	FXAA bool

	Gamma float32
	Blend [4]float32 // polyblend
}

// PassID names each stage of the fixed dependency order.
type PassID int

const (
	PassSSAO PassID = iota
	PassBloomExtract
	PassBloomBlur
	PassBloomComposite
	PassEASU
	PassRCAS
	PassTemporal
	PassFXAA
	PassFinal
)

// Plan resolves which passes run this frame, in order. The final pass
// always runs: it applies polyblend and gamma even with everything else
// off. The FSR spatial path only engages below native render scale.
func Plan(s Settings) []PassID {
	var out []PassID
	if s.SSAO {
		out = append(out, PassSSAO)
	}
	if s.Bloom {
		out = append(out, PassBloomExtract, PassBloomBlur, PassBloomComposite)
	}
	if s.FSR && s.FSRScale > 0 && s.FSRScale < 1 {
		out = append(out, PassEASU)
		if s.FSRSharpness > 0 {
			out = append(out, PassRCAS)
		}
	}
	if s.Temporal {
		out = append(out, PassTemporal)
	}
	if s.FXAA {
		out = append(out, PassFXAA)
	}
	return append(out, PassFinal)
}

// SSAOKernelSize is the hemisphere sample count.
const SSAOKernelSize = 64

// SSAOKernel builds the deterministic hemisphere sample set: directions in
// the +z half space, scaled so samples cluster toward the center.
func SSAOKernel() [SSAOKernelSize][4]float32 {
	var kernel [SSAOKernelSize][4]float32
	// Fixed-seed LCG; the kernel must be identical across runs.
	state := uint32(0x9e3779b9)
	next := func() float32 {
		state = state*1664525 + 1013904223
		return float32(state>>8) / float32(1<<24)
	}
	for i := 0; i < SSAOKernelSize; i++ {
		v := mgl32.Vec3{
			next()*2 - 1,
			next()*2 - 1,
			next(), // hemisphere: z >= 0
		}
		if v.Len() == 0 {
			v = mgl32.Vec3{0, 0, 1}
		}
		v = v.Normalize().Mul(next())
		// Accelerating scale pulls samples toward the origin.
		scale := 0.1 + 0.9*float32(i*i)/float32(SSAOKernelSize*SSAOKernelSize)
		v = v.Mul(scale)
		kernel[i] = [4]float32{v[0], v[1], v[2], 0}
	}
	return kernel
}

// SSAONoise is the 4x4 random-rotation texture tiling the screen, RG
// holding a unit vector in the xy plane.
func SSAONoise() [16][4]float32 {
	var noise [16][4]float32
	state := uint32(0x517cc1b7)
	next := func() float32 {
		state = state*1664525 + 1013904223
		return float32(state>>8) / float32(1<<24)
	}
	for i := range noise {
		a := next() * 2 * math.Pi
		noise[i] = [4]float32{float32(math.Cos(float64(a))), float32(math.Sin(float64(a))), 0, 0}
	}
	return noise
}

// BloomMips is the fixed half-res chain depth.
const BloomMips = 4

// MipSize returns the bloom chain level dimensions.
func MipSize(w, h, level int) (int, int) {
	for i := 0; i < level; i++ {
		w = maxInt(1, w/2)
		h = maxInt(1, h/2)
	}
	return w, h
}

// RenderSize applies the FSR render scale to the output size.
func RenderSize(outW, outH int, s Settings) (int, int) {
	if !s.FSR || s.FSRScale <= 0 || s.FSRScale >= 1 {
		return outW, outH
	}
	return maxInt(1, int(float32(outW)*s.FSRScale)), maxInt(1, int(float32(outH)*s.FSRScale))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
