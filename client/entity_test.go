package client

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(num int, st EntityState) []NumberedEntity {
	return []NumberedEntity{{Number: num, State: st}}
}

func TestInterpolationExact(t *testing.T) {
	s := NewState()
	s.ApplySnapshot(100, snap(1, EntityState{Origin: mgl32.Vec3{0, 0, 0}}))
	s.ApplySnapshot(200, snap(1, EntityState{Origin: mgl32.Vec3{100, 0, 0}}))

	re, ok := s.ResolveSlot(1, 150, Config{})
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{50, 0, 0}, re.Origin, "midpoint must be exact")

	re, _ = s.ResolveSlot(1, 100, Config{})
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, re.Origin)
	re, _ = s.ResolveSlot(1, 200, Config{})
	assert.Equal(t, mgl32.Vec3{100, 0, 0}, re.Origin)
}

func TestExtrapolationCap(t *testing.T) {
	s := NewState()
	s.ApplySnapshot(100, snap(1, EntityState{Origin: mgl32.Vec3{0, 0, 0}, Velocity: mgl32.Vec3{200, 0, 0}}))
	s.ApplySnapshot(200, snap(1, EntityState{Origin: mgl32.Vec3{100, 0, 0}, Velocity: mgl32.Vec3{200, 0, 0}}))

	cfg := Config{Extrapolate: true, ExtrapolateMaxMs: 50}
	re, ok := s.ResolveSlot(1, 260, cfg)
	require.True(t, ok)
	// 60 ms past the snapshot, capped to 50 ms: 100 + 200 * 0.05.
	assert.Equal(t, mgl32.Vec3{110, 0, 0}, re.Origin)
}

func TestExtrapolateMaxZeroDisables(t *testing.T) {
	s := NewState()
	s.ApplySnapshot(100, snap(1, EntityState{Origin: mgl32.Vec3{0, 0, 0}}))
	s.ApplySnapshot(200, snap(1, EntityState{Origin: mgl32.Vec3{100, 0, 0}, Velocity: mgl32.Vec3{200, 0, 0}}))

	cfg := Config{Extrapolate: true, ExtrapolateMaxMs: 0}
	re, _ := s.ResolveSlot(1, 260, cfg)
	assert.Equal(t, mgl32.Vec3{100, 0, 0}, re.Origin, "cl_extrapolate_max 0 must hold the last position")
}

func TestDeterminism(t *testing.T) {
	build := func() *State {
		s := NewState()
		s.ApplySnapshot(100, snap(3, EntityState{Origin: mgl32.Vec3{1, 2, 3}, Angles: mgl32.Vec3{10, 170, 0}}))
		s.ApplySnapshot(200, snap(3, EntityState{Origin: mgl32.Vec3{-7, 0.25, 9}, Angles: mgl32.Vec3{-10, -170, 5}}))
		return s
	}
	a, _ := build().ResolveSlot(3, 133, Config{})
	b, _ := build().ResolveSlot(3, 133, Config{})
	assert.Equal(t, a, b, "identical inputs must resolve bit-identically")
}

func TestLifecycle(t *testing.T) {
	s := NewState()
	s.ApplySnapshot(100, snap(5, EntityState{}))
	assert.True(t, s.Active(5))

	// Absent for one snapshot: destroyed.
	s.ApplySnapshot(200, nil)
	assert.False(t, s.Active(5))
	_, ok := s.ResolveSlot(5, 250, Config{})
	assert.False(t, ok)

	// Reappearing recreates from scratch; no stale interpolation history.
	s.ApplySnapshot(300, snap(5, EntityState{Origin: mgl32.Vec3{9, 9, 9}}))
	re, ok := s.ResolveSlot(5, 300, Config{})
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{9, 9, 9}, re.Origin)
}

func TestCubicInterpNeedsFourSnapshots(t *testing.T) {
	s := NewState()
	cfg := Config{CubicInterp: true}

	s.ApplySnapshot(100, snap(1, EntityState{Origin: mgl32.Vec3{0, 0, 0}}))
	s.ApplySnapshot(200, snap(1, EntityState{Origin: mgl32.Vec3{100, 0, 0}}))
	re, _ := s.ResolveSlot(1, 150, cfg)
	assert.Equal(t, mgl32.Vec3{50, 0, 0}, re.Origin, "falls back to linear with short history")

	s.ApplySnapshot(300, snap(1, EntityState{Origin: mgl32.Vec3{200, 0, 0}}))
	s.ApplySnapshot(400, snap(1, EntityState{Origin: mgl32.Vec3{300, 0, 0}}))
	re, _ = s.ResolveSlot(1, 350, cfg)
	// On a straight constant-velocity path Catmull-Rom reproduces the line.
	assert.InDelta(t, 250, re.Origin[0], 0.001)
	assert.InDelta(t, 0, re.Origin[1], 0.001)
}

func TestAngleWrap(t *testing.T) {
	// 170 -> -170 must go through 180, not backwards through 0.
	assert.InDelta(t, 175, lerpAngle(170, -170, 0.25), 1e-4)
	assert.InDelta(t, -175, lerpAngle(170, -170, 0.75), 1e-4)
	assert.InDelta(t, 0, lerpAngle(-10, 10, 0.5), 1e-4)
}

func TestBlendAnglesShortestArc(t *testing.T) {
	q := blendAngles(mgl32.Vec3{0, 170, 0}, mgl32.Vec3{0, -170, 0}, 0.5)
	// Halfway between 170 and -170 over the wrap is 180 yaw.
	want := anglesToQuat(mgl32.Vec3{0, 180, 0})
	if q.Dot(want) < 0 {
		want = want.Scale(-1)
	}
	assert.InDelta(t, 1, float64(q.Dot(want)), 1e-4)
}

func TestAnimFrontLerp(t *testing.T) {
	s := NewState()
	s.ApplySnapshot(100, snap(1, EntityState{Frame: 0}))
	s.ApplySnapshot(200, snap(1, EntityState{Frame: 1}))

	re, _ := s.ResolveSlot(1, 250, Config{})
	assert.Equal(t, 1, re.Frame)
	assert.Equal(t, 0, re.OldFrame)
	assert.InDelta(t, 0.5, re.FrontLerp, 1e-5)

	// Past one frame duration without AnimContinue: clamped at 1.
	re, _ = s.ResolveSlot(1, 400, Config{})
	assert.InDelta(t, 1, re.FrontLerp, 1e-5)
	assert.Equal(t, 1, re.Frame)

	// With AnimContinue the clock keeps stepping frames.
	re, _ = s.ResolveSlot(1, 400, Config{AnimContinue: true})
	assert.Equal(t, 3, re.Frame)
	assert.Equal(t, 2, re.OldFrame)
}

func TestPredictionErrorFade(t *testing.T) {
	var p PredictionError
	predicted := mgl32.Vec3{10, 0, 0}
	authoritative := mgl32.Vec3{14, 0, 0}

	p.Reconcile(authoritative, predicted, 1000)

	// At the moment of reconciliation the render position is authoritative.
	assert.Equal(t, mgl32.Vec3{14, 0, 0}, p.Corrected(predicted, 1000))
	// Halfway through the fade.
	assert.Equal(t, mgl32.Vec3{12, 0, 0}, p.Corrected(predicted, 1050))
	// Fully faded.
	assert.Equal(t, mgl32.Vec3{10, 0, 0}, p.Corrected(predicted, 1100))
	assert.Equal(t, mgl32.Vec3{10, 0, 0}, p.Corrected(predicted, 2000))
}

func TestDLightLifetime(t *testing.T) {
	s := NewDLightSet()
	s.BeginFrame(1)
	s.Add(mgl32.Vec3{0, 0, 0}, 200, mgl32.Vec3{1, 0.8, 0.2})
	assert.Len(t, s.Live(), 1)

	// Not refreshed: gone next frame.
	s.BeginFrame(2)
	assert.Empty(t, s.Live())

	s.Add(mgl32.Vec3{1, 1, 1}, 100, mgl32.Vec3{1, 1, 1})
	gpu := s.GPU()
	require.Len(t, gpu, 1)
	assert.Equal(t, float32(100), gpu[0].Position[3])
}

func TestParticleClasses(t *testing.T) {
	ps := NewParticleSystem()
	ps.Spawn(Particle{Class: ParticleFire, Color: [4]float32{1, 0.5, 0, 1}})
	ps.Spawn(Particle{Class: ParticleBlood, Color: [4]float32{0.6, 0, 0, 1}})
	ps.Spawn(Particle{Class: ParticleBlood, Color: [4]float32{0.6, 0, 0, 1}})

	inst := ps.Instances()
	assert.Len(t, inst[ParticleFire], 1)
	assert.Len(t, inst[ParticleBlood], 2)
	assert.Empty(t, inst[ParticleSmoke])
	assert.Equal(t, ParticleFire.Params().Size, inst[ParticleFire][0].Size)

	// Fire fades at 1.6 alpha/sec and blood at 1.0 alpha/sec: after one
	// second both have reached zero alpha and are dead.
	ps.Step(1.0)
	assert.Equal(t, 0, ps.Count())
}

func TestBlendFlashDecays(t *testing.T) {
	var b Blend
	b.Flash(1, 0, 0, 0.8, 0.4)

	v := b.Step(0.2)
	assert.InDelta(t, 0.4, v[3], 1e-4)
	assert.Equal(t, float32(1), v[0])

	v = b.Step(0.3)
	assert.Zero(t, v[3], "tween finished")

	b.SetTint(0, 0.3, 0.6, 0.5)
	v = b.Step(0.016)
	assert.Equal(t, [4]float32{0, 0.3, 0.6, 0.5}, v)
}
