package client

import (
	"github.com/go-gl/mathgl/mgl32"
)

const MaxParticles = 4096

// ParticleClass selects a row of the draw-param table; classes replace the
// original's per-type virtual draw calls.
type ParticleClass int

const (
	ParticleDefault ParticleClass = iota
	ParticleFire
	ParticleSmoke
	ParticleBubble
	ParticleBlood

	numParticleClasses
)

// ClassParams are the per-class draw constants.
type ClassParams struct {
	Size     float32
	Additive bool
	Gravity  float32 // units/sec^2, negative floats upward
	FadeRate float32 // alpha per second
}

var classTable = [numParticleClasses]ClassParams{
	ParticleDefault: {Size: 1.0, Additive: false, Gravity: 80, FadeRate: 0.8},
	ParticleFire:    {Size: 1.6, Additive: true, Gravity: -20, FadeRate: 1.6},
	ParticleSmoke:   {Size: 2.4, Additive: false, Gravity: -12, FadeRate: 0.5},
	ParticleBubble:  {Size: 0.8, Additive: false, Gravity: -60, FadeRate: 0.3},
	ParticleBlood:   {Size: 1.2, Additive: false, Gravity: 120, FadeRate: 1.0},
}

func (c ParticleClass) Params() ClassParams {
	if c < 0 || c >= numParticleClasses {
		return classTable[ParticleDefault]
	}
	return classTable[c]
}

type Particle struct {
	Class    ParticleClass
	Origin   mgl32.Vec3
	Velocity mgl32.Vec3
	Color    [4]float32
}

// ParticleInstance matches the WGSL instance layout of the billboard pass:
// struct ParticleInstance { vec3 pos; float size; vec4 color; }
type ParticleInstance struct {
	Pos   [3]float32
	Size  float32
	Color [4]float32
}

// ParticleSystem integrates and expires particles on the CPU; the GPU only
// sees flat instance arrays, one per class.
type ParticleSystem struct {
	particles []Particle
}

func NewParticleSystem() *ParticleSystem {
	return &ParticleSystem{particles: make([]Particle, 0, MaxParticles)}
}

func (ps *ParticleSystem) Spawn(p Particle) {
	if len(ps.particles) >= MaxParticles {
		return
	}
	ps.particles = append(ps.particles, p)
}

// Step advances physics and fades alpha; fully faded particles die.
func (ps *ParticleSystem) Step(dt float64) {
	fdt := float32(dt)
	live := ps.particles[:0]
	for _, p := range ps.particles {
		params := p.Class.Params()
		p.Velocity[2] -= params.Gravity * fdt
		p.Origin = p.Origin.Add(p.Velocity.Mul(fdt))
		p.Color[3] -= params.FadeRate * fdt
		if p.Color[3] > 0 {
			live = append(live, p)
		}
	}
	ps.particles = live
}

func (ps *ParticleSystem) Count() int { return len(ps.particles) }

// Instances groups the live particles into per-class instance arrays, ready
// for one draw per class.
func (ps *ParticleSystem) Instances() [numParticleClasses][]ParticleInstance {
	var out [numParticleClasses][]ParticleInstance
	for _, p := range ps.particles {
		out[p.Class] = append(out[p.Class], ParticleInstance{
			Pos:   [3]float32{p.Origin[0], p.Origin[1], p.Origin[2]},
			Size:  p.Class.Params().Size,
			Color: p.Color,
		})
	}
	return out
}
