package client

import (
	"github.com/gekko3d/refresh"
)

// Module installs the client-side world reconstruction: the entity state,
// particle and dlight pools, the frame clock, and the cl_* cvar surface.
type Module struct {
	Time      *Time
	Entities  *State
	Particles *ParticleSystem
	DLights   *DLightSet
	Blend     *Blend

	extrapolate    *refresh.Cvar
	extrapolateMax *refresh.Cvar
	cubicInterp    *refresh.Cvar
	animContinue   *refresh.Cvar
}

func (m *Module) Install(app *refresh.App, cmd *refresh.Commands) error {
	m.Time = NewTime()
	m.Entities = NewState()
	m.Particles = NewParticleSystem()
	m.DLights = NewDLightSet()
	m.Blend = &Blend{}

	m.extrapolate = cmd.Cvar("cl_extrapolate", "1", refresh.CvarArchive)
	m.extrapolateMax = cmd.Cvar("cl_extrapolate_max", "100", refresh.CvarArchive)
	m.cubicInterp = cmd.Cvar("cl_cubic_interp", "0", refresh.CvarArchive)
	m.animContinue = cmd.Cvar("cl_anim_continue", "1", refresh.CvarArchive)
	return nil
}

// Config snapshots the interpolation cvars for one render tick.
func (m *Module) Config() Config {
	return Config{
		Extrapolate:      m.extrapolate.Bool(),
		ExtrapolateMaxMs: float64(m.extrapolateMax.Value),
		CubicInterp:      m.cubicInterp.Bool(),
		AnimContinue:     m.animContinue.Bool(),
	}
}

// Resolve interpolates every active slot at render time, fanning out across
// the worker pool; slot resolution is write-disjoint by construction.
func (m *Module) Resolve(tMs float64, workers int, out []RenderEntity) []RenderEntity {
	cfg := m.Config()
	results := make([]RenderEntity, MaxEntities)
	active := make([]bool, MaxEntities)
	refresh.ParallelFor(workers, MaxEntities, func(i int) {
		if re, ok := m.Entities.ResolveSlot(i, tMs, cfg); ok {
			results[i] = re
			active[i] = true
		}
	})
	out = out[:0]
	for i := range results {
		if active[i] {
			out = append(out, results[i])
		}
	}
	return out
}
