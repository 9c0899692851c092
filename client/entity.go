package client

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// MaxEntities is the slot count; snapshot entity numbers index into it.
	MaxEntities = 1024

	// snapshotHistory keeps enough states for Catmull-Rom interpolation.
	snapshotHistory = 4
)

// EntityState is one entity's authoritative state in a server snapshot.
type EntityState struct {
	Origin   mgl32.Vec3
	Angles   mgl32.Vec3 // degrees
	Velocity mgl32.Vec3 // units per second
	Model    int
	Skin     int
	Frame    int
	Effects  uint32
}

// NumberedEntity pairs a slot number with its state for snapshot delivery.
type NumberedEntity struct {
	Number int
	State  EntityState
}

// Config mirrors the interpolation cvars, sampled once per render tick so
// every slot resolves under the same settings.
type Config struct {
	Extrapolate      bool    // cl_extrapolate
	ExtrapolateMaxMs float64 // cl_extrapolate_max; 0 disables even with Extrapolate set
	CubicInterp      bool    // cl_cubic_interp
	AnimContinue     bool    // cl_anim_continue
	FrameDurMs       float64 // alias frame duration, 100 by default
}

func (c Config) frameDur() float64 {
	if c.FrameDurMs <= 0 {
		return 100
	}
	return c.FrameDurMs
}

type slot struct {
	active bool
	seen   bool // present in the snapshot being applied

	// Ring of the last snapshots, most recent last. count grows to
	// snapshotHistory and then the ring shifts.
	states [snapshotHistory]EntityState
	times  [snapshotHistory]float64
	count  int

	frame           int
	oldFrame        int
	frameReceivedAt float64
}

// RenderEntity is a slot resolved at render time t.
type RenderEntity struct {
	Slot      int
	Origin    mgl32.Vec3
	Angles    mgl32.Vec3
	Orient    mgl32.Quat
	Model     int
	Skin      int
	Frame     int
	OldFrame  int
	FrontLerp float32
	Effects   uint32
}

// State holds the double-buffered entity snapshots for every slot.
type State struct {
	slots [MaxEntities]slot
}

func NewState() *State {
	return &State{}
}

// ApplySnapshot ingests one authoritative snapshot. Slots first seen are
// created, present slots are mutated, and any slot absent from this
// snapshot is destroyed.
func (s *State) ApplySnapshot(timeMs float64, ents []NumberedEntity) {
	for i := range s.slots {
		s.slots[i].seen = false
	}
	for _, e := range ents {
		if e.Number < 0 || e.Number >= MaxEntities {
			continue
		}
		sl := &s.slots[e.Number]
		sl.seen = true
		if !sl.active {
			// New entity: no history to interpolate from, so both endpoints
			// are the spawn state.
			*sl = slot{active: true, seen: true, count: 1}
			sl.states[0] = e.State
			sl.times[0] = timeMs
			sl.frame = e.State.Frame
			sl.oldFrame = e.State.Frame
			sl.frameReceivedAt = timeMs
			continue
		}
		if sl.count == snapshotHistory {
			copy(sl.states[:], sl.states[1:])
			copy(sl.times[:], sl.times[1:])
			sl.count--
		}
		sl.states[sl.count] = e.State
		sl.times[sl.count] = timeMs
		sl.count++

		if e.State.Frame != sl.frame {
			sl.oldFrame = sl.frame
			sl.frame = e.State.Frame
			sl.frameReceivedAt = timeMs
		}
	}
	for i := range s.slots {
		if s.slots[i].active && !s.slots[i].seen {
			s.slots[i] = slot{}
		}
	}
}

// Active reports whether a slot currently holds an entity.
func (s *State) Active(slot int) bool {
	return slot >= 0 && slot < MaxEntities && s.slots[slot].active
}

// ResolveSlot interpolates one slot at render time tMs. Pure per-slot: safe
// to fan out across workers. Resolution is deterministic for identical
// snapshots, t, and config.
func (s *State) ResolveSlot(idx int, tMs float64, cfg Config) (RenderEntity, bool) {
	sl := &s.slots[idx]
	if !sl.active {
		return RenderEntity{}, false
	}

	curr := &sl.states[sl.count-1]
	tcurr := sl.times[sl.count-1]
	prev := curr
	tprev := tcurr
	if sl.count >= 2 {
		prev = &sl.states[sl.count-2]
		tprev = sl.times[sl.count-2]
	}

	re := RenderEntity{
		Slot:     idx,
		Model:    curr.Model,
		Skin:     curr.Skin,
		Frame:    sl.frame,
		OldFrame: sl.oldFrame,
		Effects:  curr.Effects,
	}

	alpha := 1.0
	if tcurr > tprev {
		alpha = (tMs - tprev) / (tcurr - tprev)
	}
	if alpha < 0 {
		alpha = 0
	}

	switch {
	case alpha <= 1:
		if cfg.CubicInterp && sl.count == snapshotHistory {
			// No future snapshot exists at render time; extrapolate the
			// missing endpoint so straight paths stay straight.
			next := curr.Origin.Mul(2).Sub(prev.Origin)
			re.Origin = catmullRom(
				sl.states[sl.count-3].Origin,
				prev.Origin,
				curr.Origin,
				next,
				float32(alpha))
		} else {
			re.Origin = lerpVec(prev.Origin, curr.Origin, float32(alpha))
		}
	case cfg.Extrapolate && cfg.ExtrapolateMaxMs > 0:
		dtMs := tMs - tcurr
		if dtMs > cfg.ExtrapolateMaxMs {
			dtMs = cfg.ExtrapolateMaxMs
		}
		re.Origin = curr.Origin.Add(curr.Velocity.Mul(float32(dtMs / 1000)))
	default:
		re.Origin = curr.Origin
	}

	angleAlpha := float32(alpha)
	if angleAlpha > 1 {
		angleAlpha = 1
	}
	re.Orient = blendAngles(prev.Angles, curr.Angles, angleAlpha)
	re.Angles = mgl32.Vec3{
		lerpAngle(prev.Angles[0], curr.Angles[0], angleAlpha),
		lerpAngle(prev.Angles[1], curr.Angles[1], angleAlpha),
		lerpAngle(prev.Angles[2], curr.Angles[2], angleAlpha),
	}

	re.Frame, re.OldFrame, re.FrontLerp = s.animState(sl, tMs, cfg)
	return re, true
}

func (s *State) animState(sl *slot, tMs float64, cfg Config) (frame, oldFrame int, frontLerp float32) {
	dur := cfg.frameDur()
	elapsed := tMs - sl.frameReceivedAt
	if elapsed < 0 {
		elapsed = 0
	}
	frame = sl.frame
	oldFrame = sl.oldFrame
	if elapsed >= dur && cfg.AnimContinue {
		// Packet loss: keep the animation clock running past the last
		// received frame.
		steps := int(elapsed / dur)
		frame = sl.frame + steps
		oldFrame = frame - 1
		elapsed -= float64(steps) * dur
	}
	fl := elapsed / dur
	if fl > 1 {
		fl = 1
	}
	return frame, oldFrame, float32(fl)
}

func lerpVec(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

func catmullRom(p0, p1, p2, p3 mgl32.Vec3, t float32) mgl32.Vec3 {
	t2 := t * t
	t3 := t2 * t
	var out mgl32.Vec3
	for i := 0; i < 3; i++ {
		out[i] = 0.5 * ((2 * p1[i]) +
			(-p0[i]+p2[i])*t +
			(2*p0[i]-5*p1[i]+4*p2[i]-p3[i])*t2 +
			(-p0[i]+3*p1[i]-3*p2[i]+p3[i])*t3)
	}
	return out
}

// blendAngles converts both Euler sets to quaternions and slerps along the
// shorter arc.
func blendAngles(a, b mgl32.Vec3, t float32) mgl32.Quat {
	qa := anglesToQuat(a)
	qb := anglesToQuat(b)
	if qa.Dot(qb) < 0 {
		qb = qb.Scale(-1)
	}
	return mgl32.QuatSlerp(qa, qb, t)
}

func anglesToQuat(deg mgl32.Vec3) mgl32.Quat {
	return mgl32.AnglesToQuat(
		mgl32.DegToRad(deg[1]), // yaw
		mgl32.DegToRad(deg[0]), // pitch
		mgl32.DegToRad(deg[2]), // roll
		mgl32.ZYX)
}

// lerpAngle interpolates one angle channel, wrapping independently on ±180.
func lerpAngle(a, b, t float32) float32 {
	d := b - a
	d = float32(math.Mod(float64(d)+180, 360))
	if d < 0 {
		d += 360
	}
	d -= 180
	r := a + d*t
	if r > 180 {
		r -= 360
	} else if r < -180 {
		r += 360
	}
	return r
}
