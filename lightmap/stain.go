package lightmap

import (
	"math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Stainmap is a per-surface 8-bit darkening overlay accumulated from damage
// events. Each stain fades out on its own linear tween.
type Stainmap struct {
	W, H   int
	stains []stain
}

type stain struct {
	s, t, radius float32 // texture space, luxel units
	strength     float32 // current 0..1, driven by the tween
	tw           *gween.Tween
}

func NewStainmap(w, h int) *Stainmap {
	return &Stainmap{W: w, H: h}
}

// Add places a stain at luxel coordinates (s, t) that fades to nothing over
// fadeSeconds.
func (m *Stainmap) Add(s, t, radius, amount, fadeSeconds float32) {
	if amount <= 0 || fadeSeconds <= 0 {
		return
	}
	if amount > 1 {
		amount = 1
	}
	m.stains = append(m.stains, stain{
		s: s, t: t, radius: radius,
		strength: amount,
		tw:       gween.New(amount, 0, fadeSeconds, ease.Linear),
	})
}

// Step advances the fades. Returns true once every stain has expired.
func (m *Stainmap) Step(dt float32) bool {
	live := m.stains[:0]
	for _, st := range m.stains {
		v, done := st.tw.Update(dt)
		if done {
			continue
		}
		st.strength = v
		live = append(live, st)
	}
	m.stains = live
	return len(m.stains) == 0
}

// Modulate darkens an RGBA luxel rectangle in place by the accumulated
// stain alpha.
func (m *Stainmap) Modulate(rgba []byte) {
	if len(m.stains) == 0 {
		return
	}
	for t := 0; t < m.H; t++ {
		for s := 0; s < m.W; s++ {
			a := m.alphaAt(float32(s), float32(t))
			if a <= 0 {
				continue
			}
			keep := 1 - a
			i := (t*m.W + s) * 4
			rgba[i+0] = uint8(float32(rgba[i+0]) * keep)
			rgba[i+1] = uint8(float32(rgba[i+1]) * keep)
			rgba[i+2] = uint8(float32(rgba[i+2]) * keep)
		}
	}
}

func (m *Stainmap) alphaAt(s, t float32) float32 {
	var a float32
	for _, st := range m.stains {
		ds := s - st.s
		dt := t - st.t
		d2 := ds*ds + dt*dt
		if d2 >= st.radius*st.radius {
			continue
		}
		// Linear falloff from center to rim.
		a += st.strength * (1 - float32(math.Sqrt(float64(d2)))/st.radius)
	}
	if a > 1 {
		a = 1
	}
	return a
}
