package client

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Blend drives the full-screen polyblend overlay: damage flashes and
// underwater tint. Flash alpha decays on a linear tween; the persistent
// tint (underwater, contents-based) is re-asserted every frame.
type Blend struct {
	flashColor [3]float32
	flash      *gween.Tween

	tint [4]float32
}

// Flash starts a decaying overlay, e.g. red on damage.
func (b *Blend) Flash(r, g, bl, alpha, durationSec float32) {
	b.flashColor = [3]float32{r, g, bl}
	b.flash = gween.New(alpha, 0, durationSec, ease.Linear)
}

// SetTint sets the persistent overlay for this frame; zero alpha clears it.
func (b *Blend) SetTint(r, g, bl, alpha float32) {
	b.tint = [4]float32{r, g, bl, alpha}
}

// Step advances the flash tween and returns the combined v_blend for the
// final post pass.
func (b *Blend) Step(dt float32) [4]float32 {
	out := b.tint
	if b.flash != nil {
		a, done := b.flash.Update(dt)
		if done {
			b.flash = nil
		} else if a > out[3] {
			out = [4]float32{b.flashColor[0], b.flashColor[1], b.flashColor[2], a}
		}
	}
	return out
}
