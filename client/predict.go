package client

import (
	"github.com/go-gl/mathgl/mgl32"
)

// predictionFadeMs is how long a reconciliation error takes to bleed off.
const predictionFadeMs = 100

// PredictionError damps the visual snap when the server corrects a
// predicted position. The error vector decays linearly over 100 ms.
type PredictionError struct {
	err   mgl32.Vec3
	setAt float64
	live  bool
}

// Reconcile records the divergence between the authoritative position the
// server confirmed and what the client had predicted for the same input.
func (p *PredictionError) Reconcile(authoritative, predicted mgl32.Vec3, nowMs float64) {
	p.err = authoritative.Sub(predicted)
	p.setAt = nowMs
	p.live = true
}

// Corrected returns the render position: predicted plus the decaying error.
func (p *PredictionError) Corrected(predicted mgl32.Vec3, nowMs float64) mgl32.Vec3 {
	if !p.live {
		return predicted
	}
	age := nowMs - p.setAt
	if age >= predictionFadeMs {
		p.live = false
		return predicted
	}
	scale := float32(1 - age/predictionFadeMs)
	return predicted.Add(p.err.Mul(scale))
}
