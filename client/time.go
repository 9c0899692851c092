package client

import (
	"time"
)

// Time is the frame clock resource. Dt is clamped so a debugger pause or
// asset-load hitch cannot feed the interpolators a multi-second step.
type Time struct {
	Now        time.Time
	Dt         float64
	RealtimeMs float64
	FrameCount uint64
}

func NewTime() *Time {
	return &Time{Now: time.Now()}
}

func (t *Time) Tick() {
	now := time.Now()
	dt := now.Sub(t.Now).Seconds()
	if dt > 0.1 {
		dt = 0.1
	}
	t.Dt = dt
	t.RealtimeMs += dt * 1000
	t.Now = now
	t.FrameCount++
}
