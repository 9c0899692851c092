package client

import (
	"github.com/go-gl/mathgl/mgl32"
)

const (
	MaxDLights = 32

	// DLightCutoff shrinks the effective radius when testing a light
	// against a surface plane, so grazing lights don't trigger relights.
	DLightCutoff = 16
)

// DLight is a transient point light: muzzle flash, explosion, rocket glow.
// It lives for the frame it was added in unless refreshed.
type DLight struct {
	Origin mgl32.Vec3
	Radius float32
	Color  mgl32.Vec3
	Frame  int
}

// DLightSet holds the lights live in the current frame.
type DLightSet struct {
	lights []DLight
	frame  int
}

func NewDLightSet() *DLightSet {
	return &DLightSet{lights: make([]DLight, 0, MaxDLights)}
}

// BeginFrame drops every light not refreshed for the new frame.
func (s *DLightSet) BeginFrame(frame int) {
	s.frame = frame
	live := s.lights[:0]
	for _, l := range s.lights {
		if l.Frame == frame {
			live = append(live, l)
		}
	}
	s.lights = live
}

// Add inserts a light for the current frame; past MaxDLights the extra
// lights are dropped.
func (s *DLightSet) Add(origin mgl32.Vec3, radius float32, color mgl32.Vec3) {
	if len(s.lights) >= MaxDLights {
		return
	}
	s.lights = append(s.lights, DLight{Origin: origin, Radius: radius, Color: color, Frame: s.frame})
}

func (s *DLightSet) Live() []DLight { return s.lights }

// GPULight is the std140-friendly layout the lighting shaders consume.
type GPULight struct {
	Position [4]float32 // xyz, radius
	Color    [4]float32 // rgb, pad
}

func (s *DLightSet) GPU() []GPULight {
	out := make([]GPULight, len(s.lights))
	for i, l := range s.lights {
		out[i] = GPULight{
			Position: [4]float32{l.Origin[0], l.Origin[1], l.Origin[2], l.Radius},
			Color:    [4]float32{l.Color[0], l.Color[1], l.Color[2], 0},
		}
	}
	return out
}
