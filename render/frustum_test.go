package render

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

// viewFrustum is a 90x90 degree frustum at the origin looking down +x
// (yaw 0 in engine coordinates).
func viewFrustum() Frustum {
	return SetFrustum(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, 0}, 90, 90)
}

func TestFrustumCull(t *testing.T) {
	f := viewFrustum()

	tests := []struct {
		name   string
		mins   mgl32.Vec3
		maxs   mgl32.Vec3
		culled bool
	}{
		{
			name: "dead ahead",
			mins: mgl32.Vec3{50, -5, -5}, maxs: mgl32.Vec3{60, 5, 5},
			culled: false,
		},
		{
			name: "behind the viewer",
			mins: mgl32.Vec3{-60, -5, -5}, maxs: mgl32.Vec3{-50, 5, 5},
			culled: true,
		},
		{
			name: "far off to the left",
			mins: mgl32.Vec3{10, 200, -5}, maxs: mgl32.Vec3{20, 220, 5},
			culled: true,
		},
		{
			name: "far off to the right",
			mins: mgl32.Vec3{10, -220, -5}, maxs: mgl32.Vec3{20, -200, 5},
			culled: true,
		},
		{
			name: "high above",
			mins: mgl32.Vec3{10, -5, 200}, maxs: mgl32.Vec3{20, 5, 220},
			culled: true,
		},
		{
			name: "straddling the left plane",
			mins: mgl32.Vec3{40, 30, -5}, maxs: mgl32.Vec3{60, 70, 5},
			culled: false,
		},
		{
			name: "surrounding the viewer",
			mins: mgl32.Vec3{-100, -100, -100}, maxs: mgl32.Vec3{100, 100, 100},
			culled: false,
		},
	}
	for _, tc := range tests {
		got := f.CullBox(tc.mins, tc.maxs)
		assert.Equal(t, tc.culled, got, tc.name)
	}
}

func TestFrustumCullSphere(t *testing.T) {
	f := viewFrustum()
	assert.False(t, f.CullSphere(mgl32.Vec3{50, 0, 0}, 1))
	assert.True(t, f.CullSphere(mgl32.Vec3{-50, 0, 0}, 1))
	// Behind but big enough to reach the viewer plane.
	assert.False(t, f.CullSphere(mgl32.Vec3{-10, 0, 0}, 60))
}

func TestAngleVectors(t *testing.T) {
	// Yaw 0: forward +x, up +z.
	fwd, right, up := AngleVectors(mgl32.Vec3{0, 0, 0})
	assert.InDelta(t, 1, fwd[0], 1e-5)
	assert.InDelta(t, -1, right[1], 1e-5)
	assert.InDelta(t, 1, up[2], 1e-5)

	// Yaw 90: forward +y.
	fwd, _, _ = AngleVectors(mgl32.Vec3{0, 90, 0})
	assert.InDelta(t, 0, fwd[0], 1e-5)
	assert.InDelta(t, 1, fwd[1], 1e-5)

	// Pitch 90 looks straight down (-z).
	fwd, _, _ = AngleVectors(mgl32.Vec3{90, 0, 0})
	assert.InDelta(t, -1, fwd[2], 1e-5)
}

func TestFovY(t *testing.T) {
	// Square viewport: vertical FOV equals horizontal.
	assert.InDelta(t, 90, FovY(90, 512, 512), 0.01)
	// Wider viewport: vertical FOV shrinks.
	assert.Less(t, FovY(90, 1280, 720), float32(90))
}
