package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// FrustumPlane is one clipping plane in point-normal form.
type FrustumPlane struct {
	Normal mgl32.Vec3
	Dist   float32
}

// Frustum holds the four side planes; near/far are left to the depth range.
type Frustum [4]FrustumPlane

// AngleVectors expands Euler angles (degrees: pitch, yaw, roll) into the
// view basis.
func AngleVectors(angles mgl32.Vec3) (forward, right, up mgl32.Vec3) {
	pitch := float64(mgl32.DegToRad(angles[0]))
	yaw := float64(mgl32.DegToRad(angles[1]))
	roll := float64(mgl32.DegToRad(angles[2]))

	sp, cp := math.Sin(pitch), math.Cos(pitch)
	sy, cy := math.Sin(yaw), math.Cos(yaw)
	sr, cr := math.Sin(roll), math.Cos(roll)

	forward = mgl32.Vec3{float32(cp * cy), float32(cp * sy), float32(-sp)}
	right = mgl32.Vec3{
		float32(-sr*sp*cy + cr*sy),
		float32(-sr*sp*sy - cr*cy),
		float32(-sr * cp),
	}
	up = mgl32.Vec3{
		float32(cr*sp*cy + sr*sy),
		float32(cr*sp*sy - sr*cy),
		float32(cr * cp),
	}
	return forward, right, up
}

// SetFrustum derives the side planes by rotating the forward vector away
// from the view axes by half the field of view.
func SetFrustum(origin mgl32.Vec3, angles mgl32.Vec3, fovX, fovY float32) Frustum {
	forward, right, up := AngleVectors(angles)

	var f Frustum
	f[0].Normal = rotateAroundAxis(forward, up, -(90 - fovX/2))
	f[1].Normal = rotateAroundAxis(forward, up, 90-fovX/2)
	f[2].Normal = rotateAroundAxis(forward, right, 90-fovY/2)
	f[3].Normal = rotateAroundAxis(forward, right, -(90 - fovY/2))

	for i := range f {
		f[i].Normal = f[i].Normal.Normalize()
		f[i].Dist = origin.Dot(f[i].Normal)
	}
	return f
}

func rotateAroundAxis(v, axis mgl32.Vec3, degrees float32) mgl32.Vec3 {
	q := mgl32.QuatRotate(mgl32.DegToRad(degrees), axis.Normalize())
	return q.Rotate(v)
}

// CullBox reports whether the AABB lies entirely outside any frustum plane.
// Uses the positive-vertex test: the corner most aligned with the plane
// normal decides for all eight.
func (f *Frustum) CullBox(mins, maxs mgl32.Vec3) bool {
	for i := range f {
		p := &f[i]
		var v mgl32.Vec3
		for j := 0; j < 3; j++ {
			if p.Normal[j] >= 0 {
				v[j] = maxs[j]
			} else {
				v[j] = mins[j]
			}
		}
		if p.Normal.Dot(v)-p.Dist < 0 {
			return true
		}
	}
	return false
}

// CullSphere is the cheap variant used for entities.
func (f *Frustum) CullSphere(center mgl32.Vec3, radius float32) bool {
	for i := range f {
		if f[i].Normal.Dot(center)-f[i].Dist < -radius {
			return true
		}
	}
	return false
}

// FovY derives the vertical field of view from the horizontal one at the
// given aspect, in degrees.
func FovY(fovX float32, width, height int) float32 {
	x := float64(width) / math.Tan(float64(mgl32.DegToRad(fovX))/2)
	return float32(2 * math.Atan(float64(height)/x) * 180 / math.Pi)
}
