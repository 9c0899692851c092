package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/refresh/bsp"
)

const (
	// MaxRefl caps simultaneous mirrored render passes.
	MaxRefl = 2

	// DefaultReflSize is the offscreen color target edge, per side.
	DefaultReflSize = 512
)

// Reflector is one horizontal water plane picked up this frame.
type Reflector struct {
	Z float32
}

// FindReflectors walks the visible BSP collecting the Z values of
// translucent, turbulent, horizontal surfaces. Values are deduplicated in
// discovery order and capped at MaxRefl; extra reflectors are dropped.
//
// Reflections are suppressed underwater (RDF_UNDERWATER): the original sets
// the flag but gates incompletely, and that behavior is mirrored here as a
// known limitation.
func (wk *Walker) FindReflectors(rdFlags uint32) []Reflector {
	if rdFlags&RDFUnderwater != 0 {
		return nil
	}
	if len(wk.world.Nodes) == 0 {
		return nil
	}
	var out []Reflector
	wk.recursiveFindRefl(0, &out)
	return out
}

func (wk *Walker) recursiveFindRefl(idx int32, out *[]Reflector) {
	w := wk.world
	if idx < 0 {
		leaf := &w.Leafs[-1-idx]
		if leaf.VisFrame != wk.visFrameCount {
			return
		}
		for _, si := range w.LeafSurfaces(leaf) {
			s := &w.Surfaces[si]
			if !isReflector(w, s) {
				continue
			}
			z := reflectorZ(w, s)
			if hasZ(*out, z) {
				continue
			}
			if len(*out) >= MaxRefl {
				return
			}
			*out = append(*out, Reflector{Z: z})
		}
		return
	}
	node := &w.Nodes[idx]
	if node.VisFrame != wk.visFrameCount {
		return
	}
	wk.recursiveFindRefl(node.Children[0], out)
	wk.recursiveFindRefl(node.Children[1], out)
}

func isReflector(w *bsp.World, s *bsp.Surface) bool {
	if s.Flags&(bsp.SurfTrans33|bsp.SurfTrans66) == 0 || s.Flags&bsp.SurfWarp == 0 {
		return false
	}
	n := w.Planes[s.Plane].Normal
	return float32(math.Abs(float64(n[2]))) > 0.99
}

func reflectorZ(w *bsp.World, s *bsp.Surface) float32 {
	p := &w.Planes[s.Plane]
	if p.Normal[2] < 0 {
		return -p.Dist
	}
	return p.Dist
}

func hasZ(refl []Reflector, z float32) bool {
	for _, r := range refl {
		if r.Z == z {
			return true
		}
	}
	return false
}

// MirrorView reflects the main view through the z = Z plane: the origin
// flips across the plane and pitch negates.
func MirrorView(origin, angles mgl32.Vec3, z float32) (mgl32.Vec3, mgl32.Vec3) {
	mOrigin := origin
	mOrigin[2] = 2*z - origin[2]
	mAngles := angles
	mAngles[0] = -angles[0]
	return mOrigin, mAngles
}

// ReflectionProjection builds the perspective matrix for mirrored passes
// with the Mesa frustum formulation. Mirrored viewpoints hit skew cases
// where the usual fixed-function construction degenerates in sign; writing
// the frustum out longhand keeps the terms stable.
func ReflectionProjection(fovY float32, aspect, near, far float32) mgl32.Mat4 {
	top := near * float32(math.Tan(float64(mgl32.DegToRad(fovY))/2))
	bottom := -top
	right := top * aspect
	left := -right

	x := (2 * near) / (right - left)
	y := (2 * near) / (top - bottom)
	a := (right + left) / (right - left)
	b := (top + bottom) / (top - bottom)
	c := -(far + near) / (far - near)
	d := -(2 * far * near) / (far - near)

	var m mgl32.Mat4
	m.Set(0, 0, x)
	m.Set(0, 2, a)
	m.Set(1, 1, y)
	m.Set(1, 2, b)
	m.Set(2, 2, c)
	m.Set(2, 3, d)
	m.Set(3, 2, -1)
	return m
}
