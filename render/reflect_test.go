package render

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/gekko3d/refresh/bsp"
)

// waterWorld: one leaf holding N water surfaces at the given z planes.
func waterWorld(zs ...float32) *bsp.World {
	w := &bsp.World{
		Planes: []bsp.Plane{
			{Normal: mgl32.Vec3{1, 0, 0}, Dist: -1000},
		},
		TexInfos: []bsp.TexInfo{
			{VecsS: [4]float32{1, 0, 0, 0}, VecsT: [4]float32{0, 1, 0, 0}},
		},
		Nodes: []bsp.Node{
			{Plane: 0, Children: [2]int32{-1, -2},
				Mins: mgl32.Vec3{-4096, -4096, -4096}, Maxs: mgl32.Vec3{4096, 4096, 4096}},
		},
		Leafs: []bsp.Leaf{
			{Cluster: 0},
			{Cluster: -1},
		},
	}
	for _, z := range zs {
		w.Planes = append(w.Planes, bsp.Plane{Normal: mgl32.Vec3{0, 0, 1}, Dist: z, Type: 2})
		w.Surfaces = append(w.Surfaces, bsp.Surface{
			Plane:   int32(len(w.Planes) - 1),
			TexInfo: 0,
			Flags:   bsp.SurfTrans66 | bsp.SurfWarp,
			Verts:   quadAt(z),
		})
		w.MarkSurfaces = append(w.MarkSurfaces, int32(len(w.Surfaces)-1))
	}
	w.Leafs[0].FirstMark = 0
	w.Leafs[0].NumMarks = uint16(len(w.MarkSurfaces))
	return w
}

func markAll(wk *Walker) {
	wk.MarkLeaves(0, nil, false, true, 1)
}

func TestFindReflectorsCap(t *testing.T) {
	w := waterWorld(16, 48, 96)
	wk := NewWalker(w)
	markAll(wk)

	refl := wk.FindReflectors(0)
	assert.Len(t, refl, MaxRefl, "third reflector silently dropped")
	assert.Equal(t, float32(16), refl[0].Z, "discovery order")
	assert.Equal(t, float32(48), refl[1].Z)
}

func TestFindReflectorsDedupe(t *testing.T) {
	w := waterWorld(32, 32, 32)
	wk := NewWalker(w)
	markAll(wk)

	refl := wk.FindReflectors(0)
	assert.Len(t, refl, 1)
	assert.Equal(t, float32(32), refl[0].Z)
}

func TestFindReflectorsFilters(t *testing.T) {
	w := waterWorld(32)
	// Opaque water flag combinations must not reflect.
	w.Surfaces[0].Flags = bsp.SurfWarp // turbulent but not translucent
	wk := NewWalker(w)
	markAll(wk)
	assert.Empty(t, wk.FindReflectors(0))

	w.Surfaces[0].Flags = bsp.SurfTrans66 // translucent but not turbulent
	assert.Empty(t, wk.FindReflectors(0))

	// Vertical water (a waterfall) is not a reflector.
	w.Surfaces[0].Flags = bsp.SurfTrans66 | bsp.SurfWarp
	w.Planes[1].Normal = mgl32.Vec3{0, 1, 0}
	assert.Empty(t, wk.FindReflectors(0))
}

func TestFindReflectorsSuppressedUnderwater(t *testing.T) {
	w := waterWorld(32)
	wk := NewWalker(w)
	markAll(wk)
	assert.NotEmpty(t, wk.FindReflectors(0))
	assert.Empty(t, wk.FindReflectors(RDFUnderwater))
}

func TestFindReflectorsRespectVisibility(t *testing.T) {
	w := waterWorld(32)
	wk := NewWalker(w)
	// Leaves never marked: nothing discovered.
	assert.Empty(t, wk.FindReflectors(0))
}

func TestMirrorView(t *testing.T) {
	origin, angles := MirrorView(mgl32.Vec3{10, 20, 30}, mgl32.Vec3{15, 90, 0}, 40)
	assert.Equal(t, mgl32.Vec3{10, 20, 50}, origin, "origin.z reflects through 2Z - z")
	assert.Equal(t, mgl32.Vec3{-15, 90, 0}, angles, "pitch negates, yaw and roll hold")
}

func TestReflectionProjection(t *testing.T) {
	m := ReflectionProjection(90, 1, 4, 4096)

	// Perspective divide of a point on the near plane center hits depth -1.
	v := m.Mul4x1(mgl32.Vec4{0, 0, -4, 1})
	assert.InDelta(t, -1, v[2]/v[3], 1e-4)
	// Far plane maps to +1, with w carrying -z for the divide.
	v = m.Mul4x1(mgl32.Vec4{0, 0, -4096, 1})
	assert.InDelta(t, 1, v[2]/v[3], 1e-3)
	assert.InDelta(t, 4096, v[3], 1e-2)

	// Matches the library's construction for the unmirrored case.
	want := mgl32.Perspective(mgl32.DegToRad(90), 1, 4, 4096)
	for i := 0; i < 16; i++ {
		assert.InDelta(t, want[i], m[i], 1e-4)
	}
}
