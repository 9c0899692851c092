package lightmap

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/refresh/bsp"
	"github.com/gekko3d/refresh/client"
)

// flatWorld is one floor surface on the z=0 plane, 64x64 units (5x5 luxels),
// with a baked lightmap of mid gray.
func flatWorld() *bsp.World {
	w := &bsp.World{
		Planes: []bsp.Plane{
			{Normal: mgl32.Vec3{0, 0, 1}, Dist: 0, Type: 2},
		},
		TexInfos: []bsp.TexInfo{
			{VecsS: [4]float32{1, 0, 0, 0}, VecsT: [4]float32{0, 1, 0, 0}},
		},
	}
	surf := bsp.Surface{
		Plane:   0,
		TexInfo: 0,
		Verts: []mgl32.Vec3{
			{0, 0, 0}, {64, 0, 0}, {64, 64, 0}, {0, 64, 0},
		},
		TexMins:  [2]int{0, 0},
		Extents:  [2]int{64, 64},
		Styles:   [4]uint8{0, 255, 255, 255},
		LightOfs: 0,
	}
	lw, lh := surf.LightmapSize()
	w.LightData = make([]byte, lw*lh*3)
	for i := range w.LightData {
		w.LightData[i] = 100
	}
	w.Surfaces = []bsp.Surface{surf}
	return w
}

func TestPlaceSurfaces(t *testing.T) {
	w := flatWorld()
	e := NewEngine()
	require.NoError(t, e.PlaceSurfaces(w))

	s := &w.Surfaces[0]
	lw, lh := s.LightmapSize()
	assert.Equal(t, 5, lw)
	assert.Equal(t, 5, lh)

	pix := e.Atlas.Pixels(s.LightmapPage)
	i := ((s.LightT)*BlockWidth + s.LightS) * 4
	assert.Equal(t, uint8(100), pix[i], "static luxel value must land in the page")
}

func TestMarkDynamic(t *testing.T) {
	w := flatWorld()
	e := NewEngine()
	require.NoError(t, e.PlaceSurfaces(w))

	lights := []client.DLight{
		{Origin: mgl32.Vec3{32, 32, 20}, Radius: 200, Color: mgl32.Vec3{1, 1, 1}},
	}
	e.MarkDynamic(w, []int32{0}, lights, 7)
	assert.Equal(t, 7, w.Surfaces[0].DLightFrame)
	assert.NotZero(t, w.Surfaces[0].DLightBits)
}

func TestMarkDynamicRespectsCutoff(t *testing.T) {
	w := flatWorld()
	e := NewEngine()
	require.NoError(t, e.PlaceSurfaces(w))

	// 100 units above a 110-radius light: inside raw radius but not inside
	// radius - DLIGHT_CUTOFF.
	lights := []client.DLight{
		{Origin: mgl32.Vec3{32, 32, 100}, Radius: 110, Color: mgl32.Vec3{1, 1, 1}},
	}
	e.MarkDynamic(w, []int32{0}, lights, 3)
	assert.NotEqual(t, 3, w.Surfaces[0].DLightFrame)

	// A light behind the plane never affects it.
	lights[0].Origin = mgl32.Vec3{32, 32, -20}
	e.MarkDynamic(w, []int32{0}, lights, 4)
	assert.NotEqual(t, 4, w.Surfaces[0].DLightFrame)
}

func TestRecomposeAddsLight(t *testing.T) {
	w := flatWorld()
	e := NewEngine()
	require.NoError(t, e.PlaceSurfaces(w))

	lights := []client.DLight{
		{Origin: mgl32.Vec3{32, 32, 10}, Radius: 300, Color: mgl32.Vec3{1, 0, 0}},
	}
	e.MarkDynamic(w, []int32{0}, lights, 1)
	e.Recompose(w, 0, lights)

	s := &w.Surfaces[0]
	pix := e.Atlas.Pixels(s.LightmapPage)
	// Center luxel (2,2) sits nearly under the light: red well above base.
	i := ((s.LightT+2)*BlockWidth + s.LightS + 2) * 4
	assert.Greater(t, pix[i+0], uint8(150), "red channel gains the dlight")
	assert.Equal(t, uint8(100), pix[i+1], "green channel untouched by a red light")
}

func TestStainFade(t *testing.T) {
	sm := NewStainmap(5, 5)
	sm.Add(2, 2, 3, 1, 2.0)

	rgba := make([]byte, 5*5*4)
	for i := range rgba {
		rgba[i] = 200
	}
	sm.Modulate(rgba)
	center := (2*5 + 2) * 4
	assert.Less(t, rgba[center], uint8(10), "fresh full stain blacks out its center")

	// Half the fade time: half strength.
	done := sm.Step(1.0)
	assert.False(t, done)
	rgba2 := make([]byte, 5*5*4)
	for i := range rgba2 {
		rgba2[i] = 200
	}
	sm.Modulate(rgba2)
	assert.InDelta(t, 100, float64(rgba2[center]), 5)

	// Past the full fade the stainmap reports itself dead.
	done = sm.Step(1.5)
	assert.True(t, done)
}

func TestOverbrightScale(t *testing.T) {
	assert.Equal(t, float32(1), OverbrightScale(0))
	assert.Equal(t, float32(2), OverbrightScale(1))
	assert.Equal(t, float32(4), OverbrightScale(2))
	assert.Equal(t, float32(4), OverbrightScale(4))
}

func TestStepStainsDropsDead(t *testing.T) {
	w := flatWorld()
	e := NewEngine()
	require.NoError(t, e.PlaceSurfaces(w))

	sm := e.Stains(w, 0)
	sm.Add(1, 1, 2, 0.5, 0.5)
	e.StepStains(0.1)
	assert.Same(t, sm, e.Stains(w, 0), "live stainmap persists")

	e.StepStains(1.0)
	fresh := e.Stains(w, 0)
	assert.NotSame(t, sm, fresh, "expired stainmap is dropped and recreated")
}
