package bsp

import (
	"github.com/go-gl/mathgl/mgl32"
)

// World is the cooked in-memory form of a BSP. Nodes, leaves, and surfaces
// reference each other by index into the parallel arrays, never by pointer,
// so the whole structure is acyclic and trivially copyable.
type World struct {
	Name string

	Planes       []Plane
	Nodes        []Node
	Leafs        []Leaf
	Surfaces     []Surface
	MarkSurfaces []int32 // leaf -> surface indices
	TexInfos     []TexInfo
	Submodels    []Submodel

	LightData []byte

	NumClusters int
	NumAreas    int
	visOffsets  [][2]int32 // per cluster: pvs, phs byte offsets into visData
	visData     []byte
}

type Plane struct {
	Normal mgl32.Vec3
	Dist   float32
	Type   uint8
}

// DistTo is the signed distance from p to the plane.
func (pl *Plane) DistTo(p mgl32.Vec3) float32 {
	return pl.Normal.Dot(p) - pl.Dist
}

type Node struct {
	Plane        int32
	Children     [2]int32 // negative: -1-leafIndex
	Mins, Maxs   mgl32.Vec3
	FirstSurface uint16
	NumSurfaces  uint16

	// VisFrame is set by the visibility walker when the node is reachable
	// from a marked leaf in the current frame.
	VisFrame int
}

type Leaf struct {
	Contents   uint32
	Cluster    int32
	Area       int32
	Mins, Maxs mgl32.Vec3
	FirstMark  uint16
	NumMarks   uint16

	VisFrame int
}

type TexInfo struct {
	VecsS   [4]float32
	VecsT   [4]float32
	Flags   uint32
	Value   uint32
	Texture string
	Next    int32
}

type Surface struct {
	Plane int32
	Flags uint32 // texinfo flags, plus SurfPlaneBack

	Verts   []mgl32.Vec3
	TexInfo int32

	// Lightmap placement. TexMins/Extents are in texel space (16-unit luxels).
	TexMins  [2]int
	Extents  [2]int
	Styles   [4]uint8
	LightOfs int32 // -1: unlit

	// Assigned by the lightmap engine at load.
	LightmapPage int
	LightS       int
	LightT       int

	// Transient per-frame marks.
	VisFrame    int
	DLightFrame int
	DLightBits  uint32
}

// LightmapSize is the luxel grid dimensions of the surface.
func (s *Surface) LightmapSize() (w, h int) {
	return s.Extents[0]/16 + 1, s.Extents[1]/16 + 1
}

type Submodel struct {
	Mins, Maxs mgl32.Vec3
	Origin     mgl32.Vec3
	HeadNode   int32
	FirstFace  int32
	NumFaces   int32
}
