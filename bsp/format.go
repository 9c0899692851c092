package bsp

// On-disk layout of an IBSP v38 world file. All integers little-endian.

const (
	ident   = "IBSP"
	version = 38
)

const (
	lumpEntities = iota
	lumpPlanes
	lumpVertices
	lumpVisibility
	lumpNodes
	lumpTexInfo
	lumpFaces
	lumpLighting
	lumpLeafs
	lumpLeafFaces
	lumpLeafBrushes
	lumpEdges
	lumpSurfEdges
	lumpModels
	lumpBrushes
	lumpBrushSides
	lumpPop
	lumpAreas
	lumpAreaPortals

	headerLumps = 19
)

// Texinfo surface flags.
const (
	SurfLight   = 0x1
	SurfSlick   = 0x2
	SurfSky     = 0x4
	SurfWarp    = 0x8
	SurfTrans33 = 0x10
	SurfTrans66 = 0x20
	SurfFlowing = 0x40
	SurfNoDraw  = 0x80
)

// SurfPlaneBack is a cooked-side marker, not a file flag: the face was stored
// on the back side of its plane.
const SurfPlaneBack = 0x10000

// Leaf content bits the renderer cares about.
const (
	ContentsSolid = 0x1
	ContentsWater = 0x20
)

type lump struct {
	Ofs uint32
	Len uint32
}

type dHeader struct {
	Ident   [4]byte
	Version uint32
	Lumps   [headerLumps]lump
}

type dPlane struct {
	Normal [3]float32
	Dist   float32
	Type   uint32
}

type dNode struct {
	Plane     uint32
	Children  [2]int32 // negative: -1-leaf
	Mins      [3]int16
	Maxs      [3]int16
	FirstFace uint16
	NumFaces  uint16
}

type dLeaf struct {
	Contents       uint32
	Cluster        int16
	Area           int16
	Mins           [3]int16
	Maxs           [3]int16
	FirstLeafFace  uint16
	NumLeafFaces   uint16
	FirstLeafBrush uint16
	NumLeafBrushes uint16
}

type dTexInfo struct {
	VecsS   [4]float32
	VecsT   [4]float32
	Flags   uint32
	Value   uint32
	Texture [32]byte
	Next    int32
}

type dFace struct {
	Plane     uint16
	Side      int16
	FirstEdge int32
	NumEdges  int16
	TexInfo   int16
	Styles    [4]byte
	LightOfs  int32
}

type dEdge struct {
	V [2]uint16
}

type dModel struct {
	Mins      [3]float32
	Maxs      [3]float32
	Origin    [3]float32
	HeadNode  int32
	FirstFace int32
	NumFaces  int32
}

type dArea struct {
	NumAreaPortals  int32
	FirstAreaPortal int32
}
