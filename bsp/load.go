package bsp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/refresh"
)

// Load parses a BSP file fetched through the loader. A truncated or
// unrecognized file fails with ErrMalformedAsset; a recognized file with the
// wrong version fails with ErrUnsupportedVersion. The worldmodel being
// essential, the caller aborts the map load on any error here.
func Load(loader refresh.FileLoader, path string) (*World, error) {
	data, err := loader(path)
	if err != nil {
		return nil, &refresh.AssetError{Path: path, Err: err}
	}

	var hdr dHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &hdr); err != nil {
		return nil, refresh.MalformedAsset(path, "short header")
	}
	if string(hdr.Ident[:]) != ident {
		return nil, refresh.MalformedAsset(path, fmt.Sprintf("bad ident %q", hdr.Ident))
	}
	if hdr.Version != version {
		return nil, &refresh.AssetError{
			Path: path,
			Err:  fmt.Errorf("%w: bsp version %d, want %d", refresh.ErrUnsupportedVersion, hdr.Version, version),
		}
	}
	for i, l := range hdr.Lumps {
		if int64(l.Ofs)+int64(l.Len) > int64(len(data)) {
			return nil, refresh.MalformedAsset(path, fmt.Sprintf("lump %d out of bounds", i))
		}
	}

	w := &World{Name: path}

	planes, err := parseLump[dPlane](data, hdr.Lumps[lumpPlanes], path)
	if err != nil {
		return nil, err
	}
	w.Planes = make([]Plane, len(planes))
	for i, p := range planes {
		w.Planes[i] = Plane{
			Normal: mgl32.Vec3{p.Normal[0], p.Normal[1], p.Normal[2]},
			Dist:   p.Dist,
			Type:   uint8(p.Type),
		}
	}

	verts, err := parseLump[[3]float32](data, hdr.Lumps[lumpVertices], path)
	if err != nil {
		return nil, err
	}
	edges, err := parseLump[dEdge](data, hdr.Lumps[lumpEdges], path)
	if err != nil {
		return nil, err
	}
	surfEdges, err := parseLump[int32](data, hdr.Lumps[lumpSurfEdges], path)
	if err != nil {
		return nil, err
	}

	texInfos, err := parseLump[dTexInfo](data, hdr.Lumps[lumpTexInfo], path)
	if err != nil {
		return nil, err
	}
	w.TexInfos = make([]TexInfo, len(texInfos))
	for i, ti := range texInfos {
		w.TexInfos[i] = TexInfo{
			VecsS:   ti.VecsS,
			VecsT:   ti.VecsT,
			Flags:   ti.Flags,
			Value:   ti.Value,
			Texture: cString(ti.Texture[:]),
			Next:    ti.Next,
		}
	}

	w.LightData = append([]byte(nil), data[hdr.Lumps[lumpLighting].Ofs:hdr.Lumps[lumpLighting].Ofs+hdr.Lumps[lumpLighting].Len]...)

	faces, err := parseLump[dFace](data, hdr.Lumps[lumpFaces], path)
	if err != nil {
		return nil, err
	}
	w.Surfaces = make([]Surface, len(faces))
	for i, f := range faces {
		s, err := cookFace(w, &f, verts, edges, surfEdges, path)
		if err != nil {
			return nil, err
		}
		w.Surfaces[i] = s
	}

	nodes, err := parseLump[dNode](data, hdr.Lumps[lumpNodes], path)
	if err != nil {
		return nil, err
	}
	w.Nodes = make([]Node, len(nodes))
	for i, n := range nodes {
		if int(n.Plane) >= len(w.Planes) {
			return nil, refresh.MalformedAsset(path, "node plane out of range")
		}
		w.Nodes[i] = Node{
			Plane:        int32(n.Plane),
			Children:     n.Children,
			Mins:         shortVec(n.Mins),
			Maxs:         shortVec(n.Maxs),
			FirstSurface: n.FirstFace,
			NumSurfaces:  n.NumFaces,
		}
	}

	leafs, err := parseLump[dLeaf](data, hdr.Lumps[lumpLeafs], path)
	if err != nil {
		return nil, err
	}
	w.Leafs = make([]Leaf, len(leafs))
	for i, l := range leafs {
		w.Leafs[i] = Leaf{
			Contents:  l.Contents,
			Cluster:   int32(l.Cluster),
			Area:      int32(l.Area),
			Mins:      shortVec(l.Mins),
			Maxs:      shortVec(l.Maxs),
			FirstMark: l.FirstLeafFace,
			NumMarks:  l.NumLeafFaces,
		}
	}

	marks, err := parseLump[uint16](data, hdr.Lumps[lumpLeafFaces], path)
	if err != nil {
		return nil, err
	}
	w.MarkSurfaces = make([]int32, len(marks))
	for i, m := range marks {
		if int(m) >= len(w.Surfaces) {
			return nil, refresh.MalformedAsset(path, "marksurface out of range")
		}
		w.MarkSurfaces[i] = int32(m)
	}

	models, err := parseLump[dModel](data, hdr.Lumps[lumpModels], path)
	if err != nil {
		return nil, err
	}
	w.Submodels = make([]Submodel, len(models))
	for i, m := range models {
		w.Submodels[i] = Submodel{
			Mins:      mgl32.Vec3{m.Mins[0], m.Mins[1], m.Mins[2]},
			Maxs:      mgl32.Vec3{m.Maxs[0], m.Maxs[1], m.Maxs[2]},
			Origin:    mgl32.Vec3{m.Origin[0], m.Origin[1], m.Origin[2]},
			HeadNode:  m.HeadNode,
			FirstFace: m.FirstFace,
			NumFaces:  m.NumFaces,
		}
	}

	areas, err := parseLump[dArea](data, hdr.Lumps[lumpAreas], path)
	if err != nil {
		return nil, err
	}
	w.NumAreas = len(areas)

	if err := w.parseVis(data, hdr.Lumps[lumpVisibility], path); err != nil {
		return nil, err
	}
	return w, nil
}

// Unload drops the heavy arrays so a half-replaced world cannot be walked.
func (w *World) Unload() {
	*w = World{Name: w.Name}
}

func cookFace(w *World, f *dFace, verts [][3]float32, edges []dEdge, surfEdges []int32, path string) (Surface, error) {
	if int(f.TexInfo) >= len(w.TexInfos) || f.TexInfo < 0 {
		return Surface{}, refresh.MalformedAsset(path, "face texinfo out of range")
	}
	if int(f.Plane) >= len(w.Planes) {
		return Surface{}, refresh.MalformedAsset(path, "face plane out of range")
	}
	s := Surface{
		Plane:    int32(f.Plane),
		TexInfo:  int32(f.TexInfo),
		Flags:    w.TexInfos[f.TexInfo].Flags,
		Styles:   f.Styles,
		LightOfs: f.LightOfs,
	}
	if f.Side != 0 {
		s.Flags |= SurfPlaneBack
	}

	s.Verts = make([]mgl32.Vec3, 0, f.NumEdges)
	for i := 0; i < int(f.NumEdges); i++ {
		idx := int(f.FirstEdge) + i
		if idx < 0 || idx >= len(surfEdges) {
			return Surface{}, refresh.MalformedAsset(path, "surfedge out of range")
		}
		se := surfEdges[idx]
		var vi uint16
		if se >= 0 {
			if int(se) >= len(edges) {
				return Surface{}, refresh.MalformedAsset(path, "edge out of range")
			}
			vi = edges[se].V[0]
		} else {
			if int(-se) >= len(edges) {
				return Surface{}, refresh.MalformedAsset(path, "edge out of range")
			}
			vi = edges[-se].V[1]
		}
		if int(vi) >= len(verts) {
			return Surface{}, refresh.MalformedAsset(path, "vertex out of range")
		}
		v := verts[vi]
		s.Verts = append(s.Verts, mgl32.Vec3{v[0], v[1], v[2]})
	}

	calcSurfaceExtents(&s, &w.TexInfos[s.TexInfo])
	return s, nil
}

// calcSurfaceExtents derives the lightmap footprint from the texture-space
// projection of the polygon, snapped to the 16-unit luxel grid.
func calcSurfaceExtents(s *Surface, ti *TexInfo) {
	mins := [2]float64{math.Inf(1), math.Inf(1)}
	maxs := [2]float64{math.Inf(-1), math.Inf(-1)}

	for _, v := range s.Verts {
		for j, vecs := range [2][4]float32{ti.VecsS, ti.VecsT} {
			val := float64(v[0])*float64(vecs[0]) +
				float64(v[1])*float64(vecs[1]) +
				float64(v[2])*float64(vecs[2]) +
				float64(vecs[3])
			if val < mins[j] {
				mins[j] = val
			}
			if val > maxs[j] {
				maxs[j] = val
			}
		}
	}

	for j := 0; j < 2; j++ {
		bmin := int(math.Floor(mins[j] / 16))
		bmax := int(math.Ceil(maxs[j] / 16))
		s.TexMins[j] = bmin * 16
		s.Extents[j] = (bmax - bmin) * 16
	}
}

func parseLump[T any](data []byte, l lump, path string) ([]T, error) {
	var zero T
	size := binary.Size(zero)
	if l.Len == 0 {
		return nil, nil
	}
	if int(l.Len)%size != 0 {
		return nil, refresh.MalformedAsset(path, fmt.Sprintf("lump length %d not a multiple of %d", l.Len, size))
	}
	out := make([]T, int(l.Len)/size)
	r := bytes.NewReader(data[l.Ofs : l.Ofs+l.Len])
	if err := binary.Read(r, binary.LittleEndian, &out); err != nil {
		return nil, refresh.MalformedAsset(path, err.Error())
	}
	return out, nil
}

func shortVec(v [3]int16) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
