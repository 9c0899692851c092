package bsp

import (
	"github.com/go-gl/mathgl/mgl32"
)

// PointInLeaf walks the node tree from the root, choosing sides by signed
// distance, and returns the index of the terminal leaf containing p.
func (w *World) PointInLeaf(p mgl32.Vec3) int32 {
	if len(w.Nodes) == 0 {
		return 0
	}
	idx := int32(0)
	for {
		node := &w.Nodes[idx]
		plane := &w.Planes[node.Plane]
		var child int32
		if plane.DistTo(p) > 0 {
			child = node.Children[0]
		} else {
			child = node.Children[1]
		}
		if child < 0 {
			return -1 - child
		}
		idx = child
	}
}

// LeafCluster is a bounds-checked cluster lookup.
func (w *World) LeafCluster(leaf int32) int32 {
	if leaf < 0 || int(leaf) >= len(w.Leafs) {
		return -1
	}
	return w.Leafs[leaf].Cluster
}

// LeafSurfaces returns the surface indices referenced by a leaf.
func (w *World) LeafSurfaces(leaf *Leaf) []int32 {
	lo := int(leaf.FirstMark)
	hi := lo + int(leaf.NumMarks)
	if lo > len(w.MarkSurfaces) {
		return nil
	}
	if hi > len(w.MarkSurfaces) {
		hi = len(w.MarkSurfaces)
	}
	return w.MarkSurfaces[lo:hi]
}
