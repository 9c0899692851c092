package render

import (
	"bytes"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/refresh"
	"github.com/gekko3d/refresh/bsp"
)

// SurfKey groups opaque surfaces for batched draws.
type SurfKey struct {
	TexInfo int32
	Page    int
}

// SurfaceQueues collects the frame's marked surfaces. Opaque surfaces batch
// by (texture, lightmap page); sky and translucent keep BSP visit order —
// front to back — and the translucent pass iterates them in reverse.
type SurfaceQueues struct {
	Opaque      map[SurfKey][]int32
	OpaqueKeys  []SurfKey // insertion order, for deterministic submission
	Sky         []int32
	Translucent []int32
}

func NewSurfaceQueues() *SurfaceQueues {
	return &SurfaceQueues{Opaque: make(map[SurfKey][]int32)}
}

func (q *SurfaceQueues) Reset() {
	for k := range q.Opaque {
		delete(q.Opaque, k)
	}
	q.OpaqueKeys = q.OpaqueKeys[:0]
	q.Sky = q.Sky[:0]
	q.Translucent = q.Translucent[:0]
}

func (q *SurfaceQueues) add(w *bsp.World, si int32) {
	s := &w.Surfaces[si]
	switch {
	case s.Flags&bsp.SurfSky != 0:
		q.Sky = append(q.Sky, si)
	case s.Flags&(bsp.SurfTrans33|bsp.SurfTrans66) != 0:
		q.Translucent = append(q.Translucent, si)
	default:
		key := SurfKey{TexInfo: s.TexInfo, Page: s.LightmapPage}
		if _, ok := q.Opaque[key]; !ok {
			q.OpaqueKeys = append(q.OpaqueKeys, key)
		}
		q.Opaque[key] = append(q.Opaque[key], si)
	}
}

// Count returns the total queued surfaces, for r_speeds.
func (q *SurfaceQueues) Count() int {
	n := len(q.Sky) + len(q.Translucent)
	for _, list := range q.Opaque {
		n += len(list)
	}
	return n
}

// Walker owns PVS marking and the recursive world traversal. It carries the
// parent links the bsp arrays omit, plus the mark memoization state.
type Walker struct {
	world *bsp.World

	// nodeParents/leafParents hold the parent node index, -1 at the root.
	nodeParents []int32
	leafParents []int32

	visFrameCount int
	oldCluster    int32
	oldAreaMask   []byte
	oldNoVis      bool
	haveMarks     bool
}

func NewWalker(w *bsp.World) *Walker {
	wk := &Walker{
		world:         w,
		nodeParents:   make([]int32, len(w.Nodes)),
		leafParents:   make([]int32, len(w.Leafs)),
		oldCluster:    -2,
		visFrameCount: 1, // zero-valued leaves must not read as marked
	}
	for i := range wk.nodeParents {
		wk.nodeParents[i] = -1
	}
	for i := range wk.leafParents {
		wk.leafParents[i] = -1
	}
	for i := range w.Nodes {
		for _, child := range w.Nodes[i].Children {
			if child < 0 {
				wk.leafParents[-1-child] = int32(i)
			} else {
				wk.nodeParents[child] = int32(i)
			}
		}
	}
	return wk
}

func (wk *Walker) VisFrame() int { return wk.visFrameCount }

// MarkLeaves rebuilds the leaf/node mark set for a viewer cluster. With the
// cluster and area mask unchanged the previous marks stand; with lockPVS
// set nothing changes at all, freezing the visible set for debugging.
func (wk *Walker) MarkLeaves(cluster int32, areaMask []byte, lockPVS, noVis bool, workers int) {
	if lockPVS && wk.haveMarks {
		return
	}
	if wk.haveMarks && cluster == wk.oldCluster && cluster != -1 &&
		noVis == wk.oldNoVis && bytes.Equal(areaMask, wk.oldAreaMask) {
		return
	}
	wk.oldCluster = cluster
	wk.oldAreaMask = append(wk.oldAreaMask[:0], areaMask...)
	wk.oldNoVis = noVis
	wk.haveMarks = true
	wk.visFrameCount++

	w := wk.world
	var vis []byte
	if noVis || cluster == -1 {
		vis = nil // everything visible
	} else {
		vis = w.ClusterPVS(int(cluster))
	}

	// Leaf marking is independent per leaf; parents are stitched after the
	// parallel phase to keep the fan-out write-disjoint.
	marked := make([]bool, len(w.Leafs))
	refresh.ParallelFor(workers, len(w.Leafs), func(i int) {
		leaf := &w.Leafs[i]
		if leaf.Cluster < 0 {
			return
		}
		if vis != nil && vis[leaf.Cluster>>3]&(1<<(leaf.Cluster&7)) == 0 {
			return
		}
		if !bsp.AreaVisible(int(leaf.Area), areaMask) {
			return
		}
		marked[i] = true
	})

	for i, m := range marked {
		if !m {
			continue
		}
		w.Leafs[i].VisFrame = wk.visFrameCount
		for p := wk.leafParents[i]; p >= 0; p = wk.nodeParents[p] {
			if w.Nodes[p].VisFrame == wk.visFrameCount {
				break
			}
			w.Nodes[p].VisFrame = wk.visFrameCount
		}
	}
}

// WalkWorld runs the recursive front-to-back traversal from the root,
// marking surfaces with the frame number and queueing them.
func (wk *Walker) WalkWorld(viewOrg mgl32.Vec3, frustum *Frustum, noCull bool, frame int, q *SurfaceQueues) {
	if len(wk.world.Nodes) == 0 {
		return
	}
	wk.recursiveWorldNode(0, viewOrg, frustum, noCull, frame, q)
}

func (wk *Walker) recursiveWorldNode(idx int32, viewOrg mgl32.Vec3, frustum *Frustum, noCull bool, frame int, q *SurfaceQueues) {
	w := wk.world

	if idx < 0 {
		leaf := &w.Leafs[-1-idx]
		if leaf.VisFrame != wk.visFrameCount {
			return
		}
		if !noCull && frustum.CullBox(leaf.Mins, leaf.Maxs) {
			return
		}
		// Leaves only mark; the owning node emits, so each surface queues
		// at most once even when several leaves reference it.
		for _, si := range w.LeafSurfaces(leaf) {
			w.Surfaces[si].VisFrame = frame
		}
		return
	}

	node := &w.Nodes[idx]
	if node.VisFrame != wk.visFrameCount {
		return
	}
	if !noCull && frustum.CullBox(node.Mins, node.Maxs) {
		return
	}

	plane := &w.Planes[node.Plane]
	frontSide := plane.DistTo(viewOrg) > 0

	var near, far int32
	if frontSide {
		near, far = node.Children[0], node.Children[1]
	} else {
		near, far = node.Children[1], node.Children[0]
	}

	wk.recursiveWorldNode(near, viewOrg, frustum, noCull, frame, q)

	// The node's own faces are emitted between the subtrees, keeping the
	// global front-to-back order translucents and sky depend on. Only
	// faces whose stored side matches the viewer side are visible.
	for i := uint16(0); i < node.NumSurfaces; i++ {
		si := int32(node.FirstSurface) + int32(i)
		if int(si) >= len(w.Surfaces) {
			break
		}
		s := &w.Surfaces[si]
		if s.VisFrame != frame {
			continue
		}
		back := s.Flags&bsp.SurfPlaneBack != 0
		if back == frontSide {
			// Facing away from the viewer.
			continue
		}
		q.add(w, si)
	}

	wk.recursiveWorldNode(far, viewOrg, frustum, noCull, frame, q)
}
