package model

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// NumVertexNormals is the size of the compressed-normal codebook: every
// alias vertex stores one byte indexing into this table.
const NumVertexNormals = 162

// VertexNormals is the unit-direction codebook, the 162 vertices of a
// twice-subdivided icosahedron, ordered deterministically.
var VertexNormals = buildNormalTable()

func buildNormalTable() [NumVertexNormals]mgl32.Vec3 {
	const t = 1.618033988749895 // golden ratio

	base := []mgl32.Vec3{
		{-1, t, 0}, {1, t, 0}, {-1, -t, 0}, {1, -t, 0},
		{0, -1, t}, {0, 1, t}, {0, -1, -t}, {0, 1, -t},
		{t, 0, -1}, {t, 0, 1}, {-t, 0, -1}, {-t, 0, 1},
	}
	for i := range base {
		base[i] = base[i].Normalize()
	}
	faces := [][3]int{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}

	verts := append([]mgl32.Vec3(nil), base...)
	midpoint := func(cacheKeys map[[2]int]int, a, b int) int {
		k := [2]int{min(a, b), max(a, b)}
		if idx, ok := cacheKeys[k]; ok {
			return idx
		}
		m := verts[a].Add(verts[b]).Mul(0.5).Normalize()
		verts = append(verts, m)
		cacheKeys[k] = len(verts) - 1
		return len(verts) - 1
	}

	// Two subdivision rounds: 12 -> 42 -> 162 unique vertices.
	for round := 0; round < 2; round++ {
		cache := make(map[[2]int]int)
		var next [][3]int
		for _, f := range faces {
			a := midpoint(cache, f[0], f[1])
			b := midpoint(cache, f[1], f[2])
			c := midpoint(cache, f[2], f[0])
			next = append(next,
				[3]int{f[0], a, c}, [3]int{f[1], b, a}, [3]int{f[2], c, b}, [3]int{a, b, c})
		}
		faces = next
	}

	sort.Slice(verts, func(i, j int) bool {
		a, b := verts[i], verts[j]
		if a[2] != b[2] {
			return a[2] > b[2]
		}
		if a[1] != b[1] {
			return a[1] > b[1]
		}
		return a[0] > b[0]
	})

	var table [NumVertexNormals]mgl32.Vec3
	copy(table[:], verts)
	return table
}

// BuildDotTable bakes per-normal diffuse terms for one shade direction. The
// table is sized 256 so the normal byte indexes it without a bounds check;
// the tail wraps back over the codebook.
func BuildDotTable(shadeDir mgl32.Vec3) [256]float32 {
	var table [256]float32
	for i := range table {
		n := VertexNormals[i%NumVertexNormals]
		d := n.Dot(shadeDir)
		if d < 0 {
			d = 0
		}
		table[i] = d
	}
	return table
}

// ShadeDirForYaw is the canonical light direction used for alias lighting,
// rotated by entity yaw.
func ShadeDirForYaw(yawDeg float32) mgl32.Vec3 {
	yaw := float64(yawDeg) * math.Pi / 180
	return mgl32.Vec3{float32(math.Cos(-yaw)), float32(math.Sin(-yaw)), 1}.Normalize()
}
