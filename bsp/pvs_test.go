package bsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecompressVis(t *testing.T) {
	tests := []struct {
		name     string
		in       []byte
		rowBytes int
		want     []byte
	}{
		{
			name:     "literal run",
			in:       []byte{0xff, 0x01},
			rowBytes: 2,
			want:     []byte{0xff, 0x01},
		},
		{
			name:     "zero run in the middle",
			in:       []byte{0x03, 0x00, 0x02, 0x80},
			rowBytes: 4,
			want:     []byte{0x03, 0x00, 0x00, 0x80},
		},
		{
			name:     "input shorter than row",
			in:       []byte{0x01},
			rowBytes: 3,
			want:     []byte{0x01, 0x00, 0x00},
		},
		{
			name:     "zero run overshoots row end",
			in:       []byte{0x00, 0x08, 0xaa},
			rowBytes: 4,
			want:     []byte{0x00, 0x00, 0x00, 0x00},
		},
	}
	for _, tc := range tests {
		got := decompressVis(tc.in, tc.rowBytes)
		assert.Equal(t, tc.want, got, tc.name)
	}
}

// visWorld builds a World with 10 clusters where cluster 2's PVS row is
// {clusters 5 and 8 visible} stored compressed, and its PHS row is empty.
func visWorld() *World {
	// Row bytes for 10 clusters: 2. PVS row: 0x20, 0x01 -> clusters 5 and 8.
	// Layout: offsets point into visData.
	w := &World{NumClusters: 10}
	w.visOffsets = make([][2]int32, 10)
	w.visData = []byte{
		0x20, 0x01, // offset 0: pvs for cluster 2: literal 0x20, then literal 0x01 -> clusters 5 and 8
		0x00, 0x02, // offset 2: an all-zero row (zero run of 2)
	}
	for i := range w.visOffsets {
		w.visOffsets[i] = [2]int32{2, 2} // default: see nothing
	}
	w.visOffsets[2] = [2]int32{0, 2}
	return w
}

func TestClusterPVSSelfBit(t *testing.T) {
	w := visWorld()
	for c := 0; c < w.NumClusters; c++ {
		row := w.ClusterPVS(c)
		assert.NotZero(t, row[c>>3]&(1<<(c&7)), "cluster %d must see itself", c)
	}
}

func TestClusterPVSContents(t *testing.T) {
	w := visWorld()
	row := w.ClusterPVS(2)
	// Compressed row said clusters 5 and 8; self bit 2 is forced on.
	assert.Equal(t, byte(0x24), row[0])
	assert.Equal(t, byte(0x01), row[1])

	// Cluster 3 sees only itself.
	row = w.ClusterPVS(3)
	assert.Equal(t, byte(0x08), row[0])
	assert.Equal(t, byte(0x00), row[1])
}

func TestClusterPVSOutside(t *testing.T) {
	w := visWorld()
	row := w.ClusterPVS(-1)
	for _, b := range row {
		assert.Equal(t, byte(0xff), b)
	}

	// No vis data at all: everything visible.
	empty := &World{}
	assert.Equal(t, []byte{0xff}, empty.ClusterPVS(0))
}

func TestClusterPHS(t *testing.T) {
	w := visWorld()
	row := w.ClusterPHS(2)
	// PHS row is the all-zero run; only the self bit survives.
	assert.Equal(t, byte(0x04), row[0])
	assert.Equal(t, byte(0x00), row[1])
}

func TestAreaVisible(t *testing.T) {
	mask := []byte{0b0000_0101}
	assert.True(t, AreaVisible(0, mask))
	assert.False(t, AreaVisible(1, mask))
	assert.True(t, AreaVisible(2, mask))
	assert.False(t, AreaVisible(200, mask), "out-of-range area is not visible")
	assert.True(t, AreaVisible(7, nil), "nil mask passes everything")
}
