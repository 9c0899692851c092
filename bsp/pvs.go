package bsp

import (
	"bytes"
	"encoding/binary"

	"github.com/gekko3d/refresh"
)

func (w *World) parseVis(data []byte, l lump, path string) error {
	if l.Len == 0 {
		// No vis lump: everything potentially sees everything.
		w.NumClusters = 0
		return nil
	}
	raw := data[l.Ofs : l.Ofs+l.Len]
	r := bytes.NewReader(raw)

	var numClusters uint32
	if err := binary.Read(r, binary.LittleEndian, &numClusters); err != nil {
		return refresh.MalformedAsset(path, "short vis header")
	}
	if int64(4+8*numClusters) > int64(len(raw)) {
		return refresh.MalformedAsset(path, "vis offset table out of bounds")
	}
	offsets := make([][2]int32, numClusters)
	if err := binary.Read(r, binary.LittleEndian, &offsets); err != nil {
		return refresh.MalformedAsset(path, "short vis offset table")
	}
	for _, o := range offsets {
		if o[0] < 0 || int(o[0]) >= len(raw) || o[1] < 0 || int(o[1]) >= len(raw) {
			return refresh.MalformedAsset(path, "vis row offset out of bounds")
		}
	}
	w.NumClusters = int(numClusters)
	w.visOffsets = offsets
	w.visData = raw
	return nil
}

// SetVis installs a visibility table directly, for procedurally built
// worlds and tests. Offsets index into data per cluster: [pvs, phs].
func (w *World) SetVis(numClusters int, offsets [][2]int32, data []byte) {
	w.NumClusters = numClusters
	w.visOffsets = offsets
	w.visData = data
}

// rowBytes is the byte length of one decompressed visibility row.
func (w *World) rowBytes() int {
	return (w.NumClusters + 7) / 8
}

// ClusterPVS returns the potentially visible set for a cluster as a bitset
// over clusters. Cluster -1 ("outside") and a world without vis data both
// yield an all-visible row. The cluster's own bit is always set.
func (w *World) ClusterPVS(cluster int) []byte {
	return w.clusterVis(cluster, 0)
}

// ClusterPHS is the hearable-set counterpart. Unused by rendering; exposed
// for completeness of the vis lump.
func (w *World) ClusterPHS(cluster int) []byte {
	return w.clusterVis(cluster, 1)
}

func (w *World) clusterVis(cluster int, which int) []byte {
	if cluster < 0 || w.NumClusters == 0 || cluster >= w.NumClusters {
		return allVisible(w.NumClusters)
	}
	row := decompressVis(w.visData[w.visOffsets[cluster][which]:], w.rowBytes())
	row[cluster>>3] |= 1 << (cluster & 7)
	return row
}

// decompressVis expands the run-length encoding: a nonzero byte is literal,
// a zero byte is followed by a count of zero bytes.
func decompressVis(in []byte, rowBytes int) []byte {
	out := make([]byte, rowBytes)
	op := 0
	for i := 0; op < rowBytes && i < len(in); {
		b := in[i]
		i++
		if b != 0 {
			out[op] = b
			op++
			continue
		}
		if i >= len(in) {
			break
		}
		op += int(in[i])
		i++
	}
	return out
}

func allVisible(numClusters int) []byte {
	n := (numClusters + 7) / 8
	if n == 0 {
		n = 1
	}
	row := make([]byte, n)
	for i := range row {
		row[i] = 0xff
	}
	return row
}

// AreaVisible reports whether an area's bit is set in the area mask handed
// down with the refdef. A nil mask (no door state known) passes everything.
func AreaVisible(area int, mask []byte) bool {
	if mask == nil {
		return true
	}
	if area < 0 || area>>3 >= len(mask) {
		return false
	}
	return mask[area>>3]&(1<<(area&7)) != 0
}
