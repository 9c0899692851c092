package model

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/refresh"
)

// buildMD2 serializes a two-frame, two-vertex, one-triangle model.
func buildMD2(t *testing.T, version uint32) []byte {
	t.Helper()
	const numXYZ = 2

	var hdr md2Header
	copy(hdr.Ident[:], md2Ident)
	hdr.Version = version
	hdr.SkinW, hdr.SkinH = 64, 64
	hdr.NumSkins = 1
	hdr.NumXYZ = numXYZ
	hdr.NumST = 2
	hdr.NumTris = 1
	hdr.NumFrames = 2
	hdr.FrameSize = uint32(6*4 + 16 + numXYZ*4)

	hdrSize := uint32(binary.Size(hdr))
	hdr.OfsSkins = hdrSize
	hdr.OfsST = hdr.OfsSkins + 64
	hdr.OfsTris = hdr.OfsST + 2*4
	hdr.OfsFrames = hdr.OfsTris + 12
	hdr.OfsEnd = hdr.OfsFrames + 2*hdr.FrameSize

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, hdr))

	skin := [64]byte{}
	copy(skin[:], "models/test/skin.pcx")
	buf.Write(skin[:])

	for _, st := range [][2]int16{{0, 0}, {32, 32}} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, st))
	}

	require.NoError(t, binary.Write(&buf, binary.LittleEndian, [6]uint16{0, 1, 0, 0, 1, 0}))

	writeFrame := func(scale, translate [3]float32, name string, verts [][4]uint8) {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, scale))
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, translate))
		var nm [16]byte
		copy(nm[:], name)
		buf.Write(nm[:])
		for _, v := range verts {
			buf.Write(v[:])
		}
	}
	writeFrame([3]float32{1, 1, 1}, [3]float32{0, 0, 0}, "stand01",
		[][4]uint8{{0, 0, 0, 0}, {10, 0, 0, 5}})
	writeFrame([3]float32{2, 2, 2}, [3]float32{1, 1, 1}, "stand02",
		[][4]uint8{{0, 0, 0, 0}, {10, 0, 0, 5}})

	return buf.Bytes()
}

func TestLoadMD2(t *testing.T) {
	m, err := LoadMD2(buildMD2(t, md2Version), "models/test/tris.md2")
	require.NoError(t, err)

	assert.Equal(t, []string{"models/test/skin.pcx"}, m.Skins)
	require.Len(t, m.Frames, 2)
	assert.Equal(t, "stand01", m.Frames[0].Name)
	assert.Equal(t, "stand02", m.Frames[1].Name)
	require.Len(t, m.Tris, 1)
	assert.Equal(t, uint16(1), m.Tris[0].XYZ[1])

	// Frame 1 decodes through scale 2 / translate 1.
	v := m.Frames[1].DecodeVert(1)
	assert.Equal(t, mgl32.Vec3{21, 1, 1}, v)
}

func TestLoadMD2RejectsVersion(t *testing.T) {
	_, err := LoadMD2(buildMD2(t, 7), "models/test/tris.md2")
	assert.ErrorIs(t, err, refresh.ErrUnsupportedVersion)
}

func TestLoadMD2RejectsGarbage(t *testing.T) {
	_, err := LoadMD2([]byte("IDP2 but far too short"), "models/short.md2")
	assert.ErrorIs(t, err, refresh.ErrMalformedAsset)

	data := buildMD2(t, md2Version)
	copy(data[0:4], "NOPE")
	_, err = LoadMD2(data, "models/bad.md2")
	assert.ErrorIs(t, err, refresh.ErrMalformedAsset)
}

func TestLerpVert(t *testing.T) {
	old := AliasFrame{Scale: mgl32.Vec3{1, 1, 1}, Translate: mgl32.Vec3{0, 0, 0}}
	cur := AliasFrame{Scale: mgl32.Vec3{1, 1, 1}, Translate: mgl32.Vec3{0, 0, 0}}

	p := ComputeLerp(&old, &cur, 0.5)
	v := LerpVert(p, CompressedVert{Pos: [3]uint8{0, 0, 0}}, CompressedVert{Pos: [3]uint8{100, 0, 0}}, 0)
	assert.InDelta(t, 50, v[0], 1e-5)
	assert.Zero(t, v[1])

	// frontlerp 1 lands exactly on the current frame.
	p = ComputeLerp(&old, &cur, 1)
	v = LerpVert(p, CompressedVert{Pos: [3]uint8{7, 7, 7}}, CompressedVert{Pos: [3]uint8{100, 2, 3}}, 0)
	assert.Equal(t, mgl32.Vec3{100, 2, 3}, v)
}

func TestLerpVertShell(t *testing.T) {
	f := AliasFrame{Scale: mgl32.Vec3{1, 1, 1}}
	p := ComputeLerp(&f, &f, 1)
	base := LerpVert(p, CompressedVert{}, CompressedVert{NormalIdx: 3}, 0)
	shelled := LerpVert(p, CompressedVert{}, CompressedVert{NormalIdx: 3}, 2)
	assert.InDelta(t, 2, shelled.Sub(base).Len(), 1e-5, "shell pushes exactly shellScale along a unit normal")
}

func TestNormalTable(t *testing.T) {
	seen := make(map[mgl32.Vec3]bool)
	for i, n := range VertexNormals {
		assert.InDelta(t, 1, n.Len(), 1e-5, "normal %d must be unit length", i)
		assert.False(t, seen[n], "normal %d duplicated", i)
		seen[n] = true
	}
}

func TestDotTable(t *testing.T) {
	table := BuildDotTable(mgl32.Vec3{0, 0, 1})
	for i := 0; i < 256; i++ {
		assert.GreaterOrEqual(t, table[i], float32(0))
		assert.LessOrEqual(t, table[i], float32(1))
		// Tail wraps over the codebook.
		if i >= NumVertexNormals {
			assert.Equal(t, table[i%NumVertexNormals], table[i])
		}
	}
	// Straight-up normal lit from straight up is full bright. The table is
	// sorted by descending z, so entry 0 is the +z pole.
	assert.InDelta(t, 1, table[0], 1e-5)
}
