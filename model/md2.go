package model

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/refresh"
)

const (
	md2Ident   = "IDP2"
	md2Version = 8
)

type md2Header struct {
	Ident     [4]byte
	Version   uint32
	SkinW     uint32
	SkinH     uint32
	FrameSize uint32
	NumSkins  uint32
	NumXYZ    uint32
	NumST     uint32
	NumTris   uint32
	NumGLCmds uint32
	NumFrames uint32
	OfsSkins  uint32
	OfsST     uint32
	OfsTris   uint32
	OfsFrames uint32
	OfsGLCmds uint32
	OfsEnd    uint32
}

// CompressedVert is the on-disk alias vertex: a byte per axis inside the
// frame's bbox plus an index into the normal codebook.
type CompressedVert struct {
	Pos       [3]uint8
	NormalIdx uint8
}

type AliasFrame struct {
	Scale     mgl32.Vec3
	Translate mgl32.Vec3
	Name      string
	Verts     []CompressedVert
}

type Triangle struct {
	XYZ [3]uint16
	ST  [3]uint16
}

type TexCoord struct {
	S, T int16
}

type AliasModel struct {
	SkinW, SkinH int
	Skins        []string
	Frames       []AliasFrame
	Tris         []Triangle
	TexCoords    []TexCoord
}

// LoadMD2 parses an IDP2 v8 alias model.
func LoadMD2(data []byte, path string) (*AliasModel, error) {
	var hdr md2Header
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &hdr); err != nil {
		return nil, refresh.MalformedAsset(path, "short md2 header")
	}
	if string(hdr.Ident[:]) != md2Ident {
		return nil, refresh.MalformedAsset(path, fmt.Sprintf("bad ident %q", hdr.Ident))
	}
	if hdr.Version != md2Version {
		return nil, &refresh.AssetError{
			Path: path,
			Err:  fmt.Errorf("%w: md2 version %d, want %d", refresh.ErrUnsupportedVersion, hdr.Version, md2Version),
		}
	}
	if hdr.NumXYZ == 0 || hdr.NumFrames == 0 {
		return nil, refresh.MalformedAsset(path, "empty model")
	}

	m := &AliasModel{
		SkinW: int(hdr.SkinW),
		SkinH: int(hdr.SkinH),
	}

	// Skins: 64-byte name slots.
	if int(hdr.OfsSkins)+int(hdr.NumSkins)*64 > len(data) {
		return nil, refresh.MalformedAsset(path, "skins out of bounds")
	}
	for i := 0; i < int(hdr.NumSkins); i++ {
		ofs := int(hdr.OfsSkins) + i*64
		m.Skins = append(m.Skins, cStr(data[ofs:ofs+64]))
	}

	// Texture coordinates.
	if int(hdr.OfsST)+int(hdr.NumST)*4 > len(data) {
		return nil, refresh.MalformedAsset(path, "texcoords out of bounds")
	}
	m.TexCoords = make([]TexCoord, hdr.NumST)
	for i := range m.TexCoords {
		ofs := int(hdr.OfsST) + i*4
		m.TexCoords[i] = TexCoord{
			S: int16(binary.LittleEndian.Uint16(data[ofs:])),
			T: int16(binary.LittleEndian.Uint16(data[ofs+2:])),
		}
	}

	// Triangles.
	if int(hdr.OfsTris)+int(hdr.NumTris)*12 > len(data) {
		return nil, refresh.MalformedAsset(path, "triangles out of bounds")
	}
	m.Tris = make([]Triangle, hdr.NumTris)
	for i := range m.Tris {
		ofs := int(hdr.OfsTris) + i*12
		for j := 0; j < 3; j++ {
			m.Tris[i].XYZ[j] = binary.LittleEndian.Uint16(data[ofs+j*2:])
			m.Tris[i].ST[j] = binary.LittleEndian.Uint16(data[ofs+6+j*2:])
			if int(m.Tris[i].XYZ[j]) >= int(hdr.NumXYZ) {
				return nil, refresh.MalformedAsset(path, "triangle vertex out of range")
			}
		}
	}

	// Frames: scale, translate, name[16], verts.
	frameSize := 6*4 + 16 + int(hdr.NumXYZ)*4
	if int(hdr.FrameSize) != frameSize {
		return nil, refresh.MalformedAsset(path, "frame size mismatch")
	}
	if int(hdr.OfsFrames)+int(hdr.NumFrames)*frameSize > len(data) {
		return nil, refresh.MalformedAsset(path, "frames out of bounds")
	}
	m.Frames = make([]AliasFrame, hdr.NumFrames)
	for i := range m.Frames {
		ofs := int(hdr.OfsFrames) + i*frameSize
		f := &m.Frames[i]
		for j := 0; j < 3; j++ {
			f.Scale[j] = f32(data[ofs+j*4:])
			f.Translate[j] = f32(data[ofs+12+j*4:])
		}
		f.Name = cStr(data[ofs+24 : ofs+40])
		f.Verts = make([]CompressedVert, hdr.NumXYZ)
		vofs := ofs + 40
		for v := range f.Verts {
			f.Verts[v] = CompressedVert{
				Pos:       [3]uint8{data[vofs], data[vofs+1], data[vofs+2]},
				NormalIdx: data[vofs+3],
			}
			vofs += 4
		}
	}
	return m, nil
}

// DecodeVert expands a compressed vertex through its frame's bbox.
func (f *AliasFrame) DecodeVert(i int) mgl32.Vec3 {
	v := f.Verts[i]
	return mgl32.Vec3{
		float32(v.Pos[0])*f.Scale[0] + f.Translate[0],
		float32(v.Pos[1])*f.Scale[1] + f.Translate[1],
		float32(v.Pos[2])*f.Scale[2] + f.Translate[2],
	}
}

// LerpParams are the per-frame constants of the vertex interpolation
// pos = Move + old*Back + curr*Front, derived once per entity per frame.
type LerpParams struct {
	Move  mgl32.Vec3
	Front mgl32.Vec3
	Back  mgl32.Vec3
}

// ComputeLerp folds the two frames' scale/translate and the blend factor
// into three constants, so the per-vertex work is a fused multiply-add.
func ComputeLerp(oldFrame, frame *AliasFrame, frontLerp float32) LerpParams {
	backLerp := 1 - frontLerp
	var p LerpParams
	for j := 0; j < 3; j++ {
		p.Move[j] = backLerp*oldFrame.Translate[j] + frontLerp*frame.Translate[j]
		p.Front[j] = frontLerp * frame.Scale[j]
		p.Back[j] = backLerp * oldFrame.Scale[j]
	}
	return p
}

// LerpVert blends one vertex between two frames. With shellScale nonzero the
// position is pushed out along the codebook normal (the "shell" power-up
// effect).
func LerpVert(p LerpParams, old, cur CompressedVert, shellScale float32) mgl32.Vec3 {
	out := mgl32.Vec3{
		p.Move[0] + float32(old.Pos[0])*p.Back[0] + float32(cur.Pos[0])*p.Front[0],
		p.Move[1] + float32(old.Pos[1])*p.Back[1] + float32(cur.Pos[1])*p.Front[1],
		p.Move[2] + float32(old.Pos[2])*p.Back[2] + float32(cur.Pos[2])*p.Front[2],
	}
	if shellScale != 0 {
		n := VertexNormals[int(cur.NormalIdx)%NumVertexNormals]
		out = out.Add(n.Mul(shellScale))
	}
	return out
}

func f32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func cStr(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
