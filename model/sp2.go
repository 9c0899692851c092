package model

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gekko3d/refresh"
)

const (
	sp2Ident   = "IDS2"
	sp2Version = 2
)

type sp2Header struct {
	Ident     [4]byte
	Version   uint32
	NumFrames uint32
}

type sp2DiskFrame struct {
	Width   int32
	Height  int32
	OriginX int32
	OriginY int32
	Name    [64]byte
}

// SpriteFrame is one billboard frame: dimensions, the hotspot offset, and
// the skin name resolved through the image cache at registration.
type SpriteFrame struct {
	Width, Height    int
	OriginX, OriginY int
	Skin             string
}

type SpriteModel struct {
	Frames []SpriteFrame
}

func LoadSP2(data []byte, path string) (*SpriteModel, error) {
	r := bytes.NewReader(data)
	var hdr sp2Header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, refresh.MalformedAsset(path, "short sp2 header")
	}
	if string(hdr.Ident[:]) != sp2Ident {
		return nil, refresh.MalformedAsset(path, fmt.Sprintf("bad ident %q", hdr.Ident))
	}
	if hdr.Version != sp2Version {
		return nil, &refresh.AssetError{
			Path: path,
			Err:  fmt.Errorf("%w: sp2 version %d, want %d", refresh.ErrUnsupportedVersion, hdr.Version, sp2Version),
		}
	}

	frames := make([]sp2DiskFrame, hdr.NumFrames)
	if err := binary.Read(r, binary.LittleEndian, &frames); err != nil {
		return nil, refresh.MalformedAsset(path, "truncated sprite frames")
	}

	m := &SpriteModel{Frames: make([]SpriteFrame, hdr.NumFrames)}
	for i, f := range frames {
		m.Frames[i] = SpriteFrame{
			Width:   int(f.Width),
			Height:  int(f.Height),
			OriginX: int(f.OriginX),
			OriginY: int(f.OriginY),
			Skin:    cStr(f.Name[:]),
		}
	}
	return m, nil
}
