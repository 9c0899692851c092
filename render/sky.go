package render

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/refresh"
	"github.com/gekko3d/refresh/texture"
)

// skySuffixes name the six env faces in +x -x +y -y +z -z cube order.
var skySuffixes = [6]string{"rt", "lf", "bk", "ft", "up", "dn"}

// Sky holds the cubemap for the current map plus its rotation. The axis is
// used exactly as the map supplied it, not re-normalized per frame, to
// keep parity with maps authored against that behavior.
type Sky struct {
	tex     *wgpu.Texture
	view    *wgpu.TextureView
	sampler *wgpu.Sampler

	Axis   mgl32.Vec3
	Rotate float32 // degrees per second
}

// LoadSky assembles env/<name><face>.tga into a cube texture. Any missing
// face fails the whole sky; the caller keeps rendering without one.
func (r *Renderer) LoadSky(loader refresh.FileLoader, name string, rotate float32, axis mgl32.Vec3) error {
	faces := make([][]byte, 6)
	size := 0
	for i, suffix := range skySuffixes {
		path := fmt.Sprintf("env/%s%s.tga", name, suffix)
		data, err := loader(path)
		if err != nil {
			return &refresh.AssetError{Path: path, Err: err}
		}
		pix, w, h, err := texture.DecodeTGA(data)
		if err != nil {
			return refresh.MalformedAsset(path, err.Error())
		}
		if w != h {
			return refresh.MalformedAsset(path, "sky face not square")
		}
		if size == 0 {
			size = w
		} else if w != size {
			return refresh.MalformedAsset(path, "sky face size mismatch")
		}
		faces[i] = pix
	}

	tex, err := r.device.Handle().CreateTexture(&wgpu.TextureDescriptor{
		Label:         "sky " + name,
		Size:          wgpu.Extent3D{Width: uint32(size), Height: uint32(size), DepthOrArrayLayers: 6},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("%w: sky: %v", refresh.ErrOutOfMemory, err)
	}
	for i, pix := range faces {
		err = r.device.Queue().WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture: tex,
				Origin:  wgpu.Origin3D{Z: uint32(i)},
			},
			pix,
			&wgpu.TextureDataLayout{BytesPerRow: uint32(size * 4), RowsPerImage: uint32(size)},
			&wgpu.Extent3D{Width: uint32(size), Height: uint32(size), DepthOrArrayLayers: 1},
		)
		if err != nil {
			tex.Release()
			return err
		}
	}
	view, err := tex.CreateView(&wgpu.TextureViewDescriptor{
		Dimension:       wgpu.TextureViewDimensionCube,
		ArrayLayerCount: 6,
	})
	if err != nil {
		tex.Release()
		return err
	}
	sampler, err := r.device.Handle().CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "sky",
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		MaxAnisotropy: 1,
	})
	if err != nil {
		view.Release()
		tex.Release()
		return err
	}

	if r.sky != nil {
		r.sky.release()
	}
	r.sky = &Sky{tex: tex, view: view, sampler: sampler, Axis: axis, Rotate: rotate}
	return nil
}

func (s *Sky) release() {
	if s.sampler != nil {
		s.sampler.Release()
	}
	if s.view != nil {
		s.view.Release()
	}
	if s.tex != nil {
		s.tex.Release()
	}
}

type skyParams struct {
	AxisAngle [4]float32
}

// bind builds the sky pass's group 1: cubemap, sampler, and this frame's
// rotation angle.
func (s *Sky) bind(r *Renderer, rd *RefDef) *wgpu.BindGroup {
	angle := mgl32.DegToRad(s.Rotate * float32(rd.Time))
	var raw bytes.Buffer
	binary.Write(&raw, binary.LittleEndian, skyParams{
		AxisAngle: [4]float32{s.Axis[0], s.Axis[1], s.Axis[2], angle},
	})
	buf, err := r.device.Handle().CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "sky params",
		Contents: raw.Bytes(),
		Usage:    wgpu.BufferUsageUniform,
	})
	if err != nil {
		r.Ctx.Log.Errorf("sky params: %v", err)
		return nil
	}
	layout := r.pipelines.Sky.GetBindGroupLayout(1)
	defer layout.Release()
	bg, err := r.device.Handle().CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: s.view, Size: wgpu.WholeSize},
			{Binding: 1, Sampler: s.sampler, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: buf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		r.Ctx.Log.Errorf("sky bind group: %v", err)
		return nil
	}
	return bg
}
