package render

import (
	"bytes"
	"encoding/binary"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/refresh/client"
	"github.com/gekko3d/refresh/texture"
)

// frameBind returns (creating on first use) the group-0 bind group tying a
// pipeline to the current frame slot's uniform buffer.
func (r *Renderer) frameBind(pipe *wgpu.RenderPipeline) *wgpu.BindGroup {
	if r.frameBinds == nil {
		r.frameBinds = make(map[*wgpu.RenderPipeline][FramesInFlight]*wgpu.BindGroup)
	}
	slots, ok := r.frameBinds[pipe]
	if !ok {
		layout := pipe.GetBindGroupLayout(0)
		for i := 0; i < FramesInFlight; i++ {
			bg, err := r.device.Handle().CreateBindGroup(&wgpu.BindGroupDescriptor{
				Layout: layout,
				Entries: []wgpu.BindGroupEntry{
					{Binding: 0, Buffer: r.slots[i].uniformBuf, Size: wgpu.WholeSize},
				},
			})
			if err != nil {
				r.Ctx.Log.Errorf("frame bind group: %v", err)
				layout.Release()
				return nil
			}
			slots[i] = bg
		}
		layout.Release()
		r.frameBinds[pipe] = slots
	}
	return slots[r.frameIndex]
}

// surfaceBind builds the group-1 textures for one opaque batch: diffuse,
// lightmap page, sampler. Released by the caller after the draw.
func (r *Renderer) surfaceBind(pipe *wgpu.RenderPipeline, key SurfKey) *wgpu.BindGroup {
	diffuse := r.texInfoView(key.TexInfo)
	var lm *wgpu.TextureView
	if key.Page >= 0 && key.Page < len(r.lightmapHandles) {
		lm = View(r.lightmapHandles[key.Page])
	}
	if lm == nil {
		lm = diffuse
	}
	if diffuse == nil {
		return nil
	}
	layout := pipe.GetBindGroupLayout(1)
	defer layout.Release()
	bg, err := r.device.Handle().CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: diffuse, Size: wgpu.WholeSize},
			{Binding: 1, TextureView: lm, Size: wgpu.WholeSize},
			{Binding: 2, Sampler: r.linearSampler, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		r.Ctx.Log.Errorf("surface bind group: %v", err)
		return nil
	}
	return bg
}

// warpBind is the turbulent-surface variant: diffuse plus sampler only.
func (r *Renderer) warpBind(key SurfKey) *wgpu.BindGroup {
	diffuse := r.texInfoView(key.TexInfo)
	if diffuse == nil {
		return nil
	}
	layout := r.pipelines.Warp.GetBindGroupLayout(1)
	defer layout.Release()
	bg, err := r.device.Handle().CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: diffuse, Size: wgpu.WholeSize},
			{Binding: 2, Sampler: r.linearSampler, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		r.Ctx.Log.Errorf("warp bind group: %v", err)
		return nil
	}
	return bg
}

func (r *Renderer) texInfoView(ti int32) *wgpu.TextureView {
	if int(ti) >= len(r.texImages) || r.texImages[ti] == nil {
		return nil
	}
	return View(r.texImages[ti].Handle)
}

// surfParams matches warp.wgsl's group-2 block: x surface alpha, y flow.
type surfParams struct {
	Blend [4]float32
}

func (r *Renderer) warpParamsBind(alpha, flow float32) *wgpu.BindGroup {
	var raw bytes.Buffer
	binary.Write(&raw, binary.LittleEndian, surfParams{Blend: [4]float32{alpha, flow, 0, 0}})
	buf, err := r.device.Handle().CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "surf params",
		Contents: raw.Bytes(),
		Usage:    wgpu.BufferUsageUniform,
	})
	if err != nil {
		r.Ctx.Log.Errorf("surf params: %v", err)
		return nil
	}
	layout := r.pipelines.Warp.GetBindGroupLayout(2)
	defer layout.Release()
	bg, err := r.device.Handle().CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: buf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		r.Ctx.Log.Errorf("surf params bind: %v", err)
		return nil
	}
	return bg
}

// entityParams matches alias.wgsl's group-2 block. Vertices are already in
// world space, so the model matrix stays identity and tint carries shading.
type entityParams struct {
	Model [16]float32
	Tint  [4]float32
}

func (r *Renderer) entityBind(pipe *wgpu.RenderPipeline, tint [4]float32) *wgpu.BindGroup {
	ident := mgl32.Ident4()
	p := entityParams{Tint: tint}
	copy(p.Model[:], ident[:])

	var raw bytes.Buffer
	binary.Write(&raw, binary.LittleEndian, p)
	buf, err := r.device.Handle().CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "entity params",
		Contents: raw.Bytes(),
		Usage:    wgpu.BufferUsageUniform,
	})
	if err != nil {
		r.Ctx.Log.Errorf("entity params: %v", err)
		return nil
	}
	layout := pipe.GetBindGroupLayout(2)
	defer layout.Release()
	bg, err := r.device.Handle().CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: buf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		r.Ctx.Log.Errorf("entity params bind: %v", err)
		return nil
	}
	return bg
}

// skinBind is the alias pipeline's group 1: the entity's skin.
func (r *Renderer) skinBind(pipe *wgpu.RenderPipeline, skin texture.TextureHandle) *wgpu.BindGroup {
	view := View(skin)
	if view == nil {
		view = View(r.Ctx.Images.NoTexture.Handle)
	}
	if view == nil {
		return nil
	}
	layout := pipe.GetBindGroupLayout(1)
	defer layout.Release()
	bg, err := r.device.Handle().CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: view, Size: wgpu.WholeSize},
			{Binding: 2, Sampler: r.linearSampler, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		r.Ctx.Log.Errorf("skin bind group: %v", err)
		return nil
	}
	return bg
}

// particleBind uploads one class's instances as a storage buffer.
func (r *Renderer) particleBind(pipe *wgpu.RenderPipeline, instances []client.ParticleInstance) *wgpu.BindGroup {
	buf, err := r.device.Handle().CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "particle instances",
		Contents: wgpu.ToBytes(instances),
		Usage:    wgpu.BufferUsageStorage,
	})
	if err != nil {
		r.Ctx.Log.Errorf("particle instances: %v", err)
		return nil
	}
	layout := pipe.GetBindGroupLayout(1)
	defer layout.Release()
	bg, err := r.device.Handle().CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: buf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		r.Ctx.Log.Errorf("particle bind group: %v", err)
		return nil
	}
	return bg
}
