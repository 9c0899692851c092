package post

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/refresh"
	"github.com/gekko3d/refresh/post/shaders"
)

// Chain owns the post targets and pipelines and executes the planned
// passes. Every pass is a fullscreen triangle sampling the previous pass's
// output; the ping/pong pair double-buffers the color stream.
type Chain struct {
	log    refresh.Logger
	device *wgpu.Device
	queue  *wgpu.Queue
	format wgpu.TextureFormat

	width, height int

	ping, pong  *target
	history     *target
	historyLive bool
	bloomMips   [BloomMips][2]*target // per level: blur ping/pong
	ao          [2]*target            // SSAO raw + blurred
	white       *target               // 1x1 stand-in when SSAO is off
	noise       *target               // 4x4 SSAO rotation tile, device-owned

	pipelines map[PassID]*wgpu.RenderPipeline
	gaussPipe *wgpu.RenderPipeline

	linear *wgpu.Sampler
	point  *wgpu.Sampler
}

type target struct {
	tex  *wgpu.Texture
	view *wgpu.TextureView
}

func NewChain(log refresh.Logger, device *wgpu.Device, queue *wgpu.Queue, format wgpu.TextureFormat, width, height int) (*Chain, error) {
	c := &Chain{
		log:       log,
		device:    device,
		queue:     queue,
		format:    format,
		pipelines: make(map[PassID]*wgpu.RenderPipeline),
	}

	var err error
	if c.linear, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "post linear",
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		MaxAnisotropy: 1,
	}); err != nil {
		return nil, err
	}
	if c.point, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "post point",
		MagFilter:     wgpu.FilterModeNearest,
		MinFilter:     wgpu.FilterModeNearest,
		MaxAnisotropy: 1,
	}); err != nil {
		return nil, err
	}

	passShaders := map[PassID]string{
		PassSSAO:           shaders.SSAOWGSL,
		PassBloomExtract:   shaders.BloomExtractWGSL,
		PassBloomComposite: shaders.BloomCompositeWGSL,
		PassEASU:           shaders.EASUWGSL,
		PassRCAS:           shaders.RCASWGSL,
		PassTemporal:       shaders.TemporalWGSL,
		PassFXAA:           shaders.FXAAWGSL,
		PassFinal:          shaders.FinalWGSL,
	}
	for id, src := range passShaders {
		pipe, err := c.fullscreenPipeline(fmt.Sprintf("post-%d", id), src)
		if err != nil {
			return nil, err
		}
		c.pipelines[id] = pipe
	}
	if c.gaussPipe, err = c.fullscreenPipeline("post-gauss9", shaders.Gauss9WGSL); err != nil {
		return nil, err
	}
	// The 5x5 box blur shares the SSAO slot's second stage.
	boxPipe, err := c.fullscreenPipeline("post-box5", shaders.Box5WGSL)
	if err != nil {
		return nil, err
	}
	c.pipelines[PassBloomBlur] = boxPipe

	if err := c.Resize(width, height); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Chain) fullscreenPipeline(label, fragment string) (*wgpu.RenderPipeline, error) {
	shader, err := c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.FullscreenWGSL + fragment},
	})
	if err != nil {
		return nil, err
	}
	defer shader.Release()
	return c.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: label,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{Format: c.format, WriteMask: wgpu.ColorWriteMaskAll},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
}

// Resize rebuilds the intermediate targets; history restarts cold.
func (c *Chain) Resize(width, height int) error {
	c.releaseTargets()
	c.width, c.height = width, height
	c.historyLive = false

	var err error
	if c.ping, err = c.makeTarget("post ping", width, height); err != nil {
		return err
	}
	if c.pong, err = c.makeTarget("post pong", width, height); err != nil {
		return err
	}
	if c.history, err = c.makeTarget("post history", width, height); err != nil {
		return err
	}
	for i := 0; i < BloomMips; i++ {
		mw, mh := MipSize(width, height, i+1)
		for j := 0; j < 2; j++ {
			if c.bloomMips[i][j], err = c.makeTarget("bloom mip", mw, mh); err != nil {
				return err
			}
		}
	}
	for j := 0; j < 2; j++ {
		if c.ao[j], err = c.makeTarget("ssao", width, height); err != nil {
			return err
		}
	}
	if c.white == nil {
		if c.white, err = c.makeTarget("white", 1, 1); err != nil {
			return err
		}
		// A saturated texel is all-ones in any 8-bit channel order.
		white := []byte{255, 255, 255, 255}
		c.queue.WriteTexture(
			c.white.tex.AsImageCopy(),
			white,
			&wgpu.TextureDataLayout{BytesPerRow: 4, RowsPerImage: 1},
			&wgpu.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
		)
	}
	return nil
}

func (c *Chain) makeTarget(label string, w, h int) (*target, error) {
	tex, err := c.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        c.format,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &target{tex: tex, view: view}, nil
}

func (c *Chain) releaseTargets() {
	for _, t := range []*target{c.ping, c.pong, c.history} {
		if t != nil {
			t.view.Release()
			t.tex.Release()
		}
	}
	c.ping, c.pong, c.history = nil, nil, nil
	for i := range c.bloomMips {
		for j, t := range c.bloomMips[i] {
			if t != nil {
				t.view.Release()
				t.tex.Release()
				c.bloomMips[i][j] = nil
			}
		}
	}
	for j, t := range c.ao {
		if t != nil {
			t.view.Release()
			t.tex.Release()
			c.ao[j] = nil
		}
	}
}

// Destroy releases everything the chain created on its device: the resize
// targets plus the per-chain singletons (white, noise), the samplers, and
// the pass pipelines. After Destroy the chain must not be used again; a
// device-lost rebuild constructs a fresh one.
func (c *Chain) Destroy() {
	c.releaseTargets()
	for _, t := range []*target{c.white, c.noise} {
		if t != nil {
			t.view.Release()
			t.tex.Release()
		}
	}
	c.white, c.noise = nil, nil
	if c.linear != nil {
		c.linear.Release()
		c.linear = nil
	}
	if c.point != nil {
		c.point.Release()
		c.point = nil
	}
	for id, pipe := range c.pipelines {
		pipe.Release()
		delete(c.pipelines, id)
	}
	if c.gaussPipe != nil {
		c.gaussPipe.Release()
		c.gaussPipe = nil
	}
}

// Run executes the planned passes from the scene color into the swapchain
// view. The sequence is fixed; disabled passes drop out of the plan.
func (c *Chain) Run(encoder *wgpu.CommandEncoder, scene, depth, swap *wgpu.TextureView, s Settings, reproject mgl32.Mat4) {
	plan := Plan(s)
	src := scene
	dst := c.ping

	for i, pass := range plan {
		last := i == len(plan)-1
		var out *wgpu.TextureView
		if last {
			out = swap
		} else {
			out = dst.view
		}

		switch pass {
		case PassSSAO:
			// Side channel: raw occlusion, then the 5x5 box blur; the
			// final pass multiplies it into the color stream.
			c.runSimple(encoder, c.pipelines[PassSSAO], c.ao[0].view, c.ssaoBindings(depth, s))
			c.runSimple(encoder, c.pipelines[PassBloomBlur], c.ao[1].view, c.blurBindings(c.ao[0].view))
			continue
		case PassBloomExtract, PassBloomBlur:
			if pass == PassBloomExtract {
				c.runBloom(encoder, src, s)
			}
			continue // mip work only; the color stream is unchanged
		case PassBloomComposite:
			c.runSimple(encoder, c.pipelines[PassBloomComposite], out, c.bloomCompositeBindings(src, s))
		case PassTemporal:
			c.runSimple(encoder, c.pipelines[PassTemporal], out, c.temporalBindings(src, depth, s, reproject))
			if !last {
				c.copyInto(encoder, dst, c.history)
			}
			c.historyLive = true
		case PassFinal:
			c.runSimple(encoder, c.pipelines[PassFinal], out, c.finalBindings(src, s))
		case PassRCAS:
			buf := c.uniformBuffer(struct{ Params [4]float32 }{[4]float32{s.FSRSharpness, 0, 0, 0}})
			c.runSimple(encoder, c.pipelines[PassRCAS], out, c.bindGroup(PassRCAS, []wgpu.BindGroupEntry{
				{Binding: 0, TextureView: src, Size: wgpu.WholeSize},
				{Binding: 1, Sampler: c.point, Size: wgpu.WholeSize},
				{Binding: 2, Buffer: buf, Size: wgpu.WholeSize},
			}))
		default:
			c.runSimple(encoder, c.pipelines[pass], out, c.singleInputBindings(pass, src))
		}

		if !last {
			src = dst.view
			if dst == c.ping {
				dst = c.pong
			} else {
				dst = c.ping
			}
		}
	}
}

// runBloom renders the extract into mip 0 and ping-pongs the 9-tap
// Gaussian horizontally then vertically down the chain.
func (c *Chain) runBloom(encoder *wgpu.CommandEncoder, scene *wgpu.TextureView, s Settings) {
	c.runSimple(encoder, c.pipelines[PassBloomExtract], c.bloomMips[0][0].view,
		c.bloomExtractBindings(scene, s))
	for level := 0; level < BloomMips; level++ {
		if level > 0 {
			// Downsample: previous level's blurred result into this level.
			c.runSimple(encoder, c.pipelines[PassBloomBlur], c.bloomMips[level][0].view,
				c.blurBindings(c.bloomMips[level-1][0].view))
		}
		c.runSimple(encoder, c.gaussPipe, c.bloomMips[level][1].view,
			c.gaussBindings(c.bloomMips[level][0].view, [2]float32{1, 0}))
		c.runSimple(encoder, c.gaussPipe, c.bloomMips[level][0].view,
			c.gaussBindings(c.bloomMips[level][1].view, [2]float32{0, 1}))
	}
}

func (c *Chain) runSimple(encoder *wgpu.CommandEncoder, pipe *wgpu.RenderPipeline, out *wgpu.TextureView, bind *wgpu.BindGroup) {
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       out,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{},
		}},
	})
	pass.SetPipeline(pipe)
	if bind != nil {
		pass.SetBindGroup(0, bind, nil)
	}
	pass.Draw(3, 1, 0, 0)
	pass.End()
	if bind != nil {
		bind.Release()
	}
}

func (c *Chain) copyInto(encoder *wgpu.CommandEncoder, from, to *target) {
	encoder.CopyTextureToTexture(
		from.tex.AsImageCopy(),
		to.tex.AsImageCopy(),
		&wgpu.Extent3D{Width: uint32(c.width), Height: uint32(c.height), DepthOrArrayLayers: 1},
	)
}

func (c *Chain) uniformBuffer(data any) *wgpu.Buffer {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, data)
	b, err := c.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "post params",
		Contents: buf.Bytes(),
		Usage:    wgpu.BufferUsageUniform,
	})
	if err != nil {
		c.log.Errorf("post uniform: %v", err)
		return nil
	}
	return b
}

func (c *Chain) bindGroup(pass PassID, entries []wgpu.BindGroupEntry) *wgpu.BindGroup {
	layout := c.pipelines[pass].GetBindGroupLayout(0)
	defer layout.Release()
	bg, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		c.log.Errorf("post bind group: %v", err)
		return nil
	}
	return bg
}

func (c *Chain) singleInputBindings(pass PassID, src *wgpu.TextureView) *wgpu.BindGroup {
	return c.bindGroup(pass, []wgpu.BindGroupEntry{
		{Binding: 0, TextureView: src, Size: wgpu.WholeSize},
		{Binding: 1, Sampler: c.linear, Size: wgpu.WholeSize},
	})
}

func (c *Chain) blurBindings(src *wgpu.TextureView) *wgpu.BindGroup {
	return c.bindGroup(PassBloomBlur, []wgpu.BindGroupEntry{
		{Binding: 0, TextureView: src, Size: wgpu.WholeSize},
		{Binding: 1, Sampler: c.point, Size: wgpu.WholeSize},
	})
}

type gaussParams struct {
	Dir [4]float32
}

func (c *Chain) gaussBindings(src *wgpu.TextureView, dir [2]float32) *wgpu.BindGroup {
	buf := c.uniformBuffer(gaussParams{Dir: [4]float32{dir[0], dir[1], 0, 0}})
	layout := c.gaussPipe.GetBindGroupLayout(0)
	defer layout.Release()
	bg, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: src, Size: wgpu.WholeSize},
			{Binding: 1, Sampler: c.linear, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: buf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		c.log.Errorf("gauss bind group: %v", err)
		return nil
	}
	return bg
}

type ssaoParams struct {
	Proj    [16]float32
	InvProj [16]float32
	Params  [4]float32
	Kernel  [SSAOKernelSize][4]float32
}

func (c *Chain) ssaoBindings(depth *wgpu.TextureView, s Settings) *wgpu.BindGroup {
	p := ssaoParams{
		Params: [4]float32{s.SSAORadius, s.SSAOIntensity, float32(c.width), float32(c.height)},
		Kernel: SSAOKernel(),
	}
	buf := c.uniformBuffer(p)
	noise := c.noiseTexture()
	return c.bindGroup(PassSSAO, []wgpu.BindGroupEntry{
		{Binding: 0, TextureView: depth, Size: wgpu.WholeSize},
		{Binding: 1, TextureView: noise, Size: wgpu.WholeSize},
		{Binding: 2, Sampler: c.point, Size: wgpu.WholeSize},
		{Binding: 3, Buffer: buf, Size: wgpu.WholeSize},
	})
}

// noiseTexture returns this chain's 4x4 rotation tile, creating it on the
// owning device the first time. Per chain, never shared: a rebuilt chain
// (device lost) must not inherit views from a destroyed device.
func (c *Chain) noiseTexture() *wgpu.TextureView {
	if c.noise != nil {
		return c.noise.view
	}
	tex, err := c.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "ssao noise",
		Size:          wgpu.Extent3D{Width: 4, Height: 4, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA32Float,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		c.log.Errorf("ssao noise: %v", err)
		return nil
	}
	noise := SSAONoise()
	var raw bytes.Buffer
	binary.Write(&raw, binary.LittleEndian, noise)
	c.queue.WriteTexture(
		tex.AsImageCopy(),
		raw.Bytes(),
		&wgpu.TextureDataLayout{BytesPerRow: 4 * 16, RowsPerImage: 4},
		&wgpu.Extent3D{Width: 4, Height: 4, DepthOrArrayLayers: 1},
	)
	view, err := tex.CreateView(nil)
	if err != nil {
		c.log.Errorf("ssao noise view: %v", err)
		tex.Release()
		return nil
	}
	c.noise = &target{tex: tex, view: view}
	return c.noise.view
}

type bloomParams struct {
	Params [4]float32
}

func (c *Chain) bloomExtractBindings(scene *wgpu.TextureView, s Settings) *wgpu.BindGroup {
	buf := c.uniformBuffer(bloomParams{Params: [4]float32{s.BloomThreshold, s.BloomIntensity, 0, 0}})
	return c.bindGroup(PassBloomExtract, []wgpu.BindGroupEntry{
		{Binding: 0, TextureView: scene, Size: wgpu.WholeSize},
		{Binding: 1, Sampler: c.linear, Size: wgpu.WholeSize},
		{Binding: 2, Buffer: buf, Size: wgpu.WholeSize},
	})
}

func (c *Chain) bloomCompositeBindings(scene *wgpu.TextureView, s Settings) *wgpu.BindGroup {
	buf := c.uniformBuffer(bloomParams{Params: [4]float32{s.BloomThreshold, s.BloomIntensity, 0, 0}})
	return c.bindGroup(PassBloomComposite, []wgpu.BindGroupEntry{
		{Binding: 0, TextureView: scene, Size: wgpu.WholeSize},
		{Binding: 1, TextureView: c.bloomMips[0][0].view, Size: wgpu.WholeSize},
		{Binding: 2, TextureView: c.bloomMips[1][0].view, Size: wgpu.WholeSize},
		{Binding: 3, TextureView: c.bloomMips[2][0].view, Size: wgpu.WholeSize},
		{Binding: 4, TextureView: c.bloomMips[3][0].view, Size: wgpu.WholeSize},
		{Binding: 5, Sampler: c.linear, Size: wgpu.WholeSize},
		{Binding: 6, Buffer: buf, Size: wgpu.WholeSize},
	})
}

type temporalParams struct {
	Reproject [16]float32
	Params    [4]float32
}

func (c *Chain) temporalBindings(src, depth *wgpu.TextureView, s Settings, reproject mgl32.Mat4) *wgpu.BindGroup {
	weight := float32(0.9)
	if !c.historyLive {
		weight = 0 // cold history: take the current frame whole
	}
	p := temporalParams{Params: [4]float32{weight, s.TemporalBox, 0.01, 0}}
	copy(p.Reproject[:], reproject[:])
	buf := c.uniformBuffer(p)
	return c.bindGroup(PassTemporal, []wgpu.BindGroupEntry{
		{Binding: 0, TextureView: src, Size: wgpu.WholeSize},
		{Binding: 1, TextureView: c.history.view, Size: wgpu.WholeSize},
		{Binding: 2, TextureView: depth, Size: wgpu.WholeSize},
		{Binding: 3, Sampler: c.linear, Size: wgpu.WholeSize},
		{Binding: 4, Buffer: buf, Size: wgpu.WholeSize},
	})
}

type finalParams struct {
	Blend  [4]float32
	Params [4]float32
}

func (c *Chain) finalBindings(src *wgpu.TextureView, s Settings) *wgpu.BindGroup {
	gamma := s.Gamma
	if gamma <= 0 {
		gamma = 1
	}
	buf := c.uniformBuffer(finalParams{
		Blend:  s.Blend,
		Params: [4]float32{1 / gamma, 0, 0, 0},
	})
	ao := c.white.view
	if s.SSAO {
		ao = c.ao[1].view
	}
	return c.bindGroup(PassFinal, []wgpu.BindGroupEntry{
		{Binding: 0, TextureView: src, Size: wgpu.WholeSize},
		{Binding: 1, Sampler: c.linear, Size: wgpu.WholeSize},
		{Binding: 2, Buffer: buf, Size: wgpu.WholeSize},
		{Binding: 3, TextureView: ao, Size: wgpu.WholeSize},
	})
}
