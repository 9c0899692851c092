package render

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/refresh/texture"
)

// OverlayBatch is one textured 2D draw: console text page, HUD pic.
type OverlayBatch struct {
	Verts  []OverlayVertex
	Handle texture.TextureHandle
}

// DrawOverlay composites 2D batches over the swapchain image. Runs after
// post; coordinates are clip space.
func (r *Renderer) DrawOverlay(encoder *wgpu.CommandEncoder, swap *wgpu.TextureView, batches []OverlayBatch) {
	var all []OverlayVertex
	type span struct {
		handle texture.TextureHandle
		first  int
		count  int
	}
	var spans []span
	for _, b := range batches {
		if len(b.Verts) == 0 {
			continue
		}
		spans = append(spans, span{handle: b.Handle, first: len(all), count: len(b.Verts)})
		all = append(all, b.Verts...)
	}
	if len(all) == 0 {
		return
	}

	buf, err := r.device.Handle().CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "overlay vertices",
		Contents: wgpu.ToBytes(all),
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		r.Ctx.Log.Errorf("overlay buffer: %v", err)
		return
	}
	defer buf.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    swap,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}},
	})
	defer pass.End()

	pass.SetPipeline(r.pipelines.Overlay)
	pass.SetVertexBuffer(0, buf, 0, wgpu.WholeSize)
	layout := r.pipelines.Overlay.GetBindGroupLayout(0)
	defer layout.Release()

	for _, s := range spans {
		view := View(s.handle)
		if view == nil {
			continue
		}
		bg, err := r.device.Handle().CreateBindGroup(&wgpu.BindGroupDescriptor{
			Layout: layout,
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, TextureView: view, Size: wgpu.WholeSize},
				{Binding: 1, Sampler: r.nearestSampler, Size: wgpu.WholeSize},
			},
		})
		if err != nil {
			r.Ctx.Log.Errorf("overlay bind group: %v", err)
			continue
		}
		pass.SetBindGroup(0, bg, nil)
		pass.Draw(uint32(s.count), 1, uint32(s.first), 0)
		bg.Release()
	}
}
