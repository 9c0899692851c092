package render

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/refresh"
	"github.com/gekko3d/refresh/bsp"
	"github.com/gekko3d/refresh/client"
	"github.com/gekko3d/refresh/lightmap"
	"github.com/gekko3d/refresh/model"
	"github.com/gekko3d/refresh/texture"
)

// FrameUniforms matches the WGSL FrameUniforms block.
type FrameUniforms struct {
	ViewProj     [16]float32
	PrevViewProj [16]float32
	Eye          [4]float32
	Params       [4]float32 // time, overbright scale, jitter x, jitter y
}

// frameSlot is one ring entry of per-frame GPU resources.
type frameSlot struct {
	uniformBuf *wgpu.Buffer
}

// Renderer is the driver: it owns the device, the pipelines, the frame
// ring, and sequences the passes.
type Renderer struct {
	Ctx *Context

	device    *Device
	pipelines *Pipelines
	targets   *Targets

	slots      [FramesInFlight]frameSlot
	frameIndex int

	worldVB      *wgpu.Buffer
	worldVBCount int
	surfRanges   [][2]int // per surface: first vertex, count

	entityVB     *wgpu.Buffer
	entityRanges map[int][2]int // entity slot -> vertex range

	brushVB     *wgpu.Buffer
	brushRanges map[int][]brushDraw // entity slot -> per-face draws

	// texImages maps texinfo index -> resolved wall texture.
	texImages []*texture.Image

	frameBinds map[*wgpu.RenderPipeline][FramesInFlight]*wgpu.BindGroup

	sky *Sky

	queues *SurfaceQueues

	prevViewProj mgl32.Mat4

	// ModelResolver maps a snapshot model index to a cached model; the
	// network layer owns the configstring table, so it is injected.
	ModelResolver func(index int) *model.Model

	// PostHook and OverlayHook let the post chain and console composite
	// into the frame without the renderer importing them.
	PostHook    PassHook
	OverlayHook OverlayFn

	linearSampler  *wgpu.Sampler
	nearestSampler *wgpu.Sampler

	lightmapHandles []texture.TextureHandle
}

func NewRenderer(ctx *Context, device *Device) (*Renderer, error) {
	w, h := device.Size()
	pipelines, err := NewPipelines(device.Handle(), device.Format(), device.Format())
	if err != nil {
		return nil, err
	}
	targets, err := NewTargets(device.Handle(), device.Format(), w, h)
	if err != nil {
		pipelines.Release()
		return nil, err
	}

	r := &Renderer{
		Ctx:       ctx,
		device:    device,
		pipelines: pipelines,
		targets:   targets,
		queues:    NewSurfaceQueues(),
	}

	for i := range r.slots {
		buf, err := device.Handle().CreateBuffer(&wgpu.BufferDescriptor{
			Label: "frame uniforms",
			Size:  uint64(binary.Size(FrameUniforms{})),
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, err
		}
		r.slots[i].uniformBuf = buf
	}

	// vk_texturemode nearest switches magnification to point sampling
	// (minification and mips stay linear); r_anisotropy rides the sampler,
	// clamped to the device ceiling of 16.
	aniso := uint16(ctx.Cvars.Anisotropy.Int())
	if aniso < 1 {
		aniso = 1
	}
	if aniso > 16 {
		aniso = 16
	}
	mag := wgpu.FilterModeLinear
	if ctx.Cvars.TextureMode.String == "nearest" {
		mag = wgpu.FilterModeNearest
	}
	r.linearSampler, err = device.Handle().CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "scene",
		MagFilter:     mag,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		MaxAnisotropy: aniso,
	})
	if err != nil {
		return nil, err
	}
	r.nearestSampler, err = device.Handle().CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "overlay",
		MagFilter:     wgpu.FilterModeNearest,
		MinFilter:     wgpu.FilterModeNearest,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// LoadWorld parses and cooks a map: BSP, lightmap placement, lightmap page
// textures, world vertex buffer, and the visibility walker. Latched cvars
// apply here.
func (r *Renderer) LoadWorld(loader refresh.FileLoader, path string) error {
	if r.Ctx.World != nil {
		r.Ctx.World.Unload()
	}
	w, err := bsp.Load(loader, path)
	if err != nil {
		return err
	}
	r.Ctx.World = w
	r.Ctx.Viz = NewWalker(w)

	r.Ctx.Lights = lightmap.NewEngine()
	r.Ctx.Lights.OverbrightBits = r.Ctx.Cvars.OverbrightBits.Int()
	if err := r.Ctx.Lights.PlaceSurfaces(w); err != nil {
		return err
	}
	r.uploadLightmapPages()

	// Resolve every texinfo's wall texture; failures land on the
	// checkerboard placeholder and log one line each.
	r.texImages = make([]*texture.Image, len(w.TexInfos))
	for i := range w.TexInfos {
		img, err := r.Ctx.Images.Find("textures/"+w.TexInfos[i].Texture+".wal", texture.ImageWall)
		if err != nil {
			r.Ctx.Log.Warnf("%v", err)
		}
		r.texImages[i] = img
	}
	return r.buildWorldBuffer()
}

func (r *Renderer) uploadLightmapPages() {
	atlas := r.Ctx.Lights.Atlas
	for page := 0; page < atlas.NumPages(); page++ {
		if page >= len(r.lightmapHandles) {
			handle, err := r.device.UploadRGBA("lightmap page", atlas.Pixels(page),
				lightmap.BlockWidth, lightmap.BlockHeight, false)
			if err != nil {
				r.Ctx.Log.Errorf("lightmap page %d: %v", page, err)
				return
			}
			r.lightmapHandles = append(r.lightmapHandles, handle)
			continue
		}
		if atlas.Dirty(page) {
			if err := r.device.UpdateRGBA(r.lightmapHandles[page], 0, 0,
				lightmap.BlockWidth, lightmap.BlockHeight, atlas.Pixels(page)); err != nil {
				r.Ctx.Log.Errorf("lightmap page %d: %v", page, err)
			}
		}
	}
}

// buildWorldBuffer triangulates every surface polygon into a fan and packs
// the static vertex buffer. Surfaces record their vertex range implicitly
// through surfRanges.
func (r *Renderer) buildWorldBuffer() error {
	w := r.Ctx.World
	var verts []WorldVertex
	r.surfRanges = make([][2]int, len(w.Surfaces))

	for si := range w.Surfaces {
		start := len(verts)
		verts = appendSurfaceFan(verts, w, int32(si), nil)
		r.surfRanges[si] = [2]int{start, len(verts) - start}
	}

	if r.worldVB != nil {
		r.worldVB.Release()
		r.worldVB = nil
	}
	if len(verts) == 0 {
		return nil
	}
	buf, err := r.device.Handle().CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "world vertices",
		Contents: wgpu.ToBytes(verts),
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		return err
	}
	r.worldVB = buf
	r.worldVBCount = len(verts)
	return nil
}

// Resize reacts to window size changes: swapchain, then targets.
func (r *Renderer) Resize(width, height int) error {
	if err := r.device.Recreate(width, height); err != nil {
		return err
	}
	r.targets.Release()
	t, err := NewTargets(r.device.Handle(), r.device.Format(), width, height)
	if err != nil {
		return err
	}
	r.targets = t
	return nil
}

// RenderFrame runs the whole pipeline for one refdef and presents.
func (r *Renderer) RenderFrame(rd *RefDef) error {
	ctx := r.Ctx
	prof := ctx.Speeds
	ctx.FrameCount++

	swapView, err := r.device.Acquire()
	if err != nil {
		return err
	}
	defer swapView.Release()

	encoder, err := r.device.Handle().CreateCommandEncoder(nil)
	if err != nil {
		return err
	}

	viewProj := r.viewProjection(rd)
	r.writeUniforms(rd, viewProj)
	if ctx.Cvars.DrawEntities.Bool() {
		prof.Begin("entities")
		r.buildEntityBuffers(rd)
		r.buildBrushBuffers(rd)
		prof.End("entities")
	}

	if ctx.World != nil && rd.RdFlags&RDFNoWorldModel == 0 && ctx.Cvars.DrawWorld.Bool() {
		prof.Begin("mark")
		leaf := ctx.World.PointInLeaf(rd.ViewOrg)
		cluster := ctx.World.LeafCluster(leaf)
		ctx.Viz.MarkLeaves(cluster, rd.AreaMask,
			ctx.Cvars.LockPVS.Bool(), ctx.Cvars.NoVis.Bool(), ctx.Workers)
		prof.End("mark")

		prof.Begin("dlight")
		r.updateLightmaps(rd)
		prof.End("dlight")

		// Reflection passes recurse the world pipeline with mirrored views
		// before the main pass; no later pass samples their targets.
		prof.Begin("reflect")
		reflectors := ctx.Viz.FindReflectors(rd.RdFlags)
		for i, refl := range reflectors {
			r.renderWorldPass(encoder, rd, r.targets.ReflView[i], r.targets.ReflDepthView, &refl)
		}
		prof.SetCount("refl_passes", len(reflectors))
		prof.End("reflect")
	}

	prof.Begin("world")
	r.renderWorldPass(encoder, rd, r.targets.SceneView, r.targets.DepthView, nil)
	prof.End("world")

	// Post runs on the scene color; the final pass writes the swapchain.
	// The post chain is owned by the engine layer and invoked through this
	// hook so the renderer stays the only pass sequencer.
	if r.PostHook != nil {
		prof.Begin("post")
		r.PostHook(encoder, r.targets.SceneView, r.targets.DepthView, swapView, rd)
		prof.End("post")
	}
	if r.OverlayHook != nil {
		r.OverlayHook(encoder, swapView)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	r.device.Queue().Submit(cmd)
	r.device.Present()

	r.prevViewProj = viewProj
	r.frameIndex = (r.frameIndex + 1) % FramesInFlight
	if ctx.Cvars.Speeds.Bool() {
		ctx.Log.Infof("\n%s", prof.Stats())
	}
	prof.Reset()
	return nil
}

type PassHook func(encoder *wgpu.CommandEncoder, scene, depth, swap *wgpu.TextureView, rd *RefDef)
type OverlayFn func(encoder *wgpu.CommandEncoder, swap *wgpu.TextureView)

func (r *Renderer) modelForIndex(index int) *model.Model {
	if r.ModelResolver == nil {
		return nil
	}
	return r.ModelResolver(index)
}

// buildEntityBuffers lerps every visible alias entity's vertices on the CPU
// into one dynamic buffer, the codebook light term baked per vertex.
func (r *Renderer) buildEntityBuffers(rd *RefDef) {
	if r.entityRanges == nil {
		r.entityRanges = make(map[int][2]int)
	}
	for k := range r.entityRanges {
		delete(r.entityRanges, k)
	}

	_, right, up := AngleVectors(rd.ViewAngles)

	var verts []AliasVertex
	for i := range rd.Entities {
		e := &rd.Entities[i]
		mdl := r.modelForIndex(e.Model)
		if mdl == nil {
			continue
		}
		if mdl.Kind == model.KindSprite {
			start := len(verts)
			verts = appendSpriteQuad(verts, mdl.Sprite, e, right, up)
			r.entityRanges[e.Slot] = [2]int{start, len(verts) - start}
			continue
		}
		if mdl.Kind != model.KindAlias {
			continue
		}
		alias := mdl.Alias
		fi := clampFrame(e.Frame, len(alias.Frames))
		oi := clampFrame(e.OldFrame, len(alias.Frames))
		frame := &alias.Frames[fi]
		oldFrame := &alias.Frames[oi]

		params := model.ComputeLerp(oldFrame, frame, e.FrontLerp)
		dots := model.BuildDotTable(model.ShadeDirForYaw(e.Angles[1]))

		start := len(verts)
		for _, tri := range alias.Tris {
			for c := 0; c < 3; c++ {
				vi := int(tri.XYZ[c])
				pos := model.LerpVert(params, oldFrame.Verts[vi], frame.Verts[vi], 0)
				pos = e.Orient.Rotate(pos).Add(e.Origin)
				st := alias.TexCoords[tri.ST[c]]
				verts = append(verts, AliasVertex{
					Pos: [3]float32{pos[0], pos[1], pos[2]},
					ST: [2]float32{
						float32(st.S) / float32(max(alias.SkinW, 1)),
						float32(st.T) / float32(max(alias.SkinH, 1)),
					},
					Light: dots[frame.Verts[vi].NormalIdx],
				})
			}
		}
		r.entityRanges[e.Slot] = [2]int{start, len(verts) - start}
	}

	if r.entityVB != nil {
		r.entityVB.Release()
		r.entityVB = nil
	}
	if len(verts) == 0 {
		return
	}
	buf, err := r.device.Handle().CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "entity vertices",
		Contents: wgpu.ToBytes(verts),
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		r.Ctx.Log.Errorf("entity buffer: %v", err)
		return
	}
	r.entityVB = buf
}

// appendSpriteQuad emits one camera-facing quad for a sprite entity,
// hotspot honored through the frame origin offsets.
func appendSpriteQuad(verts []AliasVertex, sprite *model.SpriteModel, e *client.RenderEntity, right, up mgl32.Vec3) []AliasVertex {
	if len(sprite.Frames) == 0 {
		return verts
	}
	f := &sprite.Frames[clampFrame(e.Frame, len(sprite.Frames))]

	origin := e.Origin.
		Sub(right.Mul(float32(f.OriginX))).
		Add(up.Mul(float32(f.OriginY)))
	corners := [4]mgl32.Vec3{
		origin,
		origin.Add(right.Mul(float32(f.Width))),
		origin.Add(right.Mul(float32(f.Width))).Sub(up.Mul(float32(f.Height))),
		origin.Sub(up.Mul(float32(f.Height))),
	}
	uvs := [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	for _, idx := range [6]int{0, 1, 2, 0, 2, 3} {
		verts = append(verts, AliasVertex{
			Pos:   [3]float32{corners[idx][0], corners[idx][1], corners[idx][2]},
			ST:    uvs[idx],
			Light: 1,
		})
	}
	return verts
}

// appendSurfaceFan triangulates a surface polygon into the vertex stream,
// optionally transformed (brush entities).
func appendSurfaceFan(verts []WorldVertex, w *bsp.World, si int32, xform func(mgl32.Vec3) mgl32.Vec3) []WorldVertex {
	s := &w.Surfaces[si]
	ti := &w.TexInfos[s.TexInfo]
	for i := 2; i < len(s.Verts); i++ {
		for _, vi := range [3]int{0, i - 1, i} {
			v := s.Verts[vi]
			st := [2]float32{
				v.Dot(mgl32.Vec3{ti.VecsS[0], ti.VecsS[1], ti.VecsS[2]}) + ti.VecsS[3],
				v.Dot(mgl32.Vec3{ti.VecsT[0], ti.VecsT[1], ti.VecsT[2]}) + ti.VecsT[3],
			}
			lm := [2]float32{
				((st[0]-float32(s.TexMins[0]))/16 + float32(s.LightS) + 0.5) / lightmap.BlockWidth,
				((st[1]-float32(s.TexMins[1]))/16 + float32(s.LightT) + 0.5) / lightmap.BlockHeight,
			}
			if xform != nil {
				v = xform(v)
			}
			verts = append(verts, WorldVertex{
				Pos:  [3]float32{v[0], v[1], v[2]},
				ST:   st,
				LmST: lm,
			})
		}
	}
	return verts
}

// buildBrushBuffers retransforms inline-model surfaces by each brush
// entity's interpolated origin and orientation; lightmap UVs carry over
// unchanged since the rectangles are per surface.
func (r *Renderer) buildBrushBuffers(rd *RefDef) {
	if r.brushRanges == nil {
		r.brushRanges = make(map[int][]brushDraw)
	}
	for k := range r.brushRanges {
		delete(r.brushRanges, k)
	}
	w := r.Ctx.World
	if w == nil {
		return
	}

	var verts []WorldVertex
	for i := range rd.Entities {
		e := &rd.Entities[i]
		mdl := r.modelForIndex(e.Model)
		if mdl == nil || mdl.Kind != model.KindBrush {
			continue
		}
		if mdl.BrushIndex <= 0 || mdl.BrushIndex >= len(w.Submodels) {
			continue
		}
		sm := &w.Submodels[mdl.BrushIndex]
		xform := func(v mgl32.Vec3) mgl32.Vec3 {
			return e.Orient.Rotate(v).Add(e.Origin)
		}
		var draws []brushDraw
		for fi := sm.FirstFace; fi < sm.FirstFace+sm.NumFaces; fi++ {
			if int(fi) >= len(w.Surfaces) {
				break
			}
			first := len(verts)
			verts = appendSurfaceFan(verts, w, fi, xform)
			draws = append(draws, brushDraw{si: fi, first: first, count: len(verts) - first})
		}
		r.brushRanges[e.Slot] = draws
	}

	if r.brushVB != nil {
		r.brushVB.Release()
		r.brushVB = nil
	}
	if len(verts) == 0 {
		return
	}
	buf, err := r.device.Handle().CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "brush entity vertices",
		Contents: wgpu.ToBytes(verts),
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		r.Ctx.Log.Errorf("brush buffer: %v", err)
		return
	}
	r.brushVB = buf
}

func clampFrame(f, n int) int {
	if n == 0 {
		return 0
	}
	if f < 0 {
		return 0
	}
	return f % n
}

func (r *Renderer) viewProjection(rd *RefDef) mgl32.Mat4 {
	aspect := float32(rd.Width) / float32(max(rd.Height, 1))
	proj := ReflectionProjection(rd.FovY, aspect, 4, 8192)
	forward, _, up := AngleVectors(rd.ViewAngles)
	view := mgl32.LookAtV(rd.ViewOrg, rd.ViewOrg.Add(forward), up)
	return proj.Mul4(view)
}

func (r *Renderer) writeUniforms(rd *RefDef, viewProj mgl32.Mat4) {
	jitter := HaltonJitter(r.Ctx.FrameCount)
	u := FrameUniforms{
		Eye: [4]float32{rd.ViewOrg[0], rd.ViewOrg[1], rd.ViewOrg[2], 0},
		Params: [4]float32{
			float32(rd.Time),
			lightmap.OverbrightScale(r.Ctx.Cvars.OverbrightBits.Int()),
			jitter[0], jitter[1],
		},
	}
	copy(u.ViewProj[:], viewProj[:])
	copy(u.PrevViewProj[:], r.prevViewProj[:])

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, &u)
	r.device.Queue().WriteBuffer(r.slots[r.frameIndex].uniformBuf, 0, buf.Bytes())
}

// updateLightmaps marks dlight-touched surfaces, recomposes their
// rectangles in parallel, and re-uploads dirty pages.
func (r *Renderer) updateLightmaps(rd *RefDef) {
	ctx := r.Ctx
	if ctx.Lights == nil {
		return
	}
	ctx.Lights.StepStains(float32(1.0 / 60))
	if len(rd.Lights) == 0 {
		return
	}
	w := ctx.World
	marked := make([]int32, 0, 64)
	for si := range w.Surfaces {
		marked = append(marked, int32(si))
	}
	ctx.Lights.MarkDynamic(w, marked, rd.Lights, ctx.FrameCount)

	dynamic := marked[:0]
	for _, si := range marked {
		if w.Surfaces[si].DLightFrame == ctx.FrameCount {
			dynamic = append(dynamic, si)
		}
	}
	// Each surface rewrites only its own rectangle; the staging pages are
	// write-disjoint, so this fans out cleanly.
	refresh.ParallelFor(ctx.Workers, len(dynamic), func(i int) {
		ctx.Lights.Recompose(w, dynamic[i], rd.Lights)
	})
	r.Ctx.Speeds.SetCount("dlight_surfs", len(dynamic))
	r.uploadLightmapPages()
}

// renderWorldPass draws the 3D scene into one color/depth pair. With refl
// set the view is mirrored through the reflector plane; the pass otherwise
// runs the same sequence: opaque world, entities, particles, sky,
// translucent.
func (r *Renderer) renderWorldPass(encoder *wgpu.CommandEncoder, rd *RefDef, color, depth *wgpu.TextureView, refl *Reflector) {
	ctx := r.Ctx

	viewOrg := rd.ViewOrg
	viewAngles := rd.ViewAngles
	if refl != nil {
		viewOrg, viewAngles = MirrorView(rd.ViewOrg, rd.ViewAngles, refl.Z)
	}

	r.queues.Reset()
	if ctx.World != nil && ctx.Cvars.DrawWorld.Bool() && rd.RdFlags&RDFNoWorldModel == 0 {
		frustum := SetFrustum(viewOrg, viewAngles, rd.FovX, rd.FovY)
		ctx.Viz.WalkWorld(viewOrg, &frustum, ctx.Cvars.NoCull.Bool(), ctx.FrameCount, r.queues)
	}
	ctx.Speeds.SetCount("surfaces", r.queues.Count())

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       color,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            depth,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1,
		},
	})
	defer pass.End()

	if r.worldVB == nil {
		return
	}
	pass.SetVertexBuffer(0, r.worldVB, 0, wgpu.WholeSize)

	// Opaque world, batched by (texture, lightmap page): one bind group
	// per batch, one draw per surface range.
	pass.SetPipeline(r.pipelines.World)
	pass.SetBindGroup(0, r.frameBind(r.pipelines.World), nil)
	for _, key := range r.queues.OpaqueKeys {
		bg := r.surfaceBind(r.pipelines.World, key)
		if bg == nil {
			continue
		}
		pass.SetBindGroup(1, bg, nil)
		for _, si := range r.queues.Opaque[key] {
			rg := r.surfRanges[si]
			if rg[1] > 0 {
				pass.Draw(uint32(rg[1]), 1, uint32(rg[0]), 0)
			}
		}
		bg.Release()
	}

	// Entities: opaque first with depth writes, translucent after without.
	if ctx.Cvars.DrawEntities.Bool() {
		r.drawEntities(pass, rd, viewOrg)
	}

	// Particles, one draw per class.
	if rd.Particles != nil {
		r.drawParticles(pass, rd)
	}

	// Sky after opaque so the depth test rejects covered texels, before
	// translucent so water in front still blends over it.
	if len(r.queues.Sky) > 0 && r.sky != nil {
		pass.SetPipeline(r.pipelines.Sky)
		pass.SetBindGroup(0, r.frameBind(r.pipelines.Sky), nil)
		if bg := r.sky.bind(r, rd); bg != nil {
			pass.SetBindGroup(1, bg, nil)
			for _, si := range r.queues.Sky {
				rg := r.surfRanges[si]
				pass.Draw(uint32(rg[1]), 1, uint32(rg[0]), 0)
			}
			bg.Release()
		}
	}

	// Translucent/turbulent back to front: reverse of the front-to-back
	// visit order the walker produced.
	if len(r.queues.Translucent) > 0 {
		pass.SetPipeline(r.pipelines.Warp)
		pass.SetBindGroup(0, r.frameBind(r.pipelines.Warp), nil)
		w := r.Ctx.World
		for i := len(r.queues.Translucent) - 1; i >= 0; i-- {
			si := r.queues.Translucent[i]
			s := &w.Surfaces[si]
			alpha := float32(1)
			if s.Flags&bsp.SurfTrans33 != 0 {
				alpha = 0.33
			} else if s.Flags&bsp.SurfTrans66 != 0 {
				alpha = 0.66
			}
			flow := float32(0)
			if s.Flags&bsp.SurfFlowing != 0 {
				flow = -64
			}
			texBG := r.warpBind(SurfKey{TexInfo: s.TexInfo, Page: s.LightmapPage})
			paramBG := r.warpParamsBind(alpha, flow)
			if texBG == nil || paramBG == nil {
				continue
			}
			pass.SetBindGroup(1, texBG, nil)
			pass.SetBindGroup(2, paramBG, nil)
			rg := r.surfRanges[si]
			pass.Draw(uint32(rg[1]), 1, uint32(rg[0]), 0)
			texBG.Release()
			paramBG.Release()
		}
	}
}

// drawEntities submits entities in two phases: entities without
// EffectTranslucent as they come, then translucent ones of any model kind
// sorted far to near.
func (r *Renderer) drawEntities(pass *wgpu.RenderPassEncoder, rd *RefDef, viewOrg mgl32.Vec3) {
	type deferred struct {
		idx  int
		dist float32
	}
	var translucent []deferred

	for i := range rd.Entities {
		e := &rd.Entities[i]
		if e.Effects&EffectTranslucent != 0 {
			d := e.Origin.Sub(viewOrg).Len()
			translucent = append(translucent, deferred{idx: i, dist: d})
			continue
		}
		r.drawEntity(pass, e, false)
	}

	// Translucent phase, depth writes off: brush models and alias shells
	// sorted far to near.
	sort.Slice(translucent, func(a, b int) bool {
		return translucent[a].dist > translucent[b].dist
	})
	for _, d := range translucent {
		r.drawEntity(pass, &rd.Entities[d.idx], true)
	}
	r.Ctx.Speeds.SetCount("entities", len(rd.Entities))
}

// EffectTranslucent selects the depth-write-off entity phase.
const EffectTranslucent = 1 << 0

func (r *Renderer) drawEntity(pass *wgpu.RenderPassEncoder, e *client.RenderEntity, translucent bool) {
	mdl := r.modelForIndex(e.Model)
	if mdl == nil {
		return
	}
	switch mdl.Kind {
	case model.KindAlias, model.KindSprite:
		// CPU-built vertices; the prepared range is submitted here.
		pipe := r.pipelines.Alias
		tint := [4]float32{1, 1, 1, 1}
		if translucent {
			pipe = r.pipelines.AliasTrans
			tint[3] = 0.33
		}
		rg, ok := r.entityRanges[e.Slot]
		if !ok || rg[1] == 0 {
			return
		}
		var skin texture.TextureHandle
		if e.Skin >= 0 && e.Skin < len(mdl.Skins) && mdl.Skins[e.Skin] != nil {
			skin = mdl.Skins[e.Skin].Handle
		}
		skinBG := r.skinBind(pipe, skin)
		entBG := r.entityBind(pipe, tint)
		if skinBG == nil || entBG == nil {
			return
		}
		pass.SetPipeline(pipe)
		pass.SetBindGroup(0, r.frameBind(pipe), nil)
		pass.SetBindGroup(1, skinBG, nil)
		pass.SetBindGroup(2, entBG, nil)
		pass.SetVertexBuffer(0, r.entityVB, 0, wgpu.WholeSize)
		pass.Draw(uint32(rg[1]), 1, uint32(rg[0]), 0)
		pass.SetVertexBuffer(0, r.worldVB, 0, wgpu.WholeSize)
		skinBG.Release()
		entBG.Release()
	case model.KindBrush:
		draws, ok := r.brushRanges[e.Slot]
		if !ok || len(draws) == 0 {
			return
		}
		w := r.Ctx.World
		pass.SetPipeline(r.pipelines.World)
		pass.SetBindGroup(0, r.frameBind(r.pipelines.World), nil)
		pass.SetVertexBuffer(0, r.brushVB, 0, wgpu.WholeSize)
		for _, d := range draws {
			s := &w.Surfaces[d.si]
			bg := r.surfaceBind(r.pipelines.World, SurfKey{TexInfo: s.TexInfo, Page: s.LightmapPage})
			if bg == nil {
				continue
			}
			pass.SetBindGroup(1, bg, nil)
			pass.Draw(uint32(d.count), 1, uint32(d.first), 0)
			bg.Release()
		}
		pass.SetVertexBuffer(0, r.worldVB, 0, wgpu.WholeSize)
	}
}

// brushDraw is one transformed submodel face in the per-frame brush buffer.
type brushDraw struct {
	si    int32
	first int
	count int
}

func (r *Renderer) drawParticles(pass *wgpu.RenderPassEncoder, rd *RefDef) {
	instances := rd.Particles.Instances()
	for class, list := range instances {
		if len(list) == 0 {
			continue
		}
		pipe := r.pipelines.Particles
		if client.ParticleClass(class).Params().Additive {
			pipe = r.pipelines.ParticlesAdd
		}
		bg := r.particleBind(pipe, list)
		if bg == nil {
			continue
		}
		pass.SetPipeline(pipe)
		pass.SetBindGroup(0, r.frameBind(pipe), nil)
		pass.SetBindGroup(1, bg, nil)
		pass.Draw(uint32(len(list)*6), 1, 0, 0)
		bg.Release()
	}
}

// HaltonJitter is the temporal upscaler's sub-pixel offset sequence
// (base 2/3), centered on zero.
func HaltonJitter(frame int) [2]float32 {
	return [2]float32{
		halton(frame%16+1, 2) - 0.5,
		halton(frame%16+1, 3) - 0.5,
	}
}

func halton(index, base int) float32 {
	f := 1.0
	result := 0.0
	for i := index; i > 0; i = int(math.Floor(float64(i) / float64(base))) {
		f /= float64(base)
		result += f * float64(i%base)
	}
	return float32(result)
}
