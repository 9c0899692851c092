package main

import (
	"flag"
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/refresh"
	"github.com/gekko3d/refresh/client"
	"github.com/gekko3d/refresh/console"
	"github.com/gekko3d/refresh/model"
	"github.com/gekko3d/refresh/post"
	"github.com/gekko3d/refresh/render"
	"github.com/gekko3d/refresh/texture"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	gamedir := flag.String("gamedir", "baseq2", "game data directory")
	mapName := flag.String("map", "maps/base1.bsp", "world to load")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	window, err := glfw.CreateWindow(1280, 720, "refresh", nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	app := refresh.NewApp(*gamedir)
	app.Log.SetDebug(*debug)

	cmod := &client.Module{}
	rmod := &render.Module{Window: window, Width: 1280, Height: 720}
	app.UseModules(cmod, rmod)
	if err := app.Build(); err != nil {
		app.Log.Errorf("%v", err)
		return
	}
	defer app.Shutdown()

	renderer := rmod.Renderer
	ctx := rmod.Ctx

	chain, err := post.NewChain(refresh.Tagged(app.Log, "post"), rmod.Device.Handle(), rmod.Device.Queue(),
		rmod.Device.Format(), 1280, 720)
	if err != nil {
		app.Log.Errorf("post chain: %v", err)
		return
	}
	defer chain.Destroy()
	renderer.PostHook = func(encoder *wgpu.CommandEncoder, scene, depth, swap *wgpu.TextureView, rd *render.RefDef) {
		chain.Run(encoder, scene, depth, swap, post.Settings{
			SSAO:           ctx.Cvars.SSAO.Bool(),
			SSAOIntensity:  ctx.Cvars.SSAOIntensity.Value,
			SSAORadius:     ctx.Cvars.SSAORadius.Value,
			Bloom:          ctx.Cvars.Bloom.Bool(),
			BloomIntensity: ctx.Cvars.BloomIntensity.Value,
			BloomThreshold: ctx.Cvars.BloomThreshold.Value,
			FSR:            ctx.Cvars.FSR.Bool(),
			FSRScale:       ctx.Cvars.FSRScale.Value,
			FSRSharpness:   ctx.Cvars.FSRSharpness.Value,
			Temporal:       ctx.Cvars.FSR.Bool(),
			TemporalBox:    ctx.Cvars.TemporalBox.Value,
			FXAA:           ctx.Cvars.FXAA.Bool(),
			Gamma:          ctx.Cvars.Gamma.Value,
			Blend:          rd.Blend,
		}, mgl32.Ident4())
	}

	// Console overlay: a font atlas page plus notify lines over the frame.
	con := console.New(80)
	notifyTime := app.Cvars.Get("con_notifytime", "3", refresh.CvarArchive)
	if fontBytes, err := app.Loader("fonts/console.ttf"); err == nil {
		font, err := console.NewFont(fontBytes, 14)
		if err != nil {
			app.Log.Warnf("console font: %v", err)
		} else {
			fontImg, err := ctx.Images.UploadPic(font.AtlasRGBA(), font.AtlasSize, font.AtlasSize,
				texture.ImagePic, "***confont***")
			if err != nil {
				app.Log.Warnf("console font upload: %v", err)
			} else {
				renderer.OverlayHook = func(encoder *wgpu.CommandEncoder, swap *wgpu.TextureView) {
					w, h := window.GetFramebufferSize()
					var verts []render.OverlayVertex
					y := font.LineHeight + 4
					for _, line := range con.Notify(cmod.Time.RealtimeMs, float64(notifyTime.Value)*1000) {
						verts = append(verts, textVerts(font, line, 8, y, float32(w), float32(h))...)
						y += font.LineHeight + 2
					}
					renderer.DrawOverlay(encoder, swap, []render.OverlayBatch{
						{Verts: verts, Handle: fontImg.Handle},
					})
				}
			}
		}
	}
	con.Print("refresh initialized\n", 0)

	app.Cvars.ApplyLatched()
	ctx.Images.BeginRegistration()
	ctx.Models.BeginRegistration()
	if err := renderer.LoadWorld(app.Loader, *mapName); err != nil {
		app.Log.Errorf("map load: %v", err)
		return
	}
	ctx.Images.Sweep()
	ctx.Models.Sweep()

	// Model indices 1..N map to the world's inline submodels; a real
	// client would extend this table from the server configstrings.
	models := []*model.Model{nil}
	for i := 1; i < len(ctx.World.Submodels); i++ {
		m, err := ctx.Models.Register(fmt.Sprintf("*%d", i))
		if err != nil {
			app.Log.Warnf("%v", err)
		}
		models = append(models, m)
	}
	renderer.ModelResolver = func(idx int) *model.Model {
		if idx <= 0 || idx >= len(models) {
			return nil
		}
		return models[idx]
	}

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		if width == 0 || height == 0 {
			return
		}
		if err := renderer.Resize(width, height); err != nil {
			app.Log.Errorf("resize: %v", err)
		}
		if err := chain.Resize(width, height); err != nil {
			app.Log.Errorf("post resize: %v", err)
		}
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		switch {
		case key == glfw.KeyEscape && action == glfw.Press:
			w.SetShouldClose(true)
		case key == glfw.KeyF12 && action == glfw.Press:
			app.Execute("screenshot")
		}
	})

	clock := cmod.Time
	var blend = cmod.Blend
	var rents []client.RenderEntity

	// A canned snapshot feed stands in for the network layer.
	var snapClock float64
	for !window.ShouldClose() {
		glfw.PollEvents()
		clock.Tick()
		cmod.Particles.Step(clock.Dt)

		if clock.RealtimeMs >= snapClock {
			snapClock = clock.RealtimeMs + 100
			cmod.Entities.ApplySnapshot(clock.RealtimeMs, nil)
		}

		cmod.DLights.BeginFrame(ctx.FrameCount + 1)

		rents = cmod.Resolve(clock.RealtimeMs, ctx.Workers, rents)

		width, height := window.GetFramebufferSize()
		fovX := float32(90)
		rd := render.RefDef{
			ViewOrg:    mgl32.Vec3{0, 0, 64},
			ViewAngles: mgl32.Vec3{0, float32(clock.RealtimeMs) * 0.01, 0},
			FovX:       fovX,
			FovY:       render.FovY(fovX, width, height),
			Width:      width,
			Height:     height,
			Time:       clock.RealtimeMs / 1000,
			Blend:      blend.Step(float32(clock.Dt)),
			Entities:   rents,
			Particles:  cmod.Particles,
			Lights:     cmod.DLights.Live(),
		}
		if err := renderer.RenderFrame(&rd); err != nil {
			app.Log.Errorf("frame: %v", err)
			return
		}
	}
}

// textVerts lays one line of glyph quads out in pixels and maps them to
// clip space.
func textVerts(f *console.Font, s string, x, y float32, vw, vh float32) []render.OverlayVertex {
	clip := func(px, py float32) [2]float32 {
		return [2]float32{px/vw*2 - 1, 1 - py/vh*2}
	}
	color := [4]float32{1, 1, 1, 1}
	out := make([]render.OverlayVertex, 0, len(s)*6)
	for _, r := range s {
		g, ok := f.Glyphs[r]
		if !ok {
			continue
		}
		x0 := x + g.Off[0]
		y0 := y + g.Off[1]
		x1 := x0 + g.Size[0]
		y1 := y0 + g.Size[1]

		quad := [4]render.OverlayVertex{
			{Pos: clip(x0, y0), UV: [2]float32{g.UVMin[0], g.UVMin[1]}, Color: color},
			{Pos: clip(x1, y0), UV: [2]float32{g.UVMax[0], g.UVMin[1]}, Color: color},
			{Pos: clip(x1, y1), UV: [2]float32{g.UVMax[0], g.UVMax[1]}, Color: color},
			{Pos: clip(x0, y1), UV: [2]float32{g.UVMin[0], g.UVMax[1]}, Color: color},
		}
		out = append(out, quad[0], quad[1], quad[2], quad[0], quad[2], quad[3])
		x += g.Adv
	}
	return out
}
