package render

import (
	"runtime"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gekko3d/refresh"
	"github.com/gekko3d/refresh/capture"
	"github.com/gekko3d/refresh/model"
	"github.com/gekko3d/refresh/texture"
)

// Module installs the renderer: device, caches, context, and the console
// command surface. Commands register at install and unregister at
// shutdown.
type Module struct {
	Window *glfw.Window
	Width  int
	Height int

	// Filled by Install.
	Renderer *Renderer
	Device   *Device
	Ctx      *Context
}

func (m *Module) Install(app *refresh.App, cmd *refresh.Commands) error {
	ctx := &Context{
		Log:     refresh.Tagged(app.Log, "render"),
		Speeds:  NewProfiler(),
		Workers: runtime.GOMAXPROCS(0) - 1,
	}
	ctx.Cvars.Register(app.Cvars)

	device, err := NewDevice(app.Log, m.Window, m.Width, m.Height, ctx.Cvars.SwapInterval.Bool())
	if err != nil {
		return err
	}

	pal, err := texture.LoadPalette(app.Loader)
	if err != nil {
		app.Log.Warnf("palette: %v, using grayscale", err)
		pal = &texture.Palette{}
		for i := 0; i < 256; i++ {
			pal[i] = [3]uint8{uint8(i), uint8(i), uint8(i)}
		}
	}
	images, err := texture.NewCache(app.Log, app.Loader, device, pal, texture.Config{
		PicMip:    ctx.Cvars.PicMip.Int(),
		SkyMip:    ctx.Cvars.SkyMip.Int(),
		Intensity: 1,
		Gamma:     ctx.Cvars.Gamma.Value,
	})
	if err != nil {
		return err
	}
	ctx.Images = images
	ctx.Models = model.NewCache(app.Log, app.Loader, images)

	renderer, err := NewRenderer(ctx, device)
	if err != nil {
		return err
	}

	m.Renderer = renderer
	m.Device = device
	m.Ctx = ctx

	cmd.AddCommand("screenshot", func(args []string) {
		m.screenshot(app)
	})
	cmd.AddCommand("imagelist", func(args []string) {
		for _, line := range ctx.Images.List() {
			app.Log.Infof("%s", line)
		}
	})
	cmd.AddCommand("modellist", func(args []string) {
		for _, line := range ctx.Models.List() {
			app.Log.Infof("%s", line)
		}
	})
	cmd.AddCommand("vk_strings", func(args []string) {
		for _, line := range device.Strings() {
			app.Log.Infof("%s", line)
		}
	})
	cmd.AddCommand("vk_log", func(args []string) {
		enable := len(args) > 0 && args[0] != "0"
		app.Log.SetDebug(enable)
		app.Cvars.SetValue("vk_log", boolTo01(enable))
	})
	return nil
}

// Shutdown unregisters the commands and releases the device.
func (m *Module) Shutdown(cmd *refresh.Commands) {
	cmd.RemoveCommand("screenshot")
	cmd.RemoveCommand("imagelist")
	cmd.RemoveCommand("modellist")
	cmd.RemoveCommand("vk_strings")
	cmd.RemoveCommand("vk_log")
	if m.Device != nil {
		m.Device.Destroy()
	}
}

func (m *Module) screenshot(app *refresh.App) {
	pix, w, h, err := m.Renderer.ReadBack()
	if err != nil {
		app.Log.Errorf("screenshot: %v", err)
		return
	}

	var invGamma *[256]uint8
	if m.Ctx.Cvars.HwGamma.Bool() {
		forward := texture.BuildGammaTable(m.Ctx.Cvars.Gamma.Value)
		inv := capture.BuildInverseGammaTable(&forward)
		invGamma = &inv
	}

	format := capture.ParseFormat(strings.ToLower(m.Ctx.Cvars.ScreenshotFormat.String))
	path, err := capture.Save(app.GameDir, format,
		m.Ctx.Cvars.ScreenshotQuality.Int(), pix, w, h, invGamma)
	if err != nil {
		app.Log.Errorf("screenshot: %v", err)
		return
	}
	app.Log.Infof("Wrote %s", path)
}

func boolTo01(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

// ReadBack copies the composed scene color into CPU memory. The copy
// drains through a mapped staging buffer; rows are tightly repacked since
// wgpu pads BytesPerRow to 256.
func (r *Renderer) ReadBack() ([]byte, int, int, error) {
	w, h := r.targets.Width, r.targets.Height
	padded := (w*4 + 255) &^ 255

	buf, err := r.device.Handle().CreateBuffer(&wgpu.BufferDescriptor{
		Label: "readback",
		Size:  uint64(padded * h),
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		return nil, 0, 0, err
	}
	defer buf.Release()

	encoder, err := r.device.Handle().CreateCommandEncoder(nil)
	if err != nil {
		return nil, 0, 0, err
	}
	encoder.CopyTextureToBuffer(
		r.targets.SceneColor.AsImageCopy(),
		&wgpu.ImageCopyBuffer{
			Buffer: buf,
			Layout: wgpu.TextureDataLayout{
				BytesPerRow:  uint32(padded),
				RowsPerImage: uint32(h),
			},
		},
		&wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
	cmdBuf, err := encoder.Finish(nil)
	if err != nil {
		return nil, 0, 0, err
	}
	r.device.Queue().Submit(cmdBuf)

	var mapStatus wgpu.BufferMapAsyncStatus
	mapped := false
	buf.MapAsync(wgpu.MapModeRead, 0, buf.GetSize(), func(status wgpu.BufferMapAsyncStatus) {
		mapStatus = status
		mapped = true
	})
	r.device.Handle().Poll(true, nil)
	if !mapped || mapStatus != wgpu.BufferMapAsyncStatusSuccess {
		return nil, 0, 0, refresh.ErrDeviceLost
	}
	defer buf.Unmap()

	data := buf.GetMappedRange(0, uint(padded*h))
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		copy(out[y*w*4:(y+1)*w*4], data[y*padded:y*padded+w*4])
	}

	// Swapchain formats are commonly BGRA; emit RGBA.
	if r.device.Format() == wgpu.TextureFormatBGRA8Unorm ||
		r.device.Format() == wgpu.TextureFormatBGRA8UnormSrgb {
		for i := 0; i < len(out); i += 4 {
			out[i], out[i+2] = out[i+2], out[i]
		}
	}
	return out, w, h, nil
}
