package render

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gekko3d/refresh"
	"github.com/gekko3d/refresh/texture"
)

// SwapState is the swapchain lifecycle:
// Uninitialized -> Ready -> (acquire fail -> Recreate -> Ready) ->
// Presenting -> Ready.
type SwapState int

const (
	SwapUninitialized SwapState = iota
	SwapReady
	SwapPresenting
	SwapRecreate
)

// SwapEvent drives the state machine.
type SwapEvent int

const (
	EvConfigured SwapEvent = iota
	EvAcquired
	EvAcquireFailed
	EvPresented
	EvResized
	EvRecreated
)

// NextSwapState is the pure transition function; Device feeds it real
// events and tests feed it sequences.
func NextSwapState(s SwapState, ev SwapEvent) SwapState {
	switch s {
	case SwapUninitialized:
		if ev == EvConfigured {
			return SwapReady
		}
	case SwapReady:
		switch ev {
		case EvAcquired:
			return SwapPresenting
		case EvAcquireFailed, EvResized:
			return SwapRecreate
		}
	case SwapPresenting:
		switch ev {
		case EvPresented:
			return SwapReady
		case EvAcquireFailed, EvResized:
			return SwapRecreate
		}
	case SwapRecreate:
		if ev == EvRecreated {
			return SwapReady
		}
	}
	return s
}

// Device owns the GPU: adapter, logical device, queue, and the surface
// configuration. It implements texture.Uploader for the image cache and the
// page upload path for the lightmap engine.
type Device struct {
	log refresh.Logger

	surface *wgpu.Surface
	adapter *wgpu.Adapter
	device  *wgpu.Device
	queue   *wgpu.Queue
	config  *wgpu.SurfaceConfiguration

	swapState    SwapState
	rebuildFails int

	maxTextureSize int
}

// NewDevice wraps a GLFW window into a configured wgpu surface. Failure
// here is an InitializationFailure: there is nothing to fall back to.
func NewDevice(log refresh.Logger, win *glfw.Window, width, height int, vsync bool) (*Device, error) {
	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(win))
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: no adapter: %v", refresh.ErrInitFailure, err)
	}
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "refresh device",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: no device: %v", refresh.ErrInitFailure, err)
	}

	d := &Device{
		log:       log,
		surface:   surface,
		adapter:   adapter,
		device:    device,
		queue:     device.GetQueue(),
		swapState: SwapUninitialized,
	}
	d.configure(width, height, vsync)
	return d, nil
}

func (d *Device) configure(width, height int, vsync bool) {
	caps := d.surface.GetCapabilities(d.adapter)
	present := wgpu.PresentModeImmediate
	if vsync {
		present = wgpu.PresentModeFifo
	}
	cfg := wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: present,
		AlphaMode:   caps.AlphaModes[0],
	}
	d.surface.Configure(d.adapter, d.device, &cfg)
	d.config = &cfg
	d.swapState = NextSwapState(d.swapState, EvConfigured)
}

// Acquire returns the next swapchain texture, recreating the surface when
// it has gone stale. Two consecutive rebuild failures escalate.
func (d *Device) Acquire() (*wgpu.TextureView, error) {
	tex, err := d.surface.GetCurrentTexture()
	if err != nil {
		d.swapState = NextSwapState(d.swapState, EvAcquireFailed)
		if err := d.Recreate(int(d.config.Width), int(d.config.Height)); err != nil {
			return nil, err
		}
		tex, err = d.surface.GetCurrentTexture()
		if err != nil {
			d.rebuildFails++
			if d.rebuildFails >= 2 {
				return nil, fmt.Errorf("%w: surface unrecoverable: %v", refresh.ErrInitFailure, err)
			}
			return nil, fmt.Errorf("%w: %v", refresh.ErrDeviceLost, err)
		}
	}
	d.rebuildFails = 0
	d.swapState = NextSwapState(d.swapState, EvAcquired)
	view, err := tex.CreateView(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", refresh.ErrDeviceLost, err)
	}
	return view, nil
}

func (d *Device) Present() {
	d.surface.Present()
	d.swapState = NextSwapState(d.swapState, EvPresented)
}

// Recreate reconfigures the swapchain after a resize, a mode-change cvar,
// or an out-of-date surface. In-flight work drains first.
func (d *Device) Recreate(width, height int) error {
	d.swapState = NextSwapState(d.swapState, EvResized)
	d.device.Poll(true, nil)
	vsync := d.config.PresentMode == wgpu.PresentModeFifo
	d.configure(width, height, vsync)
	d.swapState = NextSwapState(d.swapState, EvRecreated)
	return nil
}

func (d *Device) SwapState() SwapState       { return d.swapState }
func (d *Device) Format() wgpu.TextureFormat { return d.config.Format }
func (d *Device) Size() (int, int)           { return int(d.config.Width), int(d.config.Height) }
func (d *Device) Queue() *wgpu.Queue         { return d.queue }
func (d *Device) Handle() *wgpu.Device       { return d.device }

// Strings reports adapter info for the vk_strings command.
func (d *Device) Strings() []string {
	info := d.adapter.GetInfo()
	return []string{
		fmt.Sprintf("adapter: %s", info.Name),
		fmt.Sprintf("backend: %v", info.BackendType),
		fmt.Sprintf("driver:  %s", info.DriverDescription),
	}
}

// Destroy tears the device down at shutdown.
func (d *Device) Destroy() {
	if d.queue != nil {
		d.queue.Release()
	}
	if d.device != nil {
		d.device.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	if d.surface != nil {
		d.surface.Release()
	}
}

// gpuTexture is the handle type the caches hold.
type gpuTexture struct {
	tex    *wgpu.Texture
	view   *wgpu.TextureView
	w, h   int
	levels int
}

// UploadRGBA creates a sampled texture, generating the mip chain on the CPU
// the way the original built its own mips before upload.
func (d *Device) UploadRGBA(label string, pix []byte, w, h int, mipmap bool) (texture.TextureHandle, error) {
	levels := 1
	if mipmap {
		levels = mipLevels(w, h)
	}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: uint32(levels),
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", refresh.ErrOutOfMemory, err)
	}

	level := pix
	lw, lh := w, h
	for mip := 0; mip < levels; mip++ {
		err = d.queue.WriteTexture(
			&wgpu.ImageCopyTexture{Texture: tex, MipLevel: uint32(mip)},
			level,
			&wgpu.TextureDataLayout{BytesPerRow: uint32(lw * 4), RowsPerImage: uint32(lh)},
			&wgpu.Extent3D{Width: uint32(lw), Height: uint32(lh), DepthOrArrayLayers: 1},
		)
		if err != nil {
			tex.Release()
			return nil, fmt.Errorf("upload %s mip %d: %w", label, mip, err)
		}
		if mip+1 < levels {
			level, lw, lh = halveMip(level, lw, lh)
		}
	}

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &gpuTexture{tex: tex, view: view, w: w, h: h, levels: levels}, nil
}

// UpdateRGBA rewrites a sub-rectangle of mip 0 (scrap and lightmap pages).
func (d *Device) UpdateRGBA(handle texture.TextureHandle, x, y, w, h int, pix []byte) error {
	gt := handle.(*gpuTexture)
	return d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture: gt.tex,
			Origin:  wgpu.Origin3D{X: uint32(x), Y: uint32(y)},
		},
		pix,
		&wgpu.TextureDataLayout{BytesPerRow: uint32(w * 4), RowsPerImage: uint32(h)},
		&wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
}

// Release frees a cache texture; part of the texture.Uploader contract.
func (d *Device) Release(handle texture.TextureHandle) {
	if gt, ok := handle.(*gpuTexture); ok {
		gt.view.Release()
		gt.tex.Release()
	}
}

func (d *Device) MaxTextureSize() int {
	if d.maxTextureSize == 0 {
		// The webgpu baseline guarantee; real adapters report more but the
		// engine never needs it.
		return 8192
	}
	return d.maxTextureSize
}

// View returns the sampled view behind a cache handle.
func View(handle texture.TextureHandle) *wgpu.TextureView {
	if gt, ok := handle.(*gpuTexture); ok {
		return gt.view
	}
	return nil
}

func mipLevels(w, h int) int {
	levels := 1
	for w > 1 || h > 1 {
		w = max(1, w/2)
		h = max(1, h/2)
		levels++
	}
	return levels
}

// halveMip box-filters one RGBA level down.
func halveMip(src []byte, w, h int) ([]byte, int, int) {
	nw, nh := max(1, w/2), max(1, h/2)
	dst := make([]byte, nw*nh*4)
	for y := 0; y < nh; y++ {
		sy := y * 2
		sy1 := min(sy+1, h-1)
		for x := 0; x < nw; x++ {
			sx := x * 2
			sx1 := min(sx+1, w-1)
			for c := 0; c < 4; c++ {
				sum := int(src[(sy*w+sx)*4+c]) +
					int(src[(sy*w+sx1)*4+c]) +
					int(src[(sy1*w+sx)*4+c]) +
					int(src[(sy1*w+sx1)*4+c])
				dst[(y*nw+x)*4+c] = uint8(sum / 4)
			}
		}
	}
	return dst, nw, nh
}
