package render

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// FramesInFlight is the depth of the per-frame uniform buffer ring.
// RenderFrame moves to the next slot after each submit and does not wait on
// a fence before writing into a slot again.
const FramesInFlight = 2

// Targets bundles the offscreen images a frame renders through: scene
// color + depth, and the reflection color targets with their shared depth.
// Rebuilt on resize.
type Targets struct {
	SceneColor *wgpu.Texture
	SceneView  *wgpu.TextureView
	Depth      *wgpu.Texture
	DepthView  *wgpu.TextureView

	ReflColor     [MaxRefl]*wgpu.Texture
	ReflView      [MaxRefl]*wgpu.TextureView
	ReflDepth     *wgpu.Texture
	ReflDepthView *wgpu.TextureView

	Width, Height int
}

func NewTargets(device *wgpu.Device, format wgpu.TextureFormat, width, height int) (*Targets, error) {
	t := &Targets{Width: width, Height: height}

	color, view, err := makeTarget(device, "scene color", format, width, height,
		wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopySrc)
	if err != nil {
		return nil, err
	}
	t.SceneColor, t.SceneView = color, view

	depth, depthView, err := makeTarget(device, "scene depth", DepthFormat, width, height,
		wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding)
	if err != nil {
		t.Release()
		return nil, err
	}
	t.Depth, t.DepthView = depth, depthView

	for i := 0; i < MaxRefl; i++ {
		c, v, err := makeTarget(device, "reflection color", format, DefaultReflSize, DefaultReflSize,
			wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding)
		if err != nil {
			t.Release()
			return nil, err
		}
		t.ReflColor[i], t.ReflView[i] = c, v
	}
	rd, rdv, err := makeTarget(device, "reflection depth", DepthFormat, DefaultReflSize, DefaultReflSize,
		wgpu.TextureUsageRenderAttachment)
	if err != nil {
		t.Release()
		return nil, err
	}
	t.ReflDepth, t.ReflDepthView = rd, rdv

	return t, nil
}

func makeTarget(device *wgpu.Device, label string, format wgpu.TextureFormat, w, h int, usage wgpu.TextureUsage) (*wgpu.Texture, *wgpu.TextureView, error) {
	tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, nil, err
	}
	return tex, view, nil
}

func (t *Targets) Release() {
	release := func(tex *wgpu.Texture, view *wgpu.TextureView) {
		if view != nil {
			view.Release()
		}
		if tex != nil {
			tex.Release()
		}
	}
	release(t.SceneColor, t.SceneView)
	release(t.Depth, t.DepthView)
	for i := 0; i < MaxRefl; i++ {
		release(t.ReflColor[i], t.ReflView[i])
	}
	release(t.ReflDepth, t.ReflDepthView)
}
