package render

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/refresh/render/shaders"
)

// WorldVertex is the interleaved layout of the static world buffer.
type WorldVertex struct {
	Pos  [3]float32
	ST   [2]float32
	LmST [2]float32
}

// AliasVertex carries CPU-lerped positions plus the codebook light term.
type AliasVertex struct {
	Pos   [3]float32
	ST    [2]float32
	Light float32
}

// OverlayVertex is the 2D pass layout (console, HUD).
type OverlayVertex struct {
	Pos   [2]float32
	UV    [2]float32
	Color [4]float32
}

const (
	worldVertexStride   = 7 * 4
	aliasVertexStride   = 6 * 4
	overlayVertexStride = 8 * 4
)

var worldVertexLayout = wgpu.VertexBufferLayout{
	ArrayStride: worldVertexStride,
	StepMode:    wgpu.VertexStepModeVertex,
	Attributes: []wgpu.VertexAttribute{
		{ShaderLocation: 0, Offset: 0, Format: wgpu.VertexFormatFloat32x3},
		{ShaderLocation: 1, Offset: 12, Format: wgpu.VertexFormatFloat32x2},
		{ShaderLocation: 2, Offset: 20, Format: wgpu.VertexFormatFloat32x2},
	},
}

var aliasVertexLayout = wgpu.VertexBufferLayout{
	ArrayStride: aliasVertexStride,
	StepMode:    wgpu.VertexStepModeVertex,
	Attributes: []wgpu.VertexAttribute{
		{ShaderLocation: 0, Offset: 0, Format: wgpu.VertexFormatFloat32x3},
		{ShaderLocation: 1, Offset: 12, Format: wgpu.VertexFormatFloat32x2},
		{ShaderLocation: 2, Offset: 20, Format: wgpu.VertexFormatFloat32},
	},
}

var overlayVertexLayout = wgpu.VertexBufferLayout{
	ArrayStride: overlayVertexStride,
	StepMode:    wgpu.VertexStepModeVertex,
	Attributes: []wgpu.VertexAttribute{
		{ShaderLocation: 0, Offset: 0, Format: wgpu.VertexFormatFloat32x2},
		{ShaderLocation: 1, Offset: 8, Format: wgpu.VertexFormatFloat32x2},
		{ShaderLocation: 2, Offset: 16, Format: wgpu.VertexFormatFloat32x4},
	},
}

// DepthFormat for the scene depth attachment.
const DepthFormat = wgpu.TextureFormatDepth32Float

type blendMode int

const (
	blendNone blendMode = iota
	blendAlpha
	blendAdditive
)

type pipelineSpec struct {
	name       string
	shader     string
	layout     *wgpu.VertexBufferLayout // nil: vertex-index driven
	blend      blendMode
	depthWrite bool
	depthTest  bool
	format     wgpu.TextureFormat
}

// Pipelines bundles every render pass pipeline, created once against the
// swapchain format and rebuilt with it.
type Pipelines struct {
	World          *wgpu.RenderPipeline
	Warp           *wgpu.RenderPipeline
	Sky            *wgpu.RenderPipeline
	Alias          *wgpu.RenderPipeline
	AliasTrans     *wgpu.RenderPipeline
	Particles      *wgpu.RenderPipeline
	ParticlesAdd   *wgpu.RenderPipeline
	WaterComposite *wgpu.RenderPipeline
	Overlay        *wgpu.RenderPipeline
}

func NewPipelines(device *wgpu.Device, sceneFormat, overlayFormat wgpu.TextureFormat) (*Pipelines, error) {
	p := &Pipelines{}
	specs := []struct {
		dst  **wgpu.RenderPipeline
		spec pipelineSpec
	}{
		{&p.World, pipelineSpec{"world", shaders.WorldWGSL, &worldVertexLayout, blendNone, true, true, sceneFormat}},
		{&p.Warp, pipelineSpec{"warp", shaders.WarpWGSL, &worldVertexLayout, blendAlpha, false, true, sceneFormat}},
		{&p.Sky, pipelineSpec{"sky", shaders.SkyWGSL, &worldVertexLayout, blendNone, false, true, sceneFormat}},
		{&p.Alias, pipelineSpec{"alias", shaders.AliasWGSL, &aliasVertexLayout, blendNone, true, true, sceneFormat}},
		{&p.AliasTrans, pipelineSpec{"alias-trans", shaders.AliasWGSL, &aliasVertexLayout, blendAlpha, false, true, sceneFormat}},
		{&p.Particles, pipelineSpec{"particles", shaders.ParticlesWGSL, nil, blendAlpha, false, true, sceneFormat}},
		{&p.ParticlesAdd, pipelineSpec{"particles-add", shaders.ParticlesWGSL, nil, blendAdditive, false, true, sceneFormat}},
		{&p.WaterComposite, pipelineSpec{"water-composite", shaders.WaterCompositeWGSL, &worldVertexLayout, blendAlpha, false, true, sceneFormat}},
		{&p.Overlay, pipelineSpec{"overlay", shaders.OverlayWGSL, &overlayVertexLayout, blendAlpha, false, false, overlayFormat}},
	}
	for _, s := range specs {
		pipe, err := createPipeline(device, s.spec)
		if err != nil {
			p.Release()
			return nil, err
		}
		*s.dst = pipe
	}
	return p, nil
}

func (p *Pipelines) Release() {
	for _, pipe := range []*wgpu.RenderPipeline{
		p.World, p.Warp, p.Sky, p.Alias, p.AliasTrans,
		p.Particles, p.ParticlesAdd, p.WaterComposite, p.Overlay,
	} {
		if pipe != nil {
			pipe.Release()
		}
	}
}

func createPipeline(device *wgpu.Device, spec pipelineSpec) (*wgpu.RenderPipeline, error) {
	shader, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          spec.name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: spec.shader},
	})
	if err != nil {
		return nil, err
	}
	defer shader.Release()

	var buffers []wgpu.VertexBufferLayout
	if spec.layout != nil {
		buffers = []wgpu.VertexBufferLayout{*spec.layout}
	}

	var blend *wgpu.BlendState
	switch spec.blend {
	case blendAlpha:
		blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	case blendAdditive:
		blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	}

	var depth *wgpu.DepthStencilState
	if spec.depthTest {
		compare := wgpu.CompareFunctionLessEqual
		depth = &wgpu.DepthStencilState{
			Format:            DepthFormat,
			DepthWriteEnabled: spec.depthWrite,
			DepthCompare:      compare,
		}
	}

	return device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: spec.name,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    spec.format,
					Blend:     blend,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		DepthStencil: depth,
		Multisample: wgpu.MultisampleState{
			Count:                  1,
			Mask:                   0xFFFFFFFF,
			AlphaToCoverageEnabled: false,
		},
	})
}
