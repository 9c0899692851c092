package render

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/refresh"
	"github.com/gekko3d/refresh/bsp"
	"github.com/gekko3d/refresh/client"
	"github.com/gekko3d/refresh/lightmap"
	"github.com/gekko3d/refresh/model"
	"github.com/gekko3d/refresh/texture"
)

// RdFlags on the refdef.
const (
	RDFUnderwater = 1 << iota
	RDFNoWorldModel
)

// RefDef is the per-frame view description handed in by the client layer.
type RefDef struct {
	ViewOrg    mgl32.Vec3
	ViewAngles mgl32.Vec3 // degrees: pitch, yaw, roll
	FovX       float32
	FovY       float32
	Width      int
	Height     int
	Time       float64
	Blend      [4]float32
	RdFlags    uint32
	AreaMask   []byte

	Entities  []client.RenderEntity
	Particles *client.ParticleSystem
	Lights    []client.DLight
}

// Cvars bundles the renderer's cvar handles, registered once at install.
type Cvars struct {
	Fullbright     *refresh.Cvar
	NoCull         *refresh.Cvar
	NoVis          *refresh.Cvar
	DrawEntities   *refresh.Cvar
	DrawWorld      *refresh.Cvar
	OverbrightBits *refresh.Cvar
	Stainmap       *refresh.Cvar
	Caustics       *refresh.Cvar
	DetailTexture  *refresh.Cvar
	CelShading     *refresh.Cvar
	Fog            *refresh.Cvar
	TimeBasedFx    *refresh.Cvar
	HwGamma        *refresh.Cvar

	Bloom          *refresh.Cvar
	BloomIntensity *refresh.Cvar
	BloomThreshold *refresh.Cvar
	SSAO           *refresh.Cvar
	SSAOIntensity  *refresh.Cvar
	SSAORadius     *refresh.Cvar
	FXAA           *refresh.Cvar
	FSR            *refresh.Cvar
	FSRScale       *refresh.Cvar
	FSRSharpness   *refresh.Cvar
	TemporalBox    *refresh.Cvar

	MSAA        *refresh.Cvar
	Anisotropy  *refresh.Cvar
	TextureMode *refresh.Cvar
	PicMip      *refresh.Cvar
	SkyMip      *refresh.Cvar

	SwapInterval      *refresh.Cvar
	Mode              *refresh.Cvar
	Fullscreen        *refresh.Cvar
	Gamma             *refresh.Cvar
	ScreenshotFormat  *refresh.Cvar
	ScreenshotQuality *refresh.Cvar

	Speeds   *refresh.Cvar
	Lightmap *refresh.Cvar
	ShowTris *refresh.Cvar
	LockPVS  *refresh.Cvar
	Clear    *refresh.Cvar
	Finish   *refresh.Cvar
	Log      *refresh.Cvar
}

// Register installs the full cvar surface with its defaults and flags.
func (c *Cvars) Register(reg *refresh.CvarRegistry) {
	c.Fullbright = reg.Get("r_fullbright", "0", 0)
	c.NoCull = reg.Get("r_nocull", "0", 0)
	c.NoVis = reg.Get("r_novis", "0", 0)
	c.DrawEntities = reg.Get("r_drawentities", "1", 0)
	c.DrawWorld = reg.Get("r_drawworld", "1", 0)
	c.OverbrightBits = reg.Get("r_overbrightbits", "1", refresh.CvarArchive)
	c.Stainmap = reg.Get("r_stainmap", "1", refresh.CvarArchive)
	c.Caustics = reg.Get("r_caustics", "1", refresh.CvarArchive)
	c.DetailTexture = reg.Get("r_detailtexture", "0", refresh.CvarArchive)
	c.CelShading = reg.Get("r_celshading", "0", refresh.CvarArchive)
	c.Fog = reg.Get("r_fog", "1", refresh.CvarArchive)
	c.TimeBasedFx = reg.Get("r_timebasedfx", "1", refresh.CvarArchive)
	c.HwGamma = reg.Get("r_hwgamma", "0", refresh.CvarArchive)

	c.Bloom = reg.Get("r_bloom", "1", refresh.CvarArchive)
	c.BloomIntensity = reg.Get("r_bloom_intensity", "0.75", refresh.CvarArchive)
	c.BloomThreshold = reg.Get("r_bloom_threshold", "0.9", refresh.CvarArchive)
	c.SSAO = reg.Get("r_ssao", "1", refresh.CvarArchive)
	c.SSAOIntensity = reg.Get("r_ssao_intensity", "1.0", refresh.CvarArchive)
	c.SSAORadius = reg.Get("r_ssao_radius", "24", refresh.CvarArchive)
	c.FXAA = reg.Get("r_fxaa", "1", refresh.CvarArchive)
	c.FSR = reg.Get("r_fsr", "0", refresh.CvarArchive)
	c.FSRScale = reg.Get("r_fsr_scale", "0.75", refresh.CvarArchive)
	c.FSRSharpness = reg.Get("r_fsr_sharpness", "0.25", refresh.CvarArchive)
	c.TemporalBox = reg.Get("r_temporal_boxscale", "1.25", refresh.CvarArchive)

	c.MSAA = reg.Get("r_msaa", "0", refresh.CvarArchive|refresh.CvarLatch)
	c.Anisotropy = reg.Get("r_anisotropy", "4", refresh.CvarArchive)
	c.TextureMode = reg.Get("vk_texturemode", "linear", refresh.CvarArchive)
	c.PicMip = reg.Get("vk_picmip", "0", refresh.CvarArchive|refresh.CvarLatch)
	c.SkyMip = reg.Get("vk_skymip", "0", refresh.CvarArchive|refresh.CvarLatch)

	c.SwapInterval = reg.Get("vk_swapinterval", "1", refresh.CvarArchive)
	c.Mode = reg.Get("vk_mode", "3", refresh.CvarArchive|refresh.CvarLatch)
	c.Fullscreen = reg.Get("vid_fullscreen", "0", refresh.CvarArchive)
	c.Gamma = reg.Get("vid_gamma", "1", refresh.CvarArchive)
	c.ScreenshotFormat = reg.Get("vk_screenshot_format", "tga", refresh.CvarArchive)
	c.ScreenshotQuality = reg.Get("vk_screenshot_quality", "85", refresh.CvarArchive)

	c.Speeds = reg.Get("r_speeds", "0", 0)
	c.Lightmap = reg.Get("vk_lightmap", "0", 0)
	c.ShowTris = reg.Get("vk_showtris", "0", 0)
	c.LockPVS = reg.Get("vk_lockpvs", "0", 0)
	c.Clear = reg.Get("vk_clear", "0", 0)
	c.Finish = reg.Get("vk_finish", "0", 0)
	c.Log = reg.Get("vk_log", "0", 0)
}

// Context gathers the renderer's world-sized state: the loaded world, the
// asset caches, the visibility walker, and frame counters. One per process
// in the engine; tests build ephemeral ones.
type Context struct {
	Log    refresh.Logger
	Cvars  Cvars
	Images *texture.Cache
	Models *model.Cache
	Lights *lightmap.Engine

	World  *bsp.World
	Viz    *Walker
	Speeds *Profiler

	FrameCount int

	// Workers is the fan-out width for the parallel phases.
	Workers int
}
