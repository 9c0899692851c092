package shaders

import (
	_ "embed"
)

//go:embed world.wgsl
var WorldWGSL string

//go:embed warp.wgsl
var WarpWGSL string

//go:embed sky.wgsl
var SkyWGSL string

//go:embed alias.wgsl
var AliasWGSL string

//go:embed particles.wgsl
var ParticlesWGSL string

//go:embed water_composite.wgsl
var WaterCompositeWGSL string

//go:embed overlay.wgsl
var OverlayWGSL string
