package shaders

import (
	_ "embed"
)

//go:embed fullscreen.wgsl
var FullscreenWGSL string

//go:embed ssao.wgsl
var SSAOWGSL string

//go:embed box5.wgsl
var Box5WGSL string

//go:embed bloom_extract.wgsl
var BloomExtractWGSL string

//go:embed gauss9.wgsl
var Gauss9WGSL string

//go:embed bloom_composite.wgsl
var BloomCompositeWGSL string

//go:embed easu.wgsl
var EASUWGSL string

//go:embed rcas.wgsl
var RCASWGSL string

//go:embed temporal.wgsl
var TemporalWGSL string

//go:embed fxaa.wgsl
var FXAAWGSL string

//go:embed final.wgsl
var FinalWGSL string
