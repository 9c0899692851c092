package lightmap

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/refresh/bsp"
	"github.com/gekko3d/refresh/client"
)

// Engine owns the lightmap pages for the loaded world and recomposes
// surface rectangles touched by dynamic lights.
type Engine struct {
	Atlas *Atlas

	// OverbrightBits scales composed light by 1, 2 or 4; the shader
	// saturates the diffuse product so whites stay white.
	OverbrightBits int

	stains map[int32]*Stainmap // surface index -> stain overlay
}

func NewEngine() *Engine {
	return &Engine{
		Atlas:  NewAtlas(),
		stains: make(map[int32]*Stainmap),
	}
}

// PlaceSurfaces reserves an atlas rectangle for every lit surface and
// composes its static lightmap. Called once per map load.
func (e *Engine) PlaceSurfaces(w *bsp.World) error {
	for i := range w.Surfaces {
		s := &w.Surfaces[i]
		if s.Flags&(bsp.SurfSky|bsp.SurfWarp|bsp.SurfNoDraw) != 0 {
			continue
		}
		lw, lh := s.LightmapSize()
		pageIdx, x, y, err := e.Atlas.Alloc(lw, lh)
		if err != nil {
			return err
		}
		s.LightmapPage = pageIdx
		s.LightS = x
		s.LightT = y
		e.Atlas.Write(pageIdx, x, y, lw, lh, e.composeStatic(w, s))
	}
	return nil
}

// composeStatic samples the baked luxel grid. Multiple style layers are
// stored consecutively; they are summed at full weight here (animated
// styles modulate in the shader).
func (e *Engine) composeStatic(w *bsp.World, s *bsp.Surface) []byte {
	lw, lh := s.LightmapSize()
	out := make([]byte, lw*lh*4)
	if s.LightOfs < 0 || int(s.LightOfs) >= len(w.LightData) {
		// Unlit surface: fullbright base.
		for i := 0; i < len(out); i += 4 {
			out[i], out[i+1], out[i+2], out[i+3] = 255, 255, 255, 255
		}
		return out
	}

	acc := make([]float32, lw*lh*3)
	ofs := int(s.LightOfs)
	for style := 0; style < 4 && s.Styles[style] != 255; style++ {
		if ofs+lw*lh*3 > len(w.LightData) {
			break
		}
		for i := 0; i < lw*lh*3; i++ {
			acc[i] += float32(w.LightData[ofs+i])
		}
		ofs += lw * lh * 3
	}
	for i := 0; i < lw*lh; i++ {
		out[i*4+0] = saturate(acc[i*3+0])
		out[i*4+1] = saturate(acc[i*3+1])
		out[i*4+2] = saturate(acc[i*3+2])
		out[i*4+3] = 255
	}
	return out
}

// MarkDynamic flags every surface a live light can affect with the current
// frame number. A light affects a surface when its signed plane distance is
// under radius - DLIGHT_CUTOFF and its projection falls inside the
// surface's texture-space bounds.
func (e *Engine) MarkDynamic(w *bsp.World, surfs []int32, lights []client.DLight, frame int) {
	for _, si := range surfs {
		s := &w.Surfaces[si]
		for li := range lights {
			if lightAffects(w, s, &lights[li]) {
				if s.DLightFrame != frame {
					s.DLightFrame = frame
					s.DLightBits = 0
				}
				s.DLightBits |= 1 << uint(li%32)
			}
		}
	}
}

func lightAffects(w *bsp.World, s *bsp.Surface, l *client.DLight) bool {
	plane := &w.Planes[s.Plane]
	dist := plane.DistTo(l.Origin)
	if s.Flags&bsp.SurfPlaneBack != 0 {
		dist = -dist
	}
	if dist < 0 || dist >= l.Radius-client.DLightCutoff {
		return false
	}
	ls, lt := projectToSurface(w, s, l.Origin, dist)
	return ls >= float32(s.TexMins[0]) && ls <= float32(s.TexMins[0]+s.Extents[0]) &&
		lt >= float32(s.TexMins[1]) && lt <= float32(s.TexMins[1]+s.Extents[1])
}

// projectToSurface drops the light origin onto the surface plane and maps it
// into texture space.
func projectToSurface(w *bsp.World, s *bsp.Surface, origin mgl32.Vec3, dist float32) (float32, float32) {
	plane := &w.Planes[s.Plane]
	impact := origin.Sub(plane.Normal.Mul(dist))
	ti := &w.TexInfos[s.TexInfo]
	ls := impact.Dot(mgl32.Vec3{ti.VecsS[0], ti.VecsS[1], ti.VecsS[2]}) + ti.VecsS[3]
	lt := impact.Dot(mgl32.Vec3{ti.VecsT[0], ti.VecsT[1], ti.VecsT[2]}) + ti.VecsT[3]
	return ls, lt
}

// Recompose rebuilds a dynamic surface's rectangle: static base, plus each
// live light's falloff per luxel, plus the stain overlay, and rewrites just
// that rectangle in the staging page. Per-surface and side-effect free
// outside the surface's own rectangle, so surfaces fan out across workers.
func (e *Engine) Recompose(w *bsp.World, si int32, lights []client.DLight) {
	s := &w.Surfaces[si]
	lw, lh := s.LightmapSize()
	out := e.composeStatic(w, s)

	plane := &w.Planes[s.Plane]
	for li := range lights {
		l := &lights[li]
		if s.DLightBits&(1<<uint(li%32)) == 0 {
			continue
		}
		dist := plane.DistTo(l.Origin)
		if s.Flags&bsp.SurfPlaneBack != 0 {
			dist = -dist
		}
		ls, lt := projectToSurface(w, s, l.Origin, dist)
		for t := 0; t < lh; t++ {
			td := lt - float32(s.TexMins[1]+t*16)
			for ss := 0; ss < lw; ss++ {
				sd := ls - float32(s.TexMins[0]+ss*16)
				d := float32(math.Sqrt(float64(sd*sd + td*td + dist*dist)))
				fall := 1 - d/l.Radius
				if fall <= 0 {
					continue
				}
				i := (t*lw + ss) * 4
				out[i+0] = saturate(float32(out[i+0]) + 255*l.Color[0]*fall)
				out[i+1] = saturate(float32(out[i+1]) + 255*l.Color[1]*fall)
				out[i+2] = saturate(float32(out[i+2]) + 255*l.Color[2]*fall)
			}
		}
	}

	if sm := e.stains[si]; sm != nil {
		sm.Modulate(out)
	}
	e.Atlas.Write(s.LightmapPage, s.LightS, s.LightT, lw, lh, out)
}

// Stains returns (creating on first use) the stain overlay for a surface.
func (e *Engine) Stains(w *bsp.World, si int32) *Stainmap {
	if sm, ok := e.stains[si]; ok {
		return sm
	}
	s := &w.Surfaces[si]
	lw, lh := s.LightmapSize()
	sm := NewStainmap(lw, lh)
	e.stains[si] = sm
	return sm
}

// StepStains advances every stain fade; dead stainmaps are dropped.
func (e *Engine) StepStains(dt float32) {
	for si, sm := range e.stains {
		if sm.Step(dt) {
			delete(e.stains, si)
		}
	}
}

// OverbrightScale maps r_overbrightbits to the shader's multiplier: each
// bit doubles, capped at 4x. Zero bits means the fragment output is exactly
// diffuse times lightmap.
func OverbrightScale(bits int) float32 {
	switch {
	case bits <= 0:
		return 1
	case bits == 1:
		return 2
	default:
		return 4
	}
}

func saturate(v float32) uint8 {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return uint8(v)
}
