package lightmap

import (
	"fmt"

	"github.com/gekko3d/refresh"
)

const (
	// BlockWidth/Height is the dimension of one atlas page.
	BlockWidth  = 256
	BlockHeight = 256

	// MaxPages bounds a map's lightmap memory; real maps use a handful.
	MaxPages = 128
)

type page struct {
	// allocated tracks the used height of every column (skyline packing).
	allocated [BlockWidth]int
	pixels    []byte // RGBA staging copy
	dirty     bool
}

// Atlas packs per-surface luxel rectangles into shared pages. Surfaces keep
// their rectangle for the life of the map; dynamic lights rewrite rectangle
// contents, never placement, so rectangles on a page are always disjoint.
type Atlas struct {
	pages []*page
}

func NewAtlas() *Atlas {
	return &Atlas{}
}

// Alloc reserves a w*h rectangle and returns its page and position.
func (a *Atlas) Alloc(w, h int) (pageIdx, x, y int, err error) {
	if w <= 0 || h <= 0 || w > BlockWidth || h > BlockHeight {
		return 0, 0, 0, fmt.Errorf("lightmap rect %dx%d: %w", w, h, refresh.ErrAtlasFull)
	}
	for i, pg := range a.pages {
		if x, y, ok := pg.alloc(w, h); ok {
			return i, x, y, nil
		}
	}
	if len(a.pages) >= MaxPages {
		return 0, 0, 0, refresh.ErrAtlasFull
	}
	pg := &page{pixels: make([]byte, BlockWidth*BlockHeight*4)}
	a.pages = append(a.pages, pg)
	x, y, ok := pg.alloc(w, h)
	if !ok {
		return 0, 0, 0, refresh.ErrAtlasFull
	}
	return len(a.pages) - 1, x, y, nil
}

func (pg *page) alloc(w, h int) (int, int, bool) {
	best := BlockHeight
	bestX := -1
	for i := 0; i <= BlockWidth-w; i++ {
		best2 := 0
		fits := true
		for j := 0; j < w; j++ {
			if pg.allocated[i+j] >= best {
				fits = false
				break
			}
			if pg.allocated[i+j] > best2 {
				best2 = pg.allocated[i+j]
			}
		}
		if fits {
			bestX = i
			best = best2
		}
	}
	if bestX < 0 || best+h > BlockHeight {
		return 0, 0, false
	}
	for j := 0; j < w; j++ {
		pg.allocated[bestX+j] = best + h
	}
	return bestX, best, true
}

// Write blits an RGBA rect into the page staging copy.
func (a *Atlas) Write(pageIdx, x, y, w, h int, rgba []byte) {
	pg := a.pages[pageIdx]
	for row := 0; row < h; row++ {
		dst := ((y+row)*BlockWidth + x) * 4
		copy(pg.pixels[dst:dst+w*4], rgba[row*w*4:(row+1)*w*4])
	}
	pg.dirty = true
}

// Pixels returns a page's staging copy and clears its dirty flag.
func (a *Atlas) Pixels(pageIdx int) []byte {
	pg := a.pages[pageIdx]
	pg.dirty = false
	return pg.pixels
}

func (a *Atlas) Dirty(pageIdx int) bool {
	return pageIdx < len(a.pages) && a.pages[pageIdx].dirty
}

func (a *Atlas) NumPages() int { return len(a.pages) }
