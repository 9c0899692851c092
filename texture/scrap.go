package texture

// The scrap packs small UI pics into shared 256x256 atlas pages so a screen
// full of HUD elements binds a couple of textures instead of dozens.

const (
	ScrapBlockWidth  = 256
	ScrapBlockHeight = 256
	MaxScrapPages    = 2
)

type scrapPage struct {
	// allocated is the skyline: the used height of each column.
	allocated [ScrapBlockWidth]int
	pixels    []byte // RGBA
	dirty     bool
}

type Scrap struct {
	pages []*scrapPage
}

func NewScrap() *Scrap {
	return &Scrap{}
}

// Alloc reserves a w*h rectangle, scanning existing pages first and opening
// a new page while under MaxScrapPages. ok=false means the atlas is full and
// the caller must fall back to a dedicated image.
func (s *Scrap) Alloc(w, h int) (page, x, y int, ok bool) {
	if w <= 0 || h <= 0 || w > ScrapBlockWidth || h > ScrapBlockHeight {
		return 0, 0, 0, false
	}
	for p, pg := range s.pages {
		if x, y, ok := pg.alloc(w, h); ok {
			return p, x, y, true
		}
	}
	if len(s.pages) < MaxScrapPages {
		pg := &scrapPage{pixels: make([]byte, ScrapBlockWidth*ScrapBlockHeight*4)}
		s.pages = append(s.pages, pg)
		if x, y, ok := pg.alloc(w, h); ok {
			return len(s.pages) - 1, x, y, true
		}
	}
	return 0, 0, 0, false
}

func (pg *scrapPage) alloc(w, h int) (int, int, bool) {
	best := ScrapBlockHeight
	bestX := -1

	for i := 0; i <= ScrapBlockWidth-w; i++ {
		// Lowest skyline across the candidate span; abandon the span early
		// once a column reaches the current best.
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
	if bestX < 0 || best+h > ScrapBlockHeight {
		return 0, 0, false
	}
	for j := 0; j < w; j++ {
		pg.allocated[bestX+j] = best + h
	}
	return bestX, best, true
}

// Blit copies an RGBA rect into a page's CPU copy and marks it for upload.
func (s *Scrap) Blit(page, x, y, w, h int, rgba []byte) {
	pg := s.pages[page]
	for row := 0; row < h; row++ {
		dst := ((y+row)*ScrapBlockWidth + x) * 4
		src := row * w * 4
		copy(pg.pixels[dst:dst+w*4], rgba[src:src+w*4])
	}
	pg.dirty = true
}

// Pixels exposes a page's CPU copy for upload; clears the dirty flag.
func (s *Scrap) Pixels(page int) []byte {
	pg := s.pages[page]
	pg.dirty = false
	return pg.pixels
}

func (s *Scrap) Dirty(page int) bool {
	return page < len(s.pages) && s.pages[page].dirty
}

func (s *Scrap) NumPages() int { return len(s.pages) }
