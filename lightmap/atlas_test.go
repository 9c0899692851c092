package lightmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/refresh"
)

type rect struct{ page, x, y, w, h int }

func overlaps(a, b rect) bool {
	return a.page == b.page &&
		a.x < b.x+b.w && b.x < a.x+a.w &&
		a.y < b.y+b.h && b.y < a.y+a.h
}

func TestAtlasRectanglesDisjoint(t *testing.T) {
	a := NewAtlas()
	sizes := [][2]int{
		{18, 18}, {3, 3}, {129, 34}, {256, 16}, {17, 90},
		{64, 64}, {10, 200}, {200, 10}, {33, 33}, {5, 5},
	}
	var rects []rect
	for _, sz := range sizes {
		for n := 0; n < 6; n++ {
			page, x, y, err := a.Alloc(sz[0], sz[1])
			require.NoError(t, err)
			r := rect{page, x, y, sz[0], sz[1]}
			for _, prev := range rects {
				assert.False(t, overlaps(r, prev), "rect %+v overlaps %+v", r, prev)
			}
			assert.LessOrEqual(t, r.x+r.w, BlockWidth)
			assert.LessOrEqual(t, r.y+r.h, BlockHeight)
			rects = append(rects, r)
		}
	}
}

func TestAtlasRejectsOversize(t *testing.T) {
	a := NewAtlas()
	_, _, _, err := a.Alloc(BlockWidth+1, 4)
	assert.ErrorIs(t, err, refresh.ErrAtlasFull)
	_, _, _, err = a.Alloc(0, 4)
	assert.ErrorIs(t, err, refresh.ErrAtlasFull)
}

func TestAtlasOpensNewPages(t *testing.T) {
	a := NewAtlas()
	// Full-page rects force one page each.
	for i := 0; i < 3; i++ {
		page, x, y, err := a.Alloc(BlockWidth, BlockHeight)
		require.NoError(t, err)
		assert.Equal(t, i, page)
		assert.Zero(t, x)
		assert.Zero(t, y)
	}
	assert.Equal(t, 3, a.NumPages())
}

func TestAtlasWriteDirty(t *testing.T) {
	a := NewAtlas()
	page, x, y, err := a.Alloc(2, 2)
	require.NoError(t, err)

	a.Write(page, x, y, 2, 2, []byte{
		1, 2, 3, 255, 4, 5, 6, 255,
		7, 8, 9, 255, 10, 11, 12, 255,
	})
	assert.True(t, a.Dirty(page))

	pix := a.Pixels(page)
	assert.False(t, a.Dirty(page))
	i := (y*BlockWidth + x) * 4
	assert.Equal(t, []byte{1, 2, 3, 255}, pix[i:i+4])
	i = ((y+1)*BlockWidth + x + 1) * 4
	assert.Equal(t, []byte{10, 11, 12, 255}, pix[i:i+4])
}
