package texture

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/gekko3d/refresh"
)

type ImageType int

const (
	ImagePic ImageType = iota
	ImageSkin
	ImageSprite
	ImageWall
	ImageSky
)

func (t ImageType) mipmapped() bool {
	return t == ImageWall || t == ImageSkin
}

// TextureHandle is whatever the uploader hands back for a created texture;
// the cache treats it as opaque.
type TextureHandle any

// Uploader is the GPU side of the cache. The renderer driver implements it
// over wgpu; tests implement it in memory.
type Uploader interface {
	UploadRGBA(label string, pix []byte, w, h int, mipmap bool) (TextureHandle, error)
	UpdateRGBA(handle TextureHandle, x, y, w, h int, pix []byte) error
	Release(handle TextureHandle)
	MaxTextureSize() int
}

type Image struct {
	ID     string
	Name   string
	Type   ImageType
	Width  int // source dimensions
	Height int

	UploadWidth  int // power-of-two upload dimensions
	UploadHeight int

	// Scrap placement, set iff Scrapped.
	Scrapped  bool
	ScrapPage int

	// Texture coordinates of the image within its texture (identity for
	// dedicated images, sub-rect for scrapped pics).
	SL, TL, SH, TH float32

	HasAlpha bool
	RegSeq   int
	Handle   TextureHandle
}

type Config struct {
	RoundDown bool    // gl_round_down
	PicMip    int     // vk_picmip
	SkyMip    int     // vk_skymip
	Intensity float32 // intensity pre-scale for walls/skins
	Gamma     float32 // vid_gamma pre-scale
}

type Cache struct {
	log    refresh.Logger
	loader refresh.FileLoader
	up     Uploader
	pal    *Palette
	cfg    Config

	intensity [256]uint8
	gamma     [256]uint8

	images       map[string]*Image
	scrap        *Scrap
	scrapHandles []TextureHandle
	regSeq       int

	atlasFullLogged map[string]bool

	// Placeholders, created once at init and never swept.
	NoTexture *Image // red/black checkerboard
	NoPic     *Image // solid cyan
}

func NewCache(log refresh.Logger, loader refresh.FileLoader, up Uploader, pal *Palette, cfg Config) (*Cache, error) {
	if cfg.Intensity == 0 {
		cfg.Intensity = 1
	}
	if cfg.Gamma == 0 {
		cfg.Gamma = 1
	}
	c := &Cache{
		log:             log,
		loader:          loader,
		up:              up,
		pal:             pal,
		cfg:             cfg,
		intensity:       BuildIntensityTable(cfg.Intensity),
		gamma:           BuildGammaTable(cfg.Gamma),
		images:          make(map[string]*Image),
		scrap:           NewScrap(),
		atlasFullLogged: make(map[string]bool),
		regSeq:          1,
	}
	var err error
	if c.NoTexture, err = c.UploadPic(checkerboard(), 16, 16, ImageWall, "***notexture***"); err != nil {
		return nil, err
	}
	if c.NoPic, err = c.UploadPic(solidCyan(), 8, 8, ImagePic, "***nopic***"); err != nil {
		return nil, err
	}
	return c, nil
}

// BeginRegistration bumps the registration sequence at map load; anything
// not re-found before Sweep becomes eligible for eviction.
func (c *Cache) BeginRegistration() {
	c.regSeq++
}

func (c *Cache) RegistrationSequence() int { return c.regSeq }

// Find resolves a name to an image, loading it on first use. Extension
// priority is PNG, then TGA, then the name as given (.pcx/.wal). A missing
// or malformed non-essential asset yields the placeholder plus the error.
func (c *Cache) Find(name string, typ ImageType) (*Image, error) {
	if img, ok := c.images[name]; ok {
		img.RegSeq = c.regSeq
		return img, nil
	}

	pix, w, h, err := c.loadPixels(name, typ)
	if err != nil {
		if typ == ImagePic {
			return c.NoPic, err
		}
		return c.NoTexture, err
	}

	img, err := c.upload(name, pix, w, h, typ)
	if err != nil {
		return c.NoTexture, err
	}
	c.images[name] = img
	return img, nil
}

func (c *Cache) loadPixels(name string, typ ImageType) ([]byte, int, int, error) {
	base := strings.TrimSuffix(name, extOf(name))
	transparent := typ == ImagePic || typ == ImageSky || typ == ImageSprite

	if data, err := c.loader(base + ".png"); err == nil {
		return decodePNG(data, base+".png")
	}
	if data, err := c.loader(base + ".tga"); err == nil {
		pix, w, h, err := DecodeTGA(data)
		if err != nil {
			return nil, 0, 0, refresh.MalformedAsset(base+".tga", err.Error())
		}
		return pix, w, h, nil
	}

	data, err := c.loader(name)
	if err != nil {
		return nil, 0, 0, &refresh.AssetError{Path: name, Err: err}
	}
	switch extOf(name) {
	case ".pcx":
		idx, w, h, pal, err := DecodePCX(data)
		if err != nil {
			return nil, 0, 0, refresh.MalformedAsset(name, err.Error())
		}
		p := c.pal
		if pal != nil {
			var local Palette
			for i := 0; i < 256; i++ {
				local[i] = [3]uint8{pal[i*3], pal[i*3+1], pal[i*3+2]}
			}
			p = &local
		}
		return PCXToRGBA(idx, w, h, p, transparent), w, h, nil
	case ".wal":
		idx, w, h, _, err := DecodeWAL(data)
		if err != nil {
			return nil, 0, 0, refresh.MalformedAsset(name, err.Error())
		}
		return PCXToRGBA(idx, w, h, c.pal, transparent), w, h, nil
	case ".tga":
		pix, w, h, err := DecodeTGA(data)
		if err != nil {
			return nil, 0, 0, refresh.MalformedAsset(name, err.Error())
		}
		return pix, w, h, nil
	default:
		return nil, 0, 0, refresh.MalformedAsset(name, "unknown image extension")
	}
}

// UploadPic registers raw RGBA pixels under a name, bypassing the loader.
func (c *Cache) UploadPic(rgba []byte, w, h int, typ ImageType, name string) (*Image, error) {
	img, err := c.upload(name, rgba, w, h, typ)
	if err != nil {
		return nil, err
	}
	c.images[name] = img
	return img, nil
}

func (c *Cache) upload(name string, rgba []byte, w, h int, typ ImageType) (*Image, error) {
	img := &Image{
		ID:       uuid.NewString(),
		Name:     name,
		Type:     typ,
		Width:    w,
		Height:   h,
		HasAlpha: scanAlpha(rgba),
		RegSeq:   c.regSeq,
		SL:       0, TL: 0, SH: 1, TH: 1,
	}

	// Small UI pics go to the shared atlas.
	if typ == ImagePic && w < 64 && h < 64 {
		if page, x, y, ok := c.scrap.Alloc(w, h); ok {
			c.scrap.Blit(page, x, y, w, h, rgba)
			if err := c.flushScrapPage(page); err != nil {
				return nil, err
			}
			img.Scrapped = true
			img.ScrapPage = page
			img.UploadWidth, img.UploadHeight = w, h
			img.SL = (float32(x) + 0.5) / ScrapBlockWidth
			img.TL = (float32(y) + 0.5) / ScrapBlockHeight
			img.SH = (float32(x+w) - 0.5) / ScrapBlockWidth
			img.TH = (float32(y+h) - 0.5) / ScrapBlockHeight
			img.Handle = c.scrapHandles[page]
			return img, nil
		}
		if !c.atlasFullLogged[name] {
			c.atlasFullLogged[name] = true
			c.log.Warnf("%s: %v, using dedicated image", name, refresh.ErrAtlasFull)
		}
	}

	pix, uw, uh := c.preparePixels(rgba, w, h, typ)
	handle, err := c.up.UploadRGBA(name, pix, uw, uh, typ.mipmapped())
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	img.UploadWidth, img.UploadHeight = uw, uh
	img.Handle = handle
	return img, nil
}

// preparePixels applies the upload policy: POT sizing with the configured
// rounding and mip bias, device-max clamp, then intensity and gamma tables
// for mipmapped (non-UI) types.
func (c *Cache) preparePixels(rgba []byte, w, h int, typ ImageType) ([]byte, int, int) {
	uw := nearestPOT(w, c.cfg.RoundDown && typ.mipmapped())
	uh := nearestPOT(h, c.cfg.RoundDown && typ.mipmapped())

	shift := 0
	if typ.mipmapped() {
		shift = c.cfg.PicMip
	} else if typ == ImageSky {
		shift = c.cfg.SkyMip
	}
	uw >>= shift
	uh >>= shift
	if uw < 1 {
		uw = 1
	}
	if uh < 1 {
		uh = 1
	}
	if maxDim := c.up.MaxTextureSize(); maxDim > 0 {
		for uw > maxDim {
			uw >>= 1
		}
		for uh > maxDim {
			uh >>= 1
		}
	}

	pix := rgba
	if uw != w || uh != h {
		pix = resample(rgba, w, h, uw, uh)
	}
	if typ.mipmapped() {
		out := make([]byte, len(pix))
		for i := 0; i < len(pix); i += 4 {
			out[i+0] = c.gamma[c.intensity[pix[i+0]]]
			out[i+1] = c.gamma[c.intensity[pix[i+1]]]
			out[i+2] = c.gamma[c.intensity[pix[i+2]]]
			out[i+3] = pix[i+3]
		}
		pix = out
	}
	return pix, uw, uh
}

func (c *Cache) flushScrapPage(page int) error {
	for len(c.scrapHandles) <= page {
		handle, err := c.up.UploadRGBA(fmt.Sprintf("***scrap%d***", len(c.scrapHandles)),
			make([]byte, ScrapBlockWidth*ScrapBlockHeight*4), ScrapBlockWidth, ScrapBlockHeight, false)
		if err != nil {
			return err
		}
		c.scrapHandles = append(c.scrapHandles, handle)
	}
	if c.scrap.Dirty(page) {
		return c.up.UpdateRGBA(c.scrapHandles[page], 0, 0, ScrapBlockWidth, ScrapBlockHeight, c.scrap.Pixels(page))
	}
	return nil
}

// Sweep frees every image whose registration sequence is stale. UI pics are
// exempt: they are cheap, atlas-packed, and shared across maps. The
// placeholders are exempt as well.
func (c *Cache) Sweep() {
	for name, img := range c.images {
		if img.RegSeq == c.regSeq || img.Type == ImagePic || img == c.NoTexture {
			continue
		}
		if !img.Scrapped {
			c.up.Release(img.Handle)
		}
		delete(c.images, name)
	}
}

// Count reports live images, for the imagelist command and sweep tests.
func (c *Cache) Count() int { return len(c.images) }

// List returns "name type WxH" lines for the imagelist command.
func (c *Cache) List() []string {
	names := make([]string, 0, len(c.images))
	for name := range c.images {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		img := c.images[name]
		out = append(out, fmt.Sprintf("%-40s %s %dx%d", img.Name, typeName(img.Type), img.Width, img.Height))
	}
	return out
}

func typeName(t ImageType) string {
	switch t {
	case ImagePic:
		return "pic"
	case ImageSkin:
		return "skin"
	case ImageSprite:
		return "sprite"
	case ImageWall:
		return "wall"
	case ImageSky:
		return "sky"
	}
	return "?"
}

func scanAlpha(rgba []byte) bool {
	for i := 3; i < len(rgba); i += 4 {
		if rgba[i] != 255 {
			return true
		}
	}
	return false
}

// nearestPOT rounds to the nearest power of two, or down when requested.
func nearestPOT(v int, roundDown bool) int {
	if v < 1 {
		return 1
	}
	p := 1
	for p < v {
		p <<= 1
	}
	if p == v {
		return p
	}
	if roundDown || v-p/2 < p-v {
		return p / 2
	}
	return p
}

// resample is a point-sampled rescale; wall art is low-frequency enough that
// this matches the original pipeline's look.
func resample(src []byte, sw, sh, dw, dh int) []byte {
	out := make([]byte, dw*dh*4)
	for y := 0; y < dh; y++ {
		sy := y * sh / dh
		for x := 0; x < dw; x++ {
			sx := x * sw / dw
			copy(out[(y*dw+x)*4:], src[(sy*sw+sx)*4:(sy*sw+sx)*4+4])
		}
	}
	return out
}

func decodePNG(data []byte, path string) ([]byte, int, int, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, refresh.MalformedAsset(path, err.Error())
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*4)
	if rgba, ok := img.(*image.NRGBA); ok && rgba.Stride == w*4 {
		copy(out, rgba.Pix)
		return out, w, h, nil
	}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			out[i+0] = uint8(r >> 8)
			out[i+1] = uint8(g >> 8)
			out[i+2] = uint8(bl >> 8)
			out[i+3] = uint8(a >> 8)
			i += 4
		}
	}
	return out, w, h, nil
}

func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}

func checkerboard() []byte {
	pix := make([]byte, 16*16*4)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			i := (y*16 + x) * 4
			if (x/4+y/4)%2 == 0 {
				pix[i] = 255
			}
			pix[i+3] = 255
		}
	}
	return pix
}

func solidCyan() []byte {
	pix := make([]byte, 8*8*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i+1] = 255
		pix[i+2] = 255
		pix[i+3] = 255
	}
	return pix
}
