package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/gekko3d/refresh"
	"github.com/gekko3d/refresh/texture"
)

type Kind int

const (
	KindAlias Kind = iota
	KindSprite
	KindBrush
	KindPlaceholder
)

// Model is one cache entry; exactly one of Alias/Sprite is set for real
// assets, neither for inline brush models (which index the world's
// submodel table) nor the wireframe placeholder.
type Model struct {
	ID     string
	Name   string
	Kind   Kind
	Alias  *AliasModel
	Sprite *SpriteModel

	// BrushIndex is the world submodel slot for inline "*N" models.
	BrushIndex int

	// Skins resolved through the image cache, parallel to the asset's skin
	// name list.
	Skins []*texture.Image

	RegSeq int
}

// Cache loads and holds alias and sprite models, sharing the registration
// sequence discipline with the image cache.
type Cache struct {
	log    refresh.Logger
	loader refresh.FileLoader
	images *texture.Cache

	models map[string]*Model
	regSeq int

	// NoModel is the wireframe-cube stand-in for anything that failed to load.
	NoModel *Model
}

func NewCache(log refresh.Logger, loader refresh.FileLoader, images *texture.Cache) *Cache {
	return &Cache{
		log:    log,
		loader: loader,
		images: images,
		models: make(map[string]*Model),
		regSeq: 1,
		NoModel: &Model{
			ID:   uuid.NewString(),
			Name: "***nomodel***",
			Kind: KindPlaceholder,
		},
	}
}

func (c *Cache) BeginRegistration() {
	c.regSeq++
}

func (c *Cache) RegistrationSequence() int { return c.regSeq }

// Register resolves a model name, loading on first use. Failures return the
// placeholder together with the error; the caller logs one line and keeps
// going.
func (c *Cache) Register(name string) (*Model, error) {
	if m, ok := c.models[name]; ok {
		c.touch(m)
		return m, nil
	}

	// Inline models reference the loaded world's submodel table; there is
	// no file behind them.
	if strings.HasPrefix(name, "*") {
		idx, err := strconv.Atoi(name[1:])
		if err != nil || idx <= 0 {
			return c.NoModel, refresh.MalformedAsset(name, "bad inline model index")
		}
		m := &Model{ID: uuid.NewString(), Name: name, Kind: KindBrush, BrushIndex: idx}
		c.touch(m)
		c.models[name] = m
		return m, nil
	}

	data, err := c.loader(name)
	if err != nil {
		return c.NoModel, &refresh.AssetError{Path: name, Err: err}
	}

	m := &Model{ID: uuid.NewString(), Name: name}
	switch {
	case strings.HasSuffix(name, ".md2"):
		alias, err := LoadMD2(data, name)
		if err != nil {
			return c.NoModel, err
		}
		m.Kind = KindAlias
		m.Alias = alias
		for _, skin := range alias.Skins {
			img, err := c.images.Find(skin, texture.ImageSkin)
			if err != nil {
				c.log.Warnf("%s: skin %v", name, err)
			}
			m.Skins = append(m.Skins, img)
		}
	case strings.HasSuffix(name, ".sp2"):
		sprite, err := LoadSP2(data, name)
		if err != nil {
			return c.NoModel, err
		}
		m.Kind = KindSprite
		m.Sprite = sprite
		for _, f := range sprite.Frames {
			img, err := c.images.Find(f.Skin, texture.ImageSprite)
			if err != nil {
				c.log.Warnf("%s: sprite skin %v", name, err)
			}
			m.Skins = append(m.Skins, img)
		}
	default:
		return c.NoModel, refresh.MalformedAsset(name, "unknown model extension")
	}

	c.touch(m)
	c.models[name] = m
	return m, nil
}

func (c *Cache) touch(m *Model) {
	m.RegSeq = c.regSeq
	for _, skin := range m.Skins {
		skin.RegSeq = c.images.RegistrationSequence()
	}
}

// Sweep evicts models not touched in the current registration sequence.
func (c *Cache) Sweep() {
	for name, m := range c.models {
		if m.RegSeq != c.regSeq {
			delete(c.models, name)
		}
	}
}

func (c *Cache) Count() int { return len(c.models) }

// List returns "name kind frames" lines for the modellist command.
func (c *Cache) List() []string {
	names := make([]string, 0, len(c.models))
	for name := range c.models {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		m := c.models[name]
		switch m.Kind {
		case KindAlias:
			out = append(out, fmt.Sprintf("%-40s alias  %d frames", m.Name, len(m.Alias.Frames)))
		case KindSprite:
			out = append(out, fmt.Sprintf("%-40s sprite %d frames", m.Name, len(m.Sprite.Frames)))
		}
	}
	return out
}
