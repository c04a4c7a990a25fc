package tiles

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/alpenglow/internal/engine/terrain"
	"github.com/Faultbox/alpenglow/internal/engine/texture"
)

// Manager builds renderable tiles from quadtree leaves: resolves catalog
// metadata, acquires both shared textures and picks the shared grid geometry
// for the leaf's stitch mask.
type Manager struct {
	catalog  *Catalog
	textures *TextureCache
	geometry *terrain.GeometryFactory
	log      *zap.Logger
}

// NewManager wires a manager from its explicitly owned dependencies.
func NewManager(catalog *Catalog, textures *TextureCache, geometry *terrain.GeometryFactory, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		catalog:  catalog,
		textures: textures,
		geometry: geometry,
		log:      log,
	}
}

// Catalog returns the tile metadata catalog.
func (m *Manager) Catalog() *Catalog { return m.catalog }

// Geometry returns the shared geometry factory.
func (m *Manager) Geometry() *terrain.GeometryFactory { return m.geometry }

// Request builds the tile for a leaf. It blocks on texture I/O and is meant
// to run off the render thread. A missing catalog entry surfaces as
// ErrMetadataMissing; a failed texture load fails the whole tile so the
// caller never inserts a half-built entry.
func (m *Manager) Request(ctx context.Context, leaf terrain.LeafSnapshot) (*Tile, error) {
	md, err := m.catalog.Lookup(leaf.Level, leaf.Bounds.Center())
	if err != nil {
		return nil, err
	}

	color, err := m.textures.Get(ctx, md.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("color texture for %s: %w", md.ImagePath, err)
	}
	height, err := m.textures.Get(ctx, md.HeightmapPath)
	if err != nil {
		return nil, fmt.Errorf("height texture for %s: %w", md.HeightmapPath, err)
	}

	mode, ok := terrain.ModeFromMask(leaf.Mask)
	if !ok {
		m.log.Warn("leaf mask has no stitch mode, building full-resolution tile",
			zap.Stringer("mask", leaf.Mask), zap.Int("level", leaf.Level))
	}

	t := &Tile{
		Key:          leaf.Key,
		Level:        leaf.Level,
		Bounds:       md.Bounds,
		Geometry:     m.geometry.GeometryFor(mode),
		Color:        color,
		Height:       height,
		Heights:      texture.NewHeightField(height.Image),
		MinElevation: md.MinElevation,
		MaxElevation: md.MaxElevation,
		Visible:      true,
		mask:         leaf.Mask,
	}
	return t, nil
}
