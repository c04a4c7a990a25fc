// Package tiles turns quadtree leaves into loaded, cached and disposed
// renderable terrain tiles: metadata catalog, coalescing texture cache, tile
// construction and the per-frame orchestrator.
package tiles

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/multierr"

	"github.com/Faultbox/alpenglow/internal/engine/terrain"
)

// ErrMetadataMissing is returned when no catalog entry exists for a
// requested (level, center). The condition is non-fatal: the orchestrator
// skips the leaf for one tick and retries on the next snapshot.
var ErrMetadataMissing = errors.New("no tile metadata for node")

// TileMetadata is one immutable catalog record.
type TileMetadata struct {
	Level         int
	ImagePath     string
	HeightmapPath string
	Bounds        terrain.Bounds
	MinElevation  float64
	MaxElevation  float64
}

// manifest mirrors the JSON document written by the bake pipeline. Level 0
// in the manifest is the coarsest (single-tile) level, matching the
// quadtree's root level.
type manifest struct {
	MinElevation float64         `json:"minElevation"`
	MaxElevation float64         `json:"maxElevation"`
	Levels       []manifestLevel `json:"levels"`
}

type manifestLevel struct {
	Level int            `json:"level"`
	Tiles []manifestTile `json:"tiles"`
}

type manifestTile struct {
	Image     string     `json:"image"`
	Heightmap string     `json:"heightmap"`
	BBox      [4]float64 `json:"bbox"` // minx, miny, maxx, maxy
}

// Catalog is the static, pre-baked lookup from (LOD level, tile center) to
// tile metadata. Populated once at startup, read-only afterwards.
type Catalog struct {
	byLevel map[int][]TileMetadata
	bounds  terrain.Bounds
	minElev float64
	maxElev float64
	levels  int
}

// ParseCatalog parses the bake manifest. Malformed tiles are collected into
// a single aggregated error rather than failing on the first.
func ParseCatalog(data []byte) (*Catalog, error) {
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing tile manifest: %w", err)
	}
	if len(m.Levels) == 0 {
		return nil, errors.New("tile manifest has no levels")
	}
	if m.MinElevation >= m.MaxElevation {
		return nil, fmt.Errorf("invalid elevation range [%f, %f]",
			m.MinElevation, m.MaxElevation)
	}

	c := &Catalog{
		byLevel: make(map[int][]TileMetadata, len(m.Levels)),
		minElev: m.MinElevation,
		maxElev: m.MaxElevation,
	}

	var errs error
	first := true
	for _, lvl := range m.Levels {
		if lvl.Level < 0 {
			errs = multierr.Append(errs, fmt.Errorf("negative level %d", lvl.Level))
			continue
		}
		for i, mt := range lvl.Tiles {
			b := terrain.Bounds{
				Min: mgl64.Vec2{mt.BBox[0], mt.BBox[1]},
				Max: mgl64.Vec2{mt.BBox[2], mt.BBox[3]},
			}
			if !b.Valid() {
				errs = multierr.Append(errs,
					fmt.Errorf("level %d tile %d: invalid bbox %v", lvl.Level, i, mt.BBox))
				continue
			}
			if mt.Image == "" || mt.Heightmap == "" {
				errs = multierr.Append(errs,
					fmt.Errorf("level %d tile %d: missing image paths", lvl.Level, i))
				continue
			}
			c.byLevel[lvl.Level] = append(c.byLevel[lvl.Level], TileMetadata{
				Level:         lvl.Level,
				ImagePath:     mt.Image,
				HeightmapPath: mt.Heightmap,
				Bounds:        b,
				MinElevation:  m.MinElevation,
				MaxElevation:  m.MaxElevation,
			})
			if lvl.Level == 0 {
				if first {
					c.bounds = b
					first = false
				} else {
					c.bounds = c.bounds.Union(b)
				}
			}
			if lvl.Level+1 > c.levels {
				c.levels = lvl.Level + 1
			}
		}
	}
	if errs != nil {
		return nil, fmt.Errorf("tile manifest validation: %w", errs)
	}
	if len(c.byLevel[0]) == 0 {
		return nil, errors.New("tile manifest has no level 0 tiles")
	}
	return c, nil
}

// Lookup finds the metadata record whose bounds contain the center at the
// given level. Returns ErrMetadataMissing when no record matches.
func (c *Catalog) Lookup(level int, center mgl64.Vec2) (TileMetadata, error) {
	for _, md := range c.byLevel[level] {
		if md.Bounds.Contains(center) {
			return md, nil
		}
	}
	return TileMetadata{}, fmt.Errorf("level %d center (%f, %f): %w",
		level, center.X(), center.Y(), ErrMetadataMissing)
}

// Bounds returns the world extent of the terrain (union of level 0 tiles).
func (c *Catalog) Bounds() terrain.Bounds { return c.bounds }

// ElevationRange returns the global min and max elevation in meters.
func (c *Catalog) ElevationRange() (min, max float64) { return c.minElev, c.maxElev }

// Levels returns the number of LOD levels in the catalog.
func (c *Catalog) Levels() int { return c.levels }

// TileCount returns the number of tiles at a level.
func (c *Catalog) TileCount(level int) int { return len(c.byLevel[level]) }
