package tiles

import (
	"github.com/Faultbox/alpenglow/internal/engine/terrain"
	"github.com/Faultbox/alpenglow/internal/engine/texture"
)

// Toggles is the live per-tile tweak state applied by the orchestrator each
// tick.
type Toggles struct {
	Wireframe  bool
	ShowBounds bool
	TintByMode bool // color tiles by stitch mode for debugging
}

// Tile is one renderable terrain tile built from a quadtree leaf. It shares
// its grid geometry with every tile using the same stitch mode and its
// textures with every tile referencing the same paths; geometry is swapped,
// never mutated, when the stitch mask changes.
type Tile struct {
	Key    terrain.TileKey
	Level  int
	Bounds terrain.Bounds

	// Shared resources. Geometry is owned by the factory, textures by the
	// texture cache.
	Geometry *terrain.GridGeometry
	Color    *Texture
	Height   *Texture
	Heights  *texture.HeightField

	// Elevation displacement: world height = MinElevation + sample*range.
	MinElevation float64
	MaxElevation float64

	Visible bool
	Toggles Toggles

	mask     terrain.StitchMask
	disposed bool
}

// StitchMask returns the tile's current edge mask.
func (t *Tile) StitchMask() terrain.StitchMask { return t.mask }

// SetStitchMask updates the mask and swaps in the shared geometry for the
// new mode. Reports whether the geometry instance changed.
func (t *Tile) SetStitchMask(mask terrain.StitchMask, factory *terrain.GeometryFactory) bool {
	t.mask = mask
	g := factory.GeometryForMask(mask)
	if g == t.Geometry {
		return false
	}
	t.Geometry = g
	return true
}

// Disposed reports whether Dispose has been called.
func (t *Tile) Disposed() bool { return t.disposed }

// Dispose releases the tile's references. Shared textures stay in the cache
// and shared geometry stays in the factory; only this tile's handles are
// dropped. Safe to call repeatedly.
func (t *Tile) Dispose() {
	if t.disposed {
		return
	}
	t.disposed = true
	t.Visible = false
	t.Geometry = nil
	t.Color = nil
	t.Height = nil
	t.Heights = nil
}
