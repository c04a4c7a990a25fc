package terrain

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// StitchMask marks which edges of a tile border a coarser neighbor and thus
// need crack-avoiding triangulation. North is +Y, East is +X.
type StitchMask uint8

const (
	StitchNorth StitchMask = 1 << iota
	StitchEast
	StitchSouth
	StitchWest
)

// Has reports whether all bits of m are set.
func (s StitchMask) Has(m StitchMask) bool { return s&m == m }

// Count returns the number of flagged edges.
func (s StitchMask) Count() int {
	n := 0
	for b := StitchNorth; b <= StitchWest; b <<= 1 {
		if s&b != 0 {
			n++
		}
	}
	return n
}

func (s StitchMask) String() string {
	if s == 0 {
		return "none"
	}
	out := ""
	for _, e := range []struct {
		bit  StitchMask
		name string
	}{{StitchNorth, "N"}, {StitchEast, "E"}, {StitchSouth, "S"}, {StitchWest, "W"}} {
		if s&e.bit != 0 {
			out += e.name
		}
	}
	return out
}

// StitchMode is one of the nine canonical tile triangulations: full
// resolution, one collapsed edge, or two collapsed edges meeting at a corner.
type StitchMode uint8

const (
	ModeFull StitchMode = iota
	ModeNorth
	ModeEast
	ModeSouth
	ModeWest
	ModeNorthEast
	ModeNorthWest
	ModeSouthEast
	ModeSouthWest

	modeCount
)

var modeNames = [modeCount]string{
	"full", "north", "east", "south", "west",
	"northeast", "northwest", "southeast", "southwest",
}

func (m StitchMode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "invalid"
}

// Modes lists all nine stitch modes.
func Modes() []StitchMode {
	out := make([]StitchMode, 0, modeCount)
	for m := ModeFull; m < modeCount; m++ {
		out = append(out, m)
	}
	return out
}

// ModeFromMask maps an edge mask to its triangulation mode. Masks with
// opposite edges or more than two edges have no mode under the one-level
// balancing invariant; ok is false and the caller should degrade to ModeFull.
func ModeFromMask(mask StitchMask) (StitchMode, bool) {
	switch mask {
	case 0:
		return ModeFull, true
	case StitchNorth:
		return ModeNorth, true
	case StitchEast:
		return ModeEast, true
	case StitchSouth:
		return ModeSouth, true
	case StitchWest:
		return ModeWest, true
	case StitchNorth | StitchEast:
		return ModeNorthEast, true
	case StitchNorth | StitchWest:
		return ModeNorthWest, true
	case StitchSouth | StitchEast:
		return ModeSouthEast, true
	case StitchSouth | StitchWest:
		return ModeSouthWest, true
	}
	return ModeFull, false
}

// mask returns the edge bits implied by the mode.
func (m StitchMode) mask() StitchMask {
	switch m {
	case ModeNorth:
		return StitchNorth
	case ModeEast:
		return StitchEast
	case ModeSouth:
		return StitchSouth
	case ModeWest:
		return StitchWest
	case ModeNorthEast:
		return StitchNorth | StitchEast
	case ModeNorthWest:
		return StitchNorth | StitchWest
	case ModeSouthEast:
		return StitchSouth | StitchEast
	case ModeSouthWest:
		return StitchSouth | StitchWest
	}
	return 0
}

// GridGeometry is one shared, immutable tile triangulation. Positions and UVs
// span the unit square; elevation displacement happens at render time, so a
// single geometry serves every tile using its mode.
type GridGeometry struct {
	Mode      StitchMode
	Quads     int // logical quads per side
	Positions []mgl32.Vec2
	UVs       []mgl32.Vec2
	Indices   []uint32
}

// TriangleCount returns the number of triangles in the index buffer.
func (g *GridGeometry) TriangleCount() int { return len(g.Indices) / 3 }

// DefaultGridQuads is the default number of logical quads per tile side
// (16 quads, i.e. 33 logical vertices per axis).
const DefaultGridQuads = 16

// GeometryFactory builds and caches the nine stitch geometries over a fixed
// grid resolution. Geometries are built at most once per mode and shared by
// every tile using that mode.
type GeometryFactory struct {
	quads int

	mu    sync.Mutex
	cache map[StitchMode]*GridGeometry
}

// NewGeometryFactory creates a factory for the given logical grid resolution.
// quadsPerSide values below 2 fall back to DefaultGridQuads.
func NewGeometryFactory(quadsPerSide int) *GeometryFactory {
	if quadsPerSide < 2 {
		quadsPerSide = DefaultGridQuads
	}
	return &GeometryFactory{
		quads: quadsPerSide,
		cache: make(map[StitchMode]*GridGeometry, modeCount),
	}
}

// Quads returns the logical grid resolution the factory builds for.
func (f *GeometryFactory) Quads() int { return f.quads }

// GeometryFor returns the shared geometry for a mode, building it on first
// use. The returned geometry must not be mutated.
func (f *GeometryFactory) GeometryFor(mode StitchMode) *GridGeometry {
	if mode >= modeCount {
		mode = ModeFull
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if g, ok := f.cache[mode]; ok {
		return g
	}
	g := buildGridGeometry(f.quads, mode)
	f.cache[mode] = g
	return g
}

// GeometryForMask resolves a mask to its mode and returns the shared
// geometry. Unmappable masks degrade to full resolution.
func (f *GeometryFactory) GeometryForMask(mask StitchMask) *GridGeometry {
	mode, _ := ModeFromMask(mask)
	return f.GeometryFor(mode)
}

// buildGridGeometry triangulates the unit square for one stitch mode.
//
// The tile is a grid of q×q logical quads. Each quad is a 2×2 micro-grid on a
// (2q+1)² vertex lattice, giving it four corners, four half-edge midpoints and
// a center vertex. A full-resolution quad is a fan of 8 triangles around its
// center. A quad on a stitched edge drops the midpoint vertex on that side,
// merging two fine half-edges into the coarse neighbor's single edge (7
// triangles). The quad at a stitched corner drops both adjacent midpoints
// (6 triangles). Corner beats single edge beats full per quad.
func buildGridGeometry(q int, mode StitchMode) *GridGeometry {
	lattice := 2*q + 1
	mask := mode.mask()

	positions := make([]mgl32.Vec2, 0, lattice*lattice)
	uvs := make([]mgl32.Vec2, 0, lattice*lattice)
	for y := 0; y < lattice; y++ {
		for x := 0; x < lattice; x++ {
			u := float32(x) / float32(lattice-1)
			v := float32(y) / float32(lattice-1)
			positions = append(positions, mgl32.Vec2{u, v})
			uvs = append(uvs, mgl32.Vec2{u, v})
		}
	}

	vi := func(x, y int) uint32 { return uint32(y*lattice + x) }

	indices := make([]uint32, 0, q*q*8*3)
	for qy := 0; qy < q; qy++ {
		for qx := 0; qx < q; qx++ {
			cx, cy := 2*qx+1, 2*qy+1

			skipNorth := mask.Has(StitchNorth) && qy == q-1
			skipEast := mask.Has(StitchEast) && qx == q-1
			skipSouth := mask.Has(StitchSouth) && qy == 0
			skipWest := mask.Has(StitchWest) && qx == 0

			// Boundary ring, counter-clockwise from the SW corner.
			type ringVert struct {
				x, y int
				skip bool
			}
			ring := []ringVert{
				{cx - 1, cy - 1, false},     // SW corner
				{cx, cy - 1, skipSouth},     // S midpoint
				{cx + 1, cy - 1, false},     // SE corner
				{cx + 1, cy, skipEast},      // E midpoint
				{cx + 1, cy + 1, false},     // NE corner
				{cx, cy + 1, skipNorth},     // N midpoint
				{cx - 1, cy + 1, false},     // NW corner
				{cx - 1, cy, skipWest},      // W midpoint
			}

			kept := make([]ringVert, 0, 8)
			for _, rv := range ring {
				if !rv.skip {
					kept = append(kept, rv)
				}
			}

			center := vi(cx, cy)
			for i := range kept {
				a := kept[i]
				b := kept[(i+1)%len(kept)]
				indices = append(indices, center, vi(a.x, a.y), vi(b.x, b.y))
			}
		}
	}

	return &GridGeometry{
		Mode:      mode,
		Quads:     q,
		Positions: positions,
		UVs:       uvs,
		Indices:   indices,
	}
}
