// Package terrain implements the adaptive tiling core: a depth-bounded
// quadtree that decides which tiles exist at which level of detail around a
// viewpoint, and a geometry factory that triangulates tiles so that borders
// between different LODs stay crack-free.
package terrain

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Bounds is an axis-aligned rectangle in world space.
// World coordinates are float64; projected CRS coordinates (LV95 meters are
// in the millions) do not survive float32.
type Bounds struct {
	Min mgl64.Vec2
	Max mgl64.Vec2
}

// Center returns the midpoint of the rectangle.
func (b Bounds) Center() mgl64.Vec2 {
	return mgl64.Vec2{(b.Min.X() + b.Max.X()) / 2, (b.Min.Y() + b.Max.Y()) / 2}
}

// Size returns the extent along each axis.
func (b Bounds) Size() mgl64.Vec2 {
	return mgl64.Vec2{b.Max.X() - b.Min.X(), b.Max.Y() - b.Min.Y()}
}

// Contains reports whether p lies inside the rectangle (min-inclusive).
func (b Bounds) Contains(p mgl64.Vec2) bool {
	return p.X() >= b.Min.X() && p.X() < b.Max.X() &&
		p.Y() >= b.Min.Y() && p.Y() < b.Max.Y()
}

// Valid reports whether the rectangle has positive extent on both axes.
func (b Bounds) Valid() bool {
	return b.Min.X() < b.Max.X() && b.Min.Y() < b.Max.Y()
}

// Union returns the smallest rectangle covering both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{
		Min: mgl64.Vec2{math.Min(b.Min.X(), o.Min.X()), math.Min(b.Min.Y(), o.Min.Y())},
		Max: mgl64.Vec2{math.Max(b.Max.X(), o.Max.X()), math.Max(b.Max.Y(), o.Max.Y())},
	}
}

// edgeEps returns the tolerance used when comparing boundary coordinates of
// two rectangles. Quadrant splits are exact midpoints, but the coordinate of
// a shared edge can be derived along different division paths and disagree in
// the last few ulps.
func edgeEps(a, b Bounds) float64 {
	s := math.Min(
		math.Min(a.Size().X(), a.Size().Y()),
		math.Min(b.Size().X(), b.Size().Y()),
	)
	return s * 1e-9
}

// EdgeAdjacent reports whether the two rectangles share a positive-length
// vertical or horizontal boundary segment. Touching at a single point
// (diagonal corners) is not adjacency.
func (b Bounds) EdgeAdjacent(o Bounds) bool {
	eps := edgeEps(b, o)

	overlapX := math.Min(b.Max.X(), o.Max.X()) - math.Max(b.Min.X(), o.Min.X())
	overlapY := math.Min(b.Max.Y(), o.Max.Y()) - math.Max(b.Min.Y(), o.Min.Y())

	if math.Abs(b.Max.X()-o.Min.X()) <= eps || math.Abs(b.Min.X()-o.Max.X()) <= eps {
		return overlapY > eps
	}
	if math.Abs(b.Max.Y()-o.Min.Y()) <= eps || math.Abs(b.Min.Y()-o.Max.Y()) <= eps {
		return overlapX > eps
	}
	return false
}

// sharedEdge returns which of b's edges touches o, assuming the rectangles
// are edge-adjacent. North is +Y, East is +X.
func (b Bounds) sharedEdge(o Bounds) (StitchMask, bool) {
	eps := edgeEps(b, o)

	overlapX := math.Min(b.Max.X(), o.Max.X()) - math.Max(b.Min.X(), o.Min.X())
	overlapY := math.Min(b.Max.Y(), o.Max.Y()) - math.Max(b.Min.Y(), o.Min.Y())

	switch {
	case math.Abs(b.Max.X()-o.Min.X()) <= eps && overlapY > eps:
		return StitchEast, true
	case math.Abs(b.Min.X()-o.Max.X()) <= eps && overlapY > eps:
		return StitchWest, true
	case math.Abs(b.Max.Y()-o.Min.Y()) <= eps && overlapX > eps:
		return StitchNorth, true
	case math.Abs(b.Min.Y()-o.Max.Y()) <= eps && overlapX > eps:
		return StitchSouth, true
	}
	return 0, false
}

// TileKey identifies a tile by LOD level and world-space center.
// Centers are exact quadrant midpoints of the same root rectangle, so float
// equality is stable across rebuilds.
type TileKey struct {
	Level int
	X, Y  float64
}

// KeyFor builds the key for a (level, center) pair.
func KeyFor(level int, center mgl64.Vec2) TileKey {
	return TileKey{Level: level, X: center.X(), Y: center.Y()}
}
