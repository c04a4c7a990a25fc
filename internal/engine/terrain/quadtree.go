package terrain

import (
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// DefaultProximityFactor is the subdivision distance factor K: a node splits
// while the viewpoint is closer than K times its edge length.
const DefaultProximityFactor = 2.0

// maxBalancePasses bounds the balancing fixed-point loop. Each pass splits at
// least one node, so the loop terminates well before this in practice; the
// cap only exists so a broken adjacency test cannot hang the worker.
const maxBalancePasses = 64

// Node is a quadtree node. A node has either no children or exactly four,
// which quadrisect its bounds exactly.
type Node struct {
	Level    int
	Bounds   Bounds
	Children [4]*Node
	Stitch   StitchMask
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.Children[0] == nil }

// Center returns the node's world-space center.
func (n *Node) Center() mgl64.Vec2 { return n.Bounds.Center() }

// Size returns the node's world-space extent.
func (n *Node) Size() mgl64.Vec2 { return n.Bounds.Size() }

// Key returns the node's tile identity.
func (n *Node) Key() TileKey { return KeyFor(n.Level, n.Center()) }

// split populates the node's four children, one per quadrant. Child order is
// SW, SE, NW, NE.
func (n *Node) split() {
	min, max := n.Bounds.Min, n.Bounds.Max
	mid := n.Bounds.Center()

	quadrants := [4]Bounds{
		{Min: min, Max: mid},
		{Min: mgl64.Vec2{mid.X(), min.Y()}, Max: mgl64.Vec2{max.X(), mid.Y()}},
		{Min: mgl64.Vec2{min.X(), mid.Y()}, Max: mgl64.Vec2{mid.X(), max.Y()}},
		{Min: mid, Max: max},
	}
	for i, q := range quadrants {
		n.Children[i] = &Node{Level: n.Level + 1, Bounds: q}
	}
}

// LeafSnapshot is an immutable copy of one leaf, safe to hand across the
// worker boundary.
type LeafSnapshot struct {
	Key    TileKey
	Level  int
	Bounds Bounds
	Mask   StitchMask
}

// QuadTree subdivides a world rectangle toward a viewpoint, balances the
// result so edge-adjacent leaves never differ by more than one level, and
// tags every leaf with the stitch mask describing which of its edges touch a
// coarser neighbor.
type QuadTree struct {
	root      *Node
	maxDepth  int
	proximity float64
	log       *zap.Logger
}

// NewQuadTree creates a tree over the given bounds. proximity values <= 0
// fall back to DefaultProximityFactor. A nil logger disables logging.
func NewQuadTree(bounds Bounds, maxDepth int, proximity float64, log *zap.Logger) *QuadTree {
	if proximity <= 0 {
		proximity = DefaultProximityFactor
	}
	if maxDepth < 0 {
		maxDepth = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &QuadTree{
		root:      &Node{Level: 0, Bounds: bounds},
		maxDepth:  maxDepth,
		proximity: proximity,
		log:       log,
	}
}

// Root returns the root node.
func (t *QuadTree) Root() *Node { return t.root }

// Insert rebuilds the tree for a viewpoint: clears all children below the
// root, subdivides toward the viewpoint, balances to a fixed point and
// recomputes per-leaf stitch masks. A full rebuild per query is deliberate;
// subdivision is cheap next to tile construction.
func (t *QuadTree) Insert(viewpoint mgl64.Vec2) {
	t.root.Children = [4]*Node{}
	t.root.Stitch = 0

	t.subdivide(t.root, viewpoint)
	t.balance()
	t.computeStitching()
}

// Leaves returns the current leaves in depth-first order.
func (t *QuadTree) Leaves() []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(n *Node) {
		if n.IsLeaf() {
			out = append(out, n)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.root)
	return out
}

// Snapshot returns an immutable copy of the current leaf set.
func (t *QuadTree) Snapshot() []LeafSnapshot {
	leaves := t.Leaves()
	out := make([]LeafSnapshot, len(leaves))
	for i, n := range leaves {
		out[i] = LeafSnapshot{
			Key:    n.Key(),
			Level:  n.Level,
			Bounds: n.Bounds,
			Mask:   n.Stitch,
		}
	}
	return out
}

func (t *QuadTree) subdivide(n *Node, viewpoint mgl64.Vec2) {
	if n.Level >= t.maxDepth {
		return
	}
	dist := n.Center().Sub(viewpoint).Len()
	if dist >= n.Size().X()*t.proximity {
		return
	}
	n.split()
	for _, c := range n.Children {
		t.subdivide(c, viewpoint)
	}
}

// balance repeatedly splits the coarser of any edge-adjacent leaf pair whose
// levels differ by more than one, until a full scan produces no split.
func (t *QuadTree) balance() {
	for pass := 0; pass < maxBalancePasses; pass++ {
		leaves := t.Leaves()
		split := false

		for i := 0; i < len(leaves) && !split; i++ {
			for j := i + 1; j < len(leaves); j++ {
				a, b := leaves[i], leaves[j]
				diff := a.Level - b.Level
				if diff < 0 {
					diff = -diff
				}
				if diff <= 1 || !a.Bounds.EdgeAdjacent(b.Bounds) {
					continue
				}
				coarser := a
				if b.Level < a.Level {
					coarser = b
				}
				if coarser.Level < t.maxDepth {
					coarser.split()
					split = true
					break
				}
			}
		}
		if !split {
			return
		}
	}
	t.log.Error("quadtree balancing did not converge",
		zap.Int("max_passes", maxBalancePasses),
		zap.Int("max_depth", t.maxDepth),
	)
}

// computeStitching sets each leaf's mask from geometric adjacency: one bit
// per edge shared with a strictly coarser leaf. Under the balancing invariant
// at most two adjacent edges can be flagged; anything else is logged and
// degraded to full resolution rather than crashing the tick.
func (t *QuadTree) computeStitching() {
	leaves := t.Leaves()
	for _, leaf := range leaves {
		var mask StitchMask
		for _, other := range leaves {
			if other == leaf || other.Level >= leaf.Level {
				continue
			}
			if !leaf.Bounds.EdgeAdjacent(other.Bounds) {
				continue
			}
			if edge, ok := leaf.Bounds.sharedEdge(other.Bounds); ok {
				mask |= edge
			}
		}
		if _, ok := ModeFromMask(mask); !ok {
			t.log.Warn("leaf stitch mask has no triangulation, degrading to full",
				zap.Stringer("mask", mask),
				zap.Int("level", leaf.Level),
				zap.Float64("center_x", leaf.Center().X()),
				zap.Float64("center_y", leaf.Center().Y()),
			)
			mask = 0
		}
		leaf.Stitch = mask
	}
}
