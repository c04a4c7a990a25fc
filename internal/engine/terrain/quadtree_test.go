package terrain

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func unitBounds(size float64) Bounds {
	return Bounds{Min: mgl64.Vec2{0, 0}, Max: mgl64.Vec2{size, size}}
}

func TestEdgeAdjacent(t *testing.T) {
	a := Bounds{Min: mgl64.Vec2{0, 0}, Max: mgl64.Vec2{1, 1}}

	tests := []struct {
		name string
		b    Bounds
		want bool
	}{
		{"east neighbor", Bounds{Min: mgl64.Vec2{1, 0}, Max: mgl64.Vec2{2, 1}}, true},
		{"north neighbor half overlap", Bounds{Min: mgl64.Vec2{0.5, 1}, Max: mgl64.Vec2{1.5, 2}}, true},
		{"diagonal corner touch", Bounds{Min: mgl64.Vec2{1, 1}, Max: mgl64.Vec2{2, 2}}, false},
		{"separated", Bounds{Min: mgl64.Vec2{2, 0}, Max: mgl64.Vec2{3, 1}}, false},
		{"edge-aligned but no overlap", Bounds{Min: mgl64.Vec2{1, 1.5}, Max: mgl64.Vec2{2, 2.5}}, false},
	}
	for _, tt := range tests {
		if got := a.EdgeAdjacent(tt.b); got != tt.want {
			t.Errorf("%s: EdgeAdjacent = %v, want %v", tt.name, got, tt.want)
		}
		if got := tt.b.EdgeAdjacent(a); got != tt.want {
			t.Errorf("%s (reversed): EdgeAdjacent = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// checkPartition verifies that every non-leaf's children exactly quadrisect
// its bounds and that no leaf exceeds maxDepth.
func checkPartition(t *testing.T, n *Node, maxDepth int) {
	t.Helper()

	if n.Level > maxDepth {
		t.Errorf("node at level %d exceeds max depth %d", n.Level, maxDepth)
	}
	if n.IsLeaf() {
		return
	}

	mid := n.Bounds.Center()
	want := [4]Bounds{
		{Min: n.Bounds.Min, Max: mid},
		{Min: mgl64.Vec2{mid.X(), n.Bounds.Min.Y()}, Max: mgl64.Vec2{n.Bounds.Max.X(), mid.Y()}},
		{Min: mgl64.Vec2{n.Bounds.Min.X(), mid.Y()}, Max: mgl64.Vec2{mid.X(), n.Bounds.Max.Y()}},
		{Min: mid, Max: n.Bounds.Max},
	}
	union := n.Children[0].Bounds
	for i, c := range n.Children {
		if c == nil {
			t.Fatalf("non-leaf at level %d has %d children", n.Level, i)
		}
		if c.Level != n.Level+1 {
			t.Errorf("child level %d, want %d", c.Level, n.Level+1)
		}
		if c.Bounds != want[i] {
			t.Errorf("child %d bounds %+v, want %+v", i, c.Bounds, want[i])
		}
		union = union.Union(c.Bounds)
		checkPartition(t, c, maxDepth)
	}
	if union != n.Bounds {
		t.Errorf("children union %+v does not cover parent %+v", union, n.Bounds)
	}
}

func TestSubdivisionPartition(t *testing.T) {
	tree := NewQuadTree(unitBounds(1024), 5, DefaultProximityFactor, nil)
	tree.Insert(mgl64.Vec2{300, 700})
	checkPartition(t, tree.Root(), 5)
}

func TestBalanceInvariant(t *testing.T) {
	viewpoints := []mgl64.Vec2{
		{1, 1}, {512, 512}, {1023, 1}, {700, 300}, {128.5, 900.25},
	}
	tree := NewQuadTree(unitBounds(1024), 7, DefaultProximityFactor, nil)

	for _, vp := range viewpoints {
		tree.Insert(vp)
		leaves := tree.Leaves()
		for i := 0; i < len(leaves); i++ {
			for j := i + 1; j < len(leaves); j++ {
				a, b := leaves[i], leaves[j]
				if !a.Bounds.EdgeAdjacent(b.Bounds) {
					continue
				}
				diff := a.Level - b.Level
				if diff < 0 {
					diff = -diff
				}
				if diff > 1 {
					t.Errorf("viewpoint %v: adjacent leaves at levels %d and %d",
						vp, a.Level, b.Level)
				}
			}
		}
	}
}

// TestViewpointScenario drives the documented end-to-end case: a 2x2 world,
// max depth 2 and a viewpoint inside the SW quadrant. Only the SW quadrant
// reaches level 2; its leaves facing the coarser level-1 neighbors stitch,
// the coarser side never does.
func TestViewpointScenario(t *testing.T) {
	tree := NewQuadTree(unitBounds(2), 2, 0.5, nil)
	tree.Insert(mgl64.Vec2{0.6, 0.6})

	leaves := tree.Leaves()
	if len(leaves) != 7 {
		t.Fatalf("%d leaves, want 7", len(leaves))
	}

	byLevel := map[int]int{}
	for _, n := range leaves {
		byLevel[n.Level]++
	}
	if byLevel[1] != 3 || byLevel[2] != 4 {
		t.Fatalf("leaf levels %v, want 3 at level 1 and 4 at level 2", byLevel)
	}

	wantMasks := map[TileKey]StitchMask{
		{Level: 2, X: 0.25, Y: 0.25}: 0,                         // interior corner of the fine cluster
		{Level: 2, X: 0.75, Y: 0.25}: StitchEast,                // coarser neighbor across x=1
		{Level: 2, X: 0.25, Y: 0.75}: StitchNorth,               // coarser neighbor across y=1
		{Level: 2, X: 0.75, Y: 0.75}: StitchNorth | StitchEast,  // both
		{Level: 1, X: 1.5, Y: 0.5}:   0,                         // coarser side owns no stitching
		{Level: 1, X: 0.5, Y: 1.5}:   0,
		{Level: 1, X: 1.5, Y: 1.5}:   0,
	}
	for _, n := range leaves {
		want, ok := wantMasks[n.Key()]
		if !ok {
			t.Errorf("unexpected leaf %+v", n.Key())
			continue
		}
		if n.Stitch != want {
			t.Errorf("leaf %+v mask %s, want %s", n.Key(), n.Stitch, want)
		}
	}
}

func TestFarViewpointCollapsesToRoot(t *testing.T) {
	tree := NewQuadTree(unitBounds(1024), 6, DefaultProximityFactor, nil)

	tree.Insert(mgl64.Vec2{512, 512})
	if len(tree.Leaves()) == 1 {
		t.Fatal("expected centered viewpoint to subdivide the tree")
	}

	tree.Insert(mgl64.Vec2{1e9, 1e9})
	leaves := tree.Leaves()
	if len(leaves) != 1 {
		t.Fatalf("%d leaves after moving far away, want 1", len(leaves))
	}
	if leaves[0] != tree.Root() || leaves[0].Level != 0 {
		t.Error("sole leaf is not the root")
	}
	if leaves[0].Stitch != 0 {
		t.Errorf("root stitch mask %s, want none", leaves[0].Stitch)
	}
}

func TestKeysStableAcrossRebuilds(t *testing.T) {
	tree := NewQuadTree(unitBounds(1000), 6, DefaultProximityFactor, nil)
	vp := mgl64.Vec2{333.3, 666.6}

	tree.Insert(vp)
	first := map[TileKey]StitchMask{}
	for _, l := range tree.Snapshot() {
		first[l.Key] = l.Mask
	}

	tree.Insert(mgl64.Vec2{10, 10})
	tree.Insert(vp)

	second := map[TileKey]StitchMask{}
	for _, l := range tree.Snapshot() {
		second[l.Key] = l.Mask
	}

	if len(first) != len(second) {
		t.Fatalf("leaf count changed across rebuilds: %d vs %d", len(first), len(second))
	}
	for k, m := range first {
		if got, ok := second[k]; !ok {
			t.Errorf("key %+v missing after rebuild", k)
		} else if got != m {
			t.Errorf("key %+v mask %s, want %s", k, got, m)
		}
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	tree := NewQuadTree(unitBounds(8), 3, DefaultProximityFactor, nil)
	tree.Insert(mgl64.Vec2{1, 1})

	snap := tree.Snapshot()
	tree.Insert(mgl64.Vec2{1e9, 1e9})

	// The old snapshot must keep describing the old leaf set.
	if len(snap) < 2 {
		t.Fatalf("%d leaves in snapshot, want several", len(snap))
	}
	for _, l := range snap {
		if !l.Bounds.Valid() {
			t.Errorf("snapshot leaf %+v has invalid bounds", l.Key)
		}
	}
}
