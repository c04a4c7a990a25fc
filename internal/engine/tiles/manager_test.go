package tiles

import (
	"context"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/alpenglow/internal/engine/terrain"
)

func newTestManager(t *testing.T, loader *fakeLoader) *Manager {
	t.Helper()
	return NewManager(
		newTestCatalog(t),
		NewTextureCache(loader),
		terrain.NewGeometryFactory(4),
		nil,
	)
}

func leafAt(level int, center mgl64.Vec2, size float64, mask terrain.StitchMask) terrain.LeafSnapshot {
	half := size / 2
	b := terrain.Bounds{
		Min: mgl64.Vec2{center.X() - half, center.Y() - half},
		Max: mgl64.Vec2{center.X() + half, center.Y() + half},
	}
	return terrain.LeafSnapshot{
		Key:    terrain.KeyFor(level, center),
		Level:  level,
		Bounds: b,
		Mask:   mask,
	}
}

func TestManagerRequest(t *testing.T) {
	m := newTestManager(t, newFakeLoader(t))

	leaf := leafAt(1, mgl64.Vec2{0.5, 0.5}, 1, terrain.StitchNorth)
	tile, err := m.Request(context.Background(), leaf)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	if tile.Key != leaf.Key {
		t.Errorf("tile key %+v, want %+v", tile.Key, leaf.Key)
	}
	if tile.StitchMask() != terrain.StitchNorth {
		t.Errorf("tile mask %s, want N", tile.StitchMask())
	}
	if tile.Geometry == nil || tile.Geometry.Mode != terrain.ModeNorth {
		t.Errorf("tile geometry mode %v, want north", tile.Geometry)
	}
	if tile.Color == nil || tile.Height == nil || tile.Heights == nil {
		t.Error("tile missing shared textures or height field")
	}
	if tile.MinElevation != 200 || tile.MaxElevation != 4500 {
		t.Errorf("tile elevation (%f, %f), want (200, 4500)", tile.MinElevation, tile.MaxElevation)
	}
	if !tile.Visible {
		t.Error("freshly built tile should be visible")
	}
}

func TestManagerRequestMetadataMissing(t *testing.T) {
	m := newTestManager(t, newFakeLoader(t))

	leaf := leafAt(1, mgl64.Vec2{9, 9}, 1, 0)
	_, err := m.Request(context.Background(), leaf)
	if !errors.Is(err, ErrMetadataMissing) {
		t.Errorf("err = %v, want ErrMetadataMissing", err)
	}
}

func TestManagerRequestTextureFailure(t *testing.T) {
	loader := newFakeLoader(t)
	m := newTestManager(t, loader)

	leaf := leafAt(1, mgl64.Vec2{0.5, 0.5}, 1, 0)
	md, err := m.Catalog().Lookup(1, leaf.Bounds.Center())
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	loader.failNext(md.HeightmapPath, 1)
	tile, err := m.Request(context.Background(), leaf)
	if err == nil {
		t.Fatal("expected texture failure to fail the tile")
	}
	if tile != nil {
		t.Error("failed request must not return a dangling tile")
	}

	// The failure was evicted from the cache; the same request succeeds now.
	if _, err := m.Request(context.Background(), leaf); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestTileDisposeIdempotent(t *testing.T) {
	m := newTestManager(t, newFakeLoader(t))
	tile, err := m.Request(context.Background(), leafAt(0, mgl64.Vec2{1, 1}, 2, 0))
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	tile.Dispose()
	if !tile.Disposed() || tile.Geometry != nil || tile.Color != nil {
		t.Error("dispose did not release tile references")
	}
	tile.Dispose() // second call is a no-op
	if !tile.Disposed() {
		t.Error("tile no longer disposed after second Dispose")
	}
}

func TestTileSetStitchMaskSwapsGeometry(t *testing.T) {
	factory := terrain.NewGeometryFactory(4)
	m := NewManager(newTestCatalog(t), NewTextureCache(newFakeLoader(t)), factory, nil)

	tile, err := m.Request(context.Background(), leafAt(1, mgl64.Vec2{0.5, 0.5}, 1, 0))
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	full := tile.Geometry

	if changed := tile.SetStitchMask(terrain.StitchEast, factory); !changed {
		t.Error("mask change to east should swap geometry")
	}
	if tile.Geometry == full || tile.Geometry.Mode != terrain.ModeEast {
		t.Errorf("geometry mode %s, want east", tile.Geometry.Mode)
	}

	if changed := tile.SetStitchMask(terrain.StitchEast, factory); changed {
		t.Error("same mask should not swap geometry")
	}
}
