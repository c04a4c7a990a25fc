package tiles

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
)

// testManifest builds a 3-level manifest over a 2x2-unit world: one root
// tile, four level-1 quadrants, sixteen level-2 tiles.
func testManifest(t *testing.T) []byte {
	t.Helper()

	m := manifest{MinElevation: 200, MaxElevation: 4500}
	for level := 0; level <= 2; level++ {
		n := 1 << level // tiles per axis
		size := 2.0 / float64(n)
		lvl := manifestLevel{Level: level}
		for ty := 0; ty < n; ty++ {
			for tx := 0; tx < n; tx++ {
				minX, minY := float64(tx)*size, float64(ty)*size
				lvl.Tiles = append(lvl.Tiles, manifestTile{
					Image:     fmt.Sprintf("img/level_%d/tiles/tile_%03d_%03d.png", level, ty, tx),
					Heightmap: fmt.Sprintf("dem/level_%d/tiles/tile_%03d_%03d.png", level, ty, tx),
					BBox:      [4]float64{minX, minY, minX + size, minY + size},
				})
			}
		}
		m.Levels = append(m.Levels, lvl)
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	return data
}

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := ParseCatalog(testManifest(t))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	return c
}

func encodeTestPNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// fakeLoader serves generated tile images, counts loads per path and can be
// told to fail or block.
type fakeLoader struct {
	t *testing.T

	mu    sync.Mutex
	calls map[string]int
	fail  map[string]int // remaining failures per path

	gate chan struct{} // if set, Load blocks until the gate closes
}

func newFakeLoader(t *testing.T) *fakeLoader {
	return &fakeLoader{
		t:     t,
		calls: map[string]int{},
		fail:  map[string]int{},
	}
}

func (l *fakeLoader) failNext(path string, times int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fail[path] = times
}

func (l *fakeLoader) callCount(path string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[path]
}

func (l *fakeLoader) Load(path string) ([]byte, error) {
	l.mu.Lock()
	l.calls[path]++
	remaining := l.fail[path]
	if remaining > 0 {
		l.fail[path] = remaining - 1
	}
	gate := l.gate
	l.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if remaining > 0 {
		return nil, fmt.Errorf("injected load failure for %s", path)
	}

	if len(path) > 3 && path[:3] == "dem" {
		img := image.NewGray16(image.Rect(0, 0, 4, 4))
		img.SetGray16(1, 1, color.Gray16{Y: 0x8000})
		return encodeTestPNG(l.t, img), nil
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(0, 0, color.RGBA{R: 200, G: 180, B: 160, A: 255})
	return encodeTestPNG(l.t, img), nil
}

// fakeScene records renderable add/remove events.
type fakeScene struct {
	mu      sync.Mutex
	added   []*Tile
	removed []*Tile
}

func (s *fakeScene) AddRenderable(t *Tile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, t)
}

func (s *fakeScene) RemoveRenderable(t *Tile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, t)
}

func (s *fakeScene) addCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.added)
}

func (s *fakeScene) removeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.removed)
}
