package scene

import (
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/alpenglow/internal/engine/tiles"
)

// Scene holds the renderers and global render state for one frame. It is
// the orchestrator's scene consumer: tiles are added and removed on the
// render thread during Tick, so GPU uploads happen inline.
type Scene struct {
	log   *zap.Logger
	tiles *TileRenderer

	clearColor [3]float32
}

// New creates the scene and compiles its shaders. Requires a current GL
// context.
func New(log *zap.Logger) (*Scene, error) {
	if log == nil {
		log = zap.NewNop()
	}

	tr, err := NewTileRenderer()
	if err != nil {
		return nil, err
	}

	gl.Enable(gl.DEPTH_TEST)
	gl.Enable(gl.CULL_FACE)

	return &Scene{
		log:        log,
		tiles:      tr,
		clearColor: [3]float32{0.45, 0.60, 0.78},
	}, nil
}

// AddRenderable uploads a freshly loaded tile.
func (s *Scene) AddRenderable(t *tiles.Tile) {
	s.tiles.Add(t)
	s.log.Debug("tile uploaded",
		zap.Int("level", t.Level),
		zap.Int("resident", s.tiles.Count()))
}

// RemoveRenderable drops a released tile's GPU resources.
func (s *Scene) RemoveRenderable(t *tiles.Tile) {
	s.tiles.Remove(t)
}

// SetWorldOrigin anchors render space to a point on the map plane.
func (s *Scene) SetWorldOrigin(x, y float64) {
	s.tiles.SetWorldOrigin(x, y)
}

// WorldOrigin returns the current render-space anchor.
func (s *Scene) WorldOrigin() (x, y float64) {
	return s.tiles.WorldOrigin()
}

// SetExaggeration scales displayed elevation.
func (s *Scene) SetExaggeration(f float32) {
	s.tiles.SetExaggeration(f)
}

// TileCount returns the number of resident tiles.
func (s *Scene) TileCount() int { return s.tiles.Count() }

// Render clears the framebuffer and draws the frame.
func (s *Scene) Render(viewProj mgl32.Mat4, width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
	gl.ClearColor(s.clearColor[0], s.clearColor[1], s.clearColor[2], 1.0)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	s.tiles.Render(viewProj)
}

// Destroy releases all GPU resources.
func (s *Scene) Destroy() {
	s.tiles.Destroy()
}
