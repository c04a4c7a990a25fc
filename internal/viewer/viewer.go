// Package viewer wires the terrain viewer application together: window,
// scene, camera, tile orchestrator and the main loop.
package viewer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/alpenglow/internal/assets"
	"github.com/Faultbox/alpenglow/internal/config"
	"github.com/Faultbox/alpenglow/internal/engine/camera"
	"github.com/Faultbox/alpenglow/internal/engine/debug"
	"github.com/Faultbox/alpenglow/internal/engine/input"
	"github.com/Faultbox/alpenglow/internal/engine/scene"
	"github.com/Faultbox/alpenglow/internal/engine/terrain"
	"github.com/Faultbox/alpenglow/internal/engine/tiles"
	"github.com/Faultbox/alpenglow/internal/engine/window"
)

// Viewer is the running application.
type Viewer struct {
	cfg *config.Config
	log *zap.Logger

	window *window.Window
	scene  *scene.Scene
	camera *camera.OrbitCamera
	input  *input.Input

	assets *assets.Manager
	orch   *tiles.Orchestrator
	shots  *debug.Screenshots

	toggles tiles.Toggles
	running bool

	// World framing, filled in by the catalog load goroutine and consumed
	// once by the render thread.
	mu        sync.Mutex
	origin    mgl64.Vec2
	fitMin    mgl32.Vec3
	fitMax    mgl32.Vec3
	fitWanted bool
}

// New creates the viewer. The window and GL context are created here; the
// tile catalog loads asynchronously once Run starts.
func New(cfg *config.Config, log *zap.Logger) (*Viewer, error) {
	if log == nil {
		log = zap.NewNop()
	}

	v := &Viewer{
		cfg: cfg,
		log: log,
		toggles: tiles.Toggles{
			Wireframe:  cfg.Terrain.Wireframe,
			ShowBounds: cfg.Terrain.ShowBounds,
			TintByMode: cfg.Terrain.TintByMode,
		},
	}

	var err error
	v.window, err = window.New(window.Config{
		Title:      "Alpenglow",
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("creating window: %w", err)
	}

	// GL function pointers need a current context, so this comes after the
	// window.
	if err := gl.Init(); err != nil {
		v.window.Close()
		return nil, fmt.Errorf("initializing OpenGL: %w", err)
	}

	v.scene, err = scene.New(log)
	if err != nil {
		v.window.Close()
		return nil, fmt.Errorf("creating scene: %w", err)
	}

	v.camera = camera.NewOrbitCamera()
	v.input = input.New()
	v.assets = assets.NewManager(cfg.Terrain.DataDir)
	v.shots = debug.NewScreenshots("screenshots", "alpenglow")

	v.orch = tiles.New(tiles.Config{
		LoadCatalog:     v.loadCatalog,
		Textures:        tiles.NewTextureCache(v.assets),
		Geometry:        terrain.NewGeometryFactory(cfg.Terrain.GridQuads),
		Scene:           v.scene,
		MaxDepth:        cfg.Terrain.MaxDepth,
		ProximityFactor: cfg.Terrain.ProximityFactor,
		Log:             log,
	})

	log.Info("viewer initialized", zap.String("data_dir", cfg.Terrain.DataDir))
	return v, nil
}

// loadCatalog reads and parses the tile manifest. Runs off the render
// thread; the world framing is handed over under the mutex.
func (v *Viewer) loadCatalog() (*tiles.Catalog, error) {
	data, err := v.assets.Load(v.cfg.Terrain.Manifest)
	if err != nil {
		return nil, err
	}
	catalog, err := tiles.ParseCatalog(data)
	if err != nil {
		return nil, err
	}

	bounds := catalog.Bounds()
	center := bounds.Center()
	size := bounds.Size()
	minElev, maxElev := catalog.ElevationRange()

	v.mu.Lock()
	v.origin = center
	// Render space: +x east, +y up, north toward -z.
	v.fitMin = mgl32.Vec3{
		float32(-size.X() / 2),
		float32(minElev),
		float32(-size.Y() / 2),
	}
	v.fitMax = mgl32.Vec3{
		float32(size.X() / 2),
		float32(maxElev),
		float32(size.Y() / 2),
	}
	v.fitWanted = true
	v.mu.Unlock()

	return catalog, nil
}

// maybeFrameWorld fits the camera to the terrain once the catalog arrives.
func (v *Viewer) maybeFrameWorld() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.fitWanted {
		return
	}
	v.fitWanted = false

	v.scene.SetWorldOrigin(v.origin.X(), v.origin.Y())
	v.camera.FitToBounds(v.fitMin, v.fitMax)
	v.log.Info("camera framed to terrain",
		zap.Float64("origin_x", v.origin.X()),
		zap.Float64("origin_y", v.origin.Y()))
}

// viewpoint converts the camera's ground point to map-plane coordinates.
func (v *Viewer) viewpoint() mgl64.Vec2 {
	gx, gz := v.camera.GroundPoint()
	v.mu.Lock()
	origin := v.origin
	v.mu.Unlock()
	// Inverse of the render mapping: x east, -z north.
	return mgl64.Vec2{
		origin.X() + float64(gx),
		origin.Y() - float64(gz),
	}
}

// Run starts the main loop and blocks until the viewer quits.
func (v *Viewer) Run() error {
	v.running = true
	v.orch.Start(context.Background())

	lastTime := time.Now()
	frameCount := 0
	fpsTimer := time.Now()

	v.log.Info("starting viewer loop")

	for v.running {
		now := time.Now()
		dt := float32(now.Sub(lastTime).Seconds())
		lastTime = now

		// 1. Process input
		if v.input.Update() {
			v.running = false
			break
		}
		v.handleEvents()
		v.handleHeldKeys(dt)

		// 2. Advance the tile set
		v.maybeFrameWorld()
		v.orch.SetToggles(v.toggles)
		v.orch.Tick(v.viewpoint())

		// 3. Render
		width, height := v.window.GetSize()
		proj := mgl32.Perspective(
			mgl32.DegToRad(60),
			aspectRatio(width, height),
			1.0, 2_000_000.0,
		)
		v.scene.Render(proj.Mul4(v.camera.ViewMatrix()), width, height)

		// 4. Present
		v.window.SwapBuffers()

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			v.window.SetTitle(fmt.Sprintf("Alpenglow — %d tiles, %d fps",
				v.scene.TileCount(), frameCount))
			frameCount = 0
			fpsTimer = time.Now()
		}
	}

	return nil
}

func (v *Viewer) handleEvents() {
	for _, event := range v.input.Events() {
		switch event.Type {
		case input.EventKeyDown:
			switch event.Key {
			case sdl.SCANCODE_ESCAPE:
				v.running = false
			case sdl.SCANCODE_F1:
				v.toggles.Wireframe = !v.toggles.Wireframe
				v.log.Info("wireframe toggled", zap.Bool("on", v.toggles.Wireframe))
			case sdl.SCANCODE_F2:
				v.toggles.ShowBounds = !v.toggles.ShowBounds
				v.log.Info("bounds overlay toggled", zap.Bool("on", v.toggles.ShowBounds))
			case sdl.SCANCODE_F3:
				v.toggles.TintByMode = !v.toggles.TintByMode
				v.log.Info("mode tint toggled", zap.Bool("on", v.toggles.TintByMode))
			case sdl.SCANCODE_F12:
				v.captureScreenshot()
			}
		case input.EventMouseMove:
			if v.input.Dragging() {
				v.camera.HandleDrag(float32(event.DeltaX), float32(event.DeltaY))
			}
		case input.EventMouseWheel:
			v.camera.HandleZoom(event.WheelY)
		}
	}
}

// handleHeldKeys pans the camera with WASD and QE for vertical movement.
func (v *Viewer) handleHeldKeys(dt float32) {
	// Normalize to a 60fps-relative step so panning speed is framerate
	// independent.
	step := dt * 60

	var forward, right, up float32
	if v.input.IsKeyHeld(sdl.SCANCODE_W) {
		forward += step
	}
	if v.input.IsKeyHeld(sdl.SCANCODE_S) {
		forward -= step
	}
	if v.input.IsKeyHeld(sdl.SCANCODE_D) {
		right += step
	}
	if v.input.IsKeyHeld(sdl.SCANCODE_A) {
		right -= step
	}
	if v.input.IsKeyHeld(sdl.SCANCODE_E) {
		up += step
	}
	if v.input.IsKeyHeld(sdl.SCANCODE_Q) {
		up -= step
	}

	if forward != 0 || right != 0 || up != 0 {
		v.camera.HandleMovement(forward, right, up)
	}
}

// aspectRatio guards against a zero-sized drawable while the window is
// minimized; a zero height would put NaN/Inf into the projection.
func aspectRatio(width, height int) float32 {
	if width <= 0 || height <= 0 {
		return 1
	}
	return float32(width) / float32(height)
}

// captureScreenshot reads back the framebuffer and writes a PNG.
func (v *Viewer) captureScreenshot() {
	width, height := v.window.GetSize()
	pixels := make([]byte, width*height*4)
	gl.ReadPixels(0, 0, int32(width), int32(height),
		gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))

	path, err := v.shots.Capture(pixels, width, height)
	if err != nil {
		v.log.Warn("screenshot failed", zap.Error(err))
		return
	}
	v.log.Info("screenshot saved", zap.String("path", path))
}

// Close persists the debug toggle state, then shuts down the
// orchestrator and releases window and GPU resources.
func (v *Viewer) Close() {
	v.log.Info("closing viewer")

	v.cfg.Terrain.Wireframe = v.toggles.Wireframe
	v.cfg.Terrain.ShowBounds = v.toggles.ShowBounds
	v.cfg.Terrain.TintByMode = v.toggles.TintByMode
	if err := v.cfg.Save(); err != nil {
		v.log.Warn("saving config", zap.Error(err))
	}

	if v.orch != nil {
		v.orch.Close()
	}
	if v.scene != nil {
		v.scene.Destroy()
	}
	if v.window != nil {
		v.window.Close()
	}
}
