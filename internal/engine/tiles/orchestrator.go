package tiles

import (
	"context"
	"errors"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/Faultbox/alpenglow/internal/engine/terrain"
)

// State is the orchestrator lifecycle state.
type State int

const (
	StateIdle State = iota
	StateAwaitingMetadata
	StateSteady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingMetadata:
		return "awaiting-metadata"
	case StateSteady:
		return "steady"
	}
	return "invalid"
}

// SceneConsumer receives add/remove events for renderable tiles. Rendering
// itself is external to the core.
type SceneConsumer interface {
	AddRenderable(*Tile)
	RemoveRenderable(*Tile)
}

// Config wires an orchestrator from explicitly owned dependencies.
type Config struct {
	// LoadCatalog produces the tile catalog; called once on Start and
	// retried on failure. Runs off the render thread.
	LoadCatalog func() (*Catalog, error)

	Textures *TextureCache
	Geometry *terrain.GeometryFactory
	Scene    SceneConsumer

	MaxDepth        int
	ProximityFactor float64

	Log *zap.Logger
}

type viewpointRequest struct {
	gen       uint64
	viewpoint mgl64.Vec2
}

type snapshot struct {
	gen    uint64
	leaves []terrain.LeafSnapshot
}

type catalogResult struct {
	catalog *Catalog
	err     error
}

type tileResult struct {
	key  terrain.TileKey
	tile *Tile
	err  error
}

// Orchestrator drives the per-frame loop: it feeds the viewpoint into the
// quadtree worker, diffs the returned leaf snapshot against the active tile
// set, requests new tiles, releases stale ones and keeps each live tile's
// stitch mode in sync. All methods must be called from the render/update
// thread; the orchestrator is the sole owner of the active tile map.
type Orchestrator struct {
	cfg Config
	log *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	state   State
	manager *Manager
	toggles Toggles

	catalogCh chan catalogResult

	// Quadtree worker channels. Capacity 1 with latest-wins replacement:
	// exactly one computation is in flight, a newer viewpoint supersedes a
	// queued one rather than queueing behind it.
	vpCh    chan viewpointRequest
	snapCh  chan snapshot
	nextGen uint64
	lastGen uint64

	current  map[terrain.TileKey]terrain.LeafSnapshot
	active   map[terrain.TileKey]*Tile
	inflight map[terrain.TileKey]struct{}
	results  chan tileResult
}

// New creates an orchestrator in the Idle state.
func New(cfg Config) *Orchestrator {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.ProximityFactor <= 0 {
		cfg.ProximityFactor = terrain.DefaultProximityFactor
	}
	return &Orchestrator{
		cfg:       cfg,
		log:       log,
		state:     StateIdle,
		catalogCh: make(chan catalogResult, 1),
		vpCh:      make(chan viewpointRequest, 1),
		snapCh:    make(chan snapshot, 1),
		current:   make(map[terrain.TileKey]terrain.LeafSnapshot),
		active:    make(map[terrain.TileKey]*Tile),
		inflight:  make(map[terrain.TileKey]struct{}),
		results:   make(chan tileResult, 128),
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State { return o.state }

// SetToggles updates the live tweak state applied to every active tile.
func (o *Orchestrator) SetToggles(t Toggles) { o.toggles = t }

// ActiveTiles returns the number of tiles in the active set.
func (o *Orchestrator) ActiveTiles() int { return len(o.active) }

// Start kicks off the catalog load and transitions to AwaitingMetadata.
func (o *Orchestrator) Start(ctx context.Context) {
	if o.state != StateIdle {
		return
	}
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.state = StateAwaitingMetadata
	o.loadCatalogAsync()
}

func (o *Orchestrator) loadCatalogAsync() {
	go func() {
		c, err := o.cfg.LoadCatalog()
		select {
		case o.catalogCh <- catalogResult{catalog: c, err: err}:
		case <-o.ctx.Done():
		}
	}()
}

// Tick advances the orchestrator by one frame. The viewpoint is the camera
// position projected to the tiling plane.
func (o *Orchestrator) Tick(viewpoint mgl64.Vec2) {
	switch o.state {
	case StateIdle:
		// Not started.
	case StateAwaitingMetadata:
		o.awaitMetadata()
	case StateSteady:
		o.steadyTick(viewpoint)
	}
}

func (o *Orchestrator) awaitMetadata() {
	select {
	case res := <-o.catalogCh:
		if res.err != nil {
			o.log.Error("tile catalog load failed, retrying", zap.Error(res.err))
			o.loadCatalogAsync()
			return
		}
		o.manager = NewManager(res.catalog, o.cfg.Textures, o.cfg.Geometry, o.log)
		go o.treeWorker(res.catalog.Bounds())
		o.state = StateSteady
		min, max := res.catalog.ElevationRange()
		o.log.Info("tile catalog loaded",
			zap.Int("levels", res.catalog.Levels()),
			zap.Float64("min_elevation", min),
			zap.Float64("max_elevation", max),
		)
	default:
	}
}

// treeWorker owns the quadtree. Viewpoints come in, immutable leaf snapshots
// go out; no mutable state crosses the boundary.
func (o *Orchestrator) treeWorker(bounds terrain.Bounds) {
	tree := terrain.NewQuadTree(bounds, o.cfg.MaxDepth, o.cfg.ProximityFactor, o.log)
	for {
		select {
		case <-o.ctx.Done():
			return
		case req := <-o.vpCh:
			tree.Insert(req.viewpoint)
			pushLatestSnapshot(o.snapCh, snapshot{gen: req.gen, leaves: tree.Snapshot()})
		}
	}
}

func pushLatestSnapshot(ch chan snapshot, s snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func (o *Orchestrator) submitViewpoint(viewpoint mgl64.Vec2) {
	o.nextGen++
	req := viewpointRequest{gen: o.nextGen, viewpoint: viewpoint}
	for {
		select {
		case o.vpCh <- req:
			return
		default:
			// Replace the queued, now stale, request.
			select {
			case <-o.vpCh:
			default:
			}
		}
	}
}

func (o *Orchestrator) steadyTick(viewpoint mgl64.Vec2) {
	o.submitViewpoint(viewpoint)
	o.adoptSnapshot()
	o.collectResults()
	o.releaseStale()
	o.syncActive()
	o.requestMissing()
}

// adoptSnapshot takes the newest worker snapshot, if any, as the current
// leaf set. Snapshots for superseded viewpoints are discarded.
func (o *Orchestrator) adoptSnapshot() {
	var newest *snapshot
	for {
		select {
		case s := <-o.snapCh:
			if newest == nil || s.gen > newest.gen {
				newest = &s
			}
		default:
			if newest == nil {
				return
			}
			if newest.gen <= o.lastGen {
				o.log.Debug("discarding stale quadtree snapshot",
					zap.Uint64("gen", newest.gen), zap.Uint64("current", o.lastGen))
				return
			}
			o.lastGen = newest.gen
			o.current = make(map[terrain.TileKey]terrain.LeafSnapshot, len(newest.leaves))
			for _, l := range newest.leaves {
				o.current[l.Key] = l
			}
			return
		}
	}
}

// collectResults commits finished tile loads. A load that completes after
// its leaf left the active set is discarded, not inserted: the membership
// check makes the commit idempotent and safe under races.
func (o *Orchestrator) collectResults() {
	for {
		select {
		case res := <-o.results:
			delete(o.inflight, res.key)

			if res.err != nil {
				if errors.Is(res.err, ErrMetadataMissing) {
					o.log.Debug("tile metadata missing, skipping this frame",
						zap.Int("level", res.key.Level),
						zap.Float64("x", res.key.X), zap.Float64("y", res.key.Y))
				} else {
					o.log.Warn("tile load failed",
						zap.Int("level", res.key.Level),
						zap.Float64("x", res.key.X), zap.Float64("y", res.key.Y),
						zap.Error(res.err))
				}
				continue
			}

			leaf, wanted := o.current[res.key]
			if !wanted {
				o.log.Debug("discarding stale tile load",
					zap.Int("level", res.key.Level))
				res.tile.Dispose()
				continue
			}

			res.tile.SetStitchMask(leaf.Mask, o.manager.Geometry())
			res.tile.Toggles = o.toggles
			o.active[res.key] = res.tile
			o.cfg.Scene.AddRenderable(res.tile)
		default:
			return
		}
	}
}

// releaseStale disposes active tiles whose leaf disappeared from the
// current snapshot.
func (o *Orchestrator) releaseStale() {
	for key, tile := range o.active {
		if _, ok := o.current[key]; ok {
			continue
		}
		o.cfg.Scene.RemoveRenderable(tile)
		tile.Dispose()
		delete(o.active, key)
	}
}

// syncActive refreshes stitch masks and tweak state on surviving tiles.
// The geometry swap only happens when the mask actually changed.
func (o *Orchestrator) syncActive() {
	for key, leaf := range o.current {
		tile, ok := o.active[key]
		if !ok {
			continue
		}
		if leaf.Mask != tile.StitchMask() {
			tile.SetStitchMask(leaf.Mask, o.manager.Geometry())
		}
		tile.Toggles = o.toggles
	}
}

// requestMissing issues async builds for leaves with no active tile and no
// in-flight request. There is no cancellation; results are validated against
// leaf membership when they arrive.
func (o *Orchestrator) requestMissing() {
	for key, leaf := range o.current {
		if _, ok := o.active[key]; ok {
			continue
		}
		if _, ok := o.inflight[key]; ok {
			continue
		}
		o.inflight[key] = struct{}{}
		go func(leaf terrain.LeafSnapshot) {
			tile, err := o.manager.Request(o.ctx, leaf)
			select {
			case o.results <- tileResult{key: leaf.Key, tile: tile, err: err}:
			case <-o.ctx.Done():
				if tile != nil {
					tile.Dispose()
				}
			}
		}(leaf)
	}
}

// Close stops the worker and disposes every active tile, leaving the scene
// empty. The active set is always consistent, even mid-shutdown.
func (o *Orchestrator) Close() {
	if o.cancel != nil {
		o.cancel()
	}
	for key, tile := range o.active {
		o.cfg.Scene.RemoveRenderable(tile)
		tile.Dispose()
		delete(o.active, key)
	}
	for {
		select {
		case res := <-o.results:
			if res.tile != nil {
				res.tile.Dispose()
			}
		default:
			o.state = StateIdle
			return
		}
	}
}
