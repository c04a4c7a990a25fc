// Package scene owns the GPU-side representation of the active tile set.
package scene

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/alpenglow/internal/engine/scene/shaders"
	"github.com/Faultbox/alpenglow/internal/engine/shader"
	"github.com/Faultbox/alpenglow/internal/engine/terrain"
	"github.com/Faultbox/alpenglow/internal/engine/tiles"
)

// modeTints colors tiles by stitch mode when the debug tint is enabled.
var modeTints = [...][3]float32{
	terrain.ModeFull:      {0.6, 0.6, 0.6},
	terrain.ModeNorth:     {0.9, 0.3, 0.3},
	terrain.ModeEast:      {0.3, 0.9, 0.3},
	terrain.ModeSouth:     {0.3, 0.3, 0.9},
	terrain.ModeWest:      {0.9, 0.9, 0.3},
	terrain.ModeNorthEast: {0.9, 0.5, 0.2},
	terrain.ModeNorthWest: {0.9, 0.2, 0.9},
	terrain.ModeSouthEast: {0.2, 0.9, 0.9},
	terrain.ModeSouthWest: {0.5, 0.2, 0.9},
}

// meshBuffers is one uploaded stitch-mode grid, shared by every tile
// rendered with that mode.
type meshBuffers struct {
	vao        uint32
	vbo        uint32
	ebo        uint32
	indexCount int32
}

// tileEntry pairs a live tile with its GPU textures.
type tileEntry struct {
	tile      *tiles.Tile
	colorTex  uint32
	heightTex uint32
}

// TileRenderer draws the active tile set. Tile grids are flat unit squares
// on the CPU; the vertex shader displaces them with the tile's height
// texture, so a stitch-mode change is just a different shared VAO.
type TileRenderer struct {
	program uint32

	locViewProj     int32
	locOrigin       int32
	locSize         int32
	locElevMin      int32
	locElevRange    int32
	locExaggeration int32
	locHeightMap    int32
	locColorMap     int32
	locLightDir     int32
	locTint         int32
	locTintEnabled  int32

	// Bounds overlay
	boundsProgram   uint32
	boundsVAO       uint32
	boundsVBO       uint32
	locBndViewProj  int32
	locBndOrigin    int32
	locBndSize      int32
	locBndElevation int32
	locBndColor     int32

	meshes  map[terrain.StitchMode]*meshBuffers
	entries map[terrain.TileKey]*tileEntry

	// World-to-render offset. Tile bounds are large projected coordinates;
	// rendering happens relative to this origin so float32 stays precise.
	originX, originY float64

	exaggeration float32
	lightDir     mgl32.Vec3
}

// NewTileRenderer compiles the tile shaders and prepares the shared buffers.
func NewTileRenderer() (*TileRenderer, error) {
	tr := &TileRenderer{
		meshes:       make(map[terrain.StitchMode]*meshBuffers),
		entries:      make(map[terrain.TileKey]*tileEntry),
		exaggeration: 1.0,
		lightDir:     mgl32.Vec3{0.4, 1.0, 0.3},
	}

	program, err := shader.CompileProgram(shaders.TileVertexShader, shaders.TileFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("tile shader: %w", err)
	}
	tr.program = program

	tr.locViewProj = shader.GetUniform(program, "uViewProj")
	tr.locOrigin = shader.GetUniform(program, "uOrigin")
	tr.locSize = shader.GetUniform(program, "uSize")
	tr.locElevMin = shader.GetUniform(program, "uElevMin")
	tr.locElevRange = shader.GetUniform(program, "uElevRange")
	tr.locExaggeration = shader.GetUniform(program, "uExaggeration")
	tr.locHeightMap = shader.GetUniform(program, "uHeightMap")
	tr.locColorMap = shader.GetUniform(program, "uColorMap")
	tr.locLightDir = shader.GetUniform(program, "uLightDir")
	tr.locTint = shader.GetUniform(program, "uTint")
	tr.locTintEnabled = shader.GetUniform(program, "uTintEnabled")

	boundsProgram, err := shader.CompileProgram(shaders.BoundsVertexShader, shaders.BoundsFragmentShader)
	if err != nil {
		gl.DeleteProgram(tr.program)
		return nil, fmt.Errorf("bounds shader: %w", err)
	}
	tr.boundsProgram = boundsProgram

	tr.locBndViewProj = shader.GetUniform(boundsProgram, "uViewProj")
	tr.locBndOrigin = shader.GetUniform(boundsProgram, "uOrigin")
	tr.locBndSize = shader.GetUniform(boundsProgram, "uSize")
	tr.locBndElevation = shader.GetUniform(boundsProgram, "uElevation")
	tr.locBndColor = shader.GetUniform(boundsProgram, "uColor")

	tr.uploadBoundsOutline()

	return tr, nil
}

// SetWorldOrigin sets the map-plane point rendered at render-space (0, 0).
func (tr *TileRenderer) SetWorldOrigin(x, y float64) {
	tr.originX, tr.originY = x, y
}

// WorldOrigin returns the current render origin on the map plane.
func (tr *TileRenderer) WorldOrigin() (x, y float64) {
	return tr.originX, tr.originY
}

// SetExaggeration scales elevation for display.
func (tr *TileRenderer) SetExaggeration(f float32) {
	if f > 0 {
		tr.exaggeration = f
	}
}

// Add uploads the tile's textures and registers it for drawing.
func (tr *TileRenderer) Add(t *tiles.Tile) {
	if t == nil || t.Disposed() {
		return
	}
	if old, ok := tr.entries[t.Key]; ok {
		tr.deleteEntry(old)
	}

	entry := &tileEntry{tile: t}
	entry.colorTex = tr.uploadColorTexture(t)
	entry.heightTex = tr.uploadHeightTexture(t)
	tr.entries[t.Key] = entry
}

// Remove drops the tile's GPU resources.
func (tr *TileRenderer) Remove(t *tiles.Tile) {
	if t == nil {
		return
	}
	entry, ok := tr.entries[t.Key]
	if !ok {
		return
	}
	tr.deleteEntry(entry)
	delete(tr.entries, t.Key)
}

// Count returns the number of tiles registered for drawing.
func (tr *TileRenderer) Count() int { return len(tr.entries) }

func (tr *TileRenderer) uploadColorTexture(t *tiles.Tile) uint32 {
	img := t.Color.RGBA

	var texID uint32
	gl.GenTextures(1, &texID)
	gl.BindTexture(gl.TEXTURE_2D, texID)

	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA,
		int32(img.Bounds().Dx()), int32(img.Bounds().Dy()),
		0, gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&img.Pix[0]))

	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)

	return texID
}

func (tr *TileRenderer) uploadHeightTexture(t *tiles.Tile) uint32 {
	hf := t.Heights

	var texID uint32
	gl.GenTextures(1, &texID)
	gl.BindTexture(gl.TEXTURE_2D, texID)

	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.R32F,
		int32(hf.Width), int32(hf.Height),
		0, gl.RED, gl.FLOAT, unsafe.Pointer(&hf.Samples[0]))

	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)

	return texID
}

// meshFor returns the uploaded buffers for a grid, uploading on first use.
func (tr *TileRenderer) meshFor(g *terrain.GridGeometry) *meshBuffers {
	if mb, ok := tr.meshes[g.Mode]; ok {
		return mb
	}

	// Interleave position and UV: 4 floats per vertex.
	verts := make([]float32, 0, len(g.Positions)*4)
	for i := range g.Positions {
		verts = append(verts,
			g.Positions[i].X(), g.Positions[i].Y(),
			g.UVs[i].X(), g.UVs[i].Y(),
		)
	}

	mb := &meshBuffers{indexCount: int32(len(g.Indices))}

	gl.GenVertexArrays(1, &mb.vao)
	gl.BindVertexArray(mb.vao)

	gl.GenBuffers(1, &mb.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, mb.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(verts)*4, unsafe.Pointer(&verts[0]), gl.STATIC_DRAW)

	// Position (location 0)
	gl.VertexAttribPointerWithOffset(0, 2, gl.FLOAT, false, 4*4, 0)
	gl.EnableVertexAttribArray(0)

	// UV (location 1)
	gl.VertexAttribPointerWithOffset(1, 2, gl.FLOAT, false, 4*4, 2*4)
	gl.EnableVertexAttribArray(1)

	gl.GenBuffers(1, &mb.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, mb.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(g.Indices)*4, unsafe.Pointer(&g.Indices[0]), gl.STATIC_DRAW)

	gl.BindVertexArray(0)

	tr.meshes[g.Mode] = mb
	return mb
}

// uploadBoundsOutline uploads the unit-square line loop for the bounds
// overlay.
func (tr *TileRenderer) uploadBoundsOutline() {
	outline := []float32{0, 0, 1, 0, 1, 1, 0, 1}

	gl.GenVertexArrays(1, &tr.boundsVAO)
	gl.BindVertexArray(tr.boundsVAO)

	gl.GenBuffers(1, &tr.boundsVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, tr.boundsVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(outline)*4, unsafe.Pointer(&outline[0]), gl.STATIC_DRAW)

	gl.VertexAttribPointerWithOffset(0, 2, gl.FLOAT, false, 2*4, 0)
	gl.EnableVertexAttribArray(0)

	gl.BindVertexArray(0)
}

// Render draws every registered tile.
func (tr *TileRenderer) Render(viewProj mgl32.Mat4) {
	if len(tr.entries) == 0 {
		return
	}

	gl.UseProgram(tr.program)
	gl.UniformMatrix4fv(tr.locViewProj, 1, false, &viewProj[0])
	gl.Uniform1f(tr.locExaggeration, tr.exaggeration)
	gl.Uniform3f(tr.locLightDir, tr.lightDir.X(), tr.lightDir.Y(), tr.lightDir.Z())

	gl.Uniform1i(tr.locColorMap, 0)
	gl.Uniform1i(tr.locHeightMap, 1)

	wireframe := false
	for _, entry := range tr.entries {
		t := entry.tile
		if t.Disposed() || !t.Visible || t.Geometry == nil {
			continue
		}

		if t.Toggles.Wireframe != wireframe {
			wireframe = t.Toggles.Wireframe
			if wireframe {
				gl.PolygonMode(gl.FRONT_AND_BACK, gl.LINE)
			} else {
				gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
			}
		}

		ox := float32(t.Bounds.Min.X() - tr.originX)
		oy := float32(t.Bounds.Min.Y() - tr.originY)
		size := t.Bounds.Size()

		gl.Uniform2f(tr.locOrigin, ox, oy)
		gl.Uniform2f(tr.locSize, float32(size.X()), float32(size.Y()))
		gl.Uniform1f(tr.locElevMin, float32(t.MinElevation))
		gl.Uniform1f(tr.locElevRange, float32(t.MaxElevation-t.MinElevation))

		if t.Toggles.TintByMode {
			tint := modeTints[t.Geometry.Mode]
			gl.Uniform1i(tr.locTintEnabled, 1)
			gl.Uniform3f(tr.locTint, tint[0], tint[1], tint[2])
		} else {
			gl.Uniform1i(tr.locTintEnabled, 0)
		}

		gl.ActiveTexture(gl.TEXTURE0)
		gl.BindTexture(gl.TEXTURE_2D, entry.colorTex)
		gl.ActiveTexture(gl.TEXTURE1)
		gl.BindTexture(gl.TEXTURE_2D, entry.heightTex)

		mb := tr.meshFor(t.Geometry)
		gl.BindVertexArray(mb.vao)
		gl.DrawElements(gl.TRIANGLES, mb.indexCount, gl.UNSIGNED_INT, nil)
	}
	gl.BindVertexArray(0)
	if wireframe {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
	}

	tr.renderBounds(viewProj)
}

// renderBounds draws tile outlines for tiles with the overlay enabled.
func (tr *TileRenderer) renderBounds(viewProj mgl32.Mat4) {
	started := false
	for _, entry := range tr.entries {
		t := entry.tile
		if t.Disposed() || !t.Visible || !t.Toggles.ShowBounds {
			continue
		}
		if !started {
			started = true
			gl.UseProgram(tr.boundsProgram)
			gl.UniformMatrix4fv(tr.locBndViewProj, 1, false, &viewProj[0])
			gl.Uniform3f(tr.locBndColor, 1.0, 0.85, 0.1)
			gl.BindVertexArray(tr.boundsVAO)
		}

		ox := float32(t.Bounds.Min.X() - tr.originX)
		oy := float32(t.Bounds.Min.Y() - tr.originY)
		size := t.Bounds.Size()

		gl.Uniform2f(tr.locBndOrigin, ox, oy)
		gl.Uniform2f(tr.locBndSize, float32(size.X()), float32(size.Y()))
		gl.Uniform1f(tr.locBndElevation, float32(t.MaxElevation)*tr.exaggeration+10.0)

		gl.DrawArrays(gl.LINE_LOOP, 0, 4)
	}
	if started {
		gl.BindVertexArray(0)
	}
}

func (tr *TileRenderer) deleteEntry(entry *tileEntry) {
	if entry.colorTex != 0 {
		gl.DeleteTextures(1, &entry.colorTex)
	}
	if entry.heightTex != 0 {
		gl.DeleteTextures(1, &entry.heightTex)
	}
}

// Destroy releases all GPU resources.
func (tr *TileRenderer) Destroy() {
	for key, entry := range tr.entries {
		tr.deleteEntry(entry)
		delete(tr.entries, key)
	}
	for mode, mb := range tr.meshes {
		gl.DeleteVertexArrays(1, &mb.vao)
		gl.DeleteBuffers(1, &mb.vbo)
		gl.DeleteBuffers(1, &mb.ebo)
		delete(tr.meshes, mode)
	}
	if tr.boundsVAO != 0 {
		gl.DeleteVertexArrays(1, &tr.boundsVAO)
		gl.DeleteBuffers(1, &tr.boundsVBO)
		tr.boundsVAO = 0
	}
	if tr.program != 0 {
		gl.DeleteProgram(tr.program)
		tr.program = 0
	}
	if tr.boundsProgram != 0 {
		gl.DeleteProgram(tr.boundsProgram)
		tr.boundsProgram = 0
	}
}
