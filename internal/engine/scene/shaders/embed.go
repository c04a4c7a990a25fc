// Package shaders embeds the GLSL sources used by the scene renderers.
package shaders

import _ "embed"

//go:embed tile.vert
var TileVertexShader string

//go:embed tile.frag
var TileFragmentShader string

//go:embed bounds.vert
var BoundsVertexShader string

//go:embed bounds.frag
var BoundsFragmentShader string
