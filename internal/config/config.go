// Package config handles viewer configuration loading and management.
package config

// Config holds all viewer settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics"`
	Terrain  TerrainConfig  `yaml:"terrain"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
}

// TerrainConfig holds terrain data paths and LOD tuning.
type TerrainConfig struct {
	DataDir  string `yaml:"data_dir"` // Root of the baked tile set
	Manifest string `yaml:"manifest"` // Manifest path relative to DataDir

	MaxDepth        int     `yaml:"max_depth"`
	ProximityFactor float64 `yaml:"proximity_factor"`
	GridQuads       int     `yaml:"grid_quads"`

	Wireframe  bool `yaml:"wireframe"`
	ShowBounds bool `yaml:"show_bounds"`
	TintByMode bool `yaml:"tint_by_mode"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
		},
		Terrain: TerrainConfig{
			DataDir:         "data",
			Manifest:        "manifest.json",
			MaxDepth:        8,
			ProximityFactor: 2.0,
			GridQuads:       16,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
