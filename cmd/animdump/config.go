package main

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/deepteams/animimage/pixbuf"
)

// Config is the optional YAML file passed with -config. Command-line flags
// override any value set here.
type Config struct {
	VerifyCRC     bool   `yaml:"verify_crc"`
	Strict        bool   `yaml:"strict"`
	Format        string `yaml:"format"`          // bgra, rgba
	MaxFrames     int    `yaml:"max_frames"`      // 0 = library default
	MaxCanvasArea int64  `yaml:"max_canvas_area"` // pixels, 0 = library default
	OutputDir     string `yaml:"output_dir"`
	Thumb         int    `yaml:"thumb"`     // longest edge of exported frames, 0 = full size
	LogLevel      string `yaml:"log_level"` // debug, info, warn, error
}

func defaultConfig() *Config {
	return &Config{Format: "bgra", OutputDir: ".", LogLevel: "warn"}
}

// Load reads and validates a config file. Fields missing from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func Validate(cfg *Config) error {
	if _, ok := pixbuf.ParseFormat(cfg.Format); !ok {
		return fmt.Errorf("format %q: want bgra or rgba", cfg.Format)
	}
	if cfg.MaxFrames < 0 {
		return fmt.Errorf("max_frames must be >= 0, got %d", cfg.MaxFrames)
	}
	if cfg.MaxCanvasArea < 0 {
		return fmt.Errorf("max_canvas_area must be >= 0, got %d", cfg.MaxCanvasArea)
	}
	if cfg.Thumb < 0 {
		return fmt.Errorf("thumb must be >= 0, got %d", cfg.Thumb)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelWarn, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", s, err)
	}
	return l, nil
}
