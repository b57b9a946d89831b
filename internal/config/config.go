// Package config loads the stitcher configuration from YAML and provides
// the defaults used when no file is present.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Tiling parameters shared by slicing and reconstruction
	Tiling struct {
		TileWidth   int     `yaml:"tileWidth" validate:"required,gt=0"`
		TileHeight  int     `yaml:"tileHeight" validate:"required,gt=0"`
		OverlapX    float64 `yaml:"overlapX" validate:"gte=0,lt=1"`
		OverlapY    float64 `yaml:"overlapY" validate:"gte=0,lt=1"`
		TileExt     string  `yaml:"tileExt" validate:"required,oneof=jpg jpeg png tif tiff bmp"`
		JPEGQuality int     `yaml:"jpegQuality" validate:"gte=1,lte=100"`
	} `yaml:"tiling"`

	// Image is the size of the original images. Reconstruction has no other
	// way to know it.
	Image struct {
		Width  int `yaml:"width" validate:"required,gt=0"`
		Height int `yaml:"height" validate:"required,gt=0"`
	} `yaml:"image"`

	Paths struct {
		SourceDir   string   `yaml:"sourceDir" validate:"required"`
		TileDir     string   `yaml:"tileDir" validate:"required"`
		DetectDir   string   `yaml:"detectDir" validate:"required"`
		RunPrefix   string   `yaml:"runPrefix" validate:"required"`
		LabelSubdir string   `yaml:"labelSubdir"`
		OutputDir   string   `yaml:"outputDir" validate:"required"`
		RunTileExts []string `yaml:"runTileExts" validate:"min=1,dive,required"`
	} `yaml:"paths"`

	Processing struct {
		// Workers is how many images are processed concurrently
		Workers int `yaml:"workers" validate:"gte=1,lte=256"`
	} `yaml:"processing"`

	Output struct {
		Verbose bool   `yaml:"verbose"`
		LogFile string `yaml:"logFile"`
	} `yaml:"output"`

	Database struct {
		// URL is optional; history is recorded only when it is set
		URL string `yaml:"url" validate:"omitempty,url"`
	} `yaml:"database"`
}

// Default returns a configuration with default values
func Default() *Config {
	cfg := &Config{}

	cfg.Tiling.TileWidth = 256
	cfg.Tiling.TileHeight = 256
	cfg.Tiling.OverlapX = 0.2
	cfg.Tiling.OverlapY = 0.2
	cfg.Tiling.TileExt = "jpg"
	cfg.Tiling.JPEGQuality = 95

	cfg.Image.Width = 1456
	cfg.Image.Height = 1088

	cfg.Paths.SourceDir = filepath.Join("data", "images", "original_test_data")
	cfg.Paths.TileDir = filepath.Join("data", "images", "test")
	cfg.Paths.DetectDir = filepath.Join("runs", "detect")
	cfg.Paths.RunPrefix = "yolov9_m_c__detect"
	cfg.Paths.LabelSubdir = "labels"
	cfg.Paths.OutputDir = filepath.Join("runs", "restored")
	cfg.Paths.RunTileExts = []string{"jpg", "tif"}

	cfg.Processing.Workers = 1

	return cfg
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field against its constraints and reports all
// violations at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Load reads configuration from a YAML file on top of the defaults.
// If the file doesn't exist, it returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Save writes the configuration to a YAML file, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
