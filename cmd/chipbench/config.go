package main

import (
	"fmt"
	"os"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/jamesmcclain/chips/common/go/logging"
	"github.com/jamesmcclain/chips/internal/raster"
	"github.com/jamesmcclain/chips/pkg/chips"
)

// Config is chipbench's on-disk configuration: the ambient logging
// configuration plus the session parameters Start needs, the way
// controlplane/pkg/yncp.Config wraps its LoggingConfig next to its domain
// config.
type Config struct {
	Logging logging.Config `yaml:"logging"`

	ImageryPath string `yaml:"imagery_path"`
	LabelPath   string `yaml:"label_path"`
	ImageryType string `yaml:"imagery_type"`
	LabelType   string `yaml:"label_type"`
	Mode        string `yaml:"mode"`
	WindowSize  int    `yaml:"window_size"`
	Bands       []int  `yaml:"bands"`
	Workers     int    `yaml:"workers"`
	Slots       int    `yaml:"slots"`

	// ChipCount is how many chips chipbench drains from GetNext before
	// reporting throughput and exiting (0 means run until interrupted).
	ChipCount int `yaml:"chip_count"`
}

func defaultConfig() *Config {
	return &Config{
		Logging:     logging.Config{Level: zapcore.InfoLevel},
		ImageryType: "byte",
		LabelType:   "byte",
		Mode:        "training",
		WindowSize:  256,
		Bands:       []int{1},
		Workers:     4,
		Slots:       8,
		ChipCount:   1000,
	}
}

// LoadConfig loads chipbench's configuration from path.
func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to deserialize config: %w", err)
	}
	return cfg, nil
}

var pixelTypesByName = map[string]raster.PixelType{
	"byte":     raster.Byte,
	"int16":    raster.Int16,
	"uint16":   raster.UInt16,
	"int32":    raster.Int32,
	"uint32":   raster.UInt32,
	"float32":  raster.Float32,
	"float64":  raster.Float64,
	"cint16":   raster.CInt16,
	"cint32":   raster.CInt32,
	"cfloat32": raster.CFloat32,
	"cfloat64": raster.CFloat64,
}

var modesByName = map[string]chips.Mode{
	"training":   chips.Training,
	"evaluation": chips.Evaluation,
	"inference":  chips.Inference,
}

// sessionConfig translates the on-disk config into a chips.Config.
func (c *Config) sessionConfig() (chips.Config, error) {
	imageryType, ok := pixelTypesByName[c.ImageryType]
	if !ok {
		return chips.Config{}, fmt.Errorf("unknown imagery_type %q", c.ImageryType)
	}
	labelType, ok := pixelTypesByName[c.LabelType]
	if !ok {
		return chips.Config{}, fmt.Errorf("unknown label_type %q", c.LabelType)
	}
	mode, ok := modesByName[c.Mode]
	if !ok {
		return chips.Config{}, fmt.Errorf("unknown mode %q", c.Mode)
	}

	return chips.Config{
		N:           c.Workers,
		M:           c.Slots,
		ImageryPath: c.ImageryPath,
		LabelPath:   c.LabelPath,
		ImageryType: imageryType,
		LabelType:   labelType,
		Mode:        mode,
		WindowSize:  c.WindowSize,
		Bands:       c.Bands,
	}, nil
}
