package chips

import "github.com/jamesmcclain/chips/internal/raster"

// Config is the validated, immutable session configuration produced by
// Start's arguments. Once a Session is running, Config is written once and
// read by every worker goroutine without synchronization — it never changes
// after the worker pool is spawned.
type Config struct {
	// N is the number of reader worker goroutines, and the number of
	// imagery (and, if LabelPath is set, label) dataset handles opened.
	N int
	// M is the number of slots in the ring.
	M int
	// ImageryPath is the raster backend dataset name/URI for imagery.
	ImageryPath string
	// LabelPath, if non-empty, is the dataset name/URI for labels.
	LabelPath string
	// ImageryType is the pixel data type imagery is read as.
	ImageryType raster.PixelType
	// LabelType is the pixel data type labels are read as.
	LabelType raster.PixelType
	// Mode is the mode to start in: Training, Evaluation, or Inference.
	Mode Mode
	// WindowSize is the square chip edge length in pixels.
	WindowSize int
	// Bands is the ordered, 1-based list of imagery band indices to read.
	// A private copy is kept on the Config; the caller's slice may be
	// reused or mutated after Start returns.
	Bands []int
}

// HasLabel reports whether a companion label raster is configured.
func (c *Config) HasLabel() bool {
	return c.LabelPath != ""
}

// BandCount returns the number of imagery bands read per chip.
func (c *Config) BandCount() int {
	return len(c.Bands)
}

// imageryBufSize returns the byte size of one slot's imagery buffer.
func (c *Config) imageryBufSize() (int, error) {
	word, err := c.ImageryType.WordSize()
	if err != nil {
		return 0, err
	}
	return word * c.BandCount() * c.WindowSize * c.WindowSize, nil
}

// labelBufSize returns the byte size of one slot's label buffer.
func (c *Config) labelBufSize() (int, error) {
	word, err := c.LabelType.WordSize()
	if err != nil {
		return 0, err
	}
	return word * c.WindowSize * c.WindowSize, nil
}

// validate checks the configuration errors that spec.md §7 calls fatal at
// Start: bad mode code, zero window_size, unsupported data type, N=0, M=0.
func (c *Config) validate() error {
	if c.N <= 0 {
		return &ConfigError{Field: "N", Reason: "must be positive"}
	}
	if c.M <= 0 {
		return &ConfigError{Field: "M", Reason: "must be positive"}
	}
	if c.WindowSize <= 0 {
		return &ConfigError{Field: "WindowSize", Reason: "must be positive"}
	}
	if len(c.Bands) == 0 {
		return &ConfigError{Field: "Bands", Reason: "must be non-empty"}
	}
	if c.ImageryPath == "" {
		return &ConfigError{Field: "ImageryPath", Reason: "must be set"}
	}
	switch c.Mode {
	case Training, Evaluation, Inference:
	default:
		return &ConfigError{Field: "Mode", Reason: "must be Training, Evaluation, or Inference"}
	}
	if _, err := c.ImageryType.WordSize(); err != nil {
		return &ConfigError{Field: "ImageryType", Reason: err.Error()}
	}
	if c.HasLabel() {
		if _, err := c.LabelType.WordSize(); err != nil {
			return &ConfigError{Field: "LabelType", Reason: err.Error()}
		}
	}
	return nil
}
