package framering

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	// DefaultRingSize is the number of frame resources (triple buffering).
	DefaultRingSize = 3

	// DefaultPassCount is the number of pass records per slot.
	DefaultPassCount = 1

	// DefaultStallWarnThreshold is the stall length that is logged at warn level.
	DefaultStallWarnThreshold = 100 * time.Millisecond
)

// Duration is a time.Duration that reads and writes as a string ("250ms")
// in configuration files.
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Viewport is the render target size in pixels.
type Viewport struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// Aspect returns width divided by height.
func (v Viewport) Aspect() float32 {
	if v.Height == 0 {
		return 1
	}
	return float32(v.Width) / float32(v.Height)
}

// Lens describes the perspective projection.
type Lens struct {
	// FovY is the vertical field of view in radians.
	FovY float32 `toml:"fov_y"`
	Near float32 `toml:"near"`
	Far  float32 `toml:"far"`
}

// Config is the driver configuration.
type Config struct {
	// RingSize is the number of frame resources. Fixed for the driver's lifetime.
	RingSize int `toml:"ring_size"`

	// MaxObjects and MaxMaterials size the per-slot constant buffers.
	// Zero sizes them to the scene handed to NewDriver.
	MaxObjects   int `toml:"max_objects"`
	MaxMaterials int `toml:"max_materials"`

	// PassCount is the number of per-pass records in each slot.
	PassCount int `toml:"pass_count"`

	// FenceTimeout bounds the Synchronize wait. Zero waits forever.
	FenceTimeout Duration `toml:"fence_timeout"`

	// StallWarnThreshold is the stall duration logged at warn level.
	StallWarnThreshold Duration `toml:"stall_warn_threshold"`

	// RowMajorConstants transposes every matrix before packing, for
	// shaders that read constants row-major.
	RowMajorConstants bool `toml:"row_major_constants"`

	Viewport     Viewport   `toml:"viewport"`
	Lens         Lens       `toml:"lens"`
	ClearColor   [4]float32 `toml:"clear_color"`
	AmbientLight [4]float32 `toml:"ambient_light"`
}

// DefaultConfig returns the demo configuration: three frame
// resources, an 800x600 viewport and a 45 degree lens from 1 to 1000.
func DefaultConfig() Config {
	return Config{
		RingSize:           DefaultRingSize,
		PassCount:          DefaultPassCount,
		StallWarnThreshold: Duration(DefaultStallWarnThreshold),
		Viewport:           Viewport{Width: 800, Height: 600},
		Lens:               Lens{FovY: 0.25 * math.Pi, Near: 1, Far: 1000},
		ClearColor:         [4]float32{0.690196097, 0.768627524, 0.870588303, 1}, // light steel blue
		AmbientLight:       [4]float32{0.25, 0.25, 0.35, 1},
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.RingSize < 1:
		return fmt.Errorf("%w: %w (got %d)", ErrInvalidConfig, ErrInvalidRingSize, c.RingSize)
	case c.MaxObjects < 0 || c.MaxMaterials < 0:
		return fmt.Errorf("%w: negative capacity", ErrInvalidConfig)
	case c.PassCount < 1:
		return fmt.Errorf("%w: pass count must be at least 1", ErrInvalidConfig)
	case c.FenceTimeout < 0:
		return fmt.Errorf("%w: negative fence timeout", ErrInvalidConfig)
	case c.Viewport.Width <= 0 || c.Viewport.Height <= 0:
		return fmt.Errorf("%w: viewport %dx%d", ErrInvalidConfig, c.Viewport.Width, c.Viewport.Height)
	case c.Lens.Near <= 0 || c.Lens.Near >= c.Lens.Far:
		return fmt.Errorf("%w: lens near %v far %v", ErrInvalidConfig, c.Lens.Near, c.Lens.Far)
	}
	return nil
}

// ParseConfig decodes TOML over DefaultConfig. Keys not present in data
// keep their defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("framering: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a TOML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("framering: read config: %w", err)
	}
	return ParseConfig(data)
}

// Option configures a Driver during creation.
//
// Example:
//
//	d, err := framering.NewDriver(dev, scene,
//	    framering.WithRingSize(2),
//	    framering.WithFenceTimeout(2*time.Second))
type Option func(*Config)

// WithConfig replaces the whole configuration. Options after it still apply.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// WithRingSize sets the number of frame resources.
func WithRingSize(n int) Option {
	return func(c *Config) {
		c.RingSize = n
	}
}

// WithCapacity sets the per-slot object and material buffer capacity.
func WithCapacity(objects, materials int) Option {
	return func(c *Config) {
		c.MaxObjects = objects
		c.MaxMaterials = materials
	}
}

// WithFenceTimeout bounds the Synchronize wait. A GPU that does not reach
// the slot's marker in time makes the frame fail with ErrDeviceLost.
func WithFenceTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.FenceTimeout = Duration(d)
	}
}

// WithStallWarnThreshold sets the stall duration logged at warn level.
func WithStallWarnThreshold(d time.Duration) Option {
	return func(c *Config) {
		c.StallWarnThreshold = Duration(d)
	}
}

// WithViewport sets the render target size.
func WithViewport(width, height int) Option {
	return func(c *Config) {
		c.Viewport = Viewport{Width: width, Height: height}
	}
}

// WithLens sets the projection parameters.
func WithLens(fovY, near, far float32) Option {
	return func(c *Config) {
		c.Lens = Lens{FovY: fovY, Near: near, Far: far}
	}
}

// WithRowMajorConstants transposes matrices before packing.
func WithRowMajorConstants(enabled bool) Option {
	return func(c *Config) {
		c.RowMajorConstants = enabled
	}
}

// WithClearColor sets the back buffer clear color.
func WithClearColor(rgba [4]float32) Option {
	return func(c *Config) {
		c.ClearColor = rgba
	}
}
