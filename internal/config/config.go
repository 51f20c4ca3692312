// Package config loads and watches handbox's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ayusman/handbox/internal/calibration"
	"github.com/ayusman/handbox/internal/mapping"
	"github.com/ayusman/handbox/internal/skeleton"
	"github.com/ayusman/handbox/internal/smoothing"
	"github.com/ayusman/handbox/internal/tracker"
)

// ErrInvalid is returned by Validate for values the processor cannot use.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full application configuration.
type Config struct {
	Display     DisplayConfig     `toml:"display"`
	Sensor      SensorConfig      `toml:"sensor"`
	Smoothing   SmoothingConfig   `toml:"smoothing"`
	Calibration CalibrationConfig `toml:"calibration"`
	Box         BoxConfig         `toml:"box"`
	Server      ServerConfig      `toml:"server"`
	Store       StoreConfig       `toml:"store"`
	Overlay     OverlayConfig     `toml:"overlay"`
	Camera      CameraConfig      `toml:"camera"`
	Hooks       HooksConfig       `toml:"hooks"`
}

// DisplayConfig is the rendering surface positions are mapped onto.
type DisplayConfig struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// SensorConfig describes the skeleton bridge.
type SensorConfig struct {
	// Command runs the bridge; its stdout carries one JSON frame per line.
	Command     []string `toml:"command"`
	ImageWidth  int      `toml:"image_width"`
	ImageHeight int      `toml:"image_height"`
}

// SmoothingConfig controls the hand position filter.
type SmoothingConfig struct {
	Window int     `toml:"window"`
	Mode   string  `toml:"mode"`
	Alpha  float64 `toml:"alpha"`
}

// CalibrationConfig controls the reach calibration.
type CalibrationConfig struct {
	Auto     bool          `toml:"auto"`
	Samples  int           `toml:"samples"`
	Interval time.Duration `toml:"interval"`
	Warmup   time.Duration `toml:"warmup"`
}

// BoxConfig controls the normalization box.
type BoxConfig struct {
	Inflation float64 `toml:"inflation"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr      string `toml:"addr"`
	StaticDir string `toml:"static_dir"`
}

// StoreConfig controls session recording.
type StoreConfig struct {
	Path   string `toml:"path"`
	Record bool   `toml:"record"`
}

// OverlayConfig controls the debug renderer.
type OverlayConfig struct {
	Enabled bool    `toml:"enabled"`
	Scale   float64 `toml:"scale"`
	FPS     int     `toml:"fps"`
}

// CameraConfig selects an optional webcam used as the overlay backdrop.
type CameraConfig struct {
	Enabled  bool `toml:"enabled"`
	DeviceID int  `toml:"device_id"`
}

// HooksConfig controls event hooks.
type HooksConfig struct {
	Enabled bool          `toml:"enabled"`
	Dir     string        `toml:"dir"`
	Timeout time.Duration `toml:"timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	cal := calibration.DefaultConfig()
	return &Config{
		Display: DisplayConfig{
			Width:  1728,
			Height: 972,
		},
		Sensor: SensorConfig{
			ImageWidth:  skeleton.DefaultConfig().DefaultImageWidth,
			ImageHeight: skeleton.DefaultConfig().DefaultImageHeight,
		},
		Smoothing: SmoothingConfig{
			Window: smoothing.DefaultWindowSize,
			Mode:   string(smoothing.ModeAverage),
			Alpha:  smoothing.DefaultAlpha,
		},
		Calibration: CalibrationConfig{
			Auto:     true,
			Samples:  cal.Samples,
			Interval: cal.SampleInterval,
			Warmup:   cal.Warmup,
		},
		Box: BoxConfig{
			Inflation: tracker.DefaultBoxInflation,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Store: StoreConfig{
			Path: DefaultStorePath(),
		},
		Overlay: OverlayConfig{
			Enabled: true,
			Scale:   0.5,
			FPS:     15,
		},
		Camera: CameraConfig{
			DeviceID: 0,
		},
		Hooks: HooksConfig{
			Enabled: true,
			Dir:     filepath.Join(DefaultDir(), "hooks"),
			Timeout: 5 * time.Second,
		},
	}
}

// DefaultDir returns ~/.handbox, or a relative .handbox if the home directory
// is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".handbox"
	}
	return filepath.Join(home, ".handbox")
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.toml")
}

// DefaultStorePath returns the default session database path.
func DefaultStorePath() string {
	return filepath.Join(DefaultDir(), "handbox.db")
}

// LoadConfig reads the configuration at configPath. A missing file is created
// with the defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := SaveConfig(configPath, config); err != nil {
			return config, err
		}
		return config, nil
	}

	return decode(configPath)
}

func decode(configPath string) (*Config, error) {
	config := DefaultConfig()
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return config, fmt.Errorf("failed to decode %s: %w", configPath, err)
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// SaveConfig writes config to configPath as TOML, creating the directory.
func SaveConfig(configPath string, config *Config) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(config)
}

// Validate checks values the processor would otherwise silently replace.
func (c *Config) Validate() error {
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fmt.Errorf("%w: display size %dx%d", ErrInvalid, c.Display.Width, c.Display.Height)
	}
	if c.Smoothing.Window < 1 {
		return fmt.Errorf("%w: smoothing window %d", ErrInvalid, c.Smoothing.Window)
	}
	if _, err := smoothing.ParseMode(c.Smoothing.Mode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Box.Inflation <= 0 {
		return fmt.Errorf("%w: box inflation %g", ErrInvalid, c.Box.Inflation)
	}
	if c.Calibration.Samples < 1 {
		return fmt.Errorf("%w: calibration samples %d", ErrInvalid, c.Calibration.Samples)
	}
	return nil
}

func (c *Config) mode() smoothing.Mode {
	mode, err := smoothing.ParseMode(c.Smoothing.Mode)
	if err != nil {
		return smoothing.ModeAverage
	}
	return mode
}

// Tracker returns the processor configuration.
func (c *Config) Tracker() tracker.Config {
	return tracker.Config{
		Display:        mapping.Size{Width: c.Display.Width, Height: c.Display.Height},
		WindowSize:     c.Smoothing.Window,
		Smoothing:      c.mode(),
		SmoothingAlpha: c.Smoothing.Alpha,
		BoxInflation:   c.Box.Inflation,
		AutoCalibrate:  c.Calibration.Auto,
		Calibration: calibration.Config{
			Samples:        c.Calibration.Samples,
			SampleInterval: c.Calibration.Interval,
			Warmup:         c.Calibration.Warmup,
		},
	}
}

// Tuning returns the values that may be applied to a running processor.
func (c *Config) Tuning() tracker.Tuning {
	return tracker.Tuning{
		WindowSize:     c.Smoothing.Window,
		Smoothing:      c.mode(),
		SmoothingAlpha: c.Smoothing.Alpha,
		BoxInflation:   c.Box.Inflation,
	}
}

// Skeleton returns the skeleton source configuration.
func (c *Config) Skeleton() skeleton.Config {
	return skeleton.Config{
		Command:            c.Sensor.Command,
		DefaultImageWidth:  c.Sensor.ImageWidth,
		DefaultImageHeight: c.Sensor.ImageHeight,
	}
}
