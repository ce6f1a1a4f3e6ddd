package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override, e.g. WAVEBRIDGE_AUDIO_DEVICE_ID
const EnvPrefix = "WAVEBRIDGE"

type Config struct {
	Hotkey         string         `json:"hotkey"`
	HotkeyDarwin   string         `json:"hotkey_darwin" split_words:"true"`
	Audio          AudioConfig    `json:"audio"`
	Capture        CaptureConfig  `json:"capture"`
	Analyzer       AnalyzerConfig `json:"analyzer"`
	ConsumerBuffer int            `json:"consumer_buffer" split_words:"true"`
	LogLevel       string         `json:"log_level" split_words:"true"`

	// path is the file the config was loaded from; Save writes back to it
	path string
}

type AudioConfig struct {
	DeviceID        string `json:"device_id" split_words:"true"`
	SampleRate      int    `json:"sample_rate" split_words:"true"` // Hz
	FramesPerBuffer int    `json:"frames_per_buffer" split_words:"true"`
	MinCaptureSize  int    `json:"min_capture_size" split_words:"true"`
	MaxCaptureSize  int    `json:"max_capture_size" split_words:"true"`
	MaxCaptureRate  int    `json:"max_capture_rate" split_words:"true"` // millihertz
}

type CaptureConfig struct {
	SampleRate   int  `json:"sample_rate" split_words:"true"` // nominal, Hz
	StartEnabled bool `json:"start_enabled" split_words:"true"`
}

type AnalyzerConfig struct {
	Window        int `json:"window" split_words:"true"`
	Buckets       int `json:"buckets" split_words:"true"`
	SpectrumWidth int `json:"spectrum_width" split_words:"true"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Hotkey:       "Ctrl+Alt+V",
		HotkeyDarwin: "Ctrl+Option+V",
		Audio: AudioConfig{
			DeviceID:        "",
			SampleRate:      44100,
			FramesPerBuffer: 256,
			MinCaptureSize:  128,
			MaxCaptureSize:  1024,
			MaxCaptureRate:  20000,
		},
		Capture: CaptureConfig{
			SampleRate:   44100,
			StartEnabled: true,
		},
		Analyzer: AnalyzerConfig{
			Window:        4096,
			Buckets:       16,
			SpectrumWidth: 32,
		},
		ConsumerBuffer: 8,
		LogLevel:       "info",
	}
}

// Load reads the config from disk, applies .env and environment overrides,
// and validates the result
func Load() (*Config, error) {
	return LoadFrom(configPath())
}

// LoadFrom is Load with an explicit config file path
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	// Load existing config if it exists
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the capture pipeline cannot run with
func (c *Config) Validate() error {
	a := c.Audio
	switch {
	case a.SampleRate <= 0:
		return fmt.Errorf("audio.sample_rate must be positive, got %d", a.SampleRate)
	case a.FramesPerBuffer < 1:
		return fmt.Errorf("audio.frames_per_buffer must be at least 1, got %d", a.FramesPerBuffer)
	case a.MinCaptureSize < 1:
		return fmt.Errorf("audio.min_capture_size must be at least 1, got %d", a.MinCaptureSize)
	case a.MaxCaptureSize < a.MinCaptureSize:
		return fmt.Errorf("audio capture size range [%d, %d] is inverted", a.MinCaptureSize, a.MaxCaptureSize)
	case a.MaxCaptureRate <= 0:
		return fmt.Errorf("audio.max_capture_rate must be positive, got %d", a.MaxCaptureRate)
	case c.Capture.SampleRate <= 0:
		return fmt.Errorf("capture.sample_rate must be positive, got %d", c.Capture.SampleRate)
	case c.Analyzer.Window < 2:
		return fmt.Errorf("analyzer.window must be at least 2, got %d", c.Analyzer.Window)
	case c.Analyzer.Buckets < 1 || c.Analyzer.SpectrumWidth < 1:
		return fmt.Errorf("analyzer.buckets and analyzer.spectrum_width must be at least 1")
	case c.ConsumerBuffer < 1:
		return fmt.Errorf("consumer_buffer must be at least 1, got %d", c.ConsumerBuffer)
	}
	return nil
}

// PlatformHotkey returns the appropriate hotkey for the current platform.
// Empty disables the hotkey.
func (c *Config) PlatformHotkey() string {
	if runtime.GOOS == "darwin" && c.HotkeyDarwin != "" {
		return c.HotkeyDarwin
	}
	return c.Hotkey
}

// Save writes the config back to the file it was loaded from, or to the
// platform path when it was not loaded from disk
func (c *Config) Save() error {
	if c.path != "" {
		return c.SaveTo(c.path)
	}
	return c.SaveTo(configPath())
}

// SaveTo is Save with an explicit config file path
func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Path returns the platform-specific config file path
func Path() string {
	return configPath()
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "wavebridge", "config.json")
}
