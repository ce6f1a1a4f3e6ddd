package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	expected := Default()
	expected.path = path
	assert.Equal(t, expected, cfg)
}

func TestSaveWritesBackToLoadedPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.json")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	cfg.Audio.DeviceID = "USB Microphone"
	require.NoError(t, cfg.Save())

	reloaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "USB Microphone", reloaded.Audio.DeviceID)

	_, err = os.Stat(Path())
	assert.True(t, os.IsNotExist(err), "default config path must not be written")
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.Audio.DeviceID = "USB Microphone"
	cfg.Capture.StartEnabled = false
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "USB Microphone", loaded.Audio.DeviceID)
	assert.False(t, loaded.Capture.StartEnabled)
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"audio":{"max_capture_size":2048}}`), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.Audio.MaxCaptureSize)
	assert.Equal(t, 128, cfg.Audio.MinCaptureSize)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("WAVEBRIDGE_AUDIO_DEVICE_ID", "Line In")
	t.Setenv("WAVEBRIDGE_AUDIO_MAX_CAPTURE_RATE", "10000")
	t.Setenv("WAVEBRIDGE_CAPTURE_START_ENABLED", "false")
	t.Setenv("WAVEBRIDGE_LOG_LEVEL", "debug")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "Line In", cfg.Audio.DeviceID)
	assert.Equal(t, 10000, cfg.Audio.MaxCaptureRate)
	assert.False(t, cfg.Capture.StartEnabled)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 1024, cfg.Audio.MaxCaptureSize)
}

func TestPlatformHotkey(t *testing.T) {
	t.Setenv("WAVEBRIDGE_HOTKEY", "Alt+Shift+W")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "Alt+Shift+W", cfg.Hotkey)

	if runtime.GOOS == "darwin" {
		assert.Equal(t, cfg.HotkeyDarwin, cfg.PlatformHotkey())
	} else {
		assert.Equal(t, "Alt+Shift+W", cfg.PlatformHotkey())
	}

	cfg.Hotkey, cfg.HotkeyDarwin = "", ""
	assert.Empty(t, cfg.PlatformHotkey())
}

func TestInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"inverted range", func(c *Config) { c.Audio.MinCaptureSize, c.Audio.MaxCaptureSize = 1024, 128 }},
		{"zero capture rate", func(c *Config) { c.Audio.MaxCaptureRate = 0 }},
		{"tiny window", func(c *Config) { c.Analyzer.Window = 1 }},
		{"no buckets", func(c *Config) { c.Analyzer.Buckets = 0 }},
		{"no consumer buffer", func(c *Config) { c.ConsumerBuffer = 0 }},
		{"zero nominal rate", func(c *Config) { c.Capture.SampleRate = 0 }},
	}

	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
