package tray

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/getlantern/systray"
	"github.com/petems/wavebridge/internal/app"
	"github.com/petems/wavebridge/internal/config"
	"github.com/petems/wavebridge/internal/logging"
	"github.com/pkg/browser"
	"github.com/rs/zerolog"
)

// meterInterval is how often the level meter in the tray title is redrawn
const meterInterval = 100 * time.Millisecond

// UI is the system tray front end for the app
type UI struct {
	app     *app.App
	cfg     *config.Config
	version string
	commit  string
	log     zerolog.Logger

	mu     sync.Mutex
	status string

	// Menu items
	mEnabled *systray.MenuItem
	mDevices *systray.MenuItem
}

// Status update methods for the app to call
func (u *UI) SetIdle() {
	u.updateStatus("idle")
}

func (u *UI) SetCapturing() {
	u.updateStatus("capturing")
}

func (u *UI) SetDegraded() {
	u.updateStatus("degraded")
}

func (u *UI) SetError() {
	u.updateStatus("error")
}

// New creates the tray UI. The app is started once the tray is ready.
func New(application *app.App, cfg *config.Config, log zerolog.Logger, version, commit string) *UI {
	return &UI{
		app:     application,
		cfg:     cfg,
		version: version,
		commit:  commit,
		log:     log.With().Str("component", "tray").Logger(),
		status:  "idle",
	}
}

// SetApp sets the app reference (for circular dependency resolution)
func (u *UI) SetApp(application *app.App) {
	u.app = application
}

// Run blocks until the tray exits. It must be called from the main goroutine.
func (u *UI) Run(ctx context.Context) error {
	systray.Run(func() { u.onReady(ctx) }, u.onExit)
	return nil
}

func (u *UI) onReady(ctx context.Context) {
	if err := u.app.Start(ctx); err != nil {
		u.log.Error().Err(err).Msg("Failed to start capture")
	}
	u.render(nil)
	systray.SetTooltip("Audio waveform visualizer")

	// Build menu
	u.mEnabled = systray.AddMenuItemCheckbox("Visualizer", "Forward waveform frames", u.app.IsEnabled())
	systray.AddSeparator()

	u.mDevices = systray.AddMenuItem("Microphone", "Select audio device")
	u.buildDeviceMenu()

	systray.AddSeparator()
	mLogs := systray.AddMenuItem("Open Logs", "View application logs")
	mAbout := systray.AddMenuItem("About", "About WaveBridge")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	// Event loop
	go u.handleEvents(ctx, mLogs, mAbout, mQuit)
	go u.runMeter(ctx)
}

func (u *UI) handleEvents(ctx context.Context, mLogs, mAbout, mQuit *systray.MenuItem) {
	for {
		select {
		case <-ctx.Done():
			systray.Quit()
			return
		case <-u.mEnabled.ClickedCh:
			u.toggleEnabled()
		case <-mLogs.ClickedCh:
			u.openLogs()
		case <-mAbout.ClickedCh:
			u.showAbout()
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		}
	}
}

func (u *UI) runMeter(ctx context.Context) {
	ticker := time.NewTicker(meterInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			enabled := u.app.IsEnabled()
			// the hotkey toggles outside the menu
			if enabled != u.mEnabled.Checked() {
				if enabled {
					u.mEnabled.Check()
				} else {
					u.mEnabled.Uncheck()
					u.render(nil)
				}
			}
			if enabled {
				u.render(u.app.Levels())
			}
		}
	}
}

func (u *UI) buildDeviceMenu() {
	// Get devices from app
	devices, err := u.app.ListDevices()
	if err != nil {
		u.log.Error().Err(err).Msg("Failed to list audio devices")
		return
	}

	deviceItems := make(map[string]*systray.MenuItem)

	for _, dev := range devices {
		item := u.mDevices.AddSubMenuItem(dev.Name, "")
		if dev.ID == u.cfg.Audio.DeviceID || (u.cfg.Audio.DeviceID == "" && dev.Default) {
			item.Check()
		}
		deviceItems[dev.ID] = item

		go func(deviceID, deviceName string, menuItem *systray.MenuItem) {
			for {
				<-menuItem.ClickedCh
				// Uncheck all other items
				for id, itm := range deviceItems {
					if id != deviceID {
						itm.Uncheck()
					}
				}
				// Check this item
				menuItem.Check()
				u.log.Info().Str("device", deviceName).Msg("Changed audio device")
				if err := u.app.SetDevice(deviceID); err != nil {
					u.log.Error().Err(err).Msg("Failed to switch audio device")
				}
			}
		}(dev.ID, dev.Name, item)
	}
}

func (u *UI) toggleEnabled() {
	if u.app.Toggle() {
		u.mEnabled.Check()
	} else {
		u.mEnabled.Uncheck()
		u.render(nil)
	}
}

func (u *UI) openLogs() {
	if err := browser.OpenFile(logging.Path()); err != nil {
		u.log.Error().Err(err).Msg("Failed to open log file")
	}
}

func (u *UI) showAbout() {
	u.log.Info().Str("version", u.version).Str("commit", u.commit).Msg("WaveBridge audio waveform visualizer")
}

func (u *UI) onExit() {
	// Cleanup
}

func (u *UI) updateStatus(status string) {
	u.mu.Lock()
	u.status = status
	u.mu.Unlock()
	u.render(nil)
}

// render sets the tray title to the status emoji followed by the level meter
func (u *UI) render(levels []float64) {
	u.mu.Lock()
	status := u.status
	u.mu.Unlock()
	systray.SetTitle(title(status, levels))
}

func title(status string, levels []float64) string {
	if len(levels) == 0 {
		return fmt.Sprintf("🎚 %s", emojiForStatus(status))
	}
	return fmt.Sprintf("🎚 %s %s", emojiForStatus(status), levelBar(levels))
}

var bars = []rune("▁▂▃▄▅▆▇█")

// levelBar draws one block character per amplitude bucket
func levelBar(levels []float64) string {
	var b strings.Builder
	for _, l := range levels {
		idx := int(l * float64(len(bars)))
		if idx < 0 {
			idx = 0
		} else if idx >= len(bars) {
			idx = len(bars) - 1
		}
		b.WriteRune(bars[idx])
	}
	return b.String()
}

// emojiForStatus returns the appropriate status emoji
func emojiForStatus(status string) string {
	switch status {
	case "capturing":
		return "🟢" // Green - forwarding frames
	case "degraded":
		return "🟡" // Yellow - capture size rejected, running with defaults
	case "error":
		return "🔴" // Red - listener rejected, no frames will arrive
	case "idle":
		return "⚪️" // White - disabled
	default:
		return "⚪️"
	}
}
