package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported is returned by New on platforms without a global hotkey backend
var ErrUnsupported = errors.New("global hotkeys are not supported on this platform")

// Manager defines the interface for global hotkey management
type Manager interface {
	Register(accel string, callback func(pressed bool)) error
	Unregister(accel string) error
	Close() error
}

// Modifier is a bit set of held modifier keys
type Modifier uint8

const (
	Ctrl Modifier = 1 << iota
	Alt
	Shift
	Super
)

// Accelerator is a parsed key combination such as "Ctrl+Alt+V"
type Accelerator struct {
	Modifiers Modifier
	// Key is the lower-cased key name: a letter, a digit, f1-f12, or one of
	// space, return, tab, escape
	Key string
}

var modifierNames = map[string]Modifier{
	"ctrl":    Ctrl,
	"control": Ctrl,
	"alt":     Alt,
	"option":  Alt,
	"shift":   Shift,
	"super":   Super,
	"cmd":     Super,
	"command": Super,
	"meta":    Super,
}

var namedKeys = map[string]string{
	"space":  "space",
	"return": "return",
	"enter":  "return",
	"tab":    "tab",
	"escape": "escape",
	"esc":    "escape",
}

// Parse reads an accelerator like "Alt+Shift+V". Names are case-insensitive
// and exactly one non-modifier key is required.
func Parse(accel string) (Accelerator, error) {
	var a Accelerator
	if strings.TrimSpace(accel) == "" {
		return a, fmt.Errorf("empty hotkey")
	}

	for _, part := range strings.Split(accel, "+") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			return a, fmt.Errorf("hotkey %q: empty key name", accel)
		}
		if mod, ok := modifierNames[name]; ok {
			a.Modifiers |= mod
			continue
		}
		key, ok := keyName(name)
		if !ok {
			return a, fmt.Errorf("hotkey %q: unknown key %q", accel, part)
		}
		if a.Key != "" {
			return a, fmt.Errorf("hotkey %q: more than one key", accel)
		}
		a.Key = key
	}

	if a.Key == "" {
		return a, fmt.Errorf("hotkey %q: no key besides modifiers", accel)
	}
	return a, nil
}

func keyName(name string) (string, bool) {
	if key, ok := namedKeys[name]; ok {
		return key, true
	}
	if len(name) == 1 && (name[0] >= 'a' && name[0] <= 'z' || name[0] >= '0' && name[0] <= '9') {
		return name, true
	}
	if len(name) >= 2 && name[0] == 'f' {
		var n int
		if _, err := fmt.Sscanf(name[1:], "%d", &n); err == nil && n >= 1 && n <= 12 && fmt.Sprint(n) == name[1:] {
			return name, true
		}
	}
	return "", false
}
