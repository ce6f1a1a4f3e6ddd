//go:build linux

package hotkey

/*
#cgo pkg-config: x11
#include <X11/Xlib.h>
#include <X11/keysym.h>
#include <stdlib.h>

Display* displayPtr = NULL;

static int openDisplay() {
    if (displayPtr == NULL) {
        XInitThreads();
        displayPtr = XOpenDisplay(NULL);
    }
    return displayPtr != NULL;
}

// grabKey returns the grabbed keycode, or 0 on failure
int grabKey(const char* keysymName, unsigned int modifiers) {
    if (!openDisplay()) return 0;

    KeySym sym = XStringToKeysym(keysymName);
    if (sym == NoSymbol) return 0;
    KeyCode keycode = XKeysymToKeycode(displayPtr, sym);
    if (keycode == 0) return 0;

    Window root = DefaultRootWindow(displayPtr);
    XGrabKey(displayPtr, keycode, modifiers, root, False, GrabModeAsync, GrabModeAsync);
    // also grab with NumLock (Mod2) and CapsLock (Lock) held
    XGrabKey(displayPtr, keycode, modifiers | Mod2Mask, root, False, GrabModeAsync, GrabModeAsync);
    XGrabKey(displayPtr, keycode, modifiers | LockMask, root, False, GrabModeAsync, GrabModeAsync);
    XSelectInput(displayPtr, root, KeyPressMask | KeyReleaseMask);
    XSync(displayPtr, False);

    return keycode;
}

void ungrabKey(int keycode, unsigned int modifiers) {
    if (displayPtr == NULL) return;
    Window root = DefaultRootWindow(displayPtr);
    XUngrabKey(displayPtr, keycode, modifiers, root);
    XUngrabKey(displayPtr, keycode, modifiers | Mod2Mask, root);
    XUngrabKey(displayPtr, keycode, modifiers | LockMask, root);
    XSync(displayPtr, False);
}

int checkEvent(int* keycode, int* pressed) {
    if (displayPtr == NULL) return 0;

    XEvent event;
    if (XPending(displayPtr) > 0) {
        XNextEvent(displayPtr, &event);
        if (event.type == KeyPress || event.type == KeyRelease) {
            *keycode = event.xkey.keycode;
            *pressed = (event.type == KeyPress) ? 1 : 0;
            return 1;
        }
    }
    return 0;
}
*/
import "C"

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unsafe"
)

type grab struct {
	keycode   int
	modifiers uint
}

type linuxManager struct {
	mu        sync.Mutex
	callbacks map[int]func(bool)
	grabs     map[string]grab
	stop      chan struct{}
	done      chan struct{}
}

// New creates a new Linux hotkey manager using X11
func New() (Manager, error) {
	mgr := &linuxManager{
		callbacks: make(map[int]func(bool)),
		grabs:     make(map[string]grab),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	go mgr.eventLoop()

	return mgr, nil
}

// x11Modifiers maps to ShiftMask, ControlMask, Mod1Mask (Alt) and Mod4Mask (Super)
func x11Modifiers(m Modifier) uint {
	var mask uint
	if m&Shift != 0 {
		mask |= 1
	}
	if m&Ctrl != 0 {
		mask |= 4
	}
	if m&Alt != 0 {
		mask |= 8
	}
	if m&Super != 0 {
		mask |= 64
	}
	return mask
}

// x11Keysym returns the keysym name XStringToKeysym understands
func x11Keysym(key string) string {
	switch key {
	case "return":
		return "Return"
	case "tab":
		return "Tab"
	case "escape":
		return "Escape"
	}
	if key[0] == 'f' && len(key) > 1 {
		return strings.ToUpper(key)
	}
	return key
}

func (m *linuxManager) Register(accel string, callback func(pressed bool)) error {
	a, err := Parse(accel)
	if err != nil {
		return err
	}

	name := C.CString(x11Keysym(a.Key))
	defer C.free(unsafe.Pointer(name))

	modifiers := x11Modifiers(a.Modifiers)
	keycode := int(C.grabKey(name, C.uint(modifiers)))
	if keycode == 0 {
		return fmt.Errorf("failed to grab key %s", accel)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[keycode] = callback
	m.grabs[accel] = grab{keycode: keycode, modifiers: modifiers}
	return nil
}

func (m *linuxManager) eventLoop() {
	defer close(m.done)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			var keycode, pressed C.int
			if C.checkEvent(&keycode, &pressed) != 0 {
				m.mu.Lock()
				cb, ok := m.callbacks[int(keycode)]
				m.mu.Unlock()
				if ok {
					cb(pressed == 1)
				}
			}
		}
	}
}

func (m *linuxManager) Unregister(accel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.grabs[accel]
	if !ok {
		return fmt.Errorf("hotkey %s is not registered", accel)
	}
	C.ungrabKey(C.int(g.keycode), C.uint(g.modifiers))
	delete(m.grabs, accel)
	delete(m.callbacks, g.keycode)
	return nil
}

func (m *linuxManager) Close() error {
	close(m.stop)
	<-m.done
	return nil
}
