//go:build darwin

// Package hook provides the production KeyEventSource for macOS: a
// CGEventTap key-down tap, plus the frontmost-app, secure-input, and
// permission collaborators the capture policy needs.
package hook

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework AppKit -framework Carbon -framework ApplicationServices

#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>
#include <Carbon/Carbon.h>
#import <AppKit/AppKit.h>

extern CGEventRef keytallyEventCallback(CGEventTapProxy proxy, CGEventType type, CGEventRef event, void *refcon);

static CFMachPortRef keytallyCreateEventTap() {
	CGEventMask mask = CGEventMaskBit(kCGEventKeyDown);
	return CGEventTapCreate(
		kCGSessionEventTap,
		kCGHeadInsertEventTap,
		kCGEventTapOptionListenOnly,
		mask,
		keytallyEventCallback,
		NULL
	);
}

// Attaches the tap to the calling thread's run loop and returns that loop.
// Must run on the goroutine that will call keytallyRunLoopRun.
static CFRunLoopRef keytallyPrepareTap(CFMachPortRef tap) {
	CFRunLoopSourceRef source = CFMachPortCreateRunLoopSource(kCFAllocatorDefault, tap, 0);
	CFRunLoopRef loop = CFRunLoopGetCurrent();
	CFRunLoopAddSource(loop, source, kCFRunLoopCommonModes);
	CGEventTapEnable(tap, true);
	CFRelease(source);
	return loop;
}

static void keytallyRunLoopRun() {
	CFRunLoopRun();
}

static void keytallySetTapEnabled(CFMachPortRef tap, bool enabled) {
	CGEventTapEnable(tap, enabled);
}

static void keytallyStopRunLoop(CFRunLoopRef loop) {
	if (loop != NULL) {
		CFRunLoopStop(loop);
	}
}

static bool keytallyAXTrusted(bool prompt) {
	if (!prompt) {
		return AXIsProcessTrusted();
	}
	CFStringRef keys[] = { kAXTrustedCheckOptionPrompt };
	CFBooleanRef values[] = { kCFBooleanTrue };
	CFDictionaryRef options = CFDictionaryCreate(
		kCFAllocatorDefault,
		(const void **)keys, (const void **)values, 1,
		&kCFTypeDictionaryKeyCallBacks, &kCFTypeDictionaryValueCallBacks
	);
	bool trusted = AXIsProcessTrustedWithOptions(options);
	CFRelease(options);
	return trusted;
}

static bool keytallySecureInputEnabled() {
	return IsSecureEventInputEnabled();
}

// Returns 1 and fills the buffers when a frontmost app is resolvable.
static int keytallyFrontmostApp(char *name, int nameLen, char *bundleID, int bundleLen) {
	NSRunningApplication *app = [[NSWorkspace sharedWorkspace] frontmostApplication];
	if (app == nil) {
		return 0;
	}
	NSString *localized = app.localizedName;
	NSString *bundle = app.bundleIdentifier;
	if (localized != nil) {
		[localized getCString:name maxLength:nameLen encoding:NSUTF8StringEncoding];
	} else {
		name[0] = '\0';
	}
	if (bundle != nil) {
		[bundle getCString:bundleID maxLength:bundleLen encoding:NSUTF8StringEncoding];
	} else {
		bundleID[0] = '\0';
	}
	return 1;
}
*/
import "C"

import (
	"context"
	"errors"
	"sync"
	"time"
	"unsafe"

	"github.com/keytally/keytally/internal/capture"
	"github.com/keytally/keytally/internal/storage"
)

// The tap callback runs on the run-loop thread and needs package-level
// state to reach the active hook (cgo callbacks cannot close over Go values).
var (
	activeMu   sync.Mutex
	activeHook *EventTap
)

// EventTap implements capture.KeyEventSource on top of a CGEventTap owned
// by a dedicated run-loop goroutine.
type EventTap struct {
	events chan capture.RawEvent

	mu      sync.Mutex
	running bool
	paused  bool
	tap     C.CFMachPortRef
	loop    C.CFRunLoopRef
}

// NewEventTap creates an EventTap with a buffered delivery channel.
func NewEventTap() *EventTap {
	return &EventTap{events: make(chan capture.RawEvent, 128)}
}

// Events returns the delivery channel. It is closed by Stop.
func (h *EventTap) Events() <-chan capture.RawEvent {
	return h.events
}

// Start creates the tap and runs its run loop on a dedicated goroutine.
func (h *EventTap) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return nil
	}

	tap := C.keytallyCreateEventTap()
	if tap == C.CFMachPortRef(unsafe.Pointer(nil)) {
		return errors.New("hook: failed to create event tap (is input monitoring permission granted?)")
	}
	h.tap = tap
	h.running = true

	activeMu.Lock()
	activeHook = h
	activeMu.Unlock()

	go func() {
		loop := C.keytallyPrepareTap(tap)
		h.mu.Lock()
		h.loop = loop
		h.mu.Unlock()
		C.keytallyRunLoopRun()
	}()

	return nil
}

// Pause disables the tap without removing it. The registration and run
// loop stay in place.
func (h *EventTap) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running || h.paused {
		return
	}
	C.keytallySetTapEnabled(h.tap, C.bool(false))
	h.paused = true
}

// Resume re-enables a paused tap.
func (h *EventTap) Resume() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running || !h.paused {
		return
	}
	C.keytallySetTapEnabled(h.tap, C.bool(true))
	h.paused = false
}

// Stop disables the tap, stops the run loop, and closes the event channel.
func (h *EventTap) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return nil
	}

	C.keytallySetTapEnabled(h.tap, C.bool(false))
	C.keytallyStopRunLoop(h.loop)
	h.running = false

	activeMu.Lock()
	activeHook = nil
	activeMu.Unlock()

	close(h.events)
	return nil
}

// deliver forwards one callback event onto the channel without blocking the
// tap thread. The OS force-disables taps that stall, so a full channel
// drops the event.
func (h *EventTap) deliver(ev capture.RawEvent) {
	select {
	case h.events <- ev:
	default:
	}
}

//export keytallyEventCallback
func keytallyEventCallback(proxy C.CGEventTapProxy, eventType C.CGEventType, event C.CGEventRef, refcon unsafe.Pointer) C.CGEventRef {
	if eventType != C.kCGEventKeyDown {
		return event
	}

	activeMu.Lock()
	h := activeHook
	activeMu.Unlock()
	if h == nil {
		return event
	}

	keyCode := int(C.CGEventGetIntegerValueField(event, C.kCGKeyboardEventKeycode))
	flags := uint64(C.CGEventGetFlags(event))

	var mods storage.Modifier
	if flags&uint64(C.kCGEventFlagMaskCommand) != 0 {
		mods |= storage.ModCommand
	}
	if flags&uint64(C.kCGEventFlagMaskControl) != 0 {
		mods |= storage.ModControl
	}
	if flags&uint64(C.kCGEventFlagMaskAlternate) != 0 {
		mods |= storage.ModOption
	}
	if flags&uint64(C.kCGEventFlagMaskShift) != 0 {
		mods |= storage.ModShift
	}
	if flags&uint64(C.kCGEventFlagMaskSecondaryFn) != 0 {
		mods |= storage.ModFunction
	}

	h.deliver(capture.RawEvent{
		KeyCode:   keyCode,
		Modifiers: mods,
		Time:      time.Now(),
	})

	return event
}

// WorkspaceResolver resolves the frontmost application via NSWorkspace.
type WorkspaceResolver struct{}

// FrontmostApp implements capture.AppResolver.
func (WorkspaceResolver) FrontmostApp() (string, string, bool) {
	var name [256]C.char
	var bundleID [256]C.char
	ok := C.keytallyFrontmostApp(&name[0], 256, &bundleID[0], 256)
	if ok == 0 {
		return "", "", false
	}
	return C.GoString(&name[0]), C.GoString(&bundleID[0]), true
}

// SecureInput reports whether system-wide secure text entry is active.
func SecureInput() bool {
	return bool(C.keytallySecureInputEnabled())
}

// AXPermission probes the accessibility permission the event tap requires.
type AXPermission struct{}

// Granted implements capture.PermissionProbe without prompting.
func (AXPermission) Granted() bool {
	return bool(C.keytallyAXTrusted(C.bool(false)))
}

// Request triggers the native permission prompt.
func (AXPermission) Request() {
	C.keytallyAXTrusted(C.bool(true))
}
