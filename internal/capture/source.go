// Package capture runs the keystroke pipeline: it receives raw key-down
// events from an injected OS hook, filters and classifies them, and hands
// accepted events to storage through a bounded async writer.
package capture

import (
	"context"
	"time"

	"github.com/keytally/keytally/internal/storage"
)

// RawEvent is one key-down delivered by a KeyEventSource. Time may be zero,
// in which case the pipeline stamps the event on evaluation.
type RawEvent struct {
	KeyCode   int
	Modifiers storage.Modifier
	Time      time.Time
}

// KeyEventSource abstracts the OS-level keyboard hook so the session can be
// driven by synthetic events in tests. Pause and Resume toggle delivery
// without tearing down the hook registration; Stop tears it down.
type KeyEventSource interface {
	Start(ctx context.Context) error
	Stop() error
	Pause()
	Resume()
	Events() <-chan RawEvent
}

// AppResolver reports the currently frontmost application. ok is false, and
// both strings empty, when no frontmost app is resolvable.
type AppResolver interface {
	FrontmostApp() (name, bundleID string, ok bool)
}

// SecureInputProbe reports whether the system-wide secure text entry mode
// is active. It is polled at the moment of each event, never cached.
type SecureInputProbe func() bool

// PermissionProbe checks and requests the OS capture permission.
type PermissionProbe interface {
	Granted() bool
	Request()
}
