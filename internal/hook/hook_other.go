//go:build !darwin

// Package hook provides the production KeyEventSource. Only macOS is
// supported; other platforms get a stub that refuses to start.
package hook

import (
	"context"
	"errors"

	"github.com/keytally/keytally/internal/capture"
)

// ErrUnsupported is returned on platforms without a keyboard hook.
var ErrUnsupported = errors.New("hook: keyboard capture is only supported on macOS")

// EventTap is a non-functional placeholder on this platform.
type EventTap struct {
	events chan capture.RawEvent
}

func NewEventTap() *EventTap {
	return &EventTap{events: make(chan capture.RawEvent)}
}

func (h *EventTap) Start(ctx context.Context) error { return ErrUnsupported }
func (h *EventTap) Stop() error                     { return nil }
func (h *EventTap) Pause()                          {}
func (h *EventTap) Resume()                         {}
func (h *EventTap) Events() <-chan capture.RawEvent { return h.events }

// WorkspaceResolver never resolves an app on this platform.
type WorkspaceResolver struct{}

func (WorkspaceResolver) FrontmostApp() (string, string, bool) { return "", "", false }

// SecureInput always reports false on this platform.
func SecureInput() bool { return false }

// AXPermission reports the permission as absent on this platform.
type AXPermission struct{}

func (AXPermission) Granted() bool { return false }
func (AXPermission) Request()      {}
