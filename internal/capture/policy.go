package capture

import (
	"time"

	"github.com/keytally/keytally/internal/keymap"
	"github.com/keytally/keytally/internal/storage"
)

// Policy decides, per raw event, whether a record is produced and how it is
// classified. Checks short-circuit in order: bare modifier press, excluded
// frontmost application, secure input active.
type Policy struct {
	excluded map[string]bool
	resolver AppResolver
	secure   SecureInputProbe
}

// NewPolicy creates a Policy. excluded is the set of bundle identifiers
// never recorded; resolver and secure may be nil, which disables the
// corresponding check.
func NewPolicy(excluded map[string]bool, resolver AppResolver, secure SecureInputProbe) *Policy {
	if excluded == nil {
		excluded = map[string]bool{}
	}
	return &Policy{excluded: excluded, resolver: resolver, secure: secure}
}

// Evaluate applies the admission checks to one raw event. It returns the
// constructed KeyEvent and true when the event should be recorded, or
// (nil, false) when it must be dropped.
func (p *Policy) Evaluate(raw RawEvent) (*storage.KeyEvent, bool) {
	if keymap.IsModifier(raw.KeyCode) {
		return nil, false
	}

	// App identity is resolved before the secure check so events from
	// credential tools are rejected regardless of secure-input state.
	var appName, bundleID string
	var appKnown bool
	if p.resolver != nil {
		appName, bundleID, appKnown = p.resolver.FrontmostApp()
	}
	if appKnown && p.excluded[bundleID] {
		return nil, false
	}

	if p.secure != nil && p.secure() {
		return nil, false
	}

	ts := raw.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	event := &storage.KeyEvent{
		Timestamp:  ts,
		KeyCode:    raw.KeyCode,
		KeyName:    keymap.Name(raw.KeyCode),
		Modifiers:  raw.Modifiers,
		IsShortcut: raw.Modifiers.IsShortcut(),
	}
	if appKnown {
		event.AppName = appName
		event.AppBundleID = bundleID
	}

	return event, true
}
