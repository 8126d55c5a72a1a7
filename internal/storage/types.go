package storage

import "time"

// Modifier is a bitmask over the modifier keys held during a key event.
type Modifier int

const (
	ModCommand Modifier = 1 << iota
	ModControl
	ModOption
	ModShift
	ModFunction
)

// shortcutMask covers the modifiers that make an event a shortcut.
// Shift and Function alone do not qualify.
const shortcutMask = ModCommand | ModControl | ModOption

// IsShortcut reports whether the mask contains command, control, or option.
func (m Modifier) IsShortcut() bool {
	return m&shortcutMask != 0
}

// String renders the mask as modifier glyphs in the conventional
// display order: ⌃⌥⇧⌘fn.
func (m Modifier) String() string {
	var s string
	if m&ModControl != 0 {
		s += "⌃"
	}
	if m&ModOption != 0 {
		s += "⌥"
	}
	if m&ModShift != 0 {
		s += "⇧"
	}
	if m&ModCommand != 0 {
		s += "⌘"
	}
	if m&ModFunction != 0 {
		s += "fn"
	}
	return s
}

// KeyEvent is one recorded keystroke. ID is zero until the event has been
// persisted; the store assigns it on Append. AppName and AppBundleID are
// empty together when no frontmost application was resolvable.
type KeyEvent struct {
	ID          int64
	Timestamp   time.Time
	KeyCode     int
	KeyName     string
	Modifiers   Modifier
	IsShortcut  bool
	AppName     string
	AppBundleID string
}

// DisplayString is the modifier-glyph prefix followed by the key name,
// e.g. "⌘C", or just the key name for an unmodified key.
func (e KeyEvent) DisplayString() string {
	return e.Modifiers.String() + e.KeyName
}

// HourlyCount pairs an hour of the day (0-23) with its event count.
// Hours with no events are omitted from query results.
type HourlyCount struct {
	Hour  int
	Count int64
}

// AppCount holds per-application keystroke and shortcut totals.
type AppCount struct {
	AppName    string
	Keystrokes int64
	Shortcuts  int64
}

// KeyCount pairs a key name with its press count.
type KeyCount struct {
	KeyName string
	Count   int64
}

// ShortcutCount is one (key, modifiers) shortcut grouping with its count.
// Display is the glyph-prefixed label, e.g. "⌘C".
type ShortcutCount struct {
	Display   string
	KeyName   string
	Modifiers Modifier
	Count     int64
}

// Stats holds aggregate totals for the whole event log.
type Stats struct {
	TotalEvents    int64
	TotalShortcuts int64
	OldestEvent    time.Time
	NewestEvent    time.Time
	TopApps        []AppCount
}
