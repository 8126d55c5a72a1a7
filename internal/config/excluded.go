package config

// DefaultExcludedBundleIDs returns the bundle identifiers of applications
// whose keystrokes are never recorded, regardless of secure-input state.
// These are credential tools; recording anything while they are frontmost
// would defeat the point of the secure-input check.
func DefaultExcludedBundleIDs() []string {
	return []string{
		"com.1password.1password",
		"com.agilebits.onepassword7",
		"com.lastpass.LastPass",
		"com.bitwarden.desktop",
		"com.apple.keychainaccess",
	}
}
