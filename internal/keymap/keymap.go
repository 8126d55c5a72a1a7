// Package keymap translates macOS virtual key codes into stable key names.
package keymap

import "strconv"

// Modifier key codes, both sides.
const (
	codeCommand      = 55
	codeRightCommand = 54
	codeShift        = 56
	codeRightShift   = 60
	codeCapsLock     = 57
	codeOption       = 58
	codeRightOption  = 61
	codeControl      = 59
	codeRightControl = 62
	codeFunction     = 63
)

// keyNames maps macOS virtual key codes to human-readable labels.
var keyNames = map[int]string{
	// Letters
	0: "A", 1: "S", 2: "D", 3: "F", 4: "H", 5: "G",
	6: "Z", 7: "X", 8: "C", 9: "V", 11: "B",
	12: "Q", 13: "W", 14: "E", 15: "R", 16: "Y", 17: "T",
	31: "O", 32: "U", 34: "I", 35: "P", 37: "L", 38: "J",
	40: "K", 45: "N", 46: "M",

	// Number row and punctuation
	18: "1", 19: "2", 20: "3", 21: "4", 22: "6", 23: "5",
	24: "=", 25: "9", 26: "7", 27: "-", 28: "8", 29: "0",
	30: "]", 33: "[", 39: "'", 41: ";", 42: "\\",
	43: ",", 44: "/", 47: ".", 50: "`",

	// Special keys
	36: "Return", 48: "Tab", 49: "Space", 51: "Delete", 53: "Escape",
	codeCommand: "Command", codeShift: "Shift", codeCapsLock: "CapsLock",
	codeOption: "Option", codeControl: "Control",
	codeRightCommand: "RightCommand", codeRightShift: "RightShift",
	codeRightOption: "RightOption", codeRightControl: "RightControl",
	codeFunction: "Function",

	// Function keys
	122: "F1", 120: "F2", 99: "F3", 118: "F4", 96: "F5", 97: "F6",
	98: "F7", 100: "F8", 101: "F9", 109: "F10", 103: "F11", 111: "F12",
	105: "F13", 107: "F14", 113: "F15", 106: "F16", 64: "F17",
	79: "F18", 80: "F19", 90: "F20",

	// Arrows
	123: "←", 124: "→", 125: "↓", 126: "↑",

	// Navigation and media
	115: "Home", 119: "End", 116: "PageUp", 121: "PageDown",
	117: "ForwardDelete", 114: "Help",
	74: "Mute", 73: "VolumeDown", 72: "VolumeUp",

	// Keypad
	82: "Num0", 83: "Num1", 84: "Num2", 85: "Num3", 86: "Num4",
	87: "Num5", 88: "Num6", 89: "Num7", 91: "Num8", 92: "Num9",
	65: "NumDecimal", 67: "Num*", 69: "Num+", 71: "NumClear",
	75: "Num/", 76: "NumEnter", 78: "Num-", 81: "Num=",
}

// modifierCodes is the closed set of physical modifier key codes.
var modifierCodes = map[int]bool{
	codeCommand: true, codeRightCommand: true,
	codeShift: true, codeRightShift: true,
	codeCapsLock: true,
	codeOption:  true, codeRightOption: true,
	codeControl: true, codeRightControl: true,
	codeFunction: true,
}

// Name returns the label for a key code, or "Key<code>" for unmapped codes.
func Name(code int) string {
	if name, ok := keyNames[code]; ok {
		return name
	}
	return "Key" + strconv.Itoa(code)
}

// IsModifier reports whether code is a physical modifier key (either side).
func IsModifier(code int) bool {
	return modifierCodes[code]
}
