package idb

import (
	"sort"
	"strconv"
	"strings"

	"github.com/devicelab-dev/iossim/pkg/core"
)

// keyCodes maps named keys to USB HID usage codes.
var keyCodes = map[string]int{
	"enter":     40,
	"return":    40,
	"escape":    41,
	"backspace": 42,
	"delete":    42,
	"tab":       43,
	"space":     44,
	"f1":        58,
	"f2":        59,
	"f3":        60,
	"f4":        61,
	"home":      74,
	"end":       77,
	"right":     79,
	"left":      80,
	"down":      81,
	"up":        82,
}

// Buttons are the hardware buttons idb accepts.
var Buttons = []string{"APPLE_PAY", "HOME", "LOCK", "SIDE_BUTTON", "SIRI"}

// ResolveKey turns a key name or numeric keycode into the keycode idb expects.
// Names are case-insensitive.
func ResolveKey(key string) (string, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	if code, ok := keyCodes[k]; ok {
		return strconv.Itoa(code), nil
	}
	if _, err := strconv.Atoi(k); err == nil && k != "" {
		return k, nil
	}
	return "", core.ErrInvalidArgument.WithMessage("unknown key " + strconv.Quote(key) + "; use a keycode or one of: " + strings.Join(KeyNames(), ", "))
}

// KeyNames returns the supported key names, sorted.
func KeyNames() []string {
	names := make([]string, 0, len(keyCodes))
	for name := range keyCodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateButton normalizes a button name to upper case and checks it.
func ValidateButton(name string) (string, error) {
	b := strings.ToUpper(strings.TrimSpace(name))
	for _, valid := range Buttons {
		if b == valid {
			return b, nil
		}
	}
	return "", core.ErrInvalidButton.WithMessage("invalid button " + strconv.Quote(name) + "; choose from: " + strings.Join(Buttons, ", "))
}
