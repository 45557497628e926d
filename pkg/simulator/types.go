package simulator

import "strings"

// Simulator states reported by simctl.
const (
	StateBooted   = "Booted"
	StateShutdown = "Shutdown"
)

// RuntimePrefix is stripped from simctl runtime identifiers for display.
const RuntimePrefix = "com.apple.CoreSimulator.SimRuntime."

// Device represents an available simulator from simctl list.
type Device struct {
	Name        string // e.g., "iPhone 16 Pro"
	UDID        string // e.g., "A1B2C3D4-E5F6-..."
	Runtime     string // e.g., "com.apple.CoreSimulator.SimRuntime.iOS-18-2"
	OSVersion   string // e.g., "18.2" (extracted from Runtime)
	State       string // "Shutdown", "Booted", etc.
	IsAvailable bool
}

// IsBooted returns true if the simulator is fully booted.
func (d Device) IsBooted() bool {
	return d.State == StateBooted
}

// RuntimeLabel returns the runtime without the CoreSimulator prefix, e.g. "iOS-18-2".
func (d Device) RuntimeLabel() string {
	return strings.TrimPrefix(d.Runtime, RuntimePrefix)
}

// DisplayState returns the state column shown by the list command.
func (d Device) DisplayState() string {
	if d.IsBooted() {
		return "● BOOTED"
	}
	return d.State
}
