package ui

import (
	"fmt"
	"io"
	"strings"
)

// MaxSummaryElements caps the interactive elements listed in a summary.
const MaxSummaryElements = 15

var separator = strings.Repeat("─", 56)

var interactiveRoles = map[string]bool{
	"AXButton":           true,
	"AXTextField":        true,
	"AXSecureTextField":  true,
	"AXTextArea":         true,
	"AXPopUpButton":      true,
	"AXMenuItem":         true,
	"AXCell":             true,
	"AXLink":             true,
	"AXSwitch":           true,
	"AXSegmentedControl": true,
	"AXSlider":           true,
	"AXCheckBox":         true,
}

// IsInteractive reports whether the element is an enabled control.
func (e Element) IsInteractive() bool {
	return interactiveRoles[e.Role] && e.IsEnabled()
}

// Interactive returns the enabled interactive elements in list order.
func Interactive(elements []Element) []Element {
	var out []Element
	for _, e := range elements {
		if e.IsInteractive() {
			out = append(out, e)
		}
	}
	return out
}

// RenderSummary writes a compact accessibility summary under title.
func RenderSummary(w io.Writer, snap *Snapshot, title string) {
	fmt.Fprintf(w, "\n%s\n", separator)
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintln(w, separator)

	if app, ok := snap.Application(); ok {
		label := app.Label
		if label == "" {
			label = "?"
		}
		fmt.Fprintf(w, "  App    : %s\n", label)
	}
	fmt.Fprintf(w, "  Elements: %d\n", len(snap.Elements))

	interactive := Interactive(snap.Elements)
	if len(interactive) > 0 {
		fmt.Fprintf(w, "\n  Interactive (%d):\n", len(interactive))
		for i, e := range interactive {
			if i == MaxSummaryElements {
				fmt.Fprintf(w, "    … and %d more\n", len(interactive)-MaxSummaryElements)
				break
			}
			fmt.Fprintf(w, "    [%-22s] '%s'  →  tap%s\n", e.DisplayRole(), e.Text(), e.Center())
		}
	}
	fmt.Fprintln(w, separator)
}

// RenderElements writes every element with its frame, center, and state.
func RenderElements(w io.Writer, elements []Element) {
	fmt.Fprintln(w, "\nAll elements:")
	for _, e := range elements {
		state := "enabled"
		if !e.IsEnabled() {
			state = "disabled"
		}
		c := e.Center()
		fmt.Fprintf(w, "  [%-24s] '%s'  frame=(%.0f,%.0f,%.0f×%.0f)  center=(%.0f,%.0f)  %s\n",
			e.DisplayRole(), e.Text(),
			e.Frame.X, e.Frame.Y, e.Frame.Width, e.Frame.Height,
			c.X, c.Y, state)
	}
}

// RenderLabels writes the labeled elements, used when a lookup fails.
// With centers set, each line also carries the element's tap point.
func RenderLabels(w io.Writer, elements []Element, centers bool) {
	for _, e := range elements {
		text := e.Text()
		if text == "" {
			continue
		}
		if centers {
			c := e.Center()
			fmt.Fprintf(w, "  [%s] '%s'  center=(%.0f,%.0f)\n", e.DisplayRole(), text, c.X, c.Y)
			continue
		}
		fmt.Fprintf(w, "  [%s] '%s'\n", e.DisplayRole(), text)
	}
}
