// Package ui models the accessibility elements reported by idb describe-all
// and provides lookup and summary rendering over them.
package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/devicelab-dev/iossim/pkg/gesture"
)

// RoleApplication is the role of the root application element.
const RoleApplication = "AXApplication"

// Element is one accessibility node from idb ui describe-all --json.
type Element struct {
	Label    string        `json:"AXLabel,omitempty"`
	Title    string        `json:"title,omitempty"`
	Value    string        `json:"AXValue,omitempty"`
	UniqueID string        `json:"AXUniqueId,omitempty"`
	Role     string        `json:"role,omitempty"`
	Type     string        `json:"type,omitempty"`
	Frame    gesture.Frame `json:"frame"`
	Enabled  *bool         `json:"enabled,omitempty"`
}

// IsEnabled reports the enabled flag; a missing flag counts as enabled.
func (e Element) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// Center returns the tap point for the element.
func (e Element) Center() gesture.Point {
	return e.Frame.Center()
}

// Text returns the first non-empty of label, title, value.
func (e Element) Text() string {
	switch {
	case e.Label != "":
		return e.Label
	case e.Title != "":
		return e.Title
	default:
		return e.Value
	}
}

// DisplayRole returns the element type, falling back to role, then "?".
func (e Element) DisplayRole() string {
	switch {
	case e.Type != "":
		return e.Type
	case e.Role != "":
		return e.Role
	default:
		return "?"
	}
}

// Snapshot is a point-in-time list of elements plus the raw tool output.
type Snapshot struct {
	Elements []Element
	Raw      json.RawMessage
}

// Decode parses describe-all output. idb prints a JSON array; some versions
// print one object per line, which is accepted too.
func Decode(data []byte) (*Snapshot, error) {
	trimmed := bytes.TrimSpace(data)
	snap := &Snapshot{Raw: json.RawMessage(trimmed)}
	if len(trimmed) == 0 {
		return snap, nil
	}

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &snap.Elements); err != nil {
			return nil, fmt.Errorf("failed to parse describe-all output: %w", err)
		}
		return snap, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	for {
		var e Element
		err := dec.Decode(&e)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse describe-all output: %w", err)
		}
		snap.Elements = append(snap.Elements, e)
	}
	return snap, nil
}

// Application returns the AXApplication element, if present.
func (s *Snapshot) Application() (Element, bool) {
	for _, e := range s.Elements {
		if e.Role == RoleApplication {
			return e, true
		}
	}
	return Element{}, false
}

// ScreenSize returns the application frame size, or the default screen.
func (s *Snapshot) ScreenSize() gesture.Size {
	if app, ok := s.Application(); ok {
		size := app.Frame.Size()
		if size.Width > 0 && size.Height > 0 {
			return size
		}
	}
	return gesture.DefaultScreen
}

// Labeled returns the elements that have any of label, title, value.
func (s *Snapshot) Labeled() []Element {
	var out []Element
	for _, e := range s.Elements {
		if strings.TrimSpace(e.Text()) != "" {
			out = append(out, e)
		}
	}
	return out
}
