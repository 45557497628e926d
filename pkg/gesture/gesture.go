// Package gesture computes tap and swipe coordinates in screen points.
package gesture

import (
	"fmt"
	"math"
	"strings"
)

// Point is a screen location in points.
type Point struct {
	X float64
	Y float64
}

// String formats the point as "(x, y)" rounded to whole points.
func (p Point) String() string {
	return fmt.Sprintf("(%.0f, %.0f)", p.X, p.Y)
}

// Size is a screen or element extent in points.
type Size struct {
	Width  float64
	Height float64
}

// Frame represents element position and size.
type Frame struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the center point of the frame.
func (f Frame) Center() Point {
	return Point{X: f.X + f.Width/2, Y: f.Y + f.Height/2}
}

// Size returns the frame's extent.
func (f Frame) Size() Size {
	return Size{Width: f.Width, Height: f.Height}
}

// DefaultScreen is used when the UI tree has no application frame.
var DefaultScreen = Size{Width: 390, Height: 844}

// Direction is a scroll direction: the side of the content to reveal.
type Direction string

// Scroll directions.
const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// Directions lists the valid scroll directions.
var Directions = []Direction{Up, Down, Left, Right}

// ParseDirection validates a scroll direction name (case-insensitive).
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case Up, Down, Left, Right:
		return d, nil
	}
	return "", fmt.Errorf("invalid direction %q (choose from up, down, left, right)", s)
}

// Swipe is a finger movement from Start to End.
type Swipe struct {
	Start Point
	End   Point
}

// ScrollSwipe returns the finger swipe that scrolls in dir by distance points.
// The finger moves opposite to the scroll direction: scrolling down (revealing
// content below) is a swipe up. The swipe is centered on the screen midpoint
// and every coordinate is clamped to be non-negative.
func ScrollSwipe(dir Direction, screen Size, distance float64) (Swipe, error) {
	cx, cy := screen.Width/2, screen.Height/2
	half := distance / 2

	var s Swipe
	switch dir {
	case Down: // finger moves up
		s = Swipe{Start: Point{cx, cy + half}, End: Point{cx, cy - half}}
	case Up: // finger moves down
		s = Swipe{Start: Point{cx, cy - half}, End: Point{cx, cy + half}}
	case Left: // finger moves right
		s = Swipe{Start: Point{cx - half, cy}, End: Point{cx + half, cy}}
	case Right: // finger moves left
		s = Swipe{Start: Point{cx + half, cy}, End: Point{cx - half, cy}}
	default:
		return Swipe{}, fmt.Errorf("invalid direction %q", dir)
	}

	s.Start = clamp(s.Start)
	s.End = clamp(s.End)
	return s, nil
}

func clamp(p Point) Point {
	return Point{X: math.Max(0, p.X), Y: math.Max(0, p.Y)}
}

// Truncate converts a coordinate to the whole point idb expects.
func Truncate(v float64) int {
	return int(v)
}

// Whole returns p with both coordinates truncated toward zero.
func (p Point) Whole() Point {
	return Point{X: float64(Truncate(p.X)), Y: float64(Truncate(p.Y))}
}

// Whole returns s with both endpoints truncated toward zero.
func (s Swipe) Whole() Swipe {
	return Swipe{Start: s.Start.Whole(), End: s.End.Whole()}
}
