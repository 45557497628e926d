// Package action performs simulator UI actions and reports the UI state
// around them.
package action

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/devicelab-dev/iossim/pkg/core"
	"github.com/devicelab-dev/iossim/pkg/gesture"
	"github.com/devicelab-dev/iossim/pkg/idb"
	"github.com/devicelab-dev/iossim/pkg/logger"
	"github.com/devicelab-dev/iossim/pkg/ui"
)

// Fixed delays.
const (
	SettleDelay = time.Second             // after a UI action, before the post snapshot
	LaunchDelay = 1500 * time.Millisecond // after launch, before the first snapshot
)

// suggestionCount is how many "did you mean" labels a not-found diagnostic shows.
const suggestionCount = 3

// Device is the subset of idb the driver needs.
type Device interface {
	UDID() string
	DescribeAll(ctx context.Context) (*ui.Snapshot, error)
	Tap(ctx context.Context, p gesture.Point, duration float64) error
	Swipe(ctx context.Context, s gesture.Swipe, opts idb.SwipeOptions) error
	Text(ctx context.Context, text string) error
	Key(ctx context.Context, code string) error
	Button(ctx context.Context, button string) error
	Open(ctx context.Context, url string) error
	Launch(ctx context.Context, bundleID string) error
	Terminate(ctx context.Context, bundleID string) error
	Screenshot(ctx context.Context, path string) error
}

// Driver runs actions against one simulator, printing UI summaries to Out.
type Driver struct {
	dev Device
	Out io.Writer
	// Sleep pauses between an action and the next snapshot.
	Sleep func(time.Duration)
}

// New creates a driver that writes its reports to out.
func New(dev Device, out io.Writer) *Driver {
	return &Driver{dev: dev, Out: out, Sleep: time.Sleep}
}

// Snapshot returns the current accessibility tree.
func (d *Driver) Snapshot(ctx context.Context) (*ui.Snapshot, error) {
	return d.dev.DescribeAll(ctx)
}

// WithUIHooks snapshots and summarizes the UI, runs fn, waits SettleDelay,
// then snapshots and summarizes again. Nothing runs after a failing step.
func (d *Driver) WithUIHooks(ctx context.Context, name string, fn func() error) (pre, post *ui.Snapshot, err error) {
	fmt.Fprintf(d.Out, "\n▶ %s — capturing PRE-action UI state …\n", name)
	pre, err = d.dev.DescribeAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	ui.RenderSummary(d.Out, pre, "PRE  | "+name)

	post, err = d.finish(ctx, name, fn)
	return pre, post, err
}

// finish runs fn, settles, and renders the POST summary.
func (d *Driver) finish(ctx context.Context, name string, fn func() error) (*ui.Snapshot, error) {
	logger.Debug("Action: %s", name)
	if err := fn(); err != nil {
		logger.Error("Action %s failed: %v", name, err)
		return nil, err
	}

	d.Sleep(SettleDelay)

	fmt.Fprintf(d.Out, "\n▶ %s — capturing POST-action UI state …\n", name)
	post, err := d.dev.DescribeAll(ctx)
	if err != nil {
		return nil, err
	}
	ui.RenderSummary(d.Out, post, "POST | "+name)
	return post, nil
}

// Tap taps at p. A positive duration makes it a long press.
func (d *Driver) Tap(ctx context.Context, p gesture.Point, duration float64) error {
	x, y := coord(p.X), coord(p.Y)
	_, _, err := d.WithUIHooks(ctx, fmt.Sprintf("tap(%s, %s)", x, y), func() error {
		if err := d.dev.Tap(ctx, p, duration); err != nil {
			return err
		}
		fmt.Fprintf(d.Out, "Tapped (%s, %s)\n", x, y)
		return nil
	})
	return err
}

// TapElement finds an element by label, title, or value and taps its center.
// The lookup snapshot doubles as the PRE summary.
func (d *Driver) TapElement(ctx context.Context, label string) (*ui.Element, error) {
	name := fmt.Sprintf("tap-element '%s'", label)
	fmt.Fprintf(d.Out, "\n▶ %s — running describe-all to find target …\n", name)
	pre, err := d.dev.DescribeAll(ctx)
	if err != nil {
		return nil, err
	}
	ui.RenderSummary(d.Out, pre, "PRE  | "+name)

	elem, ok := ui.FindElement(pre.Elements, label)
	if !ok {
		d.reportNotFound(pre, label, "Available labels:", false)
		return nil, notFound(fmt.Sprintf("No element found matching '%s'", label), label)
	}

	center := elem.Center()
	fmt.Fprintf(d.Out, "\nFound: [%s] '%s'  →  tapping %s\n", elem.DisplayRole(), elem.Text(), center)

	_, err = d.finish(ctx, name, func() error {
		return d.dev.Tap(ctx, center.Whole(), 0)
	})
	return elem, err
}

// Swipe drags a finger from s.Start to s.End.
func (d *Driver) Swipe(ctx context.Context, s gesture.Swipe, opts idb.SwipeOptions) error {
	x1, y1, x2, y2 := coord(s.Start.X), coord(s.Start.Y), coord(s.End.X), coord(s.End.Y)
	name := fmt.Sprintf("swipe(%s,%s→%s,%s)", x1, y1, x2, y2)
	_, _, err := d.WithUIHooks(ctx, name, func() error {
		if err := d.dev.Swipe(ctx, s, opts); err != nil {
			return err
		}
		fmt.Fprintf(d.Out, "Swiped (%s,%s) → (%s,%s)\n", x1, y1, x2, y2)
		return nil
	})
	return err
}

// Scroll swipes across the screen center to scroll in dir. The screen size is
// taken from the PRE snapshot, which is also what gets summarized.
func (d *Driver) Scroll(ctx context.Context, dir gesture.Direction, distance, speed float64) (gesture.Swipe, error) {
	pre, err := d.dev.DescribeAll(ctx)
	if err != nil {
		return gesture.Swipe{}, err
	}

	s, err := gesture.ScrollSwipe(dir, pre.ScreenSize(), distance)
	if err != nil {
		return gesture.Swipe{}, core.ErrInvalidDirection.WithCause(err)
	}
	s = s.Whole()

	name := "scroll-" + string(dir)
	ui.RenderSummary(d.Out, pre, "PRE  | "+name)

	_, err = d.finish(ctx, name, func() error {
		if err := d.dev.Swipe(ctx, s, idb.SwipeOptions{Duration: speed}); err != nil {
			return err
		}
		fmt.Fprintf(d.Out, "Scrolled %s: swipe (%.0f,%.0f) → (%.0f,%.0f)\n", dir, s.Start.X, s.Start.Y, s.End.X, s.End.Y)
		return nil
	})
	return s, err
}

// Text types text into the focused element.
func (d *Driver) Text(ctx context.Context, text string) error {
	_, _, err := d.WithUIHooks(ctx, fmt.Sprintf("text(%q)", text), func() error {
		if err := d.dev.Text(ctx, text); err != nil {
			return err
		}
		fmt.Fprintf(d.Out, "Typed: %q\n", text)
		return nil
	})
	return err
}

// Key presses a key given by name or HID keycode. Unknown names fail before
// any snapshot is taken.
func (d *Driver) Key(ctx context.Context, key string) error {
	code, err := idb.ResolveKey(key)
	if err != nil {
		return err
	}
	_, _, err = d.WithUIHooks(ctx, fmt.Sprintf("key(%s)", key), func() error {
		if err := d.dev.Key(ctx, code); err != nil {
			return err
		}
		fmt.Fprintf(d.Out, "Key press: %s (code %s)\n", key, code)
		return nil
	})
	return err
}

// Button presses a hardware button. Invalid names fail before any snapshot
// is taken.
func (d *Driver) Button(ctx context.Context, name string) error {
	button, err := idb.ValidateButton(name)
	if err != nil {
		return err
	}
	_, _, err = d.WithUIHooks(ctx, fmt.Sprintf("button(%s)", button), func() error {
		if err := d.dev.Button(ctx, button); err != nil {
			return err
		}
		fmt.Fprintf(d.Out, "Button: %s\n", button)
		return nil
	})
	return err
}

// OpenURL opens a URL or deep link.
func (d *Driver) OpenURL(ctx context.Context, url string) error {
	_, _, err := d.WithUIHooks(ctx, fmt.Sprintf("openurl(%s)", url), func() error {
		if err := d.dev.Open(ctx, url); err != nil {
			return err
		}
		fmt.Fprintf(d.Out, "Opened URL: %s\n", url)
		return nil
	})
	return err
}

// Launch starts an app, waits LaunchDelay, and summarizes its first screen.
func (d *Driver) Launch(ctx context.Context, bundleID string) (*ui.Snapshot, error) {
	fmt.Fprintf(d.Out, "Launching %s …\n", bundleID)
	if err := d.dev.Launch(ctx, bundleID); err != nil {
		return nil, err
	}
	fmt.Fprintf(d.Out, "Launched %s.\n", bundleID)

	d.Sleep(LaunchDelay)

	snap, err := d.dev.DescribeAll(ctx)
	if err != nil {
		return nil, err
	}
	ui.RenderSummary(d.Out, snap, "LAUNCHED | "+bundleID)
	return snap, nil
}

// Terminate stops a running app.
func (d *Driver) Terminate(ctx context.Context, bundleID string) error {
	fmt.Fprintf(d.Out, "Terminating %s …\n", bundleID)
	if err := d.dev.Terminate(ctx, bundleID); err != nil {
		return err
	}
	fmt.Fprintf(d.Out, "Terminated %s.\n", bundleID)
	return nil
}

// Locate looks up an element without printing anything.
func (d *Driver) Locate(ctx context.Context, label string) (*ui.Element, *ui.Snapshot, error) {
	snap, err := d.dev.DescribeAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	elem, ok := ui.FindElement(snap.Elements, label)
	if !ok {
		return nil, snap, notFound(fmt.Sprintf("No element found for '%s'", label), label)
	}
	return elem, snap, nil
}

// Find looks up an element and prints its frame, center, and an idb tap
// command for it. On a miss it prints the labels on screen.
func (d *Driver) Find(ctx context.Context, label string) (*ui.Element, error) {
	elem, snap, err := d.Locate(ctx, label)
	if err != nil {
		if snap != nil {
			d.reportNotFound(snap, label, "\nAvailable labels:", true)
		}
		return nil, err
	}

	c := elem.Center()
	f := elem.Frame
	fmt.Fprintf(d.Out, "\nFound: [%s] '%s'\n", elem.DisplayRole(), elem.Text())
	fmt.Fprintf(d.Out, "  Frame : x=%.0f, y=%.0f, w=%.0f, h=%.0f\n", f.X, f.Y, f.Width, f.Height)
	fmt.Fprintf(d.Out, "  Center: %s\n", c)
	fmt.Fprintf(d.Out, "  Tap   : idb ui tap %d %d\n", gesture.Truncate(c.X), gesture.Truncate(c.Y))
	if udid := d.dev.UDID(); udid != "" {
		fmt.Fprintf(d.Out, "          (add --udid %s)\n", udid)
	}
	return elem, nil
}

// Screenshot saves a PNG screenshot and prints its path and size.
func (d *Driver) Screenshot(ctx context.Context, path string) error {
	if err := d.dev.Screenshot(ctx, path); err != nil {
		return err
	}
	if info, err := os.Stat(path); err == nil {
		fmt.Fprintf(d.Out, "Screenshot saved: %s (%s)\n", path, humanize.Bytes(uint64(info.Size())))
		return nil
	}
	fmt.Fprintf(d.Out, "Screenshot saved: %s\n", path)
	return nil
}

func (d *Driver) reportNotFound(snap *ui.Snapshot, label, header string, centers bool) {
	if suggestions := ui.Suggest(snap.Elements, label, suggestionCount); len(suggestions) > 0 {
		quoted := make([]string, len(suggestions))
		for i, s := range suggestions {
			quoted[i] = "'" + s + "'"
		}
		fmt.Fprintf(d.Out, "Did you mean: %s?\n", strings.Join(quoted, ", "))
	}
	fmt.Fprintln(d.Out, header)
	ui.RenderLabels(d.Out, snap.Elements, centers)
}

func notFound(msg, label string) error {
	return core.ErrElementNotFound.WithMessage(msg).WithDetails(map[string]interface{}{"query": label})
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
