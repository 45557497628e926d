// Package idb wraps the idb command-line client.
package idb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/devicelab-dev/iossim/pkg/core"
	"github.com/devicelab-dev/iossim/pkg/gesture"
	"github.com/devicelab-dev/iossim/pkg/shell"
	"github.com/devicelab-dev/iossim/pkg/ui"
)

// Client invokes idb for a single simulator.
type Client struct {
	runner shell.Runner
	udid   string
}

// NewClient creates an idb client. An empty udid lets idb pick its default target.
func NewClient(runner shell.Runner, udid string) *Client {
	return &Client{runner: runner, udid: udid}
}

// UDID returns the target simulator identifier.
func (c *Client) UDID() string {
	return c.udid
}

// UDIDFlags returns the --udid flag pair, or nothing when no UDID is set.
func UDIDFlags(udid string) []string {
	if udid == "" {
		return nil
	}
	return []string{"--udid", udid}
}

func (c *Client) args(base ...string) []string {
	return append(base, UDIDFlags(c.udid)...)
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	return c.runner.Output(ctx, "idb", args...)
}

// DescribeAll returns every accessibility element on screen.
func (c *Client) DescribeAll(ctx context.Context) (*ui.Snapshot, error) {
	out, err := c.run(ctx, c.args("ui", "describe-all", "--json")...)
	if err != nil {
		return nil, err
	}
	snap, err := ui.Decode(out)
	if err != nil {
		return nil, core.ErrUnexpectedOutput.WithCause(err)
	}
	return snap, nil
}

// Tap taps at p. A positive duration makes it a long press.
func (c *Client) Tap(ctx context.Context, p gesture.Point, duration float64) error {
	args := c.args("ui", "tap", formatFloat(p.X), formatFloat(p.Y))
	if duration > 0 {
		args = append(args, "--duration", formatFloat(duration))
	}
	_, err := c.run(ctx, args...)
	return err
}

// SwipeOptions are the optional idb swipe flags.
type SwipeOptions struct {
	Duration float64 // seconds
	Delta    int     // points between touch events
}

// Swipe drags a finger from s.Start to s.End.
func (c *Client) Swipe(ctx context.Context, s gesture.Swipe, opts SwipeOptions) error {
	args := c.args("ui", "swipe",
		formatFloat(s.Start.X), formatFloat(s.Start.Y),
		formatFloat(s.End.X), formatFloat(s.End.Y))
	if opts.Duration > 0 {
		args = append(args, "--duration", formatFloat(opts.Duration))
	}
	if opts.Delta > 0 {
		args = append(args, "--delta", strconv.Itoa(opts.Delta))
	}
	_, err := c.run(ctx, args...)
	return err
}

// Text types text into the focused element.
func (c *Client) Text(ctx context.Context, text string) error {
	_, err := c.run(ctx, c.args("ui", "text", text)...)
	return err
}

// Key presses a key by HID keycode.
func (c *Client) Key(ctx context.Context, code string) error {
	_, err := c.run(ctx, c.args("ui", "key", code)...)
	return err
}

// Button presses a hardware button.
func (c *Client) Button(ctx context.Context, button string) error {
	_, err := c.run(ctx, c.args("ui", "button", button)...)
	return err
}

// Open opens a URL or deep link.
func (c *Client) Open(ctx context.Context, url string) error {
	_, err := c.run(ctx, c.args("open", url)...)
	return err
}

// Install installs an .app or .ipa, streaming idb's output.
func (c *Client) Install(ctx context.Context, stdout, stderr io.Writer, path string) error {
	return c.runner.Stream(ctx, stdout, stderr, "idb", c.args("install", path)...)
}

// Launch launches an app by bundle ID.
func (c *Client) Launch(ctx context.Context, bundleID string) error {
	_, err := c.run(ctx, c.args("launch", bundleID)...)
	return err
}

// Terminate terminates a running app.
func (c *Client) Terminate(ctx context.Context, bundleID string) error {
	_, err := c.run(ctx, c.args("terminate", bundleID)...)
	return err
}

// Screenshot saves a PNG screenshot to path.
func (c *Client) Screenshot(ctx context.Context, path string) error {
	_, err := c.run(ctx, c.args("screenshot", path)...)
	return err
}

// App is an installed application as reported by idb list-apps.
type App struct {
	BundleID     string `json:"bundle_id"`
	Name         string `json:"name"`
	InstallType  string `json:"install_type"`
	ProcessState string `json:"process_state"`
}

// DisplayName returns the app name, falling back to the bundle ID.
func (a App) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	if a.BundleID != "" {
		return a.BundleID
	}
	return "?"
}

// ListApps returns installed apps with their process state.
func (c *Client) ListApps(ctx context.Context) ([]App, error) {
	out, err := c.run(ctx, c.args("list-apps", "--json", "--fetch-process-state")...)
	if err != nil {
		return nil, err
	}
	apps, err := decodeApps(out)
	if err != nil {
		return nil, core.ErrUnexpectedOutput.WithCause(err)
	}
	return apps, nil
}

// decodeApps accepts both a JSON array and one JSON object per line.
func decodeApps(data []byte) ([]App, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var apps []App
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &apps); err != nil {
			return nil, fmt.Errorf("failed to parse list-apps output: %w", err)
		}
		return apps, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	for dec.More() {
		var app App
		if err := dec.Decode(&app); err != nil {
			return nil, fmt.Errorf("failed to parse list-apps output: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
