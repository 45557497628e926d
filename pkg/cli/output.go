package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/iossim/pkg/core"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = false

// detectColors enables colors only for a terminal, and never when NO_COLOR
// is set or --no-ansi is given.
func detectColors(w io.Writer, noANSI bool) bool {
	if noANSI || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// formatDuration formats a duration the way run summaries show it.
// Shows milliseconds below one second, seconds below one minute.
func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}

// parseEnvVars converts KEY=VALUE pairs into a map. Entries without '=' are ignored.
func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, env := range envs {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}

// requireArgs fails unless exactly n positional arguments were given.
func requireArgs(c *cli.Context, n int) error {
	if c.NArg() != n {
		return core.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("%s expects %d argument(s): iossim %s %s", c.Command.Name, n, c.Command.Name, c.Command.ArgsUsage))
	}
	return nil
}

// floatArgs parses every positional argument as a number.
func floatArgs(c *cli.Context) ([]float64, error) {
	vals := make([]float64, c.NArg())
	for i, a := range c.Args().Slice() {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, core.ErrInvalidArgument.WithMessage(fmt.Sprintf("%s: %q is not a number", c.Command.Name, a))
		}
		vals[i] = v
	}
	return vals, nil
}
