package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devicelab-dev/iossim/pkg/config"
	"github.com/devicelab-dev/iossim/pkg/core"
	"github.com/devicelab-dev/iossim/pkg/shell"
)

const screenJSON = `[
  {"AXLabel": "Demo", "role": "AXApplication", "type": "Application", "frame": {"x": 0, "y": 0, "width": 390, "height": 844}},
  {"AXLabel": "Sign In", "role": "AXButton", "type": "Button", "frame": {"x": 100, "y": 200, "width": 50, "height": 20}},
  {"AXLabel": "Welcome", "role": "AXStaticText", "type": "StaticText", "frame": {"x": 20, "y": 100, "width": 200, "height": 30}}
]`

const simctlJSON = `{
  "devices": {
    "com.apple.CoreSimulator.SimRuntime.iOS-17-2": [
      {"name": "iPhone 15", "udid": "11111111-1111-1111-1111-111111111111", "state": "Shutdown", "isAvailable": true}
    ],
    "com.apple.CoreSimulator.SimRuntime.iOS-18-2": [
      {"name": "iPhone 16 Pro", "udid": "33333333-3333-3333-3333-333333333333", "state": "Booted", "isAvailable": true},
      {"name": "iPhone 16", "udid": "44444444-4444-4444-4444-444444444444", "state": "Shutdown", "isAvailable": true},
      {"name": "iPhone Gone", "udid": "77777777-7777-7777-7777-777777777777", "state": "Shutdown", "isAvailable": false}
    ]
  }
}`

type result struct {
	stdout string
	stderr string
	code   int
	fake   *shell.FakeRunner
}

// actions returns the recorded calls without describe-all snapshots.
func (r result) actions() []string {
	var out []string
	for _, line := range r.fake.CallLines() {
		if !strings.HasPrefix(line, "idb ui describe-all") {
			out = append(out, line)
		}
	}
	return out
}

func newFake() *shell.FakeRunner {
	return shell.NewFakeRunner().
		On("idb ui describe-all", shell.FakeResponse{Stdout: screenJSON}).
		On("xcrun simctl list devices", shell.FakeResponse{Stdout: simctlJSON})
}

// useFakes isolates the home directory and swaps in fake tools and a no-op
// sleep. It returns the home directory.
func useFakes(t *testing.T, fake *shell.FakeRunner) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("IOSSIM_HOME", home)
	config.ResetHome()
	t.Cleanup(config.ResetHome)

	oldRunner, oldSleep := newRunner, sleep
	newRunner = func(*config.Config) shell.Runner { return fake }
	sleep = func(time.Duration) {}
	t.Cleanup(func() { newRunner, sleep = oldRunner, oldSleep })
	return home
}

func execute(home string, fake *shell.FakeRunner, args ...string) result {
	var stdout, stderr bytes.Buffer
	argv := append([]string{"iossim", "--log-file", filepath.Join(home, "test.log")}, args...)
	code := run(argv, &stdout, &stderr)
	return result{stdout: stdout.String(), stderr: stderr.String(), code: code, fake: fake}
}

// runCLI runs the app with fake external tools and no simulator in the environment.
func runCLI(t *testing.T, fake *shell.FakeRunner, args ...string) result {
	t.Helper()
	t.Setenv("IOSSIM_UDID", "")
	return execute(useFakes(t, fake), fake, args...)
}

func assertActions(t *testing.T, r result, want ...string) {
	t.Helper()
	got := r.actions()
	if len(got) != len(want) {
		t.Fatalf("actions = %q\nwant %q\nstderr: %s", got, want, r.stderr)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("action %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGlobalFlags(t *testing.T) {
	want := map[string]bool{"verbose": false, "no-ansi": false, "config": false, "log-file": false}
	for _, f := range GlobalFlags {
		for _, name := range f.Names() {
			if _, ok := want[name]; ok {
				want[name] = true
			}
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("global flag %q not defined", name)
		}
	}
}

func TestApp_Commands(t *testing.T) {
	app := newApp(&bytes.Buffer{}, &bytes.Buffer{})
	names := make(map[string]bool)
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}

	for _, verb := range []string{
		"list", "boot", "shutdown", "build", "install", "launch", "terminate", "list-apps",
		"tap", "tap-element", "swipe", "scroll", "text", "key", "button", "openurl",
		"describe", "find", "screenshot", "run", "script",
	} {
		if !names[verb] {
			t.Errorf("command %q not registered", verb)
		}
	}
}

func TestList(t *testing.T) {
	r := runCLI(t, newFake(), "list")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}

	for _, want := range []string{
		"UDID", "State", "Name",
		"33333333-3333-3333-3333-333333333333  ● BOOTED    iPhone 16 Pro  [iOS-18-2]",
		"11111111-1111-1111-1111-111111111111  Shutdown    iPhone 15  [iOS-17-2]",
	} {
		if !strings.Contains(r.stdout, want) {
			t.Errorf("output missing %q:\n%s", want, r.stdout)
		}
	}
	if strings.Contains(r.stdout, "iPhone Gone") {
		t.Error("unavailable simulator should not be listed")
	}
}

func TestList_Filters(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		present []string
		absent  []string
	}{
		{
			name:    "booted",
			args:    []string{"list", "--booted"},
			present: []string{"33333333"},
			absent:  []string{"11111111", "44444444"},
		},
		{
			name:    "min-os",
			args:    []string{"list", "--min-os", "18.0"},
			present: []string{"33333333", "44444444"},
			absent:  []string{"11111111"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runCLI(t, newFake(), tt.args...)
			if r.code != 0 {
				t.Fatalf("exit %d: %s", r.code, r.stderr)
			}
			for _, s := range tt.present {
				if !strings.Contains(r.stdout, s) {
					t.Errorf("expected %s in output", s)
				}
			}
			for _, s := range tt.absent {
				if strings.Contains(r.stdout, s) {
					t.Errorf("did not expect %s in output", s)
				}
			}
		})
	}
}

func TestList_InvalidMinOS(t *testing.T) {
	r := runCLI(t, newFake(), "list", "--min-os", "banana")
	if r.code != 1 {
		t.Errorf("exit = %d, want 1", r.code)
	}
	if !strings.Contains(r.stderr, "ERROR: invalid --min-os banana") {
		t.Errorf("stderr = %q", r.stderr)
	}
}

func TestBoot(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"udid passes through", []string{"boot", "44444444-4444-4444-4444-444444444444"}, "xcrun simctl boot 44444444-4444-4444-4444-444444444444"},
		{"name resolves", []string{"boot", "iphone 16"}, "xcrun simctl boot 44444444-4444-4444-4444-444444444444"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runCLI(t, newFake(), tt.args...)
			if r.code != 0 {
				t.Fatalf("exit %d: %s", r.code, r.stderr)
			}
			calls := r.fake.CallLines()
			if calls[len(calls)-1] != tt.want {
				t.Errorf("last call = %q, want %q", calls[len(calls)-1], tt.want)
			}
			if !strings.Contains(r.stdout, "Booting 44444444-4444-4444-4444-444444444444 …") || !strings.Contains(r.stdout, "Done.") {
				t.Errorf("stdout = %q", r.stdout)
			}
		})
	}
}

func TestBoot_Wait(t *testing.T) {
	r := runCLI(t, newFake(), "boot", "--wait", "33333333-3333-3333-3333-333333333333")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	calls := r.fake.CallLines()
	if calls[0] != "xcrun simctl boot 33333333-3333-3333-3333-333333333333" {
		t.Errorf("first call = %q", calls[0])
	}
	if len(calls) < 2 || !strings.HasPrefix(calls[1], "xcrun simctl list devices") {
		t.Errorf("expected a state poll after boot, calls = %q", calls)
	}
}

func TestBoot_UnknownNamePassedToSimctl(t *testing.T) {
	fake := newFake().On("xcrun simctl boot", shell.FakeResponse{Err: &shell.ExitError{
		Command: []string{"xcrun", "simctl", "boot", "Pixel 9"},
		Code:    148,
		Stderr:  "Invalid device: Pixel 9\n",
	}})

	r := runCLI(t, fake, "boot", "Pixel 9")

	if r.code != 148 {
		t.Errorf("exit = %d, want 148", r.code)
	}
	calls := r.fake.CallLines()
	if got := calls[len(calls)-1]; got != "xcrun simctl boot Pixel 9" {
		t.Errorf("last call = %q", got)
	}
	if !strings.Contains(r.stderr, "Invalid device: Pixel 9") {
		t.Errorf("stderr = %q", r.stderr)
	}
}

func TestBoot_PropagatesExitCode(t *testing.T) {
	udid := "33333333-3333-3333-3333-333333333333"
	fake := newFake().On("xcrun simctl boot", shell.FakeResponse{Err: &shell.ExitError{
		Command: []string{"xcrun", "simctl", "boot", udid},
		Code:    149,
		Stderr:  "Unable to boot device in current state: Booted\n",
	}})

	r := runCLI(t, fake, "boot", udid)

	if r.code != 149 {
		t.Errorf("exit = %d, want 149", r.code)
	}
	want := "ERROR: xcrun simctl boot " + udid + "\nUnable to boot device in current state: Booted\n"
	if r.stderr != want {
		t.Errorf("stderr = %q, want %q", r.stderr, want)
	}
	if strings.Contains(r.stdout, "Done.") {
		t.Error("Done. printed after a failure")
	}
}

func TestShutdown(t *testing.T) {
	r := runCLI(t, newFake(), "shutdown", "iPhone 16 Pro")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	calls := r.fake.CallLines()
	if got := calls[len(calls)-1]; got != "xcrun simctl shutdown 33333333-3333-3333-3333-333333333333" {
		t.Errorf("last call = %q", got)
	}
}

func TestShutdown_SimctlKeywords(t *testing.T) {
	for _, target := range []string{"booted", "all"} {
		t.Run(target, func(t *testing.T) {
			r := runCLI(t, newFake(), "shutdown", target)
			if r.code != 0 {
				t.Fatalf("exit %d: %s", r.code, r.stderr)
			}
			assertActions(t, r, "xcrun simctl shutdown "+target)
		})
	}
}

func TestMissingArguments(t *testing.T) {
	for _, args := range [][]string{
		{"boot"},
		{"tap", "1"},
		{"swipe", "1", "2", "3"},
		{"tap-element"},
		{"text"},
		{"screenshot"},
		{"run"},
		{"script"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			r := runCLI(t, newFake(), args...)
			if r.code != 1 {
				t.Errorf("exit = %d, want 1", r.code)
			}
			if !strings.HasPrefix(r.stderr, "ERROR: ") {
				t.Errorf("stderr = %q", r.stderr)
			}
			if len(r.fake.Calls) != 0 {
				t.Errorf("no tool should run, got %q", r.fake.CallLines())
			}
		})
	}
}

func TestTap(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"plain", []string{"tap", "100", "200"}, "idb ui tap 100 200"},
		{"fractional", []string{"tap", "10.5", "20"}, "idb ui tap 10.5 20"},
		{"long press", []string{"tap", "--duration", "1.5", "100", "200"}, "idb ui tap 100 200 --duration 1.5"},
		{"udid", []string{"tap", "--udid", "SIM-1", "1", "2"}, "idb ui tap 1 2 --udid SIM-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runCLI(t, newFake(), tt.args...)
			if r.code != 0 {
				t.Fatalf("exit %d: %s", r.code, r.stderr)
			}
			assertActions(t, r, tt.want)
		})
	}
}

func TestTap_WrapsWithSnapshots(t *testing.T) {
	r := runCLI(t, newFake(), "tap", "100", "200")

	calls := r.fake.CallLines()
	want := []string{"idb ui describe-all --json", "idb ui tap 100 200", "idb ui describe-all --json"}
	if strings.Join(calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls = %q, want %q", calls, want)
	}
	pre := strings.Index(r.stdout, "PRE  | tap(100, 200)")
	tapped := strings.Index(r.stdout, "Tapped (100, 200)")
	post := strings.Index(r.stdout, "POST | tap(100, 200)")
	if pre < 0 || tapped < pre || post < tapped {
		t.Errorf("expected PRE, action, POST in order:\n%s", r.stdout)
	}
}

func TestTap_NotANumber(t *testing.T) {
	r := runCLI(t, newFake(), "tap", "abc", "1")
	if r.code != 1 {
		t.Errorf("exit = %d, want 1", r.code)
	}
	if !strings.Contains(r.stderr, `"abc" is not a number`) {
		t.Errorf("stderr = %q", r.stderr)
	}
}

func TestUDID_FromConfig(t *testing.T) {
	cfgPath := writeFile(t, filepath.Join(t.TempDir(), "iossim.yaml"), "udid: CFG-1\n")

	r := runCLI(t, newFake(), "--config", cfgPath, "text", "hello")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	assertActions(t, r, "idb ui text hello --udid CFG-1")

	r = runCLI(t, newFake(), "--config", cfgPath, "text", "--udid", "FLAG-1", "hello")
	assertActions(t, r, "idb ui text hello --udid FLAG-1")
}

func TestUDID_FromEnv(t *testing.T) {
	fake := newFake()
	home := useFakes(t, fake)
	t.Setenv("IOSSIM_UDID", "ENV-1")

	r := execute(home, fake, "key", "enter")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	assertActions(t, r, "idb ui key 40 --udid ENV-1")
}

func TestInvalidConfig(t *testing.T) {
	r := runCLI(t, newFake(), "--config", filepath.Join(t.TempDir(), "missing.yaml"), "list")
	if r.code != 1 {
		t.Errorf("exit = %d, want 1", r.code)
	}
	if !strings.Contains(r.stderr, "invalid configuration") {
		t.Errorf("stderr = %q", r.stderr)
	}
}

func TestTapElement(t *testing.T) {
	r := runCLI(t, newFake(), "tap-element", "--udid", "SIM-1", "sign in")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}

	calls := r.fake.CallLines()
	want := []string{
		"idb ui describe-all --json --udid SIM-1",
		"idb ui tap 125 210 --udid SIM-1",
		"idb ui describe-all --json --udid SIM-1",
	}
	if strings.Join(calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls = %q\nwant %q", calls, want)
	}
	if !strings.Contains(r.stdout, "Found: [Button] 'Sign In'  →  tapping (125, 210)") {
		t.Errorf("stdout:\n%s", r.stdout)
	}
}

func TestTapElement_NotFound(t *testing.T) {
	r := runCLI(t, newFake(), "tap-element", "Sign Up")

	if r.code != 1 {
		t.Errorf("exit = %d, want 1", r.code)
	}
	if !strings.Contains(r.stderr, "ERROR: No element found matching 'Sign Up'") {
		t.Errorf("stderr = %q", r.stderr)
	}
	for _, want := range []string{"Did you mean: 'Sign In'", "Available labels:", "[Button] 'Sign In'"} {
		if !strings.Contains(r.stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, r.stdout)
		}
	}
	assertActions(t, r)
}

func TestSwipe(t *testing.T) {
	r := runCLI(t, newFake(), "swipe", "--duration", "0.5", "--delta", "10", "10", "20", "30", "40")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	assertActions(t, r, "idb ui swipe 10 20 30 40 --duration 0.5 --delta 10")
	if !strings.Contains(r.stdout, "Swiped (10,20) → (30,40)") {
		t.Errorf("stdout:\n%s", r.stdout)
	}
}

func TestScroll(t *testing.T) {
	tests := []struct {
		dir  string
		want string
	}{
		{"down", "idb ui swipe 195 572 195 272 --duration 0.4"},
		{"up", "idb ui swipe 195 272 195 572 --duration 0.4"},
		{"left", "idb ui swipe 45 422 345 422 --duration 0.4"},
		{"right", "idb ui swipe 345 422 45 422 --duration 0.4"},
		{"DOWN", "idb ui swipe 195 572 195 272 --duration 0.4"},
	}

	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			r := runCLI(t, newFake(), "scroll", tt.dir)
			if r.code != 0 {
				t.Fatalf("exit %d: %s", r.code, r.stderr)
			}
			assertActions(t, r, tt.want)
		})
	}
}

func TestScroll_Options(t *testing.T) {
	r := runCLI(t, newFake(), "scroll", "--distance", "100", "--speed", "0.2", "down")
	assertActions(t, r, "idb ui swipe 195 472 195 372 --duration 0.2")

	cfgPath := writeFile(t, filepath.Join(t.TempDir(), "c.yaml"), "scroll:\n  distance: 200\n  speed: 0.3\n")
	r = runCLI(t, newFake(), "--config", cfgPath, "scroll", "down")
	assertActions(t, r, "idb ui swipe 195 522 195 322 --duration 0.3")
}

func TestScroll_InvalidDirection(t *testing.T) {
	r := runCLI(t, newFake(), "scroll", "sideways")

	if r.code != 1 {
		t.Errorf("exit = %d, want 1", r.code)
	}
	if !strings.Contains(r.stderr, `invalid direction "sideways"`) {
		t.Errorf("stderr = %q", r.stderr)
	}
	if len(r.fake.Calls) != 0 {
		t.Errorf("direction must be rejected before any tool runs, got %q", r.fake.CallLines())
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"enter", "idb ui key 40"},
		{"Backspace", "idb ui key 42"},
		{"41", "idb ui key 41"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			r := runCLI(t, newFake(), "key", tt.key)
			if r.code != 0 {
				t.Fatalf("exit %d: %s", r.code, r.stderr)
			}
			assertActions(t, r, tt.want)
		})
	}
}

func TestKey_Unknown(t *testing.T) {
	r := runCLI(t, newFake(), "key", "hyper")
	if r.code != 1 {
		t.Errorf("exit = %d, want 1", r.code)
	}
	if len(r.fake.Calls) != 0 {
		t.Errorf("unexpected calls %q", r.fake.CallLines())
	}
}

func TestButton(t *testing.T) {
	r := runCLI(t, newFake(), "button", "home")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	assertActions(t, r, "idb ui button HOME")
	if !strings.Contains(r.stdout, "Button: HOME") {
		t.Errorf("stdout:\n%s", r.stdout)
	}
}

func TestButton_Invalid(t *testing.T) {
	r := runCLI(t, newFake(), "button", "VOLUME_UP")

	if r.code != 1 {
		t.Errorf("exit = %d, want 1", r.code)
	}
	if !strings.Contains(r.stderr, "VOLUME_UP") {
		t.Errorf("stderr = %q", r.stderr)
	}
	if len(r.fake.Calls) != 0 {
		t.Errorf("invalid button must fail before any snapshot, got %q", r.fake.CallLines())
	}
}

func TestTextAndOpenURL(t *testing.T) {
	r := runCLI(t, newFake(), "text", "hello world")
	assertActions(t, r, "idb ui text hello world")
	if !strings.Contains(r.stdout, `Typed: "hello world"`) {
		t.Errorf("stdout:\n%s", r.stdout)
	}

	r = runCLI(t, newFake(), "openurl", "myapp://settings")
	assertActions(t, r, "idb open myapp://settings")
	if !strings.Contains(r.stdout, "Opened URL: myapp://settings") {
		t.Errorf("stdout:\n%s", r.stdout)
	}
}

func TestLaunch(t *testing.T) {
	r := runCLI(t, newFake(), "launch", "--udid", "SIM-1", "com.example.app")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	calls := r.fake.CallLines()
	want := []string{"idb launch com.example.app --udid SIM-1", "idb ui describe-all --json --udid SIM-1"}
	if strings.Join(calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls = %q", calls)
	}
	for _, s := range []string{"Launched com.example.app.", "LAUNCHED | com.example.app", "App    : Demo"} {
		if !strings.Contains(r.stdout, s) {
			t.Errorf("stdout missing %q", s)
		}
	}
}

func TestLaunch_ExitCode(t *testing.T) {
	fake := newFake().On("idb launch", shell.FakeResponse{Err: &shell.ExitError{
		Command: []string{"idb", "launch", "com.missing"},
		Code:    3,
		Stderr:  "app not installed",
	}})

	r := runCLI(t, fake, "launch", "com.missing")

	if r.code != 3 {
		t.Errorf("exit = %d, want 3", r.code)
	}
	if r.stderr != "ERROR: idb launch com.missing\napp not installed\n" {
		t.Errorf("stderr = %q", r.stderr)
	}
}

func TestTerminate(t *testing.T) {
	r := runCLI(t, newFake(), "terminate", "com.example.app")
	assertActions(t, r, "idb terminate com.example.app")
	if !strings.Contains(r.stdout, "Terminated com.example.app.") {
		t.Errorf("stdout:\n%s", r.stdout)
	}
}

func TestInstall(t *testing.T) {
	fake := newFake().On("idb install", shell.FakeResponse{Stdout: "Installed: com.example.app\n"})

	r := runCLI(t, fake, "install", "build/Demo.app")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	if !fake.Calls[0].Stream {
		t.Error("install output should be streamed")
	}
	want := "Installing build/Demo.app …\nInstalled: com.example.app\nInstalled.\n"
	if r.stdout != want {
		t.Errorf("stdout = %q, want %q", r.stdout, want)
	}
}

func TestListApps(t *testing.T) {
	fake := newFake().On("idb list-apps", shell.FakeResponse{Stdout: `[
		{"bundle_id": "com.example.app", "name": "Demo", "install_type": "user", "process_state": "Running"},
		{"bundle_id": "com.apple.Preferences", "name": "", "install_type": "system", "process_state": "Unknown"}
	]`})

	r := runCLI(t, fake, "list-apps")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	assertActions(t, r, "idb list-apps --json --fetch-process-state")
	for _, want := range []string{
		"com.example.app" + strings.Repeat(" ", 35) + "  Running       Demo",
		"com.apple.Preferences",
	} {
		if !strings.Contains(r.stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, r.stdout)
		}
	}
}

func TestDescribe(t *testing.T) {
	r := runCLI(t, newFake(), "describe")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	for _, want := range []string{"Full UI Accessibility Tree", "Elements: 3", "'Sign In'  →  tap(125, 210)"} {
		if !strings.Contains(r.stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, r.stdout)
		}
	}
	if strings.Contains(r.stdout, "All elements:") {
		t.Error("element list should need --verbose")
	}

	r = runCLI(t, newFake(), "describe", "--verbose")
	if !strings.Contains(r.stdout, "All elements:") || !strings.Contains(r.stdout, "center=(120,115)") {
		t.Errorf("verbose stdout:\n%s", r.stdout)
	}
}

func TestDescribe_JSON(t *testing.T) {
	r := runCLI(t, newFake(), "describe", "--json")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	if !strings.HasPrefix(r.stdout, "[") || !strings.Contains(r.stdout, `"AXLabel": "Sign In"`) {
		t.Errorf("stdout:\n%s", r.stdout)
	}
	if strings.Contains(r.stdout, "Full UI") {
		t.Error("--json should print only JSON")
	}
}

func TestFind(t *testing.T) {
	r := runCLI(t, newFake(), "find", "--udid", "SIM-1", "Welcome")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	for _, want := range []string{
		"Found: [StaticText] 'Welcome'",
		"Frame : x=20, y=100, w=200, h=30",
		"Center: (120, 115)",
		"Tap   : idb ui tap 120 115",
		"(add --udid SIM-1)",
	} {
		if !strings.Contains(r.stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, r.stdout)
		}
	}
	assertActions(t, r)
}

func TestFind_NotFound(t *testing.T) {
	r := runCLI(t, newFake(), "find", "Logout")
	if r.code != 1 {
		t.Errorf("exit = %d, want 1", r.code)
	}
	if !strings.Contains(r.stdout, "[Button] 'Sign In'  center=(125,210)") {
		t.Errorf("stdout:\n%s", r.stdout)
	}
}

func TestScreenshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	r := runCLI(t, newFake(), "screenshot", path)
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	assertActions(t, r, "idb screenshot "+path)
	if !strings.Contains(r.stdout, "Screenshot saved: "+path) {
		t.Errorf("stdout:\n%s", r.stdout)
	}
}

func TestBuild(t *testing.T) {
	derived := t.TempDir()
	products := filepath.Join(derived, "Build", "Products", "Release-iphonesimulator")
	writeFile(t, filepath.Join(products, "Demo.app", "Info.plist"), `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
  <key>CFBundleIdentifier</key>
  <string>com.example.demo</string>
  <key>CFBundleName</key>
  <string>Demo</string>
</dict>
</plist>`)

	fake := newFake().On("xcodebuild", shell.FakeResponse{Stdout: "** BUILD SUCCEEDED **\n"})
	r := runCLI(t, fake, "build", "-p", "Demo.xcodeproj", "-s", "Demo", "-c", "Release", "-d", derived)
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}

	wantCall := "xcodebuild -project Demo.xcodeproj -scheme Demo -sdk iphonesimulator -configuration Release -derivedDataPath " +
		derived + " -destination=platform=iOS Simulator,name=iPhone 16 Pro build"
	assertActions(t, r, wantCall)

	for _, want := range []string{
		"Building: " + wantCall,
		"** BUILD SUCCEEDED **",
		"Build products: " + products,
		"→ " + filepath.Join(products, "Demo.app") + "  (com.example.demo)",
	} {
		if !strings.Contains(r.stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, r.stdout)
		}
	}
}

func TestBuild_ConfigDefaultsAndUDID(t *testing.T) {
	derived := t.TempDir()
	cfgPath := writeFile(t, filepath.Join(t.TempDir(), "c.yaml"),
		"build:\n  scheme: FromConfig\n  derivedData: "+derived+"\n")

	fake := newFake()
	r := runCLI(t, fake, "--config", cfgPath, "build", "-w", "Demo.xcworkspace", "--udid", "SIM-1")
	if r.code != 0 {
		t.Fatalf("exit %d: %s", r.code, r.stderr)
	}
	call := fake.CallLines()[0]
	for _, want := range []string{"-workspace Demo.xcworkspace", "-scheme FromConfig", "-configuration Debug", "-destination=id=SIM-1"} {
		if !strings.Contains(call, want) {
			t.Errorf("call %q missing %q", call, want)
		}
	}
}

func TestBuild_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no project", []string{"build", "-s", "Demo"}, "one of --project or --workspace is required"},
		{"both", []string{"build", "-p", "a.xcodeproj", "-w", "b.xcworkspace", "-s", "Demo"}, "mutually exclusive"},
		{"no scheme", []string{"build", "-p", "a.xcodeproj"}, "--scheme is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runCLI(t, newFake(), tt.args...)
			if r.code != 1 {
				t.Errorf("exit = %d, want 1", r.code)
			}
			if !strings.Contains(r.stderr, tt.want) {
				t.Errorf("stderr = %q, want %q", r.stderr, tt.want)
			}
			if len(r.fake.Calls) != 0 {
				t.Errorf("xcodebuild should not run, got %q", r.fake.CallLines())
			}
		})
	}
}

func TestRun_PassingFlow(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "login.yaml"), `name: Login
appId: com.example.app
env:
  LOGIN_NAME: header
---
- launchApp
- tapOn: "Sign In"
- inputText: "${LOGIN_NAME}"
`)

	r := runCLI(t, newFake(), "run", "-e", "LOGIN_NAME=alice", path)
	if r.code != 0 {
		t.Fatalf("exit %d: %s\n%s", r.code, r.stderr, r.stdout)
	}
	assertActions(t, r,
		"idb launch com.example.app",
		"idb ui tap 125 210",
		"idb ui text alice",
	)
	for _, want := range []string{"[1/1]", "Login", "3 steps passing", "TOTAL", "1/1"} {
		if !strings.Contains(r.stdout, want) {
			t.Errorf("stdout missing %q", want)
		}
	}
}

func TestRun_FailingFlow(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), "- tapOn: \"Sign Up\"\n- inputText: never\n")
	writeFile(t, filepath.Join(dir, "b.yaml"), "- tapOn: \"Sign In\"\n")

	r := runCLI(t, newFake(), "run", "--stop-on-fail", dir)

	if r.code != 1 {
		t.Errorf("exit = %d, want 1", r.code)
	}
	if !strings.Contains(r.stderr, "ERROR: one or more flows failed") {
		t.Errorf("stderr = %q", r.stderr)
	}
	assertActions(t, r)
	for _, want := range []string{"✗ FAIL", "- SKIP", "No element found"} {
		if !strings.Contains(r.stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, r.stdout)
		}
	}
}

func TestRun_UDIDPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "f.yaml"), "udid: HEADER-1\n---\n- pressButton: HOME\n")

	r := runCLI(t, newFake(), "run", path)
	assertActions(t, r, "idb ui button HOME --udid HEADER-1")

	r = runCLI(t, newFake(), "run", "--udid", "FLAG-1", path)
	assertActions(t, r, "idb ui button HOME --udid FLAG-1")
}

func TestRun_ValidationErrors(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, filepath.Join(dir, "good.yaml"), "- tapOn: \"Sign In\"\n")
	bad := writeFile(t, filepath.Join(dir, "bad.yaml"), "- tapOn: \"Sign In\"\n- scroll: sideways\n")

	r := runCLI(t, newFake(), "run", good, bad)

	if r.code != 1 {
		t.Errorf("exit = %d, want 1", r.code)
	}
	if !strings.Contains(r.stderr, "Validation errors:") || !strings.Contains(r.stderr, "bad.yaml:2") {
		t.Errorf("stderr = %q", r.stderr)
	}
	if len(r.fake.Calls) != 0 {
		t.Errorf("nothing should run when a flow is invalid, got %q", r.fake.CallLines())
	}
}

func TestRun_NoFlowsAfterFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), "tags: [slow]\n---\n- tapOn: \"Sign In\"\n")

	r := runCLI(t, newFake(), "run", "--include-tags", "smoke", dir)
	if r.code != 1 {
		t.Errorf("exit = %d, want 1", r.code)
	}
	if !strings.Contains(r.stderr, "no flows found") {
		t.Errorf("stderr = %q", r.stderr)
	}
}

func TestScript(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "demo.js"), `
var el = sim.tapElement("Sign In");
console.log("tapped", el.label, "for", WHO);
output.count = sim.describe().length;
output.missing = sim.find("Nope") === null;
`)

	r := runCLI(t, newFake(), "script", "-e", "WHO=bob", path)
	if r.code != 0 {
		t.Fatalf("exit %d: %s\n%s", r.code, r.stderr, r.stdout)
	}
	assertActions(t, r, "idb ui tap 125 210")
	for _, want := range []string{"tapped Sign In for bob", "count = 3", "missing = true"} {
		if !strings.Contains(r.stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, r.stdout)
		}
	}
}

func TestScript_Errors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "bad.js"), `sim.button("VOLUME_UP");`)

	r := runCLI(t, newFake(), "script", path)
	if r.code != 1 {
		t.Errorf("exit = %d, want 1", r.code)
	}
	if !strings.Contains(r.stderr, "ERROR: ") {
		t.Errorf("stderr = %q", r.stderr)
	}

	r = runCLI(t, newFake(), "script", filepath.Join(dir, "missing.js"))
	if r.code != 1 || !strings.Contains(r.stderr, "cannot read script") {
		t.Errorf("missing script: exit %d, stderr %q", r.code, r.stderr)
	}
}

func TestPrintError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "exit error with stderr",
			err:  &shell.ExitError{Command: []string{"idb", "ui", "tap", "1", "2"}, Code: 1, Stderr: "no companion\n\n"},
			want: "ERROR: idb ui tap 1 2\nno companion\n",
		},
		{
			name: "exit error without stderr",
			err:  &shell.ExitError{Command: []string{"xcrun", "simctl", "boot", "X"}, Code: 2},
			want: "ERROR: xcrun simctl boot X\n",
		},
		{
			name: "local failure",
			err:  core.ErrInvalidButton.WithMessage("invalid button 'X'"),
			want: "ERROR: invalid button 'X'\n",
		},
		{
			name: "plain",
			err:  errors.New("boom"),
			want: "ERROR: boom\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printError(&buf, tt.err)
			if buf.String() != tt.want {
				t.Errorf("printError() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0ms"},
		{500 * time.Millisecond, "500ms"},
		{999 * time.Millisecond, "999ms"},
		{time.Second, "1.0s"},
		{1500 * time.Millisecond, "1.5s"},
		{59 * time.Second, "59.0s"},
		{time.Minute, "1m 0s"},
		{125 * time.Second, "2m 5s"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestParseEnvVars(t *testing.T) {
	result := parseEnvVars([]string{"USER=test", "URL=http://x?a=b", "EMPTY=", "INVALID"})

	want := map[string]string{"USER": "test", "URL": "http://x?a=b", "EMPTY": ""}
	if len(result) != len(want) {
		t.Fatalf("got %v, want %v", result, want)
	}
	for k, v := range want {
		if result[k] != v {
			t.Errorf("%s = %q, want %q", k, result[k], v)
		}
	}
}

func TestMergeEnv(t *testing.T) {
	merged := mergeEnv(map[string]string{"A": "header", "B": "header"}, map[string]string{"B": "flag", "C": "flag"})
	want := map[string]string{"A": "header", "B": "flag", "C": "flag"}
	for k, v := range want {
		if merged[k] != v {
			t.Errorf("%s = %q, want %q", k, merged[k], v)
		}
	}

	if got := mergeEnv(nil, nil); got == nil || len(got) != 0 {
		t.Errorf("mergeEnv(nil, nil) = %v", got)
	}
}

func TestColor(t *testing.T) {
	old := colorsEnabled
	defer func() { colorsEnabled = old }()

	colorsEnabled = true
	if got := color(colorGreen); got != colorGreen {
		t.Errorf("color(colorGreen) with colors enabled = %q", got)
	}
	colorsEnabled = false
	if got := color(colorGreen); got != "" {
		t.Errorf("color(colorGreen) with colors disabled = %q", got)
	}
}

func TestDetectColors(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	if detectColors(&bytes.Buffer{}, false) {
		t.Error("a buffer is not a terminal")
	}
	if detectColors(os.Stdout, true) {
		t.Error("--no-ansi must disable colors")
	}

	t.Setenv("NO_COLOR", "1")
	if detectColors(os.Stdout, false) {
		t.Error("NO_COLOR must disable colors")
	}
}
