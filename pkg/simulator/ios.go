// Package simulator manages iOS simulators through xcrun simctl.
package simulator

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver"
	"github.com/cenkalti/backoff"
	"github.com/google/uuid"

	"github.com/devicelab-dev/iossim/pkg/core"
	"github.com/devicelab-dev/iossim/pkg/logger"
	"github.com/devicelab-dev/iossim/pkg/shell"
)

// Simctl runs simctl subcommands.
type Simctl struct {
	runner shell.Runner
}

// New creates a Simctl backed by runner.
func New(runner shell.Runner) *Simctl {
	return &Simctl{runner: runner}
}

// simctlDevicesOutput represents the JSON output from xcrun simctl list devices.
type simctlDevicesOutput struct {
	Devices map[string][]simctlDevice `json:"devices"`
}

type simctlDevice struct {
	Name        string `json:"name"`
	UDID        string `json:"udid"`
	State       string `json:"state"`
	IsAvailable bool   `json:"isAvailable"`
}

// ListOptions filters the simulator list.
type ListOptions struct {
	// MinOS keeps only runtimes at or above this version, e.g. "17.0".
	MinOS string
	// BootedOnly keeps only booted simulators.
	BootedOnly bool
}

// List returns available simulators, newest runtime first, then by name.
func (s *Simctl) List(ctx context.Context, opts ListOptions) ([]Device, error) {
	var constraint *semver.Constraints
	if opts.MinOS != "" {
		c, err := semver.NewConstraint(">= " + opts.MinOS)
		if err != nil {
			return nil, core.ErrInvalidArgument.WithMessage("invalid --min-os " + opts.MinOS).WithCause(err)
		}
		constraint = c
	}

	output, err := s.runner.Output(ctx, "xcrun", "simctl", "list", "devices", "--json")
	if err != nil {
		return nil, err
	}

	sims, err := parseDevices(output)
	if err != nil {
		return nil, err
	}

	var kept []Device
	for _, sim := range sims {
		if opts.BootedOnly && !sim.IsBooted() {
			continue
		}
		if constraint != nil {
			v, err := semver.NewVersion(sim.OSVersion)
			if err != nil || !constraint.Check(v) {
				continue
			}
		}
		kept = append(kept, sim)
	}

	sortDevices(kept)
	logger.Debug("Found %d available simulators", len(kept))
	return kept, nil
}

func parseDevices(output []byte) ([]Device, error) {
	var data simctlDevicesOutput
	if err := json.Unmarshal(output, &data); err != nil {
		return nil, core.ErrUnexpectedOutput.WithMessage("failed to parse simctl output").WithCause(err)
	}

	var sims []Device
	for runtime, devices := range data.Devices {
		osVersion := extractOSVersion(runtime)
		for _, dev := range devices {
			if !dev.IsAvailable {
				continue
			}
			sims = append(sims, Device{
				Name:        dev.Name,
				UDID:        dev.UDID,
				Runtime:     runtime,
				OSVersion:   osVersion,
				State:       dev.State,
				IsAvailable: dev.IsAvailable,
			})
		}
	}
	return sims, nil
}

// sortDevices orders by OS version descending, then name, then UDID.
// Runtimes without a parseable version sort last.
func sortDevices(sims []Device) {
	versions := make(map[string]*semver.Version)
	for _, sim := range sims {
		if _, ok := versions[sim.OSVersion]; ok {
			continue
		}
		v, err := semver.NewVersion(sim.OSVersion)
		if err != nil {
			v = nil
		}
		versions[sim.OSVersion] = v
	}

	sort.SliceStable(sims, func(i, j int) bool {
		vi, vj := versions[sims[i].OSVersion], versions[sims[j].OSVersion]
		switch {
		case vi == nil && vj != nil:
			return false
		case vi != nil && vj == nil:
			return true
		case vi != nil && vj != nil && !vi.Equal(vj):
			return vi.GreaterThan(vj)
		}
		if sims[i].Runtime != sims[j].Runtime {
			return sims[i].Runtime < sims[j].Runtime
		}
		if sims[i].Name != sims[j].Name {
			return sims[i].Name < sims[j].Name
		}
		return sims[i].UDID < sims[j].UDID
	})
}

// Resolve turns a simulator name into a UDID. Names match
// case-insensitively and a booted match is preferred. Anything that is not a
// known name, such as a UDID or simctl's "booted" and "all", is returned
// unchanged for simctl to accept or reject.
func (s *Simctl) Resolve(ctx context.Context, nameOrUDID string) (string, error) {
	if _, err := uuid.Parse(nameOrUDID); err == nil {
		return nameOrUDID, nil
	}
	switch strings.ToLower(nameOrUDID) {
	case "booted", "all":
		return nameOrUDID, nil
	}

	sims, err := s.List(ctx, ListOptions{})
	if err != nil {
		return "", err
	}

	var match *Device
	for i := range sims {
		if !strings.EqualFold(sims[i].Name, nameOrUDID) {
			continue
		}
		if match == nil || (!match.IsBooted() && sims[i].IsBooted()) {
			match = &sims[i]
		}
	}
	if match == nil {
		logger.Debug("No simulator named %q, passing it to simctl as is", nameOrUDID)
		return nameOrUDID, nil
	}
	logger.Debug("Resolved simulator %q to %s (%s)", nameOrUDID, match.UDID, match.RuntimeLabel())
	return match.UDID, nil
}

// Find returns the simulator with the given UDID.
func (s *Simctl) Find(ctx context.Context, udid string) (Device, error) {
	sims, err := s.List(ctx, ListOptions{})
	if err != nil {
		return Device{}, err
	}
	for _, sim := range sims {
		if sim.UDID == udid {
			return sim, nil
		}
	}
	return Device{}, core.ErrSimulatorNotFound.WithMessage("simulator not found: " + udid)
}

// Boot boots a simulator.
func (s *Simctl) Boot(ctx context.Context, udid string) error {
	logger.Info("Booting simulator: %s", udid)
	_, err := s.runner.Output(ctx, "xcrun", "simctl", "boot", udid)
	return err
}

// Shutdown shuts down a simulator.
func (s *Simctl) Shutdown(ctx context.Context, udid string) error {
	logger.Info("Shutting down simulator: %s", udid)
	_, err := s.runner.Output(ctx, "xcrun", "simctl", "shutdown", udid)
	return err
}

// WaitForBoot polls simctl with exponential backoff until the simulator
// reports "Booted" or timeout elapses.
func (s *Simctl) WaitForBoot(ctx context.Context, udid string, timeout time.Duration) error {
	logger.Info("Waiting for simulator boot: %s", udid)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = timeout

	check := func() error {
		sim, err := s.Find(ctx, udid)
		if err != nil {
			logger.Debug("Boot check error: %v", err)
			return err
		}
		if !sim.IsBooted() {
			return core.ErrBootTimeout.WithMessage("simulator state is " + sim.State)
		}
		return nil
	}

	if err := backoff.Retry(check, backoff.WithContext(b, ctx)); err != nil {
		return core.ErrBootTimeout.WithMessage("simulator " + udid + " did not boot within " + timeout.String()).WithCause(err)
	}
	logger.Info("Simulator booted: %s", udid)
	return nil
}

// extractOSVersion extracts version from runtime string.
// e.g., "com.apple.CoreSimulator.SimRuntime.iOS-17-2" → "17.2"
func extractOSVersion(runtime string) string {
	for _, prefix := range []string{"iOS-", "watchOS-", "tvOS-", "xrOS-"} {
		idx := strings.LastIndex(runtime, prefix)
		if idx != -1 {
			return strings.ReplaceAll(runtime[idx+len(prefix):], "-", ".")
		}
	}
	return ""
}
