// Package xcodebuild builds apps for the iOS simulator and locates the products.
package xcodebuild

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"howett.net/plist"

	"github.com/devicelab-dev/iossim/pkg/core"
	"github.com/devicelab-dev/iossim/pkg/logger"
	"github.com/devicelab-dev/iossim/pkg/shell"
)

// Options configures one xcodebuild invocation.
type Options struct {
	Project         string // .xcodeproj path; mutually exclusive with Workspace
	Workspace       string // .xcworkspace path
	Scheme          string
	Configuration   string // e.g. "Debug"
	DerivedData     string // -derivedDataPath
	UDID            string // destination simulator; empty uses DestinationName
	DestinationName string // simulator name used when UDID is empty
}

// Validate checks the project/workspace and scheme requirements.
func (o Options) Validate() error {
	switch {
	case o.Project != "" && o.Workspace != "":
		return core.ErrInvalidArgument.WithMessage("--project and --workspace are mutually exclusive")
	case o.Project == "" && o.Workspace == "":
		return core.ErrInvalidArgument.WithMessage("one of --project or --workspace is required")
	case o.Scheme == "":
		return core.ErrInvalidArgument.WithMessage("--scheme is required")
	}
	return nil
}

// Destination returns the -destination value.
func (o Options) Destination() string {
	if o.UDID != "" {
		return "id=" + o.UDID
	}
	return "platform=iOS Simulator,name=" + o.DestinationName
}

// Args returns the xcodebuild arguments, without the binary name.
func (o Options) Args() []string {
	var args []string
	if o.Workspace != "" {
		args = append(args, "-workspace", o.Workspace)
	} else {
		args = append(args, "-project", o.Project)
	}
	return append(args,
		"-scheme", o.Scheme,
		"-sdk", "iphonesimulator",
		"-configuration", o.Configuration,
		"-derivedDataPath", o.DerivedData,
		"-destination="+o.Destination(),
		"build",
	)
}

// ProductsDir returns the directory xcodebuild writes simulator products to.
func (o Options) ProductsDir() string {
	return filepath.Join(o.DerivedData, "Build", "Products", o.Configuration+"-iphonesimulator")
}

// Build runs xcodebuild, streaming its output to stdout and stderr.
func Build(ctx context.Context, runner shell.Runner, stdout, stderr io.Writer, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(opts.DerivedData, 0o755); err != nil {
		return fmt.Errorf("failed to create derived data dir: %w", err)
	}
	logger.Info("Building scheme %s (%s) into %s", opts.Scheme, opts.Configuration, opts.DerivedData)
	return runner.Stream(ctx, stdout, stderr, "xcodebuild", opts.Args()...)
}

// Product is a built .app bundle.
type Product struct {
	Path     string
	Name     string // CFBundleName, if present
	BundleID string // CFBundleIdentifier, if present
}

type infoPlist struct {
	BundleIdentifier string `plist:"CFBundleIdentifier"`
	BundleName       string `plist:"CFBundleName"`
}

// FindProducts lists the .app bundles in dir, sorted by path.
// A missing directory yields no products.
func FindProducts(dir string) ([]Product, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read build products: %w", err)
	}

	var products []Product
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".app") {
			continue
		}
		p := Product{Path: filepath.Join(dir, entry.Name())}
		info, err := readInfoPlist(filepath.Join(p.Path, "Info.plist"))
		if err != nil {
			logger.Warn("Could not read Info.plist for %s: %v", p.Path, err)
		} else {
			p.BundleID = info.BundleIdentifier
			p.Name = info.BundleName
		}
		products = append(products, p)
	}

	sort.Slice(products, func(i, j int) bool { return products[i].Path < products[j].Path })
	return products, nil
}

func readInfoPlist(path string) (*infoPlist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var info infoPlist
	if err := plist.NewDecoder(f).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}
