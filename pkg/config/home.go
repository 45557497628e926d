package config

import (
	"os"
	"path/filepath"
	"sync"
)

const envHome = "IOSSIM_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the iossim home directory.
//
// Resolution order:
//  1. $IOSSIM_HOME environment variable
//  2. ~/.iossim
//  3. .iossim in the current working directory
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// GetLogPath returns <home>/iossim.log.
func GetLogPath() string {
	return filepath.Join(GetHome(), "iossim.log")
}

func resolveHome() string {
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	if userHome, err := os.UserHomeDir(); err == nil {
		return filepath.Join(userHome, ".iossim")
	}

	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, ".iossim")
	}

	return ".iossim"
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
