package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetHome_EnvVar(t *testing.T) {
	ResetHome()
	t.Cleanup(ResetHome)
	t.Setenv("IOSSIM_HOME", "/custom/path")

	got := GetHome()
	if got != "/custom/path" {
		t.Errorf("GetHome() = %q, want %q", got, "/custom/path")
	}
}

func TestGetHome_DefaultsToUserHome(t *testing.T) {
	ResetHome()
	t.Cleanup(ResetHome)
	t.Setenv("IOSSIM_HOME", "")

	userHome, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no user home directory")
	}

	want := filepath.Join(userHome, ".iossim")
	if got := GetHome(); got != want {
		t.Errorf("GetHome() = %q, want %q", got, want)
	}
}

func TestGetHome_Cached(t *testing.T) {
	ResetHome()
	t.Cleanup(ResetHome)
	t.Setenv("IOSSIM_HOME", "/first")

	first := GetHome()

	// Changing the env does not affect the cached value
	t.Setenv("IOSSIM_HOME", "/second")
	second := GetHome()

	if first != second {
		t.Errorf("GetHome() not cached: first=%q, second=%q", first, second)
	}
}

func TestGetLogPath(t *testing.T) {
	ResetHome()
	t.Cleanup(ResetHome)
	t.Setenv("IOSSIM_HOME", "/home/test")

	want := filepath.Join("/home/test", "iossim.log")
	if got := GetLogPath(); got != want {
		t.Errorf("GetLogPath() = %q, want %q", got, want)
	}
}
