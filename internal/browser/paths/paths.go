// Package browserpath provides platform-specific candidate roots for
// browser data directories.
package browserpath

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/mateconpizza/hsearch/internal/sys/files"
)

// BlinkRoots returns candidate data roots for a Chromium-family browser.
// dirMac is the vendor directory under "Application Support", dirLinux the
// one under XDG config.
func BlinkRoots(dirMac, dirLinux string) []string {
	h, _ := os.UserHomeDir()
	if runtime.GOOS == "darwin" {
		return []string{filepath.Join(h, "Library", "Application Support", dirMac)}
	}

	return []string{filepath.Join(xdgConfigHome(h), dirLinux)}
}

// GeckoRoots returns candidate data roots for a Gecko-family browser. Some
// builds vary the directory casing, so all variants are returned.
func GeckoRoots(dirsMac []string, dirLinux string) []string {
	h, _ := os.UserHomeDir()
	if runtime.GOOS == "darwin" {
		roots := make([]string, 0, len(dirsMac))
		for _, d := range dirsMac {
			roots = append(roots, filepath.Join(h, "Library", "Application Support", d))
		}

		return roots
	}

	return []string{filepath.Join(h, dirLinux)}
}

// FirstExisting returns the first root that exists on disk.
func FirstExisting(roots []string) (string, bool) {
	for _, r := range roots {
		if files.Exists(r) {
			return r, true
		}
	}

	return "", false
}

func xdgConfigHome(home string) string {
	if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
		return x
	}

	return filepath.Join(home, ".config")
}
