// Package files provides utilities for working with files/directories.
package files

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrPathEmpty    = errors.New("path is empty")
)

// Exists checks if a file exists.
func Exists(s string) bool {
	_, err := os.Stat(s)
	return !os.IsNotExist(err)
}

// mkdir creates a new directory at the specified path.
func mkdir(s string) error {
	if Exists(s) {
		return nil
	}

	slog.Debug("creating path", "path", s)
	if err := os.MkdirAll(s, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", s, err)
	}

	return nil
}

// MkdirAll creates all the given paths.
func MkdirAll(s ...string) error {
	for _, path := range s {
		if err := mkdir(path); err != nil {
			return err
		}
	}

	return nil
}

// Copy copies the contents of a source file to a destination file.
func Copy(from, to string) error {
	srcFile, err := os.Open(from)
	if err != nil {
		return fmt.Errorf("opening source file: %w", err)
	}

	defer func() {
		if err := srcFile.Close(); err != nil {
			slog.Warn("closing source file", "error", err)
		}
	}()

	dstFile, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("creating destination file: %w", err)
	}

	slog.Debug("copying file", "from", filepath.Base(from), "to", filepath.Base(to))

	defer func() {
		if err := dstFile.Close(); err != nil {
			slog.Warn("closing destination file", "error", err)
		}
	}()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("copying file: %w", err)
	}

	return nil
}

// CopyToTemp copies the file at path s to a private temporary file and
// returns the temp path. The caller owns the copy and must remove it.
func CopyToTemp(prefix, s string) (string, error) {
	if !Exists(s) {
		return "", fmt.Errorf("%w: %q", ErrFileNotFound, s)
	}

	tmp, err := os.CreateTemp("", prefix+"-*.sqlite")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing temp file: %w", err)
	}

	if err := Copy(s, tmp.Name()); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}

	return tmp.Name(), nil
}

// EnsureExt appends the specified suffix to the filename.
func EnsureExt(s, suffix string) string {
	e := filepath.Ext(s)
	if e == suffix || e != "" {
		return s
	}

	return fmt.Sprintf("%s%s", s, suffix)
}

// ModTime returns the modification time of the specified file.
func ModTime(s string) time.Time {
	fi, err := os.Stat(s)
	if err != nil {
		slog.Debug("ModTime", "path", s, "error", err)
		return time.Time{}
	}

	return fi.ModTime()
}
