// Package workdir locates the files dictate keeps on disk.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// Root returns the data directory. override wins when set; otherwise it is
//
//	$HOME/Documents/Alkime/Dictate
func Root(override string) (string, error) {
	if override != "" {
		return filepath.Abs(override)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, "Documents", "Alkime", "Dictate"), nil
}

// Paths are the well known locations under a root.
type Paths struct {
	Root     string
	Sessions string
	DB       string
	Log      string
}

// Resolve returns the paths under root.
func Resolve(root string) Paths {
	return Paths{
		Root:     root,
		Sessions: filepath.Join(root, "sessions"),
		DB:       filepath.Join(root, "dictate.db"),
		Log:      filepath.Join(root, "dictate.log"),
	}
}

// Prep resolves the data directory and makes sure it exists.
func Prep(override string) (Paths, error) {
	root, err := Root(override)
	if err != nil {
		return Paths{}, err
	}

	p := Resolve(root)
	if err := os.MkdirAll(p.Sessions, 0o755); err != nil {
		return Paths{}, fmt.Errorf("failed to create working directory %s: %w", p.Sessions, err)
	}

	return p, nil
}
