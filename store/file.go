// Package store persists device snapshots so a simulation can be stopped
// and resumed.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	cc2420 "github.com/michcald/cc2420sim"
)

var (
	ErrPkg      = errors.New("store")
	ErrNotFound = errors.New("snapshot not found")
)

// SaveFile writes s to path as indented JSON, creating parent directories.
func SaveFile(path string, s cc2420.Snapshot) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// LoadFile reads a snapshot written by SaveFile.
func LoadFile(path string) (cc2420.Snapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cc2420.Snapshot{}, fmt.Errorf("%w: %w: %s", ErrPkg, ErrNotFound, path)
	}
	if err != nil {
		return cc2420.Snapshot{}, fmt.Errorf("failed to read file: %w", err)
	}

	var s cc2420.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return cc2420.Snapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return s, nil
}

// Path returns the conventional file location of a named device snapshot.
func Path(dir, name string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.json", name))
}
