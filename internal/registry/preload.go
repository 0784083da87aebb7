package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// maxConcurrentLoads bounds how many files Preload reads at once.
const maxConcurrentLoads = 4

// ImageExtensions lists the file extensions treated as SQLite images.
var ImageExtensions = []string{".sqlite", ".sqlite3", ".db"}

// IsImageFile reports whether path has a SQLite image extension.
func IsImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadFile reads a database file and registers it under its base name.
func (r *Registry) LoadFile(ctx context.Context, path string) (*Handle, error) {
	image, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return r.Load(ctx, filepath.Base(path), image)
}

// Preload loads several database files concurrently. It returns the first
// error encountered; files loaded before the failure stay registered.
func (r *Registry) Preload(ctx context.Context, paths ...string) error {
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentLoads)

	for _, path := range paths {
		eg.Go(func() error {
			if _, err := r.LoadFile(egctx, path); err != nil {
				return err
			}
			return nil
		})
	}
	return eg.Wait()
}

// PreloadDir loads every SQLite image found directly inside dir.
func (r *Registry) PreloadDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read preload directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !IsImageFile(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return r.Preload(ctx, paths...)
}
