package storage

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/config"
)

// Compile-time interface check.
var _ Reader = (*localReader)(nil)

type localReader struct {
	// paths maps discovery path names to absolute directory paths.
	paths map[string]string
}

// NewLocalReader creates a Reader backed by local filesystem directories.
func NewLocalReader(cfg *config.LocalIngestConfig) Reader {
	paths := make(map[string]string, len(cfg.DiscoveryPaths))
	maps.Copy(paths, cfg.DiscoveryPaths)

	return &localReader{paths: paths}
}

// DiscoveryPaths returns the configured discovery path names sorted.
func (r *localReader) DiscoveryPaths() []string {
	keys := make([]string, 0, len(r.paths))
	for k := range r.paths {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func (r *localReader) root(discoveryPath string) (string, error) {
	dirPath, ok := r.paths[discoveryPath]
	if !ok {
		return "", fmt.Errorf(
			"unknown discovery path: %q", discoveryPath,
		)
	}

	return dirPath, nil
}

// ListBuildIDs returns build directory names under {dirPath}/builds/.
func (r *localReader) ListBuildIDs(
	_ context.Context, discoveryPath string,
) ([]string, error) {
	dirPath, err := r.root(discoveryPath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(dirPath, "builds"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading builds directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}

	return ids, nil
}

// ListBuildFiles returns regular file names under {dirPath}/builds/{buildID}/.
func (r *localReader) ListBuildFiles(
	_ context.Context, discoveryPath, buildID string,
) ([]string, error) {
	dirPath, err := r.root(discoveryPath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(dirPath, "builds", buildID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading build directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}

// GetBuildFile reads a file from {dirPath}/builds/{buildID}/{filename}.
// Returns (nil, nil) when the file does not exist.
func (r *localReader) GetBuildFile(
	_ context.Context, discoveryPath, buildID, filename string,
) ([]byte, error) {
	dirPath, err := r.root(discoveryPath)
	if err != nil {
		return nil, err
	}

	p := filepath.Join(dirPath, "builds", buildID, filename)

	data, err := os.ReadFile(p) //nolint:gosec // trusted paths from config
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading file %s: %w", p, err)
	}

	return data, nil
}
