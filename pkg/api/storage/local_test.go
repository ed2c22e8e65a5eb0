package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/api/storage"
	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/config"
)

func setupLocalReader(t *testing.T, paths map[string]string) storage.Reader {
	t.Helper()

	return storage.NewLocalReader(&config.LocalIngestConfig{
		DiscoveryPaths: paths,
	})
}

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

func TestLocalReader_DiscoveryPaths(t *testing.T) {
	t.Parallel()

	reader := setupLocalReader(t, map[string]string{
		"charlie": t.TempDir(),
		"alpha":   t.TempDir(),
		"bravo":   t.TempDir(),
	})

	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, reader.DiscoveryPaths())
}

func TestLocalReader_ListBuildIDs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("returns build directory names", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		buildsDir := filepath.Join(dir, "builds")
		require.NoError(t, os.MkdirAll(filepath.Join(buildsDir, "1"), 0o755))
		require.NoError(t, os.MkdirAll(filepath.Join(buildsDir, "2"), 0o755))

		// Regular files next to build directories are ignored.
		writeFile(t, filepath.Join(buildsDir, "README.txt"), []byte("skip"))

		reader := setupLocalReader(t, map[string]string{"dp": dir})

		ids, err := reader.ListBuildIDs(ctx, "dp")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"1", "2"}, ids)
	})

	t.Run("missing builds directory returns nil", func(t *testing.T) {
		t.Parallel()

		reader := setupLocalReader(t, map[string]string{"dp": t.TempDir()})

		ids, err := reader.ListBuildIDs(ctx, "dp")
		require.NoError(t, err)
		assert.Nil(t, ids)
	})
}

func TestLocalReader_ListBuildFiles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	buildDir := filepath.Join(dir, "builds", "7")

	writeFile(t, filepath.Join(buildDir, "b.json"), []byte("[]"))
	writeFile(t, filepath.Join(buildDir, "a.csv"), []byte("h\n"))
	require.NoError(t, os.MkdirAll(filepath.Join(buildDir, "nested"), 0o755))

	reader := setupLocalReader(t, map[string]string{"dp": dir})

	names, err := reader.ListBuildFiles(ctx, "dp", "7")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.csv", "b.json"}, names)

	names, err = reader.ListBuildFiles(ctx, "dp", "8")
	require.NoError(t, err)
	assert.Nil(t, names)
}

func TestLocalReader_GetBuildFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("reads existing file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		content := []byte("name,module,status,duration\nlogin,auth,PASS,1.2\n")
		writeFile(t, filepath.Join(dir, "builds", "1", "results.csv"), content)

		reader := setupLocalReader(t, map[string]string{"dp": dir})

		data, err := reader.GetBuildFile(ctx, "dp", "1", "results.csv")
		require.NoError(t, err)
		assert.Equal(t, content, data)
	})

	t.Run("missing file returns nil nil", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "builds", "1"), 0o755))

		reader := setupLocalReader(t, map[string]string{"dp": dir})

		data, err := reader.GetBuildFile(ctx, "dp", "1", "no-such-file.json")
		require.NoError(t, err)
		assert.Nil(t, data)
	})
}

func TestLocalReader_UnknownDiscoveryPath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reader := setupLocalReader(t, map[string]string{"known": t.TempDir()})

	t.Run("ListBuildIDs", func(t *testing.T) {
		t.Parallel()

		ids, err := reader.ListBuildIDs(ctx, "unknown")
		assert.Nil(t, ids)
		assert.ErrorContains(t, err, "unknown discovery path")
	})

	t.Run("ListBuildFiles", func(t *testing.T) {
		t.Parallel()

		names, err := reader.ListBuildFiles(ctx, "unknown", "1")
		assert.Nil(t, names)
		assert.ErrorContains(t, err, "unknown discovery path")
	})

	t.Run("GetBuildFile", func(t *testing.T) {
		t.Parallel()

		data, err := reader.GetBuildFile(ctx, "unknown", "1", "f.json")
		assert.Nil(t, data)
		assert.ErrorContains(t, err, "unknown discovery path")
	})
}

func TestKey(t *testing.T) {
	assert.Equal(t, "builds/12/results.csv", storage.Key("12", "results.csv"))
}
