package ingester

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/api/storage"
	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/api/store"
	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/config"
	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/results"
)

type fixture struct {
	root  string
	store store.Store
	svc   results.Service
	ing   *ingester
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	st := store.NewStore(log, &config.APIDatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteDatabaseConfig{Path: ":memory:"},
	})
	require.NoError(t, st.Start(context.Background()))
	t.Cleanup(func() { _ = st.Stop() })

	root := t.TempDir()
	reader := storage.NewLocalReader(&config.LocalIngestConfig{
		DiscoveryPaths: map[string]string{"ci": root},
	})

	svc := results.NewService(log, st, st)
	ing := NewIngester(log, st, reader, svc, time.Hour, 2).(*ingester)

	return &fixture{root: root, store: st, svc: svc, ing: ing}
}

func (f *fixture) drop(t *testing.T, buildDir, name, content string) {
	t.Helper()

	dir := filepath.Join(f.root, "builds", buildDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func (f *fixture) build(t *testing.T, version string) uint {
	t.Helper()

	b := &store.Build{Version: version}
	require.NoError(t, f.store.CreateBuild(context.Background(), b))

	return b.ID
}

func TestIngester_RunPass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.build(t, "1.0")
	dir := fmt.Sprint(id)

	f.drop(t, dir, "a.csv", "name,module,status,duration\nlogin,auth,PASS,1.2\nlogout,auth,FAIL,0.4\n")
	f.drop(t, dir, "b.json", `[{"testCaseName":"search","module":"catalog","status":"BLOCKED"}]`)
	f.drop(t, dir, "notes.txt", "not a result file")
	f.drop(t, "999", "orphan.csv", "h\nx,m,PASS,1\n")
	f.drop(t, "not-a-build", "ignored.csv", "h\nx,m,PASS,1\n")

	f.ing.runPass(ctx)

	records, err := f.store.FindRecordsByBuild(ctx, id)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "login", records[0].TestName)
	assert.Equal(t, "search", records[2].TestName)

	keys, err := f.store.ListIngestedKeys(ctx, "ci")
	require.NoError(t, err)
	assert.Len(t, keys, 4)
	assert.Contains(t, keys, "builds/"+dir+"/a.csv")
	assert.Contains(t, keys, "builds/"+dir+"/notes.txt")
	assert.Contains(t, keys, "builds/999/orphan.csv")
	assert.NotContains(t, keys, "builds/not-a-build/ignored.csv")

	// A second pass does not import the same files again.
	f.ing.runPass(ctx)

	records, err = f.store.FindRecordsByBuild(ctx, id)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	// Only new files are picked up.
	f.drop(t, dir, "c.csv", "h\nprofile,user,PENDING,2\n")
	f.ing.runPass(ctx)

	records, err = f.store.FindRecordsByBuild(ctx, id)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "profile", records[3].TestName)
}

func TestIngester_FailedFilesAreNotRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The build directory exists before the build row does.
	f.drop(t, "1", "early.csv", "h\nlogin,auth,PASS,1\n")
	f.ing.runPass(ctx)

	id := f.build(t, "1.0")
	require.Equal(t, uint(1), id)

	f.ing.runPass(ctx)

	records, err := f.store.FindRecordsByBuild(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestIngester_StartStop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.build(t, "2.0")
	f.drop(t, fmt.Sprint(id), "r.csv", "h\na,m,PASS,1\nb,m,PASS,1\n")

	require.NoError(t, f.ing.Start(ctx))

	require.Eventually(t, func() bool {
		stats, err := f.svc.BuildStats(ctx, id)

		return err == nil && stats.Total == 2
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, f.ing.Stop())
}
