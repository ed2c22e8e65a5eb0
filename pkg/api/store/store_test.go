package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/api/store"
	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/config"
	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/results"
)

func setupTestStore(t *testing.T) store.Store {
	t.Helper()

	cfg := &config.APIDatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteDatabaseConfig{Path: ":memory:"},
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s := store.NewStore(log, cfg)
	require.NoError(t, s.Start(context.Background()))

	t.Cleanup(func() { _ = s.Stop() })

	return s
}

func createBuild(t *testing.T, s store.Store, version string) *store.Build {
	t.Helper()

	b := &store.Build{Version: version}
	require.NoError(t, s.CreateBuild(context.Background(), b))
	require.NotZero(t, b.ID)

	return b
}

func TestStore_BuildCRUD(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	b1 := createBuild(t, s, "1.0.0")
	b2 := createBuild(t, s, "1.1.0")

	assert.False(t, b1.CreatedAt.IsZero())

	builds, err := s.ListBuilds(ctx)
	require.NoError(t, err)
	require.Len(t, builds, 2)
	assert.Equal(t, "1.0.0", builds[0].Version)
	assert.Equal(t, "1.1.0", builds[1].Version)

	b2.Version = "1.1.1"
	b2.Description = "hotfix"
	require.NoError(t, s.UpdateBuild(ctx, b2))

	got, err := s.GetBuild(ctx, b2.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.1.1", got.Version)
	assert.Equal(t, "hotfix", got.Description)

	count, err := s.CountBuilds(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = s.GetBuild(ctx, 999)
	assert.ErrorIs(t, err, results.ErrBuildNotFound)

	err = s.UpdateBuild(ctx, &store.Build{ID: 999, Version: "x"})
	assert.ErrorIs(t, err, results.ErrBuildNotFound)
}

func TestStore_DeleteBuildCascades(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	keep := createBuild(t, s, "keep")
	drop := createBuild(t, s, "drop")

	require.NoError(t, s.SaveRecord(ctx, &results.Record{
		BuildID: keep.ID, TestName: "a", Outcome: results.OutcomePass,
	}))
	require.NoError(t, s.SaveRecord(ctx, &results.Record{
		BuildID: drop.ID, TestName: "b", Outcome: results.OutcomeFail,
	}))
	require.NoError(t, s.SaveRegressionRun(ctx, &results.RegressionRun{
		BuildID: drop.ID, TotalTests: 1, Failed: 1, ExecutedAt: time.Now().UTC(),
	}))

	require.NoError(t, s.DeleteBuild(ctx, drop.ID))

	_, err := s.GetBuild(ctx, drop.ID)
	assert.ErrorIs(t, err, results.ErrBuildNotFound)

	all, err := s.ListTestCases(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "a", all[0].Name)

	runs, err := s.ListRegressionRunsByBuild(ctx, drop.ID)
	require.NoError(t, err)
	assert.Empty(t, runs)

	assert.ErrorIs(t, s.DeleteBuild(ctx, drop.ID), results.ErrBuildNotFound)
}

func TestStore_ResultsStoreAdapter(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	b := createBuild(t, s, "2.0.0")

	found, err := s.FindBuild(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", found.Version)

	_, err = s.FindBuild(ctx, b.ID+1)
	assert.ErrorIs(t, err, results.ErrBuildNotFound)

	d := 1.25
	names := []string{"zeta", "alpha", "zeta"}

	for _, name := range names {
		r := &results.Record{
			BuildID:  b.ID,
			TestName: name,
			Module:   "core",
			Outcome:  results.OutcomePass,
			Duration: &d,
		}
		require.NoError(t, s.SaveRecord(ctx, r))
		assert.NotZero(t, r.ID)
	}

	records, err := s.FindRecordsByBuild(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Insertion order is preserved and duplicates are kept.
	for i, name := range names {
		assert.Equal(t, name, records[i].TestName)
		assert.Equal(t, b.ID, records[i].BuildID)
		assert.Equal(t, results.OutcomePass, records[i].Outcome)
		require.NotNil(t, records[i].Duration)
		assert.InDelta(t, 1.25, *records[i].Duration, 1e-9)
	}

	assert.Less(t, records[0].ID, records[1].ID)

	empty, err := s.FindRecordsByBuild(ctx, 12345)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_ImportThroughService(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	svc := results.NewService(log, s, s)

	b1 := createBuild(t, s, "1.0")
	b2 := createBuild(t, s, "1.1")

	_, err := svc.Import(ctx, b1.ID, "b1.csv", []byte("name,module,status,duration\nlogin,auth,PASS,1.2\n"))
	require.NoError(t, err)

	_, err = svc.Import(ctx, b2.ID, "b2.json",
		[]byte(`[{"testCaseName":"login","module":"auth","status":"fail","duration":1.5}]`))
	require.NoError(t, err)

	rows, err := svc.CompareBuilds(ctx, b1.ID, b2.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, results.ChangeRegression, rows[0].StatusChange)
	assert.InDelta(t, 0.3, *rows[0].DurationChange, 1e-9)

	run, err := svc.ExecuteRegressionRun(ctx, b2.ID)
	require.NoError(t, err)
	assert.NotZero(t, run.ID)

	runs, err := s.ListRegressionRunsByBuild(ctx, b2.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].TotalTests)
	assert.Equal(t, 1, runs[0].Failed)
}

func TestStore_TestCaseCRUD(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	b := createBuild(t, s, "3.0")

	tc := &store.TestCase{Name: "manual check", Description: "by hand"}
	require.NoError(t, s.CreateTestCase(ctx, tc))
	assert.Equal(t, string(results.OutcomePending), tc.Status)
	assert.Nil(t, tc.BuildID)

	withBuild := &store.TestCase{Name: "smoke", Status: "pass", BuildID: &b.ID}
	require.NoError(t, s.CreateTestCase(ctx, withBuild))
	assert.Equal(t, "PASS", withBuild.Status)

	missing := uint(404)
	err := s.CreateTestCase(ctx, &store.TestCase{Name: "x", BuildID: &missing})
	assert.ErrorIs(t, err, results.ErrBuildNotFound)

	err = s.CreateTestCase(ctx, &store.TestCase{Name: "x", Status: "SKIPPED"})
	assert.ErrorIs(t, err, results.ErrUnknownStatus)

	byBuild, err := s.ListTestCasesByBuild(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, byBuild, 1)
	assert.Equal(t, "smoke", byBuild[0].Name)

	tc.Status = "FAIL"
	tc.BuildID = &b.ID
	require.NoError(t, s.UpdateTestCase(ctx, tc))

	got, err := s.GetTestCase(ctx, tc.ID)
	require.NoError(t, err)
	assert.Equal(t, "FAIL", got.Status)
	require.NotNil(t, got.BuildID)
	assert.Equal(t, b.ID, *got.BuildID)

	err = s.UpdateTestCase(ctx, &store.TestCase{ID: 999, Name: "ghost"})
	assert.ErrorIs(t, err, results.ErrRecordNotFound)

	require.NoError(t, s.DeleteTestCase(ctx, tc.ID))
	_, err = s.GetTestCase(ctx, tc.ID)
	assert.ErrorIs(t, err, results.ErrRecordNotFound)
	assert.ErrorIs(t, s.DeleteTestCase(ctx, tc.ID), results.ErrRecordNotFound)
}

func TestStore_CountTestCasesByStatus(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	b := createBuild(t, s, "4.0")

	for _, o := range []results.Outcome{
		results.OutcomePass, results.OutcomePass, results.OutcomeFail, results.OutcomeBlocked,
	} {
		require.NoError(t, s.SaveRecord(ctx, &results.Record{BuildID: b.ID, TestName: "t", Outcome: o}))
	}

	require.NoError(t, s.CreateTestCase(ctx, &store.TestCase{Name: "unassigned"}))

	counts, err := s.CountTestCasesByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[results.OutcomePass])
	assert.Equal(t, int64(1), counts[results.OutcomeFail])
	assert.Equal(t, int64(1), counts[results.OutcomeBlocked])
	assert.Equal(t, int64(1), counts[results.OutcomePending])

	stats := results.FromCounts(counts)
	assert.Equal(t, int64(5), stats.Total)
	assert.InDelta(t, 40.0, stats.PassPercentage, 1e-9)
}

func TestStore_RegressionRunsNewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	b1 := createBuild(t, s, "5.0")
	b2 := createBuild(t, s, "5.1")

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveRegressionRun(ctx, &results.RegressionRun{BuildID: b1.ID, TotalTests: 1, ExecutedAt: base}))
	require.NoError(t, s.SaveRegressionRun(ctx, &results.RegressionRun{BuildID: b1.ID, TotalTests: 2, ExecutedAt: base.Add(time.Hour)}))
	require.NoError(t, s.SaveRegressionRun(ctx, &results.RegressionRun{BuildID: b2.ID, TotalTests: 3, ExecutedAt: base.Add(30 * time.Minute)}))

	all, err := s.ListRegressionRuns(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 2, all[0].TotalTests)
	assert.Equal(t, 3, all[1].TotalTests)
	assert.Equal(t, 1, all[2].TotalTests)

	byBuild, err := s.ListRegressionRunsByBuild(ctx, b1.ID)
	require.NoError(t, err)
	require.Len(t, byBuild, 2)
	assert.Equal(t, 2, byBuild[0].TotalTests)
}

func TestStore_IngestLedger(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordIngestedFile(ctx, &store.IngestedFile{
		DiscoveryPath: "ci", ObjectKey: "builds/1/a.csv", BuildID: 1, Records: 3,
	}))
	require.NoError(t, s.RecordIngestedFile(ctx, &store.IngestedFile{
		DiscoveryPath: "ci", ObjectKey: "builds/1/b.txt", BuildID: 1, Error: "unsupported",
	}))
	require.NoError(t, s.RecordIngestedFile(ctx, &store.IngestedFile{
		DiscoveryPath: "nightly", ObjectKey: "builds/1/a.csv", BuildID: 1,
	}))

	keys, err := s.ListIngestedKeys(ctx, "ci")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.Contains(t, keys, "builds/1/a.csv")
	assert.Contains(t, keys, "builds/1/b.txt")

	// The same key cannot be recorded twice under one discovery path.
	err = s.RecordIngestedFile(ctx, &store.IngestedFile{
		DiscoveryPath: "ci", ObjectKey: "builds/1/a.csv", BuildID: 1,
	})
	assert.Error(t, err)

	none, err := s.ListIngestedKeys(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_SeedUsers(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &store.User{
		Username: "ops", PasswordHash: "x", Role: config.RoleAdmin, Source: store.SourceAdmin,
	}))

	require.NoError(t, s.SeedUsers(ctx, []config.BasicAuthUser{
		{Username: "qa", Password: "first", Role: config.RoleTester},
		{Username: "ops", Password: "ignored", Role: config.RoleViewer},
	}))

	qa, err := s.GetUserByUsername(ctx, "qa")
	require.NoError(t, err)
	assert.Equal(t, store.SourceConfig, qa.Source)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(qa.PasswordHash), []byte("first")))

	// Admin-created users are not overwritten by config.
	ops, err := s.GetUserByUsername(ctx, "ops")
	require.NoError(t, err)
	assert.Equal(t, config.RoleAdmin, ops.Role)
	assert.Equal(t, "x", ops.PasswordHash)

	// Reseeding updates config users in place.
	require.NoError(t, s.SeedUsers(ctx, []config.BasicAuthUser{
		{Username: "qa", Password: "second", Role: config.RoleViewer},
	}))

	qa, err = s.GetUserByUsername(ctx, "qa")
	require.NoError(t, err)
	assert.Equal(t, config.RoleViewer, qa.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(qa.PasswordHash), []byte("second")))
}

func TestStore_Sessions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	user := &store.User{Username: "qa", PasswordHash: "x", Role: config.RoleTester, Source: store.SourceAdmin}
	require.NoError(t, s.CreateUser(ctx, user))

	now := time.Now().UTC()

	require.NoError(t, s.CreateSession(ctx, &store.Session{
		Token: "live", UserID: user.ID, ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, s.CreateSession(ctx, &store.Session{
		Token: "stale", UserID: user.ID, ExpiresAt: now.Add(-time.Hour),
	}))

	require.NoError(t, s.DeleteExpiredSessions(ctx))

	_, err := s.GetSessionByToken(ctx, "stale")
	assert.Error(t, err)

	live, err := s.GetSessionByToken(ctx, "live")
	require.NoError(t, err)
	require.NoError(t, s.UpdateSessionLastActive(ctx, live.ID, now))

	require.NoError(t, s.DeleteSessionsByUser(ctx, user.ID))

	_, err = s.GetSessionByToken(ctx, "live")
	assert.Error(t, err)
}
