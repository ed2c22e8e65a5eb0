package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/config"
	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/results"
)

// Store provides persistence for API resources. It satisfies the storage
// contracts of the results package.
type Store interface {
	results.Store
	results.RunStore

	Start(ctx context.Context) error
	Stop() error

	// Build CRUD.
	ListBuilds(ctx context.Context) ([]Build, error)
	GetBuild(ctx context.Context, id uint) (*Build, error)
	CreateBuild(ctx context.Context, build *Build) error
	UpdateBuild(ctx context.Context, build *Build) error
	DeleteBuild(ctx context.Context, id uint) error
	CountBuilds(ctx context.Context) (int64, error)

	// Test case CRUD.
	ListTestCases(ctx context.Context) ([]TestCase, error)
	ListTestCasesByBuild(ctx context.Context, buildID uint) ([]TestCase, error)
	GetTestCase(ctx context.Context, id uint) (*TestCase, error)
	CreateTestCase(ctx context.Context, tc *TestCase) error
	UpdateTestCase(ctx context.Context, tc *TestCase) error
	DeleteTestCase(ctx context.Context, id uint) error
	CountTestCasesByStatus(ctx context.Context) (map[results.Outcome]int64, error)

	// Regression runs.
	ListRegressionRuns(ctx context.Context) ([]RegressionRun, error)
	ListRegressionRunsByBuild(ctx context.Context, buildID uint) ([]RegressionRun, error)

	// User CRUD.
	GetUserByID(ctx context.Context, id uint) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CreateUser(ctx context.Context, user *User) error
	UpdateUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context, id uint) error

	// Session CRUD.
	CreateSession(ctx context.Context, session *Session) error
	GetSessionByToken(ctx context.Context, token string) (*Session, error)
	UpdateSessionLastActive(ctx context.Context, id uint, t time.Time) error
	DeleteSession(ctx context.Context, token string) error
	DeleteSessionsByUser(ctx context.Context, userID uint) error
	DeleteExpiredSessions(ctx context.Context) error

	// Ingest ledger.
	ListIngestedKeys(ctx context.Context, discoveryPath string) (map[string]struct{}, error)
	RecordIngestedFile(ctx context.Context, f *IngestedFile) error

	// Seeding from config.
	SeedUsers(ctx context.Context, users []config.BasicAuthUser) error
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.APIDatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.APIDatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var (
		dialector gorm.Dialector
		err       error
	)

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	s.db, err = gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	if s.cfg.Driver == "sqlite" {
		// SQLite allows a single writer, and every :memory: connection is a
		// separate database.
		sqlDB, err := s.db.DB()
		if err != nil {
			return fmt.Errorf("getting underlying db: %w", err)
		}

		sqlDB.SetMaxOpenConns(1)
	}

	if err := s.db.WithContext(ctx).AutoMigrate(
		&Build{},
		&TestCase{},
		&RegressionRun{},
		&User{},
		&Session{},
		&IngestedFile{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// --- results.Store ---

func (s *store) FindBuild(ctx context.Context, id uint) (*results.Build, error) {
	build, err := s.GetBuild(ctx, id)
	if err != nil {
		return nil, err
	}

	return build.toResult(), nil
}

// FindRecordsByBuild returns the build's test cases in insertion order.
func (s *store) FindRecordsByBuild(
	ctx context.Context, buildID uint,
) ([]results.Record, error) {
	tcs, err := s.ListTestCasesByBuild(ctx, buildID)
	if err != nil {
		return nil, err
	}

	records := make([]results.Record, 0, len(tcs))
	for i := range tcs {
		records = append(records, tcs[i].toRecord())
	}

	return records, nil
}

func (s *store) SaveRecord(ctx context.Context, r *results.Record) error {
	buildID := r.BuildID

	tc := TestCase{
		ID:          r.ID,
		Name:        r.TestName,
		Module:      r.Module,
		Description: r.Description,
		Status:      string(r.Outcome),
		Duration:    r.Duration,
		BuildID:     &buildID,
	}

	if err := s.db.WithContext(ctx).Save(&tc).Error; err != nil {
		return fmt.Errorf("saving test case: %w", err)
	}

	r.ID = tc.ID

	return nil
}

// --- results.RunStore ---

func (s *store) SaveRegressionRun(
	ctx context.Context, run *results.RegressionRun,
) error {
	row := RegressionRun{
		BuildID:    run.BuildID,
		TotalTests: run.TotalTests,
		Passed:     run.Passed,
		Failed:     run.Failed,
		ExecutedAt: run.ExecutedAt,
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("creating regression run: %w", err)
	}

	run.ID = row.ID

	return nil
}

// --- Build CRUD ---

func (s *store) ListBuilds(ctx context.Context) ([]Build, error) {
	var builds []Build
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Find(&builds).Error; err != nil {
		return nil, fmt.Errorf("listing builds: %w", err)
	}

	return builds, nil
}

func (s *store) GetBuild(ctx context.Context, id uint) (*Build, error) {
	var build Build
	if err := s.db.WithContext(ctx).First(&build, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("build %d: %w", id, results.ErrBuildNotFound)
		}

		return nil, fmt.Errorf("getting build: %w", err)
	}

	return &build, nil
}

func (s *store) CreateBuild(ctx context.Context, build *Build) error {
	if err := s.db.WithContext(ctx).Create(build).Error; err != nil {
		return fmt.Errorf("creating build: %w", err)
	}

	return nil
}

// UpdateBuild changes a build's version and description. CreatedAt is
// immutable.
func (s *store) UpdateBuild(ctx context.Context, build *Build) error {
	result := s.db.WithContext(ctx).
		Model(&Build{}).
		Where("id = ?", build.ID).
		Updates(map[string]any{
			"version":     build.Version,
			"description": build.Description,
		})
	if result.Error != nil {
		return fmt.Errorf("updating build: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("build %d: %w", build.ID, results.ErrBuildNotFound)
	}

	return nil
}

// DeleteBuild removes a build together with its test cases and regression
// runs.
func (s *store) DeleteBuild(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("build_id = ?", id).
			Delete(&TestCase{}).Error; err != nil {
			return fmt.Errorf("deleting test cases of build: %w", err)
		}

		if err := tx.Where("build_id = ?", id).
			Delete(&RegressionRun{}).Error; err != nil {
			return fmt.Errorf("deleting regression runs of build: %w", err)
		}

		result := tx.Delete(&Build{}, id)
		if result.Error != nil {
			return fmt.Errorf("deleting build: %w", result.Error)
		}

		if result.RowsAffected == 0 {
			return fmt.Errorf("build %d: %w", id, results.ErrBuildNotFound)
		}

		return nil
	})
}

func (s *store) CountBuilds(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&Build{}).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting builds: %w", err)
	}

	return count, nil
}

// --- Test case CRUD ---

func (s *store) ListTestCases(ctx context.Context) ([]TestCase, error) {
	var tcs []TestCase
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Find(&tcs).Error; err != nil {
		return nil, fmt.Errorf("listing test cases: %w", err)
	}

	return tcs, nil
}

func (s *store) ListTestCasesByBuild(
	ctx context.Context, buildID uint,
) ([]TestCase, error) {
	var tcs []TestCase
	if err := s.db.WithContext(ctx).
		Where("build_id = ?", buildID).
		Order("id ASC").
		Find(&tcs).Error; err != nil {
		return nil, fmt.Errorf("listing test cases by build: %w", err)
	}

	return tcs, nil
}

func (s *store) GetTestCase(ctx context.Context, id uint) (*TestCase, error) {
	var tc TestCase
	if err := s.db.WithContext(ctx).First(&tc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("test case %d: %w", id, results.ErrRecordNotFound)
		}

		return nil, fmt.Errorf("getting test case: %w", err)
	}

	return &tc, nil
}

// CreateTestCase stores a manually entered test case. An empty status
// becomes PENDING; a referenced build must exist.
func (s *store) CreateTestCase(ctx context.Context, tc *TestCase) error {
	if err := s.prepareTestCase(ctx, tc); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(tc).Error; err != nil {
		return fmt.Errorf("creating test case: %w", err)
	}

	return nil
}

func (s *store) UpdateTestCase(ctx context.Context, tc *TestCase) error {
	if _, err := s.GetTestCase(ctx, tc.ID); err != nil {
		return err
	}

	if err := s.prepareTestCase(ctx, tc); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Save(tc).Error; err != nil {
		return fmt.Errorf("updating test case: %w", err)
	}

	return nil
}

func (s *store) prepareTestCase(ctx context.Context, tc *TestCase) error {
	if tc.Status == "" {
		tc.Status = string(results.OutcomePending)
	}

	outcome, err := results.ParseOutcome(tc.Status)
	if err != nil {
		return &results.StatusError{TestName: tc.Name, Value: tc.Status}
	}

	tc.Status = string(outcome)

	if tc.BuildID != nil {
		if _, err := s.GetBuild(ctx, *tc.BuildID); err != nil {
			return err
		}
	}

	return nil
}

func (s *store) DeleteTestCase(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&TestCase{}, id)
	if result.Error != nil {
		return fmt.Errorf("deleting test case: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("test case %d: %w", id, results.ErrRecordNotFound)
	}

	return nil
}

type statusCount struct {
	Status string
	Count  int64
}

// CountTestCasesByStatus counts every stored test case grouped by status.
func (s *store) CountTestCasesByStatus(
	ctx context.Context,
) (map[results.Outcome]int64, error) {
	var rows []statusCount

	if err := s.db.WithContext(ctx).
		Model(&TestCase{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("counting test cases by status: %w", err)
	}

	counts := make(map[results.Outcome]int64, len(rows))
	for _, r := range rows {
		counts[results.Outcome(r.Status)] += r.Count
	}

	return counts, nil
}

// --- Regression runs ---

func (s *store) ListRegressionRuns(ctx context.Context) ([]RegressionRun, error) {
	var runs []RegressionRun
	if err := s.db.WithContext(ctx).
		Order("executed_at DESC, id DESC").
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing regression runs: %w", err)
	}

	return runs, nil
}

func (s *store) ListRegressionRunsByBuild(
	ctx context.Context, buildID uint,
) ([]RegressionRun, error) {
	var runs []RegressionRun
	if err := s.db.WithContext(ctx).
		Where("build_id = ?", buildID).
		Order("executed_at DESC, id DESC").
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing regression runs by build: %w", err)
	}

	return runs, nil
}

// --- User CRUD ---

func (s *store) GetUserByID(
	ctx context.Context, id uint,
) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}

	return &user, nil
}

func (s *store) GetUserByUsername(
	ctx context.Context, username string,
) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).
		Where("username = ?", username).
		First(&user).Error; err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}

	return &user, nil
}

func (s *store) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	return users, nil
}

func (s *store) CreateUser(ctx context.Context, user *User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	return nil
}

func (s *store) UpdateUser(ctx context.Context, user *User) error {
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("updating user: %w", err)
	}

	return nil
}

func (s *store) DeleteUser(ctx context.Context, id uint) error {
	if err := s.db.WithContext(ctx).
		Delete(&User{}, id).Error; err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	return nil
}

// --- Session CRUD ---

func (s *store) CreateSession(
	ctx context.Context, session *Session,
) error {
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	return nil
}

func (s *store) GetSessionByToken(
	ctx context.Context, token string,
) (*Session, error) {
	var session Session
	if err := s.db.WithContext(ctx).
		Where("token = ?", token).
		First(&session).Error; err != nil {
		return nil, fmt.Errorf("getting session by token: %w", err)
	}

	return &session, nil
}

func (s *store) UpdateSessionLastActive(
	ctx context.Context, id uint, t time.Time,
) error {
	if err := s.db.WithContext(ctx).
		Model(&Session{}).
		Where("id = ?", id).
		Update("last_active_at", t).Error; err != nil {
		return fmt.Errorf("updating session last active: %w", err)
	}

	return nil
}

func (s *store) DeleteSession(ctx context.Context, token string) error {
	if err := s.db.WithContext(ctx).
		Where("token = ?", token).
		Delete(&Session{}).Error; err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	return nil
}

func (s *store) DeleteSessionsByUser(ctx context.Context, userID uint) error {
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&Session{}).Error; err != nil {
		return fmt.Errorf("deleting sessions of user: %w", err)
	}

	return nil
}

func (s *store) DeleteExpiredSessions(ctx context.Context) error {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", time.Now().UTC()).
		Delete(&Session{})
	if result.Error != nil {
		return fmt.Errorf("deleting expired sessions: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.log.WithField("count", result.RowsAffected).
			Debug("Cleaned up expired sessions")
	}

	return nil
}

// --- Ingest ledger ---

// ListIngestedKeys returns the keys already attempted under a discovery
// path, successful or not.
func (s *store) ListIngestedKeys(
	ctx context.Context, discoveryPath string,
) (map[string]struct{}, error) {
	var keys []string
	if err := s.db.WithContext(ctx).
		Model(&IngestedFile{}).
		Where("discovery_path = ?", discoveryPath).
		Pluck("object_key", &keys).Error; err != nil {
		return nil, fmt.Errorf("listing ingested keys: %w", err)
	}

	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}

	return set, nil
}

func (s *store) RecordIngestedFile(ctx context.Context, f *IngestedFile) error {
	if f.IngestedAt.IsZero() {
		f.IngestedAt = time.Now().UTC()
	}

	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		return fmt.Errorf("recording ingested file: %w", err)
	}

	return nil
}

// --- Seeding ---

// SeedUsers upserts config-sourced users. Only users with source="config"
// are updated; users created by admins are preserved.
func (s *store) SeedUsers(
	ctx context.Context, users []config.BasicAuthUser,
) error {
	for _, u := range users {
		hash, err := bcrypt.GenerateFromPassword(
			[]byte(u.Password), bcrypt.DefaultCost,
		)
		if err != nil {
			return fmt.Errorf("hashing password for %q: %w", u.Username, err)
		}

		var existing User

		result := s.db.WithContext(ctx).
			Where("username = ? AND source = ?", u.Username, SourceConfig).
			First(&existing)

		if result.Error == nil {
			existing.PasswordHash = string(hash)
			existing.Role = u.Role

			if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
				return fmt.Errorf("updating config user %q: %w", u.Username, err)
			}

			continue
		}

		// Create only if the username is not taken.
		newUser := User{
			Username:     u.Username,
			PasswordHash: string(hash),
			Role:         u.Role,
			Source:       SourceConfig,
		}

		if err := s.db.WithContext(ctx).
			Where("username = ?", u.Username).
			FirstOrCreate(&newUser).Error; err != nil {
			return fmt.Errorf("seeding config user %q: %w", u.Username, err)
		}
	}

	s.log.WithField("count", len(users)).
		Info("Seeded users from config")

	return nil
}
