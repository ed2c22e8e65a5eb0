package results

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// RunStore persists regression run snapshots.
type RunStore interface {
	SaveRegressionRun(ctx context.Context, run *RegressionRun) error
}

// Service exposes the import, comparison and aggregation operations over a
// Store.
type Service interface {
	Import(
		ctx context.Context, buildID uint, filename string, content []byte,
	) ([]Record, error)
	CompareBuilds(ctx context.Context, build1, build2 uint) ([]ComparisonRow, error)
	BuildStats(ctx context.Context, buildID uint) (AggregateStats, error)
	ExecuteRegressionRun(ctx context.Context, buildID uint) (*RegressionRun, error)
}

// Compile-time interface check.
var _ Service = (*service)(nil)

type service struct {
	log      logrus.FieldLogger
	store    Store
	runs     RunStore
	importer *Importer
	now      func() time.Time
}

// NewService creates a Service backed by store and runs.
func NewService(log logrus.FieldLogger, store Store, runs RunStore) Service {
	return &service{
		log:      log.WithField("component", "results"),
		store:    store,
		runs:     runs,
		importer: NewImporter(log, store),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) Import(
	ctx context.Context, buildID uint, filename string, content []byte,
) ([]Record, error) {
	return s.importer.Import(ctx, buildID, filename, content)
}

// CompareBuilds resolves both builds and diffs their record sets. Each set is
// read with a single FindRecordsByBuild call.
func (s *service) CompareBuilds(
	ctx context.Context, build1, build2 uint,
) ([]ComparisonRow, error) {
	first, err := s.loadRecords(ctx, build1)
	if err != nil {
		return nil, err
	}

	second, err := s.loadRecords(ctx, build2)
	if err != nil {
		return nil, err
	}

	rows := Compare(first, second)

	s.log.WithFields(logrus.Fields{
		"build1": build1,
		"build2": build2,
		"rows":   len(rows),
	}).Debug("Compared builds")

	return rows, nil
}

func (s *service) BuildStats(
	ctx context.Context, buildID uint,
) (AggregateStats, error) {
	records, err := s.loadRecords(ctx, buildID)
	if err != nil {
		return AggregateStats{}, err
	}

	return Aggregate(records), nil
}

// ExecuteRegressionRun snapshots the current aggregate of a build. Later
// imports do not change a saved run.
func (s *service) ExecuteRegressionRun(
	ctx context.Context, buildID uint,
) (*RegressionRun, error) {
	stats, err := s.BuildStats(ctx, buildID)
	if err != nil {
		return nil, err
	}

	run := &RegressionRun{
		BuildID:    buildID,
		TotalTests: int(stats.Total),
		Passed:     int(stats.Passed),
		Failed:     int(stats.Failed),
		ExecutedAt: s.now(),
	}

	if err := s.runs.SaveRegressionRun(ctx, run); err != nil {
		return nil, fmt.Errorf("saving regression run: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"build_id": buildID,
		"total":    run.TotalTests,
		"passed":   run.Passed,
		"failed":   run.Failed,
	}).Info("Regression run recorded")

	return run, nil
}

func (s *service) loadRecords(ctx context.Context, buildID uint) ([]Record, error) {
	if _, err := s.store.FindBuild(ctx, buildID); err != nil {
		return nil, err
	}

	records, err := s.store.FindRecordsByBuild(ctx, buildID)
	if err != nil {
		return nil, fmt.Errorf("fetching records of build %d: %w", buildID, err)
	}

	return records, nil
}
