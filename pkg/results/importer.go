package results

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Store is the storage contract the results package depends on.
type Store interface {
	// FindBuild returns ErrBuildNotFound (possibly wrapped) when the build
	// does not exist.
	FindBuild(ctx context.Context, id uint) (*Build, error)

	// FindRecordsByBuild returns every record of a build in a stable order.
	FindRecordsByBuild(ctx context.Context, buildID uint) ([]Record, error)

	// SaveRecord persists r and assigns its ID when new.
	SaveRecord(ctx context.Context, r *Record) error
}

// Importer turns uploaded result files into persisted records.
type Importer struct {
	log   logrus.FieldLogger
	store Store
}

// NewImporter creates an Importer writing through store.
func NewImporter(log logrus.FieldLogger, store Store) *Importer {
	return &Importer{
		log:   log.WithField("component", "importer"),
		store: store,
	}
}

// Import parses content according to the suffix of filename and saves one
// record per row into the given build, in input order.
//
// An unsupported suffix fails before the store is touched. A missing build
// or a parse failure aborts before anything is saved. A failure while
// saving rows returns an *ImportError whose Persisted field lists the rows
// already saved; those are left in place.
func (i *Importer) Import(
	ctx context.Context, buildID uint, filename string, content []byte,
) ([]Record, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, &ImportError{BuildID: buildID, Err: err}
	}

	build, err := i.store.FindBuild(ctx, buildID)
	if err != nil {
		return nil, &ImportError{BuildID: buildID, Err: err}
	}

	rows, err := Parse(format, content)
	if err != nil {
		return nil, &ImportError{
			BuildID: buildID,
			Err:     fmt.Errorf("parsing %s: %w", filename, err),
		}
	}

	log := i.log.WithFields(logrus.Fields{
		"build_id": build.ID,
		"file":     filename,
		"format":   format,
	})

	persisted := make([]Record, 0, len(rows))

	for _, row := range rows {
		outcome, err := ParseOutcome(row.Status)
		if err != nil {
			log.WithField("persisted", len(persisted)).
				Warn("Import aborted on unknown status")

			return persisted, &ImportError{
				BuildID:   buildID,
				Persisted: persisted,
				Err:       &StatusError{TestName: row.TestCaseName, Value: row.Status},
			}
		}

		rec := Record{
			BuildID:  build.ID,
			TestName: row.TestCaseName,
			Module:   row.Module,
			Outcome:  outcome,
			Duration: row.Duration,
		}

		if err := i.store.SaveRecord(ctx, &rec); err != nil {
			log.WithError(err).
				WithField("persisted", len(persisted)).
				Warn("Import aborted while saving record")

			return persisted, &ImportError{
				BuildID:   buildID,
				Persisted: persisted,
				Err:       fmt.Errorf("saving %q: %w", row.TestCaseName, err),
			}
		}

		persisted = append(persisted, rec)
	}

	log.WithField("records", len(persisted)).Info("Imported test results")

	return persisted, nil
}
