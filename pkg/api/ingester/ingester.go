package ingester

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/api/storage"
	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/api/store"
	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/results"
)

// defaultConcurrency is the number of builds ingested in parallel when
// no explicit concurrency value is configured.
const defaultConcurrency = 4

// Importer imports one result file into a build.
type Importer interface {
	Import(
		ctx context.Context, buildID uint, filename string, content []byte,
	) ([]results.Record, error)
}

// Ledger remembers which files have already been attempted.
type Ledger interface {
	ListIngestedKeys(ctx context.Context, discoveryPath string) (map[string]struct{}, error)
	RecordIngestedFile(ctx context.Context, f *store.IngestedFile) error
}

// Ingester is a background service that periodically scans storage for
// new result files and imports them.
type Ingester interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Ingester = (*ingester)(nil)

type ingester struct {
	log         logrus.FieldLogger
	ledger      Ledger
	reader      storage.Reader
	importer    Importer
	interval    time.Duration
	concurrency int
	done        chan struct{}
	wg          sync.WaitGroup
}

// NewIngester creates a new background ingester.
func NewIngester(
	log logrus.FieldLogger,
	ledger Ledger,
	reader storage.Reader,
	importer Importer,
	interval time.Duration,
	concurrency int,
) Ingester {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &ingester{
		log:         log.WithField("component", "ingester"),
		ledger:      ledger,
		reader:      reader,
		importer:    importer,
		interval:    interval,
		concurrency: concurrency,
		done:        make(chan struct{}),
	}
}

// Start launches a background goroutine that runs an immediate ingest
// pass and then ticks at the configured interval.
func (in *ingester) Start(ctx context.Context) error {
	in.log.WithFields(logrus.Fields{
		"interval":    in.interval.String(),
		"concurrency": in.concurrency,
	}).Info("Starting ingester")

	in.wg.Add(1)

	go func() {
		defer in.wg.Done()

		in.runPass(ctx)

		ticker := time.NewTicker(in.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				in.runPass(ctx)
			case <-in.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop signals the ingester goroutine to stop and waits for it.
func (in *ingester) Stop() error {
	close(in.done)
	in.wg.Wait()

	in.log.Info("Ingester stopped")

	return nil
}

// runPass executes one full ingest pass across all discovery paths.
func (in *ingester) runPass(ctx context.Context) {
	start := time.Now()
	paths := in.reader.DiscoveryPaths()

	in.log.WithField("discovery_paths", len(paths)).
		Debug("Ingest pass started")

	for _, dp := range paths {
		select {
		case <-ctx.Done():
			return
		case <-in.done:
			return
		default:
		}

		if err := in.ingestDiscoveryPath(ctx, dp); err != nil {
			in.log.WithError(err).
				WithField("discovery_path", dp).
				Warn("Ingest pass failed for discovery path")
		}
	}

	in.log.WithField("duration", time.Since(start).Round(time.Millisecond)).
		Debug("Ingest pass completed")
}

// ingestDiscoveryPath imports every file not yet in the ledger. Files of
// one build are imported in name order; builds run in parallel.
func (in *ingester) ingestDiscoveryPath(
	ctx context.Context, dp string,
) error {
	buildIDs, err := in.reader.ListBuildIDs(ctx, dp)
	if err != nil {
		return fmt.Errorf("listing build directories: %w", err)
	}

	seen, err := in.ledger.ListIngestedKeys(ctx, dp)
	if err != nil {
		return fmt.Errorf("listing ingested keys: %w", err)
	}

	dpLog := in.log.WithField("discovery_path", dp)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)

	var imported atomic.Int64

	for _, dir := range buildIDs {
		dir := dir

		buildID, err := strconv.ParseUint(dir, 10, 64)
		if err != nil {
			dpLog.WithField("dir", dir).Debug("Skipping non-numeric build directory")

			continue
		}

		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			case <-in.done:
				return nil
			default:
			}

			n, err := in.ingestBuild(gCtx, dp, dir, uint(buildID), seen)
			if err != nil {
				dpLog.WithError(err).
					WithField("build_id", buildID).
					Warn("Failed to ingest build directory")

				return nil //nolint:nilerr // log and continue
			}

			imported.Add(int64(n))

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("ingesting builds: %w", err)
	}

	if count := imported.Load(); count > 0 {
		dpLog.WithField("files", count).Info("Discovery path ingest complete")
	}

	return nil
}

// ingestBuild imports the new files of one build directory and returns how
// many were attempted.
func (in *ingester) ingestBuild(
	ctx context.Context,
	dp, dir string,
	buildID uint,
	seen map[string]struct{},
) (int, error) {
	names, err := in.reader.ListBuildFiles(ctx, dp, dir)
	if err != nil {
		return 0, fmt.Errorf("listing files: %w", err)
	}

	attempted := 0

	for _, name := range names {
		key := storage.Key(dir, name)
		if _, ok := seen[key]; ok {
			continue
		}

		content, err := in.reader.GetBuildFile(ctx, dp, dir, name)
		if err != nil {
			return attempted, fmt.Errorf("reading %s: %w", key, err)
		}

		if content == nil {
			continue
		}

		entry := &store.IngestedFile{
			DiscoveryPath: dp,
			ObjectKey:     key,
			BuildID:       buildID,
		}

		persisted, importErr := in.importer.Import(ctx, buildID, name, content)
		entry.Records = len(persisted)

		log := in.log.WithFields(logrus.Fields{
			"discovery_path": dp,
			"key":            key,
			"records":        entry.Records,
		})

		if importErr != nil {
			entry.Error = importErr.Error()

			log.WithError(importErr).
				WithField("kind", results.Kind(importErr)).
				Warn("Ingested file failed to import")
		} else {
			log.Info("Ingested file")
		}

		if err := in.ledger.RecordIngestedFile(ctx, entry); err != nil {
			return attempted, fmt.Errorf("recording %s: %w", key, err)
		}

		attempted++
	}

	return attempted, nil
}
