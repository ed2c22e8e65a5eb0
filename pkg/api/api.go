package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/api/ingester"
	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/api/storage"
	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/api/store"
	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/archive"
	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/config"
	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/results"
)

const (
	shutdownTimeout        = 10 * time.Second
	sessionCleanupInterval = 15 * time.Minute
)

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.APIConfig
	store      store.Store
	results    results.Service
	archiver   archive.Archiver
	ingester   ingester.Ingester
	metrics    *metrics
	httpServer *http.Server
	wg         sync.WaitGroup
	done       chan struct{}
}

// NewServer creates a new API server.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.APIConfig,
) Server {
	return &server{
		log:  log.WithField("component", "api"),
		cfg:  cfg,
		done: make(chan struct{}),
	}
}

// Start initializes the store and services and starts the HTTP server.
func (s *server) Start(ctx context.Context) error {
	if err := s.setup(ctx); err != nil {
		return err
	}

	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start session cleanup goroutine.
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.store.DeleteExpiredSessions(ctx); err != nil {
					s.log.WithError(err).
						Warn("Failed to clean expired sessions")
				}
			case <-s.done:
				return
			}
		}
	}()

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Listen, err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.cfg.Server.Listen).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	// The ingester starts once the API is reachable.
	if s.ingester != nil {
		if err := s.ingester.Start(ctx); err != nil {
			return fmt.Errorf("starting ingester: %w", err)
		}
	}

	return nil
}

// setup opens the store, seeds users and wires the results service, the
// optional archive and the optional ingester.
func (s *server) setup(ctx context.Context) error {
	s.store = store.NewStore(s.log, &s.cfg.Database)
	if err := s.store.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	if s.cfg.Auth.Basic.Enabled {
		if err := s.store.SeedUsers(
			ctx, s.cfg.Auth.Basic.Users,
		); err != nil {
			return fmt.Errorf("seeding users: %w", err)
		}
	}

	s.metrics = newMetrics()
	s.results = &instrumentedService{
		Service: results.NewService(s.log, s.store, s.store),
		metrics: s.metrics,
	}

	if s.cfg.Archive != nil && s.cfg.Archive.Enabled {
		a, err := archive.New(s.log, s.cfg.Archive)
		if err != nil {
			return fmt.Errorf("creating archiver: %w", err)
		}

		if err := a.Preflight(ctx); err != nil {
			return fmt.Errorf("archive preflight: %w", err)
		}

		s.archiver = a

		s.log.Info("Upload archive enabled")
	}

	if s.cfg.Ingest != nil && s.cfg.Ingest.Enabled {
		if err := s.prepareIngest(); err != nil {
			return fmt.Errorf("preparing ingest: %w", err)
		}
	}

	return nil
}

// prepareIngest creates the storage reader and the ingester without
// starting its background goroutine.
func (s *server) prepareIngest() error {
	var reader storage.Reader

	switch {
	case s.cfg.Ingest.S3 != nil:
		reader = storage.NewS3Reader(s.cfg.Ingest.S3)
	case s.cfg.Ingest.Local != nil:
		reader = storage.NewLocalReader(s.cfg.Ingest.Local)
	default:
		return errors.New("no storage backend configured for ingest")
	}

	interval := s.cfg.Ingest.Interval
	if interval <= 0 {
		interval = config.DefaultIngestInterval
	}

	s.ingester = ingester.NewIngester(
		s.log, s.store, reader, s.results,
		interval, s.cfg.Ingest.Concurrency,
	)

	s.log.WithField("discovery_paths", reader.DiscoveryPaths()).
		Info("Ingest service enabled")

	return nil
}

// Stop gracefully shuts down the HTTP server and closes the store.
func (s *server) Stop() error {
	close(s.done)

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	if s.ingester != nil {
		if err := s.ingester.Stop(); err != nil {
			s.log.WithError(err).Warn("Ingester stop error")
		}
	}

	if s.store != nil {
		if err := s.store.Stop(); err != nil {
			return fmt.Errorf("stopping store: %w", err)
		}
	}

	s.log.Info("API server stopped")

	return nil
}
