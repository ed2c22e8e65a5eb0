package main

import (
	"context"
	"fmt"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/api/store"
	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/config"
	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/results"
)

// loadConfig reads the --config files, or defaults when none are given.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFiles...)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.ValidateAPI(); err != nil {
		return nil, fmt.Errorf("validating api config: %w", err)
	}

	return cfg, nil
}

// session bundles the opened store and the results service for the
// offline commands.
type session struct {
	cfg     *config.Config
	store   store.Store
	results results.Service
}

// openSession loads the configuration and opens the configured database.
// The caller must call close.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	st := store.NewStore(log, &cfg.API.Database)
	if err := st.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting store: %w", err)
	}

	return &session{
		cfg:     cfg,
		store:   st,
		results: results.NewService(log, st, st),
	}, nil
}

func (s *session) close() {
	if err := s.store.Stop(); err != nil {
		log.WithError(err).Warn("Failed to close store")
	}
}
