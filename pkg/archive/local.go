package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/config"
)

const preflightObject = ".rtd-write-test"

type localArchiver struct {
	log   logrus.FieldLogger
	dir   string
	keyer keyer
}

// Ensure interface compliance.
var _ Archiver = (*localArchiver)(nil)

// NewLocalArchiver creates an Archiver writing below a local directory.
func NewLocalArchiver(
	log logrus.FieldLogger,
	prefix string,
	cfg *config.LocalArchiveConfig,
) Archiver {
	return &localArchiver{
		log:   log.WithField("component", "local-archive"),
		dir:   cfg.Dir,
		keyer: newKeyer(prefix),
	}
}

// Preflight creates the archive directory and writes a small test file.
func (a *localArchiver) Preflight(_ context.Context) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("creating archive dir %s: %w", a.dir, err)
	}

	content := fmt.Sprintf("rtd write test: %s", time.Now().UTC().Format(time.RFC3339))

	p := filepath.Join(a.dir, preflightObject)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil { //nolint:gosec // not secret
		return fmt.Errorf("writing test file to %s: %w", a.dir, err)
	}

	return nil
}

func (a *localArchiver) Archive(
	_ context.Context, buildID uint, filename string, content []byte,
) (string, error) {
	key := a.keyer.key(buildID, filename)
	p := filepath.Join(a.dir, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", wrapArchiveErr(key, err)
	}

	if err := os.WriteFile(p, content, 0o644); err != nil { //nolint:gosec // not secret
		return "", wrapArchiveErr(key, err)
	}

	a.log.WithFields(logrus.Fields{
		"key":   key,
		"bytes": len(content),
	}).Debug("Archived upload")

	return key, nil
}
