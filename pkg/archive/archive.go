package archive

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/config"
)

// Archiver keeps a verbatim copy of every uploaded result file.
type Archiver interface {
	// Preflight verifies that the archive is reachable and writable.
	Preflight(ctx context.Context) error

	// Archive stores content and returns the key it was written under.
	Archive(
		ctx context.Context, buildID uint, filename string, content []byte,
	) (string, error)
}

// New creates the Archiver selected by cfg.
func New(log logrus.FieldLogger, cfg *config.ArchiveConfig) (Archiver, error) {
	switch {
	case cfg.S3 != nil:
		return NewS3Archiver(log, cfg.Prefix, cfg.S3), nil
	case cfg.Local != nil:
		return NewLocalArchiver(log, cfg.Prefix, cfg.Local), nil
	default:
		return nil, errors.New("no archive backend configured")
	}
}

// keyer builds unique object keys below a prefix.
type keyer struct {
	prefix string
	newID  func() string
}

func newKeyer(prefix string) keyer {
	return keyer{
		prefix: strings.Trim(prefix, "/"),
		newID:  uuid.NewString,
	}
}

// key returns {prefix}/builds/{buildID}/{id}-{basename}.
func (k keyer) key(buildID uint, filename string) string {
	parts := make([]string, 0, 4)
	if k.prefix != "" {
		parts = append(parts, k.prefix)
	}

	parts = append(parts,
		"builds",
		strconv.FormatUint(uint64(buildID), 10),
		k.newID()+"-"+baseName(filename),
	)

	return strings.Join(parts, "/")
}

// baseName strips any client supplied directories from filename.
func baseName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if name == "." || name == ".." || name == "/" {
		return "upload"
	}

	return name
}

// detectContentType returns a MIME type based on file extension.
func detectContentType(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return "application/octet-stream"
	}

	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return "application/octet-stream"
	}

	return ct
}

func wrapArchiveErr(key string, err error) error {
	return fmt.Errorf("archiving %s: %w", key, err)
}
