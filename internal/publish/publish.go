// Package publish writes content-addressed artifacts into the site's public
// static directory and returns the URLs they are served at.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/renameio"
	lru "github.com/hashicorp/golang-lru/v2"
)

// StaticDir is the subdirectory of the public directory artifacts go to.
const StaticDir = "static"

// DefaultCacheSize bounds the set of filenames remembered as existing.
const DefaultCacheSize = 1024

// Config configures a Publisher.
type Config struct {
	// PublicDir is the site's public output directory.
	PublicDir string

	// PathPrefix is prepended to every URL (e.g. "/docs").
	PathPrefix string

	// LockDir holds cross-process lock files. Defaults to a directory under
	// os.TempDir().
	LockDir string

	// CacheSize bounds the existence cache (default: 1024).
	CacheSize int
}

// Stats counts publish outcomes.
type Stats struct {
	Written int64
	Skipped int64
	Failed  int64
}

// Publisher persists artifacts at most once per filename.
// Filenames are content digests, so an existing file never needs rewriting.
type Publisher struct {
	cfg    Config
	known  *lru.Cache[string, struct{}]
	logger *slog.Logger

	written atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
}

// New creates a Publisher. A nil logger uses slog.Default().
func New(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.PublicDir == "" {
		return nil, errors.New("public directory is required")
	}
	if cfg.LockDir == "" {
		cfg.LockDir = filepath.Join(os.TempDir(), "localsearch", "locks")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	known, err := lru.New[string, struct{}](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create publish cache: %w", err)
	}

	return &Publisher{
		cfg:    cfg,
		known:  known,
		logger: logger,
	}, nil
}

// URL returns the public URL of filename.
func (p *Publisher) URL(filename string) string {
	return strings.TrimSuffix(p.cfg.PathPrefix, "/") + "/" + StaticDir + "/" + filename
}

// Path returns the filesystem location of filename.
func (p *Publisher) Path(filename string) string {
	return filepath.Join(p.cfg.PublicDir, StaticDir, filename)
}

// Publish writes data to filename unless it already exists and returns the
// public URL. A write failure is logged; the URL is returned regardless.
func (p *Publisher) Publish(ctx context.Context, filename string, data []byte) string {
	url := p.URL(filename)

	written, err := p.persist(ctx, filename, data)
	switch {
	case err != nil:
		p.failed.Add(1)
		p.logger.Error("publish_failed",
			slog.String("file", filename),
			slog.String("error", err.Error()))
	case written:
		p.written.Add(1)
		p.logger.Debug("publish_written",
			slog.String("file", filename),
			slog.Int("bytes", len(data)))
	default:
		p.skipped.Add(1)
	}

	return url
}

// persist reports whether it wrote the file.
func (p *Publisher) persist(ctx context.Context, filename string, data []byte) (bool, error) {
	if filename == "" || filepath.Base(filename) != filename {
		return false, fmt.Errorf("invalid artifact filename %q", filename)
	}
	if p.known.Contains(filename) {
		return false, nil
	}

	path := p.Path(filename)
	if exists(path) {
		p.known.Add(filename, struct{}{})
		return false, nil
	}

	lock := newFileLock(p.cfg.LockDir, filename)
	if err := lock.lock(ctx); err != nil {
		return false, err
	}
	defer func() {
		if err := lock.unlock(); err != nil {
			p.logger.Warn("publish_unlock_failed",
				slog.String("file", filename),
				slog.String("error", err.Error()))
		}
	}()

	// another process may have finished while we waited
	if exists(path) {
		p.known.Add(filename, struct{}{})
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := renameio.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}

	p.known.Add(filename, struct{}{})
	return true, nil
}

// Stats returns the outcome counters since creation.
func (p *Publisher) Stats() Stats {
	return Stats{
		Written: p.written.Load(),
		Skipped: p.skipped.Load(),
		Failed:  p.failed.Load(),
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
