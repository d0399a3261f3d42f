package preflight

import (
	"context"
	"os"

	"github.com/Aman-CERP/localsearch/internal/config"
	"github.com/Aman-CERP/localsearch/internal/query"
)

// pinger is implemented by query engines backed by a database server.
type pinger interface {
	Ping(ctx context.Context) error
}

// CheckSources checks every configured index source. Local files must exist;
// databases must answer a ping. Nothing is queried.
func (c *Checker) CheckSources(ctx context.Context, cfg *config.Config) []CheckResult {
	results := make([]CheckResult, 0, len(cfg.Indexes))
	for _, idx := range cfg.Indexes {
		results = append(results, c.CheckSource(ctx, cfg, idx))
	}
	return results
}

// CheckSource checks the source of one index.
func (c *Checker) CheckSource(ctx context.Context, cfg *config.Config, idx config.IndexConfig) CheckResult {
	result := CheckResult{Name: "source:" + idx.Name, Required: true}

	// SQLite creates missing databases on open, so the file is checked first
	if path := query.LocalFile(idx.Source, idx.Query, cfg.Dir()); path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return fail(result, "%s not readable: %v", path, err)
		}
		if info.IsDir() {
			return fail(result, "%s is a directory", path)
		}
		if idx.Source.Type != query.SourceSQL {
			return pass(result, "file %s", path)
		}
	}

	eng, err := query.New(idx.Source, cfg.Dir())
	if err != nil {
		return fail(result, "%v", err)
	}
	defer func() { _ = eng.Close() }()

	p, ok := eng.(pinger)
	if !ok {
		return pass(result, "OK")
	}

	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		result = fail(result, "database unreachable")
		result.Details = err.Error()
		return result
	}
	return pass(result, "%s database reachable", driverName(idx.Source))
}

func driverName(src query.SourceConfig) string {
	if src.Driver == "" {
		return query.DriverSQLite
	}
	return src.Driver
}

// Verify interface implementation
var _ pinger = (*query.SQLEngine)(nil)
