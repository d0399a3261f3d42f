package pipeline

import (
	"fmt"

	"github.com/Aman-CERP/localsearch/internal/config"
	"github.com/Aman-CERP/localsearch/internal/document"
	"github.com/Aman-CERP/localsearch/internal/engine"
	lserrors "github.com/Aman-CERP/localsearch/internal/errors"
	"github.com/Aman-CERP/localsearch/internal/query"
)

// SpecsFromConfig resolves the configured indexes into specs. With only set,
// just the named indexes are returned, in config order; an unknown name is an
// error.
func SpecsFromConfig(cfg *config.Config, only []string) ([]IndexSpec, error) {
	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		if _, ok := cfg.Lookup(name); !ok {
			return nil, lserrors.New(lserrors.ErrCodeIndexUnknown,
				fmt.Sprintf("no index named %q in the configuration", name), nil).
				WithSuggestion("Run 'localsearch config show' to list the configured indexes")
		}
		wanted[name] = true
	}

	specs := make([]IndexSpec, 0, len(cfg.Indexes))
	for _, idx := range cfg.Indexes {
		if len(wanted) > 0 && !wanted[idx.Name] {
			continue
		}
		spec, err := SpecFromConfig(cfg, idx)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// SpecFromConfig resolves one index configuration.
func SpecFromConfig(cfg *config.Config, idx config.IndexConfig) (IndexSpec, error) {
	opts, err := engine.ParseOptions(idx.EngineOptions)
	if err != nil {
		return IndexSpec{}, lserrors.ConfigError(fmt.Sprintf("index %q has invalid engine options", idx.Name), err)
	}

	return IndexSpec{
		Name:          idx.Name,
		Ref:           idx.RefField(),
		IndexFields:   idx.Index,
		StoreFields:   idx.Store,
		Engine:        cfg.EngineFor(idx),
		EngineOptions: opts,
		Source:        idx.Source,
		Query:         idx.Query,
		Normalizer:    document.PathNormalizer(idx.Normalizer),
	}, nil
}

// ConfigQueries opens query engines with paths relative to the config
// directory.
func ConfigQueries(cfg *config.Config) QueryFactory {
	return func(spec IndexSpec) (query.Engine, error) {
		return query.New(spec.Source, cfg.Dir())
	}
}

// SourceFiles lists the local files the specs read from: file sources and
// SQLite databases. Postgres and in-memory sources have none.
func SourceFiles(cfg *config.Config, specs []IndexSpec) []string {
	var files []string
	for _, spec := range specs {
		if path := query.LocalFile(spec.Source, spec.Query, cfg.Dir()); path != "" {
			files = append(files, path)
		}
	}
	return files
}
