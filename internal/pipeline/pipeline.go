// Package pipeline runs named index builds: query, normalize, filter, build
// the index and store, assemble and register the node.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/localsearch/internal/document"
	"github.com/Aman-CERP/localsearch/internal/engine"
	lserrors "github.com/Aman-CERP/localsearch/internal/errors"
	"github.com/Aman-CERP/localsearch/internal/index"
	"github.com/Aman-CERP/localsearch/internal/node"
	"github.com/Aman-CERP/localsearch/internal/query"
	"github.com/Aman-CERP/localsearch/internal/store"
	"github.com/Aman-CERP/localsearch/internal/telemetry"
)

// IndexSpec is the resolved configuration of one named index.
type IndexSpec struct {
	Name string

	// Ref is the reference field (default "id").
	Ref string

	// IndexFields and StoreFields are allow-lists; nil means whole documents.
	IndexFields []string
	StoreFields []string

	Engine        string
	EngineOptions engine.Options

	Source query.SourceConfig
	Query  string

	// Normalizer maps the query result to documents.
	Normalizer document.Normalizer
}

// QueryFactory opens the query engine of a spec.
type QueryFactory func(spec IndexSpec) (query.Engine, error)

// BuilderFactory creates the index builder of a spec.
type BuilderFactory func(spec IndexSpec) *index.Builder

// HistoryRecorder persists build records.
type HistoryRecorder interface {
	Record(ctx context.Context, rec telemetry.BuildRecord) error
}

// Dependencies contains the injected dependencies for Runner.
type Dependencies struct {
	// Queries opens query engines (required).
	Queries QueryFactory

	// Builders creates index builders. Defaults to index.NewBuilder with the
	// spec's engine and options.
	Builders BuilderFactory

	// Registry receives built nodes (required).
	Registry *node.Registry

	// Metrics is optional.
	Metrics *telemetry.BuildMetrics

	// History is optional.
	History HistoryRecorder

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Runner executes named index builds.
type Runner struct {
	queries  QueryFactory
	builders BuilderFactory
	registry *node.Registry
	metrics  *telemetry.BuildMetrics
	history  HistoryRecorder
	logger   *slog.Logger
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps Dependencies) (*Runner, error) {
	if deps.Queries == nil {
		return nil, fmt.Errorf("query factory is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}

	builders := deps.Builders
	if builders == nil {
		builders = func(spec IndexSpec) *index.Builder {
			return index.NewBuilder(spec.Engine, spec.EngineOptions)
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		queries:  deps.Queries,
		builders: builders,
		registry: deps.Registry,
		metrics:  deps.Metrics,
		history:  deps.History,
		logger:   logger,
	}, nil
}

// buildStats collects what one run learned, for metrics and history.
type buildStats struct {
	documents int
	dropped   int
	digest    string
}

// Run builds one named index and registers its node.
// A query error returns an error wrapping document.ErrQueryFailed and
// registers nothing. An empty result is not an error.
func (r *Runner) Run(ctx context.Context, spec IndexSpec) (*node.Node, error) {
	start := time.Now()
	logger := r.logger.With(slog.String("index", spec.Name))

	n, stats, err := r.run(ctx, spec, logger)
	elapsed := time.Since(start)

	r.metrics.ObserveBuild(spec.Name, err, elapsed)
	r.record(ctx, spec.Name, stats, err, elapsed, logger)

	if err != nil {
		logger.Error("index_build_failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", elapsed))
		return nil, err
	}

	logger.Info("index_built",
		slog.Int("documents", stats.documents),
		slog.Int("dropped", stats.dropped),
		slog.String("digest", n.ContentDigest),
		slog.Duration("duration", elapsed))
	return n, nil
}

func (r *Runner) run(ctx context.Context, spec IndexSpec, logger *slog.Logger) (*node.Node, buildStats, error) {
	var stats buildStats

	ref := spec.Ref
	if ref == "" {
		ref = document.DefaultRef
	}

	qe, err := r.queries(spec)
	if err != nil {
		return nil, stats, lserrors.New(lserrors.ErrCodeConfigInvalid,
			fmt.Sprintf("cannot open source of index %q", spec.Name), err)
	}
	defer func() { _ = qe.Close() }()

	result := qe.Execute(ctx, spec.Query)

	docs, err := document.Normalize(ctx, result, spec.Normalizer)
	if err != nil {
		if stderrors.Is(err, document.ErrQueryFailed) {
			for _, qerr := range result.Errors {
				logger.Error("query_error", slog.String("error", qerr.Error()))
			}
			return nil, stats, lserrors.QueryError(spec.Name, err)
		}
		return nil, stats, lserrors.New(lserrors.ErrCodeNormalizerFailed,
			fmt.Sprintf("normalizer of index %q failed", spec.Name), err)
	}

	if len(docs) == 0 {
		logger.Warn("query_returned_no_nodes",
			slog.String("detail", fmt.Sprintf(
				"The query for index %q returned no nodes. The index and store will be empty.", spec.Name)))
	}

	kept, dropped := document.FilterByRef(docs, ref)
	if dropped > 0 {
		logger.Debug("documents_dropped",
			slog.String("ref", ref),
			slog.Int("dropped", dropped))
	}
	stats.documents = len(kept)
	stats.dropped = dropped
	r.metrics.ObserveDocuments(spec.Name, len(kept), dropped)

	// Both artifacts come from the same filtered slice so positional ids line up
	artifact, err := r.builders(spec).Build(ctx, kept, index.Options{Ref: ref, Fields: spec.IndexFields})
	if err != nil {
		return nil, stats, lserrors.IndexError(spec.Name, err)
	}
	st := store.Build(kept, spec.StoreFields)

	n, err := node.New(spec.Name, string(artifact), st)
	if err != nil {
		return nil, stats, lserrors.New(lserrors.ErrCodeStoreFailed,
			fmt.Sprintf("assembling index %q failed", spec.Name), err)
	}
	stats.digest = n.ContentDigest
	r.metrics.ObserveArtifacts(spec.Name, len(n.Index), len(n.StoreJSON()))

	r.registry.Register(n)
	return n, stats, nil
}

func (r *Runner) record(ctx context.Context, name string, stats buildStats, buildErr error, elapsed time.Duration, logger *slog.Logger) {
	if r.history == nil {
		return
	}

	rec := telemetry.BuildRecord{
		Index:      name,
		Status:     telemetry.StatusSuccess,
		Digest:     stats.digest,
		Documents:  stats.documents,
		Dropped:    stats.dropped,
		Duration:   elapsed,
		FinishedAt: time.Now(),
	}
	if buildErr != nil {
		rec.Status = telemetry.StatusFailed
		rec.Error = buildErr.Error()
	}

	// history is best effort; a cancelled run still gets its record
	if err := r.history.Record(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("history_record_failed", slog.String("error", err.Error()))
	}
}

// RunAll builds every spec concurrently. A failing index never cancels the
// others. It returns the nodes that were built, in input order, and the
// joined errors of the ones that were not.
func (r *Runner) RunAll(ctx context.Context, specs []IndexSpec) ([]*node.Node, error) {
	nodes := make([]*node.Node, len(specs))
	errs := make([]error, len(specs))

	// A plain Group: WithContext would cancel siblings on the first failure
	var g errgroup.Group
	for i, spec := range specs {
		g.Go(func() error {
			nodes[i], errs[i] = r.Run(ctx, spec)
			return nil
		})
	}
	_ = g.Wait()

	built := make([]*node.Node, 0, len(specs))
	for _, n := range nodes {
		if n != nil {
			built = append(built, n)
		}
	}
	return built, stderrors.Join(errs...)
}
