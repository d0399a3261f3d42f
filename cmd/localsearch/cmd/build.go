package cmd

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"syscall"

	"github.com/google/renameio"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/localsearch/internal/config"
	lserrors "github.com/Aman-CERP/localsearch/internal/errors"
	"github.com/Aman-CERP/localsearch/internal/node"
	"github.com/Aman-CERP/localsearch/internal/output"
	"github.com/Aman-CERP/localsearch/internal/pipeline"
	"github.com/Aman-CERP/localsearch/internal/profiling"
	"github.com/Aman-CERP/localsearch/internal/publish"
	"github.com/Aman-CERP/localsearch/internal/telemetry"
	"github.com/Aman-CERP/localsearch/internal/watcher"
)

// buildFlags are the flags of the build command.
type buildFlags struct {
	only        []string
	watch       bool
	metricsFile string
	manifest    string
	jsonOutput  bool
	profile     profiling.Options
}

// Manifest maps index names to their published nodes.
type Manifest map[string]node.Entry

// buildReport is the result of one build, also the --json output.
type buildReport struct {
	Indexes   []node.Entry      `json:"indexes"`
	Failed    []string          `json:"failed,omitempty"`
	Errors    []json.RawMessage `json:"errors,omitempty"`
	Manifest  string            `json:"manifest"`
	Published publish.Stats     `json:"published"`
}

func newBuildCmd(opts *globalOptions) *cobra.Command {
	flags := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build and publish every configured index",
		Long: `Build runs the query of every configured index, builds its full-text index
and document store, publishes both under <public_dir>/static and writes the
manifest.

Indexes are built concurrently; one failing index does not stop the others,
but the command exits non-zero.

Examples:
  localsearch build
  localsearch build --only pages --only posts
  localsearch build --watch
  localsearch build --metrics-file /var/lib/node_exporter/localsearch.prom`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			if flags.profile.Enabled() {
				session, err := profiling.Start(flags.profile)
				if err != nil {
					return err
				}
				defer func() {
					if err := session.Stop(); err != nil {
						slog.Warn("profile_write_failed", slog.String("error", err.Error()))
					}
				}()
			}

			buildErr := runBuild(ctx, cmd, cfg, flags)
			if !flags.watch {
				return buildErr
			}
			if buildErr != nil {
				_, _ = fmt.Fprint(cmd.ErrOrStderr(), lserrors.FormatForCLI(buildErr))
			}
			return runWatch(ctx, cmd, opts, cfg, flags)
		},
	}

	cmd.Flags().StringArrayVar(&flags.only, "only", nil, "Build only the named index (repeatable)")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "Rebuild when the config or a source file changes")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-file", "", "Write build metrics in node-exporter textfile format")
	cmd.Flags().StringVar(&flags.manifest, "manifest", "", "Manifest path (default: publish.manifest)")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Output the build report as JSON")
	cmd.Flags().StringVar(&flags.profile.CPU, "cpuprofile", "", "Write a CPU profile to this file")
	cmd.Flags().StringVar(&flags.profile.Heap, "memprofile", "", "Write a heap profile to this file after the build")
	cmd.Flags().StringVar(&flags.profile.Trace, "trace", "", "Write an execution trace to this file")

	return cmd
}

// runBuild builds the selected indexes once, publishes them and writes the
// manifest. The returned error joins the failures of individual indexes.
func runBuild(ctx context.Context, cmd *cobra.Command, cfg *config.Config, flags *buildFlags) error {
	logger := slog.Default()

	specs, err := pipeline.SpecsFromConfig(cfg, flags.only)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		output.New(cmd.OutOrStdout()).Warning("No indexes configured. Run 'localsearch config init' to create a starter config.")
		return nil
	}

	pub, err := publish.New(publish.Config{
		PublicDir:  cfg.Resolve(cfg.Publish.PublicDir),
		PathPrefix: cfg.Publish.PathPrefix,
		LockDir:    cfg.Resolve(cfg.Publish.LockDir),
	}, logger)
	if err != nil {
		return lserrors.ConfigError("invalid publish configuration", err)
	}

	metrics := telemetry.NewBuildMetrics()
	deps := pipeline.Dependencies{
		Queries:  pipeline.ConfigQueries(cfg),
		Registry: node.NewRegistry(),
		Metrics:  metrics,
		Logger:   logger,
	}

	if !cfg.History.Disabled {
		history, err := telemetry.OpenHistory(cfg.Resolve(cfg.History.Path))
		if err != nil {
			logger.Warn("history_unavailable", slog.String("error", err.Error()))
		} else {
			defer func() { _ = history.Close() }()
			deps.History = history
		}
	}

	runner, err := pipeline.NewRunner(deps)
	if err != nil {
		return err
	}

	nodes, buildErr := runner.RunAll(ctx, specs)
	logger.Debug("build_finished",
		slog.Any("registered", deps.Registry.Names()),
		slog.String("heap_in_use", profiling.FormatBytes(profiling.HeapInUse())))

	report := buildReport{Indexes: make([]node.Entry, 0, len(nodes))}
	for _, n := range nodes {
		report.Indexes = append(report.Indexes, n.Resolve(ctx, pub))
	}
	for _, spec := range specs {
		if _, ok := deps.Registry.Get(spec.Name); !ok {
			report.Failed = append(report.Failed, spec.Name)
		}
	}
	report.Published = pub.Stats()

	manifestPath := flags.manifest
	if manifestPath == "" {
		manifestPath = cfg.Resolve(cfg.Publish.Manifest)
	}
	report.Manifest = manifestPath
	if err := writeManifest(manifestPath, report.Indexes, len(flags.only) > 0); err != nil {
		buildErr = stderrors.Join(buildErr, err)
	}

	if flags.metricsFile != "" {
		if err := metrics.WriteTextfile(flags.metricsFile); err != nil {
			logger.Warn("metrics_write_failed", slog.String("error", err.Error()))
		}
	}

	if flags.jsonOutput {
		for _, e := range unjoin(buildErr) {
			if data, err := lserrors.FormatJSON(e); err == nil {
				report.Errors = append(report.Errors, data)
			}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printReport(output.New(cmd.OutOrStdout()), report, nodes)
	}

	return buildErr
}

// writeManifest writes entries to path atomically. When merge is set, entries
// of indexes not rebuilt this time are kept from the existing manifest.
func writeManifest(path string, entries []node.Entry, merge bool) error {
	manifest := Manifest{}
	if merge {
		if existing, err := ReadManifest(path); err == nil && existing != nil {
			manifest = existing
		}
	}
	for _, e := range entries {
		manifest[e.Name] = e
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return lserrors.New(lserrors.ErrCodeManifestFailed, "encoding manifest failed", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return lserrors.New(lserrors.ErrCodeManifestFailed, "creating manifest directory failed", err)
	}
	if err := renameio.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return lserrors.New(lserrors.ErrCodeManifestFailed, "writing manifest failed", err).
			WithDetail("path", path)
	}
	return nil
}

// ReadManifest reads a manifest written by build.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m, nil
}

func printReport(out *output.Writer, report buildReport, nodes []*node.Node) {
	if len(nodes) > 0 {
		rows := make([][]string, 0, len(nodes))
		for _, n := range nodes {
			rows = append(rows, []string{
				n.Name,
				n.Type,
				strconv.Itoa(len(n.Store)),
				n.ContentDigest[:12],
			})
		}
		out.Table([]string{"INDEX", "TYPE", "DOCUMENTS", "DIGEST"}, rows)
		out.Newline()
	}

	for _, name := range report.Failed {
		out.Errorf("%s failed", name)
	}
	if len(report.Indexes) > 0 {
		out.Successf("Built %d of %d indexes", len(report.Indexes), len(report.Indexes)+len(report.Failed))
	}
	out.Field("manifest", report.Manifest)
	out.Field("published", fmt.Sprintf("%d written, %d unchanged, %d failed",
		report.Published.Written, report.Published.Skipped, report.Published.Failed))
}

// unjoin splits an errors.Join result.
func unjoin(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range joined.Unwrap() {
			out = append(out, unjoin(e)...)
		}
		return out
	}
	return []error{err}
}

// watchFiles lists the files whose change triggers a rebuild.
func watchFiles(cfg *config.Config, flags *buildFlags) []string {
	var files []string
	if cfg.Path() != "" {
		files = append(files, cfg.Path())
	}
	if specs, err := pipeline.SpecsFromConfig(cfg, flags.only); err == nil {
		files = append(files, pipeline.SourceFiles(cfg, specs)...)
	}
	slices.Sort(files)
	return slices.Compact(files)
}

// runWatch rebuilds on every debounced batch of changes until ctx is done.
// The config is reloaded each time; a broken config keeps the previous one.
func runWatch(ctx context.Context, cmd *cobra.Command, opts *globalOptions, cfg *config.Config, flags *buildFlags) error {
	for {
		files := watchFiles(cfg, flags)
		if len(files) == 0 {
			return lserrors.New(lserrors.ErrCodeInvalidInput, "nothing to watch: no config file and no local sources", nil)
		}

		debounce, err := cfg.DebounceDuration()
		if err != nil {
			return lserrors.ConfigError("invalid watch configuration", err)
		}
		w, err := watcher.New(files, watcher.Options{DebounceWindow: debounce, Logger: slog.Default()})
		if err != nil {
			return err
		}

		done := make(chan error, 1)
		go func() { done <- w.Start(ctx) }()
		slog.Info("watching", slog.Int("files", len(files)))

		next := watchUntilChanged(ctx, cmd, opts, cfg, flags, w, files)
		_ = w.Stop()
		<-done
		if next == nil {
			return nil
		}
		cfg = next
	}
}

// watchUntilChanged handles batches until the watcher stops (nil) or a
// reload changes the set of watched files (the new config).
func watchUntilChanged(ctx context.Context, cmd *cobra.Command, opts *globalOptions, cfg *config.Config,
	flags *buildFlags, w *watcher.FileWatcher, files []string) *config.Config {
	errs := w.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("watcher_error", slog.String("error", err.Error()))
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			changed := make([]string, len(batch))
			for i, ev := range batch {
				changed[i] = ev.Path
			}
			slog.Info("rebuild_triggered", slog.Any("files", changed), slog.String("mode", w.Mode()))

			reloaded, err := opts.loadConfig(cmd)
			if err != nil {
				slog.Error("config_reload_failed", slog.String("error", err.Error()))
				continue
			}
			cfg = reloaded

			if err := runBuild(ctx, cmd, cfg, flags); err != nil {
				slog.Error("rebuild_failed", slog.Any("error", lserrors.FormatForLog(err)))
				_, _ = fmt.Fprint(cmd.ErrOrStderr(), lserrors.FormatForCLI(err))
			}
			if !slices.Equal(files, watchFiles(cfg, flags)) {
				return cfg
			}
		}
	}
}
