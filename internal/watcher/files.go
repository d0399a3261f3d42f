package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// ModeFsnotify is reported by Mode when fsnotify is in use.
	ModeFsnotify = "fsnotify"
	// ModePolling is reported by Mode when files are polled.
	ModePolling = "polling"
)

// FileWatcher watches a fixed set of files and emits debounced batches of
// changes.
type FileWatcher struct {
	paths     map[string]struct{}
	opts      Options
	debouncer *Debouncer
	errors    chan error
	stopCh    chan struct{}
	stopOnce  sync.Once
	mode      atomic.Value
}

// New creates a watcher for paths. Relative paths are made absolute.
func New(paths []string, opts Options) (*FileWatcher, error) {
	opts = opts.WithDefaults()

	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve absolute path: %w", err)
		}
		set[filepath.Clean(abs)] = struct{}{}
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}

	d := NewDebouncer(opts.DebounceWindow, opts.EventBufferSize)
	d.logger = opts.Logger

	w := &FileWatcher{
		paths:     set,
		opts:      opts,
		debouncer: d,
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}
	w.mode.Store("")
	return w, nil
}

// Paths returns the watched files, sorted.
func (w *FileWatcher) Paths() []string {
	out := make([]string, 0, len(w.paths))
	for p := range w.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Start watches until ctx is cancelled or Stop is called. It returns
// ctx.Err() on cancellation and nil after Stop.
func (w *FileWatcher) Start(ctx context.Context) error {
	defer close(w.errors)
	defer w.debouncer.Stop()

	if !w.opts.ForcePolling {
		fsw, err := w.newFsnotify()
		if err == nil {
			w.mode.Store(ModeFsnotify)
			w.opts.Logger.Debug("watcher_started", slog.String("mode", ModeFsnotify), slog.Int("files", len(w.paths)))
			return w.runFsnotify(ctx, fsw)
		}
		w.opts.Logger.Warn("watcher_fallback_polling", slog.String("error", err.Error()))
	}

	w.mode.Store(ModePolling)
	w.opts.Logger.Debug("watcher_started", slog.String("mode", ModePolling), slog.Int("files", len(w.paths)))
	return newPoller(w.Paths()).poll(ctx, w.stopCh, w.opts.PollInterval, w.debouncer.Add)
}

// newFsnotify watches the parent directory of every file.
func (w *FileWatcher) newFsnotify() (*fsnotify.Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	dirs := make(map[string]struct{})
	for p := range w.paths {
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return fsw, nil
}

func (w *FileWatcher) runFsnotify(ctx context.Context, fsw *fsnotify.Watcher) error {
	defer func() { _ = fsw.Close() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if fe, keep := w.translate(event); keep {
				w.debouncer.Add(fe)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			select {
			case w.errors <- err:
			default:
				w.opts.Logger.Warn("watcher_error_dropped", slog.String("error", err.Error()))
			}
		}
	}
}

// translate maps an fsnotify event on a watched file to a FileEvent.
func (w *FileWatcher) translate(event fsnotify.Event) (FileEvent, bool) {
	path := filepath.Clean(event.Name)
	if _, ok := w.paths[path]; !ok {
		return FileEvent{}, false
	}

	var op Operation
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove):
		op = OpDelete
	case event.Has(fsnotify.Rename):
		op = OpRename
	default:
		// chmod only
		return FileEvent{}, false
	}
	return FileEvent{Path: path, Operation: op, Timestamp: time.Now()}, true
}

// Stop stops the watcher. Safe to call multiple times.
func (w *FileWatcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.debouncer.Stop()
	})
	return nil
}

// Events returns debounced batches. The channel is closed when the watcher
// stops.
func (w *FileWatcher) Events() <-chan []FileEvent {
	return w.debouncer.Output()
}

// Errors returns non-fatal watcher errors. The channel is closed when Start
// returns.
func (w *FileWatcher) Errors() <-chan error {
	return w.errors
}

// Mode reports ModeFsnotify or ModePolling once Start has chosen, "" before.
func (w *FileWatcher) Mode() string {
	return w.mode.Load().(string)
}
