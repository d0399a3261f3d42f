package watcher

import (
	"context"
	"os"
	"time"
)

// fileSnapshot is what polling compares between ticks.
type fileSnapshot struct {
	exists  bool
	modTime time.Time
	size    int64
}

func snapshot(path string) fileSnapshot {
	info, err := os.Stat(path)
	if err != nil {
		return fileSnapshot{}
	}
	return fileSnapshot{exists: true, modTime: info.ModTime(), size: info.Size()}
}

// poller detects changes to a fixed set of files by stat'ing them.
type poller struct {
	state map[string]fileSnapshot
}

func newPoller(paths []string) *poller {
	p := &poller{state: make(map[string]fileSnapshot, len(paths))}
	for _, path := range paths {
		p.state[path] = snapshot(path)
	}
	return p
}

// detectChanges returns one event per file whose state changed since the
// previous call.
func (p *poller) detectChanges(now time.Time) []FileEvent {
	var events []FileEvent
	for path, prev := range p.state {
		cur := snapshot(path)
		var op Operation
		switch {
		case !prev.exists && cur.exists:
			op = OpCreate
		case prev.exists && !cur.exists:
			op = OpDelete
		case cur.exists && (prev.modTime != cur.modTime || prev.size != cur.size):
			op = OpModify
		default:
			continue
		}
		p.state[path] = cur
		events = append(events, FileEvent{Path: path, Operation: op, Timestamp: now})
	}
	return events
}

// poll feeds changes to emit every interval until ctx or stop is done.
func (p *poller) poll(ctx context.Context, stop <-chan struct{}, interval time.Duration, emit func(FileEvent)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case now := <-ticker.C:
			for _, ev := range p.detectChanges(now) {
				emit(ev)
			}
		}
	}
}
