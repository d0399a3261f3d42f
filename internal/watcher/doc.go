// Package watcher reports changes to a fixed set of files: the project
// configuration and the files the indexes read from.
//
// fsnotify is used where available, watching each file's parent directory so
// that editors which save by rename are still seen. Where fsnotify cannot be
// set up (network mounts, some container volumes) the files are polled.
// Events are debounced into batches.
//
// Usage:
//
//	w := watcher.New([]string{cfgPath, "content/pages.yaml"}, watcher.DefaultOptions())
//	go func() { _ = w.Start(ctx) }()
//	for batch := range w.Events() {
//	    // rebuild
//	}
package watcher
