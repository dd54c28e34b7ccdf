// Package watcher provides real-time watching of a guide site's files
// with automatic debouncing and .guideignore-aware filtering.
//
// The package implements a hybrid watching strategy:
//   - Primary: fsnotify for efficient event-based watching
//   - Fallback: polling for environments where fsnotify fails (network mounts, container volumes)
//
// Rapid editor saves are debounced into a single batch, and paths are
// filtered against built-in noise rules plus the site's .guideignore.
// Changes to .guideignore and .guidecore.yaml surface as dedicated
// operations so consumers can reload patterns or configuration instead
// of treating them as content edits.
//
// Usage:
//
//	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() { _ = w.Start(ctx, siteRoot) }()
//
//	for batch := range w.Events() {
//	    // reload the guide once per batch
//	    _ = batch
//	}
package watcher
