// Package watcher keeps the index current while documents are edited.
//
// fsnotify events under the document root are filtered with the discovery
// rules, coalesced by a Debouncer, and applied through a Handler: created or
// modified files are re-indexed, removed or renamed files lose their document
// and sections.
//
//	w, err := watcher.New(root, idx, watcher.Options{Debounce: time.Second}, logger)
//	if err != nil {
//	    return err
//	}
//	return w.Run(ctx)
package watcher
