package load

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/syssam/grafo/schema"
)

// Watcher reloads a declaration file whenever it changes on disk and
// hands the result to a callback. It is development tooling: nothing
// in the mapping core depends on it, and sessions opened over a
// previous registry are unaffected by a reload.
type Watcher struct {
	w    *fsnotify.Watcher
	done chan struct{}
}

// Watch starts watching the declaration file at path. onReload is
// called with the freshly built registry, or with a nil registry and
// the parse/validation error. The callback runs on the watcher's
// goroutine.
func Watch(path string, onReload func(*schema.Registry, error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("load: watch declarations: %w", err)
	}
	// Watch the directory rather than the file: editors commonly
	// replace the file on save, which drops a file-level watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("load: watch declarations: %w", err)
	}
	w := &Watcher{w: fw, done: make(chan struct{})}
	go w.run(path, onReload)
	return w, nil
}

func (w *Watcher) run(path string, onReload func(*schema.Registry, error)) {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			onReload(File(path))
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			onReload(nil, fmt.Errorf("load: watch declarations: %w", err))
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	err := w.w.Close()
	<-w.done
	return err
}
