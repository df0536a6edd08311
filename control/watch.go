// control/watch.go
// License: Apache-2.0
//
// Configuration file watcher.

package control

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reports changes of one configuration file.
type Watcher struct {
	w    *fsnotify.Watcher
	done chan struct{}
}

// WatchConfig calls onChange from a separate goroutine whenever path is
// written, created or renamed into place. The directory is watched so that
// editors replacing the file are noticed.
func WatchConfig(path string, log zerolog.Logger, onChange func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config watcher: %w", err)
	}

	w := &Watcher{w: fw, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					onChange()
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Str("path", abs).Msg("config watcher error")
			}
		}
	}()
	return w, nil
}

// Close stops the watcher and waits for its goroutine.
func (w *Watcher) Close() error {
	err := w.w.Close()
	<-w.done
	return err
}
