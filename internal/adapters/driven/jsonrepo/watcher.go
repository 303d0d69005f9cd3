package jsonrepo

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce groups the burst of events a single rename-based write produces.
const DefaultDebounce = 500 * time.Millisecond

type Watcher interface {
	Watch(ctx context.Context) error
}

// fsnotifyWatcher is a concrete implementation of the Watcher interface using the fsnotify library.
// It watches the directory, not the file, since every write replaces the file through a rename.
type fsnotifyWatcher struct {
	watcher  *fsnotify.Watcher
	filename string
	debounce time.Duration
	onChange func()
}

// NewFsnotifyWatcher creates a new file watcher for one document. onChange runs once the document has been quiet for debounce.
func NewFsnotifyWatcher(filename string, debounce time.Duration, onChange func()) (*fsnotifyWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &fsnotifyWatcher{
		watcher:  fsWatcher,
		filename: filepath.Clean(filename),
		debounce: debounce,
		onChange: onChange,
	}, nil
}

// Watch implements the Watcher interface.
func (w *fsnotifyWatcher) Watch(ctx context.Context) error {
	dir := filepath.Dir(w.filename)
	if err := w.watcher.Add(dir); err != nil {
		w.watcher.Close()
		return fmt.Errorf("failed to start watching %s: %w", dir, err)
	}

	go w.run(ctx)

	log.Printf("INFO: Watching for changes to %s", w.filename)
	return nil
}

func (w *fsnotifyWatcher) run(ctx context.Context) {
	defer w.watcher.Close()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			log.Printf("INFO: Stopping watcher for %s", w.filename)
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != w.filename {
				continue
			}

			// only ops that change data
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.onChange()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("ERROR: file watcher error for %s: %v", w.filename, err)
		}
	}
}

// Watch calls onChange whenever the document changes on disk, through this repository or any other
// writer.
func (r *JsonRepository) Watch(ctx context.Context, onChange func()) error {
	w, err := NewFsnotifyWatcher(r.filename, DefaultDebounce, onChange)
	if err != nil {
		return err
	}

	return w.Watch(ctx)
}
