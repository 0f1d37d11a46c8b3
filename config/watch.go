package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watcher reports changes to a fixed set of files. Directories are watched
// rather than the files themselves so that editors replacing a file, and
// optional files created later, are both seen.
type watcher struct {
	fs    *fsnotify.Watcher
	files map[string]bool
	done  chan struct{}
}

func newWatcher(paths []string, onChange func(path string)) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	w := &watcher{fs: fw, files: make(map[string]bool), done: make(chan struct{})}
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = filepath.Clean(p)
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	go w.loop(onChange)
	return w, nil
}

func (w *watcher) loop(onChange func(path string)) {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			name, err := filepath.Abs(ev.Name)
			if err != nil {
				name = filepath.Clean(ev.Name)
			}
			if w.files[name] {
				onChange(name)
			}
		case _, ok := <-w.fs.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher and waits for the event loop to exit.
func (w *watcher) Close() error {
	err := w.fs.Close()
	<-w.done
	return err
}
