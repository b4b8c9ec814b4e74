package reconcile

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// Waiter blocks until a file exists.
type Waiter interface {
	WaitFor(ctx context.Context, path string) error
}

// NotifyWaiter watches the file's directory with fsnotify. The watch needs
// a real directory, so it only helps for files on the OS filesystem; for
// any other Fs it reports whether the file is already there.
type NotifyWaiter struct {
	Fs afero.Fs
}

func (w *NotifyWaiter) fs() afero.Fs {
	if w.Fs == nil {
		return afero.NewOsFs()
	}
	return w.Fs
}

func (w *NotifyWaiter) exists(path string) bool {
	ok, err := afero.Exists(w.fs(), path)
	return err == nil && ok
}

func (w *NotifyWaiter) WaitFor(ctx context.Context, path string) error {
	if w.exists(path) {
		return nil
	}
	if _, ok := w.fs().(*afero.OsFs); !ok {
		return fmt.Errorf("%s does not exist", path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	// The file may have been created before the watch started.
	if w.exists(path) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s: %w", path, ctx.Err())
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("wait for %s: watcher closed", path)
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if strings.EqualFold(filepath.Clean(event.Name), filepath.Clean(path)) && w.exists(path) {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("wait for %s: watcher closed", path)
			}
			return fmt.Errorf("wait for %s: %w", path, err)
		}
	}
}
