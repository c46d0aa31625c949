// Package watch keeps track of which directories are registered with the
// filesystem notification backend.
package watch

//go:generate go run go.uber.org/mock/mockgen -source=registry.go -destination=mock_notifier_test.go -package=watch

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexjbarnes/treesync/internal/errors"
)

// Handle identifies one directory registration. fsnotify keys its watches
// by the name passed to Add, so the handle is that cleaned name.
type Handle string

// Notifier is the subset of *fsnotify.Watcher the registry drives.
type Notifier interface {
	Add(name string) error
	Remove(name string) error
}

// Registry maps watched directories to their handles and back. Each
// directory is registered at most once. Registry is not safe for
// concurrent use; the replicator only touches it from its observation
// goroutine.
type Registry struct {
	notifier Notifier
	logger   *slog.Logger
	handles  map[Handle]string
	dirs     map[string]Handle
}

// NewRegistry creates an empty registry that registers directories with n.
func NewRegistry(n Notifier, logger *slog.Logger) *Registry {
	return &Registry{
		notifier: n,
		logger:   logger,
		handles:  make(map[Handle]string),
		dirs:     make(map[string]Handle),
	}
}

// RegisterTree registers root and every directory beneath it. Symlinked
// directories are not followed. On failure the registrations made so far
// are kept.
func (r *Registry) RegisterTree(root string) error {
	root = filepath.Clean(root)

	info, err := os.Lstat(root)
	if err != nil {
		return fmt.Errorf("registering %s: %w", root, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("registering %s: not a directory", root)
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		return r.RegisterOne(path)
	})
	if err != nil {
		return fmt.Errorf("registering %s: %w", root, err)
	}

	return nil
}

// RegisterOne registers a single directory for notifications about its
// direct children. Registering an already registered directory refreshes
// the existing entry.
func (r *Registry) RegisterOne(dir string) error {
	dir = filepath.Clean(dir)

	if err := r.notifier.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	h := Handle(dir)
	r.handles[h] = dir
	r.dirs[dir] = h

	r.logger.Debug("registered", slog.String("dir", dir))

	return nil
}

// Unregister drops the registration for h. Unknown handles are ignored.
func (r *Registry) Unregister(h Handle) {
	dir, ok := r.handles[h]
	if !ok {
		return
	}

	delete(r.handles, h)
	delete(r.dirs, dir)

	// inotify drops the watch itself when the directory goes away, in
	// which case Remove reports a non-existent watch.
	_ = r.notifier.Remove(dir)

	r.logger.Debug("unregistered", slog.String("dir", dir))
}

// UnregisterTree drops dir and every registered directory beneath it and
// returns how many registrations were removed. A directory renamed away
// keeps its kernel watches under the new name, so its whole subtree has
// to go, not only the directory itself.
func (r *Registry) UnregisterTree(dir string) int {
	dir = filepath.Clean(dir)
	prefix := dir + string(filepath.Separator)

	var doomed []Handle

	for d, h := range r.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			doomed = append(doomed, h)
		}
	}

	for _, h := range doomed {
		r.Unregister(h)
	}

	return len(doomed)
}

// Resolve returns the directory registered under h.
func (r *Registry) Resolve(h Handle) (string, error) {
	dir, ok := r.handles[h]
	if !ok {
		return "", fmt.Errorf("%w: %s", errors.ErrUnknownHandle, string(h))
	}

	return dir, nil
}

// HandleOf returns the handle dir is registered under.
func (r *Registry) HandleOf(dir string) (Handle, bool) {
	h, ok := r.dirs[filepath.Clean(dir)]
	return h, ok
}

// IsEmpty reports whether no directory is registered any more.
func (r *Registry) IsEmpty() bool {
	return len(r.handles) == 0
}

// Len returns the number of registered directories.
func (r *Registry) Len() int {
	return len(r.handles)
}
