package replicator

import (
	"log/slog"
	"maps"
	"os"
	"slices"
)

// registrar registers newly created directories for observation.
// *watch.Registry implements it.
type registrar interface {
	RegisterTree(dir string) error
}

// Coalescer reduces a stream of notifications to the net effect on each
// path. A path sits in at most one of the three pending sets. It is owned
// by the observation goroutine and is not safe for concurrent use.
type Coalescer struct {
	registrar registrar
	logger    *slog.Logger

	toCreate map[string]struct{}
	toModify map[string]struct{}
	toDelete map[string]struct{}
}

// NewCoalescer creates an empty coalescer that registers created
// directories with reg.
func NewCoalescer(reg registrar, logger *slog.Logger) *Coalescer {
	return &Coalescer{
		registrar: reg,
		logger:    logger,
		toCreate:  make(map[string]struct{}),
		toModify:  make(map[string]struct{}),
		toDelete:  make(map[string]struct{}),
	}
}

// Apply folds one notification into the pending sets.
//
// A created directory is registered before anything else, so that its
// children are observed from then on. A create following a pending delete
// becomes a modify, and a modify following a pending create stays a
// create. The last notification for a path wins.
func (c *Coalescer) Apply(n Notification) {
	if n.Kind == Created {
		c.registerIfDir(n.Path)
	}

	var dest map[string]struct{}

	switch n.Kind {
	case Deleted:
		dest = c.toDelete
	case Created:
		if _, ok := c.toDelete[n.Path]; ok {
			dest = c.toModify
		} else {
			dest = c.toCreate
		}
	case Modified:
		if _, ok := c.toCreate[n.Path]; ok {
			dest = c.toCreate
		} else {
			dest = c.toModify
		}
	default:
		return
	}

	for _, set := range []map[string]struct{}{c.toCreate, c.toModify, c.toDelete} {
		delete(set, n.Path)
	}

	dest[n.Path] = struct{}{}
}

// Len returns the total number of pending paths.
func (c *Coalescer) Len() int {
	return len(c.toCreate) + len(c.toModify) + len(c.toDelete)
}

// pending reports which set path currently sits in.
func (c *Coalescer) pending(path string) (Kind, bool) {
	switch {
	case has(c.toCreate, path):
		return Created, true
	case has(c.toModify, path):
		return Modified, true
	case has(c.toDelete, path):
		return Deleted, true
	default:
		return 0, false
	}
}

// Snapshot copies the pending sets into a Batch and clears them.
func (c *Coalescer) Snapshot() Batch {
	b := Batch{
		Deleted:  slices.Sorted(maps.Keys(c.toDelete)),
		Created:  slices.Sorted(maps.Keys(c.toCreate)),
		Modified: slices.Sorted(maps.Keys(c.toModify)),
	}

	clear(c.toCreate)
	clear(c.toModify)
	clear(c.toDelete)

	return b
}

func (c *Coalescer) registerIfDir(path string) {
	info, err := os.Lstat(path)
	if err != nil || !info.IsDir() {
		return
	}

	if err := c.registrar.RegisterTree(path); err != nil {
		c.logger.Warn("failed to watch new directory",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

func has(set map[string]struct{}, path string) bool {
	_, ok := set[path]
	return ok
}
