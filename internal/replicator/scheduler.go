package replicator

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/alexjbarnes/treesync/internal/watch"
)

// watchRegistry is the part of *watch.Registry the observer drives.
type watchRegistry interface {
	registrar
	UnregisterTree(dir string) int
	HandleOf(dir string) (watch.Handle, bool)
	Resolve(h watch.Handle) (string, error)
	IsEmpty() bool
}

// observer owns the registry and the pending sets. It translates fsnotify
// events into notifications and hands a batch to the sync worker once no
// notification has arrived for the settle window.
type observer struct {
	root      string
	registry  watchRegistry
	coalescer *Coalescer
	settle    time.Duration
	batches   chan<- Batch
	logger    *slog.Logger
}

// run observes until ctx is cancelled, the event stream closes or nothing
// is left to watch. Whatever is still pending then goes out as a final
// batch and batches is closed.
func (o *observer) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	defer close(o.batches)
	defer o.flush()

	var (
		timer   *time.Timer
		timeout <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for !o.registry.IsEmpty() {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}

			o.observe(ev)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}

			o.handleError(err)

		case <-timeout:
			timeout = nil
			o.flush()

			continue
		}

		// Every notification restarts the settle window.
		switch {
		case o.coalescer.Len() == 0:
			timeout = nil
		case timer == nil:
			timer = time.NewTimer(o.settle)
			timeout = timer.C
		default:
			timer.Reset(o.settle)
			timeout = timer.C
		}
	}

	o.logger.Info("nothing left to watch", slog.String("root", o.root))
}

func (o *observer) observe(ev fsnotify.Event) {
	kind, ok := kindOf(ev.Op)
	if !ok {
		return
	}

	path := filepath.Clean(ev.Name)

	if kind == Deleted {
		if _, watched := o.registry.HandleOf(path); watched {
			n := o.registry.UnregisterTree(path)
			o.logger.Debug("watched directory gone", slog.String("dir", path), slog.Int("unregistered", n))
		}
	}

	// Only children of registered directories count. This keeps the root's
	// own events out, along with late events from directories already
	// unregistered.
	h, watched := o.registry.HandleOf(filepath.Dir(path))
	if !watched {
		return
	}

	dir, err := o.registry.Resolve(h)
	if err != nil {
		o.logger.Debug("dropping event", slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	o.coalescer.Apply(Notification{Kind: kind, Path: filepath.Join(dir, filepath.Base(path))})
}

func (o *observer) handleError(err error) {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		o.logger.Warn("notifications lost, rescanning source", slog.String("root", o.root))
		o.coalescer.Apply(Notification{Kind: Created, Path: o.root})

		return
	}

	o.logger.Warn("watch error", slog.String("error", err.Error()))
}

func (o *observer) flush() {
	if o.coalescer.Len() == 0 {
		return
	}

	b := o.coalescer.Snapshot()
	o.logger.Debug("batch settled", slog.Int("paths", b.Len()))

	o.batches <- b
}
