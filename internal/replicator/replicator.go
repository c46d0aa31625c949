// Package replicator keeps a target directory tree equal to a source tree.
// It watches every source directory, coalesces bursts of notifications into
// net per-path changes and applies them to the target once the source has
// been quiet for a settle window.
package replicator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/alexjbarnes/treesync/internal/errors"
	"github.com/alexjbarnes/treesync/internal/mirror"
	"github.com/alexjbarnes/treesync/internal/watch"
)

const (
	DefaultSettleWindow = 500 * time.Millisecond
	DefaultQueueSize    = 16
)

// Options configures a Replicator.
type Options struct {
	Source string
	Target string

	// SettleWindow is how long the source must stay quiet before pending
	// changes are applied. Defaults to DefaultSettleWindow.
	SettleWindow time.Duration

	// QueueSize bounds the number of settled batches waiting for the sync
	// worker. Defaults to DefaultQueueSize.
	QueueSize int

	// ModTimeWindow is passed to the default mirror.
	ModTimeWindow time.Duration

	// Tree overrides the mirror used for syncing.
	Tree Tree

	// OnReport, if set, is called on the sync worker after every pass.
	OnReport func(Report)
}

// Replicator mirrors one source tree onto one target tree.
type Replicator struct {
	opts   Options
	source string
	target string
	tree   Tree
	logger *slog.Logger

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	registry *watch.Registry
	running  bool
}

// New validates the roots and returns a Replicator ready to Start.
func New(opts Options, logger *slog.Logger) (*Replicator, error) {
	source, err := filepath.Abs(opts.Source)
	if err != nil {
		return nil, fmt.Errorf("resolving source: %w", err)
	}

	info, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrSourceNotFound, source)
		}

		return nil, fmt.Errorf("stat source: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", errors.ErrSourceNotDir, source)
	}

	// Events are reported under the names the watches were added with, so
	// settle on the real path up front.
	source, err = filepath.EvalSymlinks(source)
	if err != nil {
		return nil, fmt.Errorf("resolving source: %w", err)
	}

	target, err := filepath.Abs(opts.Target)
	if err != nil {
		return nil, fmt.Errorf("resolving target: %w", err)
	}

	if err := mirror.CheckRoots(source, target); err != nil {
		return nil, err
	}

	if opts.SettleWindow <= 0 {
		opts.SettleWindow = DefaultSettleWindow
	}

	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	tree := opts.Tree
	if tree == nil {
		tree = mirror.New(mirror.Options{ModTimeWindow: opts.ModTimeWindow}, logger)
	}

	return &Replicator{
		opts:   opts,
		source: source,
		target: target,
		tree:   tree,
		logger: logger,
	}, nil
}

// Source returns the resolved source root.
func (r *Replicator) Source() string { return r.source }

// Target returns the resolved target root.
func (r *Replicator) Target() string { return r.target }

// Start watches every directory under the source and then runs a full
// sync of source onto target. Watching first means changes made during the
// initial sync are not missed. Any failure is returned and leaves nothing
// running.
func (r *Replicator) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watcher != nil {
		return errors.ErrAlreadyStarted
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	reg := watch.NewRegistry(w, r.logger)

	if err := reg.RegisterTree(r.source); err != nil {
		w.Close()
		return fmt.Errorf("watching source: %w", err)
	}

	r.logger.Info("watching source",
		slog.String("source", r.source),
		slog.Int("dirs", reg.Len()),
	)

	start := time.Now()

	if err := r.tree.Sync(r.source, r.target); err != nil {
		w.Close()
		return fmt.Errorf("initial sync: %w", err)
	}

	r.logger.Info("initial sync complete",
		slog.String("target", r.target),
		slog.Duration("took", time.Since(start)),
	)

	r.watcher = w
	r.registry = reg

	return nil
}

// Run observes the source and applies settled changes until ctx is
// cancelled, Stop is called or the source root disappears. Pending changes
// are flushed and every queued batch is applied before Run returns.
func (r *Replicator) Run(ctx context.Context) error {
	r.mu.Lock()
	w, reg := r.watcher, r.registry

	if w == nil {
		r.mu.Unlock()
		return errors.ErrNotStarted
	}

	if r.running {
		r.mu.Unlock()
		return errors.ErrAlreadyStarted
	}

	r.running = true
	r.mu.Unlock()

	batches := make(chan Batch, r.opts.QueueSize)

	obs := &observer{
		root:      r.source,
		registry:  reg,
		coalescer: NewCoalescer(reg, r.logger),
		settle:    r.opts.SettleWindow,
		batches:   batches,
		logger:    r.logger,
	}

	worker := &syncWorker{
		dispatcher: NewDispatcher(r.source, r.target, r.tree, r.logger),
		onReport:   r.opts.OnReport,
	}

	var g errgroup.Group

	g.Go(func() error {
		defer w.Close()
		obs.run(ctx, w.Events, w.Errors)

		return nil
	})

	g.Go(func() error {
		worker.run(batches)
		return nil
	})

	return g.Wait()
}

// Stop closes the watcher. A running Run flushes what is pending and
// returns once the sync worker has drained its queue.
func (r *Replicator) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watcher == nil {
		return errors.ErrNotStarted
	}

	return r.watcher.Close()
}
