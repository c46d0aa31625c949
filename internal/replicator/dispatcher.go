package replicator

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Dispatcher applies settled batches to the target tree.
type Dispatcher struct {
	sourceRoot string
	targetRoot string
	tree       Tree
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher mapping paths under sourceRoot onto
// targetRoot. Both roots must be absolute and cleaned.
func NewDispatcher(sourceRoot, targetRoot string, tree Tree, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sourceRoot: sourceRoot,
		targetRoot: targetRoot,
		tree:       tree,
		logger:     logger,
	}
}

// TargetFor maps a source path to its counterpart under the target root.
func (d *Dispatcher) TargetFor(source string) (string, error) {
	rel, err := filepath.Rel(d.sourceRoot, source)
	if err != nil {
		return "", fmt.Errorf("mapping %s: %w", source, err)
	}

	if rel != "." && !filepath.IsLocal(rel) {
		return "", fmt.Errorf("mapping %s: outside source root %s", source, d.sourceRoot)
	}

	return filepath.Join(d.targetRoot, rel), nil
}

// Dispatch runs one sync pass: deletions first, then creations, then
// modifications. A failing path is logged and the pass moves on.
// Modifications only touch paths that resolve to regular files at the
// time of the pass; a directory's own modify notifications carry nothing
// its children's notifications do not already cover.
func (d *Dispatcher) Dispatch(b Batch) Report {
	report := Report{Batch: b}

	d.logger.Info("syncing batch",
		slog.Int("deletions", len(b.Deleted)),
		slog.Int("creations", len(b.Created)),
		slog.Int("modifications", len(b.Modified)),
	)

	for _, path := range b.Deleted {
		target, err := d.TargetFor(path)
		if err != nil {
			d.fail(&report, "delete", path, err)
			continue
		}

		d.tree.Purge(target)
	}

	for _, path := range b.Created {
		d.sync(&report, "create", path)
	}

	for _, path := range b.Modified {
		// Stat follows links: a symlink recreated within one window arrives
		// as a modify and must still reach the mirror, which copies the link
		// itself.
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			report.Skipped = append(report.Skipped, path)
			continue
		}

		d.sync(&report, "modify", path)
	}

	return report
}

func (d *Dispatcher) sync(report *Report, op, path string) {
	target, err := d.TargetFor(path)
	if err != nil {
		d.fail(report, op, path, err)
		return
	}

	if err := d.tree.Sync(path, target); err != nil {
		d.fail(report, op, path, err)
	}
}

func (d *Dispatcher) fail(report *Report, op, path string, err error) {
	report.Failed++

	d.logger.Warn("sync failed",
		slog.String("op", op),
		slog.String("path", path),
		slog.String("error", err.Error()),
	)
}
