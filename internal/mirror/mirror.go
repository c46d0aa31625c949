// Package mirror makes a target filesystem entry equal to a source entry,
// one way. Files are compared by size and modification time only; content
// is never hashed and permissions are not preserved beyond keeping the
// target writable by its owner.
package mirror

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// dirPerm is the permission mode for directories created in the target.
	dirPerm = fs.FileMode(0o755)

	// tempPattern names the temp files written next to their destination
	// before being renamed into place.
	tempPattern = ".treesync-*.tmp"

	copyBufferSize = 256 * 1024
)

// Options tunes the comparison used to decide whether an entry needs
// copying.
type Options struct {
	// ModTimeWindow truncates both modification times before comparing.
	// Zero compares exactly.
	ModTimeWindow time.Duration
}

// Tree mirrors source entries onto target entries and purges target
// subtrees. It is safe for use by one goroutine at a time; the replicator
// only ever calls it from its sync worker.
type Tree struct {
	logger        *slog.Logger
	modTimeWindow time.Duration
	bufPool       sync.Pool
}

// New creates a Tree that logs per-entry failures to logger.
func New(opts Options, logger *slog.Logger) *Tree {
	return &Tree{
		logger:        logger,
		modTimeWindow: opts.ModTimeWindow,
		bufPool: sync.Pool{
			New: func() any {
				b := make([]byte, copyBufferSize)
				return &b
			},
		},
	}
}

// Sync makes target equal to source. Directories are mirrored
// recursively: missing target directories are created, target children
// absent from the source are purged and every source child is synced.
// Regular files are copied only when the target is missing or differs in
// size or modification time. Symlinks are recreated as symlinks and never
// followed. Running Sync twice with no source change in between writes
// nothing the second time.
//
// A missing source yields an error wrapping fs.ErrNotExist. Failures of
// individual children do not stop the walk; they are joined into the
// returned error.
func (t *Tree) Sync(source, target string) error {
	info, err := os.Lstat(source)
	if err != nil {
		return fmt.Errorf("stat source %s: %w", source, err)
	}

	switch {
	case info.IsDir():
		return t.syncDir(source, target)
	case info.Mode()&fs.ModeSymlink != 0:
		return t.syncSymlink(source, target, info)
	case info.Mode().IsRegular():
		return t.syncFile(source, target, info)
	default:
		t.logger.Debug("skipping special file",
			slog.String("path", source),
			slog.String("mode", info.Mode().String()),
		)

		return nil
	}
}

// Purge deletes path and everything beneath it, children first. Symlinks
// are removed, never followed. Failures are logged and the walk carries
// on with the remaining entries. A missing path is a no-op.
func (t *Tree) Purge(path string) {
	info, err := os.Lstat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			t.logger.Warn("stat before delete failed", slog.String("path", path), slog.String("error", err.Error()))
		}

		return
	}

	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			t.logger.Warn("listing directory for delete failed", slog.String("path", path), slog.String("error", err.Error()))
		}

		for _, e := range entries {
			t.Purge(filepath.Join(path, e.Name()))
		}
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		t.logger.Warn("failed to delete", slog.String("path", path), slog.String("error", err.Error()))
	}
}

func (t *Tree) syncDir(source, target string) error {
	tinfo, err := os.Lstat(target)

	switch {
	case err == nil && !tinfo.IsDir():
		// A file or symlink sits where the directory should be.
		t.Purge(target)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("stat target %s: %w", target, err)
	}

	if err := os.MkdirAll(target, dirPerm); err != nil {
		return fmt.Errorf("creating directory %s: %w", target, err)
	}

	sourceEntries, err := os.ReadDir(source)
	if err != nil {
		return fmt.Errorf("listing source %s: %w", source, err)
	}

	targetEntries, err := os.ReadDir(target)
	if err != nil {
		return fmt.Errorf("listing target %s: %w", target, err)
	}

	names := make(map[string]struct{}, len(sourceEntries))
	for _, e := range sourceEntries {
		names[e.Name()] = struct{}{}
	}

	for _, e := range targetEntries {
		if _, ok := names[e.Name()]; !ok {
			t.Purge(filepath.Join(target, e.Name()))
		}
	}

	var errs []error

	for _, e := range sourceEntries {
		if err := t.Sync(filepath.Join(source, e.Name()), filepath.Join(target, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (t *Tree) syncFile(source, target string, info fs.FileInfo) error {
	tinfo, err := os.Lstat(target)

	switch {
	case err == nil && tinfo.Mode().IsRegular():
		if t.upToDate(info, tinfo) {
			return nil
		}
	case err == nil && tinfo.IsDir():
		// Rename cannot replace a directory.
		t.Purge(target)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("stat target %s: %w", target, err)
	}

	if err := t.copyFile(source, target); err != nil {
		return err
	}

	t.logger.Debug("copied", slog.String("path", target))

	return nil
}

// copyFile writes source into a temp file beside target, stamps the
// source modification time on it and renames it into place, so target is
// never observed half written.
func (t *Tree) copyFile(source, target string) error {
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("opening source file %s: %w", source, err)
	}
	defer in.Close()

	// Stat the open handle so the stamped mtime matches the bytes copied.
	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source file %s: %w", source, err)
	}

	out, err := os.CreateTemp(filepath.Dir(target), tempPattern)
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", target, err)
	}
	defer out.Close()

	tempPath := out.Name()
	defer func() {
		if tempPath != "" {
			os.Remove(tempPath)
		}
	}()

	bufPtr := t.bufPool.Get().(*[]byte)
	defer t.bufPool.Put(bufPtr)

	buf := *bufPtr
	if _, err := io.CopyBuffer(out, in, buf[:cap(buf)]); err != nil {
		return fmt.Errorf("copying %s to %s: %w", source, tempPath, err)
	}

	if err := out.Chmod(info.Mode().Perm() | 0o200); err != nil {
		return fmt.Errorf("setting mode on %s: %w", tempPath, err)
	}

	// Close before Chtimes: flushing can bump the mtime.
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tempPath, err)
	}

	mtime := info.ModTime()
	if err := os.Chtimes(tempPath, mtime, mtime); err != nil {
		return fmt.Errorf("setting mtime on %s: %w", tempPath, err)
	}

	if err := os.Rename(tempPath, target); err != nil {
		return fmt.Errorf("renaming into %s: %w", target, err)
	}

	tempPath = ""

	return nil
}

func (t *Tree) syncSymlink(source, target string, info fs.FileInfo) error {
	link, err := os.Readlink(source)
	if err != nil {
		return fmt.Errorf("reading symlink %s: %w", source, err)
	}

	tinfo, err := os.Lstat(target)

	switch {
	case err == nil && tinfo.Mode()&fs.ModeSymlink != 0:
		if current, rerr := os.Readlink(target); rerr == nil && current == link {
			if !canStampSymlinks || t.upToDate(info, tinfo) {
				return nil
			}
		}
	case err == nil && tinfo.IsDir():
		t.Purge(target)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("stat target %s: %w", target, err)
	}

	// os.CreateTemp only hands out a unique name here; the placeholder
	// file is removed so the symlink can take its place.
	f, err := os.CreateTemp(filepath.Dir(target), tempPattern)
	if err != nil {
		return fmt.Errorf("creating temp name for %s: %w", target, err)
	}

	tempPath := f.Name()
	f.Close()
	os.Remove(tempPath)

	if err := os.Symlink(link, tempPath); err != nil {
		return fmt.Errorf("creating symlink %s -> %s: %w", target, link, err)
	}

	if canStampSymlinks {
		if err := stampSymlink(tempPath, info.ModTime()); err != nil {
			t.logger.Debug("setting symlink mtime failed", slog.String("path", target), slog.String("error", err.Error()))
		}
	}

	if err := os.Rename(tempPath, target); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming symlink into %s: %w", target, err)
	}

	t.logger.Debug("linked", slog.String("path", target), slog.String("link", link))

	return nil
}

func (t *Tree) upToDate(source, target fs.FileInfo) bool {
	if source.Size() != target.Size() {
		return false
	}

	sm, tm := source.ModTime(), target.ModTime()
	if t.modTimeWindow > 0 {
		sm = sm.Truncate(t.modTimeWindow)
		tm = tm.Truncate(t.modTimeWindow)
	}

	return sm.Equal(tm)
}
