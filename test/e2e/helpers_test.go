package e2e_test

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexjbarnes/treesync/internal/config"
	"github.com/alexjbarnes/treesync/internal/replicator"
)

// harness holds the full stack: configuration loaded from the
// environment, a replicator with the default mirror and the two trees.
type harness struct {
	Source string
	Target string
	Config *config.Config

	stop  context.CancelFunc
	errCh chan error
}

// newHarness seeds a source tree, loads config the way the CLI does and
// starts replicating into a fresh target with a short settle window.
func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithSettle(t, "50ms")
}

func newHarnessWithSettle(t *testing.T, settle string) *harness {
	t.Helper()

	// Keep a stray .env in the working directory out of the test.
	t.Chdir(t.TempDir())
	t.Setenv("SETTLE_WINDOW", settle)

	src, dst := t.TempDir(), t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "notes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes", "hello.md"), []byte("# Hello\nThis is a test note."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "readme.md"), []byte("# Readme"), 0o644))

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NoError(t, cfg.SetRoots(src, dst))

	r, err := replicator.New(replicator.Options{
		Source:        cfg.Source,
		Target:        cfg.Target,
		SettleWindow:  cfg.SettleWindow,
		QueueSize:     cfg.QueueSize,
		ModTimeWindow: cfg.ModTimeWindow,
	}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	require.NoError(t, r.Start())

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		Source: r.Source(),
		Target: cfg.Target,
		Config: cfg,
		stop:   cancel,
		errCh:  make(chan error, 1),
	}

	go func() {
		h.errCh <- r.Run(ctx)
	}()

	t.Cleanup(func() { h.shutdown(t) })

	return h
}

// shutdown cancels the run and waits for the final flush. Safe to call
// more than once.
func (h *harness) shutdown(t *testing.T) {
	t.Helper()

	h.stop()

	select {
	case err, ok := <-h.errCh:
		if ok {
			require.NoError(t, err)
			close(h.errCh)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("replicator did not shut down")
	}
}

// waitForEvents gives fsnotify time to deliver what has happened so far.
func (h *harness) waitForEvents() {
	time.Sleep(100 * time.Millisecond)
}

func (h *harness) write(t *testing.T, rel, content string) {
	t.Helper()

	path := filepath.Join(h.Source, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// entry is what a tree comparison looks at for one path.
type entry struct {
	dir     bool
	link    string
	content string
}

// snapshot describes every entry under root by relative path.
func snapshot(t *testing.T, root string) map[string]entry {
	t.Helper()

	out := make(map[string]entry)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return err
		}

		switch {
		case d.IsDir():
			out[rel] = entry{dir: true}
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}

			out[rel] = entry{link: link}
		default:
			b, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			out[rel] = entry{content: string(b)}
		}

		return nil
	})
	require.NoError(t, err)

	return out
}

// waitForMirror polls until target matches source entry for entry.
func (h *harness) waitForMirror(t *testing.T) {
	t.Helper()

	var src, dst map[string]entry

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		src, dst = snapshot(t, h.Source), snapshot(t, h.Target)
		if equalTrees(src, dst) {
			return
		}

		time.Sleep(25 * time.Millisecond)
	}

	require.Equal(t, src, dst, "target never converged on source")
}

func equalTrees(a, b map[string]entry) bool {
	if len(a) != len(b) {
		return false
	}

	for k, v := range a {
		if b[k] != v {
			return false
		}
	}

	return true
}
