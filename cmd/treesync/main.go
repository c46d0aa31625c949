package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/alexjbarnes/treesync/internal/config"
	"github.com/alexjbarnes/treesync/internal/logging"
	"github.com/alexjbarnes/treesync/internal/replicator"
)

var Version = "dev"

var errUsage = errors.New("usage: treesync <sourceDir> <targetDir>")

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}

		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	if len(args) != 2 {
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.SetRoots(args[0], args[1]); err != nil {
		return err
	}

	logger := logging.NewLoggerWithOutput(cfg.Environment, stderr)
	logger.Info("treesync starting",
		slog.String("version", Version),
		slog.String("source", cfg.Source),
		slog.String("target", cfg.Target),
		slog.Duration("settle_window", cfg.SettleWindow),
	)

	r, err := replicator.New(replicator.Options{
		Source:        cfg.Source,
		Target:        cfg.Target,
		SettleWindow:  cfg.SettleWindow,
		QueueSize:     cfg.QueueSize,
		ModTimeWindow: cfg.ModTimeWindow,
		OnReport: func(rep replicator.Report) {
			if rep.Failed > 0 {
				logger.Warn("sync pass finished with failures", slog.Int("failed", rep.Failed))
			}
		},
	}, logger)
	if err != nil {
		return err
	}

	if err := r.Start(); err != nil {
		return fmt.Errorf("starting replicator: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := replicate(ctx, r, logger); err != nil {
		return err
	}

	logger.Info("treesync stopped")

	return nil
}

// replicate runs r until ctx is cancelled or the source root goes away.
// Run is not handed ctx: cancellation closes the watcher through Stop
// instead, which lets Run flush what is pending and drain the sync queue
// before returning.
func replicate(ctx context.Context, r *replicator.Replicator, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		return r.Run(context.Background())
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			logger.Info("shutting down")
			return r.Stop()
		case <-done:
			return nil
		}
	})

	return g.Wait()
}
