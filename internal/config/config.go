package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/alexjbarnes/treesync/internal/mirror"
)

// Config holds all environment-based configuration for treesync. The
// source and target roots come from the command line and are set with
// SetRoots after Load.
type Config struct {
	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// SettleWindow is the quiet period after the last filesystem
	// notification before pending changes are synced.
	SettleWindow time.Duration `env:"SETTLE_WINDOW" envDefault:"500ms"`

	// QueueSize is how many settled batches may wait for the sync worker
	// before the watcher blocks on submission.
	QueueSize int `env:"QUEUE_SIZE" envDefault:"16"`

	// ModTimeWindow truncates modification times before comparing them.
	// Zero compares exactly. Useful when the target filesystem stores
	// coarser timestamps than the source.
	ModTimeWindow time.Duration `env:"MODTIME_WINDOW" envDefault:"0s"`

	Source string
	Target string
}

// warnInsecureEnvFile checks whether the .env file (if present) is
// writable by group or others.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o022 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.SettleWindow <= 0 {
		return fmt.Errorf("SETTLE_WINDOW must be positive, got %s", c.SettleWindow)
	}

	if c.QueueSize < 1 {
		return fmt.Errorf("QUEUE_SIZE must be at least 1, got %d", c.QueueSize)
	}

	if c.ModTimeWindow < 0 {
		return fmt.Errorf("MODTIME_WINDOW must not be negative, got %s", c.ModTimeWindow)
	}

	return nil
}

// SetRoots records the source and target directories, resolved to
// absolute paths. Path mapping between the trees is a prefix swap, which
// only works reliably with absolute, cleaned roots. Roots that are equal
// or nested either way are rejected.
func (c *Config) SetRoots(source, target string) error {
	absSource, err := filepath.Abs(source)
	if err != nil {
		return fmt.Errorf("resolving source dir to absolute path: %w", err)
	}

	absTarget, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("resolving target dir to absolute path: %w", err)
	}

	if err := mirror.CheckRoots(absSource, absTarget); err != nil {
		return err
	}

	c.Source = absSource
	c.Target = absTarget

	return nil
}
