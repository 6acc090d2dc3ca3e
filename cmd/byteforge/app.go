package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/byteforge/internal/cipher"
	"github.com/nao1215/byteforge/internal/config"
	"github.com/nao1215/byteforge/internal/ledger"
	"github.com/nao1215/byteforge/internal/log"
	"github.com/nao1215/byteforge/internal/scanapi"
	"github.com/nao1215/byteforge/internal/store"
)

// app holds the resources shared by commands that touch the database.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	store  *store.Store
}

// openApp loads and validates the configuration, then opens the logger and
// the encrypted store. The caller must Close the app.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	c, err := cipher.New(cfg.EncryptionKey)
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("failed to initialise cipher: %w", err)
	}

	s, err := store.Open(cfg.DBDir, c, store.DefaultOptions())
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &app{cfg: cfg, logger: logger, store: s}, nil
}

// Close releases the store and the log file.
func (a *app) Close() error {
	return errors.Join(a.store.Close(), a.logger.Close())
}

// executor builds the job ledger over the configured scan modules.
// recorder may be nil.
func (a *app) executor(recorder ledger.Recorder) *ledger.Ledger {
	api := scanapi.New(a.cfg, a.logger.Logger)
	opts := []ledger.Option{ledger.WithLogger(a.logger.Logger)}
	if recorder != nil {
		opts = append(opts, ledger.WithRecorder(recorder))
	}
	return ledger.New(a.store, api.Orchestrator(a.store), opts...)
}

// loadConfig builds the configuration from the file named by --config,
// the environment and the --verbose flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := persistentString(cmd, "config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if getVerboseFlag(cmd) {
		cfg.Verbose = true
	}
	return cfg, nil
}

// newLogger builds the process logger and installs it as the slog default.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*log.Logger, error) {
	logger, err := log.New(log.Options{
		Level:      cfg.LogLevel,
		Verbose:    cfg.Verbose,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   true,
		Console:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(logger.Logger)
	return logger, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// persistentString reads a string flag defined on the command or the root.
func persistentString(cmd *cobra.Command, name string) (string, error) {
	if v, err := cmd.Flags().GetString(name); err == nil {
		return v, nil
	}
	return cmd.Root().PersistentFlags().GetString(name)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// parseID parses a positive numeric identifier argument.
func parseID(what, arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, arg)
	}
	return id, nil
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
