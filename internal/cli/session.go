package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/synccore/internal/config"
	"github.com/iudanet/synccore/internal/data"
	"github.com/iudanet/synccore/internal/iocli"
	"github.com/iudanet/synccore/internal/metrics"
	"github.com/iudanet/synccore/internal/storage"
	"github.com/iudanet/synccore/internal/storage/boltdb"
	"github.com/iudanet/synccore/internal/sync"
	"github.com/iudanet/synccore/internal/validation"
)

// environment holds what every command needs before the store is opened
type environment struct {
	cfg        *config.Config
	logger     *slog.Logger
	io         iocli.IO
	out        *formatter
	passphrase string
}

// session is an opened, initialized local replica
type session struct {
	*environment
	store   *boltdb.Storage
	data    data.Service
	sync    sync.Service
	metrics *metrics.Metrics
}

// loadEnvironment reads the config file and applies flag overrides
func (o *RootOptions) loadEnvironment(cmd *cobra.Command) (*environment, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.DBPath != "" {
		cfg.DBPath = o.DBPath
	}

	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	if o.Verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	stdio := iocliStreams(cmd)

	return &environment{
		cfg:    cfg,
		logger: logger,
		io:     stdio,
		out:    &formatter{format: o.Format, io: stdio},
	}, nil
}

// openStore opens the store at path, sealed when the config asks for it
func (o *RootOptions) openStore(ctx context.Context, env *environment, path string) (*boltdb.Storage, error) {
	if !env.cfg.Sealed {
		return boltdb.New(ctx, path)
	}

	if env.passphrase == "" {
		passphrase, err := o.readPassphrase(env.io)
		if err != nil {
			return nil, fmt.Errorf("failed to get passphrase: %w", err)
		}
		env.passphrase = passphrase
	}
	return boltdb.NewSealed(ctx, path, env.passphrase)
}

// readPassphrase retrieves the passphrase with priority:
// 1. Environment variable SYNCCTL_PASSPHRASE
// 2. File given by --passphrase-file
// 3. Interactive prompt (fallback)
func (o *RootOptions) readPassphrase(stdio iocli.IO) (string, error) {
	if passphrase := os.Getenv(EnvPassphrase); passphrase != "" {
		return passphrase, validation.ValidatePassphrase(passphrase)
	}

	if o.PassphraseFile != "" {
		content, err := os.ReadFile(o.PassphraseFile)
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase file: %w", err)
		}
		// Убираем trailing newline/whitespace
		passphrase := strings.TrimSpace(string(content))
		return passphrase, validation.ValidatePassphrase(passphrase)
	}

	passphrase, err := stdio.ReadPassword("Passphrase: ")
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return passphrase, validation.ValidatePassphrase(passphrase)
}

// openSession opens the local replica and wires the services
func (o *RootOptions) openSession(cmd *cobra.Command) (*session, error) {
	ctx := cmd.Context()

	env, err := o.loadEnvironment(cmd)
	if err != nil {
		return nil, err
	}

	store, err := o.openStore(ctx, env, env.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", env.cfg.DBPath, err)
	}

	clock, err := data.LoadReplicaClock(ctx, store)
	if err != nil {
		_ = store.Close()
		if errors.Is(err, data.ErrReplicaNotInitialized) {
			return nil, fmt.Errorf("%w: run 'syncctl init' first", err)
		}
		return nil, err
	}

	res, err := env.cfg.Resolver()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	m := metrics.New()
	locks := storage.NewRecordLocker()
	return &session{
		environment: env,
		store:       store,
		metrics:     m,
		data:        data.NewService(store, store, clock, locks, env.logger),
		sync: sync.NewService(store, res, clock, env.logger,
			sync.WithLocker(locks),
			sync.WithWorkers(env.cfg.Workers),
			sync.WithMetrics(m)),
	}, nil
}

// Close writes the metrics textfile and closes the store
func (s *session) Close() {
	if s.cfg.MetricsFile != "" {
		if err := s.metrics.WriteTextfile(s.cfg.MetricsFile); err != nil {
			s.logger.Warn("Failed to write metrics", "path", s.cfg.MetricsFile, "error", err)
		}
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("failed to close database", "error", err)
	}
}

func iocliStreams(cmd *cobra.Command) iocli.IO {
	return iocli.NewStreams(cmd.InOrStdin(), cmd.OutOrStdout())
}
