package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/keytally/keytally/internal/capture"
	"github.com/keytally/keytally/internal/hook"
	"github.com/keytally/keytally/internal/logger"
)

// Execute implements the go-flags Commander interface for RunCommand.
// It starts the capture agent in the foreground until SIGINT/SIGTERM.
func (c *RunCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}

	env := cfg.Logging.Environment
	level := cfg.Logging.Level
	if c.globals != nil && c.globals.Verbose {
		env, level = "development", "debug"
	}
	log, err := logger.New(env, level)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	store, db, err := openStore(cfg)
	if err != nil {
		// The agent cannot run usefully without a working store.
		return err
	}
	defer db.Close()
	defer store.Close()

	tap := hook.NewEventTap()
	perm := hook.AXPermission{}
	policy := capture.NewPolicy(cfg.ExcludedSet(), hook.WorkspaceResolver{}, hook.SecureInput)

	session := capture.NewSession(tap, store, policy, perm, log, capture.Options{
		QueueSize:       cfg.Capture.QueueSize,
		RefreshInterval: time.Duration(cfg.Capture.StatsRefreshSeconds) * time.Second,
		Retention:       time.Duration(cfg.Retention.Days) * 24 * time.Hour,
		SweepInterval:   time.Duration(cfg.Retention.SweepIntervalHours) * time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := session.Start(ctx); err != nil {
		if errors.Is(err, capture.ErrPermissionDenied) {
			perm.Request()
			return fmt.Errorf("input monitoring permission not granted; grant it in System Settings and run again")
		}
		return fmt.Errorf("start capture: %w", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	s := <-sig
	log.Info("shutting down", zap.String("signal", s.String()))

	return session.Stop()
}
