package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dyike/CortexDash/config"
	"github.com/dyike/CortexDash/internal/logging"
	"github.com/dyike/CortexDash/internal/session"
	"github.com/dyike/CortexDash/internal/storage"
	"github.com/dyike/CortexDash/internal/storage/sqlite"
)

type globalFlags struct {
	configPath string
	serverURL  string
	debug      bool
}

// runtime holds what every command shares: the effective config, its
// manager, the logger and the optional history store.
type runtime struct {
	cfg      config.Config
	manager  *config.Manager
	logger   *logrus.Logger
	logFile  *os.File
	history  *sqlite.Store
	recorder *storage.Recorder
}

// loadRuntime reads the config file (creating it with defaults when
// missing) and layers environment and flag overrides on top.
func loadRuntime(flags *globalFlags, logOut io.Writer) (*runtime, error) {
	logger := logging.New("info", flags.debug)
	logger.SetOutput(logOut)

	manager, err := config.NewManager(
		config.WithConfigPath(flags.configPath),
		config.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	cfg := manager.Get()
	config.LoadDotEnv()
	cfg.LoadEnv()
	if flags.serverURL != "" {
		cfg.ServerURL = strings.TrimSpace(flags.serverURL)
	}
	if flags.debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil && !cfg.Debug {
		logger.SetLevel(lvl)
	}

	return &runtime{cfg: cfg, manager: manager, logger: logger}, nil
}

// logToFile redirects logging to the data directory so it does not draw
// over the dashboard.
func (rt *runtime) logToFile() error {
	path := filepath.Join(rt.cfg.DataDir, "cortexdash.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	rt.logFile = f
	rt.logger.SetOutput(f)
	return nil
}

func (rt *runtime) openHistory() (*sqlite.Store, error) {
	if rt.history != nil {
		return rt.history, nil
	}
	store, err := sqlite.Open(rt.cfg.HistoryPath())
	if err != nil {
		return nil, err
	}
	rt.history = store
	return store, nil
}

// newSession builds a session recording into the history store when it is
// enabled.
func (rt *runtime) newSession(opts ...session.Option) (*session.Session, error) {
	all := []session.Option{
		session.WithLogger(rt.logger),
		session.WithConfigManager(rt.manager),
	}
	if rt.cfg.HistoryEnabled {
		store, err := rt.openHistory()
		if err != nil {
			rt.logger.WithError(err).Warn("history disabled")
		} else {
			rt.recorder = storage.NewRecorder(store, rt.logger)
			all = append(all, session.WithHistory(rt.recorder))
		}
	}
	return session.New(rt.cfg, append(all, opts...)...)
}

// startSession starts sess and waits up to wait for the first connection.
func (rt *runtime) startSession(ctx context.Context, sess *session.Session, wait time.Duration) error {
	if err := sess.Start(ctx); err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	if err := sess.WaitConnected(waitCtx); err != nil {
		return fmt.Errorf("connect to %s: %w", rt.cfg.ServerURL, err)
	}
	return nil
}

func (rt *runtime) Close() {
	if rt.recorder != nil {
		rt.recorder.Close()
	}
	if rt.history != nil {
		_ = rt.history.Close()
	}
	if rt.logFile != nil {
		_ = rt.logFile.Close()
	}
}
