package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const configFileName = "config.json"

// Manager keeps the on-disk config file and the in-memory copy in step.
// Edits made by other programs are picked up by Watch.
type Manager struct {
	path     string
	log      *logrus.Entry
	debounce time.Duration

	mu       sync.RWMutex
	cfg      Config
	written  []byte
	onChange func(Config)
	watching bool
}

type managerOptions struct {
	configPath    string
	initialConfig *Config
	debounce      time.Duration
	logger        *logrus.Logger
}

type ManagerOption func(*managerOptions)

// NewManager loads the config file, writing the defaults first when the
// file does not exist yet. Fields missing from the file keep their defaults.
func NewManager(opts ...ManagerOption) (*Manager, error) {
	options := managerOptions{debounce: 300 * time.Millisecond}
	for _, opt := range opts {
		opt(&options)
	}

	path := options.configPath
	if path == "" {
		var err error
		if path, err = defaultConfigPath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	logger := options.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	m := &Manager{
		path:     path,
		log:      logger.WithField("component", "config"),
		debounce: options.debounce,
	}

	cfg, err := m.readFile()
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = *DefaultConfigWithRoot(filepath.Dir(path))
		if options.initialConfig != nil {
			cfg = *options.initialConfig
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if err := m.write(cfg); err != nil {
			return nil, fmt.Errorf("write initial config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("load config: %w", err)
	default:
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	m.cfg = cfg
	return m, nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Path() string {
	return m.path
}

// Update validates cfg, persists it and applies it. Saving an identical
// config is a no-op.
func (m *Manager) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(changedKeys(m.Get(), cfg)) == 0 {
		return nil
	}
	if err := m.write(cfg); err != nil {
		return err
	}
	m.apply(cfg)
	return nil
}

// Set changes a single field addressed by its JSON key. value is decoded as
// JSON when it parses, otherwise it is taken as a plain string.
func (m *Manager) Set(key, value string) error {
	cur, err := json.Marshal(m.Get())
	if err != nil {
		return err
	}
	if !gjson.GetBytes(cur, gjson.Escape(key)).Exists() {
		return fmt.Errorf("unknown config key %q", key)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(cur, &fields); err != nil {
		return err
	}
	raw := json.RawMessage(value)
	if !json.Valid(raw) {
		if raw, err = json.Marshal(value); err != nil {
			return err
		}
	}
	fields[key] = raw

	merged, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	var next Config
	if err := json.Unmarshal(merged, &next); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return m.Update(next)
}

// Watch calls onChange whenever the file is edited outside this manager.
// Writes made through Update are not reported back. Calling Watch again
// only replaces the callback.
func (m *Manager) Watch(ctx context.Context, onChange func(Config)) error {
	m.mu.Lock()
	m.onChange = onChange
	if m.watching {
		m.mu.Unlock()
		return nil
	}
	m.watching = true
	m.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		// Editors often replace the file, so watch the directory.
		if err = watcher.Add(filepath.Dir(m.path)); err != nil {
			watcher.Close()
			err = fmt.Errorf("watch config dir: %w", err)
		}
	}
	if err != nil {
		m.mu.Lock()
		m.watching = false
		m.mu.Unlock()
		return err
	}
	go m.watch(ctx, watcher)
	return nil
}

func (m *Manager) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	timer := time.NewTimer(m.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != filepath.Clean(m.path) {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			timer.Reset(m.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.log.WithError(err).Warn("config watcher error")
		case <-timer.C:
			m.reload()
		}
	}
}

func (m *Manager) reload() {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		// Deleted: put the current config back.
		if err := m.write(m.Get()); err != nil {
			m.log.WithError(err).Error("config recreate failed")
		}
		return
	}
	if err != nil {
		m.log.WithError(err).Error("config reload failed")
		return
	}

	m.mu.RLock()
	own := bytes.Equal(data, m.written)
	m.mu.RUnlock()
	if own {
		return
	}

	cfg, err := m.decode(data)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		m.log.WithError(err).Warn("ignoring invalid config edit")
		return
	}
	if len(changedKeys(m.Get(), cfg)) == 0 {
		return
	}
	m.apply(cfg)
}

func (m *Manager) apply(cfg Config) {
	m.mu.Lock()
	prev := m.cfg
	m.cfg = cfg
	cb := m.onChange
	m.mu.Unlock()

	m.log.WithField("keys", strings.Join(changedKeys(prev, cfg), ",")).Info("config changed")
	if cb != nil {
		cb(cfg)
	}
}

func (m *Manager) readFile() (Config, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return Config{}, err
	}
	return m.decode(data)
}

// decode lays the file contents over the defaults.
func (m *Manager) decode(data []byte) (Config, error) {
	cfg := DefaultConfigWithRoot(filepath.Dir(m.path))
	if err := json.Unmarshal(data, cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", m.path, err)
	}
	return *cfg, nil
}

// write replaces the file atomically and remembers what was written so
// the watcher can skip the resulting event.
func (m *Manager) write(cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	m.written = data
	return nil
}

// changedKeys lists the JSON keys whose values differ between a and b.
func changedKeys(a, b Config) []string {
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	after := gjson.ParseBytes(jb)

	var keys []string
	gjson.ParseBytes(ja).ForEach(func(k, v gjson.Result) bool {
		if after.Get(gjson.Escape(k.String())).Raw != v.Raw {
			keys = append(keys, k.String())
		}
		return true
	})
	sort.Strings(keys)
	return keys
}

func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		if dir, err = os.Getwd(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "CortexDash", configFileName), nil
}

func WithConfigDir(dir string) ManagerOption {
	return func(o *managerOptions) {
		if dir != "" {
			o.configPath = filepath.Join(dir, configFileName)
		}
	}
}

func WithConfigPath(path string) ManagerOption {
	return func(o *managerOptions) {
		if path != "" {
			o.configPath = path
		}
	}
}

func WithDebounce(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithInitialConfig seeds a config file that does not exist yet.
func WithInitialConfig(cfg *Config) ManagerOption {
	return func(o *managerOptions) {
		o.initialConfig = cfg
	}
}

func WithLogger(logger *logrus.Logger) ManagerOption {
	return func(o *managerOptions) {
		o.logger = logger
	}
}
