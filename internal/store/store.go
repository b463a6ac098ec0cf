// Package store persists the AppConfig in a TOML, JSON or YAML file.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/stigoleg/nudge/internal/clock"
	"github.com/stigoleg/nudge/internal/config"
)

// Format is a config file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the encoding from the file extension. Unknown extensions
// use TOML.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "nudge", "config.toml"), nil
}

// Options configures Open.
type Options struct {
	Clock  clock.Clock
	Logger *zap.Logger
}

// Store is the file-backed configuration. All methods are safe for
// concurrent use.
type Store struct {
	path   string
	format Format
	clock  clock.Clock
	logger *zap.Logger

	mu  sync.Mutex
	cfg config.AppConfig

	// writeMu serializes file writes and change notifications.
	writeMu  sync.Mutex
	obsMu    sync.Mutex
	onChange func(config.AppConfig)

	watchMu sync.Mutex
	watch   *watch
}

// Open loads path, falling back to defaults when the file does not exist yet.
// Nothing is written until the first change.
func Open(path string, opts Options) (*Store, error) {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Store{
		path:   path,
		format: FormatFor(path),
		clock:  opts.Clock,
		logger: opts.Logger.Named("store"),
	}
	cfg, err := s.load()
	if err != nil {
		return nil, err
	}
	s.cfg = cfg
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Config returns the current configuration.
func (s *Store) Config() config.AppConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// OnChange registers the callback invoked after every successful change,
// including reloads of external edits. It replaces any previous callback.
func (s *Store) OnChange(fn func(config.AppConfig)) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.onChange = fn
}

// SetConfig merges p, stamps LastModified and persists the result.
func (s *Store) SetConfig(p config.Partial) (config.AppConfig, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	next := s.cfg.Apply(p)
	s.mu.Unlock()

	if err := next.Validate(); err != nil {
		return s.Config(), err
	}
	next.LastModified = s.clock.Now().UnixMilli()

	if err := s.write(next); err != nil {
		return s.Config(), err
	}

	s.mu.Lock()
	s.cfg = next
	s.mu.Unlock()

	s.logger.Debug("config saved",
		zap.Bool("enabled", next.Enabled),
		zap.Int("duration_minutes", next.DurationMinutes),
	)
	s.notify(next)
	return next, nil
}

// Get returns a single field by key.
func (s *Store) Get(key string) (any, error) {
	cfg := s.Config()
	switch key {
	case config.KeyEnabled:
		return cfg.Enabled, nil
	case config.KeyDurationMinutes:
		return cfg.DurationMinutes, nil
	case config.KeyLastModified:
		return cfg.LastModified, nil
	default:
		return nil, &config.Error{Key: key, Msg: "unknown key"}
	}
}

// Set writes a single field by key. LastModified is read-only.
func (s *Store) Set(key string, value any) error {
	var p config.Partial
	switch key {
	case config.KeyEnabled:
		b, ok := value.(bool)
		if !ok {
			return &config.Error{Key: key, Msg: fmt.Sprintf("expected bool, got %T", value)}
		}
		p.Enabled = &b
	case config.KeyDurationMinutes:
		n, err := toInt(value)
		if err != nil {
			return &config.Error{Key: key, Err: err}
		}
		p.DurationMinutes = &n
	case config.KeyLastModified:
		return &config.Error{Key: key, Msg: "read-only"}
	default:
		return &config.Error{Key: key, Msg: "unknown key"}
	}
	_, err := s.SetConfig(p)
	return err
}

func toInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("expected whole number, got %v", v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		return int(n), err
	default:
		return 0, fmt.Errorf("expected integer, got %T", value)
	}
}

// Reload re-reads the file and reports whether the configuration changed.
func (s *Store) Reload() (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cfg, err := s.load()
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	changed := cfg != s.cfg
	s.cfg = cfg
	s.mu.Unlock()

	if changed {
		s.logger.Info("config reloaded", zap.String("path", s.path))
		s.notify(cfg)
	}
	return changed, nil
}

// Close stops watching.
func (s *Store) Close() error {
	s.watchMu.Lock()
	w := s.watch
	s.watch = nil
	s.watchMu.Unlock()
	if w == nil {
		return nil
	}
	return w.close()
}

func (s *Store) notify(cfg config.AppConfig) {
	s.obsMu.Lock()
	fn := s.onChange
	s.obsMu.Unlock()
	if fn != nil {
		fn(cfg)
	}
}

func (s *Store) load() (config.AppConfig, error) {
	cfg := config.Default()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	if err := decode(s.format, data, &cfg); err != nil {
		return config.Default(), &config.Error{Msg: "decode " + s.path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return config.Default(), err
	}
	return cfg, nil
}

func decode(format Format, data []byte, cfg *config.AppConfig) error {
	switch format {
	case FormatJSON:
		return json.Unmarshal(data, cfg)
	case FormatYAML:
		return yaml.Unmarshal(data, cfg)
	default:
		_, err := toml.Decode(string(data), cfg)
		return err
	}
}

func encode(format Format, cfg config.AppConfig) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case FormatYAML:
		return yaml.Marshal(cfg)
	default:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

// write replaces the file atomically through a temp file in the same directory.
func (s *Store) write(cfg config.AppConfig) error {
	data, err := encode(s.format, cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
