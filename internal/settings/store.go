// Package settings holds the user's feed query preferences in a YAML file
// and reloads them when the file changes.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/couchcryptid/quake-report/internal/domain"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Settings are the query preferences as stored on disk.
type Settings struct {
	MinMagnitude string `yaml:"min_magnitude" json:"min_magnitude"`
	OrderBy      string `yaml:"order_by" json:"order_by"`
	Limit        int    `yaml:"limit" json:"limit"`
}

// Defaults returns the preferences used when nothing is stored.
func Defaults() Settings {
	q := domain.DefaultQuery()
	return Settings{
		MinMagnitude: q.MinMagnitude,
		OrderBy:      string(q.OrderBy),
		Limit:        q.Limit,
	}
}

// Normalize fills empty fields with defaults, clamps the limit and rejects
// values the feed would not accept.
func (s Settings) Normalize() (Settings, error) {
	def := Defaults()

	s.MinMagnitude = strings.TrimSpace(s.MinMagnitude)
	if s.MinMagnitude == "" {
		s.MinMagnitude = def.MinMagnitude
	}
	if s.OrderBy == "" {
		s.OrderBy = def.OrderBy
	}
	order, err := domain.ParseOrderBy(s.OrderBy)
	if err != nil {
		return Settings{}, err
	}
	s.OrderBy = string(order)
	if s.Limit == 0 {
		s.Limit = def.Limit
	}
	s.Limit = domain.ClampLimit(s.Limit)

	if err := s.Query().Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Query converts the preferences into feed query parameters.
func (s Settings) Query() domain.Query {
	return domain.Query{
		MinMagnitude: s.MinMagnitude,
		OrderBy:      domain.OrderBy(s.OrderBy),
		Limit:        s.Limit,
	}
}

// Store reads a settings file and notifies subscribers when it changes.
type Store struct {
	path     string
	logger   *slog.Logger
	mu       sync.RWMutex
	current  Settings
	onChange []func(Settings)
}

// NewStore creates a Store and performs the initial load. A missing file
// yields the defaults.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	s := &Store{path: path, logger: logger}
	cur, err := s.load()
	if err != nil {
		return nil, err
	}
	s.current = cur
	return s, nil
}

// Current returns the latest settings.
func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// OnChange registers fn to run whenever the settings change.
func (s *Store) OnChange(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Reload re-reads the file. Subscribers run only if the values changed.
func (s *Store) Reload() (Settings, error) {
	next, err := s.load()
	if err != nil {
		return Settings{}, err
	}
	s.apply(next)
	return next, nil
}

// Save normalizes next, writes it to the file and applies it.
func (s *Store) Save(next Settings) (Settings, error) {
	next, err := next.Normalize()
	if err != nil {
		return Settings{}, err
	}
	data, err := yaml.Marshal(next)
	if err != nil {
		return Settings{}, fmt.Errorf("encode settings: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return Settings{}, err
	}
	s.apply(next)
	return next, nil
}

// Watch reloads the settings whenever the file is written, created or
// renamed into place. The parent directory is watched so editors that
// replace the file are picked up. Call stop to end watching.
func (s *Store) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("settings watcher: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("settings watcher add %s: %w", dir, err)
	}

	name := filepath.Clean(s.path)
	done := make(chan struct{})
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != name || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					continue
				}
				if _, err := s.Reload(); err != nil {
					s.logger.Warn("settings reload failed, keeping previous values", "path", s.path, "error", err)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("settings watcher error", "error", err)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

func (s *Store) apply(next Settings) {
	s.mu.Lock()
	if next == s.current {
		s.mu.Unlock()
		return
	}
	s.current = next
	callbacks := make([]func(Settings), len(s.onChange))
	copy(callbacks, s.onChange)
	s.mu.Unlock()

	s.logger.Info("settings changed", "min_magnitude", next.MinMagnitude, "order_by", next.OrderBy, "limit", next.Limit)
	for _, fn := range callbacks {
		fn(next)
	}
}

func (s *Store) load() (Settings, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings %s: %w", s.path, err)
	}

	var raw Settings
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", s.path, err)
	}
	out, err := raw.Normalize()
	if err != nil {
		return Settings{}, fmt.Errorf("invalid settings %s: %w", s.path, err)
	}
	return out, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
