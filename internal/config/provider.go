package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Provider supplies a validated configuration for one operation. Callers ask
// for a fresh Config on every run and never hold on to it.
type Provider interface {
	Load() (Config, error)
}

// FileProvider re-reads its file on every Load.
type FileProvider struct {
	path string
}

// NewFileProvider creates a provider for the TOML file at path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Load implements Provider.
func (p *FileProvider) Load() (Config, error) {
	return LoadFile(p.path)
}

// Path returns the file the provider reads.
func (p *FileProvider) Path() string {
	return p.path
}

// Static always returns the same, already finalized, configuration.
type Static struct {
	cfg Config
}

// NewStatic finalizes cfg and wraps it in a Provider.
func NewStatic(cfg Config) (*Static, error) {
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return &Static{cfg: cfg}, nil
}

// Load implements Provider.
func (s *Static) Load() (Config, error) {
	return s.cfg, nil
}

// WatchingProvider caches the parsed file and drops the cache whenever
// fsnotify reports activity on it. Failed loads are never cached.
type WatchingProvider struct {
	path    string
	watcher *fsnotify.Watcher

	mu     sync.RWMutex
	cached *Config

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWatchingProvider starts watching the directory that holds path. Editors
// that save by rename replace the file, so the directory is watched rather
// than the file itself.
func NewWatchingProvider(path string) (*WatchingProvider, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch config file: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch config directory: %w", err)
	}

	p := &WatchingProvider{
		path:    abs,
		watcher: watcher,
		done:    make(chan struct{}),
	}
	p.wg.Add(1)
	go p.watch()
	return p, nil
}

// Load implements Provider.
func (p *WatchingProvider) Load() (Config, error) {
	p.mu.RLock()
	if p.cached != nil {
		cfg := *p.cached
		p.mu.RUnlock()
		return cfg, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil {
		return *p.cached, nil
	}

	cfg, err := LoadFile(p.path)
	if err != nil {
		return Config{}, err
	}
	p.cached = &cfg
	return cfg, nil
}

// Invalidate drops the cached configuration.
func (p *WatchingProvider) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}

// Cached reports whether the next Load will be served from memory.
func (p *WatchingProvider) Cached() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cached != nil
}

// Close stops the watcher.
func (p *WatchingProvider) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.watcher.Close()
		p.wg.Wait()
	})
	return err
}

func (p *WatchingProvider) watch() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
				p.Invalidate()
			}
		case _, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			// Missed events are possible after a watcher error.
			p.Invalidate()
		}
	}
}
