package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/applymytech/openElara-sub000/internal/logging"
	"github.com/applymytech/openElara-sub000/internal/perception"
)

// ProviderStore holds custom provider definitions loaded from a JSON file
// keyed by display name. Lookups are safe for concurrent use; Watch keeps
// the store current when the file changes on disk.
type ProviderStore struct {
	path string

	mu   sync.RWMutex
	apis map[string]perception.GenericConfig
}

// providerFile is the on-disk shape: a "customApis" object keyed by
// display name.
type providerFile struct {
	CustomAPIs map[string]perception.GenericConfig `json:"customApis"`
}

// LoadProviderStore reads the provider file. A missing file yields an
// empty store so a fresh install works without one.
func LoadProviderStore(path string) (*ProviderStore, error) {
	s := &ProviderStore{
		path: path,
		apis: map[string]perception.GenericConfig{},
	}
	if err := s.reload(); err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	return s, nil
}

// Lookup returns the stored configuration for a provider display name.
func (s *ProviderStore) Lookup(name string) (perception.GenericConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.apis[name]
	return cfg, ok
}

// Names returns the stored provider display names.
func (s *ProviderStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.apis))
	for name := range s.apis {
		names = append(names, name)
	}
	return names
}

func (s *ProviderStore) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var file providerFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse provider store: %w", err)
	}

	apis := make(map[string]perception.GenericConfig, len(file.CustomAPIs))
	for name, cfg := range file.CustomAPIs {
		if cfg.Name == "" {
			cfg.Name = name
		}
		apis[name] = cfg
	}

	s.mu.Lock()
	s.apis = apis
	s.mu.Unlock()
	return nil
}

// Watch reloads the store whenever the provider file changes. It blocks
// until done is closed, so callers run it in a goroutine.
func (s *ProviderStore) Watch(done <-chan struct{}) error {
	log := logging.Get(logging.CategoryConfig)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory; editors replace files rather than writing
	// in place, which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to watch provider store: %w", err)
	}

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.reload(); err != nil {
				log.Errorf("provider store reload failed: %v", err)
				continue
			}
			log.Infof("provider store reloaded from %s", s.path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("provider store watcher: %v", err)
		}
	}
}
