package memory

import (
	"maps"
	"sync"

	"github.com/custodia-labs/ragline/internal/adapters/driven/config/values"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps configuration in process memory. It backs tests and
// runs where no config file can be written; nothing survives the process.
type ConfigStore struct {
	mu     sync.RWMutex
	seed   map[string]any
	values map[string]any
}

// NewConfigStore creates a store holding a copy of seed. Load restores
// the seed, discarding later writes.
func NewConfigStore(seed ...map[string]any) *ConfigStore {
	s := &ConfigStore{seed: make(map[string]any)}
	for _, m := range seed {
		maps.Copy(s.seed, m)
	}
	s.values = maps.Clone(s.seed)
	return s
}

// Get retrieves a configuration value by key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	return val, ok
}

func (s *ConfigStore) GetString(key string) string {
	val, _ := s.Get(key)
	return values.String(val)
}

func (s *ConfigStore) GetInt(key string) int {
	val, _ := s.Get(key)
	return values.Int(val)
}

func (s *ConfigStore) GetBool(key string) bool {
	val, _ := s.Get(key)
	return values.Bool(val)
}

func (s *ConfigStore) GetFloat(key string) float64 {
	val, _ := s.Get(key)
	return values.Float(val)
}

// Set stores a configuration value.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Save is a no-op.
func (s *ConfigStore) Save() error {
	return nil
}

// Load restores the seed values.
func (s *ConfigStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = maps.Clone(s.seed)
	return nil
}

// Path returns ":memory:".
func (s *ConfigStore) Path() string {
	return ":memory:"
}
