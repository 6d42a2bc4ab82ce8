package executor

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds an executor from config.
type Factory func(cfg Config) (Executor, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds an executor factory to the registry.
// Called by executor implementations in their init() functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves an executor factory by name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// IsRegistered checks if an executor type is registered.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// New creates an executor for cfg.Type. The returned executor honours
// cfg.Timeout.
func New(cfg Config) (Executor, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("executor type not specified")
	}

	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownExecutorError{
			Type:      cfg.Type,
			Available: List(),
		}
	}

	exec, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s executor: %w", cfg.Type, err)
	}
	return WithTimeout(exec, cfg.Timeout), nil
}

// List returns all registered executor names (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownExecutorError is returned when an unknown executor type is requested.
type UnknownExecutorError struct {
	Type      string
	Available []string
}

func (e *UnknownExecutorError) Error() string {
	return fmt.Sprintf("unknown executor type %q\nAvailable executors: %v\nHint: Check executor in sqlbuild.yaml or --executor", e.Type, e.Available)
}
