package adapter

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Adapter)
)

// Register makes an adapter available under the given name.
// Registering a duplicate name or a nil adapter panics, matching the
// behavior expected of process-init-time registration.
func Register(name string, a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if a == nil {
		panic("adapter: Register adapter is nil")
	}
	if _, dup := registry[name]; dup {
		panic("adapter: Register called twice for adapter " + name)
	}
	registry[name] = a
}

// Lookup resolves a registered adapter by name.
func Lookup(name string) (Adapter, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("adapter: unknown adapter %q (registered: %v)", name, names())
	}
	return a, nil
}

// names returns the registered adapter names sorted for stable error output.
// Caller must hold registryMu.
func names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
