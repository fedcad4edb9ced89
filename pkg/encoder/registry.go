package encoder

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Encoder)
)

// Register makes an encoder available under the given name.
// Registering a duplicate name or a nil encoder panics, matching the
// behavior expected of process-init-time registration.
func Register(name string, enc Encoder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if enc == nil {
		panic("encoder: Register encoder is nil")
	}
	if _, dup := registry[name]; dup {
		panic("encoder: Register called twice for encoder " + name)
	}
	registry[name] = enc
}

// Lookup resolves a registered encoder by name.
func Lookup(name string) (Encoder, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	enc, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("encoder: unknown encoder %q (registered: %v)", name, names())
	}
	return enc, nil
}

// names returns the registered encoder names sorted for stable error output.
// Caller must hold registryMu.
func names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
