package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agenthands/actigraph/internal/config"
)

// Factory builds a provider's clients from configuration. The Embedder may
// be nil when the provider cannot embed; callers that need embeddings must
// check.
type Factory func(ctx context.Context, cfg config.LLMConfig) (Generator, Embedder, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

// Register makes a provider available under the given name. Providers call
// this from init; registering the same name twice panics.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	name = strings.ToLower(name)
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("llm: provider %q registered twice", name))
	}
	registry[name] = f
}

// New builds the clients for the configured provider.
func New(ctx context.Context, cfg config.LLMConfig) (Generator, Embedder, error) {
	mu.RLock()
	f, ok := registry[strings.ToLower(cfg.Provider)]
	mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("unsupported llm provider %q (available: %s)",
			cfg.Provider, strings.Join(Providers(), ", "))
	}
	return f(ctx, cfg)
}

// Providers lists the registered provider names, sorted.
func Providers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
