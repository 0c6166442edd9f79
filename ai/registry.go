package ai

import (
	"fmt"
	"sync"

	"github.com/taskbridge/agentloop/core"
)

// ProviderFactory is implemented by each concrete provider package
// (ai/providers/openai, anthropic, gemini, bedrock, mock). A provider
// package registers its Factory against the package-level registry from
// its own init(), so importing a provider package for its side effects is
// enough to make it available to NewClient.
type ProviderFactory interface {
	Name() string
	Description() string
	Priority() int
	Create(config *AIConfig) core.AIClient
	DetectEnvironment() (priority int, available bool)
}

// ProviderRegistry holds every registered ProviderFactory, keyed by name.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]ProviderFactory
}

var registry = &ProviderRegistry{providers: make(map[string]ProviderFactory)}

// Register adds f to the global registry, returning an error if its name
// is already taken.
func Register(f ProviderFactory) error {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.providers[f.Name()]; exists {
		return fmt.Errorf("ai: provider %q already registered", f.Name())
	}
	registry.providers[f.Name()] = f
	return nil
}

// MustRegister is Register, panicking on error. Provider packages call
// this from init(): a duplicate registration there is a build-time
// programming error, not a runtime condition worth recovering from.
func MustRegister(f ProviderFactory) {
	if err := Register(f); err != nil {
		panic(err)
	}
}

// NewClient builds a core.AIClient from the registered providers.
//
// With an explicit, non-empty WithProvider option (and anything other
// than ProviderAuto) it looks that provider up by name. Otherwise it scans
// every registered provider's DetectEnvironment and picks the
// highest-priority one reporting itself available — this is what lets a
// deployment switch providers purely by setting an API key env var,
// without touching code.
func NewClient(opts ...AIOption) (core.AIClient, error) {
	config := &AIConfig{}
	for _, opt := range opts {
		opt(config)
	}

	registry.mu.RLock()
	defer registry.mu.RUnlock()

	if config.Provider != "" && config.Provider != string(ProviderAuto) {
		factory, ok := registry.providers[config.Provider]
		if !ok {
			return nil, fmt.Errorf("ai: provider '%s' not registered", config.Provider)
		}
		return factory.Create(config), nil
	}

	name, err := detectBestProvider(config)
	if err != nil {
		return nil, fmt.Errorf("ai: no AI provider available: set a provider API key or pass WithProvider explicitly")
	}
	return registry.providers[name].Create(config), nil
}

// detectBestProvider returns the registry key of the highest-priority
// provider whose DetectEnvironment reports it available. The caller must
// hold registry.mu.
func detectBestProvider(config *AIConfig) (string, error) {
	best := ""
	bestPriority := 0
	for name, factory := range registry.providers {
		priority, available := factory.DetectEnvironment()
		if available && (best == "" || priority > bestPriority) {
			best, bestPriority = name, priority
		}
	}
	if best == "" {
		return "", fmt.Errorf("no provider detected in environment")
	}
	return best, nil
}

// MustNewClient is NewClient, panicking on error. Meant for startup code
// where a missing AI credential should fail fast and loud.
func MustNewClient(opts ...AIOption) core.AIClient {
	client, err := NewClient(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create AI client: %v", err))
	}
	return client
}
