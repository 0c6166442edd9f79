package session

import (
	"time"

	"github.com/taskbridge/agentloop/cache"
	"github.com/taskbridge/agentloop/resilience"
)

// RetryStrategy mirrors the distilled spec's retryStrategy config option.
type RetryStrategy struct {
	MaxRetries          int
	BackoffMs           int64
	BackoffMultiplier   float64
	MaxBackoffMs        int64
	RetryableCategories []resilience.Category
}

func (r RetryStrategy) toExecutorConfig() resilience.ExecutorConfig {
	return resilience.ExecutorConfig{
		MaxRetries:          r.MaxRetries,
		BackoffMs:           r.BackoffMs,
		BackoffMultiplier:   r.BackoffMultiplier,
		MaxBackoffMs:        r.MaxBackoffMs,
		RetryableCategories: r.RetryableCategories,
	}
}

// CacheStrategy mirrors the distilled spec's cacheStrategy config option.
type CacheStrategy struct {
	Enabled              bool
	MaxSize              int
	TTLMs                int64
	CompressionEnabled   bool
	CompressionThreshold int
	WarmingEnabled       bool
}

func (c CacheStrategy) toCacheConfig() cache.Config {
	return cache.Config{
		MaxSize:              c.MaxSize,
		TTL:                  time.Duration(c.TTLMs) * time.Millisecond,
		CompressionEnabled:   c.CompressionEnabled,
		CompressionThreshold: c.CompressionThreshold,
	}
}

// Config is the per-session configuration record (the distilled spec's
// Config type). The field comments say what each one governs.
// MaxActionsPerStep, CacheStrategy.Enabled and CacheStrategy.WarmingEnabled
// are stored and persisted but not read by the Engine.
type Config struct {
	// MaxSteps is the hard cap on planner iterations. Breaching it fails
	// the task with max_steps_reached.
	MaxSteps int
	// EnableVision attaches screenshots to planner prompts when true and
	// the LLM capability advertises vision support.
	EnableVision bool
	// EnableReplay causes terminal sessions to export a replay record.
	EnableReplay bool
	// StrictSecurity enables the strict guardrail pattern family (emails,
	// phone numbers) in addition to the base family.
	StrictSecurity bool
	// RetryStrategy configures the retry executor around LLM calls.
	RetryStrategy RetryStrategy
	// CacheStrategy configures the tiered content cache.
	CacheStrategy CacheStrategy
	// ToolsEnabled whitelists the action types the planner may emit. A nil
	// or empty slice means no restriction.
	ToolsEnabled []ActionType
	// MaxActionsPerStep bounds the actions the planner may enqueue per
	// planning cycle. The current Engine enqueues at most one action per
	// cycle, so this is advisory headroom for a future multi-action planner.
	MaxActionsPerStep int
	// MaxFailures is the number of consecutive action-result failures
	// before the task is marked failed.
	MaxFailures int
	// PlanningInterval is the replan cadence: every N steps a fresh
	// planner call runs even mid-plan.
	PlanningInterval int
	// PausePolicy decides whether a validated action should hold the
	// session in PAUSED for approval before being enqueued. Defaults to
	// AutoApprovePolicy (never pauses). Not persisted (an interface value
	// can't round-trip through JSON); FromSnapshot restores the default
	// after reload, same as Coordinator.
	PausePolicy PausePolicy `json:"-"`
}

// DefaultConfig returns the Engine's baseline configuration.
func DefaultConfig() Config {
	return Config{
		MaxSteps:       50,
		EnableVision:   false,
		EnableReplay:   true,
		StrictSecurity: false,
		RetryStrategy: RetryStrategy{
			MaxRetries:        3,
			BackoffMs:         1000,
			BackoffMultiplier: 2.0,
			MaxBackoffMs:      30000,
			RetryableCategories: []resilience.Category{
				resilience.CategoryRateLimit,
				resilience.CategoryNetwork,
				resilience.CategoryTimeout,
				resilience.CategoryRecoverable,
			},
		},
		CacheStrategy: CacheStrategy{
			Enabled:              true,
			MaxSize:              100,
			TTLMs:                5 * 60 * 1000,
			CompressionEnabled:   false,
			CompressionThreshold: 4096,
		},
		MaxActionsPerStep: 1,
		MaxFailures:       2,
		PlanningInterval:  5,
		PausePolicy:       AutoApprovePolicy{},
	}
}

// Option mutates a Config. Options compose left to right over DefaultConfig().
type Option func(*Config)

// WithMaxSteps overrides MaxSteps.
func WithMaxSteps(n int) Option { return func(c *Config) { c.MaxSteps = n } }

// WithVision toggles EnableVision.
func WithVision(enabled bool) Option { return func(c *Config) { c.EnableVision = enabled } }

// WithStrictSecurity toggles StrictSecurity.
func WithStrictSecurity(enabled bool) Option { return func(c *Config) { c.StrictSecurity = enabled } }

// WithMaxFailures overrides MaxFailures.
func WithMaxFailures(n int) Option { return func(c *Config) { c.MaxFailures = n } }

// WithPlanningInterval overrides PlanningInterval.
func WithPlanningInterval(n int) Option { return func(c *Config) { c.PlanningInterval = n } }

// WithToolsEnabled overrides the action-type whitelist.
func WithToolsEnabled(types ...ActionType) Option {
	return func(c *Config) { c.ToolsEnabled = types }
}

// WithRetryStrategy overrides RetryStrategy.
func WithRetryStrategy(r RetryStrategy) Option { return func(c *Config) { c.RetryStrategy = r } }

// WithCacheStrategy overrides CacheStrategy.
func WithCacheStrategy(s CacheStrategy) Option { return func(c *Config) { c.CacheStrategy = s } }

// NewConfig builds a Config from DefaultConfig with the given options applied.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
