// Package coordinator implements the Planner/Actor/Extractor roles (C6)
// that share one LLM capability, wrapping calls in the guardrail filter
// and retry executor and parsing the LLM's structured JSON responses.
//
// It implements session.Coordinator so a session.Engine can drive it
// without importing this package's concrete types; this package is the
// only one that imports both session (for the port interfaces and data
// model) and ai/core (for the LLM capability).
package coordinator

import (
	"context"
	"fmt"

	"github.com/taskbridge/agentloop/core"
	"github.com/taskbridge/agentloop/resilience"
)

// actionVocabulary is the fixed set of action types the planner may emit,
// mirrored from session.ActionType's constants. Kept as a local string set
// (rather than importing every session.Action* constant) so prompt
// construction can render it directly into the planning prompt text.
var actionVocabulary = []string{
	"navigate", "click", "type", "hover", "select", "scroll",
	"scroll_to_element", "tab_new", "tab_switch", "tab_close", "wait",
	"screenshot", "extract", "cache_content", "key_press", "dropdown",
	"search_google", "pagination", "complete",
}

// Coordinator owns the three roles. It holds a reference to the LLM
// capability only; all session-state mutation happens through the values
// it returns, per the distilled spec's narrow-interface design note.
type Coordinator struct {
	client       core.AIClient
	logger       core.Logger
	model        string
	promptConfig *PromptConfig
	breaker      *resilience.CircuitBreaker
}

// New builds a Coordinator around an LLM capability. model may be empty,
// in which case the client's own default applies.
//
// Every chat call (Plan and Extract; Act is local and never reaches the
// LLM) is wrapped in a circuit breaker so a sustained provider outage
// opens the circuit and fails fast instead of letting every session's
// retry executor exhaust its own backoff budget against a dead provider.
func New(client core.AIClient, logger core.Logger, model string) *Coordinator {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	breaker, err := resilience.CreateCircuitBreaker("coordinator-llm", resilience.ResilienceDependencies{Logger: logger})
	if err != nil {
		// DefaultConfig() is always valid; CreateCircuitBreaker can only
		// fail on a caller-supplied config, so this is unreachable in
		// practice. Fall back to an unprotected breaker-of-last-resort
		// rather than panicking a process over telemetry wiring.
		breaker, _ = resilience.NewCircuitBreaker(resilience.DefaultConfig())
	}
	return &Coordinator{client: client, logger: logger, model: model, breaker: breaker}
}

// chat runs prompt through the LLM capability behind the circuit breaker.
// Both Plan and Extract funnel their calls through this single method.
func (c *Coordinator) chat(ctx context.Context, prompt string, opts *core.AIOptions) (*core.AIResponse, error) {
	var resp *core.AIResponse
	err := c.breaker.Execute(ctx, func() error {
		r, err := c.client.GenerateResponse(ctx, prompt, opts)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("coordinator chat call failed: %w", err)
	}
	return resp, nil
}

// SetPromptConfig installs a PromptConfig built by LoadPromptConfig,
// customizing every subsequent Plan call's prompt. A nil cfg restores the
// unmodified default prompt.
func (c *Coordinator) SetPromptConfig(cfg *PromptConfig) {
	c.promptConfig = cfg
}
