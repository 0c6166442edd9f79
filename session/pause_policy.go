package session

import "context"

// PausePolicy decides whether the action the planner just produced should
// hold the session in PAUSED for human approval instead of being enqueued
// for the browser client immediately. Adapted from orchestration's
// rule-based human-in-the-loop policy (hitl_policy.go's RuleBasedPolicy),
// narrowed to this engine's single approval point rather than that
// package's plan/step/error-escalation surface.
type PausePolicy interface {
	// ShouldPause is called with the action about to be enqueued, after
	// the actor has already validated it. A true result holds the action
	// in the engine as a pending action until Resume is called.
	ShouldPause(ctx context.Context, action Action) (pause bool, reason string)
}

// AutoApprovePolicy never pauses. This is the default: every
// actor-validated action is enqueued immediately.
type AutoApprovePolicy struct{}

func (AutoApprovePolicy) ShouldPause(ctx context.Context, action Action) (bool, string) {
	return false, ""
}

// AlwaysAskPolicy pauses before every action, handing control back to the
// caller at each step of the plan.
type AlwaysAskPolicy struct{}

func (AlwaysAskPolicy) ShouldPause(ctx context.Context, action Action) (bool, string) {
	return true, "always_ask_policy"
}

// RiskThresholdPolicy pauses only when the next action's type is in
// SensitiveActions, mirroring RuleBasedPolicy's sensitive-capability list
// check without that package's plan-level and error-escalation rules.
type RiskThresholdPolicy struct {
	SensitiveActions []ActionType
}

func (p RiskThresholdPolicy) ShouldPause(ctx context.Context, action Action) (bool, string) {
	for _, t := range p.SensitiveActions {
		if action.Type == t {
			return true, "sensitive_action:" + string(action.Type)
		}
	}
	return false, ""
}
