package resilience

import (
	"strings"
)

// Category is the vocabulary C2 classifies errors into. It plays the same
// role as core.ErrorCategory but for the session engine's own six-category
// scheme rather than the generic tool-invocation categories in
// core/tool_error.go.
type Category string

const (
	CategoryRateLimit         Category = "rate_limit"
	CategoryNetwork           Category = "network"
	CategoryTimeout           Category = "timeout"
	CategoryUserInputRequired Category = "user_input_required"
	CategoryFatal             Category = "fatal"
	CategoryRecoverable       Category = "recoverable"
)

// RecoveryAction is what a caller should do once an error has exhausted
// its retry budget (or was non-retryable to begin with).
type RecoveryAction string

const (
	ActionRetry    RecoveryAction = "retry"
	ActionPause    RecoveryAction = "pause"
	ActionSkip     RecoveryAction = "skip"
	ActionAbort    RecoveryAction = "abort"
	ActionAskUser  RecoveryAction = "ask_user"
)

// classifyRule pairs a category with the trigger substrings that identify
// it and whether it is retryable at all.
type classifyRule struct {
	category   Category
	substrings []string
	retryable  bool
}

// rules are evaluated in order; the first match wins. Order matters because
// some substrings could plausibly appear in more than one message.
var rules = []classifyRule{
	{CategoryRateLimit, []string{"rate limit", "429"}, true},
	{CategoryNetwork, []string{"network", "econnrefused", "fetch failed"}, true},
	{CategoryTimeout, []string{"timeout", "timed out"}, true},
	{CategoryUserInputRequired, []string{"captcha", "verification", "login required", "authentication"}, false},
	{CategoryFatal, []string{"forbidden", "unauthorized", "invalid session"}, false},
}

// Classify inspects err's message for the trigger substrings in §4.2 and
// returns the matching category. Errors matching none of the named
// families are CategoryRecoverable, which is retryable by default.
func Classify(err error) Category {
	if err == nil {
		return CategoryRecoverable
	}
	msg := strings.ToLower(err.Error())
	for _, r := range rules {
		for _, sub := range r.substrings {
			if strings.Contains(msg, sub) {
				return r.category
			}
		}
	}
	return CategoryRecoverable
}

// Retryable reports whether errors of the given category are retryable
// by default (independent of the caller's configured retryableCategories
// allow-list).
func Retryable(c Category) bool {
	switch c {
	case CategoryRateLimit, CategoryNetwork, CategoryTimeout, CategoryRecoverable:
		return true
	default:
		return false
	}
}

// RecoveryFor maps a category (after retries are exhausted, or immediately
// for non-retryable categories) to the action the caller should take.
// exhausted indicates the retry budget for a retryable category ran out.
func RecoveryFor(c Category, exhausted bool) RecoveryAction {
	switch c {
	case CategoryUserInputRequired:
		return ActionPause
	case CategoryFatal:
		return ActionAbort
	case CategoryRecoverable:
		if exhausted {
			return ActionSkip
		}
		return ActionRetry
	case CategoryRateLimit, CategoryNetwork, CategoryTimeout:
		if exhausted {
			return ActionAbort
		}
		return ActionRetry
	default:
		return ActionAbort
	}
}
