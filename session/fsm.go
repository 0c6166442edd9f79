package session

import (
	"context"
	"fmt"
	"time"
)

// transitions enumerates every valid (from, to) edge in the lifecycle
// state machine. "any non-terminal" edges from the distilled spec are
// expanded per source state below.
var transitions = map[LifecycleState]map[LifecycleState]bool{
	StateIdle: {
		StatePlanning:  true,
		StatePaused:    true,
		StateCompleted: true,
	},
	StatePlanning: {
		StateWaitingForBrowser: true,
		StateCompleted:         true,
		StateError:             true,
		StatePaused:            true,
	},
	StateWaitingForBrowser: {
		StateExecuting: true,
		StatePaused:    true,
		StateCompleted: true,
	},
	StateExecuting: {
		StatePlanning:  true,
		StateError:     true,
		StatePaused:    true,
		StateCompleted: true,
	},
	StatePaused: {
		StatePlanning:          true,
		StateWaitingForBrowser: true, // resuming a policy-held pending action skips replanning
		StateCompleted:         true,
	},
	// COMPLETED and ERROR have no outgoing edges for pause/cancel purposes
	// (isTerminal gates those), but a follow-up task appended after the
	// current task terminates restarts the planning cycle, so both accept
	// a PLANNING re-entry edge.
	StateCompleted: {
		StatePlanning: true,
	},
	StateError: {
		StatePlanning: true,
	},
}

// ErrInvalidTransition is returned when the FSM is asked to move along an
// edge not present in the transition table.
type ErrInvalidTransition struct {
	From, To LifecycleState
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("session: invalid transition %s -> %s", e.From, e.To)
}

// isTerminal reports whether a state ends the current task (COMPLETED or
// ERROR); the only edge out of either is the follow-up PLANNING re-entry.
func isTerminal(s LifecycleState) bool {
	return s == StateCompleted || s == StateError
}

// transition moves the session's state to to, returning an error if the
// edge is not valid. The caller holds e.mu. Entering COMPLETED or ERROR
// auto-exports a replay record when Config.EnableReplay is set (§3:
// "terminal sessions export a replay record"), independent of the
// on-demand `replay` route.
func (e *Engine) transition(ctx context.Context, to LifecycleState) error {
	edges, ok := transitions[e.state]
	if !ok || !edges[to] {
		return &ErrInvalidTransition{From: e.state, To: to}
	}
	e.state = to
	if isTerminal(to) {
		e.autoExportReplayLocked(ctx)
	}
	return nil
}

// autoExportReplayLocked writes a ReplayExport under this session's replay
// key if replay export is enabled. Failures are logged, not propagated:
// an auto-export that fails must never fail the FSM transition that
// triggered it.
func (e *Engine) autoExportReplayLocked(ctx context.Context) {
	if !e.config.EnableReplay {
		return
	}
	export := &ReplayExport{
		SessionID:     e.id,
		ActionHistory: e.actionHistory,
		BrowserState:  e.browserState,
		Metrics:       e.metrics,
		ExportedAt:    time.Now(),
	}
	if err := e.store.SaveReplay(ctx, export); err != nil {
		e.logger.Warn("auto replay export failed", map[string]interface{}{
			"sessionId": e.id,
			"error":     err.Error(),
		})
	}
}
