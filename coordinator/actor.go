package coordinator

import (
	"context"
	"fmt"

	"github.com/taskbridge/agentloop/session"
)

// requiredParams names the params an action of a given type must carry
// before it is handed to the browser client. Actions not listed here (wait,
// screenshot, tab_new, ...) need no params to be well-formed.
var requiredParams = map[session.ActionType][]string{
	session.ActionNavigate:     {"url"},
	session.ActionClick:        {"selector"},
	session.ActionTypeText:     {"selector", "text"},
	session.ActionHover:        {"selector"},
	session.ActionSelect:       {"selector", "value"},
	session.ActionScroll:       {"direction"},
	session.ActionScrollToElem: {"selector"},
	session.ActionTabSwitch:    {"tabId"},
	session.ActionKeyPress:     {"key"},
	session.ActionDropdown:     {"selector", "value"},
	session.ActionSearchGoogle: {"query"},
}

func isKnownActionType(t session.ActionType) bool {
	for _, v := range actionVocabulary {
		if string(t) == v {
			return true
		}
	}
	return false
}

// Act implements session.Actor. It validates a planner-proposed action
// against the fixed vocabulary and its required parameters before the
// Engine queues it for the browser client; this is a local, deterministic
// check and never calls the LLM.
func (c *Coordinator) Act(ctx context.Context, in session.ActorInput) (session.ActorOutput, error) {
	action := in.Action

	if !isKnownActionType(action.Type) {
		return session.ActorOutput{
			Success: false,
			Error:   fmt.Sprintf("unknown action type %q", action.Type),
		}, nil
	}

	if len(in.ToolsEnabled) > 0 && !contains(in.ToolsEnabled, action.Type) {
		return session.ActorOutput{
			Success: false,
			Error:   fmt.Sprintf("action type %q is not enabled for this session", action.Type),
		}, nil
	}

	if action.Type == session.ActionComplete {
		result, _ := action.Params["result"].(string)
		return session.ActorOutput{
			Success:          true,
			TaskComplete:     true,
			CompletionResult: result,
		}, nil
	}

	for _, key := range requiredParams[action.Type] {
		if _, ok := action.Params[key]; !ok {
			return session.ActorOutput{
				Success: false,
				Error:   fmt.Sprintf("action %q missing required param %q", action.Type, key),
			}, nil
		}
	}

	return session.ActorOutput{
		Success:             true,
		BrowserStateChanged: action.Type != session.ActionWait && action.Type != session.ActionScreenshot && action.Type != session.ActionCacheContent,
	}, nil
}

func contains(types []session.ActionType, t session.ActionType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}
