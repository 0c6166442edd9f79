package boundary

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/taskbridge/agentloop/core"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(core.ToolResponse{Success: status < 400, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(core.ToolResponse{
		Success: false,
		Error: &core.ToolError{
			Code:    code,
			Message: message,
		},
	})
}

// writeEngineError maps an error returned by a session.Engine or Manager
// operation to an HTTP status. Session-not-found is a 404; invalid FSM
// transitions and other state-preconditions the engine rejected are 409s;
// anything else is an internal failure.
func writeEngineError(w http.ResponseWriter, err error) {
	if _, ok := err.(*ErrSessionNotFound); ok {
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", err.Error())
		return
	}
	if strings.HasPrefix(err.Error(), "session:") {
		writeError(w, http.StatusConflict, "OPERATION_REJECTED", err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
}
