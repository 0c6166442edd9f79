package boundary

import (
	"encoding/json"
	"net/http"

	"github.com/taskbridge/agentloop/session"
)

// Server wires a Manager to the fixed route table.
type Server struct {
	manager *Manager
}

// NewServer builds a Server around manager.
func NewServer(manager *Manager) *Server {
	return &Server{manager: manager}
}

func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// handleCreate: POST /sessions/create
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	id := s.manager.Create()
	writeJSON(w, http.StatusCreated, map[string]string{"sessionId": id})
}

type taskRequest struct {
	Description string `json:"description"`
}

// handleExecute: POST /sessions/{id}/execute
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request, id string) {
	var req taskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	e, err := s.manager.Get(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	taskID, err := e.Execute(r.Context(), req.Description)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"taskId": taskID})
}

// handleFollowUp: POST /sessions/{id}/follow-up
func (s *Server) handleFollowUp(w http.ResponseWriter, r *http.Request, id string) {
	var req taskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	e, err := s.manager.Get(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	taskID, err := e.FollowUp(r.Context(), req.Description)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"taskId": taskID})
}

// handleNextAction: GET /sessions/{id}/next-action
func (s *Server) handleNextAction(w http.ResponseWriter, r *http.Request, id string) {
	e, err := s.manager.Get(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	action, waiting, taskComplete, err := e.NextAction(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"action":       action,
		"waiting":      waiting,
		"taskComplete": taskComplete,
	})
}

// handleActionResult: POST /sessions/{id}/action-result
func (s *Server) handleActionResult(w http.ResponseWriter, r *http.Request, id string) {
	var result session.Result
	if err := decodeBody(r, &result); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	e, err := s.manager.Get(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if err := e.ActionResult(r.Context(), result); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// handleBrowserState: POST /sessions/{id}/state
func (s *Server) handleBrowserState(w http.ResponseWriter, r *http.Request, id string) {
	var bs session.BrowserState
	if err := decodeBody(r, &bs); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	e, err := s.manager.Get(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if err := e.UpdateBrowserState(r.Context(), bs); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// handleLifecycle dispatches pause/resume/cancel: POST /sessions/{id}/{action}
func (s *Server) handleLifecycle(w http.ResponseWriter, r *http.Request, id, action string) {
	e, err := s.manager.Get(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var opErr error
	switch action {
	case "pause":
		opErr = e.Pause(r.Context())
	case "resume":
		opErr = e.Resume(r.Context())
	case "cancel":
		opErr = e.Cancel(r.Context())
	default:
		writeError(w, http.StatusNotFound, "UNKNOWN_ROUTE", "no such lifecycle action: "+action)
		return
	}
	if opErr != nil {
		writeEngineError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// handleHistory: GET /sessions/{id}/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, id string) {
	e, err := s.manager.Get(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	snap := e.State()
	writeJSON(w, http.StatusOK, snap)
}

// handleReplay: POST /sessions/{id}/replay
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request, id string) {
	e, err := s.manager.Get(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	replayID, err := e.Replay(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"replayId": replayID})
}

type extractRequest struct {
	Fields           []string `json:"fields"`
	Content          string   `json:"content"`
	ExtractionPrompt string   `json:"extractionPrompt"`
}

// handleExtract: POST /sessions/{id}/extract
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request, id string) {
	var req extractRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	e, err := s.manager.Get(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out, err := e.Extract(r.Context(), req.Fields, req.Content, req.ExtractionPrompt)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
