package boundary

import (
	"net/http"

	"github.com/taskbridge/agentloop/core"
)

// Routes registers the full route table on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /sessions/create", s.handleCreate)
	mux.HandleFunc("POST /sessions/{id}/execute", func(w http.ResponseWriter, r *http.Request) {
		s.handleExecute(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST /sessions/{id}/follow-up", func(w http.ResponseWriter, r *http.Request) {
		s.handleFollowUp(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET /sessions/{id}/next-action", func(w http.ResponseWriter, r *http.Request) {
		s.handleNextAction(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST /sessions/{id}/action-result", func(w http.ResponseWriter, r *http.Request) {
		s.handleActionResult(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST /sessions/{id}/state", func(w http.ResponseWriter, r *http.Request) {
		s.handleBrowserState(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST /sessions/{id}/pause", func(w http.ResponseWriter, r *http.Request) {
		s.handleLifecycle(w, r, r.PathValue("id"), "pause")
	})
	mux.HandleFunc("POST /sessions/{id}/resume", func(w http.ResponseWriter, r *http.Request) {
		s.handleLifecycle(w, r, r.PathValue("id"), "resume")
	})
	mux.HandleFunc("POST /sessions/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		s.handleLifecycle(w, r, r.PathValue("id"), "cancel")
	})
	mux.HandleFunc("GET /sessions/{id}/history", func(w http.ResponseWriter, r *http.Request) {
		s.handleHistory(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET /sessions/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		s.handleEvents(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET /sessions/{id}/events/ws", func(w http.ResponseWriter, r *http.Request) {
		s.handleEventsWS(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST /sessions/{id}/replay", func(w http.ResponseWriter, r *http.Request) {
		s.handleReplay(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST /sessions/{id}/extract", func(w http.ResponseWriter, r *http.Request) {
		s.handleExtract(w, r, r.PathValue("id"))
	})
}

// NewHandler builds the full HTTP handler for a Server: the route table
// wrapped in the teacher's logging and CORS middleware.
func NewHandler(s *Server, logger core.Logger, cors *core.CORSConfig, devMode bool) http.Handler {
	mux := http.NewServeMux()
	s.Routes(mux)

	var handler http.Handler = mux
	handler = core.LoggingMiddleware(logger, devMode)(handler)
	handler = core.CORSMiddleware(cors)(handler)
	return handler
}
