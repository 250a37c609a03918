package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bowerhall/conductor/internal/memory"
	"github.com/bowerhall/conductor/internal/retrieval"
	"github.com/bowerhall/conductor/internal/tools"
	"github.com/bowerhall/conductor/internal/validate"
)

type processRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
	Mode  string `json:"mode"`
}

type rememberRequest struct {
	Type     string         `json:"type"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Agents int               `json:"agents"`
	Host   tools.Status      `json:"host"`
	Memory *retrieval.Stats  `json:"memory,omitempty"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Agents: len(s.orch.AgentNames()),
		Host:   tools.ReadStatus(r.Context(), s.dbPath),
		Checks: map[string]string{},
	}

	if mem := s.orch.Memory(); mem != nil {
		stats, err := mem.Stats(r.Context())
		if err != nil {
			resp.Status = "degraded"
			resp.Checks["memory"] = err.Error()
		} else {
			resp.Memory = stats
			resp.Checks["memory"] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// processRequest handles POST /requests
func (s *Server) processRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[processRequest](w, r)
	if !ok {
		return
	}

	res, err := s.orch.Handle(r.Context(), req.Query, req.SessionID)
	if err != nil {
		var vErr *validate.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.ListAgents())
}

func (s *Server) sessionContext(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := validate.SessionID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c := s.orch.Context(r.Context(), id)
	if c == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) sessionSummary(w http.ResponseWriter, r *http.Request) {
	mem := s.requireMemory(w)
	if mem == nil {
		return
	}

	summary, err := mem.SessionSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (s *Server) clearSession(w http.ResponseWriter, r *http.Request) {
	err := s.orch.ClearSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var vErr *validate.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) searchMemory(w http.ResponseWriter, r *http.Request) {
	mem := s.requireMemory(w)
	if mem == nil {
		return
	}

	req, ok := readJSON[searchRequest](w, r)
	if !ok {
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	results, err := mem.Search(r.Context(), req.Query, req.Limit, req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

func (s *Server) recentMemory(w http.ResponseWriter, r *http.Request) {
	mem := s.requireMemory(w)
	if mem == nil {
		return
	}

	obs, err := mem.Recent(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if obs == nil {
		obs = []memory.Observation{}
	}
	writeJSON(w, http.StatusOK, obs)
}

func (s *Server) memoryStats(w http.ResponseWriter, r *http.Request) {
	mem := s.requireMemory(w)
	if mem == nil {
		return
	}

	stats, err := mem.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) remember(w http.ResponseWriter, r *http.Request) {
	mem := s.requireMemory(w)
	if mem == nil {
		return
	}

	req, ok := readJSON[rememberRequest](w, r)
	if !ok {
		return
	}
	if req.Type == "" {
		req.Type = memory.TypeDecision
	}

	id, err := mem.Remember(r.Context(), req.Type, req.Content, req.Metadata)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.scheduler.Jobs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) runJob(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.RunNow(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireMemory(w http.ResponseWriter) *retrieval.Manager {
	mem := s.orch.Memory()
	if mem == nil {
		writeError(w, http.StatusServiceUnavailable, "memory is not configured")
	}
	return mem
}
