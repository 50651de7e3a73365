package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NEMYSESx/sift/internal/analyzer"
)

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "sift",
		"message": "CI log analysis service. POST logs to /webhook/ci, analyze via /analyze.",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type webhookRequest struct {
	IncidentID string `json:"incident_id"`
	LogText    string `json:"log_text"`
	LogURL     string `json:"log_url"`
	Source     string `json:"source"`
}

type webhookResponse struct {
	IncidentID string `json:"incident_id"`
	StoredKey  string `json:"stored_key,omitempty"`
	StoreError string `json:"store_error,omitempty"`
}

// handleWebhook accepts a CI failure notification carrying the raw log and
// stores it for later analysis. Storage failure is reported in the body so
// the CI side still gets its incident id back.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.LogText == "" {
		// TODO: fetch req.LogURL when providers send a link instead of the body.
		writeError(w, http.StatusBadRequest, "log_text is required")
		return
	}

	incidentID := req.IncidentID
	if incidentID == "" {
		incidentID = uuid.New().String()
	}

	resp := webhookResponse{IncidentID: incidentID}
	key := incidentID + ".log"
	if err := s.store.Put(r.Context(), []byte(req.LogText), key, s.bucket); err != nil {
		s.logger.Error("webhook store failed", zap.String("key", key), zap.Error(err))
		resp.StoreError = err.Error()
	} else {
		resp.StoredKey = key
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzer.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		if errors.Is(err, analyzer.ErrNoInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("analysis failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
