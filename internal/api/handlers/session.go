package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tangoverse/mneme/internal/domain"
	"github.com/tangoverse/mneme/internal/service"
	"go.uber.org/zap"
)

// SessionHandler exposes per-session belief engines.
type SessionHandler struct {
	sessions *service.BeliefSessions
	logger   *zap.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sessions *service.BeliefSessions, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

type createSessionRequest struct {
	SessionID   string                      `json:"session_id,omitempty"`
	Preferences *domain.PreferenceOverrides `json:"preferences,omitempty"`
}

type sessionResponse struct {
	SessionID   string                `json:"session_id"`
	Beliefs     []domain.Belief       `json:"beliefs"`
	Preferences domain.UserPreference `json:"preferences"`
}

// Create starts a belief session.
// POST /v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, engine, err := h.sessions.Create(req.SessionID, req.Preferences)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID:   id,
		Beliefs:     engine.GetAllBeliefs(),
		Preferences: engine.GetPreferences(),
	})
}

// GET /v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	engine, err := h.sessions.Get(id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:   id,
		Beliefs:     engine.GetAllBeliefs(),
		Preferences: engine.GetPreferences(),
	})
}

// DELETE /v1/sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addEvidenceRequest struct {
	BeliefKey  string         `json:"belief_key"`
	Type       string         `json:"type"`
	Content    map[string]any `json:"content"`
	Confidence *float64       `json:"confidence,omitempty"`
	Timestamp  string         `json:"timestamp,omitempty"` // RFC3339
}

type addEvidenceResponse struct {
	Belief      domain.Belief         `json:"belief"`
	Preferences domain.UserPreference `json:"preferences"`
}

// AddEvidence folds one observation into a belief.
// POST /v1/sessions/{id}/evidence
func (h *SessionHandler) AddEvidence(w http.ResponseWriter, r *http.Request) {
	engine, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	var req addEvidenceRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BeliefKey == "" {
		writeError(w, http.StatusBadRequest, "belief_key is required")
		return
	}
	if !domain.ValidEvidenceType(req.Type) {
		writeError(w, http.StatusBadRequest, "type must be one of: code_written, user_feedback, correction_made, question_asked")
		return
	}

	ev := domain.Evidence{
		Type:       domain.EvidenceType(req.Type),
		Content:    req.Content,
		Confidence: 1.0,
	}
	if ev.Content == nil {
		ev.Content = map[string]any{}
	}
	if req.Confidence != nil {
		if *req.Confidence < 0 || *req.Confidence > 1 {
			writeError(w, http.StatusBadRequest, "confidence must be between 0 and 1")
			return
		}
		ev.Confidence = *req.Confidence
	}
	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid timestamp, use RFC3339")
			return
		}
		ev.Timestamp = ts
	}

	belief, err := engine.UpdateBelief(domain.BeliefKey(req.BeliefKey), ev)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, addEvidenceResponse{
		Belief:      belief,
		Preferences: engine.GetPreferences(),
	})
}

// GET /v1/sessions/{id}/evidence
func (h *SessionHandler) ListEvidence(w http.ResponseWriter, r *http.Request) {
	engine, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	history := engine.EvidenceHistory()
	writeJSON(w, http.StatusOK, map[string]any{
		"evidence": history,
		"count":    len(history),
	})
}

// GET /v1/sessions/{id}/beliefs/{key}
func (h *SessionHandler) GetBelief(w http.ResponseWriter, r *http.Request) {
	engine, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	belief, ok := engine.GetBelief(domain.BeliefKey(chi.URLParam(r, "key")))
	if !ok {
		writeError(w, http.StatusNotFound, "belief not found")
		return
	}
	writeJSON(w, http.StatusOK, belief)
}

// GET /v1/sessions/{id}/preferences
func (h *SessionHandler) Preferences(w http.ResponseWriter, r *http.Request) {
	engine, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, engine.GetPreferences())
}

// GET /v1/sessions/{id}/response-parameters
func (h *SessionHandler) ResponseParameters(w http.ResponseWriter, r *http.Request) {
	engine, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, engine.GetResponseParameters())
}
