package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tangoverse/mneme/internal/domain"
	"github.com/tangoverse/mneme/internal/service"
	"go.uber.org/zap"
)

// EpisodeHandler serves episodic memory endpoints.
type EpisodeHandler struct {
	svc    *service.MemoryService
	logger *zap.Logger
}

// NewEpisodeHandler creates a new episode handler.
func NewEpisodeHandler(svc *service.MemoryService, logger *zap.Logger) *EpisodeHandler {
	return &EpisodeHandler{svc: svc, logger: logger}
}

type createEpisodeRequest struct {
	PageID        string         `json:"page_id"`
	EventType     string         `json:"event_type"`
	Context       map[string]any `json:"context,omitempty"`
	Outcome       string         `json:"outcome"` // success, failure, partial
	SurpriseScore *float64       `json:"surprise_score,omitempty"`
}

// Create records an episode and may trigger chunking.
// POST /v1/agents/{agentID}/episodes
func (h *EpisodeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEpisodeRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	episode, err := h.svc.RecordEpisode(r.Context(), service.RecordEpisodeInput{
		AgentID:       chi.URLParam(r, "agentID"),
		PageID:        req.PageID,
		EventType:     req.EventType,
		Context:       req.Context,
		Outcome:       domain.OutcomeType(req.Outcome),
		SurpriseScore: req.SurpriseScore,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, episode)
}

type recallResponse struct {
	Episodes []domain.Episode `json:"episodes"`
	Count    int              `json:"count"`
}

// Recall returns matching episodes newest first.
// GET /v1/agents/{agentID}/episodes?page_id=&event_type=&min_surprise=&limit=
func (h *EpisodeHandler) Recall(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.RecallFilter{
		PageID:    q.Get("page_id"),
		EventType: q.Get("event_type"),
	}

	if v := q.Get("min_surprise"); v != "" {
		minSurprise, err := strconv.ParseFloat(v, 64)
		if err != nil || minSurprise < 0 || minSurprise > 1 {
			writeError(w, http.StatusBadRequest, "min_surprise must be a number between 0 and 1")
			return
		}
		filter.MinSurprise = &minSurprise
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	episodes, err := h.svc.RecallEpisodes(r.Context(), chi.URLParam(r, "agentID"), filter)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, recallResponse{Episodes: episodes, Count: len(episodes)})
}
