package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tangoverse/mneme/internal/domain"
	"github.com/tangoverse/mneme/internal/service"
	"go.uber.org/zap"
)

// SemanticHandler serves learned semantic patterns.
type SemanticHandler struct {
	svc    *service.MemoryService
	logger *zap.Logger
}

// NewSemanticHandler creates a new semantic handler.
func NewSemanticHandler(svc *service.MemoryService, logger *zap.Logger) *SemanticHandler {
	return &SemanticHandler{svc: svc, logger: logger}
}

// GET /v1/agents/{agentID}/semantic
func (h *SemanticHandler) List(w http.ResponseWriter, r *http.Request) {
	patterns, err := h.svc.ListSemantic(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if patterns == nil {
		patterns = []domain.SemanticMemory{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"patterns": patterns,
		"count":    len(patterns),
	})
}

// GET /v1/agents/{agentID}/semantic/{concept}
func (h *SemanticHandler) Get(w http.ResponseWriter, r *http.Request) {
	pattern, err := h.svc.GetSemantic(r.Context(), chi.URLParam(r, "agentID"), chi.URLParam(r, "concept"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pattern)
}
