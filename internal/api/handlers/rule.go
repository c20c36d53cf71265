package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tangoverse/mneme/internal/domain"
	"github.com/tangoverse/mneme/internal/service"
	"go.uber.org/zap"
)

// RuleHandler serves procedural rule endpoints.
type RuleHandler struct {
	svc    *service.MemoryService
	logger *zap.Logger
}

// NewRuleHandler creates a new rule handler.
func NewRuleHandler(svc *service.MemoryService, logger *zap.Logger) *RuleHandler {
	return &RuleHandler{svc: svc, logger: logger}
}

type upsertRuleRequest struct {
	RuleName     string         `json:"rule_name"`
	Condition    map[string]any `json:"condition"`
	Action       map[string]any `json:"action"`
	Description  string         `json:"description,omitempty"`
	Priority     int            `json:"priority,omitempty"`
	LearningRate *float64       `json:"learning_rate,omitempty"`
}

// Upsert creates or re-authors a rule by name.
// PUT /v1/agents/{agentID}/rules
func (h *RuleHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRuleRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rule, err := h.svc.CreateProceduralRule(r.Context(), service.CreateRuleInput{
		AgentID:      chi.URLParam(r, "agentID"),
		RuleName:     req.RuleName,
		Condition:    req.Condition,
		Action:       req.Action,
		Description:  req.Description,
		Priority:     req.Priority,
		LearningRate: req.LearningRate,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// GET /v1/agents/{agentID}/rules
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.svc.ListRules(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeRules(w, rules)
}

type bestRulesRequest struct {
	State map[string]any `json:"state"`
	Limit int            `json:"limit,omitempty"`
}

// Best returns the top enabled rules applicable to a state.
// POST /v1/agents/{agentID}/rules/best
func (h *RuleHandler) Best(w http.ResponseWriter, r *http.Request) {
	var req bestRulesRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must not be negative")
		return
	}

	rules, err := h.svc.GetBestRules(r.Context(), chi.URLParam(r, "agentID"), req.State, req.Limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeRules(w, rules)
}

// GET /v1/rules/{id}
func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleID(w, r)
	if !ok {
		return
	}
	rule, err := h.svc.GetRule(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

type simulateRequest struct {
	State map[string]any `json:"state"`
}

// Simulate evaluates a rule against a hypothetical state. A missing rule
// still answers 200 with a negative result.
// POST /v1/rules/{id}/simulate
func (h *RuleHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleID(w, r)
	if !ok {
		return
	}
	var req simulateRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.MentalSimulation(r.Context(), id, req.State)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type ruleOutcomeRequest struct {
	Outcome string `json:"outcome"`
}

// Outcome records a real application of a rule.
// POST /v1/rules/{id}/outcome
func (h *RuleHandler) Outcome(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleID(w, r)
	if !ok {
		return
	}
	var req ruleOutcomeRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rule, err := h.svc.UpdateRulePerformance(r.Context(), id, domain.OutcomeType(req.Outcome))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

type setEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// PUT /v1/rules/{id}/enabled
func (h *RuleHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleID(w, r)
	if !ok {
		return
	}
	var req setEnabledRequest
	if err := decodeBody(r, &req, false); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	if err := h.svc.SetRuleEnabled(r.Context(), id, *req.Enabled); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	rule, err := h.svc.GetRule(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func ruleID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return uuid.Nil, false
	}
	return id, true
}

func writeRules(w http.ResponseWriter, rules []domain.Rule) {
	if rules == nil {
		rules = []domain.Rule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}
