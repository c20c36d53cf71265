package service

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/tangoverse/mneme/internal/domain"
	"github.com/tangoverse/mneme/internal/store"
	"go.uber.org/zap"
)

var (
	ErrRuleNotFound       = errors.New("rule not found")
	ErrRuleNameMissing    = errors.New("rule_name is required")
	ErrInvalidLearnRate   = errors.New("learning_rate must be in (0, 1]")
	ErrInvalidRuleOutcome = errors.New("rule outcome must be success, failure or partial")
)

// CreateRuleInput describes a rule to author or re-author.
type CreateRuleInput struct {
	AgentID      string
	RuleName     string
	Condition    map[string]any
	Action       map[string]any
	Description  string
	Priority     int
	LearningRate *float64 // defaults to the configured rate
}

// CreateProceduralRule upserts a rule by name. Re-authoring replaces the
// definition and keeps success rate, application and simulation history.
func (s *MemoryService) CreateProceduralRule(ctx context.Context, input CreateRuleInput) (*domain.Rule, error) {
	if input.AgentID == "" {
		return nil, ErrAgentIDMissing
	}
	if input.RuleName == "" {
		return nil, ErrRuleNameMissing
	}

	learningRate := s.cfg.DefaultLearningRate
	if input.LearningRate != nil {
		learningRate = *input.LearningRate
	}
	if learningRate <= 0 || learningRate > 1 {
		return nil, ErrInvalidLearnRate
	}

	condition := input.Condition
	if condition == nil {
		condition = map[string]any{}
	}
	action := input.Action
	if action == nil {
		action = map[string]any{}
	}

	existing, err := s.ruleStore.GetByName(ctx, input.AgentID, input.RuleName)
	switch {
	case err == nil:
		existing.Condition = condition
		existing.Action = action
		existing.Description = input.Description
		existing.Priority = input.Priority
		existing.LearningRate = learningRate
		if err := s.ruleStore.UpdateDefinition(ctx, existing); err != nil {
			return nil, err
		}
		s.logger.Info("procedural rule updated",
			zap.String("agent_id", input.AgentID),
			zap.String("rule", input.RuleName))
		return existing, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	rule := &domain.Rule{
		AgentID:      input.AgentID,
		RuleName:     input.RuleName,
		Condition:    condition,
		Action:       action,
		Description:  input.Description,
		SuccessRate:  DefaultRuleSuccessRate,
		LearningRate: learningRate,
		Priority:     input.Priority,
		Enabled:      true,
	}
	if err := s.ruleStore.Create(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info("procedural rule created",
		zap.String("agent_id", input.AgentID),
		zap.String("rule", input.RuleName),
		zap.String("rule_id", rule.ID.String()))
	return rule, nil
}

// GetRule returns a rule by id.
func (s *MemoryService) GetRule(ctx context.Context, ruleID uuid.UUID) (*domain.Rule, error) {
	rule, err := s.ruleStore.GetByID(ctx, ruleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return rule, nil
}

// ListRules returns every rule authored for an agent.
func (s *MemoryService) ListRules(ctx context.Context, agentID string) ([]domain.Rule, error) {
	if agentID == "" {
		return nil, ErrAgentIDMissing
	}
	return s.ruleStore.ListByAgent(ctx, agentID)
}

// MentalSimulation tests a rule against a hypothetical state without applying
// it. Every call counts as a simulation; the success rate is never touched.
// A missing rule yields a negative result rather than an error.
func (s *MemoryService) MentalSimulation(ctx context.Context, ruleID uuid.UUID, state map[string]any) (*domain.SimulationResult, error) {
	rule, err := s.ruleStore.GetByID(ctx, ruleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &domain.SimulationResult{
				Success:    false,
				Confidence: 0,
				Reasoning:  "Rule not found",
			}, nil
		}
		return nil, err
	}

	if err := s.ruleStore.IncrementSimulation(ctx, ruleID); err != nil {
		return nil, err
	}

	matched := rule.Matches(state)
	result := &domain.SimulationResult{
		Success:    matched,
		Confidence: rule.SuccessRate,
	}
	if matched {
		result.Reasoning = "All condition keys present in state; rule " + rule.RuleName + " would apply"
		result.SimulatedOutcome = rule.Action
	} else {
		result.Reasoning = "Condition keys missing from state; rule " + rule.RuleName + " would not apply"
	}

	s.logger.Debug("mental simulation",
		zap.String("rule_id", ruleID.String()),
		zap.Bool("matched", matched))
	return result, nil
}

// UpdateRulePerformance moves the rule's success rate toward the outcome's
// reward by an exponential moving average step.
func (s *MemoryService) UpdateRulePerformance(ctx context.Context, ruleID uuid.UUID, outcome domain.OutcomeType) (*domain.Rule, error) {
	if !domain.ValidOutcomeType(string(outcome)) {
		return nil, ErrInvalidRuleOutcome
	}

	rule, err := s.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	newRate := EMAUpdate(rule.SuccessRate, outcome.Reward(), rule.LearningRate)
	at := s.now()
	if err := s.ruleStore.RecordApplication(ctx, ruleID, newRate, outcome, at); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	s.logger.Debug("rule performance updated",
		zap.String("rule_id", ruleID.String()),
		zap.String("outcome", string(outcome)),
		zap.Float64("old_rate", rule.SuccessRate),
		zap.Float64("new_rate", newRate))

	rule.SuccessRate = newRate
	rule.ApplicationCount++
	rule.LastApplicationOutcome = &outcome
	rule.LastAppliedAt = &at
	return rule, nil
}

// EMAUpdate returns old + rate*(reward-old).
func EMAUpdate(old, reward, rate float64) float64 {
	return old + rate*(reward-old)
}

// SetRuleEnabled turns a rule on or off for ranking.
func (s *MemoryService) SetRuleEnabled(ctx context.Context, ruleID uuid.UUID, enabled bool) error {
	if err := s.ruleStore.SetEnabled(ctx, ruleID, enabled); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRuleNotFound
		}
		return err
	}
	return nil
}

// GetBestRules ranks all enabled rules by priority then success rate, and only
// afterwards keeps those whose condition matches state.
func (s *MemoryService) GetBestRules(ctx context.Context, agentID string, state map[string]any, limit int) ([]domain.Rule, error) {
	if agentID == "" {
		return nil, ErrAgentIDMissing
	}
	if limit <= 0 {
		limit = DefaultBestRulesLimit
	}

	all, err := s.ruleStore.ListByAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	enabled := make([]domain.Rule, 0, len(all))
	for _, r := range all {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}

	sort.SliceStable(enabled, func(i, j int) bool {
		if enabled[i].Priority != enabled[j].Priority {
			return enabled[i].Priority > enabled[j].Priority
		}
		return enabled[i].SuccessRate > enabled[j].SuccessRate
	})

	best := make([]domain.Rule, 0, min(limit, len(enabled)))
	for i := range enabled {
		if !enabled[i].Matches(state) {
			continue
		}
		best = append(best, enabled[i])
		if len(best) == limit {
			break
		}
	}
	return best, nil
}
