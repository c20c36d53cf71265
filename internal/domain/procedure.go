package domain

import (
	"time"

	"github.com/google/uuid"
)

// Rule is a procedural memory: when every key of Condition is present in the
// current state, Action applies. SuccessRate is learned from real applications
// only; simulations are counted separately.
type Rule struct {
	ID          uuid.UUID      `json:"id"`
	AgentID     string         `json:"agent_id"`
	RuleName    string         `json:"rule_name"`
	Condition   map[string]any `json:"condition"`
	Action      map[string]any `json:"action"`
	Description string         `json:"description,omitempty"`

	SuccessRate            float64      `json:"success_rate"`
	LearningRate           float64      `json:"learning_rate"`
	ApplicationCount       int          `json:"application_count"`
	LastApplicationOutcome *OutcomeType `json:"last_application_outcome,omitempty"`
	LastAppliedAt          *time.Time   `json:"last_applied_at,omitempty"`
	MentalSimulationCount  int          `json:"mental_simulation_count"`
	Priority               int          `json:"priority"`
	Enabled                bool         `json:"enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Matches reports whether every condition key exists in state. Values are not compared.
func (r *Rule) Matches(state map[string]any) bool {
	for key := range r.Condition {
		if _, ok := state[key]; !ok {
			return false
		}
	}
	return true
}

// SimulationResult is the outcome of evaluating a rule against a hypothetical state.
type SimulationResult struct {
	Success          bool           `json:"success"`
	Confidence       float64        `json:"confidence"`
	Reasoning        string         `json:"reasoning"`
	SimulatedOutcome map[string]any `json:"simulated_outcome"`
}
