package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EpisodeStore persists episodic memories.
type EpisodeStore interface {
	Create(ctx context.Context, e *Episode) error
	List(ctx context.Context, filter EpisodeFilter) ([]Episode, error)
	// RecordRetrieval increments retrieval_count and stamps last_retrieved_at
	// for every id in one batch.
	RecordRetrieval(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// SemanticStore persists generalized patterns. Concept is unique per agent.
type SemanticStore interface {
	Create(ctx context.Context, m *SemanticMemory) error
	Update(ctx context.Context, m *SemanticMemory) error
	GetByConcept(ctx context.Context, agentID string, concept string) (*SemanticMemory, error)
	ListByAgent(ctx context.Context, agentID string) ([]SemanticMemory, error)
}

// RuleStore persists procedural rules. RuleName is unique per agent.
type RuleStore interface {
	Create(ctx context.Context, r *Rule) error
	// UpdateDefinition overwrites condition, action, description, priority and
	// learning rate, leaving learned statistics untouched.
	UpdateDefinition(ctx context.Context, r *Rule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Rule, error)
	GetByName(ctx context.Context, agentID string, ruleName string) (*Rule, error)
	ListByAgent(ctx context.Context, agentID string) ([]Rule, error)
	IncrementSimulation(ctx context.Context, id uuid.UUID) error
	RecordApplication(ctx context.Context, id uuid.UUID, successRate float64, outcome OutcomeType, at time.Time) error
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
}

// Pinger reports backend liveness for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}
