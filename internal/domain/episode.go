package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeType represents the result of an episode or a rule application.
type OutcomeType string

const (
	OutcomeSuccess OutcomeType = "success"
	OutcomeFailure OutcomeType = "failure"
	OutcomePartial OutcomeType = "partial"
)

// ValidOutcomeType reports whether s names a known outcome.
func ValidOutcomeType(s string) bool {
	switch OutcomeType(s) {
	case OutcomeSuccess, OutcomeFailure, OutcomePartial:
		return true
	}
	return false
}

// Valence maps an outcome to its emotional valence.
func (o OutcomeType) Valence() float64 {
	switch o {
	case OutcomeSuccess:
		return 1.0
	case OutcomeFailure:
		return -1.0
	default:
		return 0.0
	}
}

// Reward maps an outcome to the reinforcement signal used for rule learning.
func (o OutcomeType) Reward() float64 {
	switch o {
	case OutcomeSuccess:
		return 1.0
	case OutcomePartial:
		return 0.5
	default:
		return 0.0
	}
}

// Episode is a single recorded experience of an agent.
// Everything except the retrieval tracking fields is immutable after creation.
type Episode struct {
	ID        uuid.UUID      `json:"id"`
	AgentID   string         `json:"agent_id"`
	PageID    string         `json:"page_id"`
	EventType string         `json:"event_type"`
	Context   map[string]any `json:"context"`
	Outcome   OutcomeType    `json:"outcome"`

	SurpriseScore    float64 `json:"surprise_score"`
	EmotionalValence float64 `json:"emotional_valence"`
	Salience         float64 `json:"salience"`

	RetrievalCount  int        `json:"retrieval_count"`
	LastRetrievedAt *time.Time `json:"last_retrieved_at,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// EpisodeFilter selects episodes. Set fields AND together; results are
// ordered newest first and truncated to Limit.
type EpisodeFilter struct {
	AgentID     string
	PageID      string
	EventType   string
	Outcome     OutcomeType
	MinSurprise *float64
	Limit       int
}

// Matches reports whether e satisfies every set predicate of the filter.
func (f EpisodeFilter) Matches(e *Episode) bool {
	if f.AgentID != "" && e.AgentID != f.AgentID {
		return false
	}
	if f.PageID != "" && e.PageID != f.PageID {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if f.MinSurprise != nil && e.SurpriseScore < *f.MinSurprise {
		return false
	}
	return true
}
