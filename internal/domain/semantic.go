package domain

import (
	"time"

	"github.com/google/uuid"
)

// SemanticMemory is a pattern generalized from several similar successful episodes.
// EpisodeIDs are weak references; episodes are never owned by the pattern.
type SemanticMemory struct {
	ID               uuid.UUID      `json:"id"`
	AgentID          string         `json:"agent_id"`
	Concept          string         `json:"concept"`
	Pattern          map[string]any `json:"pattern"`
	Confidence       float64        `json:"confidence"`
	LearnedFromCount int            `json:"learned_from_count"`
	EpisodeIDs       []uuid.UUID    `json:"episode_ids"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
