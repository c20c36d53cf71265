package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tangoverse/mneme/internal/domain"
)

// SemanticStore persists semantic patterns in Postgres.
type SemanticStore struct {
	db *pgxpool.Pool
}

// NewSemanticStore creates a new semantic store.
func NewSemanticStore(db *pgxpool.Pool) *SemanticStore {
	return &SemanticStore{db: db}
}

func (s *SemanticStore) Create(ctx context.Context, m *domain.SemanticMemory) error {
	patternJSON, err := json.Marshal(nonNilMap(m.Pattern))
	if err != nil {
		return fmt.Errorf("marshal pattern: %w", err)
	}
	if m.EpisodeIDs == nil {
		m.EpisodeIDs = []uuid.UUID{}
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO semantic_memories (agent_id, concept, pattern, confidence, learned_from_count, episode_ids)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		m.AgentID, m.Concept, patternJSON, m.Confidence, m.LearnedFromCount, m.EpisodeIDs,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *SemanticStore) Update(ctx context.Context, m *domain.SemanticMemory) error {
	patternJSON, err := json.Marshal(nonNilMap(m.Pattern))
	if err != nil {
		return fmt.Errorf("marshal pattern: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`UPDATE semantic_memories
		SET pattern = $2, confidence = $3, learned_from_count = $4, episode_ids = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		m.ID, patternJSON, m.Confidence, m.LearnedFromCount, m.EpisodeIDs,
	).Scan(&m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *SemanticStore) GetByConcept(ctx context.Context, agentID string, concept string) (*domain.SemanticMemory, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, agent_id, concept, pattern, confidence, learned_from_count, episode_ids, created_at, updated_at
		FROM semantic_memories WHERE agent_id = $1 AND concept = $2`,
		agentID, concept,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	memories, err := s.scanSemantic(rows)
	if err != nil {
		return nil, err
	}
	if len(memories) == 0 {
		return nil, ErrNotFound
	}
	return &memories[0], nil
}

func (s *SemanticStore) ListByAgent(ctx context.Context, agentID string) ([]domain.SemanticMemory, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, agent_id, concept, pattern, confidence, learned_from_count, episode_ids, created_at, updated_at
		FROM semantic_memories WHERE agent_id = $1
		ORDER BY confidence DESC, updated_at DESC`,
		agentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanSemantic(rows)
}

func (s *SemanticStore) scanSemantic(rows pgx.Rows) ([]domain.SemanticMemory, error) {
	var memories []domain.SemanticMemory
	for rows.Next() {
		var m domain.SemanticMemory
		var patternJSON []byte
		err := rows.Scan(
			&m.ID, &m.AgentID, &m.Concept, &patternJSON, &m.Confidence,
			&m.LearnedFromCount, &m.EpisodeIDs, &m.CreatedAt, &m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan semantic row: %w", err)
		}
		if len(patternJSON) > 0 {
			if err := json.Unmarshal(patternJSON, &m.Pattern); err != nil {
				return nil, fmt.Errorf("unmarshal pattern: %w", err)
			}
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}
