package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tangoverse/mneme/internal/domain"
)

// EpisodeStore persists episodes in Postgres.
type EpisodeStore struct {
	db *pgxpool.Pool
}

// NewEpisodeStore creates a new episode store.
func NewEpisodeStore(db *pgxpool.Pool) *EpisodeStore {
	return &EpisodeStore{db: db}
}

func (s *EpisodeStore) Create(ctx context.Context, e *domain.Episode) error {
	contextJSON, err := json.Marshal(nonNilMap(e.Context))
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO episodic_memories (
			agent_id, page_id, event_type, context, outcome,
			surprise_score, emotional_valence, salience,
			retrieval_count, occurred_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10
		) RETURNING id`,
		e.AgentID, e.PageID, e.EventType, contextJSON, string(e.Outcome),
		e.SurpriseScore, e.EmotionalValence, e.Salience,
		e.RetrievalCount, e.Timestamp,
	).Scan(&e.ID)
}

// List builds the WHERE clause from the set filter fields; ordering and limit come last.
func (s *EpisodeStore) List(ctx context.Context, filter domain.EpisodeFilter) ([]domain.Episode, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.AgentID != "" {
		add("agent_id = $%d", filter.AgentID)
	}
	if filter.PageID != "" {
		add("page_id = $%d", filter.PageID)
	}
	if filter.EventType != "" {
		add("event_type = $%d", filter.EventType)
	}
	if filter.Outcome != "" {
		add("outcome = $%d", string(filter.Outcome))
	}
	if filter.MinSurprise != nil {
		add("surprise_score >= $%d", *filter.MinSurprise)
	}

	query := `SELECT id, agent_id, page_id, event_type, context, outcome,
			surprise_score, emotional_valence, salience,
			retrieval_count, last_retrieved_at, occurred_at
		FROM episodic_memories`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY occurred_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list episodes query: %w", err)
	}
	defer rows.Close()

	return s.scanEpisodes(rows)
}

func (s *EpisodeStore) RecordRetrieval(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx,
		`UPDATE episodic_memories
		SET retrieval_count = retrieval_count + 1, last_retrieved_at = $2
		WHERE id = ANY($1)`,
		ids, at,
	)
	return err
}

func (s *EpisodeStore) scanEpisodes(rows pgx.Rows) ([]domain.Episode, error) {
	var episodes []domain.Episode
	for rows.Next() {
		var e domain.Episode
		var contextJSON []byte
		var outcome string

		err := rows.Scan(
			&e.ID, &e.AgentID, &e.PageID, &e.EventType, &contextJSON, &outcome,
			&e.SurpriseScore, &e.EmotionalValence, &e.Salience,
			&e.RetrievalCount, &e.LastRetrievedAt, &e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan episode row: %w", err)
		}

		if len(contextJSON) > 0 {
			if err := json.Unmarshal(contextJSON, &e.Context); err != nil {
				return nil, fmt.Errorf("unmarshal context: %w", err)
			}
		}
		e.Outcome = domain.OutcomeType(outcome)

		episodes = append(episodes, e)
	}
	return episodes, rows.Err()
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
