package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tangoverse/mneme/internal/domain"
)

const ruleColumns = `id, agent_id, rule_name, condition, action, description,
	success_rate, learning_rate, application_count, last_application_outcome, last_applied_at,
	mental_simulation_count, priority, enabled, created_at, updated_at`

// RuleStore persists procedural rules in Postgres.
type RuleStore struct {
	db *pgxpool.Pool
}

// NewRuleStore creates a new rule store.
func NewRuleStore(db *pgxpool.Pool) *RuleStore {
	return &RuleStore{db: db}
}

func (s *RuleStore) Create(ctx context.Context, r *domain.Rule) error {
	conditionJSON, actionJSON, err := marshalRulePayloads(r)
	if err != nil {
		return err
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO procedural_memories (
			agent_id, rule_name, condition, action, description,
			success_rate, learning_rate, application_count,
			mental_simulation_count, priority, enabled
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11
		) RETURNING id, created_at, updated_at`,
		r.AgentID, r.RuleName, conditionJSON, actionJSON, r.Description,
		r.SuccessRate, r.LearningRate, r.ApplicationCount,
		r.MentalSimulationCount, r.Priority, r.Enabled,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *RuleStore) UpdateDefinition(ctx context.Context, r *domain.Rule) error {
	conditionJSON, actionJSON, err := marshalRulePayloads(r)
	if err != nil {
		return err
	}

	err = s.db.QueryRow(ctx,
		`UPDATE procedural_memories
		SET condition = $2, action = $3, description = $4, priority = $5, learning_rate = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		r.ID, conditionJSON, actionJSON, r.Description, r.Priority, r.LearningRate,
	).Scan(&r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *RuleStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Rule, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+ruleColumns+` FROM procedural_memories WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanOne(rows)
}

func (s *RuleStore) GetByName(ctx context.Context, agentID string, ruleName string) (*domain.Rule, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+ruleColumns+` FROM procedural_memories WHERE agent_id = $1 AND rule_name = $2`,
		agentID, ruleName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanOne(rows)
}

func (s *RuleStore) ListByAgent(ctx context.Context, agentID string) ([]domain.Rule, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+ruleColumns+` FROM procedural_memories WHERE agent_id = $1
		ORDER BY created_at ASC, id ASC`,
		agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanRules(rows)
}

func (s *RuleStore) IncrementSimulation(ctx context.Context, id uuid.UUID) error {
	return s.execOne(ctx,
		`UPDATE procedural_memories SET mental_simulation_count = mental_simulation_count + 1, updated_at = NOW() WHERE id = $1`,
		id)
}

func (s *RuleStore) RecordApplication(ctx context.Context, id uuid.UUID, successRate float64, outcome domain.OutcomeType, at time.Time) error {
	return s.execOne(ctx,
		`UPDATE procedural_memories
		SET success_rate = $2, application_count = application_count + 1,
			last_application_outcome = $3, last_applied_at = $4, updated_at = NOW()
		WHERE id = $1`,
		id, successRate, string(outcome), at)
}

func (s *RuleStore) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	return s.execOne(ctx,
		`UPDATE procedural_memories SET enabled = $2, updated_at = NOW() WHERE id = $1`,
		id, enabled)
}

func (s *RuleStore) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RuleStore) scanOne(rows pgx.Rows) (*domain.Rule, error) {
	rules, err := s.scanRules(rows)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, ErrNotFound
	}
	return &rules[0], nil
}

func (s *RuleStore) scanRules(rows pgx.Rows) ([]domain.Rule, error) {
	var rules []domain.Rule
	for rows.Next() {
		var r domain.Rule
		var conditionJSON, actionJSON []byte
		var lastOutcome *string

		err := rows.Scan(
			&r.ID, &r.AgentID, &r.RuleName, &conditionJSON, &actionJSON, &r.Description,
			&r.SuccessRate, &r.LearningRate, &r.ApplicationCount, &lastOutcome, &r.LastAppliedAt,
			&r.MentalSimulationCount, &r.Priority, &r.Enabled, &r.CreatedAt, &r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan rule row: %w", err)
		}

		if len(conditionJSON) > 0 {
			if err := json.Unmarshal(conditionJSON, &r.Condition); err != nil {
				return nil, fmt.Errorf("unmarshal condition: %w", err)
			}
		}
		if len(actionJSON) > 0 {
			if err := json.Unmarshal(actionJSON, &r.Action); err != nil {
				return nil, fmt.Errorf("unmarshal action: %w", err)
			}
		}
		if lastOutcome != nil {
			o := domain.OutcomeType(*lastOutcome)
			r.LastApplicationOutcome = &o
		}

		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func marshalRulePayloads(r *domain.Rule) ([]byte, []byte, error) {
	conditionJSON, err := json.Marshal(nonNilMap(r.Condition))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal condition: %w", err)
	}
	actionJSON, err := json.Marshal(nonNilMap(r.Action))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal action: %w", err)
	}
	return conditionJSON, actionJSON, nil
}
