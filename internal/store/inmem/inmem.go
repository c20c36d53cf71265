// Package inmem provides map-backed implementations of the memory-tier stores
// for local development and tests. Nothing survives a restart.
package inmem

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tangoverse/mneme/internal/domain"
	"github.com/tangoverse/mneme/internal/store"
	"go.uber.org/zap"
)

// Config configures a Store.
type Config struct {
	// Now is used for generated timestamps. Defaults to time.Now.
	Now func() time.Time
}

type episodeEntry struct {
	episode domain.Episode
	seq     uint64
}

// Store holds all three memory tiers behind one lock.
type Store struct {
	mu       sync.RWMutex
	episodes map[uuid.UUID]*episodeEntry
	semantic map[uuid.UUID]*domain.SemanticMemory
	rules    map[uuid.UUID]*domain.Rule
	seq      uint64

	now    func() time.Time
	logger *zap.Logger
}

// New creates an empty in-memory store. A nil logger is replaced by a no-op one.
func New(cfg Config, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		episodes: make(map[uuid.UUID]*episodeEntry),
		semantic: make(map[uuid.UUID]*domain.SemanticMemory),
		rules:    make(map[uuid.UUID]*domain.Rule),
		now:      now,
		logger:   logger.With(zap.String("component", "store_inmem")),
	}
}

// Episodes returns the store as a domain.EpisodeStore.
func (s *Store) Episodes() *EpisodeStore { return &EpisodeStore{s} }

// Semantic returns the store as a domain.SemanticStore.
func (s *Store) Semantic() *SemanticStore { return &SemanticStore{s} }

// Rules returns the store as a domain.RuleStore.
func (s *Store) Rules() *RuleStore { return &RuleStore{s} }

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// EpisodeStore is the episode tier of a Store.
type EpisodeStore struct{ s *Store }

func (es *EpisodeStore) Create(ctx context.Context, e *domain.Episode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := es.s
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = uuid.New()
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	s.seq++
	stored := cloneEpisode(*e)
	s.episodes[e.ID] = &episodeEntry{episode: stored, seq: s.seq}
	return nil
}

func (es *EpisodeStore) List(ctx context.Context, filter domain.EpisodeFilter) ([]domain.Episode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := es.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*episodeEntry
	for _, entry := range s.episodes {
		if filter.Matches(&entry.episode) {
			matched = append(matched, entry)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		ti, tj := matched[i].episode.Timestamp, matched[j].episode.Timestamp
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return matched[i].seq > matched[j].seq
	})

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	results := make([]domain.Episode, 0, len(matched))
	for _, entry := range matched {
		results = append(results, cloneEpisode(entry.episode))
	}
	return results, nil
}

func (es *EpisodeStore) RecordRetrieval(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := es.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		entry, ok := s.episodes[id]
		if !ok {
			s.logger.Debug("retrieval recorded for unknown episode", zap.String("episode_id", id.String()))
			continue
		}
		entry.episode.RetrievalCount++
		retrievedAt := at
		entry.episode.LastRetrievedAt = &retrievedAt
	}
	return nil
}

// SemanticStore is the semantic tier of a Store.
type SemanticStore struct{ s *Store }

func (ss *SemanticStore) Create(ctx context.Context, m *domain.SemanticMemory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := ss.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.semantic {
		if existing.AgentID == m.AgentID && existing.Concept == m.Concept {
			return store.ErrConflict
		}
	}

	now := s.now()
	m.ID = uuid.New()
	m.CreatedAt = now
	m.UpdatedAt = now
	stored := cloneSemantic(*m)
	s.semantic[m.ID] = &stored
	return nil
}

func (ss *SemanticStore) Update(ctx context.Context, m *domain.SemanticMemory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := ss.s
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.semantic[m.ID]
	if !ok {
		return store.ErrNotFound
	}
	m.UpdatedAt = s.now()
	m.CreatedAt = existing.CreatedAt
	stored := cloneSemantic(*m)
	s.semantic[m.ID] = &stored
	return nil
}

func (ss *SemanticStore) GetByConcept(ctx context.Context, agentID string, concept string) (*domain.SemanticMemory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := ss.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.semantic {
		if m.AgentID == agentID && m.Concept == concept {
			out := cloneSemantic(*m)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (ss *SemanticStore) ListByAgent(ctx context.Context, agentID string) ([]domain.SemanticMemory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := ss.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []domain.SemanticMemory
	for _, m := range s.semantic {
		if m.AgentID == agentID {
			results = append(results, cloneSemantic(*m))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].UpdatedAt.After(results[j].UpdatedAt)
	})
	return results, nil
}

// RuleStore is the procedural tier of a Store.
type RuleStore struct{ s *Store }

func (rs *RuleStore) Create(ctx context.Context, r *domain.Rule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := rs.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.rules {
		if existing.AgentID == r.AgentID && existing.RuleName == r.RuleName {
			return store.ErrConflict
		}
	}

	now := s.now()
	r.ID = uuid.New()
	r.CreatedAt = now
	r.UpdatedAt = now
	stored := cloneRule(*r)
	s.rules[r.ID] = &stored
	return nil
}

func (rs *RuleStore) UpdateDefinition(ctx context.Context, r *domain.Rule) error {
	return rs.mutate(ctx, r.ID, func(existing *domain.Rule) {
		existing.Condition = maps.Clone(r.Condition)
		existing.Action = maps.Clone(r.Action)
		existing.Description = r.Description
		existing.Priority = r.Priority
		existing.LearningRate = r.LearningRate
	})
}

func (rs *RuleStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := rs.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneRule(*r)
	return &out, nil
}

func (rs *RuleStore) GetByName(ctx context.Context, agentID string, ruleName string) (*domain.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := rs.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rules {
		if r.AgentID == agentID && r.RuleName == ruleName {
			out := cloneRule(*r)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (rs *RuleStore) ListByAgent(ctx context.Context, agentID string) ([]domain.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := rs.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []domain.Rule
	for _, r := range s.rules {
		if r.AgentID == agentID {
			results = append(results, cloneRule(*r))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.Before(results[j].CreatedAt)
		}
		return results[i].ID.String() < results[j].ID.String()
	})
	return results, nil
}

func (rs *RuleStore) IncrementSimulation(ctx context.Context, id uuid.UUID) error {
	return rs.mutate(ctx, id, func(r *domain.Rule) {
		r.MentalSimulationCount++
	})
}

func (rs *RuleStore) RecordApplication(ctx context.Context, id uuid.UUID, successRate float64, outcome domain.OutcomeType, at time.Time) error {
	return rs.mutate(ctx, id, func(r *domain.Rule) {
		r.SuccessRate = successRate
		r.ApplicationCount++
		o := outcome
		r.LastApplicationOutcome = &o
		appliedAt := at
		r.LastAppliedAt = &appliedAt
	})
}

func (rs *RuleStore) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	return rs.mutate(ctx, id, func(r *domain.Rule) {
		r.Enabled = enabled
	})
}

func (rs *RuleStore) mutate(ctx context.Context, id uuid.UUID, fn func(r *domain.Rule)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := rs.s
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(r)
	r.UpdatedAt = s.now()
	return nil
}

func cloneEpisode(e domain.Episode) domain.Episode {
	e.Context = maps.Clone(e.Context)
	if e.LastRetrievedAt != nil {
		t := *e.LastRetrievedAt
		e.LastRetrievedAt = &t
	}
	return e
}

func cloneSemantic(m domain.SemanticMemory) domain.SemanticMemory {
	m.Pattern = maps.Clone(m.Pattern)
	m.EpisodeIDs = slices.Clone(m.EpisodeIDs)
	return m
}

func cloneRule(r domain.Rule) domain.Rule {
	r.Condition = maps.Clone(r.Condition)
	r.Action = maps.Clone(r.Action)
	if r.LastApplicationOutcome != nil {
		o := *r.LastApplicationOutcome
		r.LastApplicationOutcome = &o
	}
	if r.LastAppliedAt != nil {
		t := *r.LastAppliedAt
		r.LastAppliedAt = &t
	}
	return r
}
