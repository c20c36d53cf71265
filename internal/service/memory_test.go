package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/tangoverse/mneme/internal/domain"
	"github.com/tangoverse/mneme/internal/store/inmem"
	"go.uber.org/zap"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func setupMemoryTest(cfg MemoryConfig) (*MemoryService, *inmem.Store) {
	clock := newTestClock()
	st := inmem.New(inmem.Config{Now: clock.now}, zap.NewNop())
	svc := NewMemoryService(st.Episodes(), st.Semantic(), st.Rules(), cfg, zap.NewNop())
	svc.now = clock.now
	return svc, st
}

// MockEpisodeStore mocks the EpisodeStore interface.
type MockEpisodeStore struct {
	mock.Mock
}

func (m *MockEpisodeStore) Create(ctx context.Context, e *domain.Episode) error {
	args := m.Called(ctx, e)
	if args.Error(0) == nil {
		e.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockEpisodeStore) List(ctx context.Context, filter domain.EpisodeFilter) ([]domain.Episode, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Episode), args.Error(1)
}

func (m *MockEpisodeStore) RecordRetrieval(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	args := m.Called(ctx, ids, at)
	return args.Error(0)
}

// MockSemanticStore mocks the SemanticStore interface.
type MockSemanticStore struct {
	mock.Mock
}

func (m *MockSemanticStore) Create(ctx context.Context, s *domain.SemanticMemory) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSemanticStore) Update(ctx context.Context, s *domain.SemanticMemory) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSemanticStore) GetByConcept(ctx context.Context, agentID string, concept string) (*domain.SemanticMemory, error) {
	args := m.Called(ctx, agentID, concept)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SemanticMemory), args.Error(1)
}

func (m *MockSemanticStore) ListByAgent(ctx context.Context, agentID string) ([]domain.SemanticMemory, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SemanticMemory), args.Error(1)
}
