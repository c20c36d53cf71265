package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tangoverse/mneme/internal/domain"
	"github.com/tangoverse/mneme/internal/store/inmem"
	"go.uber.org/zap"
)

func surprise(v float64) *float64 { return &v }

func TestMemoryService_RecordEpisode(t *testing.T) {
	svc, _ := setupMemoryTest(MemoryConfig{})
	ctx := context.Background()

	tests := []struct {
		name         string
		outcome      domain.OutcomeType
		surprise     *float64
		wantValence  float64
		wantSalience float64
		wantSurprise float64
	}{
		{"success defaults", domain.OutcomeSuccess, nil, 1, 0.5, 0.5},
		{"surprising failure", domain.OutcomeFailure, surprise(0.9), -1, 1, 0.9},
		{"boundary surprise is not salient", domain.OutcomePartial, surprise(0.7), 0, 0.5, 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, err := svc.RecordEpisode(ctx, RecordEpisodeInput{
				AgentID:       "agent-1",
				PageID:        "checkout",
				EventType:     "submit",
				Context:       map[string]any{"button": "pay"},
				Outcome:       tt.outcome,
				SurpriseScore: tt.surprise,
			})
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, ep.ID)
			assert.Equal(t, tt.wantValence, ep.EmotionalValence)
			assert.Equal(t, tt.wantSalience, ep.Salience)
			assert.InDelta(t, tt.wantSurprise, ep.SurpriseScore, 1e-12)
			assert.Zero(t, ep.RetrievalCount)
			assert.Nil(t, ep.LastRetrievedAt)
		})
	}
}

func TestMemoryService_RecordEpisode_Validation(t *testing.T) {
	svc, _ := setupMemoryTest(MemoryConfig{})
	ctx := context.Background()

	_, err := svc.RecordEpisode(ctx, RecordEpisodeInput{EventType: "click", Outcome: domain.OutcomeSuccess})
	assert.ErrorIs(t, err, ErrAgentIDMissing)

	_, err = svc.RecordEpisode(ctx, RecordEpisodeInput{AgentID: "a", Outcome: domain.OutcomeSuccess})
	assert.ErrorIs(t, err, ErrEventTypeMissing)

	_, err = svc.RecordEpisode(ctx, RecordEpisodeInput{AgentID: "a", EventType: "click", Outcome: "meh"})
	assert.ErrorIs(t, err, ErrInvalidOutcome)

	_, err = svc.RecordEpisode(ctx, RecordEpisodeInput{AgentID: "a", EventType: "click", Outcome: domain.OutcomeSuccess, SurpriseScore: surprise(1.5)})
	assert.ErrorIs(t, err, ErrInvalidSurprise)
}

func TestMemoryService_RecordEpisode_StoreError(t *testing.T) {
	es := new(MockEpisodeStore)
	st := inmem.New(inmem.Config{}, nil)
	svc := NewMemoryService(es, st.Semantic(), st.Rules(), MemoryConfig{}, zap.NewNop())

	boom := errors.New("connection reset")
	es.On("Create", mock.Anything, mock.Anything).Return(boom)

	_, err := svc.RecordEpisode(context.Background(), RecordEpisodeInput{
		AgentID: "a", EventType: "click", Outcome: domain.OutcomeSuccess,
	})
	assert.ErrorIs(t, err, boom)
	es.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestMemoryService_RecordEpisode_ChunkingFailureIsNotFatal(t *testing.T) {
	st := inmem.New(inmem.Config{}, nil)
	ss := new(MockSemanticStore)
	svc := NewMemoryService(st.Episodes(), ss, st.Rules(), MemoryConfig{MinEpisodes: 1}, zap.NewNop())

	ss.On("GetByConcept", mock.Anything, "a", "click:home").Return(nil, errors.New("db down"))

	ep, err := svc.RecordEpisode(context.Background(), RecordEpisodeInput{
		AgentID: "a", PageID: "home", EventType: "click", Outcome: domain.OutcomeSuccess,
	})
	require.NoError(t, err)
	assert.NotNil(t, ep)
	ss.AssertExpectations(t)
}

func TestMemoryService_RecallEpisodes(t *testing.T) {
	svc, _ := setupMemoryTest(MemoryConfig{})
	ctx := context.Background()

	for i, page := range []string{"home", "settings", "home"} {
		_, err := svc.RecordEpisode(ctx, RecordEpisodeInput{
			AgentID:       "agent-1",
			PageID:        page,
			EventType:     "view",
			Outcome:       domain.OutcomeFailure,
			SurpriseScore: surprise(0.3 * float64(i)),
		})
		require.NoError(t, err)
	}

	got, err := svc.RecallEpisodes(ctx, "agent-1", RecallFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "home", got[0].PageID)
	assert.Equal(t, "settings", got[1].PageID)
	for _, ep := range got {
		assert.Equal(t, 1, ep.RetrievalCount)
		require.NotNil(t, ep.LastRetrievedAt)
	}

	got, err = svc.RecallEpisodes(ctx, "agent-1", RecallFilter{PageID: "home"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].RetrievalCount)

	got, err = svc.RecallEpisodes(ctx, "agent-1", RecallFilter{MinSurprise: surprise(0.5)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.6, got[0].SurpriseScore, 1e-9)

	got, err = svc.RecallEpisodes(ctx, "agent-1", RecallFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryService_RecallEpisodes_Empty(t *testing.T) {
	svc, _ := setupMemoryTest(MemoryConfig{})

	got, err := svc.RecallEpisodes(context.Background(), "nobody", RecallFilter{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = svc.RecallEpisodes(context.Background(), "", RecallFilter{})
	assert.ErrorIs(t, err, ErrAgentIDMissing)
}
