package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/tangoverse/mneme/internal/domain"
	"go.uber.org/zap"
)

// RecordEpisodeInput is the input for recording a new episode.
type RecordEpisodeInput struct {
	AgentID       string
	PageID        string
	EventType     string
	Context       map[string]any
	Outcome       domain.OutcomeType
	SurpriseScore *float64 // defaults to DefaultSurpriseScore
}

// RecordEpisode stores an experience and then tries to chunk recent successful
// episodes of the same event type into a semantic pattern.
func (s *MemoryService) RecordEpisode(ctx context.Context, input RecordEpisodeInput) (*domain.Episode, error) {
	if input.AgentID == "" {
		return nil, ErrAgentIDMissing
	}
	if input.EventType == "" {
		return nil, ErrEventTypeMissing
	}
	if !domain.ValidOutcomeType(string(input.Outcome)) {
		return nil, ErrInvalidOutcome
	}

	surprise := DefaultSurpriseScore
	if input.SurpriseScore != nil {
		surprise = *input.SurpriseScore
	}
	if surprise < 0 || surprise > 1 {
		return nil, ErrInvalidSurprise
	}

	salience := BaseSalience
	if surprise > HighSurpriseThreshold {
		salience = HighSalience
	}

	ctxPayload := input.Context
	if ctxPayload == nil {
		ctxPayload = map[string]any{}
	}

	episode := &domain.Episode{
		AgentID:          input.AgentID,
		PageID:           input.PageID,
		EventType:        input.EventType,
		Context:          ctxPayload,
		Outcome:          input.Outcome,
		SurpriseScore:    surprise,
		EmotionalValence: input.Outcome.Valence(),
		Salience:         salience,
		Timestamp:        s.now(),
	}

	if err := s.episodeStore.Create(ctx, episode); err != nil {
		return nil, err
	}

	// Chunking is a side effect; the episode is already stored.
	if err := s.attemptChunking(ctx, input.AgentID, input.EventType); err != nil {
		s.logger.Warn("chunking failed",
			zap.String("agent_id", input.AgentID),
			zap.String("event_type", input.EventType),
			zap.Error(err))
	}

	return episode, nil
}

// RecallFilter narrows episode recall. Zero values mean no constraint.
type RecallFilter struct {
	PageID      string
	EventType   string
	MinSurprise *float64
	Limit       int
}

// RecallEpisodes returns matching episodes newest first and counts the recall
// against every returned episode.
func (s *MemoryService) RecallEpisodes(ctx context.Context, agentID string, filter RecallFilter) ([]domain.Episode, error) {
	if agentID == "" {
		return nil, ErrAgentIDMissing
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = s.cfg.RecallLimit
	}

	episodes, err := s.episodeStore.List(ctx, domain.EpisodeFilter{
		AgentID:     agentID,
		PageID:      filter.PageID,
		EventType:   filter.EventType,
		MinSurprise: filter.MinSurprise,
		Limit:       limit,
	})
	if err != nil {
		return nil, err
	}
	if len(episodes) == 0 {
		return []domain.Episode{}, nil
	}

	ids := make([]uuid.UUID, len(episodes))
	for i := range episodes {
		ids[i] = episodes[i].ID
	}

	at := s.now()
	if err := s.episodeStore.RecordRetrieval(ctx, ids, at); err != nil {
		return nil, err
	}

	for i := range episodes {
		episodes[i].RetrievalCount++
		retrievedAt := at
		episodes[i].LastRetrievedAt = &retrievedAt
	}

	return episodes, nil
}
