package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/google/uuid"
	"github.com/tangoverse/mneme/internal/domain"
	"github.com/tangoverse/mneme/internal/store"
	"go.uber.org/zap"
)

const (
	MaxChunkConfidence       = 0.9
	MaxSemanticConfidence    = 0.95
	SemanticReinforcementGap = 0.1
)

// ConceptKey names the semantic pattern learned for one page and event type.
func ConceptKey(eventType, pageID string) string {
	return fmt.Sprintf("%s:%s", eventType, pageID)
}

// ChunkConfidence is the confidence of a pattern distilled from n episodes.
func ChunkConfidence(n int) float64 {
	return math.Min(float64(n)/10, MaxChunkConfidence)
}

// attemptChunking generalizes recent successful episodes of one event type
// into semantic patterns, one per page with enough support.
func (s *MemoryService) attemptChunking(ctx context.Context, agentID, eventType string) error {
	minEpisodes := s.cfg.MinEpisodes

	recent, err := s.episodeStore.List(ctx, domain.EpisodeFilter{
		AgentID:   agentID,
		EventType: eventType,
		Outcome:   domain.OutcomeSuccess,
		Limit:     2 * minEpisodes,
	})
	if err != nil {
		return fmt.Errorf("list recent successes: %w", err)
	}
	if len(recent) < minEpisodes {
		return nil
	}

	var pageOrder []string
	groups := make(map[string][]domain.Episode)
	for _, e := range recent {
		if _, seen := groups[e.PageID]; !seen {
			pageOrder = append(pageOrder, e.PageID)
		}
		groups[e.PageID] = append(groups[e.PageID], e)
	}

	for _, pageID := range pageOrder {
		group := groups[pageID]
		if len(group) < minEpisodes {
			continue
		}
		if err := s.upsertPattern(ctx, agentID, eventType, pageID, group); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryService) upsertPattern(ctx context.Context, agentID, eventType, pageID string, group []domain.Episode) error {
	concept := ConceptKey(eventType, pageID)
	ids := make([]uuid.UUID, len(group))
	contexts := make([]map[string]any, len(group))
	for i, e := range group {
		ids[i] = e.ID
		contexts[i] = e.Context
	}

	existing, err := s.semanticStore.GetByConcept(ctx, agentID, concept)
	switch {
	case err == nil:
		existing.Confidence = math.Min(existing.Confidence+SemanticReinforcementGap, MaxSemanticConfidence)
		existing.EpisodeIDs = mergeIDs(existing.EpisodeIDs, ids)
		existing.LearnedFromCount = len(existing.EpisodeIDs)
		existing.Pattern = reinforcedPattern(existing, CommonContext(contexts))
		if err := s.semanticStore.Update(ctx, existing); err != nil {
			return fmt.Errorf("reinforce pattern %s: %w", concept, err)
		}
		s.logger.Debug("semantic pattern reinforced",
			zap.String("agent_id", agentID),
			zap.String("concept", concept),
			zap.Float64("confidence", existing.Confidence))
		return nil
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("get pattern %s: %w", concept, err)
	}

	confidence := ChunkConfidence(len(group))
	if confidence < s.cfg.ConfidenceThreshold {
		return nil
	}

	pattern := &domain.SemanticMemory{
		AgentID: agentID,
		Concept: concept,
		Pattern: map[string]any{
			"event_type":     eventType,
			"page_id":        pageID,
			"common_context": CommonContext(contexts),
			"sample_size":    len(group),
		},
		Confidence:       confidence,
		LearnedFromCount: len(group),
		EpisodeIDs:       ids,
	}
	if err := s.semanticStore.Create(ctx, pattern); err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.logger.Debug("semantic pattern created concurrently", zap.String("concept", concept))
			return nil
		}
		return fmt.Errorf("create pattern %s: %w", concept, err)
	}

	s.logger.Info("learned semantic pattern",
		zap.String("agent_id", agentID),
		zap.String("concept", concept),
		zap.Int("episodes", len(group)),
		zap.Float64("confidence", confidence))
	return nil
}

// CommonContext keeps the keys present in every context with an identical value.
func CommonContext(contexts []map[string]any) map[string]any {
	common := map[string]any{}
	if len(contexts) == 0 {
		return common
	}
	for key, value := range contexts[0] {
		shared := true
		for _, c := range contexts[1:] {
			other, ok := c[key]
			if !ok || !reflect.DeepEqual(value, other) {
				shared = false
				break
			}
		}
		if shared {
			common[key] = value
		}
	}
	return common
}

// reinforcedPattern narrows the stored common context to what the new group
// shares too and refreshes the sample size.
func reinforcedPattern(m *domain.SemanticMemory, groupCommon map[string]any) map[string]any {
	pattern := make(map[string]any, len(m.Pattern)+2)
	for k, v := range m.Pattern {
		pattern[k] = v
	}
	common := groupCommon
	if prev, ok := m.Pattern["common_context"].(map[string]any); ok {
		common = CommonContext([]map[string]any{prev, groupCommon})
	}
	pattern["common_context"] = common
	pattern["sample_size"] = m.LearnedFromCount
	return pattern
}

func mergeIDs(existing, incoming []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(existing)+len(incoming))
	merged := make([]uuid.UUID, 0, len(existing)+len(incoming))
	for _, list := range [][]uuid.UUID{existing, incoming} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			merged = append(merged, id)
		}
	}
	return merged
}

// ListSemantic returns the agent's learned patterns, most confident first.
func (s *MemoryService) ListSemantic(ctx context.Context, agentID string) ([]domain.SemanticMemory, error) {
	if agentID == "" {
		return nil, ErrAgentIDMissing
	}
	return s.semanticStore.ListByAgent(ctx, agentID)
}

var ErrPatternNotFound = errors.New("semantic pattern not found")

// GetSemantic returns the pattern learned for a concept.
func (s *MemoryService) GetSemantic(ctx context.Context, agentID, concept string) (*domain.SemanticMemory, error) {
	m, err := s.semanticStore.GetByConcept(ctx, agentID, concept)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPatternNotFound
		}
		return nil, err
	}
	return m, nil
}
