package service

import (
	"errors"
	"time"

	"github.com/tangoverse/mneme/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrAgentIDMissing   = errors.New("agent_id is required")
	ErrEventTypeMissing = errors.New("event_type is required")
	ErrInvalidOutcome   = errors.New("invalid outcome type")
	ErrInvalidSurprise  = errors.New("surprise_score must be between 0 and 1")
)

// Memory defaults.
const (
	DefaultSurpriseScore       = 0.5
	HighSurpriseThreshold      = 0.7
	HighSalience               = 1.0
	BaseSalience               = 0.5
	DefaultRecallLimit         = 50
	DefaultMinEpisodes         = 3
	DefaultConfidenceThreshold = 0.6
	DefaultRuleLearningRate    = 0.1
	DefaultRuleSuccessRate     = 0.5
	DefaultBestRulesLimit      = 5
)

// MemoryConfig tunes chunking, recall and rule learning.
type MemoryConfig struct {
	MinEpisodes         int
	ConfidenceThreshold float64
	DefaultLearningRate float64
	RecallLimit         int
}

func (c MemoryConfig) withDefaults() MemoryConfig {
	if c.MinEpisodes <= 0 {
		c.MinEpisodes = DefaultMinEpisodes
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if c.DefaultLearningRate <= 0 {
		c.DefaultLearningRate = DefaultRuleLearningRate
	}
	if c.RecallLimit <= 0 {
		c.RecallLimit = DefaultRecallLimit
	}
	return c
}

// MemoryService records, recalls and generalizes agent experience across the
// episodic, semantic and procedural tiers.
type MemoryService struct {
	episodeStore  domain.EpisodeStore
	semanticStore domain.SemanticStore
	ruleStore     domain.RuleStore
	cfg           MemoryConfig
	now           func() time.Time
	logger        *zap.Logger
}

// NewMemoryService creates a new memory service.
func NewMemoryService(
	es domain.EpisodeStore,
	ss domain.SemanticStore,
	rs domain.RuleStore,
	cfg MemoryConfig,
	logger *zap.Logger,
) *MemoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryService{
		episodeStore:  es,
		semanticStore: ss,
		ruleStore:     rs,
		cfg:           cfg.withDefaults(),
		now:           time.Now,
		logger:        logger,
	}
}
