package service

import (
	"errors"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/tangoverse/mneme/internal/domain"
	"go.uber.org/zap"
)

var ErrUnknownBelief = errors.New("unknown belief")

// MinEvidenceProbability floors P(E) so the posterior never divides by zero.
const MinEvidenceProbability = 0.01

type beliefPrior struct {
	key        domain.BeliefKey
	hypothesis string
	prior      float64
}

var beliefPriors = []beliefPrior{
	{domain.BeliefPrefersTypeScript, "User prefers TypeScript over JavaScript", 0.7},
	{domain.BeliefPrefersReact, "User builds with React", 0.7},
	{domain.BeliefUsesSemicolons, "User writes semicolons", 0.8},
	{domain.BeliefPrefersSingleQuotes, "User prefers single-quoted strings", 0.6},
	{domain.BeliefWantsDetailedExplain, "User wants detailed explanations", 0.5},
	{domain.BeliefWantsCodeExamples, "User wants code examples", 0.8},
	{domain.BeliefHighQualityExpectations, "User holds high quality expectations", 0.9},
}

// BeliefEngine tracks the beliefs of one user session and the preference
// snapshot derived from them. State lives only in memory.
type BeliefEngine struct {
	mu          sync.RWMutex
	beliefs     map[domain.BeliefKey]*domain.Belief
	history     []domain.Evidence
	preferences domain.UserPreference
	now         func() time.Time
	logger      *zap.Logger
}

// NewBeliefEngine seeds every belief with its prior and merges overrides over
// the default preferences.
func NewBeliefEngine(overrides *domain.PreferenceOverrides, logger *zap.Logger) *BeliefEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &BeliefEngine{
		beliefs:     make(map[domain.BeliefKey]*domain.Belief, len(beliefPriors)),
		preferences: overrides.Apply(domain.DefaultUserPreference()),
		now:         time.Now,
		logger:      logger,
	}
	created := e.now()
	for _, p := range beliefPriors {
		e.beliefs[p.key] = &domain.Belief{
			Key:         p.key,
			Hypothesis:  p.hypothesis,
			Probability: p.prior,
			Evidence:    []domain.Evidence{},
			LastUpdated: created,
		}
	}
	return e
}

// BayesPosterior applies Bayes' rule with the complement hypothesis taking
// likelihood 1-L.
func BayesPosterior(prior, likelihood float64) float64 {
	pe := likelihood*prior + (1-likelihood)*(1-prior)
	if pe < MinEvidenceProbability {
		pe = MinEvidenceProbability
	}
	return clamp01(likelihood * prior / pe)
}

// UpdateBelief folds evidence into the named belief. An unknown key is logged
// and reported as ErrUnknownBelief; no state changes in that case.
func (e *BeliefEngine) UpdateBelief(key domain.BeliefKey, ev domain.Evidence) (domain.Belief, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	belief, ok := e.beliefs[key]
	if !ok {
		e.logger.Warn("belief not found, skipping update", zap.String("belief", string(key)))
		return domain.Belief{}, ErrUnknownBelief
	}

	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}

	likelihood := Likelihood(ev, key)
	prior := belief.Probability
	posterior := BayesPosterior(prior, likelihood)

	belief.Probability = posterior
	belief.Evidence = append(belief.Evidence, ev)
	belief.LastUpdated = e.now()
	e.history = append(e.history, ev)

	e.preferences = derivePreferences(e.preferences, e.probabilitiesLocked(), key)

	e.logger.Debug("belief updated",
		zap.String("belief", string(key)),
		zap.String("evidence_type", string(ev.Type)),
		zap.Float64("likelihood", likelihood),
		zap.Float64("prior", prior),
		zap.Float64("posterior", posterior))

	return cloneBelief(belief), nil
}

// GetBelief returns a copy of the named belief.
func (e *BeliefEngine) GetBelief(key domain.BeliefKey) (domain.Belief, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	b, ok := e.beliefs[key]
	if !ok {
		return domain.Belief{}, false
	}
	return cloneBelief(b), true
}

// GetAllBeliefs returns every belief in registry order.
func (e *BeliefEngine) GetAllBeliefs() []domain.Belief {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]domain.Belief, 0, len(beliefPriors))
	for _, p := range beliefPriors {
		out = append(out, cloneBelief(e.beliefs[p.key]))
	}
	return out
}

// GetPreferences returns the current preference snapshot.
func (e *BeliefEngine) GetPreferences() domain.UserPreference {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.preferences
}

// EvidenceHistory returns every evidence record applied, oldest first.
func (e *BeliefEngine) EvidenceHistory() []domain.Evidence {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.history)
}

// GetResponseParameters derives output parameters from belief probabilities.
// It has no side effects.
func (e *BeliefEngine) GetResponseParameters() domain.ResponseParameters {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p := e.probabilitiesLocked()
	style := domain.VerbosityBalanced
	switch detailed := p[domain.BeliefWantsDetailedExplain]; {
	case detailed > 0.7:
		style = domain.VerbosityDetailed
	case detailed < 0.3:
		style = domain.VerbosityConcise
	}

	return domain.ResponseParameters{
		Style:           style,
		IncludeExamples: p[domain.BeliefWantsCodeExamples] > 0.6,
		TechnicalLevel:  technicalLevel(p),
		QualityTarget:   p[domain.BeliefHighQualityExpectations],
	}
}

func (e *BeliefEngine) probabilitiesLocked() map[domain.BeliefKey]float64 {
	p := make(map[domain.BeliefKey]float64, len(e.beliefs))
	for k, b := range e.beliefs {
		p[k] = b.Probability
	}
	return p
}

// derivePreferences re-derives the preference fields backed by the belief
// that just changed. Fields backed by other beliefs, including constructor
// overrides, are left alone. A banded field whose belief sits between its
// low and high thresholds keeps its previous value.
func derivePreferences(prev domain.UserPreference, p map[domain.BeliefKey]float64, changed domain.BeliefKey) domain.UserPreference {
	next := prev

	switch changed {
	case domain.BeliefPrefersTypeScript:
		switch ts := p[changed]; {
		case ts > 0.8:
			next.PreferredLanguage = "typescript"
		case ts < 0.3:
			next.PreferredLanguage = "javascript"
		}
	case domain.BeliefPrefersReact:
		switch react := p[changed]; {
		case react > 0.8:
			next.Framework = "react"
		case react < 0.3:
			next.Framework = "none"
		}
	case domain.BeliefUsesSemicolons:
		if v, ok := band(p[changed], 0.3, 0.7); ok {
			next.CodeStyle.Semicolons = v
		}
	case domain.BeliefPrefersSingleQuotes:
		if v, ok := band(p[changed], 0.3, 0.7); ok {
			next.CodeStyle.SingleQuotes = v
		}
	case domain.BeliefWantsDetailedExplain:
		switch detailed := p[changed]; {
		case detailed > 0.7:
			next.Communication.Verbosity = domain.VerbosityDetailed
		case detailed < 0.3:
			next.Communication.Verbosity = domain.VerbosityConcise
		}
	case domain.BeliefWantsCodeExamples:
		if v, ok := band(p[changed], 0.4, 0.6); ok {
			next.Communication.IncludeExamples = v
		}
	case domain.BeliefHighQualityExpectations:
		next.QualityThreshold = math.Max(0.5, p[changed])
	}

	if changed == domain.BeliefPrefersTypeScript || changed == domain.BeliefHighQualityExpectations {
		next.Communication.TechnicalLevel = technicalLevel(p)
	}

	return next
}

// band returns (true, true) above high, (false, true) below low and
// (_, false) in between.
func band(prob, low, high float64) (bool, bool) {
	switch {
	case prob > high:
		return true, true
	case prob < low:
		return false, true
	}
	return false, false
}

func technicalLevel(p map[domain.BeliefKey]float64) string {
	score := (p[domain.BeliefPrefersTypeScript] + p[domain.BeliefHighQualityExpectations]) / 2
	switch {
	case score > 0.8:
		return domain.TechnicalExpert
	case score > 0.5:
		return domain.TechnicalIntermediate
	default:
		return domain.TechnicalBeginner
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func cloneBelief(b *domain.Belief) domain.Belief {
	out := *b
	out.Evidence = slices.Clone(b.Evidence)
	return out
}
