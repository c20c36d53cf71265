package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tangoverse/mneme/internal/domain"
	"go.uber.org/zap"
)

func codeWritten(content map[string]any) domain.Evidence {
	return domain.Evidence{Type: domain.EvidenceCodeWritten, Content: content, Confidence: 0.9}
}

func TestBayesPosterior(t *testing.T) {
	t.Run("supporting evidence raises probability", func(t *testing.T) {
		post := BayesPosterior(0.7, 0.95)
		assert.InDelta(t, 0.665/0.68, post, 1e-9)
		assert.Greater(t, post, 0.7)
	})

	t.Run("contradicting evidence lowers probability", func(t *testing.T) {
		post := BayesPosterior(0.7, 0.1)
		assert.InDelta(t, 0.07/0.34, post, 1e-9)
		assert.Less(t, post, 0.7)
	})

	t.Run("neutral likelihood leaves prior unchanged", func(t *testing.T) {
		for _, prior := range []float64{0, 0.2, 0.5, 0.9, 1} {
			assert.InDelta(t, prior, BayesPosterior(prior, NeutralLikelihood), 1e-12)
		}
	})

	t.Run("extremes stay in range", func(t *testing.T) {
		for _, prior := range []float64{0, 0.001, 0.5, 0.999, 1} {
			for _, l := range []float64{0, 0.001, 0.5, 0.999, 1} {
				post := BayesPosterior(prior, l)
				assert.GreaterOrEqual(t, post, 0.0)
				assert.LessOrEqual(t, post, 1.0)
			}
		}
	})
}

func TestBeliefEngine_Priors(t *testing.T) {
	e := NewBeliefEngine(nil, zap.NewNop())

	beliefs := e.GetAllBeliefs()
	require.Len(t, beliefs, 7)
	assert.Equal(t, domain.BeliefPrefersTypeScript, beliefs[0].Key)

	b, ok := e.GetBelief(domain.BeliefHighQualityExpectations)
	require.True(t, ok)
	assert.InDelta(t, 0.9, b.Probability, 1e-12)
	assert.Empty(t, b.Evidence)

	assert.Equal(t, domain.DefaultUserPreference(), e.GetPreferences())
}

func TestBeliefEngine_UpdateBelief(t *testing.T) {
	e := NewBeliefEngine(nil, zap.NewNop())

	b, err := e.UpdateBelief(domain.BeliefPrefersTypeScript, codeWritten(map[string]any{"language": "javascript"}))
	require.NoError(t, err)
	assert.InDelta(t, 0.07/0.34, b.Probability, 1e-9)
	require.Len(t, b.Evidence, 1)
	assert.False(t, b.Evidence[0].Timestamp.IsZero())

	assert.Equal(t, "javascript", e.GetPreferences().PreferredLanguage)
	assert.Len(t, e.EvidenceHistory(), 1)
}

func TestBeliefEngine_UpdateBelief_UnknownKey(t *testing.T) {
	e := NewBeliefEngine(nil, zap.NewNop())
	before := e.GetAllBeliefs()

	_, err := e.UpdateBelief("prefers_tabs", codeWritten(map[string]any{"language": "typescript"}))
	assert.ErrorIs(t, err, ErrUnknownBelief)

	assert.Equal(t, before, e.GetAllBeliefs())
	assert.Empty(t, e.EvidenceHistory())
	assert.Equal(t, domain.DefaultUserPreference(), e.GetPreferences())
}

func TestBeliefEngine_UnrelatedEvidenceIsNeutral(t *testing.T) {
	e := NewBeliefEngine(nil, zap.NewNop())

	b, err := e.UpdateBelief(domain.BeliefPrefersReact, domain.Evidence{
		Type:    domain.EvidenceQuestionAsked,
		Content: map[string]any{"questionType": "why"},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, b.Probability, 1e-12)
	assert.Len(t, b.Evidence, 1)
}

func TestBeliefEngine_PreferencesKeepValueInsideBand(t *testing.T) {
	off := false
	e := NewBeliefEngine(&domain.PreferenceOverrides{SingleQuotes: &off}, zap.NewNop())

	// prefers_single_quotes starts at 0.6, between the 0.3 and 0.7 thresholds.
	_, err := e.UpdateBelief(domain.BeliefPrefersSingleQuotes, codeWritten(map[string]any{}))
	require.NoError(t, err)
	assert.False(t, e.GetPreferences().CodeStyle.SingleQuotes)

	_, err = e.UpdateBelief(domain.BeliefPrefersSingleQuotes, codeWritten(map[string]any{"quoteStyle": "single"}))
	require.NoError(t, err)
	assert.True(t, e.GetPreferences().CodeStyle.SingleQuotes)
}

func TestBeliefEngine_OverridesSurviveUnrelatedEvidence(t *testing.T) {
	verbosity := domain.VerbosityDetailed
	examples := false
	quality := 0.95
	e := NewBeliefEngine(&domain.PreferenceOverrides{
		Verbosity:        &verbosity,
		IncludeExamples:  &examples,
		QualityThreshold: &quality,
	}, zap.NewNop())

	_, err := e.UpdateBelief(domain.BeliefPrefersTypeScript, codeWritten(map[string]any{"language": "typescript"}))
	require.NoError(t, err)

	prefs := e.GetPreferences()
	assert.Equal(t, domain.VerbosityDetailed, prefs.Communication.Verbosity)
	assert.False(t, prefs.Communication.IncludeExamples)
	assert.Equal(t, 0.95, prefs.QualityThreshold)
	assert.Equal(t, "typescript", prefs.PreferredLanguage)

	// wants_detailed_explanations moves 0.5 -> 0.6, still inside the dead zone.
	b, err := e.UpdateBelief(domain.BeliefWantsDetailedExplain, domain.Evidence{
		Type:    domain.EvidenceQuestionAsked,
		Content: map[string]any{"questionType": "what"},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, b.Probability, 1e-9)
	assert.Equal(t, domain.VerbosityDetailed, e.GetPreferences().Communication.Verbosity)
}

func TestBeliefEngine_TypeScriptWithSemicolons(t *testing.T) {
	js := "javascript"
	off := false
	e := NewBeliefEngine(&domain.PreferenceOverrides{PreferredLanguage: &js, Semicolons: &off}, zap.NewNop())
	ev := codeWritten(map[string]any{"language": "typescript", "hasSemicolons": true})

	ts, err := e.UpdateBelief(domain.BeliefPrefersTypeScript, ev)
	require.NoError(t, err)
	assert.Greater(t, ts.Probability, 0.8)
	assert.Equal(t, "typescript", e.GetPreferences().PreferredLanguage)
	assert.False(t, e.GetPreferences().CodeStyle.Semicolons, "semicolons follow their own belief only")

	semi, err := e.UpdateBelief(domain.BeliefUsesSemicolons, ev)
	require.NoError(t, err)
	assert.Greater(t, semi.Probability, 0.7)

	prefs := e.GetPreferences()
	assert.Equal(t, "typescript", prefs.PreferredLanguage)
	assert.True(t, prefs.CodeStyle.Semicolons)
	assert.Len(t, e.EvidenceHistory(), 2)
}

func TestBeliefEngine_DetailedFeedbackChangesVerbosity(t *testing.T) {
	e := NewBeliefEngine(nil, zap.NewNop())

	b, err := e.UpdateBelief(domain.BeliefWantsDetailedExplain, domain.Evidence{
		Type:    domain.EvidenceUserFeedback,
		Content: map[string]any{"request": "more_detail"},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.85, b.Probability, 1e-9)

	prefs := e.GetPreferences()
	assert.Equal(t, domain.VerbosityDetailed, prefs.Communication.Verbosity)
	assert.Equal(t, domain.VerbosityDetailed, e.GetResponseParameters().Style)
}

func TestBeliefEngine_ResponseParametersArePure(t *testing.T) {
	e := NewBeliefEngine(nil, zap.NewNop())
	_, err := e.UpdateBelief(domain.BeliefHighQualityExpectations, domain.Evidence{
		Type:    domain.EvidenceCorrectionMade,
		Content: map[string]any{},
	})
	require.NoError(t, err)

	beliefs := e.GetAllBeliefs()
	first := e.GetResponseParameters()
	second := e.GetResponseParameters()

	assert.Equal(t, first, second)
	assert.Equal(t, beliefs, e.GetAllBeliefs())
	quality, _ := e.GetBelief(domain.BeliefHighQualityExpectations)
	assert.InDelta(t, quality.Probability, first.QualityTarget, 1e-12)
	assert.True(t, first.IncludeExamples)
}

func TestBeliefEngine_TimestampsUseClock(t *testing.T) {
	e := NewBeliefEngine(nil, zap.NewNop())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	b, err := e.UpdateBelief(domain.BeliefUsesSemicolons, codeWritten(map[string]any{"hasSemicolons": false}))
	require.NoError(t, err)
	assert.Equal(t, fixed, b.LastUpdated)
	assert.Equal(t, fixed, b.Evidence[0].Timestamp)
	assert.InDelta(t, 0.08/0.26, b.Probability, 1e-9)
}

func TestLikelihood(t *testing.T) {
	tests := []struct {
		name string
		ev   domain.Evidence
		key  domain.BeliefKey
		want float64
	}{
		{"typescript code", codeWritten(map[string]any{"language": "typescript"}), domain.BeliefPrefersTypeScript, 0.95},
		{"react code", codeWritten(map[string]any{"framework": "react"}), domain.BeliefPrefersReact, 0.9},
		{"vue code", codeWritten(map[string]any{"framework": "vue"}), domain.BeliefPrefersReact, 0.2},
		{"double quotes", codeWritten(map[string]any{"quoteStyle": "double"}), domain.BeliefPrefersSingleQuotes, 0.1},
		{"too verbose", domain.Evidence{Type: domain.EvidenceUserFeedback, Content: map[string]any{"request": "too_verbose"}}, domain.BeliefWantsDetailedExplain, 0.15},
		{"any correction", domain.Evidence{Type: domain.EvidenceCorrectionMade}, domain.BeliefHighQualityExpectations, 0.85},
		{"how question", domain.Evidence{Type: domain.EvidenceQuestionAsked, Content: map[string]any{"questionType": "how"}}, domain.BeliefWantsCodeExamples, 0.75},
		{"unrelated", codeWritten(map[string]any{"language": "typescript"}), domain.BeliefWantsCodeExamples, NeutralLikelihood},
		{"wrong field type", codeWritten(map[string]any{"hasSemicolons": "yes"}), domain.BeliefUsesSemicolons, NeutralLikelihood},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Likelihood(tt.ev, tt.key), 1e-12)
		})
	}
}
