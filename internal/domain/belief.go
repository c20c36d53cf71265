package domain

import "time"

// BeliefKey names a hypothesis tracked by a belief engine.
type BeliefKey string

const (
	BeliefPrefersTypeScript       BeliefKey = "prefers_typescript"
	BeliefPrefersReact            BeliefKey = "prefers_react"
	BeliefUsesSemicolons          BeliefKey = "uses_semicolons"
	BeliefPrefersSingleQuotes     BeliefKey = "prefers_single_quotes"
	BeliefWantsDetailedExplain    BeliefKey = "wants_detailed_explanations"
	BeliefWantsCodeExamples       BeliefKey = "wants_code_examples"
	BeliefHighQualityExpectations BeliefKey = "high_quality_expectations"
)

// EvidenceType is the kind of observed event that carries information about beliefs.
type EvidenceType string

const (
	EvidenceCodeWritten    EvidenceType = "code_written"
	EvidenceUserFeedback   EvidenceType = "user_feedback"
	EvidenceCorrectionMade EvidenceType = "correction_made"
	EvidenceQuestionAsked  EvidenceType = "question_asked"
)

// ValidEvidenceType reports whether s names a known evidence type.
func ValidEvidenceType(s string) bool {
	switch EvidenceType(s) {
	case EvidenceCodeWritten, EvidenceUserFeedback, EvidenceCorrectionMade, EvidenceQuestionAsked:
		return true
	}
	return false
}

// Evidence is an immutable observation folded into a belief.
// Confidence is the observer's own reliability estimate; it is recorded but
// does not enter the posterior computation.
type Evidence struct {
	Type       EvidenceType   `json:"type"`
	Content    map[string]any `json:"content"`
	Timestamp  time.Time      `json:"timestamp"`
	Confidence float64        `json:"confidence"`
}

// Belief is a named hypothesis with its current probability.
type Belief struct {
	Key         BeliefKey  `json:"key"`
	Hypothesis  string     `json:"hypothesis"`
	Probability float64    `json:"probability"`
	Evidence    []Evidence `json:"evidence"`
	LastUpdated time.Time  `json:"last_updated"`
}

// CodeStyle holds formatting preferences.
type CodeStyle struct {
	Semicolons   bool `json:"semicolons"`
	SingleQuotes bool `json:"single_quotes"`
}

// Verbosity levels for generated explanations.
const (
	VerbosityConcise  = "concise"
	VerbosityBalanced = "balanced"
	VerbosityDetailed = "detailed"
)

// Technical levels for generated output.
const (
	TechnicalBeginner     = "beginner"
	TechnicalIntermediate = "intermediate"
	TechnicalExpert       = "expert"
)

// Communication holds how explanations should be delivered.
type Communication struct {
	Verbosity       string `json:"verbosity"`
	IncludeExamples bool   `json:"include_examples"`
	TechnicalLevel  string `json:"technical_level"`
}

// UserPreference is the concrete configuration derived from belief state.
type UserPreference struct {
	PreferredLanguage string        `json:"preferred_language"`
	Framework         string        `json:"framework"`
	CodeStyle         CodeStyle     `json:"code_style"`
	Communication     Communication `json:"communication"`
	QualityThreshold  float64       `json:"quality_threshold"`
}

// DefaultUserPreference returns the schema defaults used before any evidence arrives.
func DefaultUserPreference() UserPreference {
	return UserPreference{
		PreferredLanguage: "typescript",
		Framework:         "react",
		CodeStyle: CodeStyle{
			Semicolons:   true,
			SingleQuotes: true,
		},
		Communication: Communication{
			Verbosity:       VerbosityBalanced,
			IncludeExamples: true,
			TechnicalLevel:  TechnicalIntermediate,
		},
		QualityThreshold: 0.8,
	}
}

// PreferenceOverrides is a partial UserPreference; nil fields keep the default.
type PreferenceOverrides struct {
	PreferredLanguage *string  `json:"preferred_language,omitempty"`
	Framework         *string  `json:"framework,omitempty"`
	Semicolons        *bool    `json:"semicolons,omitempty"`
	SingleQuotes      *bool    `json:"single_quotes,omitempty"`
	Verbosity         *string  `json:"verbosity,omitempty"`
	IncludeExamples   *bool    `json:"include_examples,omitempty"`
	TechnicalLevel    *string  `json:"technical_level,omitempty"`
	QualityThreshold  *float64 `json:"quality_threshold,omitempty"`
}

// Apply merges the set fields over p.
func (o *PreferenceOverrides) Apply(p UserPreference) UserPreference {
	if o == nil {
		return p
	}
	if o.PreferredLanguage != nil {
		p.PreferredLanguage = *o.PreferredLanguage
	}
	if o.Framework != nil {
		p.Framework = *o.Framework
	}
	if o.Semicolons != nil {
		p.CodeStyle.Semicolons = *o.Semicolons
	}
	if o.SingleQuotes != nil {
		p.CodeStyle.SingleQuotes = *o.SingleQuotes
	}
	if o.Verbosity != nil {
		p.Communication.Verbosity = *o.Verbosity
	}
	if o.IncludeExamples != nil {
		p.Communication.IncludeExamples = *o.IncludeExamples
	}
	if o.TechnicalLevel != nil {
		p.Communication.TechnicalLevel = *o.TechnicalLevel
	}
	if o.QualityThreshold != nil {
		p.QualityThreshold = *o.QualityThreshold
	}
	return p
}

// ResponseParameters adapt generated output to the current belief state.
type ResponseParameters struct {
	Style           string  `json:"style"`
	IncludeExamples bool    `json:"include_examples"`
	TechnicalLevel  string  `json:"technical_level"`
	QualityTarget   float64 `json:"quality_target"`
}
