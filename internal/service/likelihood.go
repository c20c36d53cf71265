package service

import "github.com/tangoverse/mneme/internal/domain"

// NeutralLikelihood is used for evidence that says nothing about a hypothesis.
const NeutralLikelihood = 0.5

// Likelihood returns P(E|H) for evidence e under hypothesis key.
// Combinations the table does not know map to NeutralLikelihood, which leaves
// the prior unchanged.
func Likelihood(e domain.Evidence, key domain.BeliefKey) float64 {
	switch e.Type {
	case domain.EvidenceCodeWritten:
		return codeWrittenLikelihood(e.Content, key)
	case domain.EvidenceUserFeedback:
		return userFeedbackLikelihood(e.Content, key)
	case domain.EvidenceCorrectionMade:
		return correctionLikelihood(e.Content, key)
	case domain.EvidenceQuestionAsked:
		return questionLikelihood(e.Content, key)
	}
	return NeutralLikelihood
}

func codeWrittenLikelihood(c map[string]any, key domain.BeliefKey) float64 {
	switch key {
	case domain.BeliefPrefersTypeScript:
		switch stringField(c, "language") {
		case "typescript":
			return 0.95
		case "javascript":
			return 0.1
		}
	case domain.BeliefPrefersReact:
		switch fw := stringField(c, "framework"); {
		case fw == "react":
			return 0.9
		case fw != "":
			return 0.2
		}
	case domain.BeliefUsesSemicolons:
		if v, ok := boolField(c, "hasSemicolons"); ok {
			return pick(v, 0.9, 0.1)
		}
	case domain.BeliefPrefersSingleQuotes:
		switch stringField(c, "quoteStyle") {
		case "single":
			return 0.9
		case "double":
			return 0.1
		}
	case domain.BeliefHighQualityExpectations:
		if v, ok := boolField(c, "hasTests"); ok && v {
			return 0.8
		}
	}
	return NeutralLikelihood
}

func userFeedbackLikelihood(c map[string]any, key domain.BeliefKey) float64 {
	request := stringField(c, "request")
	sentiment := stringField(c, "sentiment")

	switch key {
	case domain.BeliefWantsDetailedExplain:
		switch request {
		case "more_detail":
			return 0.85
		case "too_verbose", "shorter":
			return 0.15
		}
	case domain.BeliefWantsCodeExamples:
		switch request {
		case "more_examples":
			return 0.85
		case "no_examples":
			return 0.15
		}
	case domain.BeliefHighQualityExpectations:
		switch sentiment {
		case "negative":
			return 0.7
		case "positive":
			return 0.55
		}
	}
	return NeutralLikelihood
}

func correctionLikelihood(c map[string]any, key domain.BeliefKey) float64 {
	switch key {
	case domain.BeliefHighQualityExpectations:
		return 0.85
	case domain.BeliefUsesSemicolons:
		if v, ok := boolField(c, "addedSemicolons"); ok {
			return pick(v, 0.9, 0.1)
		}
	case domain.BeliefPrefersSingleQuotes:
		switch stringField(c, "changedQuotesTo") {
		case "single":
			return 0.9
		case "double":
			return 0.1
		}
	case domain.BeliefPrefersTypeScript:
		if v, ok := boolField(c, "addedTypes"); ok {
			return pick(v, 0.9, 0.2)
		}
	}
	return NeutralLikelihood
}

func questionLikelihood(c map[string]any, key domain.BeliefKey) float64 {
	q := stringField(c, "questionType")
	switch key {
	case domain.BeliefWantsDetailedExplain:
		switch q {
		case "why":
			return 0.8
		case "what":
			return 0.6
		}
	case domain.BeliefWantsCodeExamples:
		if q == "how" {
			return 0.75
		}
	}
	return NeutralLikelihood
}

func stringField(c map[string]any, key string) string {
	s, _ := c[key].(string)
	return s
}

func boolField(c map[string]any, key string) (bool, bool) {
	b, ok := c[key].(bool)
	return b, ok
}

func pick(cond bool, yes, no float64) float64 {
	if cond {
		return yes
	}
	return no
}
