// Package scoring turns a completed answer set into a risk score and
// band. Scoring is deterministic and has no I/O.
package scoring

import (
	"onboardingportal/internal/health/models"
)

// Result is the outcome of scoring one response.
type Result struct {
	Score     float64
	Band      models.RiskBand
	Triggered bool
}

// Score computes the weighted risk score for the given answers against a
// template. Each section contributes its question risk normalized by the
// section's total question weight, sections are combined by section
// weight, and the final score lands on a 0-100 scale. Any answer listed
// in a question's trigger set forces the critical band.
func Score(template *models.Template, answers map[string]any) Result {
	var weighted, totalWeight float64
	triggered := false

	for _, section := range template.Sections {
		sectionRisk, sectionWeight, hit := sectionScore(section, answers)
		if hit {
			triggered = true
		}
		if sectionWeight == 0 {
			continue
		}
		weight := section.Weight
		if weight == 0 {
			weight = 1
		}
		weighted += (sectionRisk / sectionWeight) * weight
		totalWeight += weight
	}

	var score float64
	if totalWeight > 0 {
		score = (weighted / totalWeight) * 100
	}
	if score > 100 {
		score = 100
	}

	band := BandFor(score)
	if triggered {
		band = models.BandCritical
	}
	return Result{Score: score, Band: band, Triggered: triggered}
}

// BandFor maps a 0-100 score to its risk band.
func BandFor(score float64) models.RiskBand {
	switch {
	case score < 25:
		return models.BandLow
	case score < 50:
		return models.BandModerate
	case score < 75:
		return models.BandElevated
	default:
		return models.BandCritical
	}
}

func sectionScore(section models.Section, answers map[string]any) (risk, weight float64, triggered bool) {
	for _, question := range section.Questions {
		if question.Type == models.QuestionText {
			continue
		}
		qWeight := question.Weight
		if qWeight == 0 {
			qWeight = 1
		}
		weight += qWeight

		answer, ok := answers[question.ID]
		if !ok {
			continue
		}
		if isTrigger(question, answer) {
			triggered = true
		}
		risk += questionRisk(question, answer) * qWeight
	}
	return risk, weight, triggered
}

// questionRisk returns the answer's risk as a fraction of the question
// weight, clamped to [0, 1].
func questionRisk(question models.Question, answer any) float64 {
	var fraction float64
	switch question.Type {
	case models.QuestionBoolean:
		if value, ok := answer.(bool); ok && value {
			fraction = 1
		}
	case models.QuestionScale:
		if value, ok := toFloat(answer); ok {
			fraction = value / 10
		}
	case models.QuestionChoice:
		if value, ok := answer.(string); ok {
			fraction = question.RiskWeights[value]
		}
	}
	if fraction < 0 {
		return 0
	}
	if fraction > 1 {
		return 1
	}
	return fraction
}

func isTrigger(question models.Question, answer any) bool {
	if len(question.TriggerAnswers) == 0 {
		return false
	}
	var value string
	switch v := answer.(type) {
	case bool:
		if v {
			value = "true"
		} else {
			value = "false"
		}
	case string:
		value = v
	default:
		return false
	}
	for _, trigger := range question.TriggerAnswers {
		if trigger == value {
			return true
		}
	}
	return false
}

// toFloat accepts the numeric types a JSON decode can produce.
func toFloat(answer any) (float64, bool) {
	switch v := answer.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
