// Package models defines health questionnaire templates and responses.
package models

import "time"

type QuestionType string

const (
	QuestionBoolean QuestionType = "boolean"
	QuestionChoice  QuestionType = "choice"
	QuestionScale   QuestionType = "scale"
	QuestionText    QuestionType = "text"
)

// Question is a single item inside a template section. RiskWeights maps
// choice values to a fraction of the question weight; TriggerAnswers
// name answers that force the critical band no matter the total score.
type Question struct {
	ID             string             `json:"id"`
	Text           string             `json:"text"`
	Type           QuestionType       `json:"type"`
	Required       bool               `json:"required"`
	Weight         float64            `json:"weight"`
	Options        []string           `json:"options,omitempty"`
	RiskWeights    map[string]float64 `json:"risk_weights,omitempty"`
	TriggerAnswers []string           `json:"trigger_answers,omitempty"`
}

type Section struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Weight    float64    `json:"weight"`
	Questions []Question `json:"questions"`
}

// Template is a versioned questionnaire definition. The definition is
// stored as a single JSONB document.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	Active    bool      `json:"active"`
	Sections  []Section `json:"sections"`
	CreatedAt time.Time `json:"created_at"`
}

// Questions returns every question of the template in section order.
func (t *Template) Questions() []Question {
	var questions []Question
	for _, section := range t.Sections {
		questions = append(questions, section.Questions...)
	}
	return questions
}

type ResponseStatus string

const (
	StatusDraft     ResponseStatus = "draft"
	StatusSubmitted ResponseStatus = "submitted"
	StatusReviewed  ResponseStatus = "reviewed"
)

type RiskBand string

const (
	BandLow      RiskBand = "low"
	BandModerate RiskBand = "moderate"
	BandElevated RiskBand = "elevated"
	BandCritical RiskBand = "critical"
)

// Response is a user's answer set for one template. Version increments
// on every write; writers must present the version they read. Text
// answers are sealed at rest and never appear in the stored document in
// clear form.
type Response struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	TemplateID  string         `json:"template_id"`
	Status      ResponseStatus `json:"status"`
	Version     int            `json:"version"`
	Answers     map[string]any `json:"answers"`
	Score       *float64       `json:"score,omitempty"`
	Band        RiskBand       `json:"band,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	SubmittedAt *time.Time     `json:"submitted_at,omitempty"`
	ReviewedBy  string         `json:"reviewed_by,omitempty"`
}

type PatchAnswersRequest struct {
	Version int            `json:"version"`
	Answers map[string]any `json:"answers"`
}

type SubmitRequest struct {
	Version int `json:"version"`
}

type StartResponseRequest struct {
	TemplateID string `json:"template_id"`
}
