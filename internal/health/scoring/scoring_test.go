package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboardingportal/internal/health/models"
)

func testTemplate() *models.Template {
	return &models.Template{
		ID:      "tpl-1",
		Name:    "initial screening",
		Version: 1,
		Sections: []models.Section{
			{
				ID:     "lifestyle",
				Weight: 1,
				Questions: []models.Question{
					{ID: "smoker", Type: models.QuestionBoolean, Weight: 2, Required: true},
					{ID: "exercise", Type: models.QuestionScale, Weight: 1},
				},
			},
			{
				ID:     "history",
				Weight: 2,
				Questions: []models.Question{
					{
						ID:     "chronic",
						Type:   models.QuestionChoice,
						Weight: 1,
						Options: []string{
							"none", "controlled", "uncontrolled",
						},
						RiskWeights: map[string]float64{
							"none":         0,
							"controlled":   0.5,
							"uncontrolled": 1,
						},
					},
					{
						ID:             "self_harm",
						Type:           models.QuestionBoolean,
						Weight:         1,
						TriggerAnswers: []string{"true"},
					},
					{ID: "notes", Type: models.QuestionText},
				},
			},
		},
	}
}

func TestScoreTable(t *testing.T) {
	tests := []struct {
		name      string
		answers   map[string]any
		wantScore float64
		wantBand  models.RiskBand
		triggered bool
	}{
		{
			name: "all clear",
			answers: map[string]any{
				"smoker":    false,
				"exercise":  float64(0),
				"chronic":   "none",
				"self_harm": false,
			},
			wantScore: 0,
			wantBand:  models.BandLow,
		},
		{
			name: "moderate risk",
			answers: map[string]any{
				"smoker":    true,
				"exercise":  float64(5),
				"chronic":   "controlled",
				"self_harm": false,
			},
			// lifestyle: (2 + 0.5) / 3 -> 0.8333 * weight 1
			// history: (0.5 + 0) / 2 -> 0.25 * weight 2
			// total: (0.8333 + 0.5) / 3 * 100 = 44.44
			wantScore: 44.44,
			wantBand:  models.BandModerate,
		},
		{
			name: "maximum everything",
			answers: map[string]any{
				"smoker":    true,
				"exercise":  float64(10),
				"chronic":   "uncontrolled",
				"self_harm": false,
			},
			// history question self_harm=false contributes 0 of weight 1
			wantScore: 66.67,
			wantBand:  models.BandElevated,
		},
		{
			name: "trigger forces critical on a low score",
			answers: map[string]any{
				"smoker":    false,
				"exercise":  float64(0),
				"chronic":   "none",
				"self_harm": true,
			},
			// self_harm=true adds its full weight but the band comes from
			// the trigger, not the number
			wantBand:  models.BandCritical,
			wantScore: 33.33,
			triggered: true,
		},
		{
			name:      "missing answers score zero",
			answers:   map[string]any{},
			wantScore: 0,
			wantBand:  models.BandLow,
		},
		{
			name: "wrong types are ignored",
			answers: map[string]any{
				"smoker":   "yes please",
				"exercise": "ten",
				"chronic":  42,
			},
			wantScore: 0,
			wantBand:  models.BandLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Score(testTemplate(), tt.answers)
			assert.InDelta(t, tt.wantScore, result.Score, 0.01)
			assert.Equal(t, tt.wantBand, result.Band)
			assert.Equal(t, tt.triggered, result.Triggered)
		})
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	answers := map[string]any{
		"smoker":   true,
		"exercise": float64(7),
		"chronic":  "controlled",
	}
	first := Score(testTemplate(), answers)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Score(testTemplate(), answers))
	}
}

func TestBandBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  models.RiskBand
	}{
		{0, models.BandLow},
		{24.99, models.BandLow},
		{25, models.BandModerate},
		{49.99, models.BandModerate},
		{50, models.BandElevated},
		{74.99, models.BandElevated},
		{75, models.BandCritical},
		{100, models.BandCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BandFor(tt.score), "score %.2f", tt.score)
	}
}

func TestScaleClampsOutOfRange(t *testing.T) {
	template := &models.Template{
		Sections: []models.Section{{
			ID:     "s",
			Weight: 1,
			Questions: []models.Question{
				{ID: "q", Type: models.QuestionScale, Weight: 1},
			},
		}},
	}
	result := Score(template, map[string]any{"q": float64(40)})
	assert.Equal(t, 100.0, result.Score)
	assert.Equal(t, models.BandCritical, result.Band)
}
