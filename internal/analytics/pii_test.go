package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingRedactions struct {
	kinds map[string]int
}

func (c *countingRedactions) ObserveRedaction(kind string) {
	if c.kinds == nil {
		c.kinds = map[string]int{}
	}
	c.kinds[kind]++
}

func TestRedactStringPatterns(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"cpf punctuated", "meu cpf é 123.456.789-09 ok", "meu cpf é [redacted:cpf] ok"},
		{"cpf bare", "doc 12345678909 enviado", "doc [redacted:cpf] enviado"},
		{"cnpj", "empresa 12.345.678/0001-95", "empresa [redacted:cnpj]"},
		{"email", "contato: maria.silva+x@example.com.br", "contato: [redacted:email]"},
		{"phone with ddd", "ligue (11) 98765-4321", "ligue [redacted:phone]"},
		{"cep", "endereço 01310-100 centro", "endereço [redacted:cep]"},
		{"dob", "nascida em 03/07/1989", "nascida em [redacted:dob]"},
		{"clean", "completed step 3 of onboarding", "completed step 3 of onboarding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, redactString(tt.in, nil))
		})
	}
}

func TestRedactRG(t *testing.T) {
	got := redactString("rg 12.345.678-9 apresentado", nil)
	assert.NotContains(t, got, "12.345.678-9")
	assert.Contains(t, got, "[redacted:")
}

func TestRedactCountsKinds(t *testing.T) {
	counter := &countingRedactions{}
	redactString("cpf 123.456.789-09 email a@b.com", counter)
	assert.Equal(t, 1, counter.kinds["cpf"])
	assert.Equal(t, 1, counter.kinds["email"])
}

func TestRedactDropsDeniedKeys(t *testing.T) {
	props := map[string]any{
		"full_name": "Maria Silva",
		"email":     "maria@example.com",
		"step":      3,
		"note":      "fone 11 98765-4321",
	}
	Redact(props, nil)

	assert.NotContains(t, props, "full_name")
	assert.NotContains(t, props, "email")
	assert.Equal(t, 3, props["step"])
	assert.Equal(t, "fone [redacted:phone]", props["note"])
}

func TestRedactLeavesNonStringsAlone(t *testing.T) {
	props := map[string]any{"count": 42, "flag": true, "ratio": 1.5}
	Redact(props, nil)
	assert.Equal(t, map[string]any{"count": 42, "flag": true, "ratio": 1.5}, props)
}

func TestKnownEvent(t *testing.T) {
	assert.True(t, KnownEvent("questionnaire_submitted"))
	assert.False(t, KnownEvent("arbitrary_event"))
}
