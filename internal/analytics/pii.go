package analytics

import "regexp"

// detector pairs a PII kind with the pattern that finds it. The seven
// kinds cover the identifiers a Brazilian healthcare intake collects.
type detector struct {
	kind    string
	pattern *regexp.Regexp
}

var detectors = []detector{
	// CPF: 000.000.000-00 or 11 bare digits.
	{"cpf", regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{3}-\d{2}\b|\b\d{11}\b`)},
	// CNPJ: 00.000.000/0000-00.
	{"cnpj", regexp.MustCompile(`\b\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}\b`)},
	{"email", regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)},
	// BR phone: optional +55, DDD, 8-9 digits with common separators.
	{"phone", regexp.MustCompile(`(?:\+?55\s?)?\(?\d{2}\)?\s?9?\d{4}[\s.-]?\d{4}\b`)},
	// RG: 0.000.000 or 00.000.000-X.
	{"rg", regexp.MustCompile(`\b\d{1,2}\.\d{3}\.\d{3}-?[0-9Xx]?\b`)},
	// CEP: 00000-000.
	{"cep", regexp.MustCompile(`\b\d{5}-\d{3}\b`)},
	// Date of birth: dd/mm/yyyy.
	{"dob", regexp.MustCompile(`\b\d{2}/\d{2}/(?:19|20)\d{2}\b`)},
}

// deniedKeys are property names dropped outright: their values are PII by
// definition, redaction patterns or not.
var deniedKeys = map[string]struct{}{
	"name":      {},
	"full_name": {},
	"address":   {},
	"document":  {},
	"cpf":       {},
	"email":     {},
	"phone":     {},
}

// RedactionCounter observes how often each PII kind was scrubbed.
type RedactionCounter interface {
	ObserveRedaction(kind string)
}

// Redact sanitizes an event's properties in place: denied keys are
// removed, string values are scanned by every detector. Redaction never
// fails; a dirty value comes out scrubbed, not rejected.
func Redact(properties map[string]any, counter RedactionCounter) {
	for key, value := range properties {
		if _, denied := deniedKeys[key]; denied {
			delete(properties, key)
			continue
		}
		str, ok := value.(string)
		if !ok {
			continue
		}
		properties[key] = redactString(str, counter)
	}
}

func redactString(s string, counter RedactionCounter) string {
	for _, d := range detectors {
		if !d.pattern.MatchString(s) {
			continue
		}
		s = d.pattern.ReplaceAllString(s, "[redacted:"+d.kind+"]")
		if counter != nil {
			counter.ObserveRedaction(d.kind)
		}
	}
	return s
}
