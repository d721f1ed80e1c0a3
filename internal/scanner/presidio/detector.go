// Package presidio is the probabilistic PII layer. Entity spans come from a
// Recognizer, normally a Presidio Analyzer service, and are mapped onto
// findings with a fixed severity table.
package presidio

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/varalys/pubguard/internal/redact"
	"github.com/varalys/pubguard/internal/types"
)

// Name identifies this layer in logs and errors.
const Name = "presidio"

const (
	DefaultEndpoint  = "http://localhost:5002"
	DefaultLanguage  = "en"
	DefaultThreshold = 0.7
)

var severities = map[string]types.Severity{
	"CREDIT_CARD":       types.SevCritical,
	"CRYPTO":            types.SevCritical,
	"IBAN_CODE":         types.SevCritical,
	"US_SSN":            types.SevCritical,
	"US_BANK_NUMBER":    types.SevCritical,
	"US_PASSPORT":       types.SevCritical,
	"US_DRIVER_LICENSE": types.SevCritical,
	"US_ITIN":           types.SevCritical,
	"UK_NHS":            types.SevCritical,
	"MEDICAL_LICENSE":   types.SevCritical,

	"PERSON":        types.SevHigh,
	"EMAIL_ADDRESS": types.SevHigh,
	"PHONE_NUMBER":  types.SevHigh,
	"NRP":           types.SevHigh,

	"IP_ADDRESS": types.SevMed,
	"LOCATION":   types.SevMed,

	"DATE_TIME": types.SevLow,
	"URL":       types.SevLow,
}

// SeverityFor maps an entity type to a severity. Unknown types are MEDIUM.
func SeverityFor(entityType string) types.Severity {
	if s, ok := severities[strings.ToUpper(entityType)]; ok {
		return s
	}
	return types.SevMed
}

// Redacted reports whether matches of entityType are always masked.
func Redacted(entityType string) bool {
	return SeverityFor(entityType) == types.SevCritical
}

// EntityTypes lists the entity types with a fixed severity, most severe
// first and by name within a severity.
func EntityTypes() []string {
	out := make([]string, 0, len(severities))
	for t := range severities {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := severities[out[i]], severities[out[j]]
		if si != sj {
			return si > sj
		}
		return out[i] < out[j]
	})
	return out
}

// Options tunes result filtering.
type Options struct {
	// Threshold drops results scoring below it.
	Threshold float64
	// Allowed entity types are never reported, whatever their score.
	Allowed []string
	// Language is passed to the recognizer.
	Language string
}

// Detector turns recognizer output into findings.
type Detector struct {
	rec       Recognizer
	threshold float64
	allowed   map[string]struct{}
	language  string
}

// New wraps rec.
func New(rec Recognizer, opts Options) *Detector {
	d := &Detector{
		rec:       rec,
		threshold: opts.Threshold,
		allowed:   make(map[string]struct{}, len(opts.Allowed)),
		language:  opts.Language,
	}
	if d.language == "" {
		d.language = DefaultLanguage
	}
	for _, a := range opts.Allowed {
		d.allowed[strings.ToUpper(strings.TrimSpace(a))] = struct{}{}
	}
	return d
}

func (d *Detector) Name() string { return Name }

// Scan analyzes the whole content in one call.
func (d *Detector) Scan(ctx context.Context, content, filename string) ([]types.Finding, error) {
	if content == "" {
		return nil, nil
	}
	ents, err := d.rec.Analyze(ctx, content, d.language)
	if err != nil {
		return nil, err
	}

	n := utf8.RuneCountInString(content)
	for _, e := range ents {
		if e.Start < 0 || e.End > n || e.Start >= e.End {
			return nil, fmt.Errorf("%w: span [%d,%d) outside content of %d characters", ErrMalformedResponse, e.Start, e.End, n)
		}
		if e.Type == "" {
			return nil, fmt.Errorf("%w: span [%d,%d) has no entity type", ErrMalformedResponse, e.Start, e.End)
		}
	}

	sorted := make([]Entity, len(ents))
	copy(sorted, ents)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		return a.Type < b.Type
	})

	runes := []rune(content)
	lines := newLineIndex(runes)
	var out []types.Finding
	for _, e := range sorted {
		typ := strings.ToUpper(e.Type)
		if _, skip := d.allowed[typ]; skip {
			continue
		}
		if e.Score < d.threshold {
			continue
		}
		sev := SeverityFor(typ)
		text := string(runes[e.Start:e.End])
		if Redacted(typ) {
			text = redact.Mask(text)
		}
		out = append(out, types.Finding{
			Category:    types.CategoryPII,
			Severity:    sev,
			RuleID:      ruleID(typ),
			Description: "Detected " + describe(typ),
			Match:       text,
			Path:        filename,
			Line:        lines.lineOf(e.Start),
			Confidence:  clamp(e.Score),
		})
	}
	return out, nil
}

// lineIndex holds the rune offset at which each line starts.
type lineIndex []int

func newLineIndex(runes []rune) lineIndex {
	idx := lineIndex{0}
	for i, r := range runes {
		if r == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

// lineOf returns the 1-based line holding offset.
func (l lineIndex) lineOf(offset int) int {
	return sort.Search(len(l), func(i int) bool { return l[i] > offset })
}

func ruleID(typ string) string {
	return strings.ToLower(strings.ReplaceAll(typ, "_", "-"))
}

func describe(typ string) string {
	switch typ {
	case "NRP":
		return "nationality, religious or political group"
	case "US_SSN":
		return "US social security number"
	case "UK_NHS":
		return "UK NHS number"
	case "IBAN_CODE":
		return "IBAN"
	case "IP_ADDRESS":
		return "IP address"
	case "URL":
		return "URL"
	}
	s := strings.ToLower(strings.ReplaceAll(typ, "_", " "))
	if strings.HasPrefix(s, "us ") {
		s = "US " + s[3:]
	}
	return s
}

func clamp(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}
