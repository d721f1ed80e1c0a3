package types

import (
	"fmt"
	"strings"
)

// Severity is an ordered risk level for a finding. Higher values are worse.
type Severity int

const (
	SevLow Severity = iota + 1
	SevMed
	SevHigh
	SevCritical
)

// Severities returns every severity from most to least severe. Report
// grouping and the blocking threshold both rely on this ordering.
func Severities() []Severity {
	return []Severity{SevCritical, SevHigh, SevMed, SevLow}
}

func (s Severity) String() string {
	switch s {
	case SevCritical:
		return "critical"
	case SevHigh:
		return "high"
	case SevMed:
		return "medium"
	case SevLow:
		return "low"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Blocking reports whether a finding at this severity prevents publication.
func (s Severity) Blocking() bool {
	return s >= SevHigh
}

// Valid reports whether s is one of the four defined levels.
func (s Severity) Valid() bool {
	return s >= SevLow && s <= SevCritical
}

// ParseSeverity accepts the lowercase names used in policy files
// (case-insensitive); "med" is accepted as an alias for medium.
func ParseSeverity(v string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "critical":
		return SevCritical, nil
	case "high":
		return SevHigh, nil
	case "medium", "med":
		return SevMed, nil
	case "low":
		return SevLow, nil
	}
	return 0, fmt.Errorf("unknown severity %q (want critical|high|medium|low)", v)
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Category names the layer family that produced a finding.
type Category string

const (
	CategorySecrets Category = "secrets"
	CategoryPII     Category = "pii"
	CategoryCustom  Category = "custom"
)

// Finding describes one piece of sensitive data detected in a named input.
// Match may already be masked; see package redact. Line is 1-based and 0
// when the location is unknown. Confidence is in [0,1] and does not take
// part in the blocking decision.
type Finding struct {
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	RuleID      string   `json:"rule_id"`
	Description string   `json:"description"`
	Match       string   `json:"matched_text"`
	Path        string   `json:"file,omitempty"`
	Line        int      `json:"line,omitempty"`
	Confidence  float64  `json:"confidence"`
}

// Location renders "file:line", or "unknown" when no line is attached.
func (f Finding) Location() string {
	if f.Line <= 0 {
		return "unknown"
	}
	if f.Path == "" {
		return fmt.Sprintf("line %d", f.Line)
	}
	return fmt.Sprintf("%s:%d", f.Path, f.Line)
}

// IsSafe is true when no finding carries a blocking severity.
func IsSafe(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity.Blocking() {
			return false
		}
	}
	return true
}

// CountBySeverity tallies findings per severity name.
func CountBySeverity(findings []Finding) map[string]int {
	counts := make(map[string]int, 4)
	for _, f := range findings {
		counts[f.Severity.String()]++
	}
	return counts
}
