package detectors

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/varalys/pubguard/internal/redact"
	"github.com/varalys/pubguard/internal/types"
)

// Name identifies this layer in logs and errors.
const Name = "regex"

var (
	// ErrInvalidPattern is wrapped by every rule construction failure.
	ErrInvalidPattern = errors.New("invalid pattern")
)

// Pattern is a typed rule record.
type Pattern struct {
	ID          string
	Expr        string
	Description string
	Severity    types.Severity
	Redact      bool
}

type rule struct {
	Pattern
	re *regexp.Regexp
}

// Options configures a Detector.
type Options struct {
	// SkipBuiltin drops the shipped rules and keeps only Custom.
	SkipBuiltin bool
	// Custom rules are appended after the builtin set.
	Custom []Pattern
	// Allow maps rule IDs to substrings; a match containing any of them
	// (case-insensitive) is suppressed.
	Allow map[string][]string
}

// Detector is the compiled pattern layer. It is immutable after New and
// safe for concurrent use.
type Detector struct {
	rules []rule
	allow map[string][]string
}

// New compiles every rule up front so malformed user patterns fail at
// construction rather than on first scan.
func New(opts Options) (*Detector, error) {
	var patterns []Pattern
	if !opts.SkipBuiltin {
		patterns = append(patterns, builtin...)
	}
	patterns = append(patterns, opts.Custom...)

	seen := make(map[string]bool, len(patterns))
	rules := make([]rule, 0, len(patterns))
	for _, p := range patterns {
		if strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("%w: empty rule id", ErrInvalidPattern)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("%w: duplicate rule id %q", ErrInvalidPattern, p.ID)
		}
		seen[p.ID] = true
		if !p.Severity.Valid() {
			return nil, fmt.Errorf("%w: rule %q has no valid severity", ErrInvalidPattern, p.ID)
		}
		re, err := regexp.Compile("(?i)" + p.Expr)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %q: %v", ErrInvalidPattern, p.ID, err)
		}
		if re.MatchString("") {
			return nil, fmt.Errorf("%w: rule %q matches the empty string", ErrInvalidPattern, p.ID)
		}
		rules = append(rules, rule{Pattern: p, re: re})
	}

	allow := make(map[string][]string, len(opts.Allow))
	for id, entries := range opts.Allow {
		lowered := make([]string, 0, len(entries))
		for _, e := range entries {
			if e == "" {
				continue
			}
			lowered = append(lowered, strings.ToLower(e))
		}
		allow[id] = lowered
	}

	return &Detector{rules: rules, allow: allow}, nil
}

// Name implements the scanner's detector contract.
func (d *Detector) Name() string { return Name }

// Rules returns the active rules in registration order.
func (d *Detector) Rules() []Pattern {
	out := make([]Pattern, len(d.rules))
	for i, r := range d.rules {
		out[i] = r.Pattern
	}
	return out
}

// Scan reports every match of every rule. Findings are ordered by rule
// registration, then line, then position within the line.
func (d *Detector) Scan(ctx context.Context, content, filename string) ([]types.Finding, error) {
	lines := strings.Split(content, "\n")
	var out []types.Finding
	for _, r := range d.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i, line := range lines {
			for _, loc := range r.re.FindAllStringIndex(line, -1) {
				if loc[0] == loc[1] {
					continue
				}
				m := line[loc[0]:loc[1]]
				if d.allowed(r.ID, m) {
					continue
				}
				shown := m
				if r.Redact {
					shown = redact.Mask(m)
				}
				out = append(out, types.Finding{
					Category:    types.CategoryCustom,
					Severity:    r.Severity,
					RuleID:      r.ID,
					Description: r.Description,
					Match:       shown,
					Path:        filename,
					Line:        i + 1,
					Confidence:  1.0,
				})
			}
		}
	}
	return out, nil
}

func (d *Detector) allowed(id, match string) bool {
	entries := d.allow[id]
	if len(entries) == 0 {
		return false
	}
	lm := strings.ToLower(match)
	for _, e := range entries {
		if strings.Contains(lm, e) {
			return true
		}
	}
	return false
}
