package core

import (
	"context"

	"github.com/varalys/pubguard/internal/config"
	"github.com/varalys/pubguard/internal/gate"
	"github.com/varalys/pubguard/internal/report"
	"github.com/varalys/pubguard/internal/scanner"
	"github.com/varalys/pubguard/internal/types"
)

// Re-exported as aliases so values flow between this package and the
// internal ones without conversion.
type (
	Finding     = types.Finding
	Severity    = types.Severity
	Category    = types.Category
	Policy      = config.Policy
	Scanner     = scanner.Scanner
	Option      = scanner.Option
	ConfigError = scanner.ConfigError
	ScanError   = scanner.ScanError
	Publication = gate.Publication
	Decision    = gate.Decision
)

const (
	SevLow      = types.SevLow
	SevMed      = types.SevMed
	SevHigh     = types.SevHigh
	SevCritical = types.SevCritical
)

var (
	ErrNoDetectors = scanner.ErrNoDetectors

	WithLogger      = scanner.WithLogger
	WithParallelism = scanner.WithParallelism
	WithRecognizer  = scanner.WithRecognizer
)

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy { return config.Default() }

// LoadPolicy reads a YAML policy file and applies PUBGUARD_* overrides.
func LoadPolicy(path string) (Policy, error) { return config.Load(path) }

// NewScanner builds the enabled layers of p.
func NewScanner(ctx context.Context, p Policy, opts ...Option) (*Scanner, error) {
	return scanner.New(ctx, p, opts...)
}

// Check runs the publication gate once, without an audit log.
func Check(ctx context.Context, s *Scanner, pub Publication) (Decision, error) {
	return gate.New(s).Check(ctx, pub)
}

// FormatReport renders findings for humans.
func FormatReport(findings []Finding) string { return report.Format(findings) }

// FormatFiles renders per-file findings for humans.
func FormatFiles(byFile map[string][]Finding) string { return report.FormatFiles(byFile) }

// IsSafe reports whether findings allow publication.
func IsSafe(findings []Finding) bool { return types.IsSafe(findings) }
