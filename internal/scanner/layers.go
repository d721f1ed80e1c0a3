package scanner

import (
	"context"
	"fmt"
	"sync"

	"github.com/varalys/pubguard/internal/config"
	"github.com/varalys/pubguard/internal/detectors"
	"github.com/varalys/pubguard/internal/scanner/gitleaks"
	"github.com/varalys/pubguard/internal/scanner/presidio"
	"github.com/varalys/pubguard/internal/types"
)

// New builds the enabled layers of p in registration order. Optional
// layers that cannot start are logged and left out; a layer marked
// required, a malformed regex rule or an empty result is a *ConfigError.
func New(ctx context.Context, p config.Policy, opts ...Option) (*Scanner, error) {
	if err := p.Validate(); err != nil {
		return nil, &ConfigError{Err: err}
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	s := newScanner(opts)

	if p.Gitleaks.Enabled {
		d, err := s.newGitleaks(ctx, p.Gitleaks, o.root)
		if err := s.optional(gitleaks.Name, p.Gitleaks.Required, err); err != nil {
			return nil, err
		}
		if d != nil {
			s.logger.Debug().Str("layer", gitleaks.Name).Str("version", d.Version()).Str("binary", d.BinaryPath()).Msg("Layer ready")
			s.detectors = append(s.detectors, d)
		}
	}

	if p.Presidio.Enabled {
		d, err := s.newPresidio(ctx, p.Presidio, o.recognizer)
		if err := s.optional(presidio.Name, p.Presidio.Required, err); err != nil {
			return nil, err
		}
		if d != nil {
			s.detectors = append(s.detectors, d)
		}
	}

	if p.Regex.Enabled {
		d, err := NewPatterns(p.Regex)
		if err != nil {
			return nil, &ConfigError{Layer: detectors.Name, Err: err}
		}
		s.detectors = append(s.detectors, d)
	}

	if len(s.detectors) == 0 {
		return nil, &ConfigError{Err: ErrNoDetectors}
	}
	s.logger.Debug().Strs("layers", s.Detectors()).Msg("Scanner ready")
	return s, nil
}

// optional decides what an initialization error means for a layer.
func (s *Scanner) optional(layer string, required bool, err error) error {
	if err == nil {
		return nil
	}
	if required {
		return &ConfigError{Layer: layer, Err: err}
	}
	s.logger.Warn().Err(err).Str("layer", layer).Msg("Detection layer unavailable, continuing without it")
	return nil
}

// newGitleaks builds the secrets layer. A .gitleaks.toml found under root
// can relax the rule set, so picking it up is logged at warn level.
func (s *Scanner) newGitleaks(ctx context.Context, p config.GitleaksPolicy, root string) (*gitleaks.Scanner, error) {
	cfgPath := p.ConfigPath
	if cfgPath == "" && root != "" {
		if cfgPath = gitleaks.DetectConfigPath(root); cfgPath != "" {
			s.logger.Warn().Str("layer", gitleaks.Name).Str("config", cfgPath).
				Msg("Using gitleaks config found in the working directory")
		}
	}
	return gitleaks.New(ctx, gitleaks.Options{
		BinaryPath: p.BinaryPath,
		ConfigPath: cfgPath,
		MinVersion: p.MinVersion,
		Timeout:    p.Timeout,
	})
}

func (s *Scanner) newPresidio(ctx context.Context, p config.PresidioPolicy, rec presidio.Recognizer) (*presidio.Detector, error) {
	if rec == nil {
		c, err := presidio.NewClient(ctx, presidio.ClientOptions{
			Endpoint: p.Endpoint,
			Timeout:  p.Timeout,
		})
		if err != nil {
			return nil, err
		}
		rec = c
	}
	if !rec.ConcurrentSafe() {
		rec = &lockedRecognizer{mu: &s.piiMu, rec: rec}
	}
	return presidio.New(rec, presidio.Options{
		Threshold: p.ConfidenceThreshold,
		Allowed:   p.AllowedEntities,
		Language:  p.Language,
	}), nil
}

// NewPatterns compiles the regex layer described by p.
func NewPatterns(p config.RegexPolicy) (*detectors.Detector, error) {
	custom := make([]detectors.Pattern, 0, len(p.CustomPatterns))
	for _, cp := range p.CustomPatterns {
		sev, err := types.ParseSeverity(cp.Severity)
		if err != nil {
			return nil, fmt.Errorf("custom pattern %q: %w", cp.ID, err)
		}
		custom = append(custom, detectors.Pattern{
			ID:          cp.ID,
			Expr:        cp.Pattern,
			Description: cp.Description,
			Severity:    sev,
			Redact:      cp.Redact,
		})
	}
	return detectors.New(detectors.Options{
		SkipBuiltin: !p.Builtin,
		Custom:      custom,
		Allow:       p.AllowedPatterns,
	})
}

// lockedRecognizer serializes calls into a recognizer that may not be
// used concurrently. The mutex belongs to the Scanner.
type lockedRecognizer struct {
	mu  *sync.Mutex
	rec presidio.Recognizer
}

func (l *lockedRecognizer) Analyze(ctx context.Context, text, language string) ([]presidio.Entity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rec.Analyze(ctx, text, language)
}

func (l *lockedRecognizer) ConcurrentSafe() bool { return true }
