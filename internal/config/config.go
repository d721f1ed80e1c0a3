package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/varalys/pubguard/internal/types"
)

// EnvPrefix marks environment variables that override policy keys.
// PUBGUARD_PRESIDIO_CONFIDENCE_THRESHOLD maps to presidio.confidence_threshold.
const EnvPrefix = "PUBGUARD_"

const maxPolicyBytes = 1 << 20

// ErrNoPolicy is returned by discovery when no policy file exists.
var ErrNoPolicy = errors.New("no policy file found")

// Policy is the on-disk policy document.
type Policy struct {
	Gitleaks GitleaksPolicy `koanf:"gitleaks" yaml:"gitleaks"`
	Presidio PresidioPolicy `koanf:"presidio" yaml:"presidio"`
	Regex    RegexPolicy    `koanf:"regex" yaml:"regex"`
	Audit    AuditPolicy    `koanf:"audit" yaml:"audit"`
}

// GitleaksPolicy configures the external secrets scanner layer.
type GitleaksPolicy struct {
	Enabled bool `koanf:"enabled" yaml:"enabled"`
	// Required turns an initialization failure into a fatal error instead
	// of a warning.
	Required bool `koanf:"required" yaml:"required"`
	// ConfigPath is a .gitleaks.toml passed through with --config.
	ConfigPath string `koanf:"config_path" yaml:"config_path"`
	// BinaryPath pins the gitleaks executable. Empty means search $PATH once
	// at startup.
	BinaryPath string        `koanf:"binary_path" yaml:"binary_path"`
	MinVersion string        `koanf:"min_version" yaml:"min_version"`
	Timeout    time.Duration `koanf:"timeout" yaml:"timeout"`
}

// PresidioPolicy configures the optional NER-based PII layer.
type PresidioPolicy struct {
	Enabled             bool    `koanf:"enabled" yaml:"enabled"`
	Required            bool    `koanf:"required" yaml:"required"`
	Endpoint            string  `koanf:"endpoint" yaml:"endpoint"`
	Language            string  `koanf:"language" yaml:"language"`
	ConfidenceThreshold float64 `koanf:"confidence_threshold" yaml:"confidence_threshold"`
	// AllowedEntities are entity types that never produce findings.
	AllowedEntities []string      `koanf:"allowed_entities" yaml:"allowed_entities"`
	Timeout         time.Duration `koanf:"timeout" yaml:"timeout"`
}

// RegexPolicy configures the pattern layer.
type RegexPolicy struct {
	Enabled bool `koanf:"enabled" yaml:"enabled"`
	// Builtin keeps the shipped pattern set; custom patterns always load.
	Builtin bool `koanf:"builtin" yaml:"builtin"`
	// AllowedPatterns maps rule IDs to substrings that suppress a match.
	AllowedPatterns map[string][]string `koanf:"allowed_patterns" yaml:"allowed_patterns"`
	CustomPatterns  []CustomPattern     `koanf:"custom_patterns" yaml:"custom_patterns"`
}

// CustomPattern is a user-defined regex rule.
type CustomPattern struct {
	ID          string `koanf:"id" yaml:"id"`
	Pattern     string `koanf:"pattern" yaml:"pattern"`
	Description string `koanf:"description" yaml:"description"`
	Severity    string `koanf:"severity" yaml:"severity"`
	Redact      bool   `koanf:"redact" yaml:"redact"`
}

// AuditPolicy configures the decision log. An empty path disables it.
type AuditPolicy struct {
	Path string `koanf:"path" yaml:"path"`
}

// Default returns the policy used when no file sets a key.
func Default() Policy {
	return Policy{
		Gitleaks: GitleaksPolicy{
			Enabled:    true,
			MinVersion: "8.0.0",
			Timeout:    60 * time.Second,
		},
		Presidio: PresidioPolicy{
			Enabled:             false,
			Endpoint:            "http://localhost:5002",
			Language:            "en",
			ConfidenceThreshold: 0.7,
			Timeout:             30 * time.Second,
		},
		Regex: RegexPolicy{
			Enabled:         true,
			Builtin:         true,
			AllowedPatterns: map[string][]string{},
		},
	}
}

// Validate checks value ranges and custom pattern metadata. Regex syntax
// is checked when the pattern layer compiles its rules.
func (p Policy) Validate() error {
	if t := p.Presidio.ConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("presidio.confidence_threshold must be within [0,1], got %v", t)
	}
	if p.Gitleaks.Timeout < 0 {
		return fmt.Errorf("gitleaks.timeout must not be negative")
	}
	if p.Presidio.Timeout < 0 {
		return fmt.Errorf("presidio.timeout must not be negative")
	}
	for i, cp := range p.Regex.CustomPatterns {
		if strings.TrimSpace(cp.ID) == "" {
			return fmt.Errorf("regex.custom_patterns[%d]: id is required", i)
		}
		if cp.Pattern == "" {
			return fmt.Errorf("regex.custom_patterns[%d] (%s): pattern is required", i, cp.ID)
		}
		if _, err := types.ParseSeverity(cp.Severity); err != nil {
			return fmt.Errorf("regex.custom_patterns[%d] (%s): %w", i, cp.ID, err)
		}
	}
	return nil
}

// Load reads the policy at path (when non-empty), applies PUBGUARD_*
// environment overrides and validates the result.
func Load(path string) (Policy, error) {
	k := koanf.New(".")

	if path != "" {
		b, err := readPolicyFile(path)
		if err != nil {
			return Policy{}, err
		}
		if err := k.Load(rawbytes.Provider(b), yaml.Parser()); err != nil {
			return Policy{}, fmt.Errorf("failed to parse policy %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Policy{}, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	p := Default()
	if err := k.Unmarshal("", &p); err != nil {
		return Policy{}, fmt.Errorf("failed to decode policy: %w", err)
	}
	if p.Regex.AllowedPatterns == nil {
		p.Regex.AllowedPatterns = map[string][]string{}
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("invalid policy: %w", err)
	}
	return p, nil
}

// envKey maps PUBGUARD_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	return section + "." + field
}

func readPolicyFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open policy: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat policy: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("policy path %s is a directory", path)
	}
	if info.Size() > maxPolicyBytes {
		return nil, fmt.Errorf("policy %s exceeds %d bytes", path, maxPolicyBytes)
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy: %w", err)
	}
	return b, nil
}

// LocalNames are the policy file names searched in a working directory.
var LocalNames = []string{".pubguard.yml", ".pubguard.yaml", "pubguard.yml", "pubguard.yaml"}

// FindLocal returns the first policy file found in dir.
func FindLocal(dir string) (string, error) {
	for _, name := range LocalNames {
		p := filepath.Join(dir, name)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return "", ErrNoPolicy
}

// FindGlobal returns $XDG_CONFIG_HOME/pubguard/config.yml (or the
// ~/.config equivalent) when it exists.
func FindGlobal() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			base = filepath.Join(home, ".config")
		}
	}
	if base == "" {
		return "", ErrNoPolicy
	}
	p := filepath.Join(base, "pubguard", "config.yml")
	if _, err := os.Stat(p); err == nil {
		return p, nil
	}
	return "", ErrNoPolicy
}

// Discover resolves the policy path: an explicit path wins, then a local
// file in dir, then the global file. It returns "" when none exists.
func Discover(explicit, dir string) string {
	if explicit != "" {
		return explicit
	}
	if p, err := FindLocal(dir); err == nil {
		return p
	}
	if p, err := FindGlobal(); err == nil {
		return p
	}
	return ""
}
