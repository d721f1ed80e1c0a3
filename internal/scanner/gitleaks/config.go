package gitleaks

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
)

// ErrInvalidConfig marks a .gitleaks.toml that cannot be used.
var ErrInvalidConfig = errors.New("invalid gitleaks config")

type ruleConfig struct {
	ID          string   `toml:"id"`
	Description string   `toml:"description"`
	Regex       string   `toml:"regex"`
	Path        string   `toml:"path"`
	Keywords    []string `toml:"keywords"`
}

type allowlistConfig struct {
	Paths   []string `toml:"paths"`
	Regexes []string `toml:"regexes"`
}

type fileConfig struct {
	Title  string `toml:"title"`
	Extend struct {
		UseDefault bool   `toml:"useDefault"`
		Path       string `toml:"path"`
	} `toml:"extend"`
	Rules      []ruleConfig      `toml:"rules"`
	Allowlist  allowlistConfig   `toml:"allowlist"`
	Allowlists []allowlistConfig `toml:"allowlists"`
}

// ValidateConfig checks that path exists, decodes as TOML and that every
// rule and allowlist expression compiles. It returns the absolute path.
func ValidateConfig(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrInvalidConfig, abs)
	}

	var cfg fileConfig
	if _, err := toml.DecodeFile(abs, &cfg); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidConfig, abs, err)
	}

	// Rules in an extending config may only adjust a base rule.
	extends := cfg.Extend.UseDefault || cfg.Extend.Path != ""
	for i, r := range cfg.Rules {
		if r.ID == "" {
			return "", fmt.Errorf("%w: %s: rules[%d] has no id", ErrInvalidConfig, abs, i)
		}
		if r.Regex == "" && r.Path == "" && !extends {
			return "", fmt.Errorf("%w: %s: rule %q needs regex or path", ErrInvalidConfig, abs, r.ID)
		}
		for _, expr := range []string{r.Regex, r.Path} {
			if expr == "" {
				continue
			}
			if _, err := regexp.Compile(expr); err != nil {
				return "", fmt.Errorf("%w: %s: rule %q: %v", ErrInvalidConfig, abs, r.ID, err)
			}
		}
	}

	lists := append([]allowlistConfig{cfg.Allowlist}, cfg.Allowlists...)
	for _, al := range lists {
		for _, expr := range append(append([]string{}, al.Paths...), al.Regexes...) {
			if _, err := regexp.Compile(expr); err != nil {
				return "", fmt.Errorf("%w: %s: allowlist pattern %q: %v", ErrInvalidConfig, abs, expr, err)
			}
		}
	}
	return abs, nil
}

// DetectConfigPath returns the first conventional gitleaks config found
// under root, or "".
func DetectConfigPath(root string) string {
	candidates := []string{
		filepath.Join(root, ".gitleaks.toml"),
		filepath.Join(root, ".gitleaks", "config.toml"),
		filepath.Join(root, ".github", ".gitleaks.toml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
