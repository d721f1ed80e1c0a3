package gitleaks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/varalys/pubguard/internal/redact"
	"github.com/varalys/pubguard/internal/types"
)

// Name identifies this layer in logs and errors.
const Name = "gitleaks"

var (
	// ErrToolFailed means gitleaks exited with a non-zero status.
	ErrToolFailed = errors.New("gitleaks failed")
	// ErrMalformedReport means the JSON report was missing or unparseable.
	ErrMalformedReport = errors.New("malformed gitleaks report")
)

// snapshotName is the only file written to the workspace. The caller's
// name never reaches gitleaks: its global allowlist skips paths such as
// go.sum or *.pdf, so a chosen name could switch the layer off.
const snapshotName = "content.txt"

// Options configures the external scanner.
type Options struct {
	// BinaryPath pins the executable. Empty means look up "gitleaks" in
	// $PATH once, at construction.
	BinaryPath string
	// ConfigPath is an optional .gitleaks.toml.
	ConfigPath string
	// MinVersion is the oldest accepted gitleaks release.
	MinVersion string
	// Timeout bounds a single invocation. Zero means no extra bound.
	Timeout time.Duration
}

// Scanner wraps the gitleaks binary. The executable and config paths are
// resolved once in New and never re-read from the environment.
type Scanner struct {
	binaryPath string
	configPath string
	version    string
	timeout    time.Duration
}

// New resolves and verifies the gitleaks executable and config. Any
// problem is reported here rather than during a scan.
func New(ctx context.Context, opts Options) (*Scanner, error) {
	bin, err := Resolve(opts.BinaryPath)
	if err != nil {
		return nil, err
	}
	v, err := Version(ctx, bin)
	version := v.String()
	switch {
	case errors.Is(err, ErrUnknownVersion) && opts.MinVersion == "":
		// No minimum to enforce, so an unstamped build is acceptable.
		version = "unknown"
	case err != nil:
		return nil, err
	default:
		if err := CheckVersion(v, opts.MinVersion); err != nil {
			return nil, err
		}
	}

	s := &Scanner{
		binaryPath: bin,
		version:    version,
		timeout:    opts.Timeout,
	}
	if opts.ConfigPath != "" {
		abs, err := ValidateConfig(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		s.configPath = abs
	}
	return s, nil
}

// Name implements the scanner's detector contract.
func (s *Scanner) Name() string { return Name }

// Version returns the gitleaks version detected at construction.
func (s *Scanner) Version() string { return s.version }

// BinaryPath returns the absolute executable path in use.
func (s *Scanner) BinaryPath() string { return s.binaryPath }

// Scan writes content into a private temporary directory, runs gitleaks
// over it without git history and converts the report. The directory is
// removed before Scan returns, whatever the outcome.
func (s *Scanner) Scan(ctx context.Context, content, filename string) ([]types.Finding, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ws, err := newWorkspace()
	if err != nil {
		return nil, err
	}
	defer ws.release()

	if err := ws.write(snapshotName, content); err != nil {
		return nil, err
	}

	if err := s.run(ctx, ws); err != nil {
		return nil, err
	}

	raw, err := readReport(ws.reportPath)
	if err != nil {
		return nil, err
	}
	return convertFindings(raw, filename), nil
}

func (s *Scanner) run(ctx context.Context, ws *workspace) error {
	args := []string{
		"detect",
		"--no-git",
		"--no-banner",
		"--source", ws.srcDir,
		"--report-format", "json",
		"--report-path", ws.reportPath,
		"--exit-code", "0",
	}
	if s.configPath != "" {
		args = append(args, "--config", s.configPath)
	}

	cmd := exec.CommandContext(ctx, s.binaryPath, args...)
	cmd.Env = childEnv()
	cmd.WaitDelay = 2 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("gitleaks did not finish: %w", ctxErr)
		}
		return wrapGitleaksError(err, stderr.String())
	}
	return nil
}

type workspace struct {
	root       string
	srcDir     string
	reportPath string
}

func newWorkspace() (*workspace, error) {
	root, err := os.MkdirTemp("", "pubguard-gitleaks-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp workspace: %w", err)
	}
	ws := &workspace{
		root:       root,
		srcDir:     filepath.Join(root, "src"),
		reportPath: filepath.Join(root, "report.json"),
	}
	// Restrictive permissions: the directory holds the unredacted content.
	if err := os.Chmod(root, 0o700); err != nil {
		ws.release()
		return nil, fmt.Errorf("failed to secure temp workspace: %w", err)
	}
	if err := os.Mkdir(ws.srcDir, 0o700); err != nil {
		ws.release()
		return nil, fmt.Errorf("failed to create temp workspace: %w", err)
	}
	return ws, nil
}

func (w *workspace) write(name, content string) error {
	if err := os.WriteFile(filepath.Join(w.srcDir, name), []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	return nil
}

func (w *workspace) release() {
	_ = os.RemoveAll(w.root) //nolint:errcheck // Best-effort cleanup
}

func readReport(path string) ([]GitleaksFinding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var out []GitleaksFinding
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v\n\n"+
			"This usually indicates a version compatibility issue.\n"+
			"Recommended: Gitleaks 8.18.0 or later", ErrMalformedReport, err)
	}
	return out, nil
}

func wrapGitleaksError(err error, stderr string) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := fmt.Sprintf("exit code %d", exitErr.ExitCode())

		switch {
		case contains(stderr, "config"), contains(stderr, ".toml"):
			msg += "\n\nConfig file error detected. Check your .gitleaks.toml file:\n" +
				"  - Verify TOML syntax is valid\n" +
				"  - Check that all regex patterns are properly escaped"
		case contains(stderr, "permission denied"):
			msg += "\n\nPermission denied. Check that the gitleaks binary has execute permissions."
		}
		if s := strings.TrimSpace(stderr); s != "" {
			msg += "\n\nGitleaks error output:\n" + s
		}
		return fmt.Errorf("%w (%s)", ErrToolFailed, msg)
	}
	return fmt.Errorf("%w: execution failed: %v", ErrToolFailed, err)
}

// GitleaksFinding is the subset of the gitleaks JSON report we consume.
type GitleaksFinding struct {
	Description string   `json:"Description"`
	RuleID      string   `json:"RuleID"`
	Match       string   `json:"Match"`
	Secret      string   `json:"Secret"`
	StartLine   int      `json:"StartLine"`
	EndLine     int      `json:"EndLine"`
	StartColumn int      `json:"StartColumn"`
	EndColumn   int      `json:"EndColumn"`
	File        string   `json:"File"`
	Entropy     float64  `json:"Entropy,omitempty"`
	Tags        []string `json:"Tags,omitempty"`
	Fingerprint string   `json:"Fingerprint,omitempty"`
}

// convertFindings maps report entries to findings. Secrets are always
// critical and never shown in full.
func convertFindings(in []GitleaksFinding, filename string) []types.Finding {
	if len(in) == 0 {
		return nil
	}
	out := make([]types.Finding, 0, len(in))
	for _, gf := range in {
		secret := gf.Secret
		if secret == "" {
			secret = gf.Match
		}
		rule := gf.RuleID
		if rule == "" {
			rule = "unknown"
		}
		desc := gf.Description
		if desc == "" {
			desc = "Secret detected"
		}
		out = append(out, types.Finding{
			Category:    types.CategorySecrets,
			Severity:    types.SevCritical,
			RuleID:      rule,
			Description: desc,
			Match:       redact.Mask(secret),
			Path:        filename,
			Line:        gf.StartLine,
			Confidence:  1.0,
		})
	}
	return out
}

func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
