package gitleaks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	semver "github.com/blang/semver/v4"
)

var (
	// ErrNotFound means no gitleaks executable could be located.
	ErrNotFound = errors.New("gitleaks binary not found")
	// ErrNotExecutable means the resolved path is not a runnable file.
	ErrNotExecutable = errors.New("gitleaks binary is not executable")
	// ErrUnsupportedVersion means the binary is older than required or its
	// version output is unrecognized.
	ErrUnsupportedVersion = errors.New("unsupported gitleaks version")
	// ErrUnknownVersion means the binary carries no release version, as
	// with builds from `go install`.
	ErrUnknownVersion = fmt.Errorf("%w: no version stamped at build time", ErrUnsupportedVersion)
)

const versionTimeout = 10 * time.Second

// Resolve returns the absolute, symlink-free path of the gitleaks
// executable. An explicit path wins; otherwise $PATH is searched once.
// exec.LookPath refuses results relative to the current directory.
func Resolve(custom string) (string, error) {
	var candidate string
	if custom != "" {
		candidate = custom
	} else {
		p, err := exec.LookPath(binaryName())
		if err != nil {
			return "", fmt.Errorf("%w in PATH: %v\n\n"+
				"To fix this:\n"+
				"  1. Install Gitleaks:\n"+
				"     macOS:   brew install gitleaks\n"+
				"     Linux:   Download from https://github.com/gitleaks/gitleaks/releases\n"+
				"  2. Or specify an explicit path in the policy:\n"+
				"     gitleaks:\n"+
				"       binary_path: /path/to/gitleaks", ErrNotFound, err)
		}
		candidate = p
	}

	abs, err := filepath.Abs(candidate)
	if err != nil {
		return "", fmt.Errorf("failed to resolve gitleaks path %s: %w", candidate, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, abs)
		}
		return "", fmt.Errorf("failed to resolve gitleaks path %s: %w", abs, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, resolved)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", ErrNotExecutable, resolved)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return "", fmt.Errorf("%w: %s has no execute permission", ErrNotExecutable, resolved)
	}
	return resolved, nil
}

// Version runs `gitleaks version` and returns the parsed semantic version.
func Version(ctx context.Context, binaryPath string) (semver.Version, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binaryPath, "version")
	cmd.Env = childEnv()
	out, err := cmd.Output()
	if err != nil {
		return semver.Version{}, fmt.Errorf("gitleaks found at %s but failed to run: %w", binaryPath, err)
	}

	// Expected output: "v8.18.0", "8.18.0" or "version 8.18.0".
	raw := strings.TrimSpace(string(out))
	if first, _, ok := strings.Cut(raw, "\n"); ok {
		raw = strings.TrimSpace(first)
	}
	if strings.Contains(raw, "set by build process") {
		return semver.Version{}, fmt.Errorf("%w: %s reports %q\n\n"+
			"This happens with gitleaks built by `go install`. Install a release build,\n"+
			"or set gitleaks.min_version to \"\" to accept it", ErrUnknownVersion, binaryPath, raw)
	}
	raw = strings.TrimPrefix(raw, "version ")
	v, err := semver.ParseTolerant(raw)
	if err != nil {
		return semver.Version{}, fmt.Errorf("%w: cannot parse %q: %v", ErrUnsupportedVersion, raw, err)
	}
	return v, nil
}

// CheckVersion enforces a minimum version. An empty minimum accepts any
// parseable version.
func CheckVersion(v semver.Version, minimum string) error {
	if minimum == "" {
		return nil
	}
	want, err := semver.ParseTolerant(minimum)
	if err != nil {
		return fmt.Errorf("invalid gitleaks.min_version %q: %w", minimum, err)
	}
	if v.LT(want) {
		return fmt.Errorf("%w: found %s, need %s or later\n\n"+
			"To update Gitleaks:\n"+
			"  macOS:   brew upgrade gitleaks\n"+
			"  Other:   download from https://github.com/gitleaks/gitleaks/releases", ErrUnsupportedVersion, v, want)
	}
	return nil
}

// childEnv drops variables that would let the environment swap in a
// different rule set behind the configured one.
func childEnv() []string {
	env := os.Environ()
	out := env[:0:0]
	for _, kv := range env {
		name, _, _ := strings.Cut(kv, "=")
		switch strings.ToUpper(name) {
		case "GITLEAKS_CONFIG", "GITLEAKS_CONFIG_TOML":
			continue
		}
		out = append(out, kv)
	}
	return out
}

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "gitleaks.exe"
	}
	return "gitleaks"
}
