package pubguard

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cli runs the command tree in a scratch directory with the gitleaks layer
// switched off, returning stdout and the exit code.
func cli(t *testing.T, args ...string) (string, int) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	code := exitCode(err)
	if code == exitError {
		out.WriteString("error: " + err.Error())
	}
	return out.String(), code
}

func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("PUBGUARD_GITLEAKS_ENABLED", "false")
	return dir
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestScan_Clean(t *testing.T) {
	dir := workspace(t)
	writeFile(t, dir, "a.md", "nothing sensitive")

	out, code := cli(t, "scan", "a.md")
	assert.Equal(t, exitSafe, code, out)
	assert.Contains(t, out, "No sensitive data detected")
}

func TestScan_BlockedAndRedacted(t *testing.T) {
	dir := workspace(t)
	writeFile(t, dir, "a.md", "clean text")
	writeFile(t, dir, "b.md", "ssn 123-45-6789")

	out, code := cli(t, "scan", "--no-color", "a.md", "b.md")
	assert.Equal(t, exitBlocked, code, out)
	assert.Contains(t, out, "📄 b.md:")
	assert.NotContains(t, out, "📄 a.md:")
	assert.Contains(t, out, "CRITICAL (1):")
	assert.NotContains(t, out, "123-45-6789")
}

func TestScan_GlobAndJSON(t *testing.T) {
	dir := workspace(t)
	writeFile(t, dir, "out/one.md", "mail ops@corp.io")
	writeFile(t, dir, "out/nested/two.md", "fine")

	out, code := cli(t, "scan", "--json", "out/**/*.md")
	assert.Equal(t, exitBlocked, code, out)

	var res struct {
		Safe   bool                       `json:"safe"`
		Files  []string                   `json:"files"`
		ByFile map[string][]map[string]any `json:"findings_by_file"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.False(t, res.Safe)
	assert.Equal(t, []string{filepath.Join("out", "nested", "two.md"), filepath.Join("out", "one.md")}, res.Files)
	assert.Contains(t, res.ByFile, filepath.Join("out", "one.md"))
}

func TestScan_SARIF(t *testing.T) {
	dir := workspace(t)
	writeFile(t, dir, "a.md", "host 192.168.1.20")

	out, code := cli(t, "scan", "--sarif", "a.md")
	assert.Equal(t, exitSafe, code, out)
	assert.Contains(t, out, `"version": "2.1.0"`)
	assert.Contains(t, out, `"level": "warning"`)
}

func TestScan_Errors(t *testing.T) {
	workspace(t)
	_, code := cli(t, "scan", "missing.md")
	assert.Equal(t, exitError, code)

	_, code = cli(t, "scan", "nothing/**/*.md")
	assert.Equal(t, exitError, code)
}

func TestScan_NoLayersIsError(t *testing.T) {
	dir := workspace(t)
	t.Setenv("PUBGUARD_REGEX_ENABLED", "false")
	writeFile(t, dir, "a.md", "text")

	out, code := cli(t, "scan", "a.md")
	assert.Equal(t, exitError, code)
	assert.Contains(t, out, "no detection layer")
}

func TestCheck_WithAudit(t *testing.T) {
	dir := workspace(t)
	logPath := filepath.Join(dir, "state", "audit.jsonl")
	writeFile(t, dir, ".pubguard.yml", "audit:\n  path: "+logPath+"\n")
	writeFile(t, dir, "analysis.md", "A clean write-up.")
	writeFile(t, dir, "session.txt", "user: call me at (555) 123-4567")

	out, code := cli(t, "check", "analysis.md")
	assert.Equal(t, exitSafe, code, out)
	assert.Contains(t, out, "OK to publish")

	out, code = cli(t, "check", "analysis.md", "--session", "session.txt")
	assert.Equal(t, exitBlocked, code, out)
	assert.True(t, strings.HasPrefix(out, "❌ Cannot publish - sensitive data detected:"), out)
	assert.Contains(t, out, "📄 session.txt:")

	out, code = cli(t, "audit")
	assert.Equal(t, exitSafe, code, out)
	assert.Contains(t, out, "blocked")
	assert.Contains(t, out, "allowed")
	assert.Less(t, strings.Index(out, "blocked"), strings.Index(out, "allowed"))
}

func TestAudit_NotConfigured(t *testing.T) {
	workspace(t)
	_, code := cli(t, "audit")
	assert.Equal(t, exitError, code)
}

func TestRules(t *testing.T) {
	dir := workspace(t)
	writeFile(t, dir, ".pubguard.yml", `regex:
  custom_patterns:
    - id: ticket
      pattern: 'TCK-[0-9]{6}'
      description: Internal ticket
      severity: low
`)
	out, code := cli(t, "rules")
	assert.Equal(t, exitSafe, code, out)
	assert.Contains(t, out, "bearer-token")
	assert.Contains(t, out, "ticket")
	assert.Contains(t, out, "11 rules")

	out, code = cli(t, "rules", "--entities")
	assert.Equal(t, exitSafe, code, out)
	assert.Contains(t, out, "CREDIT_CARD")
}

func TestConfigInitAndShow(t *testing.T) {
	dir := workspace(t)

	out, code := cli(t, "config", "init")
	assert.Equal(t, exitSafe, code, out)
	require.FileExists(t, filepath.Join(dir, ".pubguard.yml"))

	_, code = cli(t, "config", "init")
	assert.Equal(t, exitError, code)

	t.Setenv("PUBGUARD_PRESIDIO_CONFIDENCE_THRESHOLD", "0.9")
	out, code = cli(t, "config", "show")
	assert.Equal(t, exitSafe, code, out)
	assert.Contains(t, out, ".pubguard.yml")
	assert.Contains(t, out, "confidence_threshold: 0.9")
	assert.Contains(t, out, "enabled: false")
}

func TestCompletion(t *testing.T) {
	workspace(t)
	out, code := cli(t, "completion", "bash")
	assert.Equal(t, exitSafe, code)
	assert.Contains(t, out, "pubguard")
}

func TestCheck_NameCollisionIsError(t *testing.T) {
	dir := workspace(t)
	writeFile(t, dir, "a.md", "ssn 123-45-6789")
	writeFile(t, dir, "s.txt", "clean text")

	out, code := cli(t, "check", "a.md", "-s", "s.txt", "--analysis-name", "notes.md", "--session-name", "notes.md")
	assert.Equal(t, exitError, code, out)
	assert.Contains(t, out, "share a file name")
	assert.NotContains(t, out, "OK to publish")
}

func TestCheck_HelpNamesTrustedFiles(t *testing.T) {
	out, code := cli(t, "check", "--help")
	assert.Equal(t, exitSafe, code, out)
	assert.Contains(t, out, ".gitleaks.toml")
	assert.Contains(t, out, ".env")
}
