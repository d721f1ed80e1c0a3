package audit

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varalys/pubguard/internal/types"
)

func byFile() map[string][]types.Finding {
	return map[string][]types.Finding{
		"analysis.md": {
			{Category: types.CategoryCustom, Severity: types.SevHigh, RuleID: "email", Match: "jane@corp.io", Path: "analysis.md", Line: 4, Confidence: 1},
			{Category: types.CategorySecrets, Severity: types.SevCritical, RuleID: "aws-access-token", Match: "***REDACTED***", Path: "analysis.md", Line: 9, Confidence: 1},
		},
	}
}

func TestAppendAndLoadHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "audit.jsonl")
	log := New(path)

	first := NewRecord("scan-1", true, []string{"analysis.md"}, []string{"regex"}, nil, time.Second, nil)
	second := NewRecord("scan-2", false, []string{"session.txt", "analysis.md"}, []string{"gitleaks", "regex"}, byFile(), 2*time.Second, nil)
	require.NoError(t, log.Append(first))
	require.NoError(t, log.Append(second))

	recs, err := log.LoadHistory()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "scan-2", recs[0].ScanID)
	assert.Equal(t, "scan-1", recs[1].ScanID)

	got := recs[0]
	assert.False(t, got.Allowed)
	assert.Equal(t, []string{"analysis.md", "session.txt"}, got.Files)
	assert.Equal(t, 2, got.TotalFindings)
	assert.Equal(t, map[string]int{"high": 1, "critical": 1}, got.SeverityCounts)
	require.Len(t, got.Findings, 2)
	assert.Equal(t, "email", got.Findings[0].RuleID)
	assert.Equal(t, 4, got.Findings[0].Line)
	assert.Len(t, got.Findings[0].Fingerprint, 16)
}

func TestAppend_NeverStoresMatchedText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	require.NoError(t, New(path).Append(NewRecord("s", false, []string{"analysis.md"}, nil, byFile(), 0, nil)))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "jane@corp.io")
	assert.NotContains(t, string(b), "REDACTED")
}

func TestAppend_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	dir := filepath.Join(t.TempDir(), "nested")
	path := filepath.Join(dir, "audit.jsonl")
	require.NoError(t, New(path).Append(NewRecord("s", true, nil, nil, nil, 0, nil)))

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())
	st, err = os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), st.Mode().Perm())
}

func TestLoadHistory_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	body := strings.Join([]string{
		`{"scan_id":"a","allowed":true}`,
		`{not json`,
		``,
		`{"scan_id":"b","allowed":false}`,
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	recs, err := New(path).LoadHistory()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "b", recs[0].ScanID)
	assert.Equal(t, "a", recs[1].ScanID)
}

func TestLoadHistory_Missing(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "none.jsonl")).LoadHistory()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewRecord_Error(t *testing.T) {
	rec := NewRecord("s", false, []string{"a.md"}, nil, nil, 1500*time.Microsecond, errors.New("gitleaks failed"))
	assert.Equal(t, "gitleaks failed", rec.Error)
	assert.Equal(t, "2ms", rec.Duration)
	assert.Empty(t, rec.Findings)
}

func TestFingerprint(t *testing.T) {
	f := types.Finding{RuleID: "email", Line: 3, Match: "a@b.io"}
	a := Fingerprint("x.md", f)
	assert.Equal(t, a, Fingerprint("x.md", f))
	assert.NotEqual(t, a, Fingerprint("y.md", f))
	f.Line = 4
	assert.NotEqual(t, a, Fingerprint("x.md", f))
}
