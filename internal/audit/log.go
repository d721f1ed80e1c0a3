// Package audit keeps an append-only JSONL record of publication
// decisions. Matched text never reaches the log; each finding is kept as
// metadata plus a fingerprint.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/varalys/pubguard/internal/types"
)

const maxRecordBytes = 4 << 20

// DecisionRecord is one line of the audit log.
type DecisionRecord struct {
	Timestamp      time.Time        `json:"timestamp"`
	ScanID         string           `json:"scan_id"`
	Allowed        bool             `json:"allowed"`
	Files          []string         `json:"files"`
	Layers         []string         `json:"layers,omitempty"`
	TotalFindings  int              `json:"total_findings"`
	SeverityCounts map[string]int   `json:"severity_counts"`
	Duration       string           `json:"duration"`
	Error          string           `json:"error,omitempty"`
	Findings       []FindingSummary `json:"findings,omitempty"`
}

// FindingSummary identifies a finding without its matched text.
type FindingSummary struct {
	File        string `json:"file"`
	RuleID      string `json:"rule_id"`
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Line        int    `json:"line,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

// Log appends records to a single file.
type Log struct {
	path string
	mu   sync.Mutex
}

// New returns a Log writing to path. Nothing is created until the first
// Append.
func New(path string) *Log {
	return &Log{path: path}
}

// Path returns the log file location.
func (a *Log) Path() string { return a.path }

// Append writes rec as one JSON line. The file is created 0600 and its
// directory 0700.
func (a *Log) Append(rec DecisionRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0o700); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}
	// Owner-only: the log lists which files held which kinds of data.
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode audit record: %w", err)
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// LoadHistory returns all records, newest first. Lines that do not decode
// are skipped.
func (a *Log) LoadHistory() ([]DecisionRecord, error) {
	f, err := os.Open(a.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var records []DecisionRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxRecordBytes)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec DecisionRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// NewRecord summarizes a decision. files lists every scanned file, clean
// or not; scanErr is recorded as text when the scan failed.
func NewRecord(scanID string, allowed bool, files, layers []string, byFile map[string][]types.Finding, took time.Duration, scanErr error) DecisionRecord {
	names := append([]string(nil), files...)
	sort.Strings(names)

	var all []types.Finding
	var summaries []FindingSummary
	for _, name := range names {
		for _, f := range byFile[name] {
			all = append(all, f)
			summaries = append(summaries, FindingSummary{
				File:        name,
				RuleID:      f.RuleID,
				Category:    string(f.Category),
				Severity:    f.Severity.String(),
				Line:        f.Line,
				Fingerprint: Fingerprint(name, f),
			})
		}
	}

	rec := DecisionRecord{
		Timestamp:      time.Now().UTC(),
		ScanID:         scanID,
		Allowed:        allowed,
		Files:          names,
		Layers:         layers,
		TotalFindings:  len(all),
		SeverityCounts: types.CountBySeverity(all),
		Duration:       took.Round(time.Millisecond).String(),
		Findings:       summaries,
	}
	if scanErr != nil {
		rec.Error = scanErr.Error()
	}
	return rec
}

// Fingerprint identifies a finding across runs without storing its text.
func Fingerprint(file string, f types.Finding) string {
	h := xxhash.New()
	_, _ = h.WriteString(file)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(f.RuleID)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(strconv.Itoa(f.Line))
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(f.Match)
	return fmt.Sprintf("%016x", h.Sum64())
}
