// Package gate decides whether generated text may be published. It is
// the only path from scan results to a publish decision and it fails
// closed: a scan error is a block.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/varalys/pubguard/internal/audit"
	"github.com/varalys/pubguard/internal/report"
	"github.com/varalys/pubguard/internal/types"
)

const (
	DefaultAnalysisName = "analysis.md"
	DefaultSessionName  = "session.txt"
)

// BlockedHeader opens the report of a blocked publication.
const BlockedHeader = "❌ Cannot publish - sensitive data detected:"

var (
	// ErrEmptyAnalysis is returned when there is nothing to publish.
	ErrEmptyAnalysis = errors.New("analysis content is empty")
	// ErrNameCollision is returned when the analysis and the session
	// resolve to the same file name, so one would hide the other.
	ErrNameCollision = errors.New("analysis and session share a file name")
)

// Scanner is the part of the aggregator the gate needs.
type Scanner interface {
	ScanMultiple(ctx context.Context, files map[string]string) (bool, map[string][]types.Finding, error)
	Detectors() []string
}

// Publication is the content about to be shared. Session is optional and
// only scanned when non-empty.
type Publication struct {
	Analysis     string
	Session      string
	AnalysisName string
	SessionName  string
}

func (p Publication) files() (map[string]string, error) {
	an := p.AnalysisName
	if an == "" {
		an = DefaultAnalysisName
	}
	files := map[string]string{an: p.Analysis}
	if p.Session != "" {
		sn := p.SessionName
		if sn == "" {
			sn = DefaultSessionName
		}
		if sn == an {
			return nil, fmt.Errorf("%w: %q", ErrNameCollision, an)
		}
		files[sn] = p.Session
	}
	return files, nil
}

// Decision is the outcome of Check.
type Decision struct {
	ScanID         string
	Allowed        bool
	FindingsByFile map[string][]types.Finding
	// Report is shown to the user before any retry. It is empty when the
	// publication is allowed without findings.
	Report string
}

// Gate wraps a Scanner with the publish rule and the audit trail.
type Gate struct {
	scanner Scanner
	audit   *audit.Log
	logger  zerolog.Logger
}

// Option customizes a Gate.
type Option func(*Gate)

// WithAudit records every decision in l.
func WithAudit(l *audit.Log) Option {
	return func(g *Gate) { g.audit = l }
}

// WithLogger sets the gate logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// New returns a Gate over s.
func New(s Scanner, opts ...Option) *Gate {
	g := &Gate{scanner: s, logger: log.Logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check scans the publication. Allowed is true only when every file is
// safe and the scan completed. A failure to write the audit record is
// logged and does not change the decision.
func (g *Gate) Check(ctx context.Context, pub Publication) (Decision, error) {
	d := Decision{ScanID: uuid.NewString()}
	if pub.Analysis == "" {
		return d, ErrEmptyAnalysis
	}

	files, err := pub.files()
	if err != nil {
		return d, err
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}

	start := time.Now()
	safe, byFile, err := g.scanner.ScanMultiple(ctx, files)
	took := time.Since(start)

	if err != nil {
		d.Report = BlockedHeader + "\n\nScan failed: " + err.Error()
	} else {
		d.Allowed = safe
		d.FindingsByFile = byFile
		switch {
		case !safe:
			d.Report = BlockedHeader + "\n\n" + report.FormatFiles(byFile)
		case len(byFile) > 0:
			d.Report = report.FormatFiles(byFile)
		}
	}

	g.logger.Info().
		Str("scan_id", d.ScanID).
		Bool("allowed", d.Allowed).
		Strs("files", names).
		Dur("took", took).
		Msg("Publication checked")

	if g.audit != nil {
		rec := audit.NewRecord(d.ScanID, d.Allowed, names, g.scanner.Detectors(), byFile, took, err)
		if aerr := g.audit.Append(rec); aerr != nil {
			g.logger.Warn().Err(aerr).Str("path", g.audit.Path()).Msg("Failed to write audit record")
		}
	}
	return d, err
}
