// Package scanner combines the detection layers into one safety verdict.
//
// Layers run in registration order (gitleaks, presidio, regex) and their
// findings are concatenated without deduplication. Content is safe when
// no finding is HIGH or CRITICAL.
package scanner

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/varalys/pubguard/internal/types"
)

// DefaultFilename labels content scanned without a name.
const DefaultFilename = "content.txt"

// DefaultParallelism bounds concurrent files in ScanMultiple.
const DefaultParallelism = 4

// Detector is one detection layer.
type Detector interface {
	Name() string
	Scan(ctx context.Context, content, filename string) ([]types.Finding, error)
}

// Scanner is the aggregator. It is safe for concurrent use once built.
type Scanner struct {
	detectors   []Detector
	logger      zerolog.Logger
	parallelism int

	// piiMu serializes recognizers that are not safe for concurrent use.
	piiMu sync.Mutex
}

// FromDetectors builds a Scanner over already constructed layers, kept in
// the given order.
func FromDetectors(detectors []Detector, opts ...Option) (*Scanner, error) {
	s := newScanner(opts)
	for _, d := range detectors {
		if d != nil {
			s.detectors = append(s.detectors, d)
		}
	}
	if len(s.detectors) == 0 {
		return nil, &ConfigError{Err: ErrNoDetectors}
	}
	return s, nil
}

func newScanner(opts []Option) *Scanner {
	o := options{
		logger:      log.Logger,
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.parallelism < 1 {
		o.parallelism = 1
	}
	return &Scanner{
		logger:      o.logger,
		parallelism: o.parallelism,
	}
}

// Detectors returns the enabled layer names in registration order.
func (s *Scanner) Detectors() []string {
	names := make([]string, len(s.detectors))
	for i, d := range s.detectors {
		names[i] = d.Name()
	}
	return names
}

// Scan runs every layer over content in order. Any layer failure aborts
// the call with a *ScanError and safe=false.
func (s *Scanner) Scan(ctx context.Context, content, filename string) (bool, []types.Finding, error) {
	if filename == "" {
		filename = DefaultFilename
	}

	var all []types.Finding
	for _, d := range s.detectors {
		if err := ctx.Err(); err != nil {
			return false, nil, &ScanError{Detector: d.Name(), File: filename, Err: err}
		}
		start := time.Now()
		fs, err := d.Scan(ctx, content, filename)
		if err != nil {
			s.logger.Error().Err(err).Str("layer", d.Name()).Str("file", filename).Msg("Detection layer failed")
			return false, nil, &ScanError{Detector: d.Name(), File: filename, Err: err}
		}
		s.logger.Debug().
			Str("layer", d.Name()).
			Str("file", filename).
			Int("findings", len(fs)).
			Dur("took", time.Since(start)).
			Msg("Layer finished")
		all = append(all, fs...)
	}
	return types.IsSafe(all), all, nil
}

// ScanMultiple scans each file independently, at most Parallelism at a
// time. The result map only holds files with at least one finding. The
// first failure cancels the remaining files.
func (s *Scanner) ScanMultiple(ctx context.Context, files map[string]string) (bool, map[string][]types.Finding, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([][]types.Finding, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, name := range names {
		g.Go(func() error {
			_, fs, err := s.Scan(gctx, files[name], name)
			if err != nil {
				return err
			}
			results[i] = fs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, nil, err
	}

	allSafe := true
	byFile := make(map[string][]types.Finding)
	for i, name := range names {
		if len(results[i]) == 0 {
			continue
		}
		byFile[name] = results[i]
		if !types.IsSafe(results[i]) {
			allSafe = false
		}
	}
	return allSafe, byFile, nil
}
