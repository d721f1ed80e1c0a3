package scanner

import (
	"github.com/rs/zerolog"

	"github.com/varalys/pubguard/internal/scanner/presidio"
)

type options struct {
	logger      zerolog.Logger
	parallelism int
	recognizer  presidio.Recognizer
	root        string
}

// Option customizes a Scanner.
type Option func(*options)

// WithLogger sets the logger used for layer warnings and scan tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithParallelism bounds how many files ScanMultiple scans at once.
func WithParallelism(n int) Option {
	return func(o *options) { o.parallelism = n }
}

// WithRecognizer replaces the Presidio HTTP client with another entity
// engine. It only takes effect when presidio.enabled is set.
func WithRecognizer(r presidio.Recognizer) Option {
	return func(o *options) { o.recognizer = r }
}

// WithRoot is the directory searched for a .gitleaks.toml when the policy
// names none.
func WithRoot(dir string) Option {
	return func(o *options) { o.root = dir }
}
