package scanner

import (
	"errors"
	"fmt"
)

// ErrNoDetectors means construction left no usable layer.
var ErrNoDetectors = errors.New("no detection layer is enabled")

// ConfigError reports a construction-time failure: an invalid policy, a
// required layer that could not start, or an empty enabled set.
type ConfigError struct {
	Layer string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Layer == "" {
		return fmt.Sprintf("scanner configuration: %v", e.Err)
	}
	return fmt.Sprintf("scanner configuration: %s: %v", e.Layer, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ScanError reports a detector that failed on a file. A scan that returns
// it has not produced a safety verdict.
type ScanError struct {
	Detector string
	File     string
	Err      error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("%s failed scanning %s: %v", e.Detector, e.File, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }
