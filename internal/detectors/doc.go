// Package detectors implements the regex pattern layer. A Detector holds an
// ordered list of compiled rules (the builtin set followed by user rules),
// scans content line by line and emits one finding per match, applying the
// per-rule allowlist and redaction flag.
//
// Rules are data: add a Pattern to Builtin or to the policy's custom
// patterns. Patterns compile case-insensitively.
package detectors
