// Package config loads the pubguard policy: which detection layers run,
// their thresholds and allowlists, and user-supplied regex rules. Policies
// are read from YAML, overlaid with PUBGUARD_* environment variables, and
// validated once; callers treat the result as immutable.
package config
