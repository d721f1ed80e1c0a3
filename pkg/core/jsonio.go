package core

import (
	"encoding/json"
	"fmt"
	"io"
)

// MarshalFindings writes findings as indented JSON.
func MarshalFindings(w io.Writer, findings []Finding) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(findings)
}

// UnmarshalFindings decodes the output of MarshalFindings.
func UnmarshalFindings(r io.Reader) ([]Finding, error) {
	var fs []Finding
	if err := json.NewDecoder(r).Decode(&fs); err != nil {
		return nil, fmt.Errorf("failed to decode findings: %w", err)
	}
	return fs, nil
}
