package report

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/varalys/pubguard/internal/types"
)

// Result is the machine-readable form of a multi-file scan.
type Result struct {
	Safe   bool                       `json:"safe"`
	Counts map[string]int             `json:"counts"`
	Files  []string                   `json:"files"`
	ByFile map[string][]types.Finding `json:"findings_by_file"`
}

// NewResult builds a Result. scanned lists every input file, including
// clean ones.
func NewResult(safe bool, scanned []string, byFile map[string][]types.Finding) Result {
	files := append([]string(nil), scanned...)
	sort.Strings(files)

	var all []types.Finding
	for _, name := range files {
		all = append(all, byFile[name]...)
	}
	if byFile == nil {
		byFile = map[string][]types.Finding{}
	}
	return Result{
		Safe:   safe,
		Counts: types.CountBySeverity(all),
		Files:  files,
		ByFile: byFile,
	}
}

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}
