// Package core is the stable import path for programs that embed the
// publication scanner. It re-exports a narrow API over the internal
// packages so callers never import them directly.
//
// Example:
//
//	s, err := core.NewScanner(ctx, core.DefaultPolicy())
//	if err != nil { /* no usable layer, or a bad policy */ }
//	safe, byFile, err := s.ScanMultiple(ctx, map[string]string{"analysis.md": text})
//	if err != nil || !safe { /* block, show core.FormatFiles(byFile) */ }
package core
