package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/varalys/pubguard/internal/types"
)

// NoFindings is the whole report for an empty finding list.
const NoFindings = "No sensitive data detected ✅"

const header = "❌ Sensitive data detected:"

// Renderer formats findings as text. Heading, when set, decorates the
// severity group headings (the CLI colours them); it must not change
// anything else.
type Renderer struct {
	Heading func(sev types.Severity, text string) string
}

// Format renders findings with the default plain Renderer.
func Format(findings []types.Finding) string {
	return Renderer{}.Format(findings)
}

// FormatFiles renders one block per file, files in name order.
func FormatFiles(byFile map[string][]types.Finding) string {
	return Renderer{}.FormatFiles(byFile)
}

// Format groups findings by severity, most severe first. Input order is
// kept inside a group.
func (r Renderer) Format(findings []types.Finding) string {
	if len(findings) == 0 {
		return NoFindings
	}

	groups := make(map[types.Severity][]types.Finding, 4)
	for _, f := range findings {
		groups[f.Severity] = append(groups[f.Severity], f)
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for _, sev := range types.Severities() {
		items := groups[sev]
		if len(items) == 0 {
			continue
		}
		heading := fmt.Sprintf("%s (%d):", strings.ToUpper(sev.String()), len(items))
		if r.Heading != nil {
			heading = r.Heading(sev, heading)
		}
		fmt.Fprintf(&b, "\n%s\n", heading)
		for _, f := range items {
			fmt.Fprintf(&b, "  • %s/%s: %s\n", f.Category, f.RuleID, f.Description)
			fmt.Fprintf(&b, "    Location: %s\n", f.Location())
			fmt.Fprintf(&b, "    Match: %s\n", f.Match)
			if f.Confidence < 1.0 {
				fmt.Fprintf(&b, "    Confidence: %.0f%%\n", f.Confidence*100)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatFiles renders one Format block per file under a "📄 name:" line.
func (r Renderer) FormatFiles(byFile map[string][]types.Finding) string {
	names := make([]string, 0, len(byFile))
	for name := range byFile {
		names = append(names, name)
	}
	sort.Strings(names)

	blocks := make([]string, 0, len(names))
	for _, name := range names {
		blocks = append(blocks, fmt.Sprintf("📄 %s:\n%s", name, r.Format(byFile[name])))
	}
	return strings.Join(blocks, "\n\n")
}
