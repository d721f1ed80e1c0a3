package report

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/varalys/pubguard/internal/types"
)

const sarifSchema = "https://json.schemastore.org/sarif-2.1.0.json"

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version,omitempty"`
	InformationURI string      `json:"informationUri,omitempty"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
	Properties       sarifProps   `json:"properties"`
}

type sarifProps struct {
	Category string `json:"category"`
	Severity string `json:"severity"`
}

type sarifResult struct {
	RuleID    string       `json:"ruleId"`
	RuleIndex int          `json:"ruleIndex"`
	Level     string       `json:"level"`
	Message   sarifMessage `json:"message"`
	Locations []sarifLoc   `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLoc struct {
	PhysicalLocation sarifPhys `json:"physicalLocation"`
}

type sarifPhys struct {
	ArtifactLocation sarifArt     `json:"artifactLocation"`
	Region           *sarifRegion `json:"region,omitempty"`
}

type sarifArt struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

func sevToLevel(s types.Severity) string {
	switch s {
	case types.SevCritical, types.SevHigh:
		return "error"
	case types.SevMed:
		return "warning"
	default:
		return "note"
	}
}

// WriteSARIF writes findings as a SARIF 2.1.0 log. Rule IDs are qualified
// by category so the same ID from two layers stays distinct.
func WriteSARIF(w io.Writer, byFile map[string][]types.Finding, toolVersion string) error {
	names := make([]string, 0, len(byFile))
	for name := range byFile {
		names = append(names, name)
	}
	sort.Strings(names)

	run := sarifRun{
		Tool: sarifTool{Driver: sarifDriver{
			Name:           "pubguard",
			Version:        toolVersion,
			InformationURI: "https://github.com/varalys/pubguard",
			Rules:          []sarifRule{},
		}},
		Results: []sarifResult{},
	}
	ruleIndex := map[string]int{}
	for _, name := range names {
		for _, f := range byFile[name] {
			id := string(f.Category) + "/" + f.RuleID
			idx, ok := ruleIndex[id]
			if !ok {
				idx = len(run.Tool.Driver.Rules)
				ruleIndex[id] = idx
				run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{
					ID:               id,
					ShortDescription: sarifMessage{Text: f.Description},
					Properties:       sarifProps{Category: string(f.Category), Severity: f.Severity.String()},
				})
			}
			res := sarifResult{
				RuleID:    id,
				RuleIndex: idx,
				Level:     sevToLevel(f.Severity),
				Message:   sarifMessage{Text: f.Description + ": " + f.Match},
			}
			loc := sarifLoc{PhysicalLocation: sarifPhys{ArtifactLocation: sarifArt{URI: name}}}
			if f.Line > 0 {
				loc.PhysicalLocation.Region = &sarifRegion{StartLine: f.Line}
			}
			res.Locations = []sarifLoc{loc}
			run.Results = append(run.Results, res)
		}
	}

	doc := sarif{Schema: sarifSchema, Version: "2.1.0", Runs: []sarifRun{run}}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
