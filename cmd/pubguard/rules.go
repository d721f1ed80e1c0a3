package pubguard

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/varalys/pubguard/internal/detectors"
	"github.com/varalys/pubguard/internal/scanner"
	"github.com/varalys/pubguard/internal/scanner/presidio"
)

func newRulesCmd(g *globalOptions) *cobra.Command {
	var entities bool
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List regex rules (builtin and custom) or PII entity severities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if entities {
				table := tablewriter.NewWriter(out)
				table.Header("ENTITY", "SEVERITY", "REDACTED")
				for _, e := range presidio.EntityTypes() {
					if err := table.Append([]string{e, presidio.SeverityFor(e).String(), strconv.FormatBool(presidio.Redacted(e))}); err != nil {
						return err
					}
				}
				return table.Render()
			}

			p, _, err := loadPolicy(g)
			if err != nil {
				return err
			}
			d, err := scanner.NewPatterns(p.Regex)
			if err != nil {
				return err
			}
			builtin := map[string]bool{}
			for _, b := range detectors.Builtin() {
				builtin[b.ID] = true
			}

			rules := d.Rules()
			table := tablewriter.NewWriter(out)
			table.Header("ID", "SEVERITY", "REDACT", "SOURCE", "DESCRIPTION")
			for _, r := range rules {
				source := "custom"
				if p.Regex.Builtin && builtin[r.ID] {
					source = "builtin"
				}
				if err := table.Append([]string{r.ID, r.Severity.String(), strconv.FormatBool(r.Redact), source, r.Description}); err != nil {
					return err
				}
			}
			if err := table.Render(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d rules", len(rules))
			if !p.Regex.Enabled {
				fmt.Fprint(out, " (regex layer disabled by policy)")
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&entities, "entities", false, "list PII entity types and their severities")
	return cmd
}
