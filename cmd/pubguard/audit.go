package pubguard

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/varalys/pubguard/internal/audit"
)

func newAuditCmd(g *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recorded publication decisions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _, err := loadPolicy(g)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if p.Audit.Path == "" {
				return fmt.Errorf("no audit log configured; set audit.path in the policy")
			}

			records, err := audit.New(p.Audit.Path).LoadHistory()
			if errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintln(out, "No decisions recorded yet.")
				return nil
			}
			if err != nil {
				return err
			}
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}

			table := tablewriter.NewWriter(out)
			table.Header("TIME", "SCAN ID", "DECISION", "FILES", "FINDINGS", "ERROR")
			for _, r := range records {
				decision := "allowed"
				if !r.Allowed {
					decision = "blocked"
				}
				if err := table.Append([]string{
					r.Timestamp.Local().Format(time.DateTime),
					r.ScanID,
					decision,
					strings.Join(r.Files, ", "),
					strconv.Itoa(r.TotalFindings),
					r.Error,
				}); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "show at most this many records (0 = all)")
	return cmd
}
