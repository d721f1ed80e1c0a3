package pubguard

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/varalys/pubguard/internal/audit"
	"github.com/varalys/pubguard/internal/gate"
	"github.com/varalys/pubguard/internal/report"
)

type checkOptions struct {
	session      string
	analysisName string
	sessionName  string
	copyReport   bool
}

func newCheckCmd(g *globalOptions) *cobra.Command {
	opts := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check <analysis-file>",
		Short: "Decide whether an analysis (and optional transcript) may be published",
		Long: "Run the publication gate. The analysis and, when given, the session transcript " +
			"are scanned together. Exits 1 and prints the report when publication is blocked; " +
			"any scan failure also blocks.\n\n" +
			"The working directory is trusted: its .pubguard.yml, .gitleaks.toml and .env " +
			"are read and can relax rules or point the gitleaks binary elsewhere. " +
			"Run from a directory you control. Setting gitleaks.config_path disables the " +
			".gitleaks.toml lookup, and both cases are logged as warnings.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analysis, err := readInput(args[0])
			if err != nil {
				return err
			}
			var session string
			if opts.session != "" {
				if session, err = readInput(opts.session); err != nil {
					return err
				}
			}

			p, _, err := loadPolicy(g)
			if err != nil {
				return err
			}
			s, err := buildScanner(cmd.Context(), p)
			if err != nil {
				return err
			}

			gopts := []gate.Option{gate.WithLogger(log.Logger)}
			if p.Audit.Path != "" {
				gopts = append(gopts, gate.WithAudit(audit.New(p.Audit.Path)))
			}
			d, err := gate.New(s, gopts...).Check(cmd.Context(), gate.Publication{
				Analysis:     analysis,
				Session:      session,
				AnalysisName: opts.analysisName,
				SessionName:  opts.sessionName,
			})

			out := cmd.OutOrStdout()
			if d.Report != "" {
				fmt.Fprintln(out, d.Report)
				if opts.copyReport {
					if cerr := clipboard.WriteAll(d.Report); cerr != nil {
						log.Warn().Err(cerr).Msg("Failed to copy report to clipboard")
					}
				}
			}
			if err != nil {
				return err
			}
			if !d.Allowed {
				return errBlocked
			}
			if d.Report == "" {
				fmt.Fprintln(out, report.NoFindings)
			}
			fmt.Fprintf(out, "OK to publish (scan %s)\n", d.ScanID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.session, "session", "s", "", "session transcript to publish alongside the analysis")
	cmd.Flags().StringVar(&opts.analysisName, "analysis-name", gate.DefaultAnalysisName, "published name of the analysis")
	cmd.Flags().StringVar(&opts.sessionName, "session-name", gate.DefaultSessionName, "published name of the transcript")
	cmd.Flags().BoolVar(&opts.copyReport, "copy-report", false, "copy the report to the clipboard")
	return cmd
}
