package pubguard

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/varalys/pubguard/internal/config"
)

func newConfigCmd(g *globalOptions) *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Policy helpers"}

	var output string
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default policy to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				if _, err := os.Stat(output); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", output)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return err
				}
			}
			b, err := yaml.Marshal(config.Default())
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, b, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", ".pubguard.yml", "output file path")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective policy after file and environment overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, path, err := loadPolicy(g)
			if err != nil {
				return err
			}
			b, err := yaml.Marshal(p)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if path == "" {
				fmt.Fprintln(out, "# no policy file found; built-in defaults")
			} else {
				fmt.Fprintf(out, "# %s\n", path)
			}
			_, err = out.Write(b)
			return err
		},
	}

	cfgCmd.AddCommand(initCmd, showCmd)
	return cfgCmd
}
