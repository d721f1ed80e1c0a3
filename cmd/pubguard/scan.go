package pubguard

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/varalys/pubguard/internal/report"
)

const maxInputBytes = 16 << 20

type scanOptions struct {
	json  bool
	sarif bool
}

func newScanCmd(g *globalOptions) *cobra.Command {
	opts := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan <file|glob>...",
		Short: "Scan files and report sensitive data",
		Long: "Scan one or more files with every enabled layer. Arguments may be doublestar " +
			"globs such as 'out/**/*.md'. Exits 1 when any file holds HIGH or CRITICAL findings.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.json && opts.sarif {
				return fmt.Errorf("--json and --sarif are mutually exclusive")
			}
			paths, err := expandArgs(args)
			if err != nil {
				return err
			}
			files, err := readFiles(paths)
			if err != nil {
				return err
			}

			p, _, err := loadPolicy(g)
			if err != nil {
				return err
			}
			s, err := buildScanner(cmd.Context(), p)
			if err != nil {
				return err
			}

			safe, byFile, err := s.ScanMultiple(cmd.Context(), files)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case opts.json:
				err = report.WriteJSON(out, report.NewResult(safe, paths, byFile))
			case opts.sarif:
				err = report.WriteSARIF(out, byFile, version)
			default:
				if len(byFile) == 0 {
					fmt.Fprintln(out, report.NoFindings)
				} else {
					fmt.Fprintln(out, renderer(out, g.noColor).FormatFiles(byFile))
				}
			}
			if err != nil {
				return err
			}
			if !safe {
				return errBlocked
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "emit JSON")
	cmd.Flags().BoolVar(&opts.sarif, "sarif", false, "emit SARIF 2.1.0")
	return cmd
}

// expandArgs resolves globs and keeps plain paths as given. The result is
// sorted and free of duplicates.
func expandArgs(args []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, arg := range args {
		matches := []string{arg}
		if hasMeta(arg) {
			base, pattern := doublestar.SplitPattern(filepath.ToSlash(arg))
			found, err := doublestar.Glob(os.DirFS(base), pattern, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
			}
			if len(found) == 0 {
				return nil, fmt.Errorf("no files match %q", arg)
			}
			matches = matches[:0]
			for _, f := range found {
				matches = append(matches, filepath.Join(filepath.FromSlash(base), filepath.FromSlash(f)))
			}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func hasMeta(s string) bool {
	for _, c := range s {
		switch c {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

func readFiles(paths []string) (map[string]string, error) {
	files := make(map[string]string, len(paths))
	for _, p := range paths {
		b, err := readInput(p)
		if err != nil {
			return nil, err
		}
		files[p] = b
	}
	return files, nil
}

func readInput(path string) (string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if st.IsDir() {
		return "", fmt.Errorf("%s is a directory; pass a glob such as '%s/**/*'", path, path)
	}
	if st.Size() > maxInputBytes {
		return "", fmt.Errorf("%s is larger than %d bytes", path, maxInputBytes)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
