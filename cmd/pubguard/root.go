package pubguard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/varalys/pubguard/internal/config"
	"github.com/varalys/pubguard/internal/scanner"
)

var version = "0.1.0"

// Exit codes.
const (
	exitSafe    = 0
	exitBlocked = 1
	exitError   = 2
)

// errBlocked is returned by commands whose scan found blocking data. It
// maps to exit code 1 and is not printed.
var errBlocked = errors.New("sensitive data detected")

type globalOptions struct {
	configPath string
	verbose    bool
	noColor    bool
}

// newRootCmd builds the command tree. Each call returns fresh flag state.
func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "pubguard",
		Short: "Block secrets and personal data before publishing generated text",
		Long: "pubguard scans generated analyses and conversation transcripts with gitleaks, " +
			"an optional Presidio analyzer and a regex rule set, and refuses publication " +
			"when anything HIGH or CRITICAL is found.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			initLogger(opts.verbose)
			loadDotEnv()
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "policy file (default: .pubguard.yml, then $XDG_CONFIG_HOME/pubguard/config.yml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colorized output")

	root.AddCommand(
		newScanCmd(opts),
		newCheckCmd(opts),
		newRulesCmd(opts),
		newAuditCmd(opts),
		newConfigCmd(opts),
		newCompletionCmd(),
	)
	return root
}

// Execute runs the CLI and exits with 0 (safe), 1 (blocked) or 2 (error).
func Execute() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	err := root.Execute()
	code := exitCode(err)
	if code == exitError {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return code
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSafe
	case errors.Is(err, errBlocked):
		return exitBlocked
	default:
		return exitError
	}
}

// executableEnv names settings that pick a program to run. A .env in the
// working directory supplying one is worth a warning.
var executableEnv = []string{"PUBGUARD_GITLEAKS_BINARY_PATH"}

func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	vals, err := godotenv.Read(".env")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load .env")
		return
	}
	for _, k := range executableEnv {
		if _, set := os.LookupEnv(k); !set && vals[k] != "" {
			log.Warn().Str("key", k).Str("value", vals[k]).Msg("Executable path taken from .env in the working directory")
		}
	}
	if err := godotenv.Load(".env"); err != nil {
		log.Warn().Err(err).Msg("Failed to load .env")
	}
}

func initLogger(verbose bool) {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
}

// loadPolicy resolves and loads the policy for the current directory.
func loadPolicy(opts *globalOptions) (config.Policy, string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return config.Policy{}, "", err
	}
	path := config.Discover(opts.configPath, wd)
	p, err := config.Load(path)
	if err != nil {
		return config.Policy{}, path, err
	}
	if path != "" {
		log.Debug().Str("path", path).Msg("Loaded policy")
	}
	return p, path, nil
}

func buildScanner(ctx context.Context, p config.Policy) (*scanner.Scanner, error) {
	wd, _ := os.Getwd()
	return scanner.New(ctx, p, scanner.WithLogger(log.Logger), scanner.WithRoot(wd))
}
