// Package cli implements the envanter command-line client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"envanter/internal/apperr"
	"envanter/internal/config"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, newRootCmd(), os.Stdout, os.Stderr)
}

func execute(ctx context.Context, rootCmd *cobra.Command, stdout, stderr io.Writer) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	output, _ := rootCmd.PersistentFlags().GetString("output")
	verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")

	msg := err.Error()
	var ae *apperr.Error
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	if output == "json" {
		errObj := map[string]any{"error": msg}
		if ae != nil {
			errObj["code"] = ae.Kind.String()
		}
		if verbose {
			errObj["detail"] = err.Error()
		}
		_ = printJSON(stdout, errObj)
		return 1
	}
	fmt.Fprintf(stderr, "Error: %s\n", msg)
	if verbose && ae != nil {
		fmt.Fprintf(stderr, "  %v\n", err)
	}
	return 1
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var (
		apiURL    string
		anonKey   string
		statePath string
		timeout   time.Duration
	)

	rootCmd := &cobra.Command{
		Use:           "envanter",
		Short:         "Depo envanter istemcisi",
		Long:          "Command-line client for the envanter inventory API: sign in, browse and change items, record stock movements and print reports.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(a.output); err != nil {
				return err
			}
			cfg, err := config.LoadClient()
			if err != nil {
				return err
			}

			// Precedence: flag > env/.env > default.
			flags := cmd.Flags()
			if flags.Changed("api-url") {
				cfg.APIURL = apiURL
			}
			if flags.Changed("anon-key") {
				cfg.AnonKey = anonKey
			}
			if flags.Changed("state") {
				cfg.StatePath = statePath
			}
			if flags.Changed("timeout") {
				cfg.Timeout = timeout
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a.cfg = cfg
			a.out = cmd.OutOrStdout()
			a.in = cmd.InOrStdin()
			a.logger = newLogger(cmd.ErrOrStderr(), a.verbose)
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&apiURL, "api-url", "", "API base URL (default $ENVANTER_API_URL or http://localhost:8080)")
	pf.StringVar(&anonKey, "anon-key", "", "apikey header for sign-in calls (default $ENVANTER_ANON_KEY)")
	pf.StringVar(&statePath, "state", "", "local state file (default $ENVANTER_STATE or ~/.envanter/state.db)")
	pf.DurationVar(&timeout, "timeout", 0, "per-request timeout (default $ENVANTER_TIMEOUT or 15s)")
	pf.StringVarP(&a.output, "output", "o", "table", "Output format (table, json)")
	pf.BoolVar(&a.offline, "offline", false, "read the last saved snapshot instead of the API; changes are refused")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log requests and show error details")

	rootCmd.AddCommand(newLoginCmd(a))
	rootCmd.AddCommand(newLogoutCmd(a))
	rootCmd.AddCommand(newWhoamiCmd(a))
	rootCmd.AddCommand(newWatchCmd(a))
	rootCmd.AddCommand(newItemsCmd(a))
	rootCmd.AddCommand(newMovementsCmd(a))
	rootCmd.AddCommand(newRefDataCmd(a, categoriesKind))
	rootCmd.AddCommand(newRefDataCmd(a, locationsKind))
	rootCmd.AddCommand(newReportCmd(a))
	rootCmd.AddCommand(newImportCmd(a))
	rootCmd.AddCommand(newUsersCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{"version": version, "commit": commit})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "envanter %s (%s)\n", version, commit)
			return nil
		},
	}
}
