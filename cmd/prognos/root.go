package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/prognos/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	envFile      string
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "prognos",
	Short: "prognos - psychiatric prediction service",
	Long: `prognos runs psychiatric risk, treatment response and outcome predictions
against a mock or cloud-hosted model backend.

Every request is screened for protected health information before it reaches a
model, a store or an observer. Configuration comes from an optional YAML file
(--config) overridden by PROGNOS_* environment variables and --env-file.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with cli.ExitCode on failure.
func Execute() {
	ctx, stop := cli.SignalContext(context.Background())
	cmd, err := rootCmd.ExecuteContextC(ctx)
	stop()

	if err != nil {
		if cmd != nil && cmd != rootCmd {
			err = cli.NewCommandError(cmd.CommandPath(), err)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (environment only when empty)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file read under the process environment")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json, csv")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
