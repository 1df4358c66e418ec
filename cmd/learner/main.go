// Package main provides the learner CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/born-ml/learner/internal/ctxlog"
	"github.com/spf13/cobra"
)

var version = "v0.1.0-dev"

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "learner",
	Short: "Multi-agent learner core",
	Long: `learner trains a set of per-agent modules, each bound to its own
optimizer, with optional data-parallel gradient averaging across workers.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		logger := ctxlog.New(logLevel, logFormat, cmd.ErrOrStderr())
		cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(rendezvousCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "learner %s\n", version)
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
