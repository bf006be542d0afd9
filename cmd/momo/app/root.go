package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"momo-intent-backend/internal/config"
	"momo-intent-backend/internal/logger"
)

// GlobalOptions are shared by every subcommand.
type GlobalOptions struct {
	LogLevel  string
	LogFormat string

	// Config is loaded from the environment before any subcommand runs.
	Config config.Config
}

// NewMomoCommand creates the root command with all subcommands attached.
func NewMomoCommand() *cobra.Command {
	opts := &GlobalOptions{}

	cmd := &cobra.Command{
		Use:   "momo",
		Short: "Build and train the mobile-money intent classifier",
		Long: `momo synthesizes labelled mobile-money queries, builds the label
registry, trains checkpoints for the inference service and prepares
conversation data for fine-tuning the generative variant.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.Config = config.Load()
			level := opts.Config.LogLevel
			if cmd.Flags().Changed("log-level") {
				level = opts.LogLevel
			}
			format := opts.Config.LogFormat
			if cmd.Flags().Changed("log-format") {
				format = opts.LogFormat
			}
			logger.Init(level, format)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "console", "log format (console, json)")

	cmd.AddCommand(
		NewGenerateCommand(opts),
		NewRegistryCommand(opts),
		NewTrainCommand(opts),
		NewPredictCommand(opts),
		NewCleanCommand(opts),
		NewHarvestCommand(opts),
	)
	return cmd
}

// createOutput opens path for writing, or the command's output for "-".
func createOutput(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{cmd.OutOrStdout()}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
