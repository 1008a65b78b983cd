package main

import (
	"github.com/spf13/cobra"

	"github.com/foldbatch/foldbatch/pkg/logger"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	logOpts := logger.DefaultConfig()

	cmd := &cobra.Command{
		Use:     "foldbatch",
		Short:   "batch-run folding predictions across seed folders with GPU pinning and retries",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := bindEnv("FOLDBATCH_", cmd); err != nil {
				return err
			}
			logger.SetLogrus(*logOpts)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&logOpts.Level, "level", "l", logOpts.Level,
		"set the logging level (can be one of: debug, info, warn, error, or fatal)")
	cmd.PersistentFlags().BoolVar(&logOpts.Color, "color", logOpts.Color, "enable colored output")
	cmd.PersistentFlags().BoolVar(&logOpts.Structured, "structured", false,
		"enable structured logging")

	cmd.AddCommand(newCompletionCmd())
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newRunCmd())

	return cmd
}
