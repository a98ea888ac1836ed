package main

import (
	"os"

	"ventwave/cmd/ventwave/analyze"
	"ventwave/cmd/ventwave/app"
	"ventwave/cmd/ventwave/gateway"
	"ventwave/cmd/ventwave/history"
	"ventwave/cmd/ventwave/prompt"
	"ventwave/cmd/ventwave/setup"
	"ventwave/internal/logger"

	"github.com/spf13/cobra"
)

func main() {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "ventwave",
		Short:         "Ventwave analyzes ventilator waveforms for patient-ventilator asynchrony",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(os.Stderr, logLevel)
		},
	}
	rootCmd.PersistentFlags().StringVar(&app.ConfigPath, "config", "", "config file (default is the user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default LOG_LEVEL, then info)")

	rootCmd.AddCommand(setup.Cmd)
	rootCmd.AddCommand(gateway.Cmd)
	rootCmd.AddCommand(analyze.Cmd)
	rootCmd.AddCommand(prompt.Cmd)
	rootCmd.AddCommand(history.Cmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
