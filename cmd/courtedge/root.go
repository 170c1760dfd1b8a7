package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	root := &cobra.Command{
		Use:   "courtedge",
		Short: "Basketball value-bet decision pipeline",
		Long: `courtedge turns a slate of basketball games into ranked value bets:
player props and team markets with calibrated probability, confidence,
expected value and an S/A/B/C/D tier.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to yaml config")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newScanCmd(&configPath))
	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newValidateCmd())
	return root
}
