package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"courtedge/internal/config"
	"courtedge/internal/models"
)

func newScanCmd(configPath *string) *cobra.Command {
	var (
		fixtureDir string
		strict     bool
		maxGames   int
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one analyze pass over the slate",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var cancel context.CancelFunc
			if cfg.RunTimeout > 0 {
				ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
				defer cancel()
			}

			sys, err := build(ctx, cfg, fixtureDir)
			if err != nil {
				return err
			}
			defer sys.close()

			out, err := sys.app.Analyze(ctx, models.RunInput{Strict: strict, MaxGames: maxGames})
			if err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			printRun(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&fixtureDir, "fixtures", "", "fixture directory (overrides config)")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on an empty slate")
	cmd.Flags().IntVar(&maxGames, "max-games", 0, "cap on games per run (0 = all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the full RunOutput as JSON")
	return cmd
}

func printRun(out models.RunOutput) {
	fmt.Printf("run %s  %d recommendations  %d errors\n\n",
		out.RunID, len(out.Recommendations), len(out.Errors))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIER\tSCORE\tMARKET\tGAME\tP\tEV\tEDGE\tCONF\tRISK")
	for _, r := range out.Recommendations {
		fmt.Fprintf(w, "%s\t%.1f\t%s\t%s @ %s\t%.2f\t%+.3f\t%+.3f\t%.0f\t%s\n",
			r.Tier, r.FinalScore, r.Market.Key(),
			r.Game.AwayTeam, r.Game.HomeTeam,
			r.Projection.ProjectedProbability,
			r.Value.EV, r.Value.Edge,
			r.Confidence.Final, r.Confidence.Risk)
	}
	w.Flush()

	if len(out.MissingPlayers) > 0 {
		fmt.Printf("\nmissing players: %v\n", out.MissingPlayers)
	}
	for _, e := range out.Errors {
		fmt.Printf("error: %s\n", e.String())
	}
	fmt.Printf("\nhealth: count=%d mean_p=%.3f mean_ev=%.3f mean_conf=%.1f\n",
		out.Health.Count, out.Health.MeanP, out.Health.MeanEV, out.Health.MeanConfidence)
}
