package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"courtedge/internal/application"
	"courtedge/internal/models"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <run.json>",
		Short: "Check an emitted run against the pipeline invariants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read run: %w", err)
			}
			var run models.RunOutput
			if err := json.Unmarshal(raw, &run); err != nil {
				return fmt.Errorf("decode run: %w", err)
			}

			bad := 0
			for _, rec := range run.Recommendations {
				result := application.Validate(rec)
				if result.OK {
					continue
				}
				bad++
				fmt.Printf("%s %s:\n", rec.Game.Key(), rec.Market.Key())
				for _, v := range result.Violations {
					fmt.Printf("  - %s\n", v)
				}
			}

			fmt.Printf("%d/%d recommendations valid\n", len(run.Recommendations)-bad, len(run.Recommendations))
			if bad > 0 {
				return fmt.Errorf("%d invalid recommendations", bad)
			}
			return nil
		},
	}
	return cmd
}
