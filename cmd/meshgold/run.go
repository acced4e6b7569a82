package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run validation scenarios and gate them against PCC thresholds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			all, err := buildScenarios(cfg)
			if err != nil {
				return err
			}
			selected, err := selectScenarios(all, args)
			if err != nil {
				return err
			}

			logger := slog.Default()
			failed := 0
			for _, s := range selected {
				report, err := s.run(cmd.Context(), logger, nil)
				if err != nil {
					return fmt.Errorf("scenario %s: %w", s.name, err)
				}
				status := "PASS"
				if !report.Passed {
					status = "FAIL"
					failed++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-28s %s\n", s.name, status)
				for _, c := range report.Comparisons {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", c)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scenarios failed", failed, len(selected))
			}
			return nil
		},
	}
}
