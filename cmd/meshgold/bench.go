package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meshgold/meshgold/internal/bench"
)

func newBenchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bench [scenario...]",
		Short: "Benchmark scenarios: compile-inclusive first run, then steady state",
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
			results := make([]bench.RunResult, 0, len(selected))
			var budgetErrs []error
			for _, s := range selected {
				prof := bench.NewProfile()
				run := s.run
				res, err := bench.Run(cmd.Context(), s.name, cfg.Bench.Iterations, prof, func() error {
					report, err := run(cmd.Context(), logger, prof)
					if err != nil {
						return err
					}
					return report.Err()
				})
				if err != nil {
					return fmt.Errorf("scenario %s: %w", s.name, err)
				}
				results = append(results, res)
				if err := res.CheckBudget(cfg.Bench.SteadyBudget, cfg.Bench.CompileBudget); err != nil {
					budgetErrs = append(budgetErrs, err)
				}
			}

			if strings.EqualFold(cfg.Bench.Format, "json") {
				if err := bench.WriteJSON(cmd.OutOrStdout(), results); err != nil {
					return err
				}
			} else {
				if err := bench.WriteTable(cmd.OutOrStdout(), results); err != nil {
					return err
				}
			}

			if len(budgetErrs) > 0 {
				msgs := make([]string, len(budgetErrs))
				for i, e := range budgetErrs {
					msgs[i] = e.Error()
				}
				return fmt.Errorf("latency budget violations:\n  %s", strings.Join(msgs, "\n  "))
			}
			return nil
		},
	}
}
