package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// RunResult captures the timing of one benchmarked scenario: the
// compile-inclusive first run and the steady-state runs after it.
type RunResult struct {
	Name        string        `json:"name"`
	FirstRun    time.Duration `json:"first_run"`
	SteadyState time.Duration `json:"steady_state"`
	Iterations  int           `json:"iterations"`
	Stats       Stats         `json:"stats"`
}

// Run benchmarks f: one forced, compile-inclusive first run, then
// iterations steady-state runs. SteadyState is the mean of the
// steady-state runs. The profile (may be nil) is disabled during the
// first run and re-enabled for the rest, mirroring how warmup is kept
// out of steady-state checkpoint totals.
func Run(ctx context.Context, name string, iterations int, prof *Profile, f func() error) (RunResult, error) {
	if iterations < 1 {
		return RunResult{}, fmt.Errorf("bench: iterations must be >= 1, got %d", iterations)
	}

	prof.Disable()
	prof.StartForce("first_run")
	start := time.Now()
	if err := f(); err != nil {
		return RunResult{}, fmt.Errorf("bench: first run of %s: %w", name, err)
	}
	first := time.Since(start)
	prof.EndForce("first_run")
	prof.Enable()

	durations := make([]time.Duration, 0, iterations)
	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}
		start := time.Now()
		if err := f(); err != nil {
			return RunResult{}, fmt.Errorf("bench: run %d of %s: %w", i, name, err)
		}
		durations = append(durations, time.Since(start))
	}

	stats := Measure(durations)
	return RunResult{
		Name:        name,
		FirstRun:    first,
		SteadyState: stats.Mean,
		Iterations:  iterations,
		Stats:       stats,
	}, nil
}

// CheckBudget gates a result against latency budgets. A zero budget
// means no gate on that phase. The steady-state budget is the soft
// correctness gate layered on top of the numerical check; the compile
// budget bounds the first, compile-inclusive run.
func (r RunResult) CheckBudget(steadyBudget, compileBudget time.Duration) error {
	if steadyBudget > 0 && r.SteadyState > steadyBudget {
		return fmt.Errorf("bench: %s steady-state %s exceeds budget %s", r.Name, r.SteadyState, steadyBudget)
	}
	if compileBudget > 0 && r.FirstRun > compileBudget {
		return fmt.Errorf("bench: %s first run %s exceeds compile budget %s", r.Name, r.FirstRun, compileBudget)
	}
	return nil
}

// WriteTable renders results as an aligned text table.
func WriteTable(w io.Writer, results []RunResult) error {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFIRST\tSTEADY\tMIN\tMAX\tITERS")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
			r.Name, r.FirstRun, r.SteadyState, r.Stats.Min, r.Stats.Max, r.Iterations)
	}
	return tw.Flush()
}

// WriteJSON renders results as indented JSON.
func WriteJSON(w io.Writer, results []RunResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
