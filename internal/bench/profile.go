// Package bench provides the timing side of the validation harness:
// named checkpoint profiling within a run, aggregate stats over repeated
// runs, and latency-budget gates layered on top of the numerical check.
package bench

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Profile accumulates elapsed time under named checkpoint labels.
// A profile lives for one test invocation. Collection can be disabled
// for warmup phases; forced checkpoints record regardless, which is how
// the compile-inclusive first run gets captured while steady-state
// collection is still off.
//
// All methods are safe on a nil receiver, so callers can thread an
// optional profile without guarding every call site.
type Profile struct {
	mu      sync.Mutex
	off     bool
	starts  map[string]time.Time
	elapsed map[string]time.Duration
	counts  map[string]int
	order   []string

	now func() time.Time // test seam
}

// NewProfile creates an enabled profile.
func NewProfile() *Profile {
	return &Profile{
		starts:  make(map[string]time.Time),
		elapsed: make(map[string]time.Duration),
		counts:  make(map[string]int),
		now:     time.Now,
	}
}

// Disable stops recording non-forced checkpoints.
func (p *Profile) Disable() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.off = true
}

// Enable resumes recording.
func (p *Profile) Enable() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.off = false
}

// Start opens a checkpoint. No-op while disabled.
func (p *Profile) Start(name string) {
	p.start(name, false)
}

// StartForce opens a checkpoint even while disabled.
func (p *Profile) StartForce(name string) {
	p.start(name, true)
}

func (p *Profile) start(name string, force bool) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.off && !force {
		return
	}
	p.starts[name] = p.now()
}

// End closes a checkpoint and accumulates the elapsed time under its
// label. Ending a label that was never started is a no-op.
func (p *Profile) End(name string) time.Duration {
	return p.end(name, false)
}

// EndForce closes a checkpoint even while disabled.
func (p *Profile) EndForce(name string) time.Duration {
	return p.end(name, true)
}

func (p *Profile) end(name string, force bool) time.Duration {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.off && !force {
		return 0
	}
	start, ok := p.starts[name]
	if !ok {
		return 0
	}
	delete(p.starts, name)
	d := p.now().Sub(start)
	if p.counts[name] == 0 {
		p.order = append(p.order, name)
	}
	p.elapsed[name] += d
	p.counts[name]++
	return d
}

// Get returns the accumulated duration for a label.
func (p *Profile) Get(name string) (time.Duration, bool) {
	if p == nil {
		return 0, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.elapsed[name]
	return d, ok
}

// Labels returns all recorded labels in first-seen order.
func (p *Profile) Labels() []string {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Print writes one line per recorded label.
func (p *Profile) Print(w io.Writer) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, name := range p.order {
		fmt.Fprintf(w, "%-32s %12s  (%d calls)\n", name, p.elapsed[name], p.counts[name])
	}
}

// Reset clears all recorded checkpoints but keeps the enabled state.
func (p *Profile) Reset() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts = make(map[string]time.Time)
	p.elapsed = make(map[string]time.Duration)
	p.counts = make(map[string]int)
	p.order = nil
}

// Stats summarizes a set of run durations.
type Stats struct {
	Min  time.Duration `json:"min"`
	Mean time.Duration `json:"mean"`
	Max  time.Duration `json:"max"`
	N    int           `json:"n"`
}

// Measure computes Stats over the given durations.
func Measure(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	return Stats{
		Min:  sorted[0],
		Mean: total / time.Duration(len(sorted)),
		Max:  sorted[len(sorted)-1],
		N:    len(sorted),
	}
}
