package executor

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/dyluth/warren/internal/analyzer"
	"github.com/dyluth/warren/internal/clock"
)

var baseDurations = map[analyzer.Complexity]time.Duration{
	analyzer.ComplexityLow:    1 * time.Second,
	analyzer.ComplexityMedium: 3 * time.Second,
	analyzer.ComplexityHigh:   6 * time.Second,
}

// SimulatedOptions configures the simulated executor.
type SimulatedOptions struct {
	Clock     clock.Clock
	TimeScale float64 // multiplies every duration; 0 means 1
	Seed      int64   // 0 seeds from the wall clock
	Rand      *rand.Rand
}

// Simulated models task execution. Duration shrinks and success probability
// grows with the primary agent's performance and the number of supporters.
type Simulated struct {
	clock     clock.Clock
	timeScale float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated creates a simulated executor.
func NewSimulated(opts SimulatedOptions) *Simulated {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.TimeScale == 0 {
		opts.TimeScale = 1
	}
	rng := opts.Rand
	if rng == nil {
		seed := opts.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}
	return &Simulated{clock: opts.Clock, timeScale: opts.TimeScale, rng: rng}
}

// Duration is base(complexity) x (1.5 - performance) x max(0.5, 1 - 0.1 x supporters) x time scale.
func (s *Simulated) Duration(req Request) time.Duration {
	base, ok := baseDurations[req.Complexity]
	if !ok {
		base = baseDurations[analyzer.ComplexityMedium]
	}
	support := math.Max(0.5, 1-0.1*float64(len(req.Supporting)))
	factor := (1.5 - req.Primary.Performance) * support * s.timeScale
	return time.Duration(float64(base) * factor)
}

// SuccessProbability is 0.55 + 0.35 x performance + 0.05 x supporters, capped at 0.98.
func SuccessProbability(req Request) float64 {
	p := 0.55 + 0.35*req.Primary.Performance + 0.05*float64(len(req.Supporting))
	return math.Min(p, 0.98)
}

// Execute waits out the simulated duration then rolls for success.
// The roll happens before waiting so that outcomes follow call order for a seed.
func (s *Simulated) Execute(ctx context.Context, req Request) (Result, error) {
	s.mu.Lock()
	roll := s.rng.Float64()
	s.mu.Unlock()

	if err := clock.Sleep(ctx, s.clock, s.Duration(req)); err != nil {
		return Result{}, fmt.Errorf("simulated execution interrupted: %w", err)
	}

	if roll < SuccessProbability(req) {
		return Result{
			Success: true,
			Output:  fmt.Sprintf("%s completed %s task: %s", req.Primary.Name, req.Complexity, req.Text),
		}, nil
	}

	return Result{
		Success: false,
		Output:  fmt.Sprintf("%s could not complete %s task: %s", req.Primary.Name, req.Complexity, req.Text),
	}, nil
}
