package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/essenlikcia/health-tracker/internal/evaluator"
	"github.com/essenlikcia/health-tracker/internal/model"
	"github.com/essenlikcia/health-tracker/internal/state"
)

// Sampler acquires a raw value for a definition. Acquisition failures are
// reported inside the sample, never as an error.
type Sampler interface {
	Sample(ctx context.Context, def model.Definition) model.Sample
}

// ResultFunc is called after every completed cycle with the evaluated
// sample, the resulting state and the transition (changed reports whether
// the status actually moved).
type ResultFunc func(def model.Definition, sample model.Sample, st model.State, tr model.Transition, changed bool)

// Scheduler owns all timing. It runs one independent goroutine per metric
// at the metric's own cadence; cycles for a single metric are strictly
// sequential, cycles across metrics are concurrent and a stuck source never
// delays another metric.
type Scheduler struct {
	defs    []model.Definition
	sampler Sampler
	eval    *evaluator.Evaluator
	store   *state.Store
	grace   time.Duration

	mu       sync.Mutex
	cancel   context.CancelFunc
	onResult ResultFunc
	wg       sync.WaitGroup
}

// New creates a scheduler. grace bounds how long Stop waits for in-flight
// cycles before abandoning them.
func New(defs []model.Definition, smp Sampler, eval *evaluator.Evaluator, store *state.Store, grace time.Duration) *Scheduler {
	return &Scheduler{
		defs:    defs,
		sampler: smp,
		eval:    eval,
		store:   store,
		grace:   grace,
	}
}

// SetOnResult sets the per-cycle callback (history store, live stream).
func (s *Scheduler) SetOnResult(fn ResultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResult = fn
}

// Start launches one sampling loop per definition.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	for _, def := range s.defs {
		s.wg.Add(1)
		go s.run(ctx, def)
	}
	log.Printf("[scheduler] started %d metric loops", len(s.defs))
}

// Stop cancels all loops and waits up to the grace period for in-flight
// cycles to finish. No cycle is retried after shutdown begins.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Printf("[scheduler] stopped")
	case <-time.After(s.grace):
		log.Printf("[scheduler] grace period elapsed, abandoning in-flight cycles")
	}
}

// run is the per-metric loop: one tick, one full cycle, never overlapping.
func (s *Scheduler) run(ctx context.Context, def model.Definition) {
	defer s.wg.Done()

	ticker := time.NewTicker(def.Interval)
	defer ticker.Stop()

	// Run once immediately so the metric leaves Unknown without waiting
	// a full interval.
	s.cycle(ctx, def)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cycle(ctx, def)
		}
	}
}

func (s *Scheduler) cycle(ctx context.Context, def model.Definition) {
	if ctx.Err() != nil {
		return
	}

	sample := s.sampler.Sample(ctx, def)

	prior, ok := s.store.Get(def.Name)
	if !ok {
		return
	}
	status, breaches := s.eval.Evaluate(def, sample, prior.State, time.Now())

	tr, changed, err := s.store.Update(def.Name, status, breaches, sample)
	if err != nil {
		log.Printf("[scheduler] %s: %v", def.Name, err)
		return
	}
	if changed {
		log.Printf("[scheduler] %s: %s -> %s (value %v)", def.Name, tr.From, tr.To, sample.Value)
	}

	s.mu.Lock()
	fn := s.onResult
	s.mu.Unlock()
	if fn != nil {
		cur, _ := s.store.Get(def.Name)
		fn(def, sample, cur.State, tr, changed)
	}
}
