package state

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/essenlikcia/health-tracker/internal/model"
)

// Entry pairs a definition with a copy of its current state, as handed out
// by Snapshot and Get.
type Entry struct {
	Def   model.Definition
	State model.State
}

// Store holds the runtime state of every tracked metric. It is the single
// synchronization point in the system: each metric has its own lock, so
// writes to different metrics never block each other, and readers only ever
// see fully-written states.
type Store struct {
	order   []string // metric names, sorted, fixed at construction
	entries map[string]*entry
}

type entry struct {
	mu  sync.Mutex
	def model.Definition
	st  model.State
}

// New builds a store with one entry per definition, each initialized to
// unknown. The entry set is fixed for the life of the process.
func New(defs []model.Definition) *Store {
	now := time.Now()
	s := &Store{entries: make(map[string]*entry, len(defs))}
	for _, def := range defs {
		s.entries[def.Name] = &entry{
			def: def,
			st: model.State{
				Status:      model.StatusUnknown,
				StatusSince: now,
			},
		}
		s.order = append(s.order, def.Name)
	}
	sort.Strings(s.order)
	return s
}

// Update atomically replaces the named metric's sample, status and breach
// count. The status must come from the evaluator's decision function; the
// store never derives statuses itself. It returns the resulting transition
// and whether the status actually changed.
func (s *Store) Update(name string, status model.Status, breaches int, sample model.Sample) (model.Transition, bool, error) {
	e, ok := s.entries[name]
	if !ok {
		return model.Transition{}, false, fmt.Errorf("state: unknown metric %q", name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.st.Status
	e.st.LastSample = sample
	e.st.BreachCount = breaches
	if sample.OK {
		e.st.LastUpdated = sample.Timestamp
	}
	changed := status != prev
	if changed {
		e.st.Status = status
		e.st.StatusSince = sample.Timestamp
	}

	tr := model.Transition{
		Metric:    name,
		From:      prev,
		To:        status,
		Value:     sample.Value,
		Timestamp: sample.Timestamp,
	}
	return tr, changed, nil
}

// Get returns a copy of one metric's entry.
func (s *Store) Get(name string) (Entry, bool) {
	e, ok := s.entries[name]
	if !ok {
		return Entry{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return Entry{Def: e.def, State: e.st}, true
}

// Snapshot returns immutable copies of every entry, ordered by metric name,
// for exposition. Concurrent updates to other metrics proceed unblocked;
// each entry is copied under its own lock.
func (s *Store) Snapshot() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, name := range s.order {
		e := s.entries[name]
		e.mu.Lock()
		out = append(out, Entry{Def: e.def, State: e.st})
		e.mu.Unlock()
	}
	return out
}

// Len returns the number of tracked metrics.
func (s *Store) Len() int { return len(s.order) }
