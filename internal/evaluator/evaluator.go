package evaluator

import (
	"time"

	"github.com/essenlikcia/health-tracker/internal/model"
)

// DefaultStalenessFactor multiplies a metric's evaluation interval to derive
// the bound after which a silent source is reported unknown instead of
// holding its last known status.
const DefaultStalenessFactor = 3.0

// Evaluator converts raw samples into health statuses. It is a pure
// transition function over (definition, sample, prior state); all streak
// bookkeeping lives in the returned values.
type Evaluator struct {
	stalenessFactor float64
}

func New(stalenessFactor float64) *Evaluator {
	if stalenessFactor <= 0 {
		stalenessFactor = DefaultStalenessFactor
	}
	return &Evaluator{stalenessFactor: stalenessFactor}
}

// StalenessBound returns how long a metric may go without a successful
// sample before it is forced to unknown.
func (e *Evaluator) StalenessBound(def model.Definition) time.Duration {
	return time.Duration(float64(def.Interval) * e.stalenessFactor)
}

// Evaluate decides the next status and breach streak for one sampling cycle.
//
// Failed samples hold the prior status until the staleness bound elapses;
// a single missed sample is not itself a status change. Successful samples
// classify against the thresholds, then apply hysteresis: degradation needs
// BreachesToTrip consecutive worse samples, recovery flips immediately.
func (e *Evaluator) Evaluate(def model.Definition, sample model.Sample, prior model.State, now time.Time) (model.Status, int) {
	if !sample.OK {
		// LastUpdated tracks the last successful acquisition. Zero means
		// no sample has ever succeeded, so there is nothing to hold.
		if prior.LastUpdated.IsZero() || now.Sub(prior.LastUpdated) > e.StalenessBound(def) {
			return model.StatusUnknown, 0
		}
		return prior.Status, prior.BreachCount
	}

	candidate := Classify(def, sample.Value)

	switch {
	case prior.Status == model.StatusUnknown:
		// First signal after silence: adopt it directly, there is no
		// prior severity to debounce against.
		return candidate, 0
	case candidate == prior.Status:
		return prior.Status, 0
	case prior.Status.WorseThan(candidate):
		// Improvement flips immediately. Recovery is not debounced.
		return candidate, 0
	default:
		streak := prior.BreachCount + 1
		if streak >= def.BreachesToTrip {
			return candidate, streak
		}
		return prior.Status, streak
	}
}

// Classify maps a raw value to a severity. Thresholds are inclusive on the
// bad side: a value exactly at the critical threshold counts as critical.
func Classify(def model.Definition, value float64) model.Status {
	if def.Direction == model.DirectionBelow {
		switch {
		case value <= def.CriticalThreshold:
			return model.StatusCritical
		case value <= def.WarningThreshold:
			return model.StatusWarning
		}
		return model.StatusHealthy
	}
	switch {
	case value >= def.CriticalThreshold:
		return model.StatusCritical
	case value >= def.WarningThreshold:
		return model.StatusWarning
	}
	return model.StatusHealthy
}
