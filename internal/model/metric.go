package model

import "time"

// Direction tells which side of a threshold is unhealthy.
type Direction string

const (
	DirectionAbove Direction = "above" // larger values are worse
	DirectionBelow Direction = "below" // smaller values are worse
)

// Definition describes one tracked health metric. Immutable after load.
type Definition struct {
	Name              string        `json:"name"`
	Source            string        `json:"source"`
	Unit              string        `json:"unit,omitempty"`
	WarningThreshold  float64       `json:"warning_threshold"`
	CriticalThreshold float64       `json:"critical_threshold"`
	Direction         Direction     `json:"direction"`
	Interval          time.Duration `json:"-"`
	BreachesToTrip    int           `json:"breaches_to_trip"`
}

// Sample is a single acquisition result. Superseded, never mutated, by the
// next sampling cycle. A failed acquisition carries OK=false and a NaN value.
type Sample struct {
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	OK        bool      `json:"ok"`
}

// State is the tracked runtime state of one metric. Owned exclusively by the
// state store; the status field only ever changes through the evaluator's
// decision function.
type State struct {
	LastSample  Sample
	Status      Status
	BreachCount int
	StatusSince time.Time
	LastUpdated time.Time // last successful acquisition; staleness is measured from here
}

// Transition records a status change, for the history store and the live stream.
type Transition struct {
	Metric    string    `json:"metric"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}
