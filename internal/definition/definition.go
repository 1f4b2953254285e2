package definition

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/essenlikcia/health-tracker/internal/model"
	"github.com/essenlikcia/health-tracker/internal/sampler"
)

// ErrorKind classifies definition-file failures.
type ErrorKind string

const (
	MalformedInput   ErrorKind = "malformed_input"
	MissingField     ErrorKind = "missing_field"
	InvalidThreshold ErrorKind = "invalid_threshold"
	DuplicateName    ErrorKind = "duplicate_name"
	InvalidInterval  ErrorKind = "invalid_interval"
	InvalidSource    ErrorKind = "invalid_source"
)

// ConfigError is a fatal, startup-only definition error. The process must
// not start serving with an invalid definition set.
type ConfigError struct {
	Kind   ErrorKind
	Metric string // offending metric name, if known
	Field  string // offending field, if known
	Msg    string
}

func (e *ConfigError) Error() string {
	s := fmt.Sprintf("definitions: %s", e.Kind)
	if e.Metric != "" {
		s += fmt.Sprintf(" (metric %q", e.Metric)
		if e.Field != "" {
			s += fmt.Sprintf(", field %q", e.Field)
		}
		s += ")"
	} else if e.Field != "" {
		s += fmt.Sprintf(" (field %q)", e.Field)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

// metricNameRE matches names that are safe on the exposition surface.
var metricNameRE = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

type fileFormat struct {
	Metrics []rawDefinition `json:"metrics"`
}

type rawDefinition struct {
	Name              string   `json:"name"`
	Source            string   `json:"source"`
	Unit              string   `json:"unit"`
	WarningThreshold  *float64 `json:"warning_threshold"`
	CriticalThreshold *float64 `json:"critical_threshold"`
	Direction         string   `json:"direction"`
	IntervalMs        int64    `json:"interval_ms"`
	BreachesToTrip    int      `json:"breaches_to_trip"`
}

// Load reads and validates the metric definition file. The returned slice
// preserves file declaration order, so the same file always yields the same
// ordered set. Any validation failure is a *ConfigError and means the whole
// set is rejected; there is no partial load.
func Load(path string) ([]model.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Kind: MalformedInput, Msg: err.Error()}
	}

	var file fileFormat
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, &ConfigError{Kind: MalformedInput, Msg: fmt.Sprintf("%s: %v", path, err)}
	}
	if len(file.Metrics) == 0 {
		return nil, &ConfigError{Kind: MissingField, Field: "metrics", Msg: "no metric definitions"}
	}

	defs := make([]model.Definition, 0, len(file.Metrics))
	seen := make(map[string]bool, len(file.Metrics))

	for i, raw := range file.Metrics {
		def, err := validate(i, raw)
		if err != nil {
			return nil, err
		}
		if seen[def.Name] {
			return nil, &ConfigError{Kind: DuplicateName, Metric: def.Name}
		}
		seen[def.Name] = true
		defs = append(defs, def)
	}
	return defs, nil
}

func validate(idx int, raw rawDefinition) (model.Definition, error) {
	var def model.Definition

	if raw.Name == "" {
		return def, &ConfigError{Kind: MissingField, Field: "name", Msg: fmt.Sprintf("metric #%d", idx)}
	}
	if !metricNameRE.MatchString(raw.Name) {
		return def, &ConfigError{Kind: MalformedInput, Metric: raw.Name, Field: "name",
			Msg: "must match [a-zA-Z_:][a-zA-Z0-9_:]*"}
	}
	if raw.Source == "" {
		return def, &ConfigError{Kind: MissingField, Metric: raw.Name, Field: "source"}
	}
	if err := sampler.ValidSource(raw.Source); err != nil {
		return def, &ConfigError{Kind: InvalidSource, Metric: raw.Name, Field: "source", Msg: err.Error()}
	}
	if raw.WarningThreshold == nil {
		return def, &ConfigError{Kind: MissingField, Metric: raw.Name, Field: "warning_threshold"}
	}
	if raw.CriticalThreshold == nil {
		return def, &ConfigError{Kind: MissingField, Metric: raw.Name, Field: "critical_threshold"}
	}

	dir := model.Direction(raw.Direction)
	if raw.Direction == "" {
		dir = model.DirectionAbove
	}
	switch dir {
	case model.DirectionAbove:
		if *raw.CriticalThreshold <= *raw.WarningThreshold {
			return def, &ConfigError{Kind: InvalidThreshold, Metric: raw.Name,
				Msg: "critical_threshold must be greater than warning_threshold when direction is above"}
		}
	case model.DirectionBelow:
		if *raw.CriticalThreshold >= *raw.WarningThreshold {
			return def, &ConfigError{Kind: InvalidThreshold, Metric: raw.Name,
				Msg: "critical_threshold must be less than warning_threshold when direction is below"}
		}
	default:
		return def, &ConfigError{Kind: MalformedInput, Metric: raw.Name, Field: "direction",
			Msg: fmt.Sprintf("unknown direction %q", raw.Direction)}
	}

	if raw.IntervalMs <= 0 {
		return def, &ConfigError{Kind: InvalidInterval, Metric: raw.Name, Field: "interval_ms",
			Msg: "must be a positive number of milliseconds"}
	}

	trips := raw.BreachesToTrip
	if trips == 0 {
		trips = 1
	}
	if trips < 1 {
		return def, &ConfigError{Kind: MalformedInput, Metric: raw.Name, Field: "breaches_to_trip",
			Msg: "must be >= 1"}
	}

	def = model.Definition{
		Name:              raw.Name,
		Source:            raw.Source,
		Unit:              raw.Unit,
		WarningThreshold:  *raw.WarningThreshold,
		CriticalThreshold: *raw.CriticalThreshold,
		Direction:         dir,
		Interval:          time.Duration(raw.IntervalMs) * time.Millisecond,
		BreachesToTrip:    trips,
	}
	return def, nil
}
