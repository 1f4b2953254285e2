package model

// Status is the evaluated health of a tracked metric. The numeric values
// are stable: they double as the codes published on the exposition surface.
type Status int

const (
	StatusHealthy Status = iota
	StatusWarning
	StatusCritical
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusWarning:
		return "warning"
	case StatusCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Code returns the exposition status code (0=healthy, 1=warning,
// 2=critical, 3=unknown).
func (s Status) Code() int { return int(s) }

// WorseThan reports whether s is a strictly worse severity than other.
// Unknown carries no severity and is never worse or better.
func (s Status) WorseThan(other Status) bool {
	if s == StatusUnknown || other == StatusUnknown {
		return false
	}
	return s > other
}

// MarshalJSON encodes the status as its label string.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}
