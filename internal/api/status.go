package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/essenlikcia/health-tracker/internal/state"
)

type statusAPI struct {
	store   *state.Store
	version string
}

// MetricStatus is the JSON view of one tracked metric.
type MetricStatus struct {
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	StatusCode   int       `json:"status_code"`
	Value        *float64  `json:"value,omitempty"`
	Unit         string    `json:"unit,omitempty"`
	Source       string    `json:"source"`
	BreachCount  int       `json:"breach_count"`
	StatusSince  time.Time `json:"status_since"`
	LastUpdated  time.Time `json:"last_updated"`
	LastSampleOK bool      `json:"last_sample_ok"`
}

type statusResponse struct {
	Version string         `json:"version"`
	Metrics []MetricStatus `json:"metrics"`
}

func (a *statusAPI) status(w http.ResponseWriter, r *http.Request) {
	entries := a.store.Snapshot()
	resp := statusResponse{
		Version: a.version,
		Metrics: make([]MetricStatus, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Metrics = append(resp.Metrics, toMetricStatus(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *statusAPI) statusOne(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	e, ok := a.store.Get(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown metric"})
		return
	}
	writeJSON(w, http.StatusOK, toMetricStatus(e))
}

func toMetricStatus(e state.Entry) MetricStatus {
	ms := MetricStatus{
		Name:         e.Def.Name,
		Status:       e.State.Status.String(),
		StatusCode:   e.State.Status.Code(),
		Unit:         e.Def.Unit,
		Source:       e.Def.Source,
		BreachCount:  e.State.BreachCount,
		StatusSince:  e.State.StatusSince,
		LastUpdated:  e.State.LastUpdated,
		LastSampleOK: e.State.LastSample.OK,
	}
	if e.State.LastSample.OK {
		v := e.State.LastSample.Value
		ms.Value = &v
	}
	return ms
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
