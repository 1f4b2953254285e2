package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/essenlikcia/health-tracker/internal/history"
)

type historyAPI struct {
	store *history.Store // nil when persistence is disabled
}

func (a *historyAPI) query(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "history persistence is disabled"})
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name parameter required"})
		return
	}

	now := time.Now().Unix()

	from := now - 3600 // default: last hour
	if v, err := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64); err == nil {
		from = v
	}
	to := now
	if v, err := strconv.ParseInt(r.URL.Query().Get("to"), 10, 64); err == nil {
		to = v
	}
	step := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("step")); err == nil {
		step = v
	}

	points, err := a.store.QuerySamples(name, from, to, step)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if points == nil {
		points = []history.SamplePoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

func (a *historyAPI) transitions(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "history persistence is disabled"})
		return
	}

	name := r.URL.Query().Get("name")
	limit := 100
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	rows, err := a.store.RecentTransitions(name, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if rows == nil {
		rows = []history.TransitionRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}
