package api

import (
	"log"
	"net/http"
	"time"

	"github.com/essenlikcia/health-tracker/internal/history"
	"github.com/essenlikcia/health-tracker/internal/state"
)

// NewRouter creates the HTTP router. metrics is the exposition handler;
// hist may be nil when persistence is disabled.
func NewRouter(store *state.Store, hist *history.Store, hub *Hub, metrics http.Handler, version string) http.Handler {
	mux := http.NewServeMux()

	sa := &statusAPI{store: store, version: version}
	ha := &historyAPI{store: hist}

	// Exposition: pull surface for the time-series store
	mux.Handle("GET /metrics", metrics)

	// Liveness
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})

	// JSON status
	mux.HandleFunc("GET /api/v1/status", sa.status)
	mux.HandleFunc("GET /api/v1/status/{name}", sa.statusOne)

	// History
	mux.HandleFunc("GET /api/v1/metrics/query", ha.query)
	mux.HandleFunc("GET /api/v1/transitions", ha.transitions)

	// WebSocket live stream
	mux.HandleFunc("GET /api/v1/ws", hub.HandleWS)

	return withMiddleware(mux)
}

func withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Recovery
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[http] panic: %v", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)

		log.Printf("[http] %s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
