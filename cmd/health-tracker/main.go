package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/essenlikcia/health-tracker/internal/api"
	"github.com/essenlikcia/health-tracker/internal/config"
	"github.com/essenlikcia/health-tracker/internal/definition"
	"github.com/essenlikcia/health-tracker/internal/evaluator"
	"github.com/essenlikcia/health-tracker/internal/exposition"
	"github.com/essenlikcia/health-tracker/internal/history"
	"github.com/essenlikcia/health-tracker/internal/model"
	"github.com/essenlikcia/health-tracker/internal/sampler"
	"github.com/essenlikcia/health-tracker/internal/scheduler"
	"github.com/essenlikcia/health-tracker/internal/state"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "start":
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		cmdStart()
	case "stop":
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		cmdStop()
	case "status":
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		cmdStatus()
	case "run":
		// Foreground mode (also used internally by the daemon child)
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		cmdRun()
	case "version":
		fmt.Printf("health-tracker %s\n", version)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	exe := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, `health-tracker — configurable health metric tracker with Prometheus exposition (%s)

Usage:
  %s <command> [flags]

Commands:
  start          Start daemon (background)
  stop           Stop daemon
  status         Show daemon status
  run            Run in foreground
  version        Print version

Flags:
  -config PATH        Config file path (default: config.yaml)
  -listen ADDR        Listen address (default: :9100)
  -metrics-file PATH  Metric definitions file (default: health_metrics.json)
  -db PATH            SQLite history path (empty disables persistence)
  -pid-file PATH      PID file path
  -log-file PATH      Log file path

Examples:
  %s run
  %s run -metrics-file /app/config/health_metrics.json
  %s start
  %s stop
`, version, exe, exe, exe, exe, exe)
}

// ---------------------------------------------------------------------------
// run: foreground server (also used by daemon child)
// ---------------------------------------------------------------------------

func cmdRun() {
	cfg := config.Load()

	// Load and validate metric definitions. Any schema violation aborts
	// startup with a diagnostic naming the offending field.
	defs, err := definition.Load(cfg.MetricsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "health-tracker: %v\n", err)
		os.Exit(1)
	}
	log.Printf("[startup] loaded %d metric definitions from %s", len(defs), cfg.MetricsFile)
	for _, d := range defs {
		log.Printf("[startup]   %s <- %s every %s (warn %v / crit %v, %s, trip %d)",
			d.Name, d.Source, d.Interval, d.WarningThreshold, d.CriticalThreshold, d.Direction, d.BreachesToTrip)
	}

	// History store is optional; the engine runs memory-only without it.
	var hist *history.Store
	if cfg.DBPath != "" {
		hist, err = history.Open(cfg.DBPath)
		if err != nil {
			log.Fatalf("failed to open history database: %v", err)
		}
		defer hist.Close()
	} else {
		log.Printf("[startup] history persistence disabled")
	}

	store := state.New(defs)
	smp := sampler.New(cfg.SampleTimeout())
	eval := evaluator.New(cfg.StalenessFactor)
	sched := scheduler.New(defs, smp, eval, store, cfg.ShutdownGrace())

	// Live stream hub
	hub := api.NewHub()
	go hub.Run()

	// Fan evaluated cycles out to history and the live stream.
	sched.SetOnResult(func(def model.Definition, sample model.Sample, st model.State, tr model.Transition, changed bool) {
		if hist != nil {
			if err := hist.InsertSample(sample, st.Status); err != nil {
				log.Printf("[history] insert sample: %v", err)
			}
			if changed {
				if err := hist.InsertTransition(tr); err != nil {
					log.Printf("[history] insert transition: %v", err)
				}
			}
		}
		hub.BroadcastSample(sample, st.Status)
		if changed {
			hub.BroadcastTransition(tr)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()
	sched.Start(ctx)

	if hist != nil && cfg.RetentionHours > 0 {
		go runRetentionPurge(ctx, hist, cfg.RetentionHours)
	}

	router := api.NewRouter(store, hist, hub, exposition.NewHandler(store, defs), version)
	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: router,
	}

	go func() {
		log.Printf("health-tracker %s listening on %s (metrics on /metrics)", version, cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Wait for signal
	<-ctx.Done()
	log.Println("shutting down...")

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace())
	defer cancel()

	sched.Stop()
	srv.Shutdown(shutCtx)

	os.Remove(cfg.PidFile)
	log.Println("goodbye")
}

func runRetentionPurge(ctx context.Context, hist *history.Store, hours int) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := hist.PurgeOlderThan(hours)
			if err != nil {
				log.Printf("[purge] error: %v", err)
			} else if n > 0 {
				log.Printf("[purge] removed %d old rows", n)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// PID file helpers
// ---------------------------------------------------------------------------

func writePidFile(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644)
}

func readPidFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in %s", path)
	}
	return pid, nil
}
