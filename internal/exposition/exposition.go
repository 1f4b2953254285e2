// Package exposition renders the state store in the Prometheus text format.
// Scraping is purely a read of already-maintained state; it never triggers
// sampling, so the collection cadence stays fixed no matter how often the
// time-series store pulls.
package exposition

import (
	"fmt"
	"math"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/essenlikcia/health-tracker/internal/model"
	"github.com/essenlikcia/health-tracker/internal/state"
)

// Collector exposes each tracked metric as two gauges: the raw value under
// the metric's own name, and "<name>_status" carrying the status code with a
// human-readable status label. Output ordering is stable (client_golang
// sorts families and label sets), so unchanged state renders byte-identical.
type Collector struct {
	store       *state.Store
	valueDescs  map[string]*prometheus.Desc
	statusDescs map[string]*prometheus.Desc
}

// NewCollector builds descriptors once from the definition set. Names are
// already validated exposition-safe by the definition store.
func NewCollector(store *state.Store, defs []model.Definition) *Collector {
	c := &Collector{
		store:       store,
		valueDescs:  make(map[string]*prometheus.Desc, len(defs)),
		statusDescs: make(map[string]*prometheus.Desc, len(defs)),
	}
	for _, def := range defs {
		help := fmt.Sprintf("Current value of health metric %s.", def.Name)
		if def.Unit != "" {
			help = fmt.Sprintf("Current value of health metric %s (%s).", def.Name, def.Unit)
		}
		c.valueDescs[def.Name] = prometheus.NewDesc(def.Name, help, nil, nil)
		c.statusDescs[def.Name] = prometheus.NewDesc(
			def.Name+"_status",
			fmt.Sprintf("Health status of %s (0=healthy, 1=warning, 2=critical, 3=unknown).", def.Name),
			[]string{"status"}, nil)
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.valueDescs {
		ch <- d
	}
	for _, d := range c.statusDescs {
		ch <- d
	}
}

// Collect renders a snapshot. A metric it cannot render is skipped rather
// than failing the scrape; a partial health report beats none.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, e := range c.store.Snapshot() {
		valueDesc, ok := c.valueDescs[e.Def.Name]
		if !ok {
			continue
		}

		st := e.State
		// The raw value line is omitted while the metric is unknown or the
		// latest acquisition failed.
		if st.Status != model.StatusUnknown && st.LastSample.OK && !math.IsNaN(st.LastSample.Value) {
			m, err := prometheus.NewConstMetric(valueDesc, prometheus.GaugeValue, st.LastSample.Value)
			if err == nil {
				ch <- m
			}
		}

		statusDesc, ok := c.statusDescs[e.Def.Name]
		if !ok {
			continue
		}
		m, err := prometheus.NewConstMetric(statusDesc, prometheus.GaugeValue,
			float64(st.Status.Code()), st.Status.String())
		if err == nil {
			ch <- m
		}
	}
}

// NewHandler returns the scrape handler backed by a private registry, so the
// exposition surface carries exactly the tracked metrics and nothing else.
func NewHandler(store *state.Store, defs []model.Definition) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(store, defs))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
