package sampler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/essenlikcia/health-tracker/internal/model"
)

// Source schemes understood by the sampler, in "scheme:rest" form.
//
//	cmd:df -P / | awk 'NR==2 {print $5}'   first float on stdout
//	file:/var/run/metric.val               file containing a number
//	file:/config/health_metrics.json#bmi   numeric field of a JSON object
//	http://host/value  https://host/value  response body containing a number
//	system:cpu.percent                     host metric via gopsutil
const (
	SchemeCmd    = "cmd"
	SchemeFile   = "file"
	SchemeHTTP   = "http"
	SchemeHTTPS  = "https"
	SchemeSystem = "system"
)

// Sampler acquires raw values for metric definitions. It never fails the
// caller: acquisition errors come back as Sample{OK:false}, because a flaky
// source is itself health-relevant information.
type Sampler struct {
	maxTimeout time.Duration
	client     *http.Client
}

// New creates a sampler. maxTimeout caps the per-acquisition timeout;
// zero means no cap beyond the interval-derived bound.
func New(maxTimeout time.Duration) *Sampler {
	return &Sampler{
		maxTimeout: maxTimeout,
		client:     &http.Client{},
	}
}

// Sample obtains the current value for def within a bounded timeout that is
// strictly shorter than the definition's interval, so a cycle always
// completes before the next one is due.
func (s *Sampler) Sample(ctx context.Context, def model.Definition) model.Sample {
	ctx, cancel := context.WithTimeout(ctx, s.acquisitionTimeout(def.Interval))
	defer cancel()

	value, err := s.acquire(ctx, def)
	now := time.Now()
	if err != nil {
		log.Printf("[sampler] %s: %v", def.Name, err)
		return model.Sample{Metric: def.Name, Value: math.NaN(), Timestamp: now, OK: false}
	}
	return model.Sample{Metric: def.Name, Value: value, Timestamp: now, OK: true}
}

// acquisitionTimeout is 80% of the evaluation interval, capped by maxTimeout.
func (s *Sampler) acquisitionTimeout(interval time.Duration) time.Duration {
	t := interval * 4 / 5
	if s.maxTimeout > 0 && t > s.maxTimeout {
		t = s.maxTimeout
	}
	return t
}

func (s *Sampler) acquire(ctx context.Context, def model.Definition) (float64, error) {
	scheme, rest := splitSource(def.Source)
	switch scheme {
	case SchemeCmd:
		return sampleCommand(ctx, rest)
	case SchemeFile:
		return sampleFile(rest)
	case SchemeHTTP, SchemeHTTPS:
		return s.sampleHTTP(ctx, def.Source)
	case SchemeSystem:
		return sampleSystem(ctx, rest)
	default:
		return 0, fmt.Errorf("unsupported source scheme %q", scheme)
	}
}

// ValidSource checks that a source spec names a known scheme and is
// non-empty after the scheme. Called by the definition store at load time.
func ValidSource(src string) error {
	scheme, rest := splitSource(src)
	switch scheme {
	case SchemeCmd, SchemeFile, SchemeHTTP, SchemeHTTPS, SchemeSystem:
		if strings.TrimSpace(rest) == "" {
			return fmt.Errorf("empty %s source", scheme)
		}
		return nil
	default:
		return fmt.Errorf("unknown source scheme %q", scheme)
	}
}

func splitSource(src string) (scheme, rest string) {
	idx := strings.Index(src, ":")
	if idx < 0 {
		return src, ""
	}
	scheme, rest = src[:idx], src[idx+1:]
	// http://... and https://... keep their usual URL form
	rest = strings.TrimPrefix(rest, "//")
	return scheme, rest
}

func sampleCommand(ctx context.Context, command string) (float64, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	// Killing the shell at the deadline is not enough: its children inherit
	// the stdout pipe and Output keeps waiting for EOF until they exit.
	// WaitDelay forces the pipe closed so the acquisition bound holds even
	// with orphaned grandchildren.
	cmd.WaitDelay = time.Second
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			cmd.WaitDelay = d
		}
	}
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("command: %w", err)
	}
	return parseValue(string(out))
}

// sampleFile reads a number from a file. An optional "#key" suffix selects
// a numeric field from a JSON object, which is how the mounted
// health_metrics.json value file is consumed.
func sampleFile(spec string) (float64, error) {
	path, key := spec, ""
	if idx := strings.LastIndexByte(spec, '#'); idx >= 0 {
		path, key = spec[:idx], spec[idx+1:]
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("file: %w", err)
	}
	if key == "" {
		return parseValue(string(data))
	}

	// Decode lazily so non-numeric fields elsewhere in the object (dates,
	// notes) don't break extraction of the requested key.
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("file %s: %w", path, err)
	}
	raw, ok := doc[key]
	if !ok {
		return 0, fmt.Errorf("file %s: no field %q", path, key)
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return 0, fmt.Errorf("file %s: field %q: %w", path, key, err)
	}
	v, err := num.Float64()
	if err != nil {
		return 0, fmt.Errorf("file %s: field %q: %w", path, key, err)
	}
	return v, nil
}

func (s *Sampler) sampleHTTP(ctx context.Context, url string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("http: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("http: unexpected status %d from %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return 0, fmt.Errorf("http: %w", err)
	}
	return parseValue(string(body))
}

// parseValue extracts the first whitespace-separated token and parses it as
// a float. A trailing "%" is tolerated so shell one-liners can pass df
// output through unchanged.
func parseValue(raw string) (float64, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty output")
	}
	tok := strings.TrimSuffix(fields[0], "%")
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", fields[0], err)
	}
	return v, nil
}
