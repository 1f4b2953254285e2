package sampler

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/essenlikcia/health-tracker/internal/model"
)

func def(name, source string) model.Definition {
	return model.Definition{Name: name, Source: source, Interval: time.Second}
}

func TestSampleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value")
	if err := os.WriteFile(path, []byte("42.5\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	s := New(0)
	got := s.Sample(context.Background(), def("m", "file:"+path))
	if !got.OK {
		t.Fatalf("expected ok sample, got %+v", got)
	}
	if got.Value != 42.5 {
		t.Fatalf("value %v, want 42.5", got.Value)
	}
	if got.Metric != "m" {
		t.Fatalf("metric %q, want m", got.Metric)
	}
}

func TestSampleFileJSONKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "health_metrics.json")
	data := `{"body_weight": 72.5, "sleep_duration": 7.5, "note": "not a number"}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	s := New(0)
	got := s.Sample(context.Background(), def("sleep", "file:"+path+"#sleep_duration"))
	if !got.OK || got.Value != 7.5 {
		t.Fatalf("got %+v, want ok 7.5", got)
	}

	// Missing key is an acquisition failure, not a panic or caller error.
	got = s.Sample(context.Background(), def("bmi", "file:"+path+"#bmi"))
	if got.OK {
		t.Fatalf("expected failed sample for missing key, got %+v", got)
	}
	if !math.IsNaN(got.Value) {
		t.Fatalf("failed sample value %v, want NaN", got.Value)
	}

	// Extracting a non-numeric field fails; its presence must not.
	got = s.Sample(context.Background(), def("note", "file:"+path+"#note"))
	if got.OK {
		t.Fatalf("expected failed sample for non-numeric field, got %+v", got)
	}
}

func TestSampleFileMissing(t *testing.T) {
	s := New(0)
	got := s.Sample(context.Background(), def("m", "file:"+filepath.Join(t.TempDir(), "nope")))
	if got.OK {
		t.Fatalf("expected failed sample, got %+v", got)
	}
	if !math.IsNaN(got.Value) {
		t.Fatalf("failed sample value %v, want NaN", got.Value)
	}
}

func TestSampleCommand(t *testing.T) {
	s := New(0)
	got := s.Sample(context.Background(), def("m", "cmd:echo 7 extra tokens"))
	if !got.OK || got.Value != 7 {
		t.Fatalf("got %+v, want ok 7", got)
	}

	// df-style percent output
	got = s.Sample(context.Background(), def("m", "cmd:echo 63%"))
	if !got.OK || got.Value != 63 {
		t.Fatalf("got %+v, want ok 63", got)
	}

	got = s.Sample(context.Background(), def("m", "cmd:echo not-a-number"))
	if got.OK {
		t.Fatalf("expected parse failure, got %+v", got)
	}
}

func TestSampleCommandTimeout(t *testing.T) {
	s := New(0)
	// Two statements force the shell to fork; the sleep child inherits the
	// stdout pipe and outlives the killed shell.
	d := def("m", "cmd:sleep 5; echo late")
	d.Interval = 100 * time.Millisecond // 80ms acquisition bound

	start := time.Now()
	got := s.Sample(context.Background(), d)
	elapsed := time.Since(start)

	if got.OK {
		t.Fatalf("expected timeout failure, got %+v", got)
	}
	if elapsed >= time.Second {
		t.Fatalf("acquisition took %s, should be cut off near the 80ms bound", elapsed)
	}
}

func TestSampleHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("  12.25  "))
	}))
	defer srv.Close()

	s := New(0)
	got := s.Sample(context.Background(), def("m", srv.URL))
	if !got.OK || got.Value != 12.25 {
		t.Fatalf("got %+v, want ok 12.25", got)
	}
}

func TestSampleHTTPBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(0)
	got := s.Sample(context.Background(), def("m", srv.URL))
	if got.OK {
		t.Fatalf("expected failed sample for 500, got %+v", got)
	}
}

func TestSampleUnknownScheme(t *testing.T) {
	s := New(0)
	got := s.Sample(context.Background(), def("m", "carrier_pigeon:coop"))
	if got.OK {
		t.Fatalf("expected failed sample, got %+v", got)
	}
}

func TestAcquisitionTimeoutBounds(t *testing.T) {
	s := New(2 * time.Second)
	if got := s.acquisitionTimeout(time.Second); got != 800*time.Millisecond {
		t.Errorf("interval 1s: timeout %s, want 800ms", got)
	}
	// The cap applies for long intervals.
	if got := s.acquisitionTimeout(time.Hour); got != 2*time.Second {
		t.Errorf("interval 1h: timeout %s, want the 2s cap", got)
	}
	// Uncapped sampler still stays under the interval.
	u := New(0)
	if got := u.acquisitionTimeout(time.Second); got >= time.Second {
		t.Errorf("timeout %s must be strictly shorter than the interval", got)
	}
}

func TestValidSource(t *testing.T) {
	valid := []string{
		"cmd:echo 1",
		"file:/tmp/value",
		"file:/app/config/health_metrics.json#bmi",
		"http://localhost:8080/value",
		"https://example.com/value",
		"system:cpu.percent",
		"system:disk./.used_pct",
	}
	for _, src := range valid {
		if err := ValidSource(src); err != nil {
			t.Errorf("ValidSource(%q) = %v, want nil", src, err)
		}
	}

	invalid := []string{"", "noscheme", "carrier_pigeon:coop", "cmd:", "system:  "}
	for _, src := range invalid {
		if err := ValidSource(src); err == nil {
			t.Errorf("ValidSource(%q) = nil, want error", src)
		}
	}
}

func TestDiskMountParsing(t *testing.T) {
	cases := []struct {
		name  string
		mount string
		ok    bool
	}{
		{"disk./.used_pct", "/", true},
		{"disk./data.used_pct", "/data", true},
		{"disk..used_pct", "", false},
		{"cpu.percent", "", false},
	}
	for _, tc := range cases {
		mount, ok := diskMount(tc.name)
		if ok != tc.ok || mount != tc.mount {
			t.Errorf("diskMount(%q) = (%q, %v), want (%q, %v)", tc.name, mount, ok, tc.mount, tc.ok)
		}
	}
}
