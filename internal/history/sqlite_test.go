package history

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/essenlikcia/health-tracker/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndQuerySamples(t *testing.T) {
	s := openTestStore(t)
	base := time.Unix(1_700_000_000, 0)

	for i, v := range []float64{70, 82, 96} {
		sample := model.Sample{Metric: "disk_usage", Value: v, Timestamp: base.Add(time.Duration(i) * time.Minute), OK: true}
		if err := s.InsertSample(sample, model.StatusHealthy); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	// A failed acquisition stores a NULL value.
	failed := model.Sample{Metric: "disk_usage", Value: math.NaN(), Timestamp: base.Add(3 * time.Minute), OK: false}
	if err := s.InsertSample(failed, model.StatusUnknown); err != nil {
		t.Fatalf("insert failed sample: %v", err)
	}
	// Another metric should not leak into the query.
	other := model.Sample{Metric: "ping_latency_ms", Value: 10, Timestamp: base, OK: true}
	if err := s.InsertSample(other, model.StatusHealthy); err != nil {
		t.Fatalf("insert: %v", err)
	}

	points, err := s.QuerySamples("disk_usage", base.Unix(), base.Add(time.Hour).Unix(), 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(points) != 4 {
		t.Fatalf("expected 4 points, got %d", len(points))
	}
	if points[0].Value == nil || *points[0].Value != 70 {
		t.Errorf("first point %+v, want value 70", points[0])
	}
	last := points[3]
	if last.OK || last.Value != nil {
		t.Errorf("failed sample row %+v, want ok=false and nil value", last)
	}
}

func TestQuerySamplesDownsamples(t *testing.T) {
	s := openTestStore(t)
	base := time.Unix(1_700_000_000, 0).Truncate(time.Hour)

	// Four samples inside one 120s bucket: average should come back.
	for i, v := range []float64{10, 20, 30, 40} {
		sample := model.Sample{Metric: "m", Value: v, Timestamp: base.Add(time.Duration(i*20) * time.Second), OK: true}
		if err := s.InsertSample(sample, model.StatusHealthy); err != nil {
			t.Fatal(err)
		}
	}

	points, err := s.QuerySamples("m", base.Unix(), base.Add(time.Hour).Unix(), 120)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 downsampled point, got %d", len(points))
	}
	if points[0].Value == nil || *points[0].Value != 25 {
		t.Fatalf("downsampled value %+v, want 25", points[0].Value)
	}
}

func TestTransitions(t *testing.T) {
	s := openTestStore(t)
	base := time.Unix(1_700_000_000, 0)

	trs := []model.Transition{
		{Metric: "disk_usage", From: model.StatusUnknown, To: model.StatusHealthy, Value: 70, Timestamp: base},
		{Metric: "disk_usage", From: model.StatusHealthy, To: model.StatusWarning, Value: 82, Timestamp: base.Add(time.Minute)},
		{Metric: "ping_latency_ms", From: model.StatusUnknown, To: model.StatusHealthy, Value: 9, Timestamp: base.Add(2 * time.Minute)},
	}
	for _, tr := range trs {
		if err := s.InsertTransition(tr); err != nil {
			t.Fatalf("insert transition: %v", err)
		}
	}

	all, err := s.RecentTransitions("", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 transitions, got %d", len(all))
	}
	// Newest first
	if all[0].Metric != "ping_latency_ms" {
		t.Errorf("newest transition %+v, want ping_latency_ms", all[0])
	}

	disk, err := s.RecentTransitions("disk_usage", 10)
	if err != nil {
		t.Fatalf("recent filtered: %v", err)
	}
	if len(disk) != 2 {
		t.Fatalf("expected 2 disk transitions, got %d", len(disk))
	}
	if disk[0].From != "healthy" || disk[0].To != "warning" {
		t.Errorf("newest disk transition %+v, want healthy -> warning", disk[0])
	}
}

func TestPurgeOlderThan(t *testing.T) {
	s := openTestStore(t)
	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

	for _, ts := range []time.Time{old, recent} {
		sample := model.Sample{Metric: "m", Value: 1, Timestamp: ts, OK: true}
		if err := s.InsertSample(sample, model.StatusHealthy); err != nil {
			t.Fatal(err)
		}
		tr := model.Transition{Metric: "m", From: model.StatusUnknown, To: model.StatusHealthy, Value: 1, Timestamp: ts}
		if err := s.InsertTransition(tr); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.PurgeOlderThan(24)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 2 {
		t.Fatalf("purged %d rows, want 2 (one sample, one transition)", n)
	}

	points, err := s.QuerySamples("m", 0, time.Now().Unix()+1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 surviving sample, got %d", len(points))
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	sample := model.Sample{Metric: "m", Value: 1, Timestamp: time.Now(), OK: true}
	if err := s1.InsertSample(sample, model.StatusHealthy); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	// Reopening runs migrations again without clobbering data.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	points, err := s2.QuerySamples("m", 0, time.Now().Unix()+1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 1 {
		t.Fatalf("expected data to survive reopen, got %d points", len(points))
	}
}
