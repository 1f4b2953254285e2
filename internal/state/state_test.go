package state

import (
	"sync"
	"testing"
	"time"

	"github.com/essenlikcia/health-tracker/internal/model"
)

func testDefs() []model.Definition {
	return []model.Definition{
		{Name: "zebra_latency", Interval: time.Second},
		{Name: "disk_usage", Interval: time.Second},
		{Name: "mem_used", Interval: time.Second},
	}
}

func TestNewInitializesUnknown(t *testing.T) {
	s := New(testDefs())
	if s.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", s.Len())
	}
	for _, e := range s.Snapshot() {
		if e.State.Status != model.StatusUnknown {
			t.Errorf("%s: initial status %s, want unknown", e.Def.Name, e.State.Status)
		}
		if !e.State.LastUpdated.IsZero() {
			t.Errorf("%s: LastUpdated should be zero before any successful sample", e.Def.Name)
		}
	}
}

func TestSnapshotOrderedByName(t *testing.T) {
	s := New(testDefs())
	want := []string{"disk_usage", "mem_used", "zebra_latency"}
	snap := s.Snapshot()
	for i, name := range want {
		if snap[i].Def.Name != name {
			t.Fatalf("position %d: got %s, want %s", i, snap[i].Def.Name, name)
		}
	}
}

func TestUpdateReportsTransitions(t *testing.T) {
	s := New(testDefs())
	now := time.Now()
	sample := model.Sample{Metric: "disk_usage", Value: 82, Timestamp: now, OK: true}

	tr, changed, err := s.Update("disk_usage", model.StatusWarning, 2, sample)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !changed {
		t.Fatal("unknown -> warning should report a change")
	}
	if tr.From != model.StatusUnknown || tr.To != model.StatusWarning {
		t.Fatalf("transition %s -> %s, want unknown -> warning", tr.From, tr.To)
	}

	e, _ := s.Get("disk_usage")
	if e.State.Status != model.StatusWarning || e.State.BreachCount != 2 {
		t.Fatalf("state not applied: %+v", e.State)
	}
	if !e.State.StatusSince.Equal(now) || !e.State.LastUpdated.Equal(now) {
		t.Fatalf("timestamps not applied: %+v", e.State)
	}

	// Same status again: no transition, StatusSince unchanged.
	later := now.Add(time.Second)
	sample2 := model.Sample{Metric: "disk_usage", Value: 83, Timestamp: later, OK: true}
	_, changed, err = s.Update("disk_usage", model.StatusWarning, 0, sample2)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if changed {
		t.Fatal("warning -> warning should not report a change")
	}
	e, _ = s.Get("disk_usage")
	if !e.State.StatusSince.Equal(now) {
		t.Fatal("StatusSince moved without a transition")
	}
	if !e.State.LastUpdated.Equal(later) {
		t.Fatal("LastUpdated should follow successful samples")
	}
}

func TestFailedSampleDoesNotAdvanceLastUpdated(t *testing.T) {
	s := New(testDefs())
	now := time.Now()

	okSample := model.Sample{Metric: "disk_usage", Value: 50, Timestamp: now, OK: true}
	if _, _, err := s.Update("disk_usage", model.StatusHealthy, 0, okSample); err != nil {
		t.Fatal(err)
	}

	failed := model.Sample{Metric: "disk_usage", Timestamp: now.Add(time.Second), OK: false}
	if _, _, err := s.Update("disk_usage", model.StatusHealthy, 0, failed); err != nil {
		t.Fatal(err)
	}

	e, _ := s.Get("disk_usage")
	if !e.State.LastUpdated.Equal(now) {
		t.Fatal("LastUpdated advanced on a failed acquisition")
	}
	if e.State.LastSample.OK {
		t.Fatal("LastSample should be the failed acquisition")
	}
}

func TestUpdateUnknownMetric(t *testing.T) {
	s := New(testDefs())
	_, _, err := s.Update("nope", model.StatusHealthy, 0, model.Sample{})
	if err == nil {
		t.Fatal("expected error for unknown metric")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New(testDefs())
	snap := s.Snapshot()
	snap[0].State.Status = model.StatusCritical

	e, _ := s.Get(snap[0].Def.Name)
	if e.State.Status == model.StatusCritical {
		t.Fatal("mutating a snapshot entry leaked into the store")
	}
}

func TestConcurrentUpdatesAndSnapshots(t *testing.T) {
	s := New(testDefs())
	names := []string{"zebra_latency", "disk_usage", "mem_used"}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Writers, one per metric, hammering updates.
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				sample := model.Sample{Metric: name, Value: float64(i), Timestamp: time.Now(), OK: true}
				status := model.StatusHealthy
				if i%2 == 1 {
					status = model.StatusWarning
				}
				if _, _, err := s.Update(name, status, i%3, sample); err != nil {
					t.Errorf("update %s: %v", name, err)
					return
				}
			}
		}(name)
	}

	// Concurrent readers taking snapshots.
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				snap := s.Snapshot()
				if len(snap) != 3 {
					t.Errorf("snapshot length %d", len(snap))
					return
				}
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()
}
