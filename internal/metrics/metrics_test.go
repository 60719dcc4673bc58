package metrics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fetchguard/fetchguard/internal/types"
)

func TestTrackerRecordsTierCounters(t *testing.T) {
	tr := NewTracker()

	tr.RecordHit("memory", "k", time.Millisecond)
	tr.RecordHit("file", "k", 2*time.Millisecond)
	tr.RecordMiss("memory", "k", time.Millisecond)
	tr.RecordMiss("redis", "k", time.Millisecond)
	tr.RecordSet("memory", "k", 128, time.Millisecond)
	tr.RecordDelete("memory", "k", time.Millisecond)
	tr.RecordError("file", "Get", errors.New("io"))

	s := tr.Snapshot()
	if s.MemoryHits != 1 || s.DurableHits != 1 {
		t.Errorf("hits = (%d, %d), want (1, 1)", s.MemoryHits, s.DurableHits)
	}
	if s.MemoryMisses != 1 || s.DurableMisses != 1 {
		t.Errorf("misses = (%d, %d), want (1, 1)", s.MemoryMisses, s.DurableMisses)
	}
	if s.GetCount != 4 || s.SetCount != 1 || s.DeleteCount != 1 || s.ErrorCount != 1 {
		t.Errorf("op counts = %+v", s)
	}
	if got := s.TotalHitRatio(); got != 0.5 {
		t.Errorf("TotalHitRatio() = %v, want 0.5", got)
	}
}

func TestTrackerRecordsFetchOutcomes(t *testing.T) {
	tr := NewTracker()

	tr.RecordFetch("hit", time.Millisecond)
	tr.RecordFetch("fetched", time.Millisecond)
	tr.RecordFetch("fetched", time.Millisecond)
	tr.RecordFetch("rejected", time.Millisecond)
	tr.RecordFetch("canceled", time.Millisecond)
	tr.RecordFetch("error", time.Millisecond)

	s := tr.Snapshot()
	if s.FetchCacheHits != 1 || s.FetchUpstream != 2 || s.FetchRejected != 1 || s.FetchCanceled != 1 || s.FetchErrors != 1 {
		t.Errorf("fetch outcomes = %+v", s)
	}
}

func TestTrackerLatencyPercentiles(t *testing.T) {
	tr := NewTracker()

	for i := 1; i <= 100; i++ {
		tr.RecordHit("memory", "k", time.Duration(i)*time.Millisecond)
	}

	s := tr.Snapshot()
	if s.P50LatencyMs < 45 || s.P50LatencyMs > 55 {
		t.Errorf("P50 = %v, want ~50", s.P50LatencyMs)
	}
	if s.P99LatencyMs < 95 {
		t.Errorf("P99 = %v, want >= 95", s.P99LatencyMs)
	}
	if s.AvgLatencyMs <= 0 {
		t.Errorf("Avg = %v, want > 0", s.AvgLatencyMs)
	}
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker()
	tr.RecordHit("memory", "k", time.Millisecond)
	tr.RecordFetch("fetched", time.Millisecond)
	tr.RecordCircuitBreakerStateChange("closed", "open")

	tr.Reset()

	s := tr.Snapshot()
	if s.MemoryHits != 0 || s.FetchUpstream != 0 || s.CircuitStateChanges != 0 || s.P50LatencyMs != 0 {
		t.Errorf("snapshot after reset = %+v, want zeros", s)
	}
}

func TestTrackerConcurrent(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				tr.RecordHit("memory", "k", time.Millisecond)
				tr.RecordFetch("hit", time.Millisecond)
				_ = tr.Snapshot()
			}
		}()
	}
	wg.Wait()

	s := tr.Snapshot()
	if s.MemoryHits != 4000 {
		t.Errorf("MemoryHits = %d, want 4000", s.MemoryHits)
	}
}

func TestBackgroundPublisher(t *testing.T) {
	var published atomic.Int32
	pub := &countingPublisher{published: &published}

	bp := NewBackgroundPublisher(pub, 10*time.Millisecond, func() *types.PublisherHealthMetrics {
		return &types.PublisherHealthMetrics{HitRatio: 0.9}
	}, nil)

	bp.Start(context.Background())

	deadline := time.After(1 * time.Second)
	for published.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("background publisher never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}

	bp.Stop()
	after := published.Load()
	time.Sleep(30 * time.Millisecond)
	// At most the final flush happens after Stop
	if published.Load() > after+1 {
		t.Error("publisher kept firing after Stop")
	}
}

func TestBackgroundPublisherSurvivesPanic(t *testing.T) {
	bp := NewBackgroundPublisher(NewNoOpPublisher(), time.Hour, func() *types.PublisherHealthMetrics {
		panic("bad health fn")
	}, nil)

	// Must not propagate the panic
	bp.PublishNow()
}

func TestTags(t *testing.T) {
	if got := LayerTag("file"); got != "layer:file" {
		t.Errorf("LayerTag() = %q", got)
	}
	if got := OutcomeTag("rejected"); got != "outcome:rejected" {
		t.Errorf("OutcomeTag() = %q", got)
	}
	if got := CircuitStateTag("half-open"); got != "circuit_state:half-open" {
		t.Errorf("CircuitStateTag() = %q", got)
	}
}

func TestTimer(t *testing.T) {
	var published atomic.Int32
	pub := &countingPublisher{published: &published}

	timer := NewTimer(pub, "op.latency", LayerTag("memory"))
	time.Sleep(5 * time.Millisecond)
	d := timer.Stop()

	if d < 5*time.Millisecond {
		t.Errorf("Stop() = %v, want >= 5ms", d)
	}
	if published.Load() != 1 {
		t.Error("Timing not recorded on Stop")
	}
}

type countingPublisher struct {
	NoOpPublisher
	published *atomic.Int32
}

func (p *countingPublisher) Timing(name string, d time.Duration, tags ...string) {
	p.published.Add(1)
}

func (p *countingPublisher) PublishHealthMetrics(m *types.PublisherHealthMetrics) {
	p.published.Add(1)
}
