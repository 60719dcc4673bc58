package fetchguard_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fetchguard/fetchguard/pkg/fetchguard"
)

type Quote struct {
	Symbol   string  `json:"symbol"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

func TestFetchThroughPublicAPI(t *testing.T) {
	fg, err := fetchguard.NewMemoryOnly(fetchguard.WithoutResilience())
	if err != nil {
		t.Fatal(err)
	}
	defer fg.Close()

	ctx := context.Background()
	calls := 0
	op := func(ctx context.Context) (any, error) {
		calls++
		return Quote{Symbol: "AAPL", Price: 187.32, Currency: "USD"}, nil
	}

	var q Quote
	if err := fg.Fetch(ctx, "quote:AAPL", &q, op); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if q.Price != 187.32 {
		t.Errorf("Price = %v, want 187.32", q.Price)
	}

	// Second fetch must come from cache
	var q2 Quote
	if err := fg.Fetch(ctx, "quote:AAPL", &q2, op); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("operation calls = %d, want 1", calls)
	}

	s := fg.Metrics()
	if s.FetchUpstream != 1 || s.FetchCacheHits != 1 {
		t.Errorf("fetch metrics = upstream %d, hits %d; want 1, 1", s.FetchUpstream, s.FetchCacheHits)
	}
}

func TestFetchAs(t *testing.T) {
	fg, err := fetchguard.NewMemoryOnly(fetchguard.WithoutResilience())
	if err != nil {
		t.Fatal(err)
	}
	defer fg.Close()

	q, err := fetchguard.FetchAs(context.Background(), fg, "quote:GOOG", func(ctx context.Context) (Quote, error) {
		return Quote{Symbol: "GOOG", Price: 164.51, Currency: "USD"}, nil
	})
	if err != nil {
		t.Fatalf("FetchAs() error = %v", err)
	}
	if q.Symbol != "GOOG" {
		t.Errorf("Symbol = %q, want GOOG", q.Symbol)
	}
}

func TestSetGetInvalidate(t *testing.T) {
	fg, err := fetchguard.NewMemoryOnly()
	if err != nil {
		t.Fatal(err)
	}
	defer fg.Close()

	ctx := context.Background()
	quote := Quote{Symbol: "MSFT", Price: 412.08, Currency: "USD"}

	if err := fg.Set(ctx, "quote:MSFT", quote, fetchguard.WithTTL(time.Minute)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got Quote
	if err := fg.Get(ctx, "quote:MSFT", &got); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != quote {
		t.Errorf("Get() = %+v, want %+v", got, quote)
	}

	if err := fg.Invalidate(ctx, "quote:MSFT"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if err := fg.Get(ctx, "quote:MSFT", &got); !fetchguard.IsCacheMiss(err) {
		t.Errorf("Get() after invalidate = %v, want cache miss", err)
	}
}

func TestFetchErrorSurfacesThroughFacade(t *testing.T) {
	cfg := fetchguard.TestConfig()
	cfg.Retry.Enabled = true
	cfg.Retry.MaxAttempts = 2
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = 5 * time.Millisecond

	fg, err := fetchguard.NewFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer fg.Close()

	upstream := errors.New("upstream down")
	err = fg.Fetch(context.Background(), "quote:FAIL", new(Quote), func(ctx context.Context) (any, error) {
		return nil, upstream
	})

	if !fetchguard.IsFetchFailure(err) {
		t.Fatalf("Fetch() error = %v, want fetch failure", err)
	}
	var fe *fetchguard.FetchError
	if !errors.As(err, &fe) {
		t.Fatal("error is not a *FetchError")
	}
	if fe.Key != "quote:FAIL" || fe.Attempts != 2 {
		t.Errorf("FetchError = %+v, want key quote:FAIL after 2 attempts", fe)
	}
	if !errors.Is(err, upstream) {
		t.Error("FetchError does not wrap the upstream error")
	}
}

func TestCircuitStateExposed(t *testing.T) {
	fg, err := fetchguard.NewMemoryOnly()
	if err != nil {
		t.Fatal(err)
	}
	defer fg.Close()

	if got := fg.CircuitState(); got != fetchguard.CircuitClosed {
		t.Errorf("CircuitState() = %v, want closed", got)
	}
	if fg.IsCircuitOpen() {
		t.Error("IsCircuitOpen() = true on a fresh fetcher")
	}
}

func TestHealthThroughFacade(t *testing.T) {
	fg, err := fetchguard.NewMemoryOnly()
	if err != nil {
		t.Fatal(err)
	}
	defer fg.Close()

	h := fg.Health(context.Background())
	if h.Status != fetchguard.HealthStatusHealthy {
		t.Errorf("Status = %v, want healthy", h.Status)
	}
	if !h.Memory.Available {
		t.Error("memory tier reported unavailable")
	}
	if h.Durable.Available {
		t.Error("durable tier reported available in memory-only mode")
	}
	if h.Circuit.State != "closed" {
		t.Errorf("Circuit.State = %q, want closed", h.Circuit.State)
	}
}

func TestClosedFetcherRejectsOperations(t *testing.T) {
	fg, err := fetchguard.NewMemoryOnly()
	if err != nil {
		t.Fatal(err)
	}
	if err := fg.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	ctx := context.Background()
	if err := fg.Get(ctx, "k", new(Quote)); !errors.Is(err, fetchguard.ErrClosed) {
		t.Errorf("Get() after close = %v, want ErrClosed", err)
	}
	if err := fg.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
}
