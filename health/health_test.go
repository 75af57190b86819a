package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonwraymond/querycache/key"
	"github.com/jonwraymond/querycache/resilience"
	"github.com/jonwraymond/querycache/store"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func entryKey(t *testing.T, id int) key.Key {
	t.Helper()
	k, err := key.Extend(key.MustRoot("product"), key.MustLevel(key.Var("id")), key.Values{"id": id})
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	return k
}

func fill(t *testing.T, s *store.Store, ok, failed int) {
	t.Helper()
	for i := range ok {
		s.Write(entryKey(t, i), store.Replace(i))
	}
	for i := range failed {
		s.MarkError(entryKey(t, ok+i), errors.New("origin down"))
	}
}

func TestStoreChecker(t *testing.T) {
	tests := []struct {
		name       string
		ok, failed int
		want       Status
	}{
		{"empty", 0, 0, StatusHealthy},
		{"below minimum", 0, 3, StatusHealthy},
		{"mostly fine", 9, 1, StatusHealthy},
		{"degraded", 6, 4, StatusDegraded},
		{"unhealthy", 2, 8, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.New()
			fill(t, s, tt.ok, tt.failed)
			got := NewStoreChecker(s, StoreCheckerConfig{}).Check(context.Background())
			if got.Status != tt.want {
				t.Fatalf("Status = %v, want %v (%s)", got.Status, tt.want, got.Message)
			}
			if got.Details["entries"] != tt.ok+tt.failed {
				t.Errorf("entries = %v, want %d", got.Details["entries"], tt.ok+tt.failed)
			}
		})
	}
}

func TestStoreChecker_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := NewStoreChecker(store.New(), StoreCheckerConfig{}).Check(ctx)
	if got.Status != StatusUnhealthy {
		t.Fatalf("Status = %v, want unhealthy", got.Status)
	}
}

func TestCircuitChecker(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	c := NewCircuitChecker("", cb)
	if c.Name() != "circuit" {
		t.Errorf("Name() = %q", c.Name())
	}
	if got := c.Check(context.Background()); got.Status != StatusHealthy {
		t.Fatalf("closed circuit: Status = %v", got.Status)
	}

	_ = cb.Execute(context.Background(), func(context.Context) error { return errors.New("boom") })
	got := c.Check(context.Background())
	if got.Status != StatusUnhealthy {
		t.Fatalf("open circuit: Status = %v", got.Status)
	}
	if !errors.Is(got.Error, resilience.ErrCircuitOpen) {
		t.Errorf("Error = %v, want ErrCircuitOpen", got.Error)
	}

	if got := NewCircuitChecker("x", nil).Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("nil breaker: Status = %v", got.Status)
	}
}

func TestAggregator_WorstStatusWins(t *testing.T) {
	agg := NewAggregator(time.Second)
	agg.Register(NewCheckerFunc("a", func(context.Context) Result { return Healthy("ok") }))
	agg.Register(NewCheckerFunc("b", func(context.Context) Result { return Degraded("slow") }))

	results := agg.CheckAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("len(results) = %d", len(results))
	}
	if got := Overall(results); got != StatusDegraded {
		t.Fatalf("Overall = %v, want degraded", got)
	}

	agg.Register(NewCheckerFunc("c", func(context.Context) Result { return Unhealthy("down", ErrCheckFailed) }))
	if got := Overall(agg.CheckAll(context.Background())); got != StatusUnhealthy {
		t.Fatalf("Overall = %v, want unhealthy", got)
	}

	agg.Unregister("c")
	if names := agg.CheckerNames(); len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("CheckerNames = %v", names)
	}
	if got := Overall(nil); got != StatusHealthy {
		t.Errorf("Overall(nil) = %v", got)
	}
}

func TestAggregator_Timeout(t *testing.T) {
	agg := NewAggregator(10 * time.Millisecond)
	agg.Register(NewCheckerFunc("slow", func(ctx context.Context) Result {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return Healthy("late")
	}))

	r, err := agg.Check(context.Background(), "slow")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !errors.Is(r.Error, ErrCheckTimeout) {
		t.Fatalf("Error = %v, want ErrCheckTimeout", r.Error)
	}

	if _, err := agg.Check(context.Background(), "missing"); !errors.Is(err, ErrCheckerNotFound) {
		t.Fatalf("err = %v, want ErrCheckerNotFound", err)
	}
}

func TestHandlers(t *testing.T) {
	agg := NewAggregator(time.Second)
	agg.Register(NewCircuitChecker("origin", nil))
	mux := http.NewServeMux()
	RegisterHandlers(mux, agg)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: code = %d", path, rec.Code)
		}
	}

	agg.Register(NewCheckerFunc("store", func(context.Context) Result {
		return Unhealthy("too many errors", ErrCheckFailed)
	}))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d, want 503", rec.Code)
	}
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "unhealthy" || resp.Checks["store"].Error != ErrCheckFailed.Error() {
		t.Fatalf("resp = %+v", resp)
	}
}
