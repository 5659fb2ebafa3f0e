package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"smartsensors/config"
	"smartsensors/metrics"
	"smartsensors/models"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func payloadWithPM25(v float64) map[string]any {
	return map[string]any{
		"air_quality": map[string]any{"pm25": v},
		"history": map[string]any{
			"air_quality": []any{map[string]any{"time_with_seconds": "10:00:00", "pm25": v}},
		},
	}
}

func TestPollerKeepsSnapshotOnFailure(t *testing.T) {
	cfg := newTestConfig()
	esc := &recordingEscalator{}
	diag := newTestLogger(t, cfg, nil, esc)

	var calls atomic.Int32
	fetcher := FetchFunc(func(ctx context.Context) (*FetchResult, error) {
		if calls.Add(1) == 1 {
			return &FetchResult{Payload: payloadWithPM25(42), StatusCode: http.StatusOK}, nil
		}
		return nil, &FetchError{Endpoint: "test", Err: errors.New("connection refused")}
	})

	h := NewPoller(cfg, diag, zap.NewNop()).Start("AirQualityDashboard", fetcher, time.Hour)
	defer h.Stop()

	waitFor(t, "live state", func() bool { return h.Status().State == models.StateLive })

	h.tick()
	waitFor(t, "degraded state", func() bool { return h.Status().State == models.StateDegraded })
	waitFor(t, "error entry", func() bool { return len(diag.GetLogs(models.LevelError)) == 1 })
	h.Stop()
	flush(t, diag)

	if got := h.Store().Latest(models.AirQuality).Float("pm25"); got != 42 {
		t.Fatalf("displayed pm25 = %v, want 42", got)
	}
	if got := h.Status().MessageID; got != models.MessageNetworkError {
		t.Fatalf("status message = %s, want network_error", got)
	}

	errs := diag.GetLogs(models.LevelError)
	if errs[0].Component != "AirQualityDashboard" {
		t.Fatalf("unexpected error entry %+v", errs[0])
	}
	if sent := esc.Entries(); len(sent) != 1 || sent[0].Level != models.LevelError {
		t.Fatalf("expected exactly one error escalation, got %+v", sent)
	}
}

func TestPollerStopIsIdempotent(t *testing.T) {
	cfg := newTestConfig()
	fetcher := FetchFunc(func(ctx context.Context) (*FetchResult, error) {
		return &FetchResult{Payload: payloadWithPM25(1), StatusCode: http.StatusOK}, nil
	})

	h := NewPoller(cfg, newTestLogger(t, cfg, nil, nil), zap.NewNop()).Start("C", fetcher, time.Hour)
	h.Stop()
	h.Stop()

	if h.Active() {
		t.Fatalf("handle still active after stop")
	}
}

func TestPollerIgnoresResultsAfterStop(t *testing.T) {
	cfg := newTestConfig()
	started := make(chan struct{})
	release := make(chan struct{})
	returned := make(chan struct{})
	fetcher := FetchFunc(func(ctx context.Context) (*FetchResult, error) {
		close(started)
		<-release
		defer close(returned)
		return &FetchResult{Payload: payloadWithPM25(99), StatusCode: http.StatusOK}, nil
	})

	diag := newTestLogger(t, cfg, nil, nil)
	h := NewPoller(cfg, diag, zap.NewNop()).Start("C", fetcher, time.Hour)

	<-started
	h.Stop()
	close(release)
	<-returned
	time.Sleep(20 * time.Millisecond)

	if got := h.Status().State; got != models.StateLoading {
		t.Fatalf("state changed after stop: %s", got)
	}
	if !h.Store().IngestedAt().IsZero() {
		t.Fatalf("snapshot mutated after stop")
	}
	if diag.Len() != 0 {
		t.Fatalf("late result should not be logged, got %d entries", diag.Len())
	}
}

func TestPollerDropsStaleResponses(t *testing.T) {
	cfg := newTestConfig()
	release := make(chan struct{})
	firstDone := make(chan struct{})
	var calls atomic.Int32
	fetcher := FetchFunc(func(ctx context.Context) (*FetchResult, error) {
		if calls.Add(1) == 1 {
			defer close(firstDone)
			<-release
			return &FetchResult{Payload: payloadWithPM25(1), StatusCode: http.StatusOK}, nil
		}
		return &FetchResult{Payload: payloadWithPM25(2), StatusCode: http.StatusOK}, nil
	})

	h := NewPoller(cfg, newTestLogger(t, cfg, nil, nil), zap.NewNop()).Start("C", fetcher, time.Hour)
	defer h.Stop()

	waitFor(t, "first fetch in flight", func() bool { return calls.Load() == 1 })
	h.tick()
	waitFor(t, "second tick applied", func() bool {
		return h.Store().Latest(models.AirQuality).Float("pm25") == 2
	})

	close(release)
	<-firstDone
	time.Sleep(20 * time.Millisecond)

	if got := h.Store().Latest(models.AirQuality).Float("pm25"); got != 2 {
		t.Fatalf("stale response applied: pm25 = %v", got)
	}
}

func TestPollerClampsInterval(t *testing.T) {
	cfg := newTestConfig()
	cfg.MinPollInterval = time.Second
	fetcher := FetchFunc(func(ctx context.Context) (*FetchResult, error) {
		return &FetchResult{Payload: payloadWithPM25(1), StatusCode: http.StatusOK}, nil
	})

	h := NewPoller(cfg, newTestLogger(t, cfg, nil, nil), zap.NewNop()).Start("C", fetcher, time.Millisecond)
	defer h.Stop()

	if h.Interval() != time.Second {
		t.Fatalf("interval = %s, want 1s", h.Interval())
	}
}

func TestPollerAgainstHTTPBackend(t *testing.T) {
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"air_quality":{"pm25":"17.5"},"ip_address":"10.0.0.7"}`))
	}))
	defer server.Close()

	cfg := newTestConfig()
	diag := newTestLogger(t, cfg, nil, nil)
	fetcher := NewHTTPFetcher(zap.NewNop(), server.URL+"/data", time.Second)

	h := NewPoller(cfg, diag, zap.NewNop()).Start("AirQualityDashboard", fetcher, time.Hour)
	defer h.Stop()

	waitFor(t, "live state", func() bool { return h.Status().State == models.StateLive })
	if got := h.Store().Latest(models.AirQuality).Float("pm25"); got != 17.5 {
		t.Fatalf("pm25 = %v, want 17.5", got)
	}
	if got := h.Store().Device().IPAddress; got != "10.0.0.7" {
		t.Fatalf("ip = %q", got)
	}

	fail.Store(true)
	h.tick()
	waitFor(t, "degraded state", func() bool { return h.Status().State == models.StateDegraded })
	if got := h.Status().MessageID; got != models.MessageServerError {
		t.Fatalf("status message = %s, want server_error", got)
	}

	waitFor(t, "api log entries", func() bool {
		var ok200, okFailure bool
		for _, entry := range diag.GetLogs(models.LevelInfo) {
			if entry.Component != "API" || !strings.Contains(entry.Message, server.URL+"/data") {
				continue
			}
			ok200 = ok200 || strings.Contains(entry.Message, "Status: 200")
			okFailure = okFailure || strings.Contains(entry.Message, "Status: 0")
		}
		return ok200 && okFailure
	})
}

func TestPollerServerErrorEscalatesOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := newTestConfig()
	cfg.SendOnlyErrors = false
	esc := &recordingEscalator{}
	diag := newTestLogger(t, cfg, nil, esc)
	fetcher := NewHTTPFetcher(zap.NewNop(), server.URL+"/data", time.Second)

	h := NewPoller(cfg, diag, zap.NewNop()).Start("AirQualityDashboard", fetcher, time.Hour)
	waitFor(t, "degraded state", func() bool { return h.Status().State == models.StateDegraded })
	waitFor(t, "api entry", func() bool { return len(diag.GetLogs(models.LevelInfo)) == 1 })
	h.Stop()
	flush(t, diag)

	api := diag.GetLogs(models.LevelInfo)[0]
	if api.Component != "API" || !strings.Contains(api.Message, "Status: 0") {
		t.Fatalf("unexpected api entry %+v", api)
	}
	sent := esc.Entries()
	if len(sent) != 1 || sent[0].Level != models.LevelError {
		t.Fatalf("expected exactly one error escalation, got %+v", sent)
	}
}

func TestPollerWithoutIntervalFloor(t *testing.T) {
	cfg := newTestConfig()
	cfg.MinPollInterval = 0
	fetcher := FetchFunc(func(ctx context.Context) (*FetchResult, error) {
		return &FetchResult{Payload: payloadWithPM25(1), StatusCode: http.StatusOK}, nil
	})

	h := NewPoller(cfg, newTestLogger(t, cfg, nil, nil), zap.NewNop()).Start("C", fetcher, 0)
	waitFor(t, "live state", func() bool { return h.Status().State == models.StateLive })
	h.Stop()

	if h.Interval() != config.DefaultMinPollInterval {
		t.Fatalf("interval = %s, want %s", h.Interval(), config.DefaultMinPollInterval)
	}
}

func pollStateGauge(t *testing.T, view string) map[string]float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "smartsensors_poll_state" {
			continue
		}
		for _, m := range family.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["view"] == view {
				out[labels["state"]] = m.GetGauge().GetValue()
			}
		}
	}
	return out
}

func TestPollerStateGaugeFollowsAppliedResult(t *testing.T) {
	metrics.Init()

	cfg := newTestConfig()
	release := make(chan struct{})
	firstDone := make(chan struct{})
	var calls atomic.Int32
	fetcher := FetchFunc(func(ctx context.Context) (*FetchResult, error) {
		if calls.Add(1) == 1 {
			defer close(firstDone)
			<-release
			return nil, &FetchError{Endpoint: "test", Err: errors.New("connection refused")}
		}
		return &FetchResult{Payload: payloadWithPM25(2), StatusCode: http.StatusOK}, nil
	})

	h := NewPoller(cfg, newTestLogger(t, cfg, nil, nil), zap.NewNop()).Start("GaugeOrdering", fetcher, time.Hour)
	defer h.Stop()

	waitFor(t, "first fetch in flight", func() bool { return calls.Load() == 1 })
	h.tick()
	waitFor(t, "second tick applied", func() bool { return h.Status().State == models.StateLive })

	close(release)
	<-firstDone
	time.Sleep(20 * time.Millisecond)

	if got := h.Status().State; got != models.StateLive {
		t.Fatalf("stale failure changed state to %s", got)
	}
	gauge := pollStateGauge(t, "GaugeOrdering")
	if gauge[string(models.StateLive)] != 1 || gauge[string(models.StateDegraded)] != 0 {
		t.Fatalf("gauge disagrees with status: %v", gauge)
	}
}
