package services

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"smartsensors/config"
	"smartsensors/metrics"
	"smartsensors/models"

	"go.uber.org/zap"
)

var pollStates = []string{
	string(models.StateLoading),
	string(models.StateLive),
	string(models.StateDegraded),
}

// Poller starts polling loops that feed a snapshot store per handle
type Poller struct {
	config *config.Config
	diag   *DiagnosticLogger
	logger *zap.Logger
}

// NewPoller creates a new poller
func NewPoller(cfg *config.Config, diag *DiagnosticLogger, logger *zap.Logger) *Poller {
	return &Poller{
		config: cfg,
		diag:   diag,
		logger: logger,
	}
}

// PollHandle owns one polling loop and its state. Stop must be called on
// every exit path; it is the only way to release the loop.
type PollHandle struct {
	component string
	endpoint  string
	fetcher   Fetcher
	interval  time.Duration
	timeout   time.Duration

	diag   *DiagnosticLogger
	logger *zap.Logger
	store  *SnapshotStore
	policy *FallbackPolicy

	seq atomic.Uint64

	mu      sync.Mutex
	active  bool
	applied uint64

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// Start invokes fetcher immediately and then every interval. interval is
// raised to the configured floor.
func (p *Poller) Start(component string, fetcher Fetcher, interval time.Duration) *PollHandle {
	h := &PollHandle{
		component: component,
		endpoint:  endpointOf(fetcher, component),
		fetcher:   fetcher,
		interval:  p.config.ClampInterval(interval),
		timeout:   p.config.RequestTimeout,
		diag:      p.diag,
		logger:    p.logger,
		store:     NewSnapshotStore(),
		policy:    NewFallbackPolicy(),
		active:    true,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	metrics.SetPollState(component, string(models.StateLoading), pollStates)

	p.logger.Info("Polling started",
		zap.String("component", component),
		zap.String("endpoint", h.endpoint),
		zap.Duration("interval", h.interval))

	go h.run()
	return h
}

func endpointOf(fetcher Fetcher, fallback string) string {
	if e, ok := fetcher.(interface{ Endpoint() string }); ok {
		return e.Endpoint()
	}
	return fallback
}

// Component returns the name the handle logs under
func (h *PollHandle) Component() string {
	return h.component
}

// Interval returns the effective polling interval
func (h *PollHandle) Interval() time.Duration {
	return h.interval
}

// Store returns the snapshot store fed by this handle
func (h *PollHandle) Store() *SnapshotStore {
	return h.store
}

// Status returns the current status indicator
func (h *PollHandle) Status() models.Status {
	return h.policy.Status()
}

// Active reports whether Stop has not been called yet
func (h *PollHandle) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// Stop halts future ticks. In-flight fetches are not aborted but their
// results are discarded. Repeated calls are no-ops.
func (h *PollHandle) Stop() {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		h.active = false
		h.mu.Unlock()

		close(h.stopCh)
		<-h.done

		h.logger.Info("Polling stopped", zap.String("component", h.component))
	})
}

func (h *PollHandle) run() {
	defer close(h.done)

	h.tick()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.tick()
		}
	}
}

// tick dispatches one fetch without waiting for it
func (h *PollHandle) tick() {
	seq := h.seq.Add(1)
	h.diag.Go(func() error {
		h.poll(seq)
		return nil
	})
}

func (h *PollHandle) poll(seq uint64) {
	ctx := context.Background()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := h.fetcher.Fetch(ctx)
	if err == nil && (result == nil || result.Payload == nil) {
		err = &FetchError{Endpoint: h.endpoint, Err: ErrNoData}
	}
	elapsed := time.Since(start)

	if !h.apply(seq, result, err, elapsed) {
		return
	}

	if err != nil {
		h.diag.Error(h.component, "Failed to fetch sensor data", err)
		// status 0: the error entry above carries the cause
		h.diag.LogAPICall(h.endpoint, http.MethodGet, 0, elapsed)
		return
	}

	h.diag.LogAPICall(h.endpoint, http.MethodGet, result.StatusCode, elapsed)
	h.diag.Info(h.component, "Sensor data fetched successfully", map[string]any{
		"elapsed_ms": elapsed.Milliseconds(),
	})
}

// apply commits a tick result unless the handle is stopped or a later tick
// has already been applied
func (h *PollHandle) apply(seq uint64, result *FetchResult, err error, elapsed time.Duration) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.active {
		metrics.IncPollDropped(h.component, metrics.DropStopped)
		h.logger.Debug("Discarding result after stop",
			zap.String("component", h.component),
			zap.Uint64("seq", seq))
		return false
	}
	if seq <= h.applied {
		metrics.IncPollDropped(h.component, metrics.DropStale)
		h.logger.Debug("Discarding stale result",
			zap.String("component", h.component),
			zap.Uint64("seq", seq),
			zap.Uint64("applied", h.applied))
		return false
	}
	h.applied = seq

	if err != nil {
		h.policy.Fail(err)
		metrics.ObservePoll(h.component, metrics.ResultError, elapsed)
		metrics.SetPollState(h.component, string(models.StateDegraded), pollStates)
		return true
	}
	if decision := h.policy.Succeed(); decision.ReplaceSnapshot {
		h.store.Ingest(result.Payload)
	}
	metrics.ObservePoll(h.component, metrics.ResultSuccess, elapsed)
	metrics.SetPollState(h.component, string(models.StateLive), pollStates)
	return true
}
