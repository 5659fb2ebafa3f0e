package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"smartsensors/config"
	"smartsensors/models"

	"go.uber.org/zap"
)

func newTestConfig() *config.Config {
	return &config.Config{
		RequestTimeout:  time.Second,
		MinPollInterval: 10 * time.Millisecond,
		ChartMaxPoints:  10,
		LoggingEnabled:  true,
		SendToBackend:   true,
		SendOnlyErrors:  true,
		MaxLocalLogs:    100,
		AutoClearAfter:  24 * time.Hour,
		ClientURL:       "http://localhost:8080/",
		ClientAgent:     "test-agent",

		PM25Good:          12,
		PM25Moderate:      35,
		PM25Unhealthy:     55,
		PM25VeryUnhealthy: 150,
		PM10Good:          54,
		PM10Moderate:      154,
		PM10Unhealthy:     254,
		PM10VeryUnhealthy: 354,
		SO2Safe:           0.5,
		SO2Warning:        2,
		TVOCSafe:          220,
		TVOCWarning:       660,
		LELSafe:           10,
		LELWarning:        20,
	}
}

type recordingEscalator struct {
	mu      sync.Mutex
	entries []models.LogEntry
	err     error
}

func (r *recordingEscalator) Name() string { return "recording" }

func (r *recordingEscalator) Escalate(_ context.Context, entry models.LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return r.err
}

func (r *recordingEscalator) Entries() []models.LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.LogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

type memoryLogStore struct {
	mu      sync.Mutex
	entries []models.LogEntry
	saves   int
	saveErr error
	loadErr error
}

func (m *memoryLogStore) Load() ([]models.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]models.LogEntry(nil), m.entries...), nil
}

func (m *memoryLogStore) Save(entries []models.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.entries = append([]models.LogEntry(nil), entries...)
	return nil
}

func (m *memoryLogStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	return nil
}

var errStorageFull = errors.New("quota exceeded")

func newTestLogger(t *testing.T, cfg *config.Config, store LogStore, escalator Escalator) *DiagnosticLogger {
	t.Helper()
	return NewDiagnosticLogger(cfg, zap.NewNop(), store, escalator)
}

func flush(t *testing.T, d *DiagnosticLogger) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
