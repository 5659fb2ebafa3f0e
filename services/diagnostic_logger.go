package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"smartsensors/config"
	"smartsensors/metrics"
	"smartsensors/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const escalationTimeout = 10 * time.Second

// DiagnosticLogger keeps a bounded, persisted buffer of diagnostic entries,
// echoes them to the console logger and escalates selected entries to the
// backend log sink. Persistence and escalation failures never reach callers.
type DiagnosticLogger struct {
	console    *zap.Logger
	store      LogStore
	escalator  Escalator
	logContext models.LogContext

	enabled        bool
	sendToBackend  bool
	sendOnlyErrors bool
	capacity       int
	autoClearAfter time.Duration

	mu       sync.Mutex
	buffer   []models.LogEntry
	inflight sync.WaitGroup
}

// NewDiagnosticLogger creates the logger and restores the persisted buffer.
// store and escalator may be nil.
func NewDiagnosticLogger(cfg *config.Config, console *zap.Logger, store LogStore, escalator Escalator) *DiagnosticLogger {
	capacity := cfg.MaxLocalLogs
	if capacity <= 0 {
		capacity = 100
	}
	d := &DiagnosticLogger{
		console:   console,
		store:     store,
		escalator: escalator,
		logContext: models.LogContext{
			URL:   cfg.ClientURL,
			Agent: cfg.ClientAgent,
		},
		enabled:        cfg.LoggingEnabled,
		sendToBackend:  cfg.SendToBackend,
		sendOnlyErrors: cfg.SendOnlyErrors,
		capacity:       capacity,
		autoClearAfter: cfg.AutoClearAfter,
		buffer:         make([]models.LogEntry, 0, capacity),
	}
	d.loadLogs()
	return d
}

// Info logs an informational entry
func (d *DiagnosticLogger) Info(component, message string, data any) {
	entry := d.record(models.LevelInfo, component, message, data, "")
	d.console.Info(message, zap.String("component", component), zap.Any("data", data))
	if d.shouldEscalate(models.LevelInfo) {
		d.escalate(entry)
	}
}

// Warn logs a warning entry
func (d *DiagnosticLogger) Warn(component, message string, data any) {
	entry := d.record(models.LevelWarning, component, message, data, "")
	d.console.Warn(message, zap.String("component", component), zap.Any("data", data))
	if d.shouldEscalate(models.LevelWarning) {
		d.escalate(entry)
	}
}

// Error logs an error entry and always attempts escalation
func (d *DiagnosticLogger) Error(component, message string, err error) {
	stack := zap.StackSkip("", 1).String
	data := map[string]any{"error": nil, "stack": stack}
	if err != nil {
		data["error"] = err.Error()
	}
	entry := d.record(models.LevelError, component, message, data, stack)
	d.console.Error(message, zap.String("component", component), zap.Error(err))
	if d.shouldEscalate(models.LevelError) {
		d.escalate(entry)
	}
}

// LogAPICall records one request to the backend; failures (>= 400) escalate as warnings
func (d *DiagnosticLogger) LogAPICall(endpoint, method string, statusCode int, elapsed time.Duration) {
	ms := elapsed.Milliseconds()
	message := fmt.Sprintf("API %s %s - Status: %d - Time: %dms", method, endpoint, statusCode, ms)
	data := map[string]any{
		"endpoint":     endpoint,
		"method":       method,
		"status":       statusCode,
		"responseTime": ms,
	}
	entry := d.record(models.LevelInfo, "API", message, data, "")
	d.console.Info(message, zap.String("component", "API"))

	if statusCode >= 400 && d.shouldEscalate(models.LevelWarning) {
		entry.Level = models.LevelWarning
		d.escalate(entry)
	}
}

// Action logs an operator action
func (d *DiagnosticLogger) Action(component, action string, details any) {
	message := "User action: " + action
	d.record(models.LevelInfo, component, message, details, "")
	d.console.Info(message, zap.String("component", component), zap.Any("details", details))
}

// GetLogs returns a copy of the buffer, filtered by level when level is set
func (d *DiagnosticLogger) GetLogs(level models.LogLevel) []models.LogEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]models.LogEntry, 0, len(d.buffer))
	for _, entry := range d.buffer {
		if level == "" || entry.Level == level {
			out = append(out, entry)
		}
	}
	return out
}

// Len returns the number of buffered entries
func (d *DiagnosticLogger) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffer)
}

// ClearLogs empties the buffer and the persisted blob
func (d *DiagnosticLogger) ClearLogs() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.buffer = d.buffer[:0]
	if d.store == nil {
		return
	}
	if err := d.store.Clear(); err != nil {
		metrics.IncPersistenceError("clear")
		d.console.Warn("Failed to clear logs from storage", zap.Error(err))
	}
}

// ExportLogs writes the buffer as indented JSON
func (d *DiagnosticLogger) ExportLogs(w io.Writer) error {
	entries := d.GetLogs("")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("failed to export logs: %w", err)
	}
	return nil
}

// ExportFileName returns the download name of an export taken now
func (d *DiagnosticLogger) ExportFileName() string {
	stamp := strings.ReplaceAll(time.Now().UTC().Format("2006-01-02T15:04:05.000Z"), ":", "-")
	return "logs_" + stamp + ".json"
}

// Flush waits for in-flight escalations or until ctx is done
func (d *DiagnosticLogger) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Go runs fn on a new goroutine. A panic or a returned error is reported
// as a Global error entry instead of crashing the process.
func (d *DiagnosticLogger) Go(fn func() error) {
	go func() {
		defer d.capturePanic()
		if err := fn(); err != nil {
			d.Error("Global", "Unhandled goroutine error", err)
		}
	}()
}

func (d *DiagnosticLogger) capturePanic() {
	if r := recover(); r != nil {
		d.Error("Global", "Unhandled panic", panicError(r))
	}
}

// record appends an entry to the buffer and persists the whole buffer
func (d *DiagnosticLogger) record(level models.LogLevel, component, message string, data any, stack string) models.LogEntry {
	entry := models.LogEntry{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Level:      level,
		Component:  component,
		Message:    message,
		Data:       data,
		ErrorStack: stack,
		Context:    d.logContext,
	}
	metrics.IncLogEntry(string(level))

	if !d.enabled {
		return entry
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.buffer = append(d.buffer, entry)
	if over := len(d.buffer) - d.capacity; over > 0 {
		d.buffer = slices.Delete(d.buffer, 0, over)
	}
	d.persistLocked()

	return entry
}

func (d *DiagnosticLogger) persistLocked() {
	if d.store == nil {
		return
	}
	if err := d.store.Save(slices.Clone(d.buffer)); err != nil {
		metrics.IncPersistenceError("save")
		d.console.Warn("Failed to store logs", zap.Error(err))
	}
}

func (d *DiagnosticLogger) loadLogs() {
	if d.store == nil || !d.enabled {
		return
	}
	entries, err := d.store.Load()
	if err != nil {
		metrics.IncPersistenceError("load")
		d.console.Warn("Failed to load logs from storage", zap.Error(err))
		return
	}

	if d.autoClearAfter > 0 {
		cutoff := time.Now().Add(-d.autoClearAfter)
		entries = slices.DeleteFunc(entries, func(e models.LogEntry) bool {
			return e.Timestamp.Before(cutoff)
		})
	}
	if over := len(entries) - d.capacity; over > 0 {
		entries = entries[over:]
	}

	d.mu.Lock()
	d.buffer = append(d.buffer[:0], entries...)
	d.mu.Unlock()

	d.console.Debug("Restored diagnostic logs", zap.Int("count", len(entries)))
}

func (d *DiagnosticLogger) shouldEscalate(level models.LogLevel) bool {
	if !d.sendToBackend || d.escalator == nil {
		return false
	}
	if level == models.LevelError {
		return true
	}
	return !d.sendOnlyErrors
}

// escalate sends the entry on its own goroutine; the outcome is only counted
func (d *DiagnosticLogger) escalate(entry models.LogEntry) {
	sink := d.escalator.Name()
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.IncEscalation(sink, metrics.ResultError)
				d.console.Warn("Log escalation panicked", zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), escalationTimeout)
		defer cancel()

		if err := d.escalator.Escalate(ctx, entry); err != nil {
			metrics.IncEscalation(sink, metrics.ResultError)
			d.console.Warn("Failed to send log to backend",
				zap.String("sink", sink),
				zap.String("entry_id", entry.ID),
				zap.Error(err))
			return
		}
		metrics.IncEscalation(sink, metrics.ResultSuccess)
	}()
}

var (
	globalOnce   sync.Once
	globalLogger atomic.Pointer[DiagnosticLogger]
)

// InstallGlobalCapture makes d the process-wide target for uncaught failures:
// output of the standard library logger (net/http reports recovered handler
// panics there) and panics passed to Recover. Only the first call in a
// process installs anything; the capture is never removed.
func (d *DiagnosticLogger) InstallGlobalCapture() bool {
	installed := false
	globalOnce.Do(func() {
		globalLogger.Store(d)
		stdlog.SetFlags(0)
		stdlog.SetOutput(globalWriter{d: d})
		installed = true
	})
	return installed
}

// Recover reports a panic to the global diagnostic logger and re-panics.
// Use as `defer services.Recover()` at the top of main.
func Recover() {
	r := recover()
	if r == nil {
		return
	}
	if d := globalLogger.Load(); d != nil {
		d.Error("Global", "Unhandled panic", panicError(r))
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = d.Flush(ctx)
		cancel()
	}
	panic(r)
}

type globalWriter struct {
	d *DiagnosticLogger
}

func (w globalWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.d.Error("Global", "Unhandled error", errors.New(msg))
	}
	return len(p), nil
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
