package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"smartsensors/models"

	"go.uber.org/zap"
)

// Escalator forwards one diagnostic entry to a remote log sink
type Escalator interface {
	Name() string
	Escalate(ctx context.Context, entry models.LogEntry) error
}

// HTTPEscalator POSTs entries to the backend frontend-log endpoint
type HTTPEscalator struct {
	logger     *zap.Logger
	url        string
	httpClient *http.Client
}

// NewHTTPEscalator creates a new HTTP log escalator
func NewHTTPEscalator(logger *zap.Logger, url string) *HTTPEscalator {
	return &HTTPEscalator{
		logger: logger,
		url:    url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (h *HTTPEscalator) Name() string { return "http" }

// Escalate sends the entry as {level, component, message, error_stack, url}
func (h *HTTPEscalator) Escalate(ctx context.Context, entry models.LogEntry) error {
	jsonData, err := json.Marshal(entry.Payload())
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "SmartSensors-Client/1.0")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		h.logger.Debug("Log escalated",
			zap.String("component", entry.Component),
			zap.String("level", string(entry.Level)),
			zap.Int("status_code", resp.StatusCode))
		return nil
	}

	return fmt.Errorf("log sink returned error: %s", resp.Status)
}

// MultiEscalator fans one escalation out to several sinks
type MultiEscalator struct {
	escalators []Escalator
}

// NewMultiEscalator constructs a MultiEscalator, skipping nil sinks
func NewMultiEscalator(escalators ...Escalator) *MultiEscalator {
	m := &MultiEscalator{}
	for _, e := range escalators {
		if e != nil {
			m.escalators = append(m.escalators, e)
		}
	}
	return m
}

// Len returns the number of configured sinks
func (m *MultiEscalator) Len() int {
	return len(m.escalators)
}

func (m *MultiEscalator) Name() string {
	names := make([]string, 0, len(m.escalators))
	for _, e := range m.escalators {
		names = append(names, e.Name())
	}
	return strings.Join(names, "+")
}

// Escalate forwards to every sink and joins their errors
func (m *MultiEscalator) Escalate(ctx context.Context, entry models.LogEntry) error {
	var errs []error
	for _, e := range m.escalators {
		if err := e.Escalate(ctx, entry); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
		}
	}
	return errors.Join(errs...)
}
