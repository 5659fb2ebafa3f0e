package services

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"smartsensors/models"
)

// Decision tells the poller what to do with the displayed snapshot
type Decision struct {
	ReplaceSnapshot bool
}

// FallbackPolicy tracks the loading/live/degraded state of one view.
// A failure never clears the snapshot; it only changes the status shown
// next to the last known good values.
type FallbackPolicy struct {
	mu     sync.RWMutex
	status models.Status
}

// NewFallbackPolicy creates a policy in the Loading state
func NewFallbackPolicy() *FallbackPolicy {
	now := time.Now()
	return &FallbackPolicy{
		status: models.Status{
			State:     models.StateLoading,
			MessageID: models.MessageLoading,
			Message:   models.MessageLoading.Localized(),
			Since:     now,
			UpdatedAt: now,
		},
	}
}

// Succeed records a successful fetch
func (p *FallbackPolicy) Succeed() Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if p.status.State != models.StateLive {
		p.status.Since = now
	}
	p.status.State = models.StateLive
	p.status.MessageID = ""
	p.status.Message = ""
	p.status.Detail = ""
	p.status.UpdatedAt = now

	return Decision{ReplaceSnapshot: true}
}

// Fail records a failed fetch and keeps the snapshot
func (p *FallbackPolicy) Fail(err error) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if p.status.State != models.StateDegraded {
		p.status.Since = now
	}
	msg := classifyFetchError(err)
	p.status.State = models.StateDegraded
	p.status.MessageID = msg
	p.status.Message = msg.Localized()
	p.status.Detail = ""
	if err != nil {
		p.status.Detail = err.Error()
	}
	p.status.UpdatedAt = now

	return Decision{ReplaceSnapshot: false}
}

// Status returns the current status indicator
func (p *FallbackPolicy) Status() models.Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func classifyFetchError(err error) models.StatusMessage {
	if errors.Is(err, ErrNoData) {
		return models.MessageNoData
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.MessageTimeoutError
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.MessageTimeoutError
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) && fetchErr.StatusCode >= 400 {
		return models.MessageServerError
	}
	return models.MessageNetworkError
}
