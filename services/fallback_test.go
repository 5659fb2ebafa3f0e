package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"smartsensors/models"
)

func TestFallbackPolicyTransitions(t *testing.T) {
	p := NewFallbackPolicy()
	if got := p.Status().State; got != models.StateLoading {
		t.Fatalf("initial state = %s, want loading", got)
	}

	if d := p.Succeed(); !d.ReplaceSnapshot {
		t.Fatalf("success must replace the snapshot")
	}
	if got := p.Status(); got.State != models.StateLive || got.Message != "" {
		t.Fatalf("after success: %+v", got)
	}

	if d := p.Fail(errors.New("boom")); d.ReplaceSnapshot {
		t.Fatalf("failure must keep the snapshot")
	}
	degraded := p.Status()
	if degraded.State != models.StateDegraded || degraded.Detail != "boom" {
		t.Fatalf("after failure: %+v", degraded)
	}

	p.Fail(errors.New("boom again"))
	if got := p.Status(); got.Since != degraded.Since {
		t.Fatalf("repeated failure should not reset Since")
	}

	p.Succeed()
	if got := p.Status().State; got != models.StateLive {
		t.Fatalf("recovery state = %s, want live", got)
	}
}

func TestClassifyFetchError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want models.StatusMessage
	}{
		{"no data", &FetchError{Endpoint: "x", Err: ErrNoData}, models.MessageNoData},
		{"deadline", &FetchError{Endpoint: "x", Err: context.DeadlineExceeded}, models.MessageTimeoutError},
		{"server", &FetchError{Endpoint: "x", StatusCode: 503, Err: errors.New("unavailable")}, models.MessageServerError},
		{"transport", &FetchError{Endpoint: "x", Err: errors.New("connection refused")}, models.MessageNetworkError},
		{"wrapped", fmt.Errorf("tick: %w", &FetchError{StatusCode: 500}), models.MessageServerError},
		{"plain", errors.New("unknown"), models.MessageNetworkError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyFetchError(tc.err); got != tc.want {
				t.Fatalf("classifyFetchError() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestFallbackPolicyLocalizedMessage(t *testing.T) {
	p := NewFallbackPolicy()
	p.Fail(&FetchError{StatusCode: 500})
	got := p.Status()
	if got.MessageID != models.MessageServerError || got.Message != models.MessageServerError.Localized() {
		t.Fatalf("unexpected status %+v", got)
	}
}
