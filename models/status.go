package models

import (
	"time"
)

// PollState represents the display state of one polled view
type PollState string

const (
	StateLoading  PollState = "loading"
	StateLive     PollState = "live"
	StateDegraded PollState = "degraded"
)

// StatusMessage is a key into the localized status message table
type StatusMessage string

const (
	MessageLoading      StatusMessage = "loading"
	MessageNetworkError StatusMessage = "network_error"
	MessageTimeoutError StatusMessage = "timeout_error"
	MessageServerError  StatusMessage = "server_error"
	MessageNoData       StatusMessage = "no_data"
)

var statusMessages = map[StatusMessage]string{
	MessageLoading:      "در حال بارگذاری...",
	MessageNetworkError: "خطا در اتصال به سرور",
	MessageTimeoutError: "زمان انتظار تمام شد",
	MessageServerError:  "خطای سرور",
	MessageNoData:       "داده‌ای دریافت نشد",
}

// Localized returns the user facing text for a message key
func (m StatusMessage) Localized() string {
	if text, ok := statusMessages[m]; ok {
		return text
	}
	return statusMessages[MessageNetworkError]
}

// Status is the three-state indicator shown next to a view
type Status struct {
	State     PollState     `json:"state"`
	MessageID StatusMessage `json:"message_id,omitempty"`
	Message   string        `json:"message,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	Since     time.Time     `json:"since"`
	UpdatedAt time.Time     `json:"updated_at"`
}
