package models

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParseNumber(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want float64
	}{
		{"float", 12.5, 12.5},
		{"int", 7, 7},
		{"json number", json.Number("3.25"), 3.25},
		{"numeric string", "42", 42},
		{"leading numeric prefix", " 12.5ppm", 12.5},
		{"exponent", "1e3", 1000},
		{"garbage string", "n/a", 0},
		{"empty string", "", 0},
		{"nil", nil, 0},
		{"bool", true, 0},
		{"nan", math.NaN(), 0},
		{"inf", math.Inf(1), 0},
		{"object", map[string]any{"x": 1}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseNumber(tc.in); got != tc.want {
				t.Fatalf("ParseNumber(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestHistoryRecordTimeFallbacks(t *testing.T) {
	cases := []struct {
		record HistoryRecord
		want   string
	}{
		{HistoryRecord{"time_with_seconds": "10:00:01", "timestamp": "2025-01-01T10:00:01Z"}, "10:00:01"},
		{HistoryRecord{"time_with_seconds": "", "timestamp": "2025-01-01T10:00:01Z"}, "2025-01-01T10:00:01Z"},
		{HistoryRecord{"timestamp": nil}, DefaultTimeLabel},
		{HistoryRecord{}, DefaultTimeLabel},
	}
	for _, tc := range cases {
		if got := tc.record.Time(); got != tc.want {
			t.Errorf("Time() = %q, want %q", got, tc.want)
		}
	}
}

func TestDefaultReadingIsACopy(t *testing.T) {
	first := DefaultReading(AirQuality)
	first["pm25"] = 99.0

	second := DefaultReading(AirQuality)
	if second.Float("pm25") != 0 {
		t.Fatalf("default reading was mutated through a copy")
	}
	for _, field := range Fields(AirQuality) {
		if _, ok := second[field]; !ok {
			t.Errorf("default air quality reading misses field %q", field)
		}
	}
}

func TestStatusMessageLocalized(t *testing.T) {
	if MessageTimeoutError.Localized() != "زمان انتظار تمام شد" {
		t.Fatalf("unexpected timeout text %q", MessageTimeoutError.Localized())
	}
	if StatusMessage("bogus").Localized() != MessageNetworkError.Localized() {
		t.Fatalf("unknown key should fall back to network error text")
	}
}

func TestLogEntryPayload(t *testing.T) {
	entry := LogEntry{
		Level:     LevelWarning,
		Component: "API",
		Message:   "API GET /data - Status: 503",
		Context:   LogContext{URL: "http://localhost:8080/"},
	}
	body, err := json.Marshal(entry.Payload())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"level":"warning","component":"API","message":"API GET /data - Status: 503","error_stack":null,"url":"http://localhost:8080/"}`
	if string(body) != want {
		t.Fatalf("payload = %s\nwant      %s", body, want)
	}
}
