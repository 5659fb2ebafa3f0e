package services

import (
	"testing"

	"smartsensors/models"
)

func TestSnapshotStoreDefaultsBeforeIngest(t *testing.T) {
	s := NewSnapshotStore()

	for _, category := range models.SensorCategories {
		reading := s.Latest(category)
		for _, field := range models.Fields(category) {
			if _, ok := reading[field]; !ok {
				t.Fatalf("%s.%s missing from default reading", category, field)
			}
			if v := reading.Float(field); v != 0 {
				t.Fatalf("%s.%s = %v, want 0", category, field, v)
			}
		}
	}
	for _, category := range models.HistoryCategories {
		if h := s.History(category); h == nil || len(h) != 0 {
			t.Fatalf("history of %s should be empty, got %#v", category, h)
		}
	}
	if d := s.Device(); d != models.DefaultDeviceInfo() {
		t.Fatalf("unexpected device info %+v", d)
	}
	if !s.IngestedAt().IsZero() {
		t.Fatalf("IngestedAt should be zero before ingest")
	}
}

func TestSnapshotStoreIngestMergesOverDefaults(t *testing.T) {
	s := NewSnapshotStore()
	s.Ingest(map[string]any{
		"air_quality": map[string]any{"pm25": 42.0, "co2": nil, "extra": "kept"},
		"ze40":        map[string]any{"uart_data_valid": true},
		"mr007":       "not an object",
	})

	aq := s.Latest(models.AirQuality)
	if aq.Float("pm25") != 42 {
		t.Fatalf("pm25 = %v, want 42", aq.Float("pm25"))
	}
	if aq["co2"] != 0.0 {
		t.Fatalf("null field should keep default, got %#v", aq["co2"])
	}
	if aq["extra"] != "kept" {
		t.Fatalf("unknown fields should pass through")
	}
	if aq.Float("humidity") != 0 {
		t.Fatalf("missing field should default to 0")
	}

	if !s.Latest(models.ZE40).Bool("uart_data_valid") {
		t.Fatalf("uart_data_valid should be true")
	}
	if s.Latest(models.ZE40).Bool("analog_data_valid") {
		t.Fatalf("analog_data_valid should default to false")
	}
	if s.Latest(models.MR007).Float("lel_concentration") != 0 {
		t.Fatalf("malformed category should normalize to defaults")
	}
	if s.IngestedAt().IsZero() {
		t.Fatalf("IngestedAt should be set")
	}
}

func TestSnapshotStoreHistoryNormalization(t *testing.T) {
	s := NewSnapshotStore()
	s.Ingest(map[string]any{
		"history": map[string]any{
			"air_quality": []any{
				map[string]any{"time_with_seconds": "10:00:01", "pm25": 10.0},
				"garbage",
			},
			"mr007": map[string]any{"not": "a list"},
		},
	})

	aq := s.History(models.AirQuality)
	if len(aq) != 2 {
		t.Fatalf("history length = %d, want 2", len(aq))
	}
	if aq[1] == nil || len(aq[1]) != 0 {
		t.Fatalf("non-object item should become an empty record, got %#v", aq[1])
	}
	if h := s.History(models.MR007); h == nil || len(h) != 0 {
		t.Fatalf("non-list history should be empty, got %#v", h)
	}
	if h := s.History(models.ZE40); h == nil {
		t.Fatalf("missing history must not be nil")
	}
}

func TestSnapshotStoreReadsAreCopies(t *testing.T) {
	s := NewSnapshotStore()
	s.Ingest(map[string]any{
		"air_quality": map[string]any{"pm25": 5.0},
		"history": map[string]any{
			"air_quality": []any{map[string]any{"pm25": 5.0}},
		},
	})

	reading := s.Latest(models.AirQuality)
	reading["pm25"] = 99.0
	history := s.History(models.AirQuality)
	history[0] = models.HistoryRecord{"pm25": 99.0}

	if s.Latest(models.AirQuality).Float("pm25") != 5 {
		t.Fatalf("Latest must return a copy")
	}
	if s.History(models.AirQuality)[0].Float("pm25") != 5 {
		t.Fatalf("History must return a copy")
	}
}

func TestSnapshotStoreDeviceInfo(t *testing.T) {
	s := NewSnapshotStore()
	s.Ingest(map[string]any{
		"ip_address":   "192.168.4.2",
		"network_mode": "AP",
		"history": map[string]any{
			"device_info": []any{map[string]any{"timestamp": "2024-05-01 12:00:00"}},
		},
	})

	want := models.DeviceInfo{
		IPAddress:   "192.168.4.2",
		NetworkMode: "AP",
		Timestamp:   "2024-05-01 12:00:00",
	}
	if got := s.Device(); got != want {
		t.Fatalf("Device() = %+v, want %+v", got, want)
	}

	s.Ingest(map[string]any{"ip_address": ""})
	if got := s.Device(); got != models.DefaultDeviceInfo() {
		t.Fatalf("empty values should fall back to placeholders, got %+v", got)
	}
}
