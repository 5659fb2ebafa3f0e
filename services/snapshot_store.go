package services

import (
	"sync"
	"time"

	"smartsensors/models"
)

// SnapshotStore holds the normalized state of the latest /data payload.
// Every read returns a usable value: missing categories, fields and
// history are replaced by defaults at ingestion time.
type SnapshotStore struct {
	mu         sync.RWMutex
	latest     map[models.Category]models.Reading
	history    map[models.Category][]models.HistoryRecord
	device     models.DeviceInfo
	ingestedAt time.Time
}

// NewSnapshotStore creates a store pre-filled with default values
func NewSnapshotStore() *SnapshotStore {
	s := &SnapshotStore{}
	s.latest, s.history, s.device = normalizePayload(nil)
	return s
}

// Ingest replaces the stored state with the normalized payload
func (s *SnapshotStore) Ingest(payload map[string]any) {
	latest, history, device := normalizePayload(payload)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = latest
	s.history = history
	s.device = device
	s.ingestedAt = time.Now()
}

// Latest returns the current reading of a category
func (s *SnapshotStore) Latest(category models.Category) models.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.latest[category]; ok {
		return r.Clone()
	}
	return models.DefaultReading(category)
}

// History returns the newest-first history of a category, never nil
func (s *SnapshotStore) History(category models.Category) []models.HistoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.history[category]
	out := make([]models.HistoryRecord, len(h))
	copy(out, h)
	return out
}

// Device returns the last reported device info
func (s *SnapshotStore) Device() models.DeviceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.device
}

// IngestedAt returns when the last payload was ingested, zero if never
func (s *SnapshotStore) IngestedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ingestedAt
}

func normalizePayload(payload map[string]any) (map[models.Category]models.Reading, map[models.Category][]models.HistoryRecord, models.DeviceInfo) {
	latest := make(map[models.Category]models.Reading, len(models.SensorCategories))
	for _, category := range models.SensorCategories {
		latest[category] = normalizeReading(category, payload[string(category)])
	}

	rawHistory, _ := payload["history"].(map[string]any)
	history := make(map[models.Category][]models.HistoryRecord, len(models.HistoryCategories))
	for _, category := range models.HistoryCategories {
		history[category] = normalizeHistory(rawHistory[string(category)])
	}

	device := models.DefaultDeviceInfo()
	if v, ok := payload["ip_address"].(string); ok && v != "" {
		device.IPAddress = v
	}
	if v, ok := payload["network_mode"].(string); ok && v != "" {
		device.NetworkMode = v
	}
	if v, ok := payload["timestamp"].(string); ok && v != "" {
		device.Timestamp = v
	} else if records := history[models.DeviceInfoHistory]; len(records) > 0 {
		if ts, ok := records[0]["timestamp"].(string); ok && ts != "" {
			device.Timestamp = ts
		}
	}

	return latest, history, device
}

// normalizeReading merges the reported fields over the category defaults
func normalizeReading(category models.Category, raw any) models.Reading {
	reading := models.DefaultReading(category)
	obj, ok := raw.(map[string]any)
	if !ok {
		return reading
	}
	for k, v := range obj {
		if v == nil {
			continue
		}
		reading[k] = v
	}
	return reading
}

// normalizeHistory keeps the sequence length; non-object items become empty records
func normalizeHistory(raw any) []models.HistoryRecord {
	items, ok := raw.([]any)
	if !ok {
		return []models.HistoryRecord{}
	}
	out := make([]models.HistoryRecord, 0, len(items))
	for _, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			record = map[string]any{}
		}
		out = append(out, models.HistoryRecord(record))
	}
	return out
}
