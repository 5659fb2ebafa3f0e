package models

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Category identifies one sensor group in the /data payload
type Category string

const (
	AirQuality        Category = "air_quality" // ZPHS01B particulate and gas module
	MR007             Category = "mr007"       // flammable gas, LEL
	ME4SO2            Category = "me4_so2"     // sulfur dioxide
	ZE40              Category = "ze40"        // TVOC
	DeviceInfoHistory Category = "device_info"
)

// SensorCategories lists the categories carrying a current-value object
var SensorCategories = []Category{AirQuality, MR007, ME4SO2, ZE40}

// HistoryCategories lists the categories carrying a history sequence
var HistoryCategories = []Category{AirQuality, MR007, ME4SO2, ZE40, DeviceInfoHistory}

// UnknownPlaceholder is shown when the device did not report a value
const UnknownPlaceholder = "نامشخص"

// DefaultTimeLabel is used for history records without any time field
const DefaultTimeLabel = "00:00:00"

var defaultReadings = map[Category]Reading{
	AirQuality: {
		"pm1": 0.0, "pm25": 0.0, "pm10": 0.0, "co2": 0.0, "voc": 0.0, "ch2o": 0.0,
		"co": 0.0, "o3": 0.0, "no2": 0.0, "temperature": 0.0, "humidity": 0.0,
	},
	MR007: {
		"voltage": 0.0, "rawValue": 0.0, "lel_concentration": 0.0,
	},
	ME4SO2: {
		"voltage": 0.0, "rawValue": 0.0, "current_ua": 0.0, "so2_concentration": 0.0,
	},
	ZE40: {
		"tvoc_ppb": 0.0, "tvoc_ppm": 0.0, "dac_voltage": 0.0, "dac_ppm": 0.0,
		"uart_data_valid": false, "analog_data_valid": false,
	},
}

// Reading is the current-value object of one category
type Reading map[string]any

// DefaultReading returns a fresh copy of the all-zero reading for a category
func DefaultReading(category Category) Reading {
	out := Reading{}
	for k, v := range defaultReadings[category] {
		out[k] = v
	}
	return out
}

// Fields returns the known field names of a category in a stable order
func Fields(category Category) []string {
	switch category {
	case AirQuality:
		return []string{"pm1", "pm25", "pm10", "co2", "voc", "ch2o", "co", "o3", "no2", "temperature", "humidity"}
	case MR007:
		return []string{"voltage", "rawValue", "lel_concentration"}
	case ME4SO2:
		return []string{"voltage", "rawValue", "current_ua", "so2_concentration"}
	case ZE40:
		return []string{"tvoc_ppb", "tvoc_ppm", "dac_voltage", "dac_ppm"}
	}
	return nil
}

// Float returns the numeric value of field, 0 when absent or not a number
func (r Reading) Float(field string) float64 {
	return ParseNumber(r[field])
}

// Bool returns the boolean value of field, false when absent
func (r Reading) Bool(field string) bool {
	b, _ := r[field].(bool)
	return b
}

// Clone returns a shallow copy of the reading
func (r Reading) Clone() Reading {
	out := make(Reading, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// HistoryRecord is one archived reading, delivered newest-first by the backend
type HistoryRecord map[string]any

// Time returns time_with_seconds, else timestamp, else DefaultTimeLabel
func (h HistoryRecord) Time() string {
	for _, key := range []string{"time_with_seconds", "timestamp"} {
		switch v := h[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64, json.Number:
			return fmt.Sprint(v)
		}
	}
	return DefaultTimeLabel
}

// Float returns the numeric value of field, 0 when absent or not a number
func (h HistoryRecord) Float(field string) float64 {
	return ParseNumber(h[field])
}

// ChartPoint is one point of a projected chart window
type ChartPoint struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// DeviceInfo describes the network identity of the sensor device
type DeviceInfo struct {
	IPAddress   string `json:"ip_address"`
	NetworkMode string `json:"network_mode"`
	Timestamp   string `json:"timestamp"`
}

// DefaultDeviceInfo returns the placeholder device info
func DefaultDeviceInfo() DeviceInfo {
	return DeviceInfo{
		IPAddress:   UnknownPlaceholder,
		NetworkMode: UnknownPlaceholder,
		Timestamp:   UnknownPlaceholder,
	}
}

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseNumber coerces a decoded JSON value into a finite float64.
// Strings are parsed by their leading numeric prefix ("12.5ppm" -> 12.5).
// Anything else, including NaN and infinities, becomes 0.
func ParseNumber(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		m := leadingNumber.FindString(strings.TrimSpace(n))
		if m == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
