package models

// Classification is the threshold band of a single sensor value
type Classification struct {
	Level string `json:"level"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// SensorCard is one field of a view with its current value and chart window
type SensorCard struct {
	Category       Category        `json:"category"`
	Field          string          `json:"field"`
	Value          float64         `json:"value"`
	Classification *Classification `json:"classification,omitempty"`
	Chart          []ChartPoint    `json:"chart"`
}

// SensorGroup collects the cards of one category
type SensorGroup struct {
	Category Category        `json:"category"`
	Valid    map[string]bool `json:"valid,omitempty"`
	Cards    []SensorCard    `json:"cards"`
}

// ViewModel is the display-ready snapshot of one polled view
type ViewModel struct {
	View      string        `json:"view"`
	Component string        `json:"component"`
	Status    Status        `json:"status"`
	Groups    []SensorGroup `json:"groups,omitempty"`
	Device    *DeviceInfo   `json:"device,omitempty"`
}
