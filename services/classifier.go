package services

import (
	"smartsensors/config"
	"smartsensors/models"
)

// Classification levels
const (
	LevelGood          = "good"
	LevelModerate      = "moderate"
	LevelUnhealthy     = "unhealthy"
	LevelVeryUnhealthy = "very_unhealthy"
	LevelHazardous     = "hazardous"

	LevelSafe    = "safe"
	LevelWarning = "warning"
	LevelDanger  = "danger"
)

var airQualityBands = []models.Classification{
	{Level: LevelGood, Label: "خوب", Color: "#00e400"},
	{Level: LevelModerate, Label: "متوسط", Color: "#ffff00"},
	{Level: LevelUnhealthy, Label: "ناسالم", Color: "#ff7e00"},
	{Level: LevelVeryUnhealthy, Label: "بسیار ناسالم", Color: "#ff0000"},
	{Level: LevelHazardous, Label: "خطرناک", Color: "#8f3f97"},
}

var gasBands = []models.Classification{
	{Level: LevelSafe, Label: "ایمن", Color: "#00e400"},
	{Level: LevelWarning, Label: "هشدار", Color: "#ff7e00"},
	{Level: LevelDanger, Label: "خطر", Color: "#ff0000"},
}

// Classifier maps sensor values to threshold bands
type Classifier struct {
	limits map[models.Category]map[string][]float64
}

// NewClassifier creates a classifier from the configured thresholds
func NewClassifier(cfg *config.Config) *Classifier {
	return &Classifier{
		limits: map[models.Category]map[string][]float64{
			models.AirQuality: {
				"pm25": {cfg.PM25Good, cfg.PM25Moderate, cfg.PM25Unhealthy, cfg.PM25VeryUnhealthy},
				"pm10": {cfg.PM10Good, cfg.PM10Moderate, cfg.PM10Unhealthy, cfg.PM10VeryUnhealthy},
			},
			models.ME4SO2: {
				"so2_concentration": {cfg.SO2Safe, cfg.SO2Warning},
			},
			models.ZE40: {
				"tvoc_ppb": {cfg.TVOCSafe, cfg.TVOCWarning},
			},
			models.MR007: {
				"lel_concentration": {cfg.LELSafe, cfg.LELWarning},
			},
		},
	}
}

// Classify returns the band of value, or nil if field has no thresholds.
// Upper limits are inclusive.
func (c *Classifier) Classify(category models.Category, field string, value float64) *models.Classification {
	limits, ok := c.limits[category][field]
	if !ok {
		return nil
	}

	bands := gasBands
	if category == models.AirQuality {
		bands = airQualityBands
	}

	for i, limit := range limits {
		if value <= limit {
			band := bands[i]
			return &band
		}
	}
	band := bands[len(limits)]
	return &band
}
