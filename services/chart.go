package services

import (
	"smartsensors/models"
)

// DefaultChartWindow is the number of points shown per sensor chart
const DefaultChartWindow = 10

// ChartProjector turns a newest-first history into a bounded,
// oldest-first sequence of chart points for one field.
type ChartProjector struct {
	maxPoints int
}

// NewChartProjector creates a projector capped at maxPoints
func NewChartProjector(maxPoints int) *ChartProjector {
	if maxPoints <= 0 {
		maxPoints = DefaultChartWindow
	}
	return &ChartProjector{maxPoints: maxPoints}
}

// MaxPoints returns the configured cap
func (p *ChartProjector) MaxPoints() int {
	return p.maxPoints
}

// Project returns min(window, len(history)) points in chronological order.
// window <= 0 or above the cap uses the cap.
func (p *ChartProjector) Project(history []models.HistoryRecord, field string, window int) []models.ChartPoint {
	if window <= 0 || window > p.maxPoints {
		window = p.maxPoints
	}
	if len(history) == 0 {
		return []models.ChartPoint{}
	}

	n := min(window, len(history))
	points := make([]models.ChartPoint, n)
	// history[0] is the newest record; it becomes the last point
	for i := 0; i < n; i++ {
		record := history[n-1-i]
		points[i] = models.ChartPoint{
			Time:  record.Time(),
			Value: record.Float(field),
		}
	}
	return points
}
