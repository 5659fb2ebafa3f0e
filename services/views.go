package services

import (
	"fmt"

	"smartsensors/config"
	"smartsensors/models"
)

// ViewSpec describes what one polled view renders
type ViewSpec struct {
	Name       string
	Component  string
	Categories []models.Category
	Device     bool
	// ValidFlags lists boolean data-valid fields shown per category
	ValidFlags map[models.Category][]string
}

var viewSpecs = map[string]ViewSpec{
	config.ViewAirQuality: {
		Name:       config.ViewAirQuality,
		Component:  "AirQualityDashboard",
		Categories: []models.Category{models.AirQuality, models.MR007, models.ME4SO2, models.ZE40},
	},
	config.ViewGasSensors: {
		Name:       config.ViewGasSensors,
		Component:  "GasSensorsPanel",
		Categories: []models.Category{models.MR007, models.ME4SO2, models.ZE40},
		ValidFlags: map[models.Category][]string{
			models.ZE40: {"uart_data_valid", "analog_data_valid"},
		},
	},
	config.ViewDeviceInfo: {
		Name:      config.ViewDeviceInfo,
		Component: "DeviceInfoPanel",
		Device:    true,
	},
}

// LookupView returns the spec of a named view
func LookupView(name string) (ViewSpec, error) {
	spec, ok := viewSpecs[name]
	if !ok {
		return ViewSpec{}, fmt.Errorf("unknown view %q", name)
	}
	return spec, nil
}

// ViewBuilder renders poll handles into view models
type ViewBuilder struct {
	projector  *ChartProjector
	classifier *Classifier
}

// NewViewBuilder creates a new view builder
func NewViewBuilder(projector *ChartProjector, classifier *Classifier) *ViewBuilder {
	return &ViewBuilder{
		projector:  projector,
		classifier: classifier,
	}
}

// Build renders the current snapshot of handle as spec describes
func (b *ViewBuilder) Build(spec ViewSpec, handle *PollHandle) models.ViewModel {
	store := handle.Store()
	vm := models.ViewModel{
		View:      spec.Name,
		Component: spec.Component,
		Status:    handle.Status(),
	}

	for _, category := range spec.Categories {
		reading := store.Latest(category)
		history := store.History(category)

		group := models.SensorGroup{
			Category: category,
			Cards:    make([]models.SensorCard, 0, len(models.Fields(category))),
		}
		for _, flag := range spec.ValidFlags[category] {
			if group.Valid == nil {
				group.Valid = make(map[string]bool)
			}
			group.Valid[flag] = reading.Bool(flag)
		}
		for _, field := range models.Fields(category) {
			value := reading.Float(field)
			group.Cards = append(group.Cards, models.SensorCard{
				Category:       category,
				Field:          field,
				Value:          value,
				Classification: b.classifier.Classify(category, field, value),
				Chart:          b.projector.Project(history, field, b.projector.MaxPoints()),
			})
		}
		vm.Groups = append(vm.Groups, group)
	}

	if spec.Device {
		device := store.Device()
		vm.Device = &device
	}

	return vm
}
