// FilePath: internal/threshold/threshold.go

// Package threshold classifies sensor readings against configured
// bounds. Pure functions, total over all float inputs.
package threshold

import (
	"math"

	"github.com/ralphtiongco19/mushroom-hub/internal/models"
)

// Status is a qualitative label for a reading
type Status string

const (
	StatusOptimal  Status = "optimal"
	StatusTooCold  Status = "too_cold"
	StatusTooHot   Status = "too_hot"
	StatusTooDry   Status = "too_dry"
	StatusTooHumid Status = "too_humid"
	StatusUnknown  Status = "unknown"
)

// Temperature classifies t against [min,max]. NaN values and inverted
// bounds yield StatusUnknown rather than a misleading label.
func Temperature(t, min, max float64) Status {
	if !valid(t, min, max) {
		return StatusUnknown
	}
	switch {
	case t < min:
		return StatusTooCold
	case t > max:
		return StatusTooHot
	}
	return StatusOptimal
}

// Humidity classifies h against [min,max], symmetric to Temperature
func Humidity(h, min, max float64) Status {
	if !valid(h, min, max) {
		return StatusUnknown
	}
	switch {
	case h < min:
		return StatusTooDry
	case h > max:
		return StatusTooHumid
	}
	return StatusOptimal
}

// Evaluation labels one reading on both axes
type Evaluation struct {
	Temperature Status `json:"temperature"`
	Humidity    Status `json:"humidity"`
}

// Evaluate classifies a reading against the farm's configured bounds.
// A faulted reading (sensor status not OK) is unknown on both axes.
func Evaluate(reading *models.SensorReading, settings *models.Settings) Evaluation {
	if reading == nil || settings == nil || !reading.OK() {
		return Evaluation{Temperature: StatusUnknown, Humidity: StatusUnknown}
	}
	return Evaluation{
		Temperature: Temperature(reading.Temperature, settings.TempMin, settings.TempMax),
		Humidity:    Humidity(reading.Humidity, settings.HumidMin, settings.HumidMax),
	}
}

func valid(v, min, max float64) bool {
	if math.IsNaN(v) || math.IsNaN(min) || math.IsNaN(max) {
		return false
	}
	return min <= max
}
