// FilePath: internal/threshold/threshold_test.go
package threshold

import (
	"math"
	"testing"

	"github.com/ralphtiongco19/mushroom-hub/internal/models"
)

func TestTemperature(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		min     float64
		max     float64
		want    Status
	}{
		{"at lower bound", 20, 20, 30, StatusOptimal},
		{"at upper bound", 30, 20, 30, StatusOptimal},
		{"inside range", 25, 20, 30, StatusOptimal},
		{"just below", 19.9, 20, 30, StatusTooCold},
		{"just above", 30.1, 20, 30, StatusTooHot},
		{"nan value", math.NaN(), 20, 30, StatusUnknown},
		{"nan bound", 25, math.NaN(), 30, StatusUnknown},
		{"inverted bounds", 25, 30, 20, StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Temperature(tt.value, tt.min, tt.max); got != tt.want {
				t.Errorf("Temperature(%v, %v, %v) = %v, want %v", tt.value, tt.min, tt.max, got, tt.want)
			}
		})
	}
}

func TestHumidity(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		min   float64
		max   float64
		want  Status
	}{
		{"at lower bound", 40, 40, 80, StatusOptimal},
		{"at upper bound", 80, 40, 80, StatusOptimal},
		{"too dry", 39.9, 40, 80, StatusTooDry},
		{"too humid", 80.1, 40, 80, StatusTooHumid},
		{"nan value", math.NaN(), 40, 80, StatusUnknown},
		{"inverted bounds", 60, 80, 40, StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Humidity(tt.value, tt.min, tt.max); got != tt.want {
				t.Errorf("Humidity(%v, %v, %v) = %v, want %v", tt.value, tt.min, tt.max, got, tt.want)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	settings := models.DefaultSettings()

	t.Run("nil reading", func(t *testing.T) {
		got := Evaluate(nil, settings)
		if got.Temperature != StatusUnknown || got.Humidity != StatusUnknown {
			t.Errorf("Evaluate(nil) = %+v, want unknown on both axes", got)
		}
	})

	t.Run("faulted reading", func(t *testing.T) {
		reading := &models.SensorReading{Temperature: 25, Humidity: 60, Status: "DHT22 read failed"}
		got := Evaluate(reading, settings)
		if got.Temperature != StatusUnknown || got.Humidity != StatusUnknown {
			t.Errorf("Evaluate(faulted) = %+v, want unknown on both axes", got)
		}
	})

	t.Run("independent axes", func(t *testing.T) {
		reading := &models.SensorReading{Temperature: 15, Humidity: 85, Status: models.ReadingStatusOK}
		got := Evaluate(reading, settings)
		if got.Temperature != StatusTooCold {
			t.Errorf("temperature = %v, want %v", got.Temperature, StatusTooCold)
		}
		if got.Humidity != StatusTooHumid {
			t.Errorf("humidity = %v, want %v", got.Humidity, StatusTooHumid)
		}
	})
}
