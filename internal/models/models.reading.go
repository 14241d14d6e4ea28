// FilePath: internal/models/models.reading.go
package models

import "time"

// ReadingStatusOK marks a healthy sensor sample; anything else is the
// device's sensor-fault string (e.g. "DHT22 read failed").
const ReadingStatusOK = "OK"

// SensorReading is a single temperature/humidity sample. Append-only,
// written by the device, read by the hub.
type SensorReading struct {
	ID          string    `json:"id" db:"id"`
	DeviceID    string    `json:"device_id" db:"device_id"`
	Temperature float64   `json:"temperature" db:"temperature"`
	Humidity    float64   `json:"humidity" db:"humidity"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// OK returns true when the sample carries valid sensor values
func (r *SensorReading) OK() bool {
	return r.Status == ReadingStatusOK
}

// StatsSummary aggregates one measured quantity over a window
type StatsSummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// DailyStats holds today's aggregate over OK readings. Computed on
// demand, never persisted.
type DailyStats struct {
	Day         time.Time    `json:"day"`
	Temperature StatsSummary `json:"temperature"`
	Humidity    StatsSummary `json:"humidity"`
	Count       int          `json:"count"`
}
