// FilePath: internal/models/models.device.go
package models

import "time"

// DeviceStatus is the device's heartbeat row: liveness, not command
// outcome. Upserted by the device, read-only to the hub.
type DeviceStatus struct {
	DeviceID  string    `json:"device_id" db:"device_id"`
	LastSeen  time.Time `json:"last_seen" db:"last_seen"`
	Detail    string    `json:"detail" db:"detail"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// OnlineStatus derives a presence label from the heartbeat age
func (d *DeviceStatus) OnlineStatus() string {
	return OnlineStatusAt(d.LastSeen, time.Now())
}

// OnlineStatusAt is the clock-injectable form of OnlineStatus
func OnlineStatusAt(lastSeen, now time.Time) string {
	sinceLastSeen := now.Sub(lastSeen)

	switch {
	case sinceLastSeen < 5*time.Minute:
		return "online"
	case sinceLastSeen < 15*time.Minute:
		return "away"
	default:
		return "offline"
	}
}
