// FilePath: internal/models/models.settings.go
package models

import "time"

// SettingsID is the fixed row id of the settings singleton
const SettingsID = 1

// Settings is the singleton farm configuration. Version is an
// optimistic-concurrency token: a save carrying a stale version is
// rejected instead of silently overwriting a concurrent save.
//
// AutoMistEnabled absorbs the legacy mist_control.auto_state field;
// this row is the single source of truth for auto-mist.
type Settings struct {
	ID              int64     `json:"id" db:"id"`
	FarmName        string    `json:"farm_name" db:"farm_name"`
	Location        string    `json:"location" db:"location"`
	DeviceID        string    `json:"device_id" db:"device_id"`
	TempMin         float64   `json:"temp_min" db:"temp_min"`
	TempMax         float64   `json:"temp_max" db:"temp_max"`
	HumidMin        float64   `json:"humid_min" db:"humid_min"`
	HumidMax        float64   `json:"humid_max" db:"humid_max"`
	HumidTarget     float64   `json:"humid_target" db:"humid_target"`
	MistDuration    int       `json:"mist_duration" db:"mist_duration"`
	MistCooldown    int       `json:"mist_cooldown" db:"mist_cooldown"`
	AutoMistEnabled bool      `json:"auto_mist_enabled" db:"auto_mist_enabled"`
	AlertsEnabled   bool      `json:"alerts_enabled" db:"alerts_enabled"`
	SoundEnabled    bool      `json:"sound_enabled" db:"sound_enabled"`
	CriticalOnly    bool      `json:"critical_only" db:"critical_only"`
	TempUnit        string    `json:"temp_unit" db:"temp_unit"`
	DarkMode        bool      `json:"dark_mode" db:"dark_mode"`
	Version         int64     `json:"version" db:"version"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultSettings returns the initial singleton row
func DefaultSettings() *Settings {
	return &Settings{
		ID:              SettingsID,
		FarmName:        "My Mushroom Farm",
		Location:        "Living Room",
		DeviceID:        "esp32-main",
		TempMin:         20,
		TempMax:         30,
		HumidMin:        40,
		HumidMax:        80,
		HumidTarget:     60,
		MistDuration:    30,
		MistCooldown:    300,
		AutoMistEnabled: true,
		AlertsEnabled:   true,
		SoundEnabled:    true,
		TempUnit:        "C",
	}
}

// DevicePayload is the subset of settings the device consumes,
// mirrored into an UPDATE_SETTINGS command after every save.
func (s *Settings) DevicePayload() JSON {
	return JSON{
		"temp_min":           s.TempMin,
		"temp_max":           s.TempMax,
		"humid_min":          s.HumidMin,
		"humid_max":          s.HumidMax,
		"humid_target":       s.HumidTarget,
		"auto_mist_enabled":  s.AutoMistEnabled,
		"auto_mist_interval": s.MistCooldown,
		"mist_duration":      s.MistDuration,
	}
}
