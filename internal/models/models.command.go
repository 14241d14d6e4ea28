// FilePath: internal/models/models.command.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// JSON is a wrapper around map[string]interface{} for database storage
type JSON map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface
func (j *JSON) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, &j)
}

// CommandKind identifies what the device is asked to do
type CommandKind string

const (
	CommandUpdateSettings  CommandKind = "UPDATE_SETTINGS"
	CommandManualMist      CommandKind = "MANUAL_MIST"
	CommandToggleAutoMist  CommandKind = "TOGGLE_AUTO_MIST"
	CommandCalibrateSensor CommandKind = "CALIBRATE_SENSOR"
	CommandReboot          CommandKind = "REBOOT"
)

// Known returns true for the enumerated command kinds
func (k CommandKind) Known() bool {
	switch k {
	case CommandUpdateSettings, CommandManualMist, CommandToggleAutoMist,
		CommandCalibrateSensor, CommandReboot:
		return true
	}
	return false
}

// CommandStatus tracks command execution progress.
// Transitions are monotonic: pending -> in_progress -> {completed, failed}.
type CommandStatus string

const (
	StatusPending    CommandStatus = "pending"
	StatusInProgress CommandStatus = "in_progress"
	StatusCompleted  CommandStatus = "completed"
	StatusFailed     CommandStatus = "failed"
)

// Terminal returns true once a command can no longer change state
func (s CommandStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo enforces the command state machine
func (s CommandStatus) CanTransitionTo(next CommandStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusCompleted || next == StatusFailed
	case StatusInProgress:
		return next == StatusCompleted || next == StatusFailed
	}
	return false
}

// TransitionSources lists the statuses a command may hold immediately
// before moving to the given one. Used for conditional updates so a
// terminal row can never be resurrected.
func TransitionSources(next CommandStatus) []CommandStatus {
	sources := []CommandStatus{}
	for _, s := range []CommandStatus{StatusPending, StatusInProgress, StatusCompleted, StatusFailed} {
		if s.CanTransitionTo(next) {
			sources = append(sources, s)
		}
	}
	return sources
}

// Command is a user-initiated instruction queued for asynchronous
// execution by the device. Rows are created by the hub and mutated only
// by device-reported status updates; they are never deleted by the app.
type Command struct {
	ID             string        `json:"id" db:"id"`
	DeviceID       string        `json:"device_id" db:"device_id"`
	Kind           CommandKind   `json:"command_type" db:"command_type"`
	Payload        JSON          `json:"command_data" db:"command_data"`
	Status         CommandStatus `json:"status" db:"status"`
	IdempotencyKey string        `json:"idempotency_key,omitempty" db:"idempotency_key"`
	ErrorDetail    string        `json:"error_detail,omitempty" db:"error_detail"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// CommandStatusUpdate is what a device publishes after working a command
type CommandStatusUpdate struct {
	CommandID string        `json:"command_id"`
	DeviceID  string        `json:"device_id"`
	Status    CommandStatus `json:"status"`
	Detail    string        `json:"detail,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
