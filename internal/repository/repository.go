// FilePath: internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ralphtiongco19/mushroom-hub/internal/database"
	"github.com/ralphtiongco19/mushroom-hub/internal/models"
)

var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicate indicates that a resource already exists
	ErrDuplicate = errors.New("resource already exists")
	// ErrInvalidInput indicates that the input data is invalid
	ErrInvalidInput = errors.New("invalid input")
	// ErrStaleVersion indicates an optimistic-concurrency conflict on the settings row
	ErrStaleVersion = errors.New("stale settings version")
	// ErrInvalidTransition indicates a command status update that would
	// violate the monotonic state machine
	ErrInvalidTransition = errors.New("invalid command status transition")
)

// CommandRepository defines the interface for the device command queue
type CommandRepository interface {
	database.Repository
	Create(ctx context.Context, cmd *models.Command) error
	Get(ctx context.Context, id string) (*models.Command, error)
	GetByIdempotencyKey(ctx context.Context, deviceID, key string) (*models.Command, error)
	// UpdateStatus applies a device-reported transition. It fails with
	// ErrInvalidTransition when the stored status cannot move to next.
	UpdateStatus(ctx context.Context, id string, next models.CommandStatus, detail string, at time.Time) error
	ListByDevice(ctx context.Context, deviceID string, offset, limit int) ([]*models.Command, error)
	ListPending(ctx context.Context, deviceID string) ([]*models.Command, error)
	ListStuckPending(ctx context.Context, olderThan time.Time) ([]*models.Command, error)
}

// ReadingRepository defines the interface for sensor samples
type ReadingRepository interface {
	database.Repository
	Insert(ctx context.Context, reading *models.SensorReading) error
	Latest(ctx context.Context, deviceID string) (*models.SensorReading, error)
	Range(ctx context.Context, deviceID string, start, end time.Time) ([]models.SensorReading, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// SettingsRepository defines the interface for the settings singleton
type SettingsRepository interface {
	database.Repository
	Get(ctx context.Context) (*models.Settings, error)
	// Save upserts the singleton row. The write carries the caller's
	// version token and fails with ErrStaleVersion when another session
	// saved in between. On success the stored version is incremented
	// and written back into settings.
	Save(ctx context.Context, settings *models.Settings) error
}

// DeviceStatusRepository defines the interface for device heartbeats
type DeviceStatusRepository interface {
	database.Repository
	Get(ctx context.Context, deviceID string) (*models.DeviceStatus, error)
	Upsert(ctx context.Context, status *models.DeviceStatus) error
	List(ctx context.Context) ([]*models.DeviceStatus, error)
}
