// FilePath: internal/farmservice/farmservice.go

// Package farmservice holds the hub's business logic: command
// dispatch, reading statistics, and settings synchronization.
package farmservice

import (
	"time"

	"github.com/ralphtiongco19/mushroom-hub/internal/errors"
	"github.com/ralphtiongco19/mushroom-hub/internal/monitoring"
	"github.com/ralphtiongco19/mushroom-hub/internal/reconcile"
	"github.com/ralphtiongco19/mushroom-hub/internal/repository"
)

// FarmService contains all repositories and service-wide dependencies
type FarmService struct {
	Commands   repository.CommandRepository
	Readings   repository.ReadingRepository
	Settings   repository.SettingsRepository
	Devices    repository.DeviceStatusRepository
	Relay      *CommandRelay
	Reconciler *reconcile.Reconciler
	Metrics    *monitoring.Service

	// persistRetryBound caps the exponential backoff applied to
	// transient persistence failures on dispatch.
	persistRetryBound time.Duration
}

// New creates a new FarmService instance
func New(
	commands repository.CommandRepository,
	readings repository.ReadingRepository,
	settings repository.SettingsRepository,
	devices repository.DeviceStatusRepository,
	relay *CommandRelay,
	reconciler *reconcile.Reconciler,
	metrics *monitoring.Service,
) *FarmService {
	return &FarmService{
		Commands:          commands,
		Readings:          readings,
		Settings:          settings,
		Devices:           devices,
		Relay:             relay,
		Reconciler:        reconciler,
		Metrics:           metrics,
		persistRetryBound: 5 * time.Second,
	}
}

// Validate checks if all required repositories are initialized
func (s *FarmService) Validate() error {
	if s.Commands == nil {
		return ErrMissingRepository("commands")
	}
	if s.Readings == nil {
		return ErrMissingRepository("readings")
	}
	if s.Settings == nil {
		return ErrMissingRepository("settings")
	}
	if s.Devices == nil {
		return ErrMissingRepository("devices")
	}
	return nil
}

func ErrMissingRepository(name string) error {
	return errors.NewInternalError("missing repository: "+name, nil)
}
