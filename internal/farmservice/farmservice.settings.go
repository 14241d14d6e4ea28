// FilePath: internal/farmservice/farmservice.settings.go
package farmservice

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/ralphtiongco19/mushroom-hub/internal/errors"
	"github.com/ralphtiongco19/mushroom-hub/internal/models"
	"github.com/ralphtiongco19/mushroom-hub/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// SyncResult distinguishes the three user-visible outcomes of a
// settings save; "saved but device sync failed" is not a failure and
// not a success, it is its own state.
type SyncResult string

const (
	SettingsSavedAndSynced  SyncResult = "saved_and_synced"
	SettingsSavedSyncFailed SyncResult = "saved_sync_failed"
	SettingsSaveFailed      SyncResult = "save_failed"
)

// SaveOutcome is the combined result of persisting the settings row
// and relaying the device-consumed subset as an UPDATE_SETTINGS command
type SaveOutcome struct {
	Result    SyncResult       `json:"result"`
	Settings  *models.Settings `json:"settings,omitempty"`
	CommandID string           `json:"command_id,omitempty"`
	SyncError string           `json:"sync_error,omitempty"`
}

// GetSettings returns the singleton, falling back to defaults before
// the first save
func (s *FarmService) GetSettings(ctx context.Context) (*models.Settings, error) {
	settings, err := s.Settings.Get(ctx)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return models.DefaultSettings(), nil
		}
		return nil, err
	}
	return settings, nil
}

// SaveSettings validates, persists the singleton row, then mirrors the
// device-consumed subset into an UPDATE_SETTINGS command. The device
// never reads the settings table directly, so skipping the command
// would silently diverge stored settings from live configuration.
func (s *FarmService) SaveSettings(ctx context.Context, settings *models.Settings) (*SaveOutcome, error) {
	if err := validateSettings(settings); err != nil {
		return nil, err
	}

	if err := s.Settings.Save(ctx, settings); err != nil {
		if stderrors.Is(err, repository.ErrStaleVersion) {
			s.recordSettingsSave(SettingsSaveFailed)
			return nil, errors.NewConflictError(
				"settings were changed by another session, reload and retry", err)
		}
		s.recordSettingsSave(SettingsSaveFailed)
		return nil, err
	}

	dispatch, err := s.DispatchCommand(ctx, DispatchRequest{
		DeviceID: settings.DeviceID,
		Kind:     models.CommandUpdateSettings,
		Payload:  settings.DevicePayload(),
		// One sync command per saved version; a retried save of the
		// same version reuses the same command row.
		IdempotencyKey: fmt.Sprintf("settings-v%d", settings.Version),
	})
	if err != nil {
		nuts.L.Warnf("[FarmService] Settings saved but device sync failed: %v", err)
		s.recordSettingsSave(SettingsSavedSyncFailed)
		return &SaveOutcome{
			Result:    SettingsSavedSyncFailed,
			Settings:  settings,
			SyncError: err.Error(),
		}, nil
	}
	if !dispatch.Relayed && !dispatch.Deduplicated {
		// The command row is queued and the device will poll it, but the
		// user should not see "synced" until the device can be reached.
		s.recordSettingsSave(SettingsSavedSyncFailed)
		return &SaveOutcome{
			Result:    SettingsSavedSyncFailed,
			Settings:  settings,
			CommandID: dispatch.Command.ID,
			SyncError: dispatch.RelayError,
		}, nil
	}

	s.recordSettingsSave(SettingsSavedAndSynced)
	return &SaveOutcome{
		Result:    SettingsSavedAndSynced,
		Settings:  settings,
		CommandID: dispatch.Command.ID,
	}, nil
}

func (s *FarmService) recordSettingsSave(result SyncResult) {
	if s.Metrics != nil {
		s.Metrics.SettingsSave(string(result))
	}
}

func validateSettings(settings *models.Settings) error {
	if settings == nil {
		return errors.NewValidationError("settings body is required", nil)
	}
	if settings.DeviceID == "" {
		return errors.NewValidationError("device id is required", nil)
	}
	if settings.TempMin > settings.TempMax {
		return errors.NewValidationError("temp_min must not exceed temp_max", nil)
	}
	if settings.HumidMin > settings.HumidMax {
		return errors.NewValidationError("humid_min must not exceed humid_max", nil)
	}
	if settings.HumidTarget < settings.HumidMin || settings.HumidTarget > settings.HumidMax {
		return errors.NewValidationError("humid_target must lie within humidity bounds", nil)
	}
	if settings.MistDuration <= 0 {
		return errors.NewValidationError("mist_duration must be positive", nil)
	}
	if settings.MistCooldown < 0 {
		return errors.NewValidationError("mist_cooldown must not be negative", nil)
	}
	if settings.TempUnit != "C" && settings.TempUnit != "F" {
		return errors.NewValidationError(`temp_unit must be "C" or "F"`, nil)
	}
	return nil
}
