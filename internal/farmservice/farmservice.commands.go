// FilePath: internal/farmservice/farmservice.commands.go
package farmservice

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ralphtiongco19/mushroom-hub/internal/errors"
	"github.com/ralphtiongco19/mushroom-hub/internal/models"
	"github.com/ralphtiongco19/mushroom-hub/internal/reconcile"
	"github.com/ralphtiongco19/mushroom-hub/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// DispatchRequest is a user intent to be queued for the device
type DispatchRequest struct {
	DeviceID string             `json:"device_id"`
	Kind     models.CommandKind `json:"command_type"`
	Payload  models.JSON        `json:"command_data"`
	// IdempotencyKey, when set, makes retried submissions collapse
	// onto one command row instead of creating duplicates.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// DispatchResult reports exactly one submission outcome to the caller
type DispatchResult struct {
	Command *models.Command `json:"command"`
	// Deduplicated is true when the idempotency key matched an
	// existing row and no new command was created.
	Deduplicated bool `json:"deduplicated"`
	// Relayed is true when the command was also pushed over the
	// realtime channel; false means the device will pick it up by poll.
	Relayed    bool   `json:"relayed"`
	RelayError string `json:"relay_error,omitempty"`
}

// DispatchCommand validates a user intent, persists it as a pending
// command, and pushes it to the device best-effort. It never waits for
// device execution; pair with AwaitOutcome for a synchronous view.
func (s *FarmService) DispatchCommand(ctx context.Context, req DispatchRequest) (*DispatchResult, error) {
	if req.DeviceID == "" {
		return nil, errors.NewValidationError("device id is required", nil)
	}
	if !req.Kind.Known() {
		return nil, errors.NewValidationError(
			fmt.Sprintf("unknown command type %q", req.Kind), nil)
	}
	if req.Payload == nil {
		req.Payload = models.JSON{}
	}
	if err := validatePayload(req.Kind, req.Payload); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.Commands.GetByIdempotencyKey(ctx, req.DeviceID, req.IdempotencyKey)
		if err == nil {
			return &DispatchResult{Command: existing, Deduplicated: true}, nil
		}
		if !stderrors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	now := time.Now()
	cmd := &models.Command{
		ID:             nuts.NID("cmd", 12),
		DeviceID:       req.DeviceID,
		Kind:           req.Kind,
		Payload:        req.Payload,
		Status:         models.StatusPending,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.createWithRetry(ctx, cmd); err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) && req.IdempotencyKey != "" {
			// Concurrent submission with the same key won the race.
			existing, getErr := s.Commands.GetByIdempotencyKey(ctx, req.DeviceID, req.IdempotencyKey)
			if getErr == nil {
				return &DispatchResult{Command: existing, Deduplicated: true}, nil
			}
		}
		return nil, err
	}

	if s.Metrics != nil {
		s.Metrics.CommandDispatched(string(cmd.Kind))
	}
	nuts.L.Infof("[FarmService] Dispatched %s command %s for device %s", cmd.Kind, cmd.ID, cmd.DeviceID)

	result := &DispatchResult{Command: cmd, Relayed: true}
	if err := s.Relay.Push(cmd); err != nil {
		nuts.L.Warnf("[FarmService] Relay push failed for command %s: %v", cmd.ID, err)
		result.Relayed = false
		result.RelayError = err.Error()
	}
	return result, nil
}

// createWithRetry retries transient persistence failures with bounded
// exponential backoff, then gives up with the underlying error.
func (s *FarmService) createWithRetry(ctx context.Context, cmd *models.Command) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = s.persistRetryBound

	return backoff.Retry(func() error {
		err := s.Commands.Create(ctx, cmd)
		if stderrors.Is(err, repository.ErrDuplicate) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}

// AwaitOutcome blocks for the command's terminal outcome within the
// reconciler's bounded wait
func (s *FarmService) AwaitOutcome(ctx context.Context, commandID string) (*reconcile.Outcome, error) {
	if _, err := s.GetCommand(ctx, commandID); err != nil {
		return nil, err
	}
	outcome := s.Reconciler.Await(ctx, commandID)
	return &outcome, nil
}

// ReportCommandStatus applies a device-reported transition arriving
// over the edge HTTP surface, waking awaiting callers the same way the
// realtime path does.
func (s *FarmService) ReportCommandStatus(ctx context.Context, update models.CommandStatusUpdate) error {
	return s.Reconciler.ApplyStatusUpdate(ctx, update)
}

// GetCommand fetches one command row
func (s *FarmService) GetCommand(ctx context.Context, id string) (*models.Command, error) {
	cmd, err := s.Commands.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewNotFoundError("command not found", err)
		}
		return nil, err
	}
	return cmd, nil
}

// ListCommands returns the device's command history, newest first
func (s *FarmService) ListCommands(ctx context.Context, deviceID string, offset, limit int) ([]*models.Command, error) {
	if limit <= 0 || limit > 100 {
		limit = 50 // Default limit
	}
	if offset < 0 {
		offset = 0
	}
	return s.Commands.ListByDevice(ctx, deviceID, offset, limit)
}

// ListPendingCommands returns the device's poll queue, oldest first
func (s *FarmService) ListPendingCommands(ctx context.Context, deviceID string) ([]*models.Command, error) {
	return s.Commands.ListPending(ctx, deviceID)
}

func validatePayload(kind models.CommandKind, payload models.JSON) error {
	switch kind {
	case models.CommandUpdateSettings:
		pairs := [][2]string{
			{"temp_min", "temp_max"},
			{"humid_min", "humid_max"},
		}
		for _, pair := range pairs {
			min, err := numField(payload, pair[0])
			if err != nil {
				return err
			}
			max, err := numField(payload, pair[1])
			if err != nil {
				return err
			}
			if min > max {
				return errors.NewValidationError(
					fmt.Sprintf("%s must not exceed %s", pair[0], pair[1]), nil)
			}
		}
	case models.CommandManualMist:
		duration, err := numField(payload, "duration")
		if err != nil {
			return err
		}
		if duration <= 0 {
			return errors.NewValidationError("duration must be positive", nil)
		}
	case models.CommandToggleAutoMist:
		if _, ok := payload["enabled"].(bool); !ok {
			return errors.NewValidationError("enabled must be a boolean", nil)
		}
	case models.CommandCalibrateSensor:
		sensorType, _ := payload["sensor_type"].(string)
		if sensorType != "temp" && sensorType != "humid" {
			return errors.NewValidationError(`sensor_type must be "temp" or "humid"`, nil)
		}
	case models.CommandReboot:
		if len(payload) != 0 {
			return errors.NewValidationError("reboot takes no parameters", nil)
		}
	}
	return nil
}

func numField(payload models.JSON, key string) (float64, error) {
	raw, ok := payload[key]
	if !ok {
		return 0, errors.NewValidationError(fmt.Sprintf("%s is required", key), nil)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	}
	return 0, errors.NewValidationError(fmt.Sprintf("%s must be numeric", key), nil)
}
