// FilePath: api/resources/api.resource.device.go
package resources

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/ralphtiongco19/mushroom-hub/internal/errors"
	"github.com/ralphtiongco19/mushroom-hub/internal/farmservice"
	"github.com/ralphtiongco19/mushroom-hub/internal/models"
	"github.com/ralphtiongco19/mushroom-hub/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// DeviceHandlers encapsulates the device-presence HTTP handlers
type DeviceHandlers struct {
	farmservice *farmservice.FarmService
	deviceID    string
}

// @Summary Get device status
// @Description Heartbeat-derived presence of the farm's device
// @Tags device
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /device/status [get]
func (h *DeviceHandlers) GetDeviceStatus(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	status, err := h.farmservice.Devices.Get(r.Context(), h.deviceID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			respondWithJSON(w, http.StatusOK, map[string]interface{}{
				"device_id":     h.deviceID,
				"online_status": "offline",
			})
			return
		}
		respondWithServiceError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"device_id":     status.DeviceID,
		"last_seen":     status.LastSeen,
		"detail":        status.Detail,
		"online_status": status.OnlineStatus(),
	})
}

// @Summary Report heartbeat
// @Description The device's HTTP heartbeat when not publishing
// @Tags edge
// @Accept json
// @Success 204 "No Content"
// @Router /edge/heartbeat [post]
func (h *DeviceHandlers) ReportHeartbeat(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var status models.DeviceStatus
	if err := json.NewDecoder(r.Body).Decode(&status); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}
	if status.DeviceID == "" {
		status.DeviceID = h.deviceID
	}
	if status.LastSeen.IsZero() {
		status.LastSeen = time.Now()
	}
	status.UpdatedAt = time.Now()

	if err := h.farmservice.Devices.Upsert(r.Context(), &status); err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
