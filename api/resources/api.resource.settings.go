// FilePath: api/resources/api.resource.settings.go
package resources

import (
	"encoding/json"
	"net/http"

	"github.com/ralphtiongco19/mushroom-hub/internal/errors"
	"github.com/ralphtiongco19/mushroom-hub/internal/farmservice"
	"github.com/ralphtiongco19/mushroom-hub/internal/models"
	"github.com/ralphtiongco19/mushroom-hub/internal/threshold"
	nuts "github.com/vaudience/go-nuts"
)

// SettingsHandlers encapsulates the settings HTTP handlers
type SettingsHandlers struct {
	farmservice *farmservice.FarmService
}

// @Summary Get settings
// @Description Get the farm's singleton configuration
// @Tags settings
// @Produce json
// @Success 200 {object} models.Settings
// @Router /settings [get]
func (h *SettingsHandlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	settings, err := h.farmservice.GetSettings(r.Context())
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, settings)
}

// @Summary Save settings
// @Description Persist the configuration and mirror it to the device as an UPDATE_SETTINGS command. The body must carry the version returned by the last read; a stale version is rejected with 409.
// @Tags settings
// @Accept json
// @Produce json
// @Param settings body models.Settings true "Settings with version token"
// @Success 200 {object} farmservice.SaveOutcome
// @Failure 400 {object} errors.APIError
// @Failure 409 {object} errors.APIError
// @Router /settings [put]
// @Security BearerAuth
func (h *SettingsHandlers) SaveSettings(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var settings models.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	outcome, err := h.farmservice.SaveSettings(r.Context(), &settings)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, outcome)
}

// @Summary Evaluate current conditions
// @Description Classify the latest reading against the configured thresholds
// @Tags settings
// @Produce json
// @Success 200 {object} threshold.Evaluation
// @Router /conditions [get]
func (h *SettingsHandlers) GetConditions(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	settings, err := h.farmservice.GetSettings(r.Context())
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	reading, err := h.farmservice.LatestReading(r.Context(), settings.DeviceID)
	if err != nil && !errors.IsNotFound(err) {
		respondWithServiceError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, threshold.Evaluate(reading, settings))
}
