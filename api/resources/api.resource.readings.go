// FilePath: api/resources/api.resource.readings.go
package resources

import (
	"encoding/json"
	"net/http"
	"reflect"
	"time"

	"github.com/gorilla/schema"
	"github.com/ralphtiongco19/mushroom-hub/internal/errors"
	"github.com/ralphtiongco19/mushroom-hub/internal/farmservice"
	"github.com/ralphtiongco19/mushroom-hub/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// ReadingHandlers encapsulates the sensor-reading HTTP handlers
type ReadingHandlers struct {
	farmservice *farmservice.FarmService
	deviceID    string
}

var queryDecoder = newQueryDecoder()

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	d.RegisterConverter(time.Time{}, func(value string) reflect.Value {
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return reflect.Value{}
		}
		return reflect.ValueOf(t)
	})
	return d
}

type rangeQuery struct {
	DeviceID string    `schema:"device_id"`
	Start    time.Time `schema:"start"`
	End      time.Time `schema:"end"`
}

// @Summary Get latest reading
// @Description Get the most recent temperature/humidity sample
// @Tags readings
// @Produce json
// @Success 200 {object} models.SensorReading
// @Failure 404 {object} errors.APIError
// @Router /readings/latest [get]
func (h *ReadingHandlers) GetLatestReading(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	reading, err := h.farmservice.LatestReading(r.Context(), h.deviceID)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"reading":   reading,
		"connected": h.farmservice.Reconciler.Connected(),
	})
}

// @Summary Get readings in a range
// @Description Get raw samples between start and end (RFC3339)
// @Tags readings
// @Produce json
// @Param start query string false "Start time (RFC3339)"
// @Param end query string false "End time (RFC3339)"
// @Success 200 {array} models.SensorReading
// @Router /readings [get]
func (h *ReadingHandlers) ListReadings(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var query rangeQuery
	if err := queryDecoder.Decode(&query, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err).WithRequestID(requestID))
		return
	}
	if query.DeviceID == "" {
		query.DeviceID = h.deviceID
	}
	if query.End.IsZero() {
		query.End = time.Now()
	}
	if query.Start.IsZero() {
		query.Start = query.End.Add(-24 * time.Hour)
	}

	readings, err := h.farmservice.ReadingsRange(r.Context(), query.DeviceID, query.Start, query.End)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, readings)
}

// @Summary Get today's statistics
// @Description Min/max/avg temperature and humidity over today's readings
// @Tags readings
// @Produce json
// @Success 200 {object} models.DailyStats
// @Router /readings/stats/today [get]
func (h *ReadingHandlers) GetTodayStats(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	stats, err := h.farmservice.TodayStats(r.Context(), h.deviceID, time.Now())
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

// @Summary Record sensor readings
// @Description Ingest endpoint for devices that POST instead of publishing
// @Tags edge
// @Accept json
// @Produce json
// @Param readings body []models.SensorReading true "Array of sensor readings"
// @Success 201 {object} map[string]string
// @Failure 400 {object} errors.APIError
// @Router /edge/readings [post]
func (h *ReadingHandlers) RecordReadings(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var readings []models.SensorReading
	if err := json.NewDecoder(r.Body).Decode(&readings); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	for i := range readings {
		if err := h.farmservice.RecordReading(r.Context(), &readings[i]); err != nil {
			nuts.L.Warnf("[ReadingHandlers] Failed to record reading: %v", err)
			// Continue with other readings even if one fails
			continue
		}
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

// Helper functions

func respondWithError(w http.ResponseWriter, err *errors.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
	nuts.L.Errorf("[API] %s", err.Error())
}

// respondWithServiceError passes typed service errors through and
// wraps anything else as internal
func respondWithServiceError(w http.ResponseWriter, err error, requestID string) {
	if apiErr, ok := err.(*errors.APIError); ok {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}
	respondWithError(w, errors.NewInternalError("unexpected error", err).WithRequestID(requestID))
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
