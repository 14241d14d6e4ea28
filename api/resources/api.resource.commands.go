// FilePath: api/resources/api.resource.commands.go
package resources

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/ralphtiongco19/mushroom-hub/internal/errors"
	"github.com/ralphtiongco19/mushroom-hub/internal/farmservice"
	"github.com/ralphtiongco19/mushroom-hub/internal/models"
	"github.com/ralphtiongco19/mushroom-hub/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// CommandHandlers encapsulates the device-command HTTP handlers
type CommandHandlers struct {
	farmservice *farmservice.FarmService
	deviceID    string
}

// @Summary Dispatch a command
// @Description Queue a command for asynchronous execution by the device
// @Tags commands
// @Accept json
// @Produce json
// @Param command body farmservice.DispatchRequest true "Command details"
// @Success 201 {object} farmservice.DispatchResult
// @Failure 400 {object} errors.APIError
// @Router /commands [post]
// @Security BearerAuth
func (h *CommandHandlers) DispatchCommand(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req farmservice.DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}
	if req.DeviceID == "" {
		req.DeviceID = h.deviceID
	}

	result, err := h.farmservice.DispatchCommand(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	code := http.StatusCreated
	if result.Deduplicated {
		code = http.StatusOK
	}
	respondWithJSON(w, code, result)
}

// @Summary Get a command
// @Description Get a command row by id; the fallback when an awaited outcome was missed
// @Tags commands
// @Produce json
// @Param id path string true "Command ID"
// @Success 200 {object} models.Command
// @Failure 404 {object} errors.APIError
// @Router /commands/{id} [get]
func (h *CommandHandlers) GetCommand(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)

	cmd, err := h.farmservice.GetCommand(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, cmd)
}

// @Summary Await a command outcome
// @Description Block until the command reaches a terminal status or the bounded wait elapses
// @Tags commands
// @Produce json
// @Param id path string true "Command ID"
// @Success 200 {object} reconcile.Outcome
// @Failure 404 {object} errors.APIError
// @Router /commands/{id}/outcome [get]
func (h *CommandHandlers) AwaitOutcome(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)

	outcome, err := h.farmservice.AwaitOutcome(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, outcome)
}

// @Summary List command history
// @Description Paginated command history for the farm's device, newest first
// @Tags commands
// @Produce json
// @Param offset query int false "Offset for pagination"
// @Param limit query int false "Limit for pagination"
// @Success 200 {array} models.Command
// @Router /commands [get]
func (h *CommandHandlers) ListCommands(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	offset, limit := getPaginationParams(r)

	commands, err := h.farmservice.ListCommands(r.Context(), h.deviceID, offset, limit)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, commands)
}

// @Summary Poll pending commands
// @Description The device's pull side of the command queue, oldest first
// @Tags edge
// @Produce json
// @Success 200 {array} models.Command
// @Router /edge/commands [get]
func (h *CommandHandlers) ListPendingCommands(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	commands, err := h.farmservice.ListPendingCommands(r.Context(), h.deviceID)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, commands)
}

// @Summary Report command status
// @Description The device's push side for execution progress when not publishing
// @Tags edge
// @Accept json
// @Produce json
// @Param update body models.CommandStatusUpdate true "Status update"
// @Success 200 {object} models.Command
// @Failure 409 {object} errors.APIError
// @Router /edge/commands/{id}/status [post]
func (h *CommandHandlers) ReportCommandStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)

	var update models.CommandStatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}
	update.CommandID = id
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}

	if err := h.farmservice.ReportCommandStatus(r.Context(), update); err != nil {
		respondWithServiceError(w, mapTransitionError(err), requestID)
		return
	}

	cmd, err := h.farmservice.GetCommand(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, cmd)
}

func mapTransitionError(err error) error {
	if stderrors.Is(err, repository.ErrInvalidTransition) {
		return errors.NewConflictError("command already reached a terminal status", err)
	}
	if stderrors.Is(err, repository.ErrNotFound) {
		return errors.NewNotFoundError("command not found", err)
	}
	return err
}

func getPaginationParams(r *http.Request) (offset, limit int) {
	query := r.URL.Query()
	offset, _ = strconv.Atoi(query.Get("offset"))
	limit, _ = strconv.Atoi(query.Get("limit"))

	if limit <= 0 || limit > 100 {
		limit = 50 // Default limit
	}
	if offset < 0 {
		offset = 0
	}

	return offset, limit
}
