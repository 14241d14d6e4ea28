// FilePath: api/api.router.go
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/ralphtiongco19/mushroom-hub/api/middleware"
	"github.com/ralphtiongco19/mushroom-hub/api/resources"
	"github.com/ralphtiongco19/mushroom-hub/internal/config"
	"github.com/ralphtiongco19/mushroom-hub/internal/farmservice"
	"github.com/ralphtiongco19/mushroom-hub/internal/monitoring"
	nuts "github.com/vaudience/go-nuts"
)

type Router struct {
	router    *mux.Router
	auth      *middleware.KeycloakMiddleware
	resources *resources.Resources
}

func NewRouter(svc *farmservice.FarmService, cfg *config.Config, metrics *monitoring.Service) *Router {
	r := &Router{
		router:    mux.NewRouter(),
		auth:      middleware.NewKeycloakMiddleware(middleware.KeycloakConfig(cfg.Keycloak)),
		resources: resources.NewResources(svc, cfg),
	}
	r.resources.HealthCheck = handleHealth(svc)
	r.resources.Metrics = metrics.Handler()

	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	// API version prefix
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/health", r.resources.HealthCheck).Methods(http.MethodGet)
	api.Handle("/metrics", r.resources.Metrics).Methods(http.MethodGet)

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(r.auth.Authenticate)

	// Readings
	protected.HandleFunc("/readings", r.resources.Readings.ListReadings).Methods(http.MethodGet)
	protected.HandleFunc("/readings/latest", r.resources.Readings.GetLatestReading).Methods(http.MethodGet)
	protected.HandleFunc("/readings/stats/today", r.resources.Readings.GetTodayStats).Methods(http.MethodGet)

	// Commands
	protected.HandleFunc("/commands", r.resources.Commands.DispatchCommand).Methods(http.MethodPost)
	protected.HandleFunc("/commands", r.resources.Commands.ListCommands).Methods(http.MethodGet)
	protected.HandleFunc("/commands/{id}", r.resources.Commands.GetCommand).Methods(http.MethodGet)
	protected.HandleFunc("/commands/{id}/outcome", r.resources.Commands.AwaitOutcome).Methods(http.MethodGet)

	// Settings and derived conditions
	protected.HandleFunc("/settings", r.resources.Settings.GetSettings).Methods(http.MethodGet)
	protected.HandleFunc("/settings", r.resources.Settings.SaveSettings).Methods(http.MethodPut)
	protected.HandleFunc("/conditions", r.resources.Settings.GetConditions).Methods(http.MethodGet)

	// Device presence and camera
	protected.HandleFunc("/device/status", r.resources.Device.GetDeviceStatus).Methods(http.MethodGet)
	protected.HandleFunc("/camera/stream", r.resources.Camera.StreamCamera).Methods(http.MethodGet)

	// Edge surface: the device's HTTP fallback to the realtime channel
	edge := protected.PathPrefix("/edge").Subrouter()
	edge.HandleFunc("/readings", r.resources.Readings.RecordReadings).Methods(http.MethodPost)
	edge.HandleFunc("/heartbeat", r.resources.Device.ReportHeartbeat).Methods(http.MethodPost)
	edge.HandleFunc("/commands", r.resources.Commands.ListPendingCommands).Methods(http.MethodGet)
	edge.HandleFunc("/commands/{id}/status", r.resources.Commands.ReportCommandStatus).Methods(http.MethodPost)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

func handleHealth(svc *farmservice.FarmService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := svc.Validate(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","version":"` + nuts.GetVersion() + `"}`))
	}
}
