// FilePath: api/resources/resources.go
package resources

import (
	"net/http"

	"github.com/ralphtiongco19/mushroom-hub/internal/config"
	"github.com/ralphtiongco19/mushroom-hub/internal/farmservice"
)

// Resources holds all HTTP resource handlers
type Resources struct {
	Readings    *ReadingHandlers
	Commands    *CommandHandlers
	Settings    *SettingsHandlers
	Device      *DeviceHandlers
	Camera      *CameraHandlers
	HealthCheck func(w http.ResponseWriter, r *http.Request)
	Metrics     http.Handler
}

// NewResources creates a new Resources instance
func NewResources(svc *farmservice.FarmService, cfg *config.Config) *Resources {
	return &Resources{
		Readings: &ReadingHandlers{farmservice: svc, deviceID: cfg.Farm.DeviceID},
		Commands: &CommandHandlers{farmservice: svc, deviceID: cfg.Farm.DeviceID},
		Settings: &SettingsHandlers{farmservice: svc},
		Device:   &DeviceHandlers{farmservice: svc, deviceID: cfg.Farm.DeviceID},
		Camera:   &CameraHandlers{streamURL: cfg.Camera.StreamURL},
	}
}
