// FilePath: api/resources/api.resource.camera.go
package resources

import (
	"io"
	"net/http"

	"github.com/ralphtiongco19/mushroom-hub/internal/errors"
	nuts "github.com/vaudience/go-nuts"
)

// CameraHandlers proxies the local-network motion-JPEG camera so the
// mobile client only talks to the hub.
type CameraHandlers struct {
	streamURL string
}

// @Summary Stream the farm camera
// @Description Pass-through of the camera's motion-JPEG stream
// @Tags camera
// @Produce mjpeg
// @Success 200
// @Failure 502 {object} errors.APIError
// @Router /camera/stream [get]
func (h *CameraHandlers) StreamCamera(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	if h.streamURL == "" {
		respondWithError(w, errors.NewNotFoundError("no camera configured", nil).WithRequestID(requestID))
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, h.streamURL, nil)
	if err != nil {
		respondWithError(w, errors.NewInternalError("failed to build camera request", err).WithRequestID(requestID))
		return
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		respondWithError(w, errors.NewTransportError("camera unreachable", err).WithRequestID(requestID))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respondWithError(w, errors.NewTransportError("camera returned an error", nil).WithRequestID(requestID))
		return
	}

	w.Header().Set("Content-Type", resp.Header.Get("Content-Type"))
	w.WriteHeader(http.StatusOK)

	// Copy until the client disconnects; the context cancels the
	// upstream request for us.
	if _, err := io.Copy(w, resp.Body); err != nil {
		nuts.L.Infof("[CameraHandlers] Stream ended: %v", err)
	}
}
