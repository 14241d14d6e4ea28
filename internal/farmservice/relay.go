// FilePath: internal/farmservice/relay.go
package farmservice

import (
	"github.com/sony/gobreaker"
	"github.com/ralphtiongco19/mushroom-hub/internal/errors"
	"github.com/ralphtiongco19/mushroom-hub/internal/models"
	"github.com/ralphtiongco19/mushroom-hub/internal/realtime"
	nuts "github.com/vaudience/go-nuts"
)

// CommandRelay pushes freshly created commands onto the device's
// command topic. The push is an optimization: the device also polls
// the pending queue, so a relay failure degrades latency, not
// correctness. The circuit breaker keeps a flapping broker from
// stalling every dispatch on publish timeouts.
type CommandRelay struct {
	channel realtime.Channel
	breaker *gobreaker.CircuitBreaker
}

// NewCommandRelay creates a relay over the given channel
func NewCommandRelay(channel realtime.Channel) *CommandRelay {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "command-relay",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			nuts.L.Warnf("[CommandRelay] Breaker %s: %s -> %s", name, from, to)
		},
	})
	return &CommandRelay{channel: channel, breaker: breaker}
}

// Push publishes the command to the device topic
func (r *CommandRelay) Push(cmd *models.Command) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.channel.Publish(realtime.CommandsTopic(cmd.DeviceID), cmd)
	})
	if err != nil {
		return errors.NewTransportError("failed to relay command to device", err)
	}
	return nil
}
