// FilePath: internal/retention/retention.go
package retention

import (
	"context"
	"time"

	"github.com/ralphtiongco19/mushroom-hub/internal/farmservice"
	nuts "github.com/vaudience/go-nuts"
)

// Service prunes aged sensor readings on an interval. Command rows are
// deliberately not touched: they are retained for audit.
type Service struct {
	farm      *farmservice.FarmService
	retention time.Duration
	interval  time.Duration
	events    *nuts.EventEmitter
}

// New creates a retention service
func New(farm *farmservice.FarmService, retention, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Service{
		farm:      farm,
		retention: retention,
		interval:  interval,
		events:    nuts.NewEventEmitter(),
	}
}

// Run blocks until the context is canceled, pruning on each tick
func (s *Service) Run(ctx context.Context) {
	if s.retention <= 0 {
		nuts.L.Infof("[Retention] Disabled, keeping all readings")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pruneOnce(ctx)
		}
	}
}

func (s *Service) pruneOnce(ctx context.Context) {
	before := time.Now().Add(-s.retention)
	pruned, err := s.farm.PruneReadings(ctx, before)
	if err != nil {
		nuts.L.Errorf("[Retention] Prune failed: %v", err)
		return
	}
	if pruned > 0 {
		s.events.Emit("readings.pruned", pruned)
	}
}

// OnPrune registers a callback for prune events
func (s *Service) OnPrune(handler func(count int64)) {
	s.events.On("readings.pruned", "retention_handler", func(args ...interface{}) {
		if len(args) > 0 {
			if count, ok := args[0].(int64); ok {
				handler(count)
			}
		}
	})
}
