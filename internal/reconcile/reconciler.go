// FilePath: internal/reconcile/reconciler.go

// Package reconcile keeps the hub's view of the farm current without
// polling: it applies device-reported command status transitions,
// tracks in-flight commands as awaitable outcomes, and maintains the
// latest-reading state across transport drops.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ralphtiongco19/mushroom-hub/internal/models"
	"github.com/ralphtiongco19/mushroom-hub/internal/monitoring"
	"github.com/ralphtiongco19/mushroom-hub/internal/realtime"
	"github.com/ralphtiongco19/mushroom-hub/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

const latestReadingCacheKey = "shroomhub:latest_reading:"

// Config bounds the reconciler's protocol behavior
type Config struct {
	DeviceID string
	// CommandTimeout bounds Await: a command with no terminal report
	// within this window resolves as unconfirmed.
	CommandTimeout time.Duration
}

// Reconciler subscribes to the realtime channel and reconciles what
// the device reports back into the command and reading tables.
type Reconciler struct {
	cfg      Config
	commands repository.CommandRepository
	readings repository.ReadingRepository
	devices  repository.DeviceStatusRepository
	channel  realtime.Channel
	cache    *redis.Client
	metrics  *monitoring.Service
	tracker  *tracker

	mu        sync.RWMutex
	current   *models.SensorReading
	connected bool
	subs      []realtime.Subscription
	stopped   bool
}

// New creates a reconciler. cache may be nil when Redis is not configured.
func New(
	cfg Config,
	commands repository.CommandRepository,
	readings repository.ReadingRepository,
	devices repository.DeviceStatusRepository,
	channel realtime.Channel,
	cache *redis.Client,
	metrics *monitoring.Service,
) *Reconciler {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 30 * time.Second
	}
	return &Reconciler{
		cfg:      cfg,
		commands: commands,
		readings: readings,
		devices:  devices,
		channel:  channel,
		cache:    cache,
		metrics:  metrics,
		tracker:  newTracker(),
	}
}

// Start fetches the latest persisted reading and subscribes to the
// device's topics. Call Stop to release the subscriptions.
func (r *Reconciler) Start(ctx context.Context) error {
	r.Resync(ctx)

	subs := []struct {
		topic   string
		handler func(context.Context, []byte)
	}{
		{realtime.ReadingsTopic(r.cfg.DeviceID), r.handleReading},
		{realtime.CommandStatusTopic(r.cfg.DeviceID), r.handleCommandStatus},
		{realtime.HeartbeatTopic(r.cfg.DeviceID), r.handleHeartbeat},
	}

	for _, s := range subs {
		handler := s.handler
		sub, err := r.channel.Subscribe(s.topic, func(_ string, payload []byte) {
			r.mu.RLock()
			stopped := r.stopped
			r.mu.RUnlock()
			if stopped {
				return
			}
			handler(context.Background(), payload)
		})
		if err != nil {
			r.Stop()
			return err
		}
		r.mu.Lock()
		r.subs = append(r.subs, sub)
		r.mu.Unlock()
	}

	r.setConnected(r.channel.Connected())
	return nil
}

// Stop releases all subscriptions; no callbacks fire afterwards
func (r *Reconciler) Stop() {
	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.stopped = true
	r.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			nuts.L.Warnf("[Reconciler] Failed to close subscription: %v", err)
		}
	}
}

// OnConnect is wired to the channel's connect hook. Notifications
// missed during a gap are not replayed; instead the latest persisted
// reading is re-fetched, so the view converges by re-fetch rather than
// exactly-once delivery.
func (r *Reconciler) OnConnect(ctx context.Context) {
	r.setConnected(true)
	r.Resync(ctx)
}

// OnConnectionLost is wired to the channel's connection-lost hook
func (r *Reconciler) OnConnectionLost(err error) {
	r.setConnected(false)
}

// Connected reports the realtime connectivity indicator
func (r *Reconciler) Connected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

// CurrentReading returns the freshest known reading, if any
func (r *Reconciler) CurrentReading() (*models.SensorReading, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return nil, false
	}
	copied := *r.current
	return &copied, true
}

// Observe folds a reading into the current-reading state, preferring
// the row with the latest creation timestamp over the row most
// recently delivered. Re-observing the same row is a no-op, so a
// resync after a transport drop cannot duplicate state.
func (r *Reconciler) Observe(reading *models.SensorReading) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil && !reading.CreatedAt.After(r.current.CreatedAt) {
		return
	}
	copied := *reading
	r.current = &copied
}

// Resync re-fetches the latest persisted reading (cache first) and
// folds it into the current state.
func (r *Reconciler) Resync(ctx context.Context) {
	if reading := r.cachedLatest(ctx); reading != nil {
		r.Observe(reading)
	}

	reading, err := r.readings.Latest(ctx, r.cfg.DeviceID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			nuts.L.Warnf("[Reconciler] Resync fetch failed: %v", err)
		}
		return
	}
	r.Observe(reading)

	r.reportStuckCommands(ctx)
}

// reportStuckCommands surfaces commands the device never picked up.
// They stay pending; the device owns the transition.
func (r *Reconciler) reportStuckCommands(ctx context.Context) {
	stuck, err := r.commands.ListStuckPending(ctx, time.Now().Add(-10*r.cfg.CommandTimeout))
	if err != nil {
		nuts.L.Warnf("[Reconciler] Stuck command sweep failed: %v", err)
		return
	}
	for _, cmd := range stuck {
		nuts.L.Warnf("[Reconciler] Command %s (%s) pending since %v, device has not picked it up",
			cmd.ID, cmd.Kind, cmd.CreatedAt)
	}
}

// Await blocks until the command reaches a terminal status, the
// context is canceled, or the bounded wait elapses. A command that
// never left pending within the bound resolves as unconfirmed, never
// as a silent failure or success.
func (r *Reconciler) Await(ctx context.Context, commandID string) Outcome {
	// The device may have reported before the caller started waiting.
	if cmd, err := r.commands.Get(ctx, commandID); err == nil && cmd.Status.Terminal() {
		return Outcome{CommandID: commandID, Status: cmd.Status, Detail: cmd.ErrorDetail}
	}

	ch := r.tracker.register(commandID)
	defer r.tracker.unregister(commandID, ch)

	timer := time.NewTimer(r.cfg.CommandTimeout)
	defer timer.Stop()

	select {
	case outcome := <-ch:
		return outcome
	case <-ctx.Done():
		return r.unconfirmed(ctx, commandID)
	case <-timer.C:
		return r.unconfirmed(ctx, commandID)
	}
}

// unconfirmed re-checks the table once before giving up; the terminal
// report may have raced the wait.
func (r *Reconciler) unconfirmed(ctx context.Context, commandID string) Outcome {
	if cmd, err := r.commands.Get(context.WithoutCancel(ctx), commandID); err == nil && cmd.Status.Terminal() {
		return Outcome{CommandID: commandID, Status: cmd.Status, Detail: cmd.ErrorDetail}
	}
	return Outcome{CommandID: commandID, Status: models.StatusPending, Unconfirmed: true}
}

func (r *Reconciler) setConnected(connected bool) {
	r.mu.Lock()
	r.connected = connected
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.SetRealtimeConnected(connected)
	}
}

func (r *Reconciler) handleReading(ctx context.Context, payload []byte) {
	var reading models.SensorReading
	if err := json.Unmarshal(payload, &reading); err != nil {
		nuts.L.Warnf("[Reconciler] Dropping malformed reading: %v", err)
		return
	}
	if reading.DeviceID == "" {
		reading.DeviceID = r.cfg.DeviceID
	}
	if reading.CreatedAt.IsZero() {
		reading.CreatedAt = time.Now()
	}

	if err := r.readings.Insert(ctx, &reading); err != nil {
		nuts.L.Errorf("[Reconciler] Failed to persist reading: %v", err)
		return
	}
	if r.metrics != nil {
		r.metrics.ReadingIngested()
	}

	r.Observe(&reading)
	r.cacheLatest(ctx, &reading)
}

func (r *Reconciler) handleCommandStatus(ctx context.Context, payload []byte) {
	var update models.CommandStatusUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		nuts.L.Warnf("[Reconciler] Dropping malformed status update: %v", err)
		return
	}

	if err := r.ApplyStatusUpdate(ctx, update); err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			nuts.L.Warnf("[Reconciler] Rejected non-monotonic transition for command %s -> %s",
				update.CommandID, update.Status)
			return
		}
		nuts.L.Errorf("[Reconciler] Failed to apply status update for command %s: %v",
			update.CommandID, err)
	}
}

// ApplyStatusUpdate applies a device-reported transition and wakes any
// awaiting callers. Shared by the realtime path and the device's HTTP
// fallback, so awaits resolve no matter which way the report arrived.
func (r *Reconciler) ApplyStatusUpdate(ctx context.Context, update models.CommandStatusUpdate) error {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}

	err := r.commands.UpdateStatus(ctx, update.CommandID, update.Status, update.Detail, update.Timestamp)
	if err != nil {
		return err
	}

	r.touchDevice(ctx, update.DeviceID)

	if update.Status.Terminal() {
		if r.metrics != nil {
			r.metrics.CommandOutcome(string(update.Status))
		}
		r.tracker.resolve(Outcome{
			CommandID: update.CommandID,
			Status:    update.Status,
			Detail:    update.Detail,
		})
	}
	return nil
}

func (r *Reconciler) handleHeartbeat(ctx context.Context, payload []byte) {
	var status models.DeviceStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		nuts.L.Warnf("[Reconciler] Dropping malformed heartbeat: %v", err)
		return
	}
	if status.DeviceID == "" {
		status.DeviceID = r.cfg.DeviceID
	}
	if status.LastSeen.IsZero() {
		status.LastSeen = time.Now()
	}
	status.UpdatedAt = time.Now()

	if err := r.devices.Upsert(ctx, &status); err != nil {
		nuts.L.Errorf("[Reconciler] Failed to upsert device status: %v", err)
	}
}

func (r *Reconciler) touchDevice(ctx context.Context, deviceID string) {
	if deviceID == "" {
		deviceID = r.cfg.DeviceID
	}
	now := time.Now()
	err := r.devices.Upsert(ctx, &models.DeviceStatus{
		DeviceID:  deviceID,
		LastSeen:  now,
		Detail:    "command status reported",
		UpdatedAt: now,
	})
	if err != nil {
		nuts.L.Warnf("[Reconciler] Failed to touch device %s: %v", deviceID, err)
	}
}

func (r *Reconciler) cacheLatest(ctx context.Context, reading *models.SensorReading) {
	if r.cache == nil {
		return
	}
	data, err := json.Marshal(reading)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, latestReadingCacheKey+reading.DeviceID, data, 24*time.Hour).Err(); err != nil {
		nuts.L.Warnf("[Reconciler] Failed to cache latest reading: %v", err)
	}
}

func (r *Reconciler) cachedLatest(ctx context.Context) *models.SensorReading {
	if r.cache == nil {
		return nil
	}
	data, err := r.cache.Get(ctx, latestReadingCacheKey+r.cfg.DeviceID).Bytes()
	if err != nil {
		return nil
	}
	reading := &models.SensorReading{}
	if err := json.Unmarshal(data, reading); err != nil {
		return nil
	}
	return reading
}
