// FilePath: internal/reconcile/reconciler_test.go
package reconcile

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/ralphtiongco19/mushroom-hub/internal/database"
	"github.com/ralphtiongco19/mushroom-hub/internal/models"
	"github.com/ralphtiongco19/mushroom-hub/internal/realtime"
	"github.com/ralphtiongco19/mushroom-hub/internal/repository"
)

// fakeChannel lets tests inject broker messages synchronously.
type fakeChannel struct {
	mu       sync.Mutex
	handlers map[string]func(topic string, payload []byte)
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[string]func(topic string, payload []byte))}
}

func (f *fakeChannel) Publish(topic string, payload interface{}) error { return nil }

func (f *fakeChannel) Subscribe(topic string, handler func(topic string, payload []byte)) (realtime.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return noopSubscription{}, nil
}

func (f *fakeChannel) Connected() bool { return true }

func (f *fakeChannel) inject(t *testing.T, topic string, message interface{}) {
	t.Helper()
	f.mu.Lock()
	handler := f.handlers[topic]
	f.mu.Unlock()
	if handler == nil {
		t.Fatalf("no subscriber on %s", topic)
	}
	data, err := json.Marshal(message)
	if err != nil {
		t.Fatalf("failed to encode message: %v", err)
	}
	handler(topic, data)
}

type noopSubscription struct{}

func (noopSubscription) Close() error { return nil }

type fakeCommandRepo struct {
	mu       sync.Mutex
	commands map[string]*models.Command
}

func newFakeCommandRepo() *fakeCommandRepo {
	return &fakeCommandRepo{commands: make(map[string]*models.Command)}
}

func (f *fakeCommandRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	return nil, stderrors.New("not supported")
}

func (f *fakeCommandRepo) Create(ctx context.Context, cmd *models.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *cmd
	f.commands[cmd.ID] = &copied
	return nil
}

func (f *fakeCommandRepo) Get(ctx context.Context, id string) (*models.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd, ok := f.commands[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *cmd
	return &copied, nil
}

func (f *fakeCommandRepo) GetByIdempotencyKey(ctx context.Context, deviceID, key string) (*models.Command, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeCommandRepo) UpdateStatus(ctx context.Context, id string, next models.CommandStatus, detail string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd, ok := f.commands[id]
	if !ok {
		return repository.ErrNotFound
	}
	if !cmd.Status.CanTransitionTo(next) {
		return repository.ErrInvalidTransition
	}
	cmd.Status = next
	cmd.ErrorDetail = detail
	cmd.UpdatedAt = at
	return nil
}

func (f *fakeCommandRepo) ListByDevice(ctx context.Context, deviceID string, offset, limit int) ([]*models.Command, error) {
	return nil, nil
}

func (f *fakeCommandRepo) ListPending(ctx context.Context, deviceID string) ([]*models.Command, error) {
	return nil, nil
}

func (f *fakeCommandRepo) ListStuckPending(ctx context.Context, olderThan time.Time) ([]*models.Command, error) {
	return nil, nil
}

type fakeReadingRepo struct {
	mu       sync.Mutex
	readings []models.SensorReading
}

func (f *fakeReadingRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	return nil, stderrors.New("not supported")
}

func (f *fakeReadingRepo) Insert(ctx context.Context, reading *models.SensorReading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readings = append(f.readings, *reading)
	return nil
}

func (f *fakeReadingRepo) Latest(ctx context.Context, deviceID string) (*models.SensorReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.SensorReading
	for i := range f.readings {
		r := &f.readings[i]
		if r.DeviceID != deviceID {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeReadingRepo) Range(ctx context.Context, deviceID string, start, end time.Time) ([]models.SensorReading, error) {
	return nil, nil
}

func (f *fakeReadingRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeReadingRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.readings)
}

type fakeDeviceRepo struct {
	mu       sync.Mutex
	statuses map[string]*models.DeviceStatus
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{statuses: make(map[string]*models.DeviceStatus)}
}

func (f *fakeDeviceRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	return nil, stderrors.New("not supported")
}

func (f *fakeDeviceRepo) Get(ctx context.Context, deviceID string) (*models.DeviceStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[deviceID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *status
	return &copied, nil
}

func (f *fakeDeviceRepo) Upsert(ctx context.Context, status *models.DeviceStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *status
	f.statuses[status.DeviceID] = &copied
	return nil
}

func (f *fakeDeviceRepo) List(ctx context.Context) ([]*models.DeviceStatus, error) {
	return nil, nil
}

const testDeviceID = "esp32-main"

func newTestReconciler(t *testing.T, commands *fakeCommandRepo, readings *fakeReadingRepo, timeout time.Duration) (*Reconciler, *fakeChannel, *fakeDeviceRepo) {
	t.Helper()
	if commands == nil {
		commands = newFakeCommandRepo()
	}
	if readings == nil {
		readings = &fakeReadingRepo{}
	}
	devices := newFakeDeviceRepo()
	channel := newFakeChannel()
	r := New(Config{DeviceID: testDeviceID, CommandTimeout: timeout},
		commands, readings, devices, channel, nil, nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(r.Stop)
	return r, channel, devices
}

func pendingCommand(id string) *models.Command {
	now := time.Now()
	return &models.Command{
		ID:        id,
		DeviceID:  testDeviceID,
		Kind:      models.CommandManualMist,
		Payload:   models.JSON{"duration": 30.0},
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestAwaitResolvedByDeviceReport(t *testing.T) {
	commands := newFakeCommandRepo()
	commands.Create(context.Background(), pendingCommand("cmd_1"))
	r, channel, _ := newTestReconciler(t, commands, nil, 2*time.Second)

	done := make(chan Outcome, 1)
	go func() {
		done <- r.Await(context.Background(), "cmd_1")
	}()

	// Give the waiter a moment to register before the device reports.
	time.Sleep(20 * time.Millisecond)
	channel.inject(t, realtime.CommandStatusTopic(testDeviceID), models.CommandStatusUpdate{
		CommandID: "cmd_1",
		DeviceID:  testDeviceID,
		Status:    models.StatusCompleted,
		Timestamp: time.Now(),
	})

	select {
	case outcome := <-done:
		if outcome.Status != models.StatusCompleted {
			t.Errorf("status = %v, want completed", outcome.Status)
		}
		if outcome.Unconfirmed {
			t.Error("confirmed outcome must not be flagged unconfirmed")
		}
	case <-time.After(time.Second):
		t.Fatal("Await did not resolve after the device reported")
	}

	cmd, err := commands.Get(context.Background(), "cmd_1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if cmd.Status != models.StatusCompleted {
		t.Errorf("stored status = %v, want completed", cmd.Status)
	}
}

func TestAwaitBoundedWaitReturnsUnconfirmed(t *testing.T) {
	commands := newFakeCommandRepo()
	commands.Create(context.Background(), pendingCommand("cmd_1"))
	r, _, _ := newTestReconciler(t, commands, nil, 50*time.Millisecond)

	start := time.Now()
	outcome := r.Await(context.Background(), "cmd_1")
	if !outcome.Unconfirmed {
		t.Error("expected an unconfirmed outcome after the bounded wait")
	}
	if outcome.Status != models.StatusPending {
		t.Errorf("status = %v, want pending", outcome.Status)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Await blocked %v, want a bounded wait", elapsed)
	}

	// The row is untouched: unconfirmed is never stored.
	cmd, _ := commands.Get(context.Background(), "cmd_1")
	if cmd.Status != models.StatusPending {
		t.Errorf("stored status = %v, want pending", cmd.Status)
	}
}

func TestAwaitAlreadyTerminal(t *testing.T) {
	commands := newFakeCommandRepo()
	cmd := pendingCommand("cmd_1")
	cmd.Status = models.StatusFailed
	cmd.ErrorDetail = "pump jammed"
	commands.Create(context.Background(), cmd)
	r, _, _ := newTestReconciler(t, commands, nil, 5*time.Second)

	start := time.Now()
	outcome := r.Await(context.Background(), "cmd_1")
	if outcome.Status != models.StatusFailed {
		t.Errorf("status = %v, want failed", outcome.Status)
	}
	if outcome.Detail != "pump jammed" {
		t.Errorf("detail = %q, want the stored error detail", outcome.Detail)
	}
	if time.Since(start) > time.Second {
		t.Error("a terminal command must resolve without waiting")
	}
}

func TestAwaitCanceledContext(t *testing.T) {
	commands := newFakeCommandRepo()
	commands.Create(context.Background(), pendingCommand("cmd_1"))
	r, _, _ := newTestReconciler(t, commands, nil, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := r.Await(ctx, "cmd_1")
	if !outcome.Unconfirmed {
		t.Error("a canceled wait must resolve as unconfirmed")
	}
}

func TestNonMonotonicReportRejected(t *testing.T) {
	commands := newFakeCommandRepo()
	cmd := pendingCommand("cmd_1")
	cmd.Status = models.StatusCompleted
	commands.Create(context.Background(), cmd)
	_, channel, _ := newTestReconciler(t, commands, nil, time.Second)

	// A late in_progress report must not resurrect the terminal row.
	channel.inject(t, realtime.CommandStatusTopic(testDeviceID), models.CommandStatusUpdate{
		CommandID: "cmd_1",
		DeviceID:  testDeviceID,
		Status:    models.StatusInProgress,
		Timestamp: time.Now(),
	})

	stored, _ := commands.Get(context.Background(), "cmd_1")
	if stored.Status != models.StatusCompleted {
		t.Errorf("stored status = %v, want completed to stay terminal", stored.Status)
	}
}

func TestObservePrefersLatestCreatedAt(t *testing.T) {
	r, _, _ := newTestReconciler(t, nil, nil, time.Second)
	now := time.Now()

	newer := &models.SensorReading{ID: "sr_2", DeviceID: testDeviceID, Temperature: 25, Status: models.ReadingStatusOK, CreatedAt: now}
	older := &models.SensorReading{ID: "sr_1", DeviceID: testDeviceID, Temperature: 20, Status: models.ReadingStatusOK, CreatedAt: now.Add(-time.Minute)}

	r.Observe(newer)
	r.Observe(older) // delivered out of order

	current, ok := r.CurrentReading()
	if !ok {
		t.Fatal("expected a current reading")
	}
	if current.ID != "sr_2" {
		t.Errorf("current = %s, want the reading with the latest created_at", current.ID)
	}

	// Re-observing the same row is a no-op.
	r.Observe(newer)
	current, _ = r.CurrentReading()
	if current.ID != "sr_2" {
		t.Errorf("re-observe changed current to %s", current.ID)
	}
}

func TestReadingMessagePersistsAndUpdatesCurrent(t *testing.T) {
	readings := &fakeReadingRepo{}
	r, channel, _ := newTestReconciler(t, nil, readings, time.Second)

	channel.inject(t, realtime.ReadingsTopic(testDeviceID), models.SensorReading{
		ID:          "sr_1",
		DeviceID:    testDeviceID,
		Temperature: 23.5,
		Humidity:    61,
		Status:      models.ReadingStatusOK,
		CreatedAt:   time.Now(),
	})

	if readings.count() != 1 {
		t.Fatalf("persisted %d readings, want 1", readings.count())
	}
	current, ok := r.CurrentReading()
	if !ok || current.Temperature != 23.5 {
		t.Errorf("current reading = %+v, want the injected sample", current)
	}
}

func TestHeartbeatUpsertsDeviceStatus(t *testing.T) {
	_, channel, devices := newTestReconciler(t, nil, nil, time.Second)

	channel.inject(t, realtime.HeartbeatTopic(testDeviceID), models.DeviceStatus{
		DeviceID: testDeviceID,
		LastSeen: time.Now(),
		Detail:   "boot ok",
	})

	status, err := devices.Get(context.Background(), testDeviceID)
	if err != nil {
		t.Fatalf("heartbeat not persisted: %v", err)
	}
	if status.Detail != "boot ok" {
		t.Errorf("detail = %q, want the reported detail", status.Detail)
	}
}

func TestStopSilencesSubscriptions(t *testing.T) {
	readings := &fakeReadingRepo{}
	r, channel, _ := newTestReconciler(t, nil, readings, time.Second)

	r.Stop()
	channel.inject(t, realtime.ReadingsTopic(testDeviceID), models.SensorReading{
		ID:        "sr_late",
		DeviceID:  testDeviceID,
		Status:    models.ReadingStatusOK,
		CreatedAt: time.Now(),
	})

	if readings.count() != 0 {
		t.Errorf("persisted %d readings after Stop, want 0", readings.count())
	}
}

func TestResyncRecoversLatestReading(t *testing.T) {
	readings := &fakeReadingRepo{}
	readings.Insert(context.Background(), &models.SensorReading{
		ID:          "sr_1",
		DeviceID:    testDeviceID,
		Temperature: 21,
		Status:      models.ReadingStatusOK,
		CreatedAt:   time.Now(),
	})

	r, _, _ := newTestReconciler(t, nil, readings, time.Second)

	current, ok := r.CurrentReading()
	if !ok || current.ID != "sr_1" {
		t.Errorf("current after start = %+v, want the persisted reading", current)
	}

	// A reconnect resync must not regress the state.
	r.OnConnect(context.Background())
	current, ok = r.CurrentReading()
	if !ok || current.ID != "sr_1" {
		t.Errorf("current after resync = %+v, want unchanged", current)
	}
}
