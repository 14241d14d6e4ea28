// FilePath: internal/reconcile/tracker.go
package reconcile

import (
	"sync"

	"github.com/ralphtiongco19/mushroom-hub/internal/models"
)

// Outcome is the terminal result of awaiting a command. Unconfirmed
// means the device never reported back within the bounded wait; the
// command row is still queryable and may yet complete.
type Outcome struct {
	CommandID   string               `json:"command_id"`
	Status      models.CommandStatus `json:"status"`
	Detail      string               `json:"detail,omitempty"`
	Unconfirmed bool                 `json:"unconfirmed"`
}

// tracker fans device-reported terminal statuses out to awaiting
// callers. Delivery is best-effort: a caller that already gave up
// simply never receives, and the command table remains the fallback.
type tracker struct {
	mu      sync.Mutex
	waiters map[string][]chan Outcome
}

func newTracker() *tracker {
	return &tracker{waiters: make(map[string][]chan Outcome)}
}

func (t *tracker) register(commandID string) chan Outcome {
	ch := make(chan Outcome, 1)
	t.mu.Lock()
	t.waiters[commandID] = append(t.waiters[commandID], ch)
	t.mu.Unlock()
	return ch
}

func (t *tracker) unregister(commandID string, ch chan Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	waiters := t.waiters[commandID]
	for i, w := range waiters {
		if w == ch {
			t.waiters[commandID] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(t.waiters[commandID]) == 0 {
		delete(t.waiters, commandID)
	}
}

func (t *tracker) resolve(outcome Outcome) {
	t.mu.Lock()
	waiters := t.waiters[outcome.CommandID]
	delete(t.waiters, outcome.CommandID)
	t.mu.Unlock()

	for _, ch := range waiters {
		ch <- outcome // buffered, never blocks
	}
}
