// Package status provides a thread-safe view of the focus-timer daemon.
// The run loop writes it; HTTP handlers and MQTT heartbeats read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/focus-timer/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	HeartbeatMs int64
	Broker      string
	TopicPrefix string
	HTTPAddr    string
	Buttons     bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Timer         logic.State
	Next          logic.Config // applied by the next start
	Counts        logic.Counts
	BlockID       string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	MQTTBuffered  int // messages waiting for the broker
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Timer:     logic.State{Phase: logic.PhaseIdle},
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update records the timer state. Called from the run loop after every
// command and tick.
func (t *Tracker) Update(state logic.State, next logic.Config, counts logic.Counts) {
	t.mu.Lock()
	t.snap.Timer = state
	t.snap.Next = next
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetBlockID records the id of the running block ("" when idle).
func (t *Tracker) SetBlockID(id string) {
	t.mu.Lock()
	t.snap.BlockID = id
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetMQTTBuffered records how many messages are waiting for the broker.
func (t *Tracker) SetMQTTBuffered(n int) {
	t.mu.Lock()
	t.snap.MQTTBuffered = n
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
