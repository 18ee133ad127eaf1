package mqtt

import "sync"

// FakePublisher records published events for test assertions.
// Safe for use from the run loop and a test goroutine at once.
type FakePublisher struct {
	mu sync.Mutex

	// Events contains all timer events that were published.
	Events []TimerEvent

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	// Pending controls the return value of Buffered.
	Pending int
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the timer event.
func (f *FakePublisher) Publish(event TimerEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// SetConnected changes what IsConnected reports.
func (f *FakePublisher) SetConnected(connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Connected = connected
}

// Buffered reports the injected Pending count.
func (f *FakePublisher) Buffered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Pending
}

// SetBuffered changes what Buffered reports.
func (f *FakePublisher) SetBuffered(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pending = n
}

// SetPublishError makes subsequent Publish calls fail with err.
func (f *FakePublisher) SetPublishError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PublishError = err
}

// Published returns a copy of the recorded timer events.
func (f *FakePublisher) Published() []TimerEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TimerEvent(nil), f.Events...)
}

// PublishedSystem returns a copy of the recorded system events.
func (f *FakePublisher) PublishedSystem() []SystemEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SystemEvent(nil), f.SystemEvents...)
}

// Reset clears recorded events and injected errors.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
	f.Pending = 0
}

// Discard is a Publisher that drops everything. It stands in when no broker
// is configured.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(TimerEvent) error        { return nil }
func (discard) PublishSystem(SystemEvent) error { return nil }
func (discard) Close() error                    { return nil }
