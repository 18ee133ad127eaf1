package gpio

import "time"

// Button identifies one of the two push buttons.
type Button string

const (
	ButtonStart Button = "START"
	ButtonAbort Button = "ABORT"
)

// buttonState tracks debounce state for a single button.
type buttonState struct {
	stable       bool // debounced: true = held
	pending      bool
	pendingSince time.Time
	hasPending   bool
	baselined    bool
}

// PressDetector turns raw button samples into debounced presses.
// A press fires once, when a button settles into the held state. Nothing is
// reported until both buttons have been stable for the debounce period, so a
// button held during startup does not trigger an action.
type PressDetector struct {
	debounce time.Duration
	start    buttonState
	abort    buttonState
}

// NewPressDetector creates a detector with the given debounce duration.
func NewPressDetector(debounce time.Duration) *PressDetector {
	return &PressDetector{debounce: debounce}
}

// Process takes one sample and returns the buttons that were pressed.
// When both settle in the same sample, start is reported first.
func (d *PressDetector) Process(s Sample, now time.Time) []Button {
	startPressed := d.update(&d.start, s.Start, now)
	abortPressed := d.update(&d.abort, s.Abort, now)

	if !d.Baselined() {
		return nil
	}

	var out []Button
	if startPressed {
		out = append(out, ButtonStart)
	}
	if abortPressed {
		out = append(out, ButtonAbort)
	}
	return out
}

// Baselined reports whether both buttons have settled since startup.
func (d *PressDetector) Baselined() bool {
	return d.start.baselined && d.abort.baselined
}

// update applies one sample to b and reports a released-to-held transition.
func (d *PressDetector) update(b *buttonState, held bool, now time.Time) bool {
	if b.baselined && held == b.stable {
		b.hasPending = false
		return false
	}

	if !b.hasPending || b.pending != held {
		b.pending = held
		b.pendingSince = now
		b.hasPending = true
		if d.debounce > 0 {
			return false
		}
	}

	if now.Sub(b.pendingSince) < d.debounce {
		return false
	}

	b.hasPending = false
	if !b.baselined {
		b.baselined = true
		b.stable = held
		return false
	}
	b.stable = held
	return held
}
