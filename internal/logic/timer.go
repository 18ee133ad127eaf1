package logic

import "fmt"

// Timer owns the focus-timer state and all transition rules.
// Not safe for concurrent use: exactly one goroutine drives a Timer.
type Timer struct {
	cfg    Config // applies to the next Start
	active Config // captured at Start, used for the running block
	state  State
	counts Counts
}

// New creates an idle Timer with the given configuration.
func New(cfg Config) (*Timer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Timer{cfg: cfg, active: cfg}
	t.state = State{Phase: PhaseIdle, TotalChunks: cfg.TotalChunks}
	return t, nil
}

// Validate reports whether every field is within range.
func (c Config) Validate() error {
	if c.BlockDuration <= 0 {
		return fmt.Errorf("%w: block duration %d must be positive", ErrInvalidConfig, c.BlockDuration)
	}
	if c.TotalChunks < 0 {
		return fmt.Errorf("%w: chunk count %d must not be negative", ErrInvalidConfig, c.TotalChunks)
	}
	if c.TotalChunks > c.BlockDuration {
		return fmt.Errorf("%w: %d chunks do not fit in %ds", ErrInvalidConfig, c.TotalChunks, c.BlockDuration)
	}
	if c.BreakDuration < 0 {
		return fmt.Errorf("%w: break duration %d must not be negative", ErrInvalidConfig, c.BreakDuration)
	}
	if c.ResetDuration <= 0 {
		return fmt.Errorf("%w: reset duration %d must be positive", ErrInvalidConfig, c.ResetDuration)
	}
	return nil
}

// SetConfiguration stores the block settings used by the next Start.
// It may be called in any phase; a running block keeps its own copy.
// On error the stored configuration is unchanged.
func (t *Timer) SetConfiguration(blockDuration, totalChunks, breakDuration int) error {
	next := t.cfg
	next.BlockDuration = blockDuration
	next.TotalChunks = totalChunks
	next.BreakDuration = breakDuration
	if err := next.Validate(); err != nil {
		return err
	}
	t.cfg = next
	if t.state.Phase == PhaseIdle {
		t.state.TotalChunks = totalChunks
	}
	return nil
}

// Start begins a block. It returns false and changes nothing unless the
// timer is idle.
func (t *Timer) Start() (Event, bool) {
	if !CanStart(t.state) {
		return Event{}, false
	}
	t.active = t.cfg
	chunkDuration := ChunkDurationFor(t.active)
	from := t.state.Phase
	t.state = State{
		Phase:            PhaseChunkActive,
		SecondsRemaining: chunkDuration,
		CurrentChunk:     1,
		TotalChunks:      t.active.TotalChunks,
		ChunkDuration:    chunkDuration,
	}
	t.counts.BlocksStarted++
	return t.event(EventBlockStarted, from, FeedbackMedium), true
}

// Abort ends the current chunk early. The timer still enters the cooldown.
// It returns false and changes nothing unless a chunk is active.
func (t *Timer) Abort() (Event, bool) {
	if !CanAbort(t.state) {
		return Event{}, false
	}
	from := t.state.Phase
	t.enterReset()
	t.counts.BlocksAborted++
	return t.event(EventBlockAborted, from, FeedbackWarning), true
}

// Tick advances the countdown by one second. When the countdown runs out,
// exactly one transition is applied and its event is returned with true.
// Tick on an idle timer does nothing.
func (t *Timer) Tick() (Event, bool) {
	if !Ticking(t.state.Phase) {
		return Event{}, false
	}

	next := t.state.SecondsRemaining - 1
	if next > 0 {
		t.state.SecondsRemaining = next
		return Event{}, false
	}

	from := t.state.Phase
	switch from {
	case PhaseChunkActive:
		t.counts.ChunksCompleted++
		if IsLastChunk(t.state) {
			t.enterReset()
			t.counts.BlocksCompleted++
			return t.event(EventBlockCompleted, from, FeedbackSuccess), true
		}
		t.state.Phase = PhaseChunkBreak
		t.state.SecondsRemaining = t.active.BreakDuration
		return t.event(EventChunkCompleted, from, FeedbackSuccess), true

	case PhaseChunkBreak:
		t.state.Phase = PhaseChunkActive
		t.state.CurrentChunk++
		t.state.SecondsRemaining = t.state.ChunkDuration
		return t.event(EventBreakCompleted, from, FeedbackMedium), true

	case PhaseNeutralReset:
		t.state = State{Phase: PhaseIdle, TotalChunks: t.cfg.TotalChunks}
		t.counts.CooldownsCompleted++
		return t.event(EventCooldownCompleted, from, FeedbackSuccess), true
	}
	return Event{}, false
}

// State returns a copy of the current run state.
func (t *Timer) State() State {
	return t.state
}

// Config returns the configuration that the next Start will use.
func (t *Timer) Config() Config {
	return t.cfg
}

// Counts returns a copy of the transition counters.
func (t *Timer) Counts() Counts {
	return t.counts
}

func (t *Timer) enterReset() {
	t.state.Phase = PhaseNeutralReset
	t.state.SecondsRemaining = t.active.ResetDuration
	t.state.CurrentChunk = 0
}

func (t *Timer) event(typ EventType, from Phase, fb Feedback) Event {
	return Event{
		Type:             typ,
		From:             from,
		To:               t.state.Phase,
		Feedback:         fb,
		Chunk:            t.state.CurrentChunk,
		TotalChunks:      t.state.TotalChunks,
		SecondsRemaining: t.state.SecondsRemaining,
	}
}
