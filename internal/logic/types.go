// Package logic contains the focus-timer state machine.
// This package has NO external dependencies (no MQTT, GPIO, OS, or clock).
// Time only advances when the caller invokes Tick, once per elapsed second.
package logic

import "errors"

// Phase is the current state-machine state of a Timer.
type Phase string

const (
	PhaseIdle         Phase = "IDLE"
	PhaseChunkActive  Phase = "CHUNK_ACTIVE"
	PhaseChunkBreak   Phase = "CHUNK_BREAK"
	PhaseNeutralReset Phase = "NEUTRAL_RESET"
)

// Phases lists every phase in display order.
var Phases = []Phase{PhaseIdle, PhaseChunkActive, PhaseChunkBreak, PhaseNeutralReset}

// Feedback is the category of user feedback a transition asks for.
// The presentation layer decides how to render it (haptics, LED, sound).
type Feedback string

const (
	FeedbackMedium  Feedback = "MEDIUM"
	FeedbackSuccess Feedback = "SUCCESS"
	FeedbackWarning Feedback = "WARNING"
)

// EventType identifies which transition produced an Event.
type EventType string

const (
	EventBlockStarted      EventType = "BLOCK_STARTED"
	EventChunkCompleted    EventType = "CHUNK_COMPLETED"
	EventBreakCompleted    EventType = "BREAK_COMPLETED"
	EventBlockCompleted    EventType = "BLOCK_COMPLETED"
	EventBlockAborted      EventType = "BLOCK_ABORTED"
	EventCooldownCompleted EventType = "COOLDOWN_COMPLETED"
)

// Event describes one phase change. State fields reflect the timer after
// the transition was applied.
type Event struct {
	Type             EventType
	From             Phase
	To               Phase
	Feedback         Feedback
	Chunk            int
	TotalChunks      int
	SecondsRemaining int
}

// ErrInvalidConfig is returned when a configuration value is out of range.
var ErrInvalidConfig = errors.New("invalid timer configuration")

// Config holds the user-facing timer settings. All durations are seconds.
type Config struct {
	BlockDuration int // total work time, > 0
	TotalChunks   int // 0 = whole block is one chunk
	BreakDuration int // pause between chunks, >= 0
	ResetDuration int // cooldown after a block ends or is aborted, > 0
}

// DefaultConfig returns the stock 35 minute block with a 15 minute cooldown.
func DefaultConfig() Config {
	return Config{
		BlockDuration: 2100,
		TotalChunks:   0,
		BreakDuration: 120,
		ResetDuration: 900,
	}
}

// TestConfig returns short durations for trying the timer out by hand.
func TestConfig() Config {
	return Config{
		BlockDuration: 20,
		TotalChunks:   2,
		BreakDuration: 5,
		ResetDuration: 10,
	}
}

// State is a point-in-time view of a Timer. It is a value type.
type State struct {
	Phase            Phase
	SecondsRemaining int
	// CurrentChunk is 1-indexed. It is kept through the break that follows a
	// chunk and cleared in Idle and NeutralReset.
	CurrentChunk  int
	TotalChunks   int
	ChunkDuration int
}

// Counts tracks the number of each transition since the timer was created.
type Counts struct {
	BlocksStarted      int
	BlocksCompleted    int
	BlocksAborted      int
	ChunksCompleted    int
	CooldownsCompleted int
}
