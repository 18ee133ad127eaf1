// Package mqtt publishes timer events over MQTT and accepts remote commands,
// with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/focus-timer/internal/control"
	"github.com/sweeney/focus-timer/internal/display"
	"github.com/sweeney/focus-timer/internal/logic"
)

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "focus/timer"

// Topics holds the three topics derived from a prefix.
type Topics struct {
	Events  string
	System  string
	Command string
}

// TopicsFor derives the event, system and command topics from prefix.
func TopicsFor(prefix string) Topics {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{
		Events:  prefix + "/events",
		System:  prefix + "/system",
		Command: prefix + "/command",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a timer transition to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event TimerEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active and how
// many messages are held back until it is.
type ConnectionStatus interface {
	IsConnected() bool
	Buffered() int
}

// TimerEvent is a transition stamped with wall-clock time and the id of the
// block it belongs to.
type TimerEvent struct {
	Timestamp time.Time
	BlockID   string
	logic.Event
}

// SystemEvent represents a daemon lifecycle event (startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g. "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g. "SIGTERM" (shutdown only)
	RawPayload []byte // pre-formatted JSON; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Payload is the JSON envelope for a timer event.
type Payload struct {
	Timer TimerPayload `json:"timer"`
}

// TimerPayload contains the transition details.
type TimerPayload struct {
	Timestamp        string `json:"timestamp"`
	Event            string `json:"event"`
	BlockID          string `json:"block_id,omitempty"`
	From             string `json:"from"`
	Phase            string `json:"phase"`
	Label            string `json:"label"`
	Feedback         string `json:"feedback"`
	Chunk            int    `json:"chunk"`
	TotalChunks      int    `json:"total_chunks"`
	SecondsRemaining int    `json:"seconds_remaining"`
	Remaining        string `json:"remaining"`
}

// FormatPayload creates the JSON payload for a timer event.
func FormatPayload(event TimerEvent) ([]byte, error) {
	return json.Marshal(Payload{
		Timer: TimerPayload{
			Timestamp:        event.Timestamp.UTC().Format(time.RFC3339),
			Event:            string(event.Type),
			BlockID:          event.BlockID,
			From:             string(event.From),
			Phase:            string(event.To),
			Label:            display.Label(event.To),
			Feedback:         string(event.Feedback),
			Chunk:            event.Chunk,
			TotalChunks:      event.TotalChunks,
			SecondsRemaining: event.SecondsRemaining,
			Remaining:        display.FormatTime(event.SecondsRemaining),
		},
	})
}

// SystemPayload is the JSON envelope for simple system events (LWT,
// RECONNECTED) that carry no status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}

// CommandPayload is the JSON accepted on the command topic. Minute and chunk
// fields are strings, as typed into a form.
type CommandPayload struct {
	Action       string `json:"action"`
	BlockMinutes string `json:"block_minutes,omitempty"`
	Chunks       string `json:"chunks,omitempty"`
	BreakMinutes string `json:"break_minutes,omitempty"`
}

// ParseCommand decodes a command message. "configure" and "start" with
// minute fields set carry a configuration; a bare "start" reuses the
// current one.
func ParseCommand(data []byte) (control.Command, error) {
	var p CommandPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return control.Command{}, fmt.Errorf("%w: decode command: %v", control.ErrBadInput, err)
	}

	withConfig := p.BlockMinutes != "" || p.Chunks != "" || p.BreakMinutes != ""
	switch control.Kind(p.Action) {
	case control.KindAbort:
		return control.Command{Kind: control.KindAbort, Source: "mqtt"}, nil
	case control.KindStart:
		if !withConfig {
			return control.Command{Kind: control.KindStart, Source: "mqtt"}, nil
		}
		cmd, err := control.ParseMinutes(p.BlockMinutes, p.Chunks, p.BreakMinutes)
		if err != nil {
			return control.Command{}, err
		}
		cmd.Kind = control.KindConfigureStart
		cmd.Source = "mqtt"
		return cmd, nil
	case control.KindConfigure:
		cmd, err := control.ParseMinutes(p.BlockMinutes, p.Chunks, p.BreakMinutes)
		if err != nil {
			return control.Command{}, err
		}
		cmd.Source = "mqtt"
		return cmd, nil
	}
	return control.Command{}, fmt.Errorf("%w: unknown action %q", control.ErrBadInput, p.Action)
}
