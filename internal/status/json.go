package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/focus-timer/internal/display"
	"github.com/sweeney/focus-timer/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event            string      `json:"event,omitempty"`
	Reason           string      `json:"reason,omitempty"`
	Phase            string      `json:"phase"`
	Label            string      `json:"label"`
	SecondsRemaining int         `json:"seconds_remaining"`
	Remaining        string      `json:"remaining"`
	Chunk            int         `json:"chunk"`
	TotalChunks      int         `json:"total_chunks"`
	ChunkLabel       string      `json:"chunk_label,omitempty"`
	BlockID          string      `json:"block_id,omitempty"`
	Actions          ActionsJSON `json:"actions"`
	Next             NextJSON    `json:"next_block"`
	UptimeSeconds    int64       `json:"uptime_seconds"`
	StartTime        string      `json:"start_time"`
	Timestamp        string      `json:"timestamp"`
	MQTT             MQTTStatus  `json:"mqtt"`
	Counts           CountsJSON  `json:"counts"`
	Config           ConfigJSON  `json:"config"`
}

// ActionsJSON lists the actions accepted in the current phase.
type ActionsJSON struct {
	Start bool `json:"start"`
	Abort bool `json:"abort"`
}

// NextJSON is the configuration the next start will use.
type NextJSON struct {
	BlockSeconds int `json:"block_seconds"`
	Chunks       int `json:"chunks"`
	BreakSeconds int `json:"break_seconds"`
	ResetSeconds int `json:"reset_seconds"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Buffered  int    `json:"buffered"`
}

// CountsJSON is the JSON representation of transition counts.
type CountsJSON struct {
	BlocksStarted      int `json:"blocks_started"`
	BlocksCompleted    int `json:"blocks_completed"`
	BlocksAborted      int `json:"blocks_aborted"`
	ChunksCompleted    int `json:"chunks_completed"`
	CooldownsCompleted int `json:"cooldowns_completed"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	TopicPrefix string `json:"topic_prefix"`
	HTTPAddr    string `json:"http_addr"`
	Buttons     bool   `json:"buttons"`
}

func buildInner(snap Snapshot) StatusInner {
	ts := snap.Timer
	return StatusInner{
		Phase:            string(ts.Phase),
		Label:            display.Label(ts.Phase),
		SecondsRemaining: ts.SecondsRemaining,
		Remaining:        display.FormatTime(ts.SecondsRemaining),
		Chunk:            ts.CurrentChunk,
		TotalChunks:      ts.TotalChunks,
		ChunkLabel:       display.ChunkLabel(ts),
		BlockID:          snap.BlockID,
		Actions: ActionsJSON{
			Start: logic.CanStart(ts),
			Abort: logic.CanAbort(ts),
		},
		Next: NextJSON{
			BlockSeconds: snap.Next.BlockDuration,
			Chunks:       snap.Next.TotalChunks,
			BreakSeconds: snap.Next.BreakDuration,
			ResetSeconds: snap.Next.ResetDuration,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker, Buffered: snap.MQTTBuffered},
		Counts: CountsJSON{
			BlocksStarted:      snap.Counts.BlocksStarted,
			BlocksCompleted:    snap.Counts.BlocksCompleted,
			BlocksAborted:      snap.Counts.BlocksAborted,
			ChunksCompleted:    snap.Counts.ChunksCompleted,
			CooldownsCompleted: snap.Counts.CooldownsCompleted,
		},
		Config: ConfigJSON{
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			TopicPrefix: snap.Config.TopicPrefix,
			HTTPAddr:    snap.Config.HTTPAddr,
			Buttons:     snap.Config.Buttons,
		},
	}
}

// Build returns the status envelope for snap.
func Build(snap Snapshot) StatusJSON {
	return StatusJSON{Status: buildInner(snap)}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(Build(snap), "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
