package internal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/focus-timer/internal/control"
	"github.com/sweeney/focus-timer/internal/gpio"
	"github.com/sweeney/focus-timer/internal/logic"
	"github.com/sweeney/focus-timer/internal/mqtt"
	"github.com/sweeney/focus-timer/internal/status"
)

// TestIntegrationButtonToMQTT drives the timer from button samples through
// to MQTT payloads using fakes.
func TestIntegrationButtonToMQTT(t *testing.T) {
	samples := []gpio.Sample{
		{}, {}, {}, {}, // baseline
		{Start: true}, {Start: true}, {Start: true}, {Start: true}, // start press
		{}, {}, {}, {},
	}

	reader := gpio.NewFakeReader(samples)
	publisher := mqtt.NewFakePublisher()
	presses := gpio.NewPressDetector(250 * time.Millisecond)
	timer, err := logic.New(logic.TestConfig())
	require.NoError(t, err)

	startTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := startTime
	publish := func(ev logic.Event) {
		require.NoError(t, publisher.Publish(mqtt.TimerEvent{Timestamp: now, BlockID: "b1", Event: ev}))
	}

	for i := range samples {
		start, abort, err := reader.Read()
		require.NoError(t, err, "sample %d", i)
		now = startTime.Add(time.Duration(i) * 100 * time.Millisecond)

		for _, b := range presses.Process(gpio.Sample{Start: start, Abort: abort}, now) {
			require.Equal(t, gpio.ButtonStart, b)
			if _, ev, ok := control.Apply(timer, control.Command{Kind: control.KindStart, Source: "button"}); ok {
				publish(ev)
			}
		}
	}
	require.Equal(t, logic.PhaseChunkActive, timer.State().Phase)

	// One second per tick until the timer is idle again.
	for ticks := 0; logic.Ticking(timer.State().Phase); ticks++ {
		require.Less(t, ticks, 100, "timer never returned to idle")
		now = now.Add(time.Second)
		if ev, ok := timer.Tick(); ok {
			publish(ev)
		}
	}

	require.Len(t, publisher.Payloads, 5)
	want := []struct {
		event, phase, label, feedback, remaining string
		chunk                                    int
	}{
		{"BLOCK_STARTED", "CHUNK_ACTIVE", "Working", "MEDIUM", "00:10", 1},
		{"CHUNK_COMPLETED", "CHUNK_BREAK", "Chunk Break", "SUCCESS", "00:05", 1},
		{"BREAK_COMPLETED", "CHUNK_ACTIVE", "Working", "MEDIUM", "00:10", 2},
		{"BLOCK_COMPLETED", "NEUTRAL_RESET", "Cooldown Period", "SUCCESS", "00:10", 0},
		{"COOLDOWN_COMPLETED", "IDLE", "Configure Block", "SUCCESS", "00:00", 0},
	}
	for i, w := range want {
		var p mqtt.Payload
		require.NoError(t, json.Unmarshal(publisher.Payloads[i], &p), "payload %d", i)
		assert.Equal(t, w.event, p.Timer.Event, "payload %d", i)
		assert.Equal(t, w.phase, p.Timer.Phase, "payload %d", i)
		assert.Equal(t, w.label, p.Timer.Label, "payload %d", i)
		assert.Equal(t, w.feedback, p.Timer.Feedback, "payload %d", i)
		assert.Equal(t, w.remaining, p.Timer.Remaining, "payload %d", i)
		assert.Equal(t, w.chunk, p.Timer.Chunk, "payload %d", i)
		assert.Equal(t, "b1", p.Timer.BlockID)
	}
}

// TestIntegrationMQTTCommandToStatus applies a command received over MQTT
// and checks the status JSON served over HTTP.
func TestIntegrationMQTTCommandToStatus(t *testing.T) {
	timer, err := logic.New(logic.DefaultConfig())
	require.NoError(t, err)

	cmd, err := mqtt.ParseCommand([]byte(`{"action":"start","block_minutes":"25","chunks":"5","break_minutes":"1"}`))
	require.NoError(t, err)
	res, ev, ok := control.Apply(timer, cmd)
	require.True(t, ok)
	require.True(t, res.Applied)
	assert.Equal(t, logic.EventBlockStarted, ev.Type)

	tr := status.NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), status.Config{})
	tr.Update(timer.State(), timer.Config(), timer.Counts())

	var sj status.StatusJSON
	require.NoError(t, json.Unmarshal(status.FormatJSON(tr.Snapshot()), &sj))
	assert.Equal(t, "CHUNK_ACTIVE", sj.Status.Phase)
	assert.Equal(t, "05:00", sj.Status.Remaining)
	assert.Equal(t, "Chunk 1 of 5", sj.Status.ChunkLabel)
	assert.Equal(t, status.ActionsJSON{Abort: true}, sj.Status.Actions)
	assert.Equal(t, 1500, sj.Status.Next.BlockSeconds)
}

// TestIntegrationConfigValidation checks that invalid settings never reach
// the timer and leave its configuration untouched.
func TestIntegrationConfigValidation(t *testing.T) {
	timer, err := logic.New(logic.TestConfig())
	require.NoError(t, err)

	_, err = control.ParseMinutes("1", "120", "0")
	require.NoError(t, err, "text parses")

	res, _, ok := control.Apply(timer, control.Command{Kind: control.KindConfigureStart, Block: 60, Chunks: 120})
	assert.False(t, ok)
	assert.ErrorIs(t, res.Err, logic.ErrInvalidConfig)
	assert.Equal(t, logic.TestConfig(), timer.Config())
	assert.Equal(t, logic.PhaseIdle, timer.State().Phase)
}
