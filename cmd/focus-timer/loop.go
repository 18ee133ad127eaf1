package main

import (
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/focus-timer/internal/control"
	"github.com/sweeney/focus-timer/internal/gpio"
	"github.com/sweeney/focus-timer/internal/logic"
	"github.com/sweeney/focus-timer/internal/mqtt"
	"github.com/sweeney/focus-timer/internal/status"
)

// buttons groups the optional push-button input. A nil *buttons disables it.
type buttons struct {
	reader   gpio.Reader
	detector *gpio.PressDetector
	poll     <-chan time.Time
}

// loop is the single owner of the timer. Every input reaches the timer
// through runLoop's goroutine.
type loop struct {
	timer      *logic.Timer
	bus        *control.Bus
	buttons    *buttons
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	metronome  Metronome
	heartbeat  <-chan time.Time
	now        func() time.Time
	newID      func() string

	log     *slog.Logger
	blockID string
}

func newLoop(timer *logic.Timer, bus *control.Bus, publisher mqtt.Publisher, tracker *status.Tracker, metronome Metronome) *loop {
	return &loop{
		timer:     timer,
		bus:       bus,
		publisher: publisher,
		tracker:   tracker,
		metronome: metronome,
		now:       time.Now,
		newID:     uuid.NewString,
		log:       slog.Default().With("component", "runloop"),
	}
}

// runLoop processes commands, countdown ticks, button polls and heartbeats
// until a signal arrives.
func (l *loop) runLoop(sig <-chan os.Signal) error {
	l.sync()

	var poll <-chan time.Time
	if l.buttons != nil {
		poll = l.buttons.poll
	}

	for {
		select {
		case s := <-sig:
			l.shutdown(s)
			return nil

		case cmd := <-l.bus.C():
			cmd.Respond(l.handle(cmd))

		case <-l.metronome.C():
			if ev, ok := l.timer.Tick(); ok {
				l.emit(ev)
			}
			l.cadence()
			l.sync()

		case <-poll:
			l.pollButtons()

		case <-l.heartbeat:
			l.sync()
			snap := l.tracker.Snapshot()
			l.log.Info("heartbeat", "phase", snap.Timer.Phase, "uptime", snap.Uptime().Truncate(time.Second),
				"blocks_started", snap.Counts.BlocksStarted, "blocks_completed", snap.Counts.BlocksCompleted)
			err := l.publisher.PublishSystem(mqtt.SystemEvent{
				Timestamp:  snap.Now,
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			})
			if err != nil {
				l.log.Warn("heartbeat publish failed", "error", err)
			}
		}
	}
}

// handle applies one command and returns what it did.
func (l *loop) handle(cmd control.Command) control.Result {
	res, ev, ok := control.Apply(l.timer, cmd)
	switch {
	case res.Err != nil:
		l.log.Warn("command rejected", "kind", cmd.Kind, "source", cmd.Source, "error", res.Err)
	case !res.Applied:
		l.log.Info("command ignored", "kind", cmd.Kind, "source", cmd.Source, "phase", res.State.Phase)
	default:
		l.log.Info("command applied", "kind", cmd.Kind, "source", cmd.Source)
	}
	if ok {
		l.emit(ev)
	}
	l.cadence()
	l.sync()
	return res
}

func (l *loop) pollButtons() {
	start, abort, err := l.buttons.reader.Read()
	if err != nil {
		l.log.Warn("gpio read failed", "error", err)
		return
	}
	for _, b := range l.buttons.detector.Process(gpio.Sample{Start: start, Abort: abort}, l.now()) {
		kind := control.KindStart
		if b == gpio.ButtonAbort {
			kind = control.KindAbort
		}
		l.handle(control.Command{Kind: kind, Source: "button"})
	}
}

// emit stamps and publishes a transition. A block id lives from
// BLOCK_STARTED until the timer is idle again.
//
// Publishing happens on the loop goroutine. A slow broker delays the next
// tick by up to mqtt.PublishTimeout, and a tick that cannot be delivered
// within the interval is dropped.
func (l *loop) emit(ev logic.Event) {
	if ev.Type == logic.EventBlockStarted {
		l.blockID = l.newID()
	}
	l.log.Info("transition", "event", ev.Type, "from", ev.From, "to", ev.To,
		"feedback", ev.Feedback, "chunk", ev.Chunk, "remaining", ev.SecondsRemaining, "block_id", l.blockID)

	if err := l.publisher.Publish(mqtt.TimerEvent{Timestamp: l.now(), BlockID: l.blockID, Event: ev}); err != nil {
		l.log.Warn("publish failed", "event", ev.Type, "error", err)
	}
	if ev.To == logic.PhaseIdle {
		l.blockID = ""
	}
}

// cadence runs the metronome only while the countdown is live.
func (l *loop) cadence() {
	if logic.Ticking(l.timer.State().Phase) {
		l.metronome.Start()
	} else {
		l.metronome.Stop()
	}
}

// sync copies the timer into the tracker for HTTP and MQTT readers.
func (l *loop) sync() {
	l.tracker.Update(l.timer.State(), l.timer.Config(), l.timer.Counts())
	l.tracker.SetBlockID(l.blockID)
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
		l.tracker.SetMQTTBuffered(l.mqttStatus.Buffered())
	}
}

func (l *loop) shutdown(s os.Signal) {
	l.log.Info("shutting down", "signal", s)
	l.metronome.Stop()

	reason := "UNKNOWN"
	switch s {
	case syscall.SIGINT:
		reason = "SIGINT"
	case syscall.SIGTERM:
		reason = "SIGTERM"
	}

	l.sync()
	snap := l.tracker.Snapshot()
	err := l.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "SHUTDOWN",
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", reason),
	})
	if err != nil {
		l.log.Warn("shutdown publish failed", "error", err)
		return
	}
	l.log.Info("published shutdown event")
}
