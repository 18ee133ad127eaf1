// Package control carries user actions from any input (HTTP, MQTT, buttons)
// to the single goroutine that owns the timer.
package control

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sweeney/focus-timer/internal/logic"
)

// Kind is the action a Command asks for.
type Kind string

const (
	KindConfigure      Kind = "configure"
	KindStart          Kind = "start"
	KindAbort          Kind = "abort"
	KindConfigureStart Kind = "configure+start"
)

// MaxMinutes bounds minute fields accepted from raw input.
const MaxMinutes = 24 * 60

// ErrBadInput is returned when raw user input cannot be parsed.
var ErrBadInput = errors.New("bad input")

var (
	// ErrNotDelivered means the command never reached the timer's owner.
	ErrNotDelivered = errors.New("command not delivered")

	// ErrPending means the command was queued but no result arrived in time.
	// The owner may still apply it.
	ErrPending = errors.New("command queued, outcome unknown")
)

// Command is one user action. Block and Break are seconds.
type Command struct {
	Kind   Kind
	Block  int
	Chunks int
	Break  int
	Source string // "http", "mqtt", "button"

	reply chan Result
}

// Result reports what a Command did. Applied is false when the action was
// not allowed in the current phase; that is not an error.
type Result struct {
	Applied bool
	State   logic.State
	Err     error
}

// Respond delivers the result to whoever sent the command. It never blocks.
func (c Command) Respond(r Result) {
	if c.reply == nil {
		return
	}
	select {
	case c.reply <- r:
	default:
	}
}

// ParseMinutes builds a configure command from form-style text fields.
// Block and break are whole minutes; chunks is a count.
func ParseMinutes(blockMinutes, chunks, breakMinutes string) (Command, error) {
	block, err := parseField("block minutes", blockMinutes)
	if err != nil {
		return Command{}, err
	}
	n, err := parseField("chunks", chunks)
	if err != nil {
		return Command{}, err
	}
	brk, err := parseField("break minutes", breakMinutes)
	if err != nil {
		return Command{}, err
	}
	if block == 0 {
		return Command{}, fmt.Errorf("%w: block minutes must be positive", ErrBadInput)
	}
	return Command{
		Kind:   KindConfigure,
		Block:  block * 60,
		Chunks: n,
		Break:  brk * 60,
	}, nil
}

func parseField(name, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is empty", ErrBadInput, name)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", ErrBadInput, name, raw)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrBadInput, name)
	}
	if v > MaxMinutes {
		return 0, fmt.Errorf("%w: %s %d exceeds %d", ErrBadInput, name, v, MaxMinutes)
	}
	return v, nil
}

// Apply runs cmd against t. It returns the transition event, if any.
// Configuration errors are reported in Result.Err and leave t unchanged.
func Apply(t *logic.Timer, cmd Command) (Result, logic.Event, bool) {
	var (
		ev logic.Event
		ok bool
	)
	switch cmd.Kind {
	case KindConfigure, KindConfigureStart:
		if err := t.SetConfiguration(cmd.Block, cmd.Chunks, cmd.Break); err != nil {
			return Result{State: t.State(), Err: err}, logic.Event{}, false
		}
		if cmd.Kind == KindConfigure {
			return Result{Applied: true, State: t.State()}, logic.Event{}, false
		}
		ev, ok = t.Start()
	case KindStart:
		ev, ok = t.Start()
	case KindAbort:
		ev, ok = t.Abort()
	default:
		return Result{State: t.State(), Err: fmt.Errorf("%w: unknown action %q", ErrBadInput, cmd.Kind)}, logic.Event{}, false
	}
	return Result{Applied: ok, State: t.State()}, ev, ok
}

// Bus is the queue of commands waiting for the timer's owner.
type Bus struct {
	ch chan Command
}

// NewBus creates a Bus holding up to size pending commands.
func NewBus(size int) *Bus {
	if size <= 0 {
		size = 1
	}
	return &Bus{ch: make(chan Command, size)}
}

// C returns the channel the owner reads commands from.
func (b *Bus) C() <-chan Command {
	return b.ch
}

// Send queues cmd and waits for its result. If ctx ends before cmd is
// queued the error wraps ErrNotDelivered; if it ends after, ErrPending.
// Both also wrap ctx.Err().
func (b *Bus) Send(ctx context.Context, cmd Command) (Result, error) {
	cmd.reply = make(chan Result, 1)
	select {
	case b.ch <- cmd:
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: %w", ErrNotDelivered, ctx.Err())
	}
	select {
	case r := <-cmd.reply:
		return r, nil
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: %w", ErrPending, ctx.Err())
	}
}

// Post queues cmd without waiting for a result. It reports false when the
// queue is full.
func (b *Bus) Post(cmd Command) bool {
	select {
	case b.ch <- cmd:
		return true
	default:
		return false
	}
}
