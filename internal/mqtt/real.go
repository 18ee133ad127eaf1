package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/focus-timer/internal/control"
)

// PublishTimeout bounds one publish on a live connection. Publishes run on
// the timer's run loop, so it must stay under the tick interval.
const PublishTimeout = 500 * time.Millisecond

// Options configures a RealPublisher.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	BufferSize  int
}

// RealPublisher publishes to an actual MQTT broker. Messages produced while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics
	log    *slog.Logger

	mu     sync.Mutex
	buffer *ringBuffer
	onCmd  func(control.Command)
	everUp bool
}

// NewRealPublisher connects to the broker. If the broker is not reachable
// within the connect timeout the publisher is still returned; paho keeps
// retrying in the background and events are buffered meanwhile.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	if opts.Broker == "" {
		return nil, fmt.Errorf("mqtt: broker address is empty")
	}
	if opts.ClientID == "" {
		opts.ClientID = "focus-timer"
	}

	log := slog.Default().With("component", "mqtt")
	p := &RealPublisher{
		topics: TopicsFor(opts.TopicPrefix),
		log:    log,
		buffer: newRingBuffer(opts.BufferSize, log),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(p.topics.System, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn("connection lost", "error", err)
		})

	p.client = paho.NewClient(co)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Warn("broker not reachable yet, buffering events", "broker", opts.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// onConnect runs on paho's goroutine after every (re)connection.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	pending := p.buffer.drainAll()
	reconnect := p.everUp
	p.everUp = true
	handler := p.onCmd
	p.mu.Unlock()

	if handler != nil {
		p.subscribe(handler)
	}

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		c.Publish(p.topics.System, 1, true, payload)
	}

	for _, m := range pending {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
	if len(pending) > 0 {
		p.log.Info("replayed buffered messages", "count", len(pending))
	}
}

// Publish sends a timer event to the broker.
func (p *RealPublisher) Publish(event TimerEvent) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 1: a missed BLOCK_COMPLETED is worse than a duplicate
	return p.send(p.topics.Events, 1, false, payload)
}

// PublishSystem sends a system lifecycle event to the broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(p.topics.System, 1, event.Retained, payload)
}

func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(PublishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// SubscribeCommands delivers every valid message on the command topic to fn.
// The subscription is restored after each reconnect.
func (p *RealPublisher) SubscribeCommands(fn func(control.Command)) {
	p.mu.Lock()
	p.onCmd = fn
	p.mu.Unlock()
	if p.client.IsConnectionOpen() {
		p.subscribe(fn)
	}
}

func (p *RealPublisher) subscribe(fn func(control.Command)) {
	token := p.client.Subscribe(p.topics.Command, 1, func(_ paho.Client, msg paho.Message) {
		cmd, err := ParseCommand(msg.Payload())
		if err != nil {
			p.log.Warn("ignoring command", "topic", msg.Topic(), "error", err)
			return
		}
		fn(cmd)
	})
	if !token.WaitTimeout(5 * time.Second) {
		p.log.Warn("subscribe timeout", "topic", p.topics.Command)
		return
	}
	if err := token.Error(); err != nil {
		p.log.Warn("subscribe failed", "topic", p.topics.Command, "error", err)
	}
}

// IsConnected reports whether the client currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
