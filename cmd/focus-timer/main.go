// Command focus-timer runs a chunked focus-block timer, controlled from a web
// page, MQTT or GPIO push buttons, and publishes its transitions to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/focus-timer/internal/config"
	"github.com/sweeney/focus-timer/internal/control"
	"github.com/sweeney/focus-timer/internal/gpio"
	"github.com/sweeney/focus-timer/internal/logic"
	"github.com/sweeney/focus-timer/internal/mqtt"
	"github.com/sweeney/focus-timer/internal/status"
	"github.com/sweeney/focus-timer/internal/web"
)

// options holds the parsed command line. set records which flags were given
// explicitly; only those override the config file.
type options struct {
	configPath  string
	broker      string
	httpAddr    string
	heartbeat   time.Duration
	buttons     bool
	pinStart    int
	pinAbort    int
	debounce    time.Duration
	poll        time.Duration
	testProfile bool
	printConfig bool
	writeConfig string

	set map[string]bool
}

// tickInterval is the countdown resolution. logic.Timer counts in seconds.
const tickInterval = time.Second

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	def := config.Default()
	var o options
	fs.StringVar(&o.configPath, "config", "/etc/focus-timer/config.yaml", "YAML config file (missing file uses defaults)")
	fs.StringVar(&o.broker, "broker", def.MQTT.Broker, "MQTT broker address (empty disables MQTT)")
	fs.StringVar(&o.httpAddr, "http", def.HTTP.Addr, "HTTP address (empty disables the web UI)")
	fs.DurationVar(&o.heartbeat, "heartbeat", def.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.BoolVar(&o.buttons, "buttons", def.GPIO.Enabled, "Read start/abort push buttons from GPIO")
	fs.IntVar(&o.pinStart, "pin-start", gpio.DefaultPinStart, "BCM pin number for the start button")
	fs.IntVar(&o.pinAbort, "pin-abort", gpio.DefaultPinAbort, "BCM pin number for the abort button")
	fs.DurationVar(&o.debounce, "button-debounce", def.GPIO.Debounce, "Button debounce duration")
	fs.DurationVar(&o.poll, "button-poll", def.GPIO.Poll, "Button polling interval")
	fs.BoolVar(&o.testProfile, "test-profile", false, "Use short timer durations for trying things out")
	fs.BoolVar(&o.printConfig, "print-config", false, "Print the effective config and exit")
	fs.StringVar(&o.writeConfig, "write-config", "", "Write the effective config to this file and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	o.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// apply overlays explicitly set flags on cfg.
func (o options) apply(cfg config.Config) (config.Config, error) {
	if o.set["broker"] {
		cfg.MQTT.Broker = o.broker
	}
	if o.set["http"] {
		cfg.HTTP.Addr = o.httpAddr
	}
	if o.set["heartbeat"] {
		cfg.Heartbeat = o.heartbeat
	}
	if o.set["buttons"] {
		cfg.GPIO.Enabled = o.buttons
	}
	if o.set["pin-start"] {
		cfg.GPIO.PinStart = o.pinStart
	}
	if o.set["pin-abort"] {
		cfg.GPIO.PinAbort = o.pinAbort
	}
	if o.set["button-debounce"] {
		cfg.GPIO.Debounce = o.debounce
	}
	if o.set["button-poll"] {
		cfg.GPIO.Poll = o.poll
	}
	if o.testProfile {
		cfg.Timer = config.TestProfile()
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	opts, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if err := run(opts, os.Stdout); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(opts options, stdout io.Writer) error {
	fileCfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg, err := opts.apply(fileCfg)
	if err != nil {
		return fmt.Errorf("apply flags: %w", err)
	}

	if opts.printConfig {
		data, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	}
	if opts.writeConfig != "" {
		if err := config.Save(opts.writeConfig, cfg); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		slog.Info("config written", "path", opts.writeConfig)
		return nil
	}

	timerCfg, err := cfg.Timer.Logic()
	if err != nil {
		return fmt.Errorf("timer config: %w", err)
	}
	timer, err := logic.New(timerCfg)
	if err != nil {
		return fmt.Errorf("init timer: %w", err)
	}

	var btn *buttons
	if cfg.GPIO.Enabled {
		reader, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.GPIO.PinStart, cfg.GPIO.PinAbort)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer reader.Close()

		pollTicker := time.NewTicker(cfg.GPIO.Poll)
		defer pollTicker.Stop()
		btn = &buttons{
			reader:   reader,
			detector: gpio.NewPressDetector(cfg.GPIO.Debounce),
			poll:     pollTicker.C,
		}
	}

	bus := control.NewBus(16)

	var (
		publisher  = mqtt.Discard
		mqttStatus mqtt.ConnectionStatus
	)
	if cfg.MQTT.Broker != "" {
		rp, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			BufferSize:  cfg.MQTT.BufferSize,
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer rp.Close()
		rp.SubscribeCommands(func(cmd control.Command) {
			if !bus.Post(cmd) {
				slog.Warn("command queue full, dropping", "component", "mqtt", "kind", cmd.Kind)
			}
		})
		publisher, mqttStatus = rp, rp
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		HTTPAddr:    cfg.HTTP.Addr,
		Buttons:     cfg.GPIO.Enabled,
	})
	tracker.Update(timer.State(), timer.Config(), timer.Counts())
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
		tracker.SetMQTTBuffered(mqttStatus.Buffered())
	}

	snap := tracker.Snapshot()
	err = publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	})
	if err != nil {
		slog.Warn("failed to publish startup event", "error", err)
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, bus, web.Options{
			RateLimit: cfg.HTTP.RateLimit,
			RateBurst: cfg.HTTP.RateBurst,
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		slog.Info("http server listening", "addr", cfg.HTTP.Addr)
	}

	slog.Info("started",
		"block", cfg.Timer.Block, "chunks", cfg.Timer.Chunks, "break", cfg.Timer.Break, "reset", cfg.Timer.Reset,
		"broker", cfg.MQTT.Broker, "buttons", cfg.GPIO.Enabled, "heartbeat", cfg.Heartbeat)

	l := newLoop(timer, bus, publisher, tracker, newTickerMetronome(tickInterval))
	l.mqttStatus = mqttStatus
	l.buttons = btn
	if cfg.Heartbeat > 0 {
		hb := time.NewTicker(cfg.Heartbeat)
		defer hb.Stop()
		l.heartbeat = hb.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return l.runLoop(sigCh)
}
