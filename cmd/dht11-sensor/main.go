// Command dht11-sensor reads a DHT11 on a GPIO line and publishes temperature
// and humidity to MQTT, Kafka and a local HTTP dashboard.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sweeney/dht11-sensor/internal/config"
	"github.com/sweeney/dht11-sensor/internal/dht"
	"github.com/sweeney/dht11-sensor/internal/gpio"
	"github.com/sweeney/dht11-sensor/internal/kafka"
	"github.com/sweeney/dht11-sensor/internal/logging"
	"github.com/sweeney/dht11-sensor/internal/logic"
	"github.com/sweeney/dht11-sensor/internal/metrics"
	"github.com/sweeney/dht11-sensor/internal/mqtt"
	"github.com/sweeney/dht11-sensor/internal/status"
	"github.com/sweeney/dht11-sensor/internal/web"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(2)
	}
	defer logger.Close()

	if cfg.Once {
		if err := runOnce(cfg, logger.Logger, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to get reading. Try again!")
			logger.Error("read failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// openChip opens the configured GPIO backend. The fake backend is a simulated
// sensor reporting slowly drifting values.
func openChip(cfg config.Config) (gpio.Chip, error) {
	switch cfg.GPIO.Backend {
	case config.BackendCdev:
		return gpio.OpenCdev(cfg.GPIO.Chip)
	case config.BackendPeriph:
		return gpio.OpenPeriph()
	case config.BackendFake:
		chip := gpio.NewFakeChip(nil)
		sim := dht.NewSimulator(dht.SystemClock(), dht.Frame{})
		sim.NextFrame = drift(rand.New(rand.NewSource(time.Now().UnixNano())), 45, 22)
		sim.Attach(chip)
		return chip, nil
	}
	return nil, fmt.Errorf("unknown gpio backend %q", cfg.GPIO.Backend)
}

// drift returns a frame source that random-walks humidity and temperature
// by at most one unit per reading.
func drift(rng *rand.Rand, humidity, temperature int) func() dht.Frame {
	return func() dht.Frame {
		humidity = clamp(humidity+rng.Intn(3)-1, 20, 90)
		temperature = clamp(temperature+rng.Intn(3)-1, 0, 50)
		return dht.EncodeFrame(humidity, temperature)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// runOnce takes one reading, retrying failed attempts up to cfg.Retries
// times, and prints it.
func runOnce(cfg config.Config, logger *slog.Logger, out io.Writer) error {
	chip, err := openChip(cfg)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer chip.Close()

	sensor := dht.New(gpio.NewController(chip, cfg.GPIO.Pin),
		dht.WithTiming(cfg.DHTTiming()),
		dht.WithLogger(logger))

	r, err := readWithRetry(sensor, cfg.Retries, cfg.DHTTiming().MinInterval, time.Sleep)
	if err != nil {
		return err
	}
	printReading(out, r)
	return nil
}

func printReading(out io.Writer, r dht.Reading) {
	fmt.Fprintf(out, "Temp = %.1f°C, Humidity = %.1f%%\n", float64(r.Temperature), float64(r.Humidity))
}

// readWithRetry makes up to attempts reads, pausing between failures so the
// sensor is not restarted faster than it can sample.
func readWithRetry(sensor reader, attempts int, pause time.Duration, sleep func(time.Duration)) (dht.Reading, error) {
	var errs []error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			sleep(pause)
		}
		r, err := sensor.Read()
		if err == nil {
			return r, nil
		}
		errs = append(errs, err)
	}
	return dht.Reading{}, fmt.Errorf("%d attempts failed: %w", attempts, errors.Join(errs...))
}

func run(cfg config.Config, logger *logging.Logger) error {
	log := logger.Logger
	instanceID := uuid.NewString()

	chip, err := openChip(cfg)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer chip.Close()

	m := metrics.New()
	sensor := dht.New(gpio.NewController(chip, cfg.GPIO.Pin),
		dht.WithTiming(cfg.DHTTiming()),
		dht.WithLogger(log.With(slog.String("component", "dht"))),
		dht.WithObserver(m))

	// Initialize MQTT
	var publisher mqtt.Publisher = mqtt.Discard{}
	var mqttStatus mqtt.ConnectionStatus = mqtt.Discard{}
	if cfg.MQTT.Broker != "" {
		mqtt.RouteClientLogs(log)
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID + "-" + instanceID[:8],
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			BufferSize:  cfg.MQTT.BufferSize,
			Logger:      log.With(slog.String("component", "mqtt")),
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher, mqttStatus = p, p
	}
	defer publisher.Close()

	var sinks []readingSink
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := kafka.NewSink(kafka.Options{
			Brokers:    cfg.Kafka.Brokers,
			Topic:      cfg.Kafka.Topic,
			InstanceID: instanceID,
			Logger:     log,
		})
		if err != nil {
			return fmt.Errorf("init kafka: %w", err)
		}
		defer sink.Close()
		// Writes run off the poll loop so a stalled broker cannot delay reads.
		queue := kafka.NewQueue(sink, kafka.DefaultQueueSize, 5*time.Second, log)
		defer queue.Close()
		sinks = append(sinks, queue)
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	startTime := time.Now()
	tracker := status.NewTracker(startTime, instanceID, status.Config{
		Backend:       cfg.GPIO.Backend,
		Pin:           cfg.GPIO.Pin,
		PollMs:        int64(cfg.PollMs),
		MinIntervalMs: int64(cfg.Timing.MinIntervalMs),
		DebounceMs:    int64(cfg.DebounceMs),
		HeartbeatMs:   int64(cfg.HeartbeatMs),
		Thresholds:    cfg.Thresholds(),
		Broker:        cfg.MQTT.Broker,
		HTTPAddr:      cfg.HTTPAddr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetMQTTConnected(mqttStatus.IsConnected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Warn("failed to publish startup event", "err", err)
	}

	// Start HTTP dashboard
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, web.Options{
			Metrics:    m.Handler(),
			AccessLog:  logger.Out,
			StaleAfter: 3 * cfg.Poll(),
			Logger:     log,
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server error", "err", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		log.Info("http dashboard listening", "addr", cfg.HTTPAddr)
	}

	log.Info("started",
		"instance", instanceID,
		"backend", cfg.GPIO.Backend,
		"pin", cfg.GPIO.Pin,
		"poll", cfg.Poll(),
		"debounce", cfg.Debounce(),
		"heartbeat", cfg.Heartbeat(),
		"broker", cfg.MQTT.Broker)

	ticker := time.NewTicker(cfg.Poll())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	detector := logic.NewDetector(cfg.Thresholds(), cfg.Debounce(), startTime)
	return runLoop(sensor, publisher, mqttStatus, sinks, tracker, detector, cfg.Heartbeat(), log, time.Now, ticker.C, sigCh)
}
