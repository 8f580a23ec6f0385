// Package config loads daemon settings from defaults, an optional JSON file
// and command-line flags, in that order of precedence.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sweeney/dht11-sensor/internal/dht"
	"github.com/sweeney/dht11-sensor/internal/gpio"
	"github.com/sweeney/dht11-sensor/internal/kafka"
	"github.com/sweeney/dht11-sensor/internal/logic"
	"github.com/sweeney/dht11-sensor/internal/mqtt"
)

// GPIO backends.
const (
	BackendCdev   = "cdev"
	BackendPeriph = "periph"
	BackendFake   = "fake"
)

type GPIOConfig struct {
	Backend string `json:"backend"`
	Chip    string `json:"chip"`
	Pin     int    `json:"pin"`
	PullUp  bool   `json:"pull_up"`
}

// TimingConfig holds the protocol calibration constants. Microsecond fields
// map one to one onto dht.Timing.
type TimingConfig struct {
	StabilizeHighUs   int `json:"stabilize_high_us"`
	InitHoldUs        int `json:"init_hold_us"`
	GuardDelayUs      int `json:"guard_delay_us"`
	ResponseTimeoutUs int `json:"response_timeout_us"`
	BitTimeoutUs      int `json:"bit_timeout_us"`
	BitThresholdUs    int `json:"bit_threshold_us"`
	PollIntervalUs    int `json:"poll_interval_us"`
	MinIntervalMs     int `json:"min_interval_ms"`
}

type MQTTConfig struct {
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	TopicPrefix string `json:"topic_prefix"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	BufferSize  int    `json:"buffer_size"`
}

type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

type Config struct {
	GPIO   GPIOConfig   `json:"gpio"`
	Timing TimingConfig `json:"timing"`
	MQTT   MQTTConfig   `json:"mqtt"`
	Kafka  KafkaConfig  `json:"kafka"`

	PollMs          int `json:"poll_ms"`
	DebounceMs      int `json:"debounce_ms"`
	HeartbeatMs     int `json:"heartbeat_ms"`
	TempWarning     int `json:"temperature_warning"`
	HumidityWarning int `json:"humidity_warning"`

	HTTPAddr string `json:"http_addr"`
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	// Once and Retries are command-line only.
	Once    bool `json:"-"`
	Retries int  `json:"-"`
}

func Default() Config {
	t := dht.DefaultTiming()
	th := logic.DefaultThresholds()
	return Config{
		GPIO: GPIOConfig{
			Backend: BackendCdev,
			Chip:    gpio.DefaultChip,
			Pin:     gpio.DefaultPin,
			PullUp:  t.PullUp,
		},
		Timing: TimingConfig{
			StabilizeHighUs:   int(t.StabilizeHigh / time.Microsecond),
			InitHoldUs:        int(t.InitHold / time.Microsecond),
			GuardDelayUs:      int(t.GuardDelay / time.Microsecond),
			ResponseTimeoutUs: int(t.ResponseTimeout / time.Microsecond),
			BitTimeoutUs:      int(t.BitTimeout / time.Microsecond),
			BitThresholdUs:    int(t.BitThreshold / time.Microsecond),
			PollIntervalUs:    int(t.PollInterval / time.Microsecond),
			MinIntervalMs:     int(t.MinInterval / time.Millisecond),
		},
		MQTT: MQTTConfig{
			ClientID:    "dht11-sensor",
			TopicPrefix: mqtt.DefaultTopicPrefix,
			BufferSize:  mqtt.DefaultBufferSize,
		},
		Kafka: KafkaConfig{
			Topic: kafka.DefaultTopic,
		},
		PollMs:          2000,
		DebounceMs:      10000,
		HeartbeatMs:     int((15 * time.Minute) / time.Millisecond),
		TempWarning:     th.Temperature,
		HumidityWarning: th.Humidity,
		HTTPAddr:        ":5000",
		LogLevel:        "info",
		Retries:         15,
	}
}

// binder registers a flag and remembers how to copy its parsed value into a
// Config, so only flags the user actually set override the file.
type binder struct {
	fs    *flag.FlagSet
	apply map[string]func(*Config)
}

func (b *binder) str(name string, field func(*Config) *string, def, usage string) {
	p := b.fs.String(name, def, usage)
	b.apply[name] = func(c *Config) { *field(c) = *p }
}

func (b *binder) num(name string, field func(*Config) *int, def int, usage string) {
	p := b.fs.Int(name, def, usage)
	b.apply[name] = func(c *Config) { *field(c) = *p }
}

func (b *binder) boolean(name string, field func(*Config) *bool, def bool, usage string) {
	p := b.fs.Bool(name, def, usage)
	b.apply[name] = func(c *Config) { *field(c) = *p }
}

// Load parses args (without the program name). A JSON file given by -config
// is applied over the defaults, then every explicitly set flag over that.
// The result is validated.
func Load(args []string) (Config, error) {
	d := Default()
	fs := flag.NewFlagSet("dht11-sensor", flag.ContinueOnError)
	b := &binder{fs: fs, apply: make(map[string]func(*Config))}

	cfgPath := fs.String("config", "", "Path to JSON config file")

	b.str("gpio-backend", func(c *Config) *string { return &c.GPIO.Backend }, d.GPIO.Backend, "GPIO backend: cdev|periph|fake")
	b.str("gpio-chip", func(c *Config) *string { return &c.GPIO.Chip }, d.GPIO.Chip, "GPIO chip name (cdev backend)")
	b.num("pin", func(c *Config) *int { return &c.GPIO.Pin }, d.GPIO.Pin, "BCM line offset the sensor data pin is wired to")
	b.boolean("pull-up", func(c *Config) *bool { return &c.GPIO.PullUp }, d.GPIO.PullUp, "Enable the internal pull-up while listening")

	b.num("stabilize-high-us", func(c *Config) *int { return &c.Timing.StabilizeHighUs }, d.Timing.StabilizeHighUs, "HIGH settle time before the start signal (µs)")
	b.num("init-hold-us", func(c *Config) *int { return &c.Timing.InitHoldUs }, d.Timing.InitHoldUs, "Start signal LOW hold (µs)")
	b.num("guard-delay-us", func(c *Config) *int { return &c.Timing.GuardDelayUs }, d.Timing.GuardDelayUs, "Delay after switching to input (µs)")
	b.num("response-timeout-us", func(c *Config) *int { return &c.Timing.ResponseTimeoutUs }, d.Timing.ResponseTimeoutUs, "Timeout for each response edge (µs)")
	b.num("bit-timeout-us", func(c *Config) *int { return &c.Timing.BitTimeoutUs }, d.Timing.BitTimeoutUs, "Timeout for each data edge (µs)")
	b.num("bit-threshold-us", func(c *Config) *int { return &c.Timing.BitThresholdUs }, d.Timing.BitThresholdUs, "HIGH pulses longer than this decode as 1 (µs)")
	b.num("poll-interval-us", func(c *Config) *int { return &c.Timing.PollIntervalUs }, d.Timing.PollIntervalUs, "Line sampling interval (µs)")
	b.num("min-interval-ms", func(c *Config) *int { return &c.Timing.MinIntervalMs }, d.Timing.MinIntervalMs, "Reads closer together than this return the cached reading (ms)")

	b.str("broker", func(c *Config) *string { return &c.MQTT.Broker }, d.MQTT.Broker, "MQTT broker address (empty to disable)")
	b.str("mqtt-client-id", func(c *Config) *string { return &c.MQTT.ClientID }, d.MQTT.ClientID, "MQTT client id")
	b.str("mqtt-topic", func(c *Config) *string { return &c.MQTT.TopicPrefix }, d.MQTT.TopicPrefix, "MQTT topic prefix")
	b.str("mqtt-user", func(c *Config) *string { return &c.MQTT.Username }, d.MQTT.Username, "MQTT username")
	b.str("mqtt-pass", func(c *Config) *string { return &c.MQTT.Password }, d.MQTT.Password, "MQTT password")
	b.num("mqtt-buffer", func(c *Config) *int { return &c.MQTT.BufferSize }, d.MQTT.BufferSize, "Messages held while the broker is unreachable")

	kafkaBrokers := fs.String("kafka-brokers", "", "Comma-separated Kafka brokers (empty to disable)")
	b.str("kafka-topic", func(c *Config) *string { return &c.Kafka.Topic }, d.Kafka.Topic, "Kafka topic for readings")

	b.num("poll-ms", func(c *Config) *int { return &c.PollMs }, d.PollMs, "Sensor polling interval (ms)")
	b.num("debounce-ms", func(c *Config) *int { return &c.DebounceMs }, d.DebounceMs, "Alert debounce duration (ms)")
	b.num("heartbeat-ms", func(c *Config) *int { return &c.HeartbeatMs }, d.HeartbeatMs, "Heartbeat interval (ms, 0 to disable)")
	b.num("temp-warning", func(c *Config) *int { return &c.TempWarning }, d.TempWarning, "Temperatures above this raise an alert (°C)")
	b.num("humidity-warning", func(c *Config) *int { return &c.HumidityWarning }, d.HumidityWarning, "Humidity above this raises an alert (%)")

	b.str("http", func(c *Config) *string { return &c.HTTPAddr }, d.HTTPAddr, "HTTP dashboard address (empty to disable)")
	b.str("log-level", func(c *Config) *string { return &c.LogLevel }, d.LogLevel, "Log level: debug|info|warn|error")
	b.str("log-file", func(c *Config) *string { return &c.LogFile }, d.LogFile, "Also append logs to this file")

	b.boolean("once", func(c *Config) *bool { return &c.Once }, d.Once, "Print one reading and exit")
	b.num("retries", func(c *Config) *int { return &c.Retries }, d.Retries, "Attempts made by -once before giving up")

	if err := fs.Parse(args); err != nil {
		return d, err
	}

	cfg := Default()
	if *cfgPath != "" {
		raw, err := os.ReadFile(*cfgPath)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	fs.Visit(func(f *flag.Flag) {
		if apply, ok := b.apply[f.Name]; ok {
			apply(&cfg)
		}
	})
	if *kafkaBrokers != "" {
		cfg.Kafka.Brokers = parseCSV(*kafkaBrokers)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.GPIO.Backend {
	case BackendCdev, BackendPeriph, BackendFake:
	default:
		add("gpio.backend: unknown backend %q", c.GPIO.Backend)
	}
	if c.GPIO.Backend == BackendCdev && c.GPIO.Chip == "" {
		add("gpio.chip: required for the cdev backend")
	}
	if c.GPIO.Pin < 0 {
		add("gpio.pin: must not be negative, got %d", c.GPIO.Pin)
	}

	t := c.Timing
	for _, f := range []struct {
		name string
		v    int
	}{
		{"stabilize_high_us", t.StabilizeHighUs},
		{"init_hold_us", t.InitHoldUs},
		{"response_timeout_us", t.ResponseTimeoutUs},
		{"bit_timeout_us", t.BitTimeoutUs},
		{"bit_threshold_us", t.BitThresholdUs},
		{"poll_interval_us", t.PollIntervalUs},
		{"min_interval_ms", t.MinIntervalMs},
	} {
		if f.v <= 0 {
			add("timing.%s: must be positive, got %d", f.name, f.v)
		}
	}
	if t.GuardDelayUs < 0 {
		add("timing.guard_delay_us: must not be negative, got %d", t.GuardDelayUs)
	}
	if t.BitThresholdUs >= t.BitTimeoutUs {
		add("timing.bit_threshold_us (%d) must be below bit_timeout_us (%d)", t.BitThresholdUs, t.BitTimeoutUs)
	}
	if t.PollIntervalUs >= t.BitThresholdUs {
		add("timing.poll_interval_us (%d) must be below bit_threshold_us (%d)", t.PollIntervalUs, t.BitThresholdUs)
	}

	if c.PollMs < t.MinIntervalMs {
		add("poll_ms (%d) must not be below timing.min_interval_ms (%d)", c.PollMs, t.MinIntervalMs)
	}
	if c.DebounceMs < 0 {
		add("debounce_ms: must not be negative, got %d", c.DebounceMs)
	}
	if c.HeartbeatMs < 0 {
		add("heartbeat_ms: must not be negative, got %d", c.HeartbeatMs)
	}
	if c.HumidityWarning < 0 || c.HumidityWarning > 100 {
		add("humidity_warning: must be within 0..100, got %d", c.HumidityWarning)
	}
	if c.MQTT.BufferSize < 1 {
		add("mqtt.buffer_size: must be positive, got %d", c.MQTT.BufferSize)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		add("kafka.topic: required when brokers are set")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		add("log_level: unknown level %q", c.LogLevel)
	}
	if c.Retries < 1 {
		add("retries: must be at least 1, got %d", c.Retries)
	}

	return errors.Join(errs...)
}

func us(n int) time.Duration { return time.Duration(n) * time.Microsecond }
func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// DHTTiming converts the timing settings for dht.WithTiming.
func (c Config) DHTTiming() dht.Timing {
	return dht.Timing{
		StabilizeHigh:   us(c.Timing.StabilizeHighUs),
		InitHold:        us(c.Timing.InitHoldUs),
		GuardDelay:      us(c.Timing.GuardDelayUs),
		ResponseTimeout: us(c.Timing.ResponseTimeoutUs),
		BitTimeout:      us(c.Timing.BitTimeoutUs),
		BitThreshold:    us(c.Timing.BitThresholdUs),
		PollInterval:    us(c.Timing.PollIntervalUs),
		MinInterval:     ms(c.Timing.MinIntervalMs),
		PullUp:          c.GPIO.PullUp,
	}
}

// Thresholds returns the alert thresholds.
func (c Config) Thresholds() logic.Thresholds {
	return logic.Thresholds{Temperature: c.TempWarning, Humidity: c.HumidityWarning}
}

func (c Config) Poll() time.Duration      { return ms(c.PollMs) }
func (c Config) Debounce() time.Duration  { return ms(c.DebounceMs) }
func (c Config) Heartbeat() time.Duration { return ms(c.HeartbeatMs) }

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
