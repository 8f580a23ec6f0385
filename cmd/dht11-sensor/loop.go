package main

import (
	"context"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/dht11-sensor/internal/dht"
	"github.com/sweeney/dht11-sensor/internal/logic"
	"github.com/sweeney/dht11-sensor/internal/mqtt"
	"github.com/sweeney/dht11-sensor/internal/status"
)

// reader is the part of dht.Sensor the daemon uses.
type reader interface {
	Read() (dht.Reading, error)
}

// readingSink receives every new good reading.
type readingSink interface {
	WriteReading(ctx context.Context, r dht.Reading) error
}

// runLoop reads the sensor on every tick until a signal arrives. A read
// blocks the loop, so a signal is only handled once the current attempt has
// finished and the line has been released.
func runLoop(sensor reader, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, sinks []readingSink, tracker *status.Tracker, detector *logic.Detector, heartbeat time.Duration, log *slog.Logger, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	var lastCaptured time.Time

	for {
		select {
		case s := <-sig:
			log.Info("shutting down", "signal", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
			snap := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Warn("failed to publish shutdown event", "err", err)
			} else {
				log.Info("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			r, err := sensor.Read()
			tracker.SetMQTTConnected(mqttStatus.IsConnected())

			switch {
			case err != nil:
				log.Warn("sensor read failed", "err", err)
				tracker.RecordError(err, t)

			case r.CapturedAt.Equal(lastCaptured):
				// Served from the sensor's cache; already handled.

			default:
				lastCaptured = r.CapturedAt
				handleReading(r, t, publisher, sinks, tracker, detector, log)
			}

			if hb := detector.CheckHeartbeat(t, heartbeat); hb != nil {
				log.Info("heartbeat",
					"uptime", hb.Uptime,
					"temp_high", hb.Counts.TempHigh,
					"temp_ok", hb.Counts.TempOK,
					"humidity_high", hb.Counts.HumidityHigh,
					"humidity_ok", hb.Counts.HumidityOK)

				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				snap := tracker.Snapshot()
				hbEvent := mqtt.SystemEvent{
					Timestamp:  hb.Timestamp,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Warn("heartbeat publish error", "err", err)
				}
			}
		}
	}
}

func handleReading(r dht.Reading, t time.Time, publisher mqtt.Publisher, sinks []readingSink, tracker *status.Tracker, detector *logic.Detector, log *slog.Logger) {
	log.Debug("reading", "temperature", r.Temperature, "humidity", r.Humidity)

	events := detector.Process(logic.Input{
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Time:        t,
	})
	temp, hum := detector.CurrentState()
	tracker.SetAlerts(temp, hum, detector.IsBaselined(), detector.EventCountsSnapshot())
	tracker.Update(r)

	if err := publisher.PublishReading(r); err != nil {
		log.Warn("publish reading error", "err", err)
	}
	for _, event := range events {
		log.Info("alert", "event", event.Type, "temperature", event.Temperature, "humidity", event.Humidity)
		if err := publisher.Publish(event); err != nil {
			log.Warn("publish alert error", "err", err)
		}
	}
	for _, sink := range sinks {
		if err := sink.WriteReading(context.Background(), r); err != nil {
			log.Warn("sink write error", "err", err)
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
