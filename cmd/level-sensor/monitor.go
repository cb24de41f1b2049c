package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/level-sensor/internal/logic"
	"github.com/sweeney/level-sensor/internal/mqtt"
	"github.com/sweeney/level-sensor/internal/sensor"
	"github.com/sweeney/level-sensor/internal/status"
	"github.com/sweeney/level-sensor/internal/web"
)

var (
	pollInterval      time.Duration
	debounceDuration  time.Duration
	brokerURL         string
	heartbeatInterval time.Duration
	httpAddr          string
	startupSelfCheck  bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch the sensor and publish water state changes to MQTT",
	Long: `Poll the sensor, debounce the readings, and publish WATER_DETECTED and
WATER_CLEARED events to MQTT. A retained STARTUP event carries the full
status, HEARTBEAT events repeat it periodically, and SHUTDOWN is published
on SIGINT or SIGTERM. An HTTP status page is served on --http.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMonitor()
	},
}

func init() {
	monitorCmd.Flags().DurationVar(&pollInterval, "poll", 500*time.Millisecond, "Sensor polling interval")
	monitorCmd.Flags().DurationVar(&debounceDuration, "debounce", time.Second, "Debounce duration")
	monitorCmd.Flags().StringVar(&brokerURL, "broker", "tcp://localhost:1883", "MQTT broker address")
	monitorCmd.Flags().DurationVar(&heartbeatInterval, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	monitorCmd.Flags().StringVar(&httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	monitorCmd.Flags().BoolVar(&startupSelfCheck, "self-check", false, "Run a self-check at startup to report sensitivity and calibration mode")

	rootCmd.AddCommand(monitorCmd)
}

// waterSensor is the part of the sensor the monitor loop needs.
type waterSensor interface {
	DetectWater() (bool, error)
}

func runMonitor() error {
	d, err := openDevice()
	if err != nil {
		return err
	}
	defer d.Close()

	info := status.SensorInfo{Sensitivity: sensor.Invalid, CalibrationMode: sensor.Invalid}
	info.BeginCode, err = d.sensor.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if info.BeginCode == sensor.BeginUncalibrated {
		logger.Warn().Msg("sensor has never been calibrated")
	}

	if startupSelfCheck {
		ok, err := d.sensor.SelfCheck()
		if err != nil {
			logger.Warn().Err(err).Msg("startup self-check failed")
		}
		info.SelfCheckOK = ok
		info.Sensitivity = d.sensor.Sensitivity()
		info.CalibrationMode = d.sensor.CalibrationMode()
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		Mode:        d.sensor.Mode().String(),
		Port:        d.info,
		PollMs:      pollInterval.Milliseconds(),
		DebounceMs:  debounceDuration.Milliseconds(),
		HeartbeatMs: heartbeatInterval.Milliseconds(),
		Broker:      brokerURL,
		HTTPAddr:    httpAddr,
	})
	tracker.SetSensor(info)
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	publisher, err := mqtt.NewRealPublisher(brokerURL, logger.With().Str("component", "mqtt").Logger())
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()
	tracker.SetMQTTConnected(publisher.IsConnected())

	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		logger.Error().Err(err).Msg("failed to publish startup event")
	} else {
		logger.Info().Msg("published startup event")
	}

	if httpAddr != "" {
		srv := web.New(httpAddr, tracker, logger.With().Str("component", "http").Logger())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info().Str("addr", httpAddr).Msg("http status server listening")
	}

	logger.Info().
		Str("connection", d.info).
		Dur("poll", pollInterval).
		Dur("debounce", debounceDuration).
		Str("broker", brokerURL).
		Dur("heartbeat", heartbeatInterval).
		Msg("monitor started")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(d.sensor, publisher, publisher, tracker, debounceDuration, heartbeatInterval, time.Now, ticker.C, sigCh)
}

func runLoop(ws waterSensor, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, debounce, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	detector := logic.NewDetector(debounce, now())

	refresh := func() {
		if tracker == nil {
			return
		}
		tracker.Update(detector.CurrentState(), detector.IsBaselined(), detector.Counts())
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			logger.Info().Stringer("signal", s).Msg("shutting down")
			reason := signalName(s)
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    reason,
				Retained:  true,
			}
			if tracker != nil {
				refresh()
				event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", reason)
			}
			if err := publisher.PublishSystem(event); err != nil {
				logger.Error().Err(err).Msg("failed to publish shutdown event")
			} else {
				logger.Info().Msg("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			wet, err := ws.DetectWater()
			if err != nil {
				logger.Warn().Err(err).Msg("sensor read error")
				detector.RecordReadError()
				if tracker != nil {
					tracker.SetReadError(err)
				}
				refresh()
				continue
			}
			if tracker != nil {
				tracker.SetReadError(nil)
			}

			if event := detector.Process(logic.Input{Wet: wet, Time: t}); event != nil {
				logger.Info().Str("event", string(event.Type)).Str("water", string(event.State)).Msg("water state changed")
				if err := publisher.Publish(*event); err != nil {
					// Buffered or dropped by the publisher; keep polling
					logger.Error().Err(err).Msg("publish error")
				}
			}

			if !detector.IsBaselined() {
				refresh()
				continue
			}

			if hb := detector.CheckHeartbeat(t, heartbeat); hb != nil {
				logger.Info().
					Dur("uptime", hb.Uptime).
					Str("water", string(hb.State)).
					Int("detected", hb.Counts.Detected).
					Int("cleared", hb.Counts.Cleared).
					Int("read_errors", hb.Counts.ReadErrors).
					Msg("heartbeat")

				hbEvent := mqtt.SystemEvent{
					Timestamp: hb.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					refresh()
					hbEvent.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					logger.Error().Err(err).Msg("heartbeat publish error")
				}
			}

			refresh()
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
