package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/sweeney/level-sensor/internal/gpio"
	"github.com/sweeney/level-sensor/internal/sensor"
	"github.com/sweeney/level-sensor/internal/stream"
)

const passwordEnv = "LEVEL_SENSOR_PASSWORD"

// closableStream is a ByteStream backed by a real connection.
type closableStream interface {
	stream.ByteStream
	io.Closer
}

// device is an opened sensor plus everything that must be released with it.
type device struct {
	sensor  *sensor.Sensor
	info    string
	closers []io.Closer
}

// Close releases the stream and GPIO chip in reverse order of opening.
func (d *device) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func parseMode(name string) (sensor.Mode, error) {
	switch strings.ToLower(name) {
	case "uart":
		return sensor.ModeUART, nil
	case "level":
		return sensor.ModeLevel, nil
	}
	return 0, fmt.Errorf("unknown mode %q (use uart or level)", name)
}

// openDevice opens the stream and GPIO lines selected by the root flags and
// builds a sensor in the requested mode.
func openDevice() (*device, error) {
	mode, err := parseMode(modeName)
	if err != nil {
		return nil, err
	}

	d := &device{}
	st, info, err := openStream()
	if err != nil {
		return nil, err
	}
	if st != nil {
		d.closers = append(d.closers, st)
	}

	var chip *gpio.Chip
	if mode == sensor.ModeLevel || pinEn >= 0 {
		chip, err = gpio.OpenChip(chipName)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.closers = append(d.closers, chip)
	}

	opts := []sensor.Option{
		sensor.WithLogger(logger.With().Str("component", "sensor").Logger()),
	}

	switch mode {
	case sensor.ModeUART:
		if st == nil {
			d.Close()
			return nil, fmt.Errorf("uart mode needs --port or --url")
		}
		d.sensor = sensor.NewUART(sensor.UARTConfig{
			Stream: st,
			Enable: pin(chip, pinEn),
		}, opts...)
		d.info = info
	default:
		d.sensor = sensor.NewLevel(sensor.LevelConfig{
			Out:    pin(chip, pinOut),
			Enable: pin(chip, pinEn),
			Test:   pin(chip, pinTest),
			Stream: st,
		}, opts...)
		d.info = fmt.Sprintf("GPIO: %s OUT=%d", chipName, pinOut)
		if info != "" {
			d.info += ", " + info
		}
	}

	logger.Debug().Stringer("mode", mode).Str("connection", d.info).Msg("device opened")
	return d, nil
}

// pin returns the line at offset, or a nil Pin for an unused line so the
// driver reports it as not configured.
func pin(chip *gpio.Chip, offset int) gpio.Pin {
	if chip == nil || offset < 0 {
		return nil
	}
	return chip.Pin(offset)
}

// openStream opens the websocket bridge or serial port named by the flags.
// It returns a nil stream when neither is set.
func openStream() (closableStream, string, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = getPassword()
			if err != nil {
				return nil, "", err
			}
		}

		ws, err := stream.DialWebSocket(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return ws, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName != "" {
		s, err := stream.OpenSerial(portName, baudRate)
		if err != nil {
			return nil, "", err
		}
		return s, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	return nil, "", nil
}

// getPassword retrieves the websocket password from the environment or
// prompts for it.
func getPassword() (string, error) {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Not a terminal; fall back to a plain line read
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}
