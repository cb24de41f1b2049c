package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sweeney/level-sensor/internal/gpio"
)

var (
	// Sensor flags
	modeName string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// GPIO flags
	chipName string
	pinOut   int
	pinEn    int
	pinTest  int

	logLevel string
)

// logger is replaced in PersistentPreRunE once --log-level is known.
var logger = zerolog.Nop()

var rootCmd = &cobra.Command{
	Use:   "level-sensor",
	Short: "Non-contact liquid level sensor tool",
	Long: `level-sensor talks to a non-contact liquid level sensor that detects water
through the wall of a container.

Modes:
  uart:  the sensor is polled over a serial line (--port) or a websocket
         serial bridge (--url). EN (--pin-en) is needed for self-check,
         calibration and sensitivity changes.
  level: water is read from the OUT pin (--pin-out). Self-check and
         calibration also drive EN and TEST; self-check reads the sensor's
         reply burst from --port or --url.

GPIO pins use BCM numbering on --chip; pass -1 for a pin that is not wired.

For WebSocket authentication, the password is read from the
LEVEL_SENSOR_PASSWORD environment variable, or prompted interactively if not
set.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(logLevel, os.Stderr)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&modeName, "mode", "m", "uart", "Sensor mode: uart or level")

	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 9600, "Baud rate (serial only)")

	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket serial bridge URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&chipName, "chip", gpio.DefaultChip, "GPIO chip")
	rootCmd.PersistentFlags().IntVar(&pinOut, "pin-out", gpio.DefaultPinOut, "BCM pin wired to sensor OUT (-1 if unused)")
	rootCmd.PersistentFlags().IntVar(&pinEn, "pin-en", gpio.DefaultPinEn, "BCM pin wired to sensor EN (-1 if unused)")
	rootCmd.PersistentFlags().IntVar(&pinTest, "pin-test", gpio.DefaultPinTest, "BCM pin wired to sensor TEST (-1 if unused)")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

// newLogger builds the console logger used by every subcommand.
func newLogger(level string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().
		Logger(), nil
}
