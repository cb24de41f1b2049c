package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sweeney/level-sensor/internal/sensor"
)

var (
	detectCount    int
	calibrateUpper bool
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Print WET or DRY for each reading",
	Long: `Initialize the sensor, then print WET or DRY for every reading of
channel 1. Runs until interrupted unless --count is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSensor(cmd, func(s *sensor.Sensor, out io.Writer) error {
			return detectLoop(s, out, detectCount)
		})
	},
}

var selfCheckCmd = &cobra.Command{
	Use:   "selfcheck",
	Short: "Read the sensor's sensitivity and calibration mode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSensor(cmd, printSelfCheck)
	},
}

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Calibrate the water level thresholds",
	Long: `Calibrate the sensor. By default only the lower (empty) level is
calibrated: keep the detection area free of water and do not touch it.
With --upper the detection area must be covered by water and both levels
are calibrated.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := sensor.CalibrationLower
		if calibrateUpper {
			mode = sensor.CalibrationLowerAndUpper
		}
		return withSensor(cmd, func(s *sensor.Sensor, out io.Writer) error {
			return calibrate(s, out, mode)
		})
	},
}

var sensitivityCmd = &cobra.Command{
	Use:   "sensitivity [LEVEL]",
	Short: "Show or set the detection sensitivity (uart mode only)",
	Long: `Without an argument, print the current sensitivity level. With LEVEL
(0 = most sensitive, 7 = least), set it first and confirm by self-check.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var level *sensor.SensitivityLevel
		if len(args) == 1 {
			l, err := parseSensitivity(args[0])
			if err != nil {
				return err
			}
			level = &l
		}
		return withSensor(cmd, func(s *sensor.Sensor, out io.Writer) error {
			return sensitivity(s, out, level)
		})
	},
}

func init() {
	detectCmd.Flags().IntVarP(&detectCount, "count", "n", 0, "Number of readings (0 = until interrupted)")
	calibrateCmd.Flags().BoolVar(&calibrateUpper, "upper", false, "Calibrate lower and upper levels (detection area covered by water)")

	rootCmd.AddCommand(detectCmd, selfCheckCmd, calibrateCmd, sensitivityCmd)
}

// withSensor opens and initializes the sensor, runs fn, and closes it.
func withSensor(cmd *cobra.Command, fn func(*sensor.Sensor, io.Writer) error) error {
	d, err := openDevice()
	if err != nil {
		return err
	}
	defer d.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Connection: %s\n", d.info)
	if err := beginSensor(d.sensor, out); err != nil {
		return err
	}
	return fn(d.sensor, out)
}

// beginSensor runs the startup handshake. A sensor that has never been
// calibrated is reported but not treated as an error so that calibrate
// can still run.
func beginSensor(s *sensor.Sensor, out io.Writer) error {
	code, err := s.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if code == sensor.BeginUncalibrated {
		fmt.Fprintln(out, "Sensor reports it has never been calibrated; run 'level-sensor calibrate'.")
	}
	return nil
}

func detectLoop(s *sensor.Sensor, out io.Writer, count int) error {
	for i := 0; count <= 0 || i < count; i++ {
		wet, err := s.DetectWater()
		if err != nil {
			return fmt.Errorf("detect water: %w", err)
		}
		if wet {
			fmt.Fprintln(out, "WET")
		} else {
			fmt.Fprintln(out, "DRY")
		}
	}
	return nil
}

func printSelfCheck(s *sensor.Sensor, out io.Writer) error {
	ok, err := s.SelfCheck()
	if err != nil {
		return fmt.Errorf("self-check: %w", err)
	}
	if !ok {
		return errors.New("self-check failed: no valid reply from sensor")
	}

	r := s.SelfCheckResult()
	mode := s.CalibrationMode()
	fmt.Fprintf(out, "Detected mode: %s\n", r.DetectedMode())
	fmt.Fprintf(out, "Channels: %d\n", r.Channels())
	fmt.Fprintf(out, "Sensitivity: %d\n", s.Sensitivity())
	fmt.Fprintf(out, "Calibration mode: %d (%s)\n", mode, sensor.CalibrationModeDescription(mode))
	return nil
}

func calibrate(s *sensor.Sensor, out io.Writer, mode sensor.CalibrationMode) error {
	ok, err := s.CalibrateLevels(mode)
	if err != nil {
		return fmt.Errorf("calibrate: %w", err)
	}
	if !ok {
		return errors.New("calibration failed: sensor did not acknowledge")
	}
	fmt.Fprintln(out, "Calibration acknowledged, waiting for sensor to settle")

	settled, err := s.CheckCalibrationState()
	if err != nil {
		return fmt.Errorf("check calibration state: %w", err)
	}
	if !settled {
		return errors.New("calibration failed: sensor did not settle")
	}
	fmt.Fprintln(out, "Calibration complete")
	return nil
}

func sensitivity(s *sensor.Sensor, out io.Writer, level *sensor.SensitivityLevel) error {
	if s.Mode() != sensor.ModeUART {
		return fmt.Errorf("sensitivity: %w", sensor.ErrWrongMode)
	}
	if level != nil {
		ok, err := s.SetSensitivityLevel(*level)
		if err != nil {
			return fmt.Errorf("set sensitivity: %w", err)
		}
		if !ok {
			return errors.New("set sensitivity failed: sensor did not acknowledge")
		}
		fmt.Fprintf(out, "Sensitivity set to %d\n", *level)
	}

	ok, err := s.SelfCheck()
	if err != nil {
		return fmt.Errorf("self-check: %w", err)
	}
	if !ok {
		return errors.New("self-check failed: no valid reply from sensor")
	}
	fmt.Fprintf(out, "Sensitivity: %d\n", s.Sensitivity())
	return nil
}

func parseSensitivity(arg string) (sensor.SensitivityLevel, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 || n > int(sensor.MaxSensitivityLevel) {
		return 0, fmt.Errorf("invalid sensitivity %q: want 0-%d", arg, sensor.MaxSensitivityLevel)
	}
	return sensor.SensitivityLevel(n), nil
}
