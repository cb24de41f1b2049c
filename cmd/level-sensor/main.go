// Command level-sensor drives a non-contact liquid level sensor over UART or
// GPIO. One-shot subcommands detect, self-check, calibrate and tune the
// sensor; the monitor subcommand publishes debounced water state changes to
// MQTT and serves a status page.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
