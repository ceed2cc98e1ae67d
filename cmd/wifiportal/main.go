// Wifiportal brings a headless device onto a wifi network.
//
// With stored credentials it joins the network directly. Without them, or
// when the join fails, it switches the radio to a setup access point and
// serves a single-page captive portal where the user submits an SSID and
// password, then tries again.
//
// Usage:
//
//	wifiportal [command] [flags]
//
// Running without arguments is the same as 'wifiportal run'.
// See 'wifiportal --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/version"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		// Failures already rendered as a result box only set the exit code.
		var reported *reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// Global flags
var (
	configPath   string
	logLevel     string
	radioBackend string
	radioIface   string
	simNetworks  []string
)

var rootCmd = &cobra.Command{
	Use:   "wifiportal",
	Short: "Wifi onboarding for headless devices",
	Long: `Connects a headless device to wifi, falling back to a captive portal.

The stored network is tried first. If there is none, or the join fails,
the radio switches to a setup access point and serves a page where the
network name and password can be entered. The new credentials are saved
and the join is retried.

If no command is specified, 'run' is executed.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRun,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/wifiportal/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")
	rootCmd.PersistentFlags().StringVar(&radioBackend, "radio", "", "Radio backend (nmcli, sim)")
	rootCmd.PersistentFlags().StringVar(&radioIface, "interface", "", "Wifi interface for the nmcli backend")
	rootCmd.PersistentFlags().StringArrayVar(&simNetworks, "sim-network", nil, "Network visible to the sim backend, as ssid=password (repeatable)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String("wifiportal"))
	},
}
