// Package logging provides structured logging for wifiportal.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used by the orchestrator, the captive portal and the CLI.
//
// # Log Levels
//
//   - Debug: Raw request dumps, radio status polls
//   - Info: Portal connections, state transitions, connection outcomes
//   - Warn: Non-fatal issues (storage failures, rejected submissions)
//   - Error: Fatal issues (radio activation failures)
//
// # Structured Logging
//
//	logging.Info("Joined network",
//	    zap.String("ssid", "Home"),
//	    zap.String("address", "192.168.1.23"),
//	)
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is given, WIFIPORTAL_LOG_LEVEL is consulted. When that is
// unset too, logging is silent so the CLI's own output stays clean.
//
// Log output goes to stderr so that it never interleaves with command
// output on stdout.
//
// Passwords must never be passed to these functions; log the SSID and the
// password length instead.
package logging
