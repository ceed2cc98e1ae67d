// Package ui provides terminal UI components for the wifiportal CLI.
//
// Most components follow a "render once and print" pattern built on
// Lipgloss: a Header banner at the start of a command, and a Result box
// (success, failure with troubleshooting tips, or warning) at the end.
// Confirmation asks the user to type a phrase before a destructive step.
//
// StatusView is the one interactive piece. It runs a Bubble Tea program
// with a spinner that `wifiportal run` drives from orchestrator state
// changes:
//
//	view := ui.StartStatusView(ui.NewStatusModel("Onboarding", cancel))
//	view.Update(ui.StatusMsg{Label: "Joining Home"})
//	...
//	interrupted, err := view.Finish("Connected", nil)
//
// Commands fall back to plain log lines when IsTerminal reports false.
//
// # Logging Integration
//
// zap logging is silent unless WIFIPORTAL_LOG_LEVEL or --log-level is set,
// so the curated UI output is not interleaved with log lines by default.
package ui
