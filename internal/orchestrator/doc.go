// Package orchestrator coordinates the radio roles, connection attempts, and
// captive-portal onboarding into one self-healing loop.
//
// # Lifecycle
//
//	disconnected ──Connect──▶ connecting ──got address──▶ connected
//	      ▲                        │
//	      └────── failure ─────────┘
//	      │
//	      └──StartAccessPoint──▶ access-point ──portal submission──▶ Connect
//
// Run repeats Connect, and on any failure starts the access point, collects
// new credentials through the portal, and tries again. Only one radio role
// is active at any time.
//
// # Errors
//
// Connect reports failures as *ConnectError with one of four kinds:
// KindNoCredentials, KindIncorrectPassword, KindNoAccessPointFound, and
// KindUnknown (timeout or unclassified failure, carrying the last radio
// status). Use errors.Is with ErrNoCredentials, ErrIncorrectPassword,
// ErrNoAccessPointFound or ErrUnknown to match them.
//
// Radio driver failures are *radio.Error. IsFatal reports them; they are
// never retried.
package orchestrator
