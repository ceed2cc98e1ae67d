package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/muurk/wifiportal/internal/radio"
)

// ErrorKind classifies a failed connection attempt
type ErrorKind int

const (
	// KindNoCredentials means Connect was called before credentials were
	// supplied. The radio is not touched.
	KindNoCredentials ErrorKind = iota
	// KindIncorrectPassword means the radio reported bad authentication.
	KindIncorrectPassword
	// KindNoAccessPointFound means the target SSID was not seen.
	KindNoAccessPointFound
	// KindUnknown covers timeouts and unclassified terminal failures.
	KindUnknown
)

// Sentinels for errors.Is matching against a *ConnectError.
var (
	ErrNoCredentials      = errors.New("no credentials")
	ErrIncorrectPassword  = errors.New("incorrect password")
	ErrNoAccessPointFound = errors.New("no access point found")
	ErrUnknown            = errors.New("connection failed")
)

// ErrShutdown is returned by Run and AcquireCredentialsInteractively after
// Shutdown.
var ErrShutdown = errors.New("orchestrator: shut down")

// ErrAttemptsExhausted is returned by Run when MaxAttempts connection
// attempts have failed.
var ErrAttemptsExhausted = errors.New("connection attempts exhausted")

// String returns a human-readable name for the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindNoCredentials:
		return "NoCredentials"
	case KindIncorrectPassword:
		return "IncorrectPassword"
	case KindNoAccessPointFound:
		return "NoAccessPointFound"
	case KindUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNoCredentials:
		return ErrNoCredentials
	case KindIncorrectPassword:
		return ErrIncorrectPassword
	case KindNoAccessPointFound:
		return ErrNoAccessPointFound
	default:
		return ErrUnknown
	}
}

// ConnectError is a failed station connection attempt.
type ConnectError struct {
	Kind ErrorKind
	SSID string
	// Code is the last radio status observed before giving up.
	Code radio.Status
	// TimedOut is set when the attempt ran out of time rather than receiving
	// a terminal status.
	TimedOut bool
}

// Error implements the error interface
func (e *ConnectError) Error() string {
	switch e.Kind {
	case KindNoCredentials:
		return "connect: no credentials held"
	case KindUnknown:
		if e.TimedOut {
			return fmt.Sprintf("connect to %q: timed out (last status %d %s)", e.SSID, int(e.Code), e.Code)
		}
		return fmt.Sprintf("connect to %q: failed (status %d %s)", e.SSID, int(e.Code), e.Code)
	default:
		return fmt.Sprintf("connect to %q: %s", e.SSID, e.Kind.sentinel())
	}
}

// Is matches the sentinel for the error's kind.
func (e *ConnectError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf returns the kind of a *ConnectError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var cerr *ConnectError
	if errors.As(err, &cerr) {
		return cerr.Kind, true
	}
	return 0, false
}

// IsConnectError checks if an error is a retryable connection failure
func IsConnectError(err error) bool {
	_, ok := KindOf(err)
	return ok
}

// IsFatal checks if an error should abort the process rather than fall back
// to the access point.
func IsFatal(err error) bool {
	return radio.IsRadioError(err)
}

// ShortMessage returns a concise, user-friendly error message
func ShortMessage(err error) string {
	kind, ok := KindOf(err)
	if !ok {
		if IsFatal(err) {
			return "Radio hardware error"
		}
		return err.Error()
	}

	switch kind {
	case KindNoCredentials:
		return "No wifi credentials stored"
	case KindIncorrectPassword:
		return "Incorrect wifi password"
	case KindNoAccessPointFound:
		return "Network not found"
	default:
		var cerr *ConnectError
		errors.As(err, &cerr)
		if cerr.TimedOut {
			return "Connection timed out"
		}
		return fmt.Sprintf("Connection failed (status %d)", int(cerr.Code))
	}
}

// TroubleshootingHint returns user-friendly troubleshooting advice for an error
func TroubleshootingHint(err error) string {
	if IsFatal(err) {
		return strings.Join([]string{
			"The wifi hardware rejected the request.",
			"Troubleshooting:",
			"  • Check that the wifi device exists and is not blocked (rfkill)",
			"  • Verify the configured interface name",
			"  • Make sure NetworkManager is running when using the nmcli backend",
		}, "\n")
	}

	kind, ok := KindOf(err)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch kind {
	case KindNoCredentials:
		return strings.Join([]string{
			"No network has been configured yet.",
			"Troubleshooting:",
			"  • Run `wifiportal portal --save` to enter credentials",
			"  • Or run `wifiportal run` to start the onboarding loop",
		}, "\n")

	case KindIncorrectPassword:
		return strings.Join([]string{
			"The network rejected the password.",
			"Troubleshooting:",
			"  • Passwords are case sensitive",
			"  • Re-enter the credentials through the portal",
		}, "\n")

	case KindNoAccessPointFound:
		return strings.Join([]string{
			"The network was not visible.",
			"Troubleshooting:",
			"  • Check the SSID spelling (it is case sensitive)",
			"  • Move the device closer to the router",
			"  • 5 GHz-only networks may not be supported by the radio",
		}, "\n")

	default:
		return strings.Join([]string{
			"The radio did not obtain an address in time.",
			"Troubleshooting:",
			"  • Check that the router's DHCP server is running",
			"  • Try increasing connection_timeout in the config file",
		}, "\n")
	}
}
