package radio

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
)

// Status is the link status code reported by the station interface.
//
// The values follow the CYW43 link codes that most embedded wifi stacks
// expose. Codes outside the named set are passed through unchanged so the
// caller can report them.
type Status int

const (
	StatusIdle               Status = 0
	StatusConnecting         Status = 1
	StatusJoinedNoAddress    Status = 2 // undocumented on most firmwares, seen between connecting and got-address
	StatusGotAddress         Status = 3
	StatusConnectFail        Status = -1
	StatusNoAccessPointFound Status = -2
	StatusBadAuth            Status = -3
)

// String returns a human-readable name for the status
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusJoinedNoAddress:
		return "joined-no-address"
	case StatusGotAddress:
		return "got-address"
	case StatusConnectFail:
		return "connect-fail"
	case StatusNoAccessPointFound:
		return "no-ap-found"
	case StatusBadAuth:
		return "bad-auth"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Radio is the network interface capability the orchestrator drives.
//
// Implementations hold two roles, station and access point. Callers are
// responsible for never activating both at once.
type Radio interface {
	// ActivateStation powers up the station (client) role.
	ActivateStation(ctx context.Context) error
	// DeactivateStation drops any association and powers down the station role.
	DeactivateStation(ctx context.Context) error
	// StationActive reports whether the station role is up.
	StationActive() bool

	// ActivateAccessPoint starts broadcasting a network.
	ActivateAccessPoint(ctx context.Context, ssid, password string) error
	// DeactivateAccessPoint stops broadcasting.
	DeactivateAccessPoint(ctx context.Context) error
	// AccessPointActive reports whether the access-point role is up.
	AccessPointActive() bool

	// Join starts an asynchronous association. It does not wait for the
	// outcome; poll Status for that.
	Join(ctx context.Context, ssid, password string) error
	// Disconnect drops the current association, if any.
	Disconnect(ctx context.Context) error
	// Status returns the current link status.
	Status(ctx context.Context) (Status, error)
	// AssignedAddress returns the station address once one is assigned.
	AssignedAddress(ctx context.Context) (netip.Addr, bool)
}

// Operation names a radio operation for error reporting.
type Operation string

const (
	OpActivateStation       Operation = "activate station"
	OpDeactivateStation     Operation = "deactivate station"
	OpActivateAccessPoint   Operation = "activate access point"
	OpDeactivateAccessPoint Operation = "deactivate access point"
	OpJoin                  Operation = "join network"
	OpDisconnect            Operation = "disconnect"
)

// Error is a failure of the radio hardware or driver. These are not
// retryable: the process should abort.
type Error struct {
	Op  Operation
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("radio: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns nil for a nil err, or err annotated with op.
func Wrap(op Operation, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// IsRadioError checks if an error originates from the radio
func IsRadioError(err error) bool {
	var rerr *Error
	return errors.As(err, &rerr)
}
