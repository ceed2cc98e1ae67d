package orchestrator

import "fmt"

// State is the connectivity state of the device.
type State int

const (
	// StateDisconnected means no role is delivering connectivity. This is the
	// initial state and the state after any failed attempt.
	StateDisconnected State = iota
	// StateConnecting means a station join is in flight.
	StateConnecting
	// StateConnected means the station role holds an address.
	StateConnected
	// StateAccessPoint means the onboarding network is up.
	StateAccessPoint
)

// String returns a human-readable name for the state
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAccessPoint:
		return "access-point"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
