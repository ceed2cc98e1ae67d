package radio

import (
	"context"
	"errors"
	"net/netip"
	"sync"
)

// DefaultSimulatedAddress is handed out by a Simulator on a successful join.
var DefaultSimulatedAddress = netip.MustParseAddr("192.168.1.23")

// Simulator is an in-memory Radio. Networks it "sees" are registered with
// AddNetwork; a Join against them plays back a status sequence that mimics
// real firmware, including the undocumented joined-no-address code.
//
// Individual joins can be scripted with NextJoin to reproduce exact status
// sequences in tests.
type Simulator struct {
	mu sync.Mutex

	networks map[string]string
	address  netip.Addr

	// JoinSequence is played before StatusGotAddress on a successful join.
	JoinSequence []Status

	// ActivationError, when set, is returned by every activation call.
	ActivationError error

	scripts [][]Status
	pending []Status
	current Status

	stationActive bool
	apActive      bool
	apSSID        string
	apPassword    string

	joins      int
	lastSSID   string
	lastPass   string
	overlapped bool
	roleEvents []string
}

// NewSimulator creates a simulator that hands out address on success.
func NewSimulator(address netip.Addr) *Simulator {
	if !address.IsValid() {
		address = DefaultSimulatedAddress
	}
	return &Simulator{
		networks:     make(map[string]string),
		address:      address,
		JoinSequence: []Status{StatusConnecting, StatusJoinedNoAddress},
		current:      StatusIdle,
	}
}

// AddNetwork makes a network visible to the simulator.
func (s *Simulator) AddNetwork(ssid, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networks[ssid] = password
}

// NextJoin queues an exact status sequence for the next Join. The last
// status repeats once the sequence is exhausted.
func (s *Simulator) NextJoin(statuses ...Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts = append(s.scripts, append([]Status(nil), statuses...))
}

func (s *Simulator) noteRoles(event string) {
	s.roleEvents = append(s.roleEvents, event)
	if s.stationActive && s.apActive {
		s.overlapped = true
	}
}

// ActivateStation implements Radio
func (s *Simulator) ActivateStation(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ActivationError != nil {
		return Wrap(OpActivateStation, s.ActivationError)
	}
	s.stationActive = true
	s.noteRoles("station-up")
	return nil
}

// DeactivateStation implements Radio
func (s *Simulator) DeactivateStation(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLink()
	s.stationActive = false
	s.noteRoles("station-down")
	return nil
}

// StationActive implements Radio
func (s *Simulator) StationActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stationActive
}

// ActivateAccessPoint implements Radio
func (s *Simulator) ActivateAccessPoint(ctx context.Context, ssid, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ActivationError != nil {
		return Wrap(OpActivateAccessPoint, s.ActivationError)
	}
	s.apActive = true
	s.apSSID = ssid
	s.apPassword = password
	s.noteRoles("ap-up")
	return nil
}

// DeactivateAccessPoint implements Radio
func (s *Simulator) DeactivateAccessPoint(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apActive = false
	s.noteRoles("ap-down")
	return nil
}

// AccessPointActive implements Radio
func (s *Simulator) AccessPointActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apActive
}

// Join implements Radio
func (s *Simulator) Join(ctx context.Context, ssid, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stationActive {
		return Wrap(OpJoin, errors.New("station interface is not active"))
	}

	s.joins++
	s.lastSSID = ssid
	s.lastPass = password

	if len(s.scripts) > 0 {
		s.pending = s.scripts[0]
		s.scripts = s.scripts[1:]
	} else {
		s.pending = s.sequenceFor(ssid, password)
	}
	s.current = StatusConnecting
	return nil
}

func (s *Simulator) sequenceFor(ssid, password string) []Status {
	want, ok := s.networks[ssid]
	switch {
	case !ok:
		return []Status{StatusConnecting, StatusNoAccessPointFound}
	case want != password:
		return []Status{StatusConnecting, StatusBadAuth}
	default:
		seq := append([]Status(nil), s.JoinSequence...)
		return append(seq, StatusGotAddress)
	}
}

// Disconnect implements Radio
func (s *Simulator) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLink()
	return nil
}

func (s *Simulator) resetLink() {
	s.pending = nil
	s.current = StatusIdle
}

// Status implements Radio. Each call advances the playback by one step.
func (s *Simulator) Status(ctx context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) > 0 {
		s.current = s.pending[0]
		s.pending = s.pending[1:]
	}
	return s.current, nil
}

// AssignedAddress implements Radio
func (s *Simulator) AssignedAddress(ctx context.Context) (netip.Addr, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != StatusGotAddress {
		return netip.Addr{}, false
	}
	return s.address, true
}

// Joins returns how many join requests were issued.
func (s *Simulator) Joins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joins
}

// LastJoin returns the credentials of the most recent join request.
func (s *Simulator) LastJoin() (ssid, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSSID, s.lastPass
}

// AccessPointConfig returns the SSID and password of the last access point
// that was brought up.
func (s *Simulator) AccessPointConfig() (ssid, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apSSID, s.apPassword
}

// Overlapped reports whether station and access point were ever active at
// the same time.
func (s *Simulator) Overlapped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlapped
}

// RoleEvents returns the sequence of role changes seen so far.
func (s *Simulator) RoleEvents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.roleEvents...)
}

var _ Radio = (*Simulator)(nil)
