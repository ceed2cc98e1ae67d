package radio

import (
	"context"
	"errors"
	"net/netip"
	"testing"
)

func drain(t *testing.T, r Radio, n int) []Status {
	t.Helper()
	var got []Status
	for i := 0; i < n; i++ {
		st, err := r.Status(context.Background())
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		got = append(got, st)
	}
	return got
}

func equalStatuses(a, b []Status) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSimulator_JoinOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		ssid     string
		password string
		want     []Status
	}{
		{
			name:     "known network with correct password",
			ssid:     "Home",
			password: "secret123",
			want:     []Status{StatusConnecting, StatusJoinedNoAddress, StatusGotAddress, StatusGotAddress},
		},
		{
			name:     "known network with wrong password",
			ssid:     "Home",
			password: "wrong",
			want:     []Status{StatusConnecting, StatusBadAuth, StatusBadAuth, StatusBadAuth},
		},
		{
			name:     "unknown network",
			ssid:     "Elsewhere",
			password: "secret123",
			want:     []Status{StatusConnecting, StatusNoAccessPointFound, StatusNoAccessPointFound, StatusNoAccessPointFound},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := NewSimulator(netip.Addr{})
			sim.AddNetwork("Home", "secret123")
			ctx := context.Background()

			if err := sim.ActivateStation(ctx); err != nil {
				t.Fatalf("ActivateStation() error = %v", err)
			}
			if err := sim.Join(ctx, tt.ssid, tt.password); err != nil {
				t.Fatalf("Join() error = %v", err)
			}

			got := drain(t, sim, len(tt.want))
			if !equalStatuses(got, tt.want) {
				t.Errorf("statuses = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSimulator_AssignedAddressOnlyAfterGotAddress(t *testing.T) {
	addr := netip.MustParseAddr("10.1.2.3")
	sim := NewSimulator(addr)
	sim.AddNetwork("Home", "pw")
	ctx := context.Background()

	_ = sim.ActivateStation(ctx)
	_ = sim.Join(ctx, "Home", "pw")

	if _, ok := sim.AssignedAddress(ctx); ok {
		t.Error("AssignedAddress() should be unset before the link is up")
	}

	drain(t, sim, 3)

	got, ok := sim.AssignedAddress(ctx)
	if !ok || got != addr {
		t.Errorf("AssignedAddress() = %v, %v; want %v, true", got, ok, addr)
	}
}

func TestSimulator_NextJoinOverridesSequence(t *testing.T) {
	sim := NewSimulator(netip.Addr{})
	sim.AddNetwork("Home", "pw")
	sim.NextJoin(StatusConnecting, Status(7), StatusGotAddress)
	ctx := context.Background()

	_ = sim.ActivateStation(ctx)
	_ = sim.Join(ctx, "Home", "pw")

	got := drain(t, sim, 3)
	want := []Status{StatusConnecting, Status(7), StatusGotAddress}
	if !equalStatuses(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}

	// The script is consumed; the next join falls back to the network table.
	_ = sim.Join(ctx, "Home", "wrong")
	got = drain(t, sim, 2)
	if got[1] != StatusBadAuth {
		t.Errorf("second join status = %v, want %v", got[1], StatusBadAuth)
	}
}

func TestSimulator_JoinRequiresStation(t *testing.T) {
	sim := NewSimulator(netip.Addr{})
	err := sim.Join(context.Background(), "Home", "pw")
	if !IsRadioError(err) {
		t.Errorf("Join() without station = %v, want radio error", err)
	}
}

func TestSimulator_DisconnectResetsLink(t *testing.T) {
	sim := NewSimulator(netip.Addr{})
	sim.AddNetwork("Home", "pw")
	ctx := context.Background()

	_ = sim.ActivateStation(ctx)
	_ = sim.Join(ctx, "Home", "pw")
	drain(t, sim, 3)
	_ = sim.Disconnect(ctx)

	st, _ := sim.Status(ctx)
	if st != StatusIdle {
		t.Errorf("Status() after Disconnect = %v, want idle", st)
	}
}

func TestSimulator_TracksOverlap(t *testing.T) {
	sim := NewSimulator(netip.Addr{})
	ctx := context.Background()

	_ = sim.ActivateStation(ctx)
	_ = sim.DeactivateStation(ctx)
	_ = sim.ActivateAccessPoint(ctx, "Setup", "1234567890")
	if sim.Overlapped() {
		t.Fatal("Overlapped() = true after strictly alternating roles")
	}

	_ = sim.ActivateStation(ctx)
	if !sim.Overlapped() {
		t.Error("Overlapped() = false with both roles active")
	}
}

func TestSimulator_ActivationError(t *testing.T) {
	sim := NewSimulator(netip.Addr{})
	sim.ActivationError = errors.New("no hardware")

	err := sim.ActivateAccessPoint(context.Background(), "Setup", "")
	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("ActivateAccessPoint() error = %v, want *Error", err)
	}
	if rerr.Op != OpActivateAccessPoint {
		t.Errorf("Op = %q, want %q", rerr.Op, OpActivateAccessPoint)
	}
	if sim.AccessPointActive() {
		t.Error("access point should not be active after a failed activation")
	}
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusIdle, "idle"},
		{StatusGotAddress, "got-address"},
		{StatusBadAuth, "bad-auth"},
		{Status(42), "status(42)"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", int(tt.status), got, tt.want)
		}
	}
}
