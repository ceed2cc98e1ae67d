package orchestrator

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/muurk/wifiportal/internal/radio"
)

func TestConnectError_Is(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want error
	}{
		{KindNoCredentials, ErrNoCredentials},
		{KindIncorrectPassword, ErrIncorrectPassword},
		{KindNoAccessPointFound, ErrNoAccessPointFound},
		{KindUnknown, ErrUnknown},
	}
	for _, tt := range tests {
		err := fmt.Errorf("wrapped: %w", &ConnectError{Kind: tt.kind, SSID: "Home"})
		if !errors.Is(err, tt.want) {
			t.Errorf("errors.Is(%v, %v) = false", tt.kind, tt.want)
		}
		for _, other := range tests {
			if other.kind != tt.kind && errors.Is(err, other.want) {
				t.Errorf("%v unexpectedly matches %v", tt.kind, other.want)
			}
		}
	}
}

func TestConnectError_Error(t *testing.T) {
	tests := []struct {
		err  *ConnectError
		want string
	}{
		{&ConnectError{Kind: KindNoCredentials}, "no credentials"},
		{&ConnectError{Kind: KindIncorrectPassword, SSID: "Home"}, `"Home": incorrect password`},
		{&ConnectError{Kind: KindUnknown, SSID: "Home", Code: radio.Status(7), TimedOut: true}, "timed out (last status 7"},
		{&ConnectError{Kind: KindUnknown, SSID: "Home", Code: radio.StatusConnectFail}, "status -1 connect-fail"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); !strings.Contains(got, tt.want) {
			t.Errorf("Error() = %q, want substring %q", got, tt.want)
		}
	}
}

func TestErrorKind_String(t *testing.T) {
	if got := KindNoAccessPointFound.String(); got != "NoAccessPointFound" {
		t.Errorf("String() = %q", got)
	}
	if got := ErrorKind(99).String(); got != "ErrorKind(99)" {
		t.Errorf("String() = %q", got)
	}
}

func TestIsFatal(t *testing.T) {
	fatal := radio.Wrap(radio.OpActivateStation, errors.New("no device"))
	if !IsFatal(fatal) {
		t.Error("IsFatal(radio error) = false")
	}
	if IsFatal(&ConnectError{Kind: KindUnknown}) {
		t.Error("IsFatal(ConnectError) = true")
	}
}

func TestShortMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&ConnectError{Kind: KindNoCredentials}, "No wifi credentials stored"},
		{&ConnectError{Kind: KindIncorrectPassword}, "Incorrect wifi password"},
		{&ConnectError{Kind: KindNoAccessPointFound}, "Network not found"},
		{&ConnectError{Kind: KindUnknown, TimedOut: true}, "Connection timed out"},
		{&ConnectError{Kind: KindUnknown, Code: radio.StatusConnectFail}, "Connection failed (status -1)"},
		{radio.Wrap(radio.OpJoin, errors.New("x")), "Radio hardware error"},
		{errors.New("something else"), "something else"},
	}
	for _, tt := range tests {
		if got := ShortMessage(tt.err); got != tt.want {
			t.Errorf("ShortMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestTroubleshootingHint(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&ConnectError{Kind: KindNoCredentials}, "wifiportal portal --save"},
		{&ConnectError{Kind: KindIncorrectPassword}, "case sensitive"},
		{&ConnectError{Kind: KindNoAccessPointFound}, "SSID spelling"},
		{&ConnectError{Kind: KindUnknown}, "connection_timeout"},
		{radio.Wrap(radio.OpActivateAccessPoint, errors.New("x")), "rfkill"},
		{errors.New("x"), "unexpected error"},
	}
	for _, tt := range tests {
		if got := TroubleshootingHint(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("TroubleshootingHint(%v) = %q, want substring %q", tt.err, got, tt.want)
		}
	}
}

func TestState_String(t *testing.T) {
	if got := StateAccessPoint.String(); got != "access-point" {
		t.Errorf("String() = %q", got)
	}
	if got := State(42).String(); got != "State(42)" {
		t.Errorf("String() = %q", got)
	}
}
