package radio

import (
	"bytes"
	"context"
	"fmt"
	"net/netip"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// NetworkManager device states as reported by `nmcli device show`.
const (
	nmStateUnavailable  = 20
	nmStateDisconnected = 30
	nmStatePrepare      = 40
	nmStateIPConfig     = 70
	nmStateActivated    = 100
	nmStateDeactivating = 110
)

// NMCLIConfig holds the configuration for the NetworkManager backend.
type NMCLIConfig struct {
	// Path is the nmcli binary.
	// Default: "nmcli" (searches PATH)
	Path string

	// Interface is the wifi device name (e.g. "wlan0").
	Interface string

	// HotspotConnection is the NetworkManager connection name used for the
	// access point profile.
	// Default: "wifiportal-ap"
	HotspotConnection string

	// JoinTimeout bounds a single `nmcli device wifi connect` invocation.
	// Default: 90s
	JoinTimeout time.Duration
}

// DefaultNMCLIConfig returns an NMCLIConfig with sensible defaults.
func DefaultNMCLIConfig() NMCLIConfig {
	return NMCLIConfig{
		Path:              "nmcli",
		Interface:         "wlan0",
		HotspotConnection: "wifiportal-ap",
		JoinTimeout:       90 * time.Second,
	}
}

// CommandError is a failed nmcli invocation.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("nmcli %s (exit %d): %s", strings.Join(redact(e.Args), " "), e.ExitCode, msg)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// redact hides the argument that follows "password".
func redact(args []string) []string {
	out := append([]string(nil), args...)
	for i := 0; i+1 < len(out); i++ {
		if out[i] == "password" {
			out[i+1] = "***"
		}
	}
	return out
}

// Runner executes nmcli with args and returns its stdout.
type Runner func(ctx context.Context, args ...string) (string, error)

// ExecRunner returns a Runner that invokes the binary at path via os/exec.
func ExecRunner(path string) Runner {
	return func(ctx context.Context, args ...string) (string, error) {
		cmd := exec.CommandContext(ctx, path, args...)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		if err != nil {
			exitCode := -1
			if exitErr, ok := err.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
			}
			return stdout.String(), &CommandError{
				Args:     args,
				ExitCode: exitCode,
				Stderr:   stderr.String(),
				Err:      err,
			}
		}
		return stdout.String(), nil
	}
}

type joinAttempt struct {
	done chan struct{}
	err  error
}

// NMCLI drives a wifi device through the NetworkManager command line client.
//
// Join runs `nmcli device wifi connect` in the background so the caller can
// poll Status the same way it would poll an embedded radio.
type NMCLI struct {
	config NMCLIConfig
	run    Runner
	logger *zap.Logger

	mu            sync.Mutex
	stationActive bool
	apActive      bool
	join          *joinAttempt
	cancelJoin    context.CancelFunc
}

// NewNMCLI creates an NMCLI backend. A nil runner uses ExecRunner(config.Path).
func NewNMCLI(config NMCLIConfig, run Runner, logger *zap.Logger) *NMCLI {
	defaults := DefaultNMCLIConfig()
	if config.Path == "" {
		config.Path = defaults.Path
	}
	if config.Interface == "" {
		config.Interface = defaults.Interface
	}
	if config.HotspotConnection == "" {
		config.HotspotConnection = defaults.HotspotConnection
	}
	if config.JoinTimeout <= 0 {
		config.JoinTimeout = defaults.JoinTimeout
	}
	if run == nil {
		run = ExecRunner(config.Path)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NMCLI{config: config, run: run, logger: logger}
}

// ActivateStation implements Radio
func (n *NMCLI) ActivateStation(ctx context.Context) error {
	if _, err := n.run(ctx, "radio", "wifi", "on"); err != nil {
		return Wrap(OpActivateStation, err)
	}
	if _, err := n.run(ctx, "device", "set", n.config.Interface, "managed", "yes"); err != nil {
		return Wrap(OpActivateStation, err)
	}

	n.mu.Lock()
	n.stationActive = true
	n.mu.Unlock()

	n.logger.Debug("station role active", zap.String("interface", n.config.Interface))
	return nil
}

// DeactivateStation implements Radio
func (n *NMCLI) DeactivateStation(ctx context.Context) error {
	if err := n.Disconnect(ctx); err != nil {
		return Wrap(OpDeactivateStation, err)
	}

	n.mu.Lock()
	n.stationActive = false
	n.mu.Unlock()
	return nil
}

// StationActive implements Radio
func (n *NMCLI) StationActive() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stationActive
}

// ActivateAccessPoint implements Radio
func (n *NMCLI) ActivateAccessPoint(ctx context.Context, ssid, password string) error {
	args := []string{"device", "wifi", "hotspot",
		"ifname", n.config.Interface,
		"con-name", n.config.HotspotConnection,
		"ssid", ssid,
	}
	if password != "" {
		args = append(args, "password", password)
	}
	if _, err := n.run(ctx, args...); err != nil {
		return Wrap(OpActivateAccessPoint, err)
	}

	n.mu.Lock()
	n.apActive = true
	n.mu.Unlock()

	n.logger.Info("access point active",
		zap.String("interface", n.config.Interface),
		zap.String("ssid", ssid),
	)
	return nil
}

// DeactivateAccessPoint implements Radio
func (n *NMCLI) DeactivateAccessPoint(ctx context.Context) error {
	if _, err := n.run(ctx, "connection", "down", n.config.HotspotConnection); err != nil {
		return Wrap(OpDeactivateAccessPoint, err)
	}

	n.mu.Lock()
	n.apActive = false
	n.mu.Unlock()
	return nil
}

// AccessPointActive implements Radio
func (n *NMCLI) AccessPointActive() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.apActive
}

// Join implements Radio
func (n *NMCLI) Join(ctx context.Context, ssid, password string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.stationActive {
		return Wrap(OpJoin, fmt.Errorf("station role is not active on %s", n.config.Interface))
	}
	if n.cancelJoin != nil {
		n.cancelJoin()
	}

	args := []string{"--wait", strconv.Itoa(int(n.config.JoinTimeout.Seconds())),
		"device", "wifi", "connect", ssid,
		"ifname", n.config.Interface,
	}
	if password != "" {
		args = append(args, "password", password)
	}

	// The attempt outlives the caller's context; Disconnect cancels it.
	joinCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.config.JoinTimeout+5*time.Second)
	attempt := &joinAttempt{done: make(chan struct{})}
	n.join = attempt
	n.cancelJoin = cancel

	go func() {
		defer cancel()
		_, err := n.run(joinCtx, args...)
		attempt.err = err
		close(attempt.done)
	}()

	n.logger.Debug("join started",
		zap.String("interface", n.config.Interface),
		zap.String("ssid", ssid),
		zap.Int("password_len", len(password)),
	)
	return nil
}

// Disconnect implements Radio
func (n *NMCLI) Disconnect(ctx context.Context) error {
	n.mu.Lock()
	if n.cancelJoin != nil {
		n.cancelJoin()
		n.cancelJoin = nil
	}
	n.join = nil
	n.mu.Unlock()

	if _, err := n.run(ctx, "device", "disconnect", n.config.Interface); err != nil {
		// Disconnecting an idle device is not a failure.
		if cmdErr, ok := err.(*CommandError); ok && strings.Contains(cmdErr.Stderr, "not active") {
			return nil
		}
		return Wrap(OpDisconnect, err)
	}
	return nil
}

// Status implements Radio
func (n *NMCLI) Status(ctx context.Context) (Status, error) {
	n.mu.Lock()
	attempt := n.join
	n.mu.Unlock()

	if attempt != nil {
		select {
		case <-attempt.done:
			if attempt.err != nil {
				return classifyJoinError(attempt.err), nil
			}
		default:
		}
	}

	out, err := n.run(ctx, "-t", "-g", "GENERAL.STATE", "device", "show", n.config.Interface)
	if err != nil {
		return StatusIdle, err
	}
	state, err := parseDeviceState(out)
	if err != nil {
		return StatusIdle, err
	}

	switch {
	case state == nmStateActivated:
		return StatusGotAddress, nil
	case state == nmStateIPConfig:
		return StatusJoinedNoAddress, nil
	case state >= nmStatePrepare && state < nmStateActivated:
		return StatusConnecting, nil
	case state == nmStateDisconnected || state == nmStateUnavailable || state == nmStateDeactivating:
		if attempt != nil {
			return StatusConnecting, nil
		}
		return StatusIdle, nil
	default:
		// Pass unknown NetworkManager states through; callers treat them as
		// still in progress.
		return Status(state), nil
	}
}

// AssignedAddress implements Radio
func (n *NMCLI) AssignedAddress(ctx context.Context) (netip.Addr, bool) {
	out, err := n.run(ctx, "-t", "-g", "IP4.ADDRESS", "device", "show", n.config.Interface)
	if err != nil {
		n.logger.Debug("address query failed", zap.Error(err))
		return netip.Addr{}, false
	}
	return parseAddress(out)
}

// parseDeviceState extracts the numeric state from output like "100 (connected)".
func parseDeviceState(out string) (int, error) {
	field := stripField(strings.TrimSpace(out))
	if i := strings.IndexByte(field, ' '); i >= 0 {
		field = field[:i]
	}
	state, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("unexpected device state %q: %w", strings.TrimSpace(out), err)
	}
	return state, nil
}

// parseAddress extracts the first address from output like
// "192.168.1.5/24 | 10.0.0.2/8".
func parseAddress(out string) (netip.Addr, bool) {
	for _, field := range strings.FieldsFunc(out, func(r rune) bool { return r == '|' || r == '\n' }) {
		field = stripField(strings.TrimSpace(field))
		if field == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(field); err == nil {
			return prefix.Addr(), true
		}
		if addr, err := netip.ParseAddr(field); err == nil {
			return addr, true
		}
	}
	return netip.Addr{}, false
}

// stripField drops a "GENERAL.STATE:" style key that nmcli prints in terse
// mode without -g.
func stripField(s string) string {
	if i := strings.IndexByte(s, ':'); i > 0 && strings.ContainsAny(s[:i], "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

// classifyJoinError maps nmcli's connect failures to link statuses.
func classifyJoinError(err error) Status {
	msg := err.Error()
	if cmdErr, ok := err.(*CommandError); ok {
		msg = cmdErr.Stderr
	}
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "secrets were required"),
		strings.Contains(lower, "invalid passphrase"),
		strings.Contains(lower, "802-11-wireless-security.psk"):
		return StatusBadAuth
	case strings.Contains(lower, "no network with ssid"):
		return StatusNoAccessPointFound
	default:
		return StatusConnectFail
	}
}

var _ Radio = (*NMCLI)(nil)
