package main

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/wifiportal/internal/config"
	"github.com/muurk/wifiportal/internal/credentials"
	"github.com/muurk/wifiportal/internal/discovery"
	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/orchestrator"
	"github.com/muurk/wifiportal/internal/portal"
	"github.com/muurk/wifiportal/internal/radio"
	"github.com/muurk/wifiportal/internal/ui"
)

// reportedError wraps a failure whose result box has already been printed.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// loadConfig reads the config file, applies global flag overrides, and
// initializes logging.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("radio") {
		cfg.Radio.Backend = radioBackend
	}
	if flags.Changed("interface") {
		cfg.Radio.Interface = radioIface
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseSimNetworks parses repeated ssid=password flag values.
func parseSimNetworks(values []string) (map[string]string, error) {
	networks := make(map[string]string, len(values))
	for _, v := range values {
		ssid, password, ok := strings.Cut(v, "=")
		if !ok || ssid == "" {
			return nil, fmt.Errorf("invalid --sim-network %q (expected ssid=password)", v)
		}
		networks[ssid] = password
	}
	return networks, nil
}

func newRadio(cfg *config.Config) (radio.Radio, error) {
	switch cfg.Radio.Backend {
	case config.BackendSimulator:
		networks, err := parseSimNetworks(simNetworks)
		if err != nil {
			return nil, err
		}
		sim := radio.NewSimulator(netip.Addr{})
		for ssid, password := range networks {
			sim.AddNetwork(ssid, password)
		}
		return sim, nil

	case config.BackendNMCLI:
		nm := radio.DefaultNMCLIConfig()
		nm.Interface = cfg.Radio.Interface
		return radio.NewNMCLI(nm, nil, logging.GetLogger()), nil

	default:
		return nil, fmt.Errorf("unknown radio backend %q", cfg.Radio.Backend)
	}
}

// portalConfig builds the portal server settings, reading any page
// overrides from disk.
func portalConfig(cfg *config.Config) (portal.Config, error) {
	pc := portal.DefaultConfig()
	pc.Host = cfg.Portal.Host
	pc.Port = cfg.Portal.Port
	pc.ReadTimeout = cfg.Portal.ReadTimeout
	pc.MaxBodyBytes = cfg.Portal.MaxBodyBytes
	pc.Logger = logging.GetLogger()

	var err error
	if pc.Page, err = portal.ReadPage(cfg.Portal.PageFile, portal.DefaultPage); err != nil {
		return pc, err
	}
	if pc.ErrorPage, err = portal.ReadPage(cfg.Portal.ErrorPageFile, portal.DefaultErrorPage); err != nil {
		return pc, err
	}
	if pc.SuccessPage, err = portal.ReadPage(cfg.Portal.SuccessPageFile, portal.DefaultSuccessPage); err != nil {
		return pc, err
	}
	return pc, nil
}

// newAdvertiser returns the mDNS advertiser for the portal, or nil when
// advertising is disabled.
func newAdvertiser(cfg *config.Config) *discovery.Advertiser {
	if !cfg.Portal.Advertise {
		return nil
	}
	a := &discovery.Advertiser{
		Instance: cfg.AccessPoint.SSID,
		Logger:   logging.GetLogger(),
	}
	// The simulator has no real interface to bind to.
	if cfg.Radio.Backend == config.BackendNMCLI {
		a.Interface = cfg.Radio.Interface
	}
	return a
}

// newOrchestrator wires the configured radio, credentials file, and portal.
// onListen, if set, is told where each portal session is listening.
func newOrchestrator(ctx context.Context, cfg *config.Config, onChange func(from, to orchestrator.State), onListen func(net.Addr)) (*orchestrator.Orchestrator, error) {
	r, err := newRadio(cfg)
	if err != nil {
		return nil, err
	}
	pc, err := portalConfig(cfg)
	if err != nil {
		return nil, err
	}
	pc.OnListen = onListen

	opts := orchestrator.Options{
		Radio:               r,
		Store:               credentials.NewFileStore(cfg.CredentialsFile),
		AccessPointSSID:     cfg.AccessPoint.SSID,
		AccessPointPassword: cfg.AccessPoint.Password,
		ConnectionTimeout:   cfg.ConnectionTimeout,
		PollInterval:        cfg.PollInterval,
		MaxAttempts:         cfg.MaxAttempts,
		Portal:              pc,
		Logger:              logging.GetLogger(),
		OnStateChange:       onChange,
	}
	// A nil *discovery.Advertiser must not become a non-nil interface.
	if a := newAdvertiser(cfg); a != nil {
		opts.Advertiser = a
	}

	return orchestrator.New(ctx, opts)
}

// portalURL is the address a phone joined to the access point should open.
func portalURL(cfg *config.Config, addr net.Addr) string {
	host := cfg.Portal.Host
	port := cfg.Portal.Port
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = tcp.Port
		if host == "" && !tcp.IP.IsUnspecified() {
			host = tcp.IP.String()
		}
	}
	if host == "" {
		host = "<device address>"
	}
	if port == 80 {
		return "http://" + host + "/"
	}
	return fmt.Sprintf("http://%s/", net.JoinHostPort(host, fmt.Sprint(port)))
}

func radioLabel(cfg *config.Config) string {
	if cfg.Radio.Backend == config.BackendNMCLI {
		return fmt.Sprintf("%s (%s)", cfg.Radio.Backend, cfg.Radio.Interface)
	}
	return cfg.Radio.Backend
}

func listenLabel(cfg *config.Config) string {
	return net.JoinHostPort(cfg.Portal.Host, fmt.Sprint(cfg.Portal.Port))
}

// reportFailure prints err as a failure box with a troubleshooting hint.
func reportFailure(p *ui.Printer, title string, err error) error {
	if title == "" {
		title = orchestrator.ShortMessage(err)
	}
	p.PrintError(title, err, []string{orchestrator.TroubleshootingHint(err)})
	return &reportedError{err: err}
}
