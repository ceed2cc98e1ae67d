package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/config"
	"github.com/muurk/wifiportal/internal/credentials"
	"github.com/muurk/wifiportal/internal/discovery"
	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/orchestrator"
	"github.com/muurk/wifiportal/internal/portal"
	"github.com/muurk/wifiportal/internal/ui"
)

// Command flags
var (
	maxAttempts int
	plainOutput bool
	portalSave  bool
	portalHost  string
	portalPort  int
	clearYes    bool
	scanTimeout time.Duration
	configForce bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(portalCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	runCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "Give up after this many connection attempts (0 retries forever)")
	runCmd.Flags().BoolVar(&plainOutput, "plain", false, "Print state changes as lines instead of the status view")

	portalCmd.Flags().BoolVar(&portalSave, "save", false, "Save the submitted credentials to the credentials file")
	portalCmd.Flags().StringVar(&portalHost, "host", "", "Address to listen on (empty = all interfaces)")
	portalCmd.Flags().IntVar(&portalPort, "port", 80, "Port to listen on")

	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Do not ask for confirmation")

	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", discovery.DefaultScanTimeout, "How long to listen for announcements")

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// runCmd is the full onboarding loop
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to wifi, running the setup portal until it works",
	Long: `Connect with the stored credentials. On any failure, start the setup
access point, wait for new credentials from the portal, save them, and try
again.

On a terminal, progress is shown as a live status view. Press ctrl+c to stop.`,
	Example: `  # Onboard using the config file
  wifiportal run

  # Try the simulator with one visible network, portal on port 8080
  wifiportal run --radio sim --sim-network Home=hunter22

  # Give up after three attempts
  wifiportal run --max-attempts 3`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("max-attempts") {
		cfg.MaxAttempts = maxAttempts
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	printer := ui.NewPrinter(cmd.OutOrStdout())

	var (
		orch *orchestrator.Orchestrator
		view *ui.StatusView
	)
	onChange := func(from, to orchestrator.State) {
		logging.LogStateTransition(from.String(), to.String())
		if view == nil {
			printer.Printf("%s -> %s\n", from, to)
			return
		}
		// Disconnected is only ever a step between two roles.
		if to != orchestrator.StateDisconnected {
			view.Update(statusFor(cfg, orch, to))
		}
	}
	onListen := func(addr net.Addr) {
		url := portalURL(cfg, addr)
		if view == nil {
			printer.Printf("Portal listening, open %s\n", url)
			return
		}
		view.Update(ui.StatusMsg{Label: waitingLabel(cfg), Detail: "open " + url})
	}

	orch, err = newOrchestrator(ctx, cfg, onChange, onListen)
	if err != nil {
		return err
	}

	network := "(none stored)"
	if creds := orch.Credentials(); creds != nil {
		network = creds.SSID
	}
	printer.PrintHeader("Onboarding", "wifiportal run", map[string]string{
		"Network":      network,
		"Radio":        radioLabel(cfg),
		"Access point": cfg.AccessPoint.SSID,
		"Portal":       listenLabel(cfg),
	})

	if ui.IsTerminal() && !plainOutput {
		view = ui.StartStatusView(ui.NewStatusModel("", stop))
	}

	go func() {
		<-ctx.Done()
		orch.Shutdown()
	}()

	addr, runErr := orch.Run(ctx)

	if view != nil {
		label := ""
		if runErr == nil {
			label = "Connected"
		}
		if _, err := view.Finish(label, runErr); err != nil {
			logging.Debug("Status view exited with error", zap.Error(err))
		}
	}

	switch {
	case runErr == nil:
		creds := orch.Credentials()
		printer.PrintSuccess("Connected to "+creds.SSID, map[string]string{
			"SSID":        creds.SSID,
			"Address":     addr.String(),
			"Credentials": cfg.CredentialsFile,
		})
		return nil
	case errors.Is(runErr, orchestrator.ErrShutdown), errors.Is(runErr, context.Canceled):
		printer.Println("Stopped.")
		return nil
	default:
		logging.Error("Onboarding failed", zap.Error(runErr))
		return reportFailure(printer, "", runErr)
	}
}

func waitingLabel(cfg *config.Config) string {
	return fmt.Sprintf("Waiting for credentials on %q", cfg.AccessPoint.SSID)
}

// statusFor maps an orchestrator state to a status view step.
func statusFor(cfg *config.Config, orch *orchestrator.Orchestrator, state orchestrator.State) ui.StatusMsg {
	switch state {
	case orchestrator.StateConnecting:
		ssid := ""
		if creds := orch.Credentials(); creds != nil {
			ssid = creds.SSID
		}
		now := time.Now()
		return ui.StatusMsg{
			Label:    fmt.Sprintf("Joining %q", ssid),
			Started:  now,
			Deadline: now.Add(cfg.ConnectionTimeout),
		}
	case orchestrator.StateAccessPoint:
		detail := "open network"
		if cfg.AccessPoint.Password != "" {
			detail = "password " + cfg.AccessPoint.Password
		}
		return ui.StatusMsg{Label: waitingLabel(cfg), Detail: detail}
	case orchestrator.StateConnected:
		return ui.StatusMsg{Label: "Connected"}
	default:
		return ui.StatusMsg{Label: state.String()}
	}
}

// connectCmd makes a single attempt with the stored credentials
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Make one connection attempt with the stored credentials",
	Long: `Join the stored network once and report the outcome. The setup portal is
never started; use 'run' for the full onboarding loop.`,
	RunE: runConnect,
}

func runConnect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	printer := ui.NewPrinter(cmd.OutOrStdout())

	orch, err := newOrchestrator(ctx, cfg, nil, nil)
	if err != nil {
		return err
	}

	network := "(none stored)"
	if creds := orch.Credentials(); creds != nil {
		network = creds.SSID
	}
	printer.PrintHeader("Connect", "wifiportal connect", map[string]string{
		"Network": network,
		"Radio":   radioLabel(cfg),
		"Timeout": cfg.ConnectionTimeout.String(),
	})

	addr, err := orch.Connect(ctx)
	if err != nil {
		return reportFailure(printer, "", err)
	}

	printer.PrintSuccess("Connected to "+network, map[string]string{
		"SSID":    network,
		"Address": addr.String(),
	})
	return nil
}

// portalCmd runs one credential collection session
var portalCmd = &cobra.Command{
	Use:   "portal",
	Short: "Serve the credential page once and print the submission",
	Long: `Serve the setup page until one valid SSID and password are submitted.

The radio is left alone, so the page is reachable on whatever network the
machine is already on. Useful for testing custom pages.`,
	Example: `  # Serve on port 8080 and save what is submitted
  wifiportal portal --port 8080 --save`,
	RunE: runPortal,
}

func runPortal(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Portal.Host = portalHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Portal.Port = portalPort
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	printer := ui.NewPrinter(cmd.OutOrStdout())

	pc, err := portalConfig(cfg)
	if err != nil {
		return err
	}

	advertiser := newAdvertiser(cfg)
	var stopAdvertising func()
	pc.OnListen = func(addr net.Addr) {
		printer.Printf("Portal listening, open %s\n\n", portalURL(cfg, addr))
		if advertiser == nil {
			return
		}
		port := cfg.Portal.Port
		if tcp, ok := addr.(*net.TCPAddr); ok {
			port = tcp.Port
		}
		stop, err := advertiser.Advertise(port)
		if err != nil {
			logging.Warn("Could not advertise portal", zap.Error(err))
			return
		}
		stopAdvertising = stop
	}

	printer.PrintHeader("Credential portal", "wifiportal portal", map[string]string{
		"Listen": listenLabel(cfg),
		"Save":   fmt.Sprint(portalSave),
	})

	sub, err := portal.New(pc).Collect(ctx)
	if stopAdvertising != nil {
		stopAdvertising()
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			printer.Println("Stopped.")
			return nil
		}
		return reportFailure(printer, "Portal failed", err)
	}

	creds, err := credentials.New(sub.SSID, sub.Password)
	if err != nil {
		return err
	}

	details := map[string]string{
		"SSID":     creds.SSID,
		"Password": creds.MaskedPassword(),
	}
	if portalSave {
		store := credentials.NewFileStore(cfg.CredentialsFile)
		if err := store.Save(ctx, creds); err != nil {
			return reportFailure(printer, "Could not save credentials", err)
		}
		details["Saved to"] = store.Path()
	}

	printer.PrintSuccess("Credentials received", details)
	return nil
}

// showCmd displays the stored credentials and config summary
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored network and configuration",
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path := configPath
	if path == "" {
		if path, err = config.GetConfigPath(); err != nil {
			return err
		}
	}

	printer := ui.NewPrinter(cmd.OutOrStdout())
	store := credentials.NewFileStore(cfg.CredentialsFile)

	printer.PrintHeader("Configuration", "wifiportal show", map[string]string{
		"Config":       path,
		"Credentials":  store.Path(),
		"Radio":        radioLabel(cfg),
		"Access point": cfg.AccessPoint.SSID,
		"Portal":       listenLabel(cfg),
		"Timeout":      cfg.ConnectionTimeout.String(),
	})

	creds, err := store.Load(cmd.Context())
	switch {
	case errors.Is(err, credentials.ErrNotFound):
		printer.PrintWarning("No credentials stored", map[string]string{
			"Next step": "wifiportal run",
		})
	case err != nil:
		return reportFailure(printer, "Could not read credentials", err)
	default:
		printer.PrintSuccess("Credentials stored", map[string]string{
			"SSID":     creds.SSID,
			"Password": creds.MaskedPassword(),
		})
	}
	return nil
}

// clearCmd forgets the stored credentials
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the stored credentials",
	Long: `Delete the credentials file so the next 'run' starts the setup portal.

Asks for confirmation unless --yes is given.`,
	RunE: runClear,
}

func runClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	printer := ui.NewPrinter(cmd.OutOrStdout())
	store := credentials.NewFileStore(cfg.CredentialsFile)

	if _, err := store.Load(ctx); errors.Is(err, credentials.ErrNotFound) {
		printer.Println("No credentials stored, nothing to clear.")
		return nil
	}

	orch, err := newOrchestrator(ctx, cfg, nil, nil)
	if err != nil {
		return err
	}
	ssid := "(unreadable)"
	if creds := orch.Credentials(); creds != nil {
		ssid = creds.SSID
	}

	if !clearYes {
		confirm := ui.ClearCredentialsConfirmation(ssid, store.Path())
		if !confirm.Confirm(cmd.InOrStdin(), cmd.OutOrStdout()) {
			return nil
		}
	}

	// ClearCredentials only logs a storage failure, so check the file is gone.
	orch.ClearCredentials(ctx)
	if _, err := store.Load(ctx); !errors.Is(err, credentials.ErrNotFound) {
		if err == nil {
			err = fmt.Errorf("credentials file still present: %s", store.Path())
		}
		return reportFailure(printer, "Could not delete credentials", err)
	}
	printer.PrintSuccess("Credentials cleared", map[string]string{"File": store.Path()})
	return nil
}

// scanCmd discovers devices currently running the setup portal
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find devices that are waiting for wifi credentials",
	Long: `Listen for mDNS announcements from devices running the setup portal.

Run this from a machine joined to the device's setup access point.`,
	Example: `  # Listen for 5 seconds (default)
  wifiportal scan

  # Longer scan for slow networks
  wifiportal scan --timeout 15s`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(cmd); err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	printer := ui.NewPrinter(cmd.OutOrStdout())
	printer.Printf("Scanning for setup portals (timeout: %s)...\n\n", scanTimeout)

	scanner := discovery.NewScanner()
	scanner.Timeout = scanTimeout

	portals, err := scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(portals) == 0 {
		printer.PrintWarning("No portals found", map[string]string{"Timeout": scanTimeout.String()})
		printer.Println("\nTroubleshooting:")
		printer.Println("  - Join the device's setup access point first")
		printer.Println("  - Check that portal.advertise is enabled on the device")
		printer.Println("  - Try increasing --timeout for slower networks")
		return nil
	}

	sort.Slice(portals, func(i, j int) bool { return portals[i].Instance < portals[j].Instance })

	printer.Printf("Found %d portal(s):\n\n", len(portals))
	for i, p := range portals {
		printer.Printf("%d. %s\n", i+1, p.Instance)
		printer.Printf("   Host:  %s\n", p.Hostname)
		printer.Printf("   URL:   %s\n", p.URL())
		printer.Newline()
	}
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every default filled in",
	RunE:  runConfigInit,
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.GetConfigPath(); err != nil {
			return err
		}
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	}

	if err := config.Default().Save(path); err != nil {
		return err
	}

	ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Config file written", map[string]string{"Path": path})
	return nil
}
