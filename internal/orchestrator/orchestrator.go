package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/muurk/wifiportal/internal/credentials"
	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/portal"
	"github.com/muurk/wifiportal/internal/radio"
	"go.uber.org/zap"
)

// Defaults used when the corresponding Options field is zero.
const (
	DefaultConnectionTimeout   = 30 * time.Second
	DefaultPollInterval        = 500 * time.Millisecond
	DefaultAccessPointSSID     = "WifiPortal Setup"
	DefaultAccessPointPassword = "1234567890"
)

// PortalSession is one credential collection session. *portal.Server
// satisfies it.
type PortalSession interface {
	Collect(ctx context.Context) (*portal.Submission, error)
	Terminate()
}

// Advertiser announces a running portal on the local network. The returned
// function withdraws the announcement.
type Advertiser interface {
	Advertise(port int) (stop func(), err error)
}

// Options configures an Orchestrator. Radio and Store are required.
type Options struct {
	Radio radio.Radio
	Store credentials.Store

	AccessPointSSID     string
	AccessPointPassword string

	// ConnectionTimeout bounds a single Connect.
	ConnectionTimeout time.Duration
	// PollInterval is the gap between radio status queries.
	PollInterval time.Duration
	// MaxAttempts bounds the number of Connect calls Run makes. Zero means
	// Run keeps offering the portal until a connection succeeds.
	MaxAttempts int

	// Portal configures the sessions started by
	// AcquireCredentialsInteractively.
	Portal portal.Config
	// NewPortal builds a session from Portal. Defaults to portal.New.
	NewPortal func(portal.Config) PortalSession
	// Advertiser, if set, announces the portal while it is collecting.
	Advertiser Advertiser

	Clock  Clock
	Logger *zap.Logger

	// OnStateChange is called after every state transition, outside of any
	// lock.
	OnStateChange func(from, to State)
}

// Orchestrator drives the radio between station and access-point roles and
// runs the onboarding portal when no working credentials are held.
//
// It is the sole mutator of radio roles and never leaves both active.
type Orchestrator struct {
	radio  radio.Radio
	store  credentials.Store
	clock  Clock
	logger *zap.Logger

	apSSID       string
	apPassword   string
	timeout      time.Duration
	pollInterval time.Duration
	maxAttempts  int

	portalConfig  portal.Config
	newPortal     func(portal.Config) PortalSession
	advertiser    Advertiser
	onStateChange func(from, to State)

	mu       sync.Mutex
	state    State
	creds    *credentials.Credentials
	session  PortalSession
	shutdown bool
}

// New creates an Orchestrator and loads any stored credentials. A missing
// or unreadable credentials file is not an error: the orchestrator starts
// without credentials and Run falls back to the portal.
func New(ctx context.Context, opts Options) (*Orchestrator, error) {
	if opts.Radio == nil {
		return nil, errors.New("orchestrator: radio is required")
	}
	if opts.Store == nil {
		return nil, errors.New("orchestrator: credentials store is required")
	}

	o := &Orchestrator{
		radio:         opts.Radio,
		store:         opts.Store,
		clock:         opts.Clock,
		logger:        opts.Logger,
		apSSID:        opts.AccessPointSSID,
		apPassword:    opts.AccessPointPassword,
		timeout:       opts.ConnectionTimeout,
		pollInterval:  opts.PollInterval,
		maxAttempts:   opts.MaxAttempts,
		portalConfig:  opts.Portal,
		newPortal:     opts.NewPortal,
		advertiser:    opts.Advertiser,
		onStateChange: opts.OnStateChange,
		state:         StateDisconnected,
	}

	if o.clock == nil {
		o.clock = realClock{}
	}
	if o.logger == nil {
		o.logger = logging.GetLogger()
	}
	if o.apSSID == "" {
		o.apSSID = DefaultAccessPointSSID
	}
	if o.timeout <= 0 {
		o.timeout = DefaultConnectionTimeout
	}
	if o.pollInterval <= 0 {
		o.pollInterval = DefaultPollInterval
	}
	if o.newPortal == nil {
		o.newPortal = func(c portal.Config) PortalSession { return portal.New(c) }
	}
	if o.portalConfig.Logger == nil {
		o.portalConfig.Logger = o.logger
	}

	creds, err := o.store.Load(ctx)
	switch {
	case err == nil:
		o.creds = creds
		o.logger.Info("Loaded stored credentials", zap.String("ssid", creds.SSID))
	case errors.Is(err, credentials.ErrNotFound):
		o.logger.Info("No stored credentials, the access point will be started")
	default:
		o.logger.Warn("Could not load stored credentials, ignoring them", zap.Error(err))
	}

	return o, nil
}

// State returns the current connectivity state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Credentials returns a copy of the held credentials, or nil.
func (o *Orchestrator) Credentials() *credentials.Credentials {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.creds == nil {
		return nil
	}
	c := *o.creds
	return &c
}

// SetCredentials replaces the held credentials without persisting them.
func (o *Orchestrator) SetCredentials(creds *credentials.Credentials) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if creds == nil {
		o.creds = nil
		return
	}
	c := *creds
	o.creds = &c
}

// Connected reports whether the station role currently holds an address.
func (o *Orchestrator) Connected(ctx context.Context) bool {
	if o.State() != StateConnected || !o.radio.StationActive() {
		return false
	}
	_, ok := o.radio.AssignedAddress(ctx)
	return ok
}

func (o *Orchestrator) setState(to State) {
	o.mu.Lock()
	from := o.state
	o.state = to
	hook := o.onStateChange
	o.mu.Unlock()

	if from == to {
		return
	}
	o.logger.Debug("State transition",
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	if hook != nil {
		hook(from, to)
	}
}

// Connect joins the network named by the held credentials and waits for an
// address.
//
// It returns a *ConnectError when the attempt fails; the station is
// disconnected before returning. Radio driver failures are returned as
// *radio.Error and are not retryable. Connect fails with KindNoCredentials
// without touching the radio when no credentials are held.
func (o *Orchestrator) Connect(ctx context.Context) (netip.Addr, error) {
	creds := o.Credentials()
	if creds == nil {
		return netip.Addr{}, &ConnectError{Kind: KindNoCredentials}
	}

	if err := o.enterStation(ctx); err != nil {
		return netip.Addr{}, err
	}

	// A stale association makes the next join fail on most drivers.
	if err := o.radio.Disconnect(ctx); err != nil {
		o.logger.Debug("Clearing previous association failed", zap.Error(err))
	}

	if err := o.radio.Join(ctx, creds.SSID, creds.Password); err != nil {
		o.setState(StateDisconnected)
		return netip.Addr{}, err
	}
	o.setState(StateConnecting)

	o.logger.Info("Joining network",
		zap.String("ssid", creds.SSID),
		zap.Duration("timeout", o.timeout),
	)

	deadline := o.clock.Now().Add(o.timeout)
	last := radio.StatusConnecting
	polls := 0

	for {
		polls++
		status, err := o.radio.Status(ctx)
		if err != nil {
			o.logger.Debug("Status query failed, still waiting", zap.Error(err))
		} else {
			if status != last {
				o.logger.Debug("Link status changed",
					zap.Stringer("from", last),
					zap.Stringer("to", status),
				)
			}
			last = status

			switch status {
			case radio.StatusGotAddress:
				if addr, ok := o.radio.AssignedAddress(ctx); ok {
					o.setState(StateConnected)
					o.logger.Info("Connected",
						zap.String("ssid", creds.SSID),
						zap.String("address", addr.String()),
						zap.Int("polls", polls),
					)
					return addr, nil
				}
			case radio.StatusBadAuth:
				return netip.Addr{}, o.fail(ctx, &ConnectError{Kind: KindIncorrectPassword, SSID: creds.SSID, Code: status})
			case radio.StatusNoAccessPointFound:
				return netip.Addr{}, o.fail(ctx, &ConnectError{Kind: KindNoAccessPointFound, SSID: creds.SSID, Code: status})
			case radio.StatusConnectFail:
				return netip.Addr{}, o.fail(ctx, &ConnectError{Kind: KindUnknown, SSID: creds.SSID, Code: status})
			default:
				// Idle, connecting, and any code the firmware does not
				// document all mean "keep waiting".
			}
		}

		if !o.clock.Now().Before(deadline) {
			return netip.Addr{}, o.fail(ctx, &ConnectError{Kind: KindUnknown, SSID: creds.SSID, Code: last, TimedOut: true})
		}

		select {
		case <-ctx.Done():
			return netip.Addr{}, o.fail(ctx, ctx.Err())
		case <-o.clock.After(o.pollInterval):
		}
	}
}

// fail leaves the station idle and returns err.
func (o *Orchestrator) fail(ctx context.Context, err error) error {
	if derr := o.radio.Disconnect(context.WithoutCancel(ctx)); derr != nil {
		o.logger.Warn("Disconnect after failed attempt failed", zap.Error(derr))
	}
	o.setState(StateDisconnected)
	o.logger.Warn("Connection attempt failed", zap.Error(err))
	return err
}

// enterStation switches the radio to the station role.
func (o *Orchestrator) enterStation(ctx context.Context) error {
	if o.radio.AccessPointActive() {
		if err := o.radio.DeactivateAccessPoint(ctx); err != nil {
			return err
		}
		o.setState(StateDisconnected)
	}
	if !o.radio.StationActive() {
		if err := o.radio.ActivateStation(ctx); err != nil {
			return err
		}
	}
	return nil
}

// StartAccessPoint switches the radio to the access-point role with the
// configured SSID and password. Activation failures are *radio.Error.
func (o *Orchestrator) StartAccessPoint(ctx context.Context) error {
	if o.radio.StationActive() {
		if err := o.radio.DeactivateStation(ctx); err != nil {
			return err
		}
		o.setState(StateDisconnected)
	}
	if !o.radio.AccessPointActive() {
		if err := o.radio.ActivateAccessPoint(ctx, o.apSSID, o.apPassword); err != nil {
			return err
		}
		o.logger.Info("Access point started", zap.String("ssid", o.apSSID))
	}
	o.setState(StateAccessPoint)
	return nil
}

// AcquireCredentialsInteractively starts the access point if needed, runs
// one portal session, and holds and persists the submitted credentials. It
// blocks until a valid submission arrives, the session is terminated, or ctx
// is done. A failure to persist is logged and does not fail the call.
func (o *Orchestrator) AcquireCredentialsInteractively(ctx context.Context) (*credentials.Credentials, error) {
	if o.radio.StationActive() || !o.radio.AccessPointActive() {
		if err := o.StartAccessPoint(ctx); err != nil {
			return nil, err
		}
	}

	config := o.portalConfig
	var stopAdvertising func()
	if o.advertiser != nil {
		onListen := config.OnListen
		config.OnListen = func(addr net.Addr) {
			if onListen != nil {
				onListen(addr)
			}
			port := config.Port
			if tcp, ok := addr.(*net.TCPAddr); ok {
				port = tcp.Port
			}
			stop, err := o.advertiser.Advertise(port)
			if err != nil {
				o.logger.Warn("Could not advertise portal", zap.Error(err))
				return
			}
			stopAdvertising = stop
		}
	}

	session := o.newPortal(config)

	o.mu.Lock()
	if o.shutdown {
		o.mu.Unlock()
		return nil, ErrShutdown
	}
	o.session = session
	o.mu.Unlock()

	sub, err := session.Collect(ctx)

	o.mu.Lock()
	o.session = nil
	shutdown := o.shutdown
	o.mu.Unlock()

	// OnListen runs on the Collect goroutine, so stopAdvertising is settled.
	if stopAdvertising != nil {
		stopAdvertising()
	}

	if err != nil {
		if shutdown && errors.Is(err, portal.ErrTerminated) {
			return nil, ErrShutdown
		}
		return nil, fmt.Errorf("portal session: %w", err)
	}

	creds, err := credentials.New(sub.SSID, sub.Password)
	if err != nil {
		return nil, fmt.Errorf("portal session: %w", err)
	}
	o.SetCredentials(creds)

	if err := o.store.Save(ctx, creds); err != nil {
		o.logger.Warn("Could not persist credentials", zap.Error(err))
	}

	o.logger.Info("Credentials acquired", zap.String("ssid", creds.SSID))
	return creds, nil
}

// ClearCredentials forgets the held credentials and deletes the stored copy.
// A storage failure is logged only.
func (o *Orchestrator) ClearCredentials(ctx context.Context) {
	o.SetCredentials(nil)
	if err := o.store.Delete(ctx); err != nil {
		o.logger.Warn("Could not delete stored credentials", zap.Error(err))
		return
	}
	o.logger.Info("Credentials cleared")
}

// Run connects with the held credentials and, on every failure, starts the
// access point, collects new credentials, and tries again. It returns the
// station address on success.
//
// Connection failures never escape Run. It returns early only on a radio
// driver failure, a portal failure, ctx cancellation, Shutdown, or once
// MaxAttempts is reached.
func (o *Orchestrator) Run(ctx context.Context) (netip.Addr, error) {
	for attempt := 1; ; attempt++ {
		if o.isShutdown() {
			return netip.Addr{}, ErrShutdown
		}

		addr, err := o.Connect(ctx)
		if err == nil {
			return addr, nil
		}

		var cerr *ConnectError
		if !errors.As(err, &cerr) {
			return netip.Addr{}, err
		}

		if o.maxAttempts > 0 && attempt >= o.maxAttempts {
			return netip.Addr{}, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempt, err)
		}

		o.logger.Info("Falling back to access point",
			zap.Int("attempt", attempt),
			zap.Stringer("reason", cerr.Kind),
		)

		if err := o.StartAccessPoint(ctx); err != nil {
			return netip.Addr{}, err
		}
		if _, err := o.AcquireCredentialsInteractively(ctx); err != nil {
			return netip.Addr{}, err
		}
	}
}

// Shutdown terminates an in-flight portal session and makes Run return
// ErrShutdown at its next step. It is safe to call from any goroutine.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	o.shutdown = true
	session := o.session
	o.mu.Unlock()

	if session != nil {
		session.Terminate()
	}
}

func (o *Orchestrator) isShutdown() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.shutdown
}
