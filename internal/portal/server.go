package portal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/muurk/wifiportal/internal/logging"
	"go.uber.org/zap"
)

// ErrTerminated is returned by Collect when the session was stopped with
// Terminate before a valid submission arrived.
var ErrTerminated = errors.New("portal: session terminated")

// ErrBusy is returned by Collect when another Collect is already running on
// the same Server.
var ErrBusy = errors.New("portal: session already running")

// Config holds the portal server configuration
type Config struct {
	Host string
	Port int

	// Page is served for every GET request.
	Page string
	// ErrorPage is served with status 400. ContentPlaceholder is replaced
	// with the reason.
	ErrorPage string
	// SuccessPage acknowledges the accepted submission.
	SuccessPage string

	// ReadTimeout bounds reading one request and writing its response.
	// Zero disables the deadline.
	ReadTimeout time.Duration

	// MaxBodyBytes caps the declared Content-Length of a POST.
	MaxBodyBytes int64

	// OnListen, if set, is called with the bound address once the listener
	// is up.
	OnListen func(addr net.Addr)

	Logger *zap.Logger
}

// DefaultConfig returns a Config with the built-in pages on port 80.
func DefaultConfig() Config {
	return Config{
		Port:         80,
		Page:         DefaultPage,
		ErrorPage:    DefaultErrorPage,
		SuccessPage:  DefaultSuccessPage,
		ReadTimeout:  10 * time.Second,
		MaxBodyBytes: 4096,
	}
}

// Server runs one captive-portal session: it listens until a valid
// credential pair is posted, answers it, and releases the port.
type Server struct {
	config Config
	logger *zap.Logger

	listen func(network, address string) (net.Listener, error)

	mu         sync.Mutex
	listener   net.Listener
	conn       net.Conn
	terminated bool
}

// New creates a portal server. Empty pages fall back to the built-in ones.
func New(config Config) *Server {
	defaults := DefaultConfig()
	if config.Page == "" {
		config.Page = defaults.Page
	}
	if config.ErrorPage == "" {
		config.ErrorPage = defaults.ErrorPage
	}
	if config.SuccessPage == "" {
		config.SuccessPage = defaults.SuccessPage
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &Server{config: config, logger: logger, listen: net.Listen}
}

// Addr returns the address Collect binds to.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// Collect binds the configured port and serves requests one connection at a
// time until a valid submission is posted. The success page is written before
// Collect returns, and the listener is closed on every exit path.
//
// Collect returns ErrTerminated after Terminate, or ctx.Err() when ctx is
// cancelled. Other accept failures are logged and retried with a capped
// backoff.
func (s *Server) Collect(ctx context.Context) (*Submission, error) {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return nil, ErrTerminated
	}
	if s.listener != nil {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	listener, err := s.listen("tcp", s.Addr())
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	s.listener = listener
	s.mu.Unlock()

	defer s.closeListener()

	stop := context.AfterFunc(ctx, s.Terminate)
	defer stop()

	s.logger.Info("Captive portal listening", zap.String("addr", listener.Addr().String()))
	if s.config.OnListen != nil {
		s.config.OnListen(listener.Addr())
	}

	var retryDelay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if s.isTerminated() || errors.Is(err, net.ErrClosed) {
				return nil, ErrTerminated
			}

			retryDelay = nextAcceptDelay(retryDelay)
			s.logger.Error("Failed to accept connection",
				zap.Error(err),
				zap.Duration("retry_in", retryDelay),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
			continue
		}
		retryDelay = 0

		if sub := s.handleConnection(conn); sub != nil {
			s.logger.Info("Credentials submitted", zap.String("ssid", sub.SSID))
			return sub, nil
		}
	}
}

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// nextAcceptDelay doubles the wait after a failed accept, up to maxAcceptDelay.
func nextAcceptDelay(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptDelay
	}
	if prev *= 2; prev > maxAcceptDelay {
		return maxAcceptDelay
	}
	return prev
}

// handleConnection serves a single request and closes conn. It returns the
// submission when the request was a valid POST.
func (s *Server) handleConnection(conn net.Conn) *Submission {
	remoteAddr := conn.RemoteAddr().String()

	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	s.conn = conn
	s.mu.Unlock()

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		logging.LogConnection(remoteAddr, "connection_closed")
	}()

	logging.LogConnection(remoteAddr, "connection_accepted")

	if s.config.ReadTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.config.ReadTimeout))
	}

	req, err := readRequest(conn, s.config.MaxBodyBytes)
	if err != nil {
		s.logger.Warn("Rejected malformed request",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		s.respondError(conn, remoteAddr, msgMalformedRequest)
		return nil
	}

	logging.LogHTTPRequest(remoteAddr, req.method, req.path, int64(len(req.body)))

	switch req.method {
	case "GET":
		s.respond(conn, remoteAddr, 200, s.config.Page)
		return nil

	case "POST":
		sub, err := ParseSubmission(req.contentType, req.body)
		if err != nil {
			s.logger.Info("Rejected submission",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
			s.respondError(conn, remoteAddr, err.Error())
			return nil
		}
		s.respond(conn, remoteAddr, 200, s.config.SuccessPage)
		return sub

	default:
		s.respondError(conn, remoteAddr, msgUnsupportedMethod)
		return nil
	}
}

func (s *Server) respond(conn net.Conn, remoteAddr string, status int, body string) {
	if err := writeResponse(conn, remoteAddr, status, body); err != nil {
		s.logger.Warn("Failed to send response",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
	}
}

func (s *Server) respondError(conn net.Conn, remoteAddr, message string) {
	s.respond(conn, remoteAddr, 400, renderError(s.config.ErrorPage, message))
}

// Terminate stops the session. A blocked Collect returns ErrTerminated. It is
// safe to call from any goroutine and more than once.
func (s *Server) Terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return
	}
	s.terminated = true

	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.logger.Debug("Captive portal terminated")
}

func (s *Server) isTerminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

func (s *Server) closeListener() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}
