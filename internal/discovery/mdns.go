package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/muurk/wifiportal/internal/logging"
	"go.uber.org/zap"
)

const (
	// ServiceType is the mDNS service type portals advertise as.
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// MarkerKey is the TXT key that distinguishes a portal from any other
	// HTTP service.
	MarkerKey = "wifiportal"

	// DefaultScanTimeout is the default timeout for portal discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is the default portal HTTP port
	DefaultPort = 80
)

// Scanner handles mDNS portal discovery
type Scanner struct {
	// Timeout is the maximum time to wait for responses
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan browses for portals until the timeout elapses or ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context) ([]*Portal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu      sync.Mutex
		portals []*Portal
		seen    = make(map[string]bool)
		done    = make(chan struct{})
	)

	go func() {
		defer close(done)
		for entry := range entries {
			p := parseServiceEntry(entry)
			if p == nil {
				continue
			}
			key := p.Instance + "|" + p.IP
			mu.Lock()
			if !seen[key] {
				seen[key] = true
				portals = append(portals, p)
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	// The resolver closes entries once the browse context ends.
	select {
	case <-done:
	case <-time.After(time.Second):
	}

	mu.Lock()
	defer mu.Unlock()
	return append([]*Portal(nil), portals...), nil
}

// parseServiceEntry converts a zeroconf service entry to a Portal. Returns
// nil if the entry is not a portal.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Portal {
	metadata := parseTXT(entry.Text)
	if metadata[MarkerKey] != "1" {
		return nil
	}

	// Prefer IPv4
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	return &Portal{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// parseTXT splits "key=value" TXT strings. A key without "=" maps to "".
func parseTXT(records []string) map[string]string {
	metadata := make(map[string]string, len(records))
	for _, txt := range records {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}
	return metadata
}

// Advertiser announces a running portal over mDNS.
type Advertiser struct {
	// Instance is the service instance name shown by browsers.
	Instance string
	// Interface restricts the announcement to one network interface.
	// Empty announces on all multicast-capable interfaces.
	Interface string
	// Text is extra TXT data ("key=value") added to the marker record.
	Text []string

	Logger *zap.Logger
}

// Advertise registers the portal on port. The returned function withdraws
// the registration.
func (a *Advertiser) Advertise(port int) (func(), error) {
	logger := a.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}

	var ifaces []net.Interface
	if a.Interface != "" {
		iface, err := net.InterfaceByName(a.Interface)
		if err != nil {
			return nil, fmt.Errorf("failed to find interface %s: %w", a.Interface, err)
		}
		ifaces = []net.Interface{*iface}
	}

	txt := append([]string{MarkerKey + "=1", "path=/"}, a.Text...)

	server, err := zeroconf.Register(a.Instance, ServiceType, ServiceDomain, port, txt, ifaces)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logger.Info("Advertising portal over mDNS",
		zap.String("instance", a.Instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)

	var once sync.Once
	return func() {
		once.Do(func() {
			server.Shutdown()
			logger.Debug("Withdrew mDNS advertisement", zap.String("instance", a.Instance))
		})
	}, nil
}
