package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Portal is an onboarding portal found on the local network.
type Portal struct {
	// Instance is the mDNS service instance name, normally the access
	// point SSID (e.g. "WifiPortal Setup").
	Instance string

	// Hostname is the mDNS hostname (e.g. "raspberrypi.local.")
	Hostname string

	// IP is the advertised address, IPv4 preferred.
	IP string

	// Port is the HTTP port (typically 80)
	Port int

	// Metadata contains the TXT record data
	Metadata map[string]string

	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the portal
func (p *Portal) String() string {
	return fmt.Sprintf("Portal %q (%s) at %s:%d", p.Instance, p.Hostname, p.IP, p.Port)
}

// URL returns the address to open in a browser.
func (p *Portal) URL() string {
	return "http://" + net.JoinHostPort(p.IP, strconv.Itoa(p.Port)) + "/"
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (p *Portal) GetMetadata(key string) string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata[key]
}
