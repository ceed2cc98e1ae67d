package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
	}{
		{
			name: "portal with IPv4",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "WifiPortal Setup"},
				HostName:      "raspberrypi.local.",
				Port:          80,
				AddrIPv4:      []net.IP{net.ParseIP("10.42.0.1")},
				Text:          []string{"wifiportal=1", "path=/"},
			},
			wantIP:   "10.42.0.1",
			wantPort: 80,
		},
		{
			name: "IPv4 preferred over IPv6",
			entry: &zeroconf.ServiceEntry{
				HostName: "lamp.local.",
				Port:     8080,
				AddrIPv4: []net.IP{net.ParseIP("192.168.4.1")},
				AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
				Text:     []string{"wifiportal=1"},
			},
			wantIP:   "192.168.4.1",
			wantPort: 8080,
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				HostName: "lamp.local.",
				Port:     80,
				AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
				Text:     []string{"wifiportal=1"},
			},
			wantIP:   "fe80::1",
			wantPort: 80,
		},
		{
			name: "no port defaults to 80",
			entry: &zeroconf.ServiceEntry{
				AddrIPv4: []net.IP{net.ParseIP("10.42.0.1")},
				Text:     []string{"wifiportal=1"},
			},
			wantIP:   "10.42.0.1",
			wantPort: 80,
		},
		{
			name: "ordinary http service",
			entry: &zeroconf.ServiceEntry{
				HostName: "printer.local.",
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.20")},
				Text:     []string{"path=/"},
			},
			wantNil: true,
		},
		{
			name: "marker with wrong value",
			entry: &zeroconf.ServiceEntry{
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.20")},
				Text:     []string{"wifiportal=0"},
			},
			wantNil: true,
		},
		{
			name: "portal without address",
			entry: &zeroconf.ServiceEntry{
				HostName: "lamp.local.",
				Text:     []string{"wifiportal=1"},
			},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseServiceEntry(tt.entry)
			if tt.wantNil {
				if got != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("parseServiceEntry() = nil")
			}
			if got.IP != tt.wantIP {
				t.Errorf("IP = %v, want %v", got.IP, tt.wantIP)
			}
			if got.Port != tt.wantPort {
				t.Errorf("Port = %v, want %v", got.Port, tt.wantPort)
			}
			if got.GetMetadata(MarkerKey) != "1" {
				t.Errorf("Metadata = %v", got.Metadata)
			}
		})
	}
}

func TestParseTXT(t *testing.T) {
	got := parseTXT([]string{"wifiportal=1", "ssid=Lamp Setup", "flag", "eq=a=b"})

	want := map[string]string{
		"wifiportal": "1",
		"ssid":       "Lamp Setup",
		"flag":       "",
		"eq":         "a=b",
	}
	if len(got) != len(want) {
		t.Fatalf("parseTXT() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("parseTXT()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestNewScanner(t *testing.T) {
	if s := NewScanner(); s.Timeout != DefaultScanTimeout {
		t.Errorf("Timeout = %v, want %v", s.Timeout, DefaultScanTimeout)
	}
}

func TestAdvertiser_UnknownInterface(t *testing.T) {
	a := &Advertiser{Instance: "WifiPortal Setup", Interface: "does-not-exist0"}
	if _, err := a.Advertise(80); err == nil {
		t.Error("Advertise() on a missing interface should fail")
	}
}
