package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/muurk/wifiportal/internal/config"
	"github.com/muurk/wifiportal/internal/credentials"
	"github.com/muurk/wifiportal/internal/radio"
)

func TestParseSimNetworks(t *testing.T) {
	networks, err := parseSimNetworks([]string{"Home=hunter22", "Open=", "Cafe=a=b"})
	if err != nil {
		t.Fatalf("parseSimNetworks() error = %v", err)
	}
	want := map[string]string{"Home": "hunter22", "Open": "", "Cafe": "a=b"}
	for ssid, password := range want {
		if networks[ssid] != password {
			t.Errorf("networks[%q] = %q, want %q", ssid, networks[ssid], password)
		}
	}

	for _, bad := range []string{"NoEquals", "=password"} {
		if _, err := parseSimNetworks([]string{bad}); err == nil {
			t.Errorf("parseSimNetworks(%q) error = nil", bad)
		}
	}
}

func TestNewRadio(t *testing.T) {
	cfg := config.Default()

	cfg.Radio.Backend = config.BackendSimulator
	r, err := newRadio(cfg)
	if err != nil {
		t.Fatalf("newRadio(sim) error = %v", err)
	}
	if _, ok := r.(*radio.Simulator); !ok {
		t.Errorf("newRadio(sim) = %T", r)
	}

	cfg.Radio.Backend = config.BackendNMCLI
	r, err = newRadio(cfg)
	if err != nil {
		t.Fatalf("newRadio(nmcli) error = %v", err)
	}
	if _, ok := r.(*radio.NMCLI); !ok {
		t.Errorf("newRadio(nmcli) = %T", r)
	}

	cfg.Radio.Backend = "wext"
	if _, err := newRadio(cfg); err == nil {
		t.Error("newRadio(wext) error = nil")
	}
}

func TestPortalConfig_PageOverride(t *testing.T) {
	page := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(page, []byte("<h1>Lamp setup</h1>"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Portal.PageFile = page
	cfg.Portal.Port = 8080

	pc, err := portalConfig(cfg)
	if err != nil {
		t.Fatalf("portalConfig() error = %v", err)
	}
	if pc.Page != "<h1>Lamp setup</h1>" {
		t.Errorf("Page = %q", pc.Page)
	}
	if pc.ErrorPage == "" || pc.SuccessPage == "" {
		t.Error("built-in pages not applied")
	}
	if pc.Port != 8080 || pc.MaxBodyBytes != 4096 {
		t.Errorf("pc = %+v", pc)
	}

	cfg.Portal.ErrorPageFile = filepath.Join(t.TempDir(), "missing.html")
	if _, err := portalConfig(cfg); err == nil {
		t.Error("portalConfig() with a missing page file error = nil")
	}
}

func TestNewAdvertiser(t *testing.T) {
	cfg := config.Default()
	cfg.Portal.Advertise = false
	if newAdvertiser(cfg) != nil {
		t.Error("advertiser created with advertising disabled")
	}

	cfg.Portal.Advertise = true
	cfg.Radio.Backend = config.BackendSimulator
	a := newAdvertiser(cfg)
	if a == nil || a.Instance != "WifiPortal Setup" || a.Interface != "" {
		t.Errorf("advertiser = %+v", a)
	}
}

func TestPortalURL(t *testing.T) {
	cfg := config.Default()

	tests := []struct {
		name string
		port int
		addr net.Addr
		want string
	}{
		{"bound address", 80, &net.TCPAddr{IP: net.ParseIP("192.168.4.1"), Port: 80}, "http://192.168.4.1/"},
		{"unspecified address", 80, &net.TCPAddr{IP: net.IPv4zero, Port: 8080}, "http://<device address>:8080/"},
		{"no address", 9000, nil, "http://<device address>:9000/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg.Portal.Port = tt.port
			if got := portalURL(cfg, tt.addr); got != tt.want {
				t.Errorf("portalURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommands_ConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	execute := func(args ...string) (string, error) {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&out)
		rootCmd.SetArgs(append([]string{"--config", path}, args...))
		err := rootCmd.Execute()
		return out.String(), err
	}

	out, err := execute("config", "init")
	if err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if !strings.Contains(out, "Config file written") {
		t.Errorf("config init output:\n%s", out)
	}

	if _, err := execute("config", "init"); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("second config init error = %v", err)
	}

	out, err = execute("show")
	if err != nil {
		t.Fatalf("show error = %v", err)
	}
	if !strings.Contains(out, "No credentials stored") {
		t.Errorf("show output:\n%s", out)
	}

	out, err = execute("clear", "--yes")
	if err != nil {
		t.Fatalf("clear error = %v", err)
	}
	if !strings.Contains(out, "nothing to clear") {
		t.Errorf("clear output:\n%s", out)
	}

	out, err = execute("version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "wifiportal ") {
		t.Errorf("version output = %q", out)
	}
}

func TestCommands_ClearRemovesStoredCredentials(t *testing.T) {
	dir := t.TempDir()
	credsPath := filepath.Join(dir, "credentials.json")
	cfgPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("credentials_file: %s\nradio:\n  backend: sim\n", credsPath)
	if err := os.WriteFile(cfgPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	store := credentials.NewFileStore(credsPath)
	creds, err := credentials.New("Home", "hunter22")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(context.Background(), creds); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"--config", cfgPath, "clear", "--yes"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("clear error = %v\n%s", err, out.String())
	}

	if !strings.Contains(out.String(), "Credentials cleared") {
		t.Errorf("clear output:\n%s", out.String())
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, credentials.ErrNotFound) {
		t.Errorf("Load() after clear error = %v, want ErrNotFound", err)
	}
}
