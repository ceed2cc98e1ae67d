package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/creasty/defaults"
	"github.com/muurk/wifiportal/internal/credentials"
	"github.com/muurk/wifiportal/internal/logging"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is the config file schema version.
const CurrentVersion = 1

// Radio backends.
const (
	BackendSimulator = "sim"
	BackendNMCLI     = "nmcli"
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// Config is the wifiportal configuration file.
type Config struct {
	Version int `yaml:"version" default:"1"`

	// CredentialsFile is where the joined network is persisted. Empty means
	// wifi.json next to the config file.
	CredentialsFile string `yaml:"credentials_file,omitempty"`

	ConnectionTimeout time.Duration `yaml:"connection_timeout" default:"30s"`
	PollInterval      time.Duration `yaml:"poll_interval" default:"500ms"`
	// MaxAttempts bounds connection attempts in `run`. 0 retries forever.
	MaxAttempts int `yaml:"max_attempts"`

	AccessPoint AccessPoint `yaml:"access_point"`
	Portal      Portal      `yaml:"portal"`
	Radio       Radio       `yaml:"radio"`

	LogLevel string `yaml:"log_level,omitempty"`
}

// AccessPoint is the onboarding network broadcast while collecting
// credentials.
type AccessPoint struct {
	SSID     string `yaml:"ssid" default:"WifiPortal Setup"`
	Password string `yaml:"password" default:"1234567890"` // empty for an open network
}

// Portal configures the captive-portal HTTP server.
type Portal struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port" default:"80"`

	// Optional HTML overrides. The error page should contain %CONTENT%.
	PageFile        string `yaml:"page_file,omitempty"`
	ErrorPageFile   string `yaml:"error_page_file,omitempty"`
	SuccessPageFile string `yaml:"success_page_file,omitempty"`

	ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" default:"4096"`

	// Advertise announces the portal over mDNS while it is collecting.
	Advertise bool `yaml:"advertise" default:"true"`
}

// Radio selects the wifi backend.
type Radio struct {
	Backend   string `yaml:"backend" default:"nmcli"`
	Interface string `yaml:"interface" default:"wlan0"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		// Only reachable with a malformed default tag.
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load reads the configuration at path, or the default location when path
// is empty. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if cfg.CredentialsFile == "" {
		cfg.CredentialsFile = filepath.Join(filepath.Dir(path), credentials.DefaultFileName)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the orchestrator cannot use.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}
	if c.ConnectionTimeout <= 0 {
		return fmt.Errorf("connection_timeout must be positive, got %s", c.ConnectionTimeout)
	}
	if c.PollInterval <= 0 || c.PollInterval > c.ConnectionTimeout {
		return fmt.Errorf("poll_interval must be between 0 and connection_timeout, got %s", c.PollInterval)
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts cannot be negative, got %d", c.MaxAttempts)
	}

	if c.AccessPoint.SSID == "" || len(c.AccessPoint.SSID) > 32 {
		return fmt.Errorf("access_point.ssid must be 1-32 bytes, got %d", len(c.AccessPoint.SSID))
	}
	// WPA2-PSK passphrases are 8-63 characters.
	if n := len(c.AccessPoint.Password); n != 0 && (n < 8 || n > 63) {
		return fmt.Errorf("access_point.password must be empty or 8-63 characters, got %d", n)
	}

	if c.Portal.Port < 0 || c.Portal.Port > 65535 {
		return fmt.Errorf("portal.port out of range: %d", c.Portal.Port)
	}
	// The portal serves one connection at a time, so an idle client without
	// a deadline would hold it forever.
	if c.Portal.ReadTimeout <= 0 {
		return fmt.Errorf("portal.read_timeout must be positive, got %s", c.Portal.ReadTimeout)
	}
	if c.Portal.MaxBodyBytes <= 0 {
		return fmt.Errorf("portal.max_body_bytes must be positive, got %d", c.Portal.MaxBodyBytes)
	}

	switch c.Radio.Backend {
	case BackendSimulator, BackendNMCLI:
	default:
		return fmt.Errorf("unknown radio.backend %q (expected %q or %q)", c.Radio.Backend, BackendSimulator, BackendNMCLI)
	}

	if c.LogLevel != "" {
		if _, err := logging.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	return nil
}

// Save writes the configuration to path, or the default location when path
// is empty. Performs an atomic write to prevent corruption on crash.
func (c *Config) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if path == "" {
		var err error
		path, err = GetConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	// Create directory with user-only permissions (0700)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# wifiportal configuration file
#
# The joined network's password is stored separately in credentials_file.
# access_point.password is the onboarding network's passphrase and is shown
# to anyone setting the device up.
#
# Location: ` + path + `

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}
