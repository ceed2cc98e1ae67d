package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Store.Load when no credentials have been saved.
var ErrNotFound = errors.New("credentials not found")

// ErrEmptySSID is returned by Validate when the SSID is empty.
var ErrEmptySSID = errors.New("ssid cannot be empty")

// Credentials is the network name and passphrase the device joins in
// station mode.
type Credentials struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

// New creates validated credentials.
func New(ssid, password string) (*Credentials, error) {
	c := &Credentials{SSID: ssid, Password: password}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports whether the pair can be used to join a network.
func (c *Credentials) Validate() error {
	if c.SSID == "" {
		return ErrEmptySSID
	}
	return nil
}

// MaskedPassword returns the password with all but the first character hidden.
func (c *Credentials) MaskedPassword() string {
	if c.Password == "" {
		return ""
	}
	runes := []rune(c.Password)
	if len(runes) == 1 {
		return "*"
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-1)
}

// String never includes the password.
func (c *Credentials) String() string {
	return fmt.Sprintf("ssid=%q password=%s", c.SSID, c.MaskedPassword())
}

// Equal reports whether both pairs name the same network and passphrase.
func (c *Credentials) Equal(other *Credentials) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.SSID == other.SSID && c.Password == other.Password
}

// Store persists a single credential pair. The storage location is bound
// when the store is constructed.
type Store interface {
	// Load returns the stored pair, or ErrNotFound.
	Load(ctx context.Context) (*Credentials, error)
	// Save replaces the stored pair.
	Save(ctx context.Context, creds *Credentials) error
	// Delete forgets the stored pair. Deleting an absent pair is not an error.
	Delete(ctx context.Context) error
}
