// Package config loads the options enumerated in the project's external
// interface: visibility, timeouts, buffer sizing, and certificate policy.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Visibility gates whether the local publishers (BLE beacon, mDNS responder)
// run at all.
type Visibility string

const (
	VisibilityOff          Visibility = "Off"
	VisibilityContactsOnly Visibility = "ContactsOnly"
	VisibilityEveryone     Visibility = "Everyone"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityOff, VisibilityContactsOnly, VisibilityEveryone:
		return true
	default:
		return false
	}
}

// Config is the single source of truth for every tunable named in the
// external interfaces section. Zero-valued fields are filled with their
// documented defaults by Load and by Default.
type Config struct {
	Visibility Visibility `json:"visibility"`
	AutoAccept bool       `json:"auto_accept"`

	Port uint16 `json:"port"`

	ConnectTimeoutSeconds  int `json:"connect_timeout_s"`
	ApprovalTimeoutSeconds int `json:"approval_timeout_s"`
	TransferTimeoutMinutes int `json:"transfer_timeout_min"`
	PeerExpirationSeconds  int `json:"peer_expiration_s"`

	BufferSizeBytes int `json:"buffer_size"`

	PreserveTimestamps bool `json:"preserve_timestamps"`

	CertValidityDays          int `json:"cert_validity_days"`
	CertRenewalThresholdDays  int `json:"cert_renewal_threshold_days"`
	MaxConcurrentTransfers    int `json:"max_concurrent_transfers"`

	SaveDirectory string `json:"save_directory"`
	DisplayName   string `json:"display_name"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`

	IdentityDBPath    string `json:"identity_db_path"`
	IdentityPlistPath string `json:"identity_plist_path"`
}

// Default returns a Config populated entirely with documented defaults.
func Default() Config {
	return Config{
		Visibility:               VisibilityContactsOnly,
		AutoAccept:               false,
		Port:                     8771,
		ConnectTimeoutSeconds:    30,
		ApprovalTimeoutSeconds:   60,
		TransferTimeoutMinutes:   30,
		PeerExpirationSeconds:    60,
		BufferSizeBytes:          81920,
		PreserveTimestamps:       true,
		CertValidityDays:         365,
		CertRenewalThresholdDays: 30,
		MaxConcurrentTransfers:   3,
		SaveDirectory:            "",
		IdentityDBPath:           "airdrop-identity.db",
		IdentityPlistPath:        "airdrop-identity.plist",
	}
}

var ErrInvalidVisibility = errors.New("config: invalid visibility value")

// Load reads a Config from a JSON file, applying defaults to any zero-valued
// field that Default does not leave at its natural zero value (bools and
// Visibility excepted, since "false"/"Off" are meaningful non-defaults only
// when explicitly present; Load merges onto Default instead of the zero
// struct to keep that distinction intact).
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &cfg, nil
	} else if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.applyZeroDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyZeroDefaults fills in fields left at Go's zero value after unmarshal,
// which is indistinguishable from "not present in the JSON" for numeric
// fields since this loader has no concept of optional pointers.
func (c *Config) applyZeroDefaults() error {
	d := Default()
	if c.Visibility == "" {
		c.Visibility = d.Visibility
	}
	if !c.Visibility.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidVisibility, c.Visibility)
	}
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.ConnectTimeoutSeconds == 0 {
		c.ConnectTimeoutSeconds = d.ConnectTimeoutSeconds
	}
	if c.ApprovalTimeoutSeconds == 0 {
		c.ApprovalTimeoutSeconds = d.ApprovalTimeoutSeconds
	}
	if c.TransferTimeoutMinutes == 0 {
		c.TransferTimeoutMinutes = d.TransferTimeoutMinutes
	}
	if c.PeerExpirationSeconds == 0 {
		c.PeerExpirationSeconds = d.PeerExpirationSeconds
	}
	if c.BufferSizeBytes == 0 {
		c.BufferSizeBytes = d.BufferSizeBytes
	}
	if c.CertValidityDays == 0 {
		c.CertValidityDays = d.CertValidityDays
	}
	if c.CertRenewalThresholdDays == 0 {
		c.CertRenewalThresholdDays = d.CertRenewalThresholdDays
	}
	if c.MaxConcurrentTransfers == 0 {
		c.MaxConcurrentTransfers = d.MaxConcurrentTransfers
	}
	if c.IdentityDBPath == "" {
		c.IdentityDBPath = d.IdentityDBPath
	}
	if c.IdentityPlistPath == "" {
		c.IdentityPlistPath = d.IdentityPlistPath
	}
	return nil
}

func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

func (c *Config) ApprovalTimeout() time.Duration {
	return time.Duration(c.ApprovalTimeoutSeconds) * time.Second
}

func (c *Config) TransferTimeout() time.Duration {
	return time.Duration(c.TransferTimeoutMinutes) * time.Minute
}

func (c *Config) PeerExpiration() time.Duration {
	return time.Duration(c.PeerExpirationSeconds) * time.Second
}
