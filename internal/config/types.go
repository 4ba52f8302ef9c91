package config

import "time"

// Source names. Each maps to one verification key and one processing path.
const (
	// SourceIngest events carry a base64 DER signature over the whole raw
	// body in the x-signature header.
	SourceIngest = "ingest"

	// SourceFordefi events carry the signature inside the JSON body
	// (digitalSignature, over the literal data field) and reference a
	// pending transaction via the fordefi-transaction-id header.
	SourceFordefi = "fordefi"
)

// Config is the complete countersign configuration. Built once at startup
// and never mutated afterwards.
type Config struct {
	Service ServiceConfig  `yaml:"service"`
	Sources SourcesConfig  `yaml:"sources"`
	Trigger *TriggerConfig `yaml:"trigger,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"log_level"`

	// MaxBodySize accepts "1MB", "512KB" or a plain byte count.
	MaxBodySize string `yaml:"max_body_size,omitempty"`

	// LockFile is the PID lock path; empty disables single-instance locking.
	LockFile string `yaml:"lock_file,omitempty"`
}

// SourcesConfig holds per-source verification key material.
type SourcesConfig struct {
	Ingest  SourceConfig `yaml:"ingest"`
	Fordefi SourceConfig `yaml:"fordefi"`
}

// SourceConfig configures one event source's public key. Exactly one of
// PublicKey (inline PEM or bare base64 SPKI) and PublicKeyFile must be set.
type SourceConfig struct {
	PublicKey     string `yaml:"public_key,omitempty"`
	PublicKeyFile string `yaml:"public_key_file,omitempty"`
}

// TriggerConfig configures the downstream signing-trigger API call.
type TriggerConfig struct {
	// Endpoint is the trigger-signing URL; the transaction id is appended
	// as the final path segment.
	Endpoint string `yaml:"endpoint"`

	// BearerToken authenticates the outbound call. Usually supplied as
	// ${ENV_VAR} and expanded at load time.
	BearerToken string `yaml:"bearer_token"`

	// Timeout bounds the whole outbound call, default 10s.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Defaults applied by Load.
const (
	DefaultListen         = ":8080"
	DefaultLogLevel       = "info"
	DefaultMaxBodySize    = 1048576 // 1 MB
	DefaultTriggerTimeout = 10 * time.Second
)
