// Package keys loads and validates the per-source ECDSA public keys the
// gateway verifies webhook signatures against.
//
// Key material is loaded exactly once at startup and is immutable for the
// life of the process. A source whose key is missing or malformed must stop
// the process before it serves traffic: running without a verification key
// is a security hazard, not a degraded mode.
package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/perigee-labs/countersign/internal/config"
)

// ErrKeyFormat indicates public key material that is absent, undecodable, or
// structurally invalid. Always fatal at startup.
var ErrKeyFormat = errors.New("invalid public key material")

// SourceKey is the immutable verification key for one event source.
type SourceKey struct {
	// Source is the configured source name (e.g. "ingest", "fordefi").
	Source string

	// Key is the parsed P-256 public key.
	Key *ecdsa.PublicKey

	// SPKI holds the raw SubjectPublicKeyInfo bytes the key was parsed from.
	SPKI []byte

	// Fingerprint is the hex BLAKE3-256 hash of the SPKI bytes. Logged at
	// startup and shown by doctor so operators can confirm which key a
	// deployment is actually running with.
	Fingerprint string
}

// Load resolves and parses the key for one source. Exactly one of
// public_key (inline PEM) and public_key_file must be configured.
func Load(source string, cfg config.SourceConfig) (*SourceKey, error) {
	pemText := cfg.PublicKey
	if cfg.PublicKeyFile != "" {
		data, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("source %q: read public key file: %w", source, err)
		}
		pemText = string(data)
	}
	if strings.TrimSpace(pemText) == "" {
		return nil, fmt.Errorf("source %q: %w: no key material configured", source, ErrKeyFormat)
	}

	key, spki, err := ParsePublicKey(pemText)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", source, err)
	}

	sum := blake3.Sum256(spki)
	return &SourceKey{
		Source:      source,
		Key:         key,
		SPKI:        spki,
		Fingerprint: hex.EncodeToString(sum[:]),
	}, nil
}

// LoadAll loads the keys for every configured source, keyed by source name.
// Any failure aborts the whole load: a partially keyed gateway must not run.
func LoadAll(cfg config.SourcesConfig) (map[string]*SourceKey, error) {
	out := make(map[string]*SourceKey, 2)
	for source, sc := range map[string]config.SourceConfig{
		config.SourceIngest:  cfg.Ingest,
		config.SourceFordefi: cfg.Fordefi,
	} {
		k, err := Load(source, sc)
		if err != nil {
			return nil, err
		}
		out[source] = k
	}
	return out, nil
}

// ParsePublicKey parses PEM or bare-base64 SPKI text into a P-256 public key,
// returning the key alongside the raw SPKI bytes.
//
// Issuer dashboards hand keys out in both shapes: a full PEM block with
// BEGIN/END PUBLIC KEY delimiters, or just the base64 payload with the
// delimiters already stripped. Both decode to the same SPKI structure.
func ParsePublicKey(pemText string) (*ecdsa.PublicKey, []byte, error) {
	var spki []byte
	if block, _ := pem.Decode([]byte(pemText)); block != nil {
		if block.Type != "PUBLIC KEY" {
			return nil, nil, fmt.Errorf("%w: unexpected PEM block %q", ErrKeyFormat, block.Type)
		}
		spki = block.Bytes
	} else {
		compact := stripWhitespace(pemText)
		decoded, err := base64.StdEncoding.DecodeString(compact)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: not PEM and not base64: %v", ErrKeyFormat, err)
		}
		spki = decoded
	}

	parsed, err := x509.ParsePKIXPublicKey(spki)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
	}

	key, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, nil, fmt.Errorf("%w: got %T, want ECDSA", ErrKeyFormat, parsed)
	}
	if key.Curve != elliptic.P256() {
		return nil, nil, fmt.Errorf("%w: curve %s, want P-256", ErrKeyFormat, key.Curve.Params().Name)
	}
	return key, spki, nil
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
}
