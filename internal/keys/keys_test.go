package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perigee-labs/countersign/internal/config"
)

func p256PEM(t *testing.T) (string, *ecdsa.PublicKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	spki, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemText := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: spki})
	return string(pemText), &key.PublicKey
}

func TestLoad_InlinePEM(t *testing.T) {
	pemText, pub := p256PEM(t)

	sk, err := Load("ingest", config.SourceConfig{PublicKey: pemText})
	require.NoError(t, err)

	assert.Equal(t, "ingest", sk.Source)
	assert.True(t, pub.Equal(sk.Key))
	assert.Len(t, sk.Fingerprint, 64, "hex blake3-256")
	assert.NotEmpty(t, sk.SPKI)
}

func TestLoad_FromFile(t *testing.T) {
	pemText, pub := p256PEM(t)
	path := filepath.Join(t.TempDir(), "source.pub.pem")
	require.NoError(t, os.WriteFile(path, []byte(pemText), 0o600))

	sk, err := Load("fordefi", config.SourceConfig{PublicKeyFile: path})
	require.NoError(t, err)
	assert.True(t, pub.Equal(sk.Key))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("fordefi", config.SourceConfig{
		PublicKeyFile: filepath.Join(t.TempDir(), "nope.pem"),
	})
	require.Error(t, err)
}

func TestLoad_EmptyMaterial(t *testing.T) {
	_, err := Load("ingest", config.SourceConfig{PublicKey: "  \n"})
	assert.ErrorIs(t, err, ErrKeyFormat)
}

func TestParsePublicKey_BareBase64(t *testing.T) {
	pemText, pub := p256PEM(t)
	block, _ := pem.Decode([]byte(pemText))
	require.NotNil(t, block)

	// Issuer dashboards often hand out just the base64 payload, sometimes
	// wrapped across lines.
	b64 := base64.StdEncoding.EncodeToString(block.Bytes)
	wrapped := b64[:20] + "\n  " + b64[20:]

	key, spki, err := ParsePublicKey(wrapped)
	require.NoError(t, err)
	assert.True(t, pub.Equal(key))
	assert.Equal(t, block.Bytes, spki)
}

func TestParsePublicKey_Rejects(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	rsaSPKI, err := x509.MarshalPKIXPublicKey(&rsaKey.PublicKey)
	require.NoError(t, err)

	p384, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	p384SPKI, err := x509.MarshalPKIXPublicKey(&p384.PublicKey)
	require.NoError(t, err)

	tests := []struct {
		name string
		in   string
	}{
		{
			name: "not base64",
			in:   "!!! definitely not a key !!!",
		},
		{
			name: "base64 but not a key",
			in:   base64.StdEncoding.EncodeToString([]byte("hello")),
		},
		{
			name: "wrong PEM block type",
			in:   string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1, 2, 3}})),
		},
		{
			name: "rsa key",
			in:   string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: rsaSPKI})),
		},
		{
			name: "wrong curve",
			in:   string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: p384SPKI})),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParsePublicKey(tt.in)
			assert.ErrorIs(t, err, ErrKeyFormat)
		})
	}
}

func TestLoadAll(t *testing.T) {
	ingestPEM, _ := p256PEM(t)
	fordefiPEM, _ := p256PEM(t)

	ks, err := LoadAll(config.SourcesConfig{
		Ingest:  config.SourceConfig{PublicKey: ingestPEM},
		Fordefi: config.SourceConfig{PublicKey: fordefiPEM},
	})
	require.NoError(t, err)
	require.Len(t, ks, 2)
	assert.NotEqual(t, ks[config.SourceIngest].Fingerprint, ks[config.SourceFordefi].Fingerprint)
}

func TestLoadAll_OneBadKeyFailsAll(t *testing.T) {
	goodPEM, _ := p256PEM(t)

	_, err := LoadAll(config.SourcesConfig{
		Ingest:  config.SourceConfig{PublicKey: goodPEM},
		Fordefi: config.SourceConfig{PublicKey: "garbage"},
	})
	assert.ErrorIs(t, err, ErrKeyFormat)
}
