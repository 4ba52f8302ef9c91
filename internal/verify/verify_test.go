package verify

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func signEnvelope(t *testing.T, key *ecdsa.PrivateKey, message []byte) string {
	t.Helper()
	digest := sha256.Sum256(message)
	der, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return base64.StdEncoding.EncodeToString(der)
}

func TestSignature(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	otherKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	message := []byte(`{"risk":"high","tx":"abc"}`)
	envelope := signEnvelope(t, key, message)

	tampered := make([]byte, len(message))
	copy(tampered, message)
	tampered[3] ^= 0x01

	tests := []struct {
		name       string
		key        *ecdsa.PublicKey
		envelope   string
		message    []byte
		wantValid  bool
		wantReason Reason
	}{
		{
			name:      "valid signature",
			key:       &key.PublicKey,
			envelope:  envelope,
			message:   message,
			wantValid: true,
		},
		{
			name:       "single flipped byte in message",
			key:        &key.PublicKey,
			envelope:   envelope,
			message:    tampered,
			wantReason: ReasonMismatch,
		},
		{
			name:       "wrong key",
			key:        &otherKey.PublicKey,
			envelope:   envelope,
			message:    message,
			wantReason: ReasonMismatch,
		},
		{
			name:       "empty envelope",
			key:        &key.PublicKey,
			envelope:   "",
			message:    message,
			wantReason: ReasonMissingInput,
		},
		{
			name:       "nil key",
			key:        nil,
			envelope:   envelope,
			message:    message,
			wantReason: ReasonMissingInput,
		},
		{
			name:       "not base64",
			key:        &key.PublicKey,
			envelope:   "%%%not-base64%%%",
			message:    message,
			wantReason: ReasonBadEncoding,
		},
		{
			name:       "base64 but not DER",
			key:        &key.PublicKey,
			envelope:   base64.StdEncoding.EncodeToString([]byte("junk")),
			message:    message,
			wantReason: ReasonBadEncoding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Signature(tt.key, tt.envelope, tt.message)
			if out.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", out.Valid, tt.wantValid)
			}
			if !tt.wantValid && out.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", out.Reason, tt.wantReason)
			}
			if tt.wantValid && out.Reason != ReasonNone {
				t.Errorf("Reason = %q, want empty", out.Reason)
			}
		})
	}
}

func TestSignature_NeverPanics(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	// A public key with a nil curve would panic inside the primitive if it
	// ever reached it unguarded.
	broken := &ecdsa.PublicKey{}
	out := Signature(broken, signEnvelope(t, key, []byte("m")), []byte("m"))
	if out.Valid {
		t.Fatal("broken key must not verify")
	}
}
