// Package verify authenticates webhook payloads against a source's ECDSA
// public key.
//
// The verification chain (base64 decode, DER to compact conversion, curve
// math) never propagates an error to the caller: a security check that can
// fail unexpectedly is a security check an attacker can bypass by steering
// it onto the fault path. Every failure collapses to an invalid Outcome;
// the reason discriminator exists for logging and metrics only and must not
// shape the HTTP response beyond a generic rejection.
package verify

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"

	"github.com/perigee-labs/countersign/internal/sigcodec"
)

// Reason classifies why verification failed. Never surfaced to callers.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonMissingInput Reason = "missing_input"
	ReasonBadEncoding  Reason = "bad_encoding"
	ReasonMismatch     Reason = "mismatch"
	ReasonInternal     Reason = "internal"
)

// Outcome is the result of a verification attempt.
type Outcome struct {
	Valid  bool
	Reason Reason
}

func invalid(r Reason) Outcome { return Outcome{Valid: false, Reason: r} }

// Signature verifies a base64-encoded DER ECDSA signature over message
// using ECDSA/P-256/SHA-256. message must be the exact wire bytes (or the
// exact signed sub-field); re-serialized copies will not verify.
func Signature(key *ecdsa.PublicKey, envelope string, message []byte) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = invalid(ReasonInternal)
		}
	}()

	if key == nil || envelope == "" {
		return invalid(ReasonMissingInput)
	}

	der, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return invalid(ReasonBadEncoding)
	}

	compact, err := sigcodec.DERToP1363(der)
	if err != nil {
		return invalid(ReasonBadEncoding)
	}
	r, s, err := sigcodec.SplitCompact(compact)
	if err != nil {
		return invalid(ReasonBadEncoding)
	}

	digest := sha256.Sum256(message)
	if !ecdsa.Verify(key, digest[:], r, s) {
		return invalid(ReasonMismatch)
	}
	return Outcome{Valid: true}
}
