// Package sigcodec converts ASN.1/DER-encoded ECDSA signatures into the
// fixed-width IEEE P1363 compact form required by the verification primitive.
//
// Issuers ship ECDSA signatures as a DER SEQUENCE of two INTEGERs (r, s).
// DER prepends a 0x00 byte to an INTEGER whose high bit would otherwise read
// as a sign bit, so component lengths on the wire vary between 31 and 33
// bytes for P-256. The compact form is always exactly 64 bytes: 32-byte
// big-endian r followed by 32-byte big-endian s, left-padded with zeros.
package sigcodec

import (
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
)

// ComponentSize is the byte width of each signature component on P-256.
const ComponentSize = 32

// CompactSize is the total byte length of a P1363 signature.
const CompactSize = 2 * ComponentSize

// ErrSignatureFormat indicates a signature that is not a well-formed
// DER-encoded P-256 ECDSA signature. The message is safe to log but must
// never be surfaced to the caller of the webhook endpoint.
var ErrSignatureFormat = errors.New("malformed ecdsa signature")

// derSignature mirrors the ASN.1 SEQUENCE { r INTEGER, s INTEGER } layout.
type derSignature struct {
	R, S *big.Int
}

// DERToP1363 converts a DER-encoded ECDSA signature to its 64-byte compact
// representation.
//
// Rejections (all wrapping ErrSignatureFormat):
//   - the outer structure is not a two-INTEGER SEQUENCE
//   - trailing bytes follow the SEQUENCE
//   - either component is negative or zero
//   - either component exceeds 32 bytes once sign-padding is stripped,
//     which indicates corruption or a non-P-256 signature
func DERToP1363(der []byte) ([]byte, error) {
	var sig derSignature
	rest, err := asn1.Unmarshal(der, &sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureFormat, err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after sequence", ErrSignatureFormat, len(rest))
	}
	if sig.R == nil || sig.S == nil {
		return nil, fmt.Errorf("%w: missing component", ErrSignatureFormat)
	}
	if sig.R.Sign() <= 0 || sig.S.Sign() <= 0 {
		return nil, fmt.Errorf("%w: non-positive component", ErrSignatureFormat)
	}
	// BitLen reflects the unsigned magnitude, so DER sign-padding bytes are
	// already out of the picture here.
	if sig.R.BitLen() > ComponentSize*8 || sig.S.BitLen() > ComponentSize*8 {
		return nil, fmt.Errorf("%w: component exceeds %d bytes", ErrSignatureFormat, ComponentSize)
	}

	out := make([]byte, CompactSize)
	sig.R.FillBytes(out[:ComponentSize])
	sig.S.FillBytes(out[ComponentSize:])
	return out, nil
}

// SplitCompact splits a 64-byte P1363 signature into its r and s integers.
func SplitCompact(compact []byte) (r, s *big.Int, err error) {
	if len(compact) != CompactSize {
		return nil, nil, fmt.Errorf("%w: compact form is %d bytes, want %d", ErrSignatureFormat, len(compact), CompactSize)
	}
	r = new(big.Int).SetBytes(compact[:ComponentSize])
	s = new(big.Int).SetBytes(compact[ComponentSize:])
	return r, s, nil
}
