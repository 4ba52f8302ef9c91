package webhook

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrMissingSignature means no recognized signature marker was found; the
// request cannot be classified and is rejected without touching any key.
var ErrMissingSignature = errors.New("no recognized signature marker")

// Classify decides which source an inbound request belongs to before any
// verification path is committed to. The two sources place their signatures
// in different locations and sign different bytes, so routing must settle
// first.
//
// Precedence:
//  1. fordefi-transaction-id header present AND the body parses as JSON
//     AND it carries a digitalSignature field -> SourceFordefi.
//  2. x-signature header present -> SourceIngest.
//  3. Neither -> ErrMissingSignature.
//
// A request carrying both markers is always fordefi: its marker is
// structurally more specific (it requires JSON content, not just a header).
func Classify(headers http.Header, body []byte) (*Classification, error) {
	if txID := headers.Get(HeaderTransactionID); txID != "" {
		var env fordefiEnvelope
		if err := json.Unmarshal(body, &env); err == nil && env.DigitalSignature != "" {
			return &Classification{
				Source:        SourceFordefi,
				Envelope:      env.DigitalSignature,
				Message:       []byte(env.Data),
				TransactionID: txID,
			}, nil
		}
	}

	if sig := headers.Get(HeaderSignature); sig != "" {
		return &Classification{
			Source:   SourceIngest,
			Envelope: sig,
			Message:  body,
		}, nil
	}

	return nil, ErrMissingSignature
}

// parsePayload parses the verified event payload for downstream use. For
// ingest the whole body is the payload; for fordefi the payload is the JSON
// carried inside the signed data string.
func parsePayload(c *Classification) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(c.Message, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
