package webhook

import (
	"context"

	"github.com/perigee-labs/countersign/internal/trigger"
)

// Source identifies which issuer produced an inbound event. Closed set:
// classification is explicit, never inferred from parse failures.
type Source string

const (
	// SourceIngest signs the entire raw body; the base64 DER signature
	// arrives in the x-signature header.
	SourceIngest Source = "ingest"

	// SourceFordefi signs only the literal data field of the JSON body;
	// the signature arrives in the digitalSignature field and the
	// fordefi-transaction-id header references the pending transaction.
	SourceFordefi Source = "fordefi"
)

// Inbound header names. Matched case-insensitively by net/http.
const (
	HeaderSignature     = "x-signature"
	HeaderTransactionID = "fordefi-transaction-id"
)

// Classification is the routing decision for one inbound request: which
// source it belongs to, where its signature is, and which exact bytes that
// signature covers.
type Classification struct {
	Source Source

	// Envelope is the base64 DER signature extracted from the header or
	// body field.
	Envelope string

	// Message holds the exact bytes the signature covers. For ingest this
	// is the raw wire body; for fordefi it is the literal string value of
	// the data field. Never a re-serialized copy.
	Message []byte

	// TransactionID is the referenced pending transaction, empty when the
	// event references none.
	TransactionID string
}

// Event is a verified, parsed inbound event. Constructed only after
// signature verification succeeds; discarded once the response is sent.
type Event struct {
	DeliveryID    string
	Source        Source
	TransactionID string
	Payload       map[string]any
}

// SigningTrigger requests downstream signing for a verified transaction
// reference. Implemented by trigger.Client.
type SigningTrigger interface {
	TriggerSigning(ctx context.Context, transactionID string) trigger.Outcome
}

// fordefiEnvelope is the SourceFordefi body shape. Data stays a raw string:
// it is both the signed payload (verified byte-for-byte) and itself JSON.
type fordefiEnvelope struct {
	DigitalSignature string `json:"digitalSignature"`
	Data             string `json:"data"`
}

// EventResponse is the JSON response for an accepted delivery.
type EventResponse struct {
	DeliveryID string `json:"deliveryId"`
	Source     Source `json:"source"`

	// SigningTriggered is present only when the event carried a
	// transaction reference; false marks a partial success where the
	// event was accepted but the downstream trigger failed.
	SigningTriggered *bool `json:"signingTriggered,omitempty"`
}

// ErrorResponse is the JSON response for rejected deliveries. Messages are
// deliberately generic; failure detail stays in the logs.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON response for the liveness endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
