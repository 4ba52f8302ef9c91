// Package webhook implements the ingress endpoint for signed event
// notifications and the per-request orchestration around them.
//
// # Security Model
//
//   - Every event is authenticated with ECDSA/P-256/SHA-256 before its
//     contents are trusted; nothing downstream (payload parse, signing
//     trigger) sees an unverified event.
//   - Verification always runs over the exact wire bytes (or the exact
//     signed sub-field), never a re-serialized copy.
//   - All signature failures collapse to one generic 401 so the response
//     can't be used as an oracle for crafting a valid signature.
//   - Body size limits are enforced before any crypto work.
//   - Request logging excludes bodies and signature material.
//
// # Sources
//
// Two issuer types are recognized, each with its own key and signature
// placement:
//
//   - ingest: base64 DER signature in the x-signature header, computed
//     over the entire raw request body.
//   - fordefi: signature in the body's digitalSignature field, computed
//     over the literal string value of the body's data field; the
//     fordefi-transaction-id header names the pending transaction whose
//     signing the gateway triggers downstream.
//
// An ambiguous request carrying both markers is routed as fordefi; its
// marker requires JSON content, not just a header, so it is the more
// specific claim.
//
// # Request Flow
//
//  1. POST /webhook arrives; raw body read under the size limit
//  2. Empty body rejected with 400
//  3. Classification picks the source, key and signed bytes (401 if no
//     marker is recognized)
//  4. Signature verified (401 on any failure, uniformly)
//  5. Payload parsed; delivery id assigned
//  6. If a transaction is referenced, the downstream signing trigger is
//     called; its failure is soft and surfaces as signingTriggered=false
//  7. 200 with deliveryId, source, and optionally signingTriggered
package webhook
