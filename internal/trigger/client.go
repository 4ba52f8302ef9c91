// Package trigger calls the external signing-trigger API for transactions
// referenced by verified webhook events.
//
// A trigger failure is never an error for the webhook delivery itself. The
// inbound event was authentically received either way, so every non-2xx
// status and every transport fault collapses to a soft-failure Outcome that
// the orchestrator reports as signingTriggered=false. No retries here;
// retry policy belongs to the operator, not this client.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/perigee-labs/countersign/internal/config"
)

// Outcome is the terminal result of one trigger attempt.
type Outcome struct {
	// Triggered is true only for a 2xx upstream response.
	Triggered bool

	// StatusCode is the upstream HTTP status, or 0 on a transport fault.
	StatusCode int

	// Err carries transport-level detail for logging; nil on HTTP
	// responses of any status.
	Err error
}

// Client posts signing-trigger requests with bearer-token auth.
type Client struct {
	endpoint string
	token    string
	client   *http.Client
	logger   *slog.Logger
}

// New builds a Client from trigger configuration.
func New(cfg config.TriggerConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTriggerTimeout
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		token:    cfg.BearerToken,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// TriggerSigning requests that the referenced transaction be signed:
// POST {endpoint}/{transactionID} with an empty body.
func (c *Client) TriggerSigning(ctx context.Context, transactionID string) Outcome {
	target := c.endpoint + "/" + url.PathEscape(transactionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		c.logger.Error("signing trigger request build failed",
			"transaction_id", transactionID,
			"error", err,
		)
		return Outcome{Err: fmt.Errorf("build trigger request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("signing trigger call failed",
			"transaction_id", transactionID,
			"error", err,
		)
		return Outcome{Err: fmt.Errorf("trigger call: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("signing trigger rejected upstream",
			"transaction_id", transactionID,
			"status", resp.StatusCode,
		)
		return Outcome{StatusCode: resp.StatusCode}
	}

	c.logger.Info("signing triggered",
		"transaction_id", transactionID,
		"status", resp.StatusCode,
	)
	return Outcome{Triggered: true, StatusCode: resp.StatusCode}
}
