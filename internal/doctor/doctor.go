// Package doctor validates countersign configuration and key material
// without serving traffic.
package doctor

import (
	"fmt"
	"time"

	"github.com/perigee-labs/countersign/internal/config"
	"github.com/perigee-labs/countersign/internal/keys"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool      `json:"valid"`
	Errors   []Issue   `json:"errors,omitempty"`
	Warnings []Issue   `json:"warnings,omitempty"`
	Keys     []KeyInfo `json:"keys,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// KeyInfo reports a successfully loaded verification key so operators can
// compare fingerprints against the issuer dashboard.
type KeyInfo struct {
	Source      string `json:"source"`
	Curve       string `json:"curve"`
	Fingerprint string `json:"fingerprint"`
}

// Doctor validates a loaded configuration end to end, including parsing
// every configured public key.
type Doctor struct {
	cfg *config.Config
}

// New creates a Doctor from a loaded config.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.checkKeys(r)
	d.checkTrigger(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// checkKeys loads every source key the way startup would, so a key that
// would abort the gateway shows up here first.
func (d *Doctor) checkKeys(r *Result) {
	for source, sc := range map[string]config.SourceConfig{
		config.SourceIngest:  d.cfg.Sources.Ingest,
		config.SourceFordefi: d.cfg.Sources.Fordefi,
	} {
		field := fmt.Sprintf("sources.%s", source)
		sk, err := keys.Load(source, sc)
		if err != nil {
			d.addError(r, "keys", field, err.Error())
			continue
		}
		r.Keys = append(r.Keys, KeyInfo{
			Source:      source,
			Curve:       sk.Key.Curve.Params().Name,
			Fingerprint: sk.Fingerprint,
		})
	}
}

func (d *Doctor) checkTrigger(r *Result) {
	if d.cfg.Trigger == nil {
		d.addWarning(r, "trigger", "trigger",
			"no signing-trigger endpoint configured; fordefi events will be acknowledged without triggering signing")
		return
	}
	if d.cfg.Trigger.Timeout > 30*time.Second {
		d.addWarning(r, "trigger", "trigger.timeout",
			fmt.Sprintf("timeout %s is unusually long for a webhook-path call", d.cfg.Trigger.Timeout))
	}
}
