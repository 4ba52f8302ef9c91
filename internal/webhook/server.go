package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/perigee-labs/countersign/internal/keys"
	"github.com/perigee-labs/countersign/internal/metrics"
	"github.com/perigee-labs/countersign/internal/verify"
)

// Config holds webhook server settings.
type Config struct {
	Listen      string
	MaxBodySize int64
}

// Server is the ingress HTTP server and per-request orchestrator.
//
// Key material is loaded once before the server starts and is read-only for
// the life of the process; request handling writes no shared state, so any
// number of deliveries can be in flight concurrently.
type Server struct {
	config  Config
	keys    map[string]*keys.SourceKey
	trigger SigningTrigger
	logger  *slog.Logger
	server  *http.Server
}

// New creates a webhook server. trigger may be nil when no signing-trigger
// endpoint is configured; transaction-bearing events are then acknowledged
// with signingTriggered=false.
func New(config Config, sourceKeys map[string]*keys.SourceKey, trig SigningTrigger, logger *slog.Logger) *Server {
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	return &Server{
		config:  config,
		keys:    sourceKeys,
		trigger: trig,
		logger:  logger,
	}
}

// DefaultMaxBodySize caps request bodies at 1 MB.
const DefaultMaxBodySize = 1048576

// Start starts the webhook HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting", "listen", s.config.Listen, "sources", len(s.keys))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Post("/webhook", s.handleEvent)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// loggingMiddleware logs HTTP requests (excludes bodies and signatures).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// recoverMiddleware is the outer catch-all: any panic becomes a generic 500.
// Full detail goes to the log; nothing internal (stack traces, key material,
// signature bytes) may leak into the response body.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil && rec != http.ErrAbortHandler {
				s.logger.Error("request handler panicked",
					"path", r.URL.Path,
					"request_id", middleware.GetReqID(r.Context()),
					"panic", rec,
				)
				s.respondError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// handleEvent runs the per-request state machine:
// extract raw body -> classify -> verify -> parse -> optional trigger -> respond.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limitedReader := io.LimitReader(r.Body, s.config.MaxBodySize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}
	if int64(len(body)) > s.config.MaxBodySize {
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}
	if len(body) == 0 {
		metrics.EventsTotal.WithLabelValues("unknown", "rejected").Inc()
		s.respondError(w, http.StatusBadRequest, "empty body")
		return
	}

	// Routing settles which key and which exact bytes to verify before any
	// verification work happens.
	class, err := Classify(r.Header, body)
	if err != nil {
		s.logger.Warn("webhook classification failed",
			"request_id", middleware.GetReqID(ctx),
			"error", err,
		)
		metrics.EventsTotal.WithLabelValues("unknown", "rejected").Inc()
		s.respondUnauthorized(w)
		return
	}

	key := s.keys[string(class.Source)]
	if key == nil {
		// Startup guarantees a key per source; a miss here is a bug.
		s.logger.Error("no key loaded for source", "source", class.Source)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	outcome := verify.Signature(key.Key, class.Envelope, class.Message)
	if !outcome.Valid {
		s.logger.Warn("webhook signature rejected",
			"request_id", middleware.GetReqID(ctx),
			"source", class.Source,
			"reason", outcome.Reason,
		)
		metrics.VerificationFailures.WithLabelValues(string(class.Source), string(outcome.Reason)).Inc()
		metrics.EventsTotal.WithLabelValues(string(class.Source), "rejected").Inc()
		s.respondUnauthorized(w)
		return
	}

	metrics.EventBytesTotal.Add(float64(len(body)))

	payload, err := parsePayload(class)
	if err != nil {
		// Authentic but unparseable. Matches the outer catch-all contract:
		// generic response out, detail in the log.
		s.logger.Error("verified payload failed to parse",
			"request_id", middleware.GetReqID(ctx),
			"source", class.Source,
			"error", err,
		)
		metrics.EventsTotal.WithLabelValues(string(class.Source), "error").Inc()
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	event := &Event{
		DeliveryID:    uuid.NewString(),
		Source:        class.Source,
		TransactionID: class.TransactionID,
		Payload:       payload,
	}

	resp := EventResponse{DeliveryID: event.DeliveryID, Source: event.Source}
	if event.TransactionID != "" {
		triggered := s.triggerSigning(ctx, event)
		resp.SigningTriggered = &triggered
	}

	s.logger.Info("webhook event accepted",
		"request_id", middleware.GetReqID(ctx),
		"delivery_id", event.DeliveryID,
		"source", event.Source,
		"transaction_id", event.TransactionID,
	)
	metrics.EventsTotal.WithLabelValues(string(event.Source), "accepted").Inc()

	s.respondJSON(w, http.StatusOK, resp)
}

// triggerSigning invokes the downstream trigger for a verified event. Soft
// failures (non-2xx, transport faults, no client configured) still leave the
// delivery itself successful.
func (s *Server) triggerSigning(ctx context.Context, event *Event) bool {
	if s.trigger == nil {
		s.logger.Warn("no signing trigger configured; skipping",
			"delivery_id", event.DeliveryID,
			"transaction_id", event.TransactionID,
		)
		metrics.TriggerCalls.WithLabelValues("unconfigured").Inc()
		return false
	}

	out := s.trigger.TriggerSigning(ctx, event.TransactionID)
	if !out.Triggered {
		s.logger.Warn("signing trigger soft failure",
			"delivery_id", event.DeliveryID,
			"transaction_id", event.TransactionID,
			"status", out.StatusCode,
			"error", out.Err,
		)
		metrics.TriggerCalls.WithLabelValues("soft_failure").Inc()
		return false
	}
	metrics.TriggerCalls.WithLabelValues("triggered").Inc()
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// respondUnauthorized rejects with the single generic message used for every
// signature problem, so failure modes are indistinguishable to a caller
// probing for an oracle.
func (s *Server) respondUnauthorized(w http.ResponseWriter) {
	s.respondError(w, http.StatusUnauthorized, "missing or invalid signature")
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}
