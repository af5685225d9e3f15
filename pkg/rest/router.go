// Package rest exposes the externally facing submit/status operations over
// HTTP. Each request is served through its own short-lived synchronous
// client, so the one-outstanding-call contract holds per request.
package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finvera/tradeflow/pkg/core"
	"github.com/finvera/tradeflow/pkg/logging"
)

// TradeClient is the slice of the synchronous client the handlers need.
type TradeClient interface {
	SubmitOrder(ctx context.Context, order core.Order) (string, error)
	GetOrderStatus(ctx context.Context, orderID string) (core.OrderStatus, error)
	Close() error
}

// ClientFactory mints a fresh TradeClient for one request.
type ClientFactory func(ctx context.Context) (TradeClient, error)

// NewRouter creates a chi router with the trade endpoints and request
// logging.
func NewRouter(factory ClientFactory, logger zerolog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(requestLogging(logger))

	h := &tradeHandler{factory: factory, logger: logger}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/trades/submit", h.submitOrder)
	r.Get("/api/trades/{orderID}/status", h.getOrderStatus)

	return r
}

// requestLogging assigns each request an id, carries it on the context and
// logs method, path, status and duration.
func requestLogging(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := uuid.NewString()
			ctx := logging.WithRequestID(r.Context(), requestID)

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(ctx))
			logger.Info().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Dur("duration", time.Since(start)).
				Msg("Request completed")
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// writeJSON writes v as a JSON response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
