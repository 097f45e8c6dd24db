// Package gateway is the stateless HTTP surface in front of the broker:
// validate, assign an ID, enqueue, and serve result lookups. It never
// talks to a sandbox or a worker directly.
package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/optimus-oj/judger/internal/broker"
)

// NewRouter builds the gateway's HTTP handler, middleware stack mirrored
// from the pack's chi-based service (RequestID/RealIP/Logger/Recoverer/
// Timeout) since spec.md §4.2 specifies no auth or TLS surface of its
// own — those are out of scope, left to infrastructure in front of this
// process.
func NewRouter(br *broker.Broker, defaultTimeoutMs, maxTimeoutMs int64, logger *zap.Logger) http.Handler {
	h := &Handler{broker: br, defaultTimeoutMs: defaultTimeoutMs, maxTimeoutMs: maxTimeoutMs, logger: logger}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	r.Post("/execute", h.SubmitJob)
	r.Get("/job/{id}", h.GetJob)
	r.Get("/health", h.Health)
	r.Get("/metrics", h.Metrics)

	return r
}
