// Package discovery gives the external, unspecified autoscaling
// watcher assumed by spec.md §5 a liveness signal beyond queue depth:
// "queue is deep and zero workers alive" looks identical to "queue is
// deep and workers are just slow" from queue depth alone. This is the
// teacher's internal/discovery/registry.go repurposed — the teacher
// used a heartbeat-backed registry for gRPC service discovery between a
// load balancer and judger replicas; this system has no load balancer
// (workers pull from a shared broker queue, no discovery needed for
// dispatch), so the same heartbeat-ticker-and-TTL-key shape is kept but
// aimed at liveness instead of routing.
package discovery

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/optimus-oj/judger/internal/broker"
	"github.com/optimus-oj/judger/internal/model"
)

const heartbeatInterval = 5 * time.Second
const heartbeatTTL = 15 * time.Second

// Heartbeater periodically marks a worker instance alive in the broker
// for the duration of the process, and clears the key on graceful
// shutdown so a deliberately-stopped worker doesn't linger as "alive"
// for the TTL window.
type Heartbeater struct {
	br         *broker.Broker
	language   model.Language
	instanceID string
	logger     *zap.Logger
	stop       chan struct{}
	once       sync.Once
}

// NewHeartbeater builds a Heartbeater for language, deriving a stable
// instance ID from the hostname and process ID.
func NewHeartbeater(br *broker.Broker, language model.Language, logger *zap.Logger) *Heartbeater {
	hostname, _ := os.Hostname()
	return &Heartbeater{
		br:         br,
		language:   language,
		instanceID: fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		logger:     logger,
		stop:       make(chan struct{}),
	}
}

// Start begins the heartbeat ticker in a background goroutine.
func (h *Heartbeater) Start() {
	go h.loop()
}

// Stop halts the ticker and clears the instance's liveness key. Safe to
// call more than once.
func (h *Heartbeater) Stop() {
	h.once.Do(func() {
		close(h.stop)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.br.ClearHeartbeat(ctx, string(h.language), h.instanceID); err != nil {
			h.logger.Warn("failed to clear heartbeat", zap.Error(err))
		}
	})
}

func (h *Heartbeater) loop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	h.beat()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.beat()
		}
	}
}

func (h *Heartbeater) beat() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.br.Heartbeat(ctx, string(h.language), h.instanceID, heartbeatTTL); err != nil {
		h.logger.Warn("heartbeat failed", zap.Error(err))
	}
}
