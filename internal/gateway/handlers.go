package gateway

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/optimus-oj/judger/internal/broker"
	"github.com/optimus-oj/judger/internal/metrics"
	"github.com/optimus-oj/judger/internal/model"
)

// defaultWeight mirrors the Rust gateway's default_weight() serde
// default, applied when a submission omits the field rather than
// sending an explicit zero.
const defaultWeight = 10

// Handler bundles the broker connection every gateway endpoint needs.
// The gateway itself is otherwise stateless (spec.md §4.2).
type Handler struct {
	broker           *broker.Broker
	defaultTimeoutMs int64
	maxTimeoutMs     int64
	logger           *zap.Logger
}

// testCaseInput is the wire shape of one test case inside a submission
// body — distinct from model.TestCase because test_id is required here
// (the caller assigns it) while weight is optional.
type testCaseInput struct {
	TestID         int    `json:"test_id"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	Weight         *int   `json:"weight,omitempty"`
}

// submitRequest is a JobRequest minus its server-assigned id, per
// spec.md §4.2.
type submitRequest struct {
	Language   model.Language  `json:"language"`
	SourceCode string          `json:"source_code"`
	Stdin      string          `json:"stdin,omitempty"`
	TestCases  []testCaseInput `json:"test_cases"`
	TimeoutMs  *int64          `json:"timeout_ms,omitempty"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// SubmitJob implements POST /execute: validate, assign an id, enqueue,
// respond with the job id. Validation exactly matches spec.md §4.2:
// known language, timeout_ms in [1, max_timeout_ms], at least one test
// case, unique test IDs.
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if !req.Language.Valid() {
		writeError(w, http.StatusBadRequest, "unknown language")
		return
	}

	timeoutMs := h.defaultTimeoutMs
	if req.TimeoutMs != nil {
		timeoutMs = *req.TimeoutMs
	}
	if timeoutMs < 1 || timeoutMs > h.maxTimeoutMs {
		writeError(w, http.StatusBadRequest, "timeout_ms out of range")
		return
	}

	if len(req.TestCases) == 0 {
		writeError(w, http.StatusBadRequest, "at least one test case is required")
		return
	}

	seen := make(map[int]struct{}, len(req.TestCases))
	testCases := make([]model.TestCase, 0, len(req.TestCases))
	for _, tc := range req.TestCases {
		if _, dup := seen[tc.TestID]; dup {
			writeError(w, http.StatusBadRequest, "duplicate test_id")
			return
		}
		seen[tc.TestID] = struct{}{}

		weight := defaultWeight
		if tc.Weight != nil {
			weight = *tc.Weight
		}
		if weight < 0 {
			writeError(w, http.StatusBadRequest, "weight must be non-negative")
			return
		}

		testCases = append(testCases, model.TestCase{
			TestID:         tc.TestID,
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
			Weight:         weight,
		})
	}

	// spec.md §8 invariant 4 requires ascending test_id in every
	// published result, regardless of submission order.
	sort.Slice(testCases, func(i, j int) bool {
		return testCases[i].TestID < testCases[j].TestID
	})

	job := &model.JobRequest{
		ID:         model.NewJobID(),
		Language:   req.Language,
		SourceCode: req.SourceCode,
		Stdin:      req.Stdin,
		TestCases:  testCases,
		TimeoutMs:  timeoutMs,
		Metadata:   model.DefaultJobMetadata(),
	}

	if err := h.broker.Enqueue(r.Context(), job); err != nil {
		h.logger.Error("failed to enqueue job", zap.String("job_id", job.ID), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "broker unreachable")
		return
	}

	metrics.RecordSubmission(job.Language)
	writeJSON(w, http.StatusOK, submitResponse{JobID: job.ID})
}

// jobStatusResponse is the shape returned by GET /job/{id} when only a
// status key exists yet — no result has been published.
type jobStatusResponse struct {
	OverallStatus model.JobStatus `json:"overall_status"`
}

// GetJob implements GET /job/{id}: returns the full ExecutionResult if
// one has been published, otherwise just the current status.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	status, result, err := h.broker.FetchResult(r.Context(), jobID)
	if err != nil {
		if err == broker.ErrNotFound {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error("failed to fetch job", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "broker unreachable")
		return
	}

	if result != nil {
		writeJSON(w, http.StatusOK, result)
		return
	}
	writeJSON(w, http.StatusOK, jobStatusResponse{OverallStatus: status})
}

// Health implements GET /health: liveness succeeds iff the broker
// responds to a ping.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.broker.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "broker unreachable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Metrics implements GET /metrics: refresh the per-language queue-depth
// gauge immediately before rendering, so depth never reads stale
// between scrapes, then delegate rendering to the standard Prometheus
// text exposition handler.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics.RefreshQueueDepths(r.Context(), h.broker, h.logger)
	promhttp.Handler().ServeHTTP(w, r)
}
