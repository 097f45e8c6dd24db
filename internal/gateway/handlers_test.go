package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/optimus-oj/judger/internal/broker"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	router, _ := newTestRouterWithBroker(t)
	return router
}

func newTestRouterWithBroker(t *testing.T) (http.Handler, *broker.Broker) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)

	br, err := broker.New("redis://"+mr.Addr(), time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("broker.New: %v", err)
	}
	t.Cleanup(func() { br.Close() })

	return NewRouter(br, 5000, 30000, zap.NewNop()), br
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitJobHappyPath(t *testing.T) {
	router := newTestRouter(t)

	rec := postJSON(t, router, "/execute", map[string]interface{}{
		"language":    "python",
		"source_code": "print('hi')",
		"test_cases": []map[string]interface{}{
			{"test_id": 1, "input": "", "expected_output": "hi"},
		},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}

	var resp submitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.JobID == "" {
		t.Fatal("expected non-empty job id")
	}
}

func TestSubmitJobRejectsUnknownLanguage(t *testing.T) {
	router := newTestRouter(t)

	rec := postJSON(t, router, "/execute", map[string]interface{}{
		"language":    "cobol",
		"source_code": "x",
		"test_cases": []map[string]interface{}{
			{"test_id": 1, "input": "", "expected_output": "x"},
		},
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestSubmitJobRejectsEmptyTestCases(t *testing.T) {
	router := newTestRouter(t)

	rec := postJSON(t, router, "/execute", map[string]interface{}{
		"language":    "python",
		"source_code": "x",
		"test_cases":  []map[string]interface{}{},
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestSubmitJobRejectsDuplicateTestIDs(t *testing.T) {
	router := newTestRouter(t)

	rec := postJSON(t, router, "/execute", map[string]interface{}{
		"language":    "python",
		"source_code": "x",
		"test_cases": []map[string]interface{}{
			{"test_id": 1, "input": "", "expected_output": "x"},
			{"test_id": 1, "input": "", "expected_output": "y"},
		},
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestSubmitJobRejectsTimeoutOutOfRange(t *testing.T) {
	router := newTestRouter(t)

	rec := postJSON(t, router, "/execute", map[string]interface{}{
		"language":    "python",
		"source_code": "x",
		"timeout_ms":  999999999,
		"test_cases": []map[string]interface{}{
			{"test_id": 1, "input": "", "expected_output": "x"},
		},
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestSubmitJobSortsTestCasesByAscendingTestID(t *testing.T) {
	router, br := newTestRouterWithBroker(t)

	rec := postJSON(t, router, "/execute", map[string]interface{}{
		"language":    "python",
		"source_code": "x",
		"test_cases": []map[string]interface{}{
			{"test_id": 3, "input": "", "expected_output": "c"},
			{"test_id": 1, "input": "", "expected_output": "a"},
			{"test_id": 2, "input": "", "expected_output": "b"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}

	job, err := br.BlockingDequeue(context.Background(), "python", time.Second)
	if err != nil {
		t.Fatalf("BlockingDequeue: %v", err)
	}
	for i, tc := range job.TestCases {
		if tc.TestID != i+1 {
			t.Fatalf("enqueued test cases not sorted ascending by test_id: %+v", job.TestCases)
		}
	}
}

func TestGetJobReturnsQueuedStatusBeforeCompletion(t *testing.T) {
	router := newTestRouter(t)

	submitRec := postJSON(t, router, "/execute", map[string]interface{}{
		"language":    "python",
		"source_code": "print('hi')",
		"test_cases": []map[string]interface{}{
			{"test_id": 1, "input": "", "expected_output": "hi"},
		},
	})
	var submitted submitResponse
	if err := json.Unmarshal(submitRec.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/job/"+submitted.JobID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
	var status jobStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if status.OverallStatus != "queued" {
		t.Fatalf("got status %q, want queued", status.OverallStatus)
	}
}

func TestGetJobUnknownReturns404(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/job/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", rec.Code)
	}
}

func TestHealthOK(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
}

func TestMetricsExposesPrometheusText(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
}
