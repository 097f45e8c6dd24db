package broker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/optimus-oj/judger/internal/model"
)

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)

	br, err := New("redis://"+mr.Addr(), time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { br.Close() })
	return br
}

func TestEnqueueSetsStatusQueued(t *testing.T) {
	br := newTestBroker(t)
	ctx := context.Background()

	job := &model.JobRequest{ID: "job-1", Language: model.LangPython, SourceCode: "print(1)"}
	if err := br.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	status, result, err := br.FetchResult(ctx, job.ID)
	if err != nil {
		t.Fatalf("FetchResult: %v", err)
	}
	if status != model.JobQueued {
		t.Fatalf("got status %q, want queued", status)
	}
	if result != nil {
		t.Fatalf("expected no result yet, got %+v", result)
	}
}

func TestBlockingDequeueTransitionsToRunning(t *testing.T) {
	br := newTestBroker(t)
	ctx := context.Background()

	job := &model.JobRequest{ID: "job-2", Language: model.LangRust, SourceCode: "fn main() {}"}
	if err := br.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got, err := br.BlockingDequeue(ctx, string(model.LangRust), time.Second)
	if err != nil {
		t.Fatalf("BlockingDequeue: %v", err)
	}
	if got.ID != job.ID {
		t.Fatalf("got job %q, want %q", got.ID, job.ID)
	}

	status, _, err := br.FetchResult(ctx, job.ID)
	if err != nil {
		t.Fatalf("FetchResult: %v", err)
	}
	if status != model.JobRunning {
		t.Fatalf("got status %q, want running", status)
	}
}

func TestBlockingDequeueTimesOutOnEmptyQueue(t *testing.T) {
	br := newTestBroker(t)
	_, err := br.BlockingDequeue(context.Background(), "java", 50*time.Millisecond)
	if err != ErrNoJob {
		t.Fatalf("got %v, want ErrNoJob", err)
	}
}

func TestPublishResultIsRetrievable(t *testing.T) {
	br := newTestBroker(t)
	ctx := context.Background()

	result := &model.ExecutionResult{
		JobID:         "job-3",
		OverallStatus: model.JobCompleted,
		Score:         10,
		MaxScore:      10,
	}
	if err := br.PublishResult(ctx, result); err != nil {
		t.Fatalf("PublishResult: %v", err)
	}

	status, got, err := br.FetchResult(ctx, result.JobID)
	if err != nil {
		t.Fatalf("FetchResult: %v", err)
	}
	if status != model.JobCompleted {
		t.Fatalf("got status %q, want completed", status)
	}
	if got == nil || got.Score != 10 {
		t.Fatalf("got result %+v, want score 10", got)
	}
}

func TestPublishResultWithRetryRecordsAttemptsAndReasonOnFailure(t *testing.T) {
	br := newTestBroker(t)
	br.client.Close() // force every publish attempt to fail

	result := &model.ExecutionResult{
		JobID:         "job-4",
		OverallStatus: model.JobCompleted,
		Metadata:      model.JobMetadata{MaxAttempts: 2},
	}
	err := br.PublishResultWithRetry(context.Background(), result, 2)
	if err == nil {
		t.Fatal("expected error after exhausting retries against a closed client")
	}
	if result.Metadata.Attempts != 2 {
		t.Fatalf("got attempts %d, want 2", result.Metadata.Attempts)
	}
	if result.Metadata.LastFailureReason == "" {
		t.Fatal("expected LastFailureReason to be recorded")
	}
}

func TestFetchResultUnknownJob(t *testing.T) {
	br := newTestBroker(t)
	_, _, err := br.FetchResult(context.Background(), "does-not-exist")
	if err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestQueueDepth(t *testing.T) {
	br := newTestBroker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		job := &model.JobRequest{ID: model.NewJobID(), Language: model.LangJava, SourceCode: "x"}
		if err := br.Enqueue(ctx, job); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	depth, err := br.QueueDepth(ctx, string(model.LangJava))
	if err != nil {
		t.Fatalf("QueueDepth: %v", err)
	}
	if depth != 3 {
		t.Fatalf("got depth %d, want 3", depth)
	}
}

func TestHeartbeatAndClear(t *testing.T) {
	br := newTestBroker(t)
	ctx := context.Background()

	if err := br.Heartbeat(ctx, "python", "instance-1", time.Minute); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if err := br.ClearHeartbeat(ctx, "python", "instance-1"); err != nil {
		t.Fatalf("ClearHeartbeat: %v", err)
	}
}
