package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/optimus-oj/judger/internal/broker"
	"github.com/optimus-oj/judger/internal/config"
	"github.com/optimus-oj/judger/internal/discovery"
	"github.com/optimus-oj/judger/internal/languages"
	"github.com/optimus-oj/judger/internal/metrics"
	"github.com/optimus-oj/judger/internal/model"
	"github.com/optimus-oj/judger/internal/sandbox"
)

const (
	dequeuePollInterval = 5 * time.Second
	// publishMaxAttempts is the fallback retry count used only if a
	// job's Metadata.MaxAttempts is unset — every real job carries one
	// via model.DefaultJobMetadata.
	publishMaxAttempts = 3
)

// ValidateConfig runs the crash-fast startup checks spec.md §4.3
// mandates, in the order its table lists them, so the diagnostic a
// misconfigured worker logs always names the first offending variable.
// Cross-language pollution — a Python worker picking up Java jobs — is
// a correctness disaster; eliminating the possibility at process start
// is cheaper than detecting it in the dispatch loop.
func ValidateConfig(cfg config.WorkerConfig) error {
	if cfg.Language == "" {
		return errors.New("OPTIMUS_LANGUAGE not set")
	}
	if !cfg.Language.Valid() {
		return fmt.Errorf("invalid language %q", cfg.Language)
	}
	if cfg.Queue == "" {
		return errors.New("OPTIMUS_QUEUE not set")
	}
	if want := broker.QueueName(string(cfg.Language)); cfg.Queue != want {
		return fmt.Errorf("queue mismatch: OPTIMUS_QUEUE=%q does not match %q for OPTIMUS_LANGUAGE=%q", cfg.Queue, want, cfg.Language)
	}
	if cfg.Image == "" {
		return errors.New("OPTIMUS_IMAGE not set")
	}
	wantPrefix := fmt.Sprintf("optimus-%s:", cfg.Language)
	if !strings.HasPrefix(cfg.Image, wantPrefix) {
		return fmt.Errorf("image mismatch: OPTIMUS_IMAGE=%q does not start with %q", cfg.Image, wantPrefix)
	}
	if cfg.RedisURL == "" {
		return errors.New("REDIS_URL not set")
	}
	return nil
}

// Worker is a single-language-bound dispatch loop: dequeue, execute
// every test case sequentially, publish. A Worker is single-threaded
// cooperative at job granularity (spec.md §5) — it never starts a
// second job before the first one's result is published.
type Worker struct {
	cfg         config.WorkerConfig
	br          *broker.Broker
	driver      *sandbox.Driver
	languages   *languages.Registry
	heartbeater *discovery.Heartbeater
	logger      *zap.Logger
}

// New constructs a Worker. cfg must already have passed ValidateConfig.
func New(cfg config.WorkerConfig, br *broker.Broker, driver *sandbox.Driver, registry *languages.Registry, logger *zap.Logger) *Worker {
	return &Worker{
		cfg:         cfg,
		br:          br,
		driver:      driver,
		languages:   registry,
		heartbeater: discovery.NewHeartbeater(br, cfg.Language, logger),
		logger:      logger,
	}
}

// Start performs image pre-pull (advisory — failure here is logged but
// not fatal, per spec.md §9: "cache-check is authoritative"), begins
// the liveness heartbeat, logs "Worker is READY", and runs the dispatch
// loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.driver.EnsureImage(ctx, w.cfg.Image); err != nil {
		w.logger.Warn("image pre-pull failed, continuing — cache health check will gate execution",
			zap.String("image", w.cfg.Image), zap.Error(err))
	}

	w.heartbeater.Start()
	defer w.heartbeater.Stop()

	w.logger.Info("Worker is READY",
		zap.String("language", string(w.cfg.Language)),
		zap.String("queue", w.cfg.Queue),
		zap.String("image", w.cfg.Image))

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := w.dispatchOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			w.logger.Error("dispatch iteration failed", zap.Error(err))
		}
	}
}

// dispatchOnce runs exactly one iteration of the dispatch loop:
// blocking dequeue, defensive language check, cache health check,
// sequential test execution, scoring, and result publication.
func (w *Worker) dispatchOnce(ctx context.Context) error {
	job, err := w.br.BlockingDequeue(ctx, string(w.cfg.Language), dequeuePollInterval)
	if err != nil {
		if errors.Is(err, broker.ErrNoJob) {
			return nil // poll miss, not a failure
		}
		return fmt.Errorf("dequeue: %w", err)
	}

	if job.Language != w.cfg.Language {
		w.logger.Error("language mismatch on dequeued job — should be impossible under correct queue partitioning",
			zap.String("job_id", job.ID), zap.String("job_language", string(job.Language)), zap.String("worker_language", string(w.cfg.Language)))
		return w.publish(ctx, languageMismatchResult(job, w.cfg.Language))
	}

	if !w.driver.ImagePresent(ctx, w.cfg.Image) {
		if err := w.driver.EnsureImage(ctx, w.cfg.Image); err != nil {
			w.logger.Error("image cache miss and pull failed", zap.String("image", w.cfg.Image), zap.Error(err))
			return w.publish(ctx, imagePullFailureResult(job, w.cfg.Image, err))
		}
	}

	runtime, err := w.languages.Get(w.cfg.Language)
	if err != nil {
		return fmt.Errorf("language runtime config: %w", err)
	}

	engine := NewEngine(w.driver, w.cfg.Image, runtime, w.cfg.MaxOutputBytes)
	outputs := engine.ExecuteJob(ctx, job)
	result := Evaluate(job, outputs)

	return w.publish(ctx, result)
}

func (w *Worker) publish(ctx context.Context, result *model.ExecutionResult) error {
	maxAttempts := result.Metadata.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = publishMaxAttempts
	}
	if err := w.br.PublishResultWithRetry(ctx, result, maxAttempts); err != nil {
		w.logger.Error("giving up publishing result — status remains Running until TTL expiry",
			zap.String("job_id", result.JobID), zap.Error(err))
		return nil // per spec.md §7: log and drop, do not crash the dispatch loop
	}
	metrics.RecordOutcome(result.OverallStatus)
	return nil
}

// languageMismatchResult builds the diagnostic Failed result spec.md §7
// requires when a worker dequeues a job for a language it does not serve.
func languageMismatchResult(job *model.JobRequest, workerLanguage model.Language) *model.ExecutionResult {
	results := make([]model.TestResult, len(job.TestCases))
	var maxScore int
	for i, tc := range job.TestCases {
		maxScore += tc.Weight
		results[i] = model.TestResult{
			TestID: tc.TestID,
			Status: model.StatusRuntimeError,
			Stderr: fmt.Sprintf("language mismatch: job is %q, worker serves %q", job.Language, workerLanguage),
			Weight: tc.Weight,
		}
	}
	return &model.ExecutionResult{
		JobID:         job.ID,
		OverallStatus: model.JobFailed,
		Score:         0,
		MaxScore:      maxScore,
		Results:       results,
		Metadata:      job.Metadata,
	}
}

// imagePullFailureResult builds the diagnostic Failed result spec.md §7
// requires when the configured image is missing and a synchronous pull
// fails: every test is marked RuntimeError with the pull error in stderr.
func imagePullFailureResult(job *model.JobRequest, image string, pullErr error) *model.ExecutionResult {
	results := make([]model.TestResult, len(job.TestCases))
	var maxScore int
	for i, tc := range job.TestCases {
		maxScore += tc.Weight
		results[i] = model.TestResult{
			TestID: tc.TestID,
			Status: model.StatusRuntimeError,
			Stderr: fmt.Sprintf("image %q unavailable: %v", image, pullErr),
			Weight: tc.Weight,
		}
	}
	return &model.ExecutionResult{
		JobID:         job.ID,
		OverallStatus: model.JobFailed,
		Score:         0,
		MaxScore:      maxScore,
		Results:       results,
		Metadata:      job.Metadata,
	}
}
