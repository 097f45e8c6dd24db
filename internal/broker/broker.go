// Package broker implements the Redis-backed job queue and result store.
// A per-language list is the FIFO queue; status and result are separate
// keys so a caller can cheaply poll status without pulling the full
// result blob. The broker performs no locking of its own: BLPOP/BRPOP's
// atomicity is what gives a dequeuing worker exclusive ownership of a
// job.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/optimus-oj/judger/internal/model"
)

// ErrNoJob is returned by BlockingDequeue when the poll window elapses
// with nothing queued.
var ErrNoJob = errors.New("broker: no job available")

// ErrNotFound is returned by FetchResult when neither a status nor a
// result key exists for the given job ID.
var ErrNotFound = errors.New("broker: job not found")

const defaultResultTTL = time.Hour

// Broker mediates all access to the shared Redis store.
type Broker struct {
	client    *redis.Client
	logger    *zap.Logger
	resultTTL time.Duration
}

// New constructs a Broker from a Redis connection URL, e.g.
// "redis://localhost:6379/0".
func New(redisURL string, resultTTL time.Duration, logger *zap.Logger) (*Broker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if resultTTL <= 0 {
		resultTTL = defaultResultTTL
	}
	return &Broker{
		client:    redis.NewClient(opts),
		logger:    logger,
		resultTTL: resultTTL,
	}, nil
}

// Ping verifies the broker is reachable, used by the gateway's health check.
func (b *Broker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection pool.
func (b *Broker) Close() error {
	return b.client.Close()
}

// Enqueue serializes job and right-pushes it onto its language's queue,
// then marks the job Queued with a TTL.
func (b *Broker) Enqueue(ctx context.Context, job *model.JobRequest) error {
	payload, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := b.client.RPush(ctx, queueKey(string(job.Language)), payload).Err(); err != nil {
		return fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	if err := b.setStatus(ctx, job.ID, model.JobQueued); err != nil {
		return fmt.Errorf("mark job %s queued: %w", job.ID, err)
	}
	return nil
}

// BlockingDequeue left-pops the next job from language's queue, waiting
// up to pollTimeout. On a hit it transitions the job's status to
// Running before returning it. ErrNoJob is returned on a timeout, which
// callers should treat as a normal poll miss, not a failure.
func (b *Broker) BlockingDequeue(ctx context.Context, language string, pollTimeout time.Duration) (*model.JobRequest, error) {
	res, err := b.client.BLPop(ctx, pollTimeout, queueKey(language)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoJob
		}
		return nil, fmt.Errorf("dequeue from %s: %w", language, err)
	}
	// BLPOP returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("dequeue from %s: unexpected reply shape", language)
	}
	job, err := decodeJob([]byte(res[1]))
	if err != nil {
		return nil, err
	}
	if err := b.setStatus(ctx, job.ID, model.JobRunning); err != nil {
		b.logger.Warn("failed to mark job running", zap.String("job_id", job.ID), zap.Error(err))
	}
	return job, nil
}

// PublishResult writes the result blob and the terminal status in a
// single pipeline, status set last so a concurrent reader never
// observes a terminal status without its backing result. Both keys
// carry the broker's result TTL.
func (b *Broker) PublishResult(ctx context.Context, result *model.ExecutionResult) error {
	payload, err := encodeResult(result)
	if err != nil {
		return err
	}
	_, err = b.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, resultKey(result.JobID), payload, b.resultTTL)
		pipe.Set(ctx, statusKey(result.JobID), string(result.OverallStatus), b.resultTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish result %s: %w", result.JobID, err)
	}
	return nil
}

// PublishResultWithRetry retries PublishResult with exponential backoff
// up to maxAttempts, recording each failed attempt on result.Metadata
// as it goes — by the time a publish finally succeeds (or the retries
// are exhausted), result.Metadata.Attempts counts the failed tries that
// preceded it and LastFailureReason holds the most recent error, so the
// published result itself carries its own retry history (spec.md §7).
// On final failure the error is returned for the caller to log; the
// job's status key is left as Running until its TTL expires, per spec.
func (b *Broker) PublishResultWithRetry(ctx context.Context, result *model.ExecutionResult, maxAttempts int) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	backoff := 100 * time.Millisecond
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := b.PublishResult(ctx, result); err != nil {
			lastErr = err
			result.Metadata.Attempts++
			result.Metadata.LastFailureReason = err.Error()
			b.logger.Warn("publish result failed, retrying",
				zap.String("job_id", result.JobID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}
		return nil
	}
	return fmt.Errorf("publish result %s: giving up after %d attempts: %w", result.JobID, maxAttempts, lastErr)
}

// FetchResult returns the job's status and, if present, its full
// result. It performs a single multi-get across both keys.
func (b *Broker) FetchResult(ctx context.Context, jobID string) (status model.JobStatus, result *model.ExecutionResult, err error) {
	vals, err := b.client.MGet(ctx, statusKey(jobID), resultKey(jobID)).Result()
	if err != nil {
		return "", nil, fmt.Errorf("fetch result %s: %w", jobID, err)
	}
	if vals[0] == nil {
		return "", nil, ErrNotFound
	}
	statusStr, _ := vals[0].(string)
	status = model.JobStatus(statusStr)

	if vals[1] == nil {
		return status, nil, nil
	}
	resultStr, _ := vals[1].(string)
	decoded, err := decodeResult([]byte(resultStr))
	if err != nil {
		return status, nil, err
	}
	return status, decoded, nil
}

// QueueDepth reports the number of jobs currently queued for language.
func (b *Broker) QueueDepth(ctx context.Context, language string) (int64, error) {
	n, err := b.client.LLen(ctx, queueKey(language)).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth %s: %w", language, err)
	}
	return n, nil
}

func (b *Broker) setStatus(ctx context.Context, jobID string, status model.JobStatus) error {
	return b.client.Set(ctx, statusKey(jobID), string(status), b.resultTTL).Err()
}

// Heartbeat records a worker instance as alive for language with a TTL
// slightly longer than interval, so a missed beat or two doesn't flap
// the liveness signal.
func (b *Broker) Heartbeat(ctx context.Context, language, instanceID string, ttl time.Duration) error {
	return b.client.Set(ctx, workerKey(language, instanceID), time.Now().Unix(), ttl).Err()
}

// ClearHeartbeat removes a worker's liveness key, called on graceful shutdown.
func (b *Broker) ClearHeartbeat(ctx context.Context, language, instanceID string) error {
	return b.client.Del(ctx, workerKey(language, instanceID)).Err()
}
