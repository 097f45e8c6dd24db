package broker

import "fmt"

// queueKey returns the Redis key backing the FIFO queue for a language.
func queueKey(language string) string {
	return fmt.Sprintf("optimus:queue:%s", language)
}

// QueueName is queueKey's exported form, used by worker startup
// validation (spec.md §4.3) to check OPTIMUS_QUEUE against the queue
// its OPTIMUS_LANGUAGE actually owns, without duplicating the key
// format string outside this package.
func QueueName(language string) string {
	return queueKey(language)
}

// statusKey returns the Redis key holding a job's current status.
func statusKey(jobID string) string {
	return fmt.Sprintf("optimus:status:%s", jobID)
}

// resultKey returns the Redis key holding a job's published result.
func resultKey(jobID string) string {
	return fmt.Sprintf("optimus:result:%s", jobID)
}

// workerKey returns the Redis key backing a worker's liveness heartbeat.
func workerKey(language, instanceID string) string {
	return fmt.Sprintf("optimus:worker:%s:%s", language, instanceID)
}
