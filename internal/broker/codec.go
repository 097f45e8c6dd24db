package broker

import (
	"encoding/json"
	"fmt"

	"github.com/optimus-oj/judger/internal/model"
)

// encodeJob marshals a job request for queue storage. Isolated from
// broker.go so the wire format can be tested independently of Redis.
func encodeJob(job *model.JobRequest) ([]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	return data, nil
}

func decodeJob(data []byte) (*model.JobRequest, error) {
	var job model.JobRequest
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

func encodeResult(result *model.ExecutionResult) ([]byte, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result %s: %w", result.JobID, err)
	}
	return data, nil
}

func decodeResult(data []byte) (*model.ExecutionResult, error) {
	var result model.ExecutionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &result, nil
}
