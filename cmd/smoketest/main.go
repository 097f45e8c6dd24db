// Command smoketest posts a handful of jobs at a running gateway and
// polls for results, the same exercise-the-running-system purpose the
// teacher's cmd/client_test/main.go served for its gRPC transport,
// translated to plain HTTP against POST /execute and GET /job/{id}.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

type testCase struct {
	TestID         int    `json:"test_id"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

type submitRequest struct {
	Language   string     `json:"language"`
	SourceCode string     `json:"source_code"`
	TestCases  []testCase `json:"test_cases"`
	TimeoutMs  int64      `json:"timeout_ms"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type scenario struct {
	name     string
	language string
	source   string
	input    string
	expected string
}

func main() {
	baseURL := flag.String("addr", "http://localhost:8080", "gateway base URL")
	flag.Parse()

	scenarios := []scenario{
		{
			name:     "python_ac",
			language: "python",
			source:   "a, b = map(int, input().split())\nprint(a + b)",
			input:    "1 2",
			expected: "3",
		},
		{
			name:     "python_wa",
			language: "python",
			source:   "a, b = map(int, input().split())\nprint(a + b + 1)",
			input:    "1 2",
			expected: "3",
		},
		{
			name:     "python_tle",
			language: "python",
			source:   "while True:\n    pass",
			input:    "",
			expected: "",
		},
	}

	for _, sc := range scenarios {
		if err := run(*baseURL, sc); err != nil {
			fmt.Fprintf(os.Stderr, "[%s] FAILED: %v\n", sc.name, err)
			os.Exit(1)
		}
	}
}

func run(baseURL string, sc scenario) error {
	req := submitRequest{
		Language:   sc.language,
		SourceCode: sc.source,
		TestCases: []testCase{
			{TestID: 1, Input: sc.input, ExpectedOutput: sc.expected},
		},
		TimeoutMs: 2000,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	resp, err := http.Post(baseURL+"/execute", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("submit returned %d: %s", resp.StatusCode, data)
	}

	var submitted submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		return fmt.Errorf("decode submit response: %w", err)
	}
	fmt.Printf("[%s] queued as %s\n", sc.name, submitted.JobID)

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		result, err := poll(baseURL, submitted.JobID)
		if err != nil {
			return err
		}
		if result != "" {
			fmt.Printf("[%s] %s\n", sc.name, result)
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("timed out waiting for result")
}

func poll(baseURL, jobID string) (string, error) {
	resp, err := http.Get(baseURL + "/job/" + jobID)
	if err != nil {
		return "", fmt.Errorf("poll: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read poll response: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", fmt.Errorf("decode poll response: %w", err)
	}
	status, _ := raw["overall_status"].(string)
	if status == "completed" || status == "failed" || status == "timed_out" {
		return string(data), nil
	}
	return "", nil
}
