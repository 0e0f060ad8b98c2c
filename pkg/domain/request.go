package domain

import (
	"encoding/json"
	"fmt"
)

// RunRequest is the message handed to a worker by every dispatch transport.
type RunRequest struct {
	RunID        string `json:"run_id"`
	ExperimentID string `json:"experiment_id"`
}

// Validate checks that both identifiers are set.
func (r RunRequest) Validate() error {
	if r.RunID == "" || r.ExperimentID == "" {
		return fmt.Errorf("run request requires run_id and experiment_id")
	}
	return nil
}

// DecodeRunRequest parses and validates a JSON run request.
func DecodeRunRequest(data []byte) (RunRequest, error) {
	var req RunRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return RunRequest{}, fmt.Errorf("invalid run request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return RunRequest{}, err
	}
	return req, nil
}
