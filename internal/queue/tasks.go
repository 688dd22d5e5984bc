// Package queue moves process requests through Redis with asynq so that jobs
// can be accepted by one process and executed by a pool of workers.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"callouts/pkg/models"
)

const (
	// TypeProcess is the task type of a callout extraction job.
	TypeProcess = "callouts:process"

	// DefaultQueue receives process tasks.
	DefaultQueue = "callouts"

	// DefaultMaxRetry is the number of times asynq retries a failed job.
	DefaultMaxRetry = 2

	// DefaultJobTimeout bounds a single job.
	DefaultJobTimeout = 30 * time.Minute
)

// NewProcessTask encodes req as a task.
func NewProcessTask(req models.ProcessRequest) (*asynq.Task, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("queue: encode request: %w", err)
	}
	return asynq.NewTask(TypeProcess, payload), nil
}

// ParseProcessTask decodes the request carried by task.
func ParseProcessTask(task *asynq.Task) (models.ProcessRequest, error) {
	var req models.ProcessRequest
	if err := json.Unmarshal(task.Payload(), &req); err != nil {
		return req, fmt.Errorf("queue: decode %s payload: %w", task.Type(), err)
	}
	return req, nil
}
