// Package judge orchestrates a submission across its test cases inside the
// sandbox and writes the final verdict exactly once.
package judge

import (
	"encoding/json"
	"fmt"
)

// TopicJudgeTasks carries judge tasks from the API server to the daemon.
const TopicJudgeTasks = "judge.tasks"

// Task is the queued unit of work. It carries only the submission id;
// everything else is loaded from the database so redeliveries always see
// current state.
type Task struct {
	SubmissionID int64 `json:"submission_id"`
}

// EncodeTask serializes a task for the queue.
func EncodeTask(task Task) ([]byte, error) {
	body, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("encode judge task failed: %w", err)
	}
	return body, nil
}

// DecodeTask deserializes a queued task.
func DecodeTask(body []byte) (Task, error) {
	var task Task
	if err := json.Unmarshal(body, &task); err != nil {
		return Task{}, fmt.Errorf("decode judge task failed: %w", err)
	}
	if task.SubmissionID <= 0 {
		return Task{}, fmt.Errorf("judge task missing submission id")
	}
	return task, nil
}
