package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	apperrors "github.com/coveworks/bulk-restore/internal/errors"
)

// Task status values reported by the backend.
const (
	TaskQueued     = "queued"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
	TaskFailed     = "failed"
	TaskAborted    = "aborted"
)

// Task is one asynchronous restore task.
type Task struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ReadTask fetches the current state of a task. An unknown id is reported
// as a NotFoundError rather than a raw backend status.
func (c *Client) ReadTask(ctx context.Context, id string) (Task, error) {
	if id == "" {
		return Task{}, apperrors.NewValidationError("task id", "must not be empty")
	}
	task, err := getJSON[Task](ctx, c, "read_task", "/tasks/"+url.PathEscape(id), nil)
	if err != nil {
		var ae *apperrors.APIError
		if errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound {
			return Task{}, apperrors.NewNotFoundError("task", id)
		}
		return Task{}, err
	}
	return task, nil
}
