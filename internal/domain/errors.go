package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrPollTimeout       = errors.New("max attempts reached waiting for task")
	ErrNoOutput          = errors.New("no output data found for the task")
	ErrAborted           = errors.New("input aborted")
	ErrInputDirCreated   = errors.New("input folder created")
	ErrNoImages          = errors.New("no supported images found")
	ErrMissingAPIKey     = errors.New("TRIPO_API_KEY is required")
)

// APIError is returned when the remote service answers with a non-200 status
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: unexpected status code: %d, body: %s", e.Op, e.StatusCode, e.Body)
}

// TaskFailedError is returned when a task ends in a terminal state other than success
type TaskFailedError struct {
	TaskID string
	Status TaskStatus
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task %s ended with status %s", e.TaskID, e.Status)
}
