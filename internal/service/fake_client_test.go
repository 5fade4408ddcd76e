package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/basel-ax/tripo/internal/domain"
)

// fakeClient scripts GetTask answers per task id and serves artifacts from memory.
type fakeClient struct {
	mu sync.Mutex

	createErr   error
	nextID      string
	modelReqs   []domain.GenerationRequest
	animateReqs []string

	statuses  map[string][]*domain.Task
	getErr    error
	getCalls  map[string]int
	artifacts map[string]string
	broken    map[string]bool
	noLength  bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		nextID:    "task-1",
		statuses:  map[string][]*domain.Task{},
		getCalls:  map[string]int{},
		artifacts: map[string]string{},
		broken:    map[string]bool{},
	}
}

func (f *fakeClient) CreateModelTask(_ context.Context, req domain.GenerationRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modelReqs = append(f.modelReqs, req)
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.nextID, nil
}

func (f *fakeClient) CreateAnimationTask(_ context.Context, originalTaskID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.animateReqs = append(f.animateReqs, originalTaskID)
	if f.createErr != nil {
		return "", f.createErr
	}
	return "anim-" + originalTaskID, nil
}

func (f *fakeClient) GetTask(_ context.Context, taskID string) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := f.getCalls[taskID]
	f.getCalls[taskID] = call + 1
	if f.getErr != nil {
		return nil, f.getErr
	}
	seq := f.statuses[taskID]
	if len(seq) == 0 {
		return nil, errors.New("no scripted status")
	}
	if call >= len(seq) {
		call = len(seq) - 1
	}
	task := *seq[call]
	task.ID = taskID
	return &task, nil
}

func (f *fakeClient) Fetch(_ context.Context, url string) (io.ReadCloser, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.artifacts[url]
	if !ok {
		return nil, 0, &domain.APIError{Op: "download artifact", StatusCode: http.StatusNotFound, Body: "not found"}
	}
	size := int64(len(body))
	if f.noLength {
		size = -1
	}
	if f.broken[url] {
		half := strings.NewReader(body[:len(body)/2])
		return io.NopCloser(io.MultiReader(half, errReader{})), size, nil
	}
	return io.NopCloser(strings.NewReader(body)), size, nil
}

var errConnectionReset = errors.New("connection reset by peer")

// errReader fails every read, like a connection dropped mid-transfer.
type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errConnectionReset }

func (f *fakeClient) script(taskID string, statuses ...domain.TaskStatus) {
	for _, s := range statuses {
		f.statuses[taskID] = append(f.statuses[taskID], &domain.Task{Status: s})
	}
}

// recordingReporter keeps every value it was given.
type recordingReporter struct {
	starts   []string
	totals   []int64
	values   []int64
	finishes int
}

func (r *recordingReporter) Start(label string, total int64) {
	r.starts = append(r.starts, label)
	r.totals = append(r.totals, total)
}
func (r *recordingReporter) Set(v int64) { r.values = append(r.values, v) }
func (r *recordingReporter) Finish()     { r.finishes++ }
