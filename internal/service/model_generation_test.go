package service

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basel-ax/tripo/internal/domain"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func writeImage(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, pngHeader, 0o644))
	return p
}

func TestModelService_SubmitSupportedFormats(t *testing.T) {
	tests := []struct {
		file     string
		wireType string
	}{
		{"cat.png", "png"},
		{"cat.jpg", "jpg"},
		{"cat.jpeg", "jpg"},
		{"cat.webp", "webp"},
		{"CAT.PNG", "png"},
		{"cat.JpEg", "jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			client := newFakeClient()
			svc := NewModelService(client, zerolog.Nop())

			taskID, animate, err := svc.Submit(context.Background(), writeImage(t, tt.file), domain.DefaultGenerationOptions())
			require.NoError(t, err)
			assert.Equal(t, "task-1", taskID)
			assert.False(t, animate)

			require.Len(t, client.modelReqs, 1)
			req := client.modelReqs[0]
			assert.Equal(t, tt.wireType, req.FileType)
			assert.Equal(t, base64.StdEncoding.EncodeToString(pngHeader), req.ImageData)
			assert.Equal(t, "v2.0-20240919", req.ModelVersion)
			assert.Equal(t, "standard", req.TextureQuality)
			assert.Equal(t, "original_image", req.TextureAlignment)
			assert.False(t, req.ForceSymmetry)
		})
	}
}

func TestModelService_SubmitRejectsUnsupportedFormat(t *testing.T) {
	for _, name := range []string{"cat.gif", "cat.bmp", "cat.tiff", "cat", "cat.png.txt"} {
		t.Run(name, func(t *testing.T) {
			client := newFakeClient()
			svc := NewModelService(client, zerolog.Nop())

			taskID, _, err := svc.Submit(context.Background(), writeImage(t, name), domain.DefaultGenerationOptions())
			assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
			assert.Empty(t, taskID)
			assert.Empty(t, client.modelReqs)
		})
	}
}

func TestModelService_SubmitRejectsInvalidOptions(t *testing.T) {
	client := newFakeClient()
	svc := NewModelService(client, zerolog.Nop())

	opts := domain.DefaultGenerationOptions()
	opts.TextureQuality = "ultra"

	_, _, err := svc.Submit(context.Background(), writeImage(t, "cat.png"), opts)
	assert.Error(t, err)
	assert.Empty(t, client.modelReqs)
}

func TestModelService_SubmitPassesOptionsAndAnimateFlag(t *testing.T) {
	client := newFakeClient()
	svc := NewModelService(client, zerolog.Nop())

	opts := domain.GenerationOptions{
		ModelVersion:     "v2.5-20250123",
		TextureQuality:   "detailed",
		TextureAlignment: "geometry",
		ForceSymmetry:    true,
		Animate:          true,
	}
	_, animate, err := svc.Submit(context.Background(), writeImage(t, "cat.webp"), opts)
	require.NoError(t, err)
	assert.True(t, animate)

	req := client.modelReqs[0]
	assert.Equal(t, "v2.5-20250123", req.ModelVersion)
	assert.Equal(t, "detailed", req.TextureQuality)
	assert.Equal(t, "geometry", req.TextureAlignment)
	assert.True(t, req.ForceSymmetry)
}

func TestModelService_SubmitRemoteError(t *testing.T) {
	client := newFakeClient()
	client.createErr = &domain.APIError{Op: "create model task", StatusCode: 401, Body: "bad token"}
	svc := NewModelService(client, zerolog.Nop())

	taskID, _, err := svc.Submit(context.Background(), writeImage(t, "cat.png"), domain.DefaultGenerationOptions())
	assert.Empty(t, taskID)

	var apiErr *domain.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 401, apiErr.StatusCode)
}

func TestModelService_SubmitMissingFile(t *testing.T) {
	client := newFakeClient()
	svc := NewModelService(client, zerolog.Nop())

	_, _, err := svc.Submit(context.Background(), filepath.Join(t.TempDir(), "nope.png"), domain.DefaultGenerationOptions())
	assert.Error(t, err)
	assert.Empty(t, client.modelReqs)
}

func TestModelService_Animate(t *testing.T) {
	client := newFakeClient()
	svc := NewModelService(client, zerolog.Nop())

	id, err := svc.Animate(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, "anim-task-1", id)
	assert.Equal(t, []string{"task-1"}, client.animateReqs)

	client.createErr = errors.New("boom")
	id, err = svc.Animate(context.Background(), "task-1")
	assert.Error(t, err)
	assert.Empty(t, id)
}

// newTestPoller returns a poller that records sleeps instead of sleeping.
func newTestPoller(client domain.TaskClient, maxAttempts int) (*Poller, *[]time.Duration) {
	var sleeps []time.Duration
	p := NewPoller(client, 5*time.Second, maxAttempts, zerolog.Nop())
	p.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return p, &sleeps
}

func TestPoller_WaitUntilTerminal(t *testing.T) {
	tests := []struct {
		name     string
		statuses []domain.TaskStatus
		wantErr  bool
	}{
		{"immediate success", []domain.TaskStatus{domain.StatusSuccess}, false},
		{"pending then success", []domain.TaskStatus{domain.StatusQueued, domain.StatusRunning, domain.StatusRunning, domain.StatusSuccess}, false},
		{"pending then failed", []domain.TaskStatus{domain.StatusQueued, domain.StatusFailed}, true},
		{"cancelled", []domain.TaskStatus{domain.StatusRunning, domain.StatusCancelled}, true},
		{"unknown", []domain.TaskStatus{domain.StatusUnknown}, true},
		{"vendor specific pending state", []domain.TaskStatus{"banned_check", domain.StatusSuccess}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeClient()
			client.script("t", tt.statuses...)
			p, sleeps := newTestPoller(client, 100)

			task, err := p.Wait(context.Background(), "t", nil)

			pending := len(tt.statuses) - 1
			assert.Equal(t, len(tt.statuses), client.getCalls["t"])
			assert.Len(t, *sleeps, pending)
			for _, d := range *sleeps {
				assert.Equal(t, 5*time.Second, d)
			}

			final := tt.statuses[len(tt.statuses)-1]
			require.NotNil(t, task)
			assert.Equal(t, final, task.Status)
			if tt.wantErr {
				var failed *domain.TaskFailedError
				require.True(t, errors.As(err, &failed))
				assert.Equal(t, final, failed.Status)
				assert.Equal(t, "t", failed.TaskID)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPoller_StatusErrorEndsImmediately(t *testing.T) {
	client := newFakeClient()
	client.getErr = &domain.APIError{Op: "get task", StatusCode: 500, Body: "oops"}
	p, sleeps := newTestPoller(client, 10)

	task, err := p.Wait(context.Background(), "t", nil)
	assert.Nil(t, task)

	var apiErr *domain.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 1, client.getCalls["t"])
	assert.Empty(t, *sleeps)
}

func TestPoller_MaxAttempts(t *testing.T) {
	client := newFakeClient()
	client.script("t", domain.StatusRunning)
	p, sleeps := newTestPoller(client, 4)

	task, err := p.Wait(context.Background(), "t", nil)
	assert.Nil(t, task)
	assert.ErrorIs(t, err, domain.ErrPollTimeout)
	assert.Equal(t, 4, client.getCalls["t"])
	assert.Len(t, *sleeps, 3)
}

func TestPoller_ReporterOnlyMovesForward(t *testing.T) {
	client := newFakeClient()
	for _, pr := range []int{0, 10, 40, 30, 40, 60} {
		client.statuses["t"] = append(client.statuses["t"], &domain.Task{Status: domain.StatusRunning, Progress: pr})
	}
	client.statuses["t"] = append(client.statuses["t"], &domain.Task{Status: domain.StatusSuccess, Progress: 90})
	p, _ := newTestPoller(client, 100)

	rep := &recordingReporter{}
	_, err := p.Wait(context.Background(), "t", rep)
	require.NoError(t, err)

	assert.Equal(t, []int64{100}, rep.totals)
	assert.Equal(t, []int64{10, 40, 60, 100}, rep.values)
	assert.Equal(t, 1, rep.finishes)
}

func TestPoller_ReporterNotCompletedOnFailure(t *testing.T) {
	client := newFakeClient()
	client.statuses["t"] = []*domain.Task{
		{Status: domain.StatusRunning, Progress: 20},
		{Status: domain.StatusFailed, Progress: 20},
	}
	p, _ := newTestPoller(client, 100)

	rep := &recordingReporter{}
	_, err := p.Wait(context.Background(), "t", rep)
	require.Error(t, err)
	assert.Equal(t, []int64{20}, rep.values)
	assert.Equal(t, 1, rep.finishes)
}

func TestPoller_ContextCancelledWhileWaiting(t *testing.T) {
	client := newFakeClient()
	client.script("t", domain.StatusRunning)
	p := NewPoller(client, time.Hour, 10, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Wait(ctx, "t", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, client.getCalls["t"])
}
