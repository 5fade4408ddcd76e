package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/basel-ax/tripo/internal/domain"
	"github.com/basel-ax/tripo/internal/progress"
)

// ModelService submits generation and animation tasks
type ModelService struct {
	client domain.TaskClient
	logger zerolog.Logger
}

// NewModelService creates a new model generation service
func NewModelService(client domain.TaskClient, logger zerolog.Logger) *ModelService {
	return &ModelService{
		client: client,
		logger: logger,
	}
}

// Submit uploads the image at imagePath and starts an image_to_model task.
// It returns the task id and whether the caller asked for an animation pass.
func (s *ModelService) Submit(ctx context.Context, imagePath string, opts domain.GenerationOptions) (string, bool, error) {
	if !domain.IsSupportedFormat(imagePath) {
		return "", false, fmt.Errorf("%w: %q (supported: %s)",
			domain.ErrUnsupportedFormat, domain.FormatOf(imagePath), strings.Join(domain.SupportedFormats, ", "))
	}
	if err := opts.Validate(); err != nil {
		return "", false, fmt.Errorf("invalid generation options: %w", err)
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", false, fmt.Errorf("failed to read image: %w", err)
	}

	if mime := mimetype.Detect(data); !strings.HasPrefix(mime.String(), "image/") {
		s.logger.Warn().
			Str("image", imagePath).
			Str("detected", mime.String()).
			Msg("file content does not look like an image")
	}

	req := domain.NewGenerationRequest(domain.FormatOf(imagePath), data, opts)
	taskID, err := s.client.CreateModelTask(ctx, req)
	if err != nil {
		s.logger.Error().Err(err).Str("image", imagePath).Msg("model task submission failed")
		return "", false, fmt.Errorf("failed to submit model task: %w", err)
	}

	s.logger.Info().
		Str("task_id", taskID).
		Str("model_version", opts.ModelVersion).
		Str("texture_quality", opts.TextureQuality).
		Str("texture_alignment", opts.TextureAlignment).
		Bool("force_symmetry", opts.ForceSymmetry).
		Msg("model generation task submitted")

	return taskID, opts.Animate, nil
}

// Animate starts an animate_model task for a finished model task
func (s *ModelService) Animate(ctx context.Context, modelTaskID string) (string, error) {
	taskID, err := s.client.CreateAnimationTask(ctx, modelTaskID)
	if err != nil {
		s.logger.Error().Err(err).Str("model_task_id", modelTaskID).Msg("animation task submission failed")
		return "", fmt.Errorf("failed to submit animation task: %w", err)
	}

	s.logger.Info().Str("task_id", taskID).Str("model_task_id", modelTaskID).Msg("animation task submitted")
	return taskID, nil
}

// Poller waits for tasks to reach a terminal status
type Poller struct {
	client      domain.TaskClient
	interval    time.Duration
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
	logger      zerolog.Logger
}

// NewPoller creates a poller querying every interval, at most maxAttempts times
func NewPoller(client domain.TaskClient, interval time.Duration, maxAttempts int, logger zerolog.Logger) *Poller {
	return &Poller{
		client:      client,
		interval:    interval,
		maxAttempts: maxAttempts,
		sleep:       sleepContext,
		logger:      logger,
	}
}

// Wait polls the task until it reaches a terminal status. With a nil reporter
// every pending status is logged; otherwise the task progress drives the
// reporter, which only ever moves forward and is completed on success.
func (p *Poller) Wait(ctx context.Context, taskID string, reporter progress.Reporter) (*domain.Task, error) {
	if reporter != nil {
		reporter.Start("Task "+taskID, 100)
	}
	finish := func() {
		if reporter != nil {
			reporter.Finish()
		}
	}

	shown := 0
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		task, err := p.client.GetTask(ctx, taskID)
		if err != nil {
			finish()
			p.logger.Error().Err(err).Str("task_id", taskID).Msg("error checking task status")
			return nil, fmt.Errorf("failed to check task status: %w", err)
		}

		if task.Status == domain.StatusSuccess {
			if reporter != nil {
				reporter.Set(100)
			}
			finish()
			p.logger.Info().Str("task_id", taskID).Int("attempts", attempt).Msg("task completed")
			return task, nil
		}

		if task.Status.IsTerminal() {
			finish()
			p.logger.Warn().Str("task_id", taskID).Str("status", string(task.Status)).Msg("task did not succeed")
			return task, &domain.TaskFailedError{TaskID: taskID, Status: task.Status}
		}

		if reporter != nil {
			if task.Progress > shown {
				shown = min(task.Progress, 100)
				reporter.Set(int64(shown))
			}
		} else {
			p.logger.Info().
				Str("task_id", taskID).
				Str("status", string(task.Status)).
				Int("progress", task.Progress).
				Int("attempt", attempt).
				Msg("task is still in progress")
		}

		if attempt == p.maxAttempts {
			break
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			finish()
			return nil, err
		}
	}

	finish()
	return nil, fmt.Errorf("task %s after %d attempts: %w", taskID, p.maxAttempts, domain.ErrPollTimeout)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
