package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/basel-ax/tripo/internal/domain"
	"github.com/basel-ax/tripo/internal/progress"
)

// PipelineConfig holds the collaborators of a Pipeline. Journal and Reporter may be nil.
type PipelineConfig struct {
	Models     *ModelService
	Poller     *Poller
	Downloader *Downloader
	Journal    domain.TaskJournal
	Reporter   progress.Reporter
	RunID      string
	Logger     zerolog.Logger
}

// Pipeline runs submission, polling, the optional animation pass and the
// artifact download one after another.
type Pipeline struct {
	cfg PipelineConfig
}

// NewPipeline returns a Pipeline wired to the collaborators in cfg.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Run generates a model from imagePath and downloads its artifacts. Any
// failing step stops the steps that depend on it.
func (p *Pipeline) Run(ctx context.Context, imagePath string, opts domain.GenerationOptions) (*domain.DownloadResult, error) {
	taskID, animate, err := p.cfg.Models.Submit(ctx, imagePath, opts)
	if err != nil {
		return nil, err
	}
	p.record(ctx, taskID, domain.TaskKindGeneration, imagePath)

	if err := p.wait(ctx, taskID); err != nil {
		return nil, err
	}

	if !animate {
		return p.download(ctx, taskID, false)
	}

	animationID, err := p.cfg.Models.Animate(ctx, taskID)
	if err != nil {
		return nil, err
	}
	p.record(ctx, animationID, domain.TaskKindAnimation, imagePath)

	if err := p.wait(ctx, animationID); err != nil {
		return nil, err
	}
	return p.download(ctx, animationID, true)
}

func (p *Pipeline) wait(ctx context.Context, taskID string) error {
	task, err := p.cfg.Poller.Wait(ctx, taskID, p.cfg.Reporter)
	if task != nil && p.cfg.Journal != nil {
		if jErr := p.cfg.Journal.UpdateStatus(ctx, taskID, task.Status); jErr != nil {
			p.cfg.Logger.Warn().Err(jErr).Str("task_id", taskID).Msg("journal status update failed")
		}
	}
	return err
}

func (p *Pipeline) download(ctx context.Context, taskID string, animated bool) (*domain.DownloadResult, error) {
	result, err := p.cfg.Downloader.Download(ctx, taskID, animated)
	if err != nil {
		return result, err
	}
	if result.Dir != "" && p.cfg.Journal != nil {
		if jErr := p.cfg.Journal.UpdateOutputDir(ctx, taskID, result.Dir); jErr != nil {
			p.cfg.Logger.Warn().Err(jErr).Str("task_id", taskID).Msg("journal output update failed")
		}
	}
	return result, nil
}

func (p *Pipeline) record(ctx context.Context, taskID string, kind domain.TaskKind, imagePath string) {
	if p.cfg.Journal == nil {
		return
	}
	err := p.cfg.Journal.Record(ctx, domain.TaskRecord{
		RunID:     p.cfg.RunID,
		TaskID:    taskID,
		Kind:      kind,
		ImagePath: imagePath,
		Status:    domain.StatusQueued,
	})
	if err != nil {
		p.cfg.Logger.Warn().Err(err).Str("task_id", taskID).Msg("journal record failed")
	}
}
