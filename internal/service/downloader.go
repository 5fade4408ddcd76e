package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/basel-ax/tripo/internal/domain"
	"github.com/basel-ax/tripo/internal/progress"
)

// FolderLayout is the time layout of the per-run output folder (YYMMDD_HH_MM_SS)
const FolderLayout = "060102_15_04_05"

// Downloader saves the artifacts of completed tasks under a dated folder
type Downloader struct {
	client   domain.TaskClient
	root     string
	reporter progress.Reporter
	now      func() time.Time
	logger   zerolog.Logger
}

// NewDownloader creates a downloader writing below root
func NewDownloader(client domain.TaskClient, root string, reporter progress.Reporter, logger zerolog.Logger) *Downloader {
	if reporter == nil {
		reporter = progress.Nop{}
	}
	return &Downloader{
		client:   client,
		root:     root,
		reporter: reporter,
		now:      time.Now,
		logger:   logger,
	}
}

type artifact struct {
	field string
	url   string
}

// Download fetches the task record and saves its artifacts. Animation tasks,
// whether reported by the API or forced with animated, yield the model archive and the rendered video; static tasks yield the model
// (or the PBR model when no plain model exists) and the preview image.
// Missing fields and failed transfers are logged and skipped. Dir is set as
// soon as the folder exists, even if every transfer into it failed.
func (d *Downloader) Download(ctx context.Context, taskID string, animated bool) (*domain.DownloadResult, error) {
	task, err := d.client.GetTask(ctx, taskID)
	if err != nil {
		d.logger.Error().Err(err).Str("task_id", taskID).Msg("error fetching task output")
		return nil, fmt.Errorf("failed to fetch task: %w", err)
	}
	if task.Output == nil {
		d.logger.Error().Str("task_id", taskID).Msg("no output data found for the task")
		return nil, fmt.Errorf("task %s: %w", taskID, domain.ErrNoOutput)
	}

	dir := filepath.Join(d.root, d.now().Format(FolderLayout))
	result := &domain.DownloadResult{}
	animated = animated || task.Kind == domain.TaskKindAnimation

	for _, a := range artifactsOf(task.Output, animated) {
		if a.url == "" {
			d.logger.Warn().Str("task_id", taskID).Str("field", a.field).Msg("artifact missing from task output")
			result.Skipped = append(result.Skipped, a.field)
			continue
		}

		file, err := d.save(ctx, dir, a)
		if result.Dir == "" && dirExists(dir) {
			result.Dir = dir
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			d.logger.Error().Err(err).Str("task_id", taskID).Str("field", a.field).Msg("artifact download failed")
			result.Skipped = append(result.Skipped, a.field)
			continue
		}

		result.Files = append(result.Files, file)
		d.logger.Info().Str("task_id", taskID).Str("field", a.field).Str("file", file).Msg("artifact downloaded")
	}

	return result, nil
}

func artifactsOf(out *domain.Output, animated bool) []artifact {
	if animated {
		return []artifact{
			{field: "model", url: out.Model},
			{field: "rendered_video", url: out.RenderedVideo},
		}
	}

	model := artifact{field: "model", url: out.Model}
	if model.url == "" && out.PBRModel != "" {
		model = artifact{field: "pbr_model", url: out.PBRModel}
	}
	return []artifact{
		model,
		{field: "rendered_image", url: out.RenderedImage},
	}
}

// save streams one artifact into dir. The folder is created only once the
// remote answered successfully.
func (d *Downloader) save(ctx context.Context, dir string, a artifact) (string, error) {
	body, size, err := d.client.Fetch(ctx, a.url)
	if err != nil {
		return "", err
	}
	defer body.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output folder: %w", err)
	}

	name := ArtifactName(a.url, a.field)
	file := filepath.Join(dir, name)
	f, err := os.Create(file)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	d.reporter.Start(name, size)
	_, copyErr := io.Copy(f, io.TeeReader(body, progress.NewWriter(d.reporter)))
	d.reporter.Finish()

	if err := errors.Join(copyErr, f.Close()); err != nil {
		if rmErr := os.Remove(file); rmErr != nil {
			d.logger.Warn().Err(rmErr).Str("file", file).Msg("failed to remove partial file")
		}
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return file, nil
}

func dirExists(dir string) bool {
	fi, err := os.Stat(dir)
	return err == nil && fi.IsDir()
}

// ArtifactName returns the base name of the URL path, without query string.
// fallback is used when the URL has no usable base name.
func ArtifactName(rawURL, fallback string) string {
	p, _, _ := strings.Cut(rawURL, "?")
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}

	name := path.Base(p)
	if name == "." || name == "/" || name == "" {
		return fallback
	}
	return name
}
