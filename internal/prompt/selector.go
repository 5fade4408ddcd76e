package prompt

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/basel-ax/tripo/internal/domain"
)

// ListImages returns the names of files in dir with a supported image extension
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var images []string
	for _, e := range entries {
		if e.IsDir() || !domain.IsSupportedFormat(e.Name()) {
			continue
		}
		images = append(images, e.Name())
	}
	return images, nil
}

// SelectImage lets the user pick an image from dir. A missing dir is created
// and reported with domain.ErrInputDirCreated so the user can fill it first.
func (p *Prompter) SelectImage(ctx context.Context, dir string) (string, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create input folder: %w", err)
		}
		p.notice("Folder '%s' created. Please put your images (%s) into this folder.",
			dir, strings.Join(domain.SupportedFormats, ", "))
		return "", fmt.Errorf("%s: %w", dir, domain.ErrInputDirCreated)
	} else if err != nil {
		return "", err
	}

	images, err := ListImages(dir)
	if err != nil {
		return "", fmt.Errorf("failed to list images: %w", err)
	}
	if len(images) == 0 {
		return "", fmt.Errorf("%s: %w", dir, domain.ErrNoImages)
	}

	idx, err := ask(ctx, p, newQuestion("Choose image:", images, 0, parseIndex(len(images))))
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, images[idx]), nil
}
