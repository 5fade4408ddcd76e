package domain

import (
	"context"
	"encoding/base64"
	"io"

	"github.com/go-playground/validator/v10"
)

// Model versions offered for generation. DefaultModelVersion is used on empty input.
var ModelVersions = []string{
	"v2.5-20250123",
	"v2.0-20240919",
	"v1.4-20240625",
	"v1.3-20240522",
}

var (
	TextureQualities  = []string{"standard", "detailed"}
	TextureAlignments = []string{"original_image", "geometry"}
)

const (
	DefaultModelVersion     = "v2.0-20240919"
	DefaultTextureQuality   = "standard"
	DefaultTextureAlignment = "original_image"
)

var validate = validator.New()

// GenerationOptions holds the user-selected generation parameters
type GenerationOptions struct {
	ModelVersion     string `validate:"oneof=v2.5-20250123 v2.0-20240919 v1.4-20240625 v1.3-20240522"`
	TextureQuality   string `validate:"oneof=standard detailed"`
	TextureAlignment string `validate:"oneof=original_image geometry"`
	ForceSymmetry    bool
	Animate          bool
}

// DefaultGenerationOptions returns the options applied when every prompt is left empty
func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		ModelVersion:     DefaultModelVersion,
		TextureQuality:   DefaultTextureQuality,
		TextureAlignment: DefaultTextureAlignment,
	}
}

// Validate checks every option against its allowed values
func (o GenerationOptions) Validate() error {
	return validate.Struct(o)
}

// GenerationRequest represents an image_to_model submission
type GenerationRequest struct {
	FileType         string
	ImageData        string
	ModelVersion     string
	TextureQuality   string
	TextureAlignment string
	ForceSymmetry    bool
}

// NewGenerationRequest encodes image data of the given format together with opts
func NewGenerationRequest(format string, data []byte, opts GenerationOptions) GenerationRequest {
	return GenerationRequest{
		FileType:         WireFormat(format),
		ImageData:        base64.StdEncoding.EncodeToString(data),
		ModelVersion:     opts.ModelVersion,
		TextureQuality:   opts.TextureQuality,
		TextureAlignment: opts.TextureAlignment,
		ForceSymmetry:    opts.ForceSymmetry,
	}
}

// TaskClient defines the remote operations of the model generation service
type TaskClient interface {
	// CreateModelTask submits an image_to_model task and returns its id
	CreateModelTask(ctx context.Context, req GenerationRequest) (string, error)

	// CreateAnimationTask submits an animate_model task for a finished model task
	CreateAnimationTask(ctx context.Context, originalTaskID string) (string, error)

	// GetTask returns the current record of a task
	GetTask(ctx context.Context, taskID string) (*Task, error)

	// Fetch opens an artifact URL. size is -1 when the length is unknown.
	Fetch(ctx context.Context, url string) (body io.ReadCloser, size int64, err error)
}

// TaskJournal records submitted tasks and their outcome
type TaskJournal interface {
	Record(ctx context.Context, rec TaskRecord) error
	UpdateStatus(ctx context.Context, taskID string, status TaskStatus) error
	UpdateOutputDir(ctx context.Context, taskID, dir string) error
}
