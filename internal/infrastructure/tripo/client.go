package tripo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/basel-ax/tripo/internal/domain"
)

const (
	DefaultBaseURL = "https://api.tripo3d.ai/v2/openapi"
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL         string
	APIKey          string
	HTTPClient      *http.Client
	DownloadClient  *http.Client
	Timeout         time.Duration
	DownloadTimeout time.Duration
}

// Client represents the Tripo API client
type Client struct {
	httpClient     *http.Client
	downloadClient *http.Client
	baseURL        string
	apiKey         string
}

// NewClient creates a new Tripo API client
func NewClient(opts Options) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	download := opts.DownloadClient
	if download == nil {
		timeout := opts.DownloadTimeout
		if timeout <= 0 {
			timeout = 10 * time.Minute
		}
		download = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient:     client,
		downloadClient: download,
		baseURL:        base,
		apiKey:         strings.TrimSpace(opts.APIKey),
	}
}

type fileRef struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type imageToModelRequest struct {
	Type             string  `json:"type"`
	File             fileRef `json:"file"`
	ModelVersion     string  `json:"model_version,omitempty"`
	TextureQuality   string  `json:"texture_quality,omitempty"`
	TextureAlignment string  `json:"texture_alignment,omitempty"`
	ForceSymmetry    bool    `json:"force_symmetry"`
}

type animateModelRequest struct {
	Type                string `json:"type"`
	OriginalModelTaskID string `json:"original_model_task_id"`
}

type createTaskResponse struct {
	Code int `json:"code"`
	Data struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

type taskResponse struct {
	Code int `json:"code"`
	Data struct {
		TaskID   string `json:"task_id"`
		Type     string `json:"type"`
		Status   string `json:"status"`
		Progress int    `json:"progress"`
		Output   *struct {
			Model         string `json:"model"`
			PBRModel      string `json:"pbr_model"`
			RenderedVideo string `json:"rendered_video"`
			RenderedImage string `json:"rendered_image"`
		} `json:"output"`
	} `json:"data"`
}

// CreateModelTask submits an image_to_model task
func (c *Client) CreateModelTask(ctx context.Context, req domain.GenerationRequest) (string, error) {
	return c.createTask(ctx, "create model task", imageToModelRequest{
		Type: "image_to_model",
		File: fileRef{
			Type: req.FileType,
			Data: req.ImageData,
		},
		ModelVersion:     req.ModelVersion,
		TextureQuality:   req.TextureQuality,
		TextureAlignment: req.TextureAlignment,
		ForceSymmetry:    req.ForceSymmetry,
	})
}

// CreateAnimationTask submits an animate_model task referencing a finished model task
func (c *Client) CreateAnimationTask(ctx context.Context, originalTaskID string) (string, error) {
	return c.createTask(ctx, "create animation task", animateModelRequest{
		Type:                "animate_model",
		OriginalModelTaskID: originalTaskID,
	})
}

func (c *Client) createTask(ctx context.Context, op string, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/task", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newAPIError(op, resp)
	}

	var result createTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Data.TaskID == "" {
		return "", fmt.Errorf("%s: response carries no task id", op)
	}

	return result.Data.TaskID, nil
}

// GetTask retrieves the current record of a task
func (c *Client) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/task/%s", c.baseURL, taskID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError("get task", resp)
	}

	var result taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	task := &domain.Task{
		ID:       taskID,
		Kind:     taskKind(result.Data.Type),
		Status:   domain.TaskStatus(result.Data.Status),
		Progress: result.Data.Progress,
	}
	if out := result.Data.Output; out != nil {
		task.Output = &domain.Output{
			Model:         out.Model,
			PBRModel:      out.PBRModel,
			RenderedVideo: out.RenderedVideo,
			RenderedImage: out.RenderedImage,
		}
	}

	return task, nil
}

// Fetch opens an artifact URL for reading. Artifact URLs are pre-signed, so no
// authorization header is sent.
func (c *Client) Fetch(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.downloadClient.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, 0, newAPIError("download artifact", resp)
	}

	size := resp.ContentLength
	if size < 0 {
		size = -1
	}
	return resp.Body, size, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

func newAPIError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return &domain.APIError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}

func taskKind(remoteType string) domain.TaskKind {
	if remoteType == "animate_model" {
		return domain.TaskKindAnimation
	}
	return domain.TaskKindGeneration
}
