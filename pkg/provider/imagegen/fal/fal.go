// Package fal provides an image generation provider backed by the fal.ai
// synchronous inference API. It implements the imagegen.Provider interface.
//
// Try-on requests run against a dedicated virtual try-on model; edit requests
// run against an image-to-image diffusion model tuned to preserve the subject
// while applying the prompted styling.
package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/solyn-ai/solyn/pkg/provider/imagegen"
)

const (
	defaultBaseURL    = "https://fal.run"
	defaultUploadURL  = "https://rest.alpha.fal.ai/storage/upload/initiate"
	defaultTryOnModel = "fal-ai/fashn/tryon/v1.6"
	defaultEditModel  = "fal-ai/flux/dev/image-to-image"

	// Edit model tuning. Strength keeps the subject recognisable while still
	// applying the requested restyle.
	editStrength      = 0.7
	editSteps         = 28
	editGuidanceScale = 3.5
	editImageSize     = "square_hd"
)

// Compile-time assertion that Provider satisfies imagegen.Provider.
var _ imagegen.Provider = (*Provider)(nil)

// Option is a functional option for configuring the fal Provider.
type Option func(*Provider)

// WithTryOnModel overrides the virtual try-on model ID.
func WithTryOnModel(model string) Option {
	return func(p *Provider) { p.tryOnModel = model }
}

// WithEditModel overrides the image-to-image edit model ID.
func WithEditModel(model string) Option {
	return func(p *Provider) { p.editModel = model }
}

// WithBaseURL overrides the inference base URL. Used in tests.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithUploadURL overrides the storage upload-initiate URL. Used in tests.
func WithUploadURL(url string) Option {
	return func(p *Provider) { p.uploadURL = url }
}

// WithHTTPClient overrides the HTTP client (e.g., to adjust timeouts).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements imagegen.Provider backed by fal.ai.
type Provider struct {
	apiKey     string
	baseURL    string
	uploadURL  string
	tryOnModel string
	editModel  string
	httpClient *http.Client
}

// New creates a new fal Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("fal: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		uploadURL:  defaultUploadURL,
		tryOnModel: defaultTryOnModel,
		editModel:  defaultEditModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ── Inference request/response types ───────────────────────────────────────────

type tryOnInput struct {
	ModelImage   string `json:"model_image"`
	GarmentImage string `json:"garment_image"`
}

type editInput struct {
	ImageURL          string  `json:"image_url"`
	Prompt            string  `json:"prompt"`
	Strength          float64 `json:"strength"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	ImageSize         string  `json:"image_size"`
}

type inferenceResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
	Image *struct {
		URL string `json:"url"`
	} `json:"image"`
}

// firstImageURL returns the URL of the first image in the response, covering
// both the list-valued and single-valued response shapes fal models use.
func (r inferenceResponse) firstImageURL() string {
	if len(r.Images) > 0 {
		return r.Images[0].URL
	}
	if r.Image != nil {
		return r.Image.URL
	}
	return ""
}

// TryOn implements imagegen.Provider.
func (p *Provider) TryOn(ctx context.Context, req imagegen.TryOnRequest) (string, error) {
	if req.ModelImageURL == "" || req.GarmentImageURL == "" {
		return "", errors.New("fal: try-on requires both model and garment image URLs")
	}
	return p.infer(ctx, p.tryOnModel, tryOnInput{
		ModelImage:   req.ModelImageURL,
		GarmentImage: req.GarmentImageURL,
	})
}

// Edit implements imagegen.Provider.
func (p *Provider) Edit(ctx context.Context, req imagegen.EditRequest) (string, error) {
	if req.ImageURL == "" {
		return "", errors.New("fal: edit requires an image URL")
	}
	if req.Prompt == "" {
		return "", errors.New("fal: edit requires a prompt")
	}
	return p.infer(ctx, p.editModel, editInput{
		ImageURL:          req.ImageURL,
		Prompt:            req.Prompt,
		Strength:          editStrength,
		NumInferenceSteps: editSteps,
		GuidanceScale:     editGuidanceScale,
		ImageSize:         editImageSize,
	})
}

// infer runs a synchronous inference call against the given model.
func (p *Provider) infer(ctx context.Context, model string, input any) (string, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("fal: marshal input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/"+model, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("fal: build request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fal: inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("fal: inference %s: status %d: %s", model, resp.StatusCode, msg)
	}

	var out inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("fal: decode inference response: %w", err)
	}
	url := out.firstImageURL()
	if url == "" {
		return "", fmt.Errorf("fal: inference %s: no image in response", model)
	}
	return url, nil
}

// ── Upload ─────────────────────────────────────────────────────────────────────

type initiateUploadRequest struct {
	ContentType string `json:"content_type"`
	FileName    string `json:"file_name"`
}

type initiateUploadResponse struct {
	UploadURL string `json:"upload_url"`
	FileURL   string `json:"file_url"`
}

// UploadBytes implements imagegen.Provider using the two-step fal storage
// flow: initiate an upload to obtain a presigned URL, then PUT the bytes.
func (p *Provider) UploadBytes(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("fal: upload data must not be empty")
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	initBody, _ := json.Marshal(initiateUploadRequest{
		ContentType: contentType,
		FileName:    fmt.Sprintf("capture-%d", time.Now().UnixNano()),
	})
	initReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.uploadURL, bytes.NewReader(initBody))
	if err != nil {
		return "", fmt.Errorf("fal: build initiate request: %w", err)
	}
	initReq.Header.Set("Authorization", "Key "+p.apiKey)
	initReq.Header.Set("Content-Type", "application/json")

	initResp, err := p.httpClient.Do(initReq)
	if err != nil {
		return "", fmt.Errorf("fal: initiate upload: %w", err)
	}
	defer initResp.Body.Close()

	if initResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fal: initiate upload: unexpected status %d", initResp.StatusCode)
	}

	var init initiateUploadResponse
	if err := json.NewDecoder(initResp.Body).Decode(&init); err != nil {
		return "", fmt.Errorf("fal: decode initiate response: %w", err)
	}
	if init.UploadURL == "" || init.FileURL == "" {
		return "", errors.New("fal: initiate upload: missing URLs in response")
	}

	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, init.UploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("fal: build upload request: %w", err)
	}
	putReq.Header.Set("Content-Type", contentType)

	putResp, err := p.httpClient.Do(putReq)
	if err != nil {
		return "", fmt.Errorf("fal: upload: %w", err)
	}
	defer putResp.Body.Close()

	if putResp.StatusCode != http.StatusOK && putResp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("fal: upload: unexpected status %d", putResp.StatusCode)
	}
	return init.FileURL, nil
}
