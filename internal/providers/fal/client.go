package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("fal: api key is required")

// Options configures the fal.ai client.
type Options struct {
	APIKey       string
	QueueBaseURL string
	RestBaseURL  string
	HTTPClient   *http.Client
	Logger       *infra.Logger
	PollInterval time.Duration
}

// Client performs HTTP calls against the fal.ai queue and storage APIs. A
// single instance is constructed at process start with injected credentials
// and shared by all requests.
type Client struct {
	apiKey       string
	queueBaseURL string
	restBaseURL  string
	httpClient   *http.Client
	logger       *infra.Logger
	pollInterval time.Duration
}

// GenerateInput is the payload handed to a queued fal application.
type GenerateInput struct {
	Prompt       string   `json:"prompt"`
	ImageURLs    []string `json:"image_urls"`
	NumImages    int      `json:"num_images"`
	OutputFormat string   `json:"output_format"`
}

// GenerateResult is the normalized response of a completed generation. Both
// historical response shapes are folded into it: images at the top level and
// images nested under a data envelope.
type GenerateResult struct {
	Images      []GeneratedImage `json:"images"`
	Description string           `json:"description"`
	Data        *struct {
		Images      []GeneratedImage `json:"images"`
		Description string           `json:"description"`
	} `json:"data"`
	RequestID string `json:"request_id"`
}

// GeneratedImage is one output asset of a generation.
type GeneratedImage struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// FirstImageURL returns the first generated image URL regardless of which
// response shape the capability produced, or "" when there is none.
func (r *GenerateResult) FirstImageURL() string {
	if r == nil {
		return ""
	}
	if len(r.Images) > 0 && r.Images[0].URL != "" {
		return r.Images[0].URL
	}
	if r.Data != nil && len(r.Data.Images) > 0 {
		return r.Data.Images[0].URL
	}
	return ""
}

// FirstDescription returns the descriptive text of the result, preferring the
// top-level field over the data envelope. Empty when neither is present.
func (r *GenerateResult) FirstDescription() string {
	if r == nil {
		return ""
	}
	if r.Description != "" {
		return r.Description
	}
	if r.Data != nil {
		return r.Data.Description
	}
	return ""
}

type queueSubmitResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type queueStatusResponse struct {
	Status      string `json:"status"`
	ResponseURL string `json:"response_url"`
}

type storageInitiateResponse struct {
	FileURL   string `json:"file_url"`
	UploadURL string `json:"upload_url"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// No overall timeout here: generation calls are bounded by the
		// caller's context, and storage PUTs of multi-megabyte images can
		// legitimately take a while.
		httpClient = &http.Client{}
	}
	queueBase := strings.TrimRight(opts.QueueBaseURL, "/")
	if queueBase == "" {
		queueBase = "https://queue.fal.run"
	}
	restBase := strings.TrimRight(opts.RestBaseURL, "/")
	if restBase == "" {
		restBase = "https://rest.alpha.fal.ai"
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		queueBaseURL: queueBase,
		restBaseURL:  restBase,
		httpClient:   httpClient,
		logger:       logger,
		pollInterval: pollInterval,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Upload pushes raw bytes into fal storage and returns the durable,
// publicly fetchable URL. The upload is a two-step flow: initiate to obtain a
// signed target, then PUT the payload.
func (c *Client) Upload(ctx context.Context, data []byte, mimeType, filename string) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	if len(data) == 0 {
		return "", errors.New("fal: empty upload payload")
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if filename == "" {
		filename = "upload.bin"
	}

	initBody, err := json.Marshal(map[string]string{
		"file_name":    filename,
		"content_type": mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("fal: encode initiate request: %w", err)
	}
	endpoint := c.restBaseURL + "/storage/upload/initiate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(initBody))
	if err != nil {
		return "", fmt.Errorf("fal: build initiate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.apiKey)

	var initiated storageInitiateResponse
	if err := c.doJSON(req, &initiated); err != nil {
		return "", err
	}
	if initiated.UploadURL == "" || initiated.FileURL == "" {
		return "", errors.New("fal: initiate returned no upload target")
	}

	put, err := http.NewRequestWithContext(ctx, http.MethodPut, initiated.UploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("fal: build upload request: %w", err)
	}
	put.Header.Set("Content-Type", mimeType)
	put.ContentLength = int64(len(data))

	resp, err := c.httpClient.Do(put)
	if err != nil {
		return "", fmt.Errorf("fal: upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", newDownstreamError(resp)
	}
	io.Copy(io.Discard, resp.Body)

	c.logger.Debug().
		Str("file", filename).
		Int("bytes", len(data)).
		Msg("uploaded file to fal storage")
	return initiated.FileURL, nil
}

// Subscribe submits input to the given fal application and blocks until the
// generation completes, polling the queue status. The call is bounded only by
// the supplied context.
func (c *Client) Subscribe(ctx context.Context, app string, input GenerateInput) (*GenerateResult, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	app = strings.Trim(strings.TrimSpace(app), "/")
	if app == "" {
		return nil, errors.New("fal: application id is required")
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("fal: encode input: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.queueBaseURL+"/"+app, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("fal: build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.apiKey)

	var submitted queueSubmitResponse
	if err := c.doJSON(req, &submitted); err != nil {
		return nil, err
	}
	if submitted.StatusURL == "" || submitted.ResponseURL == "" {
		return nil, errors.New("fal: queue returned no status url")
	}

	c.logger.Debug().
		Str("app", app).
		Str("request_id", submitted.RequestID).
		Msg("generation queued")

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		status, err := c.fetchStatus(ctx, submitted.StatusURL)
		if err != nil {
			return nil, err
		}
		if status == "COMPLETED" {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("fal: generation wait: %w", ctx.Err())
		case <-ticker.C:
		}
	}

	resultReq, err := http.NewRequestWithContext(ctx, http.MethodGet, submitted.ResponseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fal: build result request: %w", err)
	}
	resultReq.Header.Set("Authorization", "Key "+c.apiKey)

	var result GenerateResult
	if err := c.doJSON(resultReq, &result); err != nil {
		return nil, err
	}
	if result.RequestID == "" {
		result.RequestID = submitted.RequestID
	}
	return &result, nil
}

func (c *Client) fetchStatus(ctx context.Context, statusURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return "", fmt.Errorf("fal: build status request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)

	var status queueStatusResponse
	if err := c.doJSON(req, &status); err != nil {
		return "", err
	}
	if status.Status == "" {
		return "", errors.New("fal: empty queue status")
	}
	return status.Status, nil
}

// doJSON executes the request and decodes a 2xx JSON body into out. Non-2xx
// responses become a *DownstreamError carrying the upstream status and any
// structured detail payload.
func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fal: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("fal: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return newDownstreamErrorFromBody(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("fal: decode response: %w", err)
	}
	return nil
}
