package pixel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vipguy/Bing4/internal/model"
)

const (
	// DefaultBaseURL is where the backend listens in local development
	DefaultBaseURL = "http://localhost:8001"

	// DefaultTimeout bounds a single request
	DefaultTimeout = 30 * time.Second
)

var tracer = otel.Tracer("pixel-client")

// Client is the Pixel image generator API client
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient creates a new API client for baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do executes a request and decodes a JSON success body into result.
// Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, result interface{}) error {
	ctx, span := tracer.Start(ctx, "pixel "+method+" "+path)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("pixel.path", path),
	)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("read response: %w", err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp.StatusCode, respBody)
		span.SetStatus(codes.Error, apiErr.Error())
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			span.RecordError(err)
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, "", result)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), "application/json", result)
}

// Info returns the backend banner message
func (c *Client) Info(ctx context.Context) (string, error) {
	var resp infoResponse
	if err := c.getJSON(ctx, "/api/", &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Styles lists the style labels the backend accepts
func (c *Client) Styles(ctx context.Context) ([]string, error) {
	var resp stylesResponse
	if err := c.getJSON(ctx, "/api/styles", &resp); err != nil {
		return nil, err
	}
	return resp.Styles, nil
}

// Sessions lists recent sessions, newest first
func (c *Client) Sessions(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	if err := c.getJSON(ctx, "/api/sessions", &sessions); err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	return sessions, nil
}

// TestCookie asks the backend whether the auth token is accepted upstream
func (c *Client) TestCookie(ctx context.Context, cookie string) (bool, error) {
	var resp cookieResponse
	if err := c.postJSON(ctx, "/api/test-cookie", cookieRequest{Cookie: cookie}, &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// Generate starts a single-prompt generation session
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.postJSON(ctx, "/api/generate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateBatch starts one session per prompt
func (c *Client) GenerateBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	var resp BatchResponse
	if err := c.postJSON(ctx, "/api/generate-batch", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Session fetches the full current record of one session
func (c *Client) Session(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session
	if err := c.getJSON(ctx, "/api/session/"+url.PathEscape(id), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UploadPrompts sends a .txt or .csv prompt file for server-side parsing
func (c *Client) UploadPrompts(ctx context.Context, filename string, r io.Reader) ([]string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("copy prompt file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	var resp promptsResponse
	if err := c.do(ctx, http.MethodPost, "/api/upload-prompts", &buf, w.FormDataContentType(), &resp); err != nil {
		return nil, err
	}
	if resp.Prompts == nil {
		resp.Prompts = []string{}
	}
	return resp.Prompts, nil
}

// Image downloads the binary payload of a generated image
func (c *Client) Image(ctx context.Context, id string) ([]byte, string, error) {
	ctx, span := tracer.Start(ctx, "pixel GET /api/image")
	defer span.End()
	span.SetAttributes(attribute.String("pixel.image_id", id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/image/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, "", fmt.Errorf("GET /api/image: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := newAPIError(resp.StatusCode, data)
		span.SetStatus(codes.Error, apiErr.Error())
		return nil, "", apiErr
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	span.SetAttributes(attribute.Int("pixel.image_bytes", len(data)))
	return data, contentType, nil
}
