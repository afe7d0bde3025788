package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brightpane/assistant-client/internal/domain"
)

// TokenSource supplies the current bearer credential, or "" when the
// session is unauthenticated
type TokenSource func() string

// Client talks to the knowledge-assistant backend over HTTP. It
// attaches the bearer credential to every request except registration
// and login.
type Client struct {
	baseURL string
	client  *http.Client
	token   TokenSource
}

// New creates a backend client for the given origin
func New(baseURL string, timeout time.Duration, token TokenSource) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		token:   token,
	}
}

// APIError is a non-2xx backend response
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("backend returned status %d", e.Status)
}

// Displayable extracts a user-facing message from a failed auth flow:
// the backend's error detail when it supplied one, otherwise fallback.
func Displayable(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}

// Register creates a new account. The response body is ignored.
func (c *Client) Register(ctx context.Context, creds domain.Credentials) error {
	return c.do(ctx, http.MethodPost, "/auth/register", creds, nil, false)
}

// Login exchanges credentials for a bearer token
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", creds, &out, false); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("login response missing access_token")
	}
	return out.AccessToken, nil
}

// Me resolves the current credential into an identity
func (c *Client) Me(ctx context.Context) (*domain.Identity, error) {
	var out domain.Identity
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ask submits a question to the inference endpoint
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	in := map[string]string{"question": question}
	var out struct {
		Answer string `json:"answer"`
	}
	if err := c.do(ctx, http.MethodPost, "/ask", in, &out, true); err != nil {
		return "", err
	}
	return out.Answer, nil
}

// Upload sends a document to the ingestion endpoint as a multipart
// "file" field
func (c *Client) Upload(ctx context.Context, filename string, file io.Reader) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to buffer file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.decorate(req, true)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, authed bool) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.decorate(req, authed)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) decorate(req *http.Request, authed bool) {
	req.Header.Set("X-Request-ID", uuid.New().String())
	if !authed || c.token == nil {
		return
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// decodeError reads the backend's {"detail": "..."} error body. The
// error schema is unconfirmed beyond the detail field, so anything else
// degrades to a bare status error.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload); err == nil {
		apiErr.Detail = payload.Detail
	}
	return apiErr
}
