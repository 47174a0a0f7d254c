package apiclient

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

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/toxitrace/toxitrace/internal/models"
)

// DefaultBaseURL is the hosted ToxiTrace backend
const DefaultBaseURL = "https://toxitrace-backendx.onrender.com"

// TokenSource supplies the bearer token for authenticated calls
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// Client represents an HTTP client for the ToxiTrace API
type Client struct {
	baseURL        string
	httpClient     *http.Client
	logger         zerolog.Logger
	tokens         TokenSource
	onUnauthorized func()
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithLogger sets the request logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTokenSource sets where authenticated calls read the bearer token
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) { c.tokens = tokens }
}

// New creates a new API client
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: zerolog.Nop(),
		tokens: TokenFunc(func() string { return "" }),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetTokenSource replaces the token source. Used to break the construction
// cycle between the client and the session store.
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.tokens = tokens
}

// OnUnauthorized registers the hook run when an authenticated call gets 401
func (c *Client) OnUnauthorized(fn func()) {
	c.onUnauthorized = fn
}

// Login authenticates the user and returns the access token and account
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	reqBody := map[string]string{
		"email":    email,
		"password": password,
	}

	var resp models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", reqBody, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account and returns the access token and account
func (c *Client) Register(ctx context.Context, form models.RegisterForm) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", form.RequestBody(), false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the account that owns the current token
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, true, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// do performs one JSON request. authenticated calls carry the bearer token
// and trigger the unauthorized hook on 401. out may be nil.
func (c *Client) do(ctx context.Context, method, path string, body any, authenticated bool, out any) error {
	var (
		reader      io.Reader
		contentType string
	)
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
		contentType = "application/json"
	}
	return c.send(ctx, method, path, reader, contentType, authenticated, out)
}

// send performs one request with a pre-encoded body
func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string, authenticated bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := ulid.Make().String()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authenticated {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.tokens.Token()))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("request_id", requestID).Str("method", method).Str("path", path).Msg("API request failed")
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("API request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp)
		if authenticated && resp.StatusCode == http.StatusUnauthorized {
			if c.onUnauthorized != nil {
				c.onUnauthorized()
			}
			return fmt.Errorf("%w: %s", ErrSessionExpired, apiErr.Error())
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to decode response: empty body")
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
