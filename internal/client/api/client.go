// Package api is the HTTP client of the accounts service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iudanet/accounts/pkg/api"
)

// Error is a non-2xx answer from the server
type Error struct {
	Category   string
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Client talks to the accounts server
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// keep the bearer token across redirects
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// Register creates an account and triggers the verification email
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	if err := c.doRequest(ctx, http.MethodPost, "/user/signup", "", req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// VerifyEmail completes verification with the token from the email
func (c *Client) VerifyEmail(ctx context.Context, token string) (*api.MessageResponse, error) {
	var resp api.MessageResponse
	path := "/user/verify-email?" + url.Values{"token": {token}}.Encode()
	if err := c.doRequest(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return nil, fmt.Errorf("verify email request failed: %w", err)
	}
	return &resp, nil
}

// ResendVerification asks for a new verification email
func (c *Client) ResendVerification(ctx context.Context, email string) (*api.MessageResponse, error) {
	var resp api.MessageResponse
	req := api.ResendVerificationRequest{Email: email}
	if err := c.doRequest(ctx, http.MethodPost, "/user/verify-email/resend", "", req, &resp); err != nil {
		return nil, fmt.Errorf("resend verification request failed: %w", err)
	}
	return &resp, nil
}

// Login opens a new session
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/user/login", "", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Logout revokes token on the server
func (c *Client) Logout(ctx context.Context, token string) error {
	if err := c.doRequest(ctx, http.MethodPost, "/user/logout", token, nil, nil); err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}

// Home returns the greeting of the authenticated user
func (c *Client) Home(ctx context.Context, token string) (*api.HomeResponse, error) {
	var resp api.HomeResponse
	if err := c.doRequest(ctx, http.MethodGet, "/home/index", token, nil, &resp); err != nil {
		return nil, fmt.Errorf("home request failed: %w", err)
	}
	return &resp, nil
}

// Dump lists every account; admin only
func (c *Client) Dump(ctx context.Context, token string) (*api.DumpResponse, error) {
	var resp api.DumpResponse
	if err := c.doRequest(ctx, http.MethodGet, "/user/dump", token, nil, &resp); err != nil {
		return nil, fmt.Errorf("dump request failed: %w", err)
	}
	return &resp, nil
}

// Health reports server status
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", "", nil, &resp); err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return &resp, nil
}

func (c *Client) doRequest(ctx context.Context, method, path, token string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			apiErr.Category = errResp.Error
			apiErr.Message = errResp.Message
		} else {
			apiErr.Message = string(bytes.TrimSpace(respBody))
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
