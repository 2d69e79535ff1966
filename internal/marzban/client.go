package marzban

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Client talks to the Marzban panel. The panel is fallible and not
// transactional with our database; callers own the compensation logic.
type Client struct {
	BaseURL    string
	Username   string
	Password   string
	HTTPClient *http.Client

	mu    sync.Mutex
	token string
}

func NewClient(baseURL, username, password string) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Username: username,
		Password: password,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) login(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("username", c.Username)
	form.Set("password", c.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/api/admin/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("panel auth error: %s (status: %d)", string(body), resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("failed to unmarshal token response: %w", err)
	}
	return tok.AccessToken, nil
}

func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}
	token, err := c.login(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	return token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	respBody, status, err := c.attempt(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	// Panel tokens expire; retry once with a fresh one.
	if status == http.StatusUnauthorized {
		c.invalidateToken()
		respBody, status, err = c.attempt(ctx, method, endpoint, body)
		if err != nil {
			return nil, err
		}
	}
	if status >= 400 {
		return nil, fmt.Errorf("panel api error: %s (status: %d)", string(respBody), status)
	}
	return respBody, nil
}

func (c *Client) attempt(ctx context.Context, method, endpoint string, body any) ([]byte, int, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	token, err := c.bearer(ctx)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

func (c *Client) CreateUser(ctx context.Context, reqBody CreateUserRequest) (*UserResponse, error) {
	if reqBody.Proxies == nil {
		reqBody.Proxies = map[string]any{"vless": map[string]any{}}
	}
	if reqBody.Status == "" {
		reqBody.Status = StatusActive
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/user", reqBody)
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := json.Unmarshal(resp, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &user, nil
}

func (c *Client) GetUser(ctx context.Context, username string) (*UserResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/user/"+username, nil)
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := json.Unmarshal(resp, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &user, nil
}

func (c *Client) DisableUser(ctx context.Context, username string) error {
	_, err := c.doRequest(ctx, http.MethodPut, "/api/user/"+username, modifyUserRequest{Status: StatusDisabled})
	return err
}

func (c *Client) DeleteUser(ctx context.Context, username string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/api/user/"+username, nil)
	return err
}
