// Package authclient is the blocking RPC client for the identity service.
// Every call is a synchronous round trip bounded by the caller's context
// and the client's own timeout; a transport-level failure is retried once
// and then surfaces as an error, which callers must treat as a failed
// validation (fail closed).
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"identityhub/pkg/authrpc"
)

const (
	requestTimeout = 5 * time.Second
	maxAttempts    = 2
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(authServiceURL string) *Client {
	return &Client{
		baseURL: authServiceURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *Client) ValidateToken(ctx context.Context, accessToken string) (*authrpc.TokenResponse, error) {
	var out authrpc.TokenResponse
	if err := c.post(ctx, authrpc.PathValidateToken, authrpc.TokenRequest{AccessToken: accessToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RegisterUser(ctx context.Context, username, password string) (*authrpc.UserResponse, error) {
	var out authrpc.UserResponse
	req := authrpc.CreateUserRequest{Username: username, Password: password}
	if err := c.post(ctx, authrpc.PathRegisterUser, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LoginUser(ctx context.Context, username, password string) (*authrpc.LoginUserResponse, error) {
	var out authrpc.LoginUserResponse
	req := authrpc.LoginUserRequest{Username: username, Password: password}
	if err := c.post(ctx, authrpc.PathLoginUser, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*authrpc.RefreshTokenResponse, error) {
	var out authrpc.RefreshTokenResponse
	req := authrpc.RefreshTokenRequest{RefreshToken: refreshToken}
	if err := c.post(ctx, authrpc.PathRefreshAccessToken, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LogoutUser(ctx context.Context, accessToken string) (*authrpc.TokenResponse, error) {
	var out authrpc.TokenResponse
	if err := c.post(ctx, authrpc.PathLogoutUser, authrpc.TokenRequest{AccessToken: accessToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ModifyPassword(ctx context.Context, accessToken, password string) (*authrpc.ModifyPasswordResponse, error) {
	var out authrpc.ModifyPasswordResponse
	req := authrpc.ModifyPasswordRequest{AccessToken: accessToken, Password: password}
	if err := c.post(ctx, authrpc.PathModifyPassword, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// transient transport failure, one more attempt at most
			lastErr = fmt.Errorf("do request: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("rpc %s failed with status: %d", path, resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	return lastErr
}
