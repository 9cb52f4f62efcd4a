// Package api is the client of the remote statistics and settings API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jakopako/mailwalk/internal/config"
	"golang.org/x/time/rate"
)

// anonymousEmail is reported when the account email is unknown.
const anonymousEmail = "extension_user"

// LoginResponse is the answer to a login request.
type LoginResponse struct {
	Status      bool   `json:"status"`
	AccessToken string `json:"access_token,omitempty"`
	Message     string `json:"message,omitempty"`
}

// SendersResponse is the answer to a senders request.
type SendersResponse struct {
	Status  bool     `json:"status"`
	Senders []string `json:"senders,omitempty"`
	VPN     bool     `json:"vpn,omitempty"`
	Message string   `json:"message,omitempty"`
}

type settingsResponse struct {
	Settings json.RawMessage `json:"settings"`
}

type statusResponse struct {
	Status bool `json:"status"`
}

// Client talks to the API. Transport and decoding failures are logged and
// turned into unsuccessful responses; only a cancelled context is
// returned as an error.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient returns a client for the API described by c.
func NewClient(c config.APIConfig) *Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := c.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		baseURL: strings.TrimSuffix(c.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  slog.With(slog.String("component", "api")),
	}
}

func (c *Client) post(ctx context.Context, path string, form url.Values, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("unexpected response from %s (status %d): %w", path, resp.StatusCode, err)
	}
	return nil
}

// contextErr returns err if it stems from ctx having ended.
func contextErr(ctx context.Context, err error) error {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return ctx.Err()
	}
	return nil
}

// Login authenticates the user.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var r LoginResponse
	err := c.post(ctx, "/api/login", url.Values{"username": {username}, "password": {password}}, &r)
	if err != nil {
		if cerr := contextErr(ctx, err); cerr != nil {
			return nil, cerr
		}
		c.logger.Error(fmt.Sprintf("authentication API call failed: %v", err))
		return &LoginResponse{Status: false, Message: "Could not connect to the server."}, nil
	}
	return &r, nil
}

// Senders fetches the senders configured for the account.
func (c *Client) Senders(ctx context.Context, token string) (*SendersResponse, error) {
	var r SendersResponse
	err := c.post(ctx, "/api/senders", url.Values{"access_token": {token}}, &r)
	if err != nil {
		if cerr := contextErr(ctx, err); cerr != nil {
			return nil, cerr
		}
		c.logger.Error(fmt.Sprintf("senders API call failed: %v", err))
		return &SendersResponse{Status: false, Message: "Could not fetch senders."}, nil
	}
	return &r, nil
}

// Settings fetches the settings document. It returns nil if the call
// failed or the response carries no settings.
func (c *Client) Settings(ctx context.Context, token string) (*Settings, error) {
	var r settingsResponse
	err := c.post(ctx, "/api/settings", url.Values{"access_token": {token}}, &r)
	if err != nil {
		if cerr := contextErr(ctx, err); cerr != nil {
			return nil, cerr
		}
		c.logger.Error(fmt.Sprintf("settings API call failed: %v", err))
		return nil, nil
	}
	if len(r.Settings) == 0 || string(r.Settings) == "null" {
		return nil, nil
	}
	s, err := ParseSettings(r.Settings)
	if err != nil {
		c.logger.Error(fmt.Sprintf("settings API call failed: %v", err))
		return nil, nil
	}
	return s, nil
}

// LogStat reports a processed email of sender for the account email. It
// returns whether the API accepted the report.
func (c *Client) LogStat(ctx context.Context, token, sender, email string) (bool, error) {
	if email == "" {
		email = anonymousEmail
	}
	var r statusResponse
	err := c.post(ctx, "/api/logger", url.Values{"access_token": {token}, "sender": {sender}, "email": {email}}, &r)
	if err != nil {
		if cerr := contextErr(ctx, err); cerr != nil {
			return false, cerr
		}
		c.logger.Error(fmt.Sprintf("logger API call failed: %v", err))
		return false, nil
	}
	return r.Status, nil
}
