// Package exotel talks to the Exotel voice API: placing voicebot calls,
// bridging a customer to an agent and reading call status callbacks.
package exotel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/pkg/circuitbreaker"
	"github.com/troikatech/collections-agent/pkg/client"
	"github.com/troikatech/collections-agent/pkg/logger"
	"github.com/troikatech/collections-agent/pkg/retry"
)

// ErrNotConfigured means account credentials are missing
var ErrNotConfigured = errors.New("exotel client not configured")

type Client struct {
	baseURL    string
	accountSID string
	apiKey     string
	apiToken   string
	exophone   string
	appID      string
	httpClient *http.Client
	guard      *client.Guard
	logger     *zap.Logger
}

// Option adjusts a Client
type Option func(*Client)

// WithBaseURL points the client at another host, e.g. a test server
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default 30s client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithGuard replaces the default breaker and retry policy
func WithGuard(g *client.Guard) Option {
	return func(c *Client) { c.guard = g }
}

// normalizeSubdomain removes .exotel.com if already present in subdomain
func normalizeSubdomain(subdomain string) string {
	if strings.Contains(subdomain, ".exotel.com") {
		return strings.ReplaceAll(subdomain, ".exotel.com", "")
	}
	return subdomain
}

func NewClient(subdomain, accountSID, apiKey, apiToken, exophone, appID string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    fmt.Sprintf("https://%s.exotel.com", normalizeSubdomain(subdomain)),
		accountSID: accountSID,
		apiKey:     apiKey,
		apiToken:   apiToken,
		exophone:   exophone,
		appID:      appID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.guard == nil {
		rc := retry.DefaultConfig()
		rc.MaxAttempts = 2
		c.guard = client.NewGuard("exotel", rc, circuitbreaker.DefaultConfig())
	}
	return c
}

// Configured reports whether calls can be placed
func (c *Client) Configured() bool {
	return c.accountSID != "" && c.apiKey != "" && c.apiToken != ""
}

// CallResponse is the Call object returned by the v1 API
type CallResponse struct {
	Call struct {
		Sid       string `json:"Sid"`
		Status    string `json:"Status"`
		Direction string `json:"Direction"`
		From      string `json:"From"`
		To        string `json:"To"`
		StartTime string `json:"StartTime"`
		EndTime   string `json:"EndTime"`
		Duration  string `json:"Duration"`
	} `json:"Call"`
}

// DialRequest places an outbound call into the voicebot applet
type DialRequest struct {
	Customer    string
	CustomField map[string]string
	CallbackURL string
}

// DialVoicebot calls the customer from the exophone and hands the answered
// leg to the voicebot applet. CustomField reaches the media stream as
// custom parameters.
func (c *Client) DialVoicebot(ctx context.Context, req DialRequest) (*CallResponse, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	data := url.Values{}
	data.Set("From", req.Customer)
	data.Set("CallerId", c.exophone)
	data.Set("CallType", "trans")
	data.Set("Url", fmt.Sprintf("http://my.exotel.com/%s/exoml/start_voice/%s", c.accountSID, c.appID))
	if len(req.CustomField) > 0 {
		b, err := json.Marshal(req.CustomField)
		if err != nil {
			return nil, fmt.Errorf("failed to encode custom field: %w", err)
		}
		data.Set("CustomField", string(b))
	}
	if req.CallbackURL != "" {
		data.Set("StatusCallback", req.CallbackURL)
		data.Add("StatusCallbackEvents[0]", "terminal")
		data.Set("StatusCallbackContentType", "application/x-www-form-urlencoded")
	}

	c.logger.Info("Placing voicebot call",
		logger.MaskPhone("customer", req.Customer),
		zap.String("app_id", c.appID),
	)
	var out CallResponse
	if err := c.post(ctx, "/Calls/connect.json", data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TransferToAgent bridges the customer to the agent line from the exophone
func (c *Client) TransferToAgent(ctx context.Context, customer, agent string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	data := url.Values{}
	data.Set("From", customer)
	data.Set("To", agent)
	data.Set("CallerId", c.exophone)
	data.Set("CallType", "trans")

	c.logger.Info("Transferring call to agent",
		logger.MaskPhone("customer", customer),
		logger.MaskPhone("agent", agent),
	)
	return c.post(ctx, "/Calls/connect.json", data, nil)
}

// GetCallStatus gets the status of a call from Exotel API
func (c *Client) GetCallStatus(ctx context.Context, callSID string) (*CallResponse, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	var out CallResponse
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/Calls/"+url.PathEscape(callSID)+".json"), nil)
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		return c.do(req, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/v1/Accounts/%s%s", c.baseURL, c.accountSID, path)
}

func (c *Client) post(ctx context.Context, path string, data url.Values, out interface{}) error {
	return c.guard.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), strings.NewReader(data.Encode()))
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return c.do(req, out)
	})
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.SetBasicAuth(c.apiKey, c.apiToken)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		apiErr := fmt.Errorf("exotel API error: %s (status %d)", strings.TrimSpace(string(body)), resp.StatusCode)
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Permanent(apiErr)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return retry.Permanent(fmt.Errorf("failed to parse response: %w", err))
	}
	return nil
}
