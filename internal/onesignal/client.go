// Package onesignal talks to the OneSignal REST API. Devices are addressed
// by external id, which for FORESAFE is always the tag id.
package onesignal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultBaseURL is used when no API URL is configured.
const DefaultBaseURL = "https://api.onesignal.com"

// ErrNotConfigured is returned by every call when the app id or key is missing.
var ErrNotConfigured = errors.New("onesignal client not configured")

// APIError is a non-2xx response. Body holds the decoded JSON payload when
// the response had one, otherwise the raw text.
type APIError struct {
	StatusCode int
	Body       any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("onesignal API error: status %d", e.StatusCode)
}

// Notification is the message content for a single push.
type Notification struct {
	Heading string
	Body    string
}

type Client struct {
	appID      string
	restKey    string
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(appID, restKey, baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		appID:      appID,
		restKey:    restKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if both the app id and REST key are set.
func (c *Client) Configured() bool {
	return c.appID != "" && c.restKey != ""
}

type notificationRequest struct {
	AppID                  string            `json:"app_id"`
	IncludeExternalUserIDs []string          `json:"include_external_user_ids"`
	Headings               map[string]string `json:"headings"`
	Contents               map[string]string `json:"contents"`
	Priority               int               `json:"priority"`
	AndroidSound           string            `json:"android_sound"`
	IOSSound               string            `json:"ios_sound"`
}

type notificationResponse struct {
	ID string `json:"id"`
}

// Send pushes n to every device logged in under externalID and returns the
// OneSignal notification id.
func (c *Client) Send(ctx context.Context, externalID string, n Notification) (string, error) {
	payload := notificationRequest{
		AppID:                  c.appID,
		IncludeExternalUserIDs: []string{externalID},
		Headings:               map[string]string{"en": n.Heading},
		Contents:               map[string]string{"en": n.Body},
		Priority:               10,
		AndroidSound:           "os_notification_custom_sound",
		IOSSound:               "notification.wav",
	}

	var resp notificationResponse
	if err := c.do(ctx, http.MethodPost, "/notifications", payload, &resp); err != nil {
		return "", fmt.Errorf("send notification: %w", err)
	}
	return resp.ID, nil
}

type identityRequest struct {
	Identity map[string]string `json:"identity"`
}

// Login aliases the subscription to externalID so that pushes addressed to
// the tag reach this device.
func (c *Client) Login(ctx context.Context, subscriptionID, externalID string) error {
	path := fmt.Sprintf("/apps/%s/subscriptions/%s/user/identity", url.PathEscape(c.appID), url.PathEscape(subscriptionID))
	body := identityRequest{Identity: map[string]string{"external_id": externalID}}
	if err := c.do(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("login subscription: %w", err)
	}
	return nil
}

type subscriptionRequest struct {
	Subscription struct {
		Enabled bool `json:"enabled"`
	} `json:"subscription"`
}

// SetSubscriptionEnabled opts the subscription in or out of pushes.
func (c *Client) SetSubscriptionEnabled(ctx context.Context, subscriptionID string, enabled bool) error {
	path := fmt.Sprintf("/apps/%s/subscriptions/%s", url.PathEscape(c.appID), url.PathEscape(subscriptionID))
	var body subscriptionRequest
	body.Subscription.Enabled = enabled
	if err := c.do(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

// Logout removes the external id alias from the user.
func (c *Client) Logout(ctx context.Context, externalID string) error {
	path := fmt.Sprintf("/apps/%s/users/by/external_id/%s/identity/external_id", url.PathEscape(c.appID), url.PathEscape(externalID))
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("logout external id: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+c.restKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Body: decodeBody(data)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func decodeBody(data []byte) any {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	return v
}

// Details extracts the collaborator payload from err, or nil when err did
// not come from an API response.
func Details(err error) any {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	return nil
}
