package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"garuda-sentry/internal/config"
)

// Client is a thin authenticated passthrough to the ElevenLabs ConvAI API.
// The browser never sees the API key; it gets a short-lived signed URL and
// connects to the provider directly.

const DefaultBaseURL = "https://api.elevenlabs.io"

const signedURLPath = "/v1/convai/conversation/get-signed-url"

var ErrNotConfigured = errors.New("elevenlabs: api key and agent id are required")

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	agentID    string
}

func NewClient(cfg config.ElevenLabsConfig, httpClient *http.Client) (*Client, error) {
	if cfg.APIKey == "" || cfg.AgentID == "" {
		return nil, ErrNotConfigured
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		apiKey:     cfg.APIKey,
		agentID:    cfg.AgentID,
	}, nil
}

// GetSignedURL fetches a signed WebSocket URL for a new conversation session.
func (c *Client) GetSignedURL(ctx context.Context) (string, error) {
	u := c.baseURL + signedURLPath + "?agent_id=" + url.QueryEscape(c.agentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: signed url request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("elevenlabs: signed url request failed: status %d", resp.StatusCode)
	}

	var out struct {
		SignedURL string `json:"signed_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("elevenlabs: decode signed url response: %w", err)
	}
	if out.SignedURL == "" {
		return "", errors.New("elevenlabs: empty signed_url in response")
	}
	return out.SignedURL, nil
}
