package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const DefaultBaseURL = "https://slack.com/api"

// Client is a minimal Web API client covering the lookups the ingester needs.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    DefaultBaseURL,
		token:      token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RealName string `json:"real_name"`
}

type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type apiResponse struct {
	OK      bool     `json:"ok"`
	Error   string   `json:"error,omitempty"`
	User    *User    `json:"user,omitempty"`
	Channel *Channel `json:"channel,omitempty"`
}

// UserInfo fetches a user's profile (users.info).
func (c *Client) UserInfo(ctx context.Context, userID string) (*User, error) {
	resp, err := c.call(ctx, "users.info", url.Values{"user": {userID}})
	if err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, fmt.Errorf("users.info: empty user in response")
	}
	return resp.User, nil
}

// ConversationInfo fetches channel metadata (conversations.info).
func (c *Client) ConversationInfo(ctx context.Context, channelID string) (*Channel, error) {
	resp, err := c.call(ctx, "conversations.info", url.Values{"channel": {channelID}})
	if err != nil {
		return nil, err
	}
	if resp.Channel == nil {
		return nil, fmt.Errorf("conversations.info: empty channel in response")
	}
	return resp.Channel, nil
}

func (c *Client) call(ctx context.Context, method string, params url.Values) (*apiResponse, error) {
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, method, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d", method, httpResp.StatusCode)
	}

	var resp apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", method, err)
	}

	if !resp.OK {
		return nil, fmt.Errorf("%s: slack error: %s", method, resp.Error)
	}

	return &resp, nil
}
