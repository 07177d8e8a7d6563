// Package telegram implements the transport over the Telegram Bot API using the hertz HTTP client.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/mbeoliero/supportdesk/pkg/errcode"
)

// apiResponse is the Bot API envelope
type apiResponse struct {
	Ok          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Client is a Bot API client bound to one support workspace
type Client struct {
	baseURL    string
	token      string
	groupId    int64
	httpClient *client.Client
	timeout    time.Duration
}

// ClientOption is a function to configure the client
type ClientOption func(*Client)

// WithHertzClient sets a custom Hertz client
func WithHertzClient(httpClient *client.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a new Bot API client
func NewClient(baseURL, token string, groupId int64, opts ...ClientOption) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		groupId: groupId,
		timeout: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		httpClient, err := client.NewClient(
			client.WithDialTimeout(10*time.Second),
			client.WithClientReadTimeout(c.timeout),
			client.WithWriteTimeout(c.timeout),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create http client: %w", err)
		}
		c.httpClient = httpClient
	}

	return c, nil
}

// WorkspaceChatId returns the support group chat id
func (c *Client) WorkspaceChatId() int64 {
	return c.groupId
}

// call invokes a Bot API method and decodes its result into result when non-nil
func (c *Client) call(ctx context.Context, method string, body interface{}, result interface{}) error {
	req := &protocol.Request{}
	resp := &protocol.Response{}

	req.SetMethod(consts.MethodPost)
	req.SetRequestURI(fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method))
	req.Header.Set("Content-Type", "application/json")

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return errcode.ErrTransportFailure.Wrap(fmt.Errorf("failed to marshal %s request: %w", method, err))
	}
	req.SetBody(jsonBody)

	if err := c.httpClient.DoTimeout(ctx, req, resp, c.timeout); err != nil {
		return errcode.ErrTransportFailure.Wrap(fmt.Errorf("%s: %w", method, err))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(resp.Body(), &apiResp); err != nil {
		return errcode.ErrTransportFailure.Wrap(fmt.Errorf("%s: failed to decode response (status %d): %w", method, resp.StatusCode(), err))
	}

	if !apiResp.Ok {
		return classify(method, apiResp)
	}

	if result != nil && len(apiResp.Result) > 0 {
		if err := json.Unmarshal(apiResp.Result, result); err != nil {
			return errcode.ErrTransportFailure.Wrap(fmt.Errorf("%s: failed to decode result: %w", method, err))
		}
	}

	return nil
}

// classify maps a Bot API failure to the transport error kinds
func classify(method string, resp apiResponse) error {
	desc := strings.ToLower(resp.Description)
	err := fmt.Errorf("%s: %d %s", method, resp.ErrorCode, resp.Description)
	for _, marker := range topicInvalidMarkers {
		if strings.Contains(desc, marker) {
			return errcode.ErrTopicInvalid.Wrap(err)
		}
	}
	return errcode.ErrTransportFailure.Wrap(err)
}

var topicInvalidMarkers = []string{
	"message thread not found",
	"topic_deleted",
	"topic_closed",
	"topic not found",
}
