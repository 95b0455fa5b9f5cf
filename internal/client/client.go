package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/flowpulse/backend/internal/channel"
)

const userAgent = "flowpulse-cli/1.0"

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("service returned %d: %s", e.Code, e.Message)
}

// Options tunes the client. Zero values take defaults.
type Options struct {
	Timeout time.Duration
	// Health probes are retried this many times; calls never are
	HealthRetries int
	RetryWaitMin  time.Duration
	RetryWaitMax  time.Duration
}

// Client talks to a running lifecycle service over REST.
type Client struct {
	baseURL string
	rest    *resty.Client
	probe   *retryablehttp.Client
}

type invokeResponse struct {
	Result interface{} `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates a client for baseURL, e.g. "http://localhost:8000".
func New(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.HealthRetries < 0 {
		opts.HealthRetries = 0
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = 250 * time.Millisecond
	}
	if opts.RetryWaitMax <= 0 {
		opts.RetryWaitMax = 5 * time.Second
	}
	baseURL = strings.TrimRight(baseURL, "/")

	probe := retryablehttp.NewClient()
	probe.RetryMax = opts.HealthRetries
	probe.RetryWaitMin = opts.RetryWaitMin
	probe.RetryWaitMax = opts.RetryWaitMax
	probe.HTTPClient.Timeout = opts.Timeout
	probe.Logger = nil
	probe.ErrorHandler = retryablehttp.PassthroughErrorHandler

	// Grant requests must not be replayed, so resty keeps its retry
	// count at zero and shares only the transport.
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(opts.Timeout).
		SetTransport(probe.HTTPClient.Transport).
		SetHeader("User-Agent", userAgent).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	return &Client{baseURL: baseURL, rest: rest, probe: probe}
}

// Call invokes method on channelName and returns the decoded result.
// Unknown methods surface as channel.ErrNotImplemented and unknown
// channels as channel.ErrUnknownChannel.
func (c *Client) Call(ctx context.Context, channelName, method string, args map[string]interface{}) (interface{}, error) {
	req := c.rest.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"channel": channelName, "method": method}).
		SetResult(&invokeResponse{}).
		SetError(&errorResponse{})
	if len(args) > 0 {
		req.SetBody(args)
	}

	resp, err := req.Post("/channels/{channel}/{method}")
	if err != nil {
		return nil, fmt.Errorf("call %s.%s: %w", channelName, method, err)
	}
	if resp.IsError() {
		return nil, callError(resp, channelName, method)
	}
	return resp.Result().(*invokeResponse).Result, nil
}

func callError(resp *resty.Response, channelName, method string) error {
	msg := resp.Status()
	if body, ok := resp.Error().(*errorResponse); ok && body.Error != "" {
		msg = body.Error
	}
	switch resp.StatusCode() {
	case http.StatusNotImplemented:
		return fmt.Errorf("%s.%s: %w", channelName, method, channel.ErrNotImplemented)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", channel.ErrUnknownChannel, channelName)
	}
	return &StatusError{Code: resp.StatusCode(), Message: msg}
}

// Health fetches /health, retrying while the service is unreachable or
// answering 5xx.
func (c *Client) Health(ctx context.Context) (map[string]interface{}, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("build health request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.probe.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	defer resp.Body.Close()

	var body map[string]interface{}
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode health: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := body["error"].(string)
		return body, &StatusError{Code: resp.StatusCode, Message: msg}
	}
	return body, nil
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
