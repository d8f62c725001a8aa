// Package gemini calls the Gemini generative-language REST API to summarize
// transcripts and split them into speakers.
package gemini

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

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// Retry defaults.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 2 * time.Second
)

// CallOptions bounds the retry loop of a call.
type CallOptions struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Usage is the token accounting returned with a response.
type Usage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// Response is a successful call.
type Response struct {
	Text     string
	Usage    Usage
	Model    string
	Attempts int
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	UsageMetadata Usage `json:"usageMetadata"`
}

type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Client performs generateContent calls and records usage in a Ledger.
type Client struct {
	baseURL string
	http    *http.Client
	ledger  *Ledger
	timer   backoff.Timer // nil uses a real timer
	logger  *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) ClientOption { return func(c *Client) { c.http = h } }

// WithTimer replaces the timer that waits between retries.
func WithTimer(t backoff.Timer) ClientOption { return func(c *Client) { c.timer = t } }

// NewClient returns a Client for baseURL. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, ledger *Ledger, logger *zap.Logger, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
		ledger:  ledger,
		logger:  logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// linearBackOff waits base, 2*base, 3*base, ...
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	return l.base * time.Duration(l.attempt)
}

func (l *linearBackOff) Reset() { l.attempt = 0 }

// Call sends prompt to model. Transient failures are retried up to
// opts.MaxRetries times with a linearly growing delay; any other failure is
// returned at once. Errors are *APIError unless ctx ended first.
func (c *Client) Call(ctx context.Context, apiKey, prompt, model string, opts CallOptions) (*Response, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}

	var resp *Response
	attempts := 0
	op := func() error {
		attempts++
		r, err := c.do(ctx, apiKey, prompt, model)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Transient() {
				return err
			}
			return backoff.Permanent(err)
		}
		resp = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("gemini call failed, retrying",
			zap.String("model", model),
			zap.Int("attempt", attempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{base: opts.BaseDelay}, uint64(opts.MaxRetries)),
		ctx,
	)
	if err := backoff.RetryNotifyWithTimer(op, b, notify, c.timer); err != nil {
		c.logger.Error("gemini call failed", zap.String("model", model), zap.Int("attempts", attempts), zap.Error(err))
		return nil, err
	}

	resp.Attempts = attempts
	if c.ledger != nil {
		c.ledger.Record(model, resp.Usage.TotalTokenCount)
	}
	c.logger.Info("gemini call succeeded",
		zap.String("model", model),
		zap.Int("attempts", attempts),
		zap.Int("total_tokens", resp.Usage.TotalTokenCount),
	)
	return resp, nil
}

func (c *Client) do(ctx context.Context, apiKey, prompt, model string) (*Response, error) {
	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, url.PathEscape(model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Status: StatusNetworkError, Message: err.Error(), Err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &APIError{Code: res.StatusCode, Status: StatusNetworkError, Message: err.Error(), Err: err}
	}

	if res.StatusCode >= 400 {
		apiErr := &APIError{Code: res.StatusCode, Status: http.StatusText(res.StatusCode), Message: string(data)}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil && eb.Error.Message != "" {
			apiErr.Message = eb.Error.Message
			if eb.Error.Status != "" {
				apiErr.Status = eb.Error.Status
			}
		}
		return nil, apiErr
	}

	var gr generateResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return nil, &APIError{Code: res.StatusCode, Status: "INVALID_RESPONSE", Message: err.Error(), Err: err}
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, &APIError{Code: res.StatusCode, Status: "EMPTY_RESPONSE", Message: "response contained no candidates"}
	}
	return &Response{
		Text:  gr.Candidates[0].Content.Parts[0].Text,
		Usage: gr.UsageMetadata,
		Model: model,
	}, nil
}
