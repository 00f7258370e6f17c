package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/josephdodge8141/aspen-backend/errors"
	"github.com/josephdodge8141/aspen-backend/logger"
)

// Request describes one outbound call.
type Request struct {
	Method      string
	URL         string
	Headers     map[string]string
	Query       map[string]string
	Body        any
	ContentType string
	AuthPreset  string
}

// Response is the decoded reply.
type Response struct {
	Status  int
	Headers http.Header
	// Body is the decoded JSON object when the response is a JSON object;
	// other payloads are wrapped under "text".
	Body map[string]any
}

// Client is an outbound HTTP client with auth presets and retry.
type Client struct {
	httpClient *http.Client
	cfg        Config
	log        *logger.Logger
}

// New creates a client from the configuration.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		log:        log.WithComponent("httpclient"),
	}, nil
}

// Do executes the request, retrying transient failures when retry is
// configured.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	attempts := 1
	backoff := time.Duration(0)
	if c.cfg.Retry != nil {
		attempts = c.cfg.Retry.MaxAttempts
		backoff = c.cfg.Retry.Backoff
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.doOnce(ctx, req)
		if err == nil && !retryableStatus(resp.Status) {
			return resp, nil
		}
		if err == nil {
			lastErr = fmt.Errorf("upstream returned status %d", resp.Status)
			// A retryable status on the final attempt is still a response.
			if attempt == attempts {
				return resp, nil
			}
		} else {
			lastErr = err
		}

		if attempt < attempts {
			c.log.Warn("request failed, retrying", map[string]interface{}{
				"url":     req.URL,
				"attempt": attempt,
				"error":   lastErr.Error(),
			})
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * backoff):
			}
		}
	}
	return Response{}, lastErr
}

func (c *Client) doOnce(ctx context.Context, req Request) (Response, error) {
	target, err := url.Parse(req.URL)
	if err != nil {
		return Response{}, apperrors.InvalidInput("url", err.Error())
	}
	if len(req.Query) > 0 {
		q := target.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		target.RawQuery = q.Encode()
	}

	var body io.Reader
	contentType := req.ContentType
	if req.Body != nil {
		switch contentType {
		case "", "application/json":
			raw, err := json.Marshal(req.Body)
			if err != nil {
				return Response{}, apperrors.InvalidInput("body", err.Error())
			}
			body = bytes.NewReader(raw)
			contentType = "application/json"
		case "application/x-www-form-urlencoded":
			form := url.Values{}
			if fields, ok := req.Body.(map[string]any); ok {
				for k, v := range fields {
					form.Set(k, fmt.Sprintf("%v", v))
				}
			}
			body = strings.NewReader(form.Encode())
		default:
			body = strings.NewReader(fmt.Sprintf("%v", req.Body))
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return Response{}, err
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.AuthPreset != "" {
		preset, ok := c.cfg.AuthPresets[req.AuthPreset]
		if !ok {
			return Response{}, apperrors.InvalidInput("auth_preset",
				fmt.Sprintf("unknown preset %q", req.AuthPreset))
		}
		preset.apply(httpReq)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, c.cfg.MaxResponseBytes))
	if err != nil {
		return Response{}, err
	}

	return Response{
		Status:  httpResp.StatusCode,
		Headers: httpResp.Header,
		Body:    decodeBody(raw),
	}, nil
}

// decodeBody parses a JSON object body; arrays land under "items" and
// anything else under "text" so node outputs stay object-shaped.
func decodeBody(raw []byte) map[string]any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return map[string]any{}
	}
	switch trimmed[0] {
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err == nil {
			return obj
		}
	case '[':
		var arr []any
		if err := json.Unmarshal(trimmed, &arr); err == nil {
			return map[string]any{"items": arr}
		}
	}
	return map[string]any{"text": string(raw)}
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
