// Package httprequest sends templated HTTP requests for the webhook action and
// the http input.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/watcher/pkg/template"
)

const defaultTimeoutSeconds = 30

var (
	// ErrHTTPMethodInvalid is returned when the HTTP method is invalid.
	ErrHTTPMethodInvalid = errors.New("invalid HTTP method")
	// ErrHTTPRequestHostInvalid is returned when the HTTP request host is invalid.
	ErrHTTPRequestHostInvalid = errors.New("invalid HTTP request host")
	// ErrHTTPServerError is returned when the server returns an error status code.
	ErrHTTPServerError = errors.New("server error during HTTP request")
)

// Request is an HTTP request whose path, headers and body are templates
// rendered against the execution model.
type Request struct {
	Method   string
	Protocol string
	Host     string
	Path     string
	Headers  map[string]string
	Body     string
	Timeout  time.Duration
	Retry    RetryConfig

	path    *template.Template
	body    *template.Template
	headers map[string]*template.Template
}

// RetryConfig defines retry behavior for HTTP requests.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

// Response is the decoded result of a request. Body is the decoded JSON
// document or the raw string when the response is not JSON.
type Response struct {
	StatusCode int
	Body       any
	Headers    http.Header
}

// New builds a Request from configuration. "url" may be used instead of
// "protocol", "host" and "path".
func New(config map[string]any) (*Request, error) {
	method, _ := config["method"].(string)
	protocol, _ := config["protocol"].(string)
	host, _ := config["host"].(string)
	path, _ := config["path"].(string)

	if rawURL, ok := config["url"].(string); ok && rawURL != "" {
		scheme, rest, found := strings.Cut(rawURL, "://")
		if !found {
			return nil, fmt.Errorf("url '%s' has no scheme: %w", rawURL, ErrHTTPRequestHostInvalid)
		}

		protocol = scheme

		host, path, _ = strings.Cut(rest, "/")
		path = "/" + path
	}

	if host == "" {
		return nil, fmt.Errorf("missing or invalid 'host' in configuration: %w", ErrHTTPRequestHostInvalid)
	}

	if path == "" {
		path = "/"
	}

	if protocol == "" {
		protocol = "http"
	}

	if method == "" {
		method = http.MethodGet
	}

	headers := make(map[string]string)

	if headersMap, ok := config["headers"].(map[string]any); ok {
		for k, v := range headersMap {
			if strVal, ok := v.(string); ok {
				headers[k] = strVal
			}
		}
	}

	body, err := bodyTemplate(config["body"])
	if err != nil {
		return nil, err
	}

	timeout := defaultTimeoutSeconds * time.Second

	if t, ok := config["timeout"].(string); ok && t != "" {
		timeout, err = time.ParseDuration(t)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout '%s': %w", t, err)
		}
	}

	request := &Request{
		Method:   strings.ToUpper(method),
		Protocol: protocol,
		Host:     host,
		Path:     path,
		Headers:  headers,
		Body:     body,
		Timeout:  timeout,
		Retry:    parseRetryConfig(config["retry"]),
	}

	err = request.compile()
	if err != nil {
		return nil, err
	}

	return request, nil
}

// bodyTemplate accepts a template string or a JSON document, which is sent as is.
func bodyTemplate(v any) (string, error) {
	switch body := v.(type) {
	case nil:
		return "", nil
	case string:
		return body, nil
	default:
		b, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("invalid body: %w", err)
		}

		return string(b), nil
	}
}

func parseRetryConfig(retryConfig any) RetryConfig {
	retry := RetryConfig{Attempts: 1, Delay: 0}

	retryMap, ok := retryConfig.(map[string]any)
	if !ok {
		return retry
	}

	if attempts, ok := retryMap["attempts"].(float64); ok && attempts >= 1 {
		retry.Attempts = int(attempts)
	}

	if delay, ok := retryMap["delay"].(float64); ok {
		retry.Delay = time.Duration(delay) * time.Millisecond
	}

	return retry
}

func (r *Request) compile() error {
	if r.Method == "" {
		return ErrHTTPMethodInvalid
	}

	var err error

	r.path, err = template.Compile("path", r.Path)
	if err != nil {
		return fmt.Errorf("invalid path template: %w", err)
	}

	r.body, err = template.Compile("body", r.Body)
	if err != nil {
		return fmt.Errorf("invalid body template: %w", err)
	}

	r.headers = make(map[string]*template.Template, len(r.Headers))

	for key, value := range r.Headers {
		r.headers[key], err = template.Compile(key, value)
		if err != nil {
			return fmt.Errorf("invalid header '%s' template: %w", key, err)
		}
	}

	return nil
}

// URL renders the request URL against model.
func (r *Request) URL(model map[string]any) (string, error) {
	path, err := r.path.RenderString(model)
	if err != nil {
		return "", fmt.Errorf("failed to render path template: %w", err)
	}

	return fmt.Sprintf("%s://%s%s", r.Protocol, r.Host, path), nil
}

// Do performs the request with retry logic.
func (r *Request) Do(ctx context.Context, model map[string]any, logger *slog.Logger) (*Response, error) {
	var (
		lastErr error
		resp    *http.Response
	)

	client := &http.Client{Timeout: r.Timeout}

	for attempt := 1; attempt <= r.Retry.Attempts; attempt++ {
		if attempt > 1 {
			logger.InfoContext(ctx, "Retrying HTTP request", "attempt", attempt, "attempts", r.Retry.Attempts)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.Retry.Delay):
			}
		}

		req, err := r.build(ctx, model)
		if err != nil {
			return nil, err
		}

		resp, err = client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request failed: %w", err)
			resp = nil

			continue
		}

		if resp.StatusCode >= 500 && attempt < r.Retry.Attempts {
			lastErr = fmt.Errorf("server error (status %d), retrying: %w", resp.StatusCode, ErrHTTPServerError)

			_ = resp.Body.Close()
			resp = nil

			continue
		}

		break
	}

	if resp == nil {
		return nil, fmt.Errorf("all retry attempts failed, last error: %w", lastErr)
	}

	return processResponse(ctx, resp, logger)
}

func (r *Request) build(ctx context.Context, model map[string]any) (*http.Request, error) {
	url, err := r.URL(model)
	if err != nil {
		return nil, err
	}

	body, err := r.body.RenderString(model)
	if err != nil {
		return nil, fmt.Errorf("failed to render body template: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, url, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	for key, tmpl := range r.headers {
		value, err := tmpl.RenderString(model)
		if err != nil {
			return nil, fmt.Errorf("failed to render header '%s' template: %w", key, err)
		}

		req.Header.Set(key, value)
	}

	return req, nil
}

// Describe renders the request without sending it.
func (r *Request) Describe(model map[string]any) (map[string]any, error) {
	url, err := r.URL(model)
	if err != nil {
		return nil, err
	}

	body, err := r.body.RenderString(model)
	if err != nil {
		return nil, fmt.Errorf("failed to render body template: %w", err)
	}

	headers := make(map[string]any, len(r.headers))

	for key, tmpl := range r.headers {
		headers[key], err = tmpl.RenderString(model)
		if err != nil {
			return nil, fmt.Errorf("failed to render header '%s' template: %w", key, err)
		}
	}

	return map[string]any{
		"method":  r.Method,
		"url":     url,
		"headers": headers,
		"body":    body,
	}, nil
}

func processResponse(ctx context.Context, resp *http.Response, logger *slog.Logger) (*Response, error) {
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var body any

	if len(bodyBytes) > 0 {
		err = json.Unmarshal(bodyBytes, &body)
		if err != nil {
			body = string(bodyBytes)

			logger.DebugContext(ctx, "Response is not JSON, returning as string", "error", err)
		}
	}

	logger.DebugContext(ctx, "HTTP request completed", "status_code", resp.StatusCode, "body_length", len(bodyBytes))

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers:    resp.Header,
	}, nil
}
