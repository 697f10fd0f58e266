package actionkit

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// Config carries the credentials and endpoint identity for one ActionKit
// instance. Username and password are required; one of Hostname or FullURL
// must be set.
type Config struct {
	Username string
	Password string
	Hostname string
	FullURL  string

	SignupPageShortName      string
	UnsubscribePageShortName string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if strings.TrimSpace(c.Password) == "" {
		return fmt.Errorf("password is required")
	}
	if strings.TrimSpace(c.Hostname) == "" && strings.TrimSpace(c.FullURL) == "" {
		return fmt.Errorf("one of hostname or full_url is required")
	}
	return nil
}

// BaseURL derives the REST origin. FullURL wins when set; trailing slashes
// are stripped to avoid double slashes when concatenating.
func (c Config) BaseURL() string {
	if full := strings.TrimSpace(c.FullURL); full != "" {
		return strings.TrimRight(full, "/") + "/rest/v1/"
	}
	return fmt.Sprintf("https://%s.actionkit.com/rest/v1/", strings.TrimSpace(c.Hostname))
}

// Client issues authenticated calls against the ActionKit REST API and
// classifies responses into the error taxonomy. It keeps a per-(method,
// path) memo of authentication failures so a channel already known to be
// unauthorized is never called again within the same run.
type Client struct {
	http       *http.Client
	baseURL    string
	authHeader string
	cfg        Config
	logger     *slog.Logger

	mu         sync.Mutex
	authErrors map[string]string
}

func NewClient(httpClient *http.Client, cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	creds := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
	return &Client{
		http:       httpClient,
		baseURL:    cfg.BaseURL(),
		authHeader: "Basic " + creds,
		cfg:        cfg,
		logger:     logger,
		authErrors: map[string]string{},
	}, nil
}

func (c *Client) Config() Config {
	return c.cfg
}

// Response is a classified 2xx result. Body holds the raw payload; Decode
// parses it as JSON.
type Response struct {
	Status int
	Body   []byte
}

func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Do issues one API call. endpoint is relative to the base URL and may
// already carry a query string; params are appended on top of it.
func (c *Client) Do(ctx context.Context, method, endpoint string, params url.Values, body any) (*Response, error) {
	if c == nil || c.http == nil {
		return nil, fmt.Errorf("actionkit client is not initialized")
	}
	fullURL := c.baseURL + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + params.Encode()
	}

	key := authMemoKey(method, fullURL)
	c.mu.Lock()
	memo, blocked := c.authErrors[key]
	c.mu.Unlock()
	if blocked {
		return nil, &AuthenticationError{Method: method, Path: normalizePath(fullURL), Message: memo}
	}

	var bodyRaw []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyRaw = raw
	}
	c.logRequest(method, endpoint, params, bodyRaw)

	var reader io.Reader
	if bodyRaw != nil {
		reader = bytes.NewReader(bodyRaw)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.authHeader)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RetriableError{Status: 0, Message: err.Error()}
	}
	respRaw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("read response body: %w", readErr)
	}
	c.logResponse(method, resp.StatusCode, respRaw)

	return c.classify(method, fullURL, resp.StatusCode, respRaw)
}

func (c *Client) classify(method, fullURL string, status int, body []byte) (*Response, error) {
	switch {
	case status >= 200 && status < 300:
		return &Response{Status: status, Body: body}, nil
	case status == http.StatusBadRequest:
		return nil, &InvalidPayloadError{Message: extractErrorMessage(body)}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("http %d", status)
		}
		path := normalizePath(fullURL)
		c.mu.Lock()
		c.authErrors[authMemoKey(method, fullURL)] = msg
		c.mu.Unlock()
		return nil, &AuthenticationError{Method: method, Path: path, Message: msg}
	case status == http.StatusTooManyRequests || status >= 500:
		return nil, &RetriableError{Status: status, Message: responseMessage(status, body)}
	default:
		return nil, &FatalError{Status: status, Message: responseMessage(status, body)}
	}
}

func responseMessage(status int, body []byte) string {
	msg := fmt.Sprintf("http %d", status)
	if text := strings.TrimSpace(string(body)); text != "" {
		msg = fmt.Sprintf("%s. Response: %s", msg, text)
	}
	return msg
}

// authMemoKey keys the failure memo by verb plus the URL's path component
// with the trailing slash stripped, so query-string variants of the same
// endpoint share one entry.
func authMemoKey(method, fullURL string) string {
	return method + " " + normalizePath(fullURL)
}

func normalizePath(fullURL string) string {
	u, err := url.Parse(fullURL)
	if err != nil {
		return strings.TrimRight(fullURL, "/")
	}
	return strings.TrimRight(u.Path, "/")
}

func (c *Client) logRequest(method, endpoint string, params url.Values, body []byte) {
	attrs := []any{"method", method, "endpoint", endpoint}
	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		attrs = append(attrs, "params", keys)
	}
	if keys := topLevelKeys(body); len(keys) > 0 {
		attrs = append(attrs, "body_keys", keys)
	}
	c.logger.Info("api_request", attrs...)
}

func (c *Client) logResponse(method string, status int, body []byte) {
	attrs := []any{"status", status}
	keys := topLevelKeys(body)
	switch {
	case len(body) == 0:
		attrs = append(attrs, "body", "empty response")
	case keys == nil:
		attrs = append(attrs, "body", string(body))
	default:
		attrs = append(attrs, "keys", keys)
		// Full body for mutating verbs only; GET payloads can be large.
		if method != http.MethodGet {
			attrs = append(attrs, "body", string(body))
		}
	}
	c.logger.Info("api_response", attrs...)
}

func topLevelKeys(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
