package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// grafanaClient calls the Grafana service account HTTP API using basic auth.
type grafanaClient struct {
	baseURL  string
	username string
	password string

	httpClient *http.Client
	logger     *slog.Logger
}

func newGrafanaClient(logger *slog.Logger, httpClient *http.Client, cfg config) *grafanaClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.GrafanaTimeout}
	}
	return &grafanaClient{
		baseURL:    strings.TrimRight(cfg.GrafanaURL, "/"),
		username:   cfg.GrafanaUsername,
		password:   cfg.GrafanaPassword,
		httpClient: httpClient,
		logger:     logger.With("component", "grafana"),
	}
}

// apiError is a non-2xx response from the Grafana API.
type apiError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s %s: grafana returned status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// isNotFound reports whether err is a 404 from the Grafana API.
func isNotFound(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// connectionError is a failure to get any response from Grafana at all.
type connectionError struct {
	err error
}

func (e *connectionError) Error() string { return "connecting to grafana: " + e.err.Error() }

func (e *connectionError) Unwrap() error { return e.err }

// isConnectionError reports whether err is a transport level failure, as
// opposed to an error response from Grafana.
func isConnectionError(err error) bool {
	var connErr *connectionError
	return errors.As(err, &connErr)
}

// do sends a JSON request and decodes a 2xx JSON response into out.
func (c *grafanaClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshalling request body: %w", err)
		}
		body = bytes.NewReader(b)
	}
	reqURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("sending request", "method", method, "url", reqURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// A cancelled cycle is not a connectivity problem and must not be
		// retried.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &connectionError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &apiError{
			Method:     method,
			URL:        redactURL(reqURL),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s %s response: %w", method, path, err)
		}
	}
	return nil
}

// redactURL strips any userinfo embedded in a configured URL before it ends
// up in logs.
func redactURL(s string) string {
	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	return u.Redacted()
}
