package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxErrorBody       = 512
)

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// StatusError is a non-2xx answer from a remote API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("remote returned %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// fatalStatus reports whether a response status makes the whole target unusable.
func fatalStatus(code int) bool {
	switch code {
	case http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// do sends req and decodes a JSON answer into out (when non-nil).
// Transport failures and fatal statuses come back as *FatalError.
func do(client *http.Client, req *http.Request, target string, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return Fatal(target, ctxErr)
		}
		return Fatal(target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		serr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if fatalStatus(resp.StatusCode) {
			return Fatal(target, serr)
		}
		return serr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, Fatal("", fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func credential(cfg map[string]string, key string) string {
	if cfg == nil {
		return ""
	}
	return cfg[key]
}
