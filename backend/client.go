// Package backend is the HTTP client for the external booking backend. It is
// a transparent shim: cookies and payloads pass through unmodified, backend
// errors are normalized into APIError, and nothing is retried or cached.
package backend

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
)

// APIError is the uniform error shape surfaced for any backend failure.
// Message extraction priority: data.message, then data.error, then the raw
// body or transport error text. Status defaults to 500 when the backend
// never answered.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Do sends a request to the backend. cookie is the caller's Cookie header,
// forwarded verbatim for session propagation; it may be empty. The caller
// owns the response body.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, cookie string, body io.Reader) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, &APIError{StatusCode: http.StatusInternalServerError, Message: err.Error()}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{StatusCode: http.StatusInternalServerError, Message: err.Error()}
	}
	return resp, nil
}

// DoJSON sends in (when non-nil) as a JSON body, decodes a 2xx response into
// out (when non-nil), and turns any non-2xx response into an APIError.
func (c *Client) DoJSON(ctx context.Context, method, path string, query url.Values, cookie string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return &APIError{StatusCode: http.StatusInternalServerError, Message: err.Error()}
		}
		body = bytes.NewReader(raw)
	}

	resp, err := c.Do(ctx, method, path, query, cookie, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return NormalizeError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{StatusCode: http.StatusInternalServerError, Message: fmt.Sprintf("invalid backend response: %v", err)}
	}
	return nil
}

// NormalizeError reads an error response body and extracts the most useful
// message the backend offered. The response body is consumed.
func NormalizeError(resp *http.Response) *APIError {
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			return &APIError{StatusCode: status, Message: payload.Message}
		}
		if payload.Error != "" {
			return &APIError{StatusCode: status, Message: payload.Error}
		}
	}

	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg}
}

// ErrorStatusAndMessage unwraps any error into the (status, message) pair
// handlers put on the wire. Non-APIError values default to 500.
func ErrorStatusAndMessage(err error) (int, string) {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.StatusCode, apiErr.Message
	}
	return http.StatusInternalServerError, err.Error()
}
