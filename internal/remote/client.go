// Package remote is the single gateway for every call to the TeamTask
// service. It attaches the current bearer token, decodes and validates
// response bodies, and converts failures into typed errors. It never
// retries and never swallows an error; callers decide how to surface them.
package remote

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

	"github.com/google/uuid"

	"teamtask/internal/metrics"
	"teamtask/internal/model"
)

// maxBodySize caps how much of a response body is read (1 MB).
const maxBodySize = 1 << 20

// HTTPClient is the transport the gateway dispatches through.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// TokenSource yields the bearer token for the current session, if any.
// The token is read at dispatch time, not at client construction, so a
// login or logout between calls takes effect immediately.
type TokenSource interface {
	Token() (string, bool)
}

// Client issues authorized requests against a TeamTask service.
type Client struct {
	baseURL string
	http    HTTPClient
	tokens  TokenSource
	metrics *metrics.Metrics
}

// NewClient creates a gateway for the service at baseURL. tokens may be nil
// for a client that only ever calls unauthenticated endpoints; metrics may
// be nil to run unmetered.
func NewClient(baseURL string, httpClient HTTPClient, tokens TokenSource, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		tokens:  tokens,
		metrics: m,
	}
}

// Get issues a GET and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, "", nil, out)
}

// Post issues a POST with a JSON body and decodes the response into out.
// body may be nil for bodyless posts; out may be nil to discard the response.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	r, err := encodeJSON(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, "application/json", r, out)
}

// Put issues a PUT with a JSON body and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	r, err := encodeJSON(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, path, "application/json", r, out)
}

// Delete issues a DELETE, discarding any response body.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, "", nil, nil)
}

// PostForm issues a POST with a form-encoded body. The login endpoint is the
// one caller; everything else on the service speaks JSON.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, out any) error {
	body := strings.NewReader(form.Encode())
	return c.do(ctx, http.MethodPost, path, "application/x-www-form-urlencoded", body, out)
}

func encodeJSON(body any) (io.Reader, error) {
	if body == nil {
		return nil, nil
	}
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return buf, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Error{Detail: "building request", cause: err}
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	if c.tokens != nil {
		if token, ok := c.tokens.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	route := routeLabel(path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRemoteRequest(method, route, 0, time.Since(start).Seconds())
		return &Error{Detail: "request failed", cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	c.metrics.ObserveRemoteRequest(method, route, resp.StatusCode, time.Since(start).Seconds())
	if err != nil {
		return &Error{Status: resp.StatusCode, Code: codeMalformed, Detail: "reading response body", cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Status: resp.StatusCode, Code: codeMalformed, Detail: "malformed response body", cause: err}
	}
	if err := validateDecoded(out); err != nil {
		return &Error{Status: resp.StatusCode, Code: codeMalformed, Detail: "invalid response payload", cause: err}
	}
	return nil
}

// decodeError extracts the most specific message the service provided.
// The TeamTask service reports {"detail": "..."}; an {"error": {"code",
// "message"}} envelope is accepted too.
func decodeError(status int, raw []byte) *Error {
	var payload struct {
		Detail string `json:"detail"`
		Error  struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	e := &Error{Status: status}
	if err := json.Unmarshal(raw, &payload); err == nil {
		switch {
		case payload.Detail != "":
			e.Detail = payload.Detail
		case payload.Error.Message != "":
			e.Code = payload.Error.Code
			e.Detail = payload.Error.Message
		}
	}
	if e.Detail == "" {
		e.Detail = http.StatusText(status)
	}
	return e
}

// validateDecoded applies boundary validation to the payload shapes the
// client consumes. Unknown shapes pass through unchecked.
func validateDecoded(out any) error {
	switch v := out.(type) {
	case *model.User:
		return v.Validate()
	case *model.TodoList:
		return v.Validate()
	case *model.Task:
		return v.Validate()
	case *model.Invite:
		return v.Validate()
	case *[]model.User:
		for i := range *v {
			if err := (*v)[i].Validate(); err != nil {
				return err
			}
		}
	case *[]model.TodoList:
		for i := range *v {
			if err := (*v)[i].Validate(); err != nil {
				return err
			}
		}
	case *[]model.Task:
		for i := range *v {
			if err := (*v)[i].Validate(); err != nil {
				return err
			}
		}
	case *[]model.Invite:
		for i := range *v {
			if err := (*v)[i].Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// routeLabel collapses numeric path segments so metrics do not explode into
// one series per entity id.
func routeLabel(path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		if s != "" && isDigits(s) {
			segs[i] = "{id}"
		}
	}
	return strings.Join(segs, "/")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
