package twofactorclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	apperrors "github.com/tendant/simple-2fa/pkg/errors"
	"github.com/tendant/simple-2fa/pkg/twofactor/api"
)

// Transport carries the client's calls to the server.
type Transport interface {
	Login(ctx context.Context, req api.LoginRequest) (api.LoginResponse, error)
	SendCode(ctx context.Context, req api.SendCodeRequest) (api.LoginResponse, error)
	Verify(ctx context.Context, req api.VerifyRequest) (api.LoginResponse, error)
	Abort(ctx context.Context, req api.AbortRequest) error
}

// HTTPTransport talks to the /api/2fa endpoints.
type HTTPTransport struct {
	baseURL string
	client  *retryablehttp.Client
}

type HTTPOption func(*HTTPTransport)

// WithHTTPClient sets the underlying client, e.g. an httptest server's.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		if c != nil {
			t.client.HTTPClient = c
		}
	}
}

// WithRetries sets how often a request is retried after a connection failure.
func WithRetries(n int) HTTPOption {
	return func(t *HTTPTransport) {
		t.client.RetryMax = n
	}
}

// NewHTTPTransport creates a transport for the server mounted at baseURL,
// e.g. http://localhost:4000/api/2fa.
func NewHTTPTransport(baseURL string, opts ...HTTPOption) *HTTPTransport {
	c := retryablehttp.NewClient()
	c.Logger = slog.Default()
	c.RetryMax = 2
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.CheckRetry = retryConnectionErrors
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler

	t := &HTTPTransport{baseURL: strings.TrimRight(baseURL, "/"), client: c}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// retryConnectionErrors retries only when no response arrived. Any answer
// from the server, including a 5xx, is final so a code is never sent twice
// because of a retry.
func retryConnectionErrors(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err == nil {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func (t *HTTPTransport) Login(ctx context.Context, req api.LoginRequest) (api.LoginResponse, error) {
	var resp api.LoginResponse
	err := t.post(ctx, "/login", req, &resp)
	return resp, err
}

func (t *HTTPTransport) SendCode(ctx context.Context, req api.SendCodeRequest) (api.LoginResponse, error) {
	var resp api.LoginResponse
	err := t.post(ctx, "/code", req, &resp)
	return resp, err
}

func (t *HTTPTransport) Verify(ctx context.Context, req api.VerifyRequest) (api.LoginResponse, error) {
	var resp api.LoginResponse
	err := t.post(ctx, "/verify", req, &resp)
	return resp, err
}

func (t *HTTPTransport) Abort(ctx context.Context, req api.AbortRequest) error {
	return t.post(ctx, "/abort", req, nil)
}

func (t *HTTPTransport) post(ctx context.Context, path string, in interface{}, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, payload)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError rebuilds the server's structured error so callers can match it
// with errors.Is against the server side sentinels.
func decodeError(status int, payload []byte) error {
	var er api.ErrorResponse
	if err := json.Unmarshal(payload, &er); err != nil || er.Code == "" {
		return apperrors.Newf(apperrors.ErrCodeInternal, "unexpected status %d", status).WithDetail("status", status)
	}
	return apperrors.New(apperrors.ErrorCode(er.Code), er.Error).WithDetail("status", status)
}
