package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	apperr "github.com/mrivas/defi-agent/internal/errors"
)

type Client struct {
	httpClient *http.Client
	retries    int
	userAgent  string
}

func New(timeout time.Duration, retries int) *Client {
	if retries < 0 {
		retries = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		retries:    retries,
		userAgent:  "defi-agent/1.0",
	}
}

// DoJSON performs the request with retries on transient failures and decodes
// the JSON body into out. Backend HTTP bodies are never surfaced in error
// messages, only status classes.
func (c *Client) DoJSON(ctx context.Context, req *http.Request, out any) (http.Header, error) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, apperr.Wrap(apperr.StepProviderAvailability, "request cancelled", ctx.Err())
			case <-time.After(backoff(attempt)):
			}
		}

		cloneReq := req.Clone(ctx)
		if req.Body != nil && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, apperr.Wrap(apperr.StepExecution, "clone request body", err)
			}
			cloneReq.Body = body
		}

		resp, err := c.httpClient.Do(cloneReq)
		if err != nil {
			lastErr = mapNetError(err)
			if attempt < c.retries {
				continue
			}
			return nil, lastErr
		}

		buf, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return resp.Header, apperr.Wrap(apperr.StepDataRetrieval, "read backend response", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = apperr.New(apperr.StepProviderAvailability, "backend rate limited request")
			if attempt < c.retries {
				continue
			}
			return resp.Header, lastErr
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return resp.Header, apperr.New(apperr.StepInitialization, "backend authentication failed")
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = apperr.New(apperr.StepProviderAvailability, fmt.Sprintf("backend unavailable (status %d)", resp.StatusCode))
			if attempt < c.retries {
				continue
			}
			return resp.Header, lastErr
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return resp.Header, apperr.New(apperr.StepProviderAvailability, fmt.Sprintf("backend returned unexpected status %d", resp.StatusCode))
		}

		if out == nil {
			return resp.Header, nil
		}
		if len(bytes.TrimSpace(buf)) == 0 {
			return resp.Header, apperr.New(apperr.StepDataRetrieval, "backend returned empty response")
		}
		if err := json.Unmarshal(buf, out); err != nil {
			return resp.Header, apperr.Wrap(apperr.StepDataRetrieval, "decode backend JSON", err)
		}
		return resp.Header, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, apperr.New(apperr.StepProviderAvailability, "request failed")
}

// PostJSON marshals body, performs the POST, and decodes into out.
func (c *Client) PostJSON(ctx context.Context, url string, body any, headers map[string]string, out any) (http.Header, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperr.Wrap(apperr.StepExecution, "encode request body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, apperr.Wrap(apperr.StepExecution, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.DoJSON(ctx, req, out)
}

func mapNetError(err error) error {
	if nerr, ok := err.(net.Error); ok {
		if nerr.Timeout() {
			return apperr.Wrap(apperr.StepProviderAvailability, "backend timeout", err)
		}
	}
	return apperr.Wrap(apperr.StepProviderAvailability, "backend request failed", err)
}

func backoff(attempt int) time.Duration {
	base := 120 * time.Millisecond
	d := base * time.Duration(1<<uint(attempt-1))
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	jitter := time.Duration(rand.Intn(75)) * time.Millisecond
	return d + jitter
}
