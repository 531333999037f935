package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/socialbridge/socialbridge/internal/errors"
)

// DefaultHTTPClient bounds every provider call. Adapters share it unless a
// test injects its own.
var DefaultHTTPClient = &http.Client{Timeout: 15 * time.Second}

var transientBodyMarkers = []string{
	"rate limit",
	"rate_limit",
	"quota",
	"temporarily unavailable",
	"temporarily_unavailable",
	"try again later",
	"internal error",
}

// ErrorFromResponse classifies a non-2xx provider response into the service
// error taxonomy. HTTP 429 and 5xx are transient; remaining 4xx are fatal.
// The body is inspected for provider-specific transient markers but is
// never propagated verbatim into the returned error.
func ErrorFromResponse(resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &errors.RateLimitError{RetryAfter: retryAfter(resp)}
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: provider returned %d", errors.ErrProviderUnavailable, resp.StatusCode)
	}

	lowered := strings.ToLower(string(body))
	for _, marker := range transientBodyMarkers {
		if strings.Contains(lowered, marker) {
			return fmt.Errorf("%w: provider returned %d", errors.ErrProviderUnavailable, resp.StatusCode)
		}
	}
	return fmt.Errorf("%w: provider returned %d", errors.ErrContentRejected, resp.StatusCode)
}

// IsTransport reports whether err is a network-level failure (timeout,
// connection refused) that should be treated as a transient provider
// outage.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		return time.Until(at)
	}
	return 0
}

// DoJSON issues one bounded JSON request against a provider API and decodes
// the response into out. Non-2xx statuses are classified via
// ErrorFromResponse; transport failures map to ErrProviderUnavailable.
func DoJSON(ctx context.Context, client *http.Client, method, endpoint string, headers map[string]string, payload, out any) error {
	if client == nil {
		client = DefaultHTTPClient
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build provider request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrProviderUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ErrorFromResponse(resp, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode provider response: %w", err)
		}
	}
	return nil
}

// BearerHeaders is the authorization header set for OAuth 2.0 API calls.
func BearerHeaders(accessToken string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + accessToken}
}
