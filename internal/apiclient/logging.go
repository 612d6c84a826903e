package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"
)

// maxLoggedBody caps how much of a request or response body is logged.
const maxLoggedBody = 2000

// credentialHeaders carry secrets. Only their auth scheme is logged.
var credentialHeaders = map[string]bool{
	"Authorization":       true,
	"Proxy-Authorization": true,
	"X-Goog-Api-Key":      true,
	"Cookie":              true,
	"Set-Cookie":          true,
}

// LoggingHTTPClient returns client wrapped with request/response logging if
// logger is at Debug level, otherwise returns it as-is.
func LoggingHTTPClient(client *http.Client, logger *slog.Logger) *http.Client {
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return client
	}
	if _, ok := client.Transport.(*loggingRoundTripper); ok {
		return client
	}
	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &http.Client{
		Transport:     &loggingRoundTripper{inner: transport, logger: logger},
		CheckRedirect: client.CheckRedirect,
		Jar:           client.Jar,
		Timeout:       client.Timeout,
	}
}

// loggingRoundTripper emits one debug record per request and one per
// response, with headers grouped and credentials redacted.
type loggingRoundTripper struct {
	inner  http.RoundTripper
	logger *slog.Logger
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	reqBody, err := drainBody(&req.Body)
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	t.logger.Debug("api request",
		"method", req.Method,
		"url", req.URL.String(),
		headerAttr(req.Header),
		bodyAttr(reqBody),
	)

	start := time.Now()
	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		t.logger.Debug("api request failed", "method", req.Method, "url", req.URL.String(),
			"elapsed", time.Since(start), "error", err)
		return nil, err
	}

	respBody, err := drainBody(&resp.Body)
	if err != nil {
		t.logger.Debug("api response unreadable", "status", resp.StatusCode, "error", err)
		return nil, err
	}
	t.logger.Debug("api response",
		"status", resp.StatusCode,
		"url", req.URL.String(),
		"elapsed", time.Since(start),
		headerAttr(resp.Header),
		bodyAttr(respBody),
	)
	return resp, nil
}

// drainBody reads *rc fully and replaces it with an in-memory copy.
func drainBody(rc *io.ReadCloser) ([]byte, error) {
	if *rc == nil || *rc == http.NoBody {
		return nil, nil
	}
	b, err := io.ReadAll(*rc)
	(*rc).Close()
	if err != nil {
		return nil, err
	}
	*rc = io.NopCloser(bytes.NewReader(b))
	return b, nil
}

func headerAttr(h http.Header) slog.Attr {
	var attrs []any
	for _, name := range slices.Sorted(maps.Keys(h)) {
		attrs = append(attrs, slog.String(name, headerValue(name, h[name])))
	}
	return slog.Group("headers", attrs...)
}

func bodyAttr(b []byte) slog.Attr {
	return slog.Group("body", "length", len(b), "data", truncate(string(b), maxLoggedBody))
}

// headerValue renders a header for the log. "Bearer ya29.x" on a credential
// header becomes "Bearer REDACTED".
func headerValue(name string, vals []string) string {
	v := strings.Join(vals, ", ")
	if !credentialHeaders[http.CanonicalHeaderKey(name)] {
		return elide(v)
	}
	if scheme, _, ok := strings.Cut(v, " "); ok {
		return scheme + " REDACTED"
	}
	return "REDACTED"
}

// elide shortens long header values.
func elide(val string) string {
	if len(val) > 120 {
		return val[:60] + "..." + val[len(val)-20:]
	}
	return val
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
