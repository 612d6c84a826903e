// Package apiclient is the HTTP-and-JSON plumbing shared by the FCM and
// Instance ID clients: it builds requests, merges common headers, reads
// responses fully and hands failures to a service-specific ErrorHandler.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// ErrorHandler converts the three failure sources of a call into the error
// returned to the caller.
type ErrorHandler interface {
	// HandleIOError is called when the request could not be sent or the
	// response could not be read.
	HandleIOError(err error) error

	// HandleHTTPError is called for any non-2xx response.
	HandleHTTPError(resp *Response) error

	// HandleParseError is called when a 2xx response body is not valid JSON
	// for the expected result type.
	HandleParseError(err error, resp *Response) error
}

// Request describes one outbound call.
type Request struct {
	Method string
	URL    string
	Header http.Header

	// JSON is marshaled as the request body when non-nil.
	JSON any

	// Body and ContentType are used verbatim when JSON is nil.
	Body        []byte
	ContentType string
}

// NewPost returns a POST request with a JSON body.
func NewPost(url string, body any) *Request {
	return &Request{Method: http.MethodPost, URL: url, JSON: body, Header: http.Header{}}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	Method     string
	URL        string
}

// Success reports whether the response has a 2xx status.
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// RequestError reports a request that could not be built, before anything
// was sent.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string { return e.Err.Error() }

func (e *RequestError) Unwrap() error { return e.Err }

// Option configures Client.
type Option func(*Client)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// Client sends JSON requests over an already authorized *http.Client.
type Client struct {
	httpClient *http.Client
	headers    http.Header
	logger     *slog.Logger
}

// New creates a Client.
func New(httpClient *http.Client, opts ...Option) *Client {
	c := &Client{
		httpClient: httpClient,
		headers:    http.Header{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient = LoggingHTTPClient(c.httpClient, c.logger)
	return c
}

// CommonHeaders returns a copy of the headers added to every request.
func (c *Client) CommonHeaders() http.Header {
	return c.headers.Clone()
}

// Do sends req and reads the whole response body. The returned error is
// non-nil only when no response was obtained; HTTP status is not checked.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, &RequestError{Err: err}
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, &RequestError{Err: fmt.Errorf("creating %s request: %w", req.Method, err)}
	}
	for k, v := range c.headers {
		httpReq.Header[k] = v
	}
	for k, v := range req.Header {
		httpReq.Header[k] = v
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       respBody,
		Method:     req.Method,
		URL:        req.URL,
	}, nil
}

// Send performs req and routes any failure through h. On success the raw
// response is returned for the caller to decode.
func (c *Client) Send(ctx context.Context, req *Request, h ErrorHandler) (*Response, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			return nil, err
		}
		return nil, h.HandleIOError(err)
	}
	if !resp.Success() {
		return resp, h.HandleHTTPError(resp)
	}
	return resp, nil
}

// SendAndParse performs req and decodes a 2xx JSON body into result.
func (c *Client) SendAndParse(ctx context.Context, req *Request, result any, h ErrorHandler) (*Response, error) {
	resp, err := c.Send(ctx, req, h)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(resp.Body, result); err != nil {
		return resp, h.HandleParseError(err, resp)
	}
	return resp, nil
}

func encodeBody(req *Request) ([]byte, string, error) {
	if req.JSON != nil {
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("marshaling request body: %w", err)
		}
		return data, "application/json; charset=UTF-8", nil
	}
	return req.Body, req.ContentType, nil
}
