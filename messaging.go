package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/slush-dev/fcm-admin/internal/apiclient"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultFCMEndpoint is the base URL of the FCM v1 API.
	DefaultFCMEndpoint = "https://fcm.googleapis.com/v1"

	// DefaultBatchEndpoint receives multipart batch envelopes.
	DefaultBatchEndpoint = "https://fcm.googleapis.com/batch"

	apiFormatVersionHeader = "X-GOOG-API-FORMAT-VERSION"
	apiFormatVersion       = "2"
	clientVersionHeader    = "X-Firebase-Client"

	// maxBatchSize is the most messages a single batch request may carry.
	maxBatchSize = 500
)

// clientVersion identifies this library to the FCM backend.
var clientVersion = "fcm-admin-go/" + Version

// Client sends messages through the FCM v1 API. It holds only immutable
// configuration and is safe for concurrent use.
type Client struct {
	api        *apiclient.Client
	projectID  string
	fcmSendURL string
	batchURL   string
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewClient creates a Client. A project ID is required; it is taken from
// WithProjectID, the credentials, or the GOOGLE_CLOUD_PROJECT environment
// variable, in that order.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	s := newSettings(opts)
	httpClient, projectID, err := s.transport(ctx, "fcm")
	if err != nil {
		return nil, err
	}
	if projectID == "" {
		return nil, errors.New("project ID is required to access messaging service: " +
			"use a service account credential, set the project ID explicitly via WithProjectID, " +
			"or set the GOOGLE_CLOUD_PROJECT environment variable")
	}
	c := newClient(httpClient, projectID, s.logger)
	c.tracer = s.tracer()
	return c, nil
}

func newClient(httpClient *http.Client, projectID string, logger *slog.Logger) *Client {
	api := apiclient.New(httpClient,
		apiclient.WithLogger(logger),
		apiclient.WithHeader(apiFormatVersionHeader, apiFormatVersion),
		apiclient.WithHeader(clientVersionHeader, clientVersion),
	)
	return &Client{
		api:        api,
		projectID:  projectID,
		fcmSendURL: fmt.Sprintf("%s/projects/%s/messages:send", DefaultFCMEndpoint, projectID),
		batchURL:   DefaultBatchEndpoint,
		logger:     logger,
		tracer:     defaultTracer(),
	}
}

// ProjectID returns the project messages are sent from.
func (c *Client) ProjectID() string {
	return c.projectID
}

// sendRequest is the body of messages:send.
type sendRequest struct {
	Message      *Message `json:"message"`
	ValidateOnly bool     `json:"validate_only,omitempty"`
}

// sendResponse is the body of a successful messages:send.
type sendResponse struct {
	Name string `json:"name"`
}

// ---------------------------------------------------------------------------
// Single send
// ---------------------------------------------------------------------------

// Send sends m and returns the message ID assigned by FCM.
func (c *Client) Send(ctx context.Context, m *Message) (string, error) {
	return c.send(ctx, m, false)
}

// SendDryRun validates m with FCM without delivering it.
func (c *Client) SendDryRun(ctx context.Context, m *Message) (string, error) {
	return c.send(ctx, m, true)
}

func (c *Client) send(ctx context.Context, m *Message, dryRun bool) (_ string, err error) {
	ctx, span := startSpan(ctx, c.tracer, "fcm.Send", attribute.Bool("fcm.dry_run", dryRun))
	defer func() { endSpan(span, err) }()

	if err := validateMessage(m); err != nil {
		return "", err
	}

	req := apiclient.NewPost(c.fcmSendURL, &sendRequest{Message: m, ValidateOnly: dryRun})
	var result sendResponse
	if _, err := c.api.SendAndParse(ctx, req, &result, fcmErrorHandler{}); err != nil {
		return "", err
	}

	span.SetAttributes(attribute.String("fcm.message_id", result.Name))
	c.logger.Debug("FCM message sent", "message_id", result.Name, "dry_run", dryRun)
	return result.Name, nil
}

// ---------------------------------------------------------------------------
// Batch send
// ---------------------------------------------------------------------------

// SendAll sends up to 500 messages in one batch request. The returned
// BatchResponse holds one SendResponse per message, in input order. A
// failure of the batch request itself fails the whole call.
func (c *Client) SendAll(ctx context.Context, messages []*Message) (*BatchResponse, error) {
	return c.sendAll(ctx, messages, false)
}

// SendAllDryRun is SendAll in validate-only mode.
func (c *Client) SendAllDryRun(ctx context.Context, messages []*Message) (*BatchResponse, error) {
	return c.sendAll(ctx, messages, true)
}

// SendMulticast sends mm to each of its tokens in one batch request.
func (c *Client) SendMulticast(ctx context.Context, mm *MulticastMessage) (*BatchResponse, error) {
	messages, err := mm.toMessages()
	if err != nil {
		return nil, err
	}
	return c.sendAll(ctx, messages, false)
}

// SendMulticastDryRun is SendMulticast in validate-only mode.
func (c *Client) SendMulticastDryRun(ctx context.Context, mm *MulticastMessage) (*BatchResponse, error) {
	messages, err := mm.toMessages()
	if err != nil {
		return nil, err
	}
	return c.sendAll(ctx, messages, true)
}

func (c *Client) sendAll(ctx context.Context, messages []*Message, dryRun bool) (_ *BatchResponse, err error) {
	ctx, span := startSpan(ctx, c.tracer, "fcm.SendAll",
		attribute.Int("fcm.batch_size", len(messages)),
		attribute.Bool("fcm.dry_run", dryRun),
	)
	defer func() { endSpan(span, err) }()

	if len(messages) == 0 {
		return nil, invalidArgument("messages must not be empty")
	}
	if len(messages) > maxBatchSize {
		return nil, invalidArgument("messages must not contain more than %d elements", maxBatchSize)
	}
	for i, m := range messages {
		if err := validateMessage(m); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
	}

	env, err := newBatchEnvelope(c.fcmSendURL, messages, dryRun, c.api.CommonHeaders())
	if err != nil {
		return nil, err
	}

	resp, err := c.api.Send(ctx, env.request(c.batchURL), fcmErrorHandler{})
	if err != nil {
		return nil, err
	}

	responses, err := env.parse(resp)
	if err != nil {
		return nil, parseError("FCM service", err, resp)
	}

	br := newBatchResponse(responses)
	span.SetAttributes(
		attribute.Int("fcm.success_count", br.SuccessCount),
		attribute.Int("fcm.failure_count", br.FailureCount),
	)
	c.logger.Debug("FCM batch sent",
		"messages", len(messages),
		"success", br.SuccessCount,
		"failure", br.FailureCount,
		"dry_run", dryRun,
	)
	return br, nil
}
