package messaging

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/slush-dev/fcm-admin/internal/apiclient"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultIIDEndpoint is the base URL of the Instance ID service.
	DefaultIIDEndpoint = "https://iid.googleapis.com"

	iidSubscribePath   = "iid/v1:batchAdd"
	iidUnsubscribePath = "iid/v1:batchRemove"

	// maxTopicManagementTokens is the most tokens one topic request accepts.
	maxTopicManagementTokens = 1000
)

var topicPattern = regexp.MustCompile(`^(/topics/)?(private/)?[a-zA-Z0-9-_.~%]+$`)

// topicManagementErrorReasons maps Instance ID result errors to the reasons
// reported in TopicManagementResponse.
var topicManagementErrorReasons = map[string]string{
	"INVALID_ARGUMENT": "invalid-argument",
	"NOT_FOUND":        "registration-token-not-registered",
	"INTERNAL":         "internal-error",
	"TOO_MANY_TOPICS":  "too-many-topics",
}

const unknownTopicManagementReason = "unknown-error"

// ErrorInfo describes why one registration token could not be
// (un)subscribed.
type ErrorInfo struct {
	Index  int
	Reason string
}

// TopicManagementResponse is the outcome of a topic (un)subscription.
// Errors refer to positions in the submitted token list.
type TopicManagementResponse struct {
	SuccessCount int
	FailureCount int
	Errors       []*ErrorInfo
}

func newTopicManagementResponse(results []map[string]any) *TopicManagementResponse {
	tmr := &TopicManagementResponse{}
	for i, res := range results {
		if len(res) == 0 {
			tmr.SuccessCount++
			continue
		}
		tmr.FailureCount++
		code, _ := res["error"].(string)
		reason, ok := topicManagementErrorReasons[code]
		if !ok {
			reason = unknownTopicManagementReason
		}
		tmr.Errors = append(tmr.Errors, &ErrorInfo{Index: i, Reason: reason})
	}
	return tmr
}

// InstanceIDClient manages topic subscriptions through the Instance ID
// service. It is safe for concurrent use.
type InstanceIDClient struct {
	api      *apiclient.Client
	endpoint string
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewInstanceIDClient creates an InstanceIDClient.
func NewInstanceIDClient(ctx context.Context, opts ...Option) (*InstanceIDClient, error) {
	s := newSettings(opts)
	httpClient, _, err := s.transport(ctx, "iid")
	if err != nil {
		return nil, err
	}
	c := newInstanceIDClient(httpClient, s.logger)
	c.tracer = s.tracer()
	return c, nil
}

func newInstanceIDClient(httpClient *http.Client, logger *slog.Logger) *InstanceIDClient {
	return &InstanceIDClient{
		api:      apiclient.New(httpClient, apiclient.WithLogger(logger)),
		endpoint: DefaultIIDEndpoint,
		logger:   logger,
		tracer:   defaultTracer(),
	}
}

// iidRequest is the body of batchAdd and batchRemove.
type iidRequest struct {
	To     string   `json:"to"`
	Tokens []string `json:"registration_tokens"`
}

type iidResponse struct {
	Results []map[string]any `json:"results"`
}

// SubscribeToTopic subscribes up to 1000 registration tokens to topic.
func (c *InstanceIDClient) SubscribeToTopic(ctx context.Context, topic string, tokens []string) (*TopicManagementResponse, error) {
	return c.makeTopicManagementRequest(ctx, topic, tokens, iidSubscribePath)
}

// UnsubscribeFromTopic unsubscribes up to 1000 registration tokens from
// topic.
func (c *InstanceIDClient) UnsubscribeFromTopic(ctx context.Context, topic string, tokens []string) (*TopicManagementResponse, error) {
	return c.makeTopicManagementRequest(ctx, topic, tokens, iidUnsubscribePath)
}

func (c *InstanceIDClient) makeTopicManagementRequest(ctx context.Context, topic string, tokens []string, path string) (_ *TopicManagementResponse, err error) {
	ctx, span := startSpan(ctx, c.tracer, "iid."+strings.TrimPrefix(path, "iid/v1:"),
		attribute.String("fcm.topic", topic),
		attribute.Int("fcm.token_count", len(tokens)),
	)
	defer func() { endSpan(span, err) }()

	if err := validateTopicManagementArgs(topic, tokens); err != nil {
		return nil, err
	}

	req := apiclient.NewPost(c.endpoint+"/"+path, &iidRequest{
		To:     prefixedTopic(topic),
		Tokens: tokens,
	})
	req.Header.Set("access_token_auth", "true")

	var result iidResponse
	resp, err := c.api.SendAndParse(ctx, req, &result, iidErrorHandler{})
	if err != nil {
		return nil, err
	}
	if len(result.Results) == 0 {
		return nil, parseError("topic management service", errors.New("response has no results"), resp)
	}

	tmr := newTopicManagementResponse(result.Results)
	span.SetAttributes(
		attribute.Int("fcm.success_count", tmr.SuccessCount),
		attribute.Int("fcm.failure_count", tmr.FailureCount),
	)
	c.logger.Debug("Topic management request complete",
		"path", path,
		"topic", prefixedTopic(topic),
		"success", tmr.SuccessCount,
		"failure", tmr.FailureCount,
	)
	return tmr, nil
}

// prefixedTopic returns topic with a leading "/topics/".
func prefixedTopic(topic string) string {
	if strings.HasPrefix(topic, topicPrefix) {
		return topic
	}
	return topicPrefix + topic
}

func validateTopicManagementArgs(topic string, tokens []string) error {
	if len(tokens) == 0 {
		return invalidArgument("registration tokens list must not be empty")
	}
	if len(tokens) > maxTopicManagementTokens {
		return invalidArgument("registration tokens list must not have more than %d elements", maxTopicManagementTokens)
	}
	for _, t := range tokens {
		if t == "" {
			return invalidArgument("registration tokens must not be empty")
		}
	}
	if topic == "" {
		return invalidArgument("topic name must not be empty")
	}
	if !topicPattern.MatchString(topic) {
		return invalidArgument("invalid topic name %q", topic)
	}
	return nil
}
