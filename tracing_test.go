package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newSpanRecorder() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	sr := tracetest.NewSpanRecorder()
	return sr, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

func findSpan(t *testing.T, spans []sdktrace.ReadOnlySpan, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, s := range spans {
		if s.Name() == name {
			return s
		}
	}
	t.Fatalf("span %q not recorded", name)
	return nil
}

func TestTracing_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"projects/test-project/messages/1"}`))
	}))
	defer server.Close()

	sr, tp := newSpanRecorder()
	c, err := NewClient(context.Background(),
		WithHTTPClient(server.Client()),
		WithProjectID(testProjectID),
		WithTracerProvider(tp),
	)
	require.NoError(t, err)
	c.fcmSendURL = server.URL + "/send"

	_, err = c.SendDryRun(context.Background(), &Message{Token: "t"})
	require.NoError(t, err)

	spans := sr.Ended()
	send := findSpan(t, spans, "fcm.Send")
	assert.Equal(t, trace.SpanKindClient, send.SpanKind())
	attrs := spanAttrs(send)
	assert.True(t, attrs["fcm.dry_run"].AsBool())
	assert.Equal(t, "projects/test-project/messages/1", attrs["fcm.message_id"].AsString())

	// The outbound HTTP request is a child of the operation span.
	var child sdktrace.ReadOnlySpan
	for _, s := range spans {
		if s.Parent().SpanID() == send.SpanContext().SpanID() {
			child = s
		}
	}
	require.NotNil(t, child)
}

func TestTracing_SendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"status":"NOT_FOUND","message":"gone","details":[` +
			`{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":"UNREGISTERED"}]}}`))
	}))
	defer server.Close()

	sr, tp := newSpanRecorder()
	c := newTestClient(server)
	c.tracer = tp.Tracer(instrumentationName)

	_, err := c.Send(context.Background(), &Message{Token: "t"})
	require.Error(t, err)

	send := findSpan(t, sr.Ended(), "fcm.Send")
	assert.Equal(t, codes.Error, send.Status().Code)
	assert.Equal(t, "gone", send.Status().Description)
	attrs := spanAttrs(send)
	assert.Equal(t, "NOT_FOUND", attrs["fcm.error_code"].AsString())
	assert.Equal(t, "UNREGISTERED", attrs["fcm.messaging_error_code"].AsString())
}

func TestTracing_SendAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subs := readBatchRequest(t, r)
		writeBatchResponse(t, w, subs, []subReply{
			{http.StatusOK, `{"name":"m1"}`},
			{http.StatusInternalServerError, `{}`},
			{http.StatusOK, `{"name":"m3"}`},
		}, nil, true)
	}))
	defer server.Close()

	sr, tp := newSpanRecorder()
	c := newTestClient(server)
	c.tracer = tp.Tracer(instrumentationName)

	_, err := c.SendAll(context.Background(), testMessages())
	require.NoError(t, err)

	span := findSpan(t, sr.Ended(), "fcm.SendAll")
	attrs := spanAttrs(span)
	assert.Equal(t, int64(3), attrs["fcm.batch_size"].AsInt64())
	assert.Equal(t, int64(2), attrs["fcm.success_count"].AsInt64())
	assert.Equal(t, int64(1), attrs["fcm.failure_count"].AsInt64())
	assert.Equal(t, codes.Unset, span.Status().Code)
}

func TestTracing_TopicManagement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{},{"error":"NOT_FOUND"}]}`))
	}))
	defer server.Close()

	sr, tp := newSpanRecorder()
	c := newTestIIDClient(server)
	c.tracer = tp.Tracer(instrumentationName)

	_, err := c.UnsubscribeFromTopic(context.Background(), "news", []string{"a", "b"})
	require.NoError(t, err)

	span := findSpan(t, sr.Ended(), "iid.batchRemove")
	attrs := spanAttrs(span)
	assert.Equal(t, "news", attrs["fcm.topic"].AsString())
	assert.Equal(t, int64(2), attrs["fcm.token_count"].AsInt64())
	assert.Equal(t, int64(1), attrs["fcm.failure_count"].AsInt64())
}
