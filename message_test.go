package messaging

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marshal(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestMessageMarshal_TopicPrefixStripped(t *testing.T) {
	assert.JSONEq(t, `{"topic":"news"}`, marshal(t, &Message{Topic: "/topics/news"}))
	assert.JSONEq(t, `{"topic":"news"}`, marshal(t, &Message{Topic: "news"}))
	assert.JSONEq(t, `{"token":"abc"}`, marshal(t, &Message{Token: "abc"}))
}

func TestMessageMarshal_Value(t *testing.T) {
	msg := Message{Topic: "/topics/news"}
	assert.JSONEq(t, `{"topic":"news"}`, marshal(t, msg))

	wrapped := struct {
		Message Message `json:"message"`
	}{Message: msg}
	assert.JSONEq(t, `{"message":{"topic":"news"}}`, marshal(t, wrapped))

	ttl := 2 * time.Second
	assert.JSONEq(t, `{"ttl":"2s"}`, marshal(t, AndroidConfig{TTL: &ttl}))
	assert.JSONEq(t, `{"content-available":1}`, marshal(t, Aps{ContentAvailable: true}))
}

func TestMessageMarshal_Full(t *testing.T) {
	m := &Message{
		Token:        "tok",
		Data:         map[string]string{"k": "v"},
		Notification: &Notification{Title: "t", Body: "b", ImageURL: "https://example.com/i.png"},
		FCMOptions:   &FCMOptions{AnalyticsLabel: "label"},
		Webpush: &WebpushConfig{
			Headers:    map[string]string{"TTL": "60"},
			FCMOptions: &WebpushFCMOptions{Link: "https://example.com"},
		},
	}
	assert.JSONEq(t, `{
		"token": "tok",
		"data": {"k": "v"},
		"notification": {"title": "t", "body": "b", "image": "https://example.com/i.png"},
		"fcm_options": {"analytics_label": "label"},
		"webpush": {"headers": {"TTL": "60"}, "fcm_options": {"link": "https://example.com"}}
	}`, marshal(t, m))
}

func TestAndroidConfigMarshal_TTL(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want string
	}{
		{3500 * time.Millisecond, "3.500s"},
		{2 * time.Second, "2s"},
		{0, "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			ttl := tt.ttl
			got := marshal(t, &AndroidConfig{TTL: &ttl, Priority: "high"})
			assert.JSONEq(t, `{"ttl":"`+tt.want+`","priority":"high"}`, got)
		})
	}
}

func TestAndroidConfigMarshal_NoTTL(t *testing.T) {
	assert.JSONEq(t, `{"collapse_key":"c"}`, marshal(t, &AndroidConfig{CollapseKey: "c"}))
}

func TestApsMarshal_Flags(t *testing.T) {
	badge := 0
	got := marshal(t, &Aps{Alert: "hi", Badge: &badge, ContentAvailable: true, MutableContent: true})
	assert.JSONEq(t, `{"alert":"hi","badge":0,"content-available":1,"mutable-content":1}`, got)

	assert.JSONEq(t, `{"sound":"default"}`, marshal(t, &Aps{Sound: "default"}))
}

func TestAPNSPayloadMarshal_CustomData(t *testing.T) {
	p := &APNSPayload{
		Aps:        &Aps{Alert: "hi"},
		CustomData: map[string]any{"k": "v", "n": 1},
	}
	assert.JSONEq(t, `{"aps":{"alert":"hi"},"k":"v","n":1}`, marshal(t, p))
}

func TestValidateMessage(t *testing.T) {
	negative := -time.Second
	tests := []struct {
		name string
		msg  *Message
		ok   bool
	}{
		{"nil", nil, false},
		{"no target", &Message{}, false},
		{"two targets", &Message{Token: "a", Condition: "c"}, false},
		{"token", &Message{Token: "a"}, true},
		{"bare topic", &Message{Topic: "news"}, true},
		{"prefixed topic", &Message{Topic: "/topics/news"}, true},
		{"malformed topic", &Message{Topic: "/topics/news$"}, false},
		{"condition", &Message{Condition: "'a' in topics"}, true},
		{"bad image", &Message{Token: "a", Notification: &Notification{ImageURL: "not a url"}}, false},
		{"bad priority", &Message{Token: "a", Android: &AndroidConfig{Priority: "urgent"}}, false},
		{"negative ttl", &Message{Token: "a", Android: &AndroidConfig{TTL: &negative}}, false},
		{"bad color", &Message{Token: "a", Android: &AndroidConfig{
			Notification: &AndroidNotification{Color: "red"},
		}}, false},
		{"good color", &Message{Token: "a", Android: &AndroidConfig{
			Notification: &AndroidNotification{Color: "#ff00AA"},
		}}, true},
		{"title loc args without key", &Message{Token: "a", Android: &AndroidConfig{
			Notification: &AndroidNotification{TitleLocArgs: []string{"x"}},
		}}, false},
		{"body loc args without key", &Message{Token: "a", Android: &AndroidConfig{
			Notification: &AndroidNotification{BodyLocArgs: []string{"x"}},
		}}, false},
		{"http link", &Message{Token: "a", Webpush: &WebpushConfig{
			FCMOptions: &WebpushFCMOptions{Link: "http://example.com"},
		}}, false},
		{"duplicate aps", &Message{Token: "a", APNS: &APNSConfig{
			Payload: &APNSPayload{Aps: &Aps{}, CustomData: map[string]any{"aps": 1}},
		}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateMessage(tt.msg)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidArgument)
			}
		})
	}
}

func TestMulticastToMessages(t *testing.T) {
	n := &Notification{Title: "t"}
	mm := &MulticastMessage{Tokens: []string{"a", "b", "c"}, Notification: n}

	msgs, err := mm.toMessages()
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		assert.Equal(t, mm.Tokens[i], m.Token)
		assert.Same(t, n, m.Notification)
		assert.Empty(t, m.Topic)
	}

	_, err = (&MulticastMessage{Tokens: make([]string, maxBatchSize+1)}).toMessages()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
