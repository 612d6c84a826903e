// Package messaging is a Go client for Firebase Cloud Messaging.
//
// It wraps two Google REST services: the FCM v1 send API, for single and
// batched message delivery, and the Instance ID API, for subscribing
// registration tokens to topics. Failures from either service are returned
// as *Error values carrying a platform ErrorCode, an FCM MessagingErrorCode
// and the raw HTTP response.
//
// Clients are configured with Options. A logger at debug level logs every
// request and response. WithMetrics and WithTracerProvider add Prometheus
// metrics and OpenTelemetry spans.
//
// Usage:
//
//	client, err := messaging.NewClient(ctx, messaging.WithCredentialsFile("sa.json"))
//	id, err := client.Send(ctx, &messaging.Message{Topic: "news", Notification: &messaging.Notification{Title: "Hi"}})
//	br, err := client.SendAll(ctx, messages)
//
//	iid, err := messaging.NewInstanceIDClient(ctx)
//	resp, err := iid.SubscribeToTopic(ctx, "news", tokens)
package messaging
