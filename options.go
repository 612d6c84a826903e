package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/slush-dev/fcm-admin/internal/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"
)

// Scopes are the OAuth2 scopes requested for FCM and Instance ID calls.
var Scopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/firebase.messaging",
}

// projectIDEnvVars are consulted, in order, when no project ID is configured
// and the credentials do not carry one.
var projectIDEnvVars = []string{"GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT"}

// Option configures Client and InstanceIDClient.
type Option func(*settings)

type settings struct {
	projectID       string
	credentialsFile string
	credentialsJSON []byte
	tokenSource     oauth2.TokenSource
	httpClient      *http.Client
	logger          *slog.Logger
	registerer      prometheus.Registerer
	tracerProvider  trace.TracerProvider
}

// WithProjectID sets the Firebase project ID used to build the send URL.
func WithProjectID(projectID string) Option {
	return func(s *settings) {
		s.projectID = projectID
	}
}

// WithCredentialsFile loads service account or user credentials from a JSON
// file.
func WithCredentialsFile(path string) Option {
	return func(s *settings) {
		s.credentialsFile = path
	}
}

// WithCredentialsJSON uses the given service account or user credentials.
func WithCredentialsJSON(data []byte) Option {
	return func(s *settings) {
		s.credentialsJSON = data
	}
}

// WithTokenSource authorizes requests with bearer tokens from ts.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(s *settings) {
		s.tokenSource = ts
	}
}

// WithHTTPClient sets an HTTP client that already authorizes its requests.
// Credential options are ignored when it is set.
func WithHTTPClient(client *http.Client) Option {
	return func(s *settings) {
		s.httpClient = client
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithMetrics records request counts and latencies in reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *settings) {
		s.registerer = reg
	}
}

// WithTracerProvider records a span per operation and per outbound HTTP
// request with tp. Without it operation spans go to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *settings) {
		s.tracerProvider = tp
	}
}

func newSettings(opts []Option) *settings {
	s := &settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// transport returns the authorized HTTP client for service along with the
// resolved project ID, which may be empty.
func (s *settings) transport(ctx context.Context, service string) (*http.Client, string, error) {
	client, projectID, err := s.authorizedClient(ctx)
	if err != nil {
		return nil, "", err
	}

	if s.registerer != nil {
		t, err := metrics.NewTransport(s.registerer, service)
		if err != nil {
			return nil, "", fmt.Errorf("registering %s metrics: %w", service, err)
		}
		client = t.Instrument(client)
	}
	if s.tracerProvider != nil {
		client = traceClient(client, s.tracerProvider)
	}

	if s.projectID != "" {
		projectID = s.projectID
	}
	if projectID == "" {
		for _, env := range projectIDEnvVars {
			if v := os.Getenv(env); v != "" {
				projectID = v
				break
			}
		}
	}
	return client, projectID, nil
}

// tracer returns the tracer operation spans are recorded with.
func (s *settings) tracer() trace.Tracer {
	tp := s.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(Version))
}

// traceClient returns a copy of client whose transport records a client span
// per request.
func traceClient(client *http.Client, tp trace.TracerProvider) *http.Client {
	traced := *client
	traced.Transport = otelhttp.NewTransport(client.Transport, otelhttp.WithTracerProvider(tp))
	return &traced
}

func (s *settings) authorizedClient(ctx context.Context) (*http.Client, string, error) {
	if s.httpClient != nil {
		return s.httpClient, "", nil
	}

	if s.tokenSource != nil {
		client, _, err := htransport.NewClient(ctx, option.WithTokenSource(s.tokenSource))
		if err != nil {
			return nil, "", fmt.Errorf("creating authorized HTTP client: %w", err)
		}
		return client, "", nil
	}

	creds, err := s.credentials(ctx)
	if err != nil {
		return nil, "", err
	}
	s.logger.Debug("Resolved Google credentials", "project_id", creds.ProjectID)

	client, _, err := htransport.NewClient(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, "", fmt.Errorf("creating authorized HTTP client: %w", err)
	}
	return client, creds.ProjectID, nil
}

func (s *settings) credentials(ctx context.Context) (*google.Credentials, error) {
	data := s.credentialsJSON
	if data == nil && s.credentialsFile != "" {
		var err error
		if data, err = os.ReadFile(s.credentialsFile); err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
	}

	if data != nil {
		creds, err := google.CredentialsFromJSON(ctx, data, Scopes...)
		if err != nil {
			return nil, fmt.Errorf("parsing credentials: %w", err)
		}
		return creds, nil
	}

	creds, err := google.FindDefaultCredentials(ctx, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("finding default credentials: %w", err)
	}
	return creds, nil
}
