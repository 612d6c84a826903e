// Package metrics instruments outbound API traffic with Prometheus
// collectors.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fcm_admin"

// Transport holds the collectors for one upstream service.
type Transport struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewTransport creates and registers the collectors for service ("fcm",
// "iid"). Collectors already registered by another client are reused.
func NewTransport(reg prometheus.Registerer, service string) (*Transport, error) {
	labels := prometheus.Labels{"service": service}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "requests_total",
		Help:        "Outbound API requests by HTTP status code and method.",
		ConstLabels: labels,
	}, []string{"code", "method"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Name:        "request_duration_seconds",
		Help:        "Outbound API request latency.",
		ConstLabels: labels,
		Buckets:     prometheus.DefBuckets,
	}, []string{"code", "method"})

	var err error
	if requests, err = register(reg, requests); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	return &Transport{requests: requests, duration: duration}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Instrument returns a copy of client whose transport records every round
// trip.
func (t *Transport) Instrument(client *http.Client) *http.Client {
	inner := client.Transport
	if inner == nil {
		inner = http.DefaultTransport
	}
	rt := promhttp.InstrumentRoundTripperCounter(t.requests,
		promhttp.InstrumentRoundTripperDuration(t.duration, inner))
	return &http.Client{
		Transport:     rt,
		CheckRedirect: client.CheckRedirect,
		Jar:           client.Jar,
		Timeout:       client.Timeout,
	}
}
