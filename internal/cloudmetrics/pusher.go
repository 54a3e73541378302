// Package cloudmetrics periodically pushes a small set of fleet-facing
// gauges (open reservations, queued instructions, active tenants) to an
// operator's Prometheus Pushgateway. It is additive to the OTel counters in
// internal/observability/metrics: those are pull/OTLP-scoped per request,
// this is a push-based side channel for dashboards that poll the gateway
// rather than scraping every instance.
package cloudmetrics

import (
	"context"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Pusher ships the current registry snapshot to a remote collector.
type Pusher interface {
	Push(ctx context.Context, registry *prometheus.Registry) error
}

// Config configures the pushgateway pusher. Endpoint empty disables pushing.
type Config struct {
	Endpoint    string
	Job         string
	Environment string
}

// NewPusher returns nil when cfg.Endpoint is unset so callers can skip
// wiring the background loop entirely rather than branch on a disabled flag.
func NewPusher(cfg Config) Pusher {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil
	}
	job := strings.TrimSpace(cfg.Job)
	if job == "" {
		job = "pspcore"
	}
	return &PushgatewayPusher{
		endpoint: endpoint,
		job:      job,
		grouping: map[string]string{"environment": strings.TrimSpace(cfg.Environment)},
	}
}

// PushgatewayPusher pushes to a Prometheus Pushgateway.
type PushgatewayPusher struct {
	endpoint string
	job      string
	grouping map[string]string
}

// Push sends the current registry metrics to the Pushgateway.
func (p *PushgatewayPusher) Push(ctx context.Context, registry *prometheus.Registry) error {
	if p == nil || registry == nil {
		return nil
	}
	if strings.TrimSpace(p.endpoint) == "" {
		return errors.New("pushgateway endpoint is required")
	}

	pusher := push.New(p.endpoint, p.job).Gatherer(registry)
	for key, value := range p.grouping {
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		pusher = pusher.Grouping(key, value)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	return pusher.PushContext(ctx)
}
