package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes the PSP-core instruments: one counter per pipeline stage,
// labeled with the dimensions an operator actually filters on (rail,
// provider, terminal status, classification outcome).
type Metrics struct {
	ledgerPostings       metric.Int64Counter
	fundingGateDecisions metric.Int64Counter
	instructionsTotal    metric.Int64Counter
	reconciliationTotal  metric.Int64Counter
	liabilityTotal       metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "pspcore"
	}
	meter := provider.Meter(name)

	ledgerPostings, err := meter.Int64Counter("pspcore_ledger_postings_total")
	if err != nil {
		return nil, err
	}
	fundingGateDecisions, err := meter.Int64Counter("pspcore_funding_gate_decisions_total")
	if err != nil {
		return nil, err
	}
	instructionsTotal, err := meter.Int64Counter("pspcore_payment_instructions_total")
	if err != nil {
		return nil, err
	}
	reconciliationTotal, err := meter.Int64Counter("pspcore_reconciliation_records_total")
	if err != nil {
		return nil, err
	}
	liabilityTotal, err := meter.Int64Counter("pspcore_liability_classifications_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ledgerPostings:       ledgerPostings,
		fundingGateDecisions: fundingGateDecisions,
		instructionsTotal:    instructionsTotal,
		reconciliationTotal:  reconciliationTotal,
		liabilityTotal:       liabilityTotal,
	}, nil
}

// RecordLedgerPosting increments ledger posting counts by entry type
// (debit/credit) and the entry's source_type (e.g. payment_instruction).
func (m *Metrics) RecordLedgerPosting(ctx context.Context, entryType, sourceType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("entry_type", strings.TrimSpace(entryType)),
		attribute.String("source_type", strings.TrimSpace(sourceType)),
	)
	m.ledgerPostings.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordFundingGateDecision increments gate evaluations by gate stage
// (commit/pay) and outcome (approved/blocked).
func (m *Metrics) RecordFundingGateDecision(ctx context.Context, gate, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("gate", strings.TrimSpace(gate)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.fundingGateDecisions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordInstructionTransition increments payment instruction counts by rail,
// provider, and the terminal (or intermediate) status reached.
func (m *Metrics) RecordInstructionTransition(ctx context.Context, rail, provider, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("rail", strings.TrimSpace(rail)),
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.instructionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReconciliation increments reconciliation run counts by provider
// (the reconciler passes the rail) and run outcome (clean/partial).
func (m *Metrics) RecordReconciliation(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.reconciliationTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLiabilityClassification increments classification counts by rail and
// liability party assigned (client/psp).
func (m *Metrics) RecordLiabilityClassification(ctx context.Context, rail, liabilityParty string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("rail", strings.TrimSpace(rail)),
		attribute.String("liability_party", strings.TrimSpace(liabilityParty)),
	)
	m.liabilityTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"entry_type":      {},
	"source_type":     {},
	"gate":            {},
	"outcome":         {},
	"rail":            {},
	"provider":        {},
	"status":          {},
	"liability_party": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
