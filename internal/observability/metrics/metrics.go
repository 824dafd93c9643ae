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

// Metrics exposes application-level instruments.
type Metrics struct {
	initiations         metric.Int64Counter
	reconcileOutcomes   metric.Int64Counter
	amountMismatches    metric.Int64Counter
	webhookUnauthorized metric.Int64Counter
	issuanceFired       metric.Int64Counter
	rateLimitAllowed    metric.Int64Counter
	rateLimitDenied     metric.Int64Counter
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
		name = "memberpay"
	}
	meter := provider.Meter(name)

	initiations, err := meter.Int64Counter("memberpay_payment_initiations_total")
	if err != nil {
		return nil, err
	}
	reconcileOutcomes, err := meter.Int64Counter("memberpay_reconcile_outcomes_total")
	if err != nil {
		return nil, err
	}
	amountMismatches, err := meter.Int64Counter("memberpay_amount_mismatches_total")
	if err != nil {
		return nil, err
	}
	webhookUnauthorized, err := meter.Int64Counter("memberpay_webhook_unauthorized_total")
	if err != nil {
		return nil, err
	}
	issuanceFired, err := meter.Int64Counter("memberpay_issuance_fired_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("memberpay_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("memberpay_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		initiations:         initiations,
		reconcileOutcomes:   reconcileOutcomes,
		amountMismatches:    amountMismatches,
		webhookUnauthorized: webhookUnauthorized,
		issuanceFired:       issuanceFired,
		rateLimitAllowed:    rateLimitAllowed,
		rateLimitDenied:     rateLimitDenied,
	}, nil
}

// RecordInitiation increments payment initiation counts.
func (m *Metrics) RecordInitiation(ctx context.Context, purpose, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("purpose", strings.TrimSpace(purpose)),
		attribute.String("result", strings.TrimSpace(result)),
	)
	m.initiations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReconcileOutcome increments reconcile outcome counts per channel.
func (m *Metrics) RecordReconcileOutcome(ctx context.Context, source, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("source", strings.TrimSpace(source)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.reconcileOutcomes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAmountMismatch increments the operator-alertable mismatch count.
func (m *Metrics) RecordAmountMismatch(ctx context.Context, purpose string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("purpose", strings.TrimSpace(purpose)))
	m.amountMismatches.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordWebhookUnauthorized increments rejected webhook counts.
func (m *Metrics) RecordWebhookUnauthorized(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.webhookUnauthorized.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordIssuanceFired increments downstream issuance counts.
func (m *Metrics) RecordIssuanceFired(ctx context.Context, purpose string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("purpose", strings.TrimSpace(purpose)))
	m.issuanceFired.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments allowed request counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments denied request counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
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
	"purpose":  {},
	"result":   {},
	"source":   {},
	"outcome":  {},
	"endpoint": {},
	"reason":   {},
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
