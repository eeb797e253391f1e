package backend

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetricsOptions configures NewOTelMetrics.
type OTelMetricsOptions struct {
	MeterProvider          metric.MeterProvider
	Meter                  metric.Meter
	InstrumentationName    string
	InstrumentationVersion string
}

var _ MetricHook = (*OTelMetrics)(nil)

// OTelMetrics implements MetricHook using OpenTelemetry counters.
type OTelMetrics struct {
	pthrStarted metric.Int64Counter
	pthrStopped metric.Int64Counter
	xferPosted  metric.Int64Counter
	xferFailed  metric.Int64Counter
	notifSent   metric.Int64Counter
	notifRecv   metric.Int64Counter
	amRejected  metric.Int64Counter
}

// NewOTelMetrics constructs a MetricHook that emits OpenTelemetry counter
// measurements.
func NewOTelMetrics(opts OTelMetricsOptions) (*OTelMetrics, error) {
	meter := opts.Meter
	if meter == nil {
		provider := opts.MeterProvider
		if provider == nil {
			provider = otel.GetMeterProvider()
		}
		name := opts.InstrumentationName
		if name == "" {
			name = "github.com/w1ldptr/nixl/backend"
		}
		meter = provider.Meter(name, metric.WithInstrumentationVersion(opts.InstrumentationVersion))
	}

	m := &OTelMetrics{}
	var err error
	if m.pthrStarted, err = meter.Int64Counter("nixl.backend.progress_thread.started"); err != nil {
		return nil, err
	}
	if m.pthrStopped, err = meter.Int64Counter("nixl.backend.progress_thread.stopped"); err != nil {
		return nil, err
	}
	if m.xferPosted, err = meter.Int64Counter("nixl.backend.transfers.posted"); err != nil {
		return nil, err
	}
	if m.xferFailed, err = meter.Int64Counter("nixl.backend.transfers.failed"); err != nil {
		return nil, err
	}
	if m.notifSent, err = meter.Int64Counter("nixl.backend.notifications.sent"); err != nil {
		return nil, err
	}
	if m.notifRecv, err = meter.Int64Counter("nixl.backend.notifications.received"); err != nil {
		return nil, err
	}
	if m.amRejected, err = meter.Int64Counter("nixl.backend.am.rejected"); err != nil {
		return nil, err
	}
	return m, nil
}

func otelAttrs(attrs map[string]string, extra ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs)+len(extra))
	for k, v := range attrs {
		out = append(out, attribute.String(k, v))
	}
	return append(out, extra...)
}

func (m *OTelMetrics) ProgressThreadStarted(attrs map[string]string) {
	m.pthrStarted.Add(context.Background(), 1, metric.WithAttributes(otelAttrs(attrs)...))
}

func (m *OTelMetrics) ProgressThreadStopped(attrs map[string]string) {
	m.pthrStopped.Add(context.Background(), 1, metric.WithAttributes(otelAttrs(attrs)...))
}

func (m *OTelMetrics) TransferPosted(op string, attrs map[string]string) {
	m.xferPosted.Add(context.Background(), 1,
		metric.WithAttributes(otelAttrs(attrs, attribute.String(labelOp, op))...))
}

func (m *OTelMetrics) TransferFailed(op string, err error, attrs map[string]string) {
	kvs := otelAttrs(attrs, attribute.String(labelOp, op))
	if err != nil {
		kvs = append(kvs, attribute.String("error", err.Error()))
	}
	m.xferFailed.Add(context.Background(), 1, metric.WithAttributes(kvs...))
}

func (m *OTelMetrics) NotifSent(attrs map[string]string) {
	m.notifSent.Add(context.Background(), 1, metric.WithAttributes(otelAttrs(attrs)...))
}

func (m *OTelMetrics) NotifReceived(attrs map[string]string) {
	m.notifRecv.Add(context.Background(), 1, metric.WithAttributes(otelAttrs(attrs)...))
}

func (m *OTelMetrics) AmRejected(kind string, attrs map[string]string) {
	m.amRejected.Add(context.Background(), 1,
		metric.WithAttributes(otelAttrs(attrs, attribute.String(labelKind, kind))...))
}
