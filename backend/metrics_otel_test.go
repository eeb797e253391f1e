package backend

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestOTelMetricsCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := NewOTelMetrics(OTelMetricsOptions{MeterProvider: provider})
	if err != nil {
		t.Fatalf("NewOTelMetrics: %v", err)
	}

	attrs := map[string]string{labelAgent: "A"}
	metrics.ProgressThreadStarted(attrs)
	metrics.ProgressThreadStopped(attrs)
	metrics.TransferPosted("write", attrs)
	metrics.TransferFailed("write", errors.New("boom"), attrs)
	metrics.NotifSent(attrs)
	metrics.NotifReceived(attrs)
	metrics.AmRejected("conn_check", attrs)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	want := map[string]int64{
		"nixl.backend.progress_thread.started": 1,
		"nixl.backend.progress_thread.stopped": 1,
		"nixl.backend.transfers.posted":        1,
		"nixl.backend.transfers.failed":        1,
		"nixl.backend.notifications.sent":      1,
		"nixl.backend.notifications.received":  1,
		"nixl.backend.am.rejected":             1,
	}
	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				got[m.Name] += dp.Value
			}
		}
	}
	for name, value := range want {
		if got[name] != value {
			t.Fatalf("counter %s: got %v want %v", name, got[name], value)
		}
	}
}
