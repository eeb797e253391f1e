package backend

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsOptions configures NewPrometheusMetrics.
type PrometheusMetricsOptions struct {
	Registerer  prometheus.Registerer
	Namespace   string
	Subsystem   string
	ConstLabels prometheus.Labels
}

var _ MetricHook = (*PrometheusMetrics)(nil)

// PrometheusMetrics implements MetricHook using Prometheus counters.
type PrometheusMetrics struct {
	pthrStarted *prometheus.CounterVec
	pthrStopped *prometheus.CounterVec
	xferPosted  *prometheus.CounterVec
	xferFailed  *prometheus.CounterVec
	notifSent   *prometheus.CounterVec
	notifRecv   *prometheus.CounterVec
	amRejected  *prometheus.CounterVec
}

var (
	engineLabelKeys = []string{labelAgent}
	opLabelKeys     = []string{labelAgent, labelOp}
	kindLabelKeys   = []string{labelAgent, labelKind}
)

// NewPrometheusMetrics constructs a MetricHook backed by Prometheus counters.
func NewPrometheusMetrics(opts PrometheusMetricsOptions) (*PrometheusMetrics, error) {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	counter := func(name, help string, labels []string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: opts.ConstLabels,
		}, labels)
	}

	p := &PrometheusMetrics{
		pthrStarted: counter("nixl_backend_progress_thread_started_total",
			"Number of times the progress thread started", engineLabelKeys),
		pthrStopped: counter("nixl_backend_progress_thread_stopped_total",
			"Number of times the progress thread stopped", engineLabelKeys),
		xferPosted: counter("nixl_backend_transfers_posted_total",
			"Number of transfer post operations accepted", opLabelKeys),
		xferFailed: counter("nixl_backend_transfers_failed_total",
			"Number of transfer post operations drained on error", opLabelKeys),
		notifSent: counter("nixl_backend_notifications_sent_total",
			"Number of notification sends completed", engineLabelKeys),
		notifRecv: counter("nixl_backend_notifications_received_total",
			"Number of notifications delivered by the fabric", engineLabelKeys),
		amRejected: counter("nixl_backend_am_rejected_total",
			"Number of active messages rejected by validation", kindLabelKeys),
	}

	for _, c := range []**prometheus.CounterVec{
		&p.pthrStarted, &p.pthrStopped, &p.xferPosted, &p.xferFailed,
		&p.notifSent, &p.notifRecv, &p.amRejected,
	} {
		registered, err := registerCounterVec(reg, *c)
		if err != nil {
			return nil, err
		}
		*c = registered
	}
	return p, nil
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func labelValues(attrs map[string]string, keys []string) prometheus.Labels {
	out := make(prometheus.Labels, len(keys))
	for _, key := range keys {
		out[key] = attrs[key]
	}
	return out
}

func (p *PrometheusMetrics) ProgressThreadStarted(attrs map[string]string) {
	p.pthrStarted.With(labelValues(attrs, engineLabelKeys)).Inc()
}

func (p *PrometheusMetrics) ProgressThreadStopped(attrs map[string]string) {
	p.pthrStopped.With(labelValues(attrs, engineLabelKeys)).Inc()
}

func (p *PrometheusMetrics) TransferPosted(op string, attrs map[string]string) {
	merged := withLabel(attrs, labelOp, op)
	p.xferPosted.With(labelValues(merged, opLabelKeys)).Inc()
}

func (p *PrometheusMetrics) TransferFailed(op string, err error, attrs map[string]string) {
	merged := withLabel(attrs, labelOp, op)
	p.xferFailed.With(labelValues(merged, opLabelKeys)).Inc()
}

func (p *PrometheusMetrics) NotifSent(attrs map[string]string) {
	p.notifSent.With(labelValues(attrs, engineLabelKeys)).Inc()
}

func (p *PrometheusMetrics) NotifReceived(attrs map[string]string) {
	p.notifRecv.With(labelValues(attrs, engineLabelKeys)).Inc()
}

func (p *PrometheusMetrics) AmRejected(kind string, attrs map[string]string) {
	merged := withLabel(attrs, labelKind, kind)
	p.amRejected.With(labelValues(merged, kindLabelKeys)).Inc()
}

func withLabel(attrs map[string]string, key, value string) map[string]string {
	merged := make(map[string]string, len(attrs)+1)
	for k, v := range attrs {
		merged[k] = v
	}
	merged[key] = value
	return merged
}
