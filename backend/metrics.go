package backend

// MetricHook captures engine telemetry events. Implementations must be safe
// for concurrent use: transfer counters fire on caller threads while the
// progress-thread counters fire from engine lifecycle paths.
type MetricHook interface {
	ProgressThreadStarted(attrs map[string]string)
	ProgressThreadStopped(attrs map[string]string)
	TransferPosted(op string, attrs map[string]string)
	TransferFailed(op string, err error, attrs map[string]string)
	NotifSent(attrs map[string]string)
	NotifReceived(attrs map[string]string)
	AmRejected(kind string, attrs map[string]string)
}

const (
	labelAgent = "agent"
	labelOp    = "op"
	labelKind  = "kind"
)

func (e *Engine) metricAttrs() map[string]string {
	return map[string]string{labelAgent: e.cfg.AgentName}
}

type nopMetrics struct{}

func (nopMetrics) ProgressThreadStarted(map[string]string)         {}
func (nopMetrics) ProgressThreadStopped(map[string]string)         {}
func (nopMetrics) TransferPosted(string, map[string]string)        {}
func (nopMetrics) TransferFailed(string, error, map[string]string) {}
func (nopMetrics) NotifSent(map[string]string)                     {}
func (nopMetrics) NotifReceived(map[string]string)                 {}
func (nopMetrics) AmRejected(string, map[string]string)            {}
