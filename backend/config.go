package backend

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// EnvDisableDeviceCtx, when set to any non-empty value, disables the
// device-context workaround: device registrations skip pointer detection
// and the progress thread is never restarted on their behalf.
const EnvDisableDeviceCtx = "NIXL_DISABLE_CUDA_ADDR_WA"

const defaultProgressDelay = 100 * time.Millisecond

// Config carries the engine initialization parameters.
type Config struct {
	// AgentName is the local agent identifier advertised to peers in
	// control messages and notifications.
	AgentName string
	// NumWorkers is the number of fabric workers; fixed after construction.
	NumWorkers int
	// EnableProgressThread starts the background progress loop. Requires
	// the fabric to support the per-worker threading level.
	EnableProgressThread bool
	// ProgressDelay bounds the progress loop's poll wait.
	ProgressDelay time.Duration
	// DeviceList names the fabric devices to use, comma- or
	// space-separated. Empty uses the library default.
	DeviceList string
	// Logger defaults to a nop logger.
	Logger *zap.Logger
	// Metrics defaults to a nop hook.
	Metrics MetricHook
}

func (c *Config) withDefaults() (Config, error) {
	out := *c
	if out.AgentName == "" {
		return out, errors.New("backend: agent name required")
	}
	if out.NumWorkers < 1 {
		return out, errors.New("backend: at least one worker required")
	}
	if out.ProgressDelay <= 0 {
		out.ProgressDelay = defaultProgressDelay
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	if out.Metrics == nil {
		out.Metrics = nopMetrics{}
	}
	return out, nil
}

func (c *Config) devices() []string {
	return strings.FieldsFunc(c.DeviceList, func(r rune) bool {
		return r == ',' || r == ' '
	})
}
