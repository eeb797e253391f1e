package ucx

import "github.com/w1ldptr/nixl/internal/capi"

// MTLevel selects how the context may be shared between threads.
type MTLevel = capi.MTLevel

const (
	// MTSingle permits a single thread to drive the context.
	MTSingle = capi.MTSingle
	// MTContext permits multiple threads to share one worker.
	MTContext = capi.MTContext
	// MTWorker permits distinct threads to drive distinct workers.
	MTWorker = capi.MTWorker
)

// ContextConfig controls context creation.
type ContextConfig struct {
	// Devices restricts the fabric to the named devices; empty uses the
	// library's default selection.
	Devices []string
	// MTLevel is the requested threading level. Creation fails if the
	// fabric cannot honour it.
	MTLevel MTLevel
	// Eventing requests event-fd arming support on workers; required when
	// a background progress loop will park in poll.
	Eventing bool
}

// Context owns process-wide fabric state: the request-tail layout, the
// threading level and the device selection. It must outlive every worker,
// endpoint, memory handle and rkey created from it.
type Context struct {
	c *capi.Context
}

// NewContext initializes the fabric.
func NewContext(cfg ContextConfig) (*Context, error) {
	c, err := capi.NewContext(capi.ContextParams{
		Devices:  cfg.Devices,
		MTLevel:  cfg.MTLevel,
		Eventing: cfg.Eventing,
	})
	if err != nil {
		return nil, err
	}
	return &Context{c: c}, nil
}

// MTLevelSupported reports whether the fabric can honour the threading level.
func MTLevelSupported(level MTLevel) bool {
	return capi.MTLevelSupported(level)
}

// Close destroys the context. Callers must release all derived resources
// first; the fabric aborts otherwise.
func (c *Context) Close() {
	if c == nil || c.c == nil {
		return
	}
	c.c.Close()
	c.c = nil
}
