package gocoro

import "time"

// schedulerOptions holds configuration applied when a Scheduler is
// constructed by the Manager. Ported from eventloop/options.go's
// loopOptions/LoopOption pattern.
type schedulerOptions struct {
	logger         Logger
	metricsEnabled bool
	stackSizeHint  int
}

// SchedulerOption configures a Scheduler at construction time.
type SchedulerOption interface {
	applyScheduler(*schedulerOptions)
}

type schedulerOptionFunc func(*schedulerOptions)

func (f schedulerOptionFunc) applyScheduler(o *schedulerOptions) { f(o) }

// WithLogger attaches a structured Logger to a Scheduler, overriding the
// package-level logger installed via SetStructuredLogger.
func WithLogger(logger Logger) SchedulerOption {
	return schedulerOptionFunc(func(o *schedulerOptions) { o.logger = logger })
}

// WithMetrics enables per-scheduler resume-latency, ready-queue-depth, and
// TPS tracking, retrievable via Scheduler.Metrics(). Disabled by default —
// recording a sample on every resume is cheap but not free.
func WithMetrics(enabled bool) SchedulerOption {
	return schedulerOptionFunc(func(o *schedulerOptions) { o.metricsEnabled = enabled })
}

// WithStackSizeHint records co_stack_size as a goroutine
// stack-growth hint. Go goroutines start at a few KiB and grow on demand,
// so unlike the source design this never bounds anything; the value is
// stored on the scheduler options and nothing else reads it.
func WithStackSizeHint(bytes int) SchedulerOption {
	return schedulerOptionFunc(func(o *schedulerOptions) { o.stackSizeHint = bytes })
}

func resolveSchedulerOptions(opts []SchedulerOption) *schedulerOptions {
	cfg := &schedulerOptions{stackSizeHint: DefaultStackSize}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.applyScheduler(cfg)
	}
	return cfg
}

// managerOptions holds configuration applied when a Manager is built.
type managerOptions struct {
	numSchedulers int
	schedOpts     []SchedulerOption
}

// ManagerOption configures a Manager at construction time.
type ManagerOption interface {
	applyManager(*managerOptions)
}

type managerOptionFunc func(*managerOptions)

func (f managerOptionFunc) applyManager(o *managerOptions) { f(o) }

// WithSchedulerCount sets co_sched_num: the number of
// scheduler goroutines the Manager owns. n <= 0 means "use runtime.NumCPU()",
// matching the source design's "0 → CPU count" default.
func WithSchedulerCount(n int) ManagerOption {
	return managerOptionFunc(func(o *managerOptions) { o.numSchedulers = n })
}

// WithSchedulerOptions forwards SchedulerOptions to every Scheduler the
// Manager creates.
func WithSchedulerOptions(opts ...SchedulerOption) ManagerOption {
	return managerOptionFunc(func(o *managerOptions) { o.schedOpts = append(o.schedOpts, opts...) })
}

func resolveManagerOptions(opts []ManagerOption) *managerOptions {
	cfg := &managerOptions{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.applyManager(cfg)
	}
	return cfg
}

// Default tuning constants, named after the process-level tuning flags.
const (
	// DefaultStackSize is the default co_stack_size hint in bytes.
	DefaultStackSize = 1 << 20
	// DefaultTCPMaxRecvSize is the default tcp_max_recv_size (Config only;
	// netco's recv loops do not chunk by it).
	DefaultTCPMaxRecvSize = 1 << 20
	// DefaultTCPMaxSendSize is the default tcp_max_send_size (Config only;
	// netco's send loops do not chunk by it).
	DefaultTCPMaxSendSize = 1 << 20
	// DefaultRPCConnTimeout is the default idle-connection reap deadline.
	DefaultRPCConnTimeout = 2 * time.Minute
	// DefaultRPCMaxMsgSize is the default rpc message-size cap (8 MiB,
	// matching coost's rpc_max_msg_size default).
	DefaultRPCMaxMsgSize = 8 << 20
)
