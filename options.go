package tflplan

import (
	"fmt"
	"log/slog"
	"runtime"
	"slices"

	"github.com/hupe1980/tflplan/plan"
)

// DefaultAlignment is the byte alignment of planned offsets unless
// WithAlignment says otherwise.
const DefaultAlignment = 16

type options struct {
	arenas           int
	alignment        int64
	capacities       map[int]int64
	affinity         map[int]map[int][]int
	sizes            map[int]map[int]int64
	subgraphs        []int
	parallelism      int
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures a Planner.
type Option func(*options)

// WithArenaCount sets the number of independent arenas every subgraph is
// planned into. The default is 1.
func WithArenaCount(n int) Option {
	return func(o *options) {
		o.arenas = n
	}
}

// WithAlignment sets the byte alignment of every planned offset.
// 0 and 1 disable alignment.
func WithAlignment(bytes int64) Option {
	return func(o *options) {
		o.alignment = bytes
	}
}

// WithArenaCapacity limits arena to the given number of bytes. Tensors that
// do not fit spill into the next arena they may use.
func WithArenaCapacity(arena int, bytes int64) Option {
	return func(o *options) {
		if o.capacities == nil {
			o.capacities = make(map[int]int64)
		}
		o.capacities[arena] = bytes
	}
}

// WithAffinity restricts a tensor of a subgraph to the listed arenas, in
// preference order.
func WithAffinity(subgraph, tensor int, arenas ...int) Option {
	return func(o *options) {
		if o.affinity == nil {
			o.affinity = make(map[int]map[int][]int)
		}
		if o.affinity[subgraph] == nil {
			o.affinity[subgraph] = make(map[int][]int)
		}
		o.affinity[subgraph][tensor] = slices.Clone(arenas)
	}
}

// WithSizeOverride replaces the byte size derived from a tensor's shape.
// It is the only way to plan tensors with dynamic dimensions.
func WithSizeOverride(subgraph, tensor int, bytes int64) Option {
	return func(o *options) {
		if o.sizes == nil {
			o.sizes = make(map[int]map[int]int64)
		}
		if o.sizes[subgraph] == nil {
			o.sizes[subgraph] = make(map[int]int64)
		}
		o.sizes[subgraph][tensor] = bytes
	}
}

// WithSubgraphs plans only the listed subgraphs. By default every subgraph
// is planned.
func WithSubgraphs(indices ...int) Option {
	return func(o *options) {
		o.subgraphs = append(o.subgraphs, indices...)
	}
}

// WithParallelism limits the number of subgraphs planned at the same time.
// Values below 1 use GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithMetricsCollector configures a metrics collector.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &tflplan.BasicMetricsCollector{}
//	p := tflplan.New(tflplan.WithMetricsCollector(metrics))
//	// ... plan ...
//	stats := metrics.GetStats()
//	fmt.Printf("saved %d bytes\n", stats.SavedBytes())
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		arenas:           1,
		alignment:        DefaultAlignment,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.parallelism < 1 {
		o.parallelism = runtime.GOMAXPROCS(0)
	}
	slices.Sort(o.subgraphs)
	o.subgraphs = slices.Compact(o.subgraphs)
	return o
}

// capacityList turns the sparse capacity map into the per-arena list the
// allocator expects.
func (o *options) capacityList() ([]int64, error) {
	if len(o.capacities) == 0 {
		return nil, nil
	}
	caps := make([]int64, o.arenas)
	for arena, bytes := range o.capacities {
		if arena < 0 || arena >= o.arenas {
			return nil, fmt.Errorf("%w: capacity for arena %d of %d", ErrInvalidArgument, arena, o.arenas)
		}
		if bytes < 0 {
			return nil, fmt.Errorf("%w: negative capacity for arena %d", ErrInvalidArgument, arena)
		}
		caps[arena] = bytes
	}
	return caps, nil
}

// selected returns the subgraphs to plan out of n.
func (o *options) selected(n int) ([]int, error) {
	if len(o.subgraphs) == 0 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	for _, i := range o.subgraphs {
		if i < 0 || i >= n {
			return nil, fmt.Errorf("%w: subgraph %d of %d", ErrInvalidArgument, i, n)
		}
	}
	return o.subgraphs, nil
}

func (o *options) validate() error {
	if o.arenas < 1 || o.arenas > plan.MaxArenas {
		return fmt.Errorf("%w: %d arenas, want 1 to %d", ErrInvalidArgument, o.arenas, plan.MaxArenas)
	}
	if o.alignment < 0 {
		return fmt.Errorf("%w: alignment %d", ErrInvalidArgument, o.alignment)
	}
	for sg, tensors := range o.sizes {
		for t, bytes := range tensors {
			if bytes < 0 {
				return fmt.Errorf("%w: negative size for tensor %d of subgraph %d", ErrInvalidArgument, t, sg)
			}
		}
	}
	_, err := o.capacityList()
	return err
}
