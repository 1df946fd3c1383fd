package tflplan

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/tflplan/internal/arena"
	"github.com/hupe1980/tflplan/internal/graph"
	"github.com/hupe1980/tflplan/internal/inject"
	"github.com/hupe1980/tflplan/internal/liveness"
	"github.com/hupe1980/tflplan/internal/patch"
	"github.com/hupe1980/tflplan/plan"
	"github.com/hupe1980/tflplan/schema"
)

// ErrNoPlan is returned by Verify when a descriptor carries no embedded plan
// for a requested subgraph.
var ErrNoPlan = errors.New("no embedded plan")

// Planner computes arena layouts for descriptors. A Planner holds no state
// between runs and may be used from several goroutines.
type Planner struct {
	opts options
}

// New returns a Planner configured by optFns.
func New(optFns ...Option) *Planner {
	return &Planner{opts: applyOptions(optFns)}
}

// SubgraphResult is the layout computed for one subgraph.
type SubgraphResult struct {
	Index      int
	Plan       *plan.Plan
	Lifetimes  plan.Lifetimes
	NaiveBytes int64
}

// Result is the outcome of a successful planning run.
type Result struct {
	// Output is the patched descriptor.
	Output []byte
	// Subgraphs holds the planned subgraphs in ascending index order.
	Subgraphs []SubgraphResult
}

// Plan decodes input, plans the selected subgraphs and returns the
// descriptor with the plans embedded. On error no output is returned.
// ctx is checked between stages.
func (p *Planner) Plan(ctx context.Context, input []byte) (res *Result, err error) {
	start := time.Now()
	log := p.opts.logger.WithInput(len(input))
	defer func() {
		p.opts.metricsCollector.RecordRun(time.Since(start), err)
		if res != nil {
			log.LogRun(ctx, len(res.Subgraphs), len(res.Output), nil)
		} else {
			log.LogRun(ctx, 0, 0, err)
		}
	}()

	if err := p.opts.validate(); err != nil {
		return nil, err
	}
	m, g, selected, err := p.open(ctx, log, input)
	if err != nil {
		return nil, err
	}

	results, err := p.planAll(ctx, log, g, selected)
	if err != nil {
		return nil, err
	}

	// Buffer indices are assigned in ascending subgraph order, never from
	// the concurrent part above.
	err = p.stage(ctx, log, StageInject, -1, func() error {
		in := inject.New(m)
		for _, r := range results {
			if _, err := in.Inject(r.Index, plan.Encode(r.Plan)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []byte
	err = p.stage(ctx, log, StageSerialize, -1, func() (err error) {
		out, err = patch.Serialize(m)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Result{Output: out, Subgraphs: results}, nil
}

// Verify re-checks the plans embedded in a planned descriptor against
// lifetimes computed from its graph. Without WithSubgraphs every subgraph
// carrying a plan is checked and at least one must.
func (p *Planner) Verify(ctx context.Context, input []byte) ([]SubgraphResult, error) {
	log := p.opts.logger.WithInput(len(input))
	_, g, selected, err := p.open(ctx, log, input)
	if err != nil {
		return nil, err
	}
	explicit := len(p.opts.subgraphs) > 0

	var results []SubgraphResult
	for _, i := range selected {
		sg := g.Subgraph(i)
		payload, ok := inject.Lookup(g.Model(), i)
		if !ok {
			if explicit {
				return nil, &FormatError{Stage: StageVerify, Subgraph: i, Tensor: -1, cause: ErrNoPlan}
			}
			continue
		}
		r, err := p.verifySubgraph(ctx, log.WithSubgraph(i), sg, payload)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if len(results) == 0 {
		return nil, &FormatError{Stage: StageVerify, Subgraph: -1, Tensor: -1, cause: ErrNoPlan}
	}
	return results, nil
}

func (p *Planner) verifySubgraph(ctx context.Context, log *Logger, sg *graph.Subgraph, payload []byte) (SubgraphResult, error) {
	r := SubgraphResult{Index: sg.Index()}
	lifetimes, sizes, err := p.analyze(ctx, log, sg)
	if err != nil {
		return r, err
	}
	err = p.stage(ctx, log, StageVerify, sg.Index(), func() error {
		pl, err := plan.Decode(payload)
		if err != nil {
			return err
		}
		if err := pl.SetSizes(sizes); err != nil {
			return err
		}
		if err := plan.Verify(pl, lifetimes); err != nil {
			return err
		}
		r.Plan = pl
		return nil
	})
	if err != nil {
		return r, err
	}
	r.Lifetimes = lifetimes
	r.NaiveBytes = r.Plan.Naive()
	return r, nil
}

// Load decodes a descriptor.
func Load(buf []byte) (*schema.Model, error) {
	m, err := schema.Decode(buf)
	if err != nil {
		return nil, translateError(StageDecode, -1, err)
	}
	return m, nil
}

// Dump encodes a descriptor tree after checking its cross references.
func Dump(m *schema.Model) ([]byte, error) {
	out, err := patch.Serialize(m)
	if err != nil {
		return nil, translateError(StageSerialize, -1, err)
	}
	return out, nil
}

// open runs the model-wide stages shared by Plan and Verify.
func (p *Planner) open(ctx context.Context, log *Logger, input []byte) (*schema.Model, *graph.Graph, []int, error) {
	var m *schema.Model
	err := p.stage(ctx, log, StageDecode, -1, func() (err error) {
		m, err = schema.Decode(input)
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}

	var g *graph.Graph
	err = p.stage(ctx, log, StageGraph, -1, func() (err error) {
		g, err = graph.New(m)
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}

	selected, err := p.opts.selected(g.NumSubgraphs())
	if err != nil {
		return nil, nil, nil, err
	}
	return m, g, selected, nil
}

// planAll plans the selected subgraphs concurrently. Each subgraph only
// reads the graph. When several fail, the failure of the lowest index is
// reported.
func (p *Planner) planAll(ctx context.Context, log *Logger, g *graph.Graph, selected []int) ([]SubgraphResult, error) {
	results := make([]SubgraphResult, len(selected))
	errs := make([]error, len(selected))

	var eg errgroup.Group
	eg.SetLimit(p.opts.parallelism)
	for i, index := range selected {
		eg.Go(func() error {
			results[i], errs[i] = p.planSubgraph(ctx, log.WithSubgraph(index), g.Subgraph(index))
			return nil
		})
	}
	_ = eg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (p *Planner) planSubgraph(ctx context.Context, log *Logger, sg *graph.Subgraph) (SubgraphResult, error) {
	r := SubgraphResult{Index: sg.Index()}
	lifetimes, sizes, err := p.analyze(ctx, log, sg)
	if err != nil {
		return r, err
	}

	var pl *plan.Plan
	err = p.stage(ctx, log, StageArena, sg.Index(), func() (err error) {
		cfg, err := p.arenaConfig(sg, lifetimes)
		if err != nil {
			return err
		}
		pl, err = arena.Plan(lifetimes, sizes, cfg)
		return err
	})
	if err != nil {
		return r, err
	}

	// A failure here is a defect of the allocator, but it is still reported
	// as a planning error rather than written out.
	err = p.stage(ctx, log, StageVerify, sg.Index(), func() error {
		return plan.Verify(pl, lifetimes)
	})
	if err != nil {
		return r, err
	}

	r.Plan = pl
	r.Lifetimes = lifetimes
	r.NaiveBytes = pl.Naive()
	log.LogPlan(ctx, len(pl.Records), pl.Sizes, r.NaiveBytes)
	p.opts.metricsCollector.RecordPlan(sg.Index(), pl.Total(), r.NaiveBytes)
	return r, nil
}

// analyze computes lifetimes and byte sizes of the planned tensors.
func (p *Planner) analyze(ctx context.Context, log *Logger, sg *graph.Subgraph) (plan.Lifetimes, map[int]int64, error) {
	var lifetimes plan.Lifetimes
	err := p.stage(ctx, log, StageLiveness, sg.Index(), func() (err error) {
		lifetimes, err = liveness.Analyze(sg)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	var sizes map[int]int64
	err = p.stage(ctx, log, StageSize, sg.Index(), func() (err error) {
		sizes, err = p.sizes(sg, lifetimes)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return lifetimes, sizes, nil
}

func (p *Planner) sizes(sg *graph.Subgraph, lifetimes plan.Lifetimes) (map[int]int64, error) {
	overrides := p.opts.sizes[sg.Index()]
	for t := range overrides {
		if !sg.HasTensor(t) {
			return nil, fmt.Errorf("%w: size override for tensor %d of subgraph %d with %d tensors",
				ErrInvalidArgument, t, sg.Index(), sg.NumTensors())
		}
	}

	sizes := make(map[int]int64, len(lifetimes))
	for _, t := range lifetimes.Tensors() {
		if size, ok := overrides[t]; ok {
			sizes[t] = size
			continue
		}
		size, err := sg.TensorSize(t)
		if err != nil {
			return nil, err
		}
		sizes[t] = size
	}
	return sizes, nil
}

// arenaConfig rejects affinities for tensors the subgraph does not plan:
// indices out of range, constants, variables and unused tensors.
func (p *Planner) arenaConfig(sg *graph.Subgraph, lifetimes plan.Lifetimes) (arena.Config, error) {
	caps, err := p.opts.capacityList()
	if err != nil {
		return arena.Config{}, err
	}
	affinity := p.opts.affinity[sg.Index()]
	for _, t := range slices.Sorted(maps.Keys(affinity)) {
		if !sg.HasTensor(t) {
			return arena.Config{}, fmt.Errorf("%w: affinity for tensor %d of subgraph %d with %d tensors",
				ErrInvalidArgument, t, sg.Index(), sg.NumTensors())
		}
		if _, ok := lifetimes[t]; !ok {
			return arena.Config{}, fmt.Errorf("%w: affinity for tensor %d of subgraph %d, which is not planned",
				ErrInvalidArgument, t, sg.Index())
		}
	}
	return arena.Config{
		Arenas:     p.opts.arenas,
		Alignment:  p.opts.alignment,
		Capacities: caps,
		Affinity:   affinity,
	}, nil
}

// stage runs fn as one named pipeline stage: it checks ctx first, then
// translates, logs and records the outcome.
func (p *Planner) stage(ctx context.Context, log *Logger, name string, subgraph int, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err := translateError(name, subgraph, fn())
	elapsed := time.Since(start)
	p.opts.metricsCollector.RecordStage(name, elapsed, err)
	log.LogStage(ctx, name, elapsed, err)
	return err
}
