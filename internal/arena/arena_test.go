package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tflplan/internal/graph"
	"github.com/hupe1980/tflplan/internal/liveness"
	"github.com/hupe1980/tflplan/plan"
	"github.com/hupe1980/tflplan/testutil"
)

func TestPlanScenario(t *testing.T) {
	lifetimes := plan.Lifetimes{
		0: {First: plan.BeforeStart, Last: 2},
		1: {First: 0, Last: 1},
		2: {First: 1, Last: 2},
	}
	sizes := map[int]int64{0: 100, 1: 50, 2: 50}

	p, err := Plan(lifetimes, sizes, Config{Arenas: 1})
	require.NoError(t, err)
	require.NoError(t, plan.Verify(p, lifetimes))

	// T1 is last read at step 1 where T2 is written, so they cannot share.
	assert.Equal(t, []plan.Record{
		{Tensor: 0, Arena: 0, Offset: 0, Size: 100},
		{Tensor: 1, Arena: 0, Offset: 100, Size: 50},
		{Tensor: 2, Arena: 0, Offset: 150, Size: 50},
	}, p.Records)
	assert.Equal(t, []int64{200}, p.Sizes)
}

func TestPlanReusesAfterLastRead(t *testing.T) {
	lifetimes := plan.Lifetimes{
		0: {First: plan.BeforeStart, Last: 0},
		1: {First: 0, Last: 1},
		2: {First: 1, Last: 2},
		3: {First: 2, Last: plan.AfterEnd},
	}
	sizes := map[int]int64{0: 64, 1: 64, 2: 64, 3: 64}

	p, err := Plan(lifetimes, sizes, Config{Arenas: 1})
	require.NoError(t, err)
	require.NoError(t, plan.Verify(p, lifetimes))

	r0, _ := p.Record(0)
	r2, _ := p.Record(2)
	r1, _ := p.Record(1)
	r3, _ := p.Record(3)
	assert.Equal(t, r0.Offset, r2.Offset, "T2 starts after T0 ends")
	assert.Equal(t, r1.Offset, r3.Offset, "T3 starts after T1 ends")
	assert.Equal(t, []int64{128}, p.Sizes)
	assert.Equal(t, int64(128), LowerBound(lifetimes, sizes))
}

func TestPlanAlignment(t *testing.T) {
	lifetimes := plan.Lifetimes{
		0: {First: 0, Last: 1},
		1: {First: 0, Last: 1},
		2: {First: 0, Last: 1},
	}
	sizes := map[int]int64{0: 10, 1: 10, 2: 3}

	p, err := Plan(lifetimes, sizes, Config{Arenas: 1, Alignment: 16})
	require.NoError(t, err)
	for _, r := range p.Records {
		assert.Zero(t, r.Offset%16, "tensor %d", r.Tensor)
	}
	assert.Equal(t, []int64{35}, p.Sizes)
}

func TestPlanFillsGaps(t *testing.T) {
	// 3 takes over the bytes 1 releases after step 1.
	lifetimes := plan.Lifetimes{
		0: {First: 0, Last: 4},
		1: {First: 0, Last: 1},
		2: {First: 0, Last: 4},
		3: {First: 2, Last: 3},
	}
	sizes := map[int]int64{0: 100, 1: 80, 2: 60, 3: 70}

	p, err := Plan(lifetimes, sizes, Config{Arenas: 1})
	require.NoError(t, err)
	require.NoError(t, plan.Verify(p, lifetimes))

	r1, _ := p.Record(1)
	r3, _ := p.Record(3)
	assert.Equal(t, r1.Offset, r3.Offset)
	assert.Equal(t, []int64{240}, p.Sizes)
}

func TestPlanAffinity(t *testing.T) {
	lifetimes := plan.Lifetimes{
		0: {First: 0, Last: 2},
		1: {First: 1, Last: 2},
		2: {First: 1, Last: 3},
	}
	sizes := map[int]int64{0: 32, 1: 16, 2: 8}

	p, err := Plan(lifetimes, sizes, Config{
		Arenas:   2,
		Affinity: map[int][]int{1: {1}},
	})
	require.NoError(t, err)
	require.NoError(t, plan.Verify(p, lifetimes))

	r0, _ := p.Record(0)
	r1, _ := p.Record(1)
	r2, _ := p.Record(2)
	assert.Equal(t, 0, r0.Arena)
	assert.Equal(t, 1, r1.Arena)
	assert.Equal(t, 0, r2.Arena, "unrestricted tensors prefer the first arena")
	assert.Equal(t, []int64{40, 16}, p.Sizes)
}

func TestPlanCapacitySpills(t *testing.T) {
	lifetimes := plan.Lifetimes{
		0: {First: 0, Last: 1},
		1: {First: 0, Last: 1},
		2: {First: 0, Last: 1},
	}
	sizes := map[int]int64{0: 64, 1: 64, 2: 64}

	p, err := Plan(lifetimes, sizes, Config{Arenas: 2, Capacities: []int64{128}})
	require.NoError(t, err)
	require.NoError(t, plan.Verify(p, lifetimes))
	assert.Equal(t, []int64{128, 64}, p.Sizes)

	_, err = Plan(lifetimes, sizes, Config{Arenas: 2, Capacities: []int64{128, 32}})
	var ce *CapacityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2, ce.Tensor)
	assert.Equal(t, []int{0, 1}, ce.Arenas)
}

func TestPlanErrors(t *testing.T) {
	lifetimes := plan.Lifetimes{0: {First: 0, Last: 0}}
	sizes := map[int]int64{0: 8}

	tests := []struct {
		name  string
		cfg   Config
		sizes map[int]int64
		err   error
	}{
		{"no arenas", Config{}, sizes, ErrInvalidConfig},
		{"too many arenas", Config{Arenas: plan.MaxArenas + 1}, sizes, ErrInvalidConfig},
		{"negative alignment", Config{Arenas: 1, Alignment: -4}, sizes, ErrInvalidConfig},
		{"too many capacities", Config{Arenas: 1, Capacities: []int64{1, 2}}, sizes, ErrInvalidConfig},
		{"negative capacity", Config{Arenas: 1, Capacities: []int64{-1}}, sizes, ErrInvalidConfig},
		{"affinity range", Config{Arenas: 1, Affinity: map[int][]int{0: {1}}}, sizes, ErrInvalidConfig},
		{"empty affinity", Config{Arenas: 1, Affinity: map[int][]int{0: {}}}, sizes, ErrInvalidConfig},
		{"missing size", Config{Arenas: 1}, map[int]int64{}, ErrMissingSize},
		{"negative size", Config{Arenas: 1}, map[int]int64{0: -1}, ErrMissingSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Plan(lifetimes, tt.sizes, tt.cfg)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestPlanEmpty(t *testing.T) {
	p, err := Plan(plan.Lifetimes{}, nil, Config{Arenas: 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0, 0}, p.Sizes)
	assert.Empty(t, p.Records)
	assert.NoError(t, plan.Verify(p, plan.Lifetimes{}))
}

func TestPlanRandomGraphs(t *testing.T) {
	rng := testutil.NewRNG(42)
	for i := 0; i < 50; i++ {
		m := rng.Model(testutil.GraphShape{
			Operators:      1 + rng.Intn(60),
			Inputs:         1 + rng.Intn(3),
			MaxFanIn:       3,
			MaxTensorBytes: 2048,
			ConstantRate:   0.2,
		})
		g, err := graph.New(m)
		require.NoError(t, err)
		view := g.Subgraph(0)

		lifetimes, err := liveness.Analyze(view)
		require.NoError(t, err)
		sizes := make(map[int]int64, len(lifetimes))
		for _, tensor := range lifetimes.Tensors() {
			sizes[tensor], err = view.TensorSize(tensor)
			require.NoError(t, err)
		}

		cfg := Config{Arenas: 1 + rng.Intn(2), Alignment: int64(1 << rng.Intn(5))}
		p, err := Plan(lifetimes, sizes, cfg)
		require.NoError(t, err)
		require.NoError(t, plan.Verify(p, lifetimes), "seed run %d", i)

		again, err := Plan(lifetimes, sizes, cfg)
		require.NoError(t, err)
		assert.Equal(t, plan.Encode(p), plan.Encode(again), "deterministic")

		if cfg.Arenas == 1 {
			assert.GreaterOrEqual(t, p.Sizes[0], LowerBound(lifetimes, sizes))
			assert.LessOrEqual(t, p.Total(), p.Naive()+int64(len(p.Records))*cfg.Alignment)
		}

		// Outputs never share bytes with anything written later.
		for _, out := range view.Outputs() {
			ro, _ := p.Record(out)
			for _, r := range p.Records {
				if r.Tensor == out || r.Arena != ro.Arena || lifetimes[r.Tensor].Last < lifetimes[out].First {
					continue
				}
				disjoint := r.End() <= ro.Offset || ro.End() <= r.Offset
				assert.True(t, disjoint, "output %d shares bytes with tensor %d", out, r.Tensor)
			}
		}
	}
}
