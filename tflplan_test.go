package tflplan

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tflplan/internal/inject"
	"github.com/hupe1980/tflplan/plan"
	"github.com/hupe1980/tflplan/schema"
	"github.com/hupe1980/tflplan/testutil"
)

// chain builds t0 -> relu -> t1 -> logistic -> t2, then t3 = t0 + t2.
func chain(b *testutil.Builder, name string) *testutil.SubgraphBuilder {
	sg := b.Subgraph(name)
	t0 := sg.Tensor("t0", schema.TensorTypeUint8, 100)
	t1 := sg.Tensor("t1", schema.TensorTypeUint8, 50)
	t2 := sg.Tensor("t2", schema.TensorTypeUint8, 50)
	t3 := sg.Tensor("t3", schema.TensorTypeUint8, 50)
	sg.Input(t0).Output(t3).
		Op(schema.BuiltinOperatorRelu, []int{t0}, []int{t1}).
		Op(schema.BuiltinOperatorLogistic, []int{t1}, []int{t2}).
		Op(schema.BuiltinOperatorAdd, []int{t0, t2}, []int{t3})
	return sg
}

func scenario(t *testing.T) []byte {
	b := testutil.NewBuilder()
	chain(b, "main")
	return b.Bytes(t)
}

func TestPlan(t *testing.T) {
	ctx := context.Background()
	input := scenario(t)

	res, err := New(WithAlignment(1)).Plan(ctx, input)
	require.NoError(t, err)
	require.Len(t, res.Subgraphs, 1)

	sr := res.Subgraphs[0]
	assert.Equal(t, 0, sr.Index)
	assert.Equal(t, []plan.Record{
		{Tensor: 0, Arena: 0, Offset: 0, Size: 100},
		{Tensor: 1, Arena: 0, Offset: 100, Size: 50},
		{Tensor: 2, Arena: 0, Offset: 150, Size: 50},
		{Tensor: 3, Arena: 0, Offset: 100, Size: 50},
	}, sr.Plan.Records)
	assert.Equal(t, []int64{200}, sr.Plan.Sizes)
	assert.Equal(t, int64(250), sr.NaiveBytes)
	assert.Equal(t, plan.Interval{First: plan.BeforeStart, Last: 2}, sr.Lifetimes[0])
	assert.Equal(t, plan.Interval{First: 2, Last: plan.AfterEnd}, sr.Lifetimes[3])

	before, err := Load(input)
	require.NoError(t, err)
	after, err := Load(res.Output)
	require.NoError(t, err)

	assert.Equal(t, before.Subgraphs, after.Subgraphs)
	assert.Equal(t, before.Buffers, after.Buffers[:len(before.Buffers)])
	require.Len(t, after.Buffers, len(before.Buffers)+1)
	require.Len(t, after.Metadata, 1)
	assert.Equal(t, "tflplan/arena_plan/0", after.Metadata[0].Name)

	payload, ok := inject.Lookup(after, 0)
	require.True(t, ok)
	assert.Equal(t, plan.Encode(sr.Plan), payload)
}

func TestPlanDefaultAlignment(t *testing.T) {
	res, err := New().Plan(context.Background(), scenario(t))
	require.NoError(t, err)

	for _, r := range res.Subgraphs[0].Plan.Records {
		assert.Zero(t, r.Offset%DefaultAlignment, "tensor %d", r.Tensor)
	}
	assert.Equal(t, []int64{226}, res.Subgraphs[0].Plan.Sizes)
}

func TestPlanDynamicDimension(t *testing.T) {
	b := testutil.NewBuilder()
	sg := b.Subgraph("main")
	x := sg.Tensor("x", schema.TensorTypeFloat32, 1, 8)
	y := sg.Dynamic("y", schema.TensorTypeFloat32, 0, 1, 8)
	sg.Input(x).Output(y).Op(schema.BuiltinOperatorRelu, []int{x}, []int{y})
	input := b.Bytes(t)

	res, err := New().Plan(context.Background(), input)
	assert.Nil(t, res)
	var pe *PlanningError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StageSize, pe.Stage)
	assert.Equal(t, 0, pe.Subgraph)
	assert.Equal(t, y, pe.Tensor)
	assert.Equal(t, ExitBadInput, ExitCode(err))

	res, err = New(WithSizeOverride(0, y, 128)).Plan(context.Background(), input)
	require.NoError(t, err)
	r, ok := res.Subgraphs[0].Plan.Record(y)
	require.True(t, ok)
	assert.Equal(t, int64(128), r.Size)
}

func TestPlanReplan(t *testing.T) {
	ctx := context.Background()
	p := New()

	first, err := p.Plan(ctx, scenario(t))
	require.NoError(t, err)
	second, err := p.Plan(ctx, first.Output)
	require.NoError(t, err)

	assert.Equal(t, first.Subgraphs[0].Plan, second.Subgraphs[0].Plan)

	m, err := Load(second.Output)
	require.NoError(t, err)
	require.Len(t, m.Metadata, 1, "the planned record is replaced, not duplicated")
	payload, ok := inject.Lookup(m, 0)
	require.True(t, ok)
	assert.Equal(t, plan.Encode(first.Subgraphs[0].Plan), payload)
}

func TestPlanDeterministic(t *testing.T) {
	rng := testutil.NewRNG(7)
	b := testutil.NewBuilder()
	for i := 0; i < 6; i++ {
		chain(b, "branch")
	}
	m := b.Model()
	random := rng.Model(testutil.GraphShape{Operators: 40, Inputs: 2, MaxFanIn: 3, MaxTensorBytes: 4096, ConstantRate: 0.1})
	mergeSubgraph(m, random)
	input, err := Dump(m)
	require.NoError(t, err)

	want, err := New(WithParallelism(1)).Plan(context.Background(), input)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		got, err := New(WithParallelism(8)).Plan(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, want.Output, got.Output)
	}
}

// mergeSubgraph appends the only subgraph of src to dst.
func mergeSubgraph(dst, src *schema.Model) {
	opcodes := make([]uint32, len(src.OperatorCodes))
	for i, c := range src.OperatorCodes {
		opcodes[i] = uint32(len(dst.OperatorCodes))
		dst.OperatorCodes = append(dst.OperatorCodes, c)
	}
	buffers := make([]uint32, len(src.Buffers))
	for i, buf := range src.Buffers {
		if i == 0 {
			continue
		}
		buffers[i] = uint32(len(dst.Buffers))
		dst.Buffers = append(dst.Buffers, buf)
	}
	sg := src.Subgraphs[0]
	for i := range sg.Tensors {
		sg.Tensors[i].Buffer = buffers[sg.Tensors[i].Buffer]
	}
	for i := range sg.Operators {
		sg.Operators[i].OpcodeIndex = opcodes[sg.Operators[i].OpcodeIndex]
	}
	dst.Subgraphs = append(dst.Subgraphs, sg)
}

func TestPlanSelectedSubgraphs(t *testing.T) {
	b := testutil.NewBuilder()
	chain(b, "a")
	chain(b, "b")
	chain(b, "c")
	input := b.Bytes(t)

	res, err := New(WithSubgraphs(2, 0, 2)).Plan(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, res.Subgraphs, 2)
	assert.Equal(t, 0, res.Subgraphs[0].Index)
	assert.Equal(t, 2, res.Subgraphs[1].Index)

	m, err := Load(res.Output)
	require.NoError(t, err)
	_, ok := inject.Lookup(m, 1)
	assert.False(t, ok)
	_, ok = inject.Lookup(m, 2)
	assert.True(t, ok)
}

func TestPlanReportsLowestFailingSubgraph(t *testing.T) {
	b := testutil.NewBuilder()
	chain(b, "ok")
	for i := 0; i < 4; i++ {
		sg := b.Subgraph("dynamic")
		x := sg.Tensor("x", schema.TensorTypeInt8, 4)
		y := sg.Dynamic("y", schema.TensorTypeInt8, 0, 4)
		sg.Input(x).Output(y).Op(schema.BuiltinOperatorRelu, []int{x}, []int{y})
	}
	input := b.Bytes(t)

	for i := 0; i < 10; i++ {
		_, err := New(WithParallelism(4)).Plan(context.Background(), input)
		var pe *PlanningError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, 1, pe.Subgraph)
	}
}

func TestPlanErrors(t *testing.T) {
	readBeforeWrite := func(t *testing.T) []byte {
		b := testutil.NewBuilder()
		sg := b.Subgraph("main")
		x := sg.Tensor("x", schema.TensorTypeInt8, 4)
		y := sg.Tensor("y", schema.TensorTypeInt8, 4)
		z := sg.Tensor("z", schema.TensorTypeInt8, 4)
		sg.Input(x).Output(z).Op(schema.BuiltinOperatorAdd, []int{x, y}, []int{z})
		return b.Bytes(t)
	}

	withConstant := func(t *testing.T) []byte {
		b := testutil.NewBuilder()
		sg := b.Subgraph("main")
		x := sg.Tensor("x", schema.TensorTypeInt8, 4)
		y := sg.Tensor("y", schema.TensorTypeInt8, 4)
		w := sg.Const("w", schema.TensorTypeInt8, []byte{1, 2, 3, 4}, 4)
		sg.Input(x).Output(y).Op(schema.BuiltinOperatorAdd, []int{x, w}, []int{y})
		return b.Bytes(t)
	}

	tests := []struct {
		name  string
		input func(t *testing.T) []byte
		opts  []Option
		check func(t *testing.T, err error)
		exit  int
	}{
		{
			name:  "not a descriptor",
			input: func(*testing.T) []byte { return []byte("definitely not a model") },
			check: func(t *testing.T, err error) {
				var fe *FormatError
				require.ErrorAs(t, err, &fe)
				assert.Equal(t, StageDecode, fe.Stage)
				var de *schema.DecodeError
				assert.ErrorAs(t, err, &de)
			},
			exit: ExitBadInput,
		},
		{
			name:  "read before write",
			input: readBeforeWrite,
			check: func(t *testing.T, err error) {
				var ge *GraphConsistencyError
				require.ErrorAs(t, err, &ge)
				assert.Equal(t, StageLiveness, ge.Stage)
				assert.Equal(t, 0, ge.Subgraph)
				assert.Equal(t, 1, ge.Tensor)
			},
			exit: ExitBadInput,
		},
		{
			name:  "capacity",
			input: scenario,
			opts:  []Option{WithAlignment(1), WithArenaCapacity(0, 120)},
			check: func(t *testing.T, err error) {
				var pe *PlanningError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, StageArena, pe.Stage)
				assert.Equal(t, 1, pe.Tensor)
			},
			exit: ExitBadInput,
		},
		{
			name:  "subgraph out of range",
			input: scenario,
			opts:  []Option{WithSubgraphs(3)},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidArgument) },
			exit:  ExitUsage,
		},
		{
			name:  "no arenas",
			input: scenario,
			opts:  []Option{WithArenaCount(0)},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidArgument) },
			exit:  ExitUsage,
		},
		{
			name:  "capacity arena out of range",
			input: scenario,
			opts:  []Option{WithArenaCapacity(1, 64)},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidArgument) },
			exit:  ExitUsage,
		},
		{
			name:  "affinity arena out of range",
			input: scenario,
			opts:  []Option{WithAffinity(0, 1, 4)},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidArgument) },
			exit:  ExitUsage,
		},
		{
			name:  "affinity tensor out of range",
			input: scenario,
			opts:  []Option{WithAffinity(0, 99, 0)},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidArgument) },
			exit:  ExitUsage,
		},
		{
			name:  "affinity for constant tensor",
			input: withConstant,
			opts:  []Option{WithAffinity(0, 2, 0)},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidArgument) },
			exit:  ExitUsage,
		},
		{
			name:  "too many arenas",
			input: scenario,
			opts:  []Option{WithArenaCount(plan.MaxArenas + 1)},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidArgument) },
			exit:  ExitUsage,
		},
		{
			name:  "size override out of range",
			input: scenario,
			opts:  []Option{WithSizeOverride(0, 99, 8)},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidArgument) },
			exit:  ExitUsage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(tt.opts...).Plan(context.Background(), tt.input(t))
			assert.Nil(t, res)
			tt.check(t, err)
			assert.Equal(t, tt.exit, ExitCode(err))
		})
	}
}

func TestPlanCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New().Plan(ctx, scenario(t))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ExitInternal, ExitCode(err))
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	planned, err := New(WithAlignment(1)).Plan(ctx, scenario(t))
	require.NoError(t, err)

	t.Run("Planned", func(t *testing.T) {
		results, err := New().Verify(ctx, planned.Output)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, planned.Subgraphs[0].Plan, results[0].Plan)
		assert.Equal(t, planned.Subgraphs[0].Lifetimes, results[0].Lifetimes)
	})

	t.Run("Unplanned", func(t *testing.T) {
		_, err := New().Verify(ctx, scenario(t))
		var fe *FormatError
		require.ErrorAs(t, err, &fe)
		assert.ErrorIs(t, err, ErrNoPlan)
	})

	t.Run("Overlapping", func(t *testing.T) {
		m, err := Load(planned.Output)
		require.NoError(t, err)
		pl := *planned.Subgraphs[0].Plan
		pl.Records = append([]plan.Record(nil), pl.Records...)
		pl.Records[1].Offset = 0 // t1 is live while t0 still is
		m.Buffers[m.Metadata[0].Buffer].Data = plan.Encode(&pl)
		tampered, err := Dump(m)
		require.NoError(t, err)

		_, err = New().Verify(ctx, tampered)
		var pe *PlanningError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, StageVerify, pe.Stage)
		var ve *plan.VerifyError
		assert.ErrorAs(t, err, &ve)
	})

	t.Run("Malformed", func(t *testing.T) {
		m, err := Load(planned.Output)
		require.NoError(t, err)
		m.Buffers[m.Metadata[0].Buffer].Data = []byte{9}
		tampered, err := Dump(m)
		require.NoError(t, err)

		_, err = New().Verify(ctx, tampered)
		var fe *FormatError
		require.ErrorAs(t, err, &fe)
		assert.ErrorIs(t, err, plan.ErrMalformed)
	})
}

func TestMetricsAndLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	metrics := &BasicMetricsCollector{}

	b := testutil.NewBuilder()
	chain(b, "a")
	chain(b, "b")
	_, err := New(WithLogger(logger), WithMetricsCollector(metrics)).Plan(context.Background(), b.Bytes(t))
	require.NoError(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.RunCount)
	assert.Zero(t, stats.RunErrors)
	assert.Equal(t, int64(2), stats.PlanCount)
	// decode, graph, inject, serialize plus liveness, size, arena, verify per subgraph
	assert.Equal(t, int64(12), stats.StageCount)
	assert.Positive(t, stats.SavedBytes())

	out := buf.String()
	assert.Contains(t, out, `"msg":"subgraph planned"`)
	assert.Contains(t, out, `"stage":"arena"`)
	assert.Contains(t, out, `"msg":"planning completed"`)
}

func TestErrorMessages(t *testing.T) {
	err := &PlanningError{Stage: StageArena, Subgraph: 2, Tensor: 7, cause: assert.AnError}
	assert.Equal(t, "planning failed in arena (subgraph 2, tensor 7): "+assert.AnError.Error(), err.Error())
	assert.ErrorIs(t, err, assert.AnError)

	fe := &FormatError{Stage: StageDecode, Subgraph: -1, Tensor: -1}
	assert.Equal(t, "format error in decode", fe.Error())
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitInternal, ExitCode(&SerializationError{Stage: StageSerialize}))
}
