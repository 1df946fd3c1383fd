package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tflplan/schema"
)

func TestBuilder(t *testing.T) {
	b := NewBuilder()
	sg := b.Subgraph("main")
	in := sg.Tensor("in", schema.TensorTypeFloat32, 1, 4)
	w := sg.Const("w", schema.TensorTypeFloat32, make([]byte, 16), 4)
	out := sg.Tensor("out", schema.TensorTypeFloat32, 1, 4)
	sg.Input(in).Output(out).Op(schema.BuiltinOperatorMul, []int{in, w}, []int{out})
	sg.Op(schema.BuiltinOperatorMul, []int{out, w}, []int{out})

	m := b.Model()
	require.Len(t, m.Subgraphs, 1)
	assert.Len(t, m.OperatorCodes, 1, "opcodes are shared by kind")
	assert.Len(t, m.Buffers, 2)
	assert.Equal(t, uint32(1), m.Subgraphs[0].Tensors[w].Buffer)
	assert.Equal(t, []int32{0}, m.Subgraphs[0].Inputs)
	assert.Equal(t, []int32{2}, m.Subgraphs[0].Outputs)
}

func TestBuilderLargeOpcode(t *testing.T) {
	b := NewBuilder()
	sg := b.Subgraph("main")
	x := sg.Tensor("x", schema.TensorTypeInt8, 1)
	sg.Input(x).Output(x).Op(schema.BuiltinOperatorCallOnce, nil, nil)

	code := b.Model().OperatorCodes[0]
	assert.Equal(t, int8(schema.BuiltinOperatorPlaceholderForGreaterOpCodes), code.DeprecatedBuiltinCode)
	assert.Equal(t, schema.BuiltinOperatorCallOnce, code.Kind())
}

func TestRandomModel(t *testing.T) {
	rng := NewRNG(4711)

	m := rng.Model(GraphShape{Operators: 20, Inputs: 2, ConstantRate: 0.5})

	require.Len(t, m.Subgraphs, 1)
	sg := m.Subgraphs[0]
	assert.Len(t, sg.Operators, 20)
	assert.Len(t, sg.Inputs, 2)
	require.Len(t, sg.Outputs, 1)
	assert.Equal(t, sg.Operators[19].Outputs[0], sg.Outputs[0])

	for i, op := range sg.Operators {
		for _, in := range op.Inputs {
			assert.Less(t, in, op.Outputs[0], "operator %d reads a later tensor", i)
		}
	}
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	m1 := rng.Model(GraphShape{Operators: 8})
	rng.Reset()
	m2 := rng.Model(GraphShape{Operators: 8})

	assert.Equal(t, m1, m2)
	assert.Equal(t, int64(4711), rng.Seed())
}
