package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tflplan/internal/inject"
	"github.com/hupe1980/tflplan/schema"
	"github.com/hupe1980/tflplan/testutil"
)

func model() *schema.Model {
	b := testutil.NewBuilder()
	sg := b.Subgraph("main")
	x := sg.Tensor("x", schema.TensorTypeInt8, 4)
	w := sg.Const("w", schema.TensorTypeInt8, []byte{1, 2, 3, 4}, 4)
	y := sg.Tensor("y", schema.TensorTypeInt8, 4)
	sg.Input(x).Output(y).Op(schema.BuiltinOperatorAdd, []int{x, w}, []int{y})
	b.Metadata("min_runtime_version", []byte("1.5.0"))
	return b.Model()
}

func TestSerializeRoundTrip(t *testing.T) {
	m := model()

	out, err := Serialize(m)
	require.NoError(t, err)
	assert.Equal(t, schema.FileIdentifier, string(out[4:8]))

	decoded, err := schema.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
}

func TestSerializeMutated(t *testing.T) {
	m := model()
	original, err := Serialize(m)
	require.NoError(t, err)

	_, err = inject.New(m).Inject(0, []byte{1, 1, 0})
	require.NoError(t, err)
	out, err := Serialize(m)
	require.NoError(t, err)

	decoded, err := schema.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)

	before, err := schema.Decode(original)
	require.NoError(t, err)
	assert.Equal(t, before.Buffers, decoded.Buffers[:len(before.Buffers)], "existing buffers keep their indices")
	assert.Equal(t, before.Subgraphs, decoded.Subgraphs)
}

func TestSerializeRejectsDanglingReferences(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *schema.Model)
	}{
		{"metadata", func(m *schema.Model) { m.Metadata[0].Buffer = 10 }},
		{"metadata_buffer", func(m *schema.Model) { m.MetadataBuffer = []int32{3} }},
		{"tensor", func(m *schema.Model) { m.Subgraphs[0].Tensors[1].Buffer = 10 }},
		{"opcode", func(m *schema.Model) { m.Subgraphs[0].Operators[0].OpcodeIndex = 1 }},
		{"signature", func(m *schema.Model) { m.SignatureDefs = []schema.SignatureDef{{SubgraphIndex: 2}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := model()
			tt.mutate(m)

			out, err := Serialize(m)
			assert.Nil(t, out)
			var pe *Error
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestSerializeWrapsEncodeErrors(t *testing.T) {
	m := model()
	m.Subgraphs[0].Operators[0].BuiltinOptions = &schema.Options{Type: schema.BuiltinOptions(200)}

	_, err := Serialize(m)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	var ee *schema.EncodeError
	assert.ErrorAs(t, err, &ee)
}
