package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tflplan/schema"
)

// Builder assembles a synthetic descriptor tree.
//
// Buffer 0 is the empty sentinel buffer every converter emits; tensors that
// reference it are not constants.
type Builder struct {
	m *schema.Model
}

// NewBuilder returns a builder for an empty model.
func NewBuilder() *Builder {
	return &Builder{m: &schema.Model{
		Version:       3,
		OperatorCodes: []schema.OperatorCode{},
		Subgraphs:     []schema.SubGraph{},
		Description:   "synthetic",
		Buffers:       []schema.Buffer{{}},
	}}
}

// Model returns the assembled tree. Later builder calls keep mutating it.
func (b *Builder) Model() *schema.Model {
	return b.m
}

// Bytes encodes the assembled tree and fails the test on error.
func (b *Builder) Bytes(tb testing.TB) []byte {
	tb.Helper()
	raw, err := schema.Encode(b.m)
	require.NoError(tb, err)
	return raw
}

// Buffer appends a payload buffer and returns its index.
func (b *Builder) Buffer(data []byte) uint32 {
	b.m.Buffers = append(b.m.Buffers, schema.Buffer{Data: data})
	return uint32(len(b.m.Buffers) - 1)
}

// Metadata appends a metadata record pointing at a new buffer.
func (b *Builder) Metadata(name string, data []byte) {
	b.m.Metadata = append(b.m.Metadata, schema.Metadata{Name: name, Buffer: b.Buffer(data)})
}

func (b *Builder) opcode(kind schema.BuiltinOperator) uint32 {
	for i, c := range b.m.OperatorCodes {
		if c.Kind() == kind {
			return uint32(i)
		}
	}
	deprecated := kind
	if deprecated > schema.BuiltinOperatorPlaceholderForGreaterOpCodes {
		deprecated = schema.BuiltinOperatorPlaceholderForGreaterOpCodes
	}
	b.m.OperatorCodes = append(b.m.OperatorCodes, schema.OperatorCode{
		DeprecatedBuiltinCode: int8(deprecated),
		Version:               1,
		BuiltinCode:           kind,
	})
	return uint32(len(b.m.OperatorCodes) - 1)
}

// Subgraph appends an empty subgraph.
func (b *Builder) Subgraph(name string) *SubgraphBuilder {
	b.m.Subgraphs = append(b.m.Subgraphs, schema.SubGraph{
		Tensors:   []schema.Tensor{},
		Inputs:    []int32{},
		Outputs:   []int32{},
		Operators: []schema.Operator{},
		Name:      name,
	})
	return &SubgraphBuilder{b: b, index: len(b.m.Subgraphs) - 1}
}

// SubgraphBuilder appends tensors and operators to one subgraph.
type SubgraphBuilder struct {
	b     *Builder
	index int
}

// Index returns the subgraph's position in the model.
func (s *SubgraphBuilder) Index() int {
	return s.index
}

func (s *SubgraphBuilder) sg() *schema.SubGraph {
	return &s.b.m.Subgraphs[s.index]
}

func (s *SubgraphBuilder) add(t schema.Tensor) int {
	sg := s.sg()
	sg.Tensors = append(sg.Tensors, t)
	return len(sg.Tensors) - 1
}

// Tensor appends an activation tensor and returns its index.
func (s *SubgraphBuilder) Tensor(name string, typ schema.TensorType, shape ...int32) int {
	return s.add(schema.Tensor{Name: name, Type: typ, Shape: dims(shape)})
}

// Const appends a tensor backed by a new data buffer.
func (s *SubgraphBuilder) Const(name string, typ schema.TensorType, data []byte, shape ...int32) int {
	return s.add(schema.Tensor{Name: name, Type: typ, Shape: dims(shape), Buffer: s.b.Buffer(data)})
}

// Variable appends a variable tensor.
func (s *SubgraphBuilder) Variable(name string, typ schema.TensorType, shape ...int32) int {
	return s.add(schema.Tensor{Name: name, Type: typ, Shape: dims(shape), IsVariable: true})
}

// Dynamic appends a tensor whose signature marks dim as unknown.
func (s *SubgraphBuilder) Dynamic(name string, typ schema.TensorType, dim int, shape ...int32) int {
	sig := append([]int32(nil), shape...)
	sig[dim] = -1
	return s.add(schema.Tensor{Name: name, Type: typ, Shape: dims(shape), ShapeSignature: sig})
}

// Input marks tensors as subgraph inputs.
func (s *SubgraphBuilder) Input(ts ...int) *SubgraphBuilder {
	sg := s.sg()
	sg.Inputs = append(sg.Inputs, indices(ts)...)
	return s
}

// Output marks tensors as subgraph outputs.
func (s *SubgraphBuilder) Output(ts ...int) *SubgraphBuilder {
	sg := s.sg()
	sg.Outputs = append(sg.Outputs, indices(ts)...)
	return s
}

// Op appends an operator. Use schema.OptionalTensor for omitted inputs.
func (s *SubgraphBuilder) Op(kind schema.BuiltinOperator, inputs, outputs []int, intermediates ...int) *SubgraphBuilder {
	op := schema.Operator{
		OpcodeIndex: s.b.opcode(kind),
		Inputs:      indices(inputs),
		Outputs:     indices(outputs),
	}
	if len(intermediates) > 0 {
		op.Intermediates = indices(intermediates)
	}
	sg := s.sg()
	sg.Operators = append(sg.Operators, op)
	return s
}

func dims(shape []int32) []int32 {
	return append([]int32{}, shape...)
}

func indices(ts []int) []int32 {
	out := make([]int32, len(ts))
	for i, t := range ts {
		out[i] = int32(t)
	}
	return out
}
