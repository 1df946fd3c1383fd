package graph

import (
	"fmt"

	"github.com/hupe1980/tflplan/internal/conv"
	"github.com/hupe1980/tflplan/schema"
)

// IndexError reports a model-wide reference that points outside its target
// list.
type IndexError struct {
	Subgraph int // -1 when not applicable
	Tensor   int // -1 when not applicable
	Field    string
	Index    int64
	Limit    int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("graph: %s %d out of range [0,%d)", e.Field, e.Index, e.Limit)
}

// UnresolvedSizeError reports a tensor whose byte size cannot be derived
// from its type and shape.
type UnresolvedSizeError struct {
	Subgraph int
	Tensor   int
	Reason   string
}

func (e *UnresolvedSizeError) Error() string {
	return fmt.Sprintf("graph: size of tensor %d in subgraph %d: %s", e.Tensor, e.Subgraph, e.Reason)
}

// Graph is a read-only view over a decoded model.
type Graph struct {
	model     *schema.Model
	subgraphs []*Subgraph
}

// New checks the model-wide references of m and returns a view over it.
// Tensor references inside operators are checked per subgraph by liveness
// analysis.
func New(m *schema.Model) (*Graph, error) {
	g := &Graph{model: m, subgraphs: make([]*Subgraph, len(m.Subgraphs))}
	buffers := len(m.Buffers)

	for i, idx := range m.MetadataBuffer {
		if idx < 0 || int(idx) >= buffers {
			return nil, &IndexError{Subgraph: -1, Tensor: -1, Field: fmt.Sprintf("metadata_buffer[%d]", i), Index: int64(idx), Limit: buffers}
		}
	}
	for i, md := range m.Metadata {
		if int64(md.Buffer) >= int64(buffers) {
			return nil, &IndexError{Subgraph: -1, Tensor: -1, Field: fmt.Sprintf("metadata %q buffer", m.Metadata[i].Name), Index: int64(md.Buffer), Limit: buffers}
		}
	}
	for i, sd := range m.SignatureDefs {
		if int64(sd.SubgraphIndex) >= int64(len(m.Subgraphs)) {
			return nil, &IndexError{Subgraph: -1, Tensor: -1, Field: fmt.Sprintf("signature %d subgraph", i), Index: int64(sd.SubgraphIndex), Limit: len(m.Subgraphs)}
		}
	}

	for si := range m.Subgraphs {
		sg := &m.Subgraphs[si]
		for ti, t := range sg.Tensors {
			if int64(t.Buffer) >= int64(buffers) {
				return nil, &IndexError{Subgraph: si, Tensor: ti, Field: "tensor buffer", Index: int64(t.Buffer), Limit: buffers}
			}
		}
		view := &Subgraph{index: si, model: m, sg: sg, ops: make([]Operator, len(sg.Operators))}
		for oi := range sg.Operators {
			op := &sg.Operators[oi]
			if int64(op.OpcodeIndex) >= int64(len(m.OperatorCodes)) {
				return nil, &IndexError{Subgraph: si, Tensor: -1, Field: fmt.Sprintf("operator %d opcode", oi), Index: int64(op.OpcodeIndex), Limit: len(m.OperatorCodes)}
			}
			code := &m.OperatorCodes[op.OpcodeIndex]
			view.ops[oi] = Operator{
				Step:          oi,
				Kind:          code.Kind(),
				Name:          code.Name(),
				Inputs:        ints(op.Inputs),
				Outputs:       ints(op.Outputs),
				Intermediates: ints(op.Intermediates),
			}
		}
		g.subgraphs[si] = view
	}
	return g, nil
}

// Model returns the underlying tree.
func (g *Graph) Model() *schema.Model { return g.model }

// NumSubgraphs returns the number of subgraphs.
func (g *Graph) NumSubgraphs() int { return len(g.subgraphs) }

// Subgraph returns the view of subgraph i.
func (g *Graph) Subgraph(i int) *Subgraph { return g.subgraphs[i] }

// Operator is one step of a subgraph with its tensor references widened to int.
type Operator struct {
	Step          int
	Kind          schema.BuiltinOperator
	Name          string
	Inputs        []int
	Outputs       []int
	Intermediates []int
}

// Subgraph is a read-only view of one subgraph. Methods taking a tensor
// index expect it to be in range; see HasTensor.
type Subgraph struct {
	index int
	model *schema.Model
	sg    *schema.SubGraph
	ops   []Operator
}

// Index returns the subgraph's position in the model.
func (s *Subgraph) Index() int { return s.index }

func (s *Subgraph) Name() string { return s.sg.Name }

func (s *Subgraph) NumTensors() int { return len(s.sg.Tensors) }

// Inputs returns the tensors live on entry.
func (s *Subgraph) Inputs() []int { return ints(s.sg.Inputs) }

// Outputs returns the tensors that must survive the subgraph.
func (s *Subgraph) Outputs() []int { return ints(s.sg.Outputs) }

// Operators returns the execution sequence. Step i of liveness analysis is
// Operators()[i].
func (s *Subgraph) Operators() []Operator { return s.ops }

// HasTensor reports whether t indexes a tensor of the subgraph.
func (s *Subgraph) HasTensor(t int) bool {
	return t >= 0 && t < len(s.sg.Tensors)
}

// Tensor returns the descriptor entry of tensor t.
func (s *Subgraph) Tensor(t int) *schema.Tensor {
	return &s.sg.Tensors[t]
}

// IsConstant reports whether t is backed by a data buffer. Buffer 0 is the
// empty sentinel and never makes a tensor constant.
func (s *Subgraph) IsConstant(t int) bool {
	b := s.sg.Tensors[t].Buffer
	return b > 0 && !s.model.Buffers[b].Empty()
}

// IsVariable reports whether t is persistent state across invocations.
func (s *Subgraph) IsVariable(t int) bool {
	return s.sg.Tensors[t].IsVariable
}

// TensorSize returns the byte size of t from its type and static shape.
// A tensor without shape is a scalar. INT4 elements are packed two per byte.
func (s *Subgraph) TensorSize(t int) (int64, error) {
	tensor := &s.sg.Tensors[t]
	unresolved := func(format string, args ...any) (int64, error) {
		return 0, &UnresolvedSizeError{Subgraph: s.index, Tensor: t, Reason: fmt.Sprintf(format, args...)}
	}

	bits := tensor.Type.ElementBits()
	if bits == 0 {
		return unresolved("type %s has no static element size", tensor.Type)
	}
	for i, d := range tensor.ShapeSignature {
		if d < 0 {
			return unresolved("dimension %d is dynamic", i)
		}
	}

	elements := int64(1)
	for i, d := range tensor.Shape {
		if d < 0 {
			return unresolved("dimension %d is dynamic", i)
		}
		var err error
		if elements, err = conv.MulInt64(elements, int64(d)); err != nil {
			return unresolved("%v", err)
		}
	}
	totalBits, err := conv.MulInt64(elements, int64(bits))
	if err != nil {
		return unresolved("%v", err)
	}
	return (totalBits + 7) / 8, nil
}

func ints(v []int32) []int {
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(x)
	}
	return out
}
