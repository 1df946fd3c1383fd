package schema

// FileIdentifier is stored at bytes 4..8 of every descriptor.
const FileIdentifier = "TFL3"

// Model is the root table of a descriptor.
//
// Every index-typed field (tensor to buffer, operator to operator code,
// metadata to buffer) addresses a slice of this tree. Indices are the
// format's native addressing and are never renumbered by this package.
type Model struct {
	Version        uint32
	OperatorCodes  []OperatorCode
	Subgraphs      []SubGraph
	Description    string
	Buffers        []Buffer
	MetadataBuffer []int32
	Metadata       []Metadata
	SignatureDefs  []SignatureDef
}

// OperatorCode names the kind of operator referenced by Operator.OpcodeIndex.
type OperatorCode struct {
	DeprecatedBuiltinCode int8
	CustomCode            string
	Version               int32
	BuiltinCode           BuiltinOperator
}

// Kind returns the effective builtin operator. Older writers only fill the
// int8 field, newer ones store a placeholder there and the real code in the
// int32 field; the larger of both is the operator.
func (c *OperatorCode) Kind() BuiltinOperator {
	deprecated := BuiltinOperator(c.DeprecatedBuiltinCode)
	if c.BuiltinCode > deprecated {
		return c.BuiltinCode
	}
	return deprecated
}

// Name returns the display name of the operator kind. Custom operators are
// named by their custom code.
func (c *OperatorCode) Name() string {
	if kind := c.Kind(); kind == BuiltinOperatorCustom && c.CustomCode != "" {
		return c.CustomCode
	}
	return c.Kind().String()
}

// SubGraph is one independently executable operator sequence.
type SubGraph struct {
	Tensors   []Tensor
	Inputs    []int32
	Outputs   []int32
	Operators []Operator
	Name      string
}

// Tensor describes one tensor of a subgraph.
type Tensor struct {
	Shape          []int32
	Type           TensorType
	Buffer         uint32
	Name           string
	Quantization   *QuantizationParameters
	IsVariable     bool
	ShapeSignature []int32
	HasRank        bool
}

// QuantizationParameters holds per-tensor or per-channel affine quantization.
type QuantizationParameters struct {
	Min                []float32
	Max                []float32
	Scale              []float32
	ZeroPoint          []int64
	QuantizedDimension int32
}

// Operator is one step of a subgraph's execution sequence.
type Operator struct {
	OpcodeIndex              uint32
	Inputs                   []int32
	Outputs                  []int32
	BuiltinOptions           *Options
	CustomOptions            []byte
	CustomOptionsFormat      int8
	MutatingVariableInputs   []bool
	Intermediates            []int32
	LargeCustomOptionsOffset uint64
	LargeCustomOptionsSize   uint64
}

// Buffer is an opaque payload referenced by index. Offset and Size locate
// data stored after the flatbuffer in models larger than 2 GiB.
type Buffer struct {
	Data   []byte
	Offset uint64
	Size   uint64
}

// Empty reports whether the buffer carries no payload.
func (b *Buffer) Empty() bool {
	return len(b.Data) == 0 && b.Size == 0
}

// Metadata is a named pointer to a buffer.
type Metadata struct {
	Name   string
	Buffer uint32
}

// TensorMap binds a signature name to a tensor index.
type TensorMap struct {
	Name        string
	TensorIndex uint32
}

// SignatureDef exposes named inputs and outputs of a subgraph.
type SignatureDef struct {
	Inputs        []TensorMap
	Outputs       []TensorMap
	SignatureKey  string
	SubgraphIndex uint32
}

// OptionalTensor marks an omitted operand in Operator.Inputs.
const OptionalTensor = -1
