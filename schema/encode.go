package schema

import (
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
)

// EncodeError reports a tree that cannot be written as a descriptor.
type EncodeError struct {
	Reason string
}

func (e *EncodeError) Error() string { return "schema: encode: " + e.Reason }

// bufferAlignment is the alignment of buffer payloads inside the descriptor.
const bufferAlignment = 16

// Encode serializes m into a fresh descriptor tagged with FileIdentifier.
// Every table, vector and string is rebuilt; nothing is patched in place.
func Encode(m *Model) (out []byte, err error) {
	if m == nil {
		return nil, &EncodeError{Reason: "nil model"}
	}
	defer func() {
		if r := recover(); r != nil {
			out = nil
			if ee, ok := r.(*EncodeError); ok {
				err = ee
				return
			}
			err = &EncodeError{Reason: fmt.Sprint(r)}
		}
	}()

	e := &encoder{b: flatbuffers.NewBuilder(estimateSize(m))}
	root := e.model(m)
	e.b.FinishWithFileIdentifier(root, []byte(FileIdentifier))
	return e.b.FinishedBytes(), nil
}

func estimateSize(m *Model) int {
	n := 1024
	for i := range m.Buffers {
		n += len(m.Buffers[i].Data) + bufferAlignment
	}
	for i := range m.Subgraphs {
		n += 128 * (len(m.Subgraphs[i].Tensors) + len(m.Subgraphs[i].Operators))
	}
	if n < 0 || n > 1<<30 {
		return 1 << 30
	}
	return n
}

type encoder struct {
	b *flatbuffers.Builder
}

func (e *encoder) fail(format string, args ...any) {
	panic(&EncodeError{Reason: fmt.Sprintf(format, args...)})
}

// str returns 0 for the empty string so the field is omitted.
func (e *encoder) str(s string) flatbuffers.UOffsetT {
	if s == "" {
		return 0
	}
	return e.b.CreateString(s)
}

// The vector helpers return 0 for nil slices so absent vectors stay absent,
// and emit an empty vector for non-nil empty slices.

func (e *encoder) int32s(v []int32) flatbuffers.UOffsetT {
	if v == nil {
		return 0
	}
	e.b.StartVector(4, len(v), 4)
	for i := len(v) - 1; i >= 0; i-- {
		e.b.PrependInt32(v[i])
	}
	return e.b.EndVector(len(v))
}

func (e *encoder) int64s(v []int64) flatbuffers.UOffsetT {
	if v == nil {
		return 0
	}
	e.b.StartVector(8, len(v), 8)
	for i := len(v) - 1; i >= 0; i-- {
		e.b.PrependInt64(v[i])
	}
	return e.b.EndVector(len(v))
}

func (e *encoder) float32s(v []float32) flatbuffers.UOffsetT {
	if v == nil {
		return 0
	}
	e.b.StartVector(4, len(v), 4)
	for i := len(v) - 1; i >= 0; i-- {
		e.b.PrependFloat32(v[i])
	}
	return e.b.EndVector(len(v))
}

func (e *encoder) bools(v []bool) flatbuffers.UOffsetT {
	if v == nil {
		return 0
	}
	e.b.StartVector(1, len(v), 1)
	for i := len(v) - 1; i >= 0; i-- {
		e.b.PrependBool(v[i])
	}
	return e.b.EndVector(len(v))
}

func (e *encoder) bytes(v []byte, align int) flatbuffers.UOffsetT {
	if v == nil {
		return 0
	}
	if align > 1 {
		e.b.Prep(align, len(v))
	}
	return e.b.CreateByteVector(v)
}

func (e *encoder) offsets(v []flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	if v == nil {
		return 0
	}
	e.b.StartVector(flatbuffers.SizeUOffsetT, len(v), flatbuffers.SizeUOffsetT)
	for i := len(v) - 1; i >= 0; i-- {
		e.b.PrependUOffsetT(v[i])
	}
	return e.b.EndVector(len(v))
}

// tables encodes n tables with fn and returns the vector of their offsets.
// present=false yields an absent vector.
func (e *encoder) tables(n int, present bool, fn func(i int) flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	if !present {
		return 0
	}
	offs := make([]flatbuffers.UOffsetT, n)
	for i := range offs {
		offs[i] = fn(i)
	}
	return e.offsets(offs)
}

func (e *encoder) model(m *Model) flatbuffers.UOffsetT {
	codes := e.tables(len(m.OperatorCodes), m.OperatorCodes != nil, func(i int) flatbuffers.UOffsetT {
		return e.operatorCode(&m.OperatorCodes[i])
	})
	subgraphs := e.tables(len(m.Subgraphs), m.Subgraphs != nil, func(i int) flatbuffers.UOffsetT {
		return e.subgraph(&m.Subgraphs[i])
	})
	description := e.str(m.Description)
	buffers := e.tables(len(m.Buffers), m.Buffers != nil, func(i int) flatbuffers.UOffsetT {
		return e.buffer(&m.Buffers[i])
	})
	metadataBuffer := e.int32s(m.MetadataBuffer)
	metadata := e.tables(len(m.Metadata), m.Metadata != nil, func(i int) flatbuffers.UOffsetT {
		name := e.str(m.Metadata[i].Name)
		e.b.StartObject(2)
		e.b.PrependUOffsetTSlot(0, name, 0)
		e.b.PrependUint32Slot(1, m.Metadata[i].Buffer, 0)
		return e.b.EndObject()
	})
	signatures := e.tables(len(m.SignatureDefs), m.SignatureDefs != nil, func(i int) flatbuffers.UOffsetT {
		return e.signatureDef(&m.SignatureDefs[i])
	})

	e.b.StartObject(8)
	e.b.PrependUint32Slot(0, m.Version, 0)
	e.b.PrependUOffsetTSlot(1, codes, 0)
	e.b.PrependUOffsetTSlot(2, subgraphs, 0)
	e.b.PrependUOffsetTSlot(3, description, 0)
	e.b.PrependUOffsetTSlot(4, buffers, 0)
	e.b.PrependUOffsetTSlot(5, metadataBuffer, 0)
	e.b.PrependUOffsetTSlot(6, metadata, 0)
	e.b.PrependUOffsetTSlot(7, signatures, 0)
	return e.b.EndObject()
}

func (e *encoder) operatorCode(c *OperatorCode) flatbuffers.UOffsetT {
	custom := e.str(c.CustomCode)
	e.b.StartObject(4)
	e.b.PrependInt8Slot(0, c.DeprecatedBuiltinCode, 0)
	e.b.PrependUOffsetTSlot(1, custom, 0)
	e.b.PrependInt32Slot(2, c.Version, 1)
	e.b.PrependInt32Slot(3, int32(c.BuiltinCode), 0)
	return e.b.EndObject()
}

func (e *encoder) subgraph(sg *SubGraph) flatbuffers.UOffsetT {
	tensors := e.tables(len(sg.Tensors), sg.Tensors != nil, func(i int) flatbuffers.UOffsetT {
		return e.tensor(&sg.Tensors[i])
	})
	inputs := e.int32s(sg.Inputs)
	outputs := e.int32s(sg.Outputs)
	ops := e.tables(len(sg.Operators), sg.Operators != nil, func(i int) flatbuffers.UOffsetT {
		return e.operator(&sg.Operators[i])
	})
	name := e.str(sg.Name)

	e.b.StartObject(5)
	e.b.PrependUOffsetTSlot(0, tensors, 0)
	e.b.PrependUOffsetTSlot(1, inputs, 0)
	e.b.PrependUOffsetTSlot(2, outputs, 0)
	e.b.PrependUOffsetTSlot(3, ops, 0)
	e.b.PrependUOffsetTSlot(4, name, 0)
	return e.b.EndObject()
}

func (e *encoder) tensor(t *Tensor) flatbuffers.UOffsetT {
	shape := e.int32s(t.Shape)
	name := e.str(t.Name)
	var quant flatbuffers.UOffsetT
	if t.Quantization != nil {
		quant = e.quantization(t.Quantization)
	}
	signature := e.int32s(t.ShapeSignature)

	e.b.StartObject(9)
	e.b.PrependUOffsetTSlot(0, shape, 0)
	e.b.PrependInt8Slot(1, int8(t.Type), 0)
	e.b.PrependUint32Slot(2, t.Buffer, 0)
	e.b.PrependUOffsetTSlot(3, name, 0)
	e.b.PrependUOffsetTSlot(4, quant, 0)
	e.b.PrependBoolSlot(5, t.IsVariable, false)
	e.b.PrependUOffsetTSlot(7, signature, 0)
	e.b.PrependBoolSlot(8, t.HasRank, false)
	return e.b.EndObject()
}

func (e *encoder) quantization(q *QuantizationParameters) flatbuffers.UOffsetT {
	lo := e.float32s(q.Min)
	hi := e.float32s(q.Max)
	scale := e.float32s(q.Scale)
	zero := e.int64s(q.ZeroPoint)

	e.b.StartObject(7)
	e.b.PrependUOffsetTSlot(0, lo, 0)
	e.b.PrependUOffsetTSlot(1, hi, 0)
	e.b.PrependUOffsetTSlot(2, scale, 0)
	e.b.PrependUOffsetTSlot(3, zero, 0)
	e.b.PrependInt32Slot(6, q.QuantizedDimension, 0)
	return e.b.EndObject()
}

func (e *encoder) operator(op *Operator) flatbuffers.UOffsetT {
	inputs := e.int32s(op.Inputs)
	outputs := e.int32s(op.Outputs)
	var optsType BuiltinOptions
	var opts flatbuffers.UOffsetT
	if op.BuiltinOptions != nil {
		optsType = op.BuiltinOptions.Type
		opts = e.options(op.BuiltinOptions)
	}
	custom := e.bytes(op.CustomOptions, 1)
	mutating := e.bools(op.MutatingVariableInputs)
	intermediates := e.int32s(op.Intermediates)

	e.b.StartObject(11)
	e.b.PrependUint32Slot(0, op.OpcodeIndex, 0)
	e.b.PrependUOffsetTSlot(1, inputs, 0)
	e.b.PrependUOffsetTSlot(2, outputs, 0)
	e.b.PrependByteSlot(3, byte(optsType), 0)
	e.b.PrependUOffsetTSlot(4, opts, 0)
	e.b.PrependUOffsetTSlot(5, custom, 0)
	e.b.PrependInt8Slot(6, op.CustomOptionsFormat, 0)
	e.b.PrependUOffsetTSlot(7, mutating, 0)
	e.b.PrependUOffsetTSlot(8, intermediates, 0)
	e.b.PrependUint64Slot(9, op.LargeCustomOptionsOffset, 0)
	e.b.PrependUint64Slot(10, op.LargeCustomOptionsSize, 0)
	return e.b.EndObject()
}

// options writes every carried field with forced presence, so explicit
// default values survive a round trip.
func (e *encoder) options(o *Options) flatbuffers.UOffsetT {
	if o.Type == BuiltinOptionsNone {
		return 0
	}
	layout, ok := Layout(o.Type)
	if !ok {
		e.fail("options type %s is not supported", o.Type)
	}
	vectors := make(map[int]flatbuffers.UOffsetT)
	for _, f := range o.Fields {
		if f.Slot < 0 || f.Slot >= len(layout) || layout[f.Slot] != f.Kind {
			e.fail("%s has no field %d of kind %d", o.Type, f.Slot, f.Kind)
		}
		if f.Kind == FieldInt32Vector {
			ints := f.Ints
			if ints == nil {
				ints = []int32{}
			}
			vectors[f.Slot] = e.int32s(ints)
		}
	}

	e.b.StartObject(len(layout))
	for _, f := range o.Fields {
		switch f.Kind {
		case FieldBool, FieldInt8, FieldUint8:
			e.b.PrependByte(byte(f.Bits))
		case FieldInt16:
			e.b.PrependUint16(uint16(f.Bits))
		case FieldInt32, FieldUint32, FieldFloat32:
			e.b.PrependUint32(uint32(f.Bits))
		case FieldInt64:
			e.b.PrependUint64(f.Bits)
		case FieldInt32Vector:
			e.b.PrependUOffsetT(vectors[f.Slot])
		}
		e.b.Slot(f.Slot)
	}
	return e.b.EndObject()
}

func (e *encoder) buffer(buf *Buffer) flatbuffers.UOffsetT {
	data := e.bytes(buf.Data, bufferAlignment)
	e.b.StartObject(3)
	e.b.PrependUOffsetTSlot(0, data, 0)
	e.b.PrependUint64Slot(1, buf.Offset, 0)
	e.b.PrependUint64Slot(2, buf.Size, 0)
	return e.b.EndObject()
}

func (e *encoder) signatureDef(sd *SignatureDef) flatbuffers.UOffsetT {
	tensorMaps := func(maps []TensorMap) flatbuffers.UOffsetT {
		return e.tables(len(maps), maps != nil, func(i int) flatbuffers.UOffsetT {
			name := e.str(maps[i].Name)
			e.b.StartObject(2)
			e.b.PrependUOffsetTSlot(0, name, 0)
			e.b.PrependUint32Slot(1, maps[i].TensorIndex, 0)
			return e.b.EndObject()
		})
	}
	inputs := tensorMaps(sd.Inputs)
	outputs := tensorMaps(sd.Outputs)
	key := e.str(sd.SignatureKey)

	e.b.StartObject(5)
	e.b.PrependUOffsetTSlot(0, inputs, 0)
	e.b.PrependUOffsetTSlot(1, outputs, 0)
	e.b.PrependUOffsetTSlot(2, key, 0)
	e.b.PrependUint32Slot(4, sd.SubgraphIndex, 0)
	return e.b.EndObject()
}
