package schema

import (
	"errors"
	"fmt"
	"strings"

	flatbuffers "github.com/google/flatbuffers/go"
)

// DecodeError reports a malformed or unsupported descriptor.
type DecodeError struct {
	// Path locates the offending element, e.g. "subgraphs[0].tensors[3]".
	Path   string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return "schema: decode: " + e.Reason
	}
	return "schema: decode " + e.Path + ": " + e.Reason
}

func decodeErr(format string, args ...any) error {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}

// at prefixes the path of a DecodeError, or turns a plain error into one.
func at(err error, elem string, args ...any) error {
	if err == nil {
		return nil
	}
	if len(args) > 0 {
		elem = fmt.Sprintf(elem, args...)
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		return &DecodeError{Path: elem, Reason: err.Error()}
	}
	switch {
	case de.Path == "":
		de.Path = elem
	case strings.HasPrefix(de.Path, "["):
		de.Path = elem + de.Path
	default:
		de.Path = elem + "." + de.Path
	}
	return de
}

// Decode parses a descriptor into its object tree. Every byte and string of
// the result is copied out of buf; buf is never retained or modified.
//
// Fields that this object model cannot carry (sparsity, custom quantization,
// variant tensors, unknown option tables, newer schema additions) are
// rejected instead of being dropped on re-encode.
func Decode(buf []byte) (m *Model, err error) {
	if len(buf) < 8 {
		return nil, decodeErr("buffer of %d bytes is too short", len(buf))
	}
	if id := string(buf[4:8]); id != FileIdentifier {
		return nil, decodeErr("file identifier %q, want %q", id, FileIdentifier)
	}
	root := flatbuffers.GetUOffsetT(buf)
	if int(root)+flatbuffers.SizeSOffsetT > len(buf) {
		return nil, decodeErr("root offset %d out of range", root)
	}

	defer func() {
		if r := recover(); r != nil {
			m = nil
			err = decodeErr("malformed flatbuffer: %v", r)
		}
	}()

	return decodeModel(table{flatbuffers.Table{Bytes: buf, Pos: root}})
}

func decodeModel(t table) (*Model, error) {
	if s := t.foreign(8); s >= 0 {
		return nil, decodeErr("model field %d is not supported", s)
	}
	m := &Model{Version: t.uint32At(0, 0)}
	var err error

	codes, _, err := t.tablesAt(1)
	if err != nil {
		return nil, at(err, "operator_codes")
	}
	if codes != nil {
		m.OperatorCodes = make([]OperatorCode, len(codes))
	}
	for i, ct := range codes {
		if m.OperatorCodes[i], err = decodeOperatorCode(ct); err != nil {
			return nil, at(err, "operator_codes[%d]", i)
		}
	}

	subgraphs, _, err := t.tablesAt(2)
	if err != nil {
		return nil, at(err, "subgraphs")
	}
	if subgraphs != nil {
		m.Subgraphs = make([]SubGraph, len(subgraphs))
	}
	for i, st := range subgraphs {
		if m.Subgraphs[i], err = decodeSubGraph(st); err != nil {
			return nil, at(err, "subgraphs[%d]", i)
		}
	}

	if m.Description, err = t.stringAt(3); err != nil {
		return nil, at(err, "description")
	}

	buffers, _, err := t.tablesAt(4)
	if err != nil {
		return nil, at(err, "buffers")
	}
	if buffers != nil {
		m.Buffers = make([]Buffer, len(buffers))
	}
	for i, bt := range buffers {
		if m.Buffers[i], err = decodeBuffer(bt); err != nil {
			return nil, at(err, "buffers[%d]", i)
		}
	}

	if m.MetadataBuffer, err = t.int32sAt(5); err != nil {
		return nil, at(err, "metadata_buffer")
	}

	metadata, _, err := t.tablesAt(6)
	if err != nil {
		return nil, at(err, "metadata")
	}
	if metadata != nil {
		m.Metadata = make([]Metadata, len(metadata))
	}
	for i, mt := range metadata {
		if s := mt.foreign(2); s >= 0 {
			return nil, at(decodeErr("field %d is not supported", s), "metadata[%d]", i)
		}
		name, err := mt.stringAt(0)
		if err != nil {
			return nil, at(err, "metadata[%d].name", i)
		}
		m.Metadata[i] = Metadata{Name: name, Buffer: mt.uint32At(1, 0)}
	}

	sigs, _, err := t.tablesAt(7)
	if err != nil {
		return nil, at(err, "signature_defs")
	}
	if sigs != nil {
		m.SignatureDefs = make([]SignatureDef, len(sigs))
	}
	for i, st := range sigs {
		if m.SignatureDefs[i], err = decodeSignatureDef(st); err != nil {
			return nil, at(err, "signature_defs[%d]", i)
		}
	}

	return m, nil
}

func decodeOperatorCode(t table) (OperatorCode, error) {
	if s := t.foreign(4); s >= 0 {
		return OperatorCode{}, decodeErr("field %d is not supported", s)
	}
	custom, err := t.stringAt(1)
	if err != nil {
		return OperatorCode{}, at(err, "custom_code")
	}
	return OperatorCode{
		DeprecatedBuiltinCode: t.int8At(0, 0),
		CustomCode:            custom,
		Version:               t.int32At(2, 1),
		BuiltinCode:           BuiltinOperator(t.int32At(3, 0)),
	}, nil
}

func decodeSubGraph(t table) (SubGraph, error) {
	var sg SubGraph
	if s := t.foreign(5); s >= 0 {
		return sg, decodeErr("field %d is not supported", s)
	}

	tensors, _, err := t.tablesAt(0)
	if err != nil {
		return sg, at(err, "tensors")
	}
	if tensors != nil {
		sg.Tensors = make([]Tensor, len(tensors))
	}
	for i, tt := range tensors {
		if sg.Tensors[i], err = decodeTensor(tt); err != nil {
			return sg, at(err, "tensors[%d]", i)
		}
	}

	if sg.Inputs, err = t.int32sAt(1); err != nil {
		return sg, at(err, "inputs")
	}
	if sg.Outputs, err = t.int32sAt(2); err != nil {
		return sg, at(err, "outputs")
	}

	ops, _, err := t.tablesAt(3)
	if err != nil {
		return sg, at(err, "operators")
	}
	if ops != nil {
		sg.Operators = make([]Operator, len(ops))
	}
	for i, ot := range ops {
		if sg.Operators[i], err = decodeOperator(ot); err != nil {
			return sg, at(err, "operators[%d]", i)
		}
	}

	if sg.Name, err = t.stringAt(4); err != nil {
		return sg, at(err, "name")
	}
	return sg, nil
}

const (
	tensorSparsitySlot = 6
	quantDetailsSlot   = 5
)

func decodeTensor(t table) (Tensor, error) {
	var tensor Tensor
	if s := t.foreign(9, tensorSparsitySlot); s >= 0 {
		return tensor, decodeErr("field %d is not supported", s)
	}
	var err error
	if tensor.Shape, err = t.int32sAt(0); err != nil {
		return tensor, at(err, "shape")
	}
	tensor.Type = TensorType(t.int8At(1, 0))
	tensor.Buffer = t.uint32At(2, 0)
	if tensor.Name, err = t.stringAt(3); err != nil {
		return tensor, at(err, "name")
	}

	qt, ok, err := t.child(4)
	if err != nil {
		return tensor, at(err, "quantization")
	}
	if ok {
		if tensor.Quantization, err = decodeQuantization(qt); err != nil {
			return tensor, at(err, "quantization")
		}
	}

	tensor.IsVariable = t.boolAt(5)
	if tensor.ShapeSignature, err = t.int32sAt(7); err != nil {
		return tensor, at(err, "shape_signature")
	}
	tensor.HasRank = t.boolAt(8)
	return tensor, nil
}

func decodeQuantization(t table) (*QuantizationParameters, error) {
	if s := t.foreign(7, quantDetailsSlot); s >= 0 {
		return nil, decodeErr("field %d is not supported", s)
	}
	if details := t.uint8At(4, 0); details != 0 {
		return nil, decodeErr("custom quantization details (type %d) are not supported", details)
	}
	q := &QuantizationParameters{QuantizedDimension: t.int32At(6, 0)}
	var err error
	if q.Min, err = t.float32sAt(0); err != nil {
		return nil, at(err, "min")
	}
	if q.Max, err = t.float32sAt(1); err != nil {
		return nil, at(err, "max")
	}
	if q.Scale, err = t.float32sAt(2); err != nil {
		return nil, at(err, "scale")
	}
	if q.ZeroPoint, err = t.int64sAt(3); err != nil {
		return nil, at(err, "zero_point")
	}
	return q, nil
}

func decodeOperator(t table) (Operator, error) {
	var op Operator
	if s := t.foreign(11); s >= 0 {
		return op, decodeErr("field %d is not supported", s)
	}
	op.OpcodeIndex = t.uint32At(0, 0)
	var err error
	if op.Inputs, err = t.int32sAt(1); err != nil {
		return op, at(err, "inputs")
	}
	if op.Outputs, err = t.int32sAt(2); err != nil {
		return op, at(err, "outputs")
	}
	if op.BuiltinOptions, err = decodeOptions(t); err != nil {
		return op, at(err, "builtin_options")
	}
	if op.CustomOptions, err = t.bytesAt(5); err != nil {
		return op, at(err, "custom_options")
	}
	op.CustomOptionsFormat = t.int8At(6, 0)
	if op.MutatingVariableInputs, err = t.boolsAt(7); err != nil {
		return op, at(err, "mutating_variable_inputs")
	}
	if op.Intermediates, err = t.int32sAt(8); err != nil {
		return op, at(err, "intermediates")
	}
	op.LargeCustomOptionsOffset = t.uint64At(9)
	op.LargeCustomOptionsSize = t.uint64At(10)
	return op, nil
}

func decodeOptions(op table) (*Options, error) {
	kind := BuiltinOptions(op.uint8At(3, 0))
	ot, ok, err := op.child(4)
	if err != nil {
		return nil, err
	}
	if kind == BuiltinOptionsNone {
		if ok {
			return nil, decodeErr("options table without type")
		}
		return nil, nil
	}
	layout, known := Layout(kind)
	if !known {
		return nil, decodeErr("options type %s is not supported", kind)
	}
	opts := &Options{Type: kind}
	if !ok {
		return opts, nil
	}
	if s := ot.foreign(len(layout)); s >= 0 {
		return nil, decodeErr("%s field %d is not supported", kind, s)
	}
	for slot, fk := range layout {
		p := ot.slot(slot)
		if p == 0 {
			continue
		}
		f := OptionField{Slot: slot, Kind: fk}
		switch fk {
		case FieldBool, FieldInt8, FieldUint8:
			f.Bits = uint64(ot.GetUint8(p))
		case FieldInt16:
			f.Bits = uint64(ot.GetUint16(p))
		case FieldInt32, FieldUint32, FieldFloat32:
			f.Bits = uint64(ot.GetUint32(p))
		case FieldInt64:
			f.Bits = ot.GetUint64(p)
		case FieldInt32Vector:
			if f.Ints, err = ot.int32sAt(slot); err != nil {
				return nil, at(err, "field %d", slot)
			}
		}
		opts.Fields = append(opts.Fields, f)
	}
	return opts, nil
}

func decodeBuffer(t table) (Buffer, error) {
	if s := t.foreign(3); s >= 0 {
		return Buffer{}, decodeErr("field %d is not supported", s)
	}
	data, err := t.bytesAt(0)
	if err != nil {
		return Buffer{}, at(err, "data")
	}
	return Buffer{Data: data, Offset: t.uint64At(1), Size: t.uint64At(2)}, nil
}

func decodeSignatureDef(t table) (SignatureDef, error) {
	var sd SignatureDef
	// slot 3 is deprecated and carries nothing.
	if s := t.foreign(5); s >= 0 {
		return sd, decodeErr("field %d is not supported", s)
	}
	var err error
	if sd.Inputs, err = decodeTensorMaps(t, 0); err != nil {
		return sd, at(err, "inputs")
	}
	if sd.Outputs, err = decodeTensorMaps(t, 1); err != nil {
		return sd, at(err, "outputs")
	}
	if sd.SignatureKey, err = t.stringAt(2); err != nil {
		return sd, at(err, "signature_key")
	}
	sd.SubgraphIndex = t.uint32At(4, 0)
	return sd, nil
}

func decodeTensorMaps(t table, slot int) ([]TensorMap, error) {
	maps, present, err := t.tablesAt(slot)
	if err != nil || !present {
		return nil, err
	}
	out := make([]TensorMap, len(maps))
	for i, mt := range maps {
		if s := mt.foreign(2); s >= 0 {
			return nil, at(decodeErr("field %d is not supported", s), "[%d]", i)
		}
		name, err := mt.stringAt(0)
		if err != nil {
			return nil, at(err, "[%d].name", i)
		}
		out[i] = TensorMap{Name: name, TensorIndex: mt.uint32At(1, 0)}
	}
	return out, nil
}
