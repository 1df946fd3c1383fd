package schema

import "math"

// FieldKind is the wire type of one field in a builtin options table.
type FieldKind uint8

const (
	FieldBool FieldKind = iota + 1
	FieldInt8
	FieldUint8
	FieldInt16
	FieldInt32
	FieldUint32
	FieldFloat32
	FieldInt64
	FieldInt32Vector
)

// Width returns the inline size of the field in bytes.
func (k FieldKind) Width() int {
	switch k {
	case FieldBool, FieldInt8, FieldUint8:
		return 1
	case FieldInt16:
		return 2
	case FieldInt32, FieldUint32, FieldFloat32, FieldInt32Vector:
		return 4
	case FieldInt64:
		return 8
	default:
		return 0
	}
}

// OptionField is one populated slot of a builtin options table.
//
// Scalars keep their raw bits so a value survives a round trip exactly,
// including fields whose value equals the schema default.
type OptionField struct {
	Slot int
	Kind FieldKind
	Bits uint64
	Ints []int32
}

// Int returns the field as a signed integer.
func (f OptionField) Int() int64 {
	switch f.Kind {
	case FieldInt8:
		return int64(int8(f.Bits))
	case FieldInt16:
		return int64(int16(f.Bits))
	case FieldInt32:
		return int64(int32(f.Bits))
	default:
		return int64(f.Bits)
	}
}

// Float returns the field as a float32.
func (f OptionField) Float() float32 {
	return math.Float32frombits(uint32(f.Bits))
}

// Options holds an operator's builtin options union member.
type Options struct {
	Type   BuiltinOptions
	Fields []OptionField
}

// Field returns the populated field at slot, if any.
func (o *Options) Field(slot int) (OptionField, bool) {
	if o == nil {
		return OptionField{}, false
	}
	for _, f := range o.Fields {
		if f.Slot == slot {
			return f, true
		}
	}
	return OptionField{}, false
}

// Layout returns the field kinds, indexed by slot, of an options table type.
func Layout(t BuiltinOptions) ([]FieldKind, bool) {
	l, ok := optionLayouts[t]
	return l, ok
}

const (
	b8  = FieldBool
	i8  = FieldInt8
	i32 = FieldInt32
	u32 = FieldUint32
	f32 = FieldFloat32
	v32 = FieldInt32Vector
)

// optionLayouts lists the option tables this package can carry. Enum-typed
// fields (padding, activation, tensor types) are stored as int8.
var optionLayouts = func() map[BuiltinOptions][]FieldKind {
	named := map[string][]FieldKind{
		"Conv2DOptions":                     {i8, i32, i32, i8, i32, i32, i8},
		"DepthwiseConv2DOptions":            {i8, i32, i32, i32, i8, i32, i32},
		"Pool2DOptions":                     {i8, i32, i32, i32, i32, i8},
		"SVDFOptions":                       {i32, i8, b8},
		"RNNOptions":                        {i8, b8},
		"FullyConnectedOptions":             {i8, i8, b8, b8, i8},
		"SoftmaxOptions":                    {f32},
		"ConcatenationOptions":              {i32, i8},
		"AddOptions":                        {i8, b8},
		"L2NormOptions":                     {i8},
		"LocalResponseNormalizationOptions": {i32, f32, f32, f32},
		"LSTMOptions":                       {i8, f32, f32, i8, b8},
		"ResizeBilinearOptions":             {i32, i32, b8, b8},
		"CallOptions":                       {u32},
		"ReshapeOptions":                    {v32},
		"SpaceToDepthOptions":               {i32},
		"MulOptions":                        {i8},
		"PadOptions":                        {},
		"GatherOptions":                     {i32, i32},
		"BatchToSpaceNDOptions":             {},
		"SpaceToBatchNDOptions":             {},
		"TransposeOptions":                  {},
		"ReducerOptions":                    {b8},
		"SubOptions":                        {i8, b8},
		"DivOptions":                        {i8},
		"SqueezeOptions":                    {v32},
		"SequenceRNNOptions":                {b8, i8, b8},
		"StridedSliceOptions":               {i32, i32, i32, i32, i32, b8},
		"ExpOptions":                        {},
		"TopKV2Options":                     {},
		"SplitOptions":                      {i32},
		"LogSoftmaxOptions":                 {},
		"CastOptions":                       {i8, i8},
		"DequantizeOptions":                 {},
		"MaximumMinimumOptions":             {},
		"ArgMaxOptions":                     {i8},
		"LessOptions":                       {},
		"NegOptions":                        {},
		"PadV2Options":                      {},
		"GreaterOptions":                    {},
		"GreaterEqualOptions":               {},
		"LessEqualOptions":                  {},
		"SelectOptions":                     {},
		"SliceOptions":                      {},
		"TransposeConvOptions":              {i8, i32, i32, i8, i8},
		"TileOptions":                       {},
		"ExpandDimsOptions":                 {},
		"EqualOptions":                      {},
		"NotEqualOptions":                   {},
		"ShapeOptions":                      {i8},
		"PowOptions":                        {},
		"ArgMinOptions":                     {i8},
		"FakeQuantOptions":                  {f32, f32, i32, b8},
		"PackOptions":                       {i32, i32},
		"LogicalOrOptions":                  {},
		"OneHotOptions":                     {i32},
		"LogicalAndOptions":                 {},
		"LogicalNotOptions":                 {},
		"UnpackOptions":                     {i32, i32},
		"FloorDivOptions":                   {},
		"SquareOptions":                     {},
		"ZerosLikeOptions":                  {},
		"FillOptions":                       {},
		"UnidirectionalSequenceLSTMOptions": {i8, f32, f32, b8, b8, b8},
		"FloorModOptions":                   {},
		"RangeOptions":                      {},
		"ResizeNearestNeighborOptions":      {b8, b8},
		"LeakyReluOptions":                  {f32},
		"SquaredDifferenceOptions":          {},
		"MirrorPadOptions":                  {i8},
		"AbsOptions":                        {},
		"SplitVOptions":                     {i32},
		"UniqueOptions":                     {i8},
		"ReverseV2Options":                  {},
		"AddNOptions":                       {},
		"GatherNdOptions":                   {},
		"CosOptions":                        {},
		"WhereOptions":                      {},
		"RankOptions":                       {},
		"QuantizeOptions":                   {},
		"HardSwishOptions":                  {},
		"IfOptions":                         {i32, i32},
		"WhileOptions":                      {i32, i32},
		"DepthToSpaceOptions":               {i32},
		"SelectV2Options":                   {},
		"BatchMatMulOptions":                {b8, b8, b8},
		"CumsumOptions":                     {b8, b8},
		"CallOnceOptions":                   {i32},
		"BroadcastToOptions":                {},
		"ReadVariableOptions":               {},
		"AssignVariableOptions":             {},
		"GeluOptions":                       {b8},
		"DynamicUpdateSliceOptions":         {},
	}
	layouts := make(map[BuiltinOptions][]FieldKind, len(named))
	for name, l := range named {
		t, ok := ParseBuiltinOptions(name)
		if !ok {
			panic("schema: unknown options table " + name)
		}
		layouts[t] = l
	}
	return layouts
}()
