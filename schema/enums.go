package schema

import "strconv"

// TensorType is the element type of a tensor.
type TensorType int8

const (
	TensorTypeFloat32    TensorType = 0
	TensorTypeFloat16    TensorType = 1
	TensorTypeInt32      TensorType = 2
	TensorTypeUint8      TensorType = 3
	TensorTypeInt64      TensorType = 4
	TensorTypeString     TensorType = 5
	TensorTypeBool       TensorType = 6
	TensorTypeInt16      TensorType = 7
	TensorTypeComplex64  TensorType = 8
	TensorTypeInt8       TensorType = 9
	TensorTypeFloat64    TensorType = 10
	TensorTypeComplex128 TensorType = 11
	TensorTypeUint64     TensorType = 12
	TensorTypeResource   TensorType = 13
	TensorTypeVariant    TensorType = 14
	TensorTypeUint32     TensorType = 15
	TensorTypeUint16     TensorType = 16
	TensorTypeInt4       TensorType = 17
	TensorTypeBfloat16   TensorType = 18
)

var tensorTypeNames = [...]string{
	"FLOAT32", "FLOAT16", "INT32", "UINT8", "INT64", "STRING", "BOOL", "INT16",
	"COMPLEX64", "INT8", "FLOAT64", "COMPLEX128", "UINT64", "RESOURCE", "VARIANT",
	"UINT32", "UINT16", "INT4", "BFLOAT16",
}

// elementBits is indexed by TensorType. Zero means the element has no static size.
var elementBits = [...]int{
	32, 16, 32, 8, 64, 0, 8, 16,
	64, 8, 64, 128, 64, 0, 0,
	32, 16, 4, 16,
}

func (t TensorType) String() string {
	if t >= 0 && int(t) < len(tensorTypeNames) {
		return tensorTypeNames[t]
	}
	return "TensorType(" + strconv.Itoa(int(t)) + ")"
}

// ElementBits returns the storage width of one element in bits, or 0 when the
// type has no static element size (strings, resources, variants, unknown types).
func (t TensorType) ElementBits() int {
	if t >= 0 && int(t) < len(elementBits) {
		return elementBits[t]
	}
	return 0
}

// BuiltinOperator identifies a builtin operator kind.
type BuiltinOperator int32

const (
	BuiltinOperatorAdd             BuiltinOperator = 0
	BuiltinOperatorAveragePool2D   BuiltinOperator = 1
	BuiltinOperatorConcatenation   BuiltinOperator = 2
	BuiltinOperatorConv2D          BuiltinOperator = 3
	BuiltinOperatorDepthwiseConv2D BuiltinOperator = 4
	BuiltinOperatorFullyConnected  BuiltinOperator = 9
	BuiltinOperatorLogistic        BuiltinOperator = 14
	BuiltinOperatorLSTM            BuiltinOperator = 16
	BuiltinOperatorMaxPool2D       BuiltinOperator = 17
	BuiltinOperatorMul             BuiltinOperator = 18
	BuiltinOperatorRelu            BuiltinOperator = 19
	BuiltinOperatorReshape         BuiltinOperator = 22
	BuiltinOperatorSoftmax         BuiltinOperator = 25
	BuiltinOperatorCall            BuiltinOperator = 31
	BuiltinOperatorCustom          BuiltinOperator = 32
	BuiltinOperatorIf              BuiltinOperator = 118
	BuiltinOperatorWhile           BuiltinOperator = 119
	BuiltinOperatorCallOnce        BuiltinOperator = 129

	// BuiltinOperatorPlaceholderForGreaterOpCodes is stored in the deprecated
	// int8 code field when the real code does not fit.
	BuiltinOperatorPlaceholderForGreaterOpCodes BuiltinOperator = 127
)

var builtinOperatorNames = [...]string{
	"ADD", "AVERAGE_POOL_2D", "CONCATENATION", "CONV_2D", "DEPTHWISE_CONV_2D",
	"DEPTH_TO_SPACE", "DEQUANTIZE", "EMBEDDING_LOOKUP", "FLOOR", "FULLY_CONNECTED",
	"HASHTABLE_LOOKUP", "L2_NORMALIZATION", "L2_POOL_2D", "LOCAL_RESPONSE_NORMALIZATION",
	"LOGISTIC", "LSH_PROJECTION", "LSTM", "MAX_POOL_2D", "MUL", "RELU", "RELU_N1_TO_1",
	"RELU6", "RESHAPE", "RESIZE_BILINEAR", "RNN", "SOFTMAX", "SPACE_TO_DEPTH", "SVDF",
	"TANH", "CONCAT_EMBEDDINGS", "SKIP_GRAM", "CALL", "CUSTOM", "EMBEDDING_LOOKUP_SPARSE",
	"PAD", "UNIDIRECTIONAL_SEQUENCE_RNN", "GATHER", "BATCH_TO_SPACE_ND",
	"SPACE_TO_BATCH_ND", "TRANSPOSE", "MEAN", "SUB", "DIV", "SQUEEZE",
	"UNIDIRECTIONAL_SEQUENCE_LSTM", "STRIDED_SLICE", "BIDIRECTIONAL_SEQUENCE_RNN", "EXP",
	"TOPK_V2", "SPLIT", "LOG_SOFTMAX", "DELEGATE", "BIDIRECTIONAL_SEQUENCE_LSTM", "CAST",
	"PRELU", "MAXIMUM", "ARG_MAX", "MINIMUM", "LESS", "NEG", "PADV2", "GREATER",
	"GREATER_EQUAL", "LESS_EQUAL", "SELECT", "SLICE", "SIN", "TRANSPOSE_CONV",
	"SPARSE_TO_DENSE", "TILE", "EXPAND_DIMS", "EQUAL", "NOT_EQUAL", "LOG", "SUM", "SQRT",
	"RSQRT", "SHAPE", "POW", "ARG_MIN", "FAKE_QUANT", "REDUCE_PROD", "REDUCE_MAX", "PACK",
	"LOGICAL_OR", "ONE_HOT", "LOGICAL_AND", "LOGICAL_NOT", "UNPACK", "REDUCE_MIN",
	"FLOOR_DIV", "REDUCE_ANY", "SQUARE", "ZEROS_LIKE", "FILL", "FLOOR_MOD", "RANGE",
	"RESIZE_NEAREST_NEIGHBOR", "LEAKY_RELU", "SQUARED_DIFFERENCE", "MIRROR_PAD", "ABS",
	"SPLIT_V", "UNIQUE", "CEIL", "REVERSE_V2", "ADD_N", "GATHER_ND", "COS", "WHERE", "RANK",
	"ELU", "REVERSE_SEQUENCE", "MATRIX_DIAG", "QUANTIZE", "MATRIX_SET_DIAG", "ROUND",
	"HARD_SWISH", "IF", "WHILE", "NON_MAX_SUPPRESSION_V4", "NON_MAX_SUPPRESSION_V5",
	"SCATTER_ND", "SELECT_V2", "DENSIFY", "SEGMENT_SUM", "BATCH_MATMUL",
	"PLACEHOLDER_FOR_GREATER_OP_CODES", "CUMSUM", "CALL_ONCE", "BROADCAST_TO", "RFFT2D",
	"CONV_3D", "IMAG", "REAL", "COMPLEX_ABS", "HASHTABLE", "HASHTABLE_FIND",
	"HASHTABLE_IMPORT", "HASHTABLE_SIZE", "REDUCE_ALL", "CONV_3D_TRANSPOSE", "VAR_HANDLE",
	"READ_VARIABLE", "ASSIGN_VARIABLE", "BROADCAST_ARGS", "RANDOM_STANDARD_NORMAL",
	"BUCKETIZE", "RANDOM_UNIFORM", "MULTINOMIAL", "GELU", "DYNAMIC_UPDATE_SLICE",
	"RELU_0_TO_1", "UNSORTED_SEGMENT_PROD", "UNSORTED_SEGMENT_MAX", "UNSORTED_SEGMENT_SUM",
	"ATAN2", "UNSORTED_SEGMENT_MIN", "SIGN", "BITCAST", "BITWISE_XOR", "RIGHT_SHIFT",
}

// builtinOperatorValues is the reverse of builtinOperatorNames, built once.
var builtinOperatorValues = func() map[string]BuiltinOperator {
	m := make(map[string]BuiltinOperator, len(builtinOperatorNames))
	for i, name := range builtinOperatorNames {
		m[name] = BuiltinOperator(i)
	}
	return m
}()

func (op BuiltinOperator) String() string {
	if op >= 0 && int(op) < len(builtinOperatorNames) {
		return builtinOperatorNames[op]
	}
	return "BuiltinOperator(" + strconv.Itoa(int(op)) + ")"
}

// ParseBuiltinOperator returns the operator with the given schema name.
func ParseBuiltinOperator(name string) (BuiltinOperator, bool) {
	op, ok := builtinOperatorValues[name]
	return op, ok
}

// BuiltinOptions is the union discriminator of an operator's builtin options.
type BuiltinOptions uint8

const (
	BuiltinOptionsNone                   BuiltinOptions = 0
	BuiltinOptionsConv2DOptions          BuiltinOptions = 1
	BuiltinOptionsDepthwiseConv2DOptions BuiltinOptions = 2
	BuiltinOptionsPool2DOptions          BuiltinOptions = 5
	BuiltinOptionsFullyConnectedOptions  BuiltinOptions = 8
	BuiltinOptionsSoftmaxOptions         BuiltinOptions = 9
	BuiltinOptionsConcatenationOptions   BuiltinOptions = 10
	BuiltinOptionsAddOptions             BuiltinOptions = 11
	BuiltinOptionsReshapeOptions         BuiltinOptions = 17
	BuiltinOptionsMulOptions             BuiltinOptions = 21
)

var builtinOptionsNames = [...]string{
	"NONE", "Conv2DOptions", "DepthwiseConv2DOptions", "ConcatEmbeddingsOptions",
	"LSHProjectionOptions", "Pool2DOptions", "SVDFOptions", "RNNOptions",
	"FullyConnectedOptions", "SoftmaxOptions", "ConcatenationOptions", "AddOptions",
	"L2NormOptions", "LocalResponseNormalizationOptions", "LSTMOptions",
	"ResizeBilinearOptions", "CallOptions", "ReshapeOptions", "SkipGramOptions",
	"SpaceToDepthOptions", "EmbeddingLookupSparseOptions", "MulOptions", "PadOptions",
	"GatherOptions", "BatchToSpaceNDOptions", "SpaceToBatchNDOptions", "TransposeOptions",
	"ReducerOptions", "SubOptions", "DivOptions", "SqueezeOptions", "SequenceRNNOptions",
	"StridedSliceOptions", "ExpOptions", "TopKV2Options", "SplitOptions",
	"LogSoftmaxOptions", "CastOptions", "DequantizeOptions", "MaximumMinimumOptions",
	"ArgMaxOptions", "LessOptions", "NegOptions", "PadV2Options", "GreaterOptions",
	"GreaterEqualOptions", "LessEqualOptions", "SelectOptions", "SliceOptions",
	"TransposeConvOptions", "SparseToDenseOptions", "TileOptions", "ExpandDimsOptions",
	"EqualOptions", "NotEqualOptions", "ShapeOptions", "PowOptions", "ArgMinOptions",
	"FakeQuantOptions", "PackOptions", "LogicalOrOptions", "OneHotOptions",
	"LogicalAndOptions", "LogicalNotOptions", "UnpackOptions", "FloorDivOptions",
	"SquareOptions", "ZerosLikeOptions", "FillOptions",
	"BidirectionalSequenceLSTMOptions", "BidirectionalSequenceRNNOptions",
	"UnidirectionalSequenceLSTMOptions", "FloorModOptions", "RangeOptions",
	"ResizeNearestNeighborOptions", "LeakyReluOptions", "SquaredDifferenceOptions",
	"MirrorPadOptions", "AbsOptions", "SplitVOptions", "UniqueOptions", "ReverseV2Options",
	"AddNOptions", "GatherNdOptions", "CosOptions", "WhereOptions", "RankOptions",
	"ReverseSequenceOptions", "MatrixDiagOptions", "QuantizeOptions",
	"MatrixSetDiagOptions", "HardSwishOptions", "IfOptions", "WhileOptions",
	"DepthToSpaceOptions", "NonMaxSuppressionV4Options", "NonMaxSuppressionV5Options",
	"ScatterNdOptions", "SelectV2Options", "DensifyOptions", "SegmentSumOptions",
	"BatchMatMulOptions", "CumsumOptions", "CallOnceOptions", "BroadcastToOptions",
	"Rfft2dOptions", "Conv3DOptions", "HashtableOptions", "HashtableFindOptions",
	"HashtableImportOptions", "HashtableSizeOptions", "VarHandleOptions",
	"ReadVariableOptions", "AssignVariableOptions", "RandomOptions", "BucketizeOptions",
	"GeluOptions", "DynamicUpdateSliceOptions",
}

var builtinOptionsValues = func() map[string]BuiltinOptions {
	m := make(map[string]BuiltinOptions, len(builtinOptionsNames))
	for i, name := range builtinOptionsNames {
		m[name] = BuiltinOptions(i)
	}
	return m
}()

func (o BuiltinOptions) String() string {
	if int(o) < len(builtinOptionsNames) {
		return builtinOptionsNames[o]
	}
	return "BuiltinOptions(" + strconv.Itoa(int(o)) + ")"
}

// ParseBuiltinOptions returns the options union member with the given schema name.
func ParseBuiltinOptions(name string) (BuiltinOptions, bool) {
	o, ok := builtinOptionsValues[name]
	return o, ok
}
