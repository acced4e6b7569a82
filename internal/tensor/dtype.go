// Package tensor provides the core tensor types shared by the golden
// reference path and the emulated device path.
package tensor

// DType is a constraint for host-representable tensor element types.
// Device storage types (bfloat16, float8) have no native Go type and
// exist only as DataType values on RawTensor.
type DType interface {
	~float32 | ~float64 | ~int32 | ~uint8 | ~bool
}

// DataType is runtime type information for tensors.
type DataType int

// Supported data types. Float32/Float64 are the host reference types;
// BFloat16 and Float8 are device storage types produced by the
// reduced-precision path.
const (
	Float32 DataType = iota
	Float64
	BFloat16
	Float8
	Int32
	Uint8
	Bool
)

// Size returns the byte size of one element.
func (dt DataType) Size() int {
	switch dt {
	case Float64:
		return 8
	case Float32, Int32:
		return 4
	case BFloat16:
		return 2
	case Float8, Uint8, Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// IsFloat reports whether the data type holds floating-point values,
// including the reduced-precision device storage types.
func (dt DataType) IsFloat() bool {
	switch dt {
	case Float32, Float64, BFloat16, Float8:
		return true
	default:
		return false
	}
}

// IsInteger reports whether the data type holds exact integer values.
// Integer tensors are compared with exact equality, never with PCC.
func (dt DataType) IsInteger() bool {
	return dt == Int32 || dt == Uint8
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case BFloat16:
		return "bfloat16"
	case Float8:
		return "float8"
	case Int32:
		return "int32"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// inferDataType maps a Go element type to its DataType.
func inferDataType[T DType](dummy T) DataType {
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int32:
		return Int32
	case uint8:
		return Uint8
	case bool:
		return Bool
	default:
		panic("unsupported type")
	}
}
