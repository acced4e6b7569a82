package precision

import (
	"fmt"

	"github.com/meshgold/meshgold/internal/tensor"
)

// ToStorage packs a float32 tensor into the given device storage dtype.
// Shape, layout and placement carry over.
func ToStorage(r *tensor.RawTensor, dtype tensor.DataType) (*tensor.RawTensor, error) {
	if r.DType() != tensor.Float32 {
		return nil, fmt.Errorf("to storage: expected float32 source, got %s", r.DType())
	}

	switch dtype {
	case tensor.Float32:
		return r.Clone(), nil
	case tensor.BFloat16:
		out, err := tensor.NewRawOn(r.Shape(), tensor.BFloat16, r.Placement())
		if err != nil {
			return nil, err
		}
		out.SetLayout(r.Layout())
		src, dst := r.AsFloat32(), out.AsUint16()
		for i, v := range src {
			dst[i] = EncodeBFloat16(v)
		}
		return out, nil
	case tensor.Float8:
		out, err := tensor.NewRawOn(r.Shape(), tensor.Float8, r.Placement())
		if err != nil {
			return nil, err
		}
		out.SetLayout(r.Layout())
		src, dst := r.AsFloat32(), out.AsUint8()
		for i, v := range src {
			dst[i] = EncodeFloat8(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("to storage: %s is not a device storage dtype", dtype)
	}
}

// FromStorage unpacks a device storage tensor back to float32.
func FromStorage(r *tensor.RawTensor) (*tensor.RawTensor, error) {
	switch r.DType() {
	case tensor.Float32:
		return r.Clone(), nil
	case tensor.BFloat16:
		out, err := tensor.NewRawOn(r.Shape(), tensor.Float32, r.Placement())
		if err != nil {
			return nil, err
		}
		out.SetLayout(r.Layout())
		src, dst := r.AsUint16(), out.AsFloat32()
		for i, v := range src {
			dst[i] = DecodeBFloat16(v)
		}
		return out, nil
	case tensor.Float8:
		out, err := tensor.NewRawOn(r.Shape(), tensor.Float32, r.Placement())
		if err != nil {
			return nil, err
		}
		out.SetLayout(r.Layout())
		src, dst := r.AsUint8(), out.AsFloat32()
		for i, v := range src {
			dst[i] = DecodeFloat8(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("from storage: %s is not a device storage dtype", r.DType())
	}
}
