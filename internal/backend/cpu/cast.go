package cpu

import (
	"fmt"

	"github.com/meshgold/meshgold/internal/tensor"
)

// Cast converts between the host-computable dtypes. Conversions to and
// from the device storage dtypes (bfloat16, float8) belong to the
// precision package, not the host backend.
func (cpu *CPUBackend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	if dtype == tensor.BFloat16 || dtype == tensor.Float8 {
		panic(fmt.Sprintf("cast: %s is a device storage dtype; use the precision package", dtype))
	}
	if x.DType() == dtype {
		return x.Clone()
	}

	result, err := tensor.NewRaw(x.Shape(), dtype)
	if err != nil {
		panic(fmt.Sprintf("cast: %v", err))
	}

	get := reader(x)
	set := writer(result)
	for i := 0; i < x.NumElements(); i++ {
		set(i, get(i))
	}
	return result
}
