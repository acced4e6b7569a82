package tensor

import (
	"math/rand"
	"testing"
)

// mockBackend implements just enough of Backend for package-level tests.
// Real kernels live in internal/backend/cpu.
type mockBackend struct{}

func (mockBackend) Add(a, b *RawTensor) *RawTensor  { panic("not implemented") }
func (mockBackend) Sub(a, b *RawTensor) *RawTensor  { panic("not implemented") }
func (mockBackend) Mul(a, b *RawTensor) *RawTensor  { panic("not implemented") }
func (mockBackend) Div(a, b *RawTensor) *RawTensor  { panic("not implemented") }
func (mockBackend) MatMul(a, b *RawTensor) *RawTensor {
	panic("not implemented")
}
func (mockBackend) BatchMatMul(a, b *RawTensor) *RawTensor {
	panic("not implemented")
}
func (mockBackend) Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor {
	panic("not implemented")
}
func (mockBackend) MaxPool2D(input *RawTensor, kernelSize, stride int) *RawTensor {
	panic("not implemented")
}
func (mockBackend) Reshape(t *RawTensor, newShape Shape) *RawTensor {
	panic("not implemented")
}
func (mockBackend) Transpose(t *RawTensor, axes ...int) *RawTensor {
	panic("not implemented")
}
func (mockBackend) Unsqueeze(x *RawTensor, dim int) *RawTensor { panic("not implemented") }
func (mockBackend) Squeeze(x *RawTensor, dim int) *RawTensor   { panic("not implemented") }
func (mockBackend) Cat(tensors []*RawTensor, dim int) *RawTensor {
	panic("not implemented")
}
func (mockBackend) Narrow(x *RawTensor, dim, start, length int) *RawTensor {
	panic("not implemented")
}
func (mockBackend) MulScalar(x *RawTensor, scalar any) *RawTensor { panic("not implemented") }
func (mockBackend) AddScalar(x *RawTensor, scalar any) *RawTensor { panic("not implemented") }
func (mockBackend) Exp(x *RawTensor) *RawTensor                   { panic("not implemented") }
func (mockBackend) Sqrt(x *RawTensor) *RawTensor                  { panic("not implemented") }
func (mockBackend) Softmax(x *RawTensor, dim int) *RawTensor      { panic("not implemented") }
func (mockBackend) SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor {
	panic("not implemented")
}
func (mockBackend) MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor {
	panic("not implemented")
}
func (mockBackend) Cast(x *RawTensor, dtype DataType) *RawTensor { panic("not implemented") }
func (mockBackend) Name() string                                 { return "mock" }
func (mockBackend) Placement() Placement                         { return Host }

func assertEqualShape(t *testing.T, expected, got Shape, msg string) {
	t.Helper()
	if !expected.Equal(got) {
		t.Errorf("%s: expected shape %v, got %v", msg, expected, got)
	}
}

func TestShapeNumElements(t *testing.T) {
	cases := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1},
		{Shape{5}, 5},
		{Shape{2, 3}, 6},
		{Shape{2, 3, 4}, 24},
	}
	for _, c := range cases {
		if got := c.shape.NumElements(); got != c.want {
			t.Errorf("NumElements(%v) = %d, want %d", c.shape, got, c.want)
		}
	}
}

func TestShapeValidate(t *testing.T) {
	if err := (Shape{2, 3}).Validate(); err != nil {
		t.Errorf("valid shape rejected: %v", err)
	}
	if err := (Shape{2, 0}).Validate(); err == nil {
		t.Error("zero dimension accepted")
	}
	if err := (Shape{-1, 3}).Validate(); err == nil {
		t.Error("negative dimension accepted")
	}
}

func TestShapeComputeStrides(t *testing.T) {
	strides := Shape{2, 3, 4}.ComputeStrides()
	want := []int{12, 4, 1}
	for i := range want {
		if strides[i] != want[i] {
			t.Errorf("strides = %v, want %v", strides, want)
			break
		}
	}
}

func TestBroadcastShapes(t *testing.T) {
	out, needed, err := BroadcastShapes(Shape{3, 1}, Shape{3, 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertEqualShape(t, Shape{3, 5}, out, "broadcast (3,1)+(3,5)")
	if !needed {
		t.Error("expected broadcasting to be needed")
	}

	_, _, err = BroadcastShapes(Shape{3, 4}, Shape{3, 5})
	if err == nil {
		t.Error("incompatible shapes accepted")
	}
}

func TestFromSliceAndAt(t *testing.T) {
	backend := mockBackend{}
	tt, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, backend)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}

	assertEqualShape(t, Shape{2, 3}, tt.Shape(), "FromSlice shape")
	if got := tt.At(1, 2); got != 6 {
		t.Errorf("At(1,2) = %v, want 6", got)
	}

	tt.Set(9, 0, 1)
	if got := tt.At(0, 1); got != 9 {
		t.Errorf("At(0,1) after Set = %v, want 9", got)
	}
}

func TestFromSliceShapeMismatch(t *testing.T) {
	_, err := FromSlice([]float32{1, 2, 3}, Shape{2, 2}, mockBackend{})
	if err == nil {
		t.Error("shape/length mismatch accepted")
	}
}

func TestRawTensorDTypes(t *testing.T) {
	raw, err := NewRaw(Shape{4, 4}, BFloat16)
	if err != nil {
		t.Fatalf("NewRaw: %v", err)
	}
	if raw.ByteSize() != 32 {
		t.Errorf("bfloat16 ByteSize = %d, want 32", raw.ByteSize())
	}
	if len(raw.AsUint16()) != 16 {
		t.Errorf("AsUint16 len = %d, want 16", len(raw.AsUint16()))
	}
}

func TestRawTensorCloneAndRelease(t *testing.T) {
	raw, err := NewRawOn(Shape{2, 2}, Float32, DRAM)
	if err != nil {
		t.Fatalf("NewRawOn: %v", err)
	}
	if raw.Placement() != DRAM {
		t.Errorf("placement = %v, want DRAM", raw.Placement())
	}

	clone := raw.Clone()
	raw.Release()
	// Buffer still alive through the clone.
	clone.AsFloat32()[0] = 1.5
	clone.Release()
	if !clone.Released() {
		t.Error("buffer not deallocated after final release")
	}
}

func TestRandnSeededReproducible(t *testing.T) {
	backend := mockBackend{}
	a := Randn[float32](Shape{8, 8}, rand.New(rand.NewSource(7)), backend)
	b := Randn[float32](Shape{8, 8}, rand.New(rand.NewSource(7)), backend)

	da, db := a.Data(), b.Data()
	for i := range da {
		if da[i] != db[i] {
			t.Fatalf("seeded Randn differs at %d: %v vs %v", i, da[i], db[i])
		}
	}
}

func TestDataTypeProperties(t *testing.T) {
	if !BFloat16.IsFloat() || BFloat16.Size() != 2 {
		t.Error("bfloat16 misclassified")
	}
	if !Int32.IsInteger() || Int32.IsFloat() {
		t.Error("int32 misclassified")
	}
	if Float8.Size() != 1 {
		t.Error("float8 size wrong")
	}
}
