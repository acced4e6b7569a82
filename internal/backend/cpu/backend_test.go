package cpu

import (
	"testing"

	"github.com/meshgold/meshgold/internal/tensor"
)

func rawFromF32(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float32)
	if err != nil {
		t.Fatalf("NewRaw: %v", err)
	}
	copy(raw.AsFloat32(), data)
	return raw
}

func float32SliceEqual(a, b []float32) bool {
	const epsilon = 1e-5
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		diff := a[i] - b[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > epsilon {
			return false
		}
	}
	return true
}

func TestCPUBackend_New(t *testing.T) {
	backend := New()
	if backend.Name() != "cpu" {
		t.Errorf("Name() = %q, want cpu", backend.Name())
	}
	if backend.Placement() != tensor.Host {
		t.Errorf("Placement() = %v, want Host", backend.Placement())
	}
}

func TestCPUBackend_Add(t *testing.T) {
	backend := New()

	t.Run("SameShape", func(t *testing.T) {
		a := rawFromF32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
		b := rawFromF32(t, []float32{10, 20, 30, 40}, tensor.Shape{2, 2})

		c := backend.Add(a, b)
		if !float32SliceEqual(c.AsFloat32(), []float32{11, 22, 33, 44}) {
			t.Errorf("Add = %v", c.AsFloat32())
		}
	})

	t.Run("Broadcast", func(t *testing.T) {
		a := rawFromF32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
		b := rawFromF32(t, []float32{10, 20, 30}, tensor.Shape{1, 3})

		c := backend.Add(a, b)
		if !c.Shape().Equal(tensor.Shape{2, 3}) {
			t.Fatalf("shape = %v", c.Shape())
		}
		if !float32SliceEqual(c.AsFloat32(), []float32{11, 22, 33, 14, 25, 36}) {
			t.Errorf("broadcast Add = %v", c.AsFloat32())
		}
	})
}

func TestCPUBackend_Scalar(t *testing.T) {
	backend := New()
	a := rawFromF32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})

	c := backend.MulScalar(a, float32(2.5))
	if !float32SliceEqual(c.AsFloat32(), []float32{2.5, 5, 7.5, 10}) {
		t.Errorf("MulScalar = %v", c.AsFloat32())
	}

	c = backend.AddScalar(a, float32(1))
	if !float32SliceEqual(c.AsFloat32(), []float32{2, 3, 4, 5}) {
		t.Errorf("AddScalar = %v", c.AsFloat32())
	}
}

func TestCPUBackend_MatMul(t *testing.T) {
	backend := New()
	a := rawFromF32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := rawFromF32(t, []float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})

	c := backend.MatMul(a, b)
	if !c.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("shape = %v", c.Shape())
	}
	if !float32SliceEqual(c.AsFloat32(), []float32{58, 64, 139, 154}) {
		t.Errorf("MatMul = %v", c.AsFloat32())
	}
}

func TestCPUBackend_BatchMatMul(t *testing.T) {
	backend := New()
	// Two batches: identity-ish checks.
	a := rawFromF32(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{2, 2, 2})
	b := rawFromF32(t, []float32{1, 0, 0, 1, 2, 0, 0, 2}, tensor.Shape{2, 2, 2})

	c := backend.BatchMatMul(a, b)
	if !c.Shape().Equal(tensor.Shape{2, 2, 2}) {
		t.Fatalf("shape = %v", c.Shape())
	}
	if !float32SliceEqual(c.AsFloat32(), []float32{1, 2, 3, 4, 10, 12, 14, 16}) {
		t.Errorf("BatchMatMul = %v", c.AsFloat32())
	}
}

func TestCPUBackend_Softmax(t *testing.T) {
	backend := New()
	a := rawFromF32(t, []float32{1, 2, 3, 1, 2, 3}, tensor.Shape{2, 3})

	c := backend.Softmax(a, -1)
	data := c.AsFloat32()

	for row := 0; row < 2; row++ {
		sum := float32(0)
		for j := 0; j < 3; j++ {
			sum += data[row*3+j]
		}
		if sum < 0.999 || sum > 1.001 {
			t.Errorf("row %d sums to %v", row, sum)
		}
		if !(data[row*3] < data[row*3+1] && data[row*3+1] < data[row*3+2]) {
			t.Errorf("row %d not monotone: %v", row, data[row*3:row*3+3])
		}
	}
}

func TestCPUBackend_Transpose(t *testing.T) {
	backend := New()
	a := rawFromF32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	c := backend.Transpose(a)
	if !c.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("shape = %v", c.Shape())
	}
	if !float32SliceEqual(c.AsFloat32(), []float32{1, 4, 2, 5, 3, 6}) {
		t.Errorf("Transpose = %v", c.AsFloat32())
	}
}

func TestCPUBackend_Transpose4D(t *testing.T) {
	backend := New()
	// [1, 2, 1, 3] -> swap dims 0 and 1 -> [2, 1, 1, 3]
	a := rawFromF32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{1, 2, 1, 3})

	c := backend.Transpose(a, 1, 0, 2, 3)
	if !c.Shape().Equal(tensor.Shape{2, 1, 1, 3}) {
		t.Fatalf("shape = %v", c.Shape())
	}
	if !float32SliceEqual(c.AsFloat32(), []float32{1, 2, 3, 4, 5, 6}) {
		t.Errorf("Transpose4D = %v", c.AsFloat32())
	}
}

func TestCPUBackend_CatNarrow(t *testing.T) {
	backend := New()
	a := rawFromF32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := rawFromF32(t, []float32{5, 6, 7, 8}, tensor.Shape{2, 2})

	c := backend.Cat([]*tensor.RawTensor{a, b}, 1)
	if !c.Shape().Equal(tensor.Shape{2, 4}) {
		t.Fatalf("cat shape = %v", c.Shape())
	}
	if !float32SliceEqual(c.AsFloat32(), []float32{1, 2, 5, 6, 3, 4, 7, 8}) {
		t.Errorf("Cat = %v", c.AsFloat32())
	}

	n := backend.Narrow(c, 1, 1, 2)
	if !n.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("narrow shape = %v", n.Shape())
	}
	if !float32SliceEqual(n.AsFloat32(), []float32{2, 5, 4, 7}) {
		t.Errorf("Narrow = %v", n.AsFloat32())
	}
}

func TestCPUBackend_SqueezeUnsqueeze(t *testing.T) {
	backend := New()
	a := rawFromF32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})

	u := backend.Unsqueeze(a, 1)
	if !u.Shape().Equal(tensor.Shape{2, 1, 2}) {
		t.Fatalf("unsqueeze shape = %v", u.Shape())
	}

	s := backend.Squeeze(u, 1)
	if !s.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("squeeze shape = %v", s.Shape())
	}
}

func TestCPUBackend_Reductions(t *testing.T) {
	backend := New()
	a := rawFromF32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	s := backend.SumDim(a, 0, false)
	if !float32SliceEqual(s.AsFloat32(), []float32{5, 7, 9}) {
		t.Errorf("SumDim(0) = %v", s.AsFloat32())
	}

	m := backend.MeanDim(a, 1, true)
	if !m.Shape().Equal(tensor.Shape{2, 1}) {
		t.Fatalf("MeanDim keepDim shape = %v", m.Shape())
	}
	if !float32SliceEqual(m.AsFloat32(), []float32{2, 5}) {
		t.Errorf("MeanDim(1) = %v", m.AsFloat32())
	}
}

func TestCPUBackend_Conv2D(t *testing.T) {
	backend := New()
	// 1x1x3x3 input, 1x1x2x2 kernel of ones -> 2x2 sums.
	input := rawFromF32(t, []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}, tensor.Shape{1, 1, 3, 3})
	kernel := rawFromF32(t, []float32{1, 1, 1, 1}, tensor.Shape{1, 1, 2, 2})

	c := backend.Conv2D(input, kernel, 1, 0)
	if !c.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("conv shape = %v", c.Shape())
	}
	if !float32SliceEqual(c.AsFloat32(), []float32{12, 16, 24, 28}) {
		t.Errorf("Conv2D = %v", c.AsFloat32())
	}
}

func TestCPUBackend_MaxPool2D(t *testing.T) {
	backend := New()
	input := rawFromF32(t, []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}, tensor.Shape{1, 1, 4, 4})

	c := backend.MaxPool2D(input, 2, 2)
	if !c.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("pool shape = %v", c.Shape())
	}
	if !float32SliceEqual(c.AsFloat32(), []float32{6, 8, 14, 16}) {
		t.Errorf("MaxPool2D = %v", c.AsFloat32())
	}
}

func TestCPUBackend_Cast(t *testing.T) {
	backend := New()
	a := rawFromF32(t, []float32{1.5, 2.5}, tensor.Shape{2})

	c := backend.Cast(a, tensor.Float64)
	d := c.AsFloat64()
	if d[0] != 1.5 || d[1] != 2.5 {
		t.Errorf("Cast = %v", d)
	}
}
