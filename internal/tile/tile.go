// Package tile converts tensors between the host row-major layout and
// the device tiled layout: the last two dimensions are padded up to
// multiples of the tile size and stored tile by tile. Padded cache
// tensors coming back from the device keep their padding until the
// harness trims them.
package tile

import (
	"fmt"

	"github.com/meshgold/meshgold/internal/tensor"
)

// Size is the square tile edge the device operates on.
const Size = 32

// PadDim rounds n up to the next multiple of the tile size.
func PadDim(n int) int {
	return (n + Size - 1) / Size * Size
}

// Aligned reports whether n is a multiple of the tile size.
func Aligned(n int) bool {
	return n%Size == 0
}

// PadShape returns the shape with the last two dims padded to tile
// multiples. Shapes with fewer than two dims are rejected.
func PadShape(s tensor.Shape) (tensor.Shape, error) {
	if len(s) < 2 {
		return nil, fmt.Errorf("tilize: need at least 2 dims, got shape %v", s)
	}
	padded := s.Clone()
	padded[len(s)-2] = PadDim(s[len(s)-2])
	padded[len(s)-1] = PadDim(s[len(s)-1])
	return padded, nil
}

// Tilize converts a row-major tensor to the tiled device layout,
// zero-padding the last two dims to tile multiples. Leading dims are
// treated as batch. Works on any dtype; the buffer is moved bytewise.
func Tilize(t *tensor.RawTensor) (*tensor.RawTensor, error) {
	if t.Layout() != tensor.RowMajor {
		return nil, fmt.Errorf("tilize: tensor already in %s layout", t.Layout())
	}
	padded, err := PadShape(t.Shape())
	if err != nil {
		return nil, err
	}

	out, err := tensor.NewRawOn(padded, t.DType(), t.Placement())
	if err != nil {
		return nil, err
	}
	out.SetLayout(tensor.Tiled)

	shape := t.Shape()
	nd := len(shape)
	h, w := shape[nd-2], shape[nd-1]
	ph, pw := padded[nd-2], padded[nd-1]
	batch := 1
	for d := 0; d < nd-2; d++ {
		batch *= shape[d]
	}

	es := t.DType().Size()
	src, dst := t.Data(), out.Data()
	for b := 0; b < batch; b++ {
		srcBase := b * h * w
		dstBase := b * ph * pw
		// Walk tiles in row-major tile order, rows within each tile.
		pos := dstBase
		for ty := 0; ty < ph; ty += Size {
			for tx := 0; tx < pw; tx += Size {
				for ry := 0; ry < Size; ry++ {
					y := ty + ry
					rowStart := pos * es
					pos += Size
					if y >= h || tx >= w {
						continue // stays zero
					}
					n := min(Size, w-tx)
					copy(dst[rowStart:rowStart+n*es],
						src[(srcBase+y*w+tx)*es:(srcBase+y*w+tx+n)*es])
				}
			}
		}
	}
	return out, nil
}

// Untilize converts a tiled tensor back to row-major, trimming the tile
// padding down to the logical shape. The logical shape must match the
// tiled tensor's batch dims and be covered by its padded extents.
func Untilize(t *tensor.RawTensor, logical tensor.Shape) (*tensor.RawTensor, error) {
	if t.Layout() != tensor.Tiled {
		return nil, fmt.Errorf("untilize: tensor in %s layout", t.Layout())
	}
	shape := t.Shape()
	nd := len(shape)
	if len(logical) != nd {
		return nil, fmt.Errorf("untilize: rank mismatch: tiled %v vs logical %v", shape, logical)
	}
	for d := 0; d < nd-2; d++ {
		if logical[d] != shape[d] {
			return nil, fmt.Errorf("untilize: batch dim %d mismatch: tiled %v vs logical %v", d, shape, logical)
		}
	}
	h, w := logical[nd-2], logical[nd-1]
	ph, pw := shape[nd-2], shape[nd-1]
	if h > ph || w > pw || !Aligned(ph) || !Aligned(pw) {
		return nil, fmt.Errorf("untilize: logical %v does not fit tiled %v", logical, shape)
	}

	out, err := tensor.NewRawOn(logical, t.DType(), t.Placement())
	if err != nil {
		return nil, err
	}

	batch := 1
	for d := 0; d < nd-2; d++ {
		batch *= shape[d]
	}

	es := t.DType().Size()
	src, dst := t.Data(), out.Data()
	tilesPerRow := pw / Size
	for b := 0; b < batch; b++ {
		srcBase := b * ph * pw
		dstBase := b * h * w
		for y := 0; y < h; y++ {
			tileY := y / Size
			rowInTile := y % Size
			for tx := 0; tx < w; tx += Size {
				tileX := tx / Size
				tileStart := srcBase + (tileY*tilesPerRow+tileX)*Size*Size
				rowStart := tileStart + rowInTile*Size
				n := min(Size, w-tx)
				copy(dst[(dstBase+y*w+tx)*es:(dstBase+y*w+tx+n)*es],
					src[rowStart*es:(rowStart+n)*es])
			}
		}
	}
	return out, nil
}
