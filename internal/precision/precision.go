// Package precision implements the reduced-precision storage types of
// the emulated device (bfloat16 and float8 E4M3) and a decorator
// backend that rounds every operation result through one of them. The
// decorator is what makes device outputs differ from the golden path by
// a realistic precision delta instead of matching bit-for-bit.
package precision

import "math"

// EncodeBFloat16 converts a float32 to bfloat16 bits using
// round-to-nearest-even. NaN is preserved as a quiet NaN.
func EncodeBFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	if f != f { // NaN
		return uint16(bits>>16) | 0x0040
	}
	// Round to nearest even on the truncated 16 bits.
	lsb := (bits >> 16) & 1
	bits += 0x7fff + lsb
	return uint16(bits >> 16)
}

// DecodeBFloat16 converts bfloat16 bits back to float32.
func DecodeBFloat16(b uint16) float32 {
	return math.Float32frombits(uint32(b) << 16)
}

// RoundBFloat16 rounds a float32 through bfloat16 storage.
func RoundBFloat16(f float32) float32 {
	return DecodeBFloat16(EncodeBFloat16(f))
}

// Float8 E4M3: 1 sign, 4 exponent (bias 7), 3 mantissa bits. No
// infinities; 0x7F/0xFF is NaN; the largest normal value is 448.
const (
	float8MaxValue = 448
	float8NaN      = 0x7f
)

// EncodeFloat8 converts a float32 to float8 E4M3 bits. Out-of-range
// magnitudes saturate to the largest representable value.
func EncodeFloat8(f float32) uint8 {
	if f != f {
		return float8NaN
	}

	var sign uint8
	a := f
	if math.Signbit(float64(f)) {
		sign = 0x80
		a = -f
	}

	if a > float8MaxValue {
		return sign | 0x7e // 448
	}
	if a < 0x1p-10 { // below half the smallest subnormal step
		return sign
	}

	// Subnormal range: below 2^-6, step 2^-9.
	if a < 0x1p-6 {
		mant := uint8(math.RoundToEven(float64(a) * 0x1p9))
		if mant > 7 {
			// Rounded up into the smallest normal.
			return sign | 0x08
		}
		return sign | mant
	}

	exp := int(math.Floor(math.Log2(float64(a))))
	mant := int(math.RoundToEven((float64(a)/math.Ldexp(1, exp) - 1) * 8))
	if mant == 8 {
		exp++
		mant = 0
	}
	if exp > 8 || (exp == 8 && mant > 6) {
		return sign | 0x7e
	}
	return sign | uint8(exp+7)<<3 | uint8(mant)
}

// DecodeFloat8 converts float8 E4M3 bits back to float32.
func DecodeFloat8(b uint8) float32 {
	sign := float32(1)
	if b&0x80 != 0 {
		sign = -1
	}
	exp := int(b>>3) & 0x0f
	mant := int(b) & 0x07

	if exp == 0x0f && mant == 0x07 {
		return float32(math.NaN())
	}
	if exp == 0 {
		return sign * float32(mant) * 0x1p-9
	}
	return sign * float32(math.Ldexp(1+float64(mant)/8, exp-7))
}

// RoundFloat8 rounds a float32 through float8 storage.
func RoundFloat8(f float32) float32 {
	return DecodeFloat8(EncodeFloat8(f))
}
