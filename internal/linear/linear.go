// internal/linear/linear.go
package linear

// LINEAR11 wire word:
//
//	bits 15..11  exponent N (5-bit two's complement)
//	bits 10..0   mantissa Y (11-bit two's complement)
//	value = Y * 2^N
//
// Inputs are Q7 fixed point (value * 128). The encoder picks the most
// negative exponent in -7..+8 whose rounded mantissa still fits in 10 bits.

const (
	// Q7One is 1.0 in Q7.
	Q7One = 128

	mantissaMax = 0x3FF
	minExponent = -7
	bucketCount = 16
)

// bucketLimit[s] is the first magnitude that no longer fits bucket s
// (shift s, exponent s-7) once half a step has been added for rounding.
var bucketLimit = func() [bucketCount]int64 {
	var t [bucketCount]int64
	for s := 0; s < bucketCount; s++ {
		half := (int64(1) << s) >> 1
		t[s] = (int64(mantissaMax)+1)<<s - half
	}
	return t
}()

// bucketExponent holds the pre-shifted exponent field per bucket.
var bucketExponent = func() [bucketCount]uint16 {
	var t [bucketCount]uint16
	for s := 0; s < bucketCount; s++ {
		t[s] = (uint16(s+minExponent) & 0x1F) << 11
	}
	return t
}()

// EncodeLinear11 converts a Q7 value into a LINEAR11 word.
//
// Zero encodes as exponent -7, mantissa 0. Magnitudes beyond the top bucket
// saturate to the largest mantissa of exponent +8; no fault is raised.
// Negative values carry a two's-complement mantissa.
func EncodeLinear11(rawQ7 int64) uint16 {
	neg := rawQ7 < 0
	mag := rawQ7
	if neg {
		mag = -mag
	}

	s := bucketCount - 1
	for i := 0; i < bucketCount; i++ {
		if mag < bucketLimit[i] {
			s = i
			break
		}
	}

	half := (int64(1) << s) >> 1
	m := (mag + half) >> s
	if m > mantissaMax {
		m = mantissaMax
	}
	if neg {
		m = -m
	}

	return bucketExponent[s] | uint16(m)&0x7FF
}

func split(word uint16) (exp int, mant int64) {
	exp = int(word >> 11)
	if exp > 15 {
		exp -= 32
	}
	mant = int64(word & 0x7FF)
	if mant > 0x3FF {
		mant -= 0x800
	}
	return exp, mant
}

// DecodeLinear11Q7 converts a LINEAR11 word back into Q7.
func DecodeLinear11Q7(word uint16) int64 {
	exp, mant := split(word)
	shift := exp - minExponent
	if shift >= 0 {
		return mant << shift
	}
	return mant >> -shift
}

// DecodeLinear11ToNormal converts a LINEAR11 word into whole units.
// Fractions are truncated toward negative infinity.
func DecodeLinear11ToNormal(word uint16) int32 {
	exp, mant := split(word)
	if exp >= 0 {
		return int32(mant << exp)
	}
	return int32(mant >> -exp)
}

// Step returns the quantization step, in Q7, of the bucket a value lands in.
func Step(rawQ7 int64) int64 {
	exp, _ := split(EncodeLinear11(rawQ7))
	return int64(1) << (exp - minExponent)
}
