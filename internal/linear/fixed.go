// internal/linear/fixed.go
package linear

// Fixed is a PSMI unsigned fixed-fraction format with an explicit
// integer/fraction split. IntBits+FracBits must not exceed 16.
type Fixed struct {
	IntBits  uint8
	FracBits uint8
}

// PSMI telemetry formats.
var (
	FixedVin   = Fixed{IntBits: 9, FracBits: 7}
	FixedIin   = Fixed{IntBits: 5, FracBits: 11}
	FixedVout  = Fixed{IntBits: 6, FracBits: 10}
	FixedIout  = Fixed{IntBits: 8, FracBits: 8}
	FixedPower = Fixed{IntBits: 12, FracBits: 4}
	FixedFan   = Fixed{IntBits: 16, FracBits: 0}
)

func (f Fixed) max() int64 {
	return int64(1)<<(f.IntBits+f.FracBits) - 1
}

// EncodeFixed converts a Q7 value into the format, rounding to the nearest
// step and saturating at both ends.
func EncodeFixed(rawQ7 int64, f Fixed) uint16 {
	if rawQ7 <= 0 {
		return 0
	}
	var v int64
	if f.FracBits >= 7 {
		v = rawQ7 << (f.FracBits - 7)
	} else {
		shift := 7 - f.FracBits
		v = (rawQ7 + int64(1)<<(shift-1)) >> shift
	}
	if m := f.max(); v > m {
		v = m
	}
	return uint16(v)
}

// DecodeFixed converts a fixed-fraction word back into Q7.
func DecodeFixed(word uint16, f Fixed) int64 {
	v := int64(word)
	if f.FracBits >= 7 {
		return v >> (f.FracBits - 7)
	}
	return v << (7 - f.FracBits)
}

// Signed temperature word: bit 15 sign, bits 14..6 integer degrees
// (clamped to 9 bits), bits 5..0 fraction in 1/64 degree.
const (
	tempSign     = 0x8000
	tempMaxUnits = 0x7FFF
)

// EncodeSignedTemperature converts a Q7 temperature into the signed
// sign-magnitude temperature word.
func EncodeSignedTemperature(rawQ7 int64) uint16 {
	neg := rawQ7 < 0
	mag := rawQ7
	if neg {
		mag = -mag
	}
	units := (mag + 1) >> 1 // Q7 -> Q6
	if units > tempMaxUnits {
		units = tempMaxUnits
	}
	w := uint16(units)
	if neg && units != 0 {
		w |= tempSign
	}
	return w
}

// DecodeSignedTemperature converts the signed temperature word into Q7.
func DecodeSignedTemperature(word uint16) int64 {
	v := int64(word&tempMaxUnits) << 1
	if word&tempSign != 0 {
		v = -v
	}
	return v
}
