// internal/linear/linear_test.go
package linear

import "testing"

func TestEncodeLinear11_KnownWords(t *testing.T) {
	tests := []struct {
		name string
		q7   int64
		want uint16
	}{
		{"zero", 0, 0xC800},
		{"one", 1 * Q7One, 0xC880},        // exp -7, mant 128
		{"12V", 12 * Q7One, 0xD300},       // exp -6, mant 768
		{"230V", 230 * Q7One, 0xF398},     // exp -2, mant 920
		{"half LSB", 1, 0xC801},           // exp -7, mant 1
		{"minus one", -1 * Q7One, 0xCF80}, // exp -7, mant -128
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeLinear11(tt.q7); got != tt.want {
				t.Fatalf("EncodeLinear11(%d)=0x%04X want 0x%04X", tt.q7, got, tt.want)
			}
		})
	}
}

func TestLinear11_RoundTripWithinOneStep(t *testing.T) {
	// Every bucket boundary plus a sweep; the top of bucket 15 is the
	// supported ceiling.
	ceiling := bucketLimit[bucketCount-1] - 1

	check := func(x int64) {
		t.Helper()
		got := DecodeLinear11Q7(EncodeLinear11(x))
		diff := got - x
		if diff < 0 {
			diff = -diff
		}
		if step := Step(x); diff > step {
			t.Fatalf("x=%d decoded=%d diff=%d step=%d", x, got, diff, step)
		}
	}

	for s := 0; s < bucketCount; s++ {
		for _, d := range []int64{-2, -1, 0, 1} {
			x := bucketLimit[s] + d
			if x >= 0 && x <= ceiling {
				check(x)
				check(-x)
			}
		}
	}
	for x := int64(0); x <= ceiling; x += 9973 {
		check(x)
	}
	for x := int64(0); x < 4096; x++ {
		check(x)
	}
}

func TestEncodeLinear11_SaturatesTopBucket(t *testing.T) {
	w := EncodeLinear11(1 << 40)
	if w != 0x43FF {
		t.Fatalf("saturated word=0x%04X want 0x43FF", w)
	}
	if got := DecodeLinear11ToNormal(w); got != 1023*256 {
		t.Fatalf("saturated normal=%d want %d", got, 1023*256)
	}
}

func TestDecodeLinear11ToNormal(t *testing.T) {
	tests := []struct {
		word uint16
		want int32
	}{
		{0xD300, 12},
		{0xF398, 230},
		{0x0064, 100}, // exp 0, mant 100
		{0x0801, 2},   // exp 1, mant 1
		{0xCF80, -1},
	}
	for _, tt := range tests {
		if got := DecodeLinear11ToNormal(tt.word); got != tt.want {
			t.Fatalf("DecodeLinear11ToNormal(0x%04X)=%d want %d", tt.word, got, tt.want)
		}
	}
}

func TestFixed_EncodeDecode(t *testing.T) {
	tests := []struct {
		name string
		q7   int64
		f    Fixed
		want uint16
	}{
		{"vout 12V", 12 * Q7One, FixedVout, 12 << 10},
		{"vin 230V", 230 * Q7One, FixedVin, 230 << 7},
		{"iout 40.5A", 40*Q7One + Q7One/2, FixedIout, 40<<8 | 0x80},
		{"power rounds down", 100*Q7One + 3, FixedPower, 100 << 4},
		{"fan rpm", 8000 * Q7One, FixedFan, 8000},
		{"negative clamps", -5 * Q7One, FixedVout, 0},
		{"saturates", 1000 * Q7One, FixedVout, 0xFFFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeFixed(tt.q7, tt.f); got != tt.want {
				t.Fatalf("EncodeFixed=0x%04X want 0x%04X", got, tt.want)
			}
		})
	}

	if got := DecodeFixed(12<<10, FixedVout); got != 12*Q7One {
		t.Fatalf("DecodeFixed vout=%d want %d", got, 12*Q7One)
	}
	if got := DecodeFixed(100<<4, FixedPower); got != 100*Q7One {
		t.Fatalf("DecodeFixed power=%d want %d", got, 100*Q7One)
	}
}

func TestSignedTemperature(t *testing.T) {
	tests := []struct {
		name string
		q7   int64
		want uint16
	}{
		{"zero", 0, 0x0000},
		{"25C", 25 * Q7One, 25 << 6},
		{"25.5C", 25*Q7One + Q7One/2, 25<<6 | 32},
		{"-10C", -10 * Q7One, 0x8000 | 10<<6},
		{"clamped", 600 * Q7One, 0x7FFF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeSignedTemperature(tt.q7)
			if got != tt.want {
				t.Fatalf("EncodeSignedTemperature=0x%04X want 0x%04X", got, tt.want)
			}
		})
	}

	if got := DecodeSignedTemperature(0x8000 | 10<<6); got != -10*Q7One {
		t.Fatalf("DecodeSignedTemperature=%d want %d", got, -10*Q7One)
	}
}
