// internal/poller/format.go
package poller

import (
	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/linear"
	"github.com/tamzrod/pmbus-engine/internal/sensor"
)

var psmiFormats = map[sensor.Quantity]linear.Fixed{
	sensor.Vin:  linear.FixedVin,
	sensor.Iin:  linear.FixedIin,
	sensor.Vout: linear.FixedVout,
	sensor.Iout: linear.FixedIout,
	sensor.Pin:  linear.FixedPower,
	sensor.Pout: linear.FixedPower,
	sensor.Fan1: linear.FixedFan,
	sensor.Fan2: linear.FixedFan,
}

// Format converts a Q7 reading into the wire word of profile.
func Format(profile command.Profile, q sensor.Quantity, rawQ7 int64) uint16 {
	if profile != command.ProfilePSMI {
		return linear.EncodeLinear11(rawQ7)
	}
	switch q {
	case sensor.Temp1, sensor.Temp2, sensor.Temp3:
		return linear.EncodeSignedTemperature(rawQ7)
	}
	return linear.EncodeFixed(rawQ7, psmiFormats[q])
}

// Decode converts a wire word of profile back into Q7.
func Decode(profile command.Profile, q sensor.Quantity, word uint16) int64 {
	if profile != command.ProfilePSMI {
		return linear.DecodeLinear11Q7(word)
	}
	switch q {
	case sensor.Temp1, sensor.Temp2, sensor.Temp3:
		return linear.DecodeSignedTemperature(word)
	}
	return linear.DecodeFixed(word, psmiFormats[q])
}
