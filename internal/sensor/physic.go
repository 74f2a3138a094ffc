// internal/sensor/physic.go
package sensor

import (
	"periph.io/x/conn/v3/physic"

	"github.com/tamzrod/pmbus-engine/internal/linear"
)

// Conversions between periph physical units and Q7 engineering units.

func PotentialQ7(v physic.ElectricPotential) int64 {
	return int64(v/physic.MicroVolt) * linear.Q7One / 1_000_000
}

func CurrentQ7(i physic.ElectricCurrent) int64 {
	return int64(i/physic.MicroAmpere) * linear.Q7One / 1_000_000
}

func PowerQ7(p physic.Power) int64 {
	return int64(p/physic.MicroWatt) * linear.Q7One / 1_000_000
}

// TemperatureQ7 returns degrees Celsius in Q7.
func TemperatureQ7(t physic.Temperature) int64 {
	return int64((t-physic.ZeroCelsius)/physic.MicroKelvin) * linear.Q7One / 1_000_000
}

// RPMQ7 returns revolutions per minute in Q7.
func RPMQ7(f physic.Frequency) int64 {
	return int64(f/physic.MicroHertz) * 60 * linear.Q7One / 1_000_000
}

func PotentialFromQ7(q int64) physic.ElectricPotential {
	return physic.ElectricPotential(q * 1_000_000 / linear.Q7One) * physic.MicroVolt
}

func CurrentFromQ7(q int64) physic.ElectricCurrent {
	return physic.ElectricCurrent(q * 1_000_000 / linear.Q7One) * physic.MicroAmpere
}

func PowerFromQ7(q int64) physic.Power {
	return physic.Power(q * 1_000_000 / linear.Q7One) * physic.MicroWatt
}

func TemperatureFromQ7(q int64) physic.Temperature {
	return physic.Temperature(q*1_000_000/linear.Q7One)*physic.MicroKelvin + physic.ZeroCelsius
}

func FrequencyFromRPMQ7(q int64) physic.Frequency {
	return physic.Frequency(q * 1_000_000 / (60 * linear.Q7One)) * physic.MicroHertz
}
