// internal/sensor/sensor.go
package sensor

import "github.com/tamzrod/pmbus-engine/internal/command"

// Quantity is one telemetry channel.
type Quantity uint8

const (
	Vin Quantity = iota
	Iin
	Pin
	Vout
	Iout
	Pout
	Temp1
	Temp2
	Temp3
	Fan1
	Fan2

	NumQuantities
)

var quantityNames = [NumQuantities]string{
	"vin", "iin", "pin", "vout", "iout", "pout",
	"temp1", "temp2", "temp3", "fan1", "fan2",
}

func (q Quantity) String() string {
	if q < NumQuantities {
		return quantityNames[q]
	}
	return "unknown"
}

// Shared quantities are measured once at the input and reported on every page.
func (q Quantity) Shared() bool {
	return q == Vin || q == Iin || q == Pin
}

// Group is the measurement group a quantity is refreshed with.
type Group uint8

const (
	GroupFanNTC Group = iota
	GroupOutput
	GroupInput

	NumGroups
)

func (q Quantity) Group() Group {
	switch q {
	case Vin, Iin, Pin:
		return GroupInput
	case Vout, Iout, Pout:
		return GroupOutput
	default:
		return GroupFanNTC
	}
}

// Quantities returns the members of g in declaration order.
func (g Group) Quantities() []Quantity {
	var out []Quantity
	for q := Quantity(0); q < NumQuantities; q++ {
		if q.Group() == g {
			out = append(out, q)
		}
	}
	return out
}

// Source is the ADC/NTC/calibration front end. Values are Q7 physical units
// (volts, amperes, watts, degrees Celsius, RPM). ok is false when the
// quantity is not measured on that page.
type Source interface {
	ReadQ7(page command.PageID, q Quantity) (v int64, ok bool)
}

// ---- conditions ----

// GlobalConditions apply to every page.
type GlobalConditions struct {
	ACPresent       bool
	AuxMode         bool
	StandbyOnly     bool
	CommsLinkFailed bool

	VinOVFault bool
	VinOVWarn  bool
	VinUVWarn  bool
	VinUVFault bool
	IinOCWarn  bool
	PinOPWarn  bool

	OTFault bool
	OTWarn  bool

	Fan1Fault   bool
	Fan1Warn    bool
	Fan2Fault   bool
	Fan2Warn    bool
	FanOverride bool
}

// RailConditions apply only to their own page.
type RailConditions struct {
	Enabled   bool
	PowerGood bool

	VoutOVFault bool
	VoutOVWarn  bool
	VoutUVWarn  bool
	VoutUVFault bool
	IoutOCFault bool
	IoutOCWarn  bool
	PoutOPWarn  bool
}

// Conditions is one sample of everything the status model evaluates.
type Conditions struct {
	Global GlobalConditions
	Rails  [command.MaxPages]RailConditions
}

// ConditionSource reports the current protection and mode conditions.
type ConditionSource interface {
	Conditions() Conditions
}

// FaultLatch resets the rail-level protection flip-flops.
type FaultLatch interface {
	ResetLatches()
}
