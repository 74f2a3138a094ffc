// internal/status/snapshot.go
package status

import "github.com/tamzrod/pmbus-engine/internal/sensor"

// Registers is the status register file of one page. Category bits are
// stored as latched or live values; STATUS_WORD and STATUS_BYTE are derived.
type Registers struct {
	Cat [NumCategories]Flags

	// Live conditions reflected only in the summary word.
	Off        bool
	PowerGoodN bool
}

// Category returns one category register.
func (r Registers) Category(c Category) Flags {
	if c >= NumCategories {
		return 0
	}
	return r.Cat[c]
}

// Byte returns STATUS_BYTE (the low byte of STATUS_WORD).
func (r Registers) Byte() uint8 {
	return uint8(r.Word())
}

// Snapshot is what the mirror writer is allowed to deliver for one page.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Registers Registers
	Alert     bool

	Telemetry      [sensor.NumQuantities]uint16
	TelemetryValid [sensor.NumQuantities]bool
}
