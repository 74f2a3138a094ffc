// internal/dispatch/types.go
package dispatch

import (
	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/nvstore"
	"github.com/tamzrod/pmbus-engine/internal/sensor"
	"github.com/tamzrod/pmbus-engine/internal/snapshot"
	"github.com/tamzrod/pmbus-engine/internal/status"
)

// Status is the slice of the status aggregator the dispatcher needs.
type Status interface {
	Registers(page command.PageID) status.Registers
	Clear()
	SetMask(page command.PageID, cat status.Category, mask status.Flags) error
	Mask(page command.PageID, cat status.Category) status.Flags
}

// Telemetry returns wire-formatted measurement words.
type Telemetry interface {
	Read(page command.PageID, q sensor.Quantity) (snapshot.Word, bool)
}

// Gate is the lock and upgrade gate.
type Gate interface {
	DebugUnlocked() bool
	DebugUnlock(word uint16)
	UpgradeUnlock(block []byte)
	SetBootFlag(v uint8) error
	Status() byte
	ClearSticky()
}

// Store is the non-volatile record layer.
type Store interface {
	SaveCalibration(words []uint16) error
	Erase(r nvstore.Region) error
	BlackBoxCount() int
	BlackBoxRecord(i int) (nvstore.BlackBoxRecord, bool, error)
}

// RailControl switches outputs on OPERATION writes.
type RailControl interface {
	SetRailEnabled(page command.PageID, on bool)
}

// FanControl receives FAN_COMMAND_1 duty cycles in percent.
type FanControl interface {
	SetFanDuty(percent int)
}

// DebugSource produces the MFR_DEBUG_SNAPSHOT payload.
type DebugSource interface {
	DebugSnapshot() []byte
}

// Identity holds the manufacturer strings.
type Identity struct {
	ID       string
	Model    string
	Revision string
	Serial   string
	Firmware string
}

// Deps are the dispatcher collaborators. Rails, Fans and Debug are optional.
type Deps struct {
	Table       *command.Table
	Status      Status
	Telemetry   Telemetry
	Gate        Gate
	Store       Store
	Calibration *sensor.CalibrationRecord
	Latch       sensor.FaultLatch

	Rails RailControl
	Fans  FanControl
	Debug DebugSource

	Identity Identity
}

// OPERATION values.
const (
	OperationOff     byte = 0x00
	OperationSoftOff byte = 0x40
	OperationOn      byte = 0x80
)

// Fixed read values.
const (
	// CapabilityValue: PEC supported, 400 kHz, SMBALERT# supported.
	CapabilityValue byte = 0xB0
	// RevisionValue: Part I and Part II revision 1.2.
	RevisionValue byte = 0x22
)

// MaxIdentityLen bounds the identity block reads.
const MaxIdentityLen = 32

// handler is one row of the dispatch table. global handlers run once for
// PageAll instead of fanning out.
type handler struct {
	read   func(page command.PageID, args []byte) ([]byte, error)
	write  func(page command.PageID, payload []byte) error
	global bool
}
