// internal/engine/types.go
package engine

import (
	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/dispatch"
	"github.com/tamzrod/pmbus-engine/internal/fault"
	"github.com/tamzrod/pmbus-engine/internal/gate"
	"github.com/tamzrod/pmbus-engine/internal/nvstore"
	"github.com/tamzrod/pmbus-engine/internal/sensor"
	"github.com/tamzrod/pmbus-engine/internal/status"
)

// Config is the engine configuration.
type Config struct {
	Address uint8
	Profile command.Profile
	Pages   int
	PEC     bool

	// Delays in 10 ms ticks.
	StartupTicks     int
	RebootDelayTicks int

	Controllers  []uint8
	DefaultMasks [status.NumCategories]status.Flags
	PageMasks    []MaskOverride

	Identity dispatch.Identity
}

// MaskOverride replaces one default SMBAlert mask on one page.
type MaskOverride struct {
	Page     command.PageID
	Category status.Category
	Mask     status.Flags
}

// Plant is the power stage as the engine sees it: measurements,
// conditions and the rail-level fault latches.
type Plant interface {
	sensor.Source
	sensor.ConditionSource
	sensor.FaultLatch
}

// AlertLine drives the SMBALERT# output. It is called only on change.
type AlertLine interface {
	SetAlert(asserted bool)
}

// Deps are the engine collaborators. Alert and LED are optional.
type Deps struct {
	Plant    Plant
	Storage  nvstore.Storage
	PageSize int
	Layout   nvstore.Layout
	Reset    gate.Resetter
	Alert    AlertLine
	LED      func() uint8
}

// faultCodes are the counted fault codes, in debug snapshot order.
var faultCodes = []fault.Code{
	fault.InvalidCommand,
	fault.InvalidData,
	fault.PecFault,
	fault.MemoryFault,
	fault.CommsFault,
}

// Counters are the transport and measurement statistics.
type Counters struct {
	Transactions uint32
	Faults       map[fault.Code]uint32

	// Polls counts measurement passes, Samples the slots they published.
	Polls   uint32
	Samples uint32
}
