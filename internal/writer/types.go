// internal/writer/types.go
package writer

import (
	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/status"
)

// Plan places the page blocks of one device on a Modbus endpoint.
// Page p occupies holding registers starting at
// (BaseSlot+p) * status.SlotsPerPage.
type Plan struct {
	Endpoint   string
	UnitID     uint32
	BaseSlot   uint16
	Pages      int
	DeviceName string
}

// Source is the device as the mirror sees it.
type Source interface {
	Pages() int
	Snapshot(page command.PageID) status.Snapshot
}

// Client is the exact contract the mirror uses.
type Client interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
	Close() error
}

// Dialer opens a client. It is called once per connection attempt.
type Dialer func() (Client, error)
