// internal/status/aggregator.go
package status

import (
	"errors"
	"fmt"

	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/fault"
	"github.com/tamzrod/pmbus-engine/internal/sensor"
	"github.com/tamzrod/pmbus-engine/internal/snapshot"
)

// Config is the aggregator configuration.
type Config struct {
	Pages        int
	StartupTicks int
	DefaultMasks [NumCategories]Flags
}

// Aggregator owns the status register files of every page.
// It is not safe for concurrent use; the engine serializes access.
type Aggregator struct {
	pages        int
	startupTicks int

	regs  [command.MaxPages]snapshot.Slot[Registers]
	masks [command.MaxPages][NumCategories]Flags

	alert bool
}

// NewAggregator builds an aggregator with every page cleared.
func NewAggregator(cfg Config) (*Aggregator, error) {
	if cfg.Pages < 1 || cfg.Pages > command.MaxPages {
		return nil, fmt.Errorf("status: pages must be 1..%d", command.MaxPages)
	}
	if cfg.StartupTicks < 0 {
		return nil, errors.New("status: startup ticks must be >= 0")
	}

	a := &Aggregator{pages: cfg.Pages, startupTicks: cfg.StartupTicks}
	for p := 0; p < cfg.Pages; p++ {
		a.masks[p] = cfg.DefaultMasks
	}
	return a, nil
}

// Pages returns the page count.
func (a *Aggregator) Pages() int { return a.pages }

// Started reports whether the startup delay has elapsed.
func (a *Aggregator) Started() bool { return a.startupTicks == 0 }

// Tick runs one aggregation pass and returns the pages that latched a new
// fault bit during it.
func (a *Aggregator) Tick(c sensor.Conditions) []command.PageID {
	if a.startupTicks > 0 {
		a.startupTicks--
		return nil
	}

	var gained []command.PageID
	for p := 0; p < a.pages; p++ {
		page := command.PageID(p)
		slot := &a.regs[p]

		g := slot.BeginUpdate()
		r := g.Value()
		before := *r
		evaluate(r, page, c)
		g.Release()

		for cat := Category(0); cat < NumCategories; cat++ {
			if r.Cat[cat]&faultBits[cat]&^before.Cat[cat] != 0 {
				gained = append(gained, page)
				break
			}
		}
	}
	return gained
}

func evaluate(r *Registers, page command.PageID, c sensor.Conditions) {
	for i := range r.Cat {
		r.Cat[i] &^= liveBits[i]
	}

	gl := c.Global
	rail := c.Rails[page]
	r.Off = !rail.Enabled
	r.PowerGoodN = !rail.PowerGood

	switch {
	case gl.AuxMode:
		r.Cat[CatInput] |= InputUnitOffLowVin
		r.Off = true
		r.PowerGoodN = true
		return

	case gl.StandbyOnly && page != command.PageStandby:
		r.Off = true
		r.PowerGoodN = true
		return

	case gl.CommsLinkFailed:
		r.Cat[CatCML] |= CMLOtherComm
		return
	}

	in := &r.Cat[CatInput]
	if !gl.ACPresent {
		*in |= InputUnitOffLowVin | VinUVFault
	}
	set(in, gl.VinOVFault, VinOVFault)
	set(in, gl.VinOVWarn, VinOVWarn)
	set(in, gl.VinUVWarn, VinUVWarn)
	set(in, gl.VinUVFault, VinUVFault)
	set(in, gl.IinOCWarn, IinOCWarn)
	set(in, gl.PinOPWarn, PinOPWarn)

	set(&r.Cat[CatTemperature], gl.OTFault, OTFault)
	set(&r.Cat[CatTemperature], gl.OTWarn, OTWarn)

	fans := &r.Cat[CatFans12]
	set(fans, gl.Fan1Fault, Fan1Fault)
	set(fans, gl.Fan2Fault, Fan2Fault)
	set(fans, gl.Fan1Warn, Fan1Warn)
	set(fans, gl.Fan2Warn, Fan2Warn)
	set(fans, gl.FanOverride, Fan1Override|Fan2Override)

	vout := &r.Cat[CatVout]
	set(vout, rail.VoutOVFault, VoutOVFault)
	set(vout, rail.VoutOVWarn, VoutOVWarn)
	set(vout, rail.VoutUVWarn, VoutUVWarn)
	set(vout, rail.VoutUVFault, VoutUVFault)

	iout := &r.Cat[CatIout]
	set(iout, rail.IoutOCFault, IoutOCFault)
	set(iout, rail.IoutOCWarn, IoutOCWarn)
	set(iout, rail.PoutOPWarn, PoutOPWarn)
}

func set(f *Flags, cond bool, bits Flags) {
	if cond {
		*f |= bits
	}
}

// Latch records a communication fault as a sticky CML bit on page, or on
// every page for PageAll. Codes without a CML bit are ignored.
func (a *Aggregator) Latch(page command.PageID, code fault.Code) {
	bit := cmlBit(code)
	if bit == 0 {
		return
	}
	a.forPages(page, func(p int) {
		a.regs[p].Update(func(r *Registers) { r.Cat[CatCML] |= bit })
	})
}

func cmlBit(code fault.Code) Flags {
	switch code {
	case fault.InvalidCommand:
		return CMLInvalidCommand
	case fault.InvalidData:
		return CMLInvalidData
	case fault.PecFault:
		return CMLPecFailed
	case fault.MemoryFault:
		return CMLMemoryFault
	case fault.CommsFault:
		return CMLOtherComm
	}
	return 0
}

// Clear drops every latched bit on every page. Live bits survive until the
// next tick recomputes them. Calling it twice is the same as calling it once.
func (a *Aggregator) Clear() {
	for p := 0; p < a.pages; p++ {
		a.regs[p].Update(func(r *Registers) {
			for i := range r.Cat {
				r.Cat[i] &= liveBits[i]
			}
		})
	}
}

// Registers returns the published register file of page.
func (a *Aggregator) Registers(page command.PageID) Registers {
	if !page.Valid(a.pages) {
		return Registers{}
	}
	return a.regs[page].Read()
}

// Previous returns the register file as it was before the latest update.
func (a *Aggregator) Previous(page command.PageID) Registers {
	if !page.Valid(a.pages) {
		return Registers{}
	}
	return a.regs[page].Previous()
}

func (a *Aggregator) forPages(page command.PageID, fn func(p int)) {
	if page == command.PageAll {
		for p := 0; p < a.pages; p++ {
			fn(p)
		}
		return
	}
	if page.Valid(a.pages) {
		fn(int(page))
	}
}
