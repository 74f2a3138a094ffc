// internal/dispatch/dispatch.go
package dispatch

import (
	"errors"

	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/fault"
	"github.com/tamzrod/pmbus-engine/internal/sensor"
	"github.com/tamzrod/pmbus-engine/internal/status"
)

// Dispatcher executes complete commands against the engine state.
// It is not safe for concurrent use; the engine serializes access.
type Dispatcher struct {
	d        Deps
	handlers map[byte]handler

	operation  [command.MaxPages]byte
	fanCommand uint16
}

// New validates the collaborators and builds the handler table.
func New(d Deps) (*Dispatcher, error) {
	if d.Table == nil {
		return nil, errors.New("dispatch: table required")
	}
	if d.Status == nil || d.Telemetry == nil {
		return nil, errors.New("dispatch: status and telemetry required")
	}
	if d.Gate == nil || d.Store == nil {
		return nil, errors.New("dispatch: gate and store required")
	}
	if d.Calibration == nil || d.Latch == nil {
		return nil, errors.New("dispatch: calibration and fault latch required")
	}

	x := &Dispatcher{d: d}
	for p := range x.operation {
		x.operation[p] = OperationOn
	}
	x.handlers = x.buildHandlers()
	return x, nil
}

// Operation returns the OPERATION byte of page.
func (x *Dispatcher) Operation(page command.PageID) byte {
	if int(page) >= len(x.operation) {
		return 0
	}
	return x.operation[page]
}

func (x *Dispatcher) buildHandlers() map[byte]handler {
	return map[byte]handler{
		command.Operation:    {read: x.readOperation, write: x.writeOperation},
		command.ClearFaults:  {write: x.clearFaults, global: true},
		command.Capability:   {read: fixedByte(CapabilityValue)},
		command.FanCommand1:  {read: x.readFanCommand, write: x.writeFanCommand},
		command.StatusByte:   {read: x.readStatusByte},
		command.StatusWord:   {read: x.readStatusWord},
		command.StatusVout:   {read: x.category(status.CatVout)},
		command.StatusIout:   {read: x.category(status.CatIout)},
		command.StatusInput:  {read: x.category(status.CatInput)},
		command.StatusTemp:   {read: x.category(status.CatTemperature)},
		command.StatusCML:    {read: x.category(status.CatCML)},
		command.StatusOther:  {read: x.category(status.CatOther)},
		command.StatusMfr:    {read: x.category(status.CatMfr)},
		command.StatusFans12: {read: x.category(status.CatFans12)},
		command.StatusFans34: {read: x.category(status.CatFans34)},

		command.ReadVin:       {read: x.telemetry(sensor.Vin)},
		command.ReadIin:       {read: x.telemetry(sensor.Iin)},
		command.ReadPin:       {read: x.telemetry(sensor.Pin)},
		command.ReadVout:      {read: x.telemetry(sensor.Vout)},
		command.ReadIout:      {read: x.telemetry(sensor.Iout)},
		command.ReadPout:      {read: x.telemetry(sensor.Pout)},
		command.ReadTemp1:     {read: x.telemetry(sensor.Temp1)},
		command.ReadTemp2:     {read: x.telemetry(sensor.Temp2)},
		command.ReadTemp3:     {read: x.telemetry(sensor.Temp3)},
		command.ReadFanSpeed1: {read: x.telemetry(sensor.Fan1)},
		command.ReadFanSpeed2: {read: x.telemetry(sensor.Fan2)},

		command.PMBusRevision: {read: fixedByte(RevisionValue)},
		command.MfrID:         {read: identity(x.d.Identity.ID)},
		command.MfrModel:      {read: identity(x.d.Identity.Model)},
		command.MfrRevision:   {read: identity(x.d.Identity.Revision)},
		command.MfrSerial:     {read: identity(x.d.Identity.Serial)},

		command.MfrDebugUnlock:      {write: x.debugUnlock, global: true},
		command.MfrTrimVoutGain:     {read: x.readTrim(false), write: x.writeTrim(false)},
		command.MfrTrimIoutGain:     {read: x.readTrim(true), write: x.writeTrim(true)},
		command.MfrCalibrationWrite: {write: x.writeCalibration, global: true},
		command.MfrCalibrationRead:  {read: x.readCalibration},
		command.MfrBlackBoxRead:     {read: x.readBlackBox},
		command.MfrNVErase:          {write: x.eraseRegion, global: true},
		command.MfrDebugSnapshot:    {read: x.readDebugSnapshot},
		command.MfrFirmwareID:       {read: identity(x.d.Identity.Firmware)},
		command.MfrUpgradeUnlock:    {write: x.upgradeUnlock, global: true},
		command.MfrSetBootFlag:      {write: x.setBootFlag, global: true},
		command.MfrUpgradeStatus:    {read: x.upgradeStatus},
	}
}

func (x *Dispatcher) lookup(code byte) (*command.Descriptor, error) {
	desc, ok := x.d.Table.Lookup(code)
	if !ok {
		return nil, fault.New(fault.InvalidCommand, "dispatch", "unsupported command")
	}
	if desc.RequiresUnlock && !x.d.Gate.DebugUnlocked() {
		return nil, fault.New(fault.InvalidCommand, "dispatch", "command locked")
	}
	return desc, nil
}

// HandleWrite executes a write. PageAll fans out to every page the command
// is implemented on.
func (x *Dispatcher) HandleWrite(page command.PageID, code byte, payload []byte) error {
	desc, err := x.lookup(code)
	if err != nil {
		return err
	}
	if desc.Request.IsFixed() && len(payload) != int(desc.Request) {
		return fault.New(fault.InvalidData, "dispatch", "payload length")
	}
	if desc.Request == command.Variable && len(payload) == 0 {
		return fault.New(fault.InvalidData, "dispatch", "empty block")
	}
	if code == command.SMBAlertMask {
		return x.writeMask(page, payload)
	}

	h, ok := x.handlers[code]
	if !ok || h.write == nil {
		return fault.New(fault.InvalidCommand, "dispatch", "no write handler")
	}

	if page != command.PageAll {
		if !x.d.Table.Supports(code, page) {
			return fault.New(fault.InvalidCommand, "dispatch", "command not implemented on page")
		}
		return h.write(page, payload)
	}

	if h.global {
		return h.write(page, payload)
	}
	pages := x.d.Table.SupportedPages(code)
	if len(pages) == 0 {
		return fault.New(fault.InvalidCommand, "dispatch", "command not implemented on any page")
	}
	for _, p := range pages {
		if err := h.write(p, payload); err != nil {
			return err
		}
	}
	return nil
}

// HandleRead executes a read or the read half of a process call.
func (x *Dispatcher) HandleRead(page command.PageID, code byte, args []byte) ([]byte, error) {
	if _, err := x.lookup(code); err != nil {
		return nil, err
	}
	// QUERY describes the command table and answers for every page.
	if code == command.Query {
		return x.query(page, args)
	}
	if page == command.PageAll {
		return nil, fault.New(fault.InvalidData, "dispatch", "read with all pages selected")
	}

	switch code {
	case command.SMBAlertMask:
		return x.readMask(page, args)
	}

	h, ok := x.handlers[code]
	if !ok || h.read == nil {
		return nil, fault.New(fault.InvalidCommand, "dispatch", "no read handler")
	}
	if !x.d.Table.Supports(code, page) {
		return nil, fault.New(fault.InvalidCommand, "dispatch", "command not implemented on page")
	}
	return h.read(page, args)
}
