// internal/dispatch/handlers.go
package dispatch

import (
	"encoding/binary"

	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/fault"
	"github.com/tamzrod/pmbus-engine/internal/linear"
	"github.com/tamzrod/pmbus-engine/internal/nvstore"
	"github.com/tamzrod/pmbus-engine/internal/sensor"
	"github.com/tamzrod/pmbus-engine/internal/status"
)

func invalidData(msg string) error {
	return fault.New(fault.InvalidData, "dispatch", msg)
}

func memoryFault(msg string, err error) error {
	return &fault.E{C: fault.MemoryFault, Op: "dispatch", Msg: msg, Err: err}
}

func word(v uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, v)
}

func fixedByte(v byte) func(command.PageID, []byte) ([]byte, error) {
	return func(command.PageID, []byte) ([]byte, error) {
		return []byte{v}, nil
	}
}

func identity(s string) func(command.PageID, []byte) ([]byte, error) {
	b := []byte(s)
	if len(b) > MaxIdentityLen {
		b = b[:MaxIdentityLen]
	}
	return func(command.PageID, []byte) ([]byte, error) {
		return append([]byte(nil), b...), nil
	}
}

// ---- control ----

func (x *Dispatcher) readOperation(page command.PageID, _ []byte) ([]byte, error) {
	return []byte{x.operation[page]}, nil
}

func (x *Dispatcher) writeOperation(page command.PageID, p []byte) error {
	switch p[0] {
	case OperationOff, OperationSoftOff, OperationOn:
	default:
		return invalidData("operation value")
	}
	x.operation[page] = p[0]
	if x.d.Rails != nil {
		x.d.Rails.SetRailEnabled(page, p[0] == OperationOn)
	}
	return nil
}

func (x *Dispatcher) clearFaults(command.PageID, []byte) error {
	x.d.Status.Clear()
	x.d.Latch.ResetLatches()
	x.d.Gate.ClearSticky()
	return nil
}

func (x *Dispatcher) readFanCommand(command.PageID, []byte) ([]byte, error) {
	return word(x.fanCommand), nil
}

func (x *Dispatcher) writeFanCommand(_ command.PageID, p []byte) error {
	w := binary.LittleEndian.Uint16(p)
	duty := linear.DecodeLinear11ToNormal(w)
	if duty < 0 || duty > 100 {
		return invalidData("fan duty above 100 %")
	}
	x.fanCommand = w
	if x.d.Fans != nil {
		x.d.Fans.SetFanDuty(int(duty))
	}
	return nil
}

// ---- status ----

func (x *Dispatcher) readStatusByte(page command.PageID, _ []byte) ([]byte, error) {
	return []byte{x.d.Status.Registers(page).Byte()}, nil
}

func (x *Dispatcher) readStatusWord(page command.PageID, _ []byte) ([]byte, error) {
	return word(x.d.Status.Registers(page).Word()), nil
}

func (x *Dispatcher) category(c status.Category) func(command.PageID, []byte) ([]byte, error) {
	return func(page command.PageID, _ []byte) ([]byte, error) {
		return []byte{byte(x.d.Status.Registers(page).Category(c))}, nil
	}
}

// statusCategory maps a category status command to its category.
func statusCategory(code byte) (status.Category, bool) {
	switch code {
	case command.StatusVout:
		return status.CatVout, true
	case command.StatusIout:
		return status.CatIout, true
	case command.StatusInput:
		return status.CatInput, true
	case command.StatusTemp:
		return status.CatTemperature, true
	case command.StatusCML:
		return status.CatCML, true
	case command.StatusOther:
		return status.CatOther, true
	case command.StatusMfr:
		return status.CatMfr, true
	case command.StatusFans12:
		return status.CatFans12, true
	case command.StatusFans34:
		return status.CatFans34, true
	}
	return 0, false
}

// writeMask takes [status command, mask].
func (x *Dispatcher) writeMask(page command.PageID, p []byte) error {
	if len(p) != 2 {
		return invalidData("mask length")
	}
	cat, ok := statusCategory(p[0])
	if !ok {
		return invalidData("mask target is not a category status command")
	}
	if err := x.d.Status.SetMask(page, cat, status.Flags(p[1])); err != nil {
		return &fault.E{C: fault.InvalidData, Op: "dispatch", Msg: "mask page", Err: err}
	}
	return nil
}

// readMask takes [status command].
func (x *Dispatcher) readMask(page command.PageID, args []byte) ([]byte, error) {
	if len(args) != 1 {
		return nil, invalidData("mask read length")
	}
	cat, ok := statusCategory(args[0])
	if !ok {
		return nil, invalidData("mask target is not a category status command")
	}
	return []byte{byte(x.d.Status.Mask(page, cat))}, nil
}

func (x *Dispatcher) query(page command.PageID, args []byte) ([]byte, error) {
	if len(args) != 1 {
		return nil, invalidData("query length")
	}
	return []byte{x.d.Table.QueryByte(args[0], page, x.d.Gate.DebugUnlocked())}, nil
}

// ---- telemetry ----

func (x *Dispatcher) telemetry(q sensor.Quantity) func(command.PageID, []byte) ([]byte, error) {
	return func(page command.PageID, _ []byte) ([]byte, error) {
		if q.Shared() {
			page = command.PageMain
		}
		w, ok := x.d.Telemetry.Read(page, q)
		if !ok || !w.Valid {
			return nil, invalidData(q.String() + " not measured")
		}
		return word(w.Value), nil
	}
}

// ---- calibration ----

func (x *Dispatcher) readTrim(current bool) func(command.PageID, []byte) ([]byte, error) {
	return func(page command.PageID, _ []byte) ([]byte, error) {
		if current {
			return word(x.d.Calibration.IoutGain(page)), nil
		}
		return word(x.d.Calibration.VoutGain(page)), nil
	}
}

func (x *Dispatcher) writeTrim(current bool) func(command.PageID, []byte) error {
	return func(page command.PageID, p []byte) error {
		g := binary.LittleEndian.Uint16(p)
		next := *x.d.Calibration

		var err error
		if current {
			err = next.SetIoutGain(page, g)
		} else {
			err = next.SetVoutGain(page, g)
		}
		if err != nil {
			return &fault.E{C: fault.InvalidData, Op: "dispatch", Msg: "trim gain", Err: err}
		}
		return x.commitCalibration(next)
	}
}

func (x *Dispatcher) commitCalibration(next sensor.CalibrationRecord) error {
	if err := x.d.Store.SaveCalibration(next.Words[:]); err != nil {
		return memoryFault("save calibration", err)
	}
	*x.d.Calibration = next
	return nil
}

// writeCalibration takes [start word, lo, hi, lo, hi...].
func (x *Dispatcher) writeCalibration(_ command.PageID, p []byte) error {
	if len(p) < 3 || len(p)%2 != 1 {
		return invalidData("calibration write length")
	}
	start := int(p[0])
	n := (len(p) - 1) / 2
	if start+n > sensor.CalibrationWords {
		return invalidData("calibration write past end")
	}

	next := *x.d.Calibration
	for i := 0; i < n; i++ {
		next.Words[start+i] = binary.LittleEndian.Uint16(p[1+2*i:])
	}
	if err := next.Validate(); err != nil {
		return &fault.E{C: fault.InvalidData, Op: "dispatch", Msg: "calibration record", Err: err}
	}
	return x.commitCalibration(next)
}

// readCalibration takes [start word, count].
func (x *Dispatcher) readCalibration(_ command.PageID, args []byte) ([]byte, error) {
	if len(args) != 2 {
		return nil, invalidData("calibration read length")
	}
	start, n := int(args[0]), int(args[1])
	if n == 0 || start+n > sensor.CalibrationWords {
		return nil, invalidData("calibration read range")
	}
	out := make([]byte, 0, 2*n)
	for _, w := range x.d.Calibration.Words[start : start+n] {
		out = binary.LittleEndian.AppendUint16(out, w)
	}
	return out, nil
}

// ---- non-volatile records ----

// readBlackBox takes [record index].
func (x *Dispatcher) readBlackBox(_ command.PageID, args []byte) ([]byte, error) {
	if len(args) != 1 {
		return nil, invalidData("black box read length")
	}
	i := int(args[0])
	if i >= x.d.Store.BlackBoxCount() {
		return nil, invalidData("black box index")
	}
	rec, ok, err := x.d.Store.BlackBoxRecord(i)
	if err != nil {
		return nil, memoryFault("read black box", err)
	}
	if !ok {
		return nil, memoryFault("black box record corrupt", nil)
	}
	return rec.Bytes(), nil
}

func (x *Dispatcher) eraseRegion(_ command.PageID, p []byte) error {
	r := nvstore.Region(p[0])
	switch r {
	case nvstore.RegionBlackBox, nvstore.RegionCalibration, nvstore.RegionReboot:
	default:
		return invalidData("unknown region")
	}
	if err := x.d.Store.Erase(r); err != nil {
		return memoryFault("erase", err)
	}
	if r == nvstore.RegionCalibration {
		*x.d.Calibration = sensor.DefaultCalibration()
	}
	return nil
}

func (x *Dispatcher) readDebugSnapshot(command.PageID, []byte) ([]byte, error) {
	if x.d.Debug == nil {
		return nil, fault.New(fault.InvalidCommand, "dispatch", "no debug source")
	}
	return x.d.Debug.DebugSnapshot(), nil
}

// ---- gate ----

func (x *Dispatcher) debugUnlock(_ command.PageID, p []byte) error {
	x.d.Gate.DebugUnlock(binary.LittleEndian.Uint16(p))
	return nil
}

func (x *Dispatcher) upgradeUnlock(_ command.PageID, p []byte) error {
	x.d.Gate.UpgradeUnlock(p)
	return nil
}

func (x *Dispatcher) setBootFlag(_ command.PageID, p []byte) error {
	return x.d.Gate.SetBootFlag(p[0])
}

func (x *Dispatcher) upgradeStatus(command.PageID, []byte) ([]byte, error) {
	return []byte{x.d.Gate.Status()}, nil
}
