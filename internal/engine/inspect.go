// internal/engine/inspect.go
package engine

import (
	"encoding/binary"

	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/fault"
	"github.com/tamzrod/pmbus-engine/internal/nvstore"
	"github.com/tamzrod/pmbus-engine/internal/sensor"
	"github.com/tamzrod/pmbus-engine/internal/status"
)

// Debug snapshot layout (little-endian):
//
//	[0:4]   transactions
//	[4:14]  fault counters, one u16 per code in faultCodes order
//	[14]    last command code (0xFF when none)
//	[15]    received request bytes
//	[16]    expected request bytes (0xFF while unknown)
//	[17]    framer state
//	[18]    sticky page
//	[19]    SMBAlert level
const debugSnapshotLen = 20

func (e *Engine) buildDebugSnapshot() {
	b := make([]byte, debugSnapshotLen)
	binary.LittleEndian.PutUint32(b[0:], e.counters.Transactions)
	for i, c := range faultCodes {
		n := e.counters.Faults[c]
		if n > 0xFFFF {
			n = 0xFFFF
		}
		binary.LittleEndian.PutUint16(b[4+2*i:], uint16(n))
	}

	b[14] = 0xFF
	if code, ok := e.framer.Command(); ok {
		b[14] = code
	}
	recv, exp := e.framer.Progress()
	b[15] = byte(recv)
	b[16] = 0xFF
	if exp >= 0 {
		b[16] = byte(exp)
	}
	b[17] = byte(e.framer.State())
	b[18] = byte(e.framer.Page())
	if e.agg.Alert() {
		b[19] = 1
	}
	e.debug = b
}

// debugSource serves MFR_DEBUG_SNAPSHOT from inside a locked transaction.
type debugSource struct{ e *Engine }

func (d debugSource) DebugSnapshot() []byte {
	return append([]byte(nil), d.e.debug...)
}

// ---- inspection, safe for concurrent use ----

// Pages returns the page count.
func (e *Engine) Pages() int { return e.cfg.Pages }

// Page returns the sticky page.
func (e *Engine) Page() command.PageID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.framer.Page()
}

// Alert returns the SMBAlert level.
func (e *Engine) Alert() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.agg.Alert()
}

// Registers returns the status registers of page.
func (e *Engine) Registers(page command.PageID) status.Registers {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.agg.Registers(page)
}

// Snapshot returns the mirror view of page. Shared input quantities are
// reported on every page.
func (e *Engine) Snapshot(page command.PageID) status.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := status.Snapshot{
		Registers: e.agg.Registers(page),
		Alert:     e.agg.PageAlert(page),
	}
	for q := sensor.Quantity(0); q < sensor.NumQuantities; q++ {
		src := page
		if q.Shared() {
			src = command.PageMain
		}
		if w, ok := e.meas.Read(src, q); ok {
			s.Telemetry[q] = w.Value
			s.TelemetryValid[q] = true
		}
	}
	return s
}

// Counters returns a copy of the statistics.
func (e *Engine) Counters() Counters {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.counters
	c.Faults = make(map[fault.Code]uint32, len(e.counters.Faults))
	for k, v := range e.counters.Faults {
		c.Faults[k] = v
	}
	return c
}

// DebugSnapshot returns the snapshot built on the last 100 ms tick.
func (e *Engine) DebugSnapshot() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]byte(nil), e.debug...)
}

// Calibration returns a copy of the active calibration record.
func (e *Engine) Calibration() sensor.CalibrationRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cal
}

// BootRecord returns the reboot record found at startup.
func (e *Engine) BootRecord() (nvstore.RebootRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bootRecord == nil {
		return nvstore.RebootRecord{}, false
	}
	return *e.bootRecord, true
}

// Resets returns how many resets the upgrade gate has requested.
func (e *Engine) Resets() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resetCount
}

// BlackBox returns the stored black-box records that pass their checksum.
func (e *Engine) BlackBox() ([]nvstore.BlackBoxRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []nvstore.BlackBoxRecord
	for i := 0; i < e.store.BlackBoxCount(); i++ {
		rec, ok, err := e.store.BlackBoxRecord(i)
		if err != nil {
			return out, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}
