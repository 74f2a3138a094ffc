// internal/engine/engine.go
package engine

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/dispatch"
	"github.com/tamzrod/pmbus-engine/internal/fault"
	"github.com/tamzrod/pmbus-engine/internal/framer"
	"github.com/tamzrod/pmbus-engine/internal/gate"
	"github.com/tamzrod/pmbus-engine/internal/nvstore"
	"github.com/tamzrod/pmbus-engine/internal/poller"
	"github.com/tamzrod/pmbus-engine/internal/sensor"
	"github.com/tamzrod/pmbus-engine/internal/snapshot"
	"github.com/tamzrod/pmbus-engine/internal/status"
)

// Engine is one PMBus device: command table, framer, dispatcher, status,
// gate, non-volatile store and measurements. Transport events and ticks are
// serialized by one mutex.
type Engine struct {
	mu sync.Mutex

	cfg   Config
	plant Plant
	alert AlertLine

	table  *command.Table
	framer *framer.Framer
	disp   *dispatch.Dispatcher
	agg    *status.Aggregator
	gate   *gate.Gate
	store  *nvstore.Store
	meas   *snapshot.Measurements
	poller *poller.Poller
	cal    sensor.CalibrationRecord

	counters   Counters
	debug      []byte
	bootRecord *nvstore.RebootRecord
	resetCount int
}

// New wires an engine. The calibration record is loaded from storage;
// an erased or corrupt record falls back to unity gains.
func New(cfg Config, d Deps) (*Engine, error) {
	if d.Plant == nil {
		return nil, errors.New("engine: plant required")
	}
	if d.Storage == nil || d.Reset == nil {
		return nil, errors.New("engine: storage and reset required")
	}

	e := &Engine{
		cfg:   cfg,
		plant: d.Plant,
		alert: d.Alert,
		meas:  &snapshot.Measurements{},
		counters: Counters{
			Faults: make(map[fault.Code]uint32, len(faultCodes)),
		},
	}

	var err error
	if e.table, err = command.NewTable(cfg.Profile, cfg.Pages); err != nil {
		return nil, err
	}

	e.agg, err = status.NewAggregator(status.Config{
		Pages:        cfg.Pages,
		StartupTicks: cfg.StartupTicks,
		DefaultMasks: cfg.DefaultMasks,
	})
	if err != nil {
		return nil, err
	}
	for _, m := range cfg.PageMasks {
		if err := e.agg.SetMask(m.Page, m.Category, m.Mask); err != nil {
			return nil, fmt.Errorf("engine: mask override: %w", err)
		}
	}

	if e.store, err = nvstore.NewStore(d.Storage, d.PageSize, d.Layout); err != nil {
		return nil, err
	}
	if err := e.loadCalibration(); err != nil {
		return nil, err
	}
	if rec, ok, err := e.store.ReadRebootRecord(); err != nil {
		return nil, fmt.Errorf("engine: reboot record: %w", err)
	} else if ok {
		e.bootRecord = &rec
		log.Printf("engine: previous reset requested boot target 0x%02X", rec.BootTarget)
	}

	e.gate, err = gate.New(gate.Config{
		Controllers:      cfg.Controllers,
		RebootDelayTicks: cfg.RebootDelayTicks,
		LED:              d.LED,
	}, e.store, resetHook{e: e, next: d.Reset})
	if err != nil {
		return nil, err
	}

	e.poller, err = poller.New(poller.Config{Profile: cfg.Profile, Pages: cfg.Pages}, d.Plant, &e.cal, e.meas)
	if err != nil {
		return nil, err
	}

	deps := dispatch.Deps{
		Table:       e.table,
		Status:      e.agg,
		Telemetry:   e.meas,
		Gate:        e.gate,
		Store:       e.store,
		Calibration: &e.cal,
		Latch:       d.Plant,
		Debug:       debugSource{e: e},
		Identity:    cfg.Identity,
	}
	if r, ok := d.Plant.(dispatch.RailControl); ok {
		deps.Rails = r
	}
	if f, ok := d.Plant.(dispatch.FanControl); ok {
		deps.Fans = f
	}
	if e.disp, err = dispatch.New(deps); err != nil {
		return nil, err
	}

	e.framer, err = framer.New(framer.Config{Address: cfg.Address, PEC: cfg.PEC}, e.table, e.disp, e.gate, faultSink{e: e})
	if err != nil {
		return nil, err
	}

	e.buildDebugSnapshot()
	return e, nil
}

func (e *Engine) loadCalibration() error {
	ok, err := e.store.LoadCalibration(e.cal.Words[:])
	if err != nil {
		return fmt.Errorf("engine: load calibration: %w", err)
	}
	if !ok {
		e.cal = sensor.DefaultCalibration()
		return nil
	}
	e.cal.Sanitize()
	return nil
}

// ---- transport events ----

// Start begins a transaction addressed to the device.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counters.Transactions++
	e.framer.Start()
}

// Receive delivers one request byte.
func (e *Engine) Receive(b byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.framer.Receive(b)
}

// Respond returns the read phase bytes; nil lets the transport send its
// default fill.
func (e *Engine) Respond() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.framer.Respond()
}

// Stop ends the transaction. Mask and clear writes take effect on the
// alert line here.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.framer.Stop()
	e.updateAlert()
}

// Abort drops the transaction silently.
func (e *Engine) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.framer.Abort()
}

// ---- ticks ----

// Tick1ms refreshes one measurement group.
func (e *Engine) Tick1ms() {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := e.poller.PollOnce()
	e.counters.Polls++
	e.counters.Samples += uint32(res.Updated)
}

// Tick10ms runs status aggregation, black-box capture, the alert line and
// the reboot countdown.
func (e *Engine) Tick10ms() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, page := range e.agg.Tick(e.plant.Conditions()) {
		e.captureBlackBox(page)
	}
	e.updateAlert()

	if _, err := e.gate.Tick(); err != nil {
		e.latch(command.PageAll, fault.MemoryFault)
	}
}

// Tick100ms refreshes the debug snapshot.
func (e *Engine) Tick100ms() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buildDebugSnapshot()
}

func (e *Engine) captureBlackBox(page command.PageID) {
	r := e.agg.Registers(page)
	rec := nvstore.BlackBoxRecord{Page: uint8(page), StatusWord: r.Word()}
	for c := status.Category(0); c < status.NumCategories; c++ {
		rec.Categories[c] = uint8(r.Cat[c])
	}
	if _, err := e.store.AppendBlackBox(rec); err != nil {
		log.Printf("black box append failed (page=%d): %v", page, err)
		e.latch(page, fault.MemoryFault)
	}
}

func (e *Engine) updateAlert() {
	asserted, changed := e.agg.EvaluateAlert()
	if changed && e.alert != nil {
		e.alert.SetAlert(asserted)
	}
}

func (e *Engine) latch(page command.PageID, code fault.Code) {
	e.counters.Faults[code]++
	e.agg.Latch(page, code)
}

// faultSink receives framer faults while the engine lock is held.
type faultSink struct{ e *Engine }

func (s faultSink) Fault(page command.PageID, err error) {
	s.e.latch(page, fault.Of(err))
	s.e.updateAlert()
}

// resetHook counts resets before handing over to the reset collaborator.
type resetHook struct {
	e    *Engine
	next gate.Resetter
}

func (h resetHook) Reset(bootTarget uint8) {
	h.e.resetCount++
	h.next.Reset(bootTarget)
}
