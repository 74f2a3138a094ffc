// internal/sensor/sim.go
package sensor

import (
	"errors"
	"sync"

	"periph.io/x/conn/v3/physic"

	"github.com/tamzrod/pmbus-engine/internal/command"
)

// Protection thresholds in percent of nominal.
const (
	ovFaultPct = 115
	ovWarnPct  = 110
	uvWarnPct  = 90
	uvFaultPct = 85
	ocWarnPct  = 90
)

// RailSpec describes one simulated output rail.
type RailSpec struct {
	Nominal    physic.ElectricPotential
	Load       physic.ElectricCurrent
	CurrentMax physic.ElectricCurrent
	PowerMax   physic.Power
}

// SimConfig describes the simulated plant.
type SimConfig struct {
	VinNominal physic.ElectricPotential
	IinMax     physic.ElectricCurrent
	// Efficiency in percent, 1..100.
	Efficiency int

	Rails []RailSpec

	Temps   [3]physic.Temperature
	OTWarn  physic.Temperature
	OTFault physic.Temperature

	Fans   [2]physic.Frequency
	FanMin physic.Frequency
}

type railState struct {
	spec    RailSpec
	v       physic.ElectricPotential
	load    physic.ElectricCurrent
	enabled bool

	ovLatched bool
	uvLatched bool
	ocLatched bool
}

// Sim is a deterministic power-stage model. It implements Source,
// ConditionSource and FaultLatch, and is safe for concurrent use.
type Sim struct {
	mu sync.Mutex

	cfg   SimConfig
	vin   physic.ElectricPotential
	rails []railState
	temps [3]physic.Temperature
	fans  [2]physic.Frequency

	acPresent   bool
	auxMode     bool
	standbyOnly bool
	commsFailed bool
	fanOverride bool

	vinOVLatched bool
	vinUVLatched bool
	otLatched    bool
	fanLatched   [2]bool
}

// NewSim builds a plant running at nominal values with AC present and all
// rails enabled.
func NewSim(cfg SimConfig) (*Sim, error) {
	if len(cfg.Rails) == 0 || len(cfg.Rails) > command.MaxPages {
		return nil, errors.New("sensor: 1..8 rails required")
	}
	if cfg.VinNominal <= 0 {
		return nil, errors.New("sensor: input nominal must be > 0")
	}
	if cfg.Efficiency <= 0 || cfg.Efficiency > 100 {
		return nil, errors.New("sensor: efficiency must be 1..100")
	}

	s := &Sim{
		cfg:       cfg,
		vin:       cfg.VinNominal,
		temps:     cfg.Temps,
		fans:      cfg.Fans,
		acPresent: true,
	}
	for _, r := range cfg.Rails {
		if r.Nominal <= 0 {
			return nil, errors.New("sensor: rail nominal must be > 0")
		}
		s.rails = append(s.rails, railState{spec: r, v: r.Nominal, load: r.Load, enabled: true})
	}
	return s, nil
}

// ---- plant controls ----

func (s *Sim) SetInput(v physic.ElectricPotential) {
	s.mu.Lock()
	s.vin = v
	s.mu.Unlock()
}

func (s *Sim) SetACPresent(on bool) {
	s.mu.Lock()
	s.acPresent = on
	s.mu.Unlock()
}

func (s *Sim) SetAuxMode(on bool) {
	s.mu.Lock()
	s.auxMode = on
	s.mu.Unlock()
}

func (s *Sim) SetStandbyOnly(on bool) {
	s.mu.Lock()
	s.standbyOnly = on
	s.mu.Unlock()
}

func (s *Sim) SetCommsLinkFailed(on bool) {
	s.mu.Lock()
	s.commsFailed = on
	s.mu.Unlock()
}

func (s *Sim) SetFanOverride(on bool) {
	s.mu.Lock()
	s.fanOverride = on
	s.mu.Unlock()
}

func (s *Sim) SetRailVoltage(page command.PageID, v physic.ElectricPotential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(page) < len(s.rails) {
		s.rails[page].v = v
	}
}

func (s *Sim) SetLoad(page command.PageID, i physic.ElectricCurrent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(page) < len(s.rails) {
		s.rails[page].load = i
	}
}

func (s *Sim) SetRailEnabled(page command.PageID, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(page) < len(s.rails) {
		s.rails[page].enabled = on
	}
}

func (s *Sim) SetTemperature(idx int, t physic.Temperature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx >= 0 && idx < len(s.temps) {
		s.temps[idx] = t
	}
}

func (s *Sim) SetFanSpeed(idx int, f physic.Frequency) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx >= 0 && idx < len(s.fans) {
		s.fans[idx] = f
	}
}

// SetFanDuty applies a commanded duty cycle in percent. Zero returns the
// fans to automatic control at their configured speed.
func (s *Sim) SetFanDuty(percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fanOverride = percent > 0
	for i := range s.fans {
		if percent > 0 {
			s.fans[i] = s.cfg.Fans[i] * physic.Frequency(percent) / 100
		} else {
			s.fans[i] = s.cfg.Fans[i]
		}
	}
}

// ---- Source ----

// ReadQ7 implements Source.
func (s *Sim) ReadQ7(page command.PageID, q Quantity) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if int(page) >= len(s.rails) {
		return 0, false
	}

	switch q {
	case Vin:
		return PotentialQ7(s.inputVoltage()), true
	case Iin:
		return CurrentQ7(s.inputCurrent()), true
	case Pin:
		return PowerQ7(s.inputPower()), true
	case Vout:
		return PotentialQ7(s.railVoltage(int(page))), true
	case Iout:
		return CurrentQ7(s.railCurrent(int(page))), true
	case Pout:
		return PowerQ7(s.railPower(int(page))), true
	case Temp1, Temp2, Temp3:
		if page != command.PageMain {
			return 0, false
		}
		return TemperatureQ7(s.temps[q-Temp1]), true
	case Fan1, Fan2:
		if page != command.PageMain {
			return 0, false
		}
		return RPMQ7(s.fans[q-Fan1]), true
	}
	return 0, false
}

func (s *Sim) inputVoltage() physic.ElectricPotential {
	if !s.acPresent {
		return 0
	}
	return s.vin
}

func (s *Sim) railOn(i int) bool {
	r := &s.rails[i]
	if !r.enabled || r.ovLatched || r.ocLatched {
		return false
	}
	// Without AC only the standby rail survives.
	if !s.acPresent && i != int(command.PageStandby) {
		return false
	}
	if s.standbyOnly && i != int(command.PageStandby) {
		return false
	}
	return true
}

func (s *Sim) railVoltage(i int) physic.ElectricPotential {
	if !s.railOn(i) {
		return 0
	}
	return s.rails[i].v
}

func (s *Sim) railCurrent(i int) physic.ElectricCurrent {
	if !s.railOn(i) {
		return 0
	}
	return s.rails[i].load
}

func (s *Sim) railPower(i int) physic.Power {
	return powerOf(s.railVoltage(i), s.railCurrent(i))
}

func (s *Sim) inputPower() physic.Power {
	if !s.acPresent {
		return 0
	}
	var out physic.Power
	for i := range s.rails {
		out += s.railPower(i)
	}
	return out * 100 / physic.Power(s.cfg.Efficiency)
}

func (s *Sim) inputCurrent() physic.ElectricCurrent {
	v := s.inputVoltage()
	if v <= 0 {
		return 0
	}
	mw := int64(s.inputPower() / physic.MilliWatt)
	mv := int64(v / physic.MilliVolt)
	if mv == 0 {
		return 0
	}
	return physic.ElectricCurrent(mw * int64(physic.Ampere) / mv)
}

// powerOf multiplies in volts and milliamperes to stay inside int64.
func powerOf(v physic.ElectricPotential, i physic.ElectricCurrent) physic.Power {
	mv := int64(v / physic.MilliVolt)
	ma := int64(i / physic.MilliAmpere)
	return physic.Power(mv*ma) * physic.MicroWatt
}

// ---- ConditionSource ----

// Conditions implements ConditionSource. Faults latch until ResetLatches.
func (s *Sim) Conditions() Conditions {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c Conditions
	g := &c.Global

	g.ACPresent = s.acPresent
	g.AuxMode = s.auxMode
	g.StandbyOnly = s.standbyOnly
	g.CommsLinkFailed = s.commsFailed
	g.FanOverride = s.fanOverride

	vin := s.inputVoltage()
	nom := s.cfg.VinNominal
	if s.acPresent {
		if above(vin, nom, ovFaultPct) {
			s.vinOVLatched = true
		}
		if below(vin, nom, uvFaultPct) {
			s.vinUVLatched = true
		}
		g.VinOVWarn = above(vin, nom, ovWarnPct)
		g.VinUVWarn = below(vin, nom, uvWarnPct)
	}
	g.VinOVFault = s.vinOVLatched
	g.VinUVFault = s.vinUVLatched

	if s.cfg.IinMax > 0 {
		g.IinOCWarn = int64(s.inputCurrent())*100 >= int64(s.cfg.IinMax)*ocWarnPct
	}

	for i := range s.temps {
		if s.cfg.OTFault > 0 && s.temps[i] >= s.cfg.OTFault {
			s.otLatched = true
		}
		if s.cfg.OTWarn > 0 && s.temps[i] >= s.cfg.OTWarn {
			g.OTWarn = true
		}
	}
	g.OTFault = s.otLatched

	if s.cfg.FanMin > 0 && !s.fanOverride {
		for i := range s.fans {
			if s.fans[i] < s.cfg.FanMin {
				s.fanLatched[i] = true
			}
		}
		g.Fan1Warn = s.fans[0] < s.cfg.FanMin*6/5
		g.Fan2Warn = s.fans[1] < s.cfg.FanMin*6/5
	}
	g.Fan1Fault = s.fanLatched[0]
	g.Fan2Fault = s.fanLatched[1]

	var pinWarn bool
	for i := range s.rails {
		r := &s.rails[i]
		rc := &c.Rails[i]

		on := s.railOn(i)
		if on {
			if above(r.v, r.spec.Nominal, ovFaultPct) {
				r.ovLatched = true
			}
			if below(r.v, r.spec.Nominal, uvFaultPct) {
				r.uvLatched = true
			}
			if r.spec.CurrentMax > 0 && r.load >= r.spec.CurrentMax {
				r.ocLatched = true
			}
			rc.VoutOVWarn = above(r.v, r.spec.Nominal, ovWarnPct)
			rc.VoutUVWarn = below(r.v, r.spec.Nominal, uvWarnPct)
			if r.spec.CurrentMax > 0 {
				rc.IoutOCWarn = int64(r.load)*100 >= int64(r.spec.CurrentMax)*ocWarnPct
			}
			if r.spec.PowerMax > 0 && s.railPower(i) >= r.spec.PowerMax {
				rc.PoutOPWarn = true
				pinWarn = true
			}
		}

		rc.VoutOVFault = r.ovLatched
		rc.VoutUVFault = r.uvLatched
		rc.IoutOCFault = r.ocLatched

		on = s.railOn(i)
		rc.Enabled = on
		rc.PowerGood = on && !below(r.v, r.spec.Nominal, uvWarnPct)
	}
	g.PinOPWarn = pinWarn

	return c
}

// ---- FaultLatch ----

// ResetLatches implements FaultLatch.
func (s *Sim) ResetLatches() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vinOVLatched = false
	s.vinUVLatched = false
	s.otLatched = false
	s.fanLatched = [2]bool{}
	for i := range s.rails {
		s.rails[i].ovLatched = false
		s.rails[i].uvLatched = false
		s.rails[i].ocLatched = false
	}
}

func above[T ~int64](v, nominal T, pct int64) bool {
	return int64(v)*100 >= int64(nominal)*pct
}

func below[T ~int64](v, nominal T, pct int64) bool {
	return int64(v)*100 <= int64(nominal)*pct
}
