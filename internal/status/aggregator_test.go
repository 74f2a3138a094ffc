// internal/status/aggregator_test.go
package status

import (
	"testing"

	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/fault"
	"github.com/tamzrod/pmbus-engine/internal/sensor"
)

func healthy(pages int) sensor.Conditions {
	var c sensor.Conditions
	c.Global.ACPresent = true
	for p := 0; p < pages; p++ {
		c.Rails[p] = sensor.RailConditions{Enabled: true, PowerGood: true}
	}
	return c
}

func newAgg(t *testing.T, pages, startup int) *Aggregator {
	t.Helper()
	a, err := NewAggregator(Config{Pages: pages, StartupTicks: startup})
	if err != nil {
		t.Fatalf("NewAggregator err=%v", err)
	}
	return a
}

func TestAggregator_StartupDelay(t *testing.T) {
	a := newAgg(t, 2, 2)
	c := healthy(2)
	c.Rails[0].VoutOVFault = true

	a.Tick(c)
	if a.Started() {
		t.Fatalf("started after one of two startup ticks")
	}
	a.Tick(c)
	if a.Registers(0).Cat[CatVout] != 0 {
		t.Fatalf("status evaluated during startup delay")
	}
	if got := a.Tick(c); len(got) != 1 || got[0] != 0 {
		t.Fatalf("gained pages=%v want [0]", got)
	}
	if a.Registers(0).Cat[CatVout]&VoutOVFault == 0 {
		t.Fatalf("OV fault not latched after startup")
	}
}

func TestAggregator_LatchesUntilClear(t *testing.T) {
	a := newAgg(t, 2, 0)
	c := healthy(2)
	c.Rails[0].IoutOCWarn = true
	a.Tick(c)

	c.Rails[0].IoutOCWarn = false
	a.Tick(c)
	r := a.Registers(0)
	if r.Cat[CatIout] != IoutOCWarn {
		t.Fatalf("warning not latched: 0x%02X", r.Cat[CatIout])
	}
	if r.Word()&WordIout == 0 || r.Word()&WordNoneOfAbove == 0 {
		t.Fatalf("summary bits missing: 0x%04X", r.Word())
	}

	a.Clear()
	first := a.Registers(0)
	a.Clear()
	if a.Registers(0) != first {
		t.Fatalf("second clear changed state")
	}
	if first.Cat[CatIout] != 0 {
		t.Fatalf("clear kept latched bits")
	}
}

func TestAggregator_PageIsolation(t *testing.T) {
	a := newAgg(t, 3, 0)
	c := healthy(3)
	c.Rails[2].VoutUVFault = true
	c.Rails[2].Enabled = false
	a.Tick(c)

	for p := command.PageID(0); p < 2; p++ {
		if w := a.Registers(p).Word(); w != 0 {
			t.Fatalf("page %d word=0x%04X, rail fault leaked", p, w)
		}
	}
	w := a.Registers(2).Word()
	if w&WordVout == 0 || w&WordOff == 0 {
		t.Fatalf("page 2 word=0x%04X", w)
	}
}

func TestAggregator_GlobalConditionsReachAllPages(t *testing.T) {
	a := newAgg(t, 2, 0)
	c := healthy(2)
	c.Global.OTWarn = true
	a.Tick(c)

	for p := command.PageID(0); p < 2; p++ {
		if a.Registers(p).Word()&WordTemperature == 0 {
			t.Fatalf("page %d missing temperature summary", p)
		}
	}
}

func TestAggregator_ModePatterns(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(c *sensor.Conditions)
		page  command.PageID
		check func(t *testing.T, r Registers)
	}{
		{
			name: "aux mode",
			mod:  func(c *sensor.Conditions) { c.Global.AuxMode = true },
			page: 0,
			check: func(t *testing.T, r Registers) {
				if r.Cat[CatInput]&InputUnitOffLowVin == 0 || !r.Off || !r.PowerGoodN {
					t.Fatalf("aux pattern missing: %+v", r)
				}
			},
		},
		{
			name: "standby only on main",
			mod:  func(c *sensor.Conditions) { c.Global.StandbyOnly = true },
			page: 0,
			check: func(t *testing.T, r Registers) {
				if !r.Off || !r.PowerGoodN {
					t.Fatalf("main should be off: %+v", r)
				}
			},
		},
		{
			name: "standby only spares standby rail",
			mod:  func(c *sensor.Conditions) { c.Global.StandbyOnly = true },
			page: 1,
			check: func(t *testing.T, r Registers) {
				if r.Off || r.PowerGoodN {
					t.Fatalf("standby rail should stay on: %+v", r)
				}
			},
		},
		{
			name: "comms link failure",
			mod:  func(c *sensor.Conditions) { c.Global.CommsLinkFailed = true; c.Global.OTFault = true },
			page: 1,
			check: func(t *testing.T, r Registers) {
				if r.Cat[CatCML] != CMLOtherComm || r.Cat[CatTemperature] != 0 {
					t.Fatalf("comms pattern wrong: %+v", r)
				}
			},
		},
		{
			name: "ac loss",
			mod:  func(c *sensor.Conditions) { c.Global.ACPresent = false },
			page: 0,
			check: func(t *testing.T, r Registers) {
				want := InputUnitOffLowVin | VinUVFault
				if r.Cat[CatInput] != want || r.Word()&WordVinUV == 0 {
					t.Fatalf("ac loss input=0x%02X word=0x%04X", r.Cat[CatInput], r.Word())
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAgg(t, 2, 0)
			c := healthy(2)
			tt.mod(&c)
			a.Tick(c)
			tt.check(t, a.Registers(tt.page))
		})
	}
}

func TestAggregator_LiveBitsFollowConditions(t *testing.T) {
	a := newAgg(t, 1, 0)
	c := healthy(1)
	c.Global.AuxMode = true
	a.Tick(c)

	c.Global.AuxMode = false
	a.Tick(c)
	r := a.Registers(0)
	if r.Cat[CatInput] != 0 || r.Off || r.PowerGoodN {
		t.Fatalf("live bits did not follow: %+v", r)
	}
}

func TestAggregator_LatchCML(t *testing.T) {
	a := newAgg(t, 3, 0)

	a.Latch(1, fault.PecFault)
	if a.Registers(1).Cat[CatCML] != CMLPecFailed {
		t.Fatalf("pec bit missing on page 1")
	}
	if a.Registers(0).Cat[CatCML] != 0 {
		t.Fatalf("cml leaked to page 0")
	}

	a.Latch(command.PageAll, fault.InvalidData)
	for p := command.PageID(0); p < 3; p++ {
		if a.Registers(p).Cat[CatCML]&CMLInvalidData == 0 {
			t.Fatalf("page %d missing invalid data", p)
		}
	}

	a.Latch(0, fault.OK)
	if a.Registers(0).Cat[CatCML] != CMLInvalidData {
		t.Fatalf("OK must not latch anything")
	}

	if a.Registers(0).Word()&WordCML == 0 || a.Registers(0).Byte()&uint8(WordCML) == 0 {
		t.Fatalf("CML summary missing")
	}
}

func TestAlert_MaskSuppressesCategoryOnly(t *testing.T) {
	a := newAgg(t, 2, 0)
	c := healthy(2)
	c.Rails[0].IoutOCWarn = true
	a.Tick(c)

	if on, changed := a.EvaluateAlert(); !on || !changed {
		t.Fatalf("alert on=%v changed=%v", on, changed)
	}

	if err := a.SetMask(0, CatIout, 0xFF); err != nil {
		t.Fatalf("SetMask err=%v", err)
	}
	if on, changed := a.EvaluateAlert(); on || !changed {
		t.Fatalf("masked iout still alerting: on=%v changed=%v", on, changed)
	}

	c.Rails[0].VoutOVWarn = true
	a.Tick(c)
	if on, _ := a.EvaluateAlert(); !on {
		t.Fatalf("vout warning must still alert")
	}
	if !a.PageAlert(0) || a.PageAlert(1) {
		t.Fatalf("page alert attribution wrong")
	}

	if err := a.SetMask(5, CatVout, 0); err == nil {
		t.Fatalf("expected error for page out of range")
	}
	if err := a.SetMask(command.PageAll, CatVout, 0xFF); err != nil {
		t.Fatalf("SetMask all err=%v", err)
	}
	if a.Mask(1, CatVout) != 0xFF {
		t.Fatalf("mask not fanned out")
	}
}

func TestEncode_Layout(t *testing.T) {
	s := Snapshot{Alert: true}
	s.Registers.Cat[CatTemperature] = OTWarn
	s.Telemetry[sensor.Vout] = 0xD300
	s.TelemetryValid[sensor.Vout] = true

	regs := Encode(s)
	if len(regs) != SlotsPerPage {
		t.Fatalf("len=%d", len(regs))
	}
	if regs[SlotStatusWord] != WordTemperature {
		t.Fatalf("word=0x%04X", regs[SlotStatusWord])
	}
	if regs[SlotCategoryStart+int(CatTemperature)] != uint16(OTWarn) {
		t.Fatalf("temperature slot=0x%04X", regs[SlotCategoryStart+int(CatTemperature)])
	}
	if regs[SlotAlert] != 1 {
		t.Fatalf("alert slot not set")
	}
	if regs[SlotTelemetryStart+int(sensor.Vout)] != 0xD300 {
		t.Fatalf("vout slot wrong")
	}
	if regs[SlotTelemetryStart+int(sensor.Temp1)] != TelemetryInvalid {
		t.Fatalf("unmeasured slot must read invalid")
	}
	if SlotTelemetryEnd >= SlotDeviceNameStart {
		t.Fatalf("telemetry overlaps device name")
	}
}
