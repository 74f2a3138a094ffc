// internal/poller/builder_test.go
package poller

import (
	"testing"

	"periph.io/x/conn/v3/physic"

	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/config"
	"github.com/tamzrod/pmbus-engine/internal/sensor"
)

func TestBuildSim(t *testing.T) {
	c := &config.Config{
		Engine: config.EngineConfig{Address: 0x58, Pages: 2},
		Simulation: config.SimulationConfig{
			Rails: []config.RailConfig{
				{Nominal: config.Potential{ElectricPotential: 12 * physic.Volt}, Load: config.Current{ElectricCurrent: 20 * physic.Ampere}},
				{Nominal: config.Potential{ElectricPotential: 5 * physic.Volt}},
			},
			FansRPM: []int{6000},
		},
	}
	config.Normalize(c)

	sim, err := BuildSim(c.Simulation)
	if err != nil {
		t.Fatalf("BuildSim err=%v", err)
	}
	if v, ok := sim.ReadQ7(1, sensor.Vout); !ok || v != 5*128 {
		t.Fatalf("page 1 vout=%d ok=%v", v, ok)
	}
	if v, ok := sim.ReadQ7(command.PageMain, sensor.Fan1); !ok || v != 6000*128 {
		t.Fatalf("fan1=%d ok=%v", v, ok)
	}
	if v, ok := sim.ReadQ7(command.PageMain, sensor.Iout); !ok || v != 20*128 {
		t.Fatalf("iout=%d ok=%v", v, ok)
	}
}

func TestBuildSim_NoRails(t *testing.T) {
	if _, err := BuildSim(config.SimulationConfig{EfficiencyPct: 90}); err == nil {
		t.Fatalf("expected error without rails")
	}
}
