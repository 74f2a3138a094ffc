// internal/poller/builder.go
package poller

import (
	"periph.io/x/conn/v3/physic"

	"github.com/tamzrod/pmbus-engine/internal/config"
	"github.com/tamzrod/pmbus-engine/internal/sensor"
)

// BuildSim constructs the simulated plant the poller samples.
// Assumes config has already passed Validate and Normalize.
func BuildSim(s config.SimulationConfig) (*sensor.Sim, error) {
	sc := sensor.SimConfig{
		VinNominal: s.Vin.ElectricPotential,
		IinMax:     s.IinMax.ElectricCurrent,
		Efficiency: s.EfficiencyPct,
		OTWarn:     s.OTWarn.Temperature,
		OTFault:    s.OTFault.Temperature,
		FanMin:     rpm(s.FanMinRPM),
	}
	for _, r := range s.Rails {
		sc.Rails = append(sc.Rails, sensor.RailSpec{
			Nominal:    r.Nominal.ElectricPotential,
			Load:       r.Load.ElectricCurrent,
			CurrentMax: r.CurrentMax.ElectricCurrent,
			PowerMax:   r.PowerMax.Power,
		})
	}
	for i := 0; i < len(sc.Temps) && i < len(s.Temperatures); i++ {
		sc.Temps[i] = s.Temperatures[i].Temperature
	}
	for i := 0; i < len(sc.Fans) && i < len(s.FansRPM); i++ {
		sc.Fans[i] = rpm(s.FansRPM[i])
	}
	return sensor.NewSim(sc)
}

func rpm(n int) physic.Frequency {
	return physic.Frequency(n) * physic.Hertz / 60
}
