// internal/config/normalize.go
package config

import "periph.io/x/conn/v3/physic"

// Defaults applied by Normalize.
const (
	DefaultStartupDelayMs  = 3000
	DefaultRebootDelayMs   = 200
	DefaultStoragePageSize = 1024
	DefaultMirrorInterval  = 1000
	DefaultMirrorTimeout   = 1000
	deviceNameMaxChars     = 16
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	e := &cfg.Engine
	if e.Profile == "" {
		e.Profile = "pmbus"
	}
	if e.Pages == 0 {
		e.Pages = len(cfg.Simulation.Rails)
	}
	if e.StartupDelayMs == 0 {
		e.StartupDelayMs = DefaultStartupDelayMs
	}
	if e.RebootDelayMs == 0 {
		e.RebootDelayMs = DefaultRebootDelayMs
	}

	if cfg.Storage.PageSize == 0 {
		cfg.Storage.PageSize = DefaultStoragePageSize
	}

	normalizeSimulation(&cfg.Simulation, e.Pages)

	// ------------------------------------------------------------
	// MIRROR (OPT-IN)
	// ------------------------------------------------------------

	m := cfg.Mirror
	if m == nil {
		return
	}
	if m.IntervalMs == 0 {
		m.IntervalMs = DefaultMirrorInterval
	}
	if m.TimeoutMs == 0 {
		m.TimeoutMs = DefaultMirrorTimeout
	}
	if m.DeviceName == "" {
		m.DeviceName = cfg.Identity.MfrModel
	}
	if len(m.DeviceName) > deviceNameMaxChars {
		m.DeviceName = m.DeviceName[:deviceNameMaxChars]
	}
}

// normalizeSimulation fills a plant that runs at nominal values when the
// section is partly or entirely left out.
func normalizeSimulation(s *SimulationConfig, pages int) {
	if s.Vin.ElectricPotential == 0 {
		s.Vin.ElectricPotential = 230 * physic.Volt
	}
	if s.IinMax.ElectricCurrent == 0 {
		s.IinMax.ElectricCurrent = 10 * physic.Ampere
	}
	if s.EfficiencyPct == 0 {
		s.EfficiencyPct = 92
	}
	for len(s.Rails) < pages {
		s.Rails = append(s.Rails, RailConfig{
			Nominal:    Potential{12 * physic.Volt},
			Load:       Current{10 * physic.Ampere},
			CurrentMax: Current{100 * physic.Ampere},
		})
	}
	for i := range s.Rails {
		if s.Rails[i].CurrentMax.ElectricCurrent == 0 {
			s.Rails[i].CurrentMax.ElectricCurrent = 2 * s.Rails[i].Load.ElectricCurrent
		}
	}
	for len(s.Temperatures) < 3 {
		s.Temperatures = append(s.Temperatures, Temperature{physic.ZeroCelsius + 35*physic.Kelvin})
	}
	if s.OTWarn.Temperature == 0 {
		s.OTWarn.Temperature = physic.ZeroCelsius + 90*physic.Kelvin
	}
	if s.OTFault.Temperature == 0 {
		s.OTFault.Temperature = physic.ZeroCelsius + 105*physic.Kelvin
	}
	for len(s.FansRPM) < 2 {
		s.FansRPM = append(s.FansRPM, 8000)
	}
	if s.FanMinRPM == 0 {
		s.FanMinRPM = 1000
	}
}
