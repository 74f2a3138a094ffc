// internal/config/validate.go
package config

import (
	"fmt"
	"strings"

	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/status"
)

const (
	maxIdentityLen   = 32
	mirrorSlotsLimit = 0x10000
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	// ------------------------------------------------------------
	// ENGINE
	// ------------------------------------------------------------

	e := cfg.Engine
	if e.Address < 0x08 || e.Address > 0x77 {
		return fmt.Errorf("engine: address 0x%02X outside the 7-bit device range 0x08-0x77", e.Address)
	}
	if _, err := command.ParseProfile(e.Profile); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	// pages may be left out when rails are listed
	pages := e.Pages
	if pages == 0 {
		pages = len(cfg.Simulation.Rails)
	}
	if pages < 1 || pages > command.MaxPages {
		return fmt.Errorf("engine: pages must be 1..%d, got %d", command.MaxPages, pages)
	}
	if n := len(cfg.Simulation.Rails); n != 0 && n != pages {
		return fmt.Errorf("engine: pages=%d but simulation lists %d rails", pages, n)
	}
	if e.StartupDelayMs < 0 || e.RebootDelayMs < 0 {
		return fmt.Errorf("engine: delays must not be negative")
	}

	// ------------------------------------------------------------
	// IDENTITY (ASCII, bounded)
	// ------------------------------------------------------------

	for name, v := range map[string]string{
		"mfr_id":       cfg.Identity.MfrID,
		"mfr_model":    cfg.Identity.MfrModel,
		"mfr_revision": cfg.Identity.MfrRevision,
		"mfr_serial":   cfg.Identity.MfrSerial,
		"firmware":     cfg.Identity.Firmware,
	} {
		if !isASCII(v) {
			return fmt.Errorf("identity: %s must contain ASCII characters only", name)
		}
		if len(v) > maxIdentityLen {
			return fmt.Errorf("identity: %s longer than %d characters", name, maxIdentityLen)
		}
	}

	// ------------------------------------------------------------
	// UPGRADE CONTROLLERS
	// ------------------------------------------------------------

	if len(cfg.Controllers) == 0 {
		return fmt.Errorf("controllers: at least one controller required")
	}
	owner := make(map[uint8]string)
	for _, c := range cfg.Controllers {
		if prev, exists := owner[c.ID]; exists {
			return fmt.Errorf("controllers: id 0x%02X used by %q and %q", c.ID, prev, c.Name)
		}
		owner[c.ID] = c.Name
	}

	// ------------------------------------------------------------
	// SMBALERT MASKS
	// ------------------------------------------------------------

	for name := range cfg.SMBAlert.Defaults {
		if _, err := status.ParseCategory(name); err != nil {
			return fmt.Errorf("smbalert defaults: %w", err)
		}
	}
	seen := make(map[uint8]bool)
	for _, p := range cfg.SMBAlert.Pages {
		if int(p.Page) >= pages {
			return fmt.Errorf("smbalert: page %d out of range (pages=%d)", p.Page, pages)
		}
		if seen[p.Page] {
			return fmt.Errorf("smbalert: page %d listed twice", p.Page)
		}
		seen[p.Page] = true
		for name := range p.Masks {
			if _, err := status.ParseCategory(name); err != nil {
				return fmt.Errorf("smbalert page %d: %w", p.Page, err)
			}
		}
	}

	// ------------------------------------------------------------
	// SIMULATION
	// ------------------------------------------------------------

	if err := validateSimulation(cfg.Simulation); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}

	// ------------------------------------------------------------
	// STORAGE
	// ------------------------------------------------------------

	if ps := cfg.Storage.PageSize; ps != 0 && (ps < 64 || ps%4 != 0) {
		return fmt.Errorf("storage: page_size %d must be a multiple of 4 and at least 64", ps)
	}

	// ------------------------------------------------------------
	// MIRROR (OPT-IN)
	// ------------------------------------------------------------

	if m := cfg.Mirror; m != nil {
		if m.Endpoint == "" {
			return fmt.Errorf("mirror: endpoint required")
		}
		if m.UnitID > 255 {
			return fmt.Errorf("mirror: unit_id %d out of range", m.UnitID)
		}
		if m.IntervalMs < 0 || m.TimeoutMs < 0 {
			return fmt.Errorf("mirror: interval_ms and timeout_ms must not be negative")
		}
		if (int(m.BaseSlot)+pages)*status.SlotsPerPage > mirrorSlotsLimit {
			return fmt.Errorf("mirror: base_slot %d with %d pages exceeds the register space", m.BaseSlot, pages)
		}
		if !isASCII(m.DeviceName) {
			return fmt.Errorf("mirror: device_name must contain ASCII characters only")
		}
		if strings.HasPrefix(m.Endpoint, "rtu://") {
			switch m.Parity {
			case "", "N", "E", "O":
			default:
				return fmt.Errorf("mirror: parity %q must be N, E or O", m.Parity)
			}
		}
	}

	return nil
}

func validateSimulation(s SimulationConfig) error {
	if s.EfficiencyPct < 0 || s.EfficiencyPct > 100 {
		return fmt.Errorf("efficiency_pct %d out of range", s.EfficiencyPct)
	}
	for i, r := range s.Rails {
		if r.Nominal.ElectricPotential <= 0 {
			return fmt.Errorf("rail %d: nominal must be positive", i)
		}
		if r.Load.ElectricCurrent < 0 {
			return fmt.Errorf("rail %d: load must not be negative", i)
		}
		if r.CurrentMax.ElectricCurrent != 0 && r.Load.ElectricCurrent > r.CurrentMax.ElectricCurrent {
			return fmt.Errorf("rail %d: load above current_max", i)
		}
	}
	if len(s.Temperatures) > 3 {
		return fmt.Errorf("at most 3 temperatures, got %d", len(s.Temperatures))
	}
	if s.OTWarn.Temperature != 0 && s.OTFault.Temperature != 0 && s.OTWarn.Temperature >= s.OTFault.Temperature {
		return fmt.Errorf("ot_warn must be below ot_fault")
	}
	if len(s.FansRPM) > 2 {
		return fmt.Errorf("at most 2 fans, got %d", len(s.FansRPM))
	}
	for i, rpm := range s.FansRPM {
		if rpm < 0 {
			return fmt.Errorf("fan %d: rpm must not be negative", i)
		}
	}
	if s.FanMinRPM < 0 {
		return fmt.Errorf("fan_min_rpm must not be negative")
	}
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return false
		}
	}
	return true
}
