// internal/engine/builder.go
package engine

import (
	"fmt"

	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/config"
	"github.com/tamzrod/pmbus-engine/internal/dispatch"
	"github.com/tamzrod/pmbus-engine/internal/status"
)

// tickMs is the period of the aggregation tick that counts delays.
const tickMs = 10

// BuildConfig converts one configuration into an engine Config.
// Assumes config has already passed Validate and Normalize.
func BuildConfig(c *config.Config) (Config, error) {
	profile, err := command.ParseProfile(c.Engine.Profile)
	if err != nil {
		return Config{}, err
	}

	out := Config{
		Address:          c.Engine.Address,
		Profile:          profile,
		Pages:            c.Engine.Pages,
		PEC:              c.Engine.PEC,
		StartupTicks:     c.Engine.StartupDelayMs / tickMs,
		RebootDelayTicks: c.Engine.RebootDelayMs / tickMs,
		Identity: dispatch.Identity{
			ID:       c.Identity.MfrID,
			Model:    c.Identity.MfrModel,
			Revision: c.Identity.MfrRevision,
			Serial:   c.Identity.MfrSerial,
			Firmware: c.Identity.Firmware,
		},
	}
	if out.RebootDelayTicks < 1 {
		out.RebootDelayTicks = 1
	}

	for _, ctl := range c.Controllers {
		out.Controllers = append(out.Controllers, ctl.ID)
	}

	for name, mask := range c.SMBAlert.Defaults {
		cat, err := status.ParseCategory(name)
		if err != nil {
			return Config{}, fmt.Errorf("engine: smbalert defaults: %w", err)
		}
		out.DefaultMasks[cat] = status.Flags(mask)
	}
	for _, p := range c.SMBAlert.Pages {
		for name, mask := range p.Masks {
			cat, err := status.ParseCategory(name)
			if err != nil {
				return Config{}, fmt.Errorf("engine: smbalert page %d: %w", p.Page, err)
			}
			out.PageMasks = append(out.PageMasks, MaskOverride{
				Page:     command.PageID(p.Page),
				Category: cat,
				Mask:     status.Flags(mask),
			})
		}
	}

	return out, nil
}
