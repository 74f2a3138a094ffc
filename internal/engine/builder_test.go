// internal/engine/builder_test.go
package engine

import (
	"testing"

	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/config"
	"github.com/tamzrod/pmbus-engine/internal/status"
)

func TestBuildConfig(t *testing.T) {
	c := &config.Config{
		Engine: config.EngineConfig{
			Address:        0x59,
			Profile:        "psmi",
			Pages:          2,
			PEC:            true,
			StartupDelayMs: 3000,
			RebootDelayMs:  5,
		},
		Identity:    config.IdentityConfig{MfrID: "ACME", Firmware: "1.2.3"},
		Controllers: []config.ControllerConfig{{Name: "a", ID: 0x10}, {Name: "b", ID: 0x20}},
		SMBAlert: config.SMBAlertConfig{
			Defaults: map[string]uint8{"iout": 0x80},
			Pages:    []config.PageMaskConfig{{Page: 1, Masks: map[string]uint8{"temperature": 0xC0}}},
		},
	}

	got, err := BuildConfig(c)
	if err != nil {
		t.Fatalf("BuildConfig err=%v", err)
	}
	if got.Address != 0x59 || got.Profile != command.ProfilePSMI || got.Pages != 2 || !got.PEC {
		t.Fatalf("engine=%+v", got)
	}
	if got.StartupTicks != 300 {
		t.Fatalf("startup ticks=%d want 300", got.StartupTicks)
	}
	if got.RebootDelayTicks != 1 {
		t.Fatalf("reboot ticks=%d want 1", got.RebootDelayTicks)
	}
	if len(got.Controllers) != 2 || got.Controllers[1] != 0x20 {
		t.Fatalf("controllers=%v", got.Controllers)
	}
	if got.DefaultMasks[status.CatIout] != 0x80 {
		t.Fatalf("default masks=%v", got.DefaultMasks)
	}
	want := MaskOverride{Page: 1, Category: status.CatTemperature, Mask: 0xC0}
	if len(got.PageMasks) != 1 || got.PageMasks[0] != want {
		t.Fatalf("page masks=%+v", got.PageMasks)
	}
	if got.Identity.Firmware != "1.2.3" {
		t.Fatalf("identity=%+v", got.Identity)
	}
}
