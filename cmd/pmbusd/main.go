// cmd/pmbusd/main.go
package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tamzrod/pmbus-engine/internal/config"
	"github.com/tamzrod/pmbus-engine/internal/engine"
	"github.com/tamzrod/pmbus-engine/internal/nvstore"
	"github.com/tamzrod/pmbus-engine/internal/poller"
	"github.com/tamzrod/pmbus-engine/internal/writer"
)

// exitReboot tells a supervisor to restart the process into the requested
// boot target.
const exitReboot = 3

// storagePages holds the calibration, black-box and reboot regions.
const storagePages = 3

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: pmbusd <config.yaml>")
	}

	cfgPath := os.Args[1]

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Non-volatile storage
	// --------------------

	flash, err := nvstore.NewFlash(storagePages, cfg.Storage.PageSize)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	if err := loadImage(flash, cfg.Storage.Image); err != nil {
		log.Fatalf("storage image load failed: %v", err)
	}

	// --------------------
	// Plant + engine
	// --------------------

	sim, err := poller.BuildSim(cfg.Simulation)
	if err != nil {
		log.Fatalf("simulation build failed: %v", err)
	}

	engCfg, err := engine.BuildConfig(cfg)
	if err != nil {
		log.Fatalf("engine config failed: %v", err)
	}

	reboot := &rebootLine{requested: make(chan uint8, 1)}

	eng, err := engine.New(engCfg, engine.Deps{
		Plant:    sim,
		Storage:  flash,
		PageSize: flash.PageSize(),
		Layout:   nvstore.DefaultLayout,
		Reset:    reboot,
		Alert:    alertLogger{},
	})
	if err != nil {
		log.Fatalf("engine init failed: %v", err)
	}
	if rec, ok := eng.BootRecord(); ok {
		log.Printf("started after upgrade reset (boot target=0x%02X led=%d)", rec.BootTarget, rec.LED)
	}

	log.Printf(
		"pmbusd: addr=0x%02X profile=%s pages=%d pec=%v",
		engCfg.Address, engCfg.Profile, engCfg.Pages, engCfg.PEC,
	)

	// --------------------
	// Scheduler + optional mirror
	// --------------------

	go poller.Run(ctx, time.Millisecond, eng)

	if cfg.Mirror != nil {
		m, err := writer.BuildMirror(cfg.Mirror, eng.Pages())
		if err != nil {
			log.Fatalf("mirror build failed: %v", err)
		}
		log.Printf("mirror: ep=%s unit=%d base_slot=%d", cfg.Mirror.Endpoint, cfg.Mirror.UnitID, cfg.Mirror.BaseSlot)
		go m.Run(ctx, time.Duration(cfg.Mirror.IntervalMs)*time.Millisecond, eng)
	}

	// --------------------
	// Block until shutdown or reboot
	// --------------------

	code := 0
	select {
	case <-ctx.Done():
		log.Printf("shutting down")
	case target := <-reboot.requested:
		log.Printf("reboot requested (boot target=0x%02X)", target)
		code = exitReboot
	}
	stop()

	if err := saveImage(flash, cfg.Storage.Image); err != nil {
		log.Printf("storage image save failed: %v", err)
	}
	os.Exit(code)
}

// rebootLine stands in for the processor reset.
type rebootLine struct {
	requested chan uint8
}

func (r *rebootLine) Reset(bootTarget uint8) {
	select {
	case r.requested <- bootTarget:
	default:
	}
}

// alertLogger stands in for the SMBALERT# pin.
type alertLogger struct{}

func (alertLogger) SetAlert(asserted bool) {
	if asserted {
		log.Printf("SMBALERT# asserted")
	} else {
		log.Printf("SMBALERT# released")
	}
}

func loadImage(f *nvstore.Flash, path string) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return f.LoadImage(b)
}

func saveImage(f *nvstore.Flash, path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, f.Image(), 0o644)
}
