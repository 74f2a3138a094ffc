// internal/gate/gate.go
package gate

import (
	"bytes"
	"errors"
	"fmt"
	"log"

	"github.com/tamzrod/pmbus-engine/internal/nvstore"
)

// DebugUnlockKey ("UL") enables the manufacturer-internal commands.
const DebugUnlockKey uint16 = 0x554C

// UpgradeKey is the compiled firmware-upgrade key.
var UpgradeKey = []byte("PSUFWUPD")

// UpgradeUnlockLen is the MFR_UPGRADE_UNLOCK payload: key + controller id.
var UpgradeUnlockLen = len(UpgradeKey) + 1

// Boot targets accepted by MFR_SET_BOOT_FLAG.
const (
	BootApplication uint8 = 0x00
	BootLoader      uint8 = 0x01
)

// MFR_UPGRADE_STATUS bits.
const (
	StatusUpgradeUnlocked byte = 1 << 0
	StatusIDError         byte = 1 << 1
	StatusTransmission    byte = 1 << 2
	StatusRebootPending   byte = 1 << 3
)

// Persister stores the reboot-reason record.
type Persister interface {
	WriteRebootRecord(rec nvstore.RebootRecord) error
}

// Resetter is the processor-reset collaborator.
type Resetter interface {
	Reset(bootTarget uint8)
}

// Config is the gate configuration.
type Config struct {
	Controllers      []uint8
	RebootDelayTicks int

	// LED reports the indicator state recorded in the reboot record.
	LED func() uint8
}

// Gate is the lock state of the manufacturer-internal and upgrade commands.
// It is not safe for concurrent use; the engine serializes access.
type Gate struct {
	cfg     Config
	persist Persister
	reset   Resetter

	debugUnlocked   bool
	upgradeUnlocked bool
	target          uint8

	rebootPending bool
	rebootTicks   int
	bootTarget    uint8

	idError bool
	txError bool
}

// New builds a locked gate.
func New(cfg Config, p Persister, r Resetter) (*Gate, error) {
	if len(cfg.Controllers) == 0 {
		return nil, errors.New("gate: at least one controller id required")
	}
	if cfg.RebootDelayTicks <= 0 {
		return nil, errors.New("gate: reboot delay must be > 0")
	}
	if p == nil || r == nil {
		return nil, errors.New("gate: persister and resetter required")
	}
	return &Gate{cfg: cfg, persist: p, reset: r}, nil
}

// DebugUnlocked reports whether manufacturer-internal commands are enabled.
func (g *Gate) DebugUnlocked() bool { return g.debugUnlocked }

// UpgradeUnlocked reports whether the upgrade handshake has been accepted.
func (g *Gate) UpgradeUnlocked() bool { return g.upgradeUnlocked }

// Target returns the controller id recorded by the upgrade unlock.
func (g *Gate) Target() uint8 { return g.target }

// DebugUnlock applies a MFR_DEBUG_UNLOCK word: the key unlocks, any other
// value locks. Locking also withdraws an upgrade unlock that has not armed
// a reboot yet.
func (g *Gate) DebugUnlock(word uint16) {
	was := g.debugUnlocked
	g.debugUnlocked = word == DebugUnlockKey

	if !g.debugUnlocked && !g.rebootPending {
		g.upgradeUnlocked = false
	}
	if was != g.debugUnlocked {
		log.Printf("gate: debug unlocked=%v", g.debugUnlocked)
	}
}

// UpgradeUnlock applies a MFR_UPGRADE_UNLOCK block. Rejections are reported
// through the sticky status bits only.
func (g *Gate) UpgradeUnlock(block []byte) {
	if len(block) != UpgradeUnlockLen {
		g.txError = true
		return
	}
	if !bytes.Equal(block[:len(UpgradeKey)], UpgradeKey) {
		g.idError = true
		return
	}
	id := block[len(UpgradeKey)]
	if !g.knownController(id) {
		g.idError = true
		return
	}

	g.upgradeUnlocked = true
	g.target = id
	log.Printf("gate: upgrade unlocked (controller=0x%02X)", id)
}

func (g *Gate) knownController(id uint8) bool {
	for _, c := range g.cfg.Controllers {
		if c == id {
			return true
		}
	}
	return false
}

// SetBootFlag applies MFR_SET_BOOT_FLAG. A flag without a prior upgrade
// unlock, or naming neither boot target, is a transmission error.
func (g *Gate) SetBootFlag(v uint8) error {
	if !g.upgradeUnlocked || (v != BootApplication && v != BootLoader) {
		g.txError = true
		return nil
	}
	if g.rebootPending {
		return nil
	}

	g.rebootPending = true
	g.rebootTicks = g.cfg.RebootDelayTicks
	g.bootTarget = v
	log.Printf("gate: reboot armed (target=0x%02X, ticks=%d)", v, g.rebootTicks)
	return nil
}

// RebootPending reports whether a reboot is armed.
func (g *Gate) RebootPending() bool { return g.rebootPending }

// Status returns the MFR_UPGRADE_STATUS byte.
func (g *Gate) Status() byte {
	var s byte
	if g.upgradeUnlocked {
		s |= StatusUpgradeUnlocked
	}
	if g.idError {
		s |= StatusIDError
	}
	if g.txError {
		s |= StatusTransmission
	}
	if g.rebootPending {
		s |= StatusRebootPending
	}
	return s
}

// ClearSticky drops the sticky error bits (CLEAR_FAULTS).
func (g *Gate) ClearSticky() {
	g.idError = false
	g.txError = false
}

// Tick advances the reboot countdown by one 10 ms tick. When it expires the
// reboot record is persisted and the reset collaborator is called; fired is
// true on that tick only.
func (g *Gate) Tick() (fired bool, err error) {
	if !g.rebootPending {
		return false, nil
	}
	g.rebootTicks--
	if g.rebootTicks > 0 {
		return false, nil
	}

	g.rebootPending = false
	g.upgradeUnlocked = false

	rec := nvstore.RebootRecord{BootTarget: g.bootTarget}
	if g.cfg.LED != nil {
		rec.LED = g.cfg.LED()
	}
	if err = g.persist.WriteRebootRecord(rec); err != nil {
		err = fmt.Errorf("gate: persist reboot record: %w", err)
		log.Printf("%v", err)
	}

	log.Printf("gate: reset (target=0x%02X)", g.bootTarget)
	g.reset.Reset(g.bootTarget)
	return true, err
}
