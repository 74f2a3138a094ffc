// internal/i2cbus/bus.go
package i2cbus

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// Target is a device on the bus driven by transport events.
type Target interface {
	Start()
	Receive(b byte)
	Respond() []byte
	Stop()
	Abort()
}

// Fill is the byte a target sends when it has nothing to say.
const Fill byte = 0xFF

// MaxSpeed is the fastest bus speed accepted (fast mode plus).
const MaxSpeed = physic.MegaHertz

// Bus is an in-process I2C bus with emulated targets attached by address.
type Bus struct {
	mu      sync.Mutex
	name    string
	speed   physic.Frequency
	targets map[uint16]Target
	closed  bool
}

var _ i2c.BusCloser = (*Bus)(nil)

// New creates an empty bus running at 100 kHz.
func New(name string) *Bus {
	return &Bus{
		name:    name,
		speed:   100 * physic.KiloHertz,
		targets: make(map[uint16]Target),
	}
}

// Attach puts t on the bus at a 7-bit address.
func (b *Bus) Attach(addr uint16, t Target) error {
	if addr > 0x7F {
		return fmt.Errorf("i2cbus: address 0x%X is not 7-bit", addr)
	}
	if t == nil {
		return errors.New("i2cbus: target required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.targets[addr]; ok {
		return fmt.Errorf("i2cbus: address 0x%02X already in use", addr)
	}
	b.targets[addr] = t
	return nil
}

func (b *Bus) String() string { return b.name }

// Speed returns the configured bus speed.
func (b *Bus) Speed() physic.Frequency {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.speed
}

// SetSpeed implements i2c.Bus.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	if f <= 0 || f > MaxSpeed {
		return fmt.Errorf("i2cbus: speed %s out of range", f)
	}
	b.mu.Lock()
	b.speed = f
	b.mu.Unlock()
	return nil
}

// Tx implements i2c.Bus: w is sent in write direction, then a repeated
// start reads len(r) bytes. Bytes the target does not supply read as Fill.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New("i2cbus: bus closed")
	}
	t, ok := b.targets[addr]
	if !ok {
		return fmt.Errorf("i2cbus: no ack from 0x%02X", addr)
	}

	t.Start()
	for _, x := range w {
		t.Receive(x)
	}
	if len(r) > 0 {
		out := t.Respond()
		n := copy(r, out)
		for i := n; i < len(r); i++ {
			r[i] = Fill
		}
	}
	t.Stop()
	return nil
}

// Close detaches every target.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for addr, t := range b.targets {
		t.Abort()
		delete(b.targets, addr)
	}
	return nil
}
