// internal/client/client.go
package client

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"

	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/pec"
)

// MaxBlock is the largest SMBus block.
const MaxBlock = 255

// ErrPEC is returned when a response fails its packet error code.
var ErrPEC = errors.New("pmbus client: pec mismatch")

// Config is the host-side view of one device.
type Config struct {
	Addr    uint16
	PEC     bool
	Profile command.Profile
}

// Client speaks PMBus to one device over any periph I2C bus.
// It is safe for concurrent use.
type Client struct {
	mu  sync.Mutex
	cfg Config
	dev *i2c.Dev
}

// New creates a client for the device at cfg.Addr on bus.
func New(bus i2c.Bus, cfg Config) (*Client, error) {
	if bus == nil {
		return nil, errors.New("pmbus client: bus required")
	}
	if cfg.Addr > 0x7F {
		return nil, fmt.Errorf("pmbus client: address 0x%X is not 7-bit", cfg.Addr)
	}
	return &Client{cfg: cfg, dev: &i2c.Dev{Addr: cfg.Addr, Bus: bus}}, nil
}

func (c *Client) String() string {
	return fmt.Sprintf("pmbus@0x%02X", c.cfg.Addr)
}

// ---- raw transactions ----

// write sends w, appending PEC when enabled.
func (c *Client) write(w []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.PEC {
		w = append(append([]byte(nil), w...), pec.Compute(uint8(c.cfg.Addr), false, w))
	}
	return c.dev.Tx(w, nil)
}

// read sends w then reads n bytes plus PEC when enabled, verifying it.
func (c *Client) read(w []byte, n int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := make([]byte, n+c.pecLen())
	if err := c.dev.Tx(w, r); err != nil {
		return nil, err
	}
	if !c.cfg.PEC {
		return r, nil
	}
	if err := c.checkPEC(w, r[:n], r[n]); err != nil {
		return nil, err
	}
	return r[:n], nil
}

// readBlock sends w then reads a count-prefixed block.
func (c *Client) readBlock(w []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := make([]byte, 1+MaxBlock+c.pecLen())
	if err := c.dev.Tx(w, r); err != nil {
		return nil, err
	}
	n := int(r[0])
	if 1+n+c.pecLen() > len(r) {
		return nil, fmt.Errorf("pmbus client: block count %d", n)
	}
	if c.cfg.PEC {
		if err := c.checkPEC(w, r[:1+n], r[1+n]); err != nil {
			return nil, err
		}
	}
	return append([]byte(nil), r[1:1+n]...), nil
}

func (c *Client) pecLen() int {
	if c.cfg.PEC {
		return 1
	}
	return 0
}

func (c *Client) checkPEC(w, data []byte, got byte) error {
	addr := uint8(c.cfg.Addr)
	s := pec.New()
	if len(w) > 0 {
		s.Add(pec.AddrByte(addr, false))
		s.Add(w...)
	}
	s.Add(pec.AddrByte(addr, true))
	s.Add(data...)
	if s.Value() != got {
		return fmt.Errorf("%w: got 0x%02X want 0x%02X", ErrPEC, got, s.Value())
	}
	return nil
}

// ---- SMBus protocols ----

// SendByte sends a command with no data.
func (c *Client) SendByte(cmd byte) error {
	return c.write([]byte{cmd})
}

// WriteByte writes one data byte.
func (c *Client) WriteByte(cmd, v byte) error {
	return c.write([]byte{cmd, v})
}

// WriteWord writes a little-endian word.
func (c *Client) WriteWord(cmd byte, v uint16) error {
	return c.write([]byte{cmd, byte(v), byte(v >> 8)})
}

// ReadByte reads one data byte.
func (c *Client) ReadByte(cmd byte) (byte, error) {
	r, err := c.read([]byte{cmd}, 1)
	if err != nil {
		return 0, err
	}
	return r[0], nil
}

// ReadWord reads a little-endian word.
func (c *Client) ReadWord(cmd byte) (uint16, error) {
	r, err := c.read([]byte{cmd}, 2)
	if err != nil {
		return 0, err
	}
	return uint16(r[0]) | uint16(r[1])<<8, nil
}

// BlockWrite writes a count-prefixed block.
func (c *Client) BlockWrite(cmd byte, data []byte) error {
	if len(data) == 0 || len(data) > MaxBlock {
		return fmt.Errorf("pmbus client: block length %d", len(data))
	}
	w := append([]byte{cmd, byte(len(data))}, data...)
	return c.write(w)
}

// BlockRead reads a count-prefixed block.
func (c *Client) BlockRead(cmd byte) ([]byte, error) {
	return c.readBlock([]byte{cmd})
}

// BlockProcessCall writes a block and reads a block in one transaction.
func (c *Client) BlockProcessCall(cmd byte, args []byte) ([]byte, error) {
	if len(args) == 0 || len(args) > MaxBlock {
		return nil, fmt.Errorf("pmbus client: block length %d", len(args))
	}
	w := append([]byte{cmd, byte(len(args))}, args...)
	return c.readBlock(w)
}
