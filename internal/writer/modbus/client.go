// internal/writer/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// MaxWriteRegisters is the largest Write Multiple Registers request.
const MaxWriteRegisters = 123

// Client is one connection to a Modbus server, over TCP or RTU.
// It serializes requests because it mutates the unit id per write.
type Client struct {
	mu      sync.Mutex
	closer  interface{ Close() error }
	setUnit func(uint8)
	client  modbus.Client
}

// Config selects the transport from the endpoint form:
// "host:port" or "tcp://host:port" for TCP, "rtu:///dev/ttyUSB0" for RTU.
type Config struct {
	Endpoint string
	Timeout  time.Duration

	// RTU only.
	BaudRate int
	Parity   string
}

// Dial connects to cfg.Endpoint.
func Dial(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("writer modbus: endpoint required")
	}

	if dev, ok := strings.CutPrefix(cfg.Endpoint, "rtu://"); ok {
		h := modbus.NewRTUClientHandler(dev)
		h.Timeout = cfg.Timeout
		if cfg.BaudRate > 0 {
			h.BaudRate = cfg.BaudRate
		}
		if cfg.Parity != "" {
			h.Parity = cfg.Parity
		}
		if err := h.Connect(); err != nil {
			return nil, fmt.Errorf("writer modbus: open %s: %w", dev, err)
		}
		return &Client{
			closer:  h,
			setUnit: func(id uint8) { h.SlaveId = id },
			client:  modbus.NewClient(h),
		}, nil
	}

	addr := strings.TrimPrefix(cfg.Endpoint, "tcp://")
	h := modbus.NewTCPClientHandler(addr)
	h.Timeout = cfg.Timeout
	if err := h.Connect(); err != nil {
		return nil, err
	}
	return &Client{
		closer:  h,
		setUnit: func(id uint8) { h.SlaveId = id },
		client:  modbus.NewClient(h),
	}, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closer.Close()
}

// WriteRegisters writes regs at addr, split into protocol-sized requests.
func (c *Client) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setUnit(unitID)
	for len(regs) > 0 {
		n := len(regs)
		if n > MaxWriteRegisters {
			n = MaxWriteRegisters
		}
		if _, err := c.client.WriteMultipleRegisters(addr, uint16(n), packRegisters(regs[:n])); err != nil {
			return err
		}
		regs = regs[n:]
		addr += uint16(n)
	}
	return nil
}

// ReadRegisters reads qty holding registers at addr.
func (c *Client) ReadRegisters(unitID uint8, addr, qty uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setUnit(unitID)
	b, err := c.client.ReadHoldingRegisters(addr, qty)
	if err != nil {
		return nil, err
	}
	if len(b) != int(qty)*2 {
		return nil, fmt.Errorf("writer modbus: read %d bytes, want %d", len(b), qty*2)
	}
	return unpackRegisters(b), nil
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}

func unpackRegisters(b []byte) []uint16 {
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return out
}
