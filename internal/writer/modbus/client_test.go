// internal/writer/modbus/client_test.go
package modbus

import (
	"testing"

	"github.com/goburrow/modbus"
)

type fakeModbus struct {
	modbus.Client
	writes [][2]uint16 // addr, qty
	regs   map[uint16]uint16
}

func (f *fakeModbus) WriteMultipleRegisters(addr, qty uint16, value []byte) ([]byte, error) {
	f.writes = append(f.writes, [2]uint16{addr, qty})
	for i, r := range unpackRegisters(value) {
		f.regs[addr+uint16(i)] = r
	}
	return nil, nil
}

func (f *fakeModbus) ReadHoldingRegisters(addr, qty uint16) ([]byte, error) {
	out := make([]uint16, qty)
	for i := range out {
		out[i] = f.regs[addr+uint16(i)]
	}
	return packRegisters(out), nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newTestClient() (*Client, *fakeModbus, *uint8) {
	f := &fakeModbus{regs: map[uint16]uint16{}}
	unit := new(uint8)
	return &Client{
		closer:  nopCloser{},
		setUnit: func(id uint8) { *unit = id },
		client:  f,
	}, f, unit
}

func TestWriteRegisters_Splits(t *testing.T) {
	c, f, unit := newTestClient()

	regs := make([]uint16, 200)
	for i := range regs {
		regs[i] = uint16(i)
	}
	if err := c.WriteRegisters(9, 100, regs); err != nil {
		t.Fatalf("WriteRegisters err=%v", err)
	}
	if *unit != 9 {
		t.Fatalf("unit=%d want 9", *unit)
	}
	if len(f.writes) != 2 || f.writes[0] != [2]uint16{100, 123} || f.writes[1] != [2]uint16{223, 77} {
		t.Fatalf("writes=%v", f.writes)
	}

	got, err := c.ReadRegisters(9, 100, 200)
	if err != nil {
		t.Fatalf("ReadRegisters err=%v", err)
	}
	for i := range regs {
		if got[i] != regs[i] {
			t.Fatalf("reg %d=%d want %d", i, got[i], regs[i])
		}
	}
}

func TestPackRegisters_BigEndian(t *testing.T) {
	b := packRegisters([]uint16{0x1234, 0xABCD})
	if b[0] != 0x12 || b[1] != 0x34 || b[2] != 0xAB || b[3] != 0xCD {
		t.Fatalf("packed=% X", b)
	}
}

func TestDial_RequiresEndpoint(t *testing.T) {
	if _, err := Dial(Config{}); err == nil {
		t.Fatalf("expected error")
	}
}
