// internal/pec/pec.go
package pec

import "github.com/sigurn/crc8"

// SMBus Packet Error Code: CRC-8 (poly 0x07, init 0x00) over every byte of
// the transaction including the address bytes.
var table = crc8.MakeTable(crc8.CRC8)

// AddrByte returns the on-wire address byte for a 7-bit address.
func AddrByte(addr uint8, read bool) byte {
	b := addr << 1
	if read {
		b |= 1
	}
	return b
}

// Sum is a running PEC over a transaction.
type Sum struct {
	crc uint8
}

// New starts an empty running PEC.
func New() Sum {
	return Sum{crc: crc8.Init(table)}
}

// Add feeds bytes into the running PEC.
func (s *Sum) Add(b ...byte) {
	s.crc = crc8.Update(s.crc, b, table)
}

// Value returns the PEC of everything added so far.
func (s Sum) Value() uint8 {
	return crc8.Complete(s.crc, table)
}

// Compute returns the PEC of an address byte followed by data.
func Compute(addr uint8, read bool, data []byte) uint8 {
	s := New()
	s.Add(AddrByte(addr, read))
	s.Add(data...)
	return s.Value()
}
