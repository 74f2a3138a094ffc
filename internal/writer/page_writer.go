// internal/writer/page_writer.go
package writer

import (
	"fmt"
	"strings"

	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/status"
)

// pageWriter delivers the snapshot of one page into its register block.
// The first write, and the first write after any failure, re-asserts the
// full block including the device name. Otherwise only changed runs of
// slots are written.
type pageWriter struct {
	page     command.PageID
	baseAddr uint16

	needFull bool
	last     []uint16
	nameRegs []uint16
}

func newPageWriter(page command.PageID, baseAddr uint16, name string) *pageWriter {
	return &pageWriter{
		page:     page,
		baseAddr: baseAddr,
		needFull: true,
		nameRegs: encodeDeviceNameRegs(name),
	}
}

func (pw *pageWriter) write(cli Client, unitID uint8, s status.Snapshot) error {
	regs := pw.block(s)

	if pw.needFull {
		if err := cli.WriteRegisters(unitID, pw.baseAddr, regs); err != nil {
			return fmt.Errorf("page %d: full block write failed: %w", pw.page, err)
		}
		pw.needFull = false
		pw.last = regs
		return nil
	}

	var errs []string
	for start := 0; start < len(regs); {
		if regs[start] == pw.last[start] {
			start++
			continue
		}
		end := start + 1
		for end < len(regs) && regs[end] != pw.last[end] {
			end++
		}
		if err := cli.WriteRegisters(unitID, pw.baseAddr+uint16(start), regs[start:end]); err != nil {
			errs = append(errs, fmt.Sprintf("slots %d..%d write failed: %v", start, end-1, err))
		} else {
			copy(pw.last[start:end], regs[start:end])
		}
		start = end
	}

	if len(errs) > 0 {
		pw.needFull = true
		return fmt.Errorf("page %d: %s", pw.page, strings.Join(errs, " | "))
	}
	return nil
}

// invalidate forces a full block on the next write.
func (pw *pageWriter) invalidate() { pw.needFull = true }

func (pw *pageWriter) block(s status.Snapshot) []uint16 {
	regs := status.Encode(s)
	for i := 0; i < status.SlotDeviceNameSlots && i < len(pw.nameRegs); i++ {
		regs[status.SlotDeviceNameStart+i] = pw.nameRegs[i]
	}
	return regs
}

// encodeDeviceNameRegs packs up to 16 ASCII characters into 8 registers,
// two bytes each in big-endian order.
func encodeDeviceNameRegs(name string) []uint16 {
	out := make([]uint16, status.SlotDeviceNameSlots)

	b := []byte(name)
	if len(b) > status.DeviceNameMaxChars {
		b = b[:status.DeviceNameMaxChars]
	}
	for i := range b {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < status.DeviceNameMaxChars; i += 2 {
		var hi, lo byte
		if i < len(b) {
			hi = b[i]
		}
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}
	return out
}
