// internal/client/pmbus.go
package client

import (
	"fmt"

	"github.com/tamzrod/pmbus-engine/internal/command"
)

// SetPage selects the sticky page.
func (c *Client) SetPage(p command.PageID) error {
	return c.WriteByte(command.Page, byte(p))
}

// Page reads the sticky page.
func (c *Client) Page() (command.PageID, error) {
	b, err := c.ReadByte(command.Page)
	return command.PageID(b), err
}

// ClearFaults sends CLEAR_FAULTS.
func (c *Client) ClearFaults() error {
	return c.SendByte(command.ClearFaults)
}

// StatusWord reads STATUS_WORD of the sticky page.
func (c *Client) StatusWord() (uint16, error) {
	return c.ReadWord(command.StatusWord)
}

// Query returns the QUERY byte of cmd.
func (c *Client) Query(cmd byte) (byte, error) {
	r, err := c.BlockProcessCall(command.Query, []byte{cmd})
	if err != nil {
		return 0, err
	}
	if len(r) != 1 {
		return 0, fmt.Errorf("pmbus client: query returned %d bytes", len(r))
	}
	return r[0], nil
}

// SetSMBAlertMask writes the mask of one category status command.
func (c *Client) SetSMBAlertMask(statusCmd, mask byte) error {
	return c.write([]byte{command.SMBAlertMask, statusCmd, mask})
}

// SMBAlertMask reads the mask of one category status command.
func (c *Client) SMBAlertMask(statusCmd byte) (byte, error) {
	r, err := c.BlockProcessCall(command.SMBAlertMask, []byte{statusCmd})
	if err != nil {
		return 0, err
	}
	if len(r) != 1 {
		return 0, fmt.Errorf("pmbus client: mask returned %d bytes", len(r))
	}
	return r[0], nil
}

// PagePlusWrite writes data to cmd on page without touching the sticky
// page. data is the inner payload, including its own count for block
// commands.
func (c *Client) PagePlusWrite(page command.PageID, cmd byte, data []byte) error {
	inner := append([]byte{byte(page), cmd}, data...)
	return c.BlockWrite(command.PagePlusWrite, inner)
}

// PagePlusRead reads n bytes of cmd on page without touching the sticky
// page. n < 0 reads a block response and strips its count.
func (c *Client) PagePlusRead(page command.PageID, cmd byte, n int) ([]byte, error) {
	r, err := c.BlockProcessCall(command.PagePlusRead, []byte{byte(page), cmd})
	if err != nil {
		return nil, err
	}
	if n >= 0 {
		if len(r) != n {
			return nil, fmt.Errorf("pmbus client: page-plus read returned %d bytes, want %d", len(r), n)
		}
		return r, nil
	}
	if len(r) == 0 || int(r[0]) != len(r)-1 {
		return nil, fmt.Errorf("pmbus client: page-plus block count mismatch")
	}
	return r[1:], nil
}

// PagePlusReadWord reads a word command on page.
func (c *Client) PagePlusReadWord(page command.PageID, cmd byte) (uint16, error) {
	r, err := c.PagePlusRead(page, cmd, 2)
	if err != nil {
		return 0, err
	}
	return uint16(r[0]) | uint16(r[1])<<8, nil
}

// DebugUnlock writes MFR_DEBUG_UNLOCK.
func (c *Client) DebugUnlock(key uint16) error {
	return c.WriteWord(command.MfrDebugUnlock, key)
}

// Identity reads the manufacturer strings that are implemented.
func (c *Client) Identity() (map[string]string, error) {
	out := make(map[string]string)
	for _, f := range []struct {
		name string
		code byte
	}{
		{"mfr_id", command.MfrID},
		{"mfr_model", command.MfrModel},
		{"mfr_revision", command.MfrRevision},
		{"mfr_serial", command.MfrSerial},
	} {
		q, err := c.Query(f.code)
		if err != nil {
			return out, err
		}
		if q&command.QuerySupported == 0 {
			continue
		}
		b, err := c.BlockRead(f.code)
		if err != nil {
			return out, fmt.Errorf("%s: %w", f.name, err)
		}
		out[f.name] = string(b)
	}
	return out, nil
}
