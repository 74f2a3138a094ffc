// internal/writer/builder.go
package writer

import (
	"errors"
	"time"

	"github.com/tamzrod/pmbus-engine/internal/config"
	wmodbus "github.com/tamzrod/pmbus-engine/internal/writer/modbus"
)

// BuildMirror converts the mirror section into a Mirror for a device of
// the given page count. Assumes config has already passed Validate and
// Normalize.
func BuildMirror(m *config.MirrorConfig, pages int) (*Mirror, error) {
	if m == nil {
		return nil, errors.New("writer: mirror not configured")
	}

	plan := Plan{
		Endpoint:   m.Endpoint,
		UnitID:     m.UnitID,
		BaseSlot:   m.BaseSlot,
		Pages:      pages,
		DeviceName: m.DeviceName,
	}

	// one attempt per call; the mirror redials on its next write
	dial := func() (Client, error) {
		c, err := wmodbus.Dial(wmodbus.Config{
			Endpoint: m.Endpoint,
			Timeout:  time.Duration(m.TimeoutMs) * time.Millisecond,
			BaudRate: m.BaudRate,
			Parity:   m.Parity,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	return New(plan, dial)
}
