// internal/snapshot/measurements.go
package snapshot

import (
	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/sensor"
)

// Word is a wire-formatted telemetry word and whether it has ever been
// measured.
type Word struct {
	Value uint16
	Valid bool
}

// Measurements holds one slot per (page, quantity).
type Measurements struct {
	slots [command.MaxPages][sensor.NumQuantities]Slot[Word]
}

// Slot returns the slot of a concrete page. Out of range pages return nil.
func (m *Measurements) Slot(page command.PageID, q sensor.Quantity) *Slot[Word] {
	if int(page) >= command.MaxPages || q >= sensor.NumQuantities {
		return nil
	}
	return &m.slots[page][q]
}

// Read returns the published word of (page, q).
func (m *Measurements) Read(page command.PageID, q sensor.Quantity) (Word, bool) {
	s := m.Slot(page, q)
	if s == nil {
		return Word{}, false
	}
	w := s.Read()
	return w, w.Valid
}

// Store publishes a word through a guard.
func (m *Measurements) Store(page command.PageID, q sensor.Quantity, v uint16) {
	s := m.Slot(page, q)
	if s == nil {
		return
	}
	s.Update(func(w *Word) {
		w.Value = v
		w.Valid = true
	})
}
