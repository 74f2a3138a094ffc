// internal/snapshot/slot_test.go
package snapshot

import (
	"testing"

	"github.com/tamzrod/pmbus-engine/internal/sensor"
)

type pair struct {
	A, B uint16
}

func TestSlot_ReaderSeesOldDuringUpdate(t *testing.T) {
	var s Slot[pair]
	s.Update(func(v *pair) { *v = pair{1, 1} })

	g := s.BeginUpdate()
	g.Value().A = 2
	if got := s.Read(); got != (pair{1, 1}) {
		t.Fatalf("half-updated value visible: %+v", got)
	}
	g.Value().B = 2
	if got := s.Read(); got != (pair{1, 1}) {
		t.Fatalf("value visible before release: %+v", got)
	}
	g.Release()

	if got := s.Read(); got != (pair{2, 2}) {
		t.Fatalf("new value not published: %+v", got)
	}
	if got := s.Previous(); got != (pair{1, 1}) {
		t.Fatalf("previous=%+v", got)
	}

	g.Release()
	if s.Updating() {
		t.Fatalf("double release reopened the slot")
	}
}

func TestSlot_UpdateReleasesOnPanic(t *testing.T) {
	var s Slot[int]
	func() {
		defer func() { _ = recover() }()
		s.Update(func(v *int) {
			*v = 7
			panic("producer failed")
		})
	}()
	if s.Updating() {
		t.Fatalf("guard left open")
	}
}

func TestMeasurements(t *testing.T) {
	var m Measurements

	if _, ok := m.Read(0, sensor.Vout); ok {
		t.Fatalf("unmeasured word reported valid")
	}

	m.Store(1, sensor.Vout, 0xD300)
	if w, ok := m.Read(1, sensor.Vout); !ok || w.Value != 0xD300 {
		t.Fatalf("Read=%+v ok=%v", w, ok)
	}
	if _, ok := m.Read(0, sensor.Vout); ok {
		t.Fatalf("store on page 1 leaked to page 0")
	}

	m.Store(200, sensor.Vout, 1)
	if m.Slot(200, sensor.Vout) != nil {
		t.Fatalf("out of range page must have no slot")
	}
}
