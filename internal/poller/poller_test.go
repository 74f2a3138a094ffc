// internal/poller/poller_test.go
package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/linear"
	"github.com/tamzrod/pmbus-engine/internal/sensor"
	"github.com/tamzrod/pmbus-engine/internal/snapshot"
)

type fakeSource struct {
	values map[sensor.Quantity]int64
	calls  map[sensor.Quantity]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		values: map[sensor.Quantity]int64{
			sensor.Vin:   230 * linear.Q7One,
			sensor.Iin:   2 * linear.Q7One,
			sensor.Pin:   460 * linear.Q7One,
			sensor.Vout:  12 * linear.Q7One,
			sensor.Iout:  30 * linear.Q7One,
			sensor.Pout:  360 * linear.Q7One,
			sensor.Temp1: 40 * linear.Q7One,
			sensor.Fan1:  9000 * linear.Q7One,
		},
		calls: map[sensor.Quantity]int{},
	}
}

func (f *fakeSource) ReadQ7(page command.PageID, q sensor.Quantity) (int64, bool) {
	f.calls[q]++
	if q.Group() == sensor.GroupFanNTC && page != command.PageMain {
		return 0, false
	}
	v, ok := f.values[q]
	return v, ok
}

func newPoller(t *testing.T, profile command.Profile, pages int) (*Poller, *fakeSource, *sensor.CalibrationRecord, *snapshot.Measurements) {
	t.Helper()
	src := newFakeSource()
	cal := sensor.DefaultCalibration()
	meas := &snapshot.Measurements{}
	p, err := New(Config{Profile: profile, Pages: pages}, src, &cal, meas)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	return p, src, &cal, meas
}

func TestNew_Rejects(t *testing.T) {
	meas := &snapshot.Measurements{}
	cal := sensor.DefaultCalibration()
	if _, err := New(Config{Pages: 0}, newFakeSource(), &cal, meas); err == nil {
		t.Fatalf("expected error for zero pages")
	}
	if _, err := New(Config{Pages: 2}, nil, &cal, meas); err == nil {
		t.Fatalf("expected error for nil source")
	}
}

func TestPollOnce_RotatesGroups(t *testing.T) {
	p, _, _, meas := newPoller(t, command.ProfilePMBus, 2)

	want := []sensor.Group{sensor.GroupFanNTC, sensor.GroupOutput, sensor.GroupInput, sensor.GroupFanNTC}
	for i, g := range want {
		if res := p.PollOnce(); res.Group != g {
			t.Fatalf("pass %d group=%d want %d", i, res.Group, g)
		}
	}

	if _, ok := meas.Read(1, sensor.Vout); !ok {
		t.Fatalf("page 1 vout not published")
	}
	if _, ok := meas.Read(1, sensor.Temp1); ok {
		t.Fatalf("temperature published on page 1")
	}
}

func TestPollOnce_SharedReadOnce(t *testing.T) {
	p, src, _, meas := newPoller(t, command.ProfilePMBus, 3)
	p.PollAll()

	if src.calls[sensor.Vin] != 1 {
		t.Fatalf("vin read %d times, want 1", src.calls[sensor.Vin])
	}
	if src.calls[sensor.Vout] != 3 {
		t.Fatalf("vout read %d times, want 3", src.calls[sensor.Vout])
	}
	w, ok := meas.Read(0, sensor.Vin)
	if !ok || w.Value != linear.EncodeLinear11(230*linear.Q7One) {
		t.Fatalf("vin=0x%04X ok=%v", w.Value, ok)
	}
}

func TestPollOnce_AppliesTrim(t *testing.T) {
	p, _, cal, meas := newPoller(t, command.ProfilePMBus, 2)
	if err := cal.SetVoutGain(0, 4505); err != nil {
		t.Fatalf("SetVoutGain err=%v", err)
	}
	p.PollAll()

	want := linear.EncodeLinear11(sensor.ApplyGain(12*linear.Q7One, 4505))
	if w, _ := meas.Read(0, sensor.Vout); w.Value != want {
		t.Fatalf("trimmed vout=0x%04X want 0x%04X", w.Value, want)
	}
	untrimmed := linear.EncodeLinear11(12 * linear.Q7One)
	if w, _ := meas.Read(1, sensor.Vout); w.Value != untrimmed {
		t.Fatalf("page 1 vout=0x%04X want 0x%04X", w.Value, untrimmed)
	}
}

func TestFormat_Profiles(t *testing.T) {
	tests := []struct {
		name    string
		profile command.Profile
		q       sensor.Quantity
		v       int64
		want    uint16
	}{
		{"pmbus vout", command.ProfilePMBus, sensor.Vout, 12 * linear.Q7One, linear.EncodeLinear11(12 * linear.Q7One)},
		{"psmi vin", command.ProfilePSMI, sensor.Vin, 230 * linear.Q7One, 230 << 7},
		{"psmi iout", command.ProfilePSMI, sensor.Iout, 30 * linear.Q7One, 30 << 8},
		{"psmi pout", command.ProfilePSMI, sensor.Pout, 360 * linear.Q7One, 360 << 4},
		{"psmi fan", command.ProfilePSMI, sensor.Fan1, 9000 * linear.Q7One, 9000},
		{"psmi temp", command.ProfilePSMI, sensor.Temp1, 40 * linear.Q7One, linear.EncodeSignedTemperature(40 * linear.Q7One)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.profile, tt.q, tt.v); got != tt.want {
				t.Fatalf("Format=0x%04X want 0x%04X", got, tt.want)
			}
		})
	}
}

type countingTicker struct {
	mu              sync.Mutex
	ms, ms10, ms100 int
}

func (c *countingTicker) Tick1ms()   { c.mu.Lock(); c.ms++; c.mu.Unlock() }
func (c *countingTicker) Tick10ms()  { c.mu.Lock(); c.ms10++; c.mu.Unlock() }
func (c *countingTicker) Tick100ms() { c.mu.Lock(); c.ms100++; c.mu.Unlock() }

func TestRun_TickRatios(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	c := &countingTicker{}
	Run(ctx, time.Millisecond, c)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ms == 0 {
		t.Fatalf("no ticks delivered")
	}
	if c.ms10 != c.ms/10 || c.ms100 != c.ms/100 {
		t.Fatalf("ticks 1ms=%d 10ms=%d 100ms=%d", c.ms, c.ms10, c.ms100)
	}
}
