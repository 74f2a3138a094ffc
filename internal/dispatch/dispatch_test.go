// internal/dispatch/dispatch_test.go
package dispatch

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/fault"
	"github.com/tamzrod/pmbus-engine/internal/gate"
	"github.com/tamzrod/pmbus-engine/internal/linear"
	"github.com/tamzrod/pmbus-engine/internal/nvstore"
	"github.com/tamzrod/pmbus-engine/internal/sensor"
	"github.com/tamzrod/pmbus-engine/internal/snapshot"
	"github.com/tamzrod/pmbus-engine/internal/status"
)

// ---- fakes ----

type fakeLatch struct{ resets int }

func (l *fakeLatch) ResetLatches() { l.resets++ }

type fakeRails struct{ on map[command.PageID]bool }

func (r *fakeRails) SetRailEnabled(page command.PageID, on bool) { r.on[page] = on }

type fakeFans struct{ duty int }

func (f *fakeFans) SetFanDuty(percent int) { f.duty = percent }

type fakePersister struct{}

func (fakePersister) WriteRebootRecord(nvstore.RebootRecord) error { return nil }

type fakeResetter struct{}

func (fakeResetter) Reset(uint8) {}

type fakeDebug struct{}

func (fakeDebug) DebugSnapshot() []byte { return []byte{1, 2, 3} }

// ---- rig ----

type rig struct {
	x     *Dispatcher
	agg   *status.Aggregator
	meas  *snapshot.Measurements
	gate  *gate.Gate
	store *nvstore.Store
	cal   *sensor.CalibrationRecord
	latch *fakeLatch
	rails *fakeRails
	fans  *fakeFans
}

func newRig(t *testing.T, pages int) *rig {
	t.Helper()

	table, err := command.NewTable(command.ProfilePMBus, pages)
	if err != nil {
		t.Fatalf("NewTable err=%v", err)
	}
	agg, err := status.NewAggregator(status.Config{Pages: pages})
	if err != nil {
		t.Fatalf("NewAggregator err=%v", err)
	}
	g, err := gate.New(gate.Config{Controllers: []uint8{0x10}, RebootDelayTicks: 20}, fakePersister{}, fakeResetter{})
	if err != nil {
		t.Fatalf("gate.New err=%v", err)
	}
	flash, err := nvstore.NewFlash(3, 256)
	if err != nil {
		t.Fatalf("NewFlash err=%v", err)
	}
	store, err := nvstore.NewStore(flash, 256, nvstore.DefaultLayout)
	if err != nil {
		t.Fatalf("NewStore err=%v", err)
	}

	cal := sensor.DefaultCalibration()
	r := &rig{
		agg:   agg,
		meas:  &snapshot.Measurements{},
		gate:  g,
		store: store,
		cal:   &cal,
		latch: &fakeLatch{},
		rails: &fakeRails{on: map[command.PageID]bool{}},
		fans:  &fakeFans{},
	}
	r.x, err = New(Deps{
		Table:       table,
		Status:      agg,
		Telemetry:   r.meas,
		Gate:        g,
		Store:       store,
		Calibration: r.cal,
		Latch:       r.latch,
		Rails:       r.rails,
		Fans:        r.fans,
		Debug:       fakeDebug{},
		Identity:    Identity{ID: "ACME", Model: "PSU-1600", Firmware: "1.4.2"},
	})
	if err != nil {
		t.Fatalf("New err=%v", err)
	}
	return r
}

func le(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }

func wantCode(t *testing.T, err error, want fault.Code) {
	t.Helper()
	if got := fault.Of(err); got != want {
		t.Fatalf("fault=%v want %v (err=%v)", got, want, err)
	}
}

// ---- tests ----

func TestNew_Rejects(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Fatalf("expected error for empty deps")
	}
}

func TestTrimGain_UnlockThenRange(t *testing.T) {
	r := newRig(t, 2)

	err := r.x.HandleWrite(0, command.MfrTrimVoutGain, le(4096))
	wantCode(t, err, fault.InvalidCommand)

	r.gate.DebugUnlock(gate.DebugUnlockKey)

	if err := r.x.HandleWrite(0, command.MfrTrimVoutGain, le(4200)); err != nil {
		t.Fatalf("trim 4200 err=%v", err)
	}
	if got := r.cal.VoutGain(0); got != 4200 {
		t.Fatalf("gain=%d want 4200", got)
	}

	err = r.x.HandleWrite(0, command.MfrTrimVoutGain, le(5000))
	wantCode(t, err, fault.InvalidData)
	if got := r.cal.VoutGain(0); got != 4200 {
		t.Fatalf("gain changed by rejected write: %d", got)
	}

	var words [sensor.CalibrationWords]uint16
	ok, err := r.store.LoadCalibration(words[:])
	if err != nil || !ok {
		t.Fatalf("LoadCalibration ok=%v err=%v", ok, err)
	}
	if words[0] != 4200 {
		t.Fatalf("persisted gain=%d want 4200", words[0])
	}

	got, err := r.x.HandleRead(0, command.MfrTrimVoutGain, nil)
	if err != nil || !bytes.Equal(got, le(4200)) {
		t.Fatalf("read trim=%v err=%v", got, err)
	}

	// Page 2 is not an output with a trim.
	r3 := newRig(t, 3)
	r3.gate.DebugUnlock(gate.DebugUnlockKey)
	wantCode(t, r3.x.HandleWrite(2, command.MfrTrimVoutGain, le(4096)), fault.InvalidCommand)
}

func TestPageAll(t *testing.T) {
	r := newRig(t, 3)

	_, err := r.x.HandleRead(command.PageAll, command.StatusWord, nil)
	wantCode(t, err, fault.InvalidData)

	if err := r.x.HandleWrite(command.PageAll, command.Operation, []byte{OperationOff}); err != nil {
		t.Fatalf("operation all err=%v", err)
	}
	for _, p := range []command.PageID{0, 1} {
		if r.x.Operation(p) != OperationOff {
			t.Fatalf("page %v operation=0x%02X", p, r.x.Operation(p))
		}
		if on, seen := r.rails.on[p]; !seen || on {
			t.Fatalf("page %v rail not switched off", p)
		}
	}
	if _, seen := r.rails.on[2]; seen {
		t.Fatalf("operation reached unsupported page 2")
	}

	if err := r.x.HandleWrite(command.PageAll, command.ClearFaults, nil); err != nil {
		t.Fatalf("clear faults all err=%v", err)
	}
	if r.latch.resets != 1 {
		t.Fatalf("clear faults ran %d times for PageAll", r.latch.resets)
	}
}

func TestOperation_Values(t *testing.T) {
	r := newRig(t, 2)
	for _, v := range []byte{OperationOff, OperationSoftOff, OperationOn} {
		if err := r.x.HandleWrite(1, command.Operation, []byte{v}); err != nil {
			t.Fatalf("operation 0x%02X err=%v", v, err)
		}
	}
	wantCode(t, r.x.HandleWrite(1, command.Operation, []byte{0x20}), fault.InvalidData)

	got, err := r.x.HandleRead(1, command.Operation, nil)
	if err != nil || got[0] != OperationOn {
		t.Fatalf("operation read=%v err=%v", got, err)
	}
}

func TestFanCommand(t *testing.T) {
	r := newRig(t, 2)

	w := linear.EncodeLinear11(50 * linear.Q7One)
	if err := r.x.HandleWrite(0, command.FanCommand1, le(w)); err != nil {
		t.Fatalf("fan 50 err=%v", err)
	}
	if r.fans.duty != 50 {
		t.Fatalf("duty=%d want 50", r.fans.duty)
	}
	got, _ := r.x.HandleRead(0, command.FanCommand1, nil)
	if !bytes.Equal(got, le(w)) {
		t.Fatalf("fan read=%v", got)
	}

	over := linear.EncodeLinear11(101 * linear.Q7One)
	wantCode(t, r.x.HandleWrite(0, command.FanCommand1, le(over)), fault.InvalidData)
	if r.fans.duty != 50 {
		t.Fatalf("rejected duty applied")
	}

	wantCode(t, r.x.HandleWrite(1, command.FanCommand1, le(w)), fault.InvalidCommand)
}

func TestSMBAlertMask(t *testing.T) {
	r := newRig(t, 2)

	if err := r.x.HandleWrite(0, command.SMBAlertMask, []byte{command.StatusIout, 0xFF}); err != nil {
		t.Fatalf("mask write err=%v", err)
	}
	if got := r.agg.Mask(0, status.CatIout); got != 0xFF {
		t.Fatalf("mask=0x%02X want 0xFF", got)
	}
	if got := r.agg.Mask(1, status.CatIout); got != 0 {
		t.Fatalf("page 1 mask changed: 0x%02X", got)
	}

	got, err := r.x.HandleRead(0, command.SMBAlertMask, []byte{command.StatusIout})
	if err != nil || !bytes.Equal(got, []byte{0xFF}) {
		t.Fatalf("mask read=%v err=%v", got, err)
	}

	wantCode(t, r.x.HandleWrite(0, command.SMBAlertMask, []byte{command.StatusWord, 0xFF}), fault.InvalidData)
	_, err = r.x.HandleRead(0, command.SMBAlertMask, []byte{command.StatusByte})
	wantCode(t, err, fault.InvalidData)

	if err := r.x.HandleWrite(command.PageAll, command.SMBAlertMask, []byte{command.StatusTemp, 0x40}); err != nil {
		t.Fatalf("mask all err=%v", err)
	}
	if r.agg.Mask(0, status.CatTemperature) != 0x40 || r.agg.Mask(1, status.CatTemperature) != 0x40 {
		t.Fatalf("PageAll mask not applied everywhere")
	}
}

func TestQuery_GatedCommands(t *testing.T) {
	r := newRig(t, 2)

	got, err := r.x.HandleRead(0, command.Query, []byte{command.MfrTrimVoutGain})
	if err != nil || got[0] != 0 {
		t.Fatalf("locked query=%v err=%v", got, err)
	}
	r.gate.DebugUnlock(gate.DebugUnlockKey)
	got, _ = r.x.HandleRead(0, command.Query, []byte{command.MfrTrimVoutGain})
	if got[0]&command.QuerySupported == 0 {
		t.Fatalf("unlocked query=0x%02X", got[0])
	}

	got, _ = r.x.HandleRead(0, command.Query, []byte{command.ReadVout})
	want := command.QuerySupported | command.QueryRead
	if got[0] != want {
		t.Fatalf("READ_VOUT query=0x%02X want 0x%02X", got[0], want)
	}

	_, err = r.x.HandleRead(0, command.Query, []byte{1, 2})
	wantCode(t, err, fault.InvalidData)
}

func TestQuery_PageAll(t *testing.T) {
	r := newRig(t, 2)

	got, err := r.x.HandleRead(command.PageAll, command.Query, []byte{command.ReadVout})
	if err != nil {
		t.Fatalf("query under PageAll err=%v", err)
	}
	want := command.QuerySupported | command.QueryRead
	if got[0] != want {
		t.Fatalf("READ_VOUT query=0x%02X want 0x%02X", got[0], want)
	}

	got, _ = r.x.HandleRead(command.PageAll, command.Query, []byte{0x42})
	if got[0] != 0 {
		t.Fatalf("unknown command query=0x%02X", got[0])
	}

	_, err = r.x.HandleRead(command.PageAll, command.ReadVout, nil)
	wantCode(t, err, fault.InvalidData)
}

func TestTelemetry(t *testing.T) {
	r := newRig(t, 2)

	_, err := r.x.HandleRead(0, command.ReadVout, nil)
	wantCode(t, err, fault.InvalidData)

	r.meas.Store(0, sensor.Vout, 0xD300)
	r.meas.Store(1, sensor.Vout, 0xC980)
	r.meas.Store(0, sensor.Vin, 0xF398)

	tests := []struct {
		name string
		page command.PageID
		code byte
		want uint16
	}{
		{"vout page 0", 0, command.ReadVout, 0xD300},
		{"vout page 1", 1, command.ReadVout, 0xC980},
		{"vin shared on page 1", 1, command.ReadVin, 0xF398},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.x.HandleRead(tt.page, tt.code, nil)
			if err != nil || !bytes.Equal(got, le(tt.want)) {
				t.Fatalf("got=%v err=%v want 0x%04X", got, err, tt.want)
			}
		})
	}

	_, err = r.x.HandleRead(1, command.ReadTemp1, nil)
	wantCode(t, err, fault.InvalidCommand)
}

func TestClearFaults(t *testing.T) {
	r := newRig(t, 2)

	r.agg.Latch(1, fault.PecFault)
	r.gate.UpgradeUnlock([]byte("short"))
	if r.gate.Status()&gate.StatusTransmission == 0 {
		t.Fatalf("precondition: transmission error not set")
	}

	for i := 0; i < 2; i++ {
		if err := r.x.HandleWrite(0, command.ClearFaults, nil); err != nil {
			t.Fatalf("clear faults err=%v", err)
		}
		if r.agg.Registers(1).Cat[status.CatCML] != 0 {
			t.Fatalf("CML bits survive clear")
		}
		if r.gate.Status() != 0 {
			t.Fatalf("gate status=0x%02X after clear", r.gate.Status())
		}
	}
	if r.latch.resets != 2 {
		t.Fatalf("latch resets=%d want 2", r.latch.resets)
	}
}

func TestStatusReads(t *testing.T) {
	r := newRig(t, 2)
	r.agg.Latch(0, fault.InvalidCommand)

	got, err := r.x.HandleRead(0, command.StatusCML, nil)
	if err != nil || got[0] != byte(status.CMLInvalidCommand) {
		t.Fatalf("STATUS_CML=%v err=%v", got, err)
	}
	got, _ = r.x.HandleRead(0, command.StatusWord, nil)
	if w := binary.LittleEndian.Uint16(got); w&status.WordCML == 0 {
		t.Fatalf("STATUS_WORD=0x%04X missing CML", w)
	}
	got, _ = r.x.HandleRead(1, command.StatusCML, nil)
	if got[0] != 0 {
		t.Fatalf("page 1 CML=0x%02X", got[0])
	}
}

func TestCalibrationBlock(t *testing.T) {
	r := newRig(t, 2)
	r.gate.DebugUnlock(gate.DebugUnlockKey)

	payload := []byte{4, 0x34, 0x12, 0x78, 0x56}
	if err := r.x.HandleWrite(0, command.MfrCalibrationWrite, payload); err != nil {
		t.Fatalf("calibration write err=%v", err)
	}
	got, err := r.x.HandleRead(0, command.MfrCalibrationRead, []byte{4, 2})
	if err != nil || !bytes.Equal(got, []byte{0x34, 0x12, 0x78, 0x56}) {
		t.Fatalf("calibration read=%v err=%v", got, err)
	}

	// Word 0 is the page 0 voltage trim; 0x0001 is out of range.
	wantCode(t, r.x.HandleWrite(0, command.MfrCalibrationWrite, []byte{0, 0x01, 0x00}), fault.InvalidData)
	wantCode(t, r.x.HandleWrite(0, command.MfrCalibrationWrite, []byte{15, 0, 0, 0, 0}), fault.InvalidData)
	_, err = r.x.HandleRead(0, command.MfrCalibrationRead, []byte{10, 7})
	wantCode(t, err, fault.InvalidData)

	if err := r.x.HandleWrite(0, command.MfrNVErase, []byte{byte(nvstore.RegionCalibration)}); err != nil {
		t.Fatalf("erase err=%v", err)
	}
	if r.cal.Words[4] != 0 || r.cal.VoutGain(0) != sensor.GainUnity {
		t.Fatalf("calibration not reset after erase: %v", r.cal.Words)
	}
	wantCode(t, r.x.HandleWrite(0, command.MfrNVErase, []byte{9}), fault.InvalidData)
}

func TestBlackBoxRead(t *testing.T) {
	r := newRig(t, 2)
	r.gate.DebugUnlock(gate.DebugUnlockKey)

	rec, err := r.store.AppendBlackBox(nvstore.BlackBoxRecord{Page: 1, StatusWord: 0x0840})
	if err != nil {
		t.Fatalf("AppendBlackBox err=%v", err)
	}
	got, err := r.x.HandleRead(0, command.MfrBlackBoxRead, []byte{0})
	if err != nil || !bytes.Equal(got, rec.Bytes()) {
		t.Fatalf("black box read=%v err=%v", got, err)
	}
	_, err = r.x.HandleRead(0, command.MfrBlackBoxRead, []byte{1})
	wantCode(t, err, fault.InvalidData)
}

func TestIdentityAndFixedReads(t *testing.T) {
	r := newRig(t, 2)

	tests := []struct {
		code byte
		want []byte
	}{
		{command.MfrID, []byte("ACME")},
		{command.MfrModel, []byte("PSU-1600")},
		{command.MfrSerial, []byte{}},
		{command.Capability, []byte{CapabilityValue}},
		{command.PMBusRevision, []byte{RevisionValue}},
	}
	for _, tt := range tests {
		got, err := r.x.HandleRead(1, tt.code, nil)
		if err != nil || !bytes.Equal(got, tt.want) {
			t.Fatalf("code 0x%02X got=%q err=%v want %q", tt.code, got, err, tt.want)
		}
	}

	_, err := r.x.HandleRead(0, command.MfrFirmwareID, nil)
	wantCode(t, err, fault.InvalidCommand)
	r.gate.DebugUnlock(gate.DebugUnlockKey)
	got, err := r.x.HandleRead(0, command.MfrFirmwareID, nil)
	if err != nil || string(got) != "1.4.2" {
		t.Fatalf("fw id=%q err=%v", got, err)
	}
	got, _ = r.x.HandleRead(0, command.MfrDebugSnapshot, nil)
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("debug snapshot=%v", got)
	}
}

func TestUpgradeCommands(t *testing.T) {
	r := newRig(t, 2)
	r.gate.DebugUnlock(gate.DebugUnlockKey)

	block := append(append([]byte(nil), gate.UpgradeKey...), 0x10)
	if err := r.x.HandleWrite(0, command.MfrUpgradeUnlock, block); err != nil {
		t.Fatalf("upgrade unlock err=%v", err)
	}
	if err := r.x.HandleWrite(0, command.MfrSetBootFlag, []byte{gate.BootLoader}); err != nil {
		t.Fatalf("boot flag err=%v", err)
	}
	got, _ := r.x.HandleRead(0, command.MfrUpgradeStatus, nil)
	want := gate.StatusUpgradeUnlocked | gate.StatusRebootPending
	if got[0] != want {
		t.Fatalf("upgrade status=0x%02X want 0x%02X", got[0], want)
	}

	if err := r.x.HandleWrite(0, command.MfrSetBootFlag, []byte{7}); err != nil {
		t.Fatalf("unknown boot target err=%v", err)
	}
	got, _ = r.x.HandleRead(0, command.MfrUpgradeStatus, nil)
	if got[0]&gate.StatusTransmission == 0 {
		t.Fatalf("upgrade status=0x%02X, transmission bit not set", got[0])
	}
}

func TestHandleWrite_PayloadLength(t *testing.T) {
	r := newRig(t, 2)
	wantCode(t, r.x.HandleWrite(0, command.Operation, nil), fault.InvalidData)
	wantCode(t, r.x.HandleWrite(0, command.StatusWord, nil), fault.InvalidCommand)
	wantCode(t, r.x.HandleWrite(0, 0x42, nil), fault.InvalidCommand)
}
