// internal/framer/framer.go
package framer

import (
	"errors"

	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/fault"
	"github.com/tamzrod/pmbus-engine/internal/pec"
)

// Framer turns the transport's byte events into complete commands.
// It is not safe for concurrent use; the engine serializes access.
type Framer struct {
	table *command.Table
	h     Handler
	lock  Locker
	sink  FaultSink

	addr       uint8
	pecEnabled bool

	// page is the sticky page selected by PAGE.
	page command.PageID

	state    State
	buf      [BufferSize]byte
	n        int
	expected int // total request bytes, -1 while unknown
	desc     *command.Descriptor
	process  bool
	target   readTarget
}

// New builds a framer with page 0 selected.
func New(cfg Config, t *command.Table, h Handler, l Locker, s FaultSink) (*Framer, error) {
	if t == nil || h == nil || l == nil || s == nil {
		return nil, errors.New("framer: table, handler, locker and sink required")
	}
	if cfg.Address > 0x7F {
		return nil, errors.New("framer: address must be 7-bit")
	}
	return &Framer{
		table:      t,
		h:          h,
		lock:       l,
		sink:       s,
		addr:       cfg.Address,
		pecEnabled: cfg.PEC,
		expected:   -1,
	}, nil
}

// Page returns the sticky page.
func (f *Framer) Page() command.PageID { return f.page }

// State returns the current state.
func (f *Framer) State() State { return f.state }

// Progress reports received and expected request bytes; expected is -1
// while unknown.
func (f *Framer) Progress() (received, expected int) { return f.n, f.expected }

// Command returns the command code of the current or last transaction.
func (f *Framer) Command() (byte, bool) {
	if f.n == 0 {
		return 0, false
	}
	return f.buf[0], true
}

func (f *Framer) reset() {
	f.state = Idle
	f.n = 0
	f.expected = -1
	f.desc = nil
	f.process = false
	f.target = readTarget{}
}

// ---- transport events ----

// Start begins a transaction addressed to us in write direction. Any
// unfinished transaction is dropped silently.
func (f *Framer) Start() {
	f.reset()
}

// Abort drops the current transaction silently.
func (f *Framer) Abort() {
	f.reset()
}

// Stop ends the transaction. An incomplete request is a protocol fault.
func (f *Framer) Stop() {
	switch f.state {
	case Accumulating:
		if f.desc != nil && f.desc.Request == command.None {
			f.fail(f.page, fault.New(fault.InvalidCommand, "framer", "write to read-only command"))
		} else {
			f.fail(f.page, fault.New(fault.InvalidData, "framer", "incomplete request"))
		}
	case Ready:
		f.fail(f.page, fault.New(fault.InvalidData, "framer", "process call without read"))
	}
	f.reset()
}

// Receive consumes one request byte.
func (f *Framer) Receive(b byte) {
	switch f.state {
	case Idle:
		f.begin(b)
	case Accumulating:
		f.accumulate(b)
	case Ready, Done:
		f.fail(f.page, fault.New(fault.InvalidData, "framer", "byte after complete request"))
	case Discard:
	}
}

func (f *Framer) fail(page command.PageID, err error) {
	f.sink.Fault(page, err)
	f.state = Discard
}

func (f *Framer) lookup(code byte) (*command.Descriptor, error) {
	d, ok := f.table.Lookup(code)
	if !ok {
		return nil, fault.New(fault.InvalidCommand, "framer", "unsupported command")
	}
	// Gated commands have no lengths while locked.
	if d.RequiresUnlock && !f.lock.DebugUnlocked() {
		return nil, fault.New(fault.InvalidCommand, "framer", "command locked")
	}
	if d.Request == command.None && d.Response == command.None {
		return nil, fault.New(fault.InvalidCommand, "framer", "command has no lengths")
	}
	return d, nil
}

func (f *Framer) pecLen() int {
	if f.pecEnabled {
		return 1
	}
	return 0
}

func (f *Framer) begin(code byte) {
	f.buf[0] = code
	f.n = 1
	f.state = Accumulating

	d, err := f.lookup(code)
	if err != nil {
		f.fail(f.page, err)
		return
	}
	f.desc = d

	switch {
	case d.Request == command.None:
		f.expected = 1
	case d.Request.IsFixed() && d.Code != command.SMBAlertMask:
		f.expected = 1 + int(d.Request) + f.pecLen()
		if f.expected == 1 {
			f.complete()
		}
	}
}

func (f *Framer) accumulate(b byte) {
	if f.n >= BufferSize {
		f.fail(f.page, fault.New(fault.InvalidData, "framer", "buffer overflow"))
		return
	}
	f.buf[f.n] = b
	f.n++

	if f.n == 2 && f.desc.Request == command.None {
		f.fail(f.page, fault.New(fault.InvalidCommand, "framer", "write to read-only command"))
		return
	}
	if f.n == 2 && f.expected < 0 {
		f.sizeFromByte1(b)
		if f.state != Accumulating {
			return
		}
	}

	if f.expected >= 0 && f.n > f.expected {
		f.fail(f.page, fault.New(fault.InvalidData, "framer", "too many bytes"))
		return
	}
	if f.n == f.expected {
		f.complete()
	}
}

// sizeFromByte1 fixes the expected length once the first data byte is known.
func (f *Framer) sizeFromByte1(b byte) {
	d := f.desc

	if d.Code == command.SMBAlertMask {
		if b == 1 {
			// Process call: count, status command.
			f.process = true
			f.expected = 3
		} else {
			f.expected = 1 + int(d.Request) + f.pecLen()
		}
		return
	}

	// Variable request: b is the byte count.
	if d.ProcessCall {
		f.process = true
		f.expected = 2 + int(b)
	} else {
		f.expected = 2 + int(b) + f.pecLen()
	}
	if b == 0 || f.expected > BufferSize {
		f.fail(f.page, fault.New(fault.InvalidData, "framer", "bad byte count"))
	}
}

// complete runs once every request byte has arrived.
func (f *Framer) complete() {
	end := f.n
	if !f.process && f.pecEnabled {
		end--
		want := pec.Compute(f.addr, false, f.buf[:end])
		if f.buf[end] != want {
			f.fail(f.page, fault.New(fault.PecFault, "framer", "pec mismatch"))
			return
		}
	}
	data := f.buf[:end]

	if f.process {
		t, err := f.parseRead(data)
		if err != nil {
			f.fail(t.page, err)
			return
		}
		f.target = t
		f.state = Ready
		return
	}

	page, code, payload, err := f.parseWrite(data)
	if err != nil {
		f.fail(page, err)
		return
	}

	if code == command.Page {
		err = f.writePage(payload[0])
	} else {
		err = f.h.HandleWrite(page, code, payload)
	}
	if err != nil {
		f.fail(page, err)
		return
	}
	f.state = Done
}

func (f *Framer) writePage(p byte) error {
	page := command.PageID(p)
	if page != command.PageAll && !page.Valid(f.table.Pages()) {
		return fault.New(fault.InvalidData, "framer", "page out of range")
	}
	f.page = page
	return nil
}

// ---- read phase ----

// Respond returns the bytes of the read phase, count byte and PEC included.
// nil means the read cannot be answered; the transport sends its default
// fill.
func (f *Framer) Respond() []byte {
	var t readTarget

	switch {
	case f.state == Ready:
		t = f.target
	case f.state == Accumulating && f.n == 1 && f.desc.Readable() && !f.desc.ProcessCall && f.desc.Code != command.SMBAlertMask:
		t = readTarget{page: f.page, desc: f.desc}
	case f.state == Discard:
		return nil
	default:
		f.fail(f.page, fault.New(fault.InvalidCommand, "framer", "read not expected"))
		return nil
	}

	data, err := f.read(t)
	if err != nil {
		f.fail(t.page, err)
		return nil
	}

	out := data
	if t.inner != nil {
		out = frame(t.inner, out)
	}
	out = frame(t.desc, out)
	if f.pecEnabled {
		s := pec.New()
		s.Add(pec.AddrByte(f.addr, false))
		s.Add(f.buf[:f.n]...)
		s.Add(pec.AddrByte(f.addr, true))
		s.Add(out...)
		out = append(out, s.Value())
	}

	f.state = Done
	return out
}

func (f *Framer) read(t readTarget) ([]byte, error) {
	d := t.desc
	if t.inner != nil {
		d = t.inner
	}

	if d.Code == command.Page {
		return []byte{byte(f.page)}, nil
	}

	data, err := f.h.HandleRead(t.page, d.Code, t.args)
	if err != nil {
		return nil, err
	}
	if d.Response.IsFixed() && len(data) != int(d.Response) {
		return nil, fault.New(fault.InvalidCommand, "framer", "response length mismatch")
	}
	if d.Response == command.Variable && len(data) > 255 {
		return nil, fault.New(fault.InvalidCommand, "framer", "response too long")
	}
	return data, nil
}

// frame prepends the byte count of a block response.
func frame(d *command.Descriptor, data []byte) []byte {
	if d.Response != command.Variable {
		return append([]byte(nil), data...)
	}
	out := make([]byte, 0, len(data)+1)
	out = append(out, byte(len(data)))
	return append(out, data...)
}
