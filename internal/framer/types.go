// internal/framer/types.go
package framer

import "github.com/tamzrod/pmbus-engine/internal/command"

// BufferSize bounds one transaction: command, count, page-plus header,
// a 32-byte block and PEC fit with room to spare.
const BufferSize = 64

// State is the framer state.
type State uint8

const (
	// Idle waits for a command code.
	Idle State = iota
	// Accumulating collects request bytes.
	Accumulating
	// Ready holds complete process-call arguments awaiting the read phase.
	Ready
	// Done has dispatched and waits for stop.
	Done
	// Discard ignores bytes until the next start or stop.
	Discard
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Accumulating:
		return "accumulating"
	case Ready:
		return "ready"
	case Done:
		return "done"
	case Discard:
		return "discard"
	}
	return "unknown"
}

// Handler executes complete commands.
type Handler interface {
	HandleWrite(page command.PageID, code byte, payload []byte) error
	HandleRead(page command.PageID, code byte, args []byte) ([]byte, error)
}

// Locker reports the debug unlock state.
type Locker interface {
	DebugUnlocked() bool
}

// FaultSink receives every protocol fault with the page in context.
type FaultSink interface {
	Fault(page command.PageID, err error)
}

// Config is the framer configuration.
type Config struct {
	Address uint8
	PEC     bool
}

// readTarget is a parsed read request.
type readTarget struct {
	page  command.PageID
	desc  *command.Descriptor
	args  []byte
	inner *command.Descriptor // page-plus inner command
}
