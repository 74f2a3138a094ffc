// internal/fault/fault.go
package fault

import "errors"

// Code is a protocol fault as seen on the management bus.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes. Each maps onto one STATUS_CML bit.
const (
	OK             Code = "ok"
	InvalidCommand Code = "invalid_command"
	InvalidData    Code = "invalid_data"
	PecFault       Code = "pec_fault"
	MemoryFault    Code = "memory_fault"
	CommsFault     Code = "comms_fault"
)

// E keeps the operation and a short reason next to the code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// New builds an *E.
func New(c Code, op, msg string) *E {
	return &E{C: c, Op: op, Msg: msg}
}

// Of extracts a Code from an error. A nil error is OK; anything that does
// not carry a code is reported as InvalidData.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var e *E
	if errors.As(err, &e) {
		return e.C
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return InvalidData
}
