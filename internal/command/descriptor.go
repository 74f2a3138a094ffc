// internal/command/descriptor.go
package command

import "fmt"

// PageID selects the rail a command addresses.
// 0 is the main output, 1 the standby output, 2.. auxiliary rails.
type PageID uint8

// PageAll addresses every page at once (writes only).
const PageAll PageID = 0xFF

const (
	PageMain    PageID = 0
	PageStandby PageID = 1
)

// MaxPages bounds the page count of any table.
const MaxPages = 8

// Valid reports whether p is a concrete page of a device with n pages.
func (p PageID) Valid(n int) bool { return int(p) < n }

func (p PageID) String() string {
	if p == PageAll {
		return "all"
	}
	return fmt.Sprintf("%d", uint8(p))
}

// Length is a request or response length in data bytes (command code, byte
// count and PEC excluded).
type Length int16

const (
	// None means the direction is not supported.
	None Length = -1
	// Variable means an SMBus block: a byte count followed by that many bytes.
	Variable Length = -2
)

// Fixed returns a fixed length of n bytes.
func Fixed(n int) Length { return Length(n) }

// IsFixed reports whether l is a fixed length (including zero).
func (l Length) IsFixed() bool { return l >= 0 }

// Format is the QUERY data-format field (bits 4:2).
type Format uint8

const (
	FormatLinear     Format = 0b000
	FormatSigned16   Format = 0b001
	FormatDirect     Format = 0b011
	FormatUnsigned8  Format = 0b100
	FormatVID        Format = 0b101
	FormatMfr        Format = 0b110
	FormatNonNumeric Format = 0b111
)

// Scope is the set of pages a command is implemented on.
type Scope uint8

const (
	ScopeAll Scope = iota
	ScopeMain
	ScopeOutputs
)

// Includes reports whether page p is inside the scope.
func (s Scope) Includes(p PageID) bool {
	switch s {
	case ScopeMain:
		return p == PageMain
	case ScopeOutputs:
		return p == PageMain || p == PageStandby
	default:
		return true
	}
}

// Descriptor is the immutable table entry of one command code.
type Descriptor struct {
	Code     byte
	Name     string
	Request  Length
	Response Length

	// RequiresUnlock marks manufacturer-internal commands that only exist
	// while the debug unlock is active.
	RequiresUnlock bool

	// ProcessCall commands carry arguments in the write phase and answer in
	// a read phase of the same transaction.
	ProcessCall bool

	Format Format
	Scope  Scope
}

// Writable reports whether the command has a write form.
func (d *Descriptor) Writable() bool {
	return d.Request != None && !d.ProcessCall
}

// Readable reports whether the command has a read form.
func (d *Descriptor) Readable() bool {
	return d.Response != None
}
