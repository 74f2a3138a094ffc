// internal/framer/parse.go
package framer

import (
	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/fault"
)

// maxNesting is the number of PAGE_PLUS_WRITE frames that may be nested
// inside the outer one.
const maxNesting = 1

// parseWrite splits a complete write request (PEC stripped) into the page,
// effective command and payload.
func (f *Framer) parseWrite(data []byte) (command.PageID, byte, []byte, error) {
	d := f.desc
	switch {
	case d.Code == command.PagePlusWrite:
		return f.parsePagePlusWrite(data, 0)
	case d.Request == command.Variable:
		return f.page, d.Code, data[2:], nil
	default:
		return f.page, d.Code, data[1:], nil
	}
}

// parseRead builds the read target of a complete process-call request.
func (f *Framer) parseRead(data []byte) (readTarget, error) {
	d := f.desc
	if d.Code == command.PagePlusRead {
		return f.parsePagePlusRead(data)
	}
	return readTarget{page: f.page, desc: d, args: data[2:]}, nil
}

// pagePlusHeader decodes [code, count, page, inner, rest...].
func (f *Framer) pagePlusHeader(data []byte) (command.PageID, *command.Descriptor, []byte, error) {
	if len(data) < 4 {
		return f.page, nil, nil, fault.New(fault.InvalidData, "framer", "page-plus frame too short")
	}

	page := command.PageID(data[2])
	if page != command.PageAll && !page.Valid(f.table.Pages()) {
		return f.page, nil, nil, fault.New(fault.InvalidData, "framer", "page-plus page out of range")
	}

	inner, err := f.lookup(data[3])
	if err != nil {
		return page, nil, nil, err
	}
	if inner.Code == command.Page {
		return page, nil, nil, fault.New(fault.InvalidCommand, "framer", "PAGE inside page-plus")
	}
	return page, inner, data[4:], nil
}

func (f *Framer) parsePagePlusWrite(data []byte, depth int) (command.PageID, byte, []byte, error) {
	page, inner, rest, err := f.pagePlusHeader(data)
	if err != nil {
		return page, 0, nil, err
	}

	switch inner.Code {
	case command.PagePlusWrite:
		if depth >= maxNesting {
			return page, 0, nil, fault.New(fault.InvalidCommand, "framer", "page-plus nested too deep")
		}
		nested := data[3:]
		if len(nested) < 2 || int(nested[1]) != len(nested)-2 {
			return page, 0, nil, fault.New(fault.InvalidData, "framer", "nested page-plus count mismatch")
		}
		return f.parsePagePlusWrite(nested, depth+1)
	case command.PagePlusRead:
		return page, 0, nil, fault.New(fault.InvalidCommand, "framer", "page-plus read inside write")
	}

	if !inner.Writable() {
		return page, 0, nil, fault.New(fault.InvalidCommand, "framer", "inner command not writable")
	}

	if inner.Request == command.Variable {
		if len(rest) < 1 || int(rest[0]) != len(rest)-1 {
			return page, 0, nil, fault.New(fault.InvalidData, "framer", "inner block count mismatch")
		}
		return page, inner.Code, rest[1:], nil
	}
	if len(rest) != int(inner.Request) {
		return page, 0, nil, fault.New(fault.InvalidData, "framer", "inner length mismatch")
	}
	return page, inner.Code, rest, nil
}

func (f *Framer) parsePagePlusRead(data []byte) (readTarget, error) {
	// count covers exactly page and inner command.
	if len(data) != 4 {
		return readTarget{page: f.page}, fault.New(fault.InvalidData, "framer", "page-plus read count must be 2")
	}

	page, inner, _, err := f.pagePlusHeader(data)
	if err != nil {
		return readTarget{page: page}, err
	}

	switch {
	case inner.Code == command.PagePlusRead, inner.Code == command.PagePlusWrite:
		return readTarget{page: page}, fault.New(fault.InvalidCommand, "framer", "page-plus nested in read")
	case inner.ProcessCall, inner.Code == command.SMBAlertMask:
		return readTarget{page: page}, fault.New(fault.InvalidCommand, "framer", "process call inside page-plus read")
	case !inner.Readable():
		return readTarget{page: page}, fault.New(fault.InvalidCommand, "framer", "inner command not readable")
	}

	return readTarget{page: page, desc: f.desc, inner: inner}, nil
}
