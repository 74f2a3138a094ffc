// internal/command/table.go
package command

import (
	"fmt"
	"strings"
)

// Profile selects the command surface and telemetry formats.
type Profile uint8

const (
	ProfilePMBus Profile = iota
	ProfilePSMI
)

func (p Profile) String() string {
	switch p {
	case ProfilePSMI:
		return "psmi"
	default:
		return "pmbus"
	}
}

// ParseProfile accepts "pmbus" or "psmi" (case-insensitive).
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pmbus":
		return ProfilePMBus, nil
	case "psmi":
		return ProfilePSMI, nil
	}
	return 0, fmt.Errorf("command: unknown profile %q", s)
}

// ---- declarative surface ----

func rd(code byte, name string, n Length, f Format, s Scope) Descriptor {
	return Descriptor{Code: code, Name: name, Request: None, Response: n, Format: f, Scope: s}
}

func wr(code byte, name string, n Length, s Scope) Descriptor {
	return Descriptor{Code: code, Name: name, Request: n, Response: None, Format: FormatNonNumeric, Scope: s}
}

func rw(code byte, name string, n Length, f Format, s Scope) Descriptor {
	return Descriptor{Code: code, Name: name, Request: n, Response: n, Format: f, Scope: s}
}

func pc(code byte, name string, s Scope) Descriptor {
	return Descriptor{Code: code, Name: name, Request: Variable, Response: Variable, ProcessCall: true, Format: FormatNonNumeric, Scope: s}
}

func gated(d Descriptor) Descriptor {
	d.RequiresUnlock = true
	return d
}

var pmbusSurface = []Descriptor{
	rw(Page, "PAGE", Fixed(1), FormatNonNumeric, ScopeAll),
	rw(Operation, "OPERATION", Fixed(1), FormatNonNumeric, ScopeOutputs),
	wr(ClearFaults, "CLEAR_FAULTS", Fixed(0), ScopeAll),
	wr(PagePlusWrite, "PAGE_PLUS_WRITE", Variable, ScopeAll),
	pc(PagePlusRead, "PAGE_PLUS_READ", ScopeAll),
	rd(Capability, "CAPABILITY", Fixed(1), FormatNonNumeric, ScopeAll),
	pc(Query, "QUERY", ScopeAll),
	{Code: SMBAlertMask, Name: "SMBALERT_MASK", Request: Fixed(2), Response: Variable, Format: FormatNonNumeric, Scope: ScopeAll},
	rw(FanCommand1, "FAN_COMMAND_1", Fixed(2), FormatLinear, ScopeMain),

	rd(StatusByte, "STATUS_BYTE", Fixed(1), FormatNonNumeric, ScopeAll),
	rd(StatusWord, "STATUS_WORD", Fixed(2), FormatNonNumeric, ScopeAll),
	rd(StatusVout, "STATUS_VOUT", Fixed(1), FormatNonNumeric, ScopeAll),
	rd(StatusIout, "STATUS_IOUT", Fixed(1), FormatNonNumeric, ScopeAll),
	rd(StatusInput, "STATUS_INPUT", Fixed(1), FormatNonNumeric, ScopeAll),
	rd(StatusTemp, "STATUS_TEMPERATURE", Fixed(1), FormatNonNumeric, ScopeAll),
	rd(StatusCML, "STATUS_CML", Fixed(1), FormatNonNumeric, ScopeAll),
	rd(StatusOther, "STATUS_OTHER", Fixed(1), FormatNonNumeric, ScopeAll),
	rd(StatusMfr, "STATUS_MFR_SPECIFIC", Fixed(1), FormatNonNumeric, ScopeAll),
	rd(StatusFans12, "STATUS_FANS_1_2", Fixed(1), FormatNonNumeric, ScopeAll),
	rd(StatusFans34, "STATUS_FANS_3_4", Fixed(1), FormatNonNumeric, ScopeAll),

	rd(ReadVin, "READ_VIN", Fixed(2), FormatLinear, ScopeAll),
	rd(ReadIin, "READ_IIN", Fixed(2), FormatLinear, ScopeAll),
	rd(ReadVout, "READ_VOUT", Fixed(2), FormatLinear, ScopeAll),
	rd(ReadIout, "READ_IOUT", Fixed(2), FormatLinear, ScopeAll),
	rd(ReadTemp1, "READ_TEMPERATURE_1", Fixed(2), FormatLinear, ScopeMain),
	rd(ReadTemp2, "READ_TEMPERATURE_2", Fixed(2), FormatLinear, ScopeMain),
	rd(ReadTemp3, "READ_TEMPERATURE_3", Fixed(2), FormatLinear, ScopeMain),
	rd(ReadFanSpeed1, "READ_FAN_SPEED_1", Fixed(2), FormatLinear, ScopeMain),
	rd(ReadFanSpeed2, "READ_FAN_SPEED_2", Fixed(2), FormatLinear, ScopeMain),
	rd(ReadPout, "READ_POUT", Fixed(2), FormatLinear, ScopeAll),
	rd(ReadPin, "READ_PIN", Fixed(2), FormatLinear, ScopeAll),

	rd(PMBusRevision, "PMBUS_REVISION", Fixed(1), FormatNonNumeric, ScopeAll),
	rd(MfrID, "MFR_ID", Variable, FormatNonNumeric, ScopeAll),
	rd(MfrModel, "MFR_MODEL", Variable, FormatNonNumeric, ScopeAll),
	rd(MfrRevision, "MFR_REVISION", Variable, FormatNonNumeric, ScopeAll),
	rd(MfrSerial, "MFR_SERIAL", Variable, FormatNonNumeric, ScopeAll),

	wr(MfrDebugUnlock, "MFR_DEBUG_UNLOCK", Fixed(2), ScopeAll),
	gated(rw(MfrTrimVoutGain, "MFR_TRIM_VOUT_GAIN", Fixed(2), FormatMfr, ScopeOutputs)),
	gated(rw(MfrTrimIoutGain, "MFR_TRIM_IOUT_GAIN", Fixed(2), FormatMfr, ScopeOutputs)),
	gated(wr(MfrCalibrationWrite, "MFR_CALIBRATION_WRITE", Variable, ScopeAll)),
	gated(pc(MfrBlackBoxRead, "MFR_BLACKBOX_READ", ScopeAll)),
	gated(wr(MfrNVErase, "MFR_NV_ERASE", Fixed(1), ScopeAll)),
	gated(rd(MfrDebugSnapshot, "MFR_DEBUG_SNAPSHOT", Variable, FormatNonNumeric, ScopeAll)),
	gated(pc(MfrCalibrationRead, "MFR_CALIBRATION_READ", ScopeAll)),
	gated(rd(MfrFirmwareID, "MFR_FW_ID", Variable, FormatNonNumeric, ScopeAll)),
	gated(wr(MfrUpgradeUnlock, "MFR_UPGRADE_UNLOCK", Variable, ScopeAll)),
	gated(wr(MfrSetBootFlag, "MFR_SET_BOOT_FLAG", Fixed(1), ScopeAll)),
	gated(rd(MfrUpgradeStatus, "MFR_UPGRADE_STATUS", Fixed(1), FormatNonNumeric, ScopeAll)),
}

// psmiCodes is the reduced PSMI surface; manufacturer commands are always
// carried over.
var psmiCodes = map[byte]bool{
	Page: true, ClearFaults: true, PagePlusWrite: true, PagePlusRead: true,
	Query: true, SMBAlertMask: true,
	StatusWord: true, StatusVout: true, StatusIout: true, StatusInput: true,
	StatusTemp: true, StatusCML: true, StatusOther: true, StatusMfr: true,
	StatusFans12: true, StatusFans34: true,
	ReadVin: true, ReadIin: true, ReadVout: true, ReadIout: true,
	ReadPout: true, ReadPin: true, ReadTemp1: true, ReadTemp2: true,
	ReadFanSpeed1: true, MfrID: true, MfrModel: true,
}

// Table is the immutable command table of one device.
type Table struct {
	profile Profile
	pages   int
	entries [256]*Descriptor
}

// NewTable builds the table for a profile and page count (1..MaxPages).
func NewTable(p Profile, pages int) (*Table, error) {
	if pages < 1 || pages > MaxPages {
		return nil, fmt.Errorf("command: pages must be 1..%d, got %d", MaxPages, pages)
	}

	t := &Table{profile: p, pages: pages}
	for _, d := range pmbusSurface {
		d := d
		if p == ProfilePSMI {
			if !IsManufacturer(d.Code) && !psmiCodes[d.Code] {
				continue
			}
			if d.Format == FormatLinear {
				d.Format = FormatMfr
			}
		}
		t.entries[d.Code] = &d
	}
	return t, nil
}

func (t *Table) Profile() Profile { return t.profile }

// Pages returns the number of concrete pages.
func (t *Table) Pages() int { return t.pages }

// Lookup returns the descriptor for code.
func (t *Table) Lookup(code byte) (*Descriptor, bool) {
	d := t.entries[code]
	return d, d != nil
}

// Supports reports whether code is implemented on page. PageAll is
// supported when at least one concrete page is.
func (t *Table) Supports(code byte, page PageID) bool {
	d := t.entries[code]
	if d == nil {
		return false
	}
	if page == PageAll {
		for p := 0; p < t.pages; p++ {
			if d.Scope.Includes(PageID(p)) {
				return true
			}
		}
		return false
	}
	return page.Valid(t.pages) && d.Scope.Includes(page)
}

// SupportedPages lists the concrete pages code is implemented on.
func (t *Table) SupportedPages(code byte) []PageID {
	var out []PageID
	for p := 0; p < t.pages; p++ {
		if t.Supports(code, PageID(p)) {
			out = append(out, PageID(p))
		}
	}
	return out
}

// Query bits.
const (
	QuerySupported byte = 0x80
	QueryWrite     byte = 0x40
	QueryRead      byte = 0x20
)

// QueryByte answers QUERY for code on page. Gated commands read as
// unsupported while locked.
func (t *Table) QueryByte(code byte, page PageID, unlocked bool) byte {
	d := t.entries[code]
	if d == nil || (d.RequiresUnlock && !unlocked) {
		return 0
	}
	if page != PageAll && !t.Supports(code, page) {
		return 0
	}
	q := QuerySupported | byte(d.Format&0x07)<<2
	if d.Writable() {
		q |= QueryWrite
	}
	if d.Readable() {
		q |= QueryRead
	}
	return q
}
