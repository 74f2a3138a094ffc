// internal/status/bits.go
package status

import "fmt"

// Flags is the value of one 8-bit status category register.
type Flags uint8

// Category indexes the status category registers of a page.
type Category uint8

const (
	CatVout Category = iota
	CatIout
	CatInput
	CatTemperature
	CatCML
	CatOther
	CatMfr
	CatFans12
	CatFans34

	NumCategories
)

var categoryNames = [NumCategories]string{
	"vout", "iout", "input", "temperature", "cml", "other", "mfr", "fans12", "fans34",
}

func (c Category) String() string {
	if c < NumCategories {
		return categoryNames[c]
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// ParseCategory maps a category name back to its index.
func ParseCategory(s string) (Category, error) {
	for i, n := range categoryNames {
		if n == s {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("status: unknown category %q", s)
}

// ---- STATUS_VOUT ----
const (
	VoutOVFault Flags = 1 << 7
	VoutOVWarn  Flags = 1 << 6
	VoutUVWarn  Flags = 1 << 5
	VoutUVFault Flags = 1 << 4
)

// ---- STATUS_IOUT ----
const (
	IoutOCFault Flags = 1 << 7
	IoutOCWarn  Flags = 1 << 5
	PoutOPWarn  Flags = 1 << 0
)

// ---- STATUS_INPUT ----
const (
	VinOVFault         Flags = 1 << 7
	VinOVWarn          Flags = 1 << 6
	VinUVWarn          Flags = 1 << 5
	VinUVFault         Flags = 1 << 4
	InputUnitOffLowVin Flags = 1 << 3
	IinOCWarn          Flags = 1 << 1
	PinOPWarn          Flags = 1 << 0
)

// ---- STATUS_TEMPERATURE ----
const (
	OTFault Flags = 1 << 7
	OTWarn  Flags = 1 << 6
)

// ---- STATUS_CML ----
const (
	CMLInvalidCommand Flags = 1 << 7
	CMLInvalidData    Flags = 1 << 6
	CMLPecFailed      Flags = 1 << 5
	CMLMemoryFault    Flags = 1 << 4
	CMLOtherComm      Flags = 1 << 1
)

// ---- STATUS_FANS_1_2 ----
const (
	Fan1Fault    Flags = 1 << 7
	Fan2Fault    Flags = 1 << 6
	Fan1Warn     Flags = 1 << 5
	Fan2Warn     Flags = 1 << 4
	Fan1Override Flags = 1 << 3
	Fan2Override Flags = 1 << 2
)

// liveBits are recomputed every tick instead of latched.
var liveBits = [NumCategories]Flags{
	CatInput:  InputUnitOffLowVin,
	CatFans12: Fan1Override | Fan2Override,
}

// faultBits are the fault (not warning) bits of each category; a page gaining
// one of them is recorded in the black box.
var faultBits = [NumCategories]Flags{
	CatVout:        VoutOVFault | VoutUVFault,
	CatIout:        IoutOCFault,
	CatInput:       VinOVFault | VinUVFault,
	CatTemperature: OTFault,
	CatCML:         CMLInvalidCommand | CMLInvalidData | CMLPecFailed | CMLMemoryFault | CMLOtherComm,
	CatFans12:      Fan1Fault | Fan2Fault,
}

// ---- STATUS_WORD ----
const (
	WordVout        uint16 = 1 << 15
	WordIout        uint16 = 1 << 14
	WordInput       uint16 = 1 << 13
	WordMfr         uint16 = 1 << 12
	WordPowerGoodN  uint16 = 1 << 11
	WordFans        uint16 = 1 << 10
	WordOther       uint16 = 1 << 9
	WordBusy        uint16 = 1 << 7
	WordOff         uint16 = 1 << 6
	WordVoutOV      uint16 = 1 << 5
	WordIoutOC      uint16 = 1 << 4
	WordVinUV       uint16 = 1 << 3
	WordTemperature uint16 = 1 << 2
	WordCML         uint16 = 1 << 1
	WordNoneOfAbove uint16 = 1 << 0
)
