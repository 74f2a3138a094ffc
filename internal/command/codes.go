// internal/command/codes.go
package command

// Standard PMBus command codes.
const (
	Page            byte = 0x00
	Operation       byte = 0x01
	ClearFaults     byte = 0x03
	PagePlusWrite   byte = 0x05
	PagePlusRead    byte = 0x06
	Capability      byte = 0x19
	Query           byte = 0x1A
	SMBAlertMask    byte = 0x1B
	FanCommand1     byte = 0x3B
	StatusByte      byte = 0x78
	StatusWord      byte = 0x79
	StatusVout      byte = 0x7A
	StatusIout      byte = 0x7B
	StatusInput     byte = 0x7C
	StatusTemp      byte = 0x7D
	StatusCML       byte = 0x7E
	StatusOther     byte = 0x7F
	StatusMfr       byte = 0x80
	StatusFans12    byte = 0x81
	StatusFans34    byte = 0x82
	ReadVin         byte = 0x88
	ReadIin         byte = 0x89
	ReadVout        byte = 0x8B
	ReadIout        byte = 0x8C
	ReadTemp1       byte = 0x8D
	ReadTemp2       byte = 0x8E
	ReadTemp3       byte = 0x8F
	ReadFanSpeed1   byte = 0x90
	ReadFanSpeed2   byte = 0x91
	ReadPout        byte = 0x96
	ReadPin         byte = 0x97
	PMBusRevision   byte = 0x98
	MfrID           byte = 0x99
	MfrModel        byte = 0x9A
	MfrRevision     byte = 0x9B
	MfrSerial       byte = 0x9E
)

// Manufacturer-internal command codes.
const (
	MfrDebugUnlock      byte = 0xD0
	MfrTrimVoutGain     byte = 0xD1
	MfrTrimIoutGain     byte = 0xD2
	MfrCalibrationWrite byte = 0xD3
	MfrBlackBoxRead     byte = 0xD4
	MfrNVErase          byte = 0xD5
	MfrDebugSnapshot    byte = 0xD6
	MfrCalibrationRead  byte = 0xD7
	MfrFirmwareID       byte = 0xF0
	MfrUpgradeUnlock    byte = 0xF1
	MfrSetBootFlag      byte = 0xF2
	MfrUpgradeStatus    byte = 0xF3
)

// MfrRangeStart is the first manufacturer-specific code.
const MfrRangeStart byte = 0xD0

// IsManufacturer reports whether code falls in the manufacturer range.
func IsManufacturer(code byte) bool { return code >= MfrRangeStart }
