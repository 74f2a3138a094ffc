// internal/status/constants.go
package status

import "github.com/tamzrod/pmbus-engine/internal/sensor"

// Mirror block layout constants.
// These values define the mirror protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerPage is the fixed number of holding registers per page.
const SlotsPerPage = 32

// ---- SLOT INDICES ----

// SlotStatusWord holds STATUS_WORD.
const SlotStatusWord = 0

// SlotCategoryStart is the first of the category registers, in Category order.
const SlotCategoryStart = 1

// SlotAlert is 1 while the page contributes to SMBAlert.
const SlotAlert = SlotCategoryStart + int(NumCategories)

// SlotTelemetryStart is the first telemetry word, in sensor.Quantity order.
const SlotTelemetryStart = SlotAlert + 1

// SlotTelemetryEnd is the last telemetry slot (inclusive).
const SlotTelemetryEnd = SlotTelemetryStart + int(sensor.NumQuantities) - 1

// ---- RESERVED RANGE ----

// Slots between telemetry and the device name are reserved.
const SlotReservedStart = SlotTelemetryEnd + 1
const SlotReservedEnd = SlotDeviceNameStart - 1

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the device name.
// Device name is always placed at the END of the block.
const SlotDeviceNameStart = 24

// SlotDeviceNameSlots is the number of slots reserved for the device name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the device name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
const DeviceNameMaxChars = 16

// TelemetryInvalid marks a quantity that is not measured on the page.
const TelemetryInvalid uint16 = 0xFFFF
