// internal/status/encode.go
package status

// Word derives STATUS_WORD from the category registers and live conditions.
// No IO. No side effects.
func (r Registers) Word() uint16 {
	var w uint16

	vout := r.Cat[CatVout]
	iout := r.Cat[CatIout]
	input := r.Cat[CatInput]
	fans := r.Cat[CatFans12] | r.Cat[CatFans34]

	if vout != 0 {
		w |= WordVout
	}
	if iout != 0 {
		w |= WordIout
	}
	if input != 0 {
		w |= WordInput
	}
	if r.Cat[CatMfr] != 0 {
		w |= WordMfr
	}
	if r.PowerGoodN {
		w |= WordPowerGoodN
	}
	if fans != 0 {
		w |= WordFans
	}
	if r.Cat[CatOther] != 0 {
		w |= WordOther
	}
	if r.Off {
		w |= WordOff
	}
	if vout&VoutOVFault != 0 {
		w |= WordVoutOV
	}
	if iout&IoutOCFault != 0 {
		w |= WordIoutOC
	}
	if input&VinUVFault != 0 {
		w |= WordVinUV
	}
	if r.Cat[CatTemperature] != 0 {
		w |= WordTemperature
	}
	if r.Cat[CatCML] != 0 {
		w |= WordCML
	}

	// Anything not represented by bits 7..1 of the low byte.
	rest := vout&^VoutOVFault | iout&^IoutOCFault | input&^VinUVFault |
		r.Cat[CatMfr] | fans | r.Cat[CatOther]
	if rest != 0 {
		w |= WordNoneOfAbove
	}

	return w
}

// Encode converts a page Snapshot into a full mirror block.
// Layout is protocol-locked. The device name slots are left zero; the
// writer owns them.
func Encode(s Snapshot) []uint16 {
	regs := make([]uint16, SlotsPerPage)

	regs[SlotStatusWord] = s.Registers.Word()
	for c := Category(0); c < NumCategories; c++ {
		regs[SlotCategoryStart+int(c)] = uint16(s.Registers.Cat[c])
	}
	if s.Alert {
		regs[SlotAlert] = 1
	}
	for q := range s.Telemetry {
		if s.TelemetryValid[q] {
			regs[SlotTelemetryStart+q] = s.Telemetry[q]
		} else {
			regs[SlotTelemetryStart+q] = TelemetryInvalid
		}
	}

	return regs
}
