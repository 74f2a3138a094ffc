// internal/nvstore/store.go
package nvstore

import (
	"errors"
	"fmt"

	"github.com/sigurn/crc16"
)

var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

func checksum(b []byte) uint16 {
	return crc16.Checksum(b, crcTable)
}

// Region selects one area of the layout.
type Region uint8

const (
	RegionBlackBox Region = iota
	RegionCalibration
	RegionReboot
)

// Layout assigns a storage page to each region.
type Layout struct {
	Calibration int
	BlackBox    int
	Reboot      int
}

// DefaultLayout uses the first three pages.
var DefaultLayout = Layout{Calibration: 0, BlackBox: 1, Reboot: 2}

// Store is the record layer on top of a Storage device.
// It is not safe for concurrent use; the engine serializes access.
type Store struct {
	dev      Storage
	pageSize int
	layout   Layout

	bbNext int
	bbSeq  uint16
}

// NewStore opens the regions and scans the black box for its write position.
func NewStore(dev Storage, pageSize int, l Layout) (*Store, error) {
	if dev == nil {
		return nil, errors.New("nvstore: storage required")
	}
	if pageSize < blackBoxRecordBytes || pageSize%4 != 0 {
		return nil, fmt.Errorf("nvstore: page size %d too small", pageSize)
	}
	if l.Calibration == l.BlackBox || l.Calibration == l.Reboot || l.BlackBox == l.Reboot {
		return nil, errors.New("nvstore: regions must use distinct pages")
	}

	s := &Store{dev: dev, pageSize: pageSize, layout: l}
	if err := s.scanBlackBox(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) base(page int) uint32 {
	return uint32(page * s.pageSize)
}

// Erase wipes one region.
func (s *Store) Erase(r Region) error {
	switch r {
	case RegionBlackBox:
		if err := s.dev.ErasePage(s.layout.BlackBox); err != nil {
			return err
		}
		s.bbNext = 0
		return nil
	case RegionCalibration:
		return s.dev.ErasePage(s.layout.Calibration)
	case RegionReboot:
		return s.dev.ErasePage(s.layout.Reboot)
	}
	return fmt.Errorf("nvstore: unknown region %d", r)
}

// ---- calibration ----

const calibrationMagic uint16 = 0xCA1B

// LoadCalibration reads the calibration words. ok is false when the region is
// erased or fails its checksum.
func (s *Store) LoadCalibration(words []uint16) (ok bool, err error) {
	base := s.base(s.layout.Calibration)
	raw := make([]byte, 0, len(words)*2)

	for i := 0; i < len(words); i += 2 {
		w, err := s.dev.ReadWord(base + uint32(i*2))
		if err != nil {
			return false, err
		}
		raw = append(raw, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	trailer, err := s.dev.ReadWord(base + uint32(len(raw)))
	if err != nil {
		return false, err
	}
	raw = raw[:len(words)*2]

	if uint16(trailer>>16) != calibrationMagic || uint16(trailer) != checksum(raw) {
		return false, nil
	}
	for i := range words {
		words[i] = uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
	}
	return true, nil
}

// SaveCalibration rewrites the calibration region.
func (s *Store) SaveCalibration(words []uint16) error {
	if (len(words)+1)*2+4 > s.pageSize {
		return errors.New("nvstore: calibration does not fit a page")
	}
	if err := s.dev.ErasePage(s.layout.Calibration); err != nil {
		return err
	}

	base := s.base(s.layout.Calibration)
	raw := make([]byte, 0, len(words)*2)
	for i, w := range words {
		raw = append(raw, byte(w), byte(w>>8))
		if err := s.dev.WriteHalfWord(base+uint32(i*2), w); err != nil {
			return fmt.Errorf("nvstore: calibration word %d: %w", i, err)
		}
	}

	// Trailer on the next word boundary.
	off := uint32((len(raw) + 3) &^ 3)
	trailer := uint32(calibrationMagic)<<16 | uint32(checksum(raw))
	return s.dev.WriteWord(base+off, trailer)
}

// ---- reboot reason ----

// RebootRecord is persisted just before a firmware-upgrade reset.
type RebootRecord struct {
	LED        uint8
	BootTarget uint8
}

// WriteRebootRecord stores rec as one word: LED, target, CRC-16.
func (s *Store) WriteRebootRecord(rec RebootRecord) error {
	if err := s.dev.ErasePage(s.layout.Reboot); err != nil {
		return err
	}
	crc := checksum([]byte{rec.LED, rec.BootTarget})
	w := uint32(rec.LED) | uint32(rec.BootTarget)<<8 | uint32(crc)<<16
	return s.dev.WriteWord(s.base(s.layout.Reboot), w)
}

// ReadRebootRecord returns the stored record; ok is false when none is
// present or it fails its checksum.
func (s *Store) ReadRebootRecord() (rec RebootRecord, ok bool, err error) {
	w, err := s.dev.ReadWord(s.base(s.layout.Reboot))
	if err != nil {
		return RebootRecord{}, false, err
	}
	if w == 0xFFFFFFFF {
		return RebootRecord{}, false, nil
	}
	rec = RebootRecord{LED: uint8(w), BootTarget: uint8(w >> 8)}
	if uint16(w>>16) != checksum([]byte{rec.LED, rec.BootTarget}) {
		return RebootRecord{}, false, nil
	}
	return rec, true, nil
}
