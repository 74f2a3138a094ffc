// internal/nvstore/blackbox.go
package nvstore

import (
	"encoding/binary"
	"fmt"
)

// BlackBoxCategories is the number of status category bytes per record.
const BlackBoxCategories = 9

// blackBoxRecordBytes is the encoded size of one record.
const blackBoxRecordBytes = 20

const blackBoxMarker = 0xB8

// BlackBoxRecord is a fault capture of one page.
type BlackBoxRecord struct {
	Seq        uint16
	Page       uint8
	StatusWord uint16
	Categories [BlackBoxCategories]uint8
}

// Bytes encodes the record for the wire and for storage (little-endian,
// CRC-16 over the first 18 bytes in the last two).
func (r BlackBoxRecord) Bytes() []byte {
	b := make([]byte, blackBoxRecordBytes)
	binary.LittleEndian.PutUint16(b[0:], r.Seq)
	b[2] = r.Page
	b[3] = blackBoxMarker
	binary.LittleEndian.PutUint16(b[4:], r.StatusWord)
	copy(b[6:6+BlackBoxCategories], r.Categories[:])
	// b[15..17] reserved, zero
	binary.LittleEndian.PutUint16(b[18:], checksum(b[:18]))
	return b
}

func decodeBlackBox(b []byte) (BlackBoxRecord, bool) {
	if len(b) != blackBoxRecordBytes || b[3] != blackBoxMarker {
		return BlackBoxRecord{}, false
	}
	if binary.LittleEndian.Uint16(b[18:]) != checksum(b[:18]) {
		return BlackBoxRecord{}, false
	}
	r := BlackBoxRecord{
		Seq:        binary.LittleEndian.Uint16(b[0:]),
		Page:       b[2],
		StatusWord: binary.LittleEndian.Uint16(b[4:]),
	}
	copy(r.Categories[:], b[6:6+BlackBoxCategories])
	return r, true
}

func (s *Store) blackBoxCapacity() int {
	return s.pageSize / blackBoxRecordBytes
}

func (s *Store) blackBoxAddr(i int) uint32 {
	return s.base(s.layout.BlackBox) + uint32(i*blackBoxRecordBytes)
}

func (s *Store) readRecordBytes(i int) ([]byte, error) {
	b := make([]byte, blackBoxRecordBytes)
	addr := s.blackBoxAddr(i)
	for off := 0; off < blackBoxRecordBytes; off += 4 {
		w, err := s.dev.ReadWord(addr + uint32(off))
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint32(b[off:], w)
	}
	return b, nil
}

// scanBlackBox finds the first erased slot and the last sequence number.
func (s *Store) scanBlackBox() error {
	s.bbNext = 0
	for i := 0; i < s.blackBoxCapacity(); i++ {
		w, err := s.dev.ReadWord(s.blackBoxAddr(i))
		if err != nil {
			return err
		}
		if w == 0xFFFFFFFF {
			return nil
		}
		s.bbNext = i + 1
		s.bbSeq = uint16(w) + 1
	}
	return nil
}

// AppendBlackBox stores rec with the next sequence number and returns it.
// A full region is erased and restarted.
func (s *Store) AppendBlackBox(rec BlackBoxRecord) (BlackBoxRecord, error) {
	if s.bbNext >= s.blackBoxCapacity() {
		if err := s.Erase(RegionBlackBox); err != nil {
			return rec, err
		}
	}

	rec.Seq = s.bbSeq
	b := rec.Bytes()
	addr := s.blackBoxAddr(s.bbNext)
	for off := 0; off < blackBoxRecordBytes; off += 4 {
		if err := s.dev.WriteWord(addr+uint32(off), binary.LittleEndian.Uint32(b[off:])); err != nil {
			return rec, fmt.Errorf("nvstore: black box slot %d: %w", s.bbNext, err)
		}
	}
	s.bbNext++
	s.bbSeq++
	return rec, nil
}

// BlackBoxCount returns the number of stored records.
func (s *Store) BlackBoxCount() int { return s.bbNext }

// BlackBoxRecord returns record i in storage order. ok is false for an index
// past the end or a record that fails its checksum.
func (s *Store) BlackBoxRecord(i int) (rec BlackBoxRecord, ok bool, err error) {
	if i < 0 || i >= s.bbNext {
		return BlackBoxRecord{}, false, nil
	}
	b, err := s.readRecordBytes(i)
	if err != nil {
		return BlackBoxRecord{}, false, err
	}
	rec, ok = decodeBlackBox(b)
	return rec, ok, nil
}
