// internal/nvstore/flash.go
package nvstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// Storage is the non-volatile memory contract: page erase and word-granular
// programming. Erased memory reads as all ones and may only be programmed once
// per erase.
type Storage interface {
	ErasePage(page int) error
	ReadWord(addr uint32) (uint32, error)
	WriteWord(addr uint32, v uint32) error
	WriteHalfWord(addr uint32, v uint16) error
}

var (
	ErrRange     = errors.New("nvstore: address out of range")
	ErrAlignment = errors.New("nvstore: misaligned address")
	ErrNotErased = errors.New("nvstore: target not erased")
)

// Flash is an in-memory flash emulation. It is safe for concurrent use.
type Flash struct {
	mu       sync.Mutex
	pageSize int
	data     []byte
}

// NewFlash returns an erased device of pages x pageSize bytes.
func NewFlash(pages, pageSize int) (*Flash, error) {
	if pages <= 0 {
		return nil, errors.New("nvstore: pages must be > 0")
	}
	if pageSize <= 0 || pageSize%4 != 0 {
		return nil, errors.New("nvstore: page size must be a positive multiple of 4")
	}
	f := &Flash{pageSize: pageSize, data: make([]byte, pages*pageSize)}
	for i := range f.data {
		f.data[i] = 0xFF
	}
	return f, nil
}

func (f *Flash) PageSize() int { return f.pageSize }

func (f *Flash) Pages() int { return len(f.data) / f.pageSize }

// ErasePage implements Storage.
func (f *Flash) ErasePage(page int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if page < 0 || page >= len(f.data)/f.pageSize {
		return fmt.Errorf("nvstore: erase page %d: %w", page, ErrRange)
	}
	start := page * f.pageSize
	for i := start; i < start+f.pageSize; i++ {
		f.data[i] = 0xFF
	}
	return nil
}

// ReadWord implements Storage. Words are little-endian.
func (f *Flash) ReadWord(addr uint32) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(addr, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(f.data[addr:]), nil
}

// WriteWord implements Storage.
func (f *Flash) WriteWord(addr uint32, v uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(addr, 4); err != nil {
		return err
	}
	if binary.LittleEndian.Uint32(f.data[addr:]) != 0xFFFFFFFF {
		return fmt.Errorf("nvstore: write 0x%08X: %w", addr, ErrNotErased)
	}
	binary.LittleEndian.PutUint32(f.data[addr:], v)
	return nil
}

// WriteHalfWord implements Storage.
func (f *Flash) WriteHalfWord(addr uint32, v uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(addr, 2); err != nil {
		return err
	}
	if binary.LittleEndian.Uint16(f.data[addr:]) != 0xFFFF {
		return fmt.Errorf("nvstore: write 0x%08X: %w", addr, ErrNotErased)
	}
	binary.LittleEndian.PutUint16(f.data[addr:], v)
	return nil
}

func (f *Flash) check(addr uint32, size uint32) error {
	if addr%size != 0 {
		return fmt.Errorf("nvstore: 0x%08X: %w", addr, ErrAlignment)
	}
	if uint64(addr)+uint64(size) > uint64(len(f.data)) {
		return fmt.Errorf("nvstore: 0x%08X: %w", addr, ErrRange)
	}
	return nil
}

// Image returns a copy of the device contents.
func (f *Flash) Image() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.data...)
}

// LoadImage replaces the device contents. The image must match the device
// size exactly.
func (f *Flash) LoadImage(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(b) != len(f.data) {
		return fmt.Errorf("nvstore: image is %d bytes, device is %d", len(b), len(f.data))
	}
	copy(f.data, b)
	return nil
}
