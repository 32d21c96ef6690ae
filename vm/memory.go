package vm

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Memory is a fixed-size, byte-addressable buffer owned by one Machine
// for its whole lifetime. The buffer itself is type-free; the instruction
// set only ever reads and writes 8-byte little-endian float64 cells, so
// those are the only accessors exposed.
type Memory struct {
	buf []byte
}

// NewMemory allocates a zero-initialized buffer of the given size.
// Negative sizes are treated as zero.
func NewMemory(size int) *Memory {
	if size < 0 {
		size = 0
	}
	return &Memory{buf: make([]byte, size)}
}

// Size returns the buffer capacity in bytes.
func (mem *Memory) Size() int {
	return len(mem.buf)
}

func (mem *Memory) check(addr int) error {
	// Written as a subtraction so addresses near MaxInt cannot wrap the
	// comparison around.
	if addr < 0 || addr > len(mem.buf)-8 {
		return fmt.Errorf("%w: address %d, memory size %d", ErrMemoryOutOfRange, addr, len(mem.buf))
	}
	return nil
}

// LoadFloat64 reads the 8-byte little-endian float64 at addr.
func (mem *Memory) LoadFloat64(addr int) (float64, error) {
	if err := mem.check(addr); err != nil {
		return 0, err
	}
	bits := binary.LittleEndian.Uint64(mem.buf[addr:])
	return math.Float64frombits(bits), nil
}

// StoreFloat64 writes f as 8 little-endian bytes at addr.
func (mem *Memory) StoreFloat64(addr int, f float64) error {
	if err := mem.check(addr); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(mem.buf[addr:], math.Float64bits(f))
	return nil
}

// Bytes returns a copy of the buffer contents.
func (mem *Memory) Bytes() []byte {
	out := make([]byte, len(mem.buf))
	copy(out, mem.buf)
	return out
}

// SetBytes replaces the buffer contents. The replacement must match the
// buffer size exactly; Memory never grows or shrinks after construction.
func (mem *Memory) SetBytes(data []byte) error {
	if len(data) != len(mem.buf) {
		return fmt.Errorf("%w: %d bytes for memory of size %d", ErrMemoryOutOfRange, len(data), len(mem.buf))
	}
	copy(mem.buf, data)
	return nil
}
