package kcore

import (
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"
)

// Memory provides random access reads over a dump's virtual address space.
type Memory interface {
	ReadAt(addr uint64, p []byte) error
}

// ErrUnmapped is returned when a read touches an address the dump does not cover.
var ErrUnmapped = errors.New("address not mapped in dump")

// FlatImage is a raw memory image loaded at a fixed base address.
type FlatImage struct {
	Base uint64
	Data []byte
}

func (f *FlatImage) ReadAt(addr uint64, p []byte) error {
	// Bounds arithmetic stays subtraction-only: addr comes from decoded
	// kernel pointers, and addr+len wraps for garbage near the top of the
	// address space.
	if addr < f.Base {
		return errors.Wrapf(ErrUnmapped, "read %#x+%v", addr, len(p))
	}
	off := addr - f.Base
	size := uint64(len(f.Data))
	if off > size || size-off < uint64(len(p)) {
		return errors.Wrapf(ErrUnmapped, "read %#x+%v", addr, len(p))
	}
	copy(p, f.Data[off:])
	return nil
}

type segment struct {
	base uint64
	data []byte
}

// Buffer is a sparse in-memory address space. It is used to compose
// synthetic dumps, mostly in tests.
type Buffer struct {
	segments []segment
}

// Write places p at addr, adding a new segment. Segments must not overlap.
func (b *Buffer) Write(addr uint64, p []byte) {
	data := make([]byte, len(p))
	copy(data, p)
	b.segments = append(b.segments, segment{base: addr, data: data})
	sort.Slice(b.segments, func(i, j int) bool {
		return b.segments[i].base < b.segments[j].base
	})
}

func (b *Buffer) ReadAt(addr uint64, p []byte) error {
	for _, seg := range b.segments {
		if addr < seg.base {
			continue
		}
		off := addr - seg.base
		size := uint64(len(seg.data))
		if off <= size && size-off >= uint64(len(p)) {
			copy(p, seg.data[off:])
			return nil
		}
	}
	return errors.Wrapf(ErrUnmapped, "read %#x+%v", addr, len(p))
}

// Decoder layers byte-order and pointer-size aware reads on a Memory.
type Decoder struct {
	Mem     Memory
	Order   binary.ByteOrder
	PtrSize int
}

func NewDecoder(mem Memory, order binary.ByteOrder, ptrSize int) *Decoder {
	return &Decoder{Mem: mem, Order: order, PtrSize: ptrSize}
}

func (d *Decoder) Bytes(addr uint64, n int) ([]byte, error) {
	p := make([]byte, n)
	if err := d.Mem.ReadAt(addr, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (d *Decoder) U16(addr uint64) (uint16, error) {
	p, err := d.Bytes(addr, 2)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint16(p), nil
}

func (d *Decoder) U32(addr uint64) (uint32, error) {
	p, err := d.Bytes(addr, 4)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint32(p), nil
}

func (d *Decoder) U64(addr uint64) (uint64, error) {
	p, err := d.Bytes(addr, 8)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint64(p), nil
}

// Ptr reads a kernel pointer, widening to uint64 on 32-bit profiles.
func (d *Decoder) Ptr(addr uint64) (uint64, error) {
	if d.PtrSize == 4 {
		v, err := d.U32(addr)
		return uint64(v), err
	}
	return d.U64(addr)
}

// CString reads a NUL-terminated string of at most max bytes. An
// unterminated run of max bytes is an error rather than a truncation so
// that corrupt name pointers surface instead of producing garbage paths.
func (d *Decoder) CString(addr uint64, max int) (string, error) {
	p, err := d.Bytes(addr, max)
	if err != nil {
		return "", err
	}
	for i, c := range p {
		if c == 0 {
			return string(p[:i]), nil
		}
	}
	return "", errors.Errorf("unterminated string at %#x", addr)
}

// FixedString reads an inline char array (such as task_struct.comm),
// stopping at the first NUL.
func (d *Decoder) FixedString(addr uint64, n int) (string, error) {
	p, err := d.Bytes(addr, n)
	if err != nil {
		return "", err
	}
	for i, c := range p {
		if c == 0 {
			return string(p[:i]), nil
		}
	}
	return string(p), nil
}
