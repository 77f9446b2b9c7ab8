package kcore

import (
	"debug/elf"
	"io"
	"io/ioutil"
	"os"
	"sort"

	"github.com/pkg/errors"
)

type loadSegment struct {
	vaddr  uint64
	size   uint64
	offset int64
}

// ELFCore reads dump memory through the PT_LOAD program headers of an
// ELF core file (the format produced by kdump/makedumpfile -E and QEMU's
// dump-guest-memory).
type ELFCore struct {
	f        *os.File
	segments []loadSegment
}

func OpenELFCore(path string) (*ELFCore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening dump")
	}
	ef, err := elf.NewFile(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "parsing %v as ELF", path)
	}
	if ef.Type != elf.ET_CORE {
		f.Close()
		return nil, errors.Errorf("%v: ELF type is %v, want ET_CORE", path, ef.Type)
	}

	core := &ELFCore{f: f}
	for _, prog := range ef.Progs {
		if prog.Type != elf.PT_LOAD || prog.Filesz == 0 {
			continue
		}
		core.segments = append(core.segments, loadSegment{
			vaddr:  prog.Vaddr,
			size:   prog.Filesz,
			offset: int64(prog.Off),
		})
	}
	if len(core.segments) == 0 {
		f.Close()
		return nil, errors.Errorf("%v: no loadable segments", path)
	}
	sort.Slice(core.segments, func(i, j int) bool {
		return core.segments[i].vaddr < core.segments[j].vaddr
	})
	return core, nil
}

func (c *ELFCore) ReadAt(addr uint64, p []byte) error {
	// Locate the first segment ending past addr. Subtraction-only
	// comparisons here, since segment bounds and decoded pointers can sit
	// close enough to the top of the address space to wrap a sum.
	i := sort.Search(len(c.segments), func(i int) bool {
		s := c.segments[i]
		return s.vaddr >= addr || addr-s.vaddr < s.size
	})
	if i == len(c.segments) {
		return errors.Wrapf(ErrUnmapped, "read %#x+%v", addr, len(p))
	}
	s := c.segments[i]
	if addr < s.vaddr {
		return errors.Wrapf(ErrUnmapped, "read %#x+%v", addr, len(p))
	}
	off := addr - s.vaddr
	if off > s.size || s.size-off < uint64(len(p)) {
		return errors.Wrapf(ErrUnmapped, "read %#x+%v", addr, len(p))
	}
	n, err := c.f.ReadAt(p, s.offset+int64(off))
	if err != nil && !(err == io.EOF && n == len(p)) {
		return errors.Wrapf(err, "reading dump at %#x", addr)
	}
	return nil
}

func (c *ELFCore) Close() error {
	return c.f.Close()
}

// OpenFlatImage loads an entire raw image file at the given base address.
func OpenFlatImage(path string, base uint64) (*FlatImage, error) {
	data, err := readAll(path)
	if err != nil {
		return nil, err
	}
	return &FlatImage{Base: base, Data: data}, nil
}

func readAll(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening dump")
	}
	defer f.Close()
	data, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %v", path)
	}
	return data, nil
}
