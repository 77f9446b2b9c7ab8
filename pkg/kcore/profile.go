package kcore

import (
	"encoding/binary"
	"io/ioutil"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// Profile describes the layout of the dumped kernel: word size, byte order,
// and the structure field offsets the walkers need. Profiles are generated
// offline (pahole, a debug kernel, or a known kernel build) and loaded from
// YAML, so crashctl never has to parse debug symbols itself.
type Profile struct {
	Arch    ArchSpec              `yaml:"arch"`
	Structs map[string]StructSpec `yaml:"structs"`
}

type ArchSpec struct {
	PointerSize int    `yaml:"pointer_size"`
	ByteOrder   string `yaml:"byte_order"`
}

type StructSpec struct {
	Size   uint64               `yaml:"size"`
	Fields map[string]FieldSpec `yaml:"fields"`
}

type FieldSpec struct {
	Offset uint64 `yaml:"offset"`
	Size   uint64 `yaml:"size"`
}

// requiredFields is the minimum layout the kernel walkers depend on.
// Validation up front beats unmapped-read errors halfway through a walk.
var requiredFields = map[string][]string{
	"task_struct":  {"pid", "comm", "tasks", "files", "fs"},
	"fs_struct":    {"root", "pwd"},
	"path":         {"mnt", "dentry"},
	"files_struct": {"fdt"},
	"fdtable":      {"max_fds", "fd"},
	"file":         {"f_path"},
	"dentry":       {"d_parent", "d_name", "d_inode"},
	"qstr":         {"name", "len"},
	"inode":        {"i_mode", "i_ino", "i_sb"},
	"mount":        {"mnt", "mnt_parent", "mnt_mountpoint"},
	"vfsmount":     {"mnt_root"},
}

func LoadProfile(path string) (*Profile, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening profile")
	}
	return ParseProfile(data)
}

func ParseProfile(data []byte) (*Profile, error) {
	p := &Profile{}
	if err := yaml.UnmarshalStrict(data, p); err != nil {
		return nil, errors.Wrap(err, "parsing profile")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Profile) Validate() error {
	if p.Arch.PointerSize != 4 && p.Arch.PointerSize != 8 {
		return errors.Errorf("profile: pointer_size must be 4 or 8, got %v", p.Arch.PointerSize)
	}
	if _, err := p.Order(); err != nil {
		return err
	}
	for structName, fields := range requiredFields {
		spec, ok := p.Structs[structName]
		if !ok {
			return errors.Errorf("profile: missing struct %q", structName)
		}
		for _, field := range fields {
			if _, ok := spec.Fields[field]; !ok {
				return errors.Errorf("profile: struct %q is missing field %q", structName, field)
			}
		}
	}
	return nil
}

func (p *Profile) Order() (binary.ByteOrder, error) {
	switch p.Arch.ByteOrder {
	case "little", "":
		return binary.LittleEndian, nil
	case "big":
		return binary.BigEndian, nil
	}
	return nil, errors.Errorf("profile: unknown byte_order %q", p.Arch.ByteOrder)
}

// Offset returns the byte offset of a struct field.
func (p *Profile) Offset(structName, field string) (uint64, error) {
	spec, ok := p.Structs[structName]
	if !ok {
		return 0, errors.Errorf("profile: unknown struct %q", structName)
	}
	f, ok := spec.Fields[field]
	if !ok {
		return 0, errors.Errorf("profile: struct %q has no field %q", structName, field)
	}
	return f.Offset, nil
}

// FieldSize returns the declared size of a struct field, zero if the
// profile leaves it implicit (pointers take the arch pointer size).
func (p *Profile) FieldSize(structName, field string) (uint64, error) {
	spec, ok := p.Structs[structName]
	if !ok {
		return 0, errors.Errorf("profile: unknown struct %q", structName)
	}
	f, ok := spec.Fields[field]
	if !ok {
		return 0, errors.Errorf("profile: struct %q has no field %q", structName, field)
	}
	return f.Size, nil
}

func (p *Profile) StructSize(structName string) (uint64, error) {
	spec, ok := p.Structs[structName]
	if !ok {
		return 0, errors.Errorf("profile: unknown struct %q", structName)
	}
	return spec.Size, nil
}
