package kernel

import "fmt"

// FileType classifies an inode by the S_IFMT bits of i_mode.
type FileType int

const (
	TypeUnknown FileType = iota
	TypeRegular
	TypeDirectory
	TypeCharacter
	TypeBlock
	TypeFIFO
	TypeSocket
	TypeLink
)

const (
	sIFMT   = 0xF000
	sIFSOCK = 0xC000
	sIFLNK  = 0xA000
	sIFREG  = 0x8000
	sIFBLK  = 0x6000
	sIFDIR  = 0x4000
	sIFCHR  = 0x2000
	sIFIFO  = 0x1000
)

func FileTypeFromMode(mode uint16) FileType {
	switch mode & sIFMT {
	case sIFREG:
		return TypeRegular
	case sIFDIR:
		return TypeDirectory
	case sIFCHR:
		return TypeCharacter
	case sIFBLK:
		return TypeBlock
	case sIFIFO:
		return TypeFIFO
	case sIFSOCK:
		return TypeSocket
	case sIFLNK:
		return TypeLink
	}
	return TypeUnknown
}

func (t FileType) String() string {
	switch t {
	case TypeRegular:
		return "REG"
	case TypeDirectory:
		return "DIR"
	case TypeCharacter:
		return "CHR"
	case TypeBlock:
		return "BLK"
	case TypeFIFO:
		return "FIFO"
	case TypeSocket:
		return "SOCK"
	case TypeLink:
		return "LNK"
	}
	return "UNKN"
}

// FormatAddr renders a kernel address the way crash(8) prints them: bare
// hex, padded to the word size of the dumped kernel.
func FormatAddr(addr uint64, ptrSize int) string {
	if ptrSize == 4 {
		return fmt.Sprintf("%08x", addr)
	}
	return fmt.Sprintf("%016x", addr)
}
